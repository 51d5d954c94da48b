package tokensource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/florianilch/vsts-npm-auth/internal/configstore"
	"github.com/florianilch/vsts-npm-auth/internal/tokenstore"
)

// maxResponseSize bounds the token endpoint response body.
const maxResponseSize = 1 << 20

// Settings provides the tool settings (tokenEndpoint, clientId, redirectUri).
type Settings interface {
	Get() (map[string]string, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for token endpoint requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithEnvResolver lets AccessToken and Token skip the exchange when the resolver yields a token.
func WithEnvResolver(resolver *EnvResolver) Option {
	return func(c *Client) {
		c.resolver = resolver
	}
}

// WithClock sets the time source used for the nbf check.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithWait replaces the function that delays delivery of not-yet-valid tokens.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.wait = wait
	}
}

// Client exchanges the stored refresh token for an access token and persists
// the rotated refresh token.
type Client struct {
	settings   Settings
	tokens     tokenstore.TokenStore
	httpClient *http.Client
	resolver   *EnvResolver
	now        func() time.Time
	wait       func(ctx context.Context, d time.Duration) error
	validate   *validator.Validate

	group singleflight.Group
}

// Compile-time check to ensure Client implements oauth2.TokenSource
var _ oauth2.TokenSource = (*Client)(nil)

// New creates a Client. No I/O is performed until the first exchange.
func New(settings Settings, tokens tokenstore.TokenStore, opts ...Option) (*Client, error) {
	if settings == nil {
		return nil, fmt.Errorf("missing settings")
	}
	if tokens == nil {
		return nil, fmt.Errorf("missing token store")
	}

	c := &Client{
		settings: settings,
		tokens:   tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now:      time.Now,
		wait:     sleep,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// AccessToken returns an access token from the environment resolver if one is
// configured and set, otherwise from a refresh token exchange.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if token, ok := c.resolve(); ok {
		slog.DebugContext(ctx, "using access token from environment", "env", SystemAccessTokenEnv)
		return token, nil
	}

	token, err := c.Exchange(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// Token implements oauth2.TokenSource. Concurrent callers share a single exchange
// so a rotating refresh token is spent only once per process.
func (c *Client) Token() (*oauth2.Token, error) {
	if token, ok := c.resolve(); ok {
		return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
	}

	// oauth2.TokenSource.Token() has no context parameter (legacy interface limitation)
	v, err, _ := c.group.Do("exchange", func() (any, error) {
		return c.Exchange(context.Background())
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

// Exchange trades the stored refresh token for a new access token.
// The returned token is not handed out before its nbf claim, and the rotated
// refresh token is persisted only after every other step succeeded.
func (c *Client) Exchange(ctx context.Context) (*oauth2.Token, error) {
	settings, err := c.settings.Get()
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	endpoint := settings[configstore.KeyTokenEndpoint]
	if endpoint == "" {
		return nil, &ConfigurationError{Msg: "invalid config, missing tokenEndpoint"}
	}
	if err := c.validate.Var(endpoint, "url"); err != nil {
		return nil, &ConfigurationError{Msg: fmt.Sprintf("invalid config, tokenEndpoint %q is not a valid URL", endpoint)}
	}

	refreshToken, err := c.tokens.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading refresh token: %w", err)
	}
	if refreshToken == "" {
		return nil, &AuthorizationError{
			Msg:        "missing refresh_token",
			ConsentURL: ConsentURL(settings),
		}
	}

	body, err := c.fetch(ctx, endpoint, refreshToken)
	if err != nil {
		if rejected(err) {
			return nil, &AuthorizationError{
				Msg:        "refresh_token rejected by token endpoint",
				ConsentURL: ConsentURL(settings),
				Err:        err,
			}
		}
		return nil, err
	}

	result, err := decodeExchange(body)
	if err != nil {
		return nil, err
	}

	if !result.notBefore.IsZero() {
		if delay := result.notBefore.Sub(c.now()); delay > 0 {
			slog.DebugContext(ctx, "access token not yet valid, waiting", "delay", delay)
			if err := c.wait(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	if err := c.tokens.Write(ctx, result.refreshToken); err != nil {
		return nil, fmt.Errorf("persisting refresh token: %w", err)
	}

	return &oauth2.Token{
		AccessToken:  result.accessToken,
		RefreshToken: result.refreshToken,
		TokenType:    "Bearer",
		Expiry:       result.expiry,
	}, nil
}

func (c *Client) resolve() (string, bool) {
	if c.resolver == nil {
		return "", false
	}
	return c.resolver.Resolve()
}

// fetch sends the refresh token as the `code` query parameter and returns the raw body.
func (c *Client) fetch(ctx context.Context, endpoint, refreshToken string) ([]byte, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &ConfigurationError{Msg: fmt.Sprintf("invalid config, tokenEndpoint %q is not a valid URL", endpoint)}
	}
	query := u.Query()
	query.Set("code", refreshToken)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retrieveErr := &oauth2.RetrieveError{Response: resp, Body: body}
		var errBody struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &errBody) == nil {
			retrieveErr.ErrorCode = errBody.Error
			retrieveErr.ErrorDescription = errBody.ErrorDescription
		}
		return nil, &TransportError{Err: retrieveErr}
	}

	return body, nil
}

// rejected reports whether the endpoint refused the refresh token itself,
// as opposed to failing for server or network reasons.
func rejected(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) || retrieveErr.Response == nil {
		return false
	}
	switch retrieveErr.Response.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized:
	default:
		return false
	}
	switch retrieveErr.ErrorCode {
	case "invalid_grant", "invalid_token":
		return true
	}
	return false
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetRefreshToken stores token unconditionally, e.g. after an out-of-band consent flow.
func SetRefreshToken(ctx context.Context, tokens tokenstore.TokenStore, token string) error {
	return tokens.Write(ctx, token)
}
