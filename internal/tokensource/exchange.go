package tokensource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// exchangeResponse is the JSON body returned by the token endpoint.
type exchangeResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// exchange is a validated token endpoint response.
type exchange struct {
	accessToken  string
	refreshToken string
	notBefore    time.Time // zero when the token has no nbf claim
	expiry       time.Time // zero when the token has no exp claim
}

// decodeExchange validates a response body once at the network boundary.
// Any unusable body yields a *MalformedResponseError carrying the raw body.
func decodeExchange(body []byte) (exchange, error) {
	raw := string(bytes.TrimSpace(body))

	var resp *exchangeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return exchange{}, &MalformedResponseError{Body: raw, Err: err}
	}
	if resp == nil {
		return exchange{}, &MalformedResponseError{Body: raw, Err: errors.New("empty body")}
	}
	if resp.RefreshToken == "" {
		return exchange{}, &MalformedResponseError{Body: raw, Err: errors.New("missing refresh_token")}
	}
	if resp.AccessToken == "" {
		return exchange{}, &MalformedResponseError{Body: raw, Err: errors.New("missing access_token")}
	}

	// The endpoint is trusted, signature verification is left to the registry
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, claims); err != nil {
		return exchange{}, &MalformedResponseError{Body: raw, Err: fmt.Errorf("decoding access_token: %w", err)}
	}

	result := exchange{
		accessToken:  resp.AccessToken,
		refreshToken: resp.RefreshToken,
	}

	nbf, err := claims.GetNotBefore()
	if err != nil {
		return exchange{}, &MalformedResponseError{Body: raw, Err: fmt.Errorf("decoding nbf claim: %w", err)}
	}
	if nbf != nil {
		result.notBefore = nbf.Time
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return exchange{}, &MalformedResponseError{Body: raw, Err: fmt.Errorf("decoding exp claim: %w", err)}
	}
	if exp != nil {
		result.expiry = exp.Time
	}

	return result, nil
}
