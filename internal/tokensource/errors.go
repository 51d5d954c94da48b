package tokensource

import "fmt"

// ConfigurationError reports settings that make an exchange impossible.
// No network request is made when it is returned.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return e.Msg
}

// AuthorizationError reports a missing or rejected refresh token.
// The user has to grant consent again at ConsentURL. Err holds the endpoint's
// *oauth2.RetrieveError when the token was rejected.
type AuthorizationError struct {
	Msg        string
	ConsentURL string
	Err        error
}

func (e *AuthorizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// MalformedResponseError reports a token endpoint response that could not be used.
// Body holds the raw response for debugging against the endpoint.
type MalformedResponseError struct {
	Body string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return "malformed response body:\n" + e.Body
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// TransportError reports a failed request to the token endpoint.
// Err is the underlying cause, an *oauth2.RetrieveError for non-2xx responses.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("token endpoint request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
