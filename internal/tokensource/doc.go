// Package tokensource exchanges a stored refresh token for a short-lived
// Azure DevOps access token.
//
// The token endpoint is a stateless OAuth helper that deviates from standard
// OAuth2 refresh in several ways that require custom handling:
//   - The refresh token is sent as the `code` query parameter of a GET request
//   - Every exchange rotates the refresh token, so the new one must be persisted
//   - Issued access tokens may carry an `nbf` claim slightly in the future
//
// # Exchange
//
//	client, err := tokensource.New(settings, tokens)
//	token, err := client.Exchange(ctx)
//
// Failures are classified as *ConfigurationError, *AuthorizationError,
// *MalformedResponseError or *TransportError and can be matched with errors.As.
//
// # Build Agents
//
// On CI agents that inject SYSTEM_ACCESSTOKEN, the exchange can be skipped:
//
//	client, err := tokensource.New(settings, tokens,
//		tokensource.WithEnvResolver(tokensource.NewEnvResolver()),
//	)
//	accessToken, err := client.AccessToken(ctx)
package tokensource
