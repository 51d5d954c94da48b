package tokenstore

import "context"

// RefreshTokenKey is the only key held by token storage.
const RefreshTokenKey = "refresh_token"

// TokenStore reads and writes the refresh token to persistent storage.
type TokenStore interface {
	// Read returns the stored refresh token, or "" when none is stored.
	Read(ctx context.Context) (string, error)

	// Write persists the refresh token, replacing any previous value.
	Write(ctx context.Context, token string) error

	// Clear removes the stored token. Clearing empty storage is not an error.
	Clear(ctx context.Context) error
}
