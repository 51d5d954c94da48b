// Package tokenstore provides persistent storage for the OAuth refresh token.
//
// Supports two storage backends:
//   - File: an INI file holding a single refresh_token key, written atomically with 0600 permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, Secret Service)
//
// Only the refresh token is durable. Access tokens are never stored.
package tokenstore
