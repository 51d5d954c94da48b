package configstore

// Settings keys understood by the tool.
const (
	KeyClientID             = "clientId"
	KeyRedirectURI          = "redirectUri"
	KeyTokenEndpoint        = "tokenEndpoint"
	KeyTokenExpiryGraceInMs = "tokenExpiryGraceInMs"
	KeyTokenFile            = "tokenfile"
)

// Default settings values. KeyTokenFile has no default.
const (
	DefaultClientID             = "DE516D90-B63E-4994-BA64-881EA988A9D2"
	DefaultRedirectURI          = "https://stateless-vsts-oauth.azurewebsites.net/oauth-callback"
	DefaultTokenEndpoint        = "https://stateless-vsts-oauth.azurewebsites.net/token-refresh"
	DefaultTokenExpiryGraceInMs = "1800000"
)

// SettingsKeys returns the schema of the settings file.
func SettingsKeys() []string {
	return []string{
		KeyClientID,
		KeyRedirectURI,
		KeyTokenEndpoint,
		KeyTokenExpiryGraceInMs,
		KeyTokenFile,
	}
}

// SettingsDefaults returns a fresh copy of the built-in settings defaults.
func SettingsDefaults() map[string]string {
	return map[string]string{
		KeyClientID:             DefaultClientID,
		KeyRedirectURI:          DefaultRedirectURI,
		KeyTokenEndpoint:        DefaultTokenEndpoint,
		KeyTokenExpiryGraceInMs: DefaultTokenExpiryGraceInMs,
	}
}
