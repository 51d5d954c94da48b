package tokensource

import "os"

// SystemAccessTokenEnv is injected by Azure Pipelines agents with a ready-to-use access token.
const SystemAccessTokenEnv = "SYSTEM_ACCESSTOKEN"

// EnvResolver reads an access token from the environment.
type EnvResolver struct {
	envKey string
	lookup func(string) (string, bool)
}

// NewEnvResolver creates an EnvResolver for SYSTEM_ACCESSTOKEN.
func NewEnvResolver() *EnvResolver {
	return &EnvResolver{
		envKey: SystemAccessTokenEnv,
		lookup: os.LookupEnv,
	}
}

// Resolve returns the access token and true when the variable is set and non-empty.
func (e *EnvResolver) Resolve() (string, bool) {
	token, ok := e.lookup(e.envKey)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
