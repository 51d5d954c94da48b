package tokensource

import (
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/florianilch/vsts-npm-auth/internal/configstore"
)

// Endpoint defines the Azure DevOps authorization endpoint used for interactive consent.
// Token exchange goes through the configured tokenEndpoint instead of TokenURL.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://app.vssps.visualstudio.com/oauth2/authorize",
	TokenURL:  "https://app.vssps.visualstudio.com/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// scopes defines the required OAuth scopes for publishing and installing packages
var scopes = []string{"vso.packaging_write"}

// ConsentURL builds the URL a user opens to grant consent, using the clientId
// and redirectUri settings. The redirect target hands the user a refresh token.
func ConsentURL(settings map[string]string) string {
	cfg := &oauth2.Config{
		ClientID:    settings[configstore.KeyClientID],
		RedirectURL: settings[configstore.KeyRedirectURI],
		Scopes:      scopes,
		Endpoint:    Endpoint,
	}

	// Azure DevOps expects JWT-bearer assertions rather than authorization codes
	return cfg.AuthCodeURL(uuid.NewString(), oauth2.SetAuthURLParam("response_type", "Assertion"))
}
