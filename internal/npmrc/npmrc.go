// Package npmrc reads registry declarations from a project .npmrc and stores
// registry credentials in the user .npmrc.
package npmrc

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/florianilch/vsts-npm-auth/internal/configstore"
)

const (
	// FileName is the npm configuration file name.
	FileName = ".npmrc"

	// UserConfigEnv overrides the user .npmrc location, as in npm itself.
	UserConfigEnv = "NPM_CONFIG_USERCONFIG"

	registryKey  = "registry"
	authTokenKey = "_authToken"
)

// loadOptions only split on '=' since npm keys such as "@scope:registry" and
// "//host/path/:_authToken" contain ':'.
var loadOptions = ini.LoadOptions{
	KeyValueDelimiters:      "=",
	IgnoreInlineComment:     true,
	IgnoreContinuation:      true,
	PreserveSurroundedQuote: true,
	AllowBooleanKeys:        true,
	SkipUnrecognizableLines: true,
}

func init() {
	ini.PrettyFormat = false
}

// Registry is a registry declared in an .npmrc file.
type Registry struct {
	// Scope is "" for the default registry, otherwise "@scope".
	Scope string
	URL   *url.URL
}

// AuthKeys returns the nerf-darted credential keys for the registry, e.g.
// "//pkgs.dev.azure.com/org/_packaging/feed/npm/registry/:_authToken".
// Azure Artifacts serves tarballs from the parent of the registry path, so
// that prefix gets its own key.
func (r Registry) AuthKeys() []string {
	path := r.URL.EscapedPath()
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	keys := []string{"//" + r.URL.Host + path + ":" + authTokenKey}
	if parent, ok := strings.CutSuffix(path, "registry/"); ok {
		keys = append(keys, "//"+r.URL.Host+parent+":"+authTokenKey)
	}
	return keys
}

// IsAzureDevOps reports whether the registry is an Azure Artifacts feed.
func (r Registry) IsAzureDevOps() bool {
	host := strings.ToLower(r.URL.Hostname())
	return host == "pkgs.dev.azure.com" || strings.HasSuffix(host, ".pkgs.visualstudio.com")
}

// Registries returns the registries declared in the .npmrc at path,
// default registry first, then scopes in name order.
func Registries(path string) ([]Registry, error) {
	f, err := load(path)
	if err != nil {
		return nil, err
	}

	section := f.Section(ini.DefaultSection)
	var registries []Registry
	for _, key := range section.Keys() {
		scope, ok := registryScope(key.Name())
		if !ok {
			continue
		}

		raw := strings.Trim(key.Value(), `"'`)
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("%s: invalid registry url for %q: %q", path, key.Name(), raw)
		}
		registries = append(registries, Registry{Scope: scope, URL: u})
	}

	sort.SliceStable(registries, func(i, j int) bool {
		return registries[i].Scope < registries[j].Scope
	})
	return registries, nil
}

// AzureDevOps filters registries down to Azure Artifacts feeds.
func AzureDevOps(registries []Registry) []Registry {
	var out []Registry
	for _, r := range registries {
		if r.IsAzureDevOps() {
			out = append(out, r)
		}
	}
	return out
}

// SetAuthToken stores token for every registry in the .npmrc at path,
// keeping all other entries. The file is created with 0600 if missing.
func SetAuthToken(path string, registries []Registry, token string) error {
	f, err := load(path)
	if errors.Is(err, fs.ErrNotExist) {
		f, err = ini.Empty(loadOptions), nil
	}
	if err != nil {
		return err
	}

	mode := os.FileMode(0600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	section := f.Section(ini.DefaultSection)
	for _, r := range registries {
		for _, key := range r.AuthKeys() {
			section.Key(key).SetValue(token)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return configstore.WriteFileAtomic(path, buf.Bytes(), mode)
}

// UserConfigPath returns the user .npmrc location: $NPM_CONFIG_USERCONFIG,
// then ~/.npmrc.
func UserConfigPath() (string, error) {
	if path := os.Getenv(UserConfigEnv); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating user %s: %w", FileName, err)
	}
	return filepath.Join(home, FileName), nil
}

func load(path string) (*ini.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// registryScope matches "registry" and "@scope:registry" keys.
func registryScope(key string) (string, bool) {
	if key == registryKey {
		return "", true
	}
	scope, ok := strings.CutSuffix(key, ":"+registryKey)
	if !ok || !strings.HasPrefix(scope, "@") {
		return "", false
	}
	return scope, true
}
