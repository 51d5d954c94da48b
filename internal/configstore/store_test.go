package configstore_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/vsts-npm-auth/internal/configstore"
)

func newStore(t *testing.T, opts ...configstore.Option) (*configstore.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".devopsauthrc")
	return configstore.New(path, opts...), path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestIsKeyValid(t *testing.T) {
	t.Run("default schema", func(t *testing.T) {
		store, _ := newStore(t)
		for _, key := range configstore.SettingsKeys() {
			assert.True(t, store.IsKeyValid(key), key)
		}
		assert.False(t, store.IsKeyValid("foo"))
		assert.False(t, store.IsKeyValid("clientid"), "keys are case-sensitive")
	})

	t.Run("custom schema", func(t *testing.T) {
		store, _ := newStore(t, configstore.WithSchema("foo", "example", "valid_key"))
		for _, key := range []string{"foo", "example", "valid_key"} {
			assert.True(t, store.IsKeyValid(key), key)
		}
		for _, key := range configstore.SettingsKeys() {
			assert.False(t, store.IsKeyValid(key), key)
		}
		assert.False(t, store.IsKeyValid("1nv4lid"))
	})
}

func TestGet(t *testing.T) {
	t.Run("missing file returns exactly the defaults", func(t *testing.T) {
		store, _ := newStore(t)
		got, err := store.Get()
		require.NoError(t, err)
		assert.Equal(t, configstore.SettingsDefaults(), got)
	})

	t.Run("file values win over defaults per key", func(t *testing.T) {
		store, path := newStore(t)
		require.NoError(t, os.WriteFile(path, []byte("clientId=foobar\r\n"), 0644))

		got, err := store.Get()
		require.NoError(t, err)
		assert.Equal(t, "foobar", got[configstore.KeyClientID])
		assert.Equal(t, configstore.DefaultTokenExpiryGraceInMs, got[configstore.KeyTokenExpiryGraceInMs])
	})

	t.Run("accepts CRLF and LF line endings", func(t *testing.T) {
		store, path := newStore(t)
		require.NoError(t, os.WriteFile(path, []byte("foo=bar\r\nbaz=value\nredirectUri=http://localhost/cb\n"), 0644))

		got, err := store.Get()
		require.NoError(t, err)
		assert.Equal(t, "bar", got["foo"])
		assert.Equal(t, "value", got["baz"])
		assert.Equal(t, "http://localhost/cb", got[configstore.KeyRedirectURI])
	})

	t.Run("empty value is kept distinct from absence", func(t *testing.T) {
		store, path := newStore(t, configstore.WithSchema("refresh_token"), configstore.WithDefaults(map[string]string{"refresh_token": "default"}))
		require.NoError(t, os.WriteFile(path, []byte("refresh_token=\n"), 0600))

		got, err := store.Get()
		require.NoError(t, err)
		value, ok := got["refresh_token"]
		assert.True(t, ok)
		assert.Empty(t, value)
	})

	t.Run("other read errors propagate", func(t *testing.T) {
		dir := t.TempDir()
		store := configstore.New(dir) // a directory cannot be read as a file

		_, err := store.Get()
		require.Error(t, err)
	})
}

func TestWrite(t *testing.T) {
	t.Run("round trip merges with defaults", func(t *testing.T) {
		store, _ := newStore(t)
		values := map[string]string{
			configstore.KeyTokenEndpoint: "https://example.com/token",
			configstore.KeyTokenFile:     "/tmp/token",
		}
		require.NoError(t, store.Write(values))

		got, err := store.Get()
		require.NoError(t, err)

		want := configstore.SettingsDefaults()
		for k, v := range values {
			want[k] = v
		}
		assert.Equal(t, want, got)
	})

	t.Run("round trip preserves values verbatim", func(t *testing.T) {
		tests := []struct {
			name  string
			value string
		}{
			{name: "plain", value: "DE516D90-B63E-4994-BA64-881EA988A9D2"},
			{name: "url with query", value: "https://example.com/token?a=b&c=d"},
			{name: "equals sign", value: "a=b=c"},
			{name: "double quoted", value: `"quoted"`},
			{name: "single quoted", value: `'single'`},
			{name: "triple quote", value: `"""`},
			{name: "lone quote", value: `"`},
			{name: "backtick", value: "a`b"},
			{name: "leading backtick", value: "`raw`"},
			{name: "hash", value: "abc#def"},
			{name: "semicolon", value: "abc;def"},
			{name: "leading comment symbol", value: "; not a comment"},
			{name: "backslash", value: `C:\tokens\`},
			{name: "surrounding spaces", value: "  padded  "},
			{name: "newline", value: "line1\nline2"},
			{name: "empty", value: ""},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				store, _ := newStore(t)
				require.NoError(t, store.Write(map[string]string{configstore.KeyClientID: tt.value}))

				got, err := store.Get()
				require.NoError(t, err)
				assert.Equal(t, tt.value, got[configstore.KeyClientID])
			})
		}
	})

	t.Run("reads hand-quoted values without quotes", func(t *testing.T) {
		store, path := newStore(t)
		require.NoError(t, os.WriteFile(path, []byte("clientId=\"foo\"\nredirectUri='bar'\n"), 0644))

		got, err := store.Get()
		require.NoError(t, err)
		assert.Equal(t, "foo", got[configstore.KeyClientID])
		assert.Equal(t, "bar", got[configstore.KeyRedirectURI])
	})

	t.Run("writes key=value lines", func(t *testing.T) {
		store, path := newStore(t)
		require.NoError(t, store.Write(map[string]string{"foo": "bar"}))
		assert.Contains(t, readFile(t, path), "foo=bar")
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		store, path := newStore(t)
		require.NoError(t, store.Write(map[string]string{"foo": "bar"}))

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, filepath.Base(path), entries[0].Name())
	})

	t.Run("applies the configured file mode", func(t *testing.T) {
		store, path := newStore(t, configstore.WithFileMode(0600))
		require.NoError(t, store.Write(map[string]string{"foo": "bar"}))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("propagates write errors", func(t *testing.T) {
		store := configstore.New(filepath.Join(t.TempDir(), "missing", "dir", ".devopsauthrc"))
		require.Error(t, store.Write(map[string]string{"foo": "bar"}))
	})
}

func TestClear(t *testing.T) {
	store, path := newStore(t)
	require.NoError(t, store.Set(configstore.KeyClientID, "value"))

	require.NoError(t, store.Clear())
	assert.Empty(t, strings.TrimSpace(readFile(t, path)))

	got, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, configstore.SettingsDefaults(), got)
}

func TestSet(t *testing.T) {
	t.Run("writes the value to disk", func(t *testing.T) {
		store, path := newStore(t)
		require.NoError(t, store.Set(configstore.KeyClientID, "value"))
		assert.Contains(t, readFile(t, path), "clientId=value")
	})

	t.Run("keeps prior updates", func(t *testing.T) {
		store, path := newStore(t)

		require.NoError(t, store.Set(configstore.KeyRedirectURI, "val1"))
		content := readFile(t, path)
		assert.Contains(t, content, "redirectUri=val1")
		assert.NotContains(t, content, "tokenEndpoint=val2")

		require.NoError(t, store.Set(configstore.KeyTokenEndpoint, "val2"))
		content = readFile(t, path)
		assert.Contains(t, content, "redirectUri=val1")
		assert.Contains(t, content, "tokenEndpoint=val2")
	})

	t.Run("rejects unknown keys before touching the file", func(t *testing.T) {
		store, path := newStore(t)

		err := store.Set("foo", "bar")
		var invalid *configstore.InvalidKeyError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, "foo", invalid.Key)

		_, statErr := os.Stat(path)
		assert.True(t, errors.Is(statErr, os.ErrNotExist))
	})
}

func TestDelete(t *testing.T) {
	t.Run("removes the key from disk", func(t *testing.T) {
		store, path := newStore(t, configstore.WithSchema(configstore.KeyClientID), configstore.WithDefaults(nil))
		require.NoError(t, os.WriteFile(path, []byte("clientId=value\nother=kept\n"), 0644))

		require.NoError(t, store.Delete(configstore.KeyClientID))

		content := readFile(t, path)
		assert.NotContains(t, content, "clientId")
		assert.Contains(t, content, "other=kept")
	})

	t.Run("is idempotent", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.Delete(configstore.KeyTokenFile))
		require.NoError(t, store.Delete(configstore.KeyTokenFile))
	})

	t.Run("rejects unknown keys before touching the file", func(t *testing.T) {
		store, path := newStore(t)

		var invalid *configstore.InvalidKeyError
		require.ErrorAs(t, store.Delete("foo"), &invalid)

		_, statErr := os.Stat(path)
		assert.ErrorIs(t, statErr, os.ErrNotExist)
	})
}
