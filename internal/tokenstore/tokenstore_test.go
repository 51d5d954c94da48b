package tokenstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/florianilch/vsts-npm-auth/internal/tokenstore"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects empty path", func(t *testing.T) {
		_, err := tokenstore.NewFileStore("")
		require.Error(t, err)
	})

	t.Run("creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", ".devopsauthtoken")
		_, err := tokenstore.NewFileStore(path)
		require.NoError(t, err)

		info, err := os.Stat(filepath.Dir(path))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("missing file reads as empty token", func(t *testing.T) {
		store, err := tokenstore.NewFileStore(filepath.Join(t.TempDir(), ".devopsauthtoken"))
		require.NoError(t, err)

		token, err := store.Read(ctx)
		require.NoError(t, err)
		assert.Empty(t, token)

		values, err := store.Get()
		require.NoError(t, err)
		assert.Equal(t, map[string]string{tokenstore.RefreshTokenKey: ""}, values)
	})

	t.Run("write then read", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".devopsauthtoken")
		store, err := tokenstore.NewFileStore(path)
		require.NoError(t, err)

		require.NoError(t, store.Write(ctx, "rotated"))

		token, err := store.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, "rotated", token)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "refresh_token=rotated")

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("reads hand-written files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".devopsauthtoken")
		require.NoError(t, os.WriteFile(path, []byte("refresh_token=handwritten\r\n"), 0644))

		store, err := tokenstore.NewFileStore(path)
		require.NoError(t, err)

		token, err := store.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, "handwritten", token)
	})

	t.Run("clear", func(t *testing.T) {
		store, err := tokenstore.NewFileStore(filepath.Join(t.TempDir(), ".devopsauthtoken"))
		require.NoError(t, err)
		require.NoError(t, store.Write(ctx, "secret"))

		require.NoError(t, store.Clear(ctx))

		token, err := store.Read(ctx)
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("honors cancelled context", func(t *testing.T) {
		store, err := tokenstore.NewFileStore(filepath.Join(t.TempDir(), ".devopsauthtoken"))
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err = store.Read(cancelled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, store.Write(cancelled, "x"), context.Canceled)
	})
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()

	t.Run("validates identifiers", func(t *testing.T) {
		_, err := tokenstore.NewKeyringStore("", "user")
		require.Error(t, err)
		_, err = tokenstore.NewKeyringStore("service", "")
		require.Error(t, err)
	})

	t.Run("missing entry reads as empty token", func(t *testing.T) {
		store, err := tokenstore.NewKeyringStore("vsts-npm-auth-test", "nobody")
		require.NoError(t, err)

		token, err := store.Read(ctx)
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("write, read, clear", func(t *testing.T) {
		store, err := tokenstore.NewKeyringStore("vsts-npm-auth-test", "someone")
		require.NoError(t, err)

		require.NoError(t, store.Write(ctx, "secret"))
		token, err := store.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, "secret", token)

		require.NoError(t, store.Clear(ctx))
		require.NoError(t, store.Clear(ctx), "clearing twice is not an error")

		token, err = store.Read(ctx)
		require.NoError(t, err)
		assert.Empty(t, token)
	})
}
