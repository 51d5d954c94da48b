package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/florianilch/vsts-npm-auth/internal/configstore"
)

// FileStore keeps the refresh token in an INI file with a single
// refresh_token key. Writes are atomic and set 0600 permissions.
type FileStore struct {
	store *configstore.Store
}

// Compile-time check to ensure FileStore implements TokenStore
var _ TokenStore = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path, creating parent directories
// with 0700 permissions if they don't exist.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{
		store: configstore.New(filePath,
			configstore.WithSchema(RefreshTokenKey),
			configstore.WithDefaults(map[string]string{RefreshTokenKey: ""}),
			configstore.WithFileMode(0600),
		),
	}, nil
}

// Path returns the token file path.
func (f *FileStore) Path() string {
	return f.store.Path()
}

// Get returns the token file as a dictionary. refresh_token is always present.
func (f *FileStore) Get() (map[string]string, error) {
	return f.store.Get()
}

// Read returns the stored refresh token. A missing file reads as "".
func (f *FileStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Loose permissions are reported, not enforced, so hand-edited files keep working
	info, err := os.Stat(f.store.Path())
	switch {
	case err == nil:
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			slog.WarnContext(ctx, "token file is readable by other users", "path", f.store.Path(), "mode", fmt.Sprintf("%04o", perm))
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", err
	}

	values, err := f.store.Get()
	if err != nil {
		return "", err
	}
	return values[RefreshTokenKey], nil
}

// Write replaces the stored refresh token.
func (f *FileStore) Write(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return f.store.Set(RefreshTokenKey, token)
}

// Clear empties the token file.
func (f *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return f.store.Clear()
}
