package configstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// InvalidKeyError is returned when a key outside the store's schema is used.
type InvalidKeyError struct {
	Key string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("%q is not a valid config setting", e.Key)
}

// Option configures a Store.
type Option func(*Store)

// WithSchema restricts the store to the given keys.
func WithSchema(keys ...string) Option {
	return func(s *Store) {
		s.keys = slices.Clone(keys)
	}
}

// WithDefaults sets the values reported for keys missing from the file.
func WithDefaults(defaults map[string]string) Option {
	return func(s *Store) {
		s.defaults = make(map[string]string, len(defaults))
		for k, v := range defaults {
			s.defaults[k] = v
		}
	}
}

// WithFileMode sets the permissions of written files (default 0644).
func WithFileMode(mode os.FileMode) Option {
	return func(s *Store) {
		s.mode = mode
	}
}

// Store is a key-validated settings dictionary persisted as an INI file.
// It performs no locking; concurrent writers race and the last one wins.
type Store struct {
	path     string
	keys     []string
	defaults map[string]string
	mode     os.FileMode
}

// New creates a Store for the file at path. Without options the store uses
// the settings schema and defaults. No I/O is performed.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:     path,
		keys:     SettingsKeys(),
		defaults: SettingsDefaults(),
		mode:     0644,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// IsKeyValid reports whether key belongs to the store's schema.
func (s *Store) IsKeyValid(key string) bool {
	return slices.Contains(s.keys, key)
}

// Get returns the defaults merged with the file contents, file values winning.
// A missing file reads as empty.
func (s *Store) Get() (map[string]string, error) {
	k := koanf.New(".")

	defaults := make(map[string]any, len(s.defaults))
	for key, value := range s.defaults {
		defaults[key] = value
	}
	if err := k.Load(confmap.Provider(defaults, ""), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if err := k.Load(file.Provider(s.path), iniParser{}); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	out := make(map[string]string, len(k.Keys()))
	for _, key := range k.Keys() {
		out[key] = k.String(key)
	}
	return out, nil
}

// Set assigns value to key and rewrites the file.
func (s *Store) Set(key, value string) error {
	if !s.IsKeyValid(key) {
		return &InvalidKeyError{Key: key}
	}

	values, err := s.Get()
	if err != nil {
		return err
	}
	values[key] = value

	return s.Write(values)
}

// Delete removes key and rewrites the file. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if !s.IsKeyValid(key) {
		return &InvalidKeyError{Key: key}
	}

	values, err := s.Get()
	if err != nil {
		return err
	}
	delete(values, key)

	return s.Write(values)
}

// Clear empties the file.
func (s *Store) Clear() error {
	return s.Write(map[string]string{})
}

// Write replaces the file contents with values.
func (s *Store) Write(values map[string]string) error {
	m := make(map[string]any, len(values))
	for k, v := range values {
		m[k] = v
	}

	data, err := iniParser{}.Marshal(m)
	if err != nil {
		return err
	}

	return WriteFileAtomic(s.path, data, s.mode)
}

// WriteFileAtomic replaces path with data using a temp file in the same
// directory and a rename, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tempFile.Chmod(mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
