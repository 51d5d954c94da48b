// Package configstore provides a key-validated settings dictionary backed by
// an INI file.
//
// A Store only accepts keys from its schema. Reads always return the schema
// defaults merged with the file contents, file values winning, so the file on
// disk only ever holds what the user set explicitly:
//
//	store := configstore.New(".devopsauthrc")
//	settings, err := store.Get()
//	// settings[configstore.KeyTokenEndpoint] holds the file value or the default
//
// Every mutation reads the whole file, applies the change in memory and
// rewrites the whole file atomically (temp file + rename).
package configstore
