//go:build !js && !wasm
// +build !js,!wasm

package snippetdna

import (
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/storage"
)

// NewSQLiteStorage opens the SQLite reference catalog at dbPath.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}
