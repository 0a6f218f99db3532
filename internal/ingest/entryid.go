// Package ingest feeds note files from watched directories into the
// knowledge store, keeping entries in sync with file creates, edits, and
// deletes.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const idPrefix = "file:"

// EntryID returns a stable knowledge entry ID for the given file path. The
// same path always yields the same ID, so re-ingesting an edited file
// replaces its entry instead of duplicating it.
func EntryID(path string) string {
	normalized := filepath.Clean(path)
	hash := sha256.Sum256([]byte(normalized))
	return idPrefix + hex.EncodeToString(hash[:])
}
