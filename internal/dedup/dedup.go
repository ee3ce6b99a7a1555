// Package dedup computes content digests and answers whether content has
// been ingested before. The index is backed by the storage gateway's unique
// hash constraint, not an in-memory set, so it stays correct across process
// restarts.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"

	"github.com/fileflow/ingestd/internal/database"
	"github.com/fileflow/ingestd/internal/gateway"
)

// HashFile streams the file through SHA-256 and returns the hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Index answers duplicate queries against the persistent store. Only
// validated records participate; a failed file's hash never blocks future
// ingestion of the same content.
type Index struct {
	gw gateway.Gateway
}

// NewIndex builds an index over the given gateway.
func NewIndex(gw gateway.Gateway) *Index {
	return &Index{gw: gw}
}

// Lookup returns the validated record holding the given hash, or nil when
// the content is novel.
func (i *Index) Lookup(hash string) (*database.FileRecord, error) {
	record, err := i.gw.FindByHash(hash)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// Exists reports whether the hash belongs to an already validated record.
func (i *Index) Exists(hash string) (bool, error) {
	record, err := i.Lookup(hash)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}
