// Package docstore provides the storage abstraction for the proxy's
// versioned documents. Each named document holds opaque text plus a
// version tag; writes are compare-and-swap on the tag, which is how the
// proxy surfaces optimistic-concurrency conflicts to clients.
package docstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrTagMismatch is returned when a CAS write's expected tag no longer
// matches the stored document.
var ErrTagMismatch = errors.New("version tag mismatch")

// Document is a stored document revision.
type Document struct {
	Content string `json:"content"`
	Tag     string `json:"tag"`
}

// Repository defines versioned document storage. Put conditions the
// write on expectedTag: an empty expectedTag means "create, must not
// exist"; a non-empty tag must match the current revision. The returned
// tag identifies the new revision.
type Repository interface {
	Get(name string) (*Document, error)
	Put(name, content, expectedTag string) (string, error)
}

// ContentTag computes the version tag for a revision. Tags are content
// hashes, mirroring the blob SHAs GitHub assigns, so identical content
// always carries the same tag.
func ContentTag(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
