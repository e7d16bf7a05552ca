// Package memory provides a thread-safe in-memory implementation of
// docstore.Repository. Suitable for testing and demos.
package memory

import (
	"sync"

	"github.com/oriolbns/despesa/docstore"
)

// Repository is a thread-safe in-memory docstore.Repository.
type Repository struct {
	mu   sync.RWMutex
	data map[string]*docstore.Document
}

var _ docstore.Repository = (*Repository)(nil)

// NewRepository creates an empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]*docstore.Document)}
}

func (r *Repository) Get(name string) (*docstore.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[name]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *Repository) Put(name, content, expectedTag string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.data[name]
	if !ok {
		if expectedTag != "" {
			return "", docstore.ErrTagMismatch
		}
	} else if existing.Tag != expectedTag {
		return "", docstore.ErrTagMismatch
	}

	tag := docstore.ContentTag(content)
	r.data[name] = &docstore.Document{Content: content, Tag: tag}
	return tag, nil
}
