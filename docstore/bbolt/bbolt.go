// Package bbolt provides a BBolt-backed docstore.Repository.
package bbolt

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/oriolbns/despesa/docstore"
)

var bucketDocuments = []byte("documents")

// Store implements docstore.Repository backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ docstore.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path and
// returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(name string) (*docstore.Document, error) {
	var doc docstore.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		if b == nil {
			return fmt.Errorf("%s: %w", name, docstore.ErrNotFound)
		}
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%s: %w", name, docstore.ErrNotFound)
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) Put(name, content, expectedTag string) (string, error) {
	tag := docstore.ContentTag(content)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketDocuments)
		if err != nil {
			return err
		}

		// The CAS check and the write share one transaction, so
		// concurrent writers serialize here.
		if data := b.Get([]byte(name)); data == nil {
			if expectedTag != "" {
				return docstore.ErrTagMismatch
			}
		} else {
			var existing docstore.Document
			if err := json.Unmarshal(data, &existing); err != nil {
				return err
			}
			if existing.Tag != expectedTag {
				return docstore.ErrTagMismatch
			}
		}

		data, err := json.Marshal(&docstore.Document{Content: content, Tag: tag})
		if err != nil {
			return err
		}
		return b.Put([]byte(name), data)
	})
	if err != nil {
		return "", err
	}
	return tag, nil
}
