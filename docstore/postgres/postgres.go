// Package postgres implements docstore.Repository backed by PostgreSQL.
//
// The documents table keys on the document name; the version tag is
// checked inside the UPDATE/INSERT statements themselves so the CAS
// semantics hold without an explicit transaction.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/oriolbns/despesa/docstore"
)

// Schema creates the documents table.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	name    TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	tag     TEXT NOT NULL
)`

// Store implements docstore.Repository backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ docstore.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given database handle.
func NewRepository(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromDSN opens a connection, ensures the schema exists,
// and returns a new Repository.
func NewRepositoryFromDSN(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(name string) (*docstore.Document, error) {
	var doc docstore.Document
	err := s.db.QueryRow(
		`SELECT content, tag FROM documents WHERE name = $1`, name,
	).Scan(&doc.Content, &doc.Tag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, docstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}
	return &doc, nil
}

func (s *Store) Put(name, content, expectedTag string) (string, error) {
	tag := docstore.ContentTag(content)

	var res sql.Result
	var err error
	if expectedTag == "" {
		res, err = s.db.Exec(
			`INSERT INTO documents (name, content, tag) VALUES ($1, $2, $3)
			 ON CONFLICT (name) DO NOTHING`,
			name, content, tag)
	} else {
		res, err = s.db.Exec(
			`UPDATE documents SET content = $2, tag = $3 WHERE name = $1 AND tag = $4`,
			name, content, tag, expectedTag)
	}
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("checking write result: %w", err)
	}
	if affected == 0 {
		return "", fmt.Errorf("%s: %w", name, docstore.ErrTagMismatch)
	}
	return tag, nil
}
