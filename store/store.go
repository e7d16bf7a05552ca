// Package store implements the optimistic-concurrency read-modify-write
// cycle over a remote document transport. A document is a named blob of
// opaque text plus a version tag assigned by the remote on every write;
// writes are conditioned on the tag most recently observed and conflicts
// are resolved by re-fetching the tag and retrying, bounded at three
// attempts.
package store

import (
	"context"
	"errors"
	"fmt"
)

// maxWriteAttempts bounds the conflict-retry loop. Each attempt is a
// full tag-fetch plus conditioned commit.
const maxWriteAttempts = 3

// Transport is the remote side of the store: fetch current content and
// version tag, and commit new content conditioned on a tag. An empty
// tag on Commit means "create".
//
// Implementations map their wire-level failures onto the package
// sentinels: ErrNotFound for an absent document, ErrConflict for a
// stale-tag rejection, ErrAuth/ErrPermission/ErrRateLimited/
// ErrConnectivity for the rest of the taxonomy.
type Transport interface {
	Fetch(ctx context.Context, name string) (content, tag string, err error)
	Commit(ctx context.Context, name, content, tag string) (newTag string, err error)
}

// Store wraps a Transport with the bounded conflict-retry protocol.
type Store struct {
	transport Transport
}

// New returns a Store over the given transport.
func New(transport Transport) *Store {
	return &Store{transport: transport}
}

// Read fetches a document's current content and version tag. An absent
// document surfaces as ErrNotFound; callers that accept defaults recover
// it locally rather than treating it as a failure.
func (s *Store) Read(ctx context.Context, name string) (string, string, error) {
	return s.transport.Fetch(ctx, name)
}

// Write commits content to the named document. Each attempt re-fetches
// the current version tag immediately before the conditioned commit, so
// the tag used is never stale state cached from an earlier operation.
// Only conflicts are retried; every other failure propagates at once.
// After maxWriteAttempts conflicts the write fails with ErrConflict.
func (s *Store) Write(ctx context.Context, name, content string) (string, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		_, tag, err := s.transport.Fetch(ctx, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				tag = "" // absent document: create
			} else {
				return "", fmt.Errorf("fetching version tag: %w", err)
			}
		}

		newTag, err := s.transport.Commit(ctx, name, content, tag)
		if err == nil {
			return newTag, nil
		}
		if !errors.Is(err, ErrConflict) {
			return "", fmt.Errorf("committing %s: %w", name, err)
		}
	}
	return "", fmt.Errorf("unable to save %s after %d attempts due to conflicting concurrent changes, refresh and retry: %w",
		name, maxWriteAttempts, ErrConflict)
}
