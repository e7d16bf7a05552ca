package vault

import (
	"sync"
	"time"
)

// StoredCredential is the locally persisted record for one enrolled user.
// EncryptedSecret is the user's secret sealed under a key derived from the
// credential ID; it is never stored in recoverable plaintext.
type StoredCredential struct {
	CredentialID    string    `json:"credentialId"`
	Username        string    `json:"username"`
	CreatedAt       time.Time `json:"createdAt"`
	EncryptedSecret []byte    `json:"encryptedSecret,omitempty"`
}

// CredentialStore persists one StoredCredential per username.
type CredentialStore interface {
	Get(username string) (*StoredCredential, error)
	Put(cred StoredCredential) error
	Delete(username string) error
}

// MemoryCredentialStore is a thread-safe in-memory CredentialStore.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]StoredCredential
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)

// NewMemoryCredentialStore creates an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{creds: make(map[string]StoredCredential)}
}

func (s *MemoryCredentialStore) Get(username string) (*StoredCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[username]
	if !ok {
		return nil, ErrNoCredential
	}
	copied := cred
	return &copied, nil
}

func (s *MemoryCredentialStore) Put(cred StoredCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.Username] = cred
	return nil
}

func (s *MemoryCredentialStore) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, username)
	return nil
}
