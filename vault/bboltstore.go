package vault

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketCredentials = []byte("credentials")

// BBoltCredentialStore persists credentials in a BBolt database, keyed by
// username.
type BBoltCredentialStore struct {
	db *bbolt.DB
}

var _ CredentialStore = (*BBoltCredentialStore)(nil)

// NewBBoltCredentialStore returns a CredentialStore backed by the given
// BBolt database.
func NewBBoltCredentialStore(db *bbolt.DB) *BBoltCredentialStore {
	return &BBoltCredentialStore{db: db}
}

func (s *BBoltCredentialStore) Get(username string) (*StoredCredential, error) {
	var cred StoredCredential
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		if b == nil {
			return fmt.Errorf("%s: %w", username, ErrNoCredential)
		}
		data := b.Get([]byte(username))
		if data == nil {
			return fmt.Errorf("%s: %w", username, ErrNoCredential)
		}
		return json.Unmarshal(data, &cred)
	})
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *BBoltCredentialStore) Put(cred StoredCredential) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketCredentials)
		if err != nil {
			return err
		}
		data, err := json.Marshal(cred)
		if err != nil {
			return err
		}
		return b.Put([]byte(cred.Username), data)
	})
}

func (s *BBoltCredentialStore) Delete(username string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(username))
	})
}
