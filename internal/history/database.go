package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/abeknur/ofd-check/internal/receipt"
)

const bucketName = "checks"

var (
	// ErrNotFound is returned when no check is stored under a fiscal sign.
	ErrNotFound = errors.New("check not found")
	// ErrDuplicate is returned when a check with the same fiscal sign is
	// already stored. The fiscal sign is the sole identity key.
	ErrDuplicate = errors.New("check already saved")
)

// StoredCheck is one stored check.
type StoredCheck struct {
	Receipt receipt.Receipt `json:"receipt"`
	SavedAt time.Time       `json:"saved_at"`
}

// DB defines the interface for check storage operations
type DB interface {
	// SaveCheck stores an entry keyed by its fiscal sign. Returns
	// ErrDuplicate when the key is taken.
	SaveCheck(entry *StoredCheck) error

	// GetCheck retrieves a check by fiscal sign
	GetCheck(fiscalSign string) (*StoredCheck, error)

	// ListChecks returns all stored checks
	ListChecks() ([]*StoredCheck, error)

	// DeleteCheck removes a check by fiscal sign
	DeleteCheck(fiscalSign string) error

	// Close closes the database
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveCheck stores an entry keyed by its fiscal sign.
func (b *BoltDB) SaveCheck(entry *StoredCheck) error {
	if entry.Receipt.FiscalSign == "" {
		return fmt.Errorf("entry has no fiscal sign")
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		key := []byte(entry.Receipt.FiscalSign)
		if bucket.Get(key) != nil {
			return ErrDuplicate
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling check: %w", err)
		}
		return bucket.Put(key, data)
	})
}

// GetCheck retrieves a check by fiscal sign.
func (b *BoltDB) GetCheck(fiscalSign string) (*StoredCheck, error) {
	var entry *StoredCheck
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(fiscalSign))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListChecks returns all stored checks.
func (b *BoltDB) ListChecks() ([]*StoredCheck, error) {
	entries := make([]*StoredCheck, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var entry StoredCheck
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshaling check: %w", err)
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteCheck removes a check by fiscal sign.
func (b *BoltDB) DeleteCheck(fiscalSign string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(fiscalSign)) == nil {
			return ErrNotFound
		}
		return bucket.Delete([]byte(fiscalSign))
	})
}

// Close closes the database.
func (b *BoltDB) Close() error {
	return b.db.Close()
}
