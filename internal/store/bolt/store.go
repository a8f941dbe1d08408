// Package bolt persists the current snapshot in a bbolt database so it
// survives restarts.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/lunchbot/menuwatch/internal/menu"
)

const (
	bucketName = "snapshots"
	latestKey  = "latest"
)

// Store implements menu.SnapshotStore on top of bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the database file and ensures the bucket exists.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Put replaces the current snapshot.
func (s *Store) Put(_ context.Context, snap menu.Snapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshaling snapshot: %w", err)
		}
		return bucket.Put([]byte(latestKey), data)
	})
}

// Latest returns the current snapshot or menu.ErrNoSnapshot before the
// first Put.
func (s *Store) Latest(_ context.Context) (menu.Snapshot, error) {
	var snap menu.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(latestKey))
		if data == nil {
			return menu.ErrNoSnapshot
		}
		return json.Unmarshal(data, &snap)
	})
	if err != nil {
		return menu.Snapshot{}, err
	}
	return snap, nil
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
