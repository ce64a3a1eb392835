package database

import (
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var resourcesBucket = []byte("resources")

// BoltStore backs the participant's resource table with a durable Bolt
// bucket. Writes are committed to disk before Set/Delete return, so
// visibility is synchronous like MemoryStore.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resourcesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create resources bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(key string) (string, bool, error) {
	var value string
	var exists bool

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(resourcesBucket).Get([]byte(key))
		if v != nil {
			value = string(v)
			exists = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, exists, nil
}

func (s *BoltStore) Set(key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(resourcesBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *BoltStore) Delete(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(resourcesBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *BoltStore) Exists(key string) (bool, error) {
	_, ok, err := s.Get(key)
	return ok, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
