// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package autotune

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// tuningBucket is the single top-level bbolt bucket this store uses;
// per-device isolation happens at the key level (deviceSig is prefixed
// onto every key) rather than one bucket per device, so Clear(deviceSig)
// can be a prefix scan without bbolt's lack of nested-bucket deletion
// footguns.
var tuningBucket = []byte("kernel_tune")

// BoltStore persists Results in a local bbolt file — an embedded,
// file-backed, single-writer store is the origin-scoped store for a
// desktop/server host the same way OPFS/IndexedDB is for a
// browser-resident one.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if absent) a bbolt database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("autotune: open bolt store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tuningBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("autotune: init bolt bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *BoltStore) Close() error { return s.db.Close() }

func boltKey(deviceSig string, key Key) []byte {
	return []byte(deviceSig + "::kernel_tune_" + deviceSig + "|" + key.storeKey())
}

// Get implements Store.
func (s *BoltStore) Get(deviceSig string, key Key) (Result, bool, error) {
	var result Result
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(tuningBucket)
		if b == nil {
			return nil
		}
		raw := b.Get(boltKey(deviceSig, key))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &result)
	})
	if err != nil {
		return Result{}, false, err
	}
	return result, found, nil
}

// Put implements Store.
func (s *BoltStore) Put(deviceSig string, key Key, result Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("autotune: marshal result: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(tuningBucket)
		return b.Put(boltKey(deviceSig, key), raw)
	})
}

// Clear removes every entry persisted for deviceSig.
func (s *BoltStore) Clear(deviceSig string) error {
	prefix := []byte(deviceSig + "::")
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(tuningBucket)
		c := b.Cursor()
		var toDelete [][]byte
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// MemStore is an in-memory Store, used by tests and by hosts that do not
// want persistence across process restarts.
type MemStore struct {
	entries map[string]Result
}

// NewMemStore constructs an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]Result)}
}

func (s *MemStore) memKey(deviceSig string, key Key) string {
	return deviceSig + "|" + key.storeKey()
}

// Get implements Store.
func (s *MemStore) Get(deviceSig string, key Key) (Result, bool, error) {
	r, ok := s.entries[s.memKey(deviceSig, key)]
	return r, ok, nil
}

// Put implements Store.
func (s *MemStore) Put(deviceSig string, key Key, result Result) error {
	s.entries[s.memKey(deviceSig, key)] = result
	return nil
}

// Clear removes every entry for deviceSig.
func (s *MemStore) Clear(deviceSig string) error {
	prefix := deviceSig + "|"
	for k := range s.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(s.entries, k)
		}
	}
	return nil
}
