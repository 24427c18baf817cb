// Package favorites persists each user's starred upload ids in an embedded
// BadgerDB store, one JSON-encoded set per user under favorites_<userID>.
// The ledger is deployment-local: it is not mirrored to the main database
// and is lost if the store directory is wiped. Membership is not tied to
// upload existence; stale ids are filtered lazily at read time.
package favorites

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
)

const keyPrefix = "favorites_"

type Ledger struct {
	db *badger.DB
}

func Open(path string) (*Ledger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed opening favorites store: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func userKey(userID uuid.UUID) []byte {
	return []byte(keyPrefix + userID.String())
}

// List returns the user's favorite upload ids in insertion order. A missing
// key is an empty set, not an error.
func (l *Ledger) List(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(userID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ids)
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Toggle flips membership of uploadID in the user's set, persists the whole
// set immediately and returns the new membership state.
func (l *Ledger) Toggle(userID, uploadID uuid.UUID) (bool, error) {
	var nowFavorited bool
	err := l.db.Update(func(txn *badger.Txn) error {
		ids, err := readSet(txn, userKey(userID))
		if err != nil {
			return err
		}

		idx := -1
		for i, id := range ids {
			if id == uploadID {
				idx = i
				break
			}
		}

		if idx == -1 {
			ids = append(ids, uploadID)
			nowFavorited = true
		} else {
			ids = append(ids[:idx], ids[idx+1:]...)
			nowFavorited = false
		}

		return writeSet(txn, userKey(userID), ids)
	})
	return nowFavorited, err
}

// IsFavorite is a pure lookup.
func (l *Ledger) IsFavorite(userID, uploadID uuid.UUID) (bool, error) {
	ids, err := l.List(userID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == uploadID {
			return true, nil
		}
	}
	return false, nil
}

// Replace overwrites the user's set wholesale. Used by the read path to
// prune ids whose uploads no longer exist.
func (l *Ledger) Replace(userID uuid.UUID, ids []uuid.UUID) error {
	return l.db.Update(func(txn *badger.Txn) error {
		return writeSet(txn, userKey(userID), ids)
	})
}

// RemoveUpload strips uploadID from every user's set. Called after an upload
// is deleted so the ledger does not keep handing out dead ids.
func (l *Ledger) RemoveUpload(uploadID uuid.UUID) error {
	return l.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(keyPrefix)})
		defer it.Close()

		type patch struct {
			key []byte
			ids []uuid.UUID
		}
		var patches []patch

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var ids []uuid.UUID
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &ids)
			}); err != nil {
				return err
			}

			kept := ids[:0]
			removed := false
			for _, id := range ids {
				if id == uploadID {
					removed = true
					continue
				}
				kept = append(kept, id)
			}
			if removed {
				patches = append(patches, patch{key: item.KeyCopy(nil), ids: kept})
			}
		}

		for _, p := range patches {
			if err := writeSet(txn, p.key, p.ids); err != nil {
				return err
			}
		}
		return nil
	})
}

func readSet(txn *badger.Txn, key []byte) ([]uuid.UUID, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &ids)
	}); err != nil {
		return nil, err
	}
	return ids, nil
}

func writeSet(txn *badger.Txn, key []byte, ids []uuid.UUID) error {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}
