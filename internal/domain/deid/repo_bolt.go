package deid

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/astrahealth/deid/internal/platform/seal"
)

var mappingsBucket = []byte("mappings")

// BoltRepository stores mapping sets in a local bbolt file for single-node
// deployments that need durability without a database server. Each record
// occupies one key; the value carries a one-byte sealed flag followed by
// the encoded entries.
type BoltRepository struct {
	db     *bolt.DB
	sealer *seal.Sealer
}

// NewBoltRepository opens (or creates) the bbolt file at path. sealer may
// be nil, in which case entries are stored unsealed.
func NewBoltRepository(path string, sealer *seal.Sealer) (*BoltRepository, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open mapping store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(mappingsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init mapping store: %w", err)
	}
	return &BoltRepository{db: db, sealer: sealer}, nil
}

func (r *BoltRepository) Close() error { return r.db.Close() }

func (r *BoltRepository) Put(_ context.Context, id uuid.UUID, entries []MappingEntry) error {
	blob, sealed, err := encodeEntries(entries, r.sealer)
	if err != nil {
		return err
	}
	val := make([]byte, 0, len(blob)+1)
	if sealed {
		val = append(val, 1)
	} else {
		val = append(val, 0)
	}
	val = append(val, blob...)

	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(mappingsBucket)
		key := id[:]
		if b.Get(key) != nil {
			return ErrDuplicateID
		}
		return b.Put(key, val)
	})
}

func (r *BoltRepository) Get(_ context.Context, id uuid.UUID) ([]MappingEntry, error) {
	var entries []MappingEntry
	err := r.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(mappingsBucket).Get(id[:])
		if val == nil {
			return ErrNotFound
		}
		var err error
		entries, err = decodeEntries(val[1:], val[0] == 1, r.sealer)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *BoltRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(mappingsBucket)
		key := id[:]
		if b.Get(key) == nil {
			return ErrNotFound
		}
		return b.Delete(key)
	})
}
