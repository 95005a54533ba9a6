// Package blockstore persists applied blocks in an embedded ordered KV
// store, following the bucket-per-index pattern used for block storage in
// the pack's rubin-protocol client (node/store/db.go), adapted from a
// UTXO chain onto this node's account-based, height-indexed blocks.
package blockstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hazechain/haze/internal/chaintypes"
)

var (
	bucketBlocksByHash = []byte("blocks_by_hash")
	bucketHeightIndex  = []byte("height_index")
)

type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt file at path and ensures the
// buckets this store needs exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("blockstore: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketBlocksByHash, bucketHeightIndex} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put persists block, indexed by both its hash and its height. A later
// Put at the same height overwrites the height index, matching the
// "last write wins" semantics a reorg-free DAG chain needs for its
// canonical height pointer.
func (s *Store) Put(block *chaintypes.Block) error {
	raw, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("blockstore: marshal block: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		hb := tx.Bucket(bucketBlocksByHash)
		if err := hb.Put(block.Header.Hash[:], raw); err != nil {
			return err
		}
		ib := tx.Bucket(bucketHeightIndex)
		return ib.Put(heightKey(block.Header.Height), block.Header.Hash[:])
	})
}

// Get returns the block stored under hash, or ok=false if absent.
func (s *Store) Get(hash chaintypes.Hash) (*chaintypes.Block, bool, error) {
	var block *chaintypes.Block
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBlocksByHash).Get(hash[:])
		if raw == nil {
			return nil
		}
		var b chaintypes.Block
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("blockstore: unmarshal block: %w", err)
		}
		block = &b
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return block, block != nil, nil
}

// GetByHeight returns the block indexed at height, or ok=false if absent.
func (s *Store) GetByHeight(height uint64) (*chaintypes.Block, bool, error) {
	var hash chaintypes.Hash
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketHeightIndex).Get(heightKey(height))
		if raw == nil {
			return nil
		}
		copy(hash[:], raw)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return s.Get(hash)
}

func heightKey(height uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, height)
	return b
}
