// Package store provides the single transactional embedded key-value
// environment shared by the archive, state and mempool components. All
// cross-component operations that must be atomic acquire one write
// transaction against this environment and commit once.
package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Store wraps a single bbolt database: one writer at a time, many concurrent
// snapshot-consistent readers.
type Store struct {
	db     *bolt.DB
	logger *zap.Logger
}

// Open creates or opens the environment at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", path, err)
	}
	logger.Info("store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is a plain alias for bolt.Tx; View and Update hand callers a real bbolt
// transaction.
type Tx = bolt.Tx

// View runs fn inside a read-only, snapshot-consistent transaction.
func (s *Store) View(fn func(tx *Tx) error) error {
	return s.db.View(fn)
}

// Update runs fn inside the single read-write transaction. Callers must
// never block on network I/O or another writer's lock inside fn.
func (s *Store) Update(fn func(tx *Tx) error) error {
	return s.db.Update(fn)
}

// EnsureBuckets creates every named bucket that does not already exist, run
// once by each component's constructor.
func EnsureBuckets(db *bolt.DB, names ...string) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range names {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// DB exposes the underlying bbolt handle for components that need to declare
// their own buckets at construction time.
func (s *Store) DB() *bolt.DB {
	return s.db
}
