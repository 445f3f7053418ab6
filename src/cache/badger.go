package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
	"github.com/zvdy/clustermeta/src/config"
)

// BadgerStore persists published values in an embedded badger database
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Logger
}

// NewBadgerStore opens the badger database described by cfg
func NewBadgerStore(cfg config.BadgerConfig, log *logrus.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(log.WithField("component", "badger"))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	log.Infof("Opened badger cache store (dir=%q, in_memory=%t)", cfg.Dir, cfg.InMemory)
	return &BadgerStore{db: db, log: log}, nil
}

// Set stores a key-value pair
func (s *BadgerStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// SetMany stores all pairs in a single transaction
func (s *BadgerStore) SetMany(_ context.Context, pairs map[string]string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for k, v := range pairs {
			if err := txn.Set([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger write failed: %w", err)
	}
	return nil
}

// Get retrieves a value by key
func (s *BadgerStore) Get(_ context.Context, key string) (string, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("badger read failed: %w", err)
	}
	return string(value), true, nil
}

// Close closes the underlying database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
