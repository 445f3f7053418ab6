// Package cache holds the key-value stores refresh results are published to.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zvdy/clustermeta/src/config"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("cache store is closed")

// Store is a string key-value store shared with downstream readers.
// Implementations must be safe for concurrent use.
type Store interface {
	// Set writes a single key
	Set(ctx context.Context, key, value string) error
	// SetMany writes all pairs or none of them
	SetMany(ctx context.Context, pairs map[string]string) error
	// Get reads a key; the bool reports whether it exists
	Get(ctx context.Context, key string) (string, bool, error)
	Close() error
}

// New opens the store selected by cfg.Backend
func New(ctx context.Context, cfg config.CacheConfig, log *logrus.Logger) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "badger":
		return NewBadgerStore(cfg.Badger, log)
	case "postgres":
		return NewPostgresStore(ctx, cfg.Postgres, log)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}
