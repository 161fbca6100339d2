// Package sessionstore is the TTL-bound key-value store backing device
// sessions, plus a membership index so a sweep can find active sessions
// without scanning the keyspace.
package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akontos/sirena/internal/config"
)

// ErrNotFound is returned by Get for a missing or expired key.
var ErrNotFound = errors.New("sessionstore: key not found")

// Store provides single-key atomicity only. Multi-key sequences (write
// session, then index) are not transactional; the deployment is
// single-process and the sweep reconciles any torn state.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	AddToIndex(ctx context.Context, index, member string) error
	RemoveFromIndex(ctx context.Context, index, member string) error
	IndexMembers(ctx context.Context, index string) ([]string, error)

	Close() error
}

// New selects a backend from config: "redis" (default) or "memory".
func New(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "redis":
		return NewRedis(cfg.RedisURL, cfg.KeyPrefix)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
