// Package cache implements the multi-tier result cache: a fast in-process
// LRU tier backed by an optional shared tier (SQLite or Postgres) behind one
// Store contract, with dependency-based group invalidation.
package cache

import (
	"context"
	"encoding/json"
	"time"

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

// Entry is one cached value with its lifetime and invalidation edges.
type Entry struct {
	// Data is the JSON-encoded payload.
	Data json.RawMessage `json:"data"`

	// CreatedAt is when the entry was written.
	CreatedAt time.Time `json:"created_at"`

	// TTL bounds the entry lifetime. Zero means no expiry.
	TTL time.Duration `json:"ttl"`

	// Dependencies are the group-invalidation tags, e.g. "provider:serper".
	Dependencies []string `json:"dependencies,omitempty"`
}

// Expired reports whether the entry has outlived its TTL at time now.
func (e *Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) >= e.TTL
}

// Store is the contract every cache tier implements.
type Store interface {
	// Get returns the entry for key. The second return is false on miss.
	Get(ctx context.Context, key string) (*Entry, bool, error)

	// Set writes the entry for key, recording its dependency edges.
	Set(ctx context.Context, key string, entry *Entry) error

	// Delete removes the entry for key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// InvalidateDependency removes every entry whose dependency set contains
	// dep and returns how many were removed.
	InvalidateDependency(ctx context.Context, dep string) (int, error)

	// Len returns the number of live entries.
	Len(ctx context.Context) (int, error)

	// Close releases the tier's resources.
	Close() error
}

// GetAs fetches key from s and unmarshals its payload into T.
func GetAs[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var zero T

	entry, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}

	var value T
	if err := json.Unmarshal(entry.Data, &value); err != nil {
		return zero, false, eserrors.New(eserrors.ErrCodeCacheCorrupt,
			"cache entry is not valid JSON", err).WithDetail("key", key)
	}
	return value, true, nil
}

// SetAs marshals value and writes it to s under key.
func SetAs(ctx context.Context, s Store, key string, value any, ttl time.Duration, deps []string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, &Entry{
		Data:         data,
		CreatedAt:    time.Now(),
		TTL:          ttl,
		Dependencies: deps,
	})
}
