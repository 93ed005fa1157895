// Package tokenstore holds short-lived bearer tokens (temp login tokens and
// setup tokens) behind a bounded, expiring key/value store.
package tokenstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidConfig = errors.New("tokenstore: invalid config")
	ErrUnavailable   = errors.New("tokenstore: backend unavailable")
)

// Store is a bounded key/value cache with a fixed per-entry TTL. When full,
// the least recently used entry is evicted. Expired entries read as absent.
type Store[V any] interface {
	// Put stores v under key, replacing any existing entry and restarting its TTL.
	Put(ctx context.Context, key string, v V) error

	// Get returns the live entry for key. An expired entry is purged and
	// reported absent.
	Get(ctx context.Context, key string) (V, bool, error)

	// Take atomically returns and removes the live entry for key. Of any
	// number of concurrent Takes on the same key at most one sees ok=true.
	Take(ctx context.Context, key string) (V, bool, error)

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// List returns a snapshot of live entries, for diagnostics only.
	List(ctx context.Context) ([]Entry[V], error)

	Stats(ctx context.Context) (Stats, error)

	// SweepExpired drops expired entries and reports how many went.
	SweepExpired(ctx context.Context) (int, error)

	// TTL is the lifetime given to every entry on Put.
	TTL() time.Duration
}

// Entry is one live entry as List reports it. Key is the fingerprint of the
// store key, never the bearer token itself.
type Entry[V any] struct {
	Key   string
	Value V
}

type Stats struct {
	Name      string
	Size      int
	Capacity  int
	Evictions uint64 // capacity evictions since start, this process only
}

type Config struct {
	Name     string
	Capacity int
	TTL      time.Duration
}

func (c Config) validate() error {
	if c.Name == "" || c.Capacity <= 0 || c.TTL <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Defaults for the two stores the 2FA flows use.
var (
	TempLoginConfig = Config{Name: "temp_login", Capacity: 1000, TTL: 5 * time.Minute}
	SetupConfig     = Config{Name: "setup", Capacity: 500, TTL: 15 * time.Minute}
)

type options struct {
	now func() time.Time
}

type Option func(*options)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
