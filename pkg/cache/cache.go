// Package cache provides pluggable byte caches for depsync.
//
// Three backends are available:
//
//   - [FileCache]: per-user cache under ~/.cache/depsync/ (CLI default)
//   - [RedisCache]: shared cache for teams running depsync in CI
//   - [MongoCache]: shared cache backed by a MongoDB collection
//   - [NullCache]: no-op backend for --no-cache runs and tests
//
// Keys are produced by a [Keyer] so that the layout of the key space is
// defined in one place and can be scoped per tenant with [ScopedKeyer].
package cache

import (
	"context"
	"time"
)

// Cache is the storage interface shared by all backends.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves the value for key. The second return value reports
	// whether the key was found; an expired or missing entry is a miss,
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key with the given TTL. A TTL of 0 means
	// the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes the entry for key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// GraphKeyOpts captures the options that affect a built dependency graph,
// so that graphs built with different options cache under different keys.
type GraphKeyOpts struct {
	IncludeDev bool     // development dependencies followed as edges
	Seeds      []string // seed package names the build started from
}

// Keyer generates cache keys for the different kinds of data depsync caches.
type Keyer interface {
	// GraphKey generates a key for a built dependency graph snapshot.
	// The root is the workspace root path (or a hash of it).
	GraphKey(root string, opts GraphKeyOpts) string

	// VersionKey generates a key for a resolved registry version.
	VersionKey(name string) string
}

// DefaultKeyer is the standard key layout.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer { return &DefaultKeyer{} }

// GraphKey generates a key for dependency graph caching.
func (k *DefaultKeyer) GraphKey(root string, opts GraphKeyOpts) string {
	return hashKey("graph", root, opts.IncludeDev, opts.Seeds)
}

// VersionKey generates a key for registry version lookups.
func (k *DefaultKeyer) VersionKey(name string) string {
	return hashKey("version", name)
}
