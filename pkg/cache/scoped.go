package cache

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation.
// This matters when several workspaces share one Redis or MongoDB cache:
// each workspace gets its own key namespace.
//
// Example usage:
//
//	// Workspace-specific keys for a shared CI cache
//	wsKeyer := NewScopedKeyer(NewDefaultKeyer(), "ws:frontend:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// GraphKey generates a prefixed key for dependency graph caching.
func (k *ScopedKeyer) GraphKey(root string, opts GraphKeyOpts) string {
	return k.prefix + k.inner.GraphKey(root, opts)
}

// VersionKey generates a prefixed key for registry version lookups.
func (k *ScopedKeyer) VersionKey(name string) string {
	return k.prefix + k.inner.VersionKey(name)
}
