package workspace

import "github.com/google/uuid"

// RunContext threads the per-run shared state through the components that
// need it: the cached workspace inventory and the manifest store. Every
// component that reads workspace state receives it explicitly rather
// than going through package-level singletons.
//
// The ID tags log lines and cache scopes so that overlapping runs (e.g.
// two CI jobs against one shared Redis cache) are distinguishable.
type RunContext struct {
	ID        string
	Inventory *Inventory
	Manifests *Store
}

// NewRunContext creates the shared state for one run against the
// workspace rooted at root.
func NewRunContext(root string) *RunContext {
	return &RunContext{
		ID:        uuid.NewString(),
		Inventory: NewInventory(root),
		Manifests: NewStore(),
	}
}

// Root returns the workspace root directory.
func (rc *RunContext) Root() string { return rc.Inventory.Root() }
