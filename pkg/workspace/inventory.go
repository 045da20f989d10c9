package workspace

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"os/exec"
	"strings"
	"sync"

	"github.com/workgraph/depsync/pkg/errors"
)

// Package identifies one workspace package.
type Package struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Private bool   `json:"private,omitempty"`
}

// Inventory enumerates the packages of a workspace exactly once per
// process. The underlying listing command is expensive (it walks every
// package directory), so the result is cached for the lifetime of the
// Inventory and shared by every caller.
type Inventory struct {
	root string
	list func(ctx context.Context) ([]byte, error)

	once     sync.Once
	packages map[string]Package
	err      error
}

// NewInventory creates an inventory rooted at the workspace directory.
// Listing shells out to the package manager's recursive listing facility.
func NewInventory(root string) *Inventory {
	inv := &Inventory{root: root}
	inv.list = func(ctx context.Context) ([]byte, error) {
		cmd := exec.CommandContext(ctx, "pnpm", "ls", "-r", "--depth", "-1", "--json")
		cmd.Dir = root
		return cmd.Output()
	}
	return inv
}

// NewInventoryWithLister creates an inventory with a custom listing
// function. Used by tests and by callers embedding depsync behind a
// different package manager.
func NewInventoryWithLister(root string, list func(ctx context.Context) ([]byte, error)) *Inventory {
	return &Inventory{root: root, list: list}
}

// Root returns the workspace root directory.
func (inv *Inventory) Root() string { return inv.root }

// List returns the name→package mapping for the whole workspace. The
// first call runs the listing command; later calls return the cached
// mapping. A listing failure is fatal and is also cached: a workspace
// that cannot be enumerated cannot be partially processed.
func (inv *Inventory) List(ctx context.Context) (map[string]Package, error) {
	inv.once.Do(func() {
		inv.packages, inv.err = inv.load(ctx)
	})
	return inv.packages, inv.err
}

// Lookup returns the package with the given name, if present.
func (inv *Inventory) Lookup(ctx context.Context, name string) (Package, bool, error) {
	packages, err := inv.List(ctx)
	if err != nil {
		return Package{}, false, err
	}
	p, ok := packages[name]
	return p, ok, nil
}

// Has reports whether name is a known workspace package.
func (inv *Inventory) Has(ctx context.Context, name string) (bool, error) {
	_, ok, err := inv.Lookup(ctx, name)
	return ok, err
}

func (inv *Inventory) load(ctx context.Context) (map[string]Package, error) {
	out, err := inv.list(ctx)
	if err != nil {
		msg := err.Error()
		var exitErr *exec.ExitError
		if goerrors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			msg = strings.TrimSpace(string(exitErr.Stderr))
		}
		return nil, errors.Wrap(errors.ErrCodeListingFailed, err, "workspace listing: %s", msg)
	}

	var entries []Package
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, errors.Wrap(errors.ErrCodeListingFailed, err, "workspace listing: malformed output")
	}

	packages := make(map[string]Package, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.Path == "" {
			return nil, errors.New(errors.ErrCodeListingFailed, "workspace listing: entry missing name or path")
		}
		packages[e.Name] = e
	}
	return packages, nil
}
