package reconcile

import (
	"context"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/workgraph/depsync/pkg/errors"
	"github.com/workgraph/depsync/pkg/workspace"
)

// CatalogChange records the catalog-normalization outcome for one
// package: which concrete specifiers were folded into the shared catalog
// and which names clashed with an existing catalog version.
type CatalogChange struct {
	Package   string
	Path      string
	Rewritten map[string]string // name -> previous concrete specifier
	Conflicts []string

	manifest *workspace.Manifest
}

// Changed reports whether the package's manifest was rewritten.
func (c *CatalogChange) Changed() bool { return len(c.Rewritten) > 0 }

// Conflict reports whether any dependency clashed with the catalog.
func (c *CatalogChange) Conflict() bool { return len(c.Conflicts) > 0 }

// Manifest returns the in-memory manifest the rewrites were applied to.
func (c *CatalogChange) Manifest() *workspace.Manifest { return c.manifest }

// Normalizer folds concrete per-package versions into the shared catalog
// and rewrites manifests to the catalog protocol. Normalization is
// single-threaded: the catalog is one shared mutable mapping and the
// whole pass either commits everything or writes nothing.
type Normalizer struct {
	run     *workspace.RunContext
	catalog *workspace.Catalog
	filter  Patterns
	logger  *log.Logger
}

// NewNormalizer creates a Normalizer. The filter restricts which
// dependency names are catalogized; an empty filter admits every name.
func NewNormalizer(run *workspace.RunContext, catalog *workspace.Catalog, filter Patterns, logger *log.Logger) *Normalizer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Normalizer{run: run, catalog: catalog, filter: filter, logger: logger}
}

// Catalogize processes one package. For every dependency with a concrete
// specifier (neither workspace nor catalog protocol), the catalog either
// adopts the version (when the name is new), confirms it (when equal),
// or flags a conflict (when a different version is already recorded).
// Conflicting names are left untouched in both catalog and manifest.
func (n *Normalizer) Catalogize(ctx context.Context, pkg workspace.Package) (*CatalogChange, error) {
	m, err := n.run.Manifests.Read(pkg.Path)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "package %s", pkg.Name)
	}

	change := &CatalogChange{
		Package:   pkg.Name,
		Path:      pkg.Path,
		Rewritten: make(map[string]string),
		manifest:  m,
	}

	for _, class := range []map[string]string{m.Dependencies, m.DevDependencies, m.ImplicitDependencies} {
		for _, name := range slices.Sorted(maps.Keys(class)) {
			spec := class[name]
			if workspace.IsWorkspaceProtocol(spec) || workspace.IsCatalogProtocol(spec) {
				continue
			}
			if len(n.filter) > 0 && !n.filter.Matches(name) {
				continue
			}

			current, exists := n.catalog.Get(name)
			switch {
			case !exists:
				n.catalog.Set(name, spec)
			case current != spec:
				change.Conflicts = append(change.Conflicts, name)
				n.logger.Warn("catalog version conflict",
					"package", pkg.Name, "dependency", name,
					"catalog", current, "declared", spec)
				continue
			}

			class[name] = workspace.CatalogProtocol
			change.Rewritten[name] = spec
		}
	}
	return change, nil
}

// CatalogizeAll normalizes the named packages (all workspace packages
// when names is empty). Any conflict anywhere aborts the pass before a
// single write: manifests and catalog stay exactly as they were on disk.
// Otherwise every rewritten manifest and the sorted catalog are
// persisted.
func (n *Normalizer) CatalogizeAll(ctx context.Context, names []string) ([]*CatalogChange, error) {
	packages, err := selectPackages(ctx, n.run.Inventory, names)
	if err != nil {
		return nil, err
	}

	var (
		changes   []*CatalogChange
		conflicts []string
	)
	for _, pkg := range packages {
		change, err := n.Catalogize(ctx, pkg)
		if err != nil {
			return nil, err
		}
		if change.Conflict() {
			conflicts = append(conflicts, change.Package+": "+strings.Join(change.Conflicts, ", "))
		}
		if change.Changed() {
			changes = append(changes, change)
		}
	}

	if len(conflicts) > 0 {
		return nil, errors.New(errors.ErrCodeCatalogConflict,
			"catalog conflicts, nothing written: %s", strings.Join(conflicts, "; "))
	}

	for _, change := range changes {
		if err := n.run.Manifests.Write(change.Path, change.manifest); err != nil {
			return nil, err
		}
	}
	if len(changes) > 0 {
		if err := n.catalog.Save(); err != nil {
			return nil, err
		}
	}
	return changes, nil
}
