package reconcile

import (
	"context"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/workgraph/depsync/pkg/errors"
	"github.com/workgraph/depsync/pkg/workspace"
)

// defaultConcurrency bounds the per-package fan-out. The workspace may
// hold hundreds of packages; unbounded parallelism would exhaust file
// descriptors and registry rate limits.
const defaultConcurrency = 20

// VersionSource answers latest-version lookups for external packages.
// *registry.Resolver satisfies it.
type VersionSource interface {
	Latest(ctx context.Context, name string) (version string, ok bool, err error)
}

// Options configures a reconciliation run.
type Options struct {
	// IgnorePatterns are passed to the static analyzer.
	IgnorePatterns []string
	// DevPatterns name dependencies that belong in the development
	// class; matching runtime dependencies are migrated.
	DevPatterns []string
	// UseRegex treats patterns as regular expressions instead of exact
	// names.
	UseRegex bool
	// ResolveDuplicates removes names present in both dependency
	// classes, deciding ownership with DevPatterns.
	ResolveDuplicates bool
	// Concurrency bounds the per-package fan-out. Defaults to 20.
	Concurrency int
	// Logger for warnings and progress. Defaults to a silent logger.
	Logger *log.Logger
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// Engine computes manifest corrections for workspace packages.
type Engine struct {
	run      *workspace.RunContext
	catalog  *workspace.Catalog
	analyzer Analyzer
	versions VersionSource
	opts     Options
	devPats  Patterns
}

// NewEngine creates an Engine. The catalog may be empty but not nil;
// versions may be nil when registry resolution is disabled.
func NewEngine(run *workspace.RunContext, catalog *workspace.Catalog, analyzer Analyzer, versions VersionSource, opts Options) *Engine {
	opts = opts.WithDefaults()
	return &Engine{
		run:      run,
		catalog:  catalog,
		analyzer: analyzer,
		versions: versions,
		opts:     opts,
		devPats:  NewPatterns(opts.DevPatterns, opts.UseRegex),
	}
}

// Reconcile corrects the named packages and returns the non-empty
// patches keyed by manifest path. Nothing is written; see [Engine.Apply].
// Unknown names are reported together before any work starts. A fatal
// condition in any package (missing or corrupt manifest) aborts the
// whole batch.
func (e *Engine) Reconcile(ctx context.Context, names []string) (map[string]*Patch, error) {
	packages, err := selectPackages(ctx, e.run.Inventory, names)
	if err != nil {
		return nil, err
	}

	// The drift scan runs to completion before any resolution so that
	// version warnings surface even for packages needing no changes.
	e.scanDrift(ctx)

	var (
		mu      sync.Mutex
		patches = make(map[string]*Patch)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for _, pkg := range packages {
		g.Go(func() error {
			patch, err := e.reconcileOne(gctx, pkg)
			if err != nil {
				return err
			}
			if patch.Empty() {
				return nil
			}
			mu.Lock()
			patches[patch.Path] = patch
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return patches, nil
}

// Apply writes every patched manifest. Callers invoke this only after
// Reconcile returned without error, so a run never partially writes.
func (e *Engine) Apply(patches map[string]*Patch) error {
	for path, p := range patches {
		if err := e.run.Manifests.Write(path, p.Manifest()); err != nil {
			return err
		}
	}
	return nil
}

// selectPackages maps names to inventory entries, sorted by name. An
// empty name list selects the whole workspace. Unknown names are
// reported together in one error.
func selectPackages(ctx context.Context, inv *workspace.Inventory, names []string) ([]workspace.Package, error) {
	all, err := inv.List(ctx)
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		packages := slices.Collect(maps.Values(all))
		slices.SortFunc(packages, func(a, b workspace.Package) int {
			return strings.Compare(a.Name, b.Name)
		})
		return packages, nil
	}

	var missing []string
	packages := make([]workspace.Package, 0, len(names))
	for _, n := range names {
		p, ok := all[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		packages = append(packages, p)
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, errors.New(errors.ErrCodeSeedNotFound, "not in workspace: %v", missing)
	}
	return packages, nil
}

// scanDrift aggregates runtime dependency versions across the whole
// workspace and warns about names declared with more than one distinct
// specifier. Advisory only: unreadable manifests are skipped here, the
// per-package pass will surface them if they matter.
func (e *Engine) scanDrift(ctx context.Context) {
	all, err := e.run.Inventory.List(ctx)
	if err != nil {
		return
	}

	versions := make(map[string]map[string]bool)
	for _, pkg := range all {
		m, err := e.run.Manifests.Read(pkg.Path)
		if err != nil {
			e.opts.Logger.Debug("drift scan skipping package", "package", pkg.Name, "err", err)
			continue
		}
		for name, spec := range m.Dependencies {
			if versions[name] == nil {
				versions[name] = make(map[string]bool)
			}
			versions[name][spec] = true
		}
	}

	for _, name := range slices.Sorted(maps.Keys(versions)) {
		specs := versions[name]
		if len(specs) > 1 {
			e.opts.Logger.Warn("inconsistent versions across workspace",
				"dependency", name, "versions", slices.Sorted(maps.Keys(specs)))
		}
	}
}

func (e *Engine) reconcileOne(ctx context.Context, pkg workspace.Package) (*Patch, error) {
	m, err := e.run.Manifests.Read(pkg.Path)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "package %s", pkg.Name)
	}

	report, err := e.analyzer.Analyze(ctx, pkg.Path, e.opts.IgnorePatterns)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "package %s", pkg.Name)
	}

	patch := newPatch(pkg, m)

	// Remove declared-but-unused, unless the implicit allowlist keeps it.
	for _, name := range slices.Sorted(slices.Values(report.Unused)) {
		if _, declared := m.Dependencies[name]; !declared {
			continue
		}
		if _, allowed := m.ImplicitDependencies[name]; allowed {
			continue
		}
		patch.remove(name)
	}

	// Add referenced-but-undeclared. A package importing its own name is
	// impossible to satisfy and is only worth a warning.
	for _, name := range slices.Sorted(slices.Values(report.Missing)) {
		if name == pkg.Name {
			e.opts.Logger.Warn("package references itself, skipping", "package", pkg.Name)
			continue
		}
		e.addMissing(ctx, patch, m, name)
	}

	// Implicit dependencies must also appear in the runtime class.
	for _, name := range slices.Sorted(maps.Keys(m.ImplicitDependencies)) {
		e.addMissing(ctx, patch, m, name)
	}

	// Migrate tooling dependencies into the development class.
	if len(e.devPats) > 0 {
		for _, name := range slices.Sorted(maps.Keys(m.Dependencies)) {
			if e.devPats.Matches(name) {
				patch.migrate(name)
			}
		}
	}

	// A name in both classes belongs to exactly one; the pattern set
	// decides which.
	if e.opts.ResolveDuplicates {
		for _, name := range slices.Sorted(maps.Keys(m.Dependencies)) {
			if _, dup := m.DevDependencies[name]; !dup {
				continue
			}
			if e.devPats.Matches(name) {
				delete(m.Dependencies, name)
			} else {
				delete(m.DevDependencies, name)
			}
			patch.Deduped = append(patch.Deduped, name)
		}
	}

	return patch, nil
}

// addMissing resolves a version for name and records it in the runtime
// class. Resolution priority: catalog entry, workspace protocol, then
// registry lookup. A name that resolves nowhere is skipped with a
// warning rather than failing the package.
func (e *Engine) addMissing(ctx context.Context, patch *Patch, m *workspace.Manifest, name string) {
	if _, declared := m.Dependencies[name]; declared {
		return
	}

	if v, ok := e.catalog.Get(name); ok {
		patch.add(name, v)
		return
	}

	internal, err := e.run.Inventory.Has(ctx, name)
	if err == nil && internal {
		patch.add(name, workspace.WorkspaceProtocol)
		return
	}

	if e.versions != nil {
		if v, ok, err := e.versions.Latest(ctx, name); ok {
			patch.add(name, "^"+v)
			return
		} else if err != nil {
			e.opts.Logger.Warn("registry lookup failed", "package", patch.Package, "dependency", name, "err", err)
			return
		}
	}

	e.opts.Logger.Warn("could not resolve version, skipping", "package", patch.Package, "dependency", name)
}
