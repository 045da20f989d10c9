package reconcile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/workgraph/depsync/pkg/errors"
	"github.com/workgraph/depsync/pkg/workspace"
)

// fixture writes a workspace of package.json files under a temp root and
// returns a RunContext whose inventory lists them without shelling out.
func fixture(t *testing.T, manifests map[string]string) *workspace.RunContext {
	t.Helper()
	root := t.TempDir()

	var listing []map[string]string
	for name, body := range manifests {
		dir := filepath.Join(root, strings.ReplaceAll(name, "/", "__"))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		listing = append(listing, map[string]string{"name": name, "path": dir})
	}

	out, err := json.Marshal(listing)
	if err != nil {
		t.Fatal(err)
	}
	return &workspace.RunContext{
		ID: "test",
		Inventory: workspace.NewInventoryWithLister(root, func(context.Context) ([]byte, error) {
			return out, nil
		}),
		Manifests: workspace.NewStore(),
	}
}

// fakeAnalyzer returns canned reports keyed by the package directory's
// base name.
type fakeAnalyzer struct {
	reports map[string]*Report
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, root string, ignores []string) (*Report, error) {
	if r, ok := f.reports[filepath.Base(root)]; ok {
		return r, nil
	}
	return &Report{}, nil
}

// fakeVersions resolves versions from a fixed map.
type fakeVersions struct {
	versions map[string]string
}

func (f *fakeVersions) Latest(ctx context.Context, name string) (string, bool, error) {
	if v, ok := f.versions[name]; ok {
		return v, true, nil
	}
	return "", false, errors.New(errors.ErrCodePackageNotFound, "npm package %s", name)
}

func emptyCatalog(t *testing.T) *workspace.Catalog {
	t.Helper()
	c, err := workspace.LoadCatalog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func catalogWith(t *testing.T, entries map[string]string) *workspace.Catalog {
	t.Helper()
	c := emptyCatalog(t)
	for name, v := range entries {
		c.Set(name, v)
	}
	return c
}

func TestReconcile_RemovesUnused(t *testing.T) {
	run := fixture(t, map[string]string{
		"app": `{"name":"app","dependencies":{"lodash":"^4.17.21","react":"^18.0.0"}}`,
	})
	analyzer := &fakeAnalyzer{reports: map[string]*Report{
		"app": {Unused: []string{"lodash"}},
	}}

	e := NewEngine(run, emptyCatalog(t), analyzer, nil, Options{})
	patches, err := e.Reconcile(context.Background(), []string{"app"})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("got %d patches, want 1", len(patches))
	}
	for _, p := range patches {
		if len(p.Removed) != 1 || p.Removed[0] != "lodash" {
			t.Errorf("Removed = %v, want [lodash]", p.Removed)
		}
		if _, still := p.Manifest().Dependencies["lodash"]; still {
			t.Error("lodash still declared after removal")
		}
		if _, kept := p.Manifest().Dependencies["react"]; !kept {
			t.Error("react was removed despite being used")
		}
	}
}

func TestReconcile_ImplicitAllowlistProtectsUnused(t *testing.T) {
	run := fixture(t, map[string]string{
		"app": `{"name":"app","dependencies":{"tooling":"workspace:*"},"implicitDependencies":{"tooling":"workspace:*"}}`,
	})
	analyzer := &fakeAnalyzer{reports: map[string]*Report{
		"app": {Unused: []string{"tooling"}},
	}}

	e := NewEngine(run, emptyCatalog(t), analyzer, nil, Options{})
	patches, err := e.Reconcile(context.Background(), []string{"app"})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(patches) != 0 {
		t.Errorf("got %d patches, want 0: implicit dependency must survive", len(patches))
	}
}

func TestReconcile_CatalogWinsOverWorkspace(t *testing.T) {
	// libX is both a catalog entry and a workspace package: the catalog
	// version must be chosen.
	run := fixture(t, map[string]string{
		"app":  `{"name":"app","dependencies":{}}`,
		"libX": `{"name":"libX"}`,
	})
	analyzer := &fakeAnalyzer{reports: map[string]*Report{
		"app": {Missing: []string{"libX"}},
	}}
	catalog := catalogWith(t, map[string]string{"libX": "^2.0.0"})

	e := NewEngine(run, catalog, analyzer, nil, Options{})
	patches, err := e.Reconcile(context.Background(), []string{"app"})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("got %d patches, want 1", len(patches))
	}
	for _, p := range patches {
		if got := p.Added["libX"]; got != "^2.0.0" {
			t.Errorf("Added[libX] = %q, want ^2.0.0 (catalog wins)", got)
		}
	}
}

func TestReconcile_WorkspaceProtocolForInternalPackages(t *testing.T) {
	run := fixture(t, map[string]string{
		"app":    `{"name":"app"}`,
		"shared": `{"name":"shared"}`,
	})
	analyzer := &fakeAnalyzer{reports: map[string]*Report{
		"app": {Missing: []string{"shared"}},
	}}

	e := NewEngine(run, emptyCatalog(t), analyzer, nil, Options{})
	patches, err := e.Reconcile(context.Background(), []string{"app"})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	for _, p := range patches {
		if got := p.Added["shared"]; got != workspace.WorkspaceProtocol {
			t.Errorf("Added[shared] = %q, want %q", got, workspace.WorkspaceProtocol)
		}
	}
}

func TestReconcile_RegistryFallback(t *testing.T) {
	run := fixture(t, map[string]string{
		"app": `{"name":"app"}`,
	})
	analyzer := &fakeAnalyzer{reports: map[string]*Report{
		"app": {Missing: []string{"left-pad"}},
	}}
	versions := &fakeVersions{versions: map[string]string{"left-pad": "1.3.0"}}

	e := NewEngine(run, emptyCatalog(t), analyzer, versions, Options{})
	patches, err := e.Reconcile(context.Background(), []string{"app"})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	for _, p := range patches {
		if got := p.Added["left-pad"]; got != "^1.3.0" {
			t.Errorf("Added[left-pad] = %q, want ^1.3.0", got)
		}
	}
}

func TestReconcile_UnresolvableSkippedNotFatal(t *testing.T) {
	run := fixture(t, map[string]string{
		"app": `{"name":"app"}`,
	})
	analyzer := &fakeAnalyzer{reports: map[string]*Report{
		"app": {Missing: []string{"no-such-package-anywhere"}},
	}}

	e := NewEngine(run, emptyCatalog(t), analyzer, &fakeVersions{}, Options{})
	patches, err := e.Reconcile(context.Background(), []string{"app"})
	if err != nil {
		t.Fatalf("Reconcile() error = %v, want skip", err)
	}
	if len(patches) != 0 {
		t.Errorf("got %d patches, want 0 for unresolvable dependency", len(patches))
	}
}

func TestReconcile_SelfDependencySkipped(t *testing.T) {
	run := fixture(t, map[string]string{
		"app": `{"name":"app"}`,
	})
	analyzer := &fakeAnalyzer{reports: map[string]*Report{
		"app": {Missing: []string{"app"}},
	}}

	e := NewEngine(run, emptyCatalog(t), analyzer, nil, Options{})
	patches, err := e.Reconcile(context.Background(), []string{"app"})
	if err != nil {
		t.Fatalf("Reconcile() error = %v, want warning only", err)
	}
	if len(patches) != 0 {
		t.Errorf("got %d patches, want 0: a package must not depend on itself", len(patches))
	}
}

func TestReconcile_ImplicitDependenciesAddedToRuntime(t *testing.T) {
	run := fixture(t, map[string]string{
		"app":     `{"name":"app","implicitDependencies":{"tooling":"workspace:*"}}`,
		"tooling": `{"name":"tooling"}`,
	})

	e := NewEngine(run, emptyCatalog(t), &fakeAnalyzer{}, nil, Options{})
	patches, err := e.Reconcile(context.Background(), []string{"app"})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("got %d patches, want 1", len(patches))
	}
	for _, p := range patches {
		if got := p.Added["tooling"]; got != workspace.WorkspaceProtocol {
			t.Errorf("Added[tooling] = %q, want workspace protocol", got)
		}
	}
}

func TestReconcile_DevPatternMigration(t *testing.T) {
	run := fixture(t, map[string]string{
		"app": `{"name":"app","dependencies":{"eslint":"^9.0.0","react":"^18.0.0"}}`,
	})

	e := NewEngine(run, emptyCatalog(t), &fakeAnalyzer{}, nil, Options{
		DevPatterns: []string{"eslint"},
	})
	patches, err := e.Reconcile(context.Background(), []string{"app"})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	for _, p := range patches {
		if len(p.Migrated) != 1 || p.Migrated[0] != "eslint" {
			t.Errorf("Migrated = %v, want [eslint]", p.Migrated)
		}
		m := p.Manifest()
		if _, inRuntime := m.Dependencies["eslint"]; inRuntime {
			t.Error("eslint still in runtime class")
		}
		if got := m.DevDependencies["eslint"]; got != "^9.0.0" {
			t.Errorf("DevDependencies[eslint] = %q, want ^9.0.0", got)
		}
		if _, kept := m.Dependencies["react"]; !kept {
			t.Error("react migrated without matching a pattern")
		}
	}
}

func TestReconcile_DuplicateResolution(t *testing.T) {
	run := fixture(t, map[string]string{
		"app": `{"name":"app","dependencies":{"prettier":"^3.0.0","axios":"^1.0.0"},"devDependencies":{"prettier":"^3.0.0","axios":"^1.0.0"}}`,
	})

	e := NewEngine(run, emptyCatalog(t), &fakeAnalyzer{}, nil, Options{
		DevPatterns:       []string{"prettier"},
		ResolveDuplicates: true,
	})
	patches, err := e.Reconcile(context.Background(), []string{"app"})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	for _, p := range patches {
		m := p.Manifest()
		// prettier matches the pattern: development class owns it.
		if _, inRuntime := m.Dependencies["prettier"]; inRuntime {
			t.Error("prettier still in runtime class")
		}
		if _, inDev := m.DevDependencies["prettier"]; !inDev {
			t.Error("prettier missing from development class")
		}
		// axios does not match: runtime class owns it.
		if _, inRuntime := m.Dependencies["axios"]; !inRuntime {
			t.Error("axios missing from runtime class")
		}
		if _, inDev := m.DevDependencies["axios"]; inDev {
			t.Error("axios still in development class")
		}
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	run := fixture(t, map[string]string{
		"app":    `{"name":"app","dependencies":{"lodash":"^4.17.21"}}`,
		"shared": `{"name":"shared"}`,
	})
	analyzer := &fakeAnalyzer{reports: map[string]*Report{
		"app": {Unused: []string{"lodash"}, Missing: []string{"shared"}},
	}}

	e := NewEngine(run, emptyCatalog(t), analyzer, nil, Options{})
	first, err := e.Reconcile(context.Background(), []string{"app"})
	if err != nil {
		t.Fatalf("first Reconcile() error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first run produced %d patches, want 1", len(first))
	}
	if err := e.Apply(first); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// The analyzer now sees a consistent manifest.
	analyzer.reports["app"] = &Report{}

	second, err := e.Reconcile(context.Background(), []string{"app"})
	if err != nil {
		t.Fatalf("second Reconcile() error = %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second run produced %d patches, want 0 (idempotence)", len(second))
	}
}

func TestReconcile_UnknownPackagesReportedTogether(t *testing.T) {
	run := fixture(t, map[string]string{"app": `{"name":"app"}`})

	e := NewEngine(run, emptyCatalog(t), &fakeAnalyzer{}, nil, Options{})
	_, err := e.Reconcile(context.Background(), []string{"ghost", "phantom"})
	if !errors.Is(err, errors.ErrCodeSeedNotFound) {
		t.Fatalf("Reconcile() error = %v, want SEED_NOT_FOUND", err)
	}
	for _, name := range []string{"ghost", "phantom"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name %s", err, name)
		}
	}
}

func TestReconcile_CorruptManifestAbortsBatch(t *testing.T) {
	run := fixture(t, map[string]string{
		"app":    `{"name":"app"}`,
		"broken": `{not json`,
	})

	e := NewEngine(run, emptyCatalog(t), &fakeAnalyzer{}, nil, Options{})
	_, err := e.Reconcile(context.Background(), []string{"app", "broken"})
	if !errors.Is(err, errors.ErrCodeManifestCorrupt) {
		t.Fatalf("Reconcile() error = %v, want MANIFEST_CORRUPT", err)
	}
}

func TestReconcile_WholeWorkspaceWhenNoNames(t *testing.T) {
	run := fixture(t, map[string]string{
		"a": `{"name":"a","dependencies":{"lodash":"^4.0.0"}}`,
		"b": `{"name":"b","dependencies":{"lodash":"^4.0.0"}}`,
	})
	analyzer := &fakeAnalyzer{reports: map[string]*Report{
		"a": {Unused: []string{"lodash"}},
		"b": {Unused: []string{"lodash"}},
	}}

	e := NewEngine(run, emptyCatalog(t), analyzer, nil, Options{})
	patches, err := e.Reconcile(context.Background(), nil)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(patches) != 2 {
		t.Errorf("got %d patches, want 2", len(patches))
	}
}
