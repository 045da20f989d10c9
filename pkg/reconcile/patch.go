package reconcile

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/workgraph/depsync/pkg/workspace"
)

// Patch records the manifest changes computed for one package. An empty
// patch means the package already matched its source and is omitted from
// results, which is what makes a second run over unchanged sources a
// no-op.
type Patch struct {
	Package string
	Path    string // manifest path

	Added    map[string]string // name -> resolved specifier, runtime class
	Removed  []string          // dropped from runtime class
	Migrated []string          // moved runtime -> development
	Deduped  []string          // removed from one class after duplicate resolution

	manifest *workspace.Manifest
}

func newPatch(pkg workspace.Package, m *workspace.Manifest) *Patch {
	return &Patch{Package: pkg.Name, Path: pkg.Path, manifest: m}
}

// Empty reports whether the patch carries no changes.
func (p *Patch) Empty() bool {
	return len(p.Added) == 0 && len(p.Removed) == 0 && len(p.Migrated) == 0 && len(p.Deduped) == 0
}

// Manifest returns the mutated manifest the patch applies to.
func (p *Patch) Manifest() *workspace.Manifest { return p.manifest }

func (p *Patch) add(name, spec string) {
	if p.Added == nil {
		p.Added = make(map[string]string)
	}
	p.Added[name] = spec
	p.manifest.SetDependency(name, spec)
}

func (p *Patch) remove(name string) {
	delete(p.manifest.Dependencies, name)
	p.Removed = append(p.Removed, name)
}

func (p *Patch) migrate(name string) {
	spec := p.manifest.Dependencies[name]
	delete(p.manifest.Dependencies, name)
	p.manifest.SetDevDependency(name, spec)
	p.Migrated = append(p.Migrated, name)
}

// Summary renders a one-line description, e.g. "+2 -1 ~1".
func (p *Patch) Summary() string {
	var parts []string
	if n := len(p.Added); n > 0 {
		names := slices.Sorted(maps.Keys(p.Added))
		parts = append(parts, fmt.Sprintf("+%d (%s)", n, strings.Join(names, ", ")))
	}
	if n := len(p.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("-%d (%s)", n, strings.Join(p.Removed, ", ")))
	}
	if n := len(p.Migrated); n > 0 {
		parts = append(parts, fmt.Sprintf("~%d (%s)", n, strings.Join(p.Migrated, ", ")))
	}
	if n := len(p.Deduped); n > 0 {
		parts = append(parts, fmt.Sprintf("dedup %d (%s)", n, strings.Join(p.Deduped, ", ")))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, " ")
}
