package workspace

import (
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/workgraph/depsync/pkg/errors"
)

// CatalogFile is the workspace-scoped catalog filename.
const CatalogFile = "pnpm-workspace.yaml"

// Catalog is the workspace-wide name→version mapping used to keep shared
// dependencies consistent. It is loaded once per run, mutated only by the
// catalog-normalization pass, and persisted atomically.
//
// Top-level keys other than the catalog mapping and the cleanup flag
// (e.g. the package glob list) are preserved through load/save cycles.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]string
	cleanup bool
	rest    map[string]yaml.Node
	path    string
}

// catalogDoc is the on-disk layout. The inline rest map carries every
// top-level key this tool does not manage.
type catalogDoc struct {
	Catalog               map[string]string    `yaml:"catalog,omitempty"`
	CleanupUnusedCatalogs bool                 `yaml:"cleanupUnusedCatalogs,omitempty"`
	Rest                  map[string]yaml.Node `yaml:",inline"`
}

// LoadCatalog reads the catalog file under the workspace root. A missing
// file yields an empty catalog (a workspace without shared versions is
// valid); malformed YAML is fatal.
func LoadCatalog(root string) (*Catalog, error) {
	path := filepath.Join(root, CatalogFile)
	c := &Catalog{
		entries: make(map[string]string),
		rest:    make(map[string]yaml.Node),
		path:    path,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read catalog %s", path)
	}

	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "catalog %s", path)
	}
	if doc.Catalog != nil {
		c.entries = doc.Catalog
	}
	c.cleanup = doc.CleanupUnusedCatalogs
	if doc.Rest != nil {
		c.rest = doc.Rest
	}
	return c, nil
}

// Path returns the catalog file path.
func (c *Catalog) Path() string { return c.path }

// Get returns the catalog version for name, if present.
func (c *Catalog) Get(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[name]
	return v, ok
}

// Set records name→version in the catalog.
func (c *Catalog) Set(name, version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = version
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Names returns all catalog entry names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CleanupUnusedCatalogs reports the catalog's cleanup flag.
func (c *Catalog) CleanupUnusedCatalogs() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cleanup
}

// Save writes the catalog back to disk with entries sorted by name.
// The write is atomic: the document is written to a temp file in the
// same directory and renamed over the original, so a crashed run never
// leaves a half-written catalog.
func (c *Catalog) Save() error {
	c.mu.RLock()
	doc := c.document()
	c.mu.RUnlock()

	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode catalog")
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".catalog-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write catalog %s", c.path)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeInternal, err, "write catalog %s", c.path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeInternal, err, "write catalog %s", c.path)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeInternal, err, "write catalog %s", c.path)
	}
	return nil
}

// document builds a yaml document with deterministic (sorted) catalog
// entry order. yaml.Marshal of a plain map does not guarantee ordering,
// so the catalog mapping is emitted as an explicit node.
func (c *Catalog) document() *yaml.Node {
	root := &yaml.Node{Kind: yaml.MappingNode}

	appendKV := func(key string, value *yaml.Node) {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			value,
		)
	}

	// Preserve unmanaged keys first (package globs etc. conventionally
	// lead the file).
	restKeys := make([]string, 0, len(c.rest))
	for k := range c.rest {
		restKeys = append(restKeys, k)
	}
	slices.Sort(restKeys)
	for _, k := range restKeys {
		node := c.rest[k]
		appendKV(k, &node)
	}

	if len(c.entries) > 0 {
		catalog := &yaml.Node{Kind: yaml.MappingNode}
		for _, name := range c.sortedNames() {
			catalog.Content = append(catalog.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: name},
				&yaml.Node{Kind: yaml.ScalarNode, Value: c.entries[name]},
			)
		}
		appendKV("catalog", catalog)
	}

	if c.cleanup {
		appendKV("cleanupUnusedCatalogs", &yaml.Node{Kind: yaml.ScalarNode, Value: "true", Tag: "!!bool"})
	}

	return root
}

func (c *Catalog) sortedNames() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
