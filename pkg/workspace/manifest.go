// Package workspace provides access to the packages of a multi-package
// source workspace: the inventory of package locations, their dependency
// manifests, and the shared version catalog.
package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/workgraph/depsync/pkg/errors"
)

// ManifestFile is the per-package manifest filename.
const ManifestFile = "package.json"

// Manifest is one package's dependency manifest.
//
// The three dependency classes are decoded into maps; every other field is
// kept as raw JSON so that read-modify-write cycles preserve unrelated
// fields byte-for-byte. The maps may be nil when the class is absent from
// the file; mutating helpers allocate on first use.
type Manifest struct {
	Name                 string
	Dependencies         map[string]string
	DevDependencies      map[string]string
	ImplicitDependencies map[string]string

	raw map[string]json.RawMessage
}

// managedFields are the manifest fields decoded into typed storage.
// Everything else round-trips through the raw map untouched.
var managedFields = []string{"name", "dependencies", "devDependencies", "implicitDependencies"}

// ParseManifest decodes manifest JSON, separating the managed dependency
// fields from the raw remainder.
func ParseManifest(data []byte) (*Manifest, error) {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	m := &Manifest{raw: raw}
	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &m.Name); err != nil {
			return nil, err
		}
	}
	for field, dst := range map[string]*map[string]string{
		"dependencies":         &m.Dependencies,
		"devDependencies":      &m.DevDependencies,
		"implicitDependencies": &m.ImplicitDependencies,
	} {
		if v, ok := raw[field]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// MarshalJSON re-assembles the manifest: managed fields are re-encoded
// from their typed maps (empty maps are dropped, matching the convention
// that package.json omits empty dependency blocks), all other fields pass
// through from the original bytes.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.raw)+4)
	for k, v := range m.raw {
		out[k] = v
	}
	for _, f := range managedFields {
		delete(out, f)
	}

	if m.Name != "" {
		name, err := json.Marshal(m.Name)
		if err != nil {
			return nil, err
		}
		out["name"] = name
	}
	for field, src := range map[string]map[string]string{
		"dependencies":         m.Dependencies,
		"devDependencies":      m.DevDependencies,
		"implicitDependencies": m.ImplicitDependencies,
	} {
		if len(src) == 0 {
			continue
		}
		enc, err := json.Marshal(src)
		if err != nil {
			return nil, err
		}
		out[field] = enc
	}
	return json.Marshal(out)
}

// Private reports the manifest's "private" flag.
func (m *Manifest) Private() bool {
	var private bool
	if v, ok := m.raw["private"]; ok {
		_ = json.Unmarshal(v, &private)
	}
	return private
}

// PublishAccess returns the publishConfig.access value ("public",
// "restricted") or empty when unset.
func (m *Manifest) PublishAccess() string {
	v, ok := m.raw["publishConfig"]
	if !ok {
		return ""
	}
	var cfg struct {
		Access string `json:"access"`
	}
	_ = json.Unmarshal(v, &cfg)
	return cfg.Access
}

// DependsOn reports whether name appears in any dependency class.
func (m *Manifest) DependsOn(name string) bool {
	_, r := m.Dependencies[name]
	_, d := m.DevDependencies[name]
	_, i := m.ImplicitDependencies[name]
	return r || d || i
}

// SetDependency records name→spec in the runtime dependency map.
func (m *Manifest) SetDependency(name, spec string) {
	if m.Dependencies == nil {
		m.Dependencies = make(map[string]string)
	}
	m.Dependencies[name] = spec
}

// SetDevDependency records name→spec in the development dependency map.
func (m *Manifest) SetDevDependency(name, spec string) {
	if m.DevDependencies == nil {
		m.DevDependencies = make(map[string]string)
	}
	m.DevDependencies[name] = spec
}

// Store reads and writes manifests with a per-path read-through cache.
//
// Repeated reads of the same absolute path return the same in-memory
// manifest for the duration of a run; a write replaces the cache entry.
// The cache is safe for concurrent use, but no two tasks mutate the same
// package's manifest concurrently by construction (work is partitioned
// one task per package).
type Store struct {
	mu    sync.Mutex
	cache map[string]*Manifest
}

// NewStore creates an empty manifest store.
func NewStore() *Store {
	return &Store{cache: make(map[string]*Manifest)}
}

// Read loads the manifest at path (a package directory or a direct path to
// its manifest file). A missing file yields ErrCodeManifestMissing and
// unparseable contents yield ErrCodeManifestCorrupt, so callers can
// distinguish "no manifest" from "broken manifest".
func (s *Store) Read(path string) (*Manifest, error) {
	path = normalizeManifestPath(path)

	s.mu.Lock()
	if m, ok := s.cache[path]; ok {
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeManifestMissing, "no manifest at %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read manifest %s", path)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestCorrupt, err, "manifest %s", path)
	}

	s.mu.Lock()
	s.cache[path] = m
	s.mu.Unlock()
	return m, nil
}

// Write persists the manifest to path and replaces the cache entry.
func (s *Store) Write(path string, m *Manifest) error {
	path = normalizeManifestPath(path)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode manifest %s", path)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write manifest %s", path)
	}

	s.mu.Lock()
	s.cache[path] = m
	s.mu.Unlock()
	return nil
}

// Invalidate drops the cache entry for path, forcing the next Read to hit
// the filesystem.
func (s *Store) Invalidate(path string) {
	path = normalizeManifestPath(path)
	s.mu.Lock()
	delete(s.cache, path)
	s.mu.Unlock()
}

// normalizeManifestPath accepts either a package directory or a manifest
// file path and returns the absolute manifest file path.
func normalizeManifestPath(path string) string {
	if filepath.Base(path) != ManifestFile {
		path = filepath.Join(path, ManifestFile)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}
