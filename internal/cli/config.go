package cli

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/workgraph/depsync/pkg/errors"
	"github.com/workgraph/depsync/pkg/registry"
)

// ConfigFile is the per-workspace configuration filename.
const ConfigFile = ".depsync.toml"

// Config is the workspace configuration loaded from .depsync.toml.
// Every field has a working default; the file is optional. Command-line
// flags override file values.
type Config struct {
	Reconcile ReconcileConfig `toml:"reconcile"`
	Registry  RegistryConfig  `toml:"registry"`
	Cache     CacheConfig     `toml:"cache"`
	Catalog   CatalogConfig   `toml:"catalog"`
}

// ReconcileConfig tunes the reconciliation engine.
type ReconcileConfig struct {
	// IgnorePatterns are passed to the static analyzer.
	IgnorePatterns []string `toml:"ignore_patterns"`
	// DevPatterns name dependencies that belong in devDependencies.
	DevPatterns []string `toml:"dev_patterns"`
	// UseRegex treats patterns as regular expressions.
	UseRegex bool `toml:"use_regex"`
	// ResolveDuplicates removes names declared in both classes.
	ResolveDuplicates bool `toml:"resolve_duplicates"`
	// Concurrency bounds the per-package fan-out (default 20).
	Concurrency int `toml:"concurrency"`
}

// RegistryConfig selects the npm registry.
type RegistryConfig struct {
	URL string `toml:"url"`
}

// CacheConfig selects the cache backend: "file" (default), "redis",
// "mongo", or "none".
type CacheConfig struct {
	Backend         string `toml:"backend"`
	RedisURL        string `toml:"redis_url"`
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// CatalogConfig tunes catalog normalization.
type CatalogConfig struct {
	// Filter restricts which dependency names are catalogized; empty
	// admits every name.
	Filter []string `toml:"filter"`
}

// LoadConfig reads .depsync.toml under root. A missing file yields the
// defaults; a malformed file is an error.
func LoadConfig(root string) (*Config, error) {
	cfg := &Config{
		Registry: RegistryConfig{URL: registry.DefaultBaseURL},
		Cache: CacheConfig{
			Backend:         "file",
			MongoDatabase:   appName,
			MongoCollection: "cache",
		},
	}

	path := filepath.Join(root, ConfigFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if cfg.Registry.URL == "" {
		cfg.Registry.URL = registry.DefaultBaseURL
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "file"
	}
	return cfg, nil
}
