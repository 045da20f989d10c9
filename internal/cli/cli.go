// Package cli implements the depsync command-line interface.
//
// Commands reconcile package manifests against their source, normalize
// shared versions into the workspace catalog, query the dependency
// graph, serve it over HTTP, and manage the response cache. The CLI is
// built with cobra; logging uses charmbracelet/log and is passed through
// context.Context.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/workgraph/depsync/pkg/buildinfo"
	"github.com/workgraph/depsync/pkg/cache"
	"github.com/workgraph/depsync/pkg/workspace"
)

// appName is the application name used for directories and display.
const appName = "depsync"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	root   string // workspace root, from --root
	config *Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "depsync",
		Short:        "Depsync keeps workspace dependency manifests in sync with source",
		Long:         `Depsync builds the dependency graph of a multi-package workspace, detects structural problems (cycles, version drift, duplicated declarations), and reconciles each package's declared dependencies against what its source actually imports.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(c.root)
			if err != nil {
				return err
			}
			c.config = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.root, "root", ".", "workspace root directory")

	root.AddCommand(c.reconcileCommand())
	root.AddCommand(c.catalogCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunContext creates the shared per-run state rooted at --root.
func (c *CLI) newRunContext() (*workspace.RunContext, error) {
	abs, err := filepath.Abs(c.root)
	if err != nil {
		return nil, err
	}
	return workspace.NewRunContext(abs), nil
}

// newCache creates the configured cache backend. Backend failures fall
// back to a null cache so commands still run, just slower.
func (c *CLI) newCache(ctx context.Context, noCache bool) cache.Cache {
	if noCache || c.config.Cache.Backend == "none" {
		return cache.NewNullCache()
	}

	switch c.config.Cache.Backend {
	case "redis":
		backend, err := cache.NewRedisCache(ctx, c.config.Cache.RedisURL)
		if err != nil {
			c.Logger.Warn("redis cache unavailable, continuing without cache", "err", err)
			return cache.NewNullCache()
		}
		return backend
	case "mongo":
		backend, err := cache.NewMongoCache(ctx, c.config.Cache.MongoURI, c.config.Cache.MongoDatabase, c.config.Cache.MongoCollection)
		if err != nil {
			c.Logger.Warn("mongo cache unavailable, continuing without cache", "err", err)
			return cache.NewNullCache()
		}
		return backend
	default:
		dir, err := cacheDir()
		if err != nil {
			return cache.NewNullCache()
		}
		backend, err := cache.NewFileCache(dir)
		if err != nil {
			return cache.NewNullCache()
		}
		return backend
	}
}

// cacheDir returns the cache directory using XDG standard (~/.cache/depsync/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
