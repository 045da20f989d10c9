package cli

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/workgraph/depsync/pkg/cache"
	"github.com/workgraph/depsync/pkg/errors"
	"github.com/workgraph/depsync/pkg/reconcile"
	"github.com/workgraph/depsync/pkg/registry"
	"github.com/workgraph/depsync/pkg/workspace"
)

// reconcileCommand creates the reconcile command.
func (c *CLI) reconcileCommand() *cobra.Command {
	var (
		write       bool
		check       bool
		noCache     bool
		refresh     bool
		ignores     []string
		devPatterns []string
		useRegex    bool
		dedupe      bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "reconcile [packages...]",
		Short: "Reconcile declared dependencies against source usage",
		Long: `Reconcile analyzes each selected package (or the whole workspace), removes
declared-but-unused dependencies, adds referenced-but-undeclared ones with a
resolved version (catalog, workspace protocol, or registry lookup), migrates
tooling dependencies into devDependencies, and removes duplicates.

Without --write nothing is persisted and the command exits non-zero when any
package needs changes, which makes it usable as a CI validation step.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if write && check {
				return errors.New(errors.ErrCodeInvalidInput, "--write and --check are mutually exclusive")
			}

			ctx := cmd.Context()

			run, err := c.newRunContext()
			if err != nil {
				return err
			}
			logger := loggerFromContext(ctx).With("run", run.ID[:8])
			prog := newProgress(logger)
			catalog, err := workspace.LoadCatalog(run.Root())
			if err != nil {
				return err
			}

			backend := c.newCache(ctx, noCache)
			defer backend.Close()

			opts := c.config.Reconcile
			if cmd.Flags().Changed("ignore") {
				opts.IgnorePatterns = ignores
			}
			if cmd.Flags().Changed("dev-pattern") {
				opts.DevPatterns = devPatterns
			}
			if cmd.Flags().Changed("regex") {
				opts.UseRegex = useRegex
			}
			if cmd.Flags().Changed("dedupe") {
				opts.ResolveDuplicates = dedupe
			}
			if cmd.Flags().Changed("concurrency") {
				opts.Concurrency = concurrency
			}

			// Alternate registries get their own cache namespace so a
			// private mirror never serves versions cached from npmjs.
			keyer := cache.NewDefaultKeyer()
			if c.config.Registry.URL != registry.DefaultBaseURL {
				keyer = cache.NewScopedKeyer(keyer, cache.Hash([]byte(c.config.Registry.URL))[:12]+":")
			}

			client := registry.NewClient(registry.ClientOptions{
				BaseURL: c.config.Registry.URL,
				Cache:   backend,
				Keyer:   keyer,
				TTL:     24 * time.Hour,
			})
			engine := reconcile.NewEngine(run, catalog,
				reconcile.NewDepcheckAnalyzer(),
				registry.NewResolver(client, refresh),
				reconcile.Options{
					IgnorePatterns:    opts.IgnorePatterns,
					DevPatterns:       opts.DevPatterns,
					UseRegex:          opts.UseRegex,
					ResolveDuplicates: opts.ResolveDuplicates,
					Concurrency:       opts.Concurrency,
					Logger:            logger,
				})

			patches, err := engine.Reconcile(ctx, args)
			if err != nil {
				return err
			}

			if len(patches) == 0 {
				prog.done("Workspace in sync")
				printSuccess("All manifests match their source")
				return nil
			}

			printPatches(patches)
			prog.done(fmt.Sprintf("Found changes in %d package(s)", len(patches)))

			if !write {
				printNewline()
				printNextStep("Apply these changes", "depsync reconcile --write")
				return errors.New(errors.ErrCodeInvalidPackage, "%d package(s) out of sync", len(patches))
			}

			if err := engine.Apply(patches); err != nil {
				return err
			}
			printSuccess("Wrote %d manifest(s)", len(patches))
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "persist computed patches")
	cmd.Flags().BoolVar(&check, "check", false, "validate only, the default behavior made explicit")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the response cache")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass cached registry responses")
	cmd.Flags().StringSliceVar(&ignores, "ignore", nil, "analyzer ignore patterns")
	cmd.Flags().StringSliceVar(&devPatterns, "dev-pattern", nil, "dependency names that belong in devDependencies")
	cmd.Flags().BoolVar(&useRegex, "regex", false, "treat patterns as regular expressions")
	cmd.Flags().BoolVar(&dedupe, "dedupe", false, "resolve names declared in both dependency classes")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max concurrent package reconciliations")

	return cmd
}

// printPatches renders the per-package change summary.
func printPatches(patches map[string]*reconcile.Patch) {
	for _, path := range slices.Sorted(maps.Keys(patches)) {
		p := patches[path]
		printInfo("%s", StyleHighlight.Render(p.Package))
		for _, name := range slices.Sorted(maps.Keys(p.Added)) {
			printDetail("+ %s %s", name, p.Added[name])
		}
		for _, name := range p.Removed {
			printDetail("- %s", name)
		}
		for _, name := range p.Migrated {
			printDetail("%s %s dev", name, iconArrow)
		}
		for _, name := range p.Deduped {
			printDetail("dedup %s", name)
		}
	}
}
