package cli

import (
	"github.com/spf13/cobra"

	"github.com/workgraph/depsync/pkg/reconcile"
	"github.com/workgraph/depsync/pkg/workspace"
)

// catalogCommand creates the catalog command.
func (c *CLI) catalogCommand() *cobra.Command {
	var (
		filters  []string
		useRegex bool
	)

	cmd := &cobra.Command{
		Use:   "catalog [packages...]",
		Short: "Move concrete dependency versions into the shared catalog",
		Long: `Catalog rewrites concrete dependency specifiers to the catalog protocol and
records the version in the workspace catalog file. A dependency whose declared
version disagrees with an existing catalog entry is reported as a conflict, and
a single conflict anywhere aborts the run before anything is written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			exprs := c.config.Catalog.Filter
			if cmd.Flags().Changed("filter") {
				exprs = filters
			}
			filter := reconcile.NewPatterns(exprs, useRegex)

			norm := reconcile.NewNormalizer(run, catalog, filter, logger)
			changes, err := norm.CatalogizeAll(ctx, args)
			if err != nil {
				return err
			}

			rewritten := 0
			for _, ch := range changes {
				if !ch.Changed() {
					continue
				}
				rewritten++
				printInfo("%s", StyleHighlight.Render(ch.Package))
				for name, version := range ch.Rewritten {
					printDetail("%s %s catalog (%s)", name, iconArrow, version)
				}
			}

			if rewritten == 0 {
				prog.done("Catalog up to date")
				printSuccess("No concrete versions to catalogize")
				return nil
			}

			prog.done("Catalogized workspace")
			printSuccess("Rewrote %d manifest(s)", rewritten)
			printFile(catalog.Path())
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&filters, "filter", nil, "only catalogize matching dependency names")
	cmd.Flags().BoolVar(&useRegex, "regex", false, "treat filters as regular expressions")

	return cmd
}
