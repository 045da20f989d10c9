package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/workgraph/depsync/pkg/depgraph"
	"github.com/workgraph/depsync/pkg/errors"
	"github.com/workgraph/depsync/pkg/workspace"
)

// graphCommand creates the graph command and its subcommands.
func (c *CLI) graphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect the workspace dependency graph",
	}
	cmd.AddCommand(
		c.graphOrderCommand(),
		c.graphCyclesCommand(),
		c.graphWhyCommand(),
		c.graphExportCommand(),
	)
	return cmd
}

func (c *CLI) graphOrderCommand() *cobra.Command {
	var (
		includeDev bool
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "order [packages...]",
		Short: "Print packages in dependency order",
		Long: `Order prints the selected packages (or the whole workspace) so that every
package appears after everything it depends on. External dependencies are
omitted unless --all is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			g, err := c.buildGraph(ctx, args, includeDev, logger)
			if err != nil {
				return err
			}
			order, err := g.TopoSort(nil, depgraph.SortOptions{WorkspaceOnly: !all})
			if err != nil {
				return err
			}
			for _, name := range order {
				fmt.Println(name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeDev, "dev", false, "follow devDependencies of workspace packages")
	cmd.Flags().BoolVar(&all, "all", false, "include external dependencies in the output")

	return cmd
}

func (c *CLI) graphCyclesCommand() *cobra.Command {
	var includeDev bool

	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "Check the workspace for dependency cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			g, err := c.buildGraph(ctx, nil, includeDev, logger)
			if err != nil {
				return err
			}
			if _, err := g.TopoSort(nil, depgraph.SortOptions{}); err != nil {
				if errors.Is(err, errors.ErrCodeCycle) {
					printError("%s", errors.UserMessage(err))
					return err
				}
				return err
			}
			printSuccess("No cycles")
			printStats(g.NodeCount(), g.EdgeCount())
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeDev, "dev", false, "follow devDependencies of workspace packages")

	return cmd
}

func (c *CLI) graphWhyCommand() *cobra.Command {
	var (
		includeDev bool
		depth      int
	)

	cmd := &cobra.Command{
		Use:   "why <package>",
		Short: "Show which packages depend on a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			g, err := c.buildGraph(ctx, nil, includeDev, logger)
			if err != nil {
				return err
			}
			walk, err := g.TraverseTo(args, depth)
			if err != nil {
				return err
			}

			if len(walk.Links) == 0 {
				printInfo("Nothing depends on %s", StyleHighlight.Render(args[0]))
				return nil
			}
			printInfo("%s is needed by:", StyleHighlight.Render(args[0]))
			for _, link := range walk.Links {
				printDetail("%s %s %s", link.From, iconArrow, link.To)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeDev, "dev", false, "follow devDependencies of workspace packages")
	cmd.Flags().IntVar(&depth, "depth", -1, "max traversal depth, -1 for unbounded")

	return cmd
}

func (c *CLI) graphExportCommand() *cobra.Command {
	var (
		includeDev bool
		format     string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "export [packages...]",
		Short: "Export the dependency graph as DOT or SVG",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			g, err := c.buildGraph(ctx, args, includeDev, logger)
			if err != nil {
				return err
			}

			dot := depgraph.ToDOT(g)
			var data []byte
			switch strings.ToLower(format) {
			case "dot":
				data = []byte(dot)
			case "svg":
				data, err = depgraph.RenderSVG(ctx, dot)
				if err != nil {
					return err
				}
			default:
				return errors.New(errors.ErrCodeInvalidInput, "unsupported format %q, expected dot or svg", format)
			}

			if output == "" || output == "-" {
				fmt.Print(string(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "writing %s", output)
			}
			printSuccess("Exported graph")
			printFile(output)
			printStats(g.NodeCount(), g.EdgeCount())
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeDev, "dev", false, "follow devDependencies of workspace packages")
	cmd.Flags().StringVar(&format, "format", "dot", "output format (dot, svg)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout")

	return cmd
}

// buildGraph crawls the workspace from the named seed packages. Empty
// seeds means the whole workspace.
func (c *CLI) buildGraph(ctx context.Context, seeds []string, includeDev bool, logger *log.Logger) (*depgraph.Graph, error) {
	run, err := c.newRunContext()
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		if seeds, err = allPackages(ctx, run); err != nil {
			return nil, err
		}
	}
	builder := depgraph.NewBuilder(run, depgraph.BuildOptions{
		IncludeDev: includeDev,
		Logger:     logger.Debugf,
	})
	return builder.Build(ctx, seeds)
}

func allPackages(ctx context.Context, run *workspace.RunContext) ([]string, error) {
	pkgs, err := run.Inventory.List(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(pkgs)), nil
}
