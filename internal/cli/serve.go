package cli

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/workgraph/depsync/pkg/cache"
	"github.com/workgraph/depsync/pkg/depgraph"
	"github.com/workgraph/depsync/pkg/errors"
	"github.com/workgraph/depsync/pkg/workspace"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr       string
		includeDev bool
		noCache    bool
		cacheTTL   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workspace graph over HTTP",
		Long: `Serve exposes the workspace dependency graph as a small read-only HTTP API.
Rendered responses are held in the configured cache backend for --cache-ttl,
so manifest edits show up after at most that long; set it to 0 to rebuild the
graph on every request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			run, err := c.newRunContext()
			if err != nil {
				return err
			}

			snapshots := c.newCache(ctx, noCache)
			defer snapshots.Close()

			srv := &graphServer{
				cli:        c,
				root:       run.Root(),
				includeDev: includeDev,
				snapshots:  snapshots,
				keyer:      cache.NewDefaultKeyer(),
				ttl:        cacheTTL,
			}

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.Recoverer)
			r.Get("/healthz", srv.health)
			r.Get("/packages", srv.packages)
			r.Get("/graph", srv.graphJSON)
			r.Get("/graph.dot", srv.graphDOT)
			r.Get("/graph.svg", srv.graphSVG)

			server := &http.Server{
				Addr:              addr,
				Handler:           r,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- server.ListenAndServe() }()
			logger.Info("Serving workspace graph", "addr", addr)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return errors.Wrap(errors.ErrCodeInternal, err, "server shutdown")
				}
				return ctx.Err()
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return errors.Wrap(errors.ErrCodeInternal, err, "server failed")
				}
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().BoolVar(&includeDev, "dev", false, "follow devDependencies of workspace packages")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the snapshot cache")
	cmd.Flags().DurationVar(&cacheTTL, "cache-ttl", 15*time.Second, "how long rendered graph responses are reused, 0 rebuilds every request")

	return cmd
}

// graphServer holds the handlers for the read-only graph API. Rendered
// graph responses are cached under keys derived from the workspace root,
// the build options, and the requested seeds.
type graphServer struct {
	cli        *CLI
	root       string
	includeDev bool

	snapshots cache.Cache
	keyer     cache.Keyer
	ttl       time.Duration
}

func (s *graphServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *graphServer) packages(w http.ResponseWriter, r *http.Request) {
	run, err := s.cli.newRunContext()
	if err != nil {
		writeError(w, err)
		return
	}
	pkgs, err := run.Inventory.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]workspace.Package, 0, len(pkgs))
	for _, name := range sortedNames(pkgs) {
		out = append(out, pkgs[name])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *graphServer) graphJSON(w http.ResponseWriter, r *http.Request) {
	data, err := s.render(r, "json")
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *graphServer) graphDOT(w http.ResponseWriter, r *http.Request) {
	data, err := s.render(r, "dot")
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	w.Write(data)
}

func (s *graphServer) graphSVG(w http.ResponseWriter, r *http.Request) {
	data, err := s.render(r, "svg")
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(data)
}

// render answers a graph request from the snapshot cache when possible,
// crawling and encoding only on a miss. The seeds query parameter
// restricts the crawl, for example /graph?seeds=app,web.
func (s *graphServer) render(r *http.Request, format string) ([]byte, error) {
	ctx := r.Context()
	seeds := splitSeeds(r.URL.Query()["seeds"])
	key := s.snapshotKey(seeds, format)

	if s.ttl > 0 {
		if data, hit, err := s.snapshots.Get(ctx, key); err == nil && hit {
			return data, nil
		}
	}

	g, err := s.cli.buildGraph(ctx, seeds, s.includeDev, loggerFromContext(ctx))
	if err != nil {
		return nil, err
	}
	data, err := encodeGraph(ctx, g, format)
	if err != nil {
		return nil, err
	}

	if s.ttl > 0 {
		if err := s.snapshots.Set(ctx, key, data, s.ttl); err != nil {
			loggerFromContext(ctx).Debug("snapshot cache write failed", "err", err)
		}
	}
	return data, nil
}

// snapshotKey is stable under seed reordering so equivalent requests
// share one cache entry.
func (s *graphServer) snapshotKey(seeds []string, format string) string {
	sorted := slices.Sorted(slices.Values(seeds))
	return s.keyer.GraphKey(s.root, cache.GraphKeyOpts{
		IncludeDev: s.includeDev,
		Seeds:      sorted,
	}) + ":" + format
}

func encodeGraph(ctx context.Context, g *depgraph.Graph, format string) ([]byte, error) {
	switch format {
	case "json":
		return json.Marshal(map[string]any{
			"nodes": g.Nodes(),
			"edges": g.Edges(),
		})
	case "dot":
		return []byte(depgraph.ToDOT(g)), nil
	default:
		return depgraph.RenderSVG(ctx, depgraph.ToDOT(g))
	}
}

func sortedNames(pkgs map[string]workspace.Package) []string {
	return slices.Sorted(maps.Keys(pkgs))
}

func splitSeeds(raw []string) []string {
	var seeds []string
	for _, v := range raw {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				seeds = append(seeds, s)
			}
		}
	}
	return seeds
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeSeedNotFound, errors.ErrCodeNotFound, errors.ErrCodePackageNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": errors.UserMessage(err)})
}
