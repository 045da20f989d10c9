package depgraph

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/workgraph/depsync/pkg/errors"
	"github.com/workgraph/depsync/pkg/workspace"
)

const workers = 20

// BuildOptions controls graph construction.
type BuildOptions struct {
	// IncludeDev adds edges for devDependencies in addition to
	// dependencies and implicitDependencies.
	IncludeDev bool
	// Logger receives progress and advisory messages. Defaults to a no-op.
	Logger func(format string, args ...any)
}

// WithDefaults fills unset fields.
func (o BuildOptions) WithDefaults() BuildOptions {
	if o.Logger == nil {
		o.Logger = func(string, ...any) {}
	}
	return o
}

// Builder constructs dependency graphs from workspace manifests by
// crawling outward from seed packages with a bounded worker pool.
type Builder struct {
	run  *workspace.RunContext
	opts BuildOptions
}

// NewBuilder creates a Builder over the given run context.
func NewBuilder(run *workspace.RunContext, opts BuildOptions) *Builder {
	return &Builder{run: run, opts: opts.WithDefaults()}
}

// Build crawls from the seed packages and returns the resulting graph.
// Every seed must be a workspace package; unknown seeds are reported
// together in a single error. Any unreadable or malformed manifest
// aborts the build.
func (b *Builder) Build(ctx context.Context, seeds []string) (*Graph, error) {
	var missing []string
	for _, s := range seeds {
		ok, err := b.run.Inventory.Has(ctx, s)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, errors.New(errors.ErrCodeSeedNotFound, "not in workspace: %v", missing)
	}

	c := &crawler{
		ctx:     ctx,
		opts:    b.opts,
		run:     b.run,
		g:       New(),
		visited: make(map[string]bool),
		jobs:    make(chan job, workers*2),
		results: make(chan result, workers*2),
		done:    make(chan struct{}),
	}
	return c.crawl(seeds)
}

type crawler struct {
	ctx  context.Context
	opts BuildOptions
	run  *workspace.RunContext

	g *Graph

	jobs    chan job
	results chan result
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	visited map[string]bool
	pending int64
}

type job struct {
	name string
}

type result struct {
	job
	manifest *workspace.Manifest
	err      error
}

func (c *crawler) crawl(seeds []string) (*Graph, error) {
	for range workers {
		c.wg.Add(1)
		go c.worker()
	}

	queued := 0
	for _, s := range seeds {
		if c.enqueue(job{name: s}) {
			queued++
		}
	}

	// An empty workspace queues nothing, and collect would otherwise wait
	// forever for a pending count that never moves.
	var err error
	if queued > 0 {
		err = c.collect()
	}

	// Closing done releases every worker and every enqueue goroutine still
	// trying to hand off a job. A failed build can abort with many sends
	// in flight, so jobs is never closed; shutdown goes through done only.
	close(c.done)
	c.wg.Wait()
	if err != nil {
		return nil, err
	}
	return c.g, nil
}

func (c *crawler) worker() {
	defer c.wg.Done()
	for {
		var j job
		select {
		case <-c.done:
			return
		case j = <-c.jobs:
		}

		if c.ctx.Err() != nil {
			atomic.AddInt64(&c.pending, -1)
			continue
		}

		r := result{job: j}
		pkg, _, err := c.run.Inventory.Lookup(c.ctx, j.name)
		if err != nil {
			r.err = err
		} else {
			r.manifest, r.err = c.run.Manifests.Read(pkg.Path)
		}

		select {
		case c.results <- r:
		case <-c.done:
			return
		}
	}
}

func (c *crawler) enqueue(j job) bool {
	c.mu.Lock()
	if c.visited[j.name] {
		c.mu.Unlock()
		return false
	}
	c.visited[j.name] = true
	c.mu.Unlock()

	atomic.AddInt64(&c.pending, 1)

	go func() {
		select {
		case c.jobs <- j:
		case <-c.done:
		}
	}()
	return true
}

// collect runs on the calling goroutine and is the only place the graph
// is mutated, so no locking is needed around graph writes.
func (c *crawler) collect() error {
	for {
		select {
		case r := <-c.results:
			if err := c.handle(r); err != nil {
				return err
			}
			if atomic.AddInt64(&c.pending, -1) == 0 {
				return nil
			}
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
	}
}

func (c *crawler) handle(r result) error {
	if r.err != nil {
		// A manifest that cannot be read means the workspace picture is
		// incomplete, so the whole build fails.
		return errors.Wrap(errors.GetCode(r.err), r.err, "package %s", r.name)
	}

	c.g.AddNode(Node{Name: r.name, Workspace: true})
	return c.handleDeps(r)
}

func (c *crawler) handleDeps(r result) error {
	deps := make(map[string]string, len(r.manifest.Dependencies))
	for name, spec := range r.manifest.Dependencies {
		deps[name] = spec
	}
	for name, spec := range r.manifest.ImplicitDependencies {
		deps[name] = spec
	}
	if c.opts.IncludeDev {
		for name, spec := range r.manifest.DevDependencies {
			deps[name] = spec
		}
	}

	for name := range deps {
		internal, err := c.run.Inventory.Has(c.ctx, name)
		if err != nil {
			return err
		}
		c.g.AddNode(Node{Name: name, Workspace: internal})
		if err := c.g.AddEdge(Edge{From: r.name, To: name}); err != nil {
			return err
		}
		// External dependencies stay leaves; only workspace packages
		// have manifests of their own to expand.
		if internal {
			c.enqueue(job{name: name})
		}
	}
	return nil
}
