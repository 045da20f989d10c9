package registry

import (
	"context"
	goerrors "errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/workgraph/depsync/pkg/errors"
)

// Fetcher is the registry surface the Resolver needs. *Client satisfies it.
type Fetcher interface {
	FetchPackage(ctx context.Context, pkg string, refresh bool) (*PackageInfo, error)
}

// Resolver answers "what is the latest published version of X" at most
// once per name per process. Results, including definitive failures, are
// memoized: a package that could not be resolved once is not asked about
// again during the run. Lookups aborted by context cancellation are the
// exception, they stay unmemoized so a later retry gets a real answer.
type Resolver struct {
	fetcher Fetcher
	refresh bool

	group singleflight.Group

	mu   sync.Mutex
	memo map[string]outcome
}

type outcome struct {
	version string
	err     error
}

// NewResolver creates a Resolver over the given fetcher. When refresh is
// true the underlying response cache is bypassed on first lookup.
func NewResolver(fetcher Fetcher, refresh bool) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		refresh: refresh,
		memo:    make(map[string]outcome),
	}
}

// Latest returns the latest published version of name. A name that is
// not published (or whose lookup failed) returns ok=false with the
// causing error. Concurrent callers for the same name share one fetch.
func (r *Resolver) Latest(ctx context.Context, name string) (version string, ok bool, err error) {
	r.mu.Lock()
	if o, found := r.memo[name]; found {
		r.mu.Unlock()
		return o.version, o.err == nil, o.err
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(name, func() (any, error) {
		info, err := r.fetcher.FetchPackage(ctx, name, r.refresh)
		if err != nil {
			return "", err
		}
		return info.Latest, nil
	})

	if canceled(err) {
		// Not a verdict on the package, so nothing to remember.
		return "", false, err
	}

	o := outcome{err: err}
	if err == nil {
		o.version = v.(string)
	}
	r.mu.Lock()
	r.memo[name] = o
	r.mu.Unlock()

	return o.version, o.err == nil, o.err
}

func canceled(err error) bool {
	return goerrors.Is(err, context.Canceled) || goerrors.Is(err, context.DeadlineExceeded)
}

// NotFound reports whether err marks a package absent from the registry,
// as opposed to a transport failure.
func NotFound(err error) bool {
	return errors.Is(err, errors.ErrCodePackageNotFound)
}
