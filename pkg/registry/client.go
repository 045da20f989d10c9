// Package registry resolves published package versions from an npm
// registry, with retry, response caching, and a per-process memo so each
// package name is asked about at most once per run.
package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/workgraph/depsync/pkg/cache"
	"github.com/workgraph/depsync/pkg/errors"
	"github.com/workgraph/depsync/pkg/httputil"
)

const (
	// DefaultBaseURL is the public npm registry.
	DefaultBaseURL = "https://registry.npmjs.org"

	// abbreviatedDoc asks the registry for the install metadata format,
	// which carries dist-tags without the full readme payload.
	abbreviatedDoc = "application/vnd.npm.install-v1+json"

	httpTimeout = 10 * time.Second
)

// PackageInfo is the subset of registry metadata depsync needs.
type PackageInfo struct {
	Name   string `json:"name"`
	Latest string `json:"latest"`
}

// Client fetches package metadata from an npm-compatible registry.
// Responses are cached in the configured backend so repeated runs do not
// re-query the network.
type Client struct {
	http    *http.Client
	baseURL string
	cache   cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// BaseURL of the registry. Defaults to [DefaultBaseURL].
	BaseURL string
	// Cache backend for responses. Defaults to a no-op cache.
	Cache cache.Cache
	// Keyer for cache keys. Defaults to the standard layout.
	Keyer cache.Keyer
	// TTL for cached responses. Defaults to 24h.
	TTL time.Duration
}

// NewClient creates a registry client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.TTL == 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Client{
		http:    &http.Client{Timeout: httpTimeout},
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		cache:   opts.Cache,
		keyer:   opts.Keyer,
		ttl:     opts.TTL,
	}
}

// FetchPackage returns registry metadata for pkg. If refresh is true the
// response cache is bypassed. A package that does not exist yields a
// PACKAGE_NOT_FOUND error.
func (c *Client) FetchPackage(ctx context.Context, pkg string, refresh bool) (*PackageInfo, error) {
	pkg = strings.TrimSpace(pkg)
	key := c.keyer.VersionKey(pkg)

	if !refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok {
			var info PackageInfo
			if err := json.Unmarshal(data, &info); err == nil {
				return &info, nil
			}
		}
	}

	var info PackageInfo
	err := httputil.RetryWithBackoff(ctx, func() error {
		return c.fetch(ctx, pkg, &info)
	})
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(info); err == nil {
		_ = c.cache.Set(ctx, key, data, c.ttl)
	}
	return &info, nil
}

// registryResponse is the abbreviated metadata document returned by the
// registry for a package.
type registryResponse struct {
	Name     string `json:"name"`
	DistTags struct {
		Latest string `json:"latest"`
	} `json:"dist-tags"`
}

func (c *Client) fetch(ctx context.Context, pkg string, info *PackageInfo) error {
	// Scoped names keep their slash encoded, per registry convention.
	u := c.baseURL + "/" + url.PathEscape(pkg)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", abbreviatedDoc)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "registry request")}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode, pkg); err != nil {
		return err
	}

	var doc registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "registry response for %s", pkg)
	}
	if doc.DistTags.Latest == "" {
		return errors.New(errors.ErrCodePackageNotFound, "no latest dist-tag for %s", pkg)
	}

	*info = PackageInfo{Name: doc.Name, Latest: doc.DistTags.Latest}
	return nil
}

func checkStatus(code int, pkg string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodePackageNotFound, "npm package %s", pkg)
	case code >= 500:
		return &httputil.RetryableError{Err: errors.New(errors.ErrCodeNetwork, "registry status %d for %s", code, pkg)}
	default:
		return errors.New(errors.ErrCodeNetwork, "registry status %d for %s", code, pkg)
	}
}
