package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/workgraph/depsync/pkg/cache"
	"github.com/workgraph/depsync/pkg/errors"
)

func registryDoc(name, latest string) []byte {
	b, _ := json.Marshal(map[string]any{
		"name":      name,
		"dist-tags": map[string]string{"latest": latest},
	})
	return b
}

func TestFetchPackage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != abbreviatedDoc {
			t.Errorf("Accept = %q, want abbreviated doc", got)
		}
		if r.URL.Path != "/react" {
			http.NotFound(w, r)
			return
		}
		w.Write(registryDoc("react", "18.3.1"))
	}))
	defer server.Close()

	c := NewClient(ClientOptions{BaseURL: server.URL})
	info, err := c.FetchPackage(context.Background(), "react", false)
	if err != nil {
		t.Fatalf("FetchPackage() error = %v", err)
	}
	if info.Latest != "18.3.1" {
		t.Errorf("Latest = %q, want 18.3.1", info.Latest)
	}
}

func TestFetchPackage_ScopedNameEscaped(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		w.Write(registryDoc("@types/node", "22.0.0"))
	}))
	defer server.Close()

	c := NewClient(ClientOptions{BaseURL: server.URL})
	if _, err := c.FetchPackage(context.Background(), "@types/node", false); err != nil {
		t.Fatalf("FetchPackage() error = %v", err)
	}
	if path != "/@types%2Fnode" {
		t.Errorf("request path = %q, want /@types%%2Fnode", path)
	}
}

func TestFetchPackage_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := NewClient(ClientOptions{BaseURL: server.URL})
	_, err := c.FetchPackage(context.Background(), "no-such-pkg", false)
	if !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("FetchPackage() error = %v, want PACKAGE_NOT_FOUND", err)
	}
}

func TestFetchPackage_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(registryDoc("react", "18.3.1"))
	}))
	defer server.Close()

	c := NewClient(ClientOptions{BaseURL: server.URL})
	info, err := c.FetchPackage(context.Background(), "react", false)
	if err != nil {
		t.Fatalf("FetchPackage() error = %v", err)
	}
	if info.Latest != "18.3.1" {
		t.Errorf("Latest = %q, want 18.3.1", info.Latest)
	}
	if calls.Load() != 2 {
		t.Errorf("server handled %d requests, want 2", calls.Load())
	}
}

func TestFetchPackage_UsesCacheBackend(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write(registryDoc("react", "18.3.1"))
	}))
	defer server.Close()

	backend, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	c := NewClient(ClientOptions{BaseURL: server.URL, Cache: backend, TTL: time.Hour})
	for range 3 {
		if _, err := c.FetchPackage(context.Background(), "react", false); err != nil {
			t.Fatalf("FetchPackage() error = %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("server handled %d requests, want 1 (rest cached)", calls.Load())
	}

	// refresh bypasses the cache.
	if _, err := c.FetchPackage(context.Background(), "react", true); err != nil {
		t.Fatalf("FetchPackage(refresh) error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server handled %d requests after refresh, want 2", calls.Load())
	}
}

func TestFetchPackage_MissingDistTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"weird","dist-tags":{}}`))
	}))
	defer server.Close()

	c := NewClient(ClientOptions{BaseURL: server.URL})
	_, err := c.FetchPackage(context.Background(), "weird", false)
	if !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("FetchPackage() error = %v, want PACKAGE_NOT_FOUND", err)
	}
}
