//go:build integration

package registry

import (
	"context"
	"testing"
	"time"
)

func TestFetchPackage_LiveRegistry(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := NewClient(ClientOptions{})
	info, err := c.FetchPackage(ctx, "react", true)
	if err != nil {
		t.Fatalf("FetchPackage(react) error = %v", err)
	}
	if info.Latest == "" {
		t.Error("FetchPackage(react) returned empty latest version")
	}

	_, err = c.FetchPackage(ctx, "this-package-should-not-exist-depsync-test", true)
	if err == nil {
		t.Error("FetchPackage() on nonsense name succeeded")
	}
}
