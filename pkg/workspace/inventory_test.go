package workspace

import (
	"context"
	"fmt"
	"testing"

	"github.com/workgraph/depsync/pkg/errors"
)

func TestInventoryListCachesResult(t *testing.T) {
	calls := 0
	inv := NewInventoryWithLister("/ws", func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte(`[
			{"name": "acme-monorepo", "path": "/ws", "private": true},
			{"name": "@acme/app", "path": "/ws/packages/app"},
			{"name": "@acme/lib", "path": "/ws/packages/lib"}
		]`), nil
	})

	ctx := context.Background()
	first, err := inv.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("List returned %d packages, want 3", len(first))
	}

	second, err := inv.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("listing command ran %d times, want 1", calls)
	}
	if len(second) != len(first) {
		t.Error("cached listing should match the first")
	}

	p, ok, err := inv.Lookup(ctx, "@acme/lib")
	if err != nil || !ok {
		t.Fatalf("Lookup = %v, %v", ok, err)
	}
	if p.Path != "/ws/packages/lib" {
		t.Errorf("Lookup path = %q", p.Path)
	}

	if ok, _ := inv.Has(ctx, "left-pad"); ok {
		t.Error("Has should be false for external names")
	}
}

func TestInventoryListFailureIsFatalAndCached(t *testing.T) {
	calls := 0
	inv := NewInventoryWithLister("/ws", func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, fmt.Errorf("exit status 1")
	})

	ctx := context.Background()
	if _, err := inv.List(ctx); !errors.Is(err, errors.ErrCodeListingFailed) {
		t.Errorf("List error = %v, want LISTING_FAILED", err)
	}
	// The failure is cached too; there is no partial workspace view to
	// retry into.
	_, _ = inv.List(ctx)
	if calls != 1 {
		t.Errorf("listing command ran %d times, want 1", calls)
	}
}

func TestInventoryMalformedOutput(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"not json", "pnpm: command output garbage"},
		{"missing fields", `[{"name": "", "path": ""}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := NewInventoryWithLister("/ws", func(ctx context.Context) ([]byte, error) {
				return []byte(tt.out), nil
			})
			if _, err := inv.List(context.Background()); !errors.Is(err, errors.ErrCodeListingFailed) {
				t.Errorf("List error = %v, want LISTING_FAILED", err)
			}
		})
	}
}

func TestNewRunContext(t *testing.T) {
	rc := NewRunContext("/ws")
	if rc.ID == "" {
		t.Error("run context should carry an ID")
	}
	if rc.Root() != "/ws" {
		t.Errorf("Root() = %q", rc.Root())
	}
	if rc.Manifests == nil || rc.Inventory == nil {
		t.Error("run context should carry inventory and manifest caches")
	}
	if NewRunContext("/ws").ID == rc.ID {
		t.Error("run IDs should be unique per run")
	}
}
