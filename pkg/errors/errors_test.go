package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeManifestCorrupt, "manifest %s: bad JSON", "pkg/a/package.json")
	want := "MANIFEST_CORRUPT: manifest pkg/a/package.json: bad JSON"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	cause := stderrors.New("unexpected end of input")
	wrapped := Wrap(ErrCodeManifestCorrupt, cause, "manifest %s", "pkg/a/package.json")
	if wrapped.Unwrap() != cause {
		t.Error("Unwrap() should return the cause")
	}
	if !stderrors.Is(wrapped, cause) {
		t.Error("errors.Is should find the cause through the wrapper")
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeCycle, "cycle: a -> b -> a")

	if !Is(err, ErrCodeCycle) {
		t.Error("Is should match the error's own code")
	}
	if Is(err, ErrCodeNetwork) {
		t.Error("Is should not match a different code")
	}
	if Is(stderrors.New("plain"), ErrCodeCycle) {
		t.Error("Is should not match a plain error")
	}

	// Code survives wrapping with fmt.Errorf %w.
	outer := fmt.Errorf("reconcile: %w", err)
	if !Is(outer, ErrCodeCycle) {
		t.Error("Is should unwrap through fmt.Errorf")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeSeedNotFound, "x")); got != ErrCodeSeedNotFound {
		t.Errorf("GetCode = %q, want %q", got, ErrCodeSeedNotFound)
	}
	if got := GetCode(stderrors.New("plain")); got != "" {
		t.Errorf("GetCode for plain error = %q, want empty", got)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cycle", New(ErrCodeCycle, "a -> a"), true},
		{"listing", New(ErrCodeListingFailed, "pnpm exited 1"), true},
		{"catalog conflict", New(ErrCodeCatalogConflict, "dep"), true},
		{"network", New(ErrCodeNetwork, "timeout"), false},
		{"not found", New(ErrCodePackageNotFound, "left-pad"), false},
		{"uncoded", stderrors.New("mystery"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodeCatalogConflict, "catalog version mismatch for lodash")
	if got := UserMessage(err); got != "catalog version mismatch for lodash" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(stderrors.New("plain")); got != "plain" {
		t.Errorf("UserMessage plain = %q", got)
	}
}
