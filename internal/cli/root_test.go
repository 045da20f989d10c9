package cli

import (
	"io"
	"testing"
)

func TestRootCommandSubcommands(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()

	want := []string{"reconcile", "catalog", "graph", "serve", "cache", "completion"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command is missing subcommand %q", name)
		}
	}
}

func TestRootCommandDefaults(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()

	if root.Use != "depsync" {
		t.Errorf("Use = %q, want %q", root.Use, "depsync")
	}
	if !root.SilenceUsage {
		t.Error("SilenceUsage should be set")
	}
	if f := root.PersistentFlags().Lookup("root"); f == nil {
		t.Error("missing persistent --root flag")
	} else if f.DefValue != "." {
		t.Errorf("--root default = %q, want %q", f.DefValue, ".")
	}
}

func TestGraphCommandSubcommands(t *testing.T) {
	c := New(io.Discard, LogInfo)
	graph := c.graphCommand()

	want := map[string]bool{"order": false, "cycles": false, "why": false, "export": false}
	for _, sub := range graph.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("graph command is missing subcommand %q", name)
		}
	}
}
