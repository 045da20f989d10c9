package depgraph

import (
	"strings"
	"testing"
)

func TestToDOT(t *testing.T) {
	g := buildTriangle()
	dot := ToDOT(g)

	if !strings.HasPrefix(dot, "digraph deps {") {
		t.Errorf("DOT output does not open a digraph: %q", dot[:min(40, len(dot))])
	}
	for _, want := range []string{`"app" -> "lib";`, `"lib" -> "react";`} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing edge %q", want)
		}
	}
	// External leaves are dashed, workspace packages are not.
	for _, line := range strings.Split(dot, "\n") {
		switch {
		case strings.Contains(line, `"react" [`):
			if !strings.Contains(line, "dashed") {
				t.Errorf("external node not dashed: %q", line)
			}
		case strings.Contains(line, `"app" [`):
			if strings.Contains(line, "dashed") {
				t.Errorf("workspace node dashed: %q", line)
			}
		}
	}
}

func TestToDOT_Empty(t *testing.T) {
	dot := ToDOT(New())
	if !strings.Contains(dot, "digraph deps {") || !strings.HasSuffix(dot, "}\n") {
		t.Errorf("empty graph produced malformed DOT: %q", dot)
	}
}
