package reconcile

import "testing"

func TestMatcher_Exact(t *testing.T) {
	m := NewMatcher("prettier", false)

	if !m.Matches("prettier") {
		t.Error("exact matcher rejected its own literal")
	}
	if m.Matches("prettier-plugin-svelte") {
		t.Error("exact matcher accepted a superstring")
	}
	if m.Matches("Prettier") {
		t.Error("matching is case-sensitive")
	}
}

func TestMatcher_Regex(t *testing.T) {
	m := NewMatcher("^@types/", true)

	if !m.Matches("@types/node") {
		t.Error("regex matcher rejected @types/node")
	}
	if m.Matches("not-@types/node") {
		t.Error("anchored regex matched mid-string")
	}
}

func TestMatcher_InvalidRegexFallsBackToContains(t *testing.T) {
	// "(" does not compile; the matcher must degrade to substring
	// containment instead of erroring.
	m := NewMatcher("eslint(", true)

	if !m.Matches("eslint(-config") {
		t.Error("fallback matcher rejected a containing name")
	}
	if m.Matches("eslint") {
		t.Error("fallback matcher accepted a non-containing name")
	}
}

func TestMatcher_ExactIsSubsetOfRegex(t *testing.T) {
	// Filtering by exact match selects a subset of what the same literal
	// selects as a regular expression.
	names := []string{"prettier", "prettier-plugin-svelte", "eslint", "xprettierx"}
	exact := NewMatcher("prettier", false)
	regex := NewMatcher("prettier", true)

	for _, name := range names {
		if exact.Matches(name) && !regex.Matches(name) {
			t.Errorf("exact matched %q but regex did not", name)
		}
	}
	if !regex.Matches("prettier-plugin-svelte") {
		t.Error("unanchored regex should match superstrings")
	}
	if exact.Matches("prettier-plugin-svelte") {
		t.Error("exact match should not match superstrings")
	}
}

func TestPatterns_AnyMatch(t *testing.T) {
	ps := NewPatterns([]string{"eslint", "prettier"}, false)

	if !ps.Matches("prettier") {
		t.Error("set rejected a listed name")
	}
	if ps.Matches("react") {
		t.Error("set accepted an unlisted name")
	}
	if NewPatterns(nil, false).Matches("anything") {
		t.Error("empty set matched a name")
	}
}
