package reconcile

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"os/exec"
	"strings"

	"github.com/workgraph/depsync/pkg/errors"
)

// Report is the static analyzer's verdict on one package: dependencies
// it declares but never references, and names it references but never
// declares.
type Report struct {
	Unused  []string
	Missing []string
}

// Analyzer inspects a package's source tree. Implementations are treated
// as black boxes; the engine only consumes the resulting Report.
type Analyzer interface {
	Analyze(ctx context.Context, root string, ignores []string) (*Report, error)
}

// DepcheckAnalyzer shells out to depcheck, the standard unused-dependency
// scanner for JavaScript workspaces, and parses its JSON output.
type DepcheckAnalyzer struct{}

// NewDepcheckAnalyzer creates the default analyzer.
func NewDepcheckAnalyzer() *DepcheckAnalyzer { return &DepcheckAnalyzer{} }

// depcheckOutput is the subset of depcheck's --json format the engine
// needs: "dependencies" lists declared-but-unused names and "missing"
// keys are referenced-but-undeclared names.
type depcheckOutput struct {
	Dependencies []string                   `json:"dependencies"`
	Missing      map[string]json.RawMessage `json:"missing"`
}

// Analyze runs depcheck against the package root.
func (a *DepcheckAnalyzer) Analyze(ctx context.Context, root string, ignores []string) (*Report, error) {
	args := []string{"depcheck", root, "--json"}
	if len(ignores) > 0 {
		args = append(args, "--ignores="+strings.Join(ignores, ","))
	}

	cmd := exec.CommandContext(ctx, "npx", args...)
	out, err := cmd.Output()
	// depcheck exits non-zero when it finds issues; that is its normal
	// "findings present" signal, so only an empty output is a failure.
	if err != nil && len(out) == 0 {
		msg := err.Error()
		var exitErr *exec.ExitError
		if goerrors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			msg = strings.TrimSpace(string(exitErr.Stderr))
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "analyzer for %s: %s", root, msg)
	}

	return parseDepcheck(out, root)
}

func parseDepcheck(out []byte, root string) (*Report, error) {
	var parsed depcheckOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "analyzer output for %s", root)
	}

	r := &Report{Unused: parsed.Dependencies}
	for name := range parsed.Missing {
		r.Missing = append(r.Missing, name)
	}
	return r, nil
}
