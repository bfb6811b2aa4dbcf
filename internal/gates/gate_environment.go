package gates

import (
	"context"
	"os"
	"path/filepath"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/envinfo"
)

// pinnedEnvironmentCandidates are the descriptor files that count as a
// pinned-environment declaration for a data/research repository.
var pinnedEnvironmentCandidates = []string{
	"requirements.txt",
	"environment.yml",
	"environment.yaml",
	"Pipfile.lock",
	"poetry.lock",
	"uv.lock",
}

// EnvironmentGate asserts at least one pinned-environment descriptor file
// exists, and reports runtime version strings for operator visibility.
type EnvironmentGate struct{}

func (g *EnvironmentGate) Name() string { return "environment" }

func (g *EnvironmentGate) Run(_ context.Context, root, _ string) core.GateResult {
	var found string
	for _, candidate := range pinnedEnvironmentCandidates {
		if _, err := os.Stat(filepath.Join(root, candidate)); err == nil {
			found = candidate
			break
		}
	}

	facts := envinfo.Collect()
	details := make([]string, 0, len(facts)+1)
	if found != "" {
		details = append(details, "pinned_environment_file="+found)
	}
	for k, v := range facts {
		if v != "" {
			details = append(details, k+"="+v)
		}
	}

	if found == "" {
		return core.GateResult{
			Gate:    g.Name(),
			Status:  core.GateFailed,
			Message: "no pinned-environment descriptor file found",
			Details: details,
		}
	}
	return core.GateResult{Gate: g.Name(), Status: core.GatePassed, Details: details}
}
