package gates

import (
	"context"
	"os"
	"path/filepath"

	"github.com/taskswarm/supervisor/internal/core"
)

// baseRequiredPaths is the always-on floor, taken directly from the
// original implementation's quality_gates.py stub.
var baseRequiredPaths = []string{"docs/protocol.md", "AGENTS.md", ".orchestrator"}

// RepoStructureGate asserts a declared set of required paths exists. The
// set is extended when mode includes empirical work (raw data pulled and
// manifested) and again when mode includes modeling work (a model spec
// and panel schema on disk).
type RepoStructureGate struct {
	EmpiricalExtraPaths []string
	ModelingExtraPaths  []string
	Mode                ProjectMode
}

func (g *RepoStructureGate) Name() string { return "repo_structure" }

func (g *RepoStructureGate) Run(_ context.Context, root, _ string) core.GateResult {
	required := append([]string{}, baseRequiredPaths...)
	if g.Mode == ModeEmpirical || g.Mode == ModeHybrid {
		required = append(required, g.EmpiricalExtraPaths...)
	}
	if g.Mode == ModeModeling || g.Mode == ModeHybrid {
		required = append(required, g.ModelingExtraPaths...)
	}

	var missing []string
	for _, p := range required {
		if _, err := os.Stat(filepath.Join(root, p)); err != nil {
			missing = append(missing, p)
		}
	}

	if len(missing) > 0 {
		return core.GateResult{
			Gate:    g.Name(),
			Status:  core.GateFailed,
			Details: missing,
		}
	}
	return core.GateResult{Gate: g.Name(), Status: core.GatePassed}
}
