package gates

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/taskswarm/supervisor/internal/core"
)

// ProjectContractGate checks that the top-level configuration file exists
// and declares a mode in the valid set (always on).
type ProjectContractGate struct {
	ContractPath string
}

func (g *ProjectContractGate) Name() string { return "project_contract" }

func (g *ProjectContractGate) Run(_ context.Context, root, _ string) core.GateResult {
	path := filepath.Join(root, g.ContractPath)
	contract := readProjectContract(path)
	if !contract.exists {
		return core.GateResult{
			Gate:    g.Name(),
			Status:  core.GateFailed,
			Message: fmt.Sprintf("project contract not found at %s", g.ContractPath),
		}
	}
	if !ValidProjectMode(contract.mode) {
		return core.GateResult{
			Gate:    g.Name(),
			Status:  core.GateFailed,
			Message: fmt.Sprintf("mode %q is not one of empirical, modeling, hybrid", contract.mode),
		}
	}
	return core.GateResult{
		Gate:    g.Name(),
		Status:  core.GatePassed,
		Message: fmt.Sprintf("mode=%s", contract.mode),
	}
}
