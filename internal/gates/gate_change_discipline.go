package gates

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/taskswarm/supervisor/internal/core"
)

// changeDisciplineMissing computes which of requiredPaths are absent from
// changed, given that a change under triggerDir (or to one of
// triggerExtraPaths) obligates every path in requiredPaths to also be
// present in changed. Paths in excludedFromTrigger never themselves
// trigger the requirement (a changelog edit alone doesn't require itself).
// Returns nil if the requirement was never triggered.
func changeDisciplineMissing(changed []string, triggerDir string, triggerExtraPaths, excludedFromTrigger, requiredPaths []string) []string {
	changedSet := make(map[string]bool, len(changed))
	for _, p := range changed {
		changedSet[filepath.ToSlash(p)] = true
	}
	excluded := make(map[string]bool, len(excludedFromTrigger))
	for _, p := range excludedFromTrigger {
		excluded[p] = true
	}

	triggered := false
	for p := range changedSet {
		if excluded[p] {
			continue
		}
		if strings.HasPrefix(p, triggerDir+"/") {
			triggered = true
			break
		}
	}
	if !triggered {
		for _, extra := range triggerExtraPaths {
			if changedSet[extra] {
				triggered = true
				break
			}
		}
	}
	if !triggered {
		return nil
	}

	var missing []string
	for _, req := range requiredPaths {
		if !changedSet[req] {
			missing = append(missing, req)
		}
	}
	sort.Strings(missing)
	return missing
}

// ContractChangeDisciplineGate requires that a change touching the
// contracts directory (or the protocol doc) also touches the contracts
// decisions log and changelog.
type ContractChangeDisciplineGate struct {
	Git           core.GitClient
	ContractsDir  string
	DecisionsPath string
	ChangelogPath string
	ProtocolPath  string
}

func (g *ContractChangeDisciplineGate) Name() string { return "contract_change_discipline" }

func (g *ContractChangeDisciplineGate) Run(ctx context.Context, _, baseRef string) core.GateResult {
	if baseRef == "" {
		return core.GateResult{Gate: g.Name(), Status: core.GateSkipped, Message: "no base ref resolvable"}
	}
	changed, err := g.Git.DiffFiles(ctx, baseRef, "HEAD")
	if err != nil {
		return core.GateResult{Gate: g.Name(), Status: core.GateSkipped, Message: fmt.Sprintf("diff failed: %v", err)}
	}
	missing := changeDisciplineMissing(
		changed,
		g.ContractsDir,
		[]string{g.ProtocolPath},
		[]string{g.DecisionsPath, g.ChangelogPath},
		[]string{g.ChangelogPath, g.DecisionsPath},
	)
	if missing == nil {
		return core.GateResult{Gate: g.Name(), Status: core.GatePassed}
	}
	if len(missing) == 0 {
		return core.GateResult{Gate: g.Name(), Status: core.GatePassed, Message: "contracts changed with required updates"}
	}
	return core.GateResult{
		Gate:    g.Name(),
		Status:  core.GateFailed,
		Message: "missing_required_updates",
		Details: missing,
	}
}

// RegistryChangeDisciplineGate requires that a change touching the
// registry directory also touches the registry's own changelog.
type RegistryChangeDisciplineGate struct {
	Git           core.GitClient
	RegistryDir   string
	ChangelogPath string
}

func (g *RegistryChangeDisciplineGate) Name() string { return "registry_change_discipline" }

func (g *RegistryChangeDisciplineGate) Run(ctx context.Context, _, baseRef string) core.GateResult {
	if baseRef == "" {
		return core.GateResult{Gate: g.Name(), Status: core.GateSkipped, Message: "no base ref resolvable"}
	}
	changed, err := g.Git.DiffFiles(ctx, baseRef, "HEAD")
	if err != nil {
		return core.GateResult{Gate: g.Name(), Status: core.GateSkipped, Message: fmt.Sprintf("diff failed: %v", err)}
	}
	missing := changeDisciplineMissing(
		changed,
		g.RegistryDir,
		nil,
		[]string{g.ChangelogPath},
		[]string{g.ChangelogPath},
	)
	if missing == nil {
		return core.GateResult{Gate: g.Name(), Status: core.GatePassed}
	}
	if len(missing) == 0 {
		return core.GateResult{Gate: g.Name(), Status: core.GatePassed, Message: "registry changed with required updates"}
	}
	return core.GateResult{
		Gate:    g.Name(),
		Status:  core.GateFailed,
		Message: "missing_required_updates",
		Details: missing,
	}
}
