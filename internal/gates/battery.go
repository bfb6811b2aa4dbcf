// Package gates implements the gate battery: the fixed catalog of
// deterministic, side-effect-free repository checks described in spec.md
// §4.3, each independently runnable and individually skippable.
package gates

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taskswarm/supervisor/internal/config"
	"github.com/taskswarm/supervisor/internal/core"
)

// candidateBaseRefs are tried in order, stopping at the first ref that
// resolves. GATE_BASE_REF (or cfg.BaseRefEnvVar) is checked ahead of
// these by Battery.resolveBaseRef.
var candidateBaseRefs = []string{"origin/main", "main"}

// Battery builds and runs the full gate catalog for a repository rooted
// at Root, using Git to resolve the base ref diff-scoped gates need.
type Battery struct {
	Root       string
	ControlDir string
	Git        core.GitClient
	Cfg        config.GatesConfig
	Mode       ProjectMode
}

// All constructs every gate in the catalog, in the fixed order spec.md
// §4.3 lists them.
func (b *Battery) All() []core.GateRunner {
	return []core.GateRunner{
		&ProjectContractGate{ContractPath: b.Cfg.ProjectContractPath},
		&RepoStructureGate{
			Mode:                b.Mode,
			EmpiricalExtraPaths: []string{b.Cfg.RawManifestDir},
			ModelingExtraPaths:  []string{b.Cfg.PanelSchemaPath},
		},
		&EnvironmentGate{},
		&ProtocolCompleteGate{DocPath: b.Cfg.ProtocolDocPath, Mode: b.Mode},
		&ModelSpecCompleteGate{Candidates: b.Cfg.ModelSpecCandidates, Mode: b.Mode},
		&WorkstreamsCompleteGate{TablePath: b.Cfg.WorkstreamsTablePath},
		&TaskHygieneGate{ControlDir: b.ControlDir},
		&TaskDependenciesGate{ControlDir: b.ControlDir},
		&ContractChangeDisciplineGate{
			Git:           b.Git,
			ContractsDir:  b.Cfg.ContractsDir,
			DecisionsPath: b.Cfg.ContractsDecisionsPath,
			ChangelogPath: b.Cfg.ContractsChangelogPath,
			ProtocolPath:  b.Cfg.ProtocolDocPath,
		},
		&RegistryChangeDisciplineGate{
			Git:           b.Git,
			RegistryDir:   b.Cfg.RegistryDir,
			ChangelogPath: b.Cfg.RegistryChangelogPath,
		},
		&RawManifestValidityGate{ManifestDir: b.Cfg.RawManifestDir},
		&PanelSchemaNonemptyGate{SchemaPath: b.Cfg.PanelSchemaPath, Mode: b.Mode},
		&SamplePanelIntegrityGate{SamplePath: b.Cfg.SamplePanelPath},
	}
}

// selected filters All() by the skip/only lists, preserving catalog order.
func (b *Battery) selected(only, skip []string) []core.GateRunner {
	onlySet := toSet(only)
	skipSet := toSet(skip)

	var out []core.GateRunner
	for _, g := range b.All() {
		if len(onlySet) > 0 && !onlySet[g.Name()] {
			continue
		}
		if skipSet[g.Name()] {
			continue
		}
		out = append(out, g)
	}
	return out
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// resolveBaseRef finds the base ref diff-scoped gates should compare
// against HEAD: the BaseRefEnvVar environment override if resolvable,
// else the first of candidateBaseRefs to resolve, else "" (meaning
// diff-scoped gates must skip rather than fail).
func (b *Battery) resolveBaseRef(ctx context.Context, envOverride string) string {
	candidates := make([]string, 0, 1+len(candidateBaseRefs))
	if envOverride != "" {
		candidates = append(candidates, envOverride)
	}
	candidates = append(candidates, candidateBaseRefs...)

	for _, ref := range candidates {
		if _, err := b.Git.RevParse(ctx, ref); err == nil {
			return ref
		}
	}
	return ""
}

// Run executes every selected gate concurrently and returns results in
// fixed catalog order (independent of completion order), matching
// spec.md §4.3's requirement that the battery's output is deterministic
// given fixed repository state.
func (b *Battery) Run(ctx context.Context, envBaseRefOverride string, only, skip []string) ([]core.GateResult, error) {
	gateRunners := b.selected(only, skip)
	baseRef := b.resolveBaseRef(ctx, envBaseRefOverride)

	results := make([]core.GateResult, len(gateRunners))
	g, gctx := errgroup.WithContext(ctx)
	for i, runner := range gateRunners {
		i, runner := i, runner
		g.Go(func() error {
			start := time.Now()
			res := runner.Run(gctx, b.Root, baseRef)
			res.Duration = time.Since(start)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Failed reports whether any result in results is a failure.
func Failed(results []core.GateResult) bool {
	for _, r := range results {
		if r.Status == core.GateFailed {
			return true
		}
	}
	return false
}

// SortedNames returns the names of results in alphabetical order, useful
// for stable CLI/log output independent of catalog order.
func SortedNames(results []core.GateResult) []string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Gate
	}
	sort.Strings(names)
	return names
}
