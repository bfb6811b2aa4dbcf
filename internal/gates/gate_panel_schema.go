package gates

import (
	"context"
	"fmt"
	"os"

	"github.com/taskswarm/supervisor/internal/core"
)

// PanelSchemaNonemptyGate requires the panel schema file to exist and
// declare at least one top-level field, when the project produces an
// empirical panel (mode != modeling, per spec.md §9 decision (c)).
type PanelSchemaNonemptyGate struct {
	SchemaPath string
	Mode       ProjectMode
}

func (g *PanelSchemaNonemptyGate) Name() string { return "panel_schema_nonempty" }

func (g *PanelSchemaNonemptyGate) Run(_ context.Context, root, _ string) core.GateResult {
	if g.Mode == ModeModeling {
		return core.GateResult{Gate: g.Name(), Status: core.GateSkipped, Message: "modeling-only project has no panel"}
	}

	raw, err := os.ReadFile(joinRoot(root, g.SchemaPath))
	if err != nil {
		return core.GateResult{Gate: g.Name(), Status: core.GateFailed, Message: fmt.Sprintf("read %s: %v", g.SchemaPath, err)}
	}
	fields := parseTopLevelKV(string(raw))
	if len(fields) == 0 {
		return core.GateResult{Gate: g.Name(), Status: core.GateFailed, Message: "schema declares no top-level fields"}
	}
	return core.GateResult{
		Gate:    g.Name(),
		Status:  core.GatePassed,
		Message: fmt.Sprintf("%d fields declared", len(fields)),
	}
}
