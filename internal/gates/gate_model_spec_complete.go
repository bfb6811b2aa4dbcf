package gates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/taskswarm/supervisor/internal/core"
)

// ModelSpecRequiredSections are the nine named Markdown sections a
// Markdown model spec must carry, each non-empty.
var ModelSpecRequiredSections = []string{
	"## Overview",
	"## Assumptions",
	"## State Variables",
	"## Parameters",
	"## Equations",
	"## Initialization",
	"## Calibration",
	"## Validation",
	"## Limitations",
}

// ModelSpecCompleteGate validates the model specification when mode is
// modeling or hybrid.
type ModelSpecCompleteGate struct {
	Candidates []string
	Mode       ProjectMode
}

func (g *ModelSpecCompleteGate) Name() string { return "model_spec_complete" }

func (g *ModelSpecCompleteGate) Run(_ context.Context, root, _ string) core.GateResult {
	if g.Mode != ModeModeling && g.Mode != ModeHybrid {
		return core.GateResult{Gate: g.Name(), Status: core.GateSkipped, Message: fmt.Sprintf("mode=%s", g.Mode)}
	}

	var found string
	for _, c := range g.Candidates {
		if _, err := os.Stat(filepath.Join(root, c)); err == nil {
			found = c
			break
		}
	}
	if found == "" {
		return core.GateResult{
			Gate:    g.Name(),
			Status:  core.GateFailed,
			Message: "none of the candidate model spec paths exist",
			Details: g.Candidates,
		}
	}

	raw, err := os.ReadFile(filepath.Join(root, found))
	if err != nil {
		return core.GateResult{Gate: g.Name(), Status: core.GateFailed, Message: err.Error()}
	}

	ext := strings.ToLower(filepath.Ext(found))
	if ext == ".yaml" || ext == ".yml" {
		if len(strings.TrimSpace(string(raw))) == 0 {
			return core.GateResult{Gate: g.Name(), Status: core.GateFailed, Message: fmt.Sprintf("%s is empty", found)}
		}
		return core.GateResult{Gate: g.Name(), Status: core.GatePassed, Message: found}
	}

	text := string(raw)
	var missing []string
	for _, heading := range ModelSpecRequiredSections {
		body, ok := extractSection(text, heading)
		if !ok || !hasAlnumLine(body) {
			missing = append(missing, heading)
		}
	}
	if len(missing) > 0 {
		return core.GateResult{Gate: g.Name(), Status: core.GateFailed, Message: found, Details: missing}
	}
	return core.GateResult{Gate: g.Name(), Status: core.GatePassed, Message: found}
}
