package gates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/taskswarm/supervisor/internal/core"
)

// ProtocolRequiredSections are the four named Markdown sections every
// protocol document must carry, each with at least one alphanumeric line
// of content before the next "## " heading or EOF.
var ProtocolRequiredSections = []string{"## Overview", "## Inputs", "## Computation", "## Validation"}

var (
	protocolNameLine    = regexp.MustCompile(`(?m)^\s*-\s*Name:\s*(.+)$`)
	protocolFormulaLine = regexp.MustCompile(`(?m)^\s*-\s*Formula(?:\s*\([^)]*\))?:\s*(.+)$`)
	protocolUnitsLine   = regexp.MustCompile(`(?m)^\s*-\s*Units:\s*(.+)$`)
	protocolModeLine    = regexp.MustCompile(`(?m)^\s*-\s*Mode:\s*(.+)$`)
	alnumLine           = regexp.MustCompile(`[A-Za-z0-9]`)
)

// ProtocolCompleteGate validates docs/protocol.md when mode != modeling.
type ProtocolCompleteGate struct {
	DocPath string
	Mode    ProjectMode
}

func (g *ProtocolCompleteGate) Name() string { return "protocol_complete" }

func (g *ProtocolCompleteGate) Run(_ context.Context, root, _ string) core.GateResult {
	if g.Mode == ModeModeling {
		return core.GateResult{Gate: g.Name(), Status: core.GateSkipped, Message: "mode=modeling"}
	}

	raw, err := os.ReadFile(filepath.Join(root, g.DocPath))
	if err != nil {
		return core.GateResult{Gate: g.Name(), Status: core.GateFailed, Message: fmt.Sprintf("cannot read %s: %v", g.DocPath, err)}
	}
	text := string(raw)

	var problems []string
	if m := protocolNameLine.FindStringSubmatch(text); m == nil || strings.TrimSpace(m[1]) == "" {
		problems = append(problems, "missing or blank Name field")
	}
	if m := protocolFormulaLine.FindStringSubmatch(text); m == nil || strings.TrimSpace(m[1]) == "" {
		problems = append(problems, "missing or blank Formula field")
	}
	if m := protocolUnitsLine.FindStringSubmatch(text); m == nil || strings.TrimSpace(m[1]) == "" {
		problems = append(problems, "missing or blank Units field")
	}
	if m := protocolModeLine.FindStringSubmatch(text); m == nil {
		problems = append(problems, "missing Mode line")
	} else if strings.TrimSpace(m[1]) != string(g.Mode) {
		problems = append(problems, fmt.Sprintf("Mode line %q does not match project mode %q", strings.TrimSpace(m[1]), g.Mode))
	}

	for _, heading := range ProtocolRequiredSections {
		body, ok := extractSection(text, heading)
		if !ok {
			problems = append(problems, fmt.Sprintf("missing section %q", heading))
			continue
		}
		if !hasAlnumLine(body) {
			problems = append(problems, fmt.Sprintf("section %q has no content", heading))
		}
	}

	if len(problems) > 0 {
		return core.GateResult{Gate: g.Name(), Status: core.GateFailed, Details: problems}
	}
	return core.GateResult{Gate: g.Name(), Status: core.GatePassed}
}

// extractSection returns the body text between a "## heading" line and
// the next "## " heading or EOF.
func extractSection(text, heading string) (string, bool) {
	idx := strings.Index(text, heading)
	if idx < 0 {
		return "", false
	}
	rest := text[idx+len(heading):]
	if next := strings.Index(rest, "\n## "); next >= 0 {
		return rest[:next], true
	}
	return rest, true
}

func hasAlnumLine(body string) bool {
	for _, line := range strings.Split(body, "\n") {
		if alnumLine.MatchString(line) {
			return true
		}
	}
	return false
}
