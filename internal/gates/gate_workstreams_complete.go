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

var workstreamRowPattern = regexp.MustCompile(`^\s*\|\s*W\d+\s`)

// WorkstreamsCompleteGate validates the workstreams table (always on).
type WorkstreamsCompleteGate struct {
	TablePath string
}

func (g *WorkstreamsCompleteGate) Name() string { return "workstreams_complete" }

func (g *WorkstreamsCompleteGate) Run(_ context.Context, root, _ string) core.GateResult {
	raw, err := os.ReadFile(filepath.Join(root, g.TablePath))
	if err != nil {
		return core.GateResult{Gate: g.Name(), Status: core.GateFailed, Message: fmt.Sprintf("cannot read %s: %v", g.TablePath, err)}
	}

	var rowCount int
	var problems []string
	for i, line := range strings.Split(string(raw), "\n") {
		if !workstreamRowPattern.MatchString(line) {
			continue
		}
		rowCount++
		cells := splitTableRow(line)
		if len(cells) < 6 {
			problems = append(problems, fmt.Sprintf("line %d: row has %d cells, need >= 6", i+1, len(cells)))
			continue
		}
		for j := 0; j < 4; j++ {
			if strings.TrimSpace(cells[j]) == "" {
				problems = append(problems, fmt.Sprintf("line %d: cell %d is blank", i+1, j+1))
			}
		}
	}
	if rowCount == 0 {
		problems = append(problems, "no workstream rows found")
	}

	if len(problems) > 0 {
		return core.GateResult{Gate: g.Name(), Status: core.GateFailed, Details: problems}
	}
	return core.GateResult{Gate: g.Name(), Status: core.GatePassed}
}

// splitTableRow splits a Markdown table row into its cells, dropping the
// empty leading/trailing fields produced by a line that starts and ends
// with "|".
func splitTableRow(line string) []string {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	parts := strings.Split(trimmed, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
