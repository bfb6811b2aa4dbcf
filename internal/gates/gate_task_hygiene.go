package gates

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/taskstore"
)

// TaskHygieneGate validates every task file in every lifecycle folder
// (always on). Unlike taskstore.Store.List, it never stops at the first
// malformed file — every problem across the corpus is reported.
type TaskHygieneGate struct {
	ControlDir string
}

func (g *TaskHygieneGate) Name() string { return "task_hygiene" }

func (g *TaskHygieneGate) Run(_ context.Context, root, _ string) core.GateResult {
	var problems []string
	files := walkTaskFiles(root, g.ControlDir)

	for _, f := range files {
		problems = append(problems, validateTaskHygiene(f.Name, f.Path, f.Raw)...)
	}
	checked := len(files)

	if len(problems) > 0 {
		return core.GateResult{Gate: g.Name(), Status: core.GateFailed, Details: problems}
	}
	return core.GateResult{
		Gate:    g.Name(),
		Status:  core.GatePassed,
		Message: fmt.Sprintf("%d task files checked", checked),
	}
}

func validateTaskHygiene(name, relPath string, raw []byte) []string {
	var problems []string

	task, err := taskstore.ParseBytes(relPath, raw)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", name, err)}
	}
	if err := task.Validate(); err != nil {
		problems = append(problems, fmt.Sprintf("%s: %v", name, err))
	}

	text := string(raw)
	for _, heading := range taskstore.RequiredHeadings {
		if !strings.Contains(text, heading) {
			problems = append(problems, fmt.Sprintf("%s: missing heading %q", name, heading))
		}
	}

	return problems
}
