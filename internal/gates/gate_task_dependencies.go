package gates

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/taskstore"
)

type dfsColor int

const (
	colorWhite dfsColor = iota
	colorGrey
	colorBlack
)

// TaskDependenciesGate validates the dependency graph across every task
// file (always on): every dependency id resolves, no self-dependency, and
// the graph is acyclic, detected via coloured DFS (white/grey/black).
type TaskDependenciesGate struct {
	ControlDir string
}

func (g *TaskDependenciesGate) Name() string { return "task_dependencies" }

func (g *TaskDependenciesGate) Run(_ context.Context, root, _ string) core.GateResult {
	files := walkTaskFiles(root, g.ControlDir)

	tasks := make(map[core.TaskID]*core.Task, len(files))
	var problems []string
	for _, f := range files {
		task, err := taskstore.ParseBytes(f.Path, f.Raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", f.Name, err))
			continue
		}
		tasks[task.ID] = task
	}

	for id, task := range tasks {
		for _, dep := range task.Dependencies {
			if dep == id {
				problems = append(problems, fmt.Sprintf("self_dependency:%s", id))
				continue
			}
			if !core.ValidTaskID(dep) {
				problems = append(problems, fmt.Sprintf("invalid_dependency_id:%s->%s", id, dep))
				continue
			}
			if _, ok := tasks[dep]; !ok {
				problems = append(problems, fmt.Sprintf("unresolved_dependency:%s->%s", id, dep))
			}
		}
	}

	ids := make([]core.TaskID, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	colors := make(map[core.TaskID]dfsColor, len(tasks))
	for _, id := range ids {
		if colors[id] == colorWhite {
			if cycle := detectCycle(id, tasks, colors, nil); cycle != "" {
				problems = append(problems, "dependency_cycle:"+cycle)
			}
		}
	}

	if len(problems) > 0 {
		return core.GateResult{Gate: g.Name(), Status: core.GateFailed, Details: problems}
	}
	return core.GateResult{
		Gate:    g.Name(),
		Status:  core.GatePassed,
		Message: fmt.Sprintf("%d tasks, acyclic", len(tasks)),
	}
}

// detectCycle performs coloured DFS from id, returning the path of the
// first cycle found (as "A->B->A") or "" if none.
func detectCycle(id core.TaskID, tasks map[core.TaskID]*core.Task, colors map[core.TaskID]dfsColor, path []core.TaskID) string {
	colors[id] = colorGrey
	path = append(path, id)

	task := tasks[id]
	if task != nil {
		for _, dep := range task.Dependencies {
			if _, ok := tasks[dep]; !ok {
				continue // unresolved, already reported separately
			}
			switch colors[dep] {
			case colorGrey:
				return cyclePath(path, dep)
			case colorWhite:
				if cycle := detectCycle(dep, tasks, colors, path); cycle != "" {
					return cycle
				}
			}
		}
	}

	colors[id] = colorBlack
	return ""
}

func cyclePath(path []core.TaskID, closingID core.TaskID) string {
	start := 0
	for i, id := range path {
		if id == closingID {
			start = i
			break
		}
	}
	segment := path[start:]
	names := make([]string, 0, len(segment)+1)
	for _, id := range segment {
		names = append(names, string(id))
	}
	names = append(names, string(closingID))
	return strings.Join(names, "->")
}
