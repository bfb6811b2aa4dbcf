// Package planner computes the ready set of backlog tasks and selects
// which of them to start this tick, either by a fixed priority heuristic
// or by delegating the choice to an external agent (spec.md §4.4).
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/taskswarm/supervisor/internal/core"
)

// ComputeReady returns the backlog tasks that are neither claimed nor
// blocked on an unfinished dependency. doneIDs holds every task_id whose
// declared State is "done" regardless of its physical folder, so the
// ready set stays correct even if the Sweeper has not yet caught up.
func ComputeReady(backlog []*core.Task, doneIDs, claimedIDs map[core.TaskID]bool) []*core.Task {
	var ready []*core.Task
	for _, t := range backlog {
		if t.State != core.StateBacklog {
			continue
		}
		if claimedIDs[t.ID] {
			continue
		}
		if allDone(t.Dependencies, doneIDs) {
			ready = append(ready, t)
		}
	}
	return ready
}

func allDone(deps []core.TaskID, doneIDs map[core.TaskID]bool) bool {
	for _, dep := range deps {
		if !doneIDs[dep] {
			return false
		}
	}
	return true
}

// byPriorityThenID sorts tasks by (priority_rank, task_id), the tie-break
// order used throughout the planner and the heuristic's own fallback.
func byPriorityThenID(tasks []*core.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := core.PriorityRank(tasks[i].Priority), core.PriorityRank(tasks[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// SelectHeuristic stable-sorts ready by (priority_rank, task_id) and
// takes the first capacity entries.
func SelectHeuristic(ready []*core.Task, capacity int) []*core.Task {
	if capacity < 0 {
		capacity = 0
	}
	sorted := append([]*core.Task{}, ready...)
	byPriorityThenID(sorted)
	if capacity > len(sorted) {
		capacity = len(sorted)
	}
	return sorted[:capacity]
}

// WorkstreamPolicy is the per-tick concurrency state derived from the
// claimed set: which workstreams cannot accept new work at all, and
// which can only accept parallel_ok work.
type WorkstreamPolicy struct {
	Locked       map[string]bool
	ParallelOnly map[string]bool
}

// DeriveWorkstreamPolicy computes locked_workstreams (any claimed task in
// the workstream lacks parallel_ok) and parallel_only_workstreams (every
// claimed task in the workstream is parallel_ok) from the full claimed
// task set.
func DeriveWorkstreamPolicy(claimed []*core.Task) WorkstreamPolicy {
	hasNonParallel := map[string]bool{}
	hasAny := map[string]bool{}
	allParallel := map[string]bool{}

	for _, t := range claimed {
		hasAny[t.Workstream] = true
		if !t.ParallelOK {
			hasNonParallel[t.Workstream] = true
		}
	}
	for ws := range hasAny {
		allParallel[ws] = !hasNonParallel[ws]
	}

	return WorkstreamPolicy{
		Locked:       hasNonParallel,
		ParallelOnly: allParallel,
	}
}

// ApplyWorkstreamFilter walks candidates in priority order, skipping a
// task if its workstream is locked, if its workstream is parallel-only
// and the task itself is not parallel_ok, or if a higher-priority
// candidate already selected this tick shares its workstream and the
// task is not parallel_ok. It stops once capacity selections are made.
func ApplyWorkstreamFilter(candidates []*core.Task, policy WorkstreamPolicy, capacity int) []*core.Task {
	if capacity < 0 {
		capacity = 0
	}
	ordered := append([]*core.Task{}, candidates...)
	byPriorityThenID(ordered)

	selectedWorkstreams := map[string]bool{}
	var selected []*core.Task
	for _, t := range ordered {
		if len(selected) >= capacity {
			break
		}
		if policy.Locked[t.Workstream] {
			continue
		}
		if policy.ParallelOnly[t.Workstream] && !t.ParallelOK {
			continue
		}
		if selectedWorkstreams[t.Workstream] && !t.ParallelOK {
			continue
		}
		selected = append(selected, t)
		selectedWorkstreams[t.Workstream] = true
	}
	return selected
}

// agentSelectionSchema is the strict JSON schema an agent-backed Planner
// must honor; SelectViaAgent validates the structured reply against it
// before trusting it.
const agentSelectionSchema = `{
  "type": "object",
  "properties": {
    "selected_task_ids": {"type": "array", "items": {"type": "string"}},
    "rationale": {"type": "string"}
  },
  "required": ["selected_task_ids"],
  "additionalProperties": true
}`

type agentTaskSummary struct {
	TaskID       string   `json:"task_id"`
	Title        string   `json:"title"`
	Workstream   string   `json:"workstream"`
	Priority     string   `json:"priority"`
	Dependencies []string `json:"dependencies"`
}

type agentSelectionResponse struct {
	SelectedTaskIDs []string `json:"selected_task_ids"`
	Rationale       string   `json:"rationale"`
}

// SelectViaAgent delegates task selection to an external agent, falling
// back to SelectHeuristic on any deviation from the expected structured
// output: a missing agent, a non-JSON reply, or a reply missing
// selected_task_ids.
func SelectViaAgent(ctx context.Context, agent core.Agent, ready []*core.Task, capacity int, model string) []*core.Task {
	if agent == nil {
		return SelectHeuristic(ready, capacity)
	}

	summaries := make([]agentTaskSummary, 0, len(ready))
	for _, t := range ready {
		deps := make([]string, len(t.Dependencies))
		for i, d := range t.Dependencies {
			deps[i] = string(d)
		}
		summaries = append(summaries, agentTaskSummary{
			TaskID:       string(t.ID),
			Title:        t.Title,
			Workstream:   t.Workstream,
			Priority:     string(t.Priority),
			Dependencies: deps,
		})
	}
	payload, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return SelectHeuristic(ready, capacity)
	}

	prompt := strings.Join([]string{
		"Role: Planner.",
		"You are selecting which tasks to start right now for an autonomous task supervisor.",
		"",
		"Rules:",
		fmt.Sprintf("- Select at most %d task_ids.", capacity),
		"- Prefer higher priority tasks.",
		"- Prefer tasks that unblock dependencies.",
		"- Return ONLY the JSON object required by the schema (selected_task_ids, optional rationale).",
		"",
		"Ready tasks (JSON):",
		string(payload),
	}, "\n")

	opts := core.DefaultExecuteOptions()
	opts.Prompt = prompt
	opts.Model = model
	opts.Format = core.OutputFormatJSON

	result, err := agent.Execute(ctx, opts)
	if err != nil {
		return SelectHeuristic(ready, capacity)
	}

	var resp agentSelectionResponse
	if result.Parsed != nil {
		raw, marshalErr := json.Marshal(result.Parsed)
		if marshalErr != nil || json.Unmarshal(raw, &resp) != nil {
			return SelectHeuristic(ready, capacity)
		}
	} else if json.Unmarshal([]byte(result.Output), &resp) != nil {
		return SelectHeuristic(ready, capacity)
	}
	if resp.SelectedTaskIDs == nil {
		return SelectHeuristic(ready, capacity)
	}

	selectedIDs := make(map[core.TaskID]bool, len(resp.SelectedTaskIDs))
	for _, id := range resp.SelectedTaskIDs {
		selectedIDs[core.TaskID(id)] = true
	}

	var out []*core.Task
	for _, t := range ready {
		if selectedIDs[t.ID] {
			out = append(out, t)
		}
	}
	byPriorityThenID(out)
	if capacity < len(out) {
		out = out[:capacity]
	}
	return out
}
