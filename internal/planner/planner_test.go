package planner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/planner"
)

func task(id, ws string, priority core.Priority, parallelOK bool, deps ...core.TaskID) *core.Task {
	return &core.Task{
		ID:           core.TaskID(id),
		Workstream:   ws,
		Priority:     priority,
		ParallelOK:   parallelOK,
		Dependencies: deps,
		State:        core.StateBacklog,
	}
}

func TestComputeReady_SkipsClaimedAndUnmetDeps(t *testing.T) {
	t1 := task("T001", "W1", core.PriorityHigh, true)
	t2 := task("T002", "W1", core.PriorityHigh, true, "T001")
	t3 := task("T003", "W1", core.PriorityHigh, true, "T999")

	doneIDs := map[core.TaskID]bool{"T001": true}
	claimedIDs := map[core.TaskID]bool{"T001": true}

	ready := planner.ComputeReady([]*core.Task{t1, t2, t3}, doneIDs, claimedIDs)

	require.Len(t, ready, 1)
	assert.Equal(t, core.TaskID("T002"), ready[0].ID)
}

func TestComputeReady_IgnoresNonBacklogTasks(t *testing.T) {
	active := task("T001", "W1", core.PriorityHigh, true)
	active.State = core.StateActive

	ready := planner.ComputeReady([]*core.Task{active}, nil, nil)
	assert.Empty(t, ready)
}

func TestSelectHeuristic_SortsByPriorityThenID(t *testing.T) {
	low := task("T003", "W1", core.PriorityLow, true)
	high2 := task("T002", "W1", core.PriorityHigh, true)
	high1 := task("T001", "W1", core.PriorityHigh, true)

	selected := planner.SelectHeuristic([]*core.Task{low, high2, high1}, 2)

	require.Len(t, selected, 2)
	assert.Equal(t, core.TaskID("T001"), selected[0].ID)
	assert.Equal(t, core.TaskID("T002"), selected[1].ID)
}

func TestSelectHeuristic_CapacityZero(t *testing.T) {
	selected := planner.SelectHeuristic([]*core.Task{task("T001", "W1", core.PriorityHigh, true)}, 0)
	assert.Empty(t, selected)
}

func TestDeriveWorkstreamPolicy(t *testing.T) {
	claimed := []*core.Task{
		task("T001", "W1", core.PriorityHigh, false), // W1 has a non-parallel claim -> locked
		task("T002", "W2", core.PriorityHigh, true),
		task("T003", "W2", core.PriorityHigh, true), // W2 all parallel_ok -> parallel-only
	}
	policy := planner.DeriveWorkstreamPolicy(claimed)

	assert.True(t, policy.Locked["W1"])
	assert.False(t, policy.Locked["W2"])
	assert.True(t, policy.ParallelOnly["W2"])
	assert.False(t, policy.ParallelOnly["W1"])
}

func TestApplyWorkstreamFilter_SkipsLockedWorkstream(t *testing.T) {
	candidates := []*core.Task{task("T002", "W1", core.PriorityHigh, true)}
	policy := planner.WorkstreamPolicy{Locked: map[string]bool{"W1": true}}

	selected := planner.ApplyWorkstreamFilter(candidates, policy, 5)
	assert.Empty(t, selected)
}

func TestApplyWorkstreamFilter_ParallelOnlyRejectsNonParallelTask(t *testing.T) {
	candidates := []*core.Task{task("T002", "W2", core.PriorityHigh, false)}
	policy := planner.WorkstreamPolicy{ParallelOnly: map[string]bool{"W2": true}}

	selected := planner.ApplyWorkstreamFilter(candidates, policy, 5)
	assert.Empty(t, selected)
}

func TestApplyWorkstreamFilter_SameTickCollisionRequiresParallelOK(t *testing.T) {
	first := task("T001", "W1", core.PriorityHigh, false)
	second := task("T002", "W1", core.PriorityMedium, false)

	selected := planner.ApplyWorkstreamFilter([]*core.Task{second, first}, planner.WorkstreamPolicy{}, 5)

	require.Len(t, selected, 1)
	assert.Equal(t, core.TaskID("T001"), selected[0].ID)
}

func TestApplyWorkstreamFilter_SameTickCollisionAllowedWhenParallelOK(t *testing.T) {
	first := task("T001", "W1", core.PriorityHigh, true)
	second := task("T002", "W1", core.PriorityMedium, true)

	selected := planner.ApplyWorkstreamFilter([]*core.Task{second, first}, planner.WorkstreamPolicy{}, 5)
	assert.Len(t, selected, 2)
}

func TestApplyWorkstreamFilter_StopsAtCapacity(t *testing.T) {
	candidates := []*core.Task{
		task("T001", "W1", core.PriorityHigh, true),
		task("T002", "W2", core.PriorityHigh, true),
		task("T003", "W3", core.PriorityHigh, true),
	}
	selected := planner.ApplyWorkstreamFilter(candidates, planner.WorkstreamPolicy{}, 2)
	assert.Len(t, selected, 2)
}

type fakeAgent struct {
	core.Agent
	result *core.ExecuteResult
	err    error
}

func (f *fakeAgent) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	return f.result, f.err
}

func TestSelectViaAgent_NilAgentFallsBackToHeuristic(t *testing.T) {
	ready := []*core.Task{task("T001", "W1", core.PriorityHigh, true)}
	selected := planner.SelectViaAgent(context.Background(), nil, ready, 1, "")
	require.Len(t, selected, 1)
	assert.Equal(t, core.TaskID("T001"), selected[0].ID)
}

func TestSelectViaAgent_UsesStructuredOutput(t *testing.T) {
	ready := []*core.Task{
		task("T001", "W1", core.PriorityHigh, true),
		task("T002", "W1", core.PriorityHigh, true),
	}
	agent := &fakeAgent{result: &core.ExecuteResult{
		Parsed: map[string]interface{}{
			"selected_task_ids": []interface{}{"T002"},
		},
	}}

	selected := planner.SelectViaAgent(context.Background(), agent, ready, 5, "")
	require.Len(t, selected, 1)
	assert.Equal(t, core.TaskID("T002"), selected[0].ID)
}

func TestSelectViaAgent_MissingFieldFallsBack(t *testing.T) {
	ready := []*core.Task{task("T001", "W1", core.PriorityHigh, true)}
	agent := &fakeAgent{result: &core.ExecuteResult{Output: `{"rationale": "no ids here"}`}}

	selected := planner.SelectViaAgent(context.Background(), agent, ready, 5, "")
	require.Len(t, selected, 1)
	assert.Equal(t, core.TaskID("T001"), selected[0].ID)
}

func TestSelectViaAgent_ExecuteErrorFallsBack(t *testing.T) {
	ready := []*core.Task{task("T001", "W1", core.PriorityHigh, true)}
	agent := &fakeAgent{err: assertErr("agent CLI not found")}

	selected := planner.SelectViaAgent(context.Background(), agent, ready, 5, "")
	require.Len(t, selected, 1)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
