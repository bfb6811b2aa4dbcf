package scheduler_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/logging"
	"github.com/taskswarm/supervisor/internal/runner"
	"github.com/taskswarm/supervisor/internal/scheduler"
	"github.com/taskswarm/supervisor/internal/taskstore"
	"github.com/taskswarm/supervisor/internal/vcs"
)

func taskBody(id, title, state string) string {
	return "---\n" +
		"task_id: " + id + "\n" +
		"title: \"" + title + "\"\n" +
		"workstream: W3\n" +
		"role: Worker\n" +
		"priority: high\n" +
		"gates: [\"true\"]\n" +
		"---\n\n" +
		"## Objective\nx\n\n## Acceptance Criteria\nx\n\n## Approach\nx\n\n" +
		"## Status\n- State: " + state + "\n- Last updated: 2026-07-01\n\n" +
		"## Notes / Decisions\n\n## Context\nx\n"
}

func writeTask(t *testing.T, root, state, filename, id, title string) {
	t.Helper()
	path := filepath.Join(root, ".orchestrator", state, filename)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(taskBody(id, title, state)), 0o644))
}

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text"})
}

// fakeGit implements core.GitClient by embedding it (unimplemented
// methods panic if called) and recording the calls Tick/startTask make.
type fakeGit struct {
	core.GitClient

	fetchCalls      []string
	resetCalls      []string
	worktreeCreates []string
	branchCreates   []string
	branchExists    map[string]bool
	remoteBranches  []string
	worktrees       []core.Worktree
}

func (f *fakeGit) Fetch(_ context.Context, remote string) error {
	f.fetchCalls = append(f.fetchCalls, remote)
	return nil
}
func (f *fakeGit) ResetHard(_ context.Context, ref string) error {
	f.resetCalls = append(f.resetCalls, ref)
	return nil
}
func (f *fakeGit) CreateWorktree(_ context.Context, path, branch string) error {
	f.worktreeCreates = append(f.worktreeCreates, path+"@"+branch)
	return nil
}
func (f *fakeGit) CreateBranch(_ context.Context, name, base string) error {
	f.branchCreates = append(f.branchCreates, name+"<-"+base)
	return nil
}
func (f *fakeGit) BranchExists(_ context.Context, name string) (bool, error) {
	return f.branchExists[name], nil
}
func (f *fakeGit) ListRemoteBranches(context.Context, string, string) ([]string, error) {
	return f.remoteBranches, nil
}
func (f *fakeGit) ListWorktrees(context.Context) ([]core.Worktree, error) {
	return f.worktrees, nil
}

type fakeGitHub struct {
	core.GitHubClient
	openPRs []*core.PullRequest
	checks  map[string]*core.CheckStatus
}

func (f *fakeGitHub) ListPRs(_ context.Context, opts core.ListPROptions) ([]*core.PullRequest, error) {
	return f.openPRs, nil
}
func (f *fakeGitHub) GetCheckStatus(_ context.Context, ref string) (*core.CheckStatus, error) {
	if cs, ok := f.checks[ref]; ok {
		return cs, nil
	}
	return &core.CheckStatus{State: "success"}, nil
}

type fakeRunner struct {
	calls []runner.Options
}

func (r *fakeRunner) Run(_ context.Context, opts runner.Options) (*runner.Result, error) {
	r.calls = append(r.calls, opts)
	return &runner.Result{TaskID: opts.TaskID, FinalState: core.StateReadyForReview}, nil
}

func setup(t *testing.T) (string, *taskstore.Store) {
	t.Helper()
	root := t.TempDir()
	return root, taskstore.New(filepath.Join(root, ".orchestrator"))
}

func baseOpts(worktreeParent string) scheduler.Options {
	return scheduler.Options{
		Remote:           "origin",
		BaseBranch:       "main",
		WorktreeParent:   worktreeParent,
		Capacity:         2,
		FinalState:       core.StateReadyForReview,
		MaxWorkerSeconds: time.Minute,
	}
}

func TestTick_NoReadyTasksStillResetsAndReturnsEmpty(t *testing.T) {
	root, store := setup(t)
	git := &fakeGit{}
	fakeRun := &fakeRunner{}

	s := scheduler.New(scheduler.Deps{
		Tasks:  store,
		Git:    git,
		OpenGit: func(path string) (core.GitClient, error) { return git, nil },
		Claims: vcs.New(git, nil, "origin", testLogger()),
		NewRunner: func(core.GitClient) scheduler.TaskRunner { return fakeRun },
		Logger: testLogger(),
	})

	result, err := s.Tick(context.Background(), baseOpts(root))
	require.NoError(t, err)
	assert.Empty(t, result.Ready)
	assert.Empty(t, result.Started)
	assert.Equal(t, []string{"origin"}, git.fetchCalls)
	assert.Equal(t, []string{"origin/main"}, git.resetCalls)
}

func TestTick_SelectsAndDispatchesReadyTask(t *testing.T) {
	root, store := setup(t)
	writeTask(t, root, "backlog", "T001_demo.md", "T001", "Build the thing")

	git := &fakeGit{}
	fakeRun := &fakeRunner{}

	s := scheduler.New(scheduler.Deps{
		Tasks:  store,
		Git:    git,
		OpenGit: func(path string) (core.GitClient, error) { return git, nil },
		Claims: vcs.New(git, nil, "origin", testLogger()),
		NewRunner: func(core.GitClient) scheduler.TaskRunner { return fakeRun },
		Logger: testLogger(),
	})

	result, err := s.Tick(context.Background(), baseOpts(root))
	require.NoError(t, err)
	require.Len(t, result.Selected, 1)
	assert.Equal(t, core.TaskID("T001"), result.Selected[0])
	require.Len(t, result.Started, 1)
	assert.Equal(t, core.TaskID("T001"), result.Started[0].TaskID)
	assert.Contains(t, result.Started[0].Branch, "T001")
	assert.Contains(t, result.Started[0].Worktree, "wt-T001")
	require.Len(t, git.worktreeCreates, 1)
	require.Len(t, fakeRun.calls, 1)
	assert.Equal(t, core.TaskID("T001"), fakeRun.calls[0].TaskID)
}

func TestTick_DryRunCreatesNoWorktrees(t *testing.T) {
	root, store := setup(t)
	writeTask(t, root, "backlog", "T001_demo.md", "T001", "Build the thing")

	git := &fakeGit{}
	s := scheduler.New(scheduler.Deps{
		Tasks:  store,
		Git:    git,
		OpenGit: func(path string) (core.GitClient, error) { return git, nil },
		Claims: vcs.New(git, nil, "origin", testLogger()),
		NewRunner: func(core.GitClient) scheduler.TaskRunner {
			t.Fatal("dry-run must not construct a runner")
			return nil
		},
		Logger: testLogger(),
	})

	opts := baseOpts(root)
	opts.DryRun = true
	result, err := s.Tick(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, result.Selected, 1)
	assert.Empty(t, result.Started)
	assert.Empty(t, git.worktreeCreates)
}

func TestTick_CapacityZeroSkipsSelection(t *testing.T) {
	root, store := setup(t)
	writeTask(t, root, "backlog", "T001_demo.md", "T001", "Build the thing")
	git := &fakeGit{}

	s := scheduler.New(scheduler.Deps{
		Tasks:  store,
		Git:    git,
		OpenGit: func(path string) (core.GitClient, error) { return git, nil },
		Claims: vcs.New(git, nil, "origin", testLogger()),
		Logger: testLogger(),
	})

	opts := baseOpts(root)
	opts.Capacity = 0
	result, err := s.Tick(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, result.Ready, 1)
	assert.Empty(t, result.Selected)
}

func TestRepairPass_ReattachesStalledBranch(t *testing.T) {
	root, store := setup(t)
	git := &fakeGit{branchExists: map[string]bool{}}
	fakeRun := &fakeRunner{}

	staleTime := time.Now().Add(-24 * time.Hour)
	gh := &fakeGitHub{
		openPRs: []*core.PullRequest{
			{Number: 5, Head: core.PRBranch{Ref: "T002_fix-bug"}, UpdatedAt: staleTime},
		},
		checks: map[string]*core.CheckStatus{
			"T002_fix-bug": {State: "failure"},
		},
	}

	s := scheduler.New(scheduler.Deps{
		Tasks:  store,
		Git:    git,
		OpenGit: func(path string) (core.GitClient, error) { return git, nil },
		GitHub: gh,
		Claims: vcs.New(git, gh, "origin", testLogger()),
		NewRunner: func(core.GitClient) scheduler.TaskRunner { return fakeRun },
		Logger: testLogger(),
	})

	opts := baseOpts(root)
	opts.RepairEnabled = true
	opts.RepairAfterSeconds = 60
	opts.MaxRepairsPerTick = 1

	result, err := s.Tick(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, result.Repairs, 1)
	assert.Equal(t, core.TaskID("T002"), result.Repairs[0].TaskID)
	assert.Equal(t, 5, result.Repairs[0].PRNumber)
	assert.Equal(t, []string{"T002_fix-bug<-origin/T002_fix-bug"}, git.branchCreates)
	require.Len(t, fakeRun.calls, 1)
}

func TestRepairPass_SkipsFreshOrHealthyPRs(t *testing.T) {
	root, store := setup(t)
	git := &fakeGit{branchExists: map[string]bool{}}

	gh := &fakeGitHub{
		openPRs: []*core.PullRequest{
			{Number: 5, Head: core.PRBranch{Ref: "T002_fix-bug"}, UpdatedAt: time.Now()},
		},
		checks: map[string]*core.CheckStatus{"T002_fix-bug": {State: "failure"}},
	}

	s := scheduler.New(scheduler.Deps{
		Tasks:  store,
		Git:    git,
		OpenGit: func(path string) (core.GitClient, error) { return git, nil },
		GitHub: gh,
		Claims: vcs.New(git, gh, "origin", testLogger()),
		Logger: testLogger(),
	})

	opts := baseOpts(root)
	opts.RepairEnabled = true
	opts.RepairAfterSeconds = 14400

	result, err := s.Tick(context.Background(), opts)
	require.NoError(t, err)
	assert.Empty(t, result.Repairs)
}

func TestLoop_StopsOnContextCancellation(t *testing.T) {
	root, store := setup(t)
	git := &fakeGit{}
	s := scheduler.New(scheduler.Deps{
		Tasks:  store,
		Git:    git,
		OpenGit: func(path string) (core.GitClient, error) { return git, nil },
		Claims: vcs.New(git, nil, "origin", testLogger()),
		Logger: testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	ticks := 0
	done := make(chan error, 1)
	go func() {
		done <- s.Loop(ctx, baseOpts(root), 5*time.Second, false, func(*scheduler.TickResult, error) {
			ticks++
			if ticks == 1 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not observe context cancellation")
	}
	assert.Equal(t, 1, ticks)
}

func TestLoop_UnattendedFailsLoudOnTickError(t *testing.T) {
	root, store := setup(t)
	// No task store directory at all is fine (List tolerates a missing
	// control dir); force an error via a Git.Fetch/ResetHard that
	// returns one instead.
	git := &erroringGit{}
	s := scheduler.New(scheduler.Deps{
		Tasks:  store,
		Git:    git,
		OpenGit: func(path string) (core.GitClient, error) { return git, nil },
		Claims: vcs.New(git, nil, "origin", testLogger()),
		Logger: testLogger(),
	})

	err := s.Loop(context.Background(), baseOpts(root), 5*time.Second, true, nil)
	assert.Error(t, err)
}

type erroringGit struct {
	core.GitClient
}

func (e *erroringGit) Fetch(context.Context, string) error { return nil }
func (e *erroringGit) ResetHard(context.Context, string) error {
	return assertErr("reset failed")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
