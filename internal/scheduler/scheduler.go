// Package scheduler drives the periodic tick loop: reconcile the
// supervisor's own checkout against the remote base branch, compute
// which backlog tasks are ready, select a batch via the Planner,
// materialize a worktree and branch per selected task, and hand each
// off to a Task Runner — either inline or fanned out to its own
// process window. It also runs the repair pass that reattaches to
// stalled pull requests.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/logging"
	"github.com/taskswarm/supervisor/internal/planner"
	"github.com/taskswarm/supervisor/internal/runner"
	"github.com/taskswarm/supervisor/internal/taskstore"
	"github.com/taskswarm/supervisor/internal/vcs"
)

// defaultRepairAfter and defaultMaxRepairs mirror the original's
// conservative defaults: don't touch a PR until it's been stale for
// 4 hours, and don't repair more than one per tick.
const (
	defaultRepairAfterSeconds = 14400
	defaultMaxRepairsPerTick  = 1
)

// GitOpener builds a GitClient bound to an arbitrary worktree path, so
// the Scheduler can hand each Task Runner a checkout isolated from its
// own. Satisfied by a thin wrapper over adapters/git.NewClient.
type GitOpener func(path string) (core.GitClient, error)

// TaskRunner is the subset of runner.Runner's surface the Scheduler
// depends on, letting tests substitute a fake without a real worktree.
type TaskRunner interface {
	Run(ctx context.Context, opts runner.Options) (*runner.Result, error)
}

// RunnerFactory builds a TaskRunner bound to a single worktree's
// collaborators (its own GitClient, a shared GitHubClient and Worker).
type RunnerFactory func(worktreeGit core.GitClient) TaskRunner

// WindowService hosts one task's Runner invocation in its own named,
// inspectable process window instead of running it inline. A nil
// Window in Deps means every selected task runs inline, sequentially.
type WindowService interface {
	EnsureSession(ctx context.Context, session string) error
	SpawnWindow(ctx context.Context, session, window, command string) (string, error)
}

// Deps are the Scheduler's collaborators.
type Deps struct {
	Tasks     *taskstore.Store
	Git       core.GitClient // the supervisor's own checkout
	OpenGit   GitOpener
	GitHub    core.GitHubClient // nil when no GitHub remote is configured
	Claims    *vcs.ClaimTracker
	NewRunner RunnerFactory
	Window    WindowService
	Logger    *logging.Logger
}

// Options configures one Tick call.
type Options struct {
	Remote         string
	BaseBranch     string
	WorktreeParent string
	Capacity       int

	PlannerAgent core.Agent // nil selects the heuristic Planner
	PlannerModel string

	Windowed      bool // spawn each Task Runner in its own process window
	WindowSession string
	RunTaskCmd    []string // argv template used to re-invoke run-task in a window; "{task_id}" substituted

	FinalState         core.State
	MaxWorkerSeconds   time.Duration
	NetworkWorkstreams []string
	LogDir             string
	CreatePR           bool
	AutoMerge          bool
	MergeStrategy      string
	Unattended         bool
	DryRun             bool

	RepairEnabled      bool
	RepairAfterSeconds int
	MaxRepairsPerTick  int
}

// StartedTask records one task materialized and dispatched this tick.
type StartedTask struct {
	TaskID   core.TaskID
	Branch   string
	Worktree string
	Result   *runner.Result // nil when Windowed (the runner completes asynchronously)
}

// RepairedTask records one stalled PR reattached and re-dispatched.
type RepairedTask struct {
	TaskID   core.TaskID
	PRNumber int
	Branch   string
	Worktree string
	Result   *runner.Result
}

// TickResult summarizes everything that happened during one Tick call.
type TickResult struct {
	Done     []core.TaskID
	Claimed  []core.TaskID
	Ready    []core.TaskID
	Selected []core.TaskID
	Started  []StartedTask
	Repairs  []RepairedTask
}

// Scheduler runs the periodic plan-and-dispatch tick.
type Scheduler struct {
	deps Deps
}

// New builds a Scheduler from its collaborators.
func New(deps Deps) *Scheduler {
	return &Scheduler{deps: deps}
}

// Tick runs one planning-and-dispatch cycle: reset, plan, dispatch,
// repair. A non-nil error means the tick could not even be planned
// (VCS or task-store failure); per-task dispatch failures are logged
// and skipped rather than aborting the whole tick.
func (s *Scheduler) Tick(ctx context.Context, opts Options) (*TickResult, error) {
	log := s.deps.Logger

	if err := s.deps.Git.Fetch(ctx, opts.Remote); err != nil {
		log.Warn("scheduler: fetch failed before reset; proceeding with existing refs", "error", err)
	}
	resetRef := opts.Remote + "/" + opts.BaseBranch
	if err := s.deps.Git.ResetHard(ctx, resetRef); err != nil {
		return nil, core.ErrVCS("reset supervisor checkout to "+resetRef, err)
	}

	all, err := s.deps.Tasks.List()
	if err != nil {
		return nil, err
	}

	doneIDs := map[core.TaskID]bool{}
	var backlog, claimedTasks []*core.Task
	for _, t := range all {
		if t.State == core.StateDone {
			doneIDs[t.ID] = true
		}
		if t.State == core.StateBacklog {
			backlog = append(backlog, t)
		}
	}
	claimedIDs, err := s.deps.Claims.ClaimedTaskIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if claimedIDs[t.ID] {
			claimedTasks = append(claimedTasks, t)
		}
	}

	ready := planner.ComputeReady(backlog, doneIDs, claimedIDs)

	result := &TickResult{
		Done:    sortedIDs(doneIDs),
		Claimed: sortedIDs(claimedIDs),
		Ready:   taskIDList(ready),
	}

	if len(ready) == 0 {
		log.Info("scheduler: no ready tasks in backlog")
	} else if opts.Capacity <= 0 {
		log.Info("scheduler: capacity is zero; nothing to do")
	} else {
		policy := planner.DeriveWorkstreamPolicy(claimedTasks)

		var picked []*core.Task
		if opts.PlannerAgent != nil {
			picked = planner.SelectViaAgent(ctx, opts.PlannerAgent, ready, opts.Capacity, opts.PlannerModel)
		} else {
			picked = planner.SelectHeuristic(ready, opts.Capacity)
		}
		selected := planner.ApplyWorkstreamFilter(picked, policy, opts.Capacity)
		result.Selected = taskIDList(selected)

		if len(selected) == 0 {
			log.Info("scheduler: planner selected no tasks")
		}
		for _, task := range selected {
			if opts.DryRun {
				log.Info("scheduler: dry-run would start task", "task", task.ID, "title", task.Title)
				continue
			}
			started, err := s.startTask(ctx, task, opts)
			if err != nil {
				log.Error("scheduler: failed to start task", "task", task.ID, "error", err)
				continue
			}
			result.Started = append(result.Started, *started)
		}
	}

	if opts.RepairEnabled {
		repairs, err := s.repairPass(ctx, opts)
		if err != nil {
			log.Error("scheduler: repair pass failed", "error", err)
		} else {
			result.Repairs = repairs
		}
	}

	return result, nil
}

// startTask materializes a fresh worktree on a fresh branch for task
// (branched from the supervisor's current HEAD, which Tick has just
// reset to the remote base branch) and dispatches a Task Runner at it.
func (s *Scheduler) startTask(ctx context.Context, task *core.Task, opts Options) (*StartedTask, error) {
	branch := vcs.TaskBranchName(task.ID, slugify(task.Title))
	wtPath := worktreePath(opts.WorktreeParent, task.ID)

	if err := s.deps.Git.CreateWorktree(ctx, wtPath, branch); err != nil {
		return nil, core.ErrVCS("create worktree for "+string(task.ID), err)
	}

	started := &StartedTask{TaskID: task.ID, Branch: branch, Worktree: wtPath}

	runOpts := runner.Options{
		TaskID:             task.ID,
		RepoRoot:           wtPath,
		Remote:             opts.Remote,
		BaseBranch:         opts.BaseBranch,
		FinalState:         opts.FinalState,
		MaxWorkerSeconds:   opts.MaxWorkerSeconds,
		NetworkWorkstreams: opts.NetworkWorkstreams,
		LogDir:             opts.LogDir,
		CreatePR:           opts.CreatePR,
		AutoMerge:          opts.AutoMerge,
		MergeStrategy:      opts.MergeStrategy,
		Unattended:         opts.Unattended,
	}

	if opts.Windowed && s.deps.Window != nil {
		if err := s.dispatchWindowed(ctx, task.ID, wtPath, opts); err != nil {
			return nil, err
		}
		return started, nil
	}

	res, err := s.runInline(ctx, wtPath, runOpts)
	if err != nil {
		return started, err
	}
	started.Result = res
	return started, nil
}

// runInline opens a GitClient bound to wtPath and runs the Task Runner
// synchronously, in the current process.
func (s *Scheduler) runInline(ctx context.Context, wtPath string, runOpts runner.Options) (*runner.Result, error) {
	worktreeGit, err := s.deps.OpenGit(wtPath)
	if err != nil {
		return nil, core.ErrVCS("open worktree git client", err)
	}
	taskRunner := s.deps.NewRunner(worktreeGit)
	return taskRunner.Run(ctx, runOpts)
}

// dispatchWindowed spawns the Task Runner as an independent child
// process hosted in its own named window, mirroring the original's
// tmux-backed "windowed" runner mode: the supervisor's own process
// stays free to start the next selected task immediately.
func (s *Scheduler) dispatchWindowed(ctx context.Context, taskID core.TaskID, wtPath string, opts Options) error {
	if err := s.deps.Window.EnsureSession(ctx, opts.WindowSession); err != nil {
		return core.ErrExecution("WINDOW_SESSION_FAILED", err.Error())
	}
	cmd := renderRunTaskCommand(opts.RunTaskCmd, taskID)
	_, err := s.deps.Window.SpawnWindow(ctx, opts.WindowSession, string(taskID), cmd)
	return err
}

// renderRunTaskCommand substitutes "{task_id}" into the configured
// argv template and joins it into a single shell command line.
func renderRunTaskCommand(tmpl []string, taskID core.TaskID) string {
	parts := make([]string, len(tmpl))
	for i, t := range tmpl {
		parts[i] = strings.ReplaceAll(t, "{task_id}", string(taskID))
	}
	return strings.Join(parts, " ")
}

// repairPass lists open PRs against the base branch and re-dispatches
// the oldest stalled candidates, per §4.5.1: a PR is a repair
// candidate iff its checks are failing or it is unmergeable due to
// conflicts, and it has been stale longer than RepairAfterSeconds.
func (s *Scheduler) repairPass(ctx context.Context, opts Options) ([]RepairedTask, error) {
	if s.deps.GitHub == nil {
		return nil, nil
	}
	log := s.deps.Logger

	prs, err := s.deps.GitHub.ListPRs(ctx, core.ListPROptions{State: "open", Base: opts.BaseBranch})
	if err != nil {
		return nil, core.ErrVCS("list open PRs for repair pass", err)
	}

	after := opts.RepairAfterSeconds
	if after <= 0 {
		after = defaultRepairAfterSeconds
	}
	maxRepairs := opts.MaxRepairsPerTick
	if maxRepairs <= 0 {
		maxRepairs = defaultMaxRepairsPerTick
	}
	staleBefore := time.Now().Add(-time.Duration(after) * time.Second)

	type candidate struct {
		taskID core.TaskID
		pr     *core.PullRequest
	}
	var candidates []candidate
	for _, pr := range prs {
		taskID, ok := taskIDFromBranchName(pr.Head.Ref)
		if !ok {
			continue
		}
		if !pr.UpdatedAt.Before(staleBefore) {
			continue
		}
		checks, err := s.deps.GitHub.GetCheckStatus(ctx, pr.Head.Ref)
		if err != nil {
			log.Warn("scheduler: repair pass could not fetch check status", "pr", pr.Number, "error", err)
			continue
		}
		conflicting := pr.Mergeable != nil && !*pr.Mergeable
		if checks.State != "failure" && !conflicting {
			continue
		}
		candidates = append(candidates, candidate{taskID: taskID, pr: pr})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].pr.UpdatedAt.Before(candidates[j].pr.UpdatedAt)
	})
	if len(candidates) > maxRepairs {
		candidates = candidates[:maxRepairs]
	}

	var repaired []RepairedTask
	for _, c := range candidates {
		rep, err := s.repairOne(ctx, c.taskID, c.pr, opts)
		if err != nil {
			log.Error("scheduler: repair attempt failed", "task", c.taskID, "pr", c.pr.Number, "error", err)
			continue
		}
		repaired = append(repaired, *rep)
	}
	return repaired, nil
}

// repairOne reattaches to an existing stalled branch, creating a
// worktree for it if none exists yet, and re-dispatches a Task Runner
// carrying repair context.
func (s *Scheduler) repairOne(ctx context.Context, taskID core.TaskID, pr *core.PullRequest, opts Options) (*RepairedTask, error) {
	branch := pr.Head.Ref
	wtPath := worktreePath(opts.WorktreeParent, taskID)

	exists, err := s.deps.Git.BranchExists(ctx, branch)
	if err != nil {
		return nil, core.ErrVCS("check branch existence for repair", err)
	}
	if !exists {
		remoteRef := opts.Remote + "/" + branch
		if err := s.deps.Git.CreateBranch(ctx, branch, remoteRef); err != nil {
			return nil, core.ErrVCS("create local branch for repair", err)
		}
	}
	if err := s.deps.Git.CreateWorktree(ctx, wtPath, branch); err != nil {
		return nil, core.ErrVCS("create worktree for repair of "+string(taskID), err)
	}

	runOpts := runner.Options{
		TaskID:             taskID,
		RepoRoot:           wtPath,
		Remote:             opts.Remote,
		BaseBranch:         opts.BaseBranch,
		FinalState:         opts.FinalState,
		MaxWorkerSeconds:   opts.MaxWorkerSeconds,
		NetworkWorkstreams: opts.NetworkWorkstreams,
		LogDir:             opts.LogDir,
		CreatePR:           opts.CreatePR,
		AutoMerge:          opts.AutoMerge,
		MergeStrategy:      opts.MergeStrategy,
		Unattended:         opts.Unattended,
	}

	rep := &RepairedTask{TaskID: taskID, PRNumber: pr.Number, Branch: branch, Worktree: wtPath}

	if opts.Windowed && s.deps.Window != nil {
		if err := s.dispatchWindowed(ctx, taskID, wtPath, opts); err != nil {
			return rep, err
		}
		return rep, nil
	}

	res, err := s.runInline(ctx, wtPath, runOpts)
	if err != nil {
		return rep, err
	}
	rep.Result = res
	return rep, nil
}

// worktreePath returns the canonical worktree location for a claimed
// task: "<parent>/wt-<task_id>".
func worktreePath(parent string, id core.TaskID) string {
	return filepath.Join(parent, "wt-"+string(id))
}

// taskIDFromBranchName extracts the leading T### from a branch name,
// mirroring vcs's own extraction so the repair pass can reuse a PR's
// head-ref without importing vcs's unexported regex.
func taskIDFromBranchName(name string) (core.TaskID, bool) {
	const prefixLen = 4 // "Tnnn"
	if len(name) < prefixLen || name[0] != 'T' {
		return "", false
	}
	for _, r := range name[1:prefixLen] {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return core.TaskID(name[:prefixLen]), true
}

// slugify lowercases title and replaces runs of non-alphanumeric
// characters with a single hyphen, trimmed, for use as a branch-name
// suffix; grounded on the original's title-derived branch slugs.
func slugify(title string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

func sortedIDs(m map[core.TaskID]bool) []core.TaskID {
	out := make([]core.TaskID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func taskIDList(tasks []*core.Task) []core.TaskID {
	out := make([]core.TaskID, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

// Loop repeats Tick every interval (minimum 5s, per spec.md §4.5
// step 6), sleeping in ≤5s increments so ctx cancellation is observed
// promptly even mid-sleep. If unattended is true, any Tick error
// terminates the loop instead of being swallowed and retried — an
// unattended supervisor must fail loud on persistent auth/sync
// failures rather than spin silently.
func (s *Scheduler) Loop(ctx context.Context, opts Options, interval time.Duration, unattended bool, onTick func(*TickResult, error)) error {
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	for {
		res, err := s.Tick(ctx, opts)
		if onTick != nil {
			onTick(res, err)
		}
		if err != nil && unattended {
			return fmt.Errorf("unattended tick failed: %w", err)
		}
		remaining := interval
		for remaining > 0 {
			step := 5 * time.Second
			if remaining < step {
				step = remaining
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(step):
				remaining -= step
			}
		}
	}
}
