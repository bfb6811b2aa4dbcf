// Package runner drives one task through its full per-tick lifecycle
// inside an already-materialized worktree: claim, invoke the Worker,
// run the Judge's declared gates and path-ownership check, optionally
// request a best-effort review, decide the task's next state, and
// persist the result. It is the one place that turns a task descriptor
// plus a Worker run into a new committed, pushed lifecycle state.
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/logging"
	"github.com/taskswarm/supervisor/internal/taskstore"
)

// Deps are the collaborators a Runner needs. Git and GitHub are bound to
// the task's worktree checkout; GitHub and Reviewer are optional (a nil
// GitHub skips PR creation, a nil Reviewer skips the review step).
type Deps struct {
	Tasks    *taskstore.Store
	Git      core.GitClient
	GitHub   core.GitHubClient
	Worker   core.Agent
	Reviewer core.Agent
	Logger   *logging.Logger
}

// Options configures one Run call.
type Options struct {
	TaskID     core.TaskID
	RepoRoot   string // the task's worktree path; also Worker WorkDir
	Remote     string
	BaseBranch string

	FinalState         core.State
	MaxWorkerSeconds   time.Duration
	NetworkWorkstreams []string
	LogDir             string

	CreatePR      bool
	AutoMerge     bool
	MergeStrategy string
	Unattended    bool
}

// GateOutput records one declared-gate command's outcome.
type GateOutput struct {
	Command  string
	ExitCode int
	Output   string
}

// OwnershipFailure records one changed path the task was not allowed to touch.
type OwnershipFailure struct {
	Path   string
	Reason string
}

// Result summarizes what happened to a task during one Run call.
type Result struct {
	TaskID     core.TaskID
	FinalState core.State
	Branch     string

	GatesOK           bool
	GateOutputs       []GateOutput
	OwnershipOK       bool
	OwnershipFailures []OwnershipFailure

	ReviewLogPath  string
	WorkerTimedOut bool
	PRNumber       int
}

// Runner executes the Task Runner lifecycle for a single task.
type Runner struct {
	deps Deps
}

// New builds a Runner from its collaborators.
func New(deps Deps) *Runner {
	return &Runner{deps: deps}
}

// Run resolves the task, claims it if still in backlog, invokes the
// Worker, judges its work, decides the task's next state, and persists
// the outcome. A non-nil error indicates the Worker timed out (the task
// is left active, not blocked) or an infrastructure failure occurred;
// a gates/ownership failure is a normal outcome reported via Result,
// not an error.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	log := r.deps.Logger.WithTask(string(opts.TaskID))

	if opts.Unattended {
		log.Warn("runner: unattended mode disables approval prompts; only run in an isolated sandbox with no secrets")
	}

	task, err := r.deps.Tasks.FindByID(opts.TaskID)
	if err != nil {
		return nil, err
	}

	allowNetwork := contains(opts.NetworkWorkstreams, task.Workstream)

	if task.State == core.StateBacklog {
		if err := r.claim(ctx, task, opts, log); err != nil {
			return nil, err
		}
	}

	res := &Result{TaskID: task.ID}
	if branch, err := r.deps.Git.CurrentBranch(ctx); err == nil {
		res.Branch = branch
	}

	workerTimedOut, workerErr := r.invokeWorker(ctx, task, opts, allowNetwork, log)
	if workerTimedOut {
		res.WorkerTimedOut = true
		note := fmt.Sprintf("@human Worker timed out after %s.", opts.MaxWorkerSeconds)
		if err := r.deps.Tasks.UpdateState(task.ID, task.State, note, time.Now()); err != nil {
			log.Error("runner: failed to record timeout note", "error", err)
		}
		r.bestEffortCommit(ctx, fmt.Sprintf("%s: worker timeout", task.ID), log)
		return res, core.ErrWorkerTimeout(string(task.ID), opts.MaxWorkerSeconds.String())
	}
	if workerErr != nil {
		log.Warn("runner: worker run ended with error, proceeding to judge", "error", workerErr)
	}

	gateOutputs, gatesOK := runDeclaredGates(ctx, opts.RepoRoot, task.Gates)
	res.GateOutputs = gateOutputs
	res.GatesOK = gatesOK

	ownershipOK, failures, err := r.checkOwnership(ctx, task)
	if err != nil {
		return nil, err
	}
	res.OwnershipOK = ownershipOK
	res.OwnershipFailures = failures

	reviewLog := r.bestEffortReview(ctx, task, opts, log)
	res.ReviewLogPath = reviewLog

	newState, note := decideState(task, opts.FinalState, gatesOK, ownershipOK, reviewLog, failures)
	res.FinalState = newState

	if err := r.deps.Tasks.UpdateState(task.ID, newState, note, time.Now()); err != nil {
		return res, err
	}
	r.bestEffortCommit(ctx, fmt.Sprintf("%s: %s", task.ID, newState), log)

	if opts.CreatePR && r.deps.GitHub != nil {
		prNum, err := r.publishPR(ctx, task, opts, gateOutputs, newState, res.Branch)
		if err != nil {
			log.Warn("runner: pr publish failed", "error", err)
		}
		res.PRNumber = prNum
	}

	return res, nil
}

func (r *Runner) claim(ctx context.Context, task *core.Task, opts Options, log *logging.Logger) error {
	branch, err := r.deps.Git.CurrentBranch(ctx)
	if err != nil {
		branch = "unknown"
	}
	note := fmt.Sprintf("Claimed by supervisor runner; starting worker (branch: %s).", branch)
	if err := r.deps.Tasks.UpdateState(task.ID, core.StateActive, note, time.Now()); err != nil {
		return err
	}
	task.State = core.StateActive

	if err := r.deps.Git.Add(ctx, task.Path); err != nil {
		log.Warn("runner: claim add failed", "error", err)
		return nil
	}
	if _, err := r.deps.Git.Commit(ctx, fmt.Sprintf("%s: claim (active)", task.ID)); err != nil {
		log.Warn("runner: claim commit failed", "error", err)
		return nil
	}
	if err := r.deps.Git.Push(ctx, opts.Remote, branch); err != nil {
		log.Warn("runner: claim push failed", "error", err)
	}
	return nil
}

// invokeWorker runs the Worker agent with a hard deadline. It reports
// workerTimedOut=true only when the deadline itself was the cause; any
// other execution error is returned for logging but otherwise ignored,
// matching the Judge step running unconditionally afterward.
func (r *Runner) invokeWorker(ctx context.Context, task *core.Task, opts Options, allowNetwork bool, log *logging.Logger) (timedOut bool, err error) {
	timeout := opts.MaxWorkerSeconds
	if timeout <= 0 {
		timeout = 45 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := buildWorkerPrompt(task, allowNetwork)
	log.Info("runner: invoking worker", "workstream", task.Workstream, "allow_network", allowNetwork)

	_, execErr := r.deps.Worker.Execute(runCtx, core.ExecuteOptions{
		Prompt:  prompt,
		WorkDir: opts.RepoRoot,
		Timeout: timeout,
		Sandbox: true,
	})
	if execErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return true, execErr
	}
	return false, execErr
}

func (r *Runner) checkOwnership(ctx context.Context, task *core.Task) (bool, []OwnershipFailure, error) {
	status, err := r.deps.Git.Status(ctx)
	if err != nil {
		return false, nil, err
	}
	changed := changedPaths(status)
	taskPaths := taskFilePaths(task)
	handoff := handoffPrefix(task)

	ok := true
	var failures []OwnershipFailure
	for _, f := range changed {
		if violated, reason := entryViolatesTaskFileIntegrity(f, taskPaths); violated {
			ok = false
			failures = append(failures, OwnershipFailure{Path: f.Path, Reason: reason})
			continue
		}
		allowed, reason := pathAllowed(f.Path, task.AllowedPaths, task.DisallowedPaths, taskPaths, handoff)
		if !allowed {
			ok = false
			failures = append(failures, OwnershipFailure{Path: f.Path, Reason: reason})
		}
	}
	return ok, failures, nil
}

func (r *Runner) bestEffortReview(ctx context.Context, task *core.Task, opts Options, log *logging.Logger) string {
	if r.deps.Reviewer == nil || opts.LogDir == "" {
		return ""
	}
	logPath := filepath.Join(opts.LogDir, fmt.Sprintf("%s_%s_judge_review.txt", task.ID, utcCompact(time.Now())))

	result, err := r.deps.Reviewer.Execute(ctx, core.ExecuteOptions{
		Prompt:  buildReviewPrompt(opts.BaseBranch),
		WorkDir: opts.RepoRoot,
		Timeout: 10 * time.Minute,
	})
	content := ""
	if err != nil {
		log.Warn("runner: review invocation failed (best-effort)", "error", err)
		content = fmt.Sprintf("review failed: %v", err)
	} else {
		content = result.Output
	}
	if writeErr := writeFile(logPath, content); writeErr != nil {
		log.Warn("runner: could not write review log", "error", writeErr)
		return ""
	}
	return logPath
}

func (r *Runner) bestEffortCommit(ctx context.Context, message string, log *logging.Logger) {
	if err := r.deps.Git.Add(ctx, "."); err != nil {
		log.Warn("runner: commit add failed", "error", err)
		return
	}
	clean, err := r.deps.Git.IsClean(ctx)
	if err == nil && clean {
		return
	}
	if _, err := r.deps.Git.Commit(ctx, message); err != nil {
		log.Warn("runner: commit failed", "error", err)
		return
	}
	branch, _ := r.deps.Git.CurrentBranch(ctx)
	if err := r.deps.Git.Push(ctx, "origin", branch); err != nil {
		log.Warn("runner: push failed", "error", err)
	}
}

func (r *Runner) publishPR(ctx context.Context, task *core.Task, opts Options, gateOutputs []GateOutput, newState core.State, branch string) (int, error) {
	existing, err := r.deps.GitHub.ListPRs(ctx, core.ListPROptions{State: "open", Head: branch})
	if err == nil && len(existing) > 0 {
		pr := existing[0]
		if opts.AutoMerge && isMergeableState(newState) {
			_ = r.deps.GitHub.MergePR(ctx, pr.Number, core.MergePROptions{Method: opts.MergeStrategy})
		}
		return pr.Number, nil
	}

	pr, err := r.deps.GitHub.CreatePR(ctx, core.CreatePROptions{
		Title: fmt.Sprintf("%s: %s", task.ID, task.Title),
		Body:  buildPRBody(task, gateOutputs, newState),
		Head:  branch,
		Base:  opts.BaseBranch,
	})
	if err != nil {
		return 0, err
	}
	if opts.AutoMerge && isMergeableState(newState) {
		_ = r.deps.GitHub.MergePR(ctx, pr.Number, core.MergePROptions{Method: opts.MergeStrategy})
	}
	return pr.Number, nil
}

func isMergeableState(s core.State) bool {
	return s == core.StateReadyForReview || s == core.StateDone
}

func decideState(task *core.Task, finalState core.State, gatesOK, ownershipOK bool, reviewLog string, failures []OwnershipFailure) (core.State, string) {
	if gatesOK && ownershipOK {
		note := "Judge: gates ok; ownership ok."
		if reviewLog != "" {
			note += " Review log: " + reviewLog
		}
		return finalState, note
	}

	var reasons []string
	if !gatesOK {
		reasons = append(reasons, "gates_failed")
	}
	if !ownershipOK {
		reasons = append(reasons, "path_ownership_violation")
	}
	note := fmt.Sprintf("@human Judge blocked: %s.", strings.Join(reasons, ", "))
	if reviewLog != "" {
		note += " Review log: " + reviewLog
	}
	if len(failures) > 0 {
		var detail []string
		for _, f := range failures {
			detail = append(detail, fmt.Sprintf("%s (%s)", f.Path, f.Reason))
		}
		note += " Ownership failures: " + strings.Join(detail, "; ")
	}
	return core.StateBlocked, note
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func utcCompact(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}
