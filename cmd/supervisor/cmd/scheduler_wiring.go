package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/taskswarm/supervisor/internal/adapters/git"
	"github.com/taskswarm/supervisor/internal/config"
	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/history"
	"github.com/taskswarm/supervisor/internal/logging"
	"github.com/taskswarm/supervisor/internal/runner"
	"github.com/taskswarm/supervisor/internal/scheduler"
	"github.com/taskswarm/supervisor/internal/taskstore"
	"github.com/taskswarm/supervisor/internal/vcs"
)

// wireScheduler builds a Scheduler and the Options for one Tick call
// from resolved config, the one place `tick` and `loop` both assemble
// the full collaborator graph (task store, git/github adapters, claim
// tracker, worker/judge agents, runner factory).
func wireScheduler(cfg *config.Config, log *logging.Logger) (*scheduler.Scheduler, scheduler.Options, error) {
	gitClient, err := git.NewClient(".")
	if err != nil {
		return nil, scheduler.Options{}, fmt.Errorf("opening git repository: %w", err)
	}
	githubClient := openGitHubClient(log)
	claims := vcs.New(gitClient, githubClient, cfg.GitHub.Remote, log)

	worker := buildAgent("worker", cfg.Agents.Worker, log)
	if worker == nil {
		return nil, scheduler.Options{}, fmt.Errorf("agents.worker.path is required")
	}
	judge := buildAgent("judge", cfg.Agents.Judge, log)
	plannerAgent := buildAgent("planner", cfg.Agents.Planner, log)

	tasks := taskstore.New(cfg.Repo.ControlDir)

	newRunner := func(worktreeGit core.GitClient) scheduler.TaskRunner {
		return runner.New(runner.Deps{
			Tasks:    tasks,
			Git:      worktreeGit,
			GitHub:   githubClient,
			Worker:   worker,
			Reviewer: judge,
			Logger:   log,
		})
	}

	openGit := func(path string) (core.GitClient, error) {
		return git.NewClient(path)
	}

	sched := scheduler.New(scheduler.Deps{
		Tasks:     tasks,
		Git:       gitClient,
		OpenGit:   openGit,
		GitHub:    githubClient,
		Claims:    claims,
		NewRunner: newRunner,
		Logger:    log,
	})

	opts := scheduler.Options{
		Remote:         cfg.GitHub.Remote,
		BaseBranch:     cfg.Git.BaseBranch,
		WorktreeParent: cfg.Scheduler.WorktreeParent,
		Capacity:       cfg.Scheduler.MaxWorkers,

		PlannerAgent: plannerAgent,

		FinalState:         core.State(cfg.Runner.FinalState),
		NetworkWorkstreams: cfg.Runner.NetworkWorkstreams,
		CreatePR:           cfg.GitHub.AutoPR,
		AutoMerge:          cfg.GitHub.AutoMerge,
		MergeStrategy:      cfg.GitHub.MergeStrategy,

		RepairEnabled:      true,
		RepairAfterSeconds: cfg.Scheduler.RepairAfterSeconds,
		MaxRepairsPerTick:  cfg.Scheduler.MaxRepairsPerTick,
	}
	if cfg.Runner.MaxWorkerSeconds > 0 {
		opts.MaxWorkerSeconds = time.Duration(cfg.Runner.MaxWorkerSeconds) * time.Second
	}

	return sched, opts, nil
}

// recordTickHistory appends one tick's outcome to the tick-history
// ledger. A nil result (the tick failed before producing one) still
// records the error with zeroed counts, so a string of failed ticks is
// visible in "status --history" rather than silently missing rows.
func recordTickHistory(ctx context.Context, dbPath string, startedAt time.Time, result *scheduler.TickResult, tickErr error) error {
	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	rec := history.Record{StartedAt: startedAt, FinishedAt: time.Now()}
	if tickErr != nil {
		rec.Err = tickErr.Error()
	}
	if result != nil {
		rec.DoneCount = len(result.Done)
		rec.ClaimedCount = len(result.Claimed)
		rec.ReadyCount = len(result.Ready)
		rec.SelectedIDs = make([]string, len(result.Selected))
		for i, id := range result.Selected {
			rec.SelectedIDs[i] = string(id)
		}
		rec.Started = make([]history.TaskOutcome, len(result.Started))
		for i, s := range result.Started {
			rec.Started[i] = history.TaskOutcome{TaskID: string(s.TaskID), Branch: s.Branch, Worktree: s.Worktree}
		}
		rec.Repairs = make([]history.TaskOutcome, len(result.Repairs))
		for i, r := range result.Repairs {
			rec.Repairs[i] = history.TaskOutcome{TaskID: string(r.TaskID), Branch: r.Branch, Worktree: r.Worktree}
		}
	}

	_, err = store.RecordTick(ctx, rec)
	return err
}
