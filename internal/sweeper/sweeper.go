// Package sweeper reconciles each task descriptor's on-disk location
// with its declared lifecycle state (spec.md §4.7). The Task Runner
// only ever rewrites a task file's State/Notes in place — claim is
// the one exception, moving backlog -> active itself — so a task that
// finishes a run in a new state (ready_for_review, blocked, done)
// needs a separate pass to relocate its file into the matching
// folder. The Sweeper is that pass.
package sweeper

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/taskstore"
)

// Move records one task file relocated (or, in dry-run, planned to be
// relocated) from one lifecycle folder to another.
type Move struct {
	TaskID   core.TaskID
	From     string
	To       string
	FromPath string
	ToPath   string
}

// Problem records one task file the Sweeper could not reconcile: its
// declared State does not name a valid lifecycle folder, so there is
// nowhere to move it.
type Problem struct {
	TaskID core.TaskID
	Path   string
	State  string
	Reason string
}

// Report summarizes one Reconcile call.
type Report struct {
	Moves    []Move
	Problems []Problem
}

// OK reports whether the sweep found no problems. A dry-run with
// pending moves but no problems is still OK: moves are the Sweeper's
// normal job, not a failure.
func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

// Reconcile scans every task descriptor under store, relocating any
// whose parent folder name does not match its declared State. When
// dryRun is true, no files are moved or committed; the Report
// describes what would happen.
func Reconcile(ctx context.Context, store *taskstore.Store, git core.GitClient, dryRun bool) (*Report, error) {
	tasks, err := store.List()
	if err != nil {
		return nil, err
	}
	// Stable order makes Reports (and any log output built from them)
	// deterministic across runs, independent of directory read order.
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	report := &Report{}
	for _, t := range tasks {
		currentFolder := filepath.Base(filepath.Dir(t.Path))
		if !core.ValidState(t.State) {
			report.Problems = append(report.Problems, Problem{
				TaskID: t.ID,
				Path:   t.Path,
				State:  string(t.State),
				Reason: "unknown_or_malformed_state",
			})
			continue
		}
		declaredFolder := string(t.State)
		if currentFolder == declaredFolder {
			continue
		}

		move := Move{
			TaskID:   t.ID,
			From:     currentFolder,
			To:       declaredFolder,
			FromPath: t.Path,
		}
		if dryRun {
			move.ToPath = filepath.Join(filepath.Dir(filepath.Dir(t.Path)), declaredFolder, filepath.Base(t.Path))
			report.Moves = append(report.Moves, move)
			continue
		}

		dest, err := store.Move(t.ID, t.State)
		if err != nil {
			report.Problems = append(report.Problems, Problem{
				TaskID: t.ID,
				Path:   t.Path,
				State:  string(t.State),
				Reason: "move_failed: " + err.Error(),
			})
			continue
		}
		move.ToPath = dest
		report.Moves = append(report.Moves, move)
	}

	if !dryRun && git != nil && len(report.Moves) > 0 {
		if err := stageAndCommit(ctx, git, report.Moves); err != nil {
			return report, err
		}
	}

	return report, nil
}

// stageAndCommit records every relocated file with the VCS adapter so
// the move is tracked history, not a working-tree-only rename; a
// commit failure (e.g. a clean checkout with nothing staged, or no
// VCS identity configured) is surfaced to the caller but does not
// undo the on-disk moves already made.
func stageAndCommit(ctx context.Context, git core.GitClient, moves []Move) error {
	paths := make([]string, 0, len(moves)*2)
	for _, m := range moves {
		paths = append(paths, m.FromPath, m.ToPath)
	}
	if err := git.Add(ctx, paths...); err != nil {
		return core.ErrVCS("stage sweeper moves", err)
	}
	if _, err := git.Commit(ctx, "sweeper: reconcile task file locations"); err != nil {
		return core.ErrVCS("commit sweeper moves", err)
	}
	return nil
}
