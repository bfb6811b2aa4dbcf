// Package vcs computes which tasks are already claimed by in-flight work,
// by unioning every VCS-visible signal of a task branch (spec.md §4.2,
// §9 Open Question (a)).
package vcs

import (
	"context"
	"regexp"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/logging"
)

// branchTaskIDPattern extracts the leading T### from a branch name such as
// "T002_build-etl-loader", mirroring swarm.py's _parse_task_id_from_branch.
var branchTaskIDPattern = regexp.MustCompile(`^(T\d{3})\b`)

// remoteBranchGlob is the refspec pattern passed to `git ls-remote --heads`.
const remoteBranchGlob = "T[0-9][0-9][0-9]_*"

// ClaimTracker computes the set of task IDs currently claimed by in-flight
// work: a worktree checked out locally, an open pull request, or a pushed
// remote branch.
type ClaimTracker struct {
	git    core.GitClient
	github core.GitHubClient // nil when no GitHub remote is configured
	remote string
	log    *logging.Logger
}

// New returns a ClaimTracker. github may be nil if the repository has no
// configured GitHub remote (PR-based claims are simply skipped).
func New(git core.GitClient, github core.GitHubClient, remote string, log *logging.Logger) *ClaimTracker {
	return &ClaimTracker{git: git, github: github, remote: remote, log: log}
}

// ClaimedTaskIDs returns the union of every VCS signal of task ownership:
//
//   - local worktree branches (a worktree is currently checked out for the task)
//   - open pull-request head branches
//   - remote branches matching the task-branch glob
//
// Unlike the original implementation, which queries PRs and only falls
// back to a remote-branch scan when the PR query yields nothing, this is
// a true union of all three sources: a worktree that was created but
// never pushed, and a branch that was pushed but whose PR was later
// closed without deleting the branch, must both still read as claimed.
func (c *ClaimTracker) ClaimedTaskIDs(ctx context.Context) (map[core.TaskID]bool, error) {
	claimed := map[core.TaskID]bool{}

	worktrees, err := c.git.ListWorktrees(ctx)
	if err != nil {
		return nil, core.ErrVCS("list worktrees", err)
	}
	for _, wt := range worktrees {
		if id, ok := taskIDFromBranch(wt.Branch); ok {
			claimed[id] = true
		}
	}

	if c.github != nil {
		prs, err := c.github.ListPRs(ctx, core.ListPROptions{State: "open"})
		if err != nil {
			c.log.Warn("list open PRs failed; continuing with worktree/remote-branch signals only", "error", err)
		} else {
			for _, pr := range prs {
				if id, ok := taskIDFromBranch(pr.Head.Ref); ok {
					claimed[id] = true
				}
			}
		}
	}

	branches, err := c.git.ListRemoteBranches(ctx, c.remote, remoteBranchGlob)
	if err != nil {
		c.log.Warn("list remote branches failed; continuing with worktree/PR signals only", "error", err)
	} else {
		for _, b := range branches {
			if id, ok := taskIDFromBranch(b); ok {
				claimed[id] = true
			}
		}
	}

	return claimed, nil
}

func taskIDFromBranch(name string) (core.TaskID, bool) {
	m := branchTaskIDPattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return core.TaskID(m[1]), true
}

// TaskBranchName returns the canonical branch name for a task, grounded
// on the original's `T{id}_{slug}` convention.
func TaskBranchName(id core.TaskID, slug string) string {
	if slug == "" {
		return string(id)
	}
	return string(id) + "_" + slug
}
