package runner

import (
	"path/filepath"
	"strings"

	"github.com/taskswarm/supervisor/internal/core"
)

// taskFilePaths returns the set of paths a task is always permitted to
// touch: its own descriptor, in every lifecycle folder it might live in
// (the Sweeper, not the Runner, performs the actual move, but the
// ownership check must not flag the file the Runner itself just edited).
func taskFilePaths(task *core.Task) map[string]bool {
	out := make(map[string]bool, len(core.LifecycleStates()))
	base := filepath.Base(task.Path)
	controlDir := controlDirFromTaskPath(task.Path)
	for _, state := range core.LifecycleStates() {
		out[filepath.ToSlash(filepath.Join(controlDir, string(state), base))] = true
	}
	return out
}

// handoffPrefix is the one reserved write target every task may touch
// regardless of its own allowed-paths declaration (the Runner's own
// handoff notes to a human, not task output).
func handoffPrefix(task *core.Task) string {
	return controlDirFromTaskPath(task.Path) + "/handoff/"
}

// controlDirFromTaskPath recovers the control-plane directory (e.g.
// ".orchestrator") from a task file's path, which is always
// "<controlDir>/<state>/<file>".
func controlDirFromTaskPath(path string) string {
	dir := filepath.Dir(filepath.Dir(filepath.ToSlash(path)))
	if dir == "." || dir == "" {
		return ".orchestrator"
	}
	return dir
}

// pathAllowed decides whether a changed repository path is one this task
// was permitted to touch. Disallowed-path prefixes always win over
// allowed-path prefixes; the task's own descriptor and the reserved
// handoff subpath are always permitted.
func pathAllowed(path string, allowedPaths, disallowedPaths []string, taskPaths map[string]bool, handoff string) (bool, string) {
	norm := filepath.ToSlash(path)
	if taskPaths[norm] {
		return true, ""
	}
	if handoff != "" && strings.HasPrefix(norm, handoff) {
		return true, ""
	}

	for _, bad := range disallowedPaths {
		if bad != "" && strings.HasPrefix(norm, bad) {
			return false, "disallowed_path:" + bad
		}
	}
	for _, ok := range allowedPaths {
		if ok != "" && strings.HasPrefix(norm, ok) {
			return true, ""
		}
	}
	return false, "outside_allowed_paths"
}

// entryViolatesTaskFileIntegrity reports whether a single status entry is
// a rename of the task's own descriptor away from itself, or a deletion
// of it — both explicitly disqualifying regardless of allowed/disallowed
// paths, since they would otherwise slip through pathAllowed's plain
// membership check (a deleted task file's Path still equals its own
// taskPaths entry, and would read as "always permitted" without this
// check).
func entryViolatesTaskFileIntegrity(f core.FileStatus, taskPaths map[string]bool) (bool, string) {
	norm := filepath.ToSlash(f.Path)
	switch f.Status {
	case "D":
		if taskPaths[norm] {
			return true, "task_file_deleted"
		}
	case "R":
		orig := filepath.ToSlash(f.OrigPath)
		if taskPaths[orig] && orig != norm {
			return true, "task_file_renamed_away"
		}
	}
	return false, ""
}

// changedPaths flattens a GitStatus into every touched status entry,
// staged or not; untracked paths are reported as plain additions with no
// meaningful prior state.
func changedPaths(status *core.GitStatus) []core.FileStatus {
	var out []core.FileStatus
	out = append(out, status.Staged...)
	out = append(out, status.Unstaged...)
	for _, p := range status.Untracked {
		out = append(out, core.FileStatus{Path: p, Status: "A"})
	}
	return out
}
