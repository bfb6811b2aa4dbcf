// Package taskstore loads, lists, and surgically rewrites task descriptor
// files under the control-plane directory (spec.md §3, §4.1).
package taskstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/taskswarm/supervisor/internal/core"
)

// RequiredHeadings are the six "## ..." sections every task descriptor's
// body must carry (checked in full by the task_hygiene gate; parsed here
// only for the two mutable ones).
var RequiredHeadings = []string{
	"## Objective",
	"## Acceptance Criteria",
	"## Approach",
	"## Status",
	"## Notes / Decisions",
	"## Context",
}

const notesHeading = "## Notes / Decisions"

var (
	stateLinePattern       = regexp.MustCompile(`(?m)^([ \t]*-[ \t]*State:[ \t]*)(\S*)[ \t]*$`)
	lastUpdatedLinePattern = regexp.MustCompile(`(?m)^([ \t]*-[ \t]*Last updated:[ \t]*)(\d{4}-\d{2}-\d{2})?[ \t]*$`)
)

// Store implements core.TaskStore over a control-plane directory laid out
// as five lifecycle subfolders (backlog/active/blocked/ready_for_review/done).
type Store struct {
	ControlDir string
}

// New returns a Store rooted at controlDir (typically ".orchestrator").
func New(controlDir string) *Store {
	return &Store{ControlDir: controlDir}
}

var _ core.TaskStore = (*Store)(nil)

// folderForState maps a lifecycle state to its subfolder name; they are
// identical by construction but kept distinct so the mapping has one home.
func folderForState(s core.State) string { return string(s) }

// Load parses one task descriptor file.
func (s *Store) Load(path string) (*core.Task, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, core.ErrParse(path, err.Error())
	}
	return parseTask(path, string(raw))
}

// ParseBytes parses a task descriptor's raw content without requiring it
// to live under a Store's control directory. internal/gates' task_hygiene
// check uses this directly so it can report every malformed file instead
// of failing fast on the first one, which List/Load intentionally do.
func ParseBytes(path string, raw []byte) (*core.Task, error) {
	return parseTask(path, string(raw))
}

func parseTask(path, text string) (*core.Task, error) {
	fm, bodyOffset, ok := parseFrontmatter(text)
	if !ok {
		return nil, core.ErrParse(path, "missing --- frontmatter block")
	}

	taskID := fm.str("task_id")
	if taskID == "" {
		return nil, core.ErrParse(path, "missing task_id")
	}
	expectedPrefix := taskID + "_"
	base := filepath.Base(path)
	if !strings.HasPrefix(base, expectedPrefix) && !strings.HasPrefix(base, taskID+".") {
		return nil, core.ErrParse(path, fmt.Sprintf("task_id %q does not match filename %q", taskID, base))
	}

	body := text[bodyOffset:]
	state, lastUpdated := parseStatus(body)

	t := &core.Task{
		Path:            path,
		ID:              core.TaskID(taskID),
		Title:           fm.str("title"),
		Workstream:      fm.str("workstream"),
		Role:            core.Role(fm.str("role")),
		Priority:        core.Priority(strings.ToLower(fm.str("priority"))),
		Dependencies:    toTaskIDs(fm.strList("dependencies")),
		ParallelOK:      fm.boolean("parallel_ok"),
		AllowedPaths:    fm.strList("allowed_paths"),
		DisallowedPaths: fm.strList("disallowed_paths"),
		Outputs:         fm.strList("outputs"),
		Gates:           fm.strList("gates"),
		StopConditions:  fm.strList("stop_conditions"),
		State:           state,
		LastUpdated:     lastUpdated,
	}
	return t, nil
}

func toTaskIDs(ss []string) []core.TaskID {
	out := make([]core.TaskID, len(ss))
	for i, s := range ss {
		out[i] = core.TaskID(s)
	}
	return out
}

func parseStatus(body string) (core.State, string) {
	var state core.State
	var lastUpdated string
	if m := stateLinePattern.FindStringSubmatch(body); m != nil {
		state = core.State(m[2])
	}
	if m := lastUpdatedLinePattern.FindStringSubmatch(body); m != nil {
		lastUpdated = m[2]
	}
	return state, lastUpdated
}

// List parses every task file directly under the given lifecycle folder,
// skipping README.md, in filename order.
func (s *Store) listFolder(folder string) ([]*core.Task, error) {
	dir := filepath.Join(s.ControlDir, folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.ErrParse(dir, err.Error())
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name() == "README.md" || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	tasks := make([]*core.Task, 0, len(names))
	for _, name := range names {
		t, err := s.Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// List returns every task across all five lifecycle folders.
func (s *Store) List() ([]*core.Task, error) {
	var all []*core.Task
	for _, state := range core.LifecycleStates() {
		tasks, err := s.listFolder(folderForState(state))
		if err != nil {
			return nil, err
		}
		all = append(all, tasks...)
	}
	return all, nil
}

// FindByID scans every lifecycle folder for the first file whose name
// starts with id, mirroring swarm.py's _find_task_file_anywhere.
func (s *Store) FindByID(id core.TaskID) (*core.Task, error) {
	for _, state := range core.LifecycleStates() {
		dir := filepath.Join(s.ControlDir, folderForState(state))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, core.ErrParse(dir, err.Error())
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && strings.HasPrefix(e.Name(), string(id)) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		if len(names) > 0 {
			return s.Load(filepath.Join(dir, names[0]))
		}
	}
	return nil, core.ErrNotFound("TASK_NOT_FOUND", fmt.Sprintf("no task file found for %s under %s", id, s.ControlDir))
}

// UpdateState performs the surgical rewrite described in spec.md §4.1: it
// replaces exactly the State and Last-updated lines and appends one note
// line immediately after the "## Notes / Decisions" heading. Every other
// byte of the file is preserved. Failure to locate any of the three
// anchors is fatal, matching the original's fail-fast behavior.
func (s *Store) UpdateState(id core.TaskID, to core.State, note string, now time.Time) error {
	t, err := s.FindByID(id)
	if err != nil {
		return err
	}
	if !core.ValidState(to) {
		return core.ErrValidation("TASK_STATE_INVALID", fmt.Sprintf("state %q is not a valid lifecycle state", to))
	}

	raw, err := os.ReadFile(t.Path)
	if err != nil {
		return core.ErrParse(t.Path, err.Error())
	}
	text := string(raw)
	today := now.UTC().Format("2006-01-02")

	rewritten, n := replaceFirst(text, stateLinePattern, func(m []string) string {
		return m[1] + string(to)
	})
	if n == 0 {
		return core.ErrParse(t.Path, "could not find State line to update")
	}

	rewritten, n = replaceFirst(rewritten, lastUpdatedLinePattern, func(m []string) string {
		return m[1] + today
	})
	if n == 0 {
		return core.ErrParse(t.Path, "could not find Last updated line to update")
	}

	idx := strings.Index(rewritten, notesHeading)
	if idx < 0 {
		return core.ErrParse(t.Path, "could not find \"## Notes / Decisions\" heading")
	}
	insertAt := idx + len(notesHeading)
	noteLine := fmt.Sprintf("\n\n- %s: %s", today, strings.TrimSpace(note))
	final := rewritten[:insertAt] + noteLine + rewritten[insertAt:]

	return renameio.WriteFile(t.Path, []byte(final), 0o644)
}

func replaceFirst(text string, pattern *regexp.Regexp, repl func([]string) string) (string, int) {
	loc := pattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, 0
	}
	groups := make([]string, len(loc)/2)
	for i := range groups {
		if loc[2*i] < 0 {
			continue
		}
		groups[i] = text[loc[2*i]:loc[2*i+1]]
	}
	replacement := repl(groups)
	return text[:loc[0]] + replacement + text[loc[1]:], 1
}

// Move relocates a task file into the lifecycle folder matching its
// current declared State, returning the new path. It does not change
// State itself; that is UpdateState's job. Move is how the Sweeper
// enforces invariant I1 (physical folder == declared State).
func (s *Store) Move(id core.TaskID, to core.State) (string, error) {
	t, err := s.FindByID(id)
	if err != nil {
		return "", err
	}
	if !core.ValidState(to) {
		return "", core.ErrValidation("TASK_STATE_INVALID", fmt.Sprintf("state %q is not a valid lifecycle state", to))
	}

	destDir := filepath.Join(s.ControlDir, folderForState(to))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", core.ErrVCS("mkdir", err)
	}
	dest := filepath.Join(destDir, filepath.Base(t.Path))
	if dest == t.Path {
		return dest, nil
	}
	if err := os.Rename(t.Path, dest); err != nil {
		return "", core.ErrVCS("move task file", err)
	}
	return dest, nil
}
