// Package board is a live terminal viewer of the repository's task
// files, laid out as the five lifecycle columns in
// core.LifecycleStates() order. It is read-only: the model polls
// the task store on an interval and renders what it finds, the same
// "MVU" bubbletea shape the teacher's internal/tui package uses for
// its own workflow viewer, but with no control-plane mutation
// messages at all — this viewer has nothing equivalent to send.
package board

import (
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskswarm/supervisor/internal/clip"
	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/taskstore"
	"github.com/taskswarm/supervisor/internal/vcs"
)

// columns is the fixed left-to-right lifecycle order the board
// renders, matching core.LifecycleStates().
var columns = core.LifecycleStates()

var columnTitles = map[core.State]string{
	core.StateBacklog:        "Backlog",
	core.StateActive:         "Active",
	core.StateBlocked:        "Blocked",
	core.StateReadyForReview: "Ready for Review",
	core.StateDone:           "Done",
}

var columnAccent = map[core.State]lipgloss.Color{
	core.StateBacklog:        lipgloss.Color("#6b7280"),
	core.StateActive:         lipgloss.Color("#3b82f6"),
	core.StateBlocked:        lipgloss.Color("#ef4444"),
	core.StateReadyForReview: lipgloss.Color("#f59e0b"),
	core.StateDone:           lipgloss.Color("#22c55e"),
}

// RefreshMsg carries a freshly reloaded task snapshot, or an error if
// the reload failed (the previous snapshot is kept on screen either
// way).
type RefreshMsg struct {
	Columns map[core.State][]*core.Task
	Err     error
}

// tickMsg triggers the next poll.
type tickMsg time.Time

// clipMsg reports the outcome of a clipboard copy, shown briefly in
// the footer.
type clipMsg struct {
	text string
	err  error
}

// Model is the board's bubbletea model.
type Model struct {
	tasks           *taskstore.Store
	refreshInterval time.Duration

	width, height int
	ready         bool

	cols        map[core.State][]*core.Task
	selectedCol int
	selectedRow int

	lastRefresh time.Time
	err         error
	status      string
}

// New builds a Model that polls tasks every refreshInterval.
func New(tasks *taskstore.Store, refreshInterval time.Duration) Model {
	if refreshInterval <= 0 {
		refreshInterval = 2 * time.Second
	}
	return Model{
		tasks:           tasks,
		refreshInterval: refreshInterval,
		cols:            map[core.State][]*core.Task{},
	}
}

// Init starts the polling loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(refreshCmd(m.tasks), tickCmd(m.refreshInterval))
}

func refreshCmd(tasks *taskstore.Store) tea.Cmd {
	return func() tea.Msg {
		all, err := tasks.List()
		if err != nil {
			return RefreshMsg{Err: err}
		}
		grouped := map[core.State][]*core.Task{}
		for _, t := range all {
			grouped[t.State] = append(grouped[t.State], t)
		}
		for _, state := range columns {
			sort.Slice(grouped[state], func(i, j int) bool {
				return grouped[state][i].ID < grouped[state][j].ID
			})
		}
		return RefreshMsg{Columns: grouped}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		_, err := clip.WriteAll(text)
		return clipMsg{text: text, err: err}
	}
}

// Update handles bubbletea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		return m, nil

	case tickMsg:
		return m, tea.Batch(refreshCmd(m.tasks), tickCmd(m.refreshInterval))

	case RefreshMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		m.cols = msg.Columns
		m.lastRefresh = time.Now()
		m.clampSelection()
		return m, nil

	case clipMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
		} else {
			m.status = "copied: " + msg.text
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "left", "h":
		if m.selectedCol > 0 {
			m.selectedCol--
			m.clampSelection()
		}
		return m, nil

	case "right", "l":
		if m.selectedCol < len(columns)-1 {
			m.selectedCol++
			m.clampSelection()
		}
		return m, nil

	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
		return m, nil

	case "down", "j":
		if m.selectedRow < len(m.currentColumnTasks())-1 {
			m.selectedRow++
		}
		return m, nil

	case "y":
		task := m.selectedTask()
		if task == nil {
			return m, nil
		}
		branch := vcs.TaskBranchName(task.ID, slugify(task.Title))
		return m, copyCmd(branch)
	}
	return m, nil
}

func (m Model) currentColumnTasks() []*core.Task {
	if m.selectedCol < 0 || m.selectedCol >= len(columns) {
		return nil
	}
	return m.cols[columns[m.selectedCol]]
}

func (m Model) selectedTask() *core.Task {
	tasks := m.currentColumnTasks()
	if m.selectedRow < 0 || m.selectedRow >= len(tasks) {
		return nil
	}
	return tasks[m.selectedRow]
}

func (m *Model) clampSelection() {
	tasks := m.currentColumnTasks()
	if m.selectedRow >= len(tasks) {
		m.selectedRow = len(tasks) - 1
	}
	if m.selectedRow < 0 {
		m.selectedRow = 0
	}
}

// slugify mirrors internal/scheduler's own branch-slug helper: lowercase
// alphanumerics, dash-separated, so the board's "y" key copies exactly
// the branch name the Scheduler would have created.
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
