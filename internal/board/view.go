package board

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/taskswarm/supervisor/internal/core"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7c3aed")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
	cardWidth   = 26
)

// View renders the board.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("board: %v", m.err))
	}

	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n\n")

	cols := make([]string, len(columns))
	for i, state := range columns {
		cols[i] = m.renderColumn(state, i == m.selectedCol)
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	sb.WriteString("\n\n")
	sb.WriteString(m.renderFooter())
	return sb.String()
}

func (m Model) renderHeader() string {
	left := headerStyle.Render("◆ supervisor board")
	right := dimStyle.Render("refreshed " + m.lastRefresh.Format("15:04:05"))
	return left + "  " + right
}

func (m Model) renderColumn(state core.State, selected bool) string {
	tasks := m.cols[state]
	accent := columnAccent[state]

	titleStyle := lipgloss.NewStyle().Foreground(accent).Bold(true)
	title := titleStyle.Render(fmt.Sprintf("%s (%d)", columnTitles[state], len(tasks)))

	borderColor := lipgloss.Color("#374151")
	if selected {
		borderColor = accent
	}
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(cardWidth).
		Padding(0, 1)

	var body strings.Builder
	body.WriteString(title)
	body.WriteString("\n")
	if len(tasks) == 0 {
		body.WriteString(dimStyle.Render("(empty)"))
	}
	for i, t := range tasks {
		body.WriteString("\n")
		body.WriteString(m.renderCard(t, state, i))
	}

	return boxStyle.Render(body.String())
}

func (m Model) renderCard(t *core.Task, state core.State, row int) string {
	line := fmt.Sprintf("%s %s", t.ID, truncate(t.Title, cardWidth-8))
	isSelected := m.cols[state] != nil &&
		columnIndex(state) == m.selectedCol && row == m.selectedRow
	if isSelected {
		return lipgloss.NewStyle().Reverse(true).Render(line)
	}
	return line
}

func columnIndex(state core.State) int {
	for i, s := range columns {
		if s == state {
			return i
		}
	}
	return -1
}

func truncate(s string, max int) string {
	if max <= 1 || len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func (m Model) renderFooter() string {
	footer := "q: quit | h/l: column | j/k: task | y: copy branch"
	if m.status != "" {
		footer += "  |  " + m.status
	}
	return footerStyle.Render(footer)
}
