package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/taskswarm/supervisor/internal/board"
	"github.com/taskswarm/supervisor/internal/taskstore"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the live terminal board of task lifecycle columns",
	Long: `board renders the task store as the five lifecycle columns and
polls for changes on an interval; it never writes to the task store
itself. Press q to quit, h/l and j/k to move the selection, and y to
copy the selected task's branch name.`,
	RunE: runBoard,
}

func init() {
	rootCmd.AddCommand(boardCmd)
}

func runBoard(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	refresh := 2 * time.Second
	if cfg.Board.RefreshInterval != "" {
		d, err := time.ParseDuration(cfg.Board.RefreshInterval)
		if err != nil {
			return fmt.Errorf("parsing board.refresh_interval: %w", err)
		}
		refresh = d
	}

	store := taskstore.New(cfg.Repo.ControlDir)
	model := board.New(store, refresh)

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
