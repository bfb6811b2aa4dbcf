package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/history"
	"github.com/taskswarm/supervisor/internal/runner"
	"github.com/taskswarm/supervisor/internal/scheduler"
)

func TestRecordTickHistory_SuccessfulTick(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	result := &scheduler.TickResult{
		Done:     []core.TaskID{"T001"},
		Claimed:  []core.TaskID{"T002"},
		Ready:    []core.TaskID{"T003"},
		Selected: []core.TaskID{"T003"},
		Started: []scheduler.StartedTask{
			{TaskID: "T003", Branch: "T003_build", Worktree: "/tmp/wt-T003", Result: &runner.Result{}},
		},
	}

	require.NoError(t, recordTickHistory(context.Background(), dbPath, time.Now(), result, nil))

	store, err := history.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	recs, err := store.RecentTicks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].DoneCount)
	assert.Equal(t, 1, recs[0].ClaimedCount)
	assert.Equal(t, 1, recs[0].ReadyCount)
	assert.Equal(t, []string{"T003"}, recs[0].SelectedIDs)
	require.Len(t, recs[0].Started, 1)
	assert.Equal(t, "T003_build", recs[0].Started[0].Branch)
	assert.Empty(t, recs[0].Err)
}

func TestRecordTickHistory_FailedTickRecordsErrorWithZeroedCounts(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	require.NoError(t, recordTickHistory(context.Background(), dbPath, time.Now(), nil, errors.New("reset failed")))

	store, err := history.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	recs, err := store.RecentTicks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "reset failed", recs[0].Err)
	assert.Equal(t, 0, recs[0].DoneCount)
}

func TestTickCommandRegistered(t *testing.T) {
	var found bool
	for _, c := range rootCmd.Commands() {
		if c.Use == "tick" {
			found = true
			break
		}
	}
	assert.True(t, found, "tick command should be registered with root command")
}
