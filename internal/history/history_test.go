package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskswarm/supervisor/internal/history"
)

func openTestStore(t *testing.T) *history.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_CreatesParentDirAndIsReopenable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	store, err := history.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store2, err := history.Open(dbPath)
	require.NoError(t, err)
	defer store2.Close()
}

func TestRecordTick_AssignsIncreasingIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec1 := history.Record{
		StartedAt:    time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2026, 7, 1, 10, 0, 5, 0, time.UTC),
		DoneCount:    3,
		ClaimedCount: 1,
		ReadyCount:   2,
		SelectedIDs:  []string{"T001", "T002"},
		Started: []history.TaskOutcome{
			{TaskID: "T001", Branch: "task/t001", Worktree: "/repo/.worktrees/t001"},
		},
	}
	id1, err := store.RecordTick(ctx, rec1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id1)

	rec2 := rec1
	rec2.StartedAt = rec1.StartedAt.Add(time.Hour)
	rec2.FinishedAt = rec1.FinishedAt.Add(time.Hour)
	rec2.Err = "gate battery failed: lint"
	id2, err := store.RecordTick(ctx, rec2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id2)
}

func TestRecentTicks_ReturnsNewestFirstAndDecodesJSON(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := history.Record{
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			FinishedAt:  base.Add(time.Duration(i)*time.Hour + time.Minute),
			SelectedIDs: []string{"T00" + string(rune('1'+i))},
			Started: []history.TaskOutcome{
				{TaskID: "T00" + string(rune('1'+i)), Branch: "task/branch"},
			},
			Repairs: []history.TaskOutcome{},
		}
		_, err := store.RecordTick(ctx, rec)
		require.NoError(t, err)
	}

	recs, err := store.RecentTicks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(3), recs[0].ID)
	assert.Equal(t, int64(2), recs[1].ID)
	assert.Equal(t, []string{"T003"}, recs[0].SelectedIDs)
	require.Len(t, recs[0].Started, 1)
	assert.Equal(t, "T003", recs[0].Started[0].TaskID)
}

func TestRecentTicks_DefaultLimitWhenNonPositive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.RecordTick(ctx, history.Record{
		StartedAt:  time.Now().UTC().Add(-time.Minute),
		FinishedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	recs, err := store.RecentTicks(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRecord_AgeUsesHumanize(t *testing.T) {
	rec := history.Record{FinishedAt: time.Now().UTC().Add(-2 * time.Hour)}
	assert.Contains(t, rec.Age(), "ago")
}

func TestRecordTick_PreservesErrorField(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.RecordTick(ctx, history.Record{
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Err:        "worktree creation failed",
	})
	require.NoError(t, err)

	recs, err := store.RecentTicks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "worktree creation failed", recs[0].Err)
}

func TestRecordTick_EmptyErrorRoundTripsEmpty(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.RecordTick(ctx, history.Record{
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	recs, err := store.RecentTicks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Err)
}
