// Package history is a local, non-authoritative ledger of each tick the
// Scheduler runs: what it found done/claimed/ready, which tasks it
// selected and started, which claims it repaired, and whether the tick
// itself errored. It exists purely to answer "supervisor status
// --history" quickly; the task files under the repository remain the
// single source of truth for lifecycle state. Losing this database
// loses observability, never correctness.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	_ "modernc.org/sqlite"

	"github.com/taskswarm/supervisor/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// TaskOutcome records what happened to a single task during a tick:
// a started dispatch or a repaired claim, either one.
type TaskOutcome struct {
	TaskID   string `json:"task_id"`
	Branch   string `json:"branch,omitempty"`
	Worktree string `json:"worktree,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Record is one completed tick, ready to append or to have been read
// back from the ledger.
type Record struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   time.Time
	DoneCount    int
	ClaimedCount int
	ReadyCount   int
	SelectedIDs  []string
	Started      []TaskOutcome
	Repairs      []TaskOutcome
	Err          string
}

// Age renders FinishedAt as a human-relative duration ("3 minutes ago"),
// the one place this package reaches for go-humanize rather than
// formatting a raw duration itself.
func (r Record) Age() string {
	return humanize.Time(r.FinishedAt)
}

// Store wraps a single SQLite connection dedicated to the tick ledger.
// Unlike a full state manager juggling many concurrent writers, a
// supervisor has exactly one active Scheduler loop appending ticks, so
// a single connection (no read/write split, no lock file) is enough;
// SQLITE_BUSY is still possible against a concurrent "status --history"
// read and is retried the same way.
type Store struct {
	db            *sql.DB
	maxRetries    int
	baseRetryWait time.Duration
}

// Open creates the ledger's parent directory if needed, opens dbPath in
// WAL mode, and applies migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, core.ErrState("HISTORY_DIR_CREATE_FAILED", err.Error())
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, core.ErrState("HISTORY_OPEN_FAILED", err.Error())
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, maxRetries: 5, baseRetryWait: 100 * time.Millisecond}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		version = 0
	}
	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return core.ErrState("HISTORY_MIGRATION_FAILED", fmt.Sprintf("applying migration v1: %v", err))
		}
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

func (s *Store) retryWrite(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) {
			return err
		}
		lastErr = err
		if attempt == s.maxRetries {
			break
		}
		wait := s.baseRetryWait * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w (last error: %v)", operation, ctx.Err(), lastErr)
		case <-time.After(wait):
		}
	}
	return core.ErrState("HISTORY_WRITE_RETRIES_EXHAUSTED", fmt.Sprintf("%s: %v", operation, lastErr))
}

// RecordTick appends one tick's outcome to the ledger and returns its
// assigned row id.
func (s *Store) RecordTick(ctx context.Context, rec Record) (int64, error) {
	selected, err := json.Marshal(rec.SelectedIDs)
	if err != nil {
		return 0, core.ErrState("HISTORY_ENCODE_FAILED", err.Error())
	}
	started, err := json.Marshal(rec.Started)
	if err != nil {
		return 0, core.ErrState("HISTORY_ENCODE_FAILED", err.Error())
	}
	repairs, err := json.Marshal(rec.Repairs)
	if err != nil {
		return 0, core.ErrState("HISTORY_ENCODE_FAILED", err.Error())
	}

	var id int64
	err = s.retryWrite(ctx, "record tick", func() error {
		res, execErr := s.db.ExecContext(ctx, `
			INSERT INTO ticks (started_at, finished_at, done_count, claimed_count, ready_count, selected_ids, started_json, repairs_json, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.StartedAt.UTC(), rec.FinishedAt.UTC(), rec.DoneCount, rec.ClaimedCount, rec.ReadyCount,
			string(selected), string(started), string(repairs), nullableString(rec.Err))
		if execErr != nil {
			return execErr
		}
		id, execErr = res.LastInsertId()
		return execErr
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RecentTicks returns up to limit most-recent ticks, newest first.
func (s *Store) RecentTicks(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, done_count, claimed_count, ready_count, selected_ids, started_json, repairs_json, error
		FROM ticks ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, core.ErrState("HISTORY_QUERY_FAILED", err.Error())
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec               Record
			selected, started string
			repairs           string
			errCol            sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.DoneCount, &rec.ClaimedCount, &rec.ReadyCount,
			&selected, &started, &repairs, &errCol); err != nil {
			return nil, core.ErrState("HISTORY_SCAN_FAILED", err.Error())
		}
		if err := json.Unmarshal([]byte(selected), &rec.SelectedIDs); err != nil {
			return nil, core.ErrState("HISTORY_DECODE_FAILED", err.Error())
		}
		if err := json.Unmarshal([]byte(started), &rec.Started); err != nil {
			return nil, core.ErrState("HISTORY_DECODE_FAILED", err.Error())
		}
		if err := json.Unmarshal([]byte(repairs), &rec.Repairs); err != nil {
			return nil, core.ErrState("HISTORY_DECODE_FAILED", err.Error())
		}
		rec.Err = errCol.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrState("HISTORY_QUERY_FAILED", err.Error())
	}
	return out, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
