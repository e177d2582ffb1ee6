// Package journal keeps an append-only SQLite record of claim events.
// Claim loops write through a Writer; the history command reads it back.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shaneisley/collector/pkg/scheduler"
)

// Entry is one journal row
type Entry struct {
	ID            string
	CycleID       string
	Account       string
	Kind          string
	Stage         string
	ErrorKind     string
	Error         string
	RewardAmount  float64
	NewBalance    float64
	LoginStreak   int
	NextClaimTime string
	NextWait      time.Duration
	OccurredAt    time.Time
}

// AccountSummary aggregates the journal for one account
type AccountSummary struct {
	Account      string
	Claims       int
	Failures     int
	TotalRewards float64
	LastClaim    *time.Time
}

// Journal manages the SQLite claim journal
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens or creates the journal at path
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// single connection; Writer serializes the claim loops' writes
	db.SetMaxOpenConns(1)

	j := &Journal{
		db:   db,
		path: path,
	}

	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS claim_events (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		account TEXT NOT NULL,
		kind TEXT NOT NULL,
		stage TEXT NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		reward_amount REAL NOT NULL DEFAULT 0,
		new_balance REAL NOT NULL DEFAULT 0,
		login_streak INTEGER NOT NULL DEFAULT 0,
		next_claim_time TEXT NOT NULL DEFAULT '',
		next_wait_ms INTEGER NOT NULL,
		occurred_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_claim_events_account ON claim_events(account);
	CREATE INDEX IF NOT EXISTS idx_claim_events_time ON claim_events(occurred_at);
	`

	_, err := j.db.Exec(schema)
	return err
}

// Record stores a scheduler event
func (j *Journal) Record(ctx context.Context, ev scheduler.Event) error {
	entry := Entry{
		ID:         uuid.NewString(),
		CycleID:    ev.CycleID,
		Account:    ev.Account,
		Kind:       string(ev.Kind),
		Stage:      ev.Stage.String(),
		NextWait:   ev.NextWait,
		OccurredAt: ev.At,
	}

	switch ev.Kind {
	case scheduler.EventClaimed:
		if r := ev.Result; r != nil {
			entry.RewardAmount = r.RewardAmount
			entry.NewBalance = r.NewBalance
			entry.LoginStreak = r.LoginStreak
			if r.NextClaimTime != nil {
				entry.NextClaimTime = *r.NextClaimTime
			}
		}
	case scheduler.EventFailed:
		entry.ErrorKind = ev.ErrorKind().String()
		if ev.Err != nil {
			entry.Error = ev.Err.Error()
		}
	}

	query := `
	INSERT INTO claim_events (
		id, cycle_id, account, kind, stage, error_kind, error, reward_amount,
		new_balance, login_streak, next_claim_time, next_wait_ms, occurred_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		entry.ID, entry.CycleID, entry.Account, entry.Kind, entry.Stage, entry.ErrorKind,
		entry.Error, entry.RewardAmount, entry.NewBalance, entry.LoginStreak,
		entry.NextClaimTime, entry.NextWait.Milliseconds(), entry.OccurredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record %s event: %w", entry.Kind, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty account
// returns entries for every account.
func (j *Journal) Recent(ctx context.Context, account string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
	SELECT id, cycle_id, account, kind, stage, error_kind, error, reward_amount,
	       new_balance, login_streak, next_claim_time, next_wait_ms, occurred_at
	FROM claim_events
	WHERE (? = '' OR account = ?)
	ORDER BY occurred_at DESC, rowid DESC
	LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, account, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Entry
	for rows.Next() {
		entry := &Entry{}
		var nextWaitMs int64
		var occurredAt int64

		err := rows.Scan(
			&entry.ID, &entry.CycleID, &entry.Account, &entry.Kind, &entry.Stage,
			&entry.ErrorKind, &entry.Error, &entry.RewardAmount, &entry.NewBalance,
			&entry.LoginStreak, &entry.NextClaimTime, &nextWaitMs, &occurredAt)
		if err != nil {
			return nil, err
		}

		entry.NextWait = time.Duration(nextWaitMs) * time.Millisecond
		entry.OccurredAt = time.UnixMilli(occurredAt)

		results = append(results, entry)
	}

	return results, rows.Err()
}

// Summary aggregates claims and failures per account, ordered by name
func (j *Journal) Summary(ctx context.Context) ([]*AccountSummary, error) {
	query := `
	SELECT account,
	       SUM(CASE WHEN kind = 'claimed' THEN 1 ELSE 0 END),
	       SUM(CASE WHEN kind = 'failed' THEN 1 ELSE 0 END),
	       COALESCE(SUM(CASE WHEN kind = 'claimed' THEN reward_amount ELSE 0 END), 0),
	       MAX(CASE WHEN kind = 'claimed' THEN occurred_at END)
	FROM claim_events
	GROUP BY account
	ORDER BY account`

	rows, err := j.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*AccountSummary
	for rows.Next() {
		s := &AccountSummary{}
		var lastClaim *int64

		if err := rows.Scan(&s.Account, &s.Claims, &s.Failures, &s.TotalRewards, &lastClaim); err != nil {
			return nil, err
		}
		if lastClaim != nil {
			t := time.UnixMilli(*lastClaim)
			s.LastClaim = &t
		}

		results = append(results, s)
	}

	return results, rows.Err()
}

// Path returns the journal file path
func (j *Journal) Path() string {
	return j.path
}

// Close closes the journal
func (j *Journal) Close() error {
	return j.db.Close()
}
