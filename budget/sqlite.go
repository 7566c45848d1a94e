package budget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteLedger persists counters in a budget_counters table.
type SQLiteLedger struct {
	db       *sql.DB
	settings Settings
}

func NewSQLiteLedger(path string, s Settings) (*SQLiteLedger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// 单连接，保证增量在同一事务内串行。
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	const schema = `
	CREATE TABLE IF NOT EXISTS budget_counters (
		user_id TEXT PRIMARY KEY,
		spent TEXT NOT NULL,
		spend_limit TEXT,
		reset_at INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create budget_counters: %w", err)
	}
	return &SQLiteLedger{db: db, settings: s}, nil
}

func (l *SQLiteLedger) Close() error { return l.db.Close() }

type row struct {
	spent   decimal.Decimal
	limit   sql.NullString
	resetAt int64
	found   bool
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func load(ctx context.Context, q queryer, userID string) (row, error) {
	var (
		r     row
		spent string
	)
	err := q.QueryRowContext(ctx,
		`SELECT spent, spend_limit, reset_at FROM budget_counters WHERE user_id = ?`, userID,
	).Scan(&spent, &r.limit, &r.resetAt)
	if errors.Is(err, sql.ErrNoRows) {
		return row{spent: decimal.Zero}, nil
	}
	if err != nil {
		return row{}, err
	}
	r.spent, err = decimal.NewFromString(spent)
	if err != nil {
		return row{}, fmt.Errorf("corrupt spend for %s: %w", userID, err)
	}
	r.found = true
	return r, nil
}

func (l *SQLiteLedger) expired(r row, now time.Time) bool {
	return r.resetAt > 0 && now.UnixNano() >= r.resetAt
}

func (l *SQLiteLedger) IncrementSpend(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()

	r, err := load(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	now := l.settings.now()
	resetAt := r.resetAt
	spent := r.spent
	if !r.found || l.expired(r, now) {
		spent = decimal.Zero
		resetAt = 0
	}
	if resetAt == 0 {
		if next := l.settings.nextReset(now); !next.IsZero() {
			resetAt = next.UnixNano()
		}
	}
	spent = spent.Add(amount)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO budget_counters (user_id, spent, reset_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET spent = excluded.spent, reset_at = excluded.reset_at`,
		userID, spent.String(), resetAt)
	if err != nil {
		return decimal.Zero, fmt.Errorf("update spend: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return spent, nil
}

func (l *SQLiteLedger) Spent(ctx context.Context, userID string) (decimal.Decimal, error) {
	r, err := load(ctx, l.db, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if l.expired(r, l.settings.now()) {
		return decimal.Zero, nil
	}
	return r.spent, nil
}

func (l *SQLiteLedger) Limit(ctx context.Context, userID string) (decimal.Decimal, error) {
	r, err := load(ctx, l.db, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if r.limit.Valid && r.limit.String != "" {
		return decimal.NewFromString(r.limit.String)
	}
	return l.settings.DefaultLimit, nil
}

// SetLimit overrides the default limit for one user.
func (l *SQLiteLedger) SetLimit(ctx context.Context, userID string, limit decimal.Decimal) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO budget_counters (user_id, spent, spend_limit) VALUES (?, '0', ?)
		ON CONFLICT(user_id) DO UPDATE SET spend_limit = excluded.spend_limit`,
		userID, limit.String())
	return err
}

// Reset zeroes every counter and keeps per-user limits.
func (l *SQLiteLedger) Reset(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `UPDATE budget_counters SET spent = '0', reset_at = 0`)
	return err
}
