package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hyperifyio/goarticle/internal/quota"
)

// SQLite stores accounts in a single table. Increments are one
// UPDATE ... RETURNING statement, so they are atomic without a transaction.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(path string) (*SQLite, error) {
	const op = "store.OpenSQLite"
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &SQLite{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			tier TEXT NOT NULL,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			token_limit INTEGER NOT NULL DEFAULT 0,
			subscription_expires_at TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_tier ON accounts(tier)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Create(ctx context.Context, a quota.Account) error {
	const op = "store.SQLite.Create"
	if err := validateID(a.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, tier, tokens_used, token_limit, subscription_expires_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		a.ID, string(a.Tier), toInt64(a.TokensUsed), toInt64(a.TokenLimit), formatTime(a.SubscriptionExpiresAt))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w: %s", op, ErrAccountExists, a.ID)
	}
	return nil
}

func (s *SQLite) FindByID(ctx context.Context, id string) (*quota.Account, error) {
	const op = "store.SQLite.FindByID"
	var (
		a       quota.Account
		tier    string
		used    int64
		limit   int64
		expires sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tier, tokens_used, token_limit, subscription_expires_at FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &tier, &used, &limit, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.Tier = quota.Tier(tier)
	a.TokensUsed = uint64(used)
	a.TokenLimit = uint64(limit)
	if expires.Valid && expires.String != "" {
		t, err := time.Parse(time.RFC3339Nano, expires.String)
		if err != nil {
			return nil, fmt.Errorf("%s: parse expiry: %w", op, err)
		}
		a.SubscriptionExpiresAt = &t
	}
	return &a, nil
}

func (s *SQLite) Update(ctx context.Context, id string, p quota.Patch) error {
	const op = "store.SQLite.Update"
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []any{}
	if p.TokensUsed != nil {
		sets = append(sets, "tokens_used = ?")
		args = append(args, toInt64(*p.TokensUsed))
	}
	if p.TokenLimit != nil {
		sets = append(sets, "token_limit = ?")
		args = append(args, toInt64(*p.TokenLimit))
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w: %s", op, quota.ErrAccountNotFound, id)
	}
	return nil
}

func (s *SQLite) IncrementTokensUsed(ctx context.Context, id string, delta uint64, ceiling *uint64) (uint64, error) {
	const op = "store.SQLite.IncrementTokensUsed"
	var (
		row *sql.Row
		d   = toInt64(delta)
	)
	if ceiling == nil {
		row = s.db.QueryRowContext(ctx,
			`UPDATE accounts SET tokens_used = tokens_used + ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? RETURNING tokens_used`, d, id)
	} else {
		row = s.db.QueryRowContext(ctx,
			`UPDATE accounts SET tokens_used = MIN(tokens_used + ?, MAX(tokens_used, ?)), updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? RETURNING tokens_used`, d, toInt64(*ceiling), id)
	}
	var used int64
	if err := row.Scan(&used); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w: %s", op, quota.ErrAccountNotFound, id)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return uint64(used), nil
}

func (s *SQLite) ListIDs(ctx context.Context) ([]string, error) {
	const op = "store.SQLite.ListIDs"
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }

// toInt64 saturates at the SQLite INTEGER maximum.
func toInt64(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
