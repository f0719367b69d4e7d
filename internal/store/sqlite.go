package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

var _ DB = (*SQLiteDB)(nil)

// NewSQLiteDB opens (or creates) the database at path. ":memory:" is
// accepted for tests and ephemeral sessions.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	if path == ":memory:" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded goose migrations. It is idempotent.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Get returns the value stored under key; ok is false when absent.
func (s *SQLiteDB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLiteDB) Set(ctx context.Context, key string, value []byte) error {
	err := s.exec(ctx, upsertKV, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

const upsertKV = `
	INSERT INTO kv(key, value, updated_at) VALUES(?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value=excluded.value,
		updated_at=excluded.updated_at`

// SetAll stores every entry in one transaction.
func (s *SQLiteDB) SetAll(ctx context.Context, entries map[string][]byte) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	backoff := retry.WithMaxRetries(5, retry.NewExponential(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			if isBusyErr(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		now := time.Now().UTC()
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, upsertKV, k, entries[k], now); err != nil {
				tx.Rollback()
				if isBusyErr(err) {
					return retry.RetryableError(err)
				}
				return fmt.Errorf("set %s: %w", k, err)
			}
		}
		if err := tx.Commit(); err != nil {
			if isBusyErr(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set all: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLiteDB) Delete(ctx context.Context, key string) error {
	if err := s.exec(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// AppendTransfer journals t, assigning an ID and timestamp when unset.
func (s *SQLiteDB) AppendTransfer(ctx context.Context, t *Transfer) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	err := s.exec(ctx, `INSERT INTO transfers (
		id, direction, cell_row, cell_col, coin_origin_row, coin_origin_col, coin_serial, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Direction), t.Cell.Row, t.Cell.Col,
		t.Coin.Origin.Row, t.Coin.Origin.Col, t.Coin.Serial, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("append transfer: %w", err)
	}
	return nil
}

// ListTransfers returns transfers newest first, optionally for one cell.
func (s *SQLiteDB) ListTransfers(ctx context.Context, query TransfersQuery) (*TransfersPage, error) {
	whereClause := ""
	args := []any{}
	if query.Cell != nil {
		whereClause = "WHERE cell_row = ? AND cell_col = ?"
		args = append(args, query.Cell.Row, query.Cell.Col)
	}

	var totalCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transfers "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	if query.PerPage <= 0 {
		query.PerPage = 50
	}
	if query.PerPage > 500 {
		query.PerPage = 500
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	totalPages := (totalCount + query.PerPage - 1) / query.PerPage
	offset := (query.Page - 1) * query.PerPage

	mainQuery := `SELECT
		id, direction, cell_row, cell_col, coin_origin_row, coin_origin_col, coin_serial, created_at
		FROM transfers ` + whereClause + `
		ORDER BY seq DESC
		LIMIT ? OFFSET ?`
	args = append(args, query.PerPage, offset)

	rows, err := s.db.QueryContext(ctx, mainQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	transfers := []Transfer{}
	for rows.Next() {
		var t Transfer
		var direction string
		if err := rows.Scan(&t.ID, &direction, &t.Cell.Row, &t.Cell.Col,
			&t.Coin.Origin.Row, &t.Coin.Origin.Col, &t.Coin.Serial, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		t.Direction = Direction(direction)
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfers: %w", err)
	}

	return &TransfersPage{
		Transfers:  transfers,
		TotalCount: totalCount,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TotalPages: totalPages,
	}, nil
}

// exec runs a write, retrying while SQLite reports the database busy.
func (s *SQLiteDB) exec(ctx context.Context, query string, args ...any) error {
	backoff := retry.WithMaxRetries(5, retry.NewExponential(10*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, args...)
		if isBusyErr(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// isBusyErr matches modernc's SQLITE_BUSY / SQLITE_LOCKED messages.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}
