package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/korjavin/nomnom/internal/nutrition"
)

// timeLayout is fixed-width UTC so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS cached_foods (
	barcode      TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	data_quality TEXT NOT NULL,
	data         TEXT NOT NULL,
	cached_at    TEXT NOT NULL,
	expires_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cached_foods_expires_at ON cached_foods (expires_at);
`

// SQLite is a persistent cache in a single SQLite file.
type SQLite struct {
	db  *sql.DB
	now Clock
}

// OpenSQLite opens (creating if needed) the cache database at path. A nil
// clock means time.Now.
func OpenSQLite(path string, now Clock) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite cache: %w", err)
	}
	for _, pragma := range []string{`PRAGMA journal_mode = WAL;`, `PRAGMA busy_timeout = 5000;`} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &SQLite{db: db, now: now}, nil
}

// Close closes the database.
func (c *SQLite) Close() error {
	return c.db.Close()
}

// Get returns the live entry for barcode. Expired rows read as absent; they
// stay on disk until overwritten or purged.
func (c *SQLite) Get(ctx context.Context, barcode string) (Entry, bool, error) {
	var data, cachedAt, expiresAt string
	err := c.db.QueryRowContext(ctx,
		`SELECT data, cached_at, expires_at FROM cached_foods WHERE barcode = ?`, barcode,
	).Scan(&data, &cachedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("query cached food %q: %w", barcode, err)
	}

	e := Entry{}
	if e.CachedAt, err = time.Parse(timeLayout, cachedAt); err != nil {
		return Entry{}, false, fmt.Errorf("parse cached_at for %q: %w", barcode, err)
	}
	if e.ExpiresAt, err = time.Parse(timeLayout, expiresAt); err != nil {
		return Entry{}, false, fmt.Errorf("parse expires_at for %q: %w", barcode, err)
	}
	if e.Expired(c.now()) {
		return Entry{}, false, nil
	}
	if err := json.Unmarshal([]byte(data), &e.Record); err != nil {
		return Entry{}, false, fmt.Errorf("decode cached food %q: %w", barcode, err)
	}
	return e, true, nil
}

// Put stores e under its record's barcode, replacing any previous row.
func (c *SQLite) Put(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e.Record)
	if err != nil {
		return fmt.Errorf("encode cached food: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO cached_foods (barcode, name, data_quality, data, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(barcode) DO UPDATE SET
			name = excluded.name,
			data_quality = excluded.data_quality,
			data = excluded.data,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		e.Record.Barcode, e.Record.Name, string(e.Record.DataQuality), string(data),
		formatTime(e.CachedAt), formatTime(e.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("upsert cached food %q: %w", e.Record.Barcode, err)
	}
	return nil
}

// Delete drops the row for barcode.
func (c *SQLite) Delete(ctx context.Context, barcode string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cached_foods WHERE barcode = ?`, barcode)
	if err != nil {
		return false, fmt.Errorf("delete cached food %q: %w", barcode, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete cached food rows affected: %w", err)
	}
	return n > 0, nil
}

// PurgeExpired removes every expired row and returns how many went.
func (c *SQLite) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cached_foods WHERE expires_at <= ?`, formatTime(c.now()))
	if err != nil {
		return 0, fmt.Errorf("purge expired cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired cache rows affected: %w", err)
	}
	return n, nil
}

// List returns up to limit rows, most recently cached first.
func (c *SQLite) List(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT barcode, name, data_quality, cached_at, expires_at
		FROM cached_foods ORDER BY cached_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var (
			item              Item
			quality           string
			cachedAt, expires string
		)
		if err := rows.Scan(&item.Barcode, &item.Name, &quality, &cachedAt, &expires); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		item.DataQuality = nutrition.Quality(quality)
		var err error
		if item.CachedAt, err = time.Parse(timeLayout, cachedAt); err != nil {
			return nil, fmt.Errorf("parse cached_at for %q: %w", item.Barcode, err)
		}
		if item.ExpiresAt, err = time.Parse(timeLayout, expires); err != nil {
			return nil, fmt.Errorf("parse expires_at for %q: %w", item.Barcode, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache rows: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
