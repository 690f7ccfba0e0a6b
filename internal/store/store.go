// Package store handles SQLite persistence of fetched source rows.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/verte-zerg/casetrend/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNoFetch is returned when the cache holds no fetch yet.
var ErrNoFetch = errors.New("no cached fetch")

// Store wraps SQLite access for the fetch cache.
type Store struct {
	db      *sql.DB
	entropy *rand.Rand
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(on)")
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, entropy: rand.New(rand.NewSource(time.Now().UnixNano()))}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetches (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			fetched_at TEXT NOT NULL,
			row_count INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fetch_rows (
			fetch_id TEXT NOT NULL REFERENCES fetches(id) ON DELETE CASCADE,
			line INTEGER NOT NULL,
			date TEXT NOT NULL,
			country TEXT NOT NULL,
			confirmed TEXT NOT NULL,
			recovered TEXT NOT NULL,
			deaths TEXT NOT NULL,
			malformed TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (fetch_id, line)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_fetches_fetched_at ON fetches(fetched_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return s.ensureColumn("fetch_rows", "malformed", "TEXT NOT NULL DEFAULT ''")
}

// ensureColumn adds a column missing from caches created by older builds.
func (s *Store) ensureColumn(table, column, decl string) error {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return err
	}
	found := false
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return err
		}
		if name == column {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if found {
		return nil
	}
	_, err = s.db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
	return err
}

func (s *Store) newID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

// SaveFetch stores rows as the latest fetch and drops every older one.
// Rows are stored unvalidated so a reload reproduces the same skips.
func (s *Store) SaveFetch(ctx context.Context, source string, fetchedAt time.Time, rows []model.RawRow) (model.Fetch, error) {
	fetch := model.Fetch{
		ID:        s.newID(fetchedAt),
		Source:    source,
		FetchedAt: fetchedAt.UTC(),
		RowCount:  len(rows),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Fetch{}, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM fetch_rows`); err != nil {
		return model.Fetch{}, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM fetches`); err != nil {
		return model.Fetch{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO fetches (id, source, fetched_at, row_count) VALUES (?, ?, ?, ?)`,
		fetch.ID, fetch.Source, fetch.FetchedAt.Format(time.RFC3339Nano), fetch.RowCount,
	); err != nil {
		return model.Fetch{}, err
	}

	if len(rows) > 0 {
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx,
			`INSERT INTO fetch_rows (fetch_id, line, date, country, confirmed, recovered, deaths, malformed)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return model.Fetch{}, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, r := range rows {
			if _, err = stmt.ExecContext(ctx, fetch.ID, r.Line, r.Date, r.Country, r.Confirmed, r.Recovered, r.Deaths, r.Malformed); err != nil {
				return model.Fetch{}, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return model.Fetch{}, err
	}
	return fetch, nil
}

// LatestFetch returns the most recent fetch with its rows in line order.
func (s *Store) LatestFetch(ctx context.Context) (model.Fetch, []model.RawRow, error) {
	var fetch model.Fetch
	var fetchedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, fetched_at, row_count FROM fetches ORDER BY fetched_at DESC, id DESC LIMIT 1`,
	).Scan(&fetch.ID, &fetch.Source, &fetchedAt, &fetch.RowCount)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Fetch{}, nil, ErrNoFetch
	}
	if err != nil {
		return model.Fetch{}, nil, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return model.Fetch{}, nil, err
	}
	fetch.FetchedAt = parsed

	rows, err := s.db.QueryContext(ctx,
		`SELECT line, date, country, confirmed, recovered, deaths, malformed
		FROM fetch_rows
		WHERE fetch_id = ?
		ORDER BY line ASC`, fetch.ID)
	if err != nil {
		return model.Fetch{}, nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	result := make([]model.RawRow, 0, fetch.RowCount)
	for rows.Next() {
		var r model.RawRow
		if err := rows.Scan(&r.Line, &r.Date, &r.Country, &r.Confirmed, &r.Recovered, &r.Deaths, &r.Malformed); err != nil {
			return model.Fetch{}, nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return model.Fetch{}, nil, err
	}
	if len(result) != fetch.RowCount {
		return model.Fetch{}, nil, fmt.Errorf("fetch %s: expected %d rows, found %d", fetch.ID, fetch.RowCount, len(result))
	}
	return fetch, result, nil
}
