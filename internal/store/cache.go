package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dukerupert/renex/internal/model"
)

// CacheStore persists offline cache generations in SQLite.
type CacheStore struct {
	db *sql.DB
}

func NewCacheStore(db *sql.DB) *CacheStore {
	return &CacheStore{db: db}
}

// Open creates the named generation if it does not exist yet.
func (s *CacheStore) Open(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_generations (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("open cache %q: %w", name, err)
	}
	return nil
}

// Put stores e in the named generation, replacing any entry for the same URL.
func (s *CacheStore) Put(ctx context.Context, name string, e model.CacheEntry) error {
	header, err := json.Marshal(e.Header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_generations (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, e.StoredAt,
	); err != nil {
		return fmt.Errorf("open cache %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_entries (generation, url, status, header, body, stored_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(generation, url) DO UPDATE SET status = excluded.status, header = excluded.header,
		 body = excluded.body, stored_at = excluded.stored_at`,
		name, e.URL, e.Status, string(header), e.Body, e.StoredAt,
	); err != nil {
		return fmt.Errorf("put %q in %q: %w", e.URL, name, err)
	}
	return tx.Commit()
}

// Match returns the entry for url in the named generation, or nil if none.
func (s *CacheStore) Match(ctx context.Context, name, url string) (*model.CacheEntry, error) {
	var (
		e      model.CacheEntry
		header string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT url, status, header, body, stored_at FROM cache_entries WHERE generation = ? AND url = ?`,
		name, url,
	).Scan(&e.URL, &e.Status, &header, &e.Body, &e.StoredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("match %q in %q: %w", url, name, err)
	}
	e.Header = http.Header{}
	if err := json.Unmarshal([]byte(header), &e.Header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return &e, nil
}

// Keys lists generation names in creation order.
func (s *CacheStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM cache_generations ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan cache name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Prune deletes every generation except keep in a single transaction and
// returns the names it removed.
func (s *CacheStore) Prune(ctx context.Context, keep string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT name FROM cache_generations WHERE name != ?`, keep)
	if err != nil {
		return nil, fmt.Errorf("select stale caches: %w", err)
	}
	var stale []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cache name: %w", err)
		}
		stale = append(stale, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE generation != ?`, keep); err != nil {
		return nil, fmt.Errorf("delete stale entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_generations WHERE name != ?`, keep); err != nil {
		return nil, fmt.Errorf("delete stale caches: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stale, nil
}
