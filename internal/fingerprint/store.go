package fingerprint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"mediacull/internal/score"
)

const schema = `
CREATE TABLE IF NOT EXISTS score_cache (
	identity            TEXT PRIMARY KEY,
	path                TEXT NOT NULL,
	overall_score       REAL NOT NULL,
	sharpness           REAL NOT NULL,
	subject_visibility  REAL NOT NULL,
	composition         REAL NOT NULL,
	duplication_penalty REAL NOT NULL,
	reasoning           TEXT NOT NULL DEFAULT '',
	raw_json            TEXT NOT NULL DEFAULT '',
	scored_at           TEXT NOT NULL
);
`

// Store is the durable score cache keyed by content identity. Reads may run
// concurrently; writes are serialized through a mutex on top of SQLite's own
// locking so parallel workers never interleave upserts.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the score cache database at path, applying
// WAL journaling and a busy timeout so concurrent readers and the single
// writer coexist. Parent directories are created.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open score cache: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create score cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the cached record for an identity, with ok=false when the
// identity has never been scored.
func (s *Store) Lookup(ctx context.Context, identity string) (score.Record, bool, error) {
	var rec score.Record
	err := s.db.QueryRowContext(ctx, `
		SELECT overall_score, sharpness, subject_visibility, composition, duplication_penalty, reasoning
		FROM score_cache WHERE identity = ?`, identity).
		Scan(&rec.OverallScore, &rec.Sharpness, &rec.SubjectVisibility,
			&rec.Composition, &rec.DuplicationPenalty, &rec.Reasoning)
	if errors.Is(err, sql.ErrNoRows) {
		return score.Record{}, false, nil
	}
	if err != nil {
		return score.Record{}, false, fmt.Errorf("score cache lookup failed: %w", err)
	}
	return rec, true, nil
}

// HasBeenProcessed reports whether an identity already has a cached record.
func (s *Store) HasBeenProcessed(ctx context.Context, identity string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM score_cache WHERE identity = ?`, identity).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("score cache check failed: %w", err)
	}
	return true, nil
}

// Put upserts the record for an identity. Rescoring the same identity
// overwrites the previous record; every successful scoring call results in
// exactly one Put.
func (s *Store) Put(ctx context.Context, identity, path string, rec score.Record, rawJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.execRetry(ctx, `
		INSERT INTO score_cache (identity, path, overall_score, sharpness, subject_visibility,
			composition, duplication_penalty, reasoning, raw_json, scored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			path = excluded.path,
			overall_score = excluded.overall_score,
			sharpness = excluded.sharpness,
			subject_visibility = excluded.subject_visibility,
			composition = excluded.composition,
			duplication_penalty = excluded.duplication_penalty,
			reasoning = excluded.reasoning,
			raw_json = excluded.raw_json,
			scored_at = excluded.scored_at`,
		identity, path, rec.OverallScore, rec.Sharpness, rec.SubjectVisibility,
		rec.Composition, rec.DuplicationPenalty, rec.Reasoning, rawJSON,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("score cache put failed: %w", err)
	}
	return nil
}

// Delete removes the cached record for an identity. Forced reruns overwrite
// through Put instead; Delete exists for cache maintenance.
func (s *Store) Delete(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.execRetry(ctx, `DELETE FROM score_cache WHERE identity = ?`, identity); err != nil {
		return fmt.Errorf("score cache delete failed: %w", err)
	}
	return nil
}

// Count returns the number of cached records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM score_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("score cache count failed: %w", err)
	}
	return n, nil
}

const maxBusyRetries = 3

// execRetry executes a statement with retry on SQLITE_BUSY, backing off
// 100/200/300 ms between attempts.
func (s *Store) execRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var lastErr error
	for i := 0; i < maxBusyRetries; i++ {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return result, nil
		}
		if !isBusy(err) {
			return nil, err
		}
		lastErr = err

		t := time.NewTimer(time.Duration(100*(i+1)) * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, lastErr
}

// isBusy reports whether err indicates an SQLite BUSY condition.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
