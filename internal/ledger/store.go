package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store persists fetch batches in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset the ledger)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// RecordBatch stores a batch and its outcomes in one transaction. Recording
// the same batch ID twice replaces the earlier rows.
func (s *Store) RecordBatch(ctx context.Context, batch Batch, outcomes []Outcome) error {
	if strings.TrimSpace(batch.ID) == "" {
		return errors.New("batch id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM fetch_outcomes WHERE batch_id = ?", batch.ID); err != nil {
		return fmt.Errorf("clear outcomes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM fetch_batches WHERE id = ?", batch.ID); err != nil {
		return fmt.Errorf("clear batch: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fetch_batches (
            id, started_at, finished_at, requested, fetched, cached, failed, offline
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID,
		formatTime(batch.StartedAt),
		formatTime(batch.FinishedAt),
		batch.Requested,
		batch.Fetched,
		batch.Cached,
		batch.Failed,
		boolToInt(batch.Offline),
	); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fetch_outcomes (
            batch_id, primary_id, secondary_id, status, reason, error_message, duration_ms, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		recorded := o.RecordedAt
		if recorded.IsZero() {
			recorded = batch.FinishedAt
		}
		if _, err := stmt.ExecContext(ctx,
			batch.ID,
			o.Pair.Primary,
			o.Pair.Secondary,
			string(o.Status),
			nullableString(o.Reason),
			nullableString(o.Error),
			o.Duration.Milliseconds(),
			formatTime(recorded),
		); err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.Pair, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// RecentBatches returns up to limit batches, newest first.
func (s *Store) RecentBatches(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, requested, fetched, cached, failed, offline
         FROM fetch_batches ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Failures returns failed outcomes, newest first. An empty batchID spans
// every batch.
func (s *Store) Failures(ctx context.Context, batchID string, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT batch_id, primary_id, secondary_id, status, reason, error_message, duration_ms, recorded_at
         FROM fetch_outcomes WHERE status = ?`
	args := []any{string(StatusFailed)}
	if batchID = strings.TrimSpace(batchID); batchID != "" {
		query += " AND batch_id = ?"
		args = append(args, batchID)
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Summary aggregates every recorded batch.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var out Summary
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(fetched), 0), COALESCE(SUM(cached), 0), COALESCE(SUM(failed), 0)
         FROM fetch_batches`)
	if err := row.Scan(&out.Batches, &out.Fetched, &out.Cached, &out.Failed); err != nil {
		return Summary{}, fmt.Errorf("scan summary: %w", err)
	}

	out.ByReason = make(map[string]int)
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(reason, ''), COUNT(1) FROM fetch_outcomes
         WHERE status = ? GROUP BY COALESCE(reason, '')`, string(StatusFailed))
	if err != nil {
		return Summary{}, fmt.Errorf("query failure reasons: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return Summary{}, fmt.Errorf("scan failure reason: %w", err)
		}
		out.ByReason[reason] = count
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}

	recent, err := s.RecentBatches(ctx, 1)
	if err != nil {
		return Summary{}, err
	}
	if len(recent) > 0 {
		out.LastBatch = &recent[0]
	}
	return out, nil
}

func scanBatch(scanner interface{ Scan(dest ...any) error }) (Batch, error) {
	var (
		b                 Batch
		started, finished string
		offline           int
	)
	if err := scanner.Scan(&b.ID, &started, &finished, &b.Requested, &b.Fetched, &b.Cached, &b.Failed, &offline); err != nil {
		return Batch{}, fmt.Errorf("scan batch: %w", err)
	}
	b.StartedAt = parseTime(started)
	b.FinishedAt = parseTime(finished)
	b.Offline = offline != 0
	return b, nil
}

func scanOutcome(scanner interface{ Scan(dest ...any) error }) (Outcome, error) {
	var (
		o          Outcome
		status     string
		reason     sql.NullString
		errMessage sql.NullString
		durationMS int64
		recorded   string
	)
	if err := scanner.Scan(&o.BatchID, &o.Pair.Primary, &o.Pair.Secondary, &status, &reason, &errMessage, &durationMS, &recorded); err != nil {
		return Outcome{}, fmt.Errorf("scan outcome: %w", err)
	}
	o.Status = Status(status)
	o.Reason = reason.String
	o.Error = errMessage.String
	o.Duration = time.Duration(durationMS) * time.Millisecond
	o.RecordedAt = parseTime(recorded)
	return o, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
