/*
Package sqlite provides a SQLite-backed implementation of generic.DatasetStore.

PURPOSE:
  Persists finalized generation runs so the API can serve them after a
  restart: the run record, every entity of every collection in generation
  order, and the summary. Custom vertical specs are kept alongside so they
  can be re-registered on startup.

ALL-OR-NOTHING:
  SaveDataset refuses datasets that are not Complete and writes a run in a
  single transaction. Entities and the summary are owned by their run and
  removed with it (ON DELETE CASCADE).

KEY TABLES:
  runs:      One row per generation run
  entities:  Serialized entities keyed by (run_id, collection, seq)
  summaries: Serialized summary per run
  specs:     Custom vertical specs (JSON), keyed by name

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/synth.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  err = store.SaveDataset(ctx, generic.NewRunRecord(id, ds, time.Now()), ds)

SEE ALSO:
  - generic/store.go: Interface definition
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/synth-engine/generic"
)

// ErrSpecNotFound is returned for unknown custom vertical specs.
var ErrSpecNotFound = errors.New("spec not found")

// Store implements generic.DatasetStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ generic.DatasetStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		vertical TEXT NOT NULL,
		seed TEXT NOT NULL,
		start TEXT NOT NULL,
		periods INTEGER NOT NULL,
		currency TEXT NOT NULL,
		entities INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_vertical_created
		ON runs(vertical, created_at DESC);

	-- Entities in generation order; body is the emitted JSON object
	CREATE TABLE IF NOT EXISTS entities (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		collection TEXT NOT NULL,
		seq INTEGER NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (run_id, collection, seq)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_run_id
		ON entities(run_id, id);

	CREATE TABLE IF NOT EXISTS summaries (
		run_id TEXT PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
		body TEXT NOT NULL
	);

	-- Custom vertical specs
	CREATE TABLE IF NOT EXISTS specs (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUNS
// =============================================================================

// SaveDataset writes the run, its entities and its summary in one transaction.
func (s *Store) SaveDataset(ctx context.Context, rec generic.RunRecord, ds *generic.Dataset) error {
	summary, err := ds.Summary()
	if err != nil {
		return err
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, vertical, seed, start, periods, currency, entities, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Vertical, strconv.FormatUint(rec.Seed, 10), rec.Start.UTC().Format(time.RFC3339),
		rec.Periods, rec.Currency, rec.Entities, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("run %s already exists", rec.ID)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO entities (run_id, collection, seq, id, body) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, name := range ds.Names() {
		for i, e := range ds.Collection(name) {
			if err := ctx.Err(); err != nil {
				return err
			}
			body, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal %s: %w", e.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, rec.ID, name, i, e.ID, string(body)); err != nil {
				return fmt.Errorf("failed to insert %s: %w", e.ID, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO summaries (run_id, body) VALUES (?, ?)",
		rec.ID, string(summaryJSON)); err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}

	return tx.Commit()
}

// GetRun returns one run record.
func (s *Store) GetRun(ctx context.Context, id string) (generic.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, vertical, seed, start, periods, currency, entities, created_at
		FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.RunRecord{}, generic.ErrRunNotFound
	}
	return rec, err
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, filter generic.RunFilter) ([]generic.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, vertical, seed, start, periods, currency, entities, created_at FROM runs"
	var args []any
	if filter.Vertical != "" {
		query += " WHERE vertical = ?"
		args = append(args, filter.Vertical)
	}
	query += " ORDER BY created_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []generic.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (generic.RunRecord, error) {
	var rec generic.RunRecord
	var seed, start, createdAt string
	if err := row.Scan(&rec.ID, &rec.Vertical, &seed, &start, &rec.Periods, &rec.Currency, &rec.Entities, &createdAt); err != nil {
		return generic.RunRecord{}, err
	}
	rec.Seed, _ = strconv.ParseUint(seed, 10, 64)
	rec.Start, _ = time.Parse(time.RFC3339, start)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return rec, nil
}

// LoadCollection returns the serialized entities of a collection in
// generation order.
func (s *Store) LoadCollection(ctx context.Context, runID, collection string, limit, offset int) ([]json.RawMessage, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM entities
		WHERE run_id = ? AND collection = ?
		ORDER BY seq LIMIT ? OFFSET ?`,
		runID, collection, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(body))
	}
	return out, rows.Err()
}

// LoadSummary returns the run's summary.
func (s *Store) LoadSummary(ctx context.Context, runID string) (*generic.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body string
	err := s.db.QueryRowContext(ctx, "SELECT body FROM summaries WHERE run_id = ?", runID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	var summary generic.Summary
	if err := json.Unmarshal([]byte(body), &summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	return &summary, nil
}

// DeleteRun removes a run; entities and summary cascade.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrRunNotFound
	}
	return nil
}

// =============================================================================
// SPECS
// =============================================================================

// SpecRecord is a stored custom vertical spec.
type SpecRecord struct {
	Name      string          `json:"name"`
	Body      json.RawMessage `json:"spec"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SaveSpec inserts or replaces a spec by name.
func (s *Store) SaveSpec(ctx context.Context, name string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO specs (name, body, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		name, string(body), now, now,
	)
	return err
}

// GetSpec returns one spec.
func (s *Store) GetSpec(ctx context.Context, name string) (*SpecRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r SpecRecord
	var body, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT name, body, created_at, updated_at FROM specs WHERE name = ?", name,
	).Scan(&r.Name, &body, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpecNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Body = json.RawMessage(body)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

// ListSpecs returns every stored spec ordered by name.
func (s *Store) ListSpecs(ctx context.Context) ([]SpecRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT name, body, created_at, updated_at FROM specs ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specs []SpecRecord
	for rows.Next() {
		var r SpecRecord
		var body, createdAt, updatedAt string
		if err := rows.Scan(&r.Name, &body, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		r.Body = json.RawMessage(body)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		specs = append(specs, r)
	}
	return specs, rows.Err()
}

// DeleteSpec removes a spec.
func (s *Store) DeleteSpec(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM specs WHERE name = ?", name)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrSpecNotFound
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"entities", "summaries", "runs", "specs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
