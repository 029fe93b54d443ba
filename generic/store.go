/*
store.go - Persistence interface for finalized datasets

PURPOSE:
  Defines the boundary between the engine and storage. A store keeps whole
  generation runs: the run record, every entity of every collection, and the
  summary. Implementations can use SQLite or memory.

ALL-OR-NOTHING CONTRACT:
  SaveDataset refuses datasets that are not Complete (ErrNotComplete) and
  writes a run atomically. A reader never observes half a run.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (WAL)
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - api/handlers.go: Serves stored runs
*/
package generic

import (
	"context"
	"encoding/json"
	"time"
)

// RunRecord describes one persisted generation run.
type RunRecord struct {
	ID        string    `json:"id"`
	Vertical  string    `json:"vertical"`
	Seed      uint64    `json:"seed"`
	Start     time.Time `json:"start"`
	Periods   int       `json:"periods"`
	Currency  string    `json:"currency"`
	Entities  int       `json:"entities"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRunRecord derives the record of a finalized dataset.
func NewRunRecord(id string, ds *Dataset, now time.Time) RunRecord {
	return RunRecord{
		ID:        id,
		Vertical:  ds.Vertical,
		Seed:      ds.Seed,
		Start:     ds.Start,
		Periods:   ds.Periods,
		Currency:  ds.Currency,
		Entities:  ds.Total(),
		CreatedAt: now.UTC(),
	}
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Vertical string // empty = all
	Limit    int    // zero = no limit
}

// DatasetStore persists finalized datasets.
type DatasetStore interface {
	// SaveDataset writes the run atomically. ds must be Complete.
	SaveDataset(ctx context.Context, rec RunRecord, ds *Dataset) error

	// GetRun returns ErrRunNotFound for unknown ids.
	GetRun(ctx context.Context, id string) (RunRecord, error)

	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)

	// LoadCollection returns the serialized entities of one collection in
	// generation order. limit <= 0 returns everything after offset.
	LoadCollection(ctx context.Context, runID, collection string, limit, offset int) ([]json.RawMessage, error)

	// LoadSummary returns the run's summary.
	LoadSummary(ctx context.Context, runID string) (*Summary, error)

	// DeleteRun removes a run and everything it owns.
	DeleteRun(ctx context.Context, id string) error
}

// MarshalCollection serializes every entity of a collection individually.
func MarshalCollection(entities []Entity) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(entities))
	for i, e := range entities {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
