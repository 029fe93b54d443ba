// Package store provides DatasetStore implementations.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/synth-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	runs map[string]*memoryRun
}

type memoryRun struct {
	record      generic.RunRecord
	collections map[string][]json.RawMessage
	summary     json.RawMessage
}

var _ generic.DatasetStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{runs: make(map[string]*memoryRun)}
}

// SaveDataset serializes everything first, then swaps the run in under the
// lock, so a failed save leaves nothing behind.
func (m *Memory) SaveDataset(_ context.Context, rec generic.RunRecord, ds *generic.Dataset) error {
	summary, err := ds.Summary()
	if err != nil {
		return err
	}
	run := &memoryRun{record: rec, collections: make(map[string][]json.RawMessage)}
	for _, name := range ds.Names() {
		raw, err := generic.MarshalCollection(ds.Collection(name))
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		run.collections[name] = raw
	}
	if run.summary, err = json.Marshal(summary); err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[rec.ID]; exists {
		return fmt.Errorf("run %s already exists", rec.ID)
	}
	m.runs[rec.ID] = run
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (generic.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return generic.RunRecord{}, generic.ErrRunNotFound
	}
	return run.record, nil
}

func (m *Memory) ListRuns(_ context.Context, filter generic.RunFilter) ([]generic.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []generic.RunRecord
	for _, run := range m.runs {
		if filter.Vertical != "" && run.record.Vertical != filter.Vertical {
			continue
		}
		out = append(out, run.record)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) LoadCollection(_ context.Context, runID, collection string, limit, offset int) ([]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, generic.ErrRunNotFound
	}
	all := run.collections[collection]
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []json.RawMessage{}, nil
	}
	end := len(all)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	out := make([]json.RawMessage, end-offset)
	copy(out, all[offset:end])
	return out, nil
}

func (m *Memory) LoadSummary(_ context.Context, runID string) (*generic.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, generic.ErrRunNotFound
	}
	var s generic.Summary
	if err := json.Unmarshal(run.summary, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Memory) DeleteRun(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return generic.ErrRunNotFound
	}
	delete(m.runs, id)
	return nil
}
