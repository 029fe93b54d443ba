package generic

import (
	"encoding/json"
	"time"
)

// =============================================================================
// SUMMARY - Aggregates computed once, at finalize time
// =============================================================================

// Summary is the derived metrics object of a finalized dataset.
type Summary struct {
	Vertical      string                        `json:"vertical"`
	Seed          uint64                        `json:"seed"`
	Start         string                        `json:"start"`
	Periods       int                           `json:"periods"`
	Currency      string                        `json:"currency"`
	TotalEntities int                           `json:"total_entities"`
	Collections   map[string]*CollectionSummary `json:"collections"`

	// Metrics holds the vertical's business metrics, when its factory
	// implements MetricsHook. Decode it with DecodeMetrics.
	Metrics json.RawMessage `json:"metrics,omitempty"`
}

// CollectionSummary aggregates one collection. TotalAmount is the raw sum of
// minor units and only meaningful when the collection is single-currency;
// AmountByCurrency is always exact.
type CollectionSummary struct {
	Count            int              `json:"count"`
	TotalAmount      int64            `json:"total_amount"`
	AverageAmount    int64            `json:"average_amount"`
	AmountByCurrency map[string]int64 `json:"amount_by_currency"`
	AmountByStatus   map[string]int64 `json:"amount_by_status"`
	CountByStatus    map[string]int   `json:"count_by_status"`
	CountByCategory  map[string]int   `json:"count_by_category,omitempty"`
	CountByStage     map[string]int   `json:"count_by_stage"`
	AmountByMonth    map[string]int64 `json:"amount_by_month"`
	CountByMonth     map[string]int   `json:"count_by_month"`
	SuccessStatus    string           `json:"success_status,omitempty"`
	SuccessRate      float64          `json:"success_rate"`
	FirstCreated     int64            `json:"first_created,omitempty"`
	LastCreated      int64            `json:"last_created,omitempty"`
}

// Collection returns the summary of a collection, or an empty one.
func (s *Summary) Collection(name string) *CollectionSummary {
	if cs, ok := s.Collections[name]; ok {
		return cs
	}
	return newCollectionSummary("")
}

func newCollectionSummary(success string) *CollectionSummary {
	return &CollectionSummary{
		AmountByCurrency: map[string]int64{},
		AmountByStatus:   map[string]int64{},
		CountByStatus:    map[string]int{},
		CountByCategory:  map[string]int{},
		CountByStage:     map[string]int{},
		AmountByMonth:    map[string]int64{},
		CountByMonth:     map[string]int{},
		SuccessStatus:    success,
	}
}

func computeSummary(d *Dataset) *Summary {
	s := &Summary{
		Vertical:    d.Vertical,
		Seed:        d.Seed,
		Start:       MonthKey(d.Start),
		Periods:     d.Periods,
		Currency:    d.Currency,
		Collections: make(map[string]*CollectionSummary, len(d.specs)),
	}
	for _, spec := range d.specs {
		cs := summarize(d.collections[spec.Name], spec.SuccessStatus)
		s.Collections[spec.Name] = cs
		s.TotalEntities += cs.Count
	}
	return s
}

// summarize makes a single pass over entities.
func summarize(entities []Entity, success string) *CollectionSummary {
	cs := newCollectionSummary(success)
	var first, last time.Time
	successes := 0
	for _, e := range entities {
		cs.Count++
		cs.TotalAmount += e.Amount
		cs.AmountByCurrency[e.Currency] += e.Amount
		cs.AmountByStatus[e.Status] += e.Amount
		cs.CountByStatus[e.Status]++
		if e.Category != "" {
			cs.CountByCategory[e.Category]++
		}
		cs.CountByStage[e.Stage]++
		month := MonthKey(e.Created)
		cs.AmountByMonth[month] += e.Amount
		cs.CountByMonth[month]++
		if success != "" && e.Status == success {
			successes++
		}
		if first.IsZero() || e.Created.Before(first) {
			first = e.Created
		}
		if e.Created.After(last) {
			last = e.Created
		}
	}
	if cs.Count > 0 {
		cs.AverageAmount = cs.TotalAmount / int64(cs.Count)
		cs.FirstCreated = first.Unix()
		cs.LastCreated = last.Unix()
		if success != "" {
			cs.SuccessRate = float64(successes) / float64(cs.Count)
		}
	}
	return cs
}
