package generic

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

// =============================================================================
// METRICS - Helpers for factories implementing MetricsHook
// =============================================================================

// ErrNoMetrics is returned by DecodeMetrics when the summary carries none.
var ErrNoMetrics = errors.New("summary has no metrics")

func vertMetrics(hook MetricsHook, ds *Dataset) (json.RawMessage, error) {
	m, err := hook.Metrics(ds)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// DecodeMetrics unmarshals the summary's vertical metrics into v.
func DecodeMetrics(s *Summary, v any) error {
	if s == nil || len(s.Metrics) == 0 {
		return ErrNoMetrics
	}
	return json.Unmarshal(s.Metrics, v)
}

// Ratio returns part/whole rounded to four places, or 0 for an empty whole.
func Ratio(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(part/whole*1e4) / 1e4
}

// Mean returns total/n in minor units, or 0 when n is 0.
func Mean(total int64, n int) int64 {
	if n == 0 {
		return 0
	}
	return total / int64(n)
}

// FieldInt returns the integer field key of e. Persisted entities decode
// numbers as float64, so both are accepted.
func (e Entity) FieldInt(key string) int64 {
	v, _ := e.Field(key)
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// MetaFloat parses the metadata value for key, or returns 0.
func (e Entity) MetaFloat(key string) float64 {
	f, err := strconv.ParseFloat(e.Meta(key), 64)
	if err != nil {
		return 0
	}
	return f
}
