package ecommerce

import (
	"github.com/warp/synth-engine/generic"
)

// Metrics are the order metrics of a finished TechStyle run. Volumes are
// USD cents from the price list, so days in different currencies add up.
type Metrics struct {
	TotalOrders     int     `json:"total_orders"`
	SucceededOrders int     `json:"succeeded_orders"`
	SuccessRate     float64 `json:"success_rate"`
	VolumeUSD       int64   `json:"volume_usd"`
	AverageOrderUSD int64   `json:"average_order_usd"`
	Disputes        int     `json:"disputes"`
	DisputeRate     float64 `json:"dispute_rate"`

	Daily          map[string]DayMetrics `json:"daily"`
	Monthly        map[string]DayMetrics `json:"monthly"`
	StageSuccess   map[string]float64    `json:"stage_success_rates"`
	Currencies     map[string]int        `json:"currencies"`
	PaymentMethods map[string]int        `json:"payment_methods"`
	FailureReasons map[string]int        `json:"failure_reasons"`
}

// DayMetrics aggregate the orders of one day or month.
type DayMetrics struct {
	Count       int     `json:"count"`
	VolumeUSD   int64   `json:"volume_usd"`
	AverageUSD  int64   `json:"average_usd"`
	SuccessRate float64 `json:"success_rate"`

	succeeded int
}

var _ generic.MetricsHook = (*Factory)(nil)

// Metrics implements generic.MetricsHook.
func (f *Factory) Metrics(ds *generic.Dataset) (any, error) {
	return ComputeMetrics(ds), nil
}

// ComputeMetrics derives Metrics from a dataset built by this vertical.
// Volume counts succeeded orders only.
func ComputeMetrics(ds *generic.Dataset) Metrics {
	m := Metrics{
		Daily:          map[string]DayMetrics{},
		Monthly:        map[string]DayMetrics{},
		StageSuccess:   map[string]float64{},
		Currencies:     map[string]int{},
		PaymentMethods: map[string]int{},
		FailureReasons: map[string]int{},
	}
	stageTotal := map[string]int{}
	stageOK := map[string]int{}

	add := func(buckets map[string]DayMetrics, key string, p generic.Entity, ok bool) {
		b := buckets[key]
		b.Count++
		if ok {
			b.succeeded++
			b.VolumeUSD += p.FieldInt("amount_usd")
		}
		buckets[key] = b
	}

	for _, p := range ds.Collection(generic.CollectionPayments) {
		ok := p.Status == StatusSucceeded
		m.TotalOrders++
		stage := p.Meta("lifecycle_stage")
		stageTotal[stage]++
		m.Currencies[p.Currency]++
		for _, method := range methodsOf(p) {
			m.PaymentMethods[method]++
		}
		if ok {
			m.SucceededOrders++
			m.VolumeUSD += p.FieldInt("amount_usd")
			stageOK[stage]++
		} else if code := failureCode(p); code != "" {
			m.FailureReasons[code]++
		}
		add(m.Daily, generic.DayKey(p.Created), p, ok)
		add(m.Monthly, generic.MonthKey(p.Created), p, ok)
	}
	m.Disputes = len(ds.Collection(generic.CollectionDisputes))

	m.SuccessRate = generic.Ratio(float64(m.SucceededOrders), float64(m.TotalOrders))
	m.AverageOrderUSD = generic.Mean(m.VolumeUSD, m.SucceededOrders)
	m.DisputeRate = generic.Ratio(float64(m.Disputes), float64(m.SucceededOrders))
	for stage, n := range stageTotal {
		m.StageSuccess[stage] = generic.Ratio(float64(stageOK[stage]), float64(n))
	}
	finish(m.Daily)
	finish(m.Monthly)
	return m
}

func finish(buckets map[string]DayMetrics) {
	for key, b := range buckets {
		b.AverageUSD = generic.Mean(b.VolumeUSD, b.succeeded)
		b.SuccessRate = generic.Ratio(float64(b.succeeded), float64(b.Count))
		b.succeeded = 0
		buckets[key] = b
	}
}

// methodsOf reads payment_method_types before and after a JSON round trip.
func methodsOf(p generic.Entity) []string {
	v, _ := p.Field("payment_method_types")
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func failureCode(p generic.Entity) string {
	v, _ := p.Field("last_payment_error")
	if errMap, ok := v.(map[string]any); ok {
		code, _ := errMap["code"].(string)
		return code
	}
	return ""
}
