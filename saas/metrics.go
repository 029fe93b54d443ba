package saas

import (
	"time"

	"github.com/warp/synth-engine/generic"
)

// Metrics are the subscription economics of a finished run. Amounts are
// cents; MRR normalizes annual cycles to twelfths.
type Metrics struct {
	MRR                 int64            `json:"mrr"`
	ARR                 int64            `json:"arr"`
	ChurnRate           float64          `json:"churn_rate"`
	ARPU                int64            `json:"arpu"`
	LTV                 int64            `json:"ltv"`
	TotalRevenue        int64            `json:"total_revenue"`
	PayingSubscriptions int              `json:"paying_subscriptions"`
	ActiveSubscriptions int              `json:"active_subscriptions"`
	TotalCustomers      int              `json:"total_customers"`
	CohortLTV           map[string]int64 `json:"cohort_ltv"`
	MRRTimeline         map[string]int64 `json:"mrr_timeline"`
	Usage               map[string]int64 `json:"usage"`
}

var _ generic.MetricsHook = (*Factory)(nil)

// Metrics implements generic.MetricsHook.
func (f *Factory) Metrics(ds *generic.Dataset) (any, error) {
	return ComputeMetrics(ds), nil
}

// billedSub is a subscription with its billed invoices in cycle order.
type billedSub struct {
	created  time.Time
	trialEnd int64
	cancelAt int64
	invoices []generic.Entity
	fallback int64 // monthly list price, for a sub with nothing billed yet
}

// payingAt reports whether the subscription is out of trial and not yet
// canceled at unix time t.
func (b *billedSub) payingAt(t int64) bool {
	if b.created.Unix() >= t {
		return false
	}
	if b.trialEnd != 0 && b.trialEnd > t {
		return false
	}
	return b.cancelAt == 0 || b.cancelAt > t
}

// monthlyAt is the monthly value of the last cycle billed before t, so
// upgrades raise MRR from the renewal that applied them.
func (b *billedSub) monthlyAt(t int64) int64 {
	for i := len(b.invoices) - 1; i >= 0; i-- {
		inv := b.invoices[i]
		if inv.FieldInt("period_start") > t {
			continue
		}
		if inv.Meta("interval") == IntervalYear {
			return inv.Amount / 12
		}
		return inv.Amount
	}
	return b.fallback
}

// ComputeMetrics derives Metrics from a dataset built by this vertical.
func ComputeMetrics(ds *generic.Dataset) Metrics {
	m := Metrics{
		CohortLTV:   map[string]int64{},
		MRRTimeline: map[string]int64{},
		Usage:       map[string]int64{},
	}

	subs := ds.Collection(generic.CollectionSubscriptions)
	billed := make(map[string]*billedSub, len(subs))
	order := make([]*billedSub, 0, len(subs))
	for _, s := range subs {
		b := &billedSub{
			created:  s.Created,
			trialEnd: s.FieldInt("trial_end"),
			cancelAt: s.FieldInt("cancel_at"),
			fallback: s.Amount,
		}
		if v, _ := s.Field("interval"); v == IntervalYear {
			b.fallback = s.Amount / 12
		}
		billed[s.ID] = b
		order = append(order, b)
		if s.Status == StatusActive || s.Status == StatusTrialing {
			m.ActiveSubscriptions++
		}
	}

	revenue := map[string]int64{}
	for _, inv := range ds.Collection(generic.CollectionInvoices) {
		paid := inv.FieldInt("amount_paid")
		m.TotalRevenue += paid
		revenue[inv.Ref("customer")] += paid
		if b, ok := billed[inv.Ref("subscription")]; ok && inv.Amount > 0 {
			b.invoices = append(b.invoices, inv)
		}
	}

	mrrAt := func(t int64) (mrr int64, paying int) {
		for _, b := range order {
			if b.payingAt(t) {
				mrr += b.monthlyAt(t)
				paying++
			}
		}
		return mrr, paying
	}

	for i := 0; i < ds.Periods; i++ {
		mrr, _ := mrrAt(generic.PeriodStart(ds.Start, i+1).Unix())
		m.MRRTimeline[generic.MonthKey(generic.PeriodStart(ds.Start, i))] = mrr
	}
	end := generic.PeriodStart(ds.Start, ds.Periods).Unix()
	m.MRR, m.PayingSubscriptions = mrrAt(end)
	m.ARR = m.MRR * 12
	m.ARPU = generic.Mean(m.MRR, m.PayingSubscriptions)

	if ds.Periods > 0 {
		from := generic.PeriodStart(ds.Start, ds.Periods-1).Unix()
		atStart, churned := 0, 0
		for _, b := range order {
			if !b.payingAt(from) {
				continue
			}
			atStart++
			if b.cancelAt > from && b.cancelAt <= end {
				churned++
			}
		}
		m.ChurnRate = generic.Ratio(float64(churned), float64(atStart))
	}

	cohortRevenue := map[string]int64{}
	cohortSize := map[string]int{}
	for _, c := range ds.Collection(generic.CollectionCustomers) {
		m.TotalCustomers++
		month := generic.MonthKey(c.Created)
		cohortRevenue[month] += revenue[c.ID]
		cohortSize[month]++
	}
	var ltvSum int64
	for month, n := range cohortSize {
		m.CohortLTV[month] = generic.Mean(cohortRevenue[month], n)
		ltvSum += m.CohortLTV[month]
	}
	m.LTV = generic.Mean(ltvSum, len(cohortSize))

	for _, u := range ds.Collection(CollectionUsage) {
		m.Usage[u.Category] += u.FieldInt("quantity")
	}
	return m
}
