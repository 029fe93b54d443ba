/*
Package saas generates datasets for a B2B subscription business.

PURPOSE:
  CloudFlow sells three plans, billed monthly or annually, to companies of
  four sizes. Every signup creates a customer and a subscription. Trials
  convert or lapse; paying subscriptions churn after a geometric lifetime
  drawn at signup, and renewal invoices are billed on each anniversary.

COLLECTIONS:
  customers      cus_  Companies
  subscriptions  sub_  One per customer; status is as of the end of the run
  invoices       in_   Signup invoice, then one per billing cycle
  usage_events   mbur_ Metered usage per billed cycle: api_calls, storage_gb,
                       seats

METRICS:
  The summary carries MRR, ARR, last-period churn, ARPU, LTV by signup
  cohort and the month-end MRR timeline (metrics.go).

LIFECYCLE:
  signup --trial--> trialing --converts--> active --lifetime--> canceled
                              \--lapses--> canceled at trial end
  signup --direct--> active --lifetime--> canceled

  Upgrades move a monthly subscription one plan up at a renewal; the
  subscription record keeps its initial plan, invoices carry the billed one.

SEE ALSO:
  - presets.go: CloudFlow plans and stages
  - factory.go: Signups and the billing sweep
*/
package saas

import (
	"fmt"
	"time"

	"github.com/warp/synth-engine/generic"
)

// Name is the registry name of the vertical.
const Name = "saas"

// CollectionUsage holds metered usage records.
const CollectionUsage = "usage_events"

// Usage dimensions.
const (
	DimensionAPICalls = "api_calls"
	DimensionStorage  = "storage_gb"
	DimensionSeats    = "seats"
)

// UsageRecorded is the status of every usage record.
const UsageRecorded = "recorded"

// Stage rate names beyond the shared ones.
const (
	RateTrialConversion = "trial_conversion_rate"
	RateUpgrade         = "upgrade_rate"
	RateAnnualShare     = "annual_share"
)

// Subscription statuses.
const (
	StatusTrialing = "trialing"
	StatusActive   = generic.StatusActive
	StatusCanceled = generic.StatusCanceled
)

// Invoice statuses.
const (
	InvoicePaid  = generic.StatusPaid
	InvoiceOpen  = "open"
	InvoiceDraft = "draft"
)

// Billing intervals.
const (
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// Plan is one price tier.
type Plan struct {
	Name          string
	Monthly       int64 // cents per month
	Annual        int64 // cents per year
	IncludedSeats int
}

// CompanySize drives plan choice, seat count and metered usage.
type CompanySize struct {
	Name     string
	Weight   float64
	Plans    []string
	MinSeats int
	MaxSeats int
	Usage    Usage
}

// Usage bounds the metered consumption of one company size. A zero
// DailyAPICalls disables usage records for the size.
type Usage struct {
	DailyAPICalls  [2]int64
	DailyStorageGB [2]int64
	ExtraSeats     [2]int
}

func (u Usage) metered() bool { return u.DailyAPICalls[1] > 0 }

// Config is the immutable description of a CloudFlow run.
type Config struct {
	Start   time.Time
	Periods int
	Stages  []generic.Stage

	// Plans are ordered from cheapest to most expensive; upgrades move one up.
	Plans         []Plan
	Sizes         []CompanySize
	SalesChannels generic.WeightTable

	// SeatPrice is the monthly price of a seat above the plan's included seats.
	SeatPrice int64

	// ExtraSeatShare is the chance a billed cycle records extra seat usage.
	ExtraSeatShare float64

	TrialShare float64
	TrialDays  []int

	// PaidShare is the probability a billed invoice is paid; the rest stay open.
	PaidShare float64

	// MaxLifetimeMonths caps the churn draw.
	MaxLifetimeMonths int

	Seasonal []generic.SeasonalRule
}

// Validate checks cross references between tables.
func (c Config) Validate() error {
	if len(c.Plans) == 0 {
		return &generic.ConfigurationError{Field: "saas.plans", Reason: "at least one plan is required"}
	}
	for _, size := range c.Sizes {
		if len(size.Plans) == 0 {
			return &generic.ConfigurationError{Field: "saas.sizes[" + size.Name + "]", Reason: "no plans"}
		}
		for _, p := range size.Plans {
			if _, ok := c.plan(p); !ok {
				return &generic.ConfigurationError{Field: "saas.sizes[" + size.Name + "]",
					Reason: fmt.Sprintf("unknown plan %q", p)}
			}
		}
		u := size.Usage
		if u.DailyAPICalls[0] < 0 || u.DailyAPICalls[0] > u.DailyAPICalls[1] ||
			u.DailyStorageGB[0] < 0 || u.DailyStorageGB[0] > u.DailyStorageGB[1] ||
			u.ExtraSeats[0] < 0 || u.ExtraSeats[0] > u.ExtraSeats[1] {
			return &generic.ConfigurationError{Field: "saas.sizes[" + size.Name + "].usage", Reason: "inverted usage range"}
		}
		if size.MinSeats < 1 || size.MinSeats > size.MaxSeats {
			return &generic.ConfigurationError{Field: "saas.sizes[" + size.Name + "]",
				Reason: fmt.Sprintf("invalid seat range %d..%d", size.MinSeats, size.MaxSeats)}
		}
	}
	if err := c.sizeTable().Validate("saas.sizes"); err != nil {
		return err
	}
	if err := c.SalesChannels.Validate("saas.sales_channels"); err != nil {
		return err
	}
	if c.TrialShare > 0 && len(c.TrialDays) == 0 {
		return &generic.ConfigurationError{Field: "saas.trial_days", Reason: "required when trial_share > 0"}
	}
	if c.PaidShare < 0 || c.PaidShare > 1 {
		return &generic.ConfigurationError{Field: "saas.paid_share", Reason: "must be within [0, 1]"}
	}
	if c.MaxLifetimeMonths < 1 {
		return &generic.ConfigurationError{Field: "saas.max_lifetime_months", Reason: "must be >= 1"}
	}
	return nil
}

func (c Config) plan(name string) (Plan, bool) {
	for _, p := range c.Plans {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

// nextPlan returns the tier above name, if any.
func (c Config) nextPlan(name string) (Plan, bool) {
	for i, p := range c.Plans {
		if p.Name == name && i+1 < len(c.Plans) {
			return c.Plans[i+1], true
		}
	}
	return Plan{}, false
}

func (c Config) sizeTable() generic.WeightTable {
	t := make(generic.WeightTable, len(c.Sizes))
	for i, s := range c.Sizes {
		t[i] = generic.CategoryWeight{Label: s.Name, Weight: s.Weight}
	}
	return t
}

// Price returns what one billing cycle of plan costs for seats.
func (c Config) Price(p Plan, seats int, interval string) int64 {
	extra := int64(0)
	if seats > p.IncludedSeats {
		extra = int64(seats-p.IncludedSeats) * c.SeatPrice
	}
	if interval == IntervalYear {
		// Annual seats carry the same two free months as annual plans.
		return p.Annual + extra*10
	}
	return p.Monthly + extra
}

// Collections declares the collections and their references.
func Collections() []generic.CollectionSpec {
	return []generic.CollectionSpec{
		{Name: generic.CollectionCustomers, Object: "customer", Prefix: "cus_"},
		{Name: generic.CollectionSubscriptions, Object: "subscription", Prefix: "sub_",
			SuccessStatus: StatusActive,
			Refs:          map[string]string{"customer": generic.CollectionCustomers}},
		{Name: generic.CollectionInvoices, Object: "invoice", Prefix: "in_",
			SuccessStatus: InvoicePaid,
			Refs: map[string]string{
				"customer":     generic.CollectionCustomers,
				"subscription": generic.CollectionSubscriptions,
			}},
		{Name: CollectionUsage, Object: "usage_record", Prefix: "mbur_",
			Refs: map[string]string{
				"customer":     generic.CollectionCustomers,
				"subscription": generic.CollectionSubscriptions,
				"invoice":      generic.CollectionInvoices,
			}},
	}
}
