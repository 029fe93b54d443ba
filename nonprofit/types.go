/*
Package nonprofit generates datasets for a donation platform.

PURPOSE:
  GiveHope raises money through time-boxed campaigns and a permanent general
  fund. Donors give once or set up recurring gifts; some cover the card fee,
  some have their employer match the gift. Giving follows the charity
  calendar: a summer slump, then Giving Tuesday and year-end giving.

COLLECTIONS:
  customers      cus_   Donors: individuals, companies, foundations
  campaigns      camp_  Fundraising campaigns with goal and end date
  payments       pi_    One-time gifts and recurring charges
  subscriptions  sub_   Recurring gift plans; status is as of the end of the run
  matches        em_    Employer matches of succeeded gifts
  tax_receipts   receipt_  Receipts for succeeded gifts at or above the
                           receipt minimum, deductible amount net of fees

METRICS:
  The summary carries funds raised, fees covered, recurring revenue, donor
  segments, campaign success, the month-of-year giving curve, employer
  matching and acquisition channel results (metrics.go).

SEE ALSO:
  - presets.go: GiveHope tables
  - factory.go: Gifts, campaigns, recurring charges
*/
package nonprofit

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/synth-engine/generic"
)

// Name is the registry name of the vertical.
const Name = "nonprofit"

// Collection names specific to this vertical.
const (
	CollectionCampaigns = "campaigns"
	CollectionMatches   = "matches"
	CollectionReceipts  = "tax_receipts"
)

// Stage rate names beyond the shared ones.
const RateRetention = "retention_rate"

// Statuses.
const (
	StatusSucceeded             = generic.StatusSucceeded
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusActive                = generic.StatusActive
	StatusCanceled              = generic.StatusCanceled
	StatusPledged               = "pledged"
	StatusIssued                = "issued"
)

// GeneralFund is the campaign type of the always-open fund.
const GeneralFund = "general_fund"

// CampaignType describes one kind of campaign.
type CampaignType struct {
	Name           string
	Title          string
	GoalMultiplier float64
	MinDays        int
	MaxDays        int
	DonationSpike  float64
}

// DonorType is individual, corporate or foundation.
type DonorType struct {
	Name       string
	Weight     float64
	MajorShare float64 // probability the donor is a major donor
}

// Capacity is an individual's giving range in cents.
// Zero Min and Max mean the donor picks a suggested amount.
type Capacity struct {
	Name       string
	Weight     float64
	Min        int64
	Max        int64
	MonthlyMin int64 // recurring gift range per month
	MonthlyMax int64
}

// Frequency is a recurring gift cadence.
type Frequency struct {
	Name   string
	Weight float64
	Months int
}

// Organization is the charity named on tax receipts.
type Organization struct {
	Name    string
	EIN     string
	Address string
}

// Config is the immutable description of a GiveHope run.
type Config struct {
	Start   time.Time
	Periods int
	Stages  []generic.Stage

	// MonthlyGoal maps a stage to its monthly fundraising goal in cents,
	// the base campaign goals scale from.
	MonthlyGoal map[string]int64
	// CampaignsPerPeriod maps a stage to the campaigns launched each month.
	CampaignsPerPeriod map[string]int

	CampaignTypes []CampaignType
	DonorTypes    []DonorType
	Capacities    []Capacity
	Channels      generic.WeightTable
	Frequencies   []Frequency

	// SuggestedAmounts are the one-click amounts in cents low-capacity
	// donors choose from.
	SuggestedAmounts []int64
	MajorRange       [2]int64
	MajorMonthly     [2]int64
	MajorThreshold   int64

	FeeCoverShare float64
	FeePercent    decimal.Decimal
	FeeFixed      int64

	EmployerShare  float64 // individuals with a matching employer
	MatchShare     float64 // matchable gifts that are matched
	MatchRatios    []float64
	MatchCap       int64
	DedicateShare  float64
	ReceiptMinimum int64
	Organization   Organization

	// MaxLifetimeMonths caps recurring plan lifetimes; a plan drawn at the
	// cap never cancels.
	MaxLifetimeMonths int

	Seasonal []generic.SeasonalRule
}

// Validate checks the tables before any generation.
func (c Config) Validate() error {
	for _, s := range c.Stages {
		if c.MonthlyGoal[s.Name] <= 0 {
			return &generic.ConfigurationError{Field: "nonprofit.monthly_goal",
				Reason: fmt.Sprintf("stage %q has no goal", s.Name)}
		}
	}
	for _, ct := range c.CampaignTypes {
		if ct.MinDays < 1 || ct.MinDays > ct.MaxDays || ct.DonationSpike <= 0 {
			return &generic.ConfigurationError{Field: "nonprofit.campaign_types[" + ct.Name + "]",
				Reason: "invalid duration or spike"}
		}
	}
	if len(c.CampaignTypes) == 0 || len(c.SuggestedAmounts) == 0 || len(c.MatchRatios) == 0 {
		return &generic.ConfigurationError{Field: "nonprofit", Reason: "campaign types, suggested amounts and match ratios are required"}
	}
	tables := map[string]generic.WeightTable{
		"nonprofit.donor_types": c.donorTypeTable(),
		"nonprofit.capacities":  c.capacityTable(),
		"nonprofit.channels":    c.Channels,
		"nonprofit.frequencies": c.frequencyTable(),
	}
	for name, t := range tables {
		if err := t.Validate(name); err != nil {
			return err
		}
	}
	if c.MajorRange[0] <= 0 || c.MajorRange[0] > c.MajorRange[1] || c.MaxLifetimeMonths < 1 {
		return &generic.ConfigurationError{Field: "nonprofit.major_range", Reason: "major range and max lifetime must be positive"}
	}
	for _, cp := range c.Capacities {
		if cp.Min > cp.Max || cp.MonthlyMin > cp.MonthlyMax {
			return &generic.ConfigurationError{Field: "nonprofit.capacities[" + cp.Name + "]", Reason: "inverted amount range"}
		}
	}
	if c.MajorMonthly[0] > c.MajorMonthly[1] {
		return &generic.ConfigurationError{Field: "nonprofit.major_monthly", Reason: "inverted amount range"}
	}
	for _, f := range c.Frequencies {
		if f.Months < 1 {
			return &generic.ConfigurationError{Field: "nonprofit.frequencies[" + f.Name + "]", Reason: "months must be >= 1"}
		}
	}
	return nil
}

func (c Config) donorTypeTable() generic.WeightTable {
	t := make(generic.WeightTable, len(c.DonorTypes))
	for i, d := range c.DonorTypes {
		t[i] = generic.CategoryWeight{Label: d.Name, Weight: d.Weight}
	}
	return t
}

func (c Config) capacityTable() generic.WeightTable {
	t := make(generic.WeightTable, len(c.Capacities))
	for i, d := range c.Capacities {
		t[i] = generic.CategoryWeight{Label: d.Name, Weight: d.Weight}
	}
	return t
}

func (c Config) frequencyTable() generic.WeightTable {
	t := make(generic.WeightTable, len(c.Frequencies))
	for i, f := range c.Frequencies {
		t[i] = generic.CategoryWeight{Label: f.Name, Weight: f.Weight}
	}
	return t
}

// CoverFee returns what a donor who covers the card fee is charged so the
// charity nets gift.
func (c Config) CoverFee(gift int64) int64 {
	return generic.GrossUp(gift, c.FeePercent, c.FeeFixed)
}

// Collections declares the collections and their references.
func Collections() []generic.CollectionSpec {
	return []generic.CollectionSpec{
		{Name: generic.CollectionCustomers, Object: "customer", Prefix: "cus_"},
		{Name: CollectionCampaigns, Object: "campaign", Prefix: "camp_"},
		{Name: generic.CollectionSubscriptions, Object: "subscription", Prefix: "sub_",
			SuccessStatus: StatusActive,
			Refs: map[string]string{
				"customer": generic.CollectionCustomers,
				"campaign": CollectionCampaigns,
			}},
		{Name: generic.CollectionPayments, Object: "payment_intent", Prefix: "pi_",
			SuccessStatus: StatusSucceeded,
			Refs: map[string]string{
				"customer":     generic.CollectionCustomers,
				"campaign":     CollectionCampaigns,
				"subscription": generic.CollectionSubscriptions,
			}},
		{Name: CollectionMatches, Object: "employer_match", Prefix: "em_",
			Refs: map[string]string{
				"payment_intent": generic.CollectionPayments,
				"customer":       generic.CollectionCustomers,
			}},
		{Name: CollectionReceipts, Object: "tax_receipt", Prefix: "receipt_",
			SuccessStatus: StatusIssued,
			Refs: map[string]string{
				"payment_intent": generic.CollectionPayments,
				"customer":       generic.CollectionCustomers,
				"campaign":       CollectionCampaigns,
			}},
	}
}
