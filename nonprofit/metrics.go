package nonprofit

import (
	"fmt"

	"github.com/warp/synth-engine/generic"
)

// campaignSuccess is the share of its goal a campaign must raise to count
// as successful.
const campaignSuccess = 0.8

// Metrics summarize a finished GiveHope run. Amounts are cents of gifts,
// without covered fees.
type Metrics struct {
	TotalDonors         int     `json:"total_donors"`
	TotalCampaigns      int     `json:"total_campaigns"`
	TotalDonations      int     `json:"total_donations"`
	DonationSuccessRate float64 `json:"donation_success_rate"`
	CampaignSuccessRate float64 `json:"campaign_success_rate"`

	TotalRaised             int64 `json:"total_raised"`
	FeesCovered             int64 `json:"fees_covered"`
	AverageDonation         int64 `json:"average_donation"`
	MonthlyRecurringRevenue int64 `json:"monthly_recurring_revenue"`
	ActiveSubscriptions     int   `json:"active_subscriptions"`

	DonorSegments map[string]int             `json:"donor_segments"`
	Campaigns     map[string]CampaignMetrics `json:"campaigns"`
	Seasonal      map[string]MonthMetrics    `json:"seasonal"`
	Channels      map[string]ChannelMetrics  `json:"channels"`
	Matching      MatchMetrics               `json:"employer_matching"`
	Receipts      ReceiptMetrics             `json:"tax_receipts"`
}

// CampaignMetrics aggregate the campaigns of one type.
type CampaignMetrics struct {
	Count       int     `json:"count"`
	Goal        int64   `json:"goal"`
	Raised      int64   `json:"raised"`
	SuccessRate float64 `json:"success_rate"`
}

// MonthMetrics are the succeeded gifts of one calendar month, all years.
type MonthMetrics struct {
	Count int   `json:"count"`
	Total int64 `json:"total"`
}

// ChannelMetrics are the donors acquired through one channel.
type ChannelMetrics struct {
	Donors int   `json:"donors"`
	Given  int64 `json:"given"`
}

// MatchMetrics describe employer matching.
type MatchMetrics struct {
	Matches int     `json:"matches"`
	Amount  int64   `json:"amount"`
	Rate    float64 `json:"rate"`
}

// ReceiptMetrics describe issued tax receipts.
type ReceiptMetrics struct {
	Count      int   `json:"count"`
	Deductible int64 `json:"deductible"`
}

var _ generic.MetricsHook = (*Factory)(nil)

// Metrics implements generic.MetricsHook.
func (f *Factory) Metrics(ds *generic.Dataset) (any, error) {
	return ComputeMetrics(ds), nil
}

// ComputeMetrics derives Metrics from a dataset built by this vertical.
// Campaign success ignores the general fund, which has no goal.
func ComputeMetrics(ds *generic.Dataset) Metrics {
	m := Metrics{
		DonorSegments: map[string]int{},
		Campaigns:     map[string]CampaignMetrics{},
		Seasonal:      map[string]MonthMetrics{},
		Channels:      map[string]ChannelMetrics{},
	}

	raised := map[string]int64{}
	given := map[string]int64{}
	payments := ds.Collection(generic.CollectionPayments)
	for _, p := range payments {
		if p.Status != StatusSucceeded {
			continue
		}
		gift := p.FieldInt("donation_amount")
		m.TotalDonations++
		m.TotalRaised += gift
		m.FeesCovered += p.FieldInt("fee_amount")
		raised[p.Ref("campaign")] += gift
		given[p.Ref("customer")] += gift
		month := fmt.Sprintf("%02d", int(p.Created.Month()))
		mm := m.Seasonal[month]
		mm.Count++
		mm.Total += gift
		m.Seasonal[month] = mm
	}
	m.DonationSuccessRate = generic.Ratio(float64(m.TotalDonations), float64(len(payments)))
	m.AverageDonation = generic.Mean(m.TotalRaised, m.TotalDonations)

	recurring := map[string]bool{}
	for _, s := range ds.Collection(generic.CollectionSubscriptions) {
		recurring[s.Ref("customer")] = true
		if s.Status != StatusActive {
			continue
		}
		m.ActiveSubscriptions++
		if months := s.FieldInt("interval_count"); months > 0 {
			m.MonthlyRecurringRevenue += s.Amount / months
		}
	}

	for _, c := range ds.Collection(generic.CollectionCustomers) {
		m.TotalDonors++
		m.DonorSegments[c.Category]++
		if c.Meta("major_donor") == "true" {
			m.DonorSegments["major"]++
		}
		if recurring[c.ID] {
			m.DonorSegments["recurring"]++
		} else {
			m.DonorSegments["one_time"]++
		}
		ch := m.Channels[c.Meta("acquisition_channel")]
		ch.Donors++
		ch.Given += given[c.ID]
		m.Channels[c.Meta("acquisition_channel")] = ch
	}

	goals, successes := 0, 0
	successByType := map[string]int{}
	for _, c := range ds.Collection(CollectionCampaigns) {
		m.TotalCampaigns++
		if c.Amount <= 0 {
			continue
		}
		cm := m.Campaigns[c.Category]
		cm.Count++
		cm.Goal += c.Amount
		cm.Raised += raised[c.ID]
		m.Campaigns[c.Category] = cm
		goals++
		if float64(raised[c.ID]) >= campaignSuccess*float64(c.Amount) {
			successes++
			successByType[c.Category]++
		}
	}
	for kind, cm := range m.Campaigns {
		cm.SuccessRate = generic.Ratio(float64(successByType[kind]), float64(cm.Count))
		m.Campaigns[kind] = cm
	}
	m.CampaignSuccessRate = generic.Ratio(float64(successes), float64(goals))

	for _, em := range ds.Collection(CollectionMatches) {
		m.Matching.Matches++
		m.Matching.Amount += em.Amount
	}
	m.Matching.Rate = generic.Ratio(float64(m.Matching.Matches), float64(m.TotalDonations))

	for _, r := range ds.Collection(CollectionReceipts) {
		m.Receipts.Count++
		m.Receipts.Deductible += r.Amount
	}
	return m
}
