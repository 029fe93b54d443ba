package rideshare

import (
	"math"

	"github.com/warp/synth-engine/generic"
)

// PlatformMetrics summarize a finished RideShare Plus run. Amounts are cents.
type PlatformMetrics struct {
	TotalDrivers   int     `json:"total_drivers"`
	ActiveDrivers  int     `json:"active_drivers"`
	TotalRides     int     `json:"total_rides"`
	CompletedRides int     `json:"completed_rides"`
	CompletionRate float64 `json:"completion_rate"`

	GrossBookings   int64   `json:"gross_bookings"`
	PlatformRevenue int64   `json:"platform_revenue"`
	DriverEarnings  int64   `json:"driver_earnings"`
	DriverPayouts   int64   `json:"driver_payouts"`
	TakeRate        float64 `json:"take_rate"`

	AverageFare          int64   `json:"average_fare"`
	AverageMiles         float64 `json:"average_miles"`
	AverageMinutes       float64 `json:"average_minutes"`
	RidesPerActiveDriver float64 `json:"rides_per_active_driver"`

	Surge    SurgeMetrics           `json:"surge"`
	Fraud    FraudMetrics           `json:"fraud"`
	Fuel     FuelMetrics            `json:"fuel"`
	Vehicles map[string]int         `json:"vehicles"`
	Cities   map[string]CityMetrics `json:"cities"`
}

// SurgeMetrics describe surge-priced rides.
type SurgeMetrics struct {
	Rides             int     `json:"rides"`
	Frequency         float64 `json:"frequency"`
	AverageMultiplier float64 `json:"average_multiplier"`
}

// FraudMetrics describe flagged rides and their cases.
type FraudMetrics struct {
	Cases        int            `json:"cases"`
	Rate         float64        `json:"rate"`
	AmountAtRisk int64          `json:"amount_at_risk"`
	ByType       map[string]int `json:"by_type"`
	ByStatus     map[string]int `json:"by_status"`
}

// FuelMetrics describe driver card spend.
type FuelMetrics struct {
	Authorizations int   `json:"authorizations"`
	Spend          int64 `json:"spend"`
}

// CityMetrics are the completed rides and bookings of one city.
type CityMetrics struct {
	Rides   int   `json:"rides"`
	Revenue int64 `json:"revenue"`
}

var _ generic.MetricsHook = (*Factory)(nil)

// Metrics implements generic.MetricsHook.
func (f *Factory) Metrics(ds *generic.Dataset) (any, error) {
	return ComputeMetrics(ds), nil
}

// ComputeMetrics derives PlatformMetrics from a dataset built by this
// vertical. Driver earnings are the transfers; payouts are net of fees.
func ComputeMetrics(ds *generic.Dataset) PlatformMetrics {
	m := PlatformMetrics{
		TotalDrivers: len(ds.Collection(generic.CollectionAccounts)),
		Fraud:        FraudMetrics{ByType: map[string]int{}, ByStatus: map[string]int{}},
		Vehicles:     map[string]int{},
		Cities:       map[string]CityMetrics{},
	}

	active := map[string]bool{}
	var miles, minutes, surgeSum float64
	for _, p := range ds.Collection(generic.CollectionPayments) {
		m.TotalRides++
		active[p.Ref("driver")] = true
		m.Vehicles[p.Meta("vehicle_type")]++
		miles += p.MetaFloat("distance_miles")
		if surge := p.MetaFloat("surge_multiplier"); surge > 1 {
			m.Surge.Rides++
			surgeSum += surge
		}
		if p.Status != StatusSucceeded {
			continue
		}
		m.CompletedRides++
		m.GrossBookings += p.Amount
		m.PlatformRevenue += p.FieldInt("application_fee_amount")
		minutes += p.MetaFloat("duration_minutes")
		city := m.Cities[p.Meta("city")]
		city.Rides++
		city.Revenue += p.Amount
		m.Cities[p.Meta("city")] = city
	}
	m.ActiveDrivers = len(active)

	for _, tr := range ds.Collection(generic.CollectionTransfers) {
		m.DriverEarnings += tr.Amount
	}
	for _, po := range ds.Collection(generic.CollectionPayouts) {
		m.DriverPayouts += po.Amount
	}
	for _, fc := range ds.Collection(CollectionFraudCases) {
		m.Fraud.Cases++
		m.Fraud.AmountAtRisk += fc.Amount
		m.Fraud.ByType[fc.Category]++
		m.Fraud.ByStatus[fc.Status]++
	}
	for _, a := range ds.Collection(CollectionAuthorizations) {
		m.Fuel.Authorizations++
		m.Fuel.Spend += a.Amount
	}

	m.CompletionRate = generic.Ratio(float64(m.CompletedRides), float64(m.TotalRides))
	m.TakeRate = generic.Ratio(float64(m.PlatformRevenue), float64(m.GrossBookings))
	m.AverageFare = generic.Mean(m.GrossBookings, m.CompletedRides)
	m.AverageMiles = round2(generic.Ratio(miles, float64(m.TotalRides)))
	m.AverageMinutes = round2(generic.Ratio(minutes, float64(m.CompletedRides)))
	m.RidesPerActiveDriver = round2(generic.Ratio(float64(m.TotalRides), float64(m.ActiveDrivers)))
	m.Surge.Frequency = generic.Ratio(float64(m.Surge.Rides), float64(m.TotalRides))
	m.Surge.AverageMultiplier = 1
	if m.Surge.Rides > 0 {
		m.Surge.AverageMultiplier = round2(surgeSum / float64(m.Surge.Rides))
	}
	m.Fraud.Rate = generic.Ratio(float64(m.Fraud.Cases), float64(m.TotalRides))
	return m
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
