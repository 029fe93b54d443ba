package rideshare

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/warp/synth-engine/generic"
)

const (
	onboardWindow        = 6 * time.Hour
	recentRiderWindow    = 400
	standardArrivalDelay = 2 // days
)

type driver struct {
	id        string
	card      string
	city      City
	vehicle   Vehicle
	instant   bool
	earnings  int64 // transferred this period
	completed int   // rides completed this period
}

// Factory onboards drivers in BeginPeriod, builds one ride per Create and
// pays drivers out and books their fuel purchases in EndPeriod.
type Factory struct {
	cfg       Config
	scale     float64
	vehicles  generic.WeightTable
	rideTypes generic.WeightTable
	drivers   []*driver
	byID      map[string]*driver
	riders    map[string][]string // city -> rider ids in signup order
	rides     int
}

var (
	_ generic.EntityFactory = (*Factory)(nil)
	_ generic.PeriodHook    = (*Factory)(nil)
	_ generic.PeriodEndHook = (*Factory)(nil)
)

// NewFactory validates cfg. scale multiplies the driver targets.
func NewFactory(cfg Config, scale float64) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scale <= 0 {
		scale = 1
	}
	return &Factory{
		cfg:       cfg,
		scale:     scale,
		vehicles:  cfg.vehicleTable(),
		rideTypes: cfg.rideTypeTable(),
		byID:      make(map[string]*driver),
		riders:    make(map[string][]string),
	}, nil
}

// Drivers returns the number of onboarded drivers.
func (f *Factory) Drivers() int { return len(f.drivers) }

// =============================================================================
// DRIVER ONBOARDING
// =============================================================================

// BeginPeriod onboards drivers up to the stage target, spread round-robin
// over the cities the stage operates in.
func (f *Factory) BeginPeriod(bc *generic.BuildContext) ([]generic.Entity, error) {
	target := generic.ScaleCount(f.cfg.Drivers[bc.Stage.Name], f.scale)
	cities := f.cfg.Cities[:f.cfg.CityCount[bc.Stage.Name]]

	var out []generic.Entity
	for len(f.drivers) < target {
		batch, err := f.onboard(bc, cities[len(f.drivers)%len(cities)])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (f *Factory) onboard(bc *generic.BuildContext, city City) ([]generic.Entity, error) {
	s := bc.Sampler
	id, err := bc.NewID("acct_", 16)
	if err != nil {
		return nil, err
	}
	cardID, err := bc.NewID("ic_", generic.DefaultIDLength)
	if err != nil {
		return nil, err
	}
	vehicleName, err := s.WeightedChoice(f.vehicles)
	if err != nil {
		return nil, err
	}
	d := &driver{id: id, card: cardID, city: city, vehicle: f.vehicle(vehicleName), instant: s.Chance(f.cfg.InstantShare)}
	f.drivers = append(f.drivers, d)
	f.byID[id] = d

	p := generic.NewPerson(s)
	created := bc.Date.Add(time.Duration(s.IntN(int(onboardWindow/time.Second))) * time.Second)
	preference := PayoutStandard
	if d.instant {
		preference = PayoutInstant
	}
	rating := math.Max(3.0, math.Min(5.0, 4.7+s.FloatBetween(-0.6, 0.3)))

	account := generic.Entity{
		ID:         id,
		Collection: generic.CollectionAccounts,
		Status:     generic.StatusActive,
		Created:    created,
		Category:   vehicleName,
		Fields: map[string]any{
			"type":            "express",
			"country":         "US",
			"payouts_enabled": true,
			"individual":      map[string]any{"first_name": p.First, "last_name": p.Last, "email": p.Email},
		},
		Metadata: generic.Metadata{
			"platform_type":     "driver",
			"city":              city.Name,
			"vehicle_type":      vehicleName,
			"payout_preference": preference,
			"rating":            strconv.FormatFloat(rating, 'f', 1, 64),
			"lifecycle_stage":   bc.Stage.Name,
		},
	}
	card := generic.Entity{
		ID:         cardID,
		Collection: CollectionCards,
		Status:     generic.StatusActive,
		Created:    created,
		Category:   "fuel",
		Refs:       map[string]string{"account": id},
		Fields: map[string]any{
			"brand":      "visa",
			"type":       "physical",
			"last4":      generic.Digits(s, 4),
			"cardholder": p.Name(),
			"spending_controls": map[string]any{
				"allowed_categories": []string{"service_stations", "automated_fuel_dispensers"},
			},
		},
		Metadata: generic.Metadata{"driver_account": id},
	}
	return []generic.Entity{account, card}, nil
}

func (f *Factory) vehicle(name string) Vehicle {
	for _, v := range f.cfg.Vehicles {
		if v.Name == name {
			return v
		}
	}
	return f.cfg.Vehicles[0]
}

func (f *Factory) rideType(name string) RideType {
	for _, r := range f.cfg.RideTypes {
		if r.Name == name {
			return r
		}
	}
	return f.cfg.RideTypes[0]
}

// =============================================================================
// RIDES
// =============================================================================

// Create builds one ride request: an optional new rider, the payment and,
// for completed rides, the driver transfer.
func (f *Factory) Create(bc *generic.BuildContext) ([]generic.Entity, error) {
	if len(f.drivers) == 0 {
		return nil, &generic.PrerequisiteMissingError{Collection: generic.CollectionAccounts, Needed: "ride driver"}
	}
	s := bc.Sampler
	d := generic.Choice(s, f.drivers)
	created := bc.NotBefore(bc.Timestamp(), generic.CollectionAccounts, d.id)

	var out []generic.Entity
	rider, fresh, err := f.rider(bc, d.city, created)
	if err != nil {
		return nil, err
	}
	if fresh {
		out = append(out, rider)
	}

	typeName, err := s.WeightedChoice(f.rideTypes)
	if err != nil {
		return nil, err
	}
	rt := f.rideType(typeName)
	miles := math.Round(s.FloatBetween(rt.MinMiles, rt.MaxMiles)*100) / 100
	minutes := math.Max(5, miles*s.FloatBetween(2, 4)+s.FloatBetween(-5, 15))
	minutes = math.Round(minutes*10) / 10

	surge := 1.0
	if s.Chance(math.Min(1, bc.Rate(RateSurge, 0)*f.hourBoost(created))) {
		surge = generic.Choice(s, f.cfg.Pricing.Surges)
	}
	fare := f.cfg.Pricing.Price(miles, minutes, d.vehicle.Multiplier, rt.Airport, surge)

	id, err := bc.NewID("pi_", generic.DefaultIDLength)
	if err != nil {
		return nil, err
	}
	f.rides++
	payment := generic.Entity{
		ID:         id,
		Collection: generic.CollectionPayments,
		Amount:     fare.Total,
		Status:     StatusSucceeded,
		Created:    created,
		Category:   d.vehicle.Name,
		Refs: map[string]string{
			"customer": rider.ID,
			"driver":   d.id,
		},
		Fields: map[string]any{
			"application_fee_amount": fare.Total - fare.Driver,
			"description":            fmt.Sprintf("Ride %d in %s", f.rides, d.city.Name),
		},
		Metadata: generic.Metadata{
			"ride_type":        typeName,
			"city":             d.city.Name,
			"vehicle_type":     d.vehicle.Name,
			"distance_miles":   strconv.FormatFloat(miles, 'f', 2, 64),
			"duration_minutes": strconv.FormatFloat(minutes, 'f', 1, 64),
			"surge_multiplier": strconv.FormatFloat(surge, 'f', 2, 64),
			"lifecycle_stage":  bc.Stage.Name,
		},
	}
	if rt.Airport {
		payment.Metadata["airport"] = d.city.Airport
	}

	var fraudType string
	var risk float64
	if s.Chance(bc.Rate(RateFraud, 0)) {
		if fraudType, err = s.WeightedChoice(f.cfg.FraudTypes); err != nil {
			return nil, err
		}
		profile := f.cfg.FraudProfiles[fraudType]
		risk = math.Round(s.FloatBetween(profile.Risk[0], profile.Risk[1])*1000) / 1000
		payment.Metadata["fraud_flag"] = "true"
		payment.Metadata["fraud_type"] = fraudType
		payment.Metadata["risk_score"] = strconv.FormatFloat(risk, 'f', 3, 64)
		if fraudType == "stolen_card" {
			payment.Status = StatusRequiresPaymentMethod
		}
	}
	if payment.Status == StatusSucceeded && s.Chance(f.cfg.CancelShare) {
		payment.Status = StatusCanceled
		payment.Fields["cancellation_reason"] = generic.Choice(s, []string{"requested_by_customer", "abandoned"})
	}
	out = append(out, payment)
	if fraudType != "" {
		fc, err := f.fraudCase(bc, payment, d, fraudType, risk)
		if err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	if payment.Status != StatusSucceeded {
		return out, nil
	}

	trID, err := bc.NewID("tr_", generic.DefaultIDLength)
	if err != nil {
		return nil, err
	}
	d.earnings += fare.Driver
	d.completed++
	completed := generic.ClampToDay(created.Add(time.Duration(minutes+5)*time.Minute), created)
	out = append(out, generic.Entity{
		ID:         trID,
		Collection: generic.CollectionTransfers,
		Amount:     fare.Driver,
		Status:     StatusPaid,
		Created:    completed,
		Category:   "driver_earnings",
		Refs: map[string]string{
			"destination":    d.id,
			"payment_intent": id,
		},
		Metadata: generic.Metadata{"city": d.city.Name},
	})
	return out, nil
}

// fraudCase opens the risk team's case on a flagged ride.
func (f *Factory) fraudCase(bc *generic.BuildContext, payment generic.Entity, d *driver, fraudType string, risk float64) (generic.Entity, error) {
	s := bc.Sampler
	id, err := bc.NewID("fraud_", 16)
	if err != nil {
		return generic.Entity{}, err
	}
	profile := f.cfg.FraudProfiles[fraudType]
	lag := time.Duration(s.IntBetween(300, 3600)) * time.Second
	return generic.Entity{
		ID:         id,
		Collection: CollectionFraudCases,
		Amount:     payment.Amount,
		Status:     generic.Choice(s, f.cfg.FraudStatuses),
		Created:    generic.ClampToDay(payment.Created.Add(lag), payment.Created),
		Category:   fraudType,
		Refs: map[string]string{
			"payment_intent": payment.ID,
			"driver":         d.id,
			"customer":       payment.Ref("customer"),
		},
		Fields: map[string]any{
			"fraud_type":        fraudType,
			"description":       profile.Description,
			"risk_score":        risk,
			"patterns_detected": profile.Patterns,
			"action_taken":      generic.Choice(s, f.cfg.FraudActions),
		},
		Metadata: generic.Metadata{
			"detection_method":    generic.Choice(s, f.cfg.DetectionMethods),
			"investigation_notes": "Flagged for " + fraudType + " - " + generic.Choice(s, profile.Patterns),
			"city":                d.city.Name,
			"lifecycle_stage":     bc.Stage.Name,
		},
	}, nil
}

// hourBoost multiplies the surge likelihood for the hour of t.
func (f *Factory) hourBoost(t time.Time) float64 {
	boost := 1.0
	weekendNight := t.Weekday() == time.Friday || t.Weekday() == time.Saturday
	for _, b := range f.cfg.HourBoosts {
		if b.Weekend && !weekendNight {
			continue
		}
		for _, h := range b.Hours {
			if t.Hour() == h {
				boost *= b.Multiple
				break
			}
		}
	}
	return boost
}

func (f *Factory) rider(bc *generic.BuildContext, city City, at time.Time) (generic.Entity, bool, error) {
	pool := f.riders[city.Name]
	if len(pool) > 0 && !bc.Sampler.Chance(bc.Rate(generic.RateNewCustomer, 0.2)) {
		window := min(len(pool), recentRiderWindow)
		id := pool[len(pool)-window+bc.Sampler.IntN(window)]
		if r, ok := bc.Related.Get(generic.CollectionCustomers, id); ok && !r.Created.After(at) {
			return r, false, nil
		}
	}
	id, err := bc.NewID("cus_", 14)
	if err != nil {
		return generic.Entity{}, false, err
	}
	f.riders[city.Name] = append(f.riders[city.Name], id)
	p := generic.NewPerson(bc.Sampler)
	return generic.Entity{
		ID:         id,
		Collection: generic.CollectionCustomers,
		Created:    at,
		Category:   city.Name,
		Fields:     map[string]any{"name": p.Name(), "email": p.Email, "phone": "+1555" + generic.Digits(bc.Sampler, 7)},
		Metadata:   generic.Metadata{"home_city": city.Name, "lifecycle_stage": bc.Stage.Name},
	}, true, nil
}

// =============================================================================
// PAYOUTS
// =============================================================================

// EndPeriod pays every driver what was transferred to them this period, on
// the last day of the period.
func (f *Factory) EndPeriod(bc *generic.BuildContext) ([]generic.Entity, error) {
	last := generic.AddMonths(bc.Date, 1).AddDate(0, 0, -1)
	var out []generic.Entity
	for _, d := range f.drivers {
		gross := d.earnings
		d.earnings = 0
		fee, method, arrival := int64(0), PayoutStandard, last.AddDate(0, 0, standardArrivalDelay)
		if d.instant {
			fee, method, arrival = f.cfg.Pricing.InstantPayoutFee, PayoutInstant, last
		}
		if gross-fee <= 0 {
			continue
		}
		id, err := bc.NewID("po_", generic.DefaultIDLength)
		if err != nil {
			return nil, err
		}
		out = append(out, generic.Entity{
			ID:         id,
			Collection: generic.CollectionPayouts,
			Amount:     gross - fee,
			Status:     StatusPaid,
			Created:    last.Add(bc.Sampler.Jitter()),
			Category:   method,
			Refs:       map[string]string{"destination": d.id},
			Fields: map[string]any{
				"method":       method,
				"arrival_date": arrival.Unix(),
				"fee":          fee,
				"gross":        gross,
			},
			Metadata: generic.Metadata{"city": d.city.Name},
		})
	}

	for _, d := range f.drivers {
		fills, err := f.fuel(bc, d)
		if err != nil {
			return nil, err
		}
		out = append(out, fills...)
		d.completed = 0
	}
	return out, nil
}

// fuel authorizes one fill-up per RidesPerFill completed rides on the
// driver's card, on random days of the period.
func (f *Factory) fuel(bc *generic.BuildContext, d *driver) ([]generic.Entity, error) {
	if d.completed == 0 {
		return nil, nil
	}
	s := bc.Sampler
	cfg := f.cfg.Fuel
	fills := max(1, d.completed/s.IntBetween(cfg.RidesPerFill[0], cfg.RidesPerFill[1]))

	out := make([]generic.Entity, 0, fills)
	for range fills {
		id, err := bc.NewID("iauth_", generic.DefaultIDLength)
		if err != nil {
			return nil, err
		}
		amount, err := s.AmountInRange(cfg.Amount[0], cfg.Amount[1])
		if err != nil {
			return nil, err
		}
		perGallon, err := s.AmountInRange(cfg.CentsPerGallon[0], cfg.CentsPerGallon[1])
		if err != nil {
			return nil, err
		}
		gallons := math.Round(float64(amount)/float64(perGallon)*10) / 10
		out = append(out, generic.Entity{
			ID:         id,
			Collection: CollectionAuthorizations,
			Amount:     amount,
			Status:     AuthorizationClosed,
			Created:    bc.NotBefore(bc.Timestamp(), CollectionCards, d.card),
			Category:   "fuel",
			Refs: map[string]string{
				"card":    d.card,
				"account": d.id,
			},
			Fields: map[string]any{
				"approved":               true,
				"merchant_category_code": "5541",
				"merchant_data": map[string]any{
					"category": "service_stations",
					"name":     generic.Choice(s, cfg.Stations),
					"city":     d.city.Name,
					"country":  "US",
				},
			},
			Metadata: generic.Metadata{
				"driver_account": d.id,
				"purchase_type":  "fuel",
				"gallons":        strconv.FormatFloat(gallons, 'f', 1, 64),
			},
		})
	}
	return out, nil
}
