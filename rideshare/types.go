/*
Package rideshare generates datasets for an on-demand ride platform.

PURPOSE:
  RideShare Plus launches in one city and expands to five. Drivers are
  onboarded at the start of each period; riders sign up as they take their
  first ride. Each completed ride is charged to the rider and 75% of the fare
  (before the booking fee) is transferred to the driver, who is paid out at
  the end of every month.

COLLECTIONS:
  accounts   acct_  Drivers (16 hex)
  cards      ic_    Fuel card per driver
  customers  cus_   Riders
  payments   pi_    One per ride request
  transfers  tr_    Driver share of a completed ride
  payouts    po_    Monthly driver payout, net of the instant payout fee
  issuing_authorizations  iauth_  Fuel purchases on driver cards, one per
                                  15-25 completed rides in the month
  fraud_cases             fraud_  One per flagged ride, detected 5-60 minutes
                                  after the request

METRICS:
  The summary carries platform metrics: bookings, take rate, surge, fraud,
  fuel spend, and the split by vehicle and city (metrics.go).

FARE (cents):
  subtotal = (base + per_mile*miles + per_minute*minutes) * vehicle multiplier
           + airport surcharge, at least the minimum fare
  surged   = subtotal * surge
  total    = surged + booking fee
  driver   = 75% of surged
*/
package rideshare

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/synth-engine/generic"
)

// Name is the registry name of the vertical.
const Name = "rideshare"

// Collection names specific to this vertical.
const (
	CollectionCards          = "cards"
	CollectionAuthorizations = "issuing_authorizations"
	CollectionFraudCases     = "fraud_cases"
)

// Authorization and fraud case statuses.
const (
	AuthorizationClosed = "closed"
	FraudInvestigating  = "investigating"
	FraudConfirmed      = "confirmed"
	FraudFalsePositive  = "false_positive"
)

// Stage rate names.
const (
	RateSurge = "surge_frequency"
	RateFraud = "fraud_rate"
)

// Statuses.
const (
	StatusSucceeded             = generic.StatusSucceeded
	StatusCanceled              = generic.StatusCanceled
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusPaid                  = generic.StatusPaid
)

// Payout methods.
const (
	PayoutStandard = "standard"
	PayoutInstant  = "instant"
)

// Vehicle is a ride class.
type Vehicle struct {
	Name       string
	Weight     float64
	Multiplier float64
	Capacity   int
}

// RideType shapes the trip length.
type RideType struct {
	Name     string
	Weight   float64
	MinMiles float64
	MaxMiles float64
	Airport  bool
}

// City is a market the platform operates in.
type City struct {
	Name    string
	Airport string
}

// Pricing is the fare card.
type Pricing struct {
	BaseFare         int64
	PerMile          int64
	PerMinute        int64
	MinimumFare      int64
	BookingFee       int64
	AirportSurcharge int64
	InstantPayoutFee int64
	DriverTake       decimal.Decimal
	Surges           []float64 // multipliers above 1.0 drawn when a ride surges
}

// HourBoost raises surge likelihood at busy hours.
type HourBoost struct {
	Name     string
	Hours    []int
	Weekend  bool // only on Friday and Saturday nights
	Multiple float64
}

// FraudProfile is how one fraud type shows up to the risk team.
type FraudProfile struct {
	Description string
	Patterns    []string
	Risk        [2]float64 // risk score range
}

// Fuel shapes the fuel purchases drivers make on their issuing card.
type Fuel struct {
	RidesPerFill   [2]int   // completed rides between fill-ups
	Amount         [2]int64 // cents per purchase
	CentsPerGallon [2]int64
	Stations       []string
}

// Config is the immutable description of a RideShare Plus run.
type Config struct {
	Start   time.Time
	Periods int
	Stages  []generic.Stage

	// Drivers and Cities map a stage name to its driver target and the
	// number of cities (a prefix of Cities) it operates in.
	Drivers   map[string]int
	CityCount map[string]int
	Cities    []City

	Vehicles   []Vehicle
	RideTypes  []RideType
	Pricing    Pricing
	HourBoosts []HourBoost

	// CancelShare is the share of rides canceled before pickup.
	CancelShare float64
	// InstantShare is the share of drivers paid out instantly.
	InstantShare float64

	FraudTypes       generic.WeightTable
	FraudProfiles    map[string]FraudProfile
	FraudStatuses    []string
	FraudActions     []string
	DetectionMethods []string

	Fuel Fuel

	Seasonal []generic.SeasonalRule
}

// Validate checks the tables before any generation.
func (c Config) Validate() error {
	for _, s := range c.Stages {
		if c.Drivers[s.Name] < 1 {
			return &generic.ConfigurationError{Field: "rideshare.drivers",
				Reason: fmt.Sprintf("stage %q needs at least one driver", s.Name)}
		}
		if n := c.CityCount[s.Name]; n < 1 || n > len(c.Cities) {
			return &generic.ConfigurationError{Field: "rideshare.city_count",
				Reason: fmt.Sprintf("stage %q: %d cities of %d", s.Name, n, len(c.Cities))}
		}
	}
	if err := c.vehicleTable().Validate("rideshare.vehicles"); err != nil {
		return err
	}
	if err := c.rideTypeTable().Validate("rideshare.ride_types"); err != nil {
		return err
	}
	if err := c.FraudTypes.Validate("rideshare.fraud_types"); err != nil {
		return err
	}
	for _, ft := range c.FraudTypes {
		p, ok := c.FraudProfiles[ft.Label]
		if !ok || len(p.Patterns) == 0 || p.Risk[0] < 0 || p.Risk[0] > p.Risk[1] || p.Risk[1] > 1 {
			return &generic.ConfigurationError{Field: "rideshare.fraud_profiles[" + ft.Label + "]",
				Reason: "needs patterns and a risk range within [0, 1]"}
		}
	}
	if len(c.FraudStatuses) == 0 || len(c.FraudActions) == 0 || len(c.DetectionMethods) == 0 {
		return &generic.ConfigurationError{Field: "rideshare.fraud", Reason: "statuses, actions and detection methods are required"}
	}
	fuel := c.Fuel
	if fuel.RidesPerFill[0] < 1 || fuel.RidesPerFill[0] > fuel.RidesPerFill[1] ||
		fuel.Amount[0] <= 0 || fuel.Amount[0] > fuel.Amount[1] ||
		fuel.CentsPerGallon[0] <= 0 || fuel.CentsPerGallon[0] > fuel.CentsPerGallon[1] || len(fuel.Stations) == 0 {
		return &generic.ConfigurationError{Field: "rideshare.fuel", Reason: "invalid fuel ranges or no stations"}
	}
	for _, rt := range c.RideTypes {
		if rt.MinMiles <= 0 || rt.MinMiles > rt.MaxMiles {
			return &generic.ConfigurationError{Field: "rideshare.ride_types[" + rt.Name + "]", Reason: "invalid mile range"}
		}
	}
	if len(c.Pricing.Surges) == 0 {
		return &generic.ConfigurationError{Field: "rideshare.pricing.surges", Reason: "at least one surge multiplier is required"}
	}
	return nil
}

func (c Config) vehicleTable() generic.WeightTable {
	t := make(generic.WeightTable, len(c.Vehicles))
	for i, v := range c.Vehicles {
		t[i] = generic.CategoryWeight{Label: v.Name, Weight: v.Weight}
	}
	return t
}

func (c Config) rideTypeTable() generic.WeightTable {
	t := make(generic.WeightTable, len(c.RideTypes))
	for i, r := range c.RideTypes {
		t[i] = generic.CategoryWeight{Label: r.Name, Weight: r.Weight}
	}
	return t
}

// Fare is the priced breakdown of one ride.
type Fare struct {
	Subtotal int64
	Surged   int64
	Total    int64
	Driver   int64
}

// Price computes the fare for a trip.
func (p Pricing) Price(miles, minutes, vehicleMultiplier float64, airport bool, surge float64) Fare {
	raw := float64(p.BaseFare) + float64(p.PerMile)*miles + float64(p.PerMinute)*minutes
	subtotal := generic.Scale(int64(raw), vehicleMultiplier)
	if airport {
		subtotal += p.AirportSurcharge
	}
	if subtotal < p.MinimumFare {
		subtotal = p.MinimumFare
	}
	surged := generic.Scale(subtotal, surge)
	return Fare{
		Subtotal: subtotal,
		Surged:   surged,
		Total:    surged + p.BookingFee,
		Driver:   generic.ApplyRate(surged, p.DriverTake),
	}
}

// Collections declares the collections and their references.
func Collections() []generic.CollectionSpec {
	return []generic.CollectionSpec{
		{Name: generic.CollectionAccounts, Object: "account", Prefix: "acct_"},
		{Name: CollectionCards, Object: "issuing.card", Prefix: "ic_",
			Refs: map[string]string{"account": generic.CollectionAccounts}},
		{Name: generic.CollectionCustomers, Object: "customer", Prefix: "cus_"},
		{Name: generic.CollectionPayments, Object: "payment_intent", Prefix: "pi_",
			SuccessStatus: StatusSucceeded,
			Refs: map[string]string{
				"customer": generic.CollectionCustomers,
				"driver":   generic.CollectionAccounts,
			}},
		{Name: generic.CollectionTransfers, Object: "transfer", Prefix: "tr_",
			SuccessStatus: StatusPaid,
			Refs: map[string]string{
				"destination":    generic.CollectionAccounts,
				"payment_intent": generic.CollectionPayments,
			}},
		{Name: generic.CollectionPayouts, Object: "payout", Prefix: "po_",
			SuccessStatus: StatusPaid,
			Refs:          map[string]string{"destination": generic.CollectionAccounts}},
		{Name: CollectionAuthorizations, Object: "issuing.authorization", Prefix: "iauth_",
			SuccessStatus: AuthorizationClosed,
			Refs: map[string]string{
				"card":    CollectionCards,
				"account": generic.CollectionAccounts,
			}},
		{Name: CollectionFraudCases, Object: "fraud_case", Prefix: "fraud_",
			SuccessStatus: FraudConfirmed,
			Refs: map[string]string{
				"payment_intent": generic.CollectionPayments,
				"driver":         generic.CollectionAccounts,
				"customer":       generic.CollectionCustomers,
			}},
	}
}
