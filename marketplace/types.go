/*
Package marketplace generates datasets for a food delivery marketplace.

PURPOSE:
  LocalBites connects customers, restaurants and couriers. Each order is a
  payment from a customer; when it succeeds the platform keeps a commission
  and a service fee and transfers the rest to the restaurant and courier.

COLLECTIONS:
  accounts   acct_  Connected accounts, restaurants and couriers
  cards      ic_    Virtual expense card issued to each courier
  customers  cus_   Diners
  payments   pi_    One per order
  transfers  tr_    Restaurant share and courier share of a succeeded order
  issuing_authorizations  iauth_  Courier expenses on the card: fuel,
                                  parking, tolls

ORDER MATH (cents):
  food      = cuisine average * U(0.7, 1.8)
  delivery  = 299 + 50 per mile over 2 miles
  tip       = 15% of food
  total     = food + delivery + service fee (199) + tip
  platform  = 15% of food + service fee
  restaurant transfer = food - commission
  courier transfer    = delivery + tip

POPULATIONS:
  Restaurants and couriers are onboarded at the start of each period up to
  the stage target, so the supply side grows with the lifecycle.

METRICS:
  The summary carries GMV, platform revenue, take rate, average order value,
  per-supplier throughput and courier expense spend (metrics.go).
*/
package marketplace

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/synth-engine/generic"
)

// Name is the registry name of the vertical.
const Name = "marketplace"

// Collection names specific to this vertical.
const (
	CollectionCards          = "cards"
	CollectionAuthorizations = "issuing_authorizations"
)

// AuthorizationClosed is the status of a captured card authorization.
const AuthorizationClosed = "closed"

// Account kinds, stored as the account category.
const (
	KindRestaurant = "restaurant"
	KindCourier    = "courier"
)

// Statuses.
const (
	StatusSucceeded             = generic.StatusSucceeded
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusPaid                  = generic.StatusPaid
)

// Cuisine is a restaurant type with its average food ticket.
type Cuisine struct {
	Name     string
	AvgOrder int64
	PrepTime int // minutes
}

// Expense is a courier spending category and its range in cents.
type Expense struct {
	Category string
	Weight   float64
	Min      int64
	Max      int64
}

// Population is the supply target of one stage.
type Population struct {
	Restaurants int
	Couriers    int
}

// Fees are the platform economics.
type Fees struct {
	Commission      decimal.Decimal
	TipRate         decimal.Decimal
	ServiceFee      int64
	DeliveryBase    int64
	PerMileOverFree int64
	FreeMiles       float64
}

// Config is the immutable description of a LocalBites run.
type Config struct {
	Start   time.Time
	Periods int
	Stages  []generic.Stage

	// Populations maps a stage name to its supply target.
	Populations map[string]Population

	Cuisines []Cuisine
	Vehicles []string
	Fees     Fees

	// MinMiles and MaxMiles bound the delivery distance.
	MinMiles float64
	MaxMiles float64

	// FoodSpread bounds the food multiplier applied to a cuisine average.
	FoodSpread [2]float64

	// CourierLag is how long after the order the courier is paid.
	CourierLag time.Duration

	// Expenses are what couriers spend on their card; ExpenseShare is the
	// chance a courier card is used in a given month.
	Expenses     []Expense
	ExpenseShare float64

	Seasonal []generic.SeasonalRule
}

// Validate checks the tables before any generation.
func (c Config) Validate() error {
	if len(c.Cuisines) == 0 || len(c.Vehicles) == 0 {
		return &generic.ConfigurationError{Field: "marketplace", Reason: "cuisines and vehicles are required"}
	}
	for _, s := range c.Stages {
		p, ok := c.Populations[s.Name]
		if !ok {
			return &generic.ConfigurationError{Field: "marketplace.populations",
				Reason: fmt.Sprintf("no population for stage %q", s.Name)}
		}
		if p.Restaurants < 1 || p.Couriers < 1 {
			return &generic.ConfigurationError{Field: "marketplace.populations[" + s.Name + "]",
				Reason: "restaurants and couriers must be >= 1"}
		}
	}
	if c.MinMiles <= 0 || c.MinMiles > c.MaxMiles {
		return &generic.ConfigurationError{Field: "marketplace.miles", Reason: "must be 0 < min <= max"}
	}
	if c.FoodSpread[0] <= 0 || c.FoodSpread[0] > c.FoodSpread[1] {
		return &generic.ConfigurationError{Field: "marketplace.food_spread", Reason: "must be 0 < low <= high"}
	}
	if c.ExpenseShare > 0 {
		if err := c.expenseTable().Validate("marketplace.expenses"); err != nil {
			return err
		}
	}
	for _, e := range c.Expenses {
		if e.Min <= 0 || e.Min > e.Max {
			return &generic.ConfigurationError{Field: "marketplace.expenses[" + e.Category + "]", Reason: "must be 0 < min <= max"}
		}
	}
	if c.Fees.Commission.IsNegative() || c.Fees.Commission.GreaterThan(decimal.NewFromInt(1)) {
		return &generic.ConfigurationError{Field: "marketplace.fees.commission", Reason: "must be within [0, 1]"}
	}
	return nil
}

func (c Config) expenseTable() generic.WeightTable {
	t := make(generic.WeightTable, len(c.Expenses))
	for i, e := range c.Expenses {
		t[i] = generic.CategoryWeight{Label: e.Category, Weight: e.Weight}
	}
	return t
}

// DeliveryFee prices a delivery of miles.
func (f Fees) DeliveryFee(miles float64) int64 {
	if miles <= f.FreeMiles {
		return f.DeliveryBase
	}
	return f.DeliveryBase + int64((miles-f.FreeMiles)*float64(f.PerMileOverFree))
}

// Order is the priced breakdown of one delivery.
type Order struct {
	Food        int64
	Delivery    int64
	Service     int64
	Tip         int64
	Commission  int64
	Miles       float64
	Total       int64
	PlatformFee int64
	Restaurant  int64
	Courier     int64
}

// Price breaks an order down.
func (f Fees) Price(food int64, miles float64) Order {
	commission, net := generic.Split(food, f.Commission)
	o := Order{
		Food:       food,
		Delivery:   f.DeliveryFee(miles),
		Service:    f.ServiceFee,
		Tip:        generic.ApplyRate(food, f.TipRate),
		Commission: commission,
		Miles:      miles,
		Restaurant: net,
	}
	o.Total = o.Food + o.Delivery + o.Service + o.Tip
	o.PlatformFee = o.Commission + o.Service
	o.Courier = o.Delivery + o.Tip
	return o
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
				"customer":   generic.CollectionCustomers,
				"restaurant": generic.CollectionAccounts,
				"courier":    generic.CollectionAccounts,
			}},
		{Name: generic.CollectionTransfers, Object: "transfer", Prefix: "tr_",
			SuccessStatus: StatusPaid,
			Refs: map[string]string{
				"destination":    generic.CollectionAccounts,
				"payment_intent": generic.CollectionPayments,
			}},
		{Name: CollectionAuthorizations, Object: "issuing.authorization", Prefix: "iauth_",
			SuccessStatus: AuthorizationClosed,
			Refs: map[string]string{
				"card":    CollectionCards,
				"account": generic.CollectionAccounts,
			}},
	}
}
