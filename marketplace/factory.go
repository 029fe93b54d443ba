package marketplace

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/warp/synth-engine/generic"
)

// onboardWindow is how late on a period's first day new supply goes live.
const onboardWindow = 6 * time.Hour

// Factory onboards supply in BeginPeriod, builds one order per Create and
// books courier card spend in EndPeriod.
type Factory struct {
	cfg         Config
	scale       float64
	expenses    generic.WeightTable
	restaurants []string
	couriers    []string
	cards       []string // courier card ids, parallel to couriers
	cuisineOf   map[string]Cuisine
	orders      int
}

var (
	_ generic.EntityFactory = (*Factory)(nil)
	_ generic.PeriodHook    = (*Factory)(nil)
	_ generic.PeriodEndHook = (*Factory)(nil)
)

// NewFactory validates cfg. scale multiplies the population targets.
func NewFactory(cfg Config, scale float64) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scale <= 0 {
		scale = 1
	}
	return &Factory{cfg: cfg, scale: scale, expenses: cfg.expenseTable(), cuisineOf: make(map[string]Cuisine)}, nil
}

// Supply returns the onboarded restaurant and courier counts.
func (f *Factory) Supply() (restaurants, couriers int) {
	return len(f.restaurants), len(f.couriers)
}

// =============================================================================
// ONBOARDING
// =============================================================================

// BeginPeriod tops supply up to the stage target. Accounts go live in the
// first hours of the period's first day.
func (f *Factory) BeginPeriod(bc *generic.BuildContext) ([]generic.Entity, error) {
	pop := f.cfg.Populations[bc.Stage.Name]
	var out []generic.Entity

	for len(f.restaurants) < generic.ScaleCount(pop.Restaurants, f.scale) {
		e, err := f.restaurant(bc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	for len(f.couriers) < generic.ScaleCount(pop.Couriers, f.scale) {
		batch, err := f.courier(bc)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (f *Factory) onboardedAt(bc *generic.BuildContext) time.Time {
	return bc.Date.Add(time.Duration(bc.Sampler.IntN(int(onboardWindow/time.Second))) * time.Second)
}

func (f *Factory) restaurant(bc *generic.BuildContext) (generic.Entity, error) {
	id, err := bc.NewID("acct_", generic.DefaultIDLength)
	if err != nil {
		return generic.Entity{}, err
	}
	cuisine := generic.Choice(bc.Sampler, f.cfg.Cuisines)
	company, _ := generic.NewCompany(bc.Sampler)
	f.restaurants = append(f.restaurants, id)
	f.cuisineOf[id] = cuisine

	return generic.Entity{
		ID:         id,
		Collection: generic.CollectionAccounts,
		Status:     generic.StatusActive,
		Created:    f.onboardedAt(bc),
		Category:   KindRestaurant,
		Fields: map[string]any{
			"type":             "custom",
			"country":          "US",
			"charges_enabled":  true,
			"payouts_enabled":  true,
			"business_profile": map[string]any{"mcc": 5812, "name": company + " " + cuisine.Name},
		},
		Metadata: generic.Metadata{
			"platform_type":     KindRestaurant,
			"restaurant_number": strconv.Itoa(len(f.restaurants)),
			"cuisine_type":      cuisine.Name,
			"average_prep_time": strconv.Itoa(cuisine.PrepTime),
		},
	}, nil
}

func (f *Factory) courier(bc *generic.BuildContext) ([]generic.Entity, error) {
	id, err := bc.NewID("acct_", generic.DefaultIDLength)
	if err != nil {
		return nil, err
	}
	cardID, err := bc.NewID("ic_", generic.DefaultIDLength)
	if err != nil {
		return nil, err
	}
	p := generic.NewPerson(bc.Sampler)
	created := f.onboardedAt(bc)
	f.couriers = append(f.couriers, id)
	f.cards = append(f.cards, cardID)

	account := generic.Entity{
		ID:         id,
		Collection: generic.CollectionAccounts,
		Status:     generic.StatusActive,
		Created:    created,
		Category:   KindCourier,
		Fields: map[string]any{
			"type":            "express",
			"country":         "US",
			"charges_enabled": false,
			"payouts_enabled": true,
			"individual":      map[string]any{"first_name": p.First, "last_name": p.Last, "email": p.Email},
		},
		Metadata: generic.Metadata{
			"platform_type":  KindCourier,
			"courier_number": strconv.Itoa(len(f.couriers)),
			"vehicle_type":   generic.Choice(bc.Sampler, f.cfg.Vehicles),
			"rating":         strconv.FormatFloat(math.Round(bc.Sampler.FloatBetween(4.2, 5.0)*10)/10, 'f', 1, 64),
		},
	}
	card := generic.Entity{
		ID:         cardID,
		Collection: CollectionCards,
		Status:     generic.StatusActive,
		Created:    created,
		Category:   "virtual",
		Refs:       map[string]string{"account": id},
		Fields: map[string]any{
			"brand":      "visa",
			"type":       "virtual",
			"last4":      generic.Digits(bc.Sampler, 4),
			"cardholder": p.Name(),
		},
		Metadata: generic.Metadata{"courier_account": id},
	}
	return []generic.Entity{account, card}, nil
}

// =============================================================================
// ORDERS
// =============================================================================

// Create builds an order: an optional new customer, the payment, and when it
// succeeds the two transfers.
func (f *Factory) Create(bc *generic.BuildContext) ([]generic.Entity, error) {
	if len(f.restaurants) == 0 {
		return nil, &generic.PrerequisiteMissingError{Collection: generic.CollectionAccounts, Needed: "order restaurant"}
	}
	if len(f.couriers) == 0 {
		return nil, &generic.PrerequisiteMissingError{Collection: generic.CollectionAccounts, Needed: "order courier"}
	}
	s := bc.Sampler
	var out []generic.Entity

	restaurant := generic.Choice(s, f.restaurants)
	courier := generic.Choice(s, f.couriers)
	created := bc.Timestamp()
	created = bc.NotBefore(created, generic.CollectionAccounts, restaurant, courier)

	customer, fresh, err := f.customer(bc, created)
	if err != nil {
		return nil, err
	}
	if fresh {
		out = append(out, customer)
	}

	cuisine := f.cuisineOf[restaurant]
	food := generic.Scale(cuisine.AvgOrder, s.FloatBetween(f.cfg.FoodSpread[0], f.cfg.FoodSpread[1]))
	miles := math.Round(s.FloatBetween(f.cfg.MinMiles, f.cfg.MaxMiles)*10) / 10
	order := f.cfg.Fees.Price(food, miles)
	f.orders++

	paymentID, err := bc.NewID("pi_", generic.DefaultIDLength)
	if err != nil {
		return nil, err
	}
	orderNumber := strconv.Itoa(f.orders)
	status := StatusSucceeded
	if s.Chance(bc.Rate(generic.RateFailure, 0)) {
		status = StatusRequiresPaymentMethod
	}
	out = append(out, generic.Entity{
		ID:         paymentID,
		Collection: generic.CollectionPayments,
		Amount:     order.Total,
		Status:     status,
		Created:    created,
		Category:   cuisine.Name,
		Refs: map[string]string{
			"customer":   customer.ID,
			"restaurant": restaurant,
			"courier":    courier,
		},
		Fields: map[string]any{
			"application_fee_amount": order.PlatformFee,
			"description":            fmt.Sprintf("LocalBites Order #%s", orderNumber),
			"amount_details": map[string]any{
				"food":     order.Food,
				"delivery": order.Delivery,
				"service":  order.Service,
				"tip":      order.Tip,
			},
		},
		Metadata: generic.Metadata{
			"order_id":        orderNumber,
			"cuisine_type":    cuisine.Name,
			"distance_miles":  strconv.FormatFloat(miles, 'f', 1, 64),
			"lifecycle_stage": bc.Stage.Name,
		},
	})
	if status != StatusSucceeded {
		return out, nil
	}

	toRestaurant, err := f.transfer(bc, paymentID, restaurant, order.Restaurant, created, "restaurant_payout", orderNumber)
	if err != nil {
		return nil, err
	}
	courierAt := generic.ClampToDay(created.Add(f.cfg.CourierLag), created)
	toCourier, err := f.transfer(bc, paymentID, courier, order.Courier, courierAt, "courier_payout", orderNumber)
	if err != nil {
		return nil, err
	}
	return append(out, toRestaurant, toCourier), nil
}

func (f *Factory) customer(bc *generic.BuildContext, at time.Time) (generic.Entity, bool, error) {
	if bc.Related.Len(generic.CollectionCustomers) > 0 && !bc.Sampler.Chance(bc.Rate(generic.RateNewCustomer, 0.3)) {
		c, err := bc.Pick(generic.CollectionCustomers, "returning diner")
		if err != nil {
			return generic.Entity{}, false, err
		}
		if !c.Created.After(at) {
			return c, false, nil
		}
	}
	id, err := bc.NewID("cus_", 14)
	if err != nil {
		return generic.Entity{}, false, err
	}
	p := generic.NewPerson(bc.Sampler)
	return generic.Entity{
		ID:         id,
		Collection: generic.CollectionCustomers,
		Created:    at,
		Fields:     map[string]any{"name": p.Name(), "email": p.Email},
		Metadata:   generic.Metadata{"lifecycle_stage": bc.Stage.Name},
	}, true, nil
}

func (f *Factory) transfer(bc *generic.BuildContext, payment, destination string, amount int64, at time.Time, kind, order string) (generic.Entity, error) {
	id, err := bc.NewID("tr_", generic.DefaultIDLength)
	if err != nil {
		return generic.Entity{}, err
	}
	return generic.Entity{
		ID:         id,
		Collection: generic.CollectionTransfers,
		Amount:     amount,
		Status:     StatusPaid,
		Created:    at,
		Category:   kind,
		Refs: map[string]string{
			"destination":    destination,
			"payment_intent": payment,
		},
		Fields: map[string]any{"transfer_group": "ORDER_" + order},
		Metadata: generic.Metadata{
			"order_id":      order,
			"transfer_type": kind,
		},
	}, nil
}

// =============================================================================
// COURIER EXPENSES
// =============================================================================

// EndPeriod authorizes one expense on some courier cards, on a random day of
// the period.
func (f *Factory) EndPeriod(bc *generic.BuildContext) ([]generic.Entity, error) {
	if f.cfg.ExpenseShare <= 0 {
		return nil, nil
	}
	s := bc.Sampler
	var out []generic.Entity
	for i, card := range f.cards {
		if !s.Chance(f.cfg.ExpenseShare) {
			continue
		}
		category, err := s.WeightedChoice(f.expenses)
		if err != nil {
			return nil, err
		}
		expense := f.expense(category)
		amount, err := s.AmountInRange(expense.Min, expense.Max)
		if err != nil {
			return nil, err
		}
		id, err := bc.NewID("iauth_", generic.DefaultIDLength)
		if err != nil {
			return nil, err
		}
		courier := f.couriers[i]
		out = append(out, generic.Entity{
			ID:         id,
			Collection: CollectionAuthorizations,
			Amount:     amount,
			Status:     AuthorizationClosed,
			Created:    bc.NotBefore(bc.Timestamp(), CollectionCards, card),
			Category:   category,
			Refs: map[string]string{
				"card":    card,
				"account": courier,
			},
			Fields: map[string]any{
				"approved":      true,
				"merchant_data": map[string]any{"category": category},
			},
			Metadata: generic.Metadata{
				"courier_account": courier,
				"expense_type":    category,
				"lifecycle_stage": bc.Stage.Name,
			},
		})
	}
	return out, nil
}

func (f *Factory) expense(category string) Expense {
	for _, e := range f.cfg.Expenses {
		if e.Category == category {
			return e
		}
	}
	return f.cfg.Expenses[0]
}
