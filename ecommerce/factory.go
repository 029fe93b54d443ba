package ecommerce

import (
	"fmt"
	"time"

	"github.com/warp/synth-engine/generic"
)

// recentCustomerWindow bounds returning-customer picks to recent signups.
const recentCustomerWindow = 500

// pendingDispute is a succeeded payment that will be disputed on due.
type pendingDispute struct {
	paymentID string
	amount    int64
	currency  string
	reason    string
	due       time.Time
}

// Factory builds one order per Create call. It holds the dispute queue of a
// single run and must not be shared between runs.
type Factory struct {
	cfg        Config
	categories generic.WeightTable
	pending    []pendingDispute
}

var _ generic.EntityFactory = (*Factory)(nil)

// NewFactory validates cfg and returns a factory for one run.
func NewFactory(cfg Config) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Factory{cfg: cfg, categories: cfg.categoryTable()}, nil
}

// Pending returns the number of disputes queued but not yet filed.
func (f *Factory) Pending() int { return len(f.pending) }

// Create emits disputes that are due today, then an order: an optional new
// customer followed by its payment intent.
func (f *Factory) Create(bc *generic.BuildContext) ([]generic.Entity, error) {
	out, err := f.fileDueDisputes(bc)
	if err != nil {
		return nil, err
	}

	customer, fresh, err := f.customer(bc)
	if err != nil {
		return nil, err
	}
	payment, err := f.payment(bc, customer)
	if err != nil {
		return nil, err
	}
	if fresh {
		// A signup never postdates its first order.
		if payment.Created.Before(customer.Created) {
			customer.Created, payment.Created = payment.Created, customer.Created
		}
		out = append(out, customer)
	}
	out = append(out, payment)

	if payment.Status == StatusSucceeded && bc.Sampler.Chance(bc.Rate(generic.RateDispute, 0)) {
		delay := bc.Sampler.IntBetween(f.cfg.DisputeDelayDays[0], f.cfg.DisputeDelayDays[1])
		f.pending = append(f.pending, pendingDispute{
			paymentID: payment.ID,
			amount:    payment.Amount,
			currency:  payment.Currency,
			reason:    generic.Choice(bc.Sampler, f.cfg.DisputeReasons),
			due:       bc.Date.AddDate(0, 0, delay),
		})
	}
	return out, nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (f *Factory) customer(bc *generic.BuildContext) (generic.Entity, bool, error) {
	newRate := bc.Rate(generic.RateNewCustomer, 0.7)
	if bc.Related.Len(generic.CollectionCustomers) > 0 && !bc.Sampler.Chance(newRate) {
		c, err := bc.PickRecent(generic.CollectionCustomers, "returning customer", recentCustomerWindow)
		return c, false, err
	}

	id, err := bc.NewID("cus_", 14)
	if err != nil {
		return generic.Entity{}, false, err
	}
	channel, err := bc.Sampler.WeightedChoice(f.cfg.AcquisitionChannels)
	if err != nil {
		return generic.Entity{}, false, err
	}
	p := generic.NewPerson(bc.Sampler)
	return generic.Entity{
		ID:         id,
		Collection: generic.CollectionCustomers,
		Created:    bc.Timestamp(),
		Category:   channel,
		Fields: map[string]any{
			"name":  p.Name(),
			"email": p.Email,
		},
		Metadata: generic.Metadata{
			"acquisition_channel": channel,
			"lifecycle_stage":     bc.Stage.Name,
		},
	}, true, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (f *Factory) payment(bc *generic.BuildContext, customer generic.Entity) (generic.Entity, error) {
	category, err := bc.Sampler.WeightedChoice(f.categories)
	if err != nil {
		return generic.Entity{}, err
	}
	cat := f.category(category)
	usd, err := bc.Sampler.AmountInRange(cat.MinAmount, cat.MaxAmount)
	if err != nil {
		return generic.Entity{}, err
	}

	currency := "usd"
	if list := f.cfg.StageCurrencies[bc.Stage.Name]; len(list) > 0 {
		currency = generic.Choice(bc.Sampler, list)
	}
	amount := generic.Convert(usd, "usd", currency, f.cfg.FXRates[currency])

	method, err := bc.Sampler.WeightedChoice(f.cfg.PaymentMethods)
	if err != nil {
		return generic.Entity{}, err
	}

	id, err := bc.NewID("pi_", generic.DefaultIDLength)
	if err != nil {
		return generic.Entity{}, err
	}
	chargeID, err := bc.NewID("ch_", generic.DefaultIDLength)
	if err != nil {
		return generic.Entity{}, err
	}
	methodID, err := bc.NewID("pm_", generic.DefaultIDLength)
	if err != nil {
		return generic.Entity{}, err
	}

	e := generic.Entity{
		ID:         id,
		Collection: generic.CollectionPayments,
		Amount:     amount,
		Currency:   currency,
		Status:     StatusSucceeded,
		Created:    bc.Timestamp(),
		Category:   category,
		Refs:       map[string]string{"customer": customer.ID},
		Fields: map[string]any{
			"latest_charge":        chargeID,
			"payment_method":       methodID,
			"payment_method_types": []string{method},
			"amount_usd":           usd,
		},
		Metadata: generic.Metadata{
			"order_id":         fmt.Sprintf("ORD-%s", generic.Digits(bc.Sampler, 6)),
			"product_category": category,
			"lifecycle_stage":  bc.Stage.Name,
			"customer_email":   emailOf(customer),
		},
	}
	if method == "card" {
		e.Fields["card"] = map[string]any{
			"brand": generic.Choice(bc.Sampler, f.cfg.CardBrands),
			"last4": generic.Digits(bc.Sampler, 4),
		}
	}

	if bc.Sampler.Chance(bc.Rate(generic.RateFailure, 0)) {
		e.Status = StatusRequiresPaymentMethod
		e.Fields["last_payment_error"] = map[string]any{
			"code": generic.Choice(bc.Sampler, f.cfg.FailureCodes),
		}
	}
	return e, nil
}

func (f *Factory) category(name string) Category {
	for _, c := range f.cfg.Categories {
		if c.Name == name {
			return c
		}
	}
	return f.cfg.Categories[0]
}

func emailOf(customer generic.Entity) string {
	if v, ok := customer.Field("email"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// =============================================================================
// DISPUTES
// =============================================================================

// fileDueDisputes pops every queued dispute whose due day has arrived and
// stamps it inside the current day. Disputes still pending when the run ends
// are never filed.
func (f *Factory) fileDueDisputes(bc *generic.BuildContext) ([]generic.Entity, error) {
	var out []generic.Entity
	kept := f.pending[:0]
	for _, p := range f.pending {
		if p.due.After(bc.Date) {
			kept = append(kept, p)
			continue
		}
		id, err := bc.NewID("dp_", generic.DefaultIDLength)
		if err != nil {
			return nil, err
		}
		out = append(out, generic.Entity{
			ID:         id,
			Collection: generic.CollectionDisputes,
			Amount:     p.amount,
			Currency:   p.currency,
			Status:     generic.Choice(bc.Sampler, f.cfg.DisputeStatuses),
			Created:    bc.Timestamp(),
			Category:   p.reason,
			Refs:       map[string]string{"payment_intent": p.paymentID},
			Fields:     map[string]any{"reason": p.reason},
			Metadata:   generic.Metadata{"lifecycle_stage": bc.Stage.Name},
		})
	}
	f.pending = kept
	return out, nil
}
