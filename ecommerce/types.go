/*
Package ecommerce generates datasets for an online fashion retailer.

PURPOSE:
  TechStyle sells clothing, shoes, and accessories. Over 24 months it grows
  from a US-only shop to ten currencies. Each order is a payment intent
  from a new or returning customer; a small share of succeeded payments is
  disputed weeks later.

COLLECTIONS:
  customers  cus_  Shoppers, 70% of orders come from a new one
  payments   pi_   One per order, amount converted from a USD price list
  disputes   dp_   Filed 1-30 days after a succeeded payment

STAGES:
  early:  months 0-8,   ~60 -> 200 orders/month, usd only, 4.5% failures
  growth: months 8-16,  ~500 -> 1800 orders/month, usd/eur/gbp, 2.5% failures
  mature: months 16-24, ~5000 -> 13000 orders/month, 10 currencies, 1.75% failures

SEASONALITY:
  November and December lift volume, Black Friday and Cyber Monday spike it,
  and weekends carry a little more traffic than weekdays.

METRICS:
  Daily and monthly order buckets in USD cents, success rates per stage,
  currency, payment-method and failure-code mixes (see metrics.go).

SEE ALSO:
  - presets.go: DefaultConfig and registration
  - factory.go: Per-order record construction
*/
package ecommerce

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/synth-engine/generic"
)

// Name is the registry name of the vertical.
const Name = "ecommerce"

// Payment statuses.
const (
	StatusSucceeded             = generic.StatusSucceeded
	StatusRequiresPaymentMethod = "requires_payment_method"
)

// Category is a product category with its USD price range in cents.
type Category struct {
	Name      string
	Weight    float64
	MinAmount int64
	MaxAmount int64
}

// Config is the immutable description of a TechStyle run.
type Config struct {
	Start   time.Time
	Periods int
	Stages  []generic.Stage

	// StageCurrencies lists the currencies orders are taken in per stage.
	StageCurrencies map[string][]string

	Categories []Category

	// FXRates are units of currency per 1 USD.
	FXRates map[string]decimal.Decimal

	PaymentMethods      generic.WeightTable
	AcquisitionChannels generic.WeightTable
	CardBrands          []string
	FailureCodes        []string
	DisputeReasons      []string
	DisputeStatuses     []string

	// DisputeDelayDays bounds how long after a payment a dispute is filed.
	DisputeDelayDays [2]int

	Seasonal []generic.SeasonalRule
}

// Validate checks the tables before any generation.
func (c Config) Validate() error {
	if len(c.Categories) == 0 {
		return &generic.ConfigurationError{Field: "ecommerce.categories", Reason: "at least one category is required"}
	}
	for _, cat := range c.Categories {
		if cat.MinAmount > cat.MaxAmount {
			return &generic.ConfigurationError{Field: "ecommerce.categories[" + cat.Name + "]",
				Reason: fmt.Sprintf("min %d > max %d", cat.MinAmount, cat.MaxAmount)}
		}
	}
	if err := c.categoryTable().Validate("ecommerce.categories"); err != nil {
		return err
	}
	if err := c.PaymentMethods.Validate("ecommerce.payment_methods"); err != nil {
		return err
	}
	if err := c.AcquisitionChannels.Validate("ecommerce.acquisition_channels"); err != nil {
		return err
	}
	for stage, currencies := range c.StageCurrencies {
		for _, cur := range currencies {
			if _, ok := c.FXRates[cur]; !ok {
				return &generic.ConfigurationError{Field: "ecommerce.stage_currencies[" + stage + "]",
					Reason: fmt.Sprintf("no FX rate for %q", cur)}
			}
		}
	}
	if len(c.FailureCodes) == 0 || len(c.DisputeReasons) == 0 || len(c.DisputeStatuses) == 0 || len(c.CardBrands) == 0 {
		return &generic.ConfigurationError{Field: "ecommerce", Reason: "failure codes, dispute tables and card brands are required"}
	}
	if c.DisputeDelayDays[0] < 1 || c.DisputeDelayDays[0] > c.DisputeDelayDays[1] {
		return &generic.ConfigurationError{Field: "ecommerce.dispute_delay_days",
			Reason: "must be 1 <= min <= max"}
	}
	return nil
}

func (c Config) categoryTable() generic.WeightTable {
	t := make(generic.WeightTable, len(c.Categories))
	for i, cat := range c.Categories {
		t[i] = generic.CategoryWeight{Label: cat.Name, Weight: cat.Weight}
	}
	return t
}

// Collections declares the collections and their references.
func Collections() []generic.CollectionSpec {
	return []generic.CollectionSpec{
		{Name: generic.CollectionCustomers, Object: "customer", Prefix: "cus_"},
		{Name: generic.CollectionPayments, Object: "payment_intent", Prefix: "pi_",
			SuccessStatus: StatusSucceeded,
			Refs:          map[string]string{"customer": generic.CollectionCustomers}},
		{Name: generic.CollectionDisputes, Object: "dispute", Prefix: "dp_",
			Refs: map[string]string{"payment_intent": generic.CollectionPayments}},
	}
}
