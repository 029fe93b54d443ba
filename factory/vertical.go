/*
Package factory provides JSON/YAML to Go vertical conversion.

PURPOSE:
  Converts a declarative vertical spec into a generic.Config and an
  EntityFactory. A new business type can be described without code changes:
  one primary collection, category weights with amount ranges, a status
  distribution (global or per stage), an optional platform fee and an
  optional customer pool.

JSON SCHEMA:
  {
    "name": "fitstream",
    "description": "Fitness streaming subscriptions",
    "start": "2023-01-01",
    "periods": 24,
    "currency": "usd",
    "collection": {"name": "payments", "object": "payment_intent", "prefix": "pi_"},
    "success_status": "succeeded",
    "statuses": {"succeeded": 0.95, "requires_payment_method": 0.05},
    "stages": [
      {"name": "early", "start_month": 0, "end_month": 8, "base_volume": 250,
       "growth": 0.05, "rates": {"new_customer_rate": 0.6},
       "statuses": {"succeeded": 0.94, "requires_payment_method": 0.06}}
    ],
    "categories": [
      {"label": "basic", "weight": 0.6, "min_amount": 999, "max_amount": 999}
    ],
    "fee": {"rate": 0.2, "fixed": 0},
    "customers": {"new_customer_rate": 0.3, "recent_window": 500},
    "seasonal": [
      {"name": "new_year", "months": [1], "multiplier": 2.5},
      {"name": "weekend", "weekdays": ["saturday", "sunday"], "multiplier": 1.2},
      {"name": "gt", "holiday": "giving_tuesday", "window": 1, "multiplier": 2}
    ],
    "metadata": {"platform": "fitstream"}
  }

The same document is accepted as YAML with identical keys.

USAGE:
  spec, err := factory.ParseFile("verticals/fitstream.yaml")
  v, err := factory.NewSpecVertical(spec)
  cfg, f, err := v.Build(generic.BuildOptions{Seed: 42})
  ds, err := generic.Generate(ctx, cfg, f)

SEE ALSO:
  - presets.go: Embedded specs registered on init
  - generic/registry.go: Vertical interface
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/synth-engine/generic"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// SPEC SCHEMA TYPES
// =============================================================================

// VerticalSpec is the JSON/YAML representation of a custom vertical.
type VerticalSpec struct {
	Name          string             `json:"name" yaml:"name"`
	Description   string             `json:"description,omitempty" yaml:"description,omitempty"`
	Start         string             `json:"start,omitempty" yaml:"start,omitempty"` // YYYY-MM-DD
	Periods       int                `json:"periods,omitempty" yaml:"periods,omitempty"`
	Currency      string             `json:"currency,omitempty" yaml:"currency,omitempty"`
	Collection    CollectionJSON     `json:"collection" yaml:"collection"`
	SuccessStatus string             `json:"success_status,omitempty" yaml:"success_status,omitempty"`
	Statuses      map[string]float64 `json:"statuses,omitempty" yaml:"statuses,omitempty"`
	Stages        []StageJSON        `json:"stages" yaml:"stages"`
	Categories    []CategoryJSON     `json:"categories" yaml:"categories"`
	Fee           *FeeJSON           `json:"fee,omitempty" yaml:"fee,omitempty"`
	Customers     *CustomersJSON     `json:"customers,omitempty" yaml:"customers,omitempty"`
	Seasonal      []SeasonalJSON     `json:"seasonal,omitempty" yaml:"seasonal,omitempty"`
	Metadata      map[string]string  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// CollectionJSON names the primary collection.
type CollectionJSON struct {
	Name   string `json:"name" yaml:"name"`
	Object string `json:"object" yaml:"object"`
	Prefix string `json:"prefix" yaml:"prefix"`
}

// StageJSON is one lifecycle stage.
type StageJSON struct {
	Name       string             `json:"name" yaml:"name"`
	StartMonth int                `json:"start_month" yaml:"start_month"`
	EndMonth   int                `json:"end_month" yaml:"end_month"`
	BaseVolume int                `json:"base_volume" yaml:"base_volume"`
	Growth     float64            `json:"growth,omitempty" yaml:"growth,omitempty"`
	Rates      map[string]float64 `json:"rates,omitempty" yaml:"rates,omitempty"`
	Statuses   map[string]float64 `json:"statuses,omitempty" yaml:"statuses,omitempty"` // overrides the global distribution
}

// CategoryJSON is a weighted category with its amount range in minor units.
type CategoryJSON struct {
	Label     string  `json:"label" yaml:"label"`
	Weight    float64 `json:"weight" yaml:"weight"`
	MinAmount int64   `json:"min_amount" yaml:"min_amount"`
	MaxAmount int64   `json:"max_amount" yaml:"max_amount"`
}

// FeeJSON is the platform fee taken from each record.
type FeeJSON struct {
	Rate  float64 `json:"rate" yaml:"rate"`
	Fixed int64   `json:"fixed,omitempty" yaml:"fixed,omitempty"`
}

// CustomersJSON enables a customer pool referenced by every record.
type CustomersJSON struct {
	NewCustomerRate float64 `json:"new_customer_rate" yaml:"new_customer_rate"`
	RecentWindow    int     `json:"recent_window,omitempty" yaml:"recent_window,omitempty"`
}

// SeasonalJSON is one seasonal rule. Exactly one trigger must be set.
type SeasonalJSON struct {
	Name       string   `json:"name" yaml:"name"`
	Multiplier float64  `json:"multiplier" yaml:"multiplier"`
	Months     []int    `json:"months,omitempty" yaml:"months,omitempty"`
	Weekdays   []string `json:"weekdays,omitempty" yaml:"weekdays,omitempty"`
	Date       string   `json:"date,omitempty" yaml:"date,omitempty"` // MM-DD, every year
	From       string   `json:"from,omitempty" yaml:"from,omitempty"` // YYYY-MM-DD, with To
	To         string   `json:"to,omitempty" yaml:"to,omitempty"`
	Holiday    string   `json:"holiday,omitempty" yaml:"holiday,omitempty"`
	Window     int      `json:"window,omitempty" yaml:"window,omitempty"` // days either side of Holiday
}

// =============================================================================
// PARSING
// =============================================================================

// ParseJSON parses a JSON vertical spec.
func ParseJSON(data []byte) (VerticalSpec, error) {
	var spec VerticalSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return VerticalSpec{}, &generic.ConfigurationError{Field: "spec", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return spec, nil
}

// ParseYAML parses a YAML vertical spec.
func ParseYAML(data []byte) (VerticalSpec, error) {
	var spec VerticalSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return VerticalSpec{}, &generic.ConfigurationError{Field: "spec", Reason: fmt.Sprintf("invalid YAML: %v", err)}
	}
	return spec, nil
}

// ParseFile reads a spec, choosing the format by extension (.json, .yaml, .yml).
func ParseFile(path string) (VerticalSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return VerticalSpec{}, fmt.Errorf("failed to read spec %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return VerticalSpec{}, &generic.ConfigurationError{Field: "spec", Reason: "unsupported extension " + filepath.Ext(path)}
	}
}

// =============================================================================
// SPEC VERTICAL
// =============================================================================

// DefaultStart is used when a spec has no start date.
var DefaultStart = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// SpecVertical is a generic.Vertical described by a VerticalSpec.
type SpecVertical struct {
	spec       VerticalSpec
	start      time.Time
	stages     []generic.Stage
	seasonal   []generic.SeasonalRule
	categories generic.WeightTable
	statuses   map[string]generic.Distribution // by stage; "" is the global one
	fee        decimal.Decimal
}

var _ generic.Vertical = (*SpecVertical)(nil)

// NewSpecVertical validates spec and compiles it.
func NewSpecVertical(spec VerticalSpec) (*SpecVertical, error) {
	if spec.Name == "" {
		return nil, &generic.ConfigurationError{Field: "name", Reason: "is required"}
	}
	if err := generic.ValidateName(spec.Name); err != nil {
		return nil, err
	}
	if spec.Periods == 0 {
		spec.Periods = 24
	}
	if spec.Currency == "" {
		spec.Currency = "usd"
	}
	c := spec.Collection
	if c.Name == "" || c.Object == "" || !strings.HasSuffix(c.Prefix, "_") {
		return nil, &generic.ConfigurationError{Field: "collection",
			Reason: "name, object and a prefix ending in '_' are required"}
	}
	if c.Name == generic.CollectionCustomers && spec.Customers != nil {
		return nil, &generic.ConfigurationError{Field: "collection.name", Reason: "customers is reserved for the customer pool"}
	}

	v := &SpecVertical{spec: spec, statuses: make(map[string]generic.Distribution)}

	v.start = DefaultStart
	if spec.Start != "" {
		start, err := time.Parse(time.DateOnly, spec.Start)
		if err != nil {
			return nil, &generic.ConfigurationError{Field: "start", Reason: "want YYYY-MM-DD"}
		}
		v.start = start
	}

	if len(spec.Statuses) > 0 {
		v.statuses[""] = generic.DistributionFromMap(spec.Statuses)
	}
	for _, sj := range spec.Stages {
		v.stages = append(v.stages, generic.Stage{
			Name:       sj.Name,
			StartMonth: sj.StartMonth,
			EndMonth:   sj.EndMonth,
			BaseVolume: sj.BaseVolume,
			Growth:     sj.Growth,
			Rates:      sj.Rates,
		})
		if len(sj.Statuses) > 0 {
			v.statuses[sj.Name] = generic.DistributionFromMap(sj.Statuses)
		} else if _, ok := v.statuses[""]; !ok {
			return nil, &generic.ConfigurationError{Field: "stages[" + sj.Name + "].statuses",
				Reason: "no stage or global status distribution"}
		}
	}
	for name, d := range v.statuses {
		if err := d.Validate("statuses" + stageSuffix(name)); err != nil {
			return nil, err
		}
		if spec.SuccessStatus != "" && !hasStatus(d, spec.SuccessStatus) {
			return nil, &generic.ConfigurationError{Field: "success_status",
				Reason: fmt.Sprintf("%q is not in statuses%s", spec.SuccessStatus, stageSuffix(name))}
		}
	}

	for _, cj := range spec.Categories {
		if cj.MinAmount < 0 || cj.MinAmount > cj.MaxAmount {
			return nil, &generic.InvalidDistributionError{Table: "categories[" + cj.Label + "]",
				Reason: fmt.Sprintf("amount range %d..%d", cj.MinAmount, cj.MaxAmount)}
		}
		v.categories = append(v.categories, generic.CategoryWeight{Label: cj.Label, Weight: cj.Weight})
	}
	if err := v.categories.Validate("categories"); err != nil {
		return nil, err
	}

	if spec.Fee != nil {
		if spec.Fee.Rate < 0 || spec.Fee.Rate >= 1 || spec.Fee.Fixed < 0 {
			return nil, &generic.ConfigurationError{Field: "fee", Reason: "rate must be in [0, 1) and fixed non-negative"}
		}
		v.fee = decimal.NewFromFloat(spec.Fee.Rate)
	}
	if cj := spec.Customers; cj != nil && (cj.NewCustomerRate < 0 || cj.NewCustomerRate > 1) {
		return nil, &generic.ConfigurationError{Field: "customers.new_customer_rate", Reason: "must be in [0, 1]"}
	}

	for i, sj := range spec.Seasonal {
		rule, err := parseSeasonal(i, sj)
		if err != nil {
			return nil, err
		}
		v.seasonal = append(v.seasonal, rule)
	}

	// Stage coverage and the seasonal multipliers are checked by the engine.
	if err := v.config(generic.BuildOptions{}).Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

func stageSuffix(stage string) string {
	if stage == "" {
		return ""
	}
	return "[" + stage + "]"
}

func hasStatus(d generic.Distribution, status string) bool {
	for _, o := range d {
		if o.Status == status {
			return true
		}
	}
	return false
}

// Spec returns the spec the vertical was compiled from.
func (v *SpecVertical) Spec() VerticalSpec { return v.spec }

func (v *SpecVertical) Name() string { return v.spec.Name }

func (v *SpecVertical) Description() string {
	if v.spec.Description == "" {
		return "Custom vertical " + v.spec.Name
	}
	return v.spec.Description
}

// Collections declares the optional customer pool and the primary collection.
func (v *SpecVertical) Collections() []generic.CollectionSpec {
	var out []generic.CollectionSpec
	primary := generic.CollectionSpec{
		Name:          v.spec.Collection.Name,
		Object:        v.spec.Collection.Object,
		Prefix:        v.spec.Collection.Prefix,
		SuccessStatus: v.spec.SuccessStatus,
	}
	if v.spec.Customers != nil {
		out = append(out, generic.CollectionSpec{Name: generic.CollectionCustomers, Object: "customer", Prefix: "cus_"})
		primary.Refs = map[string]string{"customer": generic.CollectionCustomers}
	}
	return append(out, primary)
}

func (v *SpecVertical) config(opts generic.BuildOptions) generic.Config {
	return generic.ApplyOptions(generic.Config{
		Vertical:    v.spec.Name,
		Start:       v.start,
		Periods:     v.spec.Periods,
		Currency:    v.spec.Currency,
		Stages:      v.stages,
		Seasonal:    v.seasonal,
		Collections: v.Collections(),
	}, opts)
}

// Build returns the engine config and a fresh factory.
func (v *SpecVertical) Build(opts generic.BuildOptions) (generic.Config, generic.EntityFactory, error) {
	return v.config(opts), &SpecFactory{v: v}, nil
}

// =============================================================================
// SPEC FACTORY
// =============================================================================

// SpecFactory builds one primary record per Create, preceded by a new
// customer when the pool is enabled and the draw says so.
type SpecFactory struct {
	v *SpecVertical
}

var _ generic.EntityFactory = (*SpecFactory)(nil)

func (f *SpecFactory) Create(bc *generic.BuildContext) ([]generic.Entity, error) {
	s := bc.Sampler
	spec := f.v.spec
	at := bc.Timestamp()

	var out []generic.Entity
	var customerID string
	if spec.Customers != nil {
		c, fresh, err := f.customer(bc, at)
		if err != nil {
			return nil, err
		}
		if fresh {
			out = append(out, c)
		}
		customerID = c.ID
		at = generic.ClampToDay(bc.NotBefore(at, generic.CollectionCustomers, c.ID), bc.Date)
	}

	label, err := s.WeightedChoice(f.v.categories)
	if err != nil {
		return nil, err
	}
	cat := f.category(label)
	amount, err := s.AmountInRange(cat.MinAmount, cat.MaxAmount)
	if err != nil {
		return nil, err
	}
	dist, ok := f.v.statuses[bc.Stage.Name]
	if !ok {
		dist = f.v.statuses[""]
	}
	status, err := s.StatusFrom(dist)
	if err != nil {
		return nil, err
	}

	id, err := bc.NewID(spec.Collection.Prefix, generic.DefaultIDLength)
	if err != nil {
		return nil, err
	}
	e := generic.Entity{
		ID:         id,
		Collection: spec.Collection.Name,
		Amount:     amount,
		Status:     status,
		Created:    at,
		Category:   label,
		Fields:     map[string]any{},
		Metadata:   generic.Metadata{"category": label, "lifecycle_stage": bc.Stage.Name},
	}
	for k, val := range spec.Metadata {
		e.Metadata[k] = val
	}
	if customerID != "" {
		e.Refs = map[string]string{"customer": customerID}
	}
	if spec.Fee != nil {
		e.Fields["application_fee_amount"] = generic.ProcessingFee(amount, f.v.fee, spec.Fee.Fixed)
	}
	return append(out, e), nil
}

func (f *SpecFactory) category(label string) CategoryJSON {
	for _, c := range f.v.spec.Categories {
		if c.Label == label {
			return c
		}
	}
	return f.v.spec.Categories[0]
}

func (f *SpecFactory) customer(bc *generic.BuildContext, at time.Time) (generic.Entity, bool, error) {
	cj := f.v.spec.Customers
	rate := bc.Rate(generic.RateNewCustomer, cj.NewCustomerRate)
	if bc.Related.Len(generic.CollectionCustomers) > 0 && !bc.Sampler.Chance(rate) {
		c, err := bc.PickRecent(generic.CollectionCustomers, f.v.spec.Collection.Name, cj.RecentWindow)
		if err != nil {
			return generic.Entity{}, false, err
		}
		return c, false, nil
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

// =============================================================================
// PARSING HELPERS
// =============================================================================

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

func parseSeasonal(i int, sj SeasonalJSON) (generic.SeasonalRule, error) {
	field := fmt.Sprintf("seasonal[%d]", i)
	rule := generic.SeasonalRule{Name: sj.Name, Multiplier: sj.Multiplier}
	set := 0

	if len(sj.Months) > 0 {
		set++
		months := make([]time.Month, len(sj.Months))
		for j, m := range sj.Months {
			if m < 1 || m > 12 {
				return rule, &generic.ConfigurationError{Field: field + ".months", Reason: fmt.Sprintf("month %d out of range", m)}
			}
			months[j] = time.Month(m)
		}
		rule.Trigger = generic.InMonths(months...)
	}
	if len(sj.Weekdays) > 0 {
		set++
		days := make([]time.Weekday, len(sj.Weekdays))
		for j, name := range sj.Weekdays {
			d, ok := weekdays[strings.ToLower(name)]
			if !ok {
				return rule, &generic.ConfigurationError{Field: field + ".weekdays", Reason: "unknown weekday " + name}
			}
			days[j] = d
		}
		rule.Trigger = generic.OnWeekdays(days...)
	}
	if sj.Date != "" {
		set++
		d, err := time.Parse("01-02", sj.Date)
		if err != nil {
			return rule, &generic.ConfigurationError{Field: field + ".date", Reason: "want MM-DD"}
		}
		rule.Trigger = generic.OnDate(d.Month(), d.Day())
	}
	if sj.From != "" || sj.To != "" {
		set++
		from, err1 := time.Parse(time.DateOnly, sj.From)
		to, err2 := time.Parse(time.DateOnly, sj.To)
		if err1 != nil || err2 != nil || to.Before(from) {
			return rule, &generic.ConfigurationError{Field: field + ".from", Reason: "want from <= to, both YYYY-MM-DD"}
		}
		rule.Trigger = generic.Between(from, to)
	}
	if sj.Holiday != "" {
		set++
		if _, ok := generic.HolidayDate(sj.Holiday, 2024); !ok {
			return rule, &generic.ConfigurationError{Field: field + ".holiday", Reason: "unknown holiday " + sj.Holiday}
		}
		rule.Trigger = generic.NearHoliday(sj.Holiday, sj.Window)
	}

	if set != 1 {
		return rule, &generic.ConfigurationError{Field: field, Reason: "exactly one trigger is required"}
	}
	return rule, nil
}
