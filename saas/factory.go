package saas

import (
	"fmt"
	"strconv"
	"time"

	"github.com/warp/synth-engine/generic"
)

// weekendUsage is the share of a weekday's API calls made on a weekend day.
const weekendUsage = 0.7

// account is the billing state the factory keeps per subscription. The
// emitted subscription entity never changes; this does.
type account struct {
	subscription string
	customer     string
	size         CompanySize
	plan         Plan
	interval     string
	seats        int
	anchor       time.Time // first paid billing day
	cancelAt     time.Time // zero when the subscription outlives the run
	cycle        int       // next billing cycle to invoice
}

func (a *account) months() int {
	if a.interval == IntervalYear {
		return 12
	}
	return 1
}

func (a *account) due() time.Time {
	return generic.AddMonths(a.anchor, a.cycle*a.months())
}

func (a *account) billable(day time.Time) bool {
	return a.cancelAt.IsZero() || day.Before(a.cancelAt)
}

// Factory creates one signup per Create call and bills renewals at the end
// of each period.
type Factory struct {
	cfg      Config
	sizes    generic.WeightTable
	end      time.Time
	accounts []*account
}

var (
	_ generic.EntityFactory = (*Factory)(nil)
	_ generic.PeriodEndHook = (*Factory)(nil)
)

// NewFactory validates cfg. end is the first instant after the run, used to
// snapshot subscription status.
func NewFactory(cfg Config, end time.Time) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Factory{cfg: cfg, sizes: cfg.sizeTable(), end: end}, nil
}

// Billing returns the number of subscriptions still being billed.
func (f *Factory) Billing() int { return len(f.accounts) }

// =============================================================================
// SIGNUPS
// =============================================================================

// Create emits a customer, its subscription and the signup invoice.
func (f *Factory) Create(bc *generic.BuildContext) ([]generic.Entity, error) {
	s := bc.Sampler

	sizeName, err := s.WeightedChoice(f.sizes)
	if err != nil {
		return nil, err
	}
	size := f.size(sizeName)
	channel, err := s.WeightedChoice(f.cfg.SalesChannels)
	if err != nil {
		return nil, err
	}

	customerID, err := bc.NewID("cus_", 14)
	if err != nil {
		return nil, err
	}
	subID, err := bc.NewID("sub_", generic.DefaultIDLength)
	if err != nil {
		return nil, err
	}

	company, domain := generic.NewCompany(s)
	contact := generic.NewPerson(s)
	created := bc.Timestamp()

	customer := generic.Entity{
		ID:         customerID,
		Collection: generic.CollectionCustomers,
		Created:    created,
		Category:   sizeName,
		Fields: map[string]any{
			"name":  company,
			"email": generic.WorkEmail(contact, domain),
		},
		Metadata: generic.Metadata{
			"company_size":    sizeName,
			"sales_channel":   channel,
			"contact_name":    contact.Name(),
			"lifecycle_stage": bc.Stage.Name,
		},
	}

	planName := generic.Choice(s, size.Plans)
	plan, ok := f.cfg.plan(planName)
	if !ok {
		return nil, &generic.ConfigurationError{Field: "saas.sizes[" + sizeName + "]",
			Reason: fmt.Sprintf("unknown plan %q", planName)}
	}
	interval := IntervalMonth
	if s.Chance(bc.Rate(RateAnnualShare, 0)) {
		interval = IntervalYear
	}
	acct := &account{
		subscription: subID,
		customer:     customerID,
		size:         size,
		plan:         plan,
		interval:     interval,
		seats:        s.IntBetween(size.MinSeats, size.MaxSeats),
	}

	var trialEnd time.Time
	trial := f.cfg.TrialShare > 0 && s.Chance(f.cfg.TrialShare)
	if trial {
		trialEnd = bc.Date.AddDate(0, 0, generic.Choice(s, f.cfg.TrialDays))
		acct.anchor = trialEnd
		if !s.Chance(bc.Rate(RateTrialConversion, 0)) {
			acct.cancelAt = trialEnd
		}
	} else {
		acct.anchor = bc.Date
		acct.cycle = 1
	}
	if acct.cancelAt.IsZero() {
		acct.cancelAt = f.churnDate(bc, acct)
	}

	price := f.cfg.Price(plan, acct.seats, interval)
	sub := generic.Entity{
		ID:         subID,
		Collection: generic.CollectionSubscriptions,
		Amount:     price,
		Status:     f.statusAtEnd(trial, trialEnd, acct.cancelAt),
		Created:    created,
		Category:   plan.Name,
		Refs:       map[string]string{"customer": customerID},
		Fields: map[string]any{
			"plan":                 plan.Name,
			"interval":             interval,
			"quantity":             acct.seats,
			"billing_cycle_anchor": acct.anchor.Unix(),
			"collection_method":    "charge_automatically",
		},
		Metadata: generic.Metadata{
			"initial_plan":    plan.Name,
			"company_name":    company,
			"company_size":    sizeName,
			"sales_channel":   channel,
			"seats":           strconv.Itoa(acct.seats),
			"lifecycle_stage": bc.Stage.Name,
		},
	}
	if trial {
		sub.Fields["trial_start"] = bc.Date.Unix()
		sub.Fields["trial_end"] = trialEnd.Unix()
	}
	if !acct.cancelAt.IsZero() {
		sub.Fields["cancel_at"] = acct.cancelAt.Unix()
	}

	var first generic.Entity
	if trial {
		first, err = f.invoice(bc, acct, created, 0, InvoiceDraft, "subscription_create")
	} else {
		first, err = f.invoice(bc, acct, created, price, f.invoiceStatus(bc), "subscription_create")
	}
	if err != nil {
		return nil, err
	}

	f.accounts = append(f.accounts, acct)
	return []generic.Entity{customer, sub, first}, nil
}

// churnDate draws the paying lifetime. Annual plans only cancel at a renewal.
func (f *Factory) churnDate(bc *generic.BuildContext, a *account) time.Time {
	months := bc.Sampler.Geometric(bc.Rate(generic.RateChurn, 0), f.cfg.MaxLifetimeMonths)
	if months >= f.cfg.MaxLifetimeMonths {
		return time.Time{}
	}
	if a.interval == IntervalYear {
		months = ((months + 11) / 12) * 12
	}
	return generic.AddMonths(a.anchor, months)
}

func (f *Factory) statusAtEnd(trial bool, trialEnd, cancelAt time.Time) string {
	switch {
	case !cancelAt.IsZero() && !cancelAt.After(f.end):
		return StatusCanceled
	case trial && trialEnd.After(f.end):
		return StatusTrialing
	default:
		return StatusActive
	}
}

func (f *Factory) size(name string) CompanySize {
	for _, s := range f.cfg.Sizes {
		if s.Name == name {
			return s
		}
	}
	return f.cfg.Sizes[0]
}

// =============================================================================
// BILLING SWEEP
// =============================================================================

// EndPeriod invoices every billing cycle that falls in the period, in
// subscription order, and forgets subscriptions that have ended.
func (f *Factory) EndPeriod(bc *generic.BuildContext) ([]generic.Entity, error) {
	periodEnd := generic.AddMonths(bc.Date, 1)
	var out []generic.Entity
	kept := f.accounts[:0]

	for _, a := range f.accounts {
		for due := a.due(); due.Before(periodEnd) && a.billable(due); due = a.due() {
			if due.Before(bc.Date) {
				a.cycle++
				continue
			}
			upgraded := f.maybeUpgrade(bc, a)
			inv, err := f.invoice(bc, a, due.Add(bc.Sampler.Jitter()),
				f.cfg.Price(a.plan, a.seats, a.interval), f.invoiceStatus(bc), "subscription_cycle")
			if err != nil {
				return nil, err
			}
			if upgraded {
				inv.Metadata["upgraded"] = "true"
			}
			out = append(out, inv)
			usage, err := f.usage(bc, a, inv)
			if err != nil {
				return nil, err
			}
			out = append(out, usage...)
			a.cycle++
		}
		if a.billable(a.due()) {
			kept = append(kept, a)
		}
	}
	f.accounts = kept
	return out, nil
}

type meter struct {
	dimension string
	quantity  int64
}

// usage meters one billed cycle. API calls drop on weekends; storage is a
// cycle aggregate; extra seats are recorded on some cycles only.
func (f *Factory) usage(bc *generic.BuildContext, a *account, inv generic.Entity) ([]generic.Entity, error) {
	u := a.size.Usage
	if !u.metered() {
		return nil, nil
	}
	s := bc.Sampler
	start, end := a.due(), generic.AddMonths(a.due(), a.months())
	days := generic.DaysBetween(start, end)
	effective := 0.0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			effective += weekendUsage
		} else {
			effective++
		}
	}

	dailyCalls, err := s.AmountInRange(u.DailyAPICalls[0], u.DailyAPICalls[1])
	if err != nil {
		return nil, err
	}
	dailyGB, err := s.AmountInRange(u.DailyStorageGB[0], u.DailyStorageGB[1])
	if err != nil {
		return nil, err
	}
	quantities := []meter{
		{DimensionAPICalls, int64(float64(dailyCalls) * effective * s.FloatBetween(0.8, 1.2))},
		{DimensionStorage, int64(float64(dailyGB) * float64(days) * s.FloatBetween(0.9, 1.1))},
	}
	if u.ExtraSeats[1] > 0 && s.Chance(f.cfg.ExtraSeatShare) {
		quantities = append(quantities, meter{DimensionSeats, int64(s.IntBetween(max(1, u.ExtraSeats[0]), u.ExtraSeats[1]))})
	}

	var out []generic.Entity
	for _, q := range quantities {
		if q.quantity <= 0 {
			continue
		}
		id, err := bc.NewID("mbur_", generic.DefaultIDLength)
		if err != nil {
			return nil, err
		}
		out = append(out, generic.Entity{
			ID:         id,
			Collection: CollectionUsage,
			Status:     UsageRecorded,
			Created:    inv.Created,
			Category:   q.dimension,
			Refs: map[string]string{
				"customer":     a.customer,
				"subscription": a.subscription,
				"invoice":      inv.ID,
			},
			Fields: map[string]any{
				"dimension":    q.dimension,
				"quantity":     q.quantity,
				"period_start": start.Unix(),
				"period_end":   end.Unix(),
			},
			Metadata: generic.Metadata{
				"billing_period":  generic.DayKey(start) + " to " + generic.DayKey(end),
				"company_size":    a.size.Name,
				"lifecycle_stage": bc.Stage.Name,
			},
		})
	}
	return out, nil
}

// maybeUpgrade moves a monthly renewal one plan up. The stage rate is yearly.
func (f *Factory) maybeUpgrade(bc *generic.BuildContext, a *account) bool {
	if a.interval != IntervalMonth || a.cycle == 0 {
		return false
	}
	if !bc.Sampler.Chance(bc.Rate(RateUpgrade, 0) / 12) {
		return false
	}
	next, ok := f.cfg.nextPlan(a.plan.Name)
	if !ok {
		return false
	}
	a.plan = next
	return true
}

func (f *Factory) invoiceStatus(bc *generic.BuildContext) string {
	if bc.Sampler.Chance(f.cfg.PaidShare) {
		return InvoicePaid
	}
	return InvoiceOpen
}

func (f *Factory) invoice(bc *generic.BuildContext, a *account, at time.Time, amount int64, status, reason string) (generic.Entity, error) {
	id, err := bc.NewID("in_", generic.DefaultIDLength)
	if err != nil {
		return generic.Entity{}, err
	}
	start := a.due()
	if reason == "subscription_create" {
		start = generic.StartOfDay(at)
	}
	paid := int64(0)
	if status == InvoicePaid {
		paid = amount
	}
	return generic.Entity{
		ID:         id,
		Collection: generic.CollectionInvoices,
		Amount:     amount,
		Status:     status,
		Created:    at,
		Category:   a.plan.Name,
		Refs: map[string]string{
			"customer":     a.customer,
			"subscription": a.subscription,
		},
		Fields: map[string]any{
			"amount_due":     amount,
			"amount_paid":    paid,
			"billing_reason": reason,
			"period_start":   start.Unix(),
			"period_end":     generic.AddMonths(start, a.months()).Unix(),
			"plan":           a.plan.Name,
			"quantity":       a.seats,
		},
		Metadata: generic.Metadata{
			"plan":            a.plan.Name,
			"interval":        a.interval,
			"lifecycle_stage": bc.Stage.Name,
		},
	}, nil
}
