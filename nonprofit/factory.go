package nonprofit

import (
	"fmt"
	"strconv"
	"time"

	"github.com/warp/synth-engine/generic"
)

const (
	launchWindow  = 6 * time.Hour
	sponsorShare  = 0.20
	monthlyRound  = 500
	donorIDLength = 14
)

type donor struct {
	id       string
	name     string
	kind     string
	major    bool
	capacity Capacity
	employer string
	created  time.Time
	giving   bool // has a live recurring plan
}

type campaign struct {
	id    string
	kind  CampaignType
	title string
	start time.Time
	end   time.Time // first day the campaign no longer accepts gifts
}

func (c *campaign) open(day time.Time) bool {
	return !day.Before(c.start) && day.Before(c.end)
}

// pledge is a recurring gift plan being charged.
type pledge struct {
	subscription string
	donor        *donor
	campaign     *campaign
	amount       int64
	months       int
	frequency    string
	coversFee    bool
	anchor       time.Time
	cancelAt     time.Time // zero when the plan outlives the run
	cycle        int
}

func (p *pledge) due() time.Time {
	return generic.AddMonths(p.anchor, p.cycle*p.months)
}

func (p *pledge) live(day time.Time) bool {
	return p.cancelAt.IsZero() || day.Before(p.cancelAt)
}

// Factory launches campaigns in BeginPeriod, builds one gift per Create and
// charges recurring plans in EndPeriod.
type Factory struct {
	cfg        Config
	donorTypes generic.WeightTable
	capacities generic.WeightTable
	freqs      generic.WeightTable
	end        time.Time

	general   *campaign
	campaigns []*campaign
	donors    []*donor
	pledges   []*pledge
}

var (
	_ generic.EntityFactory = (*Factory)(nil)
	_ generic.PeriodHook    = (*Factory)(nil)
	_ generic.PeriodEndHook = (*Factory)(nil)
)

// NewFactory validates cfg. end is the first instant after the run, used to
// snapshot campaign and plan status.
func NewFactory(cfg Config, end time.Time) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Factory{
		cfg:        cfg,
		donorTypes: cfg.donorTypeTable(),
		capacities: cfg.capacityTable(),
		freqs:      cfg.frequencyTable(),
		end:        end,
	}, nil
}

// Pledges returns the number of recurring plans still being charged.
func (f *Factory) Pledges() int { return len(f.pledges) }

// =============================================================================
// CAMPAIGNS
// =============================================================================

// BeginPeriod opens the general fund on the first period and launches the
// stage's campaigns on random days of the period, plus a Giving Tuesday
// campaign when the period contains it.
func (f *Factory) BeginPeriod(bc *generic.BuildContext) ([]generic.Entity, error) {
	s := bc.Sampler
	next := generic.AddMonths(bc.Date, 1)
	days := generic.DaysBetween(bc.Date, next)

	var out []generic.Entity
	if f.general == nil {
		c := &campaign{
			kind:  CampaignType{Name: GeneralFund, Title: "General Fund", DonationSpike: 1},
			title: "General Fund",
			start: bc.Date,
		}
		e, err := f.launch(bc, c, 0)
		if err != nil {
			return nil, err
		}
		f.general = c
		out = append(out, e)
	}

	for i := 0; i < f.cfg.CampaignsPerPeriod[bc.Stage.Name]; i++ {
		kind := generic.Choice(s, f.cfg.CampaignTypes)
		start := bc.Date.AddDate(0, 0, s.IntN(days))
		c := &campaign{
			kind:  kind,
			title: fmt.Sprintf("%s %s", kind.Title, start.Format("Jan 2006")),
			start: start,
			end:   start.AddDate(0, 0, s.IntBetween(kind.MinDays, kind.MaxDays)),
		}
		e, err := f.launch(bc, c, f.goal(bc, kind))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	if gt := generic.GivingTuesday(bc.Date.Year()); !gt.Before(bc.Date) && gt.Before(next) {
		kind := CampaignType{Name: "community", Title: "Giving Tuesday", DonationSpike: 2.0, GoalMultiplier: 2.0}
		c := &campaign{kind: kind, title: fmt.Sprintf("Giving Tuesday %d", gt.Year()), start: gt, end: gt.AddDate(0, 0, 1)}
		e, err := f.launch(bc, c, f.goal(bc, kind))
		if err != nil {
			return nil, err
		}
		e.Metadata["giving_tuesday"] = "true"
		out = append(out, e)
	}
	return out, nil
}

// goal scales the stage's monthly goal by the campaign type and some noise.
func (f *Factory) goal(bc *generic.BuildContext, kind CampaignType) int64 {
	return generic.Scale(f.cfg.MonthlyGoal[bc.Stage.Name], kind.GoalMultiplier*(1+bc.Sampler.FloatBetween(-0.3, 0.5)))
}

func (f *Factory) launch(bc *generic.BuildContext, c *campaign, goal int64) (generic.Entity, error) {
	s := bc.Sampler
	id, err := bc.NewID("camp_", 16)
	if err != nil {
		return generic.Entity{}, err
	}
	c.id = id
	f.campaigns = append(f.campaigns, c)

	status := StatusActive
	if !c.end.IsZero() && !c.end.After(f.end) {
		status = "completed"
	}
	e := generic.Entity{
		ID:         id,
		Collection: CollectionCampaigns,
		Amount:     goal,
		Status:     status,
		Created:    c.start.Add(time.Duration(s.IntN(int(launchWindow/time.Second))) * time.Second),
		Category:   c.kind.Name,
		Fields: map[string]any{
			"name":       c.title,
			"goal":       goal,
			"start_date": c.start.Unix(),
		},
		Metadata: generic.Metadata{
			"campaign_type":   c.kind.Name,
			"lifecycle_stage": bc.Stage.Name,
		},
	}
	if !c.end.IsZero() {
		e.Fields["end_date"] = c.end.Unix()
		e.Fields["duration_days"] = generic.DaysBetween(c.start, c.end)
	}
	if c.kind.Name != GeneralFund && s.Chance(sponsorShare) {
		sponsor, _ := generic.NewCompany(s)
		e.Metadata["matching_sponsor"] = sponsor
		e.Metadata["match_ratio"] = strconv.FormatFloat(generic.Choice(s, []float64{0.5, 1, 2}), 'f', 1, 64)
	}
	return e, nil
}

// campaignFor picks among the campaigns open on day and the general fund.
func (f *Factory) campaignFor(bc *generic.BuildContext) *campaign {
	open := []*campaign{f.general}
	for _, c := range f.campaigns {
		if c != f.general && c.open(bc.Date) {
			open = append(open, c)
		}
	}
	return generic.Choice(bc.Sampler, open)
}

// =============================================================================
// GIFTS
// =============================================================================

// Create builds one gift: an optional new donor, the payment, an optional
// recurring plan started by it and an optional employer match.
func (f *Factory) Create(bc *generic.BuildContext) ([]generic.Entity, error) {
	if f.general == nil {
		return nil, &generic.PrerequisiteMissingError{Collection: CollectionCampaigns, Needed: "donation campaign"}
	}
	s := bc.Sampler
	c := f.campaignFor(bc)
	at := bc.NotBefore(bc.Timestamp(), CollectionCampaigns, c.id)

	var out []generic.Entity
	d, fresh, err := f.donor(bc, at)
	if err != nil {
		return nil, err
	}
	if fresh != nil {
		out = append(out, *fresh)
	}

	recurring := !d.giving && s.Chance(bc.Rate(generic.RateRecurring, 0))
	var gift int64
	var plan *pledge
	if recurring {
		if plan, err = f.newPledge(bc, d, c, at); err != nil {
			return nil, err
		}
		gift = plan.amount
	} else {
		if gift, err = f.oneTime(s, d); err != nil {
			return nil, err
		}
		gift = generic.Scale(gift, c.kind.DonationSpike)
	}
	coversFee := s.Chance(f.cfg.FeeCoverShare)
	if plan != nil {
		plan.coversFee = coversFee
	}

	payment, err := f.payment(bc, d, c.id, gift, coversFee, at)
	if err != nil {
		return nil, err
	}
	payment.Metadata["campaign_type"] = c.kind.Name
	if s.Chance(f.cfg.DedicateShare) {
		honoree := generic.NewPerson(s)
		payment.Metadata["dedication"] = generic.Choice(s, []string{"In honor of ", "In memory of "}) + honoree.Name()
	}

	if plan != nil && payment.Status == StatusSucceeded {
		sub, err := f.subscribe(bc, plan, at)
		if err != nil {
			return nil, err
		}
		payment.Refs["subscription"] = plan.subscription
		payment.Metadata["donation_type"] = "recurring"
		payment.Metadata["frequency"] = plan.frequency
		out = append(out, sub)
		if plan.live(plan.due()) {
			f.pledges = append(f.pledges, plan)
			d.giving = true
		}
	}
	out = append(out, payment)
	if r, ok, err := f.receipt(bc, d, payment, c); err != nil {
		return nil, err
	} else if ok {
		out = append(out, r)
	}

	if match, ok, err := f.match(bc, d, payment, gift); err != nil {
		return nil, err
	} else if ok {
		out = append(out, match)
	}
	return out, nil
}

// donor returns a returning donor or a new one. The new donor's entity is
// returned separately since it must be emitted.
func (f *Factory) donor(bc *generic.BuildContext, at time.Time) (*donor, *generic.Entity, error) {
	s := bc.Sampler
	if len(f.donors) > 0 && s.Chance(bc.Rate(RateRetention, 0.5)) {
		d := generic.Choice(s, f.donors)
		if !d.created.After(at) {
			return d, nil, nil
		}
	}

	kind, err := s.WeightedChoice(f.donorTypes)
	if err != nil {
		return nil, nil, err
	}
	capName, err := s.WeightedChoice(f.capacities)
	if err != nil {
		return nil, nil, err
	}
	channel, err := s.WeightedChoice(f.cfg.Channels)
	if err != nil {
		return nil, nil, err
	}
	id, err := bc.NewID("cus_", donorIDLength)
	if err != nil {
		return nil, nil, err
	}
	d := &donor{id: id, kind: kind, capacity: f.capacity(capName), created: at}
	for _, dt := range f.cfg.DonorTypes {
		if dt.Name == kind {
			d.major = s.Chance(dt.MajorShare)
		}
	}
	if kind != "individual" {
		d.capacity = f.capacity("high")
	}

	var name, email string
	switch kind {
	case "individual":
		p := generic.NewPerson(s)
		name, email = p.Name(), p.Email
		if s.Chance(f.cfg.EmployerShare) {
			d.employer, _ = generic.NewCompany(s)
		}
	default:
		company, domain := generic.NewCompany(s)
		contact := generic.NewPerson(s)
		name, email = company, generic.WorkEmail(contact, domain)
		if kind == "foundation" {
			name = company + " Foundation"
		}
	}
	d.name = name
	f.donors = append(f.donors, d)

	e := generic.Entity{
		ID:         id,
		Collection: generic.CollectionCustomers,
		Created:    at,
		Category:   kind,
		Fields:     map[string]any{"name": name, "email": email},
		Metadata: generic.Metadata{
			"donor_type":          kind,
			"giving_capacity":     d.capacity.Name,
			"major_donor":         strconv.FormatBool(d.major),
			"acquisition_channel": channel,
			"lifecycle_stage":     bc.Stage.Name,
		},
	}
	if d.employer != "" {
		e.Metadata["employer"] = d.employer
	}
	return d, &e, nil
}

func (f *Factory) capacity(name string) Capacity {
	for _, c := range f.cfg.Capacities {
		if c.Name == name {
			return c
		}
	}
	return f.cfg.Capacities[0]
}

// oneTime draws a one-time gift before any campaign spike.
func (f *Factory) oneTime(s *generic.Sampler, d *donor) (int64, error) {
	switch {
	case d.major:
		return s.AmountInRange(f.cfg.MajorRange[0], f.cfg.MajorRange[1])
	case d.capacity.Max == 0:
		return generic.Choice(s, f.cfg.SuggestedAmounts), nil
	default:
		return s.AmountInRange(d.capacity.Min, d.capacity.Max)
	}
}

func (f *Factory) payment(bc *generic.BuildContext, d *donor, campaignID string, gift int64, coversFee bool, at time.Time) (generic.Entity, error) {
	s := bc.Sampler
	id, err := bc.NewID("pi_", generic.DefaultIDLength)
	if err != nil {
		return generic.Entity{}, err
	}
	charged := gift
	if coversFee {
		charged = f.cfg.CoverFee(gift)
	}
	status := StatusSucceeded
	if s.Chance(bc.Rate(generic.RateFailure, 0)) {
		status = StatusRequiresPaymentMethod
	}
	e := generic.Entity{
		ID:         id,
		Collection: generic.CollectionPayments,
		Amount:     charged,
		Status:     status,
		Created:    at,
		Category:   d.kind,
		Refs: map[string]string{
			"customer": d.id,
			"campaign": campaignID,
		},
		Fields: map[string]any{
			"donation_amount": gift,
			"fee_amount":      charged - gift,
		},
		Metadata: generic.Metadata{
			"donation_type":   "one_time",
			"donor_type":      d.kind,
			"fee_covered":     strconv.FormatBool(coversFee),
			"lifecycle_stage": bc.Stage.Name,
		},
	}
	if gift >= f.cfg.MajorThreshold {
		e.Metadata["major_gift"] = "true"
	}
	if status == StatusSucceeded && gift >= f.cfg.ReceiptMinimum {
		e.Fields["receipt_number"] = fmt.Sprintf("GH-%d-%s", at.Year(), generic.Digits(s, 6))
	} else if status != StatusSucceeded {
		e.Fields["last_payment_error"] = map[string]any{"code": "card_declined"}
	}
	return e, nil
}

// receipt issues the tax receipt of a gift that was given a receipt number.
// The deductible amount is the gift without any covered fee.
func (f *Factory) receipt(bc *generic.BuildContext, d *donor, payment generic.Entity, c *campaign) (generic.Entity, bool, error) {
	number, ok := payment.Field("receipt_number")
	if !ok {
		return generic.Entity{}, false, nil
	}
	id, err := bc.NewID("receipt_", 16)
	if err != nil {
		return generic.Entity{}, false, err
	}
	gift := payment.FieldInt("donation_amount")
	org := f.cfg.Organization
	e := generic.Entity{
		ID:         id,
		Collection: CollectionReceipts,
		Amount:     gift,
		Status:     StatusIssued,
		Created:    generic.ClampToDay(payment.Created.Add(10*time.Minute), payment.Created),
		Category:   d.kind,
		Refs: map[string]string{
			"payment_intent": payment.ID,
			"customer":       d.id,
			"campaign":       c.id,
		},
		Fields: map[string]any{
			"receipt_number":       number,
			"tax_year":             payment.Created.Year(),
			"donor_name":           d.name,
			"deductible_amount":    gift,
			"goods_services_value": 0,
			"organization_name":    org.Name,
			"organization_ein":     org.EIN,
			"organization_address": org.Address,
			"description":          "Charitable contribution to " + c.title,
			"receipt_type":         "donation",
		},
		Metadata: generic.Metadata{
			"campaign_type":   c.kind.Name,
			"lifecycle_stage": bc.Stage.Name,
		},
	}
	if dedication := payment.Meta("dedication"); dedication != "" {
		e.Fields["dedication"] = dedication
	}
	return e, true, nil
}

// match builds the employer match of a succeeded individual gift.
func (f *Factory) match(bc *generic.BuildContext, d *donor, payment generic.Entity, gift int64) (generic.Entity, bool, error) {
	s := bc.Sampler
	if d.employer == "" || payment.Status != StatusSucceeded || !s.Chance(f.cfg.MatchShare) {
		return generic.Entity{}, false, nil
	}
	ratio := generic.Choice(s, f.cfg.MatchRatios)
	amount := min(generic.Scale(gift, ratio), f.cfg.MatchCap)
	id, err := bc.NewID("em_", generic.DefaultIDLength)
	if err != nil {
		return generic.Entity{}, false, err
	}
	return generic.Entity{
		ID:         id,
		Collection: CollectionMatches,
		Amount:     amount,
		Status:     StatusPledged,
		Created:    generic.ClampToDay(payment.Created.Add(time.Hour), payment.Created),
		Category:   "employer_match",
		Refs: map[string]string{
			"payment_intent": payment.ID,
			"customer":       d.id,
		},
		Fields: map[string]any{
			"employer":    d.employer,
			"match_ratio": ratio,
		},
		Metadata: generic.Metadata{"lifecycle_stage": bc.Stage.Name},
	}, true, nil
}

// =============================================================================
// RECURRING GIFTS
// =============================================================================

func (f *Factory) newPledge(bc *generic.BuildContext, d *donor, c *campaign, at time.Time) (*pledge, error) {
	s := bc.Sampler
	freqName, err := s.WeightedChoice(f.freqs)
	if err != nil {
		return nil, err
	}
	var freq Frequency
	found := false
	for _, fr := range f.cfg.Frequencies {
		if fr.Name == freqName {
			freq, found = fr, true
		}
	}
	if !found {
		return nil, &generic.ConfigurationError{Field: "nonprofit.frequencies", Reason: fmt.Sprintf("unknown frequency %q", freqName)}
	}

	lo, hi := d.capacity.MonthlyMin, d.capacity.MonthlyMax
	if d.major {
		lo, hi = f.cfg.MajorMonthly[0], f.cfg.MajorMonthly[1]
	}
	monthly, err := s.AmountInRange(lo, hi)
	if err != nil {
		return nil, err
	}
	monthly = max(monthlyRound, (monthly+monthlyRound/2)/monthlyRound*monthlyRound)

	p := &pledge{
		donor:     d,
		campaign:  c,
		amount:    monthly * int64(freq.Months),
		months:    freq.Months,
		frequency: freq.Name,
		anchor:    generic.StartOfDay(at),
		cycle:     1,
	}
	// Monthly attrition is what the stage's yearly retention leaves.
	lifetime := s.Geometric((1-bc.Rate(RateRetention, 0.5))/12, f.cfg.MaxLifetimeMonths)
	if lifetime < f.cfg.MaxLifetimeMonths {
		cycles := max(1, (lifetime+freq.Months-1)/freq.Months)
		p.cancelAt = generic.AddMonths(p.anchor, cycles*freq.Months)
	}
	return p, nil
}

func (f *Factory) subscribe(bc *generic.BuildContext, p *pledge, at time.Time) (generic.Entity, error) {
	id, err := bc.NewID("sub_", generic.DefaultIDLength)
	if err != nil {
		return generic.Entity{}, err
	}
	p.subscription = id
	status := StatusActive
	if !p.cancelAt.IsZero() && !p.cancelAt.After(f.end) {
		status = StatusCanceled
	}
	e := generic.Entity{
		ID:         id,
		Collection: generic.CollectionSubscriptions,
		Amount:     p.amount,
		Status:     status,
		Created:    at,
		Category:   p.frequency,
		Refs: map[string]string{
			"customer": p.donor.id,
			"campaign": p.campaign.id,
		},
		Fields: map[string]any{
			"interval":             "month",
			"interval_count":       p.months,
			"billing_cycle_anchor": p.anchor.Unix(),
		},
		Metadata: generic.Metadata{
			"frequency":       p.frequency,
			"donor_type":      p.donor.kind,
			"lifecycle_stage": bc.Stage.Name,
		},
	}
	if !p.cancelAt.IsZero() {
		e.Fields["cancel_at"] = p.cancelAt.Unix()
	}
	return e, nil
}

// EndPeriod charges every recurring plan due in the period and forgets
// plans that have ended.
func (f *Factory) EndPeriod(bc *generic.BuildContext) ([]generic.Entity, error) {
	periodEnd := generic.AddMonths(bc.Date, 1)
	var out []generic.Entity
	kept := f.pledges[:0]

	for _, p := range f.pledges {
		for due := p.due(); due.Before(periodEnd) && p.live(due); due = p.due() {
			if due.Before(bc.Date) {
				p.cycle++
				continue
			}
			payment, err := f.payment(bc, p.donor, p.campaign.id, p.amount, p.coversFee, due.Add(bc.Sampler.Jitter()))
			if err != nil {
				return nil, err
			}
			payment.Refs["subscription"] = p.subscription
			payment.Metadata["campaign_type"] = p.campaign.kind.Name
			payment.Metadata["donation_type"] = "recurring"
			payment.Metadata["frequency"] = p.frequency
			payment.Fields["billing_cycle"] = p.cycle
			out = append(out, payment)
			if r, ok, err := f.receipt(bc, p.donor, payment, p.campaign); err != nil {
				return nil, err
			} else if ok {
				out = append(out, r)
			}
			p.cycle++
		}
		if p.live(p.due()) {
			kept = append(kept, p)
		} else {
			p.donor.giving = false
		}
	}
	f.pledges = kept
	return out, nil
}
