/*
assembler.go - Drives a generation run over simulated time

PURPOSE:
  The Assembler owns one Dataset and walks it through its lifecycle:

    NotStarted --Start--> Generating(0) --GeneratePeriod--> Generating(1) ...
      ... Generating(last) --GeneratePeriod--> Finalizing --Finalize--> Complete

  Any error moves it to Failed. No transition can be skipped or repeated:
  Finalize on a Complete dataset is an error, not a no-op, so summaries are
  never double counted.

PER-PERIOD ALGORITHM:
  1. stage      = scheduler.StageFor(i)
  2. daily, m   = modulator.DailyMultipliers(days of period i)
  3. PeriodHook.BeginPeriod, if the factory implements it
  4. target     = round(stage.TargetVolume(i) * m)
  5. target is apportioned over the days by their multipliers (largest
     remainder), and Create is called once per record with an increasing
     sequence number
  6. each returned entity is checked and appended
  7. PeriodEndHook.EndPeriod, if the factory implements it, sees the whole
     period and may emit entities dated anywhere inside it

OWNERSHIP:
  An Assembler and its Sampler belong to one goroutine. Run parallel
  verticals with separate Assemblers.

SEE ALSO:
  - factory.go: EntityFactory, BuildContext
  - summary.go: Finalize aggregates
*/
package generic

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
)

// =============================================================================
// STATE
// =============================================================================

// State is the lifecycle position of an Assembler.
type State int

const (
	StateNotStarted State = iota
	StateGenerating
	StateFinalizing
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateGenerating:
		return "generating"
	case StateFinalizing:
		return "finalizing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// =============================================================================
// CONFIG
// =============================================================================

// Config is the immutable description of one run.
type Config struct {
	Vertical    string
	Seed        uint64
	Start       time.Time // truncated to its month
	Periods     int
	Currency    string
	Stages      []Stage
	Seasonal    []SeasonalRule
	Collections []CollectionSpec
}

// Validate checks everything that can be checked before generation.
func (c Config) Validate() error {
	_, _, err := c.compile()
	return err
}

func (c Config) compile() (*Scheduler, *Modulator, error) {
	if c.Vertical == "" {
		return nil, nil, &ConfigurationError{Field: "vertical", Reason: "name is required"}
	}
	if err := ValidateName(c.Vertical); err != nil {
		return nil, nil, err
	}
	if c.Start.IsZero() {
		return nil, nil, &ConfigurationError{Field: "start", Reason: "start date is required"}
	}
	if c.Currency == "" {
		return nil, nil, &ConfigurationError{Field: "currency", Reason: "currency is required"}
	}
	sched, err := NewScheduler(c.Stages, c.Periods)
	if err != nil {
		return nil, nil, err
	}
	mod, err := NewModulator(c.Seasonal)
	if err != nil {
		return nil, nil, err
	}
	if len(c.Collections) == 0 {
		return nil, nil, &ConfigurationError{Field: "collections", Reason: "at least one collection is required"}
	}
	names := make(map[string]bool, len(c.Collections))
	for _, cs := range c.Collections {
		if cs.Name == "" {
			return nil, nil, &ConfigurationError{Field: "collections", Reason: "name is required"}
		}
		if names[cs.Name] {
			return nil, nil, &ConfigurationError{Field: "collections[" + cs.Name + "]", Reason: "duplicate collection"}
		}
		names[cs.Name] = true
	}
	for _, cs := range c.Collections {
		for field, target := range cs.Refs {
			if !names[target] {
				return nil, nil, &ConfigurationError{Field: fmt.Sprintf("collections[%s].refs.%s", cs.Name, field),
					Reason: fmt.Sprintf("target collection %q is not declared", target)}
			}
		}
	}
	return sched, mod, nil
}

// =============================================================================
// ASSEMBLER
// =============================================================================

// Option customizes an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger used for per-period progress.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) { a.log = l }
}

// WithSampler replaces the sampler derived from Config.Seed.
func WithSampler(s *Sampler) Option {
	return func(a *Assembler) { a.sampler = s }
}

// Assembler runs one vertical's generation.
type Assembler struct {
	cfg       Config
	factory   EntityFactory
	scheduler *Scheduler
	modulator *Modulator
	sampler   *Sampler
	log       *slog.Logger

	dataset  *Dataset
	state    State
	period   int
	sequence int
}

// NewAssembler validates cfg and returns an Assembler in NotStarted.
func NewAssembler(cfg Config, factory EntityFactory, opts ...Option) (*Assembler, error) {
	if factory == nil {
		return nil, &ConfigurationError{Field: "factory", Reason: "factory is required"}
	}
	sched, mod, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	cfg.Start = StartOfMonth(cfg.Start)
	a := &Assembler{
		cfg:       cfg,
		factory:   factory,
		scheduler: sched,
		modulator: mod,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.sampler == nil {
		a.sampler = NewSampler(cfg.Seed)
	}
	a.log = a.log.With("vertical", cfg.Vertical)
	return a, nil
}

// State returns the current lifecycle state.
func (a *Assembler) State() State { return a.state }

// Period returns the next period to generate.
func (a *Assembler) Period() int { return a.period }

// Dataset returns the dataset being built. It is only safe to read between
// calls on the Assembler.
func (a *Assembler) Dataset() *Dataset { return a.dataset }

// Start moves NotStarted -> Generating(0).
func (a *Assembler) Start() error {
	if a.state != StateNotStarted {
		return &StateError{Op: "start", State: a.state}
	}
	a.dataset = newDataset(a.cfg)
	a.state = StateGenerating
	a.period = 0
	a.log.Debug("generation started", "periods", a.cfg.Periods, "seed", a.cfg.Seed)
	return nil
}

// GeneratePeriod produces every entity of the current period and advances.
// After the last period the state becomes Finalizing.
func (a *Assembler) GeneratePeriod() error {
	if a.state != StateGenerating {
		return &StateError{Op: "generate period", State: a.state}
	}
	if err := a.generate(a.period); err != nil {
		a.state = StateFailed
		return err
	}
	a.period++
	if a.period == a.cfg.Periods {
		a.state = StateFinalizing
	}
	return nil
}

// Finalize computes the summary and moves Finalizing -> Complete. It is an
// error to call it in any other state, including Complete.
func (a *Assembler) Finalize() (*Dataset, error) {
	if a.state != StateFinalizing {
		return nil, &StateError{Op: "finalize", State: a.state}
	}
	summary := computeSummary(a.dataset)
	if hook, ok := a.factory.(MetricsHook); ok {
		raw, err := vertMetrics(hook, a.dataset)
		if err != nil {
			a.state = StateFailed
			return nil, fmt.Errorf("metrics of %s: %w", a.cfg.Vertical, err)
		}
		summary.Metrics = raw
	}
	a.dataset.summary = summary
	a.dataset.complete = true
	a.state = StateComplete
	a.log.Info("generation complete", "entities", a.dataset.Total(), "periods", a.cfg.Periods)
	return a.dataset, nil
}

// Run drives the whole lifecycle. ctx is checked between periods.
func (a *Assembler) Run(ctx context.Context) (*Dataset, error) {
	if err := a.Start(); err != nil {
		return nil, err
	}
	for a.state == StateGenerating {
		if err := ctx.Err(); err != nil {
			a.state = StateFailed
			return nil, fmt.Errorf("generation of %s cancelled at period %d: %w", a.cfg.Vertical, a.period, err)
		}
		if err := a.GeneratePeriod(); err != nil {
			return nil, err
		}
	}
	return a.Finalize()
}

// Generate builds a complete dataset in one call.
func Generate(ctx context.Context, cfg Config, factory EntityFactory, opts ...Option) (*Dataset, error) {
	a, err := NewAssembler(cfg, factory, opts...)
	if err != nil {
		return nil, err
	}
	return a.Run(ctx)
}

// =============================================================================
// PERIOD GENERATION
// =============================================================================

func (a *Assembler) generate(i int) error {
	stage, err := a.scheduler.StageFor(i)
	if err != nil {
		return a.fail(stage, i, "", err)
	}
	days := PeriodDays(a.cfg.Start, i)
	daily, mult := a.modulator.DailyMultipliers(days)

	base := BuildContext{
		Vertical: a.cfg.Vertical,
		Stage:    stage,
		Period:   i,
		Currency: a.cfg.Currency,
		Sampler:  a.sampler,
		Related:  a.dataset,
	}

	if hook, ok := a.factory.(PeriodHook); ok {
		base.Date = days[0]
		base.Sequence = a.sequence
		bc := newBuildContext(base, time.Duration(len(days))*24*time.Hour)
		batch, err := hook.BeginPeriod(bc)
		if err != nil {
			return a.fail(stage, i, "", err)
		}
		if err := a.appendBatch(stage, i, batch, days[0], days[len(days)-1]); err != nil {
			return err
		}
		a.sequence++
	}

	target := int(math.Round(stage.TargetVolume(i) * mult))
	perDay := Apportion(target, daily)

	for d, day := range days {
		for k := 0; k < perDay[d]; k++ {
			base.Date = day
			base.Sequence = a.sequence
			bc := newBuildContext(base, 24*time.Hour)
			batch, err := a.factory.Create(bc)
			if err != nil {
				return a.fail(stage, i, "", err)
			}
			if err := a.appendBatch(stage, i, batch, day, day); err != nil {
				return err
			}
			a.sequence++
		}
	}

	if hook, ok := a.factory.(PeriodEndHook); ok {
		base.Date = days[0]
		base.Sequence = a.sequence
		bc := newBuildContext(base, time.Duration(len(days))*24*time.Hour)
		batch, err := hook.EndPeriod(bc)
		if err != nil {
			return a.fail(stage, i, "", err)
		}
		if err := a.appendBatch(stage, i, batch, days[0], days[len(days)-1]); err != nil {
			return err
		}
		a.sequence++
	}

	a.log.Debug("period generated",
		"period", i,
		"month", MonthKey(days[0]),
		"stage", stage.Name,
		"multiplier", mult,
		"target", target,
		"total", a.dataset.Total(),
	)
	return nil
}

// appendBatch appends entities whose timestamps must fall on [first, last].
func (a *Assembler) appendBatch(stage Stage, i int, batch []Entity, first, last time.Time) error {
	end := last.AddDate(0, 0, 1)
	for _, e := range batch {
		if e.Created.Before(first) || !e.Created.Before(end) {
			return a.fail(stage, i, e.Collection, fmt.Errorf("entity %s created %s outside simulated window %s..%s",
				e.ID, e.Created.UTC().Format(time.RFC3339), DayKey(first), DayKey(last)))
		}
		if e.Currency == "" {
			e.Currency = a.cfg.Currency
		}
		e.Stage = stage.Name
		e.Created = e.Created.UTC()
		if err := a.dataset.append(e); err != nil {
			return a.fail(stage, i, e.Collection, err)
		}
	}
	return nil
}

func (a *Assembler) fail(stage Stage, i int, collection string, err error) error {
	a.state = StateFailed
	a.log.Error("generation failed", "period", i, "stage", stage.Name, "collection", collection, "error", err)
	return &GenerationError{
		Vertical:   a.cfg.Vertical,
		Stage:      stage.Name,
		Period:     i,
		Collection: collection,
		Err:        err,
	}
}

// Apportion splits total across slots proportionally to weights using the
// largest remainder method, so the parts always sum to total. Ties go to
// the earlier slot.
func Apportion(total int, weights []float64) []int {
	out := make([]int, len(weights))
	if total <= 0 || len(weights) == 0 {
		return out
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		weights = make([]float64, len(out))
		for i := range weights {
			weights[i] = 1
		}
		sum = float64(len(weights))
	}

	type rem struct {
		idx  int
		frac float64
	}
	rems := make([]rem, len(weights))
	assigned := 0
	for i, w := range weights {
		exact := float64(total) * w / sum
		out[i] = int(math.Floor(exact))
		assigned += out[i]
		rems[i] = rem{idx: i, frac: exact - float64(out[i])}
	}
	sort.SliceStable(rems, func(x, y int) bool { return rems[x].frac > rems[y].frac })
	for k := 0; assigned < total; k++ {
		out[rems[k%len(rems)].idx]++
		assigned++
	}
	return out
}
