/*
factory.go - EntityFactory contract and the context it builds from

PURPOSE:
  A vertical plugs into the engine by implementing EntityFactory. The
  Assembler calls Create once per target record with a BuildContext that
  carries everything the factory may read: stage, simulated day, sequence
  number, the run's Sampler, and a read-only Lookup of earlier entities.

RULES FOR FACTORIES:
  - Never mutate the Lookup or any global state; return entities instead
  - A batch may start with dependencies (a new customer) followed by the
    record that references them (its payment)
  - Timestamps come from bc.Timestamp() so they stay inside the simulated day
  - Ids come from bc.NewID(), which retries on collision
  - Referencing an empty pool returns PrerequisiteMissingError via bc.Pick()

PERIOD HOOKS:
  Some verticals keep populations (drivers, restaurants) or emit recurring
  records (renewal invoices, monthly payouts). They implement PeriodHook,
  whose BeginPeriod runs once at the start of every period before Create,
  or PeriodEndHook, whose EndPeriod runs once after the period's last Create.

METRICS HOOK:
  A factory implementing MetricsHook derives business metrics (MRR, GMV,
  funds raised) from the finished dataset. Finalize stores them, encoded,
  in Summary.Metrics.

SEE ALSO:
  - assembler.go: Calls the factory and appends the results
  - sampler.go: Random draws
*/
package generic

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// MaxIDAttempts is the identifier retry budget before a collision is fatal.
const MaxIDAttempts = 5

// DefaultIDLength is the number of random hex characters in an id suffix.
const DefaultIDLength = 24

// EntityFactory builds the records of one vertical.
type EntityFactory interface {
	Create(bc *BuildContext) ([]Entity, error)
}

// PeriodHook is implemented by factories that act once per period.
type PeriodHook interface {
	BeginPeriod(bc *BuildContext) ([]Entity, error)
}

// PeriodEndHook is implemented by factories that act once every period has
// been filled, e.g. to bill renewals or pay out on exact dates.
type PeriodEndHook interface {
	EndPeriod(bc *BuildContext) ([]Entity, error)
}

// MetricsHook is implemented by factories that derive vertical metrics from
// the finished dataset. The result must encode to JSON.
type MetricsHook interface {
	Metrics(ds *Dataset) (any, error)
}

// FactoryFunc adapts a function to EntityFactory.
type FactoryFunc func(bc *BuildContext) ([]Entity, error)

func (f FactoryFunc) Create(bc *BuildContext) ([]Entity, error) { return f(bc) }

// =============================================================================
// BUILD CONTEXT
// =============================================================================

// BuildContext is passed to every factory call. It is only valid for the
// duration of that call.
type BuildContext struct {
	Vertical string
	Stage    Stage
	Period   int
	Date     time.Time // midnight UTC of the simulated day
	Sequence int       // run-wide, strictly increasing
	Currency string
	Sampler  *Sampler
	Related  Lookup

	// window is the span timestamps may fall in: one day for Create, the
	// whole period for BeginPeriod.
	window time.Duration

	issued map[string]bool
}

func newBuildContext(base BuildContext, window time.Duration) *BuildContext {
	bc := base
	bc.window = window
	bc.issued = make(map[string]bool)
	return &bc
}

// NewContext builds a standalone context, for exercising a factory outside an
// Assembler (tests, previews).
func NewContext(stage Stage, date time.Time, seq int, s *Sampler, related Lookup) *BuildContext {
	return newBuildContext(BuildContext{
		Stage:    stage,
		Date:     StartOfDay(date),
		Sequence: seq,
		Currency: "usd",
		Sampler:  s,
		Related:  related,
	}, 24*time.Hour)
}

// Rate returns the stage override for name or def.
func (bc *BuildContext) Rate(name string, def float64) float64 {
	return bc.Stage.Rate(name, def)
}

// Timestamp returns a jittered instant inside the context's window.
func (bc *BuildContext) Timestamp() time.Time {
	if bc.window <= 24*time.Hour {
		return bc.Date.Add(bc.Sampler.Jitter())
	}
	days := int(bc.window / (24 * time.Hour))
	return bc.Date.AddDate(0, 0, bc.Sampler.IntN(days)).Add(bc.Sampler.Jitter())
}

// NewID returns prefix followed by n random hex characters. Ids already in
// the dataset or issued earlier in this call are rejected and redrawn.
func (bc *BuildContext) NewID(prefix string, n int) (string, error) {
	if n <= 0 {
		n = DefaultIDLength
	}
	buf := make([]byte, (n+1)/2)
	for attempt := 0; attempt < MaxIDAttempts; attempt++ {
		_, _ = bc.Sampler.Read(buf)
		id := prefix + hex.EncodeToString(buf)[:n]
		if bc.issued[id] || (bc.Related != nil && bc.Related.Has(id)) {
			continue
		}
		bc.issued[id] = true
		return id, nil
	}
	return "", &IdentifierCollisionError{Prefix: prefix, Attempts: MaxIDAttempts}
}

// UUID returns a version 4 UUID drawn from the run's sampler, so it is
// reproducible for a seed.
func (bc *BuildContext) UUID() string {
	u, err := uuid.NewRandomFromReader(bc.Sampler)
	if err != nil {
		return uuid.Nil.String()
	}
	return u.String()
}

// Pick returns a uniformly chosen entity from collection. needed names what
// is being built, for the error.
func (bc *BuildContext) Pick(collection, needed string) (Entity, error) {
	n := 0
	if bc.Related != nil {
		n = bc.Related.Len(collection)
	}
	if n == 0 {
		return Entity{}, &PrerequisiteMissingError{Collection: collection, Needed: needed}
	}
	return bc.Related.At(collection, bc.Sampler.IntN(n)), nil
}

// PickRecent is Pick restricted to the last `window` entities, which models
// repeat customers being recent customers.
func (bc *BuildContext) PickRecent(collection, needed string, window int) (Entity, error) {
	n := 0
	if bc.Related != nil {
		n = bc.Related.Len(collection)
	}
	if n == 0 {
		return Entity{}, &PrerequisiteMissingError{Collection: collection, Needed: needed}
	}
	if window <= 0 || window > n {
		window = n
	}
	return bc.Related.At(collection, n-window+bc.Sampler.IntN(window)), nil
}

// NotBefore moves t just past the creation of the referenced entities of
// collection, for records that must not predate what they reference. Callers
// keep t inside the day by onboarding referenced entities early in it.
func (bc *BuildContext) NotBefore(t time.Time, collection string, ids ...string) time.Time {
	if bc.Related == nil {
		return t
	}
	for _, id := range ids {
		e, ok := bc.Related.Get(collection, id)
		if ok && e.Created.After(t) {
			t = e.Created.Add(time.Minute)
		}
	}
	return t
}
