package generic

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// COLLECTION SPEC - Declared shape of one named collection
// =============================================================================

// CollectionSpec declares a collection a vertical produces.
type CollectionSpec struct {
	Name   string // "payments"
	Object string // "payment_intent"
	Prefix string // "pi_"

	// SuccessStatus is the status counted as success by the summary.
	// Empty disables the success rate for the collection.
	SuccessStatus string

	// Refs maps a reference field to the collection its id must live in.
	Refs map[string]string
}

// =============================================================================
// LOOKUP - Read-only view of what has been generated so far
// =============================================================================

// Lookup is the read-only view factories get of earlier entities.
type Lookup interface {
	// Has reports whether any collection holds id.
	Has(id string) bool
	// Get returns the entity with id from collection.
	Get(collection, id string) (Entity, bool)
	// Len returns the number of entities in collection.
	Len(collection string) int
	// At returns the i-th entity of collection in append order.
	At(collection string, i int) Entity
}

// =============================================================================
// DATASET - Named collections plus their summary
// =============================================================================

// Dataset holds every collection of one generation run. It is mutated only by
// its Assembler and is read-only once Complete.
type Dataset struct {
	Vertical string
	Seed     uint64
	Start    time.Time
	Periods  int
	Currency string

	specs       []CollectionSpec
	specByName  map[string]CollectionSpec
	collections map[string][]Entity
	where       map[string]location
	summary     *Summary
	complete    bool
}

type location struct {
	collection string
	index      int
}

func newDataset(cfg Config) *Dataset {
	ds := &Dataset{
		Vertical:    cfg.Vertical,
		Seed:        cfg.Seed,
		Start:       StartOfMonth(cfg.Start),
		Periods:     cfg.Periods,
		Currency:    cfg.Currency,
		specs:       append([]CollectionSpec(nil), cfg.Collections...),
		specByName:  make(map[string]CollectionSpec, len(cfg.Collections)),
		collections: make(map[string][]Entity, len(cfg.Collections)),
		where:       make(map[string]location),
	}
	for _, s := range cfg.Collections {
		ds.specByName[s.Name] = s
		ds.collections[s.Name] = nil
	}
	return ds
}

// Has implements Lookup.
func (d *Dataset) Has(id string) bool {
	_, ok := d.where[id]
	return ok
}

// Get implements Lookup.
func (d *Dataset) Get(collection, id string) (Entity, bool) {
	loc, ok := d.where[id]
	if !ok || loc.collection != collection {
		return Entity{}, false
	}
	return d.collections[collection][loc.index], true
}

// Len implements Lookup.
func (d *Dataset) Len(collection string) int { return len(d.collections[collection]) }

// At implements Lookup.
func (d *Dataset) At(collection string, i int) Entity { return d.collections[collection][i] }

// Collection returns the entities of a collection in generation order.
// Callers must not modify the returned slice.
func (d *Dataset) Collection(name string) []Entity { return d.collections[name] }

// Names returns the declared collection names in declaration order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.specs))
	for i, s := range d.specs {
		out[i] = s.Name
	}
	return out
}

// Specs returns the declared collection specs.
func (d *Dataset) Specs() []CollectionSpec {
	return append([]CollectionSpec(nil), d.specs...)
}

// Total returns the number of entities across all collections.
func (d *Dataset) Total() int { return len(d.where) }

// Complete reports whether the dataset was finalized.
func (d *Dataset) Complete() bool { return d.complete }

// Summary returns the finalized summary.
func (d *Dataset) Summary() (*Summary, error) {
	if !d.complete {
		return nil, ErrNotComplete
	}
	return d.summary, nil
}

// append adds one entity after checking collection, id uniqueness, and that
// every reference resolves into its declared target collection.
func (d *Dataset) append(e Entity) error {
	spec, ok := d.specByName[e.Collection]
	if !ok {
		return &ConfigurationError{Field: "collection",
			Reason: fmt.Sprintf("entity %q targets undeclared collection %q", e.ID, e.Collection)}
	}
	if e.ID == "" {
		return fmt.Errorf("entity in %s has no id", e.Collection)
	}
	if d.Has(e.ID) {
		return &IdentifierCollisionError{Prefix: spec.Prefix, Attempts: 1}
	}
	for _, field := range sortedKeys(e.Refs) {
		target := e.Refs[field]
		loc, ok := d.where[target]
		if !ok {
			return &DanglingReferenceError{EntityID: e.ID, Field: field, Target: target}
		}
		if want, declared := spec.Refs[field]; declared && loc.collection != want {
			return &DanglingReferenceError{EntityID: e.ID, Field: field,
				Target: fmt.Sprintf("%s (found in %s, want %s)", target, loc.collection, want)}
		}
	}
	if e.Object == "" {
		e.Object = spec.Object
	}
	d.where[e.ID] = location{collection: e.Collection, index: len(d.collections[e.Collection])}
	d.collections[e.Collection] = append(d.collections[e.Collection], e)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
