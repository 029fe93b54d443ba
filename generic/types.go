/*
Package generic provides the core synthetic dataset engine.

PURPOSE:
  This package contains vertical-agnostic types and algorithms for generating
  synthetic payments-platform datasets. Whether the business is a fashion
  retailer, a SaaS company, a delivery marketplace, or a non-profit, the same
  engine walks the simulated calendar, resolves lifecycle stages, applies
  seasonal curves, and asks a vertical's factory for records.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entity: One generated record (payment, customer, transfer, donation...)
  - Metadata: Flat string map of vertical-specific context
  - Refs: Lookup references to other entities, by id only

DESIGN PRINCIPLES:
  1. Immutability: Entities are never modified after they are appended
  2. Precision: Money is always int64 minor units (cents), never float
  3. Determinism: Same seed + same config = byte-identical output
  4. Referential integrity: A reference always points at an existing entity

USAGE:
  e := generic.Entity{
      ID:       "pi_3f9a...",
      Object:   "payment_intent",
      Amount:   4200,
      Currency: "usd",
      Status:   "succeeded",
      Created:  ts,
      Refs:     map[string]string{"customer": "cus_91ab..."},
      Metadata: generic.Metadata{"order_id": "ORD-123456"},
  }

SEE ALSO:
  - assembler.go: Drives generation and owns the collections
  - factory.go: EntityFactory interface and BuildContext
  - summary.go: Aggregates computed at finalize time
*/
package generic

import (
	"encoding/json"
	"time"
)

// =============================================================================
// ENTITY - One generated record
// =============================================================================

// Entity is one synthetic record. The zero value is not useful; entities are
// built by an EntityFactory and appended by the Assembler.
type Entity struct {
	ID       string
	Object   string // API object name, e.g. "payment_intent", "customer"
	Amount   int64  // minor currency units
	Currency string // lowercase ISO 4217
	Status   string
	Created  time.Time

	// Collection is the named collection the entity belongs to. Not emitted.
	Collection string

	// Category is the sampled category label (product category, plan, cause).
	// Summaries count entities by it. Optional, not emitted unless a factory
	// also copies it into Metadata.
	Category string

	// Stage is the lifecycle stage the entity was generated under. Set by the
	// Assembler; not emitted.
	Stage string

	// Refs holds lookup references: field name -> referenced entity id.
	// Keyed by the field name that is emitted, e.g. "customer", "destination".
	Refs map[string]string

	// Fields holds extra top-level scalar fields (booleans, numbers, strings).
	Fields map[string]any

	Metadata Metadata
}

// Metadata is the flat string-keyed context map carried by every entity.
type Metadata map[string]string

// Ref returns the referenced id stored under field, or "".
func (e Entity) Ref(field string) string {
	if e.Refs == nil {
		return ""
	}
	return e.Refs[field]
}

// Meta returns the metadata value for key, or "".
func (e Entity) Meta(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}

// Field returns the extra field value stored under key.
func (e Entity) Field(key string) (any, bool) {
	if e.Fields == nil {
		return nil, false
	}
	v, ok := e.Fields[key]
	return v, ok
}

// MarshalJSON emits the entity as one flat API-style object. Keys are sorted
// by encoding/json, which keeps output byte-stable for a given seed.
func (e Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 8+len(e.Refs)+len(e.Fields))
	for k, v := range e.Fields {
		out[k] = v
	}
	for k, v := range e.Refs {
		out[k] = v
	}
	out["id"] = e.ID
	out["object"] = e.Object
	out["amount"] = e.Amount
	out["currency"] = e.Currency
	out["status"] = e.Status
	out["created"] = e.Created.Unix()

	md := e.Metadata
	if md == nil {
		md = Metadata{}
	}
	out["metadata"] = md
	return json.Marshal(out)
}

// EntityJSON is the decoded wire form, used when reading persisted datasets.
type EntityJSON struct {
	ID       string            `json:"id"`
	Object   string            `json:"object"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Created  int64             `json:"created"`
	Metadata map[string]string `json:"metadata"`
}

// =============================================================================
// COLLECTION NAMES - Shared by most verticals
// =============================================================================

const (
	CollectionCustomers     = "customers"
	CollectionPayments      = "payments"
	CollectionDisputes      = "disputes"
	CollectionAccounts      = "accounts"
	CollectionTransfers     = "transfers"
	CollectionPayouts       = "payouts"
	CollectionSubscriptions = "subscriptions"
	CollectionInvoices      = "invoices"
)

// Common statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusActive    = "active"
	StatusCanceled  = "canceled"
	StatusPaid      = "paid"
)
