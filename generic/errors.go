/*
errors.go - Centralized error types for the generation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Vertical packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Configuration errors - Malformed stage tables, rules, or vertical config
  2. Distribution errors - Malformed weight or probability tables
  3. Prerequisite errors - A referenced entity pool is empty
  4. Identifier collisions - Retried internally, fatal when the budget is spent
  5. Lifecycle errors - Assembler used out of order (double finalize, ...)

PROPAGATION:
  Every fatal error aborts the whole run. The Assembler wraps it in a
  GenerationError naming the vertical, stage, period, and collection being
  produced. Nothing is persisted unless the dataset reached Complete.

USAGE:
  if errors.Is(err, generic.ErrInvalidDistribution) {
      // data quality bug in a vertical table
  }

  var cfgErr *generic.ConfigurationError
  if errors.As(err, &cfgErr) {
      log.Printf("bad field %s", cfgErr.Field)
  }

SEE ALSO:
  - stage.go: Raises ConfigurationError at load time
  - sampler.go: Raises InvalidDistributionError
  - factory.go: Raises PrerequisiteMissingError and IdentifierCollisionError
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfiguration is returned for malformed stage tables or vertical config.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidDistribution is returned for malformed weight/probability tables.
	ErrInvalidDistribution = errors.New("invalid distribution")

	// ErrPrerequisiteMissing is returned when a required referenced pool is empty.
	ErrPrerequisiteMissing = errors.New("prerequisite entity missing")

	// ErrIdentifierCollision is returned when id generation keeps colliding.
	ErrIdentifierCollision = errors.New("identifier collision")

	// ErrDanglingReference is returned when an appended entity references an
	// id that is not (yet) in its target collection.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrInvalidState is returned when the Assembler is driven out of order.
	ErrInvalidState = errors.New("invalid assembler state")

	// ErrNotComplete is returned when persisting a dataset that is not Complete.
	ErrNotComplete = errors.New("dataset not complete")

	// ErrRunNotFound is returned by stores for unknown run ids.
	ErrRunNotFound = errors.New("run not found")

	// ErrUnknownVertical is returned when a vertical name is not registered.
	ErrUnknownVertical = errors.New("unknown vertical")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError describes a malformed configuration value.
type ConfigurationError struct {
	Field  string // e.g. "stages[1]", "seasonal[december].multiplier"
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// InvalidDistributionError describes a weight or probability table that
// cannot be sampled.
type InvalidDistributionError struct {
	Table  string
	Reason string
}

func (e *InvalidDistributionError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("invalid distribution: %s", e.Reason)
	}
	return fmt.Sprintf("invalid distribution %q: %s", e.Table, e.Reason)
}

func (e *InvalidDistributionError) Unwrap() error { return ErrInvalidDistribution }

// PrerequisiteMissingError is returned when a factory needs to reference an
// entity from a collection that is still empty.
type PrerequisiteMissingError struct {
	Collection string // the empty pool
	Needed     string // what was being built, e.g. "payment.customer"
}

func (e *PrerequisiteMissingError) Error() string {
	return fmt.Sprintf("prerequisite missing: %s requires a %s entity but the pool is empty",
		e.Needed, e.Collection)
}

func (e *PrerequisiteMissingError) Unwrap() error { return ErrPrerequisiteMissing }

// IdentifierCollisionError is returned once the id retry budget is spent.
type IdentifierCollisionError struct {
	Prefix   string
	Attempts int
}

func (e *IdentifierCollisionError) Error() string {
	return fmt.Sprintf("identifier collision: prefix %q still colliding after %d attempts",
		e.Prefix, e.Attempts)
}

func (e *IdentifierCollisionError) Unwrap() error { return ErrIdentifierCollision }

// DanglingReferenceError names the reference that points nowhere.
type DanglingReferenceError struct {
	EntityID string
	Field    string
	Target   string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("dangling reference: %s.%s -> %s", e.EntityID, e.Field, e.Target)
}

func (e *DanglingReferenceError) Unwrap() error { return ErrDanglingReference }

// StateError is returned when an Assembler transition is not allowed.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Op, e.State)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// GenerationError wraps a fatal error with the diagnostic of what was being
// produced when it happened.
type GenerationError struct {
	Vertical   string
	Stage      string
	Period     int
	Collection string
	Err        error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: vertical=%s stage=%s period=%d collection=%s: %v",
		e.Vertical, e.Stage, e.Period, e.Collection, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfigError returns true for errors that are detectable before generation.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrInvalidDistribution)
}

// IsRetryable returns true for errors a fresh attempt may not hit again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrIdentifierCollision)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return IsConfigError(err) ||
		errors.Is(err, ErrUnknownVertical) ||
		errors.Is(err, ErrInvalidState)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound) || errors.Is(err, ErrUnknownVertical)
}
