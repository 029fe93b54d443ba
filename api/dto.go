/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the engine's
  types from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Wrappers (lists, errors)

TYPES:
  Verticals:  VerticalDTO
  Personas:   PersonaDTO, CurrentPersonaDTO, LoadPersonaRequest
  Runs:       CreateRunRequest, RunDTO, ListResponse
  Specs:      SpecDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/vertical.go: VerticalSpec, accepted as-is by POST /api/specs
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/synth-engine/generic"
)

// VerticalDTO is a registered vertical.
type VerticalDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Custom      bool   `json:"custom"`
}

// PersonaDTO is a named preset a dashboard can switch to.
type PersonaDTO struct {
	ID          string  `json:"id"`
	Company     string  `json:"company"`
	Vertical    string  `json:"vertical"`
	Description string  `json:"description"`
	Seed        uint64  `json:"seed,string"`
	Months      int     `json:"months"`
	Scale       float64 `json:"scale"`
}

// CurrentPersonaDTO is the loaded persona and the run backing it.
type CurrentPersonaDTO struct {
	PersonaDTO
	RunID    string `json:"run_id"`
	Start    string `json:"start"`     // first simulated month
	Through  string `json:"through"`   // last simulated month
	LoadedAt string `json:"loaded_at"` // RFC3339
}

// LoadPersonaRequest selects a persona.
type LoadPersonaRequest struct {
	PersonaID string `json:"persona_id"`
}

// CreateRunRequest starts a generation run.
type CreateRunRequest struct {
	Vertical string  `json:"vertical"`
	Seed     *uint64 `json:"seed,omitempty"`   // nil = server default
	Months   int     `json:"months,omitempty"` // 0 = vertical default
	Start    string  `json:"start,omitempty"`  // YYYY-MM or YYYY-MM-DD
	Currency string  `json:"currency,omitempty"`
	Scale    float64 `json:"scale,omitempty"`
}

// RunDTO describes a persisted run.
type RunDTO struct {
	ID        string `json:"id"`
	Vertical  string `json:"vertical"`
	Seed      uint64 `json:"seed,string"`
	Start     string `json:"start"` // YYYY-MM
	Months    int    `json:"months"`
	Currency  string `json:"currency"`
	Entities  int    `json:"entities"`
	CreatedAt string `json:"created_at"`
}

func toRunDTO(rec generic.RunRecord) RunDTO {
	return RunDTO{
		ID:        rec.ID,
		Vertical:  rec.Vertical,
		Seed:      rec.Seed,
		Start:     generic.MonthKey(rec.Start),
		Months:    rec.Periods,
		Currency:  rec.Currency,
		Entities:  rec.Entities,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
}

// ListResponse is a page of serialized entities.
type ListResponse struct {
	Object  string            `json:"object"` // always "list"
	Data    []json.RawMessage `json:"data"`
	HasMore bool              `json:"has_more"`
	URL     string            `json:"url"`
}

// SpecDTO is a stored custom vertical spec.
type SpecDTO struct {
	Name      string          `json:"name"`
	Spec      json.RawMessage `json:"spec"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
