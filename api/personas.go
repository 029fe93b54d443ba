/*
personas.go - Named demo datasets for dashboards

PURPOSE:
  A persona is a company a demo dashboard impersonates: a vertical, a seed,
  a history length and a volume scale. Loading a persona generates its
  dataset so that the last simulated month is the month before "now",
  persists it as a run, and makes it the current persona.

AVAILABLE PERSONAS:
  techstyle:      TechStyle fashion retail (ecommerce)
  cloudflow:      CloudFlow B2B SaaS (saas)
  localbites:     LocalBites food delivery (marketplace)
  rideshare-plus: RideShare Plus (rideshare)
  givehope:       GiveHope nonprofit (nonprofit)
  fitstream, edutech, creatorhub, medsupply, propertyflow: spec presets

USAGE VIA API:
  POST /api/personas/load
  {"persona_id": "techstyle"}

ADDING NEW PERSONAS:
  Add an entry to 'personas'. The vertical must be registered.

SEE ALSO:
  - scheduler.go: Re-anchors the current persona when the month rolls over
  - handlers.go: Run endpoints
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/synth-engine/generic"
	"github.com/warp/synth-engine/logger"
)

// =============================================================================
// PERSONA DEFINITIONS
// =============================================================================

var personas = []PersonaDTO{
	{
		ID:          "techstyle",
		Company:     "TechStyle",
		Vertical:    "ecommerce",
		Description: "Fashion retail with Black Friday peaks and multi-currency checkout",
		Seed:        42, Months: 24, Scale: 0.1,
	},
	{
		ID:          "cloudflow",
		Company:     "CloudFlow",
		Vertical:    "saas",
		Description: "B2B subscriptions with trials, churn and seat add-ons",
		Seed:        7, Months: 24, Scale: 0.2,
	},
	{
		ID:          "localbites",
		Company:     "LocalBites",
		Vertical:    "marketplace",
		Description: "Food delivery with restaurant and courier transfers",
		Seed:        11, Months: 18, Scale: 0.05,
	},
	{
		ID:          "rideshare-plus",
		Company:     "RideShare Plus",
		Vertical:    "rideshare",
		Description: "Rides with surge pricing, driver transfers and monthly payouts",
		Seed:        19, Months: 18, Scale: 0.05,
	},
	{
		ID:          "givehope",
		Company:     "GiveHope",
		Vertical:    "nonprofit",
		Description: "Donations, recurring pledges and a Giving Tuesday spike",
		Seed:        23, Months: 24, Scale: 0.1,
	},
	{ID: "fitstream", Company: "FitStream", Vertical: "fitstream", Description: "Fitness streaming memberships", Seed: 3, Months: 24, Scale: 0.2},
	{ID: "edutech", Company: "EduTech Academy", Vertical: "edutech", Description: "Online course marketplace", Seed: 5, Months: 24, Scale: 0.2},
	{ID: "creatorhub", Company: "CreatorHub", Vertical: "creatorhub", Description: "Creator memberships and tips", Seed: 13, Months: 24, Scale: 0.1},
	{ID: "medsupply", Company: "MedSupply Pro", Vertical: "medsupply", Description: "B2B medical supply invoicing", Seed: 17, Months: 24, Scale: 0.3},
	{ID: "propertyflow", Company: "PropertyFlow", Vertical: "propertyflow", Description: "Rent collection for property managers", Seed: 29, Months: 24, Scale: 0.2},
}

func findPersona(id string) (PersonaDTO, bool) {
	for _, p := range personas {
		if p.ID == id {
			return p, true
		}
	}
	return PersonaDTO{}, false
}

// currentPersona is what is loaded right now.
type currentPersona struct {
	persona  PersonaDTO
	runID    string
	start    time.Time
	loadedAt time.Time
}

// anchor returns the start that makes months end with the month before now.
func anchor(now time.Time, months int) time.Time {
	return generic.AddMonths(generic.StartOfMonth(now), -months)
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListPersonas returns available personas.
func (h *Handler) ListPersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, personas)
}

// GetCurrentPersona returns the loaded persona, or null.
func (h *Handler) GetCurrentPersona(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	cur := h.current
	h.mu.RUnlock()

	if cur == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, CurrentPersonaDTO{
		PersonaDTO: cur.persona,
		RunID:      cur.runID,
		Start:      generic.MonthKey(cur.start),
		Through:    generic.MonthKey(generic.AddMonths(cur.start, cur.persona.Months-1)),
		LoadedAt:   cur.loadedAt.Format(time.RFC3339),
	})
}

// LoadPersona generates a persona's dataset and makes it current.
func (h *Handler) LoadPersona(w http.ResponseWriter, r *http.Request) {
	var req LoadPersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, ok := findPersona(req.PersonaID); !ok {
		writeError(w, http.StatusBadRequest, "Unknown persona", nil)
		return
	}
	if !h.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Generation rate limit exceeded", nil)
		return
	}

	rec, err := h.LoadPersonaByID(r.Context(), req.PersonaID)
	if err != nil {
		writeEngineError(w, "Failed to load persona", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "persona": req.PersonaID, "run_id": rec.ID})
}

// LoadPersonaByID generates and persists the persona anchored to now, then
// replaces the previously loaded persona run.
func (h *Handler) LoadPersonaByID(ctx context.Context, id string) (generic.RunRecord, error) {
	p, ok := findPersona(id)
	if !ok {
		return generic.RunRecord{}, fmt.Errorf("%w: persona %q", generic.ErrUnknownVertical, id)
	}
	start := anchor(h.now(), p.Months)
	rec, err := h.generate(ctx, p.Vertical, generic.BuildOptions{
		Seed:    p.Seed,
		Start:   start,
		Periods: p.Months,
		Scale:   p.Scale,
	})
	if err != nil {
		return generic.RunRecord{}, err
	}

	h.mu.Lock()
	prev := h.current
	h.current = &currentPersona{persona: p, runID: rec.ID, start: start, loadedAt: h.now()}
	h.mu.Unlock()

	if prev != nil {
		if err := h.deleteRun(ctx, prev.runID); err != nil && !generic.IsNotFound(err) {
			logger.FromContext(ctx).Warn("failed to remove previous persona run", "run_id", prev.runID, "error", err)
		}
	}
	logger.FromContext(ctx).Info("persona loaded", "persona", p.ID, "run_id", rec.ID, "start", generic.MonthKey(start))
	return rec, nil
}

// CurrentPersona returns the loaded persona id and the month it was
// anchored in. ok is false when nothing is loaded.
func (h *Handler) CurrentPersona() (id string, anchoredTo time.Time, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return "", time.Time{}, false
	}
	return h.current.persona.ID, generic.AddMonths(h.current.start, h.current.persona.Months), true
}
