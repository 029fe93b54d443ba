/*
handlers.go - HTTP API handlers for the synthetic dataset engine

PURPOSE:
  Exposes generation runs via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the engine and the store.

ENDPOINTS:
  Verticals:
    GET    /api/verticals                       List registered verticals

  Personas:
    GET    /api/personas                        List personas
    GET    /api/personas/current                Loaded persona (or null)
    POST   /api/personas/load                   Generate + load a persona

  Runs:
    POST   /api/runs                            Generate a dataset (rate limited)
    GET    /api/runs                            List runs (?vertical=&limit=)
    GET    /api/runs/{id}                       Run record
    GET    /api/runs/{id}/summary               Aggregates
    GET    /api/runs/{id}/collections/{name}    Entities (?limit=&offset=)
    DELETE /api/runs/{id}                       Delete a run

  Specs:
    GET    /api/specs                           List custom vertical specs
    POST   /api/specs                           Create/replace + register
    GET    /api/specs/{name}                    Get one spec
    DELETE /api/specs/{name}                    Delete + unregister

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: SQLite runs and specs
  - cache: finalized datasets by run id (go-cache, TTL)
  - limiter: token bucket on generation endpoints
  - current: the loaded persona

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, unknown vertical, bad vertical config
  - 404: Run, collection or spec not found
  - 409: Spec name taken by a built-in vertical
  - 429: Generation rate limit
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - personas.go: Persona loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/warp/synth-engine/config"
	"github.com/warp/synth-engine/factory"
	"github.com/warp/synth-engine/generic"
	"github.com/warp/synth-engine/logger"
	"github.com/warp/synth-engine/store/sqlite"
	"golang.org/x/time/rate"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
	maxMonths       = 60
	maxScale        = 2.0
	maxSpecBytes    = 1 << 20
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options configure a Handler. Zero values pick the defaults.
type Options struct {
	Seed      uint64        // default seed for runs that omit one
	CacheTTL  time.Duration // 0 = 30m
	RateLimit float64       // generations per second; 0 = unlimited
	RateBurst int
	Now       func() time.Time

	// Runs stores generated datasets; nil keeps them in the sqlite store.
	Runs generic.DatasetStore
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store // custom specs, and runs unless Options.Runs is set
	runs  generic.DatasetStore

	seed    uint64
	cache   *gocache.Cache
	limiter *rate.Limiter
	now     func() time.Time

	mu      sync.RWMutex
	current *currentPersona
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, opts Options) *Handler {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var runs generic.DatasetStore = store
	if opts.Runs != nil {
		runs = opts.Runs
	}
	return &Handler{
		Store:   store,
		runs:    runs,
		seed:    opts.Seed,
		cache:   gocache.New(ttl, 2*ttl),
		limiter: rate.NewLimiter(limit, burst),
		now:     now,
	}
}

// LoadSpecs registers every stored custom spec. Invalid specs are skipped.
func (h *Handler) LoadSpecs(ctx context.Context) error {
	records, err := h.Store.ListSpecs(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		spec, err := factory.ParseJSON(r.Body)
		if err != nil {
			logger.L.Warn("skipping stored spec", "name", r.Name, "error", err)
			continue
		}
		if _, err := factory.Register(spec); err != nil {
			logger.L.Warn("skipping stored spec", "name", r.Name, "error", err)
		}
	}
	return nil
}

// =============================================================================
// VERTICAL HANDLERS
// =============================================================================

// ListVerticals returns every registered vertical.
func (h *Handler) ListVerticals(w http.ResponseWriter, r *http.Request) {
	vs := generic.ListVerticals()
	dtos := make([]VerticalDTO, len(vs))
	for i, v := range vs {
		_, custom := v.(*factory.SpecVertical)
		dtos[i] = VerticalDTO{Name: v.Name(), Description: v.Description(), Custom: custom}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// CreateRun generates, persists and caches a dataset.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	opts, err := h.buildOptions(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid run options", err)
		return
	}
	if !h.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Generation rate limit exceeded", nil)
		return
	}

	rec, err := h.generate(r.Context(), req.Vertical, opts)
	if err != nil {
		writeEngineError(w, "Failed to generate dataset", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunDTO(rec))
}

func (h *Handler) buildOptions(req CreateRunRequest) (generic.BuildOptions, error) {
	if req.Vertical == "" {
		return generic.BuildOptions{}, errors.New("vertical is required")
	}
	if req.Months < 0 || req.Months > maxMonths {
		return generic.BuildOptions{}, fmt.Errorf("months must be between 1 and %d", maxMonths)
	}
	if req.Scale < 0 || req.Scale > maxScale {
		return generic.BuildOptions{}, fmt.Errorf("scale must be between 0 and %.1f", maxScale)
	}
	start, err := config.ParseStart(req.Start)
	if err != nil {
		return generic.BuildOptions{}, err
	}
	seed := h.seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	return generic.BuildOptions{
		Seed:     seed,
		Start:    start,
		Periods:  req.Months,
		Currency: req.Currency,
		Scale:    req.Scale,
	}, nil
}

// generate runs one vertical to completion, persists it and caches it.
func (h *Handler) generate(ctx context.Context, vertical string, opts generic.BuildOptions) (generic.RunRecord, error) {
	log := logger.FromContext(ctx)
	a, err := generic.NewRun(vertical, opts, generic.WithLogger(log))
	if err != nil {
		return generic.RunRecord{}, err
	}
	started := time.Now()
	ds, err := a.Run(ctx)
	if err != nil {
		return generic.RunRecord{}, err
	}

	rec := generic.NewRunRecord(uuid.NewString(), ds, h.now())
	if err := h.runs.SaveDataset(ctx, rec, ds); err != nil {
		return generic.RunRecord{}, fmt.Errorf("failed to save run: %w", err)
	}
	h.cache.SetDefault(rec.ID, ds)

	log.Info("run generated", slog.String("run_id", rec.ID), slog.String("vertical", vertical),
		slog.Int("entities", rec.Entities), slog.Duration("duration", time.Since(started)))
	return rec, nil
}

// ListRuns returns runs newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	runs, err := h.runs.ListRuns(r.Context(), generic.RunFilter{
		Vertical: r.URL.Query().Get("vertical"),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, rec := range runs {
		dtos[i] = toRunDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns a single run.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, "Failed to get run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(rec))
}

// GetSummary returns the run's aggregates.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if ds, ok := h.cached(id); ok {
		summary, err := ds.Summary()
		if err == nil {
			writeJSON(w, http.StatusOK, summary)
			return
		}
	}

	summary, err := h.runs.LoadSummary(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to load summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetCollection returns one page of a collection in generation order.
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	limit, err := intParam(r, "limit", defaultPageSize)
	if err != nil || limit <= 0 || limit > maxPageSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxPageSize), err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must not be negative", err)
		return
	}

	var page []json.RawMessage
	var total int
	if ds, ok := h.cached(id); ok {
		if !declares(ds.Names(), name) {
			writeError(w, http.StatusNotFound, "Collection not found", nil)
			return
		}
		entities := ds.Collection(name)
		total = len(entities)
		lo := min(offset, total)
		hi := lo + min(limit, total-lo)
		page, err = generic.MarshalCollection(entities[lo:hi])
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to encode collection", err)
			return
		}
	} else {
		summary, err := h.runs.LoadSummary(r.Context(), id)
		if err != nil {
			writeEngineError(w, "Failed to load collection", err)
			return
		}
		cs, ok := summary.Collections[name]
		if !ok {
			writeError(w, http.StatusNotFound, "Collection not found", nil)
			return
		}
		total = cs.Count
		page, err = h.runs.LoadCollection(r.Context(), id, name, limit, offset)
		if err != nil {
			writeEngineError(w, "Failed to load collection", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Object:  "list",
		Data:    page,
		HasMore: offset < total && offset+len(page) < total,
		URL:     r.URL.Path,
	})
}

// DeleteRun removes a run and evicts it from the cache.
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := h.deleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, "Failed to delete run", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteRun(ctx context.Context, id string) error {
	h.cache.Delete(id)
	return h.runs.DeleteRun(ctx, id)
}

func (h *Handler) cached(id string) (*generic.Dataset, bool) {
	v, ok := h.cache.Get(id)
	if !ok {
		return nil, false
	}
	ds, ok := v.(*generic.Dataset)
	return ds, ok
}

// =============================================================================
// SPEC HANDLERS
// =============================================================================

// ListSpecs returns stored custom specs.
func (h *Handler) ListSpecs(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListSpecs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list specs", err)
		return
	}
	dtos := make([]SpecDTO, len(records))
	for i, rec := range records {
		dtos[i] = toSpecDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSpec validates a vertical spec, stores it and registers it.
func (h *Handler) CreateSpec(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSpecBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	spec, err := factory.ParseJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid spec", err)
		return
	}
	v, err := factory.NewSpecVertical(spec)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid spec", err)
		return
	}

	if existing, err := generic.LookupVertical(spec.Name); err == nil {
		if _, custom := existing.(*factory.SpecVertical); !custom || h.isPreset(spec.Name) {
			writeError(w, http.StatusConflict, "Name is taken by a built-in vertical", nil)
			return
		}
	}

	if err := h.Store.SaveSpec(r.Context(), spec.Name, body); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save spec", err)
		return
	}
	generic.RegisterVertical(v)

	rec, err := h.Store.GetSpec(r.Context(), spec.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load spec", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSpecDTO(*rec))
}

// GetSpec returns one stored spec.
func (h *Handler) GetSpec(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.GetSpec(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, sqlite.ErrSpecNotFound) {
		writeError(w, http.StatusNotFound, "Spec not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get spec", err)
		return
	}
	writeJSON(w, http.StatusOK, toSpecDTO(*rec))
}

// DeleteSpec removes a stored spec and unregisters its vertical. Runs
// generated from it are kept.
func (h *Handler) DeleteSpec(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.Store.DeleteSpec(r.Context(), name)
	if errors.Is(err, sqlite.ErrSpecNotFound) {
		writeError(w, http.StatusNotFound, "Spec not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete spec", err)
		return
	}
	generic.UnregisterVertical(name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) isPreset(name string) bool {
	specs, err := factory.Presets()
	if err != nil {
		return false
	}
	for _, s := range specs {
		if s.Name == name {
			return true
		}
	}
	return false
}

func toSpecDTO(rec sqlite.SpecRecord) SpecDTO {
	return SpecDTO{
		Name:      rec.Name,
		Spec:      rec.Body,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine and store errors to a status code.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err) && !errors.Is(err, generic.ErrUnknownVertical):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func intParam(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func declares(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
