/*
scheduler.go - Persona refresh scheduler

PURPOSE:
  Keeps the loaded persona's dates recent. A persona is generated so that
  its last simulated month is the month before "now"; once the calendar
  moves into a new month the scheduler regenerates it, with the same seed,
  anchored to the new month, and the previous run is replaced.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Does nothing while no persona is loaded
  - Skips the check when the persona is already anchored to this month

USAGE:
  refresher := NewPersonaRefresher(handler, time.Hour)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - personas.go: LoadPersonaByID
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/synth-engine/generic"
	"github.com/warp/synth-engine/logger"
)

// PersonaRefresher re-anchors the current persona when the month changes.
type PersonaRefresher struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPersonaRefresher creates a refresher. interval <= 0 disables it.
func NewPersonaRefresher(h *Handler, interval time.Duration) *PersonaRefresher {
	return &PersonaRefresher{
		Handler:       h,
		CheckInterval: interval,
		Enabled:       interval > 0,
		stop:          make(chan struct{}),
	}
}

// Start begins the refresher.
func (pr *PersonaRefresher) Start() {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if !pr.Enabled {
		logger.L.Info("persona refresher disabled")
		return
	}
	if pr.ticker != nil {
		return
	}

	pr.ticker = time.NewTicker(pr.CheckInterval)
	pr.wg.Add(1)
	go pr.run()

	logger.L.Info("persona refresher started", "interval", pr.CheckInterval)
}

// Stop stops the refresher and waits for an in-flight refresh.
func (pr *PersonaRefresher) Stop() {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if pr.ticker != nil {
		pr.ticker.Stop()
		close(pr.stop)
		pr.wg.Wait()
		pr.ticker = nil
		logger.L.Info("persona refresher stopped")
	}
}

func (pr *PersonaRefresher) run() {
	defer pr.wg.Done()

	for {
		select {
		case <-pr.ticker.C:
			pr.RunNow(context.Background())
		case <-pr.stop:
			return
		}
	}
}

// RunNow performs one check. It reports whether the persona was regenerated.
func (pr *PersonaRefresher) RunNow(ctx context.Context) bool {
	id, anchoredTo, ok := pr.Handler.CurrentPersona()
	if !ok {
		return false
	}
	month := generic.StartOfMonth(pr.Handler.now())
	if !month.After(anchoredTo) {
		return false
	}

	rec, err := pr.Handler.LoadPersonaByID(ctx, id)
	if err != nil {
		logger.L.Error("persona refresh failed", "persona", id, "error", err)
		return false
	}
	logger.L.Info("persona refreshed", "persona", id, "run_id", rec.ID, "month", generic.MonthKey(month))
	return true
}
