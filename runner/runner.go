/*
Package runner generates several verticals concurrently.

Each job gets its own Assembler and Sampler, so jobs share nothing but the
vertical registry. The first failing job cancels the others through the
errgroup context; RunAndWrite then writes nothing at all.

USAGE:
  r := runner.New(4, logger.L)
  results, err := r.RunAndWrite(ctx, output.NewWriter("./out", logger.L),
      runner.Job{Vertical: "ecommerce", Options: generic.BuildOptions{Seed: 42}},
      runner.Job{Vertical: "saas", Options: generic.BuildOptions{Seed: 42}},
  )
*/
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/warp/synth-engine/generic"
	"github.com/warp/synth-engine/output"
	"golang.org/x/sync/errgroup"
)

// Job is one vertical to generate.
type Job struct {
	Vertical string
	Options  generic.BuildOptions
}

// Runner runs jobs with bounded parallelism.
type Runner struct {
	parallel int
	log      *slog.Logger
}

// New returns a Runner. parallel <= 0 means one goroutine per job.
func New(parallel int, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{parallel: parallel, log: log}
}

// Run generates every job and returns the datasets in job order.
func (r *Runner) Run(ctx context.Context, jobs ...Job) ([]*generic.Dataset, error) {
	// resolve everything first so a typo fails before any work starts
	assemblers := make([]*generic.Assembler, len(jobs))
	for i, job := range jobs {
		a, err := generic.NewRun(job.Vertical, job.Options, generic.WithLogger(r.log))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", job.Vertical, err)
		}
		assemblers[i] = a
	}

	g, gctx := errgroup.WithContext(ctx)
	if r.parallel > 0 {
		g.SetLimit(r.parallel)
	}

	datasets := make([]*generic.Dataset, len(jobs))
	for i := range jobs {
		g.Go(func() error {
			started := time.Now()
			ds, err := assemblers[i].Run(gctx)
			if err != nil {
				return err
			}
			datasets[i] = ds
			r.log.Debug("vertical generated", "vertical", ds.Vertical,
				"entities", ds.Total(), "duration", time.Since(started))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.log.Error("generation failed", "error", err)
		return nil, err
	}
	return datasets, nil
}

// RunAndWrite generates every job and writes them in one all-or-nothing call.
func (r *Runner) RunAndWrite(ctx context.Context, w *output.Writer, jobs ...Job) ([]output.Result, error) {
	datasets, err := r.Run(ctx, jobs...)
	if err != nil {
		return nil, err
	}
	return w.Write(datasets...)
}
