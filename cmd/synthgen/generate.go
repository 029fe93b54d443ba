package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/warp/synth-engine/config"
	"github.com/warp/synth-engine/factory"
	"github.com/warp/synth-engine/generic"
	"github.com/warp/synth-engine/logger"
	"github.com/warp/synth-engine/output"
	"github.com/warp/synth-engine/runner"
)

type generateFlags struct {
	configPath string
	verticals  []string
	specs      []string
	seed       uint64
	months     int
	start      string
	currency   string
	scale      float64
	out        string
	parallel   int
	logLevel   string
}

func generateCmd() *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate verticals into an output directory",
		Long: `Generate one dataset per vertical and write <out>/<vertical>/<collection>.json
plus summary.json. Either every vertical is written or none is.

Flags override the config file and SYNTHGEN_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML config file")
	cmd.Flags().StringSliceVarP(&f.verticals, "vertical", "V", nil, `Vertical to generate, repeatable; "all" for every registered one`)
	cmd.Flags().StringSliceVar(&f.specs, "spec", nil, "Custom vertical spec file (.yaml, .yml, .json), repeatable")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "Random seed")
	cmd.Flags().IntVar(&f.months, "months", 0, "Number of simulated months (0 = vertical default)")
	cmd.Flags().StringVar(&f.start, "start", "", "First month, YYYY-MM")
	cmd.Flags().StringVar(&f.currency, "currency", "", "Currency code (default per vertical)")
	cmd.Flags().Float64Var(&f.scale, "scale", 0, "Volume multiplier (0 = 1.0)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output directory")
	cmd.Flags().IntVarP(&f.parallel, "parallel", "p", 0, "Verticals generated at once (0 = all)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")

	return cmd
}

func runGenerate(cmd *cobra.Command, f generateFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = f.seed
	}
	if flags.Changed("months") {
		cfg.Months = f.months
	}
	if flags.Changed("start") {
		cfg.StartDate = f.start
	}
	if flags.Changed("out") {
		cfg.OutputDir = f.out
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if f.scale < 0 {
		return &generic.ConfigurationError{Field: "scale", Reason: "must not be negative"}
	}

	// stdout carries the report
	logger.L = logger.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	opts, err := cfg.BuildOptions()
	if err != nil {
		return err
	}
	opts.Currency = f.currency
	opts.Scale = f.scale

	names, err := selectVerticals(f.verticals, f.specs)
	if err != nil {
		return err
	}
	jobs := make([]runner.Job, len(names))
	for i, name := range names {
		jobs[i] = runner.Job{Vertical: name, Options: opts}
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := runner.New(f.parallel, logger.L).RunAndWrite(ctx, output.NewWriter(cfg.OutputDir, logger.L), jobs...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, res := range results {
		total := 0
		for name, n := range res.Files {
			if name != output.SummaryFile {
				total += n
			}
		}
		fmt.Fprintf(out, "%-16s %8d entities  %s\n", res.Vertical, total, res.Dir)
	}
	abs, _ := filepath.Abs(cfg.OutputDir)
	fmt.Fprintf(out, "wrote %d vertical(s) to %s\n", len(results), abs)
	return nil
}

// selectVerticals registers spec files and resolves the vertical list.
// Without --vertical, the spec files are generated; without either, nothing is.
func selectVerticals(verticals, specFiles []string) ([]string, error) {
	var fromSpecs []string
	for _, path := range specFiles {
		spec, err := factory.ParseFile(path)
		if err != nil {
			return nil, err
		}
		v, err := factory.Register(spec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		fromSpecs = append(fromSpecs, v.Name())
	}

	if len(verticals) == 0 {
		verticals = fromSpecs
	}
	if len(verticals) == 0 {
		return nil, &generic.ConfigurationError{Field: "vertical", Reason: `no vertical selected, use --vertical, "--vertical all" or --spec`}
	}

	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, name := range verticals {
		if name == "all" {
			for _, v := range generic.ListVerticals() {
				add(v.Name())
			}
			continue
		}
		if _, err := generic.LookupVertical(name); err != nil {
			return nil, err
		}
		add(name)
	}
	return names, nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
