package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/synth-engine/factory"
	"github.com/warp/synth-engine/generic"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <spec file>",
		Short: "Check a custom vertical spec without registering it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := factory.ParseFile(args[0])
			if err != nil {
				return err
			}
			v, err := factory.NewSpecVertical(spec)
			if err != nil {
				return err
			}
			cfg, _, err := v.Build(generic.BuildOptions{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d stage(s), %d month(s) from %s\n",
				v.Name(), len(cfg.Stages), cfg.Periods, generic.MonthKey(cfg.Start))
			return nil
		},
	}
}
