package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/synth-engine/factory"
	"github.com/warp/synth-engine/generic"
)

func verticalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verticals",
		Short: "List registered verticals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, v := range generic.ListVerticals() {
				kind := "built-in"
				if _, ok := v.(*factory.SpecVertical); ok {
					kind = "spec"
				}
				fmt.Fprintf(out, "%-16s %-9s %s\n", v.Name(), kind, v.Description())
			}
			return nil
		},
	}
}
