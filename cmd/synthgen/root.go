package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newRootCmd builds a fresh command tree; tests run it with their own args.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "synthgen",
		Short: "synthgen - synthetic payments dataset generator",
		Long: `synthgen simulates businesses month by month through their lifecycle
stages and writes the resulting customers, payments, disputes and other
objects as deterministic JSON collections.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(generateCmd())
	root.AddCommand(verticalsCmd())
	root.AddCommand(validateCmd())
	return root
}

// Execute runs the root command
func Execute(version string) error {
	root := newRootCmd()
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
