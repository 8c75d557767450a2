// Command debugger is the interactive line-oriented REPL front end over the
// emulator, per spec.md §6's debugger REPL contract.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/filiparag/lprsemu/internal/diag"
	"github.com/filiparag/lprsemu/internal/repl"
)

func main() {
	logger := diag.New()
	defer logger.Sync()

	rootCmd := &cobra.Command{
		Use:   "debugger [<source>]",
		Short: "Interactive step/run/breakpoint debugger for the CPU emulator",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := repl.New("lprsemu", os.Stdout, os.Stdin, logger)
			if len(args) == 1 {
				r.Dispatch("l " + args[0])
			}
			r.Run()
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := rootCmd.Execute(); err != nil {
		logger.Error("debugger failed", err)
		os.Exit(1)
	}
}
