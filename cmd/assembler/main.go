// Command assembler parses an assembly source file and emits a pair of
// VHDL hardware artifacts, per spec.md §6's assembler CLI contract.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/filiparag/lprsemu/internal/asm"
	"github.com/filiparag/lprsemu/internal/cpu"
	"github.com/filiparag/lprsemu/internal/diag"
	"github.com/filiparag/lprsemu/internal/hdl"
)

func main() {
	logger := diag.New()
	defer logger.Sync()

	rootCmd := &cobra.Command{
		Use:   "assembler <source> [<out-prefix>]",
		Short: "Assemble a source file and emit instr_rom.vhd / data_ram.vhd",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return assemble(args[0], args[1:], logger)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := rootCmd.Execute(); err != nil {
		logger.Error("assembler failed", err)
		os.Exit(1)
	}
}

func assemble(source string, rest []string, logger *diag.Logger) error {
	program, err := asm.ParseFile(source)
	if err != nil {
		return err
	}

	c := cpu.New()
	if err := c.LoadProgram(program.Instructions, program.Data, program.Labels); err != nil {
		return err
	}

	if len(rest) == 1 {
		return hdl.WriteFiles(rest[0], program.Instructions, program.Data)
	}
	return hdl.WriteStdout(os.Stdout, program.Instructions, program.Data)
}
