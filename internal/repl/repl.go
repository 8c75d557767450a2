// Package repl implements the line-oriented debugger command table from
// spec.md §6, dispatching onto internal/cpu and internal/asm.
// The REPL itself is the one explicitly named external-collaborator piece
// of the system (spec.md §1); this package is the shared dispatch logic a
// thin stdin/stdout front end (cmd/debugger) drives.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/filiparag/lprsemu/internal/asm"
	"github.com/filiparag/lprsemu/internal/cpu"
	"github.com/filiparag/lprsemu/internal/diag"
	"github.com/filiparag/lprsemu/internal/isa"
)

// benchmarkProgram is a tight decrement-and-branch loop used by the "e"
// command to estimate MIPS, in the spirit of original_source's asm::BENCHMARK
// (supplemented per SPEC_FULL.md §3 — the distilled spec names the command
// but not the program).
var benchmarkProgram = []isa.Instruction{
	isa.SetReg(0, 0xffff), // 0: reg0 = 0xffff
	isa.Dec(0, 0),         // 1: reg0 -= 1
	isa.JmpNZ(1),          // 2: loop while reg0 != 0
	isa.Halt(),            // 3
}

// REPL holds the one Emulator the driver owns (spec.md §9: "The REPL holds
// exactly one Emulator").
type REPL struct {
	name   string
	cpu    *cpu.CPU
	out    io.Writer
	in     *bufio.Reader
	logger *diag.Logger
}

// New constructs a REPL over a fresh CPU.
func New(name string, out io.Writer, in io.Reader, logger *diag.Logger) *REPL {
	return &REPL{
		name:   name,
		cpu:    cpu.New(),
		out:    out,
		in:     bufio.NewReader(in),
		logger: logger,
	}
}

// Prompt returns the "<name> >> " prompt string spec.md §6 specifies.
func (r *REPL) Prompt() string {
	return fmt.Sprintf("%s >> ", r.name)
}

// Run drives the read-dispatch loop until EOF.
func (r *REPL) Run() {
	for {
		fmt.Fprint(r.out, r.Prompt())
		line, err := r.in.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		r.Dispatch(strings.TrimSpace(line))
	}
}

// Dispatch executes a single REPL command line. Unknown commands and
// argument errors are reported via the logger but never stop the loop, per
// spec.md §6.
func (r *REPL) Dispatch(line string) {
	fields := strings.Fields(line)
	cmd := ""
	if len(fields) > 0 {
		cmd = fields[0]
	}
	args := fields[1:]

	switch cmd {
	case "p", "print":
		fmt.Fprint(r.out, r.cpu.Dump())
	case "l":
		r.cmdLoad(args)
	case "d":
		r.cmdRadix(args)
	case "r":
		r.cmdRun(true)
	case "ra":
		r.cmdRun(false)
	case "s", "":
		r.cmdStep()
	case "b":
		r.cmdBreakpoint(args)
	case "bc":
		r.cpu.ClearBreakpoints()
	case "j":
		r.cmdJump(args)
	case "x":
		r.cpu.Reset()
	case "e":
		r.cmdBenchmark()
	case "h":
		r.cmdHelp()
	default:
		r.logger.Warn("unknown command", "command", cmd)
	}
}

func (r *REPL) cmdLoad(args []string) {
	if len(args) != 1 {
		r.logger.Warn("l requires exactly one path argument")
		return
	}
	prog, err := asm.ParseFile(args[0])
	if err != nil {
		r.logger.Error("failed to parse source", err)
		return
	}
	if err := r.cpu.LoadProgram(prog.Instructions, prog.Data, prog.Labels); err != nil {
		r.logger.Error("failed to load program", err)
		return
	}
	fmt.Fprintf(r.out, "loaded %s\n", args[0])
}

func (r *REPL) cmdRadix(args []string) {
	if len(args) != 1 {
		r.logger.Warn("d requires one of u|s|x|b")
		return
	}
	switch args[0] {
	case "u":
		r.cpu.SetRadix(cpu.RadixUnsigned)
	case "s":
		r.cpu.SetRadix(cpu.RadixSigned)
	case "x":
		r.cpu.SetRadix(cpu.RadixHex)
	case "b":
		r.cpu.SetRadix(cpu.RadixBinary)
	default:
		r.logger.Warn("unknown radix", "radix", args[0])
	}
}

func (r *REPL) cmdRun(stopOnBreakpoint bool) {
	n, err := r.cpu.Run(stopOnBreakpoint)
	if err != nil {
		r.logger.Error("run stopped", err)
	}
	fmt.Fprintf(r.out, "executed %d instructions\n", n)
}

func (r *REPL) cmdStep() {
	_, err := r.cpu.Tick()
	if err != nil {
		r.logger.Error("step failed", err)
	}
}

func (r *REPL) cmdBreakpoint(args []string) {
	addr, ok := r.parseAddress(args, "b")
	if !ok {
		return
	}
	r.cpu.Breakpoints[addr] = !r.cpu.Breakpoints[addr]
}

func (r *REPL) cmdJump(args []string) {
	addr, ok := r.parseAddress(args, "j")
	if !ok {
		return
	}
	r.cpu.PC = int(addr)
}

func (r *REPL) parseAddress(args []string, cmd string) (uint16, bool) {
	if len(args) != 1 {
		r.logger.Warn(cmd + " requires exactly one numeric address argument")
		return 0, false
	}
	n, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil || n >= 256 {
		r.logger.Error(cmd+": invalid address", err)
		return 0, false
	}
	return uint16(n), true
}

func (r *REPL) cmdBenchmark() {
	c := cpu.New()
	if err := c.LoadProgram(benchmarkProgram, nil, nil); err != nil {
		r.logger.Error("failed to load benchmark", err)
		return
	}
	start := time.Now()
	n, err := c.Run(false)
	elapsed := time.Since(start)
	if err != nil {
		r.logger.Error("benchmark run failed", err)
		return
	}
	mips := float64(n) / elapsed.Seconds() / 1e6
	fmt.Fprintf(r.out, "Emulation speed: %.2f MIPS\n", mips)
}

func (r *REPL) cmdHelp() {
	fmt.Fprint(r.out, helpText)
}

const helpText = `p / print      dump state
l <path>       load a new source file
d u|s|x|b      set display radix
r              run until next breakpoint
ra             run to end
s (or empty)   step one
b <n>          toggle breakpoint at address n
bc             clear all breakpoints
j <n>          set pc to n
x              reset (ram snapshot, regs, flags, pc=0)
e              run a built-in benchmark program and print MIPS
h              help
`
