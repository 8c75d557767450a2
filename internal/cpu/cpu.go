// Package cpu implements the deterministic tick-based emulator described in
// spec.md §4.4: fixed-size ROM/RAM/register/flag state, single-tick and
// run-to-completion execution, breakpoints, and state-dump formatting.
package cpu

import (
	"errors"
	"fmt"
	"strings"

	"github.com/filiparag/lprsemu/internal/isa"
)

// Radix selects the display base used by Dump and the REPL's "d" command.
type Radix int

const (
	RadixUnsigned Radix = iota
	RadixSigned
	RadixHex
	RadixBinary
)

// Flags holds the three condition flags set by ALU operations and cleared by
// control flow and memory operations.
type Flags struct {
	Zero, Sign, Carry bool
}

// TickResult reports what a single Tick call did to the program counter.
type TickResult int

const (
	// TickAdvanced means pc moved forward by exactly one cell. Tick also
	// returns it together with an execution error, in which case pc has not
	// moved and still points at the failing instruction.
	TickAdvanced TickResult = iota
	// TickJumped means the executed instruction set pc directly.
	TickJumped
	// TickHalted means pc is now 256 (already halted, or just halted).
	TickHalted
	// TickStalled means pc sat at 255 with no jump — the state machine
	// describes this as "cannot advance".
	TickStalled
)

var (
	// ErrOutOfRange is returned when Load/Store's computed RAM address
	// (reg[y]) is outside [0,256). Static operand bounds are instead caught
	// at load time by Check.
	ErrOutOfRange = errors.New("cpu: operand out of range")
	// ErrStackOverflow is returned by Run when pc stalls at 255 without a jump.
	ErrStackOverflow = errors.New("cpu: stack overflow: program counter ran off the end")
	// ErrProgramTooLarge is returned by LoadROM for a program exceeding 256 cells.
	ErrProgramTooLarge = errors.New("cpu: program exceeds 256 instructions")
	// ErrDataTooLarge is returned by LoadRAM for data exceeding 256 words.
	ErrDataTooLarge = errors.New("cpu: data exceeds 256 words")
)

// CheckError reports the first ROM cell the loader's static validation
// rejected, per spec.md §4.5.
type CheckError struct {
	Address     int
	Instruction isa.Instruction
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("cpu: instruction %q at address %d is not valid", e.Instruction.String(), e.Address)
}

// CPU is the emulator's entire state. The zero value is a valid,
// freshly-constructed machine: ROM all Nop, RAM/registers/flags zero, pc 0.
type CPU struct {
	ROM         [256]isa.Instruction
	RAM         [256]uint16
	RAMInitial  [256]uint16
	Reg         [8]uint16
	Flags       Flags
	PC          int // 0..256; 256 denotes halted
	RuntimeCounter uint64
	Breakpoints [256]bool
	Radix       Radix
	Labels      map[uint16][]string
}

// New returns a freshly constructed, zero-valued CPU.
func New() *CPU {
	return &CPU{}
}

// LoadROM clears the ROM to Nop, then copies program into it.
func (c *CPU) LoadROM(program []isa.Instruction) error {
	if len(program) > 256 {
		return ErrProgramTooLarge
	}
	for i := range c.ROM {
		c.ROM[i] = isa.NopInstruction
	}
	copy(c.ROM[:], program)
	return nil
}

// LoadRAM clears RAM to zero, then copies data into it, snapshotting the
// result into RAMInitial for later Reset calls.
func (c *CPU) LoadRAM(data []uint16) error {
	if len(data) > 256 {
		return ErrDataTooLarge
	}
	for i := range c.RAM {
		c.RAM[i] = 0
		c.RAMInitial[i] = 0
	}
	copy(c.RAM[:], data)
	copy(c.RAMInitial[:], data)
	return nil
}

// ClearBreakpoints clears every breakpoint flag.
func (c *CPU) ClearBreakpoints() {
	for i := range c.Breakpoints {
		c.Breakpoints[i] = false
	}
}

// Reset restores ram from the load-time snapshot, zeros registers and
// flags, and sets pc to 0. It does not touch breakpoints or runtime_counter.
func (c *CPU) Reset() {
	c.RAM = c.RAMInitial
	c.Reg = [8]uint16{}
	c.Flags = Flags{}
	c.PC = 0
}

// SetRadix sets the display radix used by Dump.
func (c *CPU) SetRadix(r Radix) {
	c.Radix = r
}

// Check validates every ROM cell against the ISA's static operand bounds:
// register indices < 8 for ALU/Memory, addresses < 256 for ControlFlow.
// It returns the first violation found.
func (c *CPU) Check() error {
	for addr := 0; addr < len(c.ROM); addr++ {
		instr := c.ROM[addr]
		switch instr.Class() {
		case isa.ClassALU:
			if instr.Z >= 8 || instr.X >= 8 || instr.Y >= 8 {
				return &CheckError{Address: addr, Instruction: instr}
			}
		case isa.ClassMemory:
			switch instr.Op {
			case isa.OpLoad:
				if instr.Z >= 8 || instr.Y >= 8 {
					return &CheckError{Address: addr, Instruction: instr}
				}
			case isa.OpStore:
				if instr.X >= 8 || instr.Y >= 8 {
					return &CheckError{Address: addr, Instruction: instr}
				}
			}
		case isa.ClassControlFlow:
			if instr.Addr >= 256 {
				return &CheckError{Address: addr, Instruction: instr}
			}
		}
	}
	return nil
}

// LoadProgram installs program, data, and labels into the emulator, clears
// breakpoints, resets pc/regs/flags, and runs the static check — per
// spec.md §4.5. It returns success only if Check is clean.
func (c *CPU) LoadProgram(program []isa.Instruction, data []uint16, labels map[uint16][]string) error {
	if err := c.LoadROM(program); err != nil {
		return err
	}
	if err := c.LoadRAM(data); err != nil {
		return err
	}
	c.Labels = labels
	c.ClearBreakpoints()
	c.Reset()
	return c.Check()
}

// Tick executes a single instruction, per spec.md §4.4.
func (c *CPU) Tick() (TickResult, error) {
	if c.PC >= 256 {
		return TickHalted, nil
	}
	cur := c.PC
	instr := c.ROM[cur]
	err := c.execute(instr)
	c.RuntimeCounter++

	if c.PC == cur {
		if err != nil {
			return TickAdvanced, err
		}
		if cur == 255 {
			return TickStalled, nil
		}
		c.PC = cur + 1
		return TickAdvanced, nil
	}
	if c.PC >= 256 {
		return TickHalted, nil
	}
	return TickJumped, nil
}

// lastNonNopAddress returns the largest i such that ROM[i] is not Nop, or -1
// if the whole ROM is Nop.
func (c *CPU) lastNonNopAddress() int {
	for i := 255; i >= 0; i-- {
		if c.ROM[i].Op != isa.OpNop {
			return i
		}
	}
	return -1
}

// Run executes instructions in program order until pc passes the last
// non-Nop address, optionally stopping early at a breakpoint. It returns the
// number of instructions executed during this call.
func (c *CPU) Run(stopOnBreakpoint bool) (int, error) {
	end := c.lastNonNopAddress()
	if end < 0 {
		return 0, nil
	}
	initial := c.RuntimeCounter
	for c.PC <= end {
		result, err := c.Tick()
		if err != nil {
			return int(c.RuntimeCounter - initial), err
		}
		if result == TickStalled {
			return int(c.RuntimeCounter - initial), ErrStackOverflow
		}
		if result == TickHalted {
			break
		}
		if stopOnBreakpoint && c.PC < 256 && c.Breakpoints[c.PC] {
			break
		}
	}
	return int(c.RuntimeCounter - initial), nil
}

func (c *CPU) execute(instr isa.Instruction) error {
	switch instr.Class() {
	case isa.ClassNop:
		return nil
	case isa.ClassALU:
		c.executeALU(instr)
		return nil
	case isa.ClassMemory:
		return c.executeMemory(instr)
	case isa.ClassControlFlow:
		c.executeControlFlow(instr)
		return nil
	case isa.ClassDebug:
		c.executeDebug(instr)
		return nil
	}
	return nil
}

func (c *CPU) executeALU(instr isa.Instruction) {
	c.Flags = Flags{}
	var result uint16
	switch instr.Op {
	case isa.OpMov:
		result = c.Reg[instr.X]
	case isa.OpAdd:
		sum := uint32(c.Reg[instr.X]) + uint32(c.Reg[instr.Y])
		result = uint16(sum)
		c.Flags.Carry = sum > 0xFFFF
	case isa.OpSub:
		x, y := c.Reg[instr.X], c.Reg[instr.Y]
		result = x - y
		c.Flags.Carry = x < y
	case isa.OpAnd:
		result = c.Reg[instr.X] & c.Reg[instr.Y]
	case isa.OpOr:
		result = c.Reg[instr.X] | c.Reg[instr.Y]
	case isa.OpNot:
		result = ^c.Reg[instr.X]
	case isa.OpInc:
		x := c.Reg[instr.X]
		sum := uint32(x) + 1
		result = uint16(sum)
		c.Flags.Carry = sum > 0xFFFF
	case isa.OpDec:
		x := c.Reg[instr.X]
		result = x - 1
		c.Flags.Carry = x == 0
	case isa.OpShl, isa.OpAShl:
		preZ := c.Reg[instr.Z]
		c.Flags.Carry = preZ&0x8000 != 0
		result = c.Reg[instr.X] << 1
	case isa.OpShr:
		preZ := c.Reg[instr.Z]
		c.Flags.Carry = preZ&0x0001 != 0
		result = c.Reg[instr.X] >> 1
	case isa.OpAShr:
		preZ := c.Reg[instr.Z]
		c.Flags.Carry = preZ&0x0001 != 0
		result = (c.Reg[instr.X] >> 1) | (preZ & 0x8000)
	}
	c.Reg[instr.Z] = result
	c.Flags.Zero = result == 0
	c.Flags.Sign = result&0x8000 != 0
}

func (c *CPU) executeMemory(instr isa.Instruction) error {
	switch instr.Op {
	case isa.OpLoad:
		addr := c.Reg[instr.Y]
		if addr >= 256 {
			return ErrOutOfRange
		}
		c.Reg[instr.Z] = c.RAM[addr]
		c.Flags = Flags{}
	case isa.OpStore:
		addr := c.Reg[instr.Y]
		if addr >= 256 {
			return ErrOutOfRange
		}
		c.RAM[addr] = c.Reg[instr.X]
		c.Flags = Flags{}
	}
	return nil
}

func (c *CPU) executeControlFlow(instr isa.Instruction) {
	taken := false
	switch instr.Op {
	case isa.OpJmp:
		taken = true
	case isa.OpJmpZ:
		taken = c.Flags.Zero
	case isa.OpJmpS:
		taken = c.Flags.Sign
	case isa.OpJmpC:
		taken = c.Flags.Carry
	case isa.OpJmpNZ:
		taken = !c.Flags.Zero
	case isa.OpJmpNS:
		taken = !c.Flags.Sign
	case isa.OpJmpNC:
		taken = !c.Flags.Carry
	}
	if taken {
		c.PC = int(instr.Addr)
	}
	c.Flags = Flags{}
}

func (c *CPU) executeDebug(instr isa.Instruction) {
	switch instr.Op {
	case isa.OpSetReg:
		c.Reg[instr.Z] = instr.Value
	case isa.OpSetFlagZ:
		c.Flags.Zero = instr.Flag
	case isa.OpSetFlagS:
		c.Flags.Sign = instr.Flag
	case isa.OpSetFlagC:
		c.Flags.Carry = instr.Flag
	case isa.OpSetMem:
		if instr.Addr < 256 {
			c.RAM[instr.Addr] = instr.Value
		}
	case isa.OpBreakpoint:
		if instr.Addr < 256 {
			c.Breakpoints[instr.Addr] = true
		}
	case isa.OpHalt:
		c.PC = 256
	}
}

// formatValue renders a single 16-bit word per the current radix, following
// the column widths of original_source's DisplayRadix/DisplaySigned.
func (c *CPU) formatValue(v uint16) string {
	switch c.Radix {
	case RadixSigned:
		return fmt.Sprintf("%6d", int16(v))
	case RadixHex:
		return fmt.Sprintf("0x%04x", v)
	case RadixBinary:
		return fmt.Sprintf("0b%016b", v)
	default:
		return fmt.Sprintf("%5d", v)
	}
}

func lastNonZero(words []uint16) int {
	for i := len(words) - 1; i >= 0; i-- {
		if words[i] != 0 {
			return i
		}
	}
	return -1
}

// Dump renders a human-readable snapshot of machine state: registers,
// flags, program counter, runtime counter, data memory with trailing zeros
// elided, and program memory with trailing Nops elided, pc marked with
// "<=" and breakpoints marked with "(*)". The exact column layout is
// non-normative (spec.md §6); only the listed fields are guaranteed.
func (c *CPU) Dump() string {
	var b strings.Builder

	if c.PC >= 256 {
		fmt.Fprintf(&b, "pc: halted\n")
	} else {
		fmt.Fprintf(&b, "pc: %d\n", c.PC)
	}
	fmt.Fprintf(&b, "runtime_counter: %d\n", c.RuntimeCounter)
	fmt.Fprintf(&b, "flags: zero=%t sign=%t carry=%t\n", c.Flags.Zero, c.Flags.Sign, c.Flags.Carry)

	b.WriteString("registers:\n")
	for i, v := range c.Reg {
		fmt.Fprintf(&b, "  R%d = %s\n", i, c.formatValue(v))
	}

	b.WriteString("data memory:\n")
	if last := lastNonZero(c.RAM[:]); last >= 0 {
		for i := 0; i <= last; i++ {
			fmt.Fprintf(&b, "  [%d] = %s\n", i, c.formatValue(c.RAM[i]))
		}
	}

	b.WriteString("program memory:\n")
	if last := c.lastNonNopAddress(); last >= 0 {
		for i := 0; i <= last; i++ {
			marker := "   "
			if i == c.PC {
				marker = "<= "
			}
			bp := ""
			if c.Breakpoints[i] {
				bp = " (*)"
			}
			labelSuffix := ""
			if names, ok := c.Labels[uint16(i)]; ok && len(names) > 0 {
				labelSuffix = "  ; " + strings.Join(names, ", ")
			}
			fmt.Fprintf(&b, "%s%3d: %s%s%s\n", marker, i, c.ROM[i].String(), bp, labelSuffix)
		}
	}

	return b.String()
}
