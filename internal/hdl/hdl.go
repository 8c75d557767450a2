// Package hdl emits the hardware-description artifacts described in
// spec.md §4.6: an instruction ROM and a data RAM VHDL document, each a
// fixed prologue/epilogue wrapped around one generated line per word. The
// emitter is pure text — bounds were already validated by the loader.
package hdl

import (
	"fmt"
	"os"
	"strings"

	"github.com/filiparag/lprsemu/internal/isa"
)

const romPrefix = `library ieee;
use ieee.std_logic_1164.all;

entity instr_rom is
	port (
		iA : in std_logic_vector(7 downto 0);
		oQ : out std_logic_vector(14 downto 0)
	);
end entity instr_rom;

architecture behavioral of instr_rom is
begin
	oQ <=
`

const romSuffix = `		"000000000000000";
end architecture;
`

const ramPrefix = `library ieee;
use ieee.std_logic_1164.all;

entity data_ram is
	port (
		iCLK : in std_logic;
		iA : in std_logic_vector(7 downto 0);
		iD : in std_logic_vector(15 downto 0);
		iWE : in std_logic;
		oQ : out std_logic_vector(15 downto 0)
	);
end entity data_ram;

architecture behavioral of data_ram is
	type mem_t is array(0 to 255) of std_logic_vector(15 downto 0);
	signal sMEM : mem_t := (others => (others => '0'));
begin
`

const ramSuffix = `	process (iCLK) is
	begin
		if rising_edge(iCLK) then
			if iWE = '1' then
				sMEM(to_integer(unsigned(iA))) <= iD;
			end if;
			oQ <= sMEM(to_integer(unsigned(iA)));
		end if;
	end process;
end architecture;
`

// EmitROM renders the instruction ROM VHDL document for program, one
// "when iA = N else" line per instruction. Debug and Nop instructions
// encode to the empty string, which spec.md §4.1 treats as an all-zero word.
func EmitROM(program []isa.Instruction) string {
	var b strings.Builder
	b.WriteString(romPrefix)
	for addr, instr := range program {
		bits := instr.Encode()
		if bits == "" {
			bits = "000000000000000"
		}
		fmt.Fprintf(&b, "\t\t\"%s\"  when iA = %d else\n", bits, addr)
	}
	b.WriteString(romSuffix)
	return b.String()
}

// EmitRAM renders the data RAM VHDL document for data, one
// "sMEM(N) <= x\"HHHH\";" line per word, lowercase hex zero-padded to 4 digits.
func EmitRAM(data []uint16) string {
	var b strings.Builder
	b.WriteString(ramPrefix)
	for addr, v := range data {
		fmt.Fprintf(&b, "\tsMEM(%d) <= x\"%04x\";\n", addr, v)
	}
	b.WriteString(ramSuffix)
	return b.String()
}

// WriteStdout writes both documents to w, separated by the comment markers
// spec.md §6 specifies for the no-out-prefix case.
func WriteStdout(w *os.File, program []isa.Instruction, data []uint16) error {
	if _, err := fmt.Fprintln(w, "-- begin instr_rom.vhd"); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, EmitROM(program)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "-- end instr_rom.vhd"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "-- begin data_ram.vhd"); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, EmitRAM(data)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "-- end data_ram.vhd")
	return err
}

// WriteFiles writes "<prefix>instr_rom.vhd" and "<prefix>data_ram.vhd".
func WriteFiles(prefix string, program []isa.Instruction, data []uint16) error {
	if err := os.WriteFile(prefix+"instr_rom.vhd", []byte(EmitROM(program)), 0o644); err != nil {
		return err
	}
	return os.WriteFile(prefix+"data_ram.vhd", []byte(EmitRAM(data)), 0o644)
}
