package machine

import (
	"fmt"
)

// unknownMnemonic is printed for opcodes that do not match any instruction.
const unknownMnemonic = "unknown"

// DisassembleInstruction formats the opcode at the given address as a single
// listing line. It never fails, unknown opcodes are shown as "unknown".
func DisassembleInstruction(address uint16, msb, lsb byte) string {
	text := unknownMnemonic
	if ins, ok := Decode(msb, lsb); ok {
		text = ins.String()
	}
	return fmt.Sprintf("$%04X: %02X%02X  %s", address, msb, lsb, text)
}

// Disassemble returns one line per 2 byte instruction in the memory range
// starting at start with the given length in bytes. The range is cut at the
// end of memory and a trailing odd byte is ignored. The machine state is not
// modified.
func (m *Machine) Disassemble(start uint16, length int) []string {
	end := min(int(start)+length, MemorySize)

	var lines []string
	for address := int(start); address+1 < end; address += opcodeSize {
		line := DisassembleInstruction(uint16(address), m.memory[address], m.memory[address+1])
		lines = append(lines, line)
	}
	return lines
}
