package machine

import (
	"github.com/retroenv/retrogolib/arch/cpu/chip8"
)

// Instruction is a decoded opcode. It exposes the instruction identity and its
// control flow class for disassemblers and tracers.
type Instruction struct {
	op     opcode
	fields fields
	word   uint16
}

// Decode looks up the opcode formed by the two bytes in the instruction table.
// It returns false for opcodes that do not match any instruction.
func Decode(msb, lsb byte) (Instruction, bool) {
	op, ok := lookup(msb, lsb)
	if !ok {
		return Instruction{}, false
	}
	return Instruction{
		op:     op,
		fields: decodeFields(msb, lsb),
		word:   uint16(msb)<<8 | uint16(lsb),
	}, true
}

// Name returns the instruction mnemonic.
func (i Instruction) Name() string {
	if i.op.ins == nil {
		return ""
	}
	return i.op.ins.Name
}

// Operands returns the formatted operands, empty for instructions without operands.
func (i Instruction) Operands() string {
	if i.op.operands == nil {
		return ""
	}
	return i.op.operands(i.fields)
}

// String returns the mnemonic followed by the operands.
func (i Instruction) String() string {
	operands := i.Operands()
	if operands == "" {
		return i.Name()
	}
	return i.Name() + " " + operands
}

// Opcode returns the 16 bit opcode.
func (i Instruction) Opcode() uint16 {
	return i.word
}

// IsCall returns true if the instruction is a subroutine call.
func (i Instruction) IsCall() bool {
	return i.op.ins == chip8.CallInst
}

// IsJump returns true for both the absolute and the V0 relative jump.
func (i Instruction) IsJump() bool {
	return i.op.ins == chip8.JpInst
}

// IsIndirectJump returns true for "jp V0, addr" whose target is only known at runtime.
func (i Instruction) IsIndirectJump() bool {
	return i.IsJump() && i.word&0xF000 == 0xB000
}

// IsReturn returns true if the instruction returns from a subroutine.
func (i Instruction) IsReturn() bool {
	return i.op.ins == chip8.RetInst
}

// IsSkip returns true if the instruction conditionally skips the next instruction.
func (i Instruction) IsSkip() bool {
	if i.op.ins == nil {
		return false
	}
	return chip8.SkipInstructions.Contains(i.op.ins.Name)
}

// IsDataReference returns true for "ld I, addr" which points the index register
// at sprite or data bytes.
func (i Instruction) IsDataReference() bool {
	return i.op.ins == chip8.LdInst && i.word&0xF000 == 0xA000
}

// Target returns the 12 bit address of jumps, calls and index loads.
func (i Instruction) Target() (uint16, bool) {
	switch {
	case i.IsIndirectJump():
		return 0, false
	case i.IsJump(), i.IsCall(), i.IsDataReference():
		return i.fields.nnn, true
	default:
		return 0, false
	}
}
