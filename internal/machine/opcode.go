package machine

import (
	"fmt"

	"github.com/retroenv/retrogolib/arch/cpu/chip8"
)

// opcodeSize is the size of CHIP-8 instructions in bytes.
const opcodeSize = 2

// fields are the bit fields of an opcode. The primary family nibble is
// implicit in the table entry that matched.
type fields struct {
	x   uint8  // register index, bits 8-11
	y   uint8  // register index, bits 4-7
	n   uint8  // 4 bit immediate
	kk  byte   // 8 bit immediate
	nnn uint16 // 12 bit address or immediate
}

func decodeFields(msb, lsb byte) fields {
	return fields{
		x:   msb & 0x0F,
		y:   lsb >> 4,
		n:   lsb & 0x0F,
		kk:  lsb,
		nnn: uint16(msb&0x0F)<<8 | uint16(lsb),
	}
}

// opcode is a table entry matching all opcodes where word&mask == value.
type opcode struct {
	mask     uint16
	value    uint16
	ins      *chip8.Instruction
	execute  func(m *Machine, f fields) error
	operands func(f fields) string
}

// opcodes is indexed by the top nibble of the opcode. The family 0 entries only
// match on the low nibble, so 0000 clears the screen like 00E0.
var opcodes = [16][]opcode{
	0x0: {
		{mask: 0xF00F, value: 0x0000, ins: chip8.ClsInst, execute: execCls, operands: noOperands},
		{mask: 0xF00F, value: 0x000E, ins: chip8.RetInst, execute: execRet, operands: noOperands},
	},
	0x1: {{mask: 0xF000, value: 0x1000, ins: chip8.JpInst, execute: execJump, operands: addressOperands}},
	0x2: {{mask: 0xF000, value: 0x2000, ins: chip8.CallInst, execute: execCall, operands: addressOperands}},
	0x3: {{mask: 0xF000, value: 0x3000, ins: chip8.SeInst, execute: execSkipEqualByte, operands: registerByteOperands}},
	0x4: {{mask: 0xF000, value: 0x4000, ins: chip8.SneInst, execute: execSkipNotEqualByte, operands: registerByteOperands}},
	0x5: {{mask: 0xF00F, value: 0x5000, ins: chip8.SeInst, execute: execSkipEqualRegister, operands: registerPairOperands}},
	0x6: {{mask: 0xF000, value: 0x6000, ins: chip8.LdInst, execute: execLoadByte, operands: registerByteOperands}},
	0x7: {{mask: 0xF000, value: 0x7000, ins: chip8.AddInst, execute: execAddByte, operands: registerByteOperands}},
	0x8: {
		{mask: 0xF00F, value: 0x8000, ins: chip8.LdInst, execute: execLoadRegister, operands: registerPairOperands},
		{mask: 0xF00F, value: 0x8001, ins: chip8.OrInst, execute: execOr, operands: registerPairOperands},
		{mask: 0xF00F, value: 0x8002, ins: chip8.AndInst, execute: execAnd, operands: registerPairOperands},
		{mask: 0xF00F, value: 0x8003, ins: chip8.XorInst, execute: execXor, operands: registerPairOperands},
		{mask: 0xF00F, value: 0x8004, ins: chip8.AddInst, execute: execAddRegister, operands: registerPairOperands},
		{mask: 0xF00F, value: 0x8005, ins: chip8.SubInst, execute: execSub, operands: registerPairOperands},
		{mask: 0xF00F, value: 0x8006, ins: chip8.ShrInst, execute: execShiftRight, operands: registerOperands},
		{mask: 0xF00F, value: 0x8007, ins: chip8.SubnInst, execute: execSubReverse, operands: registerPairOperands},
		{mask: 0xF00F, value: 0x800E, ins: chip8.ShlInst, execute: execShiftLeft, operands: registerOperands},
	},
	0x9: {{mask: 0xF00F, value: 0x9000, ins: chip8.SneInst, execute: execSkipNotEqualRegister, operands: registerPairOperands}},
	0xA: {{mask: 0xF000, value: 0xA000, ins: chip8.LdInst, execute: execLoadIndex, operands: indexAddressOperands}},
	0xB: {{mask: 0xF000, value: 0xB000, ins: chip8.JpInst, execute: execJumpOffset, operands: offsetAddressOperands}},
	0xC: {{mask: 0xF000, value: 0xC000, ins: chip8.RndInst, execute: execRandom, operands: registerByteOperands}},
	0xD: {{mask: 0xF000, value: 0xD000, ins: chip8.DrwInst, execute: execDraw, operands: drawOperands}},
	0xE: {
		{mask: 0xF0FF, value: 0xE09E, ins: chip8.SkpInst, execute: execSkipKeyPressed, operands: registerOperands},
		{mask: 0xF0FF, value: 0xE0A1, ins: chip8.SknpInst, execute: execSkipKeyNotPressed, operands: registerOperands},
	},
	0xF: {
		{mask: 0xF0FF, value: 0xF007, ins: chip8.LdInst, execute: execLoadDelay, operands: fixedOperands("V%X, DT")},
		{mask: 0xF0FF, value: 0xF00A, ins: chip8.LdInst, execute: execWaitKey, operands: fixedOperands("V%X, K")},
		{mask: 0xF0FF, value: 0xF015, ins: chip8.LdInst, execute: execSetDelay, operands: fixedOperands("DT, V%X")},
		{mask: 0xF0FF, value: 0xF018, ins: chip8.LdInst, execute: execSetSound, operands: fixedOperands("ST, V%X")},
		{mask: 0xF0FF, value: 0xF01E, ins: chip8.AddInst, execute: execAddIndex, operands: fixedOperands("I, V%X")},
		{mask: 0xF0FF, value: 0xF029, ins: chip8.LdInst, execute: execLoadFont, operands: fixedOperands("F, V%X")},
		{mask: 0xF0FF, value: 0xF033, ins: chip8.LdInst, execute: execStoreBCD, operands: fixedOperands("B, V%X")},
		{mask: 0xF0FF, value: 0xF055, ins: chip8.LdInst, execute: execStoreRegisters, operands: fixedOperands("[I], V%X")},
		{mask: 0xF0FF, value: 0xF065, ins: chip8.LdInst, execute: execLoadRegisters, operands: fixedOperands("V%X, [I]")},
	},
}

// sequential returns true for instructions that always continue with the
// next instruction, which excludes jumps, calls, returns and skips.
func (op opcode) sequential() bool {
	switch op.ins {
	case chip8.JpInst, chip8.CallInst, chip8.RetInst:
		return false
	}
	return !chip8.SkipInstructions.Contains(op.ins.Name)
}

// lookup returns the table entry matching the opcode.
func lookup(msb, lsb byte) (opcode, bool) {
	word := uint16(msb)<<8 | uint16(lsb)
	for _, op := range opcodes[msb>>4] {
		if word&op.mask == op.value {
			return op, true
		}
	}
	return opcode{}, false
}

func noOperands(fields) string {
	return ""
}

func addressOperands(f fields) string {
	return fmt.Sprintf("$%03X", f.nnn)
}

func offsetAddressOperands(f fields) string {
	return fmt.Sprintf("V0, $%03X", f.nnn)
}

func indexAddressOperands(f fields) string {
	return fmt.Sprintf("I, $%03X", f.nnn)
}

func registerOperands(f fields) string {
	return fmt.Sprintf("V%X", f.x)
}

func registerByteOperands(f fields) string {
	return fmt.Sprintf("V%X, $%02X", f.x, f.kk)
}

func registerPairOperands(f fields) string {
	return fmt.Sprintf("V%X, V%X", f.x, f.y)
}

func drawOperands(f fields) string {
	return fmt.Sprintf("V%X, V%X, $%X", f.x, f.y, f.n)
}

// fixedOperands returns an operand formatter for the F family instructions
// that only differ in the special register they name.
func fixedOperands(format string) func(f fields) string {
	return func(f fields) string {
		return fmt.Sprintf(format, f.x)
	}
}
