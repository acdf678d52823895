package machine

import (
	"fmt"
)

// IndexFlagMode selects how "add I, Vx" sets VF.
type IndexFlagMode int

const (
	// IndexFlagResult sets VF when the incremented index register exceeds 8 bits.
	IndexFlagResult IndexFlagMode = iota
	// IndexFlagLegacy reproduces the historical check that adds Vx a second time
	// to the already incremented index register before comparing.
	IndexFlagLegacy
	// IndexFlagUnchanged leaves VF untouched.
	IndexFlagUnchanged
)

func (mode IndexFlagMode) String() string {
	switch mode {
	case IndexFlagResult:
		return "result"
	case IndexFlagLegacy:
		return "legacy"
	case IndexFlagUnchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("IndexFlagMode(%d)", int(mode))
	}
}

// advance moves the program counter forward by the given number of instructions.
func (m *Machine) advance(instructions uint16) error {
	return m.jump(m.pc + instructions*opcodeSize)
}

func (m *Machine) skipIf(condition bool) error {
	if condition {
		return m.advance(2)
	}
	return m.advance(1)
}

func (m *Machine) jump(target uint16) error {
	if err := checkProgramCounter(target); err != nil {
		return err
	}
	m.pc = target
	return nil
}

// checkProgramCounter verifies that a full instruction can be fetched at target.
func checkProgramCounter(target uint16) error {
	if int(target) > lastInstructionAddress {
		return fmt.Errorf("%w: program counter $%04X", ErrMemoryOutOfBounds, target)
	}
	return nil
}

// checkIndexRange verifies that count bytes starting at the index register are
// inside of memory.
func (m *Machine) checkIndexRange(count int) error {
	if int(m.i)+count > MemorySize {
		return fmt.Errorf("%w: %d bytes at index $%04X", ErrMemoryOutOfBounds, count, m.i)
	}
	return nil
}

func (m *Machine) setFlag(set bool) {
	if set {
		m.v[flagRegister] = 1
	} else {
		m.v[flagRegister] = 0
	}
}

func execCls(m *Machine, _ fields) error {
	m.screen = Frame{}
	m.redraw = true
	return m.advance(1)
}

// execRet resumes after the call instruction, the stack holds the address of
// the call itself.
func execRet(m *Machine, _ fields) error {
	if m.sp == 0 {
		return ErrStackUnderflow
	}
	target := m.stack[m.sp-1] + opcodeSize
	if err := checkProgramCounter(target); err != nil {
		return err
	}
	m.sp--
	m.pc = target
	return nil
}

func execJump(m *Machine, f fields) error {
	return m.jump(f.nnn)
}

func execCall(m *Machine, f fields) error {
	if int(m.sp) >= StackSize {
		return ErrStackOverflow
	}
	callAddress := m.pc
	if err := m.jump(f.nnn); err != nil {
		return err
	}
	m.stack[m.sp] = callAddress
	m.sp++
	return nil
}

func execSkipEqualByte(m *Machine, f fields) error {
	return m.skipIf(m.v[f.x] == f.kk)
}

func execSkipNotEqualByte(m *Machine, f fields) error {
	return m.skipIf(m.v[f.x] != f.kk)
}

func execSkipEqualRegister(m *Machine, f fields) error {
	return m.skipIf(m.v[f.x] == m.v[f.y])
}

func execSkipNotEqualRegister(m *Machine, f fields) error {
	return m.skipIf(m.v[f.x] != m.v[f.y])
}

func execLoadByte(m *Machine, f fields) error {
	m.v[f.x] = f.kk
	return m.advance(1)
}

func execAddByte(m *Machine, f fields) error {
	m.v[f.x] += f.kk
	return m.advance(1)
}

func execLoadRegister(m *Machine, f fields) error {
	m.v[f.x] = m.v[f.y]
	return m.advance(1)
}

func execOr(m *Machine, f fields) error {
	m.v[f.x] |= m.v[f.y]
	return m.advance(1)
}

func execAnd(m *Machine, f fields) error {
	m.v[f.x] &= m.v[f.y]
	return m.advance(1)
}

func execXor(m *Machine, f fields) error {
	m.v[f.x] ^= m.v[f.y]
	return m.advance(1)
}

// The arithmetic handlers below compute from the operand values before any
// write, then set VF and store the result last. With VF as the destination the
// result wins over the flag.

func execAddRegister(m *Machine, f fields) error {
	sum := uint16(m.v[f.x]) + uint16(m.v[f.y])
	m.setFlag(sum > 0xFF)
	m.v[f.x] = byte(sum)
	return m.advance(1)
}

func execSub(m *Machine, f fields) error {
	vx, vy := m.v[f.x], m.v[f.y]
	m.setFlag(vx > vy)
	m.v[f.x] = vx - vy
	return m.advance(1)
}

// execSubReverse stores Vy-Vx into Vy.
func execSubReverse(m *Machine, f fields) error {
	vx, vy := m.v[f.x], m.v[f.y]
	m.setFlag(vy > vx)
	m.v[f.y] = vy - vx
	return m.advance(1)
}

func execShiftRight(m *Machine, f fields) error {
	vx := m.v[f.x]
	m.v[flagRegister] = vx & 0x01
	m.v[f.x] = vx >> 1
	return m.advance(1)
}

func execShiftLeft(m *Machine, f fields) error {
	vx := m.v[f.x]
	m.v[flagRegister] = vx >> 7
	m.v[f.x] = vx << 1
	return m.advance(1)
}

func execLoadIndex(m *Machine, f fields) error {
	m.i = f.nnn
	return m.advance(1)
}

func execJumpOffset(m *Machine, f fields) error {
	return m.jump(uint16(m.v[0]) + f.nnn)
}

func execRandom(m *Machine, f fields) error {
	m.v[f.x] = byte(m.random.IntN(256)) & f.kk
	return m.advance(1)
}

// execDraw XORs an 8 pixel wide sprite of n rows read from memory at I onto the
// screen. Coordinates wrap around the screen edges, VF reports whether any set
// pixel was erased.
func execDraw(m *Machine, f fields) error {
	height := int(f.n)
	if err := m.checkIndexRange(height); err != nil {
		return err
	}

	originX, originY := int(m.v[f.x]), int(m.v[f.y])
	collision := false

	for row := range height {
		sprite := m.memory[int(m.i)+row]
		y := (originY + row) % ScreenHeight

		for column := range 8 {
			if sprite&(0x80>>column) == 0 {
				continue
			}

			x := (originX + column) % ScreenWidth
			pixel := &m.screen[y*ScreenWidth+x]
			if *pixel == 1 {
				collision = true
			}
			*pixel ^= 1
		}
	}

	m.setFlag(collision)
	m.redraw = true
	return m.advance(1)
}

// Only the low nibble of Vx selects the key.
func execSkipKeyPressed(m *Machine, f fields) error {
	return m.skipIf(m.keys[m.v[f.x]&0x0F])
}

func execSkipKeyNotPressed(m *Machine, f fields) error {
	return m.skipIf(!m.keys[m.v[f.x]&0x0F])
}

func execLoadDelay(m *Machine, f fields) error {
	m.v[f.x] = m.delayTimer
	return m.advance(1)
}

// execWaitKey suspends execution until SetKey reports a key press. The program
// counter already points to the next instruction while waiting.
func execWaitKey(m *Machine, f fields) error {
	if err := m.advance(1); err != nil {
		return err
	}
	m.awaitingKey = true
	m.awaitingRegister = f.x
	return nil
}

func execSetDelay(m *Machine, f fields) error {
	m.delayTimer = m.v[f.x]
	return m.advance(1)
}

func execSetSound(m *Machine, f fields) error {
	m.soundTimer = m.v[f.x]
	return m.advance(1)
}

func execAddIndex(m *Machine, f fields) error {
	vx := uint16(m.v[f.x])
	m.i += vx

	switch m.indexFlag {
	case IndexFlagResult:
		m.setFlag(m.i > 0xFF)
	case IndexFlagLegacy:
		m.setFlag(m.i+vx > 0xFF)
	case IndexFlagUnchanged:
	}
	return m.advance(1)
}

func execLoadFont(m *Machine, f fields) error {
	m.i = FontAddress + fontSpriteSize*uint16(m.v[f.x])
	return m.advance(1)
}

func execStoreBCD(m *Machine, f fields) error {
	if err := m.checkIndexRange(3); err != nil {
		return err
	}

	value := m.v[f.x]
	m.memory[m.i] = value / 100
	m.memory[m.i+1] = value / 10 % 10
	m.memory[m.i+2] = value % 10
	return m.advance(1)
}

func execStoreRegisters(m *Machine, f fields) error {
	count := int(f.x) + 1
	if err := m.checkIndexRange(count); err != nil {
		return err
	}

	copy(m.memory[m.i:], m.v[:count])
	m.i += uint16(count)
	return m.advance(1)
}

func execLoadRegisters(m *Machine, f fields) error {
	count := int(f.x) + 1
	if err := m.checkIndexRange(count); err != nil {
		return err
	}

	copy(m.v[:count], m.memory[m.i:])
	m.i += uint16(count)
	return m.advance(1)
}
