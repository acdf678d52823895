package machine

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

// fixedRandom returns the same value for every random number request.
type fixedRandom int

func (r fixedRandom) IntN(n int) int {
	return int(r) % n
}

func newTestMachine(t *testing.T, program ...byte) *Machine {
	t.Helper()

	m := New(WithRandom(fixedRandom(0xFF)))
	assert.NoError(t, m.Load(program))
	return m
}

func stepN(t *testing.T, m *Machine, count int) {
	t.Helper()

	for range count {
		_, err := m.Step()
		assert.NoError(t, err)
	}
}

func TestNew(t *testing.T) {
	m := New()

	assert.Equal(t, uint16(ProgramStart), m.pc)
	assert.Equal(t, uint8(0), m.sp)
	assert.Equal(t, uint16(0), m.i)
	assert.Equal(t, uint8(0), m.DelayTimer())
	assert.Equal(t, uint8(0), m.SoundTimer())
	assert.False(t, m.ShouldRedraw())
	assert.NotNil(t, m.random)
	assert.Equal(t, fontSet[:], m.memory[FontAddress:FontAddress+len(fontSet)])

	for address := FontAddress + len(fontSet); address < MemorySize; address++ {
		if m.memory[address] != 0 {
			t.Fatalf("memory at $%04X not zeroed", address)
		}
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		program []byte
		wantErr error
	}{
		{"single byte", []byte{0x12}, nil},
		{"maximum size", make([]byte, MaxProgramSize), nil},
		{"empty", nil, ErrEmptyProgram},
		{"too large", make([]byte, MaxProgramSize+1), ErrProgramTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			err := m.Load(tt.program)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			assert.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))

			var loadErr *LoadError
			assert.True(t, errors.As(err, &loadErr))
			assert.Equal(t, len(tt.program), loadErr.Size)
		})
	}
}

func TestLoad_KeepsRegisters(t *testing.T) {
	m := newTestMachine(t, 0x60, 0x05)
	stepN(t, m, 1)

	assert.NoError(t, m.Load([]byte{0xAB, 0xCD}))
	assert.Equal(t, uint16(0x202), m.pc)
	assert.Equal(t, byte(0x05), m.v[0])
	assert.Equal(t, byte(0xAB), m.memory[ProgramStart])
	assert.Equal(t, byte(0xCD), m.memory[ProgramStart+1])
}

func TestScenario_AddWithoutCarry(t *testing.T) {
	m := newTestMachine(t, 0x60, 0x05, 0x61, 0x03, 0x80, 0x14, 0x00, 0x00)

	stepN(t, m, 1)
	assert.Equal(t, byte(5), m.v[0])
	stepN(t, m, 1)
	assert.Equal(t, byte(3), m.v[1])
	stepN(t, m, 1)
	assert.Equal(t, byte(8), m.v[0])
	assert.Equal(t, byte(0), m.v[0xF])
	assert.Equal(t, uint16(0x206), m.pc)
	assert.False(t, m.ShouldRedraw())

	m.screen[10] = 1
	stepN(t, m, 1)
	assert.True(t, m.ShouldRedraw())
	assert.Equal(t, Frame{}, m.Framebuffer())
	assert.Equal(t, uint16(0x208), m.pc)
}

func TestWaitKey(t *testing.T) {
	m := newTestMachine(t, 0xF2, 0x0A, 0x63, 0x01)

	outcome, err := m.Step()
	assert.NoError(t, err)
	assert.Equal(t, Suspended, outcome)

	register, waiting := m.AwaitingKey()
	assert.True(t, waiting)
	assert.Equal(t, uint8(2), register)

	before := m.State()
	memoryBefore := m.memory
	for range 3 {
		outcome, err = m.Step()
		assert.NoError(t, err)
		assert.Equal(t, Suspended, outcome)
	}
	assert.Equal(t, before, m.State())
	assert.Equal(t, memoryBefore, m.memory)

	// releasing a key does not resolve the wait
	assert.NoError(t, m.SetKey(7, false))
	_, waiting = m.AwaitingKey()
	assert.True(t, waiting)

	assert.NoError(t, m.SetKey(7, true))
	_, waiting = m.AwaitingKey()
	assert.False(t, waiting)
	assert.Equal(t, byte(7), m.v[2])

	outcome, err = m.Step()
	assert.NoError(t, err)
	assert.Equal(t, Continue, outcome)
	assert.Equal(t, byte(1), m.v[3])
	assert.Equal(t, uint16(0x204), m.pc)
}

func TestWaitKey_HeldKeyIsNoPress(t *testing.T) {
	m := newTestMachine(t, 0xF0, 0x0A)
	assert.NoError(t, m.SetKey(3, true))

	outcome, err := m.Step()
	assert.NoError(t, err)
	assert.Equal(t, Suspended, outcome)

	assert.NoError(t, m.SetKey(3, true))
	_, waiting := m.AwaitingKey()
	assert.True(t, waiting)

	assert.NoError(t, m.SetKey(3, false))
	assert.NoError(t, m.SetKey(3, true))
	_, waiting = m.AwaitingKey()
	assert.False(t, waiting)
	assert.Equal(t, byte(3), m.v[0])
}

func TestSetKey(t *testing.T) {
	m := New()

	assert.NoError(t, m.SetKey(0xF, true))
	assert.True(t, m.KeyPressed(0xF))
	assert.NoError(t, m.SetKey(0xF, false))
	assert.False(t, m.KeyPressed(0xF))

	err := m.SetKey(0x10, true)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidKey))
}

func TestTickTimers(t *testing.T) {
	tests := []struct {
		name         string
		delay, sound uint8
		delayDec     uint8
		soundDec     uint8
		wantDelay    uint8
		wantSound    uint8
	}{
		{"single tick", 10, 10, 1, 1, 9, 9},
		{"independent", 10, 10, 3, 0, 7, 10},
		{"floor at zero", 2, 1, 5, 5, 0, 0},
		{"already zero", 0, 0, 1, 1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.delayTimer = tt.delay
			m.soundTimer = tt.sound

			m.TickTimers(tt.delayDec, tt.soundDec)
			assert.Equal(t, tt.wantDelay, m.DelayTimer())
			assert.Equal(t, tt.wantSound, m.SoundTimer())
		})
	}
}

func TestStep_UnknownOpcodeHalts(t *testing.T) {
	m := newTestMachine(t, 0x60, 0x01, 0xE1, 0x00)
	stepN(t, m, 1)

	_, err := m.Step()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownOpcode))

	var execErr *ExecError
	assert.True(t, errors.As(err, &execErr))
	assert.Equal(t, uint16(0x202), execErr.Address)
	assert.Equal(t, uint16(0xE100), execErr.Opcode)
	assert.Equal(t, byte(0xE1), execErr.MSB())
	assert.Equal(t, byte(0x00), execErr.LSB())
	assert.Equal(t, error(execErr), m.Halted())

	// halted machines report the same error without executing anything
	before := m.State()
	_, again := m.Step()
	assert.Equal(t, err, again)
	assert.Equal(t, before, m.State())
}

func TestStep_Deterministic(t *testing.T) {
	program := []byte{0x60, 0x03, 0x70, 0xFF, 0x30, 0x00, 0x12, 0x02, 0x80, 0x08}

	run := func() *ExecError {
		m := newTestMachine(t, program...)
		for range 1000 {
			if _, err := m.Step(); err != nil {
				var execErr *ExecError
				assert.True(t, errors.As(err, &execErr))
				return execErr
			}
		}
		t.Fatal("program did not halt")
		return nil
	}

	first := run()
	second := run()
	assert.Equal(t, uint16(0x208), first.Address)
	assert.Equal(t, *first, *second)
}

func TestStep_ProgramCounterStaysInMemory(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(m *Machine)
		program []byte
	}{
		{
			name:    "jump past memory end",
			program: []byte{0x1F, 0xFF},
		},
		{
			name:    "offset jump past memory end",
			setup:   func(m *Machine) { m.v[0] = 0xFF },
			program: []byte{0xBF, 0x00},
		},
		{
			name:    "fall through memory end",
			setup:   func(m *Machine) { m.pc = 0xFFE; m.memory[0xFFE] = 0x60 },
			program: []byte{0x00, 0xE0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMachine(t, tt.program...)
			if tt.setup != nil {
				tt.setup(m)
			}

			_, err := m.Step()
			assert.Error(t, err)
			assert.True(t, errors.Is(err, ErrMemoryOutOfBounds))
			assert.True(t, int(m.pc) <= MemorySize-2)
		})
	}
}

func TestStep_FailingInstructionKeepsState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *Machine)
	}{
		{
			name: "return past memory end",
			setup: func(m *Machine) {
				m.memory[ProgramStart], m.memory[ProgramStart+1] = 0x00, 0xEE
				m.stack[0] = 0xFFE
				m.sp = 1
			},
		},
		{
			name: "wait for key at memory end",
			setup: func(m *Machine) {
				m.pc = 0xFFE
				m.memory[0xFFE], m.memory[0xFFF] = 0xF3, 0x0A
			},
		},
		{
			name: "load register at memory end",
			setup: func(m *Machine) {
				m.pc = 0xFFE
				m.memory[0xFFE], m.memory[0xFFF] = 0x60, 0x05
			},
		},
		{
			name: "clear screen at memory end",
			setup: func(m *Machine) {
				m.pc = 0xFFE
				m.memory[0xFFE], m.memory[0xFFF] = 0x00, 0xE0
				m.screen[0] = 1
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMachine(t, 0x12, 0x00)
			tt.setup(m)
			state := m.State()
			frame := m.Framebuffer()

			_, err := m.Step()
			assert.True(t, errors.Is(err, ErrMemoryOutOfBounds))

			assert.Equal(t, state, m.State())
			assert.Equal(t, frame, m.Framebuffer())
			assert.False(t, m.ShouldRedraw())
			_, waiting := m.AwaitingKey()
			assert.False(t, waiting)
		})
	}
}

func TestReadMemory(t *testing.T) {
	m := newTestMachine(t, 0x12, 0x34)

	value, err := m.ReadMemory(ProgramStart + 1)
	assert.NoError(t, err)
	assert.Equal(t, byte(0x34), value)

	_, err = m.ReadMemory(MemorySize)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrMemoryOutOfBounds))
}

func TestFrame_Pixel(t *testing.T) {
	var frame Frame
	frame[31*ScreenWidth+63] = 1

	assert.Equal(t, byte(1), frame.Pixel(63, 31))
	assert.Equal(t, byte(1), frame.Pixel(-1, -1))
	assert.Equal(t, byte(1), frame.Pixel(127, 63))
	assert.Equal(t, byte(0), frame.Pixel(0, 0))
}

func TestStepOutcome_String(t *testing.T) {
	assert.Equal(t, "continue", Continue.String())
	assert.Equal(t, "suspended", Suspended.String())
	assert.Equal(t, "StepOutcome(5)", StepOutcome(5).String())
}
