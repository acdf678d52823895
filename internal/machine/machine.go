package machine

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// CHIP-8 machine layout constants.
const (
	// MemorySize is the size of the byte addressed memory.
	MemorySize = 4096

	// ProgramStart is the memory address where programs are loaded and execution begins.
	ProgramStart = 0x200

	// MaxProgramSize is the largest program that fits into memory after ProgramStart.
	MaxProgramSize = MemorySize - ProgramStart

	RegisterCount = 16
	StackSize     = 16
	KeyCount      = 16

	ScreenWidth  = 64
	ScreenHeight = 32
)

// flagRegister is the index of VF, the implicit carry, borrow and collision output.
const flagRegister = 0xF

// lastInstructionAddress is the highest address a complete opcode can be fetched from.
const lastInstructionAddress = MemorySize - opcodeSize

// StepOutcome is the result of a successful Step call.
type StepOutcome int

const (
	// Continue means the machine is ready to execute the next instruction.
	Continue StepOutcome = iota
	// Suspended means the machine waits for a key press delivered by SetKey.
	Suspended
)

func (o StepOutcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Suspended:
		return "suspended"
	default:
		return fmt.Sprintf("StepOutcome(%d)", int(o))
	}
}

// RandomSource provides the random numbers for the "rnd" instruction.
// *rand.Rand of math/rand/v2 satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// Frame is the monochrome framebuffer, one byte per pixel with a value of 0 or 1,
// stored row by row.
type Frame [ScreenWidth * ScreenHeight]byte

// Pixel returns the pixel at the given coordinates, wrapping them around the screen edges.
func (f *Frame) Pixel(x, y int) byte {
	x = ((x % ScreenWidth) + ScreenWidth) % ScreenWidth
	y = ((y % ScreenHeight) + ScreenHeight) % ScreenHeight
	return f[y*ScreenWidth+x]
}

// State is a read-only snapshot of the machine registers.
type State struct {
	V          [RegisterCount]byte
	I          uint16
	PC         uint16
	SP         uint8
	Stack      [StackSize]uint16
	DelayTimer byte
	SoundTimer byte
}

// Machine holds the complete state of a CHIP-8 interpreter.
type Machine struct {
	memory [MemorySize]byte
	v      [RegisterCount]byte
	i      uint16
	pc     uint16

	stack [StackSize]uint16
	sp    uint8

	delayTimer byte
	soundTimer byte

	screen Frame
	redraw bool

	keys             [KeyCount]bool
	awaitingKey      bool
	awaitingRegister uint8

	random    RandomSource
	indexFlag IndexFlagMode

	halted *ExecError // first execution error, repeated by every following Step
}

// Option configures a Machine.
type Option func(*Machine)

// WithRandom sets the random source used by the "rnd" instruction.
func WithRandom(random RandomSource) Option {
	return func(m *Machine) {
		m.random = random
	}
}

// WithIndexFlag sets how "add I, Vx" updates VF.
func WithIndexFlag(mode IndexFlagMode) Option {
	return func(m *Machine) {
		m.indexFlag = mode
	}
}

// New returns a new machine with the font loaded and the program counter set
// to ProgramStart.
func New(options ...Option) *Machine {
	seed := uint64(time.Now().UnixNano())
	m := &Machine{
		pc:     ProgramStart,
		random: rand.New(rand.NewPCG(seed, seed>>1)),
	}
	copy(m.memory[FontAddress:], fontSet[:])

	for _, option := range options {
		option(m)
	}
	return m
}

// Load copies the program into memory starting at ProgramStart.
// Registers, timers and the program counter are not modified, a clean rerun
// requires a new machine.
func (m *Machine) Load(program []byte) error {
	switch {
	case len(program) == 0:
		return &LoadError{Err: ErrEmptyProgram}
	case len(program) > MaxProgramSize:
		return &LoadError{
			Size: len(program),
			Err:  fmt.Errorf("%w: %d bytes exceed the maximum of %d bytes", ErrProgramTooLarge, len(program), MaxProgramSize),
		}
	}

	copy(m.memory[ProgramStart:], program)
	return nil
}

// Step executes a single instruction. It returns Suspended without changing any
// state while the machine waits for a key press. After an execution error the
// machine is halted and every call returns the same error.
func (m *Machine) Step() (StepOutcome, error) {
	if m.halted != nil {
		return Continue, m.halted
	}
	if m.awaitingKey {
		return Suspended, nil
	}

	address := m.pc
	msb, lsb := m.memory[address], m.memory[address+1]

	op, ok := lookup(msb, lsb)
	if !ok {
		return Continue, m.halt(address, msb, lsb, ErrUnknownOpcode)
	}
	// instructions that continue with the next one must not change any state
	// when the next address is outside of memory
	if op.sequential() {
		if err := checkProgramCounter(address + opcodeSize); err != nil {
			return Continue, m.halt(address, msb, lsb, err)
		}
	}
	if err := op.execute(m, decodeFields(msb, lsb)); err != nil {
		return Continue, m.halt(address, msb, lsb, err)
	}

	if m.awaitingKey {
		return Suspended, nil
	}
	return Continue, nil
}

func (m *Machine) halt(address uint16, msb, lsb byte, err error) *ExecError {
	m.halted = &ExecError{
		Address: address,
		Opcode:  uint16(msb)<<8 | uint16(lsb),
		Err:     err,
	}
	return m.halted
}

// Halted returns the error that halted the machine, or nil.
func (m *Machine) Halted() error {
	if m.halted == nil {
		return nil
	}
	return m.halted
}

// AwaitingKey returns the register that receives the next key press and
// whether the machine is suspended waiting for it.
func (m *Machine) AwaitingKey() (uint8, bool) {
	return m.awaitingRegister, m.awaitingKey
}

// SetKey updates the pressed state of a keypad key. A key press while the
// machine is waiting for input stores the key code in the waiting register
// and resumes execution.
func (m *Machine) SetKey(key uint8, pressed bool) error {
	if key >= KeyCount {
		return fmt.Errorf("%w: %d", ErrInvalidKey, key)
	}

	wasPressed := m.keys[key]
	m.keys[key] = pressed

	if pressed && !wasPressed && m.awaitingKey {
		m.v[m.awaitingRegister] = key
		m.awaitingKey = false
	}
	return nil
}

// KeyPressed returns whether the given key is currently pressed.
func (m *Machine) KeyPressed(key uint8) bool {
	return m.keys[key&0xF]
}

// TickTimers decrements the delay and sound timers, each stopping at 0.
func (m *Machine) TickTimers(delayDecrement, soundDecrement uint8) {
	m.delayTimer = saturatingSub(m.delayTimer, delayDecrement)
	m.soundTimer = saturatingSub(m.soundTimer, soundDecrement)
}

// DelayTimer returns the current delay timer value.
func (m *Machine) DelayTimer() uint8 {
	return m.delayTimer
}

// SoundTimer returns the current sound timer value, a tone plays while it is not 0.
func (m *Machine) SoundTimer() uint8 {
	return m.soundTimer
}

// Framebuffer returns a copy of the screen.
func (m *Machine) Framebuffer() Frame {
	return m.screen
}

// ShouldRedraw returns whether the screen changed since the last ClearRedraw call.
func (m *Machine) ShouldRedraw() bool {
	return m.redraw
}

// ClearRedraw resets the redraw flag after the host presented the screen.
func (m *Machine) ClearRedraw() {
	m.redraw = false
}

// State returns a snapshot of the registers, stack and timers.
func (m *Machine) State() State {
	return State{
		V:          m.v,
		I:          m.i,
		PC:         m.pc,
		SP:         m.sp,
		Stack:      m.stack,
		DelayTimer: m.delayTimer,
		SoundTimer: m.soundTimer,
	}
}

// ReadMemory returns the byte at the given memory address.
func (m *Machine) ReadMemory(address uint16) (byte, error) {
	if int(address) >= MemorySize {
		return 0, fmt.Errorf("%w: address $%04X", ErrMemoryOutOfBounds, address)
	}
	return m.memory[address], nil
}

func saturatingSub(value, decrement uint8) uint8 {
	if decrement >= value {
		return 0
	}
	return value - decrement
}
