// Package listing traces the control flow of a loaded CHIP-8 program and
// writes it as an assembler listing with labels, code and data bytes.
package listing

import (
	"fmt"
	"slices"

	"github.com/retroenv/retrochip8/internal/machine"
	"github.com/retroenv/retrogolib/set"
)

const (
	startLabel  = "Start"
	funcNaming  = "_func_%04x"
	labelNaming = "_label_%04x"
	dataNaming  = "_data_%04x"
)

// instructionSize is the size of CHIP-8 instructions in bytes.
const instructionSize = 2

// Analysis contains the result of tracing the control flow of a program.
type Analysis struct {
	start uint16 // first program address
	end   uint16 // address after the last program byte

	code    set.Set[uint16] // addresses of traced instructions
	covered set.Set[uint16] // all bytes belonging to traced instructions
	labels  map[uint16]string

	functions      set.Set[uint16]
	branchTargets  set.Set[uint16]
	dataReferences set.Set[uint16]

	offsetsToParse      []uint16
	offsetsToParseAdded set.Set[uint16]
}

// Trace follows all execution paths of the program that is loaded into the
// machine, beginning at the program start. Unknown opcodes, returns and
// indirect jumps end a path. Jumps to addresses outside of the program are
// not followed.
func Trace(m *machine.Machine, size int) *Analysis {
	end := min(machine.ProgramStart+max(size, 0), machine.MemorySize)
	a := &Analysis{
		start:               machine.ProgramStart,
		end:                 uint16(end),
		code:                set.New[uint16](),
		covered:             set.New[uint16](),
		labels:              map[uint16]string{},
		functions:           set.New[uint16](),
		branchTargets:       set.New[uint16](),
		dataReferences:      set.New[uint16](),
		offsetsToParseAdded: set.New[uint16](),
	}

	a.addAddressToParse(a.start)
	for len(a.offsetsToParse) > 0 {
		address := a.offsetsToParse[0]
		a.offsetsToParse = a.offsetsToParse[1:]
		a.processOffset(m, address)
	}

	a.assignLabels()
	return a
}

// addAddressToParse queues the address for tracing if it is inside of the
// program and was not queued before.
func (a *Analysis) addAddressToParse(address uint16) {
	if !a.contains(address) || a.offsetsToParseAdded.Contains(address) {
		return
	}
	a.offsetsToParseAdded.Add(address)
	a.offsetsToParse = append(a.offsetsToParse, address)
}

func (a *Analysis) contains(address uint16) bool {
	return address >= a.start && int(address)+instructionSize <= int(a.end)
}

func (a *Analysis) processOffset(m *machine.Machine, address uint16) {
	// instructions overlapping an already traced one are not decoded
	if a.covered.Contains(address) || a.covered.Contains(address+1) {
		return
	}

	msb, _ := m.ReadMemory(address)
	lsb, _ := m.ReadMemory(address + 1)
	ins, ok := machine.Decode(msb, lsb)
	if !ok {
		return
	}

	a.code.Add(address)
	a.covered.Add(address)
	a.covered.Add(address + 1)
	a.handleControlFlow(address, ins)
}

// handleControlFlow queues the addresses that can execute after the instruction.
func (a *Analysis) handleControlFlow(address uint16, ins machine.Instruction) {
	next := address + instructionSize

	switch {
	case ins.IsIndirectJump(), ins.IsReturn():

	case ins.IsJump():
		if target, ok := a.targetInProgram(ins); ok {
			a.branchTargets.Add(target)
			a.addAddressToParse(target)
		}

	case ins.IsCall():
		if target, ok := a.targetInProgram(ins); ok {
			a.functions.Add(target)
			a.addAddressToParse(target)
		}
		a.addAddressToParse(next)

	case ins.IsSkip():
		a.addAddressToParse(next)
		a.addAddressToParse(next + instructionSize)

	case ins.IsDataReference():
		if target, ok := a.targetInProgram(ins); ok {
			a.dataReferences.Add(target)
		}
		a.addAddressToParse(next)

	default:
		a.addAddressToParse(next)
	}
}

// targetInProgram returns the target address of the instruction if it points
// into the program.
func (a *Analysis) targetInProgram(ins machine.Instruction) (uint16, bool) {
	target, ok := ins.Target()
	if !ok || target < a.start || target >= a.end {
		return 0, false
	}
	return target, true
}

// assignLabels names all referenced addresses. Functions take precedence over
// branch targets, which take precedence over data references.
func (a *Analysis) assignLabels() {
	for address := range a.dataReferences {
		a.labels[address] = fmt.Sprintf(dataNaming, address)
	}
	for address := range a.branchTargets {
		a.labels[address] = fmt.Sprintf(labelNaming, address)
	}
	for address := range a.functions {
		a.labels[address] = fmt.Sprintf(funcNaming, address)
	}
	a.labels[a.start] = startLabel
}

// Start returns the first program address.
func (a *Analysis) Start() uint16 {
	return a.start
}

// End returns the address after the last program byte.
func (a *Analysis) End() uint16 {
	return a.end
}

// IsCode returns whether an instruction was traced at the address.
func (a *Analysis) IsCode(address uint16) bool {
	return a.code.Contains(address)
}

// IsCovered returns whether the address is part of a traced instruction.
func (a *Analysis) IsCovered(address uint16) bool {
	return a.covered.Contains(address)
}

// Label returns the label of the address.
func (a *Analysis) Label(address uint16) (string, bool) {
	label, ok := a.labels[address]
	return label, ok
}

// Instructions returns the number of traced instructions.
func (a *Analysis) Instructions() int {
	return len(a.code)
}

// Functions returns the sorted addresses of all called functions.
func (a *Analysis) Functions() []uint16 {
	functions := make([]uint16, 0, len(a.functions))
	for address := range a.functions {
		functions = append(functions, address)
	}
	slices.Sort(functions)
	return functions
}
