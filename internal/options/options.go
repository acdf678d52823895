// Package options contains the program options.
package options

import "time"

// Frontend names accepted by the -frontend flag.
const (
	FrontendTerminal = "terminal"
	FrontendHeadless = "headless"
)

// Parameters contains file path options.
type Parameters struct {
	Input  string `flag:"i" usage:"input ROM file"`
	Output string `flag:"o" usage:"output .asm listing file (default: stdout)"`
	Batch  string `flag:"batch" usage:"list all files matching pattern (e.g. *.ch8)"`
}

// Flags contains behavior options.
type Flags struct {
	Debug    bool   `flag:"debug" usage:"enable debug logging"`
	Quiet    bool   `flag:"q" usage:"quiet mode"`
	List     bool   `flag:"list" usage:"write an assembler listing instead of running the program"`
	Disasm   bool   `flag:"disasm" usage:"print a raw disassembly of a memory range instead of running the program"`
	Start    uint   `flag:"start" usage:"first memory address of the raw disassembly" default:"0x200"`
	Length   int    `flag:"length" usage:"number of bytes of the raw disassembly (default: program size)"`
	Frontend string `flag:"frontend" usage:"frontend to run the program with: terminal, headless" default:"terminal"`
}

// MachineFlags contains interpreter options.
type MachineFlags struct {
	Speed           int           `flag:"speed" usage:"instructions executed per second" default:"700"`
	Seed            uint64        `flag:"seed" usage:"seed of the random number generator (default: time based)"`
	MaxSteps        int           `flag:"maxsteps" usage:"stop after executing this many instructions (0: unlimited)"`
	Timeout         time.Duration `flag:"timeout" usage:"stop running after this duration (0: unlimited)"`
	LegacyIndexFlag bool          `flag:"legacy-index-flag" usage:"compute the add I, Vx overflow flag from the incremented index"`
}

// OutputFlags contains listing formatting options.
type OutputFlags struct {
	NoHexComments bool `flag:"nohexcomments" usage:"omit hex opcode bytes in comments"`
	NoOffsets     bool `flag:"nooffsets" usage:"omit addresses in comments"`
	ZeroBytes     bool `flag:"z" usage:"include trailing zero bytes"`
}

// Program options of the interpreter.
type Program struct {
	Parameters
	Flags
	MachineFlags
	OutputFlags
}

// Listing defines options to control the listing writer.
type Listing struct {
	HexComments    bool
	OffsetComments bool
	ZeroBytes      bool
}

// NewListing returns a new listing options instance with default options.
func NewListing() Listing {
	return Listing{
		HexComments:    true,
		OffsetComments: true,
	}
}

// Listing returns the listing options derived from the output flags.
func (p Program) Listing() Listing {
	opts := NewListing()
	opts.HexComments = !p.NoHexComments
	opts.OffsetComments = !p.NoOffsets
	opts.ZeroBytes = p.ZeroBytes
	return opts
}
