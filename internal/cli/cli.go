// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/retroenv/retrochip8/internal/host"
	"github.com/retroenv/retrochip8/internal/machine"
	"github.com/retroenv/retrochip8/internal/options"
)

// ParseFlags parses command line flags and returns the program options
func ParseFlags() (options.Program, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)
	readMachineFlags(flags, &opts.MachineFlags)
	readOutputFlags(flags, &opts.OutputFlags)

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil || (len(args) == 0 && opts.Input == "" && opts.Batch == "") {
		return opts, &UsageError{flags: flags}
	}

	if err := validateArgs(args); err != nil {
		return opts, err
	}

	if opts.Batch == "" && opts.Input == "" {
		opts.Input = args[0]
	}

	if err := normalizeOptions(&opts); err != nil {
		return opts, err
	}
	return opts, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: retrochip8 [options] <ROM file>\n\n")
	if e.flags != nil {
		e.flags.PrintDefaults()
	}
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && arg != "" && arg[0] == '-' {
			return &UsageError{
				msg: fmt.Sprintf("Potential argument %s found after ROM file, please pass the ROM file as last argument", arg),
			}
		}
	}
	return nil
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *options.Program) error {
	opts.Frontend = strings.ToLower(opts.Frontend)

	validFrontends := []string{options.FrontendTerminal, options.FrontendHeadless}
	valid := false
	for _, frontend := range validFrontends {
		if opts.Frontend == frontend {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unsupported frontend: %s. Valid options: %s",
			opts.Frontend, strings.Join(validFrontends, ", "))
	}

	if opts.Speed <= 0 || opts.Speed > host.MaxSpeed {
		return fmt.Errorf("invalid speed %d: must be between 1 and %d", opts.Speed, host.MaxSpeed)
	}
	if opts.MaxSteps < 0 {
		return fmt.Errorf("invalid step limit %d: must not be negative", opts.MaxSteps)
	}
	if opts.Start >= machine.MemorySize {
		return fmt.Errorf("invalid start address $%X: outside of memory", opts.Start)
	}
	if opts.Length < 0 {
		return fmt.Errorf("invalid length %d: must not be negative", opts.Length)
	}

	// batch processing always writes listings
	if opts.Batch != "" {
		opts.List = true
	}
	if opts.List && opts.Disasm {
		return &UsageError{msg: "the -list and -disasm modes can not be combined"}
	}
	return nil
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Input, "i", "", "name of the input ROM file")
	flags.StringVar(&opts.Output, "o", "", "name of the output .asm listing file, printed on console if no name given")
	flags.StringVar(&opts.Batch, "batch", "", "write listings for a batch of given path and file mask with automatic .asm file naming, for example *.ch8")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
	flags.BoolVar(&opts.List, "list", false, "write an assembler listing of the program instead of running it")
	flags.BoolVar(&opts.Disasm, "disasm", false, "print a raw disassembly of a memory range instead of running the program")
	flags.UintVar(&opts.Start, "start", machine.ProgramStart, "first memory address of the raw disassembly")
	flags.IntVar(&opts.Length, "length", 0, "number of bytes of the raw disassembly, the program size if 0")
	flags.StringVar(&opts.Frontend, "frontend", options.FrontendTerminal, "frontend to run the program with (terminal/headless)")
}

func readMachineFlags(flags *flag.FlagSet, opts *options.MachineFlags) {
	flags.IntVar(&opts.Speed, "speed", host.DefaultSpeed, "instructions executed per second")
	flags.Uint64Var(&opts.Seed, "seed", 0, "seed of the random number generator, time based if 0")
	flags.IntVar(&opts.MaxSteps, "maxsteps", 0, "stop after executing this many instructions, unlimited if 0")
	flags.DurationVar(&opts.Timeout, "timeout", 0, "stop running after this duration, unlimited if 0")
	flags.BoolVar(&opts.LegacyIndexFlag, "legacy-index-flag", false, "compute the add I, Vx overflow flag from the already incremented index")
}

func readOutputFlags(flags *flag.FlagSet, opts *options.OutputFlags) {
	flags.BoolVar(&opts.NoHexComments, "nohexcomments", false, "do not output opcode bytes as hex values in comments")
	flags.BoolVar(&opts.NoOffsets, "nooffsets", false, "do not output addresses in comments")
	flags.BoolVar(&opts.ZeroBytes, "z", false, "output the trailing zero bytes of the program")
}
