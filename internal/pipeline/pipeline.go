// Package pipeline orchestrates loading a ROM and running, listing or
// disassembling it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/retroenv/retrochip8/internal/config"
	"github.com/retroenv/retrochip8/internal/host"
	"github.com/retroenv/retrochip8/internal/listing"
	"github.com/retroenv/retrochip8/internal/loader"
	"github.com/retroenv/retrochip8/internal/machine"
	"github.com/retroenv/retrochip8/internal/options"
	"github.com/retroenv/retrochip8/internal/terminal"
	"github.com/retroenv/retrogolib/log"
)

// Pipeline orchestrates the complete workflow for a single ROM.
type Pipeline struct {
	logger *log.Logger
	loader *loader.Loader

	// terminal streams used by the terminal frontend
	stdin  *os.File
	stdout io.Writer
}

// New creates a new pipeline.
func New(logger *log.Logger) *Pipeline {
	return &Pipeline{
		logger: logger,
		loader: loader.New(),
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
}

// Execute loads the ROM named by the options and processes it in the selected
// mode. Listings and disassemblies are written to writer.
func (p *Pipeline) Execute(ctx context.Context, opts options.Program, writer io.Writer) error {
	m := machine.New(config.CreateMachineOptions(opts.MachineFlags)...)

	size, err := p.loader.Load(opts.Input, m)
	if err != nil {
		return fmt.Errorf("loading ROM: %w", err)
	}

	p.printInfo(opts, size)

	switch {
	case opts.Disasm:
		return p.disassemble(m, opts, size, writer)
	case opts.List:
		return p.list(m, opts, size, writer)
	default:
		return p.run(ctx, m, opts)
	}
}

// disassemble writes the raw disassembly of the selected memory range.
func (p *Pipeline) disassemble(m *machine.Machine, opts options.Program, size int, writer io.Writer) error {
	length := opts.Length
	if length == 0 {
		length = size
	}

	lines := m.Disassemble(uint16(opts.Start), length)
	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	if _, err := io.WriteString(writer, buf.String()); err != nil {
		return fmt.Errorf("writing disassembly: %w", err)
	}
	return nil
}

// list writes the assembler listing of the program.
func (p *Pipeline) list(m *machine.Machine, opts options.Program, size int, writer io.Writer) error {
	analysis, err := listing.Write(writer, m, size, opts.Listing())
	if err != nil {
		return fmt.Errorf("writing listing: %w", err)
	}

	p.logger.Debug("Listing written",
		log.Int("instructions", analysis.Instructions()),
		log.Int("functions", len(analysis.Functions())),
	)
	return nil
}

// run executes the program with the selected frontend until it stops.
func (p *Pipeline) run(ctx context.Context, m *machine.Machine, opts options.Program) error {
	frontend, closeFrontend, err := p.createFrontend(opts.Frontend)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFrontend(); err != nil {
			p.logger.Error("Closing frontend failed", log.Err(err))
		}
	}()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	runner := host.New(p.logger, m, frontend,
		host.WithSpeed(opts.Speed),
		host.WithMaxSteps(opts.MaxSteps),
		host.WithTrace(opts.Debug),
	)

	err = runner.Run(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		p.logger.Info("Timeout reached", log.Int("steps", int(runner.Steps())))
		return nil
	}
	if err != nil {
		return fmt.Errorf("running ROM: %w", err)
	}
	return nil
}

// createFrontend returns the frontend for the given name and a function that
// releases it.
func (p *Pipeline) createFrontend(name string) (host.Frontend, func() error, error) {
	switch name {
	case options.FrontendHeadless:
		return host.NewHeadless(), func() error { return nil }, nil

	case options.FrontendTerminal:
		term := terminal.New(p.logger, p.stdin, p.stdout)
		if err := term.Open(); err != nil {
			return nil, nil, fmt.Errorf("opening terminal: %w", err)
		}
		return term, term.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported frontend '%s'", name)
	}
}

// printInfo prints information about the ROM being processed.
func (p *Pipeline) printInfo(opts options.Program, size int) {
	if opts.Quiet {
		return
	}

	p.logger.Info("Processing CHIP-8 ROM",
		log.String("file", opts.Input),
		log.Int("size", size),
	)
}
