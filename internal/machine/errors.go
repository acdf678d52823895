package machine

import (
	"errors"
	"fmt"
)

// Load errors.
var (
	ErrEmptyProgram      = errors.New("program is empty")
	ErrProgramTooLarge   = errors.New("program does not fit into memory")
	ErrProgramUnreadable = errors.New("program can not be read")
)

// Execution errors.
var (
	ErrUnknownOpcode     = errors.New("unknown opcode")
	ErrStackOverflow     = errors.New("stack overflow")
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrMemoryOutOfBounds = errors.New("memory access out of bounds")
)

// ErrInvalidKey is returned for keypad indexes outside of 0x0-0xF.
var ErrInvalidKey = errors.New("invalid key")

// LoadError describes a failure to load a program into memory.
type LoadError struct {
	Path string // source file name, empty when loading from a buffer
	Size int    // size of the program in bytes
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("loading program '%s': %v", e.Path, e.Err)
	}
	return fmt.Sprintf("loading program of %d bytes: %v", e.Size, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ExecError describes a failure to execute the instruction at Address.
type ExecError struct {
	Address uint16
	Opcode  uint16
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("executing opcode %04X at address $%04X: %v", e.Opcode, e.Address, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// MSB returns the first byte of the failing opcode.
func (e *ExecError) MSB() byte {
	return byte(e.Opcode >> 8)
}

// LSB returns the second byte of the failing opcode.
func (e *ExecError) LSB() byte {
	return byte(e.Opcode)
}
