// Package loader handles ROM file loading operations.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/retrochip8/internal/machine"
)

// Loader handles loading ROM files from disk into a machine.
type Loader struct{}

// New creates a new ROM loader.
func New() *Loader {
	return &Loader{}
}

// Load reads the ROM file and copies it into the machine memory.
// It returns the program size in bytes. All errors are *machine.LoadError
// values carrying the file path.
func (l *Loader) Load(path string, m *machine.Machine) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, &machine.LoadError{
			Path: path,
			Err:  fmt.Errorf("%w: %w", machine.ErrProgramUnreadable, err),
		}
	}
	defer func() { _ = file.Close() }()

	size, err := l.LoadFromReader(file, m)
	if err != nil {
		var loadErr *machine.LoadError
		if errors.As(err, &loadErr) {
			loadErr.Path = path
		}
		return 0, err
	}
	return size, nil
}

// LoadFromReader reads the complete program from the reader and copies it
// into the machine memory. Reading stops one byte after the maximum program
// size, the reported size of oversized programs is capped accordingly.
func (l *Loader) LoadFromReader(reader io.Reader, m *machine.Machine) (int, error) {
	data, err := io.ReadAll(io.LimitReader(reader, machine.MaxProgramSize+1))
	if err != nil {
		return 0, &machine.LoadError{
			Err: fmt.Errorf("%w: %w", machine.ErrProgramUnreadable, err),
		}
	}

	if err := m.Load(data); err != nil {
		return 0, err // already a *machine.LoadError
	}
	return len(data), nil
}
