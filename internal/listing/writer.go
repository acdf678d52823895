package listing

import (
	"fmt"
	"io"
	"strings"

	"github.com/retroenv/retrochip8/internal/machine"
	"github.com/retroenv/retrochip8/internal/options"
)

// maxDataBytesPerLine is the maximum number of bytes in a single .byte line.
const maxDataBytesPerLine = 8

// Writer writes the listing of a traced program.
type Writer struct {
	mainWriter io.Writer
	options    options.Listing
	memory     *machine.Machine
	analysis   *Analysis
}

// Write traces the program of the given size that is loaded into the machine
// and writes it as an assembler listing.
func Write(w io.Writer, m *machine.Machine, size int, opts options.Listing) (*Analysis, error) {
	analysis := Trace(m, size)
	writer := &Writer{
		mainWriter: w,
		options:    opts,
		memory:     m,
		analysis:   analysis,
	}
	if err := writer.Write(); err != nil {
		return nil, err
	}
	return analysis, nil
}

// Write writes the header followed by all code and data lines.
func (w *Writer) Write() error {
	if err := w.writeHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	endAddress := w.endAddress()
	for address := w.analysis.start; address < endAddress; {
		next, err := w.writeOffset(address, endAddress)
		if err != nil {
			return fmt.Errorf("writing address $%04X: %w", address, err)
		}
		address = next
	}
	return nil
}

func (w *Writer) writeHeader() error {
	header := fmt.Sprintf("; CHIP-8 ROM Disassembly\n"+
		"; Code base address: $%04X\n"+
		"; Traced instructions: %d\n\n"+
		".org $%03X\n\n",
		w.analysis.start, w.analysis.Instructions(), w.analysis.start)
	_, err := io.WriteString(w.mainWriter, header)
	return err
}

// writeOffset writes the label and the code or data at the address and
// returns the address of the following line.
func (w *Writer) writeOffset(address, endAddress uint16) (uint16, error) {
	if err := w.writeLabel(address); err != nil {
		return 0, err
	}

	if w.analysis.IsCode(address) {
		if err := w.writeAlias(address + 1); err != nil {
			return 0, err
		}
		if err := w.writeCode(address); err != nil {
			return 0, err
		}
		return address + instructionSize, nil
	}

	return w.writeData(address, endAddress)
}

// writeLabel writes a label if the address has one.
func (w *Writer) writeLabel(address uint16) error {
	label, ok := w.analysis.Label(address)
	if !ok {
		return nil
	}
	if _, err := fmt.Fprintf(w.mainWriter, "%s:\n", label); err != nil {
		return fmt.Errorf("writing label %s: %w", label, err)
	}
	return nil
}

// writeAlias defines labels that point into the second byte of an instruction.
func (w *Writer) writeAlias(address uint16) error {
	label, ok := w.analysis.Label(address)
	if !ok {
		return nil
	}
	if _, err := fmt.Fprintf(w.mainWriter, "%s = $%04X\n", label, address); err != nil {
		return fmt.Errorf("writing label alias %s: %w", label, err)
	}
	return nil
}

// writeCode writes a traced instruction.
func (w *Writer) writeCode(address uint16) error {
	msb, lsb := w.read(address), w.read(address+1)
	ins, _ := machine.Decode(msb, lsb)

	line := "    " + w.formatInstruction(ins)

	var comment []string
	if w.options.OffsetComments {
		comment = append(comment, fmt.Sprintf("$%04X", address))
	}
	if w.options.HexComments {
		comment = append(comment, fmt.Sprintf("%02X %02X", msb, lsb))
	}
	return w.writeLine(line, strings.Join(comment, ": "))
}

// formatInstruction replaces the target address of jumps, calls and index
// loads with the label of the target.
func (w *Writer) formatInstruction(ins machine.Instruction) string {
	target, ok := ins.Target()
	if !ok {
		return ins.String()
	}
	label, ok := w.analysis.Label(target)
	if !ok {
		return ins.String()
	}

	operands := ins.Operands()
	address := fmt.Sprintf("$%03X", target)
	return ins.Name() + " " + strings.Replace(operands, address, label, 1)
}

// writeData writes consecutive data bytes up to the next label, instruction
// or line length limit and returns the address after the written bytes.
func (w *Writer) writeData(address, endAddress uint16) (uint16, error) {
	var buf strings.Builder
	fmt.Fprintf(&buf, "    .byte $%02X", w.read(address))

	next := address + 1
	for count := 1; count < maxDataBytesPerLine && next < endAddress; count++ {
		if w.analysis.IsCode(next) {
			break
		}
		if _, ok := w.analysis.Label(next); ok {
			break
		}
		fmt.Fprintf(&buf, ", $%02X", w.read(next))
		next++
	}

	var comment string
	if w.options.OffsetComments {
		comment = fmt.Sprintf("$%04X", address)
	}
	if err := w.writeLine(buf.String(), comment); err != nil {
		return 0, err
	}
	return next, nil
}

func (w *Writer) writeLine(line, comment string) error {
	if comment == "" {
		if _, err := fmt.Fprintf(w.mainWriter, "%s\n", line); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
		return nil
	}

	if _, err := fmt.Fprintf(w.mainWriter, "%-32s ; %s\n", line, comment); err != nil {
		return fmt.Errorf("writing line with comment: %w", err)
	}
	return nil
}

// endAddress returns the address after the last meaningful byte. Trailing
// zero bytes are cut unless they are labeled or requested. This includes
// traced zero words, which decode as "cls".
func (w *Writer) endAddress() uint16 {
	if w.options.ZeroBytes {
		return w.analysis.end
	}

	for address := int(w.analysis.end) - 1; address >= int(w.analysis.start); address-- {
		if w.read(uint16(address)) != 0 {
			return uint16(address) + 1
		}
		if _, ok := w.analysis.Label(uint16(address)); ok {
			return uint16(address) + 1
		}
	}
	return w.analysis.start
}

func (w *Writer) read(address uint16) byte {
	value, _ := w.memory.ReadMemory(address)
	return value
}
