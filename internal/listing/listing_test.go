package listing

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/retroenv/retrochip8/internal/machine"
	"github.com/retroenv/retrochip8/internal/options"
	"github.com/retroenv/retrogolib/assert"
)

// sprites draws a sprite from a subroutine and loops forever.
var sprites = []byte{
	0x22, 0x08, // call $208
	0xA2, 0x0C, // ld I, $20C
	0xD0, 0x15, // drw V0, V1, $5
	0x12, 0x06, // jp $206
	0x60, 0x01, // ld V0, $01
	0x00, 0xEE, // ret
	0xF0, 0x90, 0x90, 0x90, 0xF0,
}

func loadMachine(t *testing.T, program []byte) *machine.Machine {
	t.Helper()

	m := machine.New()
	assert.NoError(t, m.Load(program))
	return m
}

func TestTrace(t *testing.T) {
	m := loadMachine(t, sprites)
	analysis := Trace(m, len(sprites))

	assert.Equal(t, uint16(0x200), analysis.Start())
	assert.Equal(t, uint16(0x211), analysis.End())
	assert.Equal(t, 6, analysis.Instructions())
	assert.Equal(t, []uint16{0x208}, analysis.Functions())

	for _, address := range []uint16{0x200, 0x202, 0x204, 0x206, 0x208, 0x20A} {
		assert.True(t, analysis.IsCode(address), fmt.Sprintf("$%04X", address))
	}
	for address := uint16(0x20C); address < 0x211; address++ {
		assert.False(t, analysis.IsCode(address))
	}

	labels := map[uint16]string{
		0x200: "Start",
		0x206: "_label_0206",
		0x208: "_func_0208",
		0x20C: "_data_020c",
	}
	for address, want := range labels {
		label, ok := analysis.Label(address)
		assert.True(t, ok)
		assert.Equal(t, want, label)
	}
	_, ok := analysis.Label(0x202)
	assert.False(t, ok)
}

func TestTrace_ControlFlow(t *testing.T) {
	tests := []struct {
		name     string
		program  []byte
		code     []uint16
		skipped  []uint16
		labelled []uint16
	}{
		{
			name: "unknown opcode ends path",
			program: []byte{
				0x60, 0x01, // ld V0, $01
				0xE0, 0x00, // unknown
				0x61, 0x01,
			},
			code:    []uint16{0x200},
			skipped: []uint16{0x202, 0x204},
		},
		{
			name: "skip follows both paths",
			program: []byte{
				0x30, 0x01, // se V0, $01
				0x12, 0x08, // jp $208
				0x00, 0xEE, // ret
				0xFF, 0xFF,
				0x00, 0xEE, // ret
			},
			code:     []uint16{0x200, 0x202, 0x204, 0x208},
			skipped:  []uint16{0x206},
			labelled: []uint16{0x208},
		},
		{
			name: "indirect jump ends path",
			program: []byte{
				0xB2, 0x04, // jp V0, $204
				0xFF, 0xFF,
				0x00, 0xEE,
			},
			code:    []uint16{0x200},
			skipped: []uint16{0x202, 0x204},
		},
		{
			name: "call continues after return",
			program: []byte{
				0x22, 0x04, // call $204
				0x12, 0x02, // jp $202
				0x00, 0xEE, // ret
			},
			code:     []uint16{0x200, 0x202, 0x204},
			labelled: []uint16{0x202, 0x204},
		},
		{
			name: "targets outside of the program are ignored",
			program: []byte{
				0x23, 0x00, // call $300
				0x10, 0x00, // jp $000
			},
			code: []uint16{0x200, 0x202},
		},
		{
			name: "overlapping instructions are not decoded",
			program: []byte{
				0x30, 0x00, // se V0, $00
				0x12, 0x05, // jp $205
				0x60, 0x00, // ld V0, $00
				0x00, 0xEE, // ret
			},
			code:     []uint16{0x200, 0x202, 0x204, 0x206},
			skipped:  []uint16{0x205},
			labelled: []uint16{0x205},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := Trace(loadMachine(t, tt.program), len(tt.program))

			assert.Equal(t, len(tt.code), analysis.Instructions())
			for _, address := range tt.code {
				assert.True(t, analysis.IsCode(address), fmt.Sprintf("code at $%04X", address))
			}
			for _, address := range tt.skipped {
				assert.False(t, analysis.IsCode(address), fmt.Sprintf("no code at $%04X", address))
			}
			for _, address := range tt.labelled {
				_, ok := analysis.Label(address)
				assert.True(t, ok, fmt.Sprintf("label at $%04X", address))
			}
		})
	}
}

func line(code, comment string) string {
	return fmt.Sprintf("%-32s ; %s\n", code, comment)
}

func TestWrite(t *testing.T) {
	program := append(append([]byte{}, sprites...), 0x00, 0x00, 0x00)
	m := loadMachine(t, program)

	var buf bytes.Buffer
	analysis, err := Write(&buf, m, len(program), options.NewListing())
	assert.NoError(t, err)
	assert.Equal(t, 6, analysis.Instructions())

	expected := "; CHIP-8 ROM Disassembly\n" +
		"; Code base address: $0200\n" +
		"; Traced instructions: 6\n\n" +
		".org $200\n\n" +
		"Start:\n" +
		line("    call _func_0208", "$0200: 22 08") +
		line("    ld I, _data_020c", "$0202: A2 0C") +
		line("    drw V0, V1, $5", "$0204: D0 15") +
		"_label_0206:\n" +
		line("    jp _label_0206", "$0206: 12 06") +
		"_func_0208:\n" +
		line("    ld V0, $01", "$0208: 60 01") +
		line("    ret", "$020A: 00 EE") +
		"_data_020c:\n" +
		line("    .byte $F0, $90, $90, $90, $F0", "$020C")
	assert.Equal(t, expected, buf.String())
}

func TestWrite_Options(t *testing.T) {
	program := append(append([]byte{}, sprites...), 0x00, 0x00, 0x00)

	tests := []struct {
		name     string
		opts     options.Listing
		contains []string
		excludes []string
	}{
		{
			name:     "without comments",
			opts:     options.Listing{},
			contains: []string{"    call _func_0208\n", "    .byte $F0, $90, $90, $90, $F0\n"},
			excludes: []string{";  $0200", "22 08"},
		},
		{
			name:     "hex comments only",
			opts:     options.Listing{HexComments: true},
			contains: []string{line("    ret", "00 EE")},
			excludes: []string{"$020A"},
		},
		{
			name:     "zero bytes",
			opts:     options.Listing{ZeroBytes: true},
			contains: []string{"    .byte $F0, $90, $90, $90, $F0, $00, $00, $00\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := Write(&buf, loadMachine(t, program), len(program), tt.opts)
			assert.NoError(t, err)

			output := buf.String()
			for _, s := range tt.contains {
				assert.Contains(t, output, s)
			}
			for _, s := range tt.excludes {
				assert.False(t, strings.Contains(output, s), s)
			}
		})
	}
}

func TestWrite_DataLinesAreSplit(t *testing.T) {
	program := []byte{
		0xA2, 0x02, // ld I, $202
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A,
	}

	var buf bytes.Buffer
	_, err := Write(&buf, loadMachine(t, program), len(program), options.Listing{})
	assert.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "    ld I, _data_0202\n")
	assert.Contains(t, output, "_data_0202:\n"+
		"    .byte $01, $02, $03, $04, $05, $06, $07, $08\n"+
		"    .byte $09, $0A\n")
}

func TestWrite_LabelInsideInstruction(t *testing.T) {
	program := []byte{
		0x30, 0x00, // se V0, $00
		0x12, 0x05, // jp $205
		0x60, 0x00, // ld V0, $00
		0x00, 0xEE, // ret
	}

	var buf bytes.Buffer
	_, err := Write(&buf, loadMachine(t, program), len(program), options.Listing{})
	assert.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "    jp _label_0205\n")
	assert.Contains(t, output, "_label_0205 = $0205\n    ld V0, $00\n")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWrite_Error(t *testing.T) {
	_, err := Write(failingWriter{}, loadMachine(t, sprites), len(sprites), options.NewListing())
	assert.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
}
