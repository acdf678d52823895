// Package terminal implements a frontend that runs programs inside a text
// terminal. The framebuffer is drawn with half block characters, two pixel
// rows per text row, and the keyboard is read in raw mode.
package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/retroenv/retrochip8/internal/host"
	"github.com/retroenv/retrochip8/internal/machine"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/term"
)

// ErrNotTerminal is returned by Open if the input is not a terminal.
var ErrNotTerminal = errors.New("input is not a terminal")

const (
	escapeClearScreen = "\x1b[2J"
	escapeCursorHome  = "\x1b[H"
	escapeHideCursor  = "\x1b[?25l"
	escapeShowCursor  = "\x1b[?25h"
	bell              = "\a"

	// textRows is the number of terminal rows a frame occupies.
	textRows = machine.ScreenHeight / 2

	inputBufferSize = 64
)

// Terminal is a frontend that uses the process terminal for input and output.
type Terminal struct {
	logger *log.Logger
	in     *os.File
	out    io.Writer
	clock  func() time.Time

	state    *term.State
	input    chan []byte
	keyboard *keyboard
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithHoldTime sets how long a key reads as pressed after its last byte arrived.
func WithHoldTime(holdTime time.Duration) Option {
	return func(t *Terminal) {
		t.keyboard = newKeyboard(holdTime)
	}
}

// WithClock replaces the wall clock used for key hold times.
func WithClock(clock func() time.Time) Option {
	return func(t *Terminal) {
		t.clock = clock
	}
}

// New returns a terminal frontend that reads keys from in and draws to out.
func New(logger *log.Logger, in *os.File, out io.Writer, options ...Option) *Terminal {
	t := &Terminal{
		logger:   logger,
		in:       in,
		out:      out,
		clock:    time.Now,
		input:    make(chan []byte, inputBufferSize),
		keyboard: newKeyboard(DefaultHoldTime),
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// Open switches the terminal into raw mode, clears the screen and starts
// reading keys. Close restores the terminal.
func (t *Terminal) Open() error {
	fd := int(t.in.Fd())
	if !term.IsTerminal(fd) {
		return ErrNotTerminal
	}

	t.checkSize()

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("switching terminal to raw mode: %w", err)
	}
	t.state = state

	if _, err := io.WriteString(t.out, escapeHideCursor+escapeClearScreen); err != nil {
		_ = t.Close()
		return fmt.Errorf("clearing screen: %w", err)
	}

	go t.readInput()
	return nil
}

// checkSize warns if the terminal is too small to show a complete frame.
func (t *Terminal) checkSize() {
	out, ok := t.out.(*os.File)
	if !ok || !term.IsTerminal(int(out.Fd())) {
		return
	}

	width, height, err := term.GetSize(int(out.Fd()))
	if err != nil {
		t.logger.Warn("Reading terminal size failed", log.Err(err))
		return
	}
	if width < machine.ScreenWidth || height < textRows {
		t.logger.Warn("Terminal is smaller than the screen",
			log.Int("width", width),
			log.Int("height", height),
			log.Int("required_width", machine.ScreenWidth),
			log.Int("required_height", textRows),
		)
	}
}

// Close restores the terminal state saved by Open.
func (t *Terminal) Close() error {
	if t.state == nil {
		return nil
	}

	_, _ = io.WriteString(t.out, escapeShowCursor+"\r\n")
	err := term.Restore(int(t.in.Fd()), t.state)
	t.state = nil
	if err != nil {
		return fmt.Errorf("restoring terminal: %w", err)
	}
	return nil
}

// readInput forwards input bytes until reading fails. The goroutine ends
// with the process, a blocked read on the terminal can not be interrupted.
func (t *Terminal) readInput() {
	buf := make([]byte, inputBufferSize)
	for {
		n, err := t.in.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			t.input <- data
		}
		if err != nil {
			close(t.input)
			return
		}
	}
}

// Poll returns the events for all input bytes that arrived since the last
// call and releases keys whose hold time expired. A closed input quits.
func (t *Terminal) Poll() []host.Event {
	var data []byte
	closed := false

	for reading := true; reading; {
		select {
		case b, ok := <-t.input:
			if !ok {
				closed = true
				reading = false
				break
			}
			data = append(data, b...)
		default:
			reading = false
		}
	}

	events := t.keyboard.events(data, t.clock())
	if closed {
		events = append(events, host.Event{Kind: host.Quit})
	}
	return events
}

// Present draws the frame at the top left corner of the terminal.
func (t *Terminal) Present(frame *machine.Frame) error {
	if _, err := io.WriteString(t.out, Render(frame)); err != nil {
		return fmt.Errorf("drawing frame: %w", err)
	}
	return nil
}

// Sound rings the terminal bell when the tone starts. Terminals can not
// play a continuous tone.
func (t *Terminal) Sound(active bool) {
	if !active {
		return
	}
	if _, err := io.WriteString(t.out, bell); err != nil {
		t.logger.Warn("Ringing bell failed", log.Err(err))
	}
}

// Render returns the escape sequences and characters that draw the frame.
// Each text row shows two pixel rows using upper and lower half blocks.
func Render(frame *machine.Frame) string {
	var buf strings.Builder
	buf.Grow(len(escapeCursorHome) + textRows*(machine.ScreenWidth*3+2))
	buf.WriteString(escapeCursorHome)

	for row := range textRows {
		y := row * 2
		for x := range machine.ScreenWidth {
			top := frame.Pixel(x, y) != 0
			bottom := frame.Pixel(x, y+1) != 0
			buf.WriteString(halfBlock(top, bottom))
		}
		buf.WriteString("\r\n")
	}
	return buf.String()
}

func halfBlock(top, bottom bool) string {
	switch {
	case top && bottom:
		return "█"
	case top:
		return "▀"
	case bottom:
		return "▄"
	default:
		return " "
	}
}
