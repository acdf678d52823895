package host

import (
	"github.com/retroenv/retrochip8/internal/machine"
)

// EventKind is the type of an input event.
type EventKind int

const (
	// KeyDown presses a keypad key.
	KeyDown EventKind = iota
	// KeyUp releases a keypad key.
	KeyUp
	// TogglePause pauses or resumes execution.
	TogglePause
	// Quit stops the runner.
	Quit
)

// Event is an input event delivered by a frontend.
type Event struct {
	Kind EventKind
	Key  uint8 // keypad key for KeyDown and KeyUp events
}

// Frontend connects the runner to the user. It delivers input events,
// presents frames and plays the tone of the sound timer.
type Frontend interface {
	// Poll returns the input events that arrived since the last call.
	Poll() []Event
	// Present displays the framebuffer.
	Present(frame *machine.Frame) error
	// Sound starts or stops the tone.
	Sound(active bool)
}
