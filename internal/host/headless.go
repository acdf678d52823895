package host

import (
	"github.com/retroenv/retrochip8/internal/machine"
)

// Headless is a frontend without a display. It keeps the last presented
// frame and a frame count, and replays a scripted sequence of input events, one batch per Poll call.
type Headless struct {
	script [][]Event

	lastFrame  machine.Frame
	frameCount int
	sound      bool
	soundTurns int
}

// NewHeadless returns a headless frontend that delivers the given event
// batches on successive Poll calls.
func NewHeadless(script ...[]Event) *Headless {
	return &Headless{
		script: script,
	}
}

// Poll returns the next scripted event batch.
func (h *Headless) Poll() []Event {
	if len(h.script) == 0 {
		return nil
	}
	events := h.script[0]
	h.script = h.script[1:]
	return events
}

// Present keeps a copy of the frame and counts it.
func (h *Headless) Present(frame *machine.Frame) error {
	h.lastFrame = *frame
	h.frameCount++
	return nil
}

// Sound records the tone state.
func (h *Headless) Sound(active bool) {
	if active && !h.sound {
		h.soundTurns++
	}
	h.sound = active
}

// FrameCount returns the number of presented frames.
func (h *Headless) FrameCount() int {
	return h.frameCount
}

// LastFrame returns the last presented frame.
func (h *Headless) LastFrame() (machine.Frame, bool) {
	if h.frameCount == 0 {
		return machine.Frame{}, false
	}
	return h.lastFrame, true
}

// SoundActive returns whether the tone is currently playing.
func (h *Headless) SoundActive() bool {
	return h.sound
}

// SoundTurns returns how often the tone was started.
func (h *Headless) SoundTurns() int {
	return h.soundTurns
}
