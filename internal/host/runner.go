// Package host implements the loop that drives a machine: it paces
// instruction execution, ticks the timers at 60 Hz, delivers input events
// and presents changed frames through a frontend.
package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/retroenv/retrochip8/internal/machine"
	"github.com/retroenv/retrogolib/log"
)

const (
	// DefaultSpeed is the default number of instructions executed per second.
	DefaultSpeed = 700

	// MaxSpeed is the highest supported number of instructions per second.
	MaxSpeed = 1_000_000_000

	// TimerFrequency is the rate in Hz at which the delay and sound timers count down.
	TimerFrequency = 60

	// pollInterval is the pause between two Advance calls of Run.
	pollInterval = time.Second / 240
)

// ErrStepLimit is returned by Advance once the configured number of
// instructions has been executed.
var ErrStepLimit = errors.New("step limit reached")

// Runner drives a machine in real time.
type Runner struct {
	logger   *log.Logger
	machine  *machine.Machine
	frontend Frontend
	clock    func() time.Time

	speed    int
	maxSteps int
	trace    bool

	started    bool
	lastUpdate time.Time
	active     time.Duration // elapsed time while not paused

	executed   uint64 // instructions accounted for, including skipped backlog
	steps      uint64 // instructions actually executed
	frames     uint64 // timer frames elapsed
	paused     bool
	quit       bool
	soundState bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithSpeed sets the number of instructions executed per second.
func WithSpeed(instructionsPerSecond int) Option {
	return func(r *Runner) {
		if instructionsPerSecond > 0 {
			r.speed = min(instructionsPerSecond, MaxSpeed)
		}
	}
}

// WithMaxSteps stops the runner after the given number of instructions.
// A value of 0 disables the limit.
func WithMaxSteps(steps int) Option {
	return func(r *Runner) {
		r.maxSteps = max(steps, 0)
	}
}

// WithClock replaces the wall clock used by Run.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		r.clock = clock
	}
}

// WithTrace logs every executed instruction at debug level.
func WithTrace(trace bool) Option {
	return func(r *Runner) {
		r.trace = trace
	}
}

// New returns a runner for the machine that uses the frontend for input and output.
func New(logger *log.Logger, m *machine.Machine, frontend Frontend, options ...Option) *Runner {
	r := &Runner{
		logger:   logger,
		machine:  m,
		frontend: frontend,
		clock:    time.Now,
		speed:    DefaultSpeed,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Run calls Advance until the context is canceled, the frontend requests to
// quit, the step limit is reached or the machine fails. Quitting and reaching
// the step limit are not errors.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		err := r.Advance(r.clock())
		switch {
		case errors.Is(err, ErrStepLimit):
			r.logger.Info("Step limit reached", log.Int("steps", int(r.steps)))
			return nil
		case err != nil:
			return err
		case r.quit:
			r.logger.Info("Quit requested", log.Int("steps", int(r.steps)))
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("running program: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Advance brings the machine up to date with the given time. It handles
// pending input events, executes the instructions that are due, ticks the
// timers and presents the frame if it changed. The first call only starts
// the clock.
func (r *Runner) Advance(now time.Time) error {
	if !r.started {
		r.started = true
		r.lastUpdate = now
	}

	if elapsed := now.Sub(r.lastUpdate); elapsed > 0 && !r.paused {
		r.active += elapsed
	}
	r.lastUpdate = now

	if err := r.handleEvents(); err != nil {
		return err
	}
	if r.quit {
		return nil
	}

	if !r.paused {
		if err := r.execute(); err != nil {
			return err
		}
		r.tickTimers()
	}

	return r.present()
}

// Steps returns the number of executed instructions.
func (r *Runner) Steps() uint64 {
	return r.steps
}

// Paused returns whether execution is paused.
func (r *Runner) Paused() bool {
	return r.paused
}

// QuitRequested returns whether the frontend requested to quit.
func (r *Runner) QuitRequested() bool {
	return r.quit
}

func (r *Runner) handleEvents() error {
	for _, event := range r.frontend.Poll() {
		switch event.Kind {
		case KeyDown, KeyUp:
			pressed := event.Kind == KeyDown
			if err := r.machine.SetKey(event.Key, pressed); err != nil {
				return fmt.Errorf("delivering key event: %w", err)
			}
			if r.trace {
				r.logger.Debug("Key", log.Hex("key", event.Key), log.String("state", keyState(pressed)))
			}

		case TogglePause:
			r.paused = !r.paused
			r.logger.Info("Pause", log.String("state", pauseState(r.paused)))

		case Quit:
			r.quit = true
		}
	}
	return nil
}

// execute runs the instructions that are due at the configured speed.
// While the machine waits for a key press the backlog is dropped, execution
// resumes at normal speed after the key press.
func (r *Runner) execute() error {
	due := dueCount(r.active, uint64(r.speed))

	for r.executed < due {
		if _, waiting := r.machine.AwaitingKey(); waiting {
			r.executed = due
			return nil
		}
		if r.maxSteps > 0 && r.steps >= uint64(r.maxSteps) {
			return ErrStepLimit
		}

		if r.trace {
			r.traceInstruction()
		}

		outcome, err := r.machine.Step()
		if err != nil {
			return fmt.Errorf("running program: %w", err)
		}
		r.executed++
		r.steps++

		if outcome == machine.Suspended {
			r.executed = due
			return nil
		}
	}
	return nil
}

func (r *Runner) traceInstruction() {
	state := r.machine.State()
	msb, _ := r.machine.ReadMemory(state.PC)
	lsb, _ := r.machine.ReadMemory(state.PC + 1)
	r.logger.Debug("Step", log.String("instruction", machine.DisassembleInstruction(state.PC, msb, lsb)))
}

// tickTimers counts the timers down by the number of 60 Hz frames that
// elapsed since the last call.
func (r *Runner) tickTimers() {
	due := dueCount(r.active, TimerFrequency)
	if due <= r.frames {
		r.updateSound()
		return
	}

	frames := min(due-r.frames, 0xFF)
	r.frames = due
	r.machine.TickTimers(uint8(frames), uint8(frames))
	r.updateSound()
}

// updateSound notifies the frontend when the tone starts or stops.
func (r *Runner) updateSound() {
	active := r.machine.SoundTimer() > 0
	if active == r.soundState {
		return
	}
	r.soundState = active
	r.frontend.Sound(active)
}

func (r *Runner) present() error {
	if !r.machine.ShouldRedraw() {
		return nil
	}

	frame := r.machine.Framebuffer()
	if err := r.frontend.Present(&frame); err != nil {
		return fmt.Errorf("presenting frame: %w", err)
	}
	r.machine.ClearRedraw()
	return nil
}

func keyState(pressed bool) string {
	if pressed {
		return "down"
	}
	return "up"
}

func pauseState(paused bool) string {
	if paused {
		return "paused"
	}
	return "resumed"
}

// dueCount returns how many events of the given rate per second fall into
// the elapsed time. Whole seconds and the remainder are multiplied separately
// so that rates up to MaxSpeed do not overflow.
func dueCount(elapsed time.Duration, perSecond uint64) uint64 {
	seconds := uint64(elapsed / time.Second)
	remainder := uint64(elapsed % time.Second)
	return seconds*perSecond + remainder*perSecond/uint64(time.Second)
}
