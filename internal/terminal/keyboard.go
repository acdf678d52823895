package terminal

import (
	"time"

	"github.com/retroenv/retrochip8/internal/host"
	"github.com/retroenv/retrochip8/internal/machine"
)

// DefaultHoldTime is how long a key reads as pressed after its last byte
// arrived. Terminals do not report key releases, a held key repeats its byte
// at the keyboard repeat rate instead.
const DefaultHoldTime = 200 * time.Millisecond

const (
	keyEscape    = 0x1b
	keyInterrupt = 0x03
	keyPause     = 'p'
)

// keymap maps the left hand block of a QWERTY keyboard to the hex keypad:
//
//	1 2 3 4      1 2 3 C
//	q w e r  ->  4 5 6 D
//	a s d f      7 8 9 E
//	z x c v      A 0 B F
//
// The digits 5 to 9 and 0 are alternates for the keypad keys of the same name.
var keymap = map[byte]uint8{
	'1': 0x1, '2': 0x2, '3': 0x3, '4': 0xC,
	'q': 0x4, 'w': 0x5, 'e': 0x6, 'r': 0xD,
	'a': 0x7, 's': 0x8, 'd': 0x9, 'f': 0xE,
	'z': 0xA, 'x': 0x0, 'c': 0xB, 'v': 0xF,

	'5': 0x5, '6': 0x6, '7': 0x7, '8': 0x8, '9': 0x9, '0': 0x0,
}

// Keypad returns the keypad key for a keyboard byte. Upper case letters map
// to the same keys as lower case ones.
func Keypad(b byte) (uint8, bool) {
	if b >= 'A' && b <= 'Z' {
		b += 'a' - 'A'
	}
	key, ok := keymap[b]
	return key, ok
}

// keyboard converts terminal input bytes into runner events.
type keyboard struct {
	holdTime time.Duration
	released [machine.KeyCount]time.Time // release time of every held key
	held     [machine.KeyCount]bool
}

func newKeyboard(holdTime time.Duration) *keyboard {
	return &keyboard{
		holdTime: holdTime,
	}
}

// events returns the events for the bytes that arrived at the given time,
// followed by release events for keys whose hold time expired.
func (k *keyboard) events(data []byte, now time.Time) []host.Event {
	var events []host.Event

	for i := 0; i < len(data); i++ {
		b := data[i]
		switch {
		case b == keyInterrupt:
			return append(events, host.Event{Kind: host.Quit})

		case b == keyEscape:
			// a lone escape quits, escape sequences of special keys are ignored
			if i == len(data)-1 {
				return append(events, host.Event{Kind: host.Quit})
			}
			i = skipEscapeSequence(data, i)

		case b == keyPause || b == keyPause-'a'+'A':
			events = append(events, host.Event{Kind: host.TogglePause})

		default:
			key, ok := Keypad(b)
			if !ok {
				continue
			}
			if !k.held[key] {
				k.held[key] = true
				events = append(events, host.Event{Kind: host.KeyDown, Key: key})
			}
			k.released[key] = now.Add(k.holdTime)
		}
	}

	for key := range k.held {
		if k.held[key] && !now.Before(k.released[key]) {
			k.held[key] = false
			events = append(events, host.Event{Kind: host.KeyUp, Key: uint8(key)})
		}
	}
	return events
}

// skipEscapeSequence returns the index of the last byte of the escape
// sequence that starts at index start.
func skipEscapeSequence(data []byte, start int) int {
	i := start + 1
	if data[i] != '[' && data[i] != 'O' {
		return i
	}
	for i++; i < len(data); i++ {
		if data[i] >= 0x40 && data[i] <= 0x7e {
			return i
		}
	}
	return len(data) - 1
}
