package input

import (
	"math"
	"time"
	"unicode/utf8"
)

// Button identifies a mouse button.
type Button int

// Mouse buttons tracked by a Snapshot.
const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle

	// ButtonCount is the number of tracked buttons.
	ButtonCount
)

// String returns the button name.
func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	default:
		return "unknown"
	}
}

// Point is a position in window coordinates.
type Point struct {
	X, Y float32
}

// Key is a platform-independent key code. Negative values are invalid.
type Key int32

// Modifiers is a bit set of held modifier keys.
type Modifiers uint8

// Modifier bits.
const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

// KeyEvent is one key transition.
type KeyEvent struct {
	Key    Key
	Down   bool
	Repeat bool
	Mods   Modifiers
}

// KeyRepeat is the host's key-repeat timing.
type KeyRepeat struct {
	// Delay is the time a key must be held before it starts repeating.
	Delay time.Duration
	// Rate is the interval between repeats.
	Rate time.Duration
}

// Snapshot is a capture of input state for one poll cycle or one consumed
// frame. Snapshots are values; Merge and Consumed never alias the slices of
// their receiver or argument.
type Snapshot struct {
	// Mouse is the cursor position. Continuous.
	Mouse Point
	// Down reports which buttons are held. Continuous.
	Down [ButtonCount]bool

	// Pressed and Released are sticky edge flags, set when a button went
	// down or up at least once since the last consume.
	Pressed  [ButtonCount]bool
	Released [ButtonCount]bool

	// WheelX and WheelY accumulate scroll deltas since the last consume.
	WheelX, WheelY float32

	// Keys and Chars hold key transitions and committed character input
	// in arrival order.
	Keys  []KeyEvent
	Chars []rune

	// Repeat is the host key-repeat configuration. Continuous.
	Repeat KeyRepeat

	// Composing reports an active IME composition and Preedit holds its
	// uncommitted preview text. Continuous.
	Composing bool
	Preedit   string
}

// Merge returns s combined with the newer snapshot in.
//
// Continuous fields come from in, edge flags are OR-ed, wheel deltas are
// summed and event sequences are concatenated with s's events first.
func (s Snapshot) Merge(in Snapshot) Snapshot {
	out := in
	for b := range ButtonCount {
		out.Pressed[b] = s.Pressed[b] || in.Pressed[b]
		out.Released[b] = s.Released[b] || in.Released[b]
	}
	out.WheelX = s.WheelX + in.WheelX
	out.WheelY = s.WheelY + in.WheelY
	out.Keys = concat(s.Keys, in.Keys)
	out.Chars = concat(s.Chars, in.Chars)
	return out
}

// Consumed returns s with the discrete fields cleared and the continuous
// fields kept.
func (s Snapshot) Consumed() Snapshot {
	return Snapshot{
		Mouse:     s.Mouse,
		Down:      s.Down,
		Repeat:    s.Repeat,
		Composing: s.Composing,
		Preedit:   s.Preedit,
	}
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Keys = concat(nil, s.Keys)
	out.Chars = concat(nil, s.Chars)
	return out
}

// HasDiscrete reports whether s carries any discrete input: a key or char
// event, a button edge, or a wheel delta larger than WheelEpsilon.
func (s Snapshot) HasDiscrete() bool {
	if len(s.Keys) > 0 || len(s.Chars) > 0 {
		return true
	}
	for b := range ButtonCount {
		if s.Pressed[b] || s.Released[b] {
			return true
		}
	}
	return abs32(s.WheelX) > WheelEpsilon || abs32(s.WheelY) > WheelEpsilon
}

// sanitized returns s with malformed data removed, along with the number of
// dropped items. Out-of-range runes and keys are dropped, non-finite wheel
// deltas become zero and a non-finite cursor position is replaced by last.
func (s Snapshot) sanitized(last Point) (Snapshot, int) {
	dropped := 0

	if !finite(s.Mouse.X) || !finite(s.Mouse.Y) {
		s.Mouse = last
		dropped++
	}
	if !finite(s.WheelX) {
		s.WheelX = 0
		dropped++
	}
	if !finite(s.WheelY) {
		s.WheelY = 0
		dropped++
	}

	if n := countInvalidChars(s.Chars); n > 0 {
		chars := make([]rune, 0, len(s.Chars)-n)
		for _, r := range s.Chars {
			if validChar(r) {
				chars = append(chars, r)
			}
		}
		s.Chars = chars
		dropped += n
	}

	if n := countInvalidKeys(s.Keys); n > 0 {
		keys := make([]KeyEvent, 0, len(s.Keys)-n)
		for _, k := range s.Keys {
			if k.Key >= 0 {
				keys = append(keys, k)
			}
		}
		s.Keys = keys
		dropped += n
	}

	return s, dropped
}

// validChar reports whether r is a character that can be typed: a valid
// scalar value that is not a C0/C1 control other than tab and newline.
func validChar(r rune) bool {
	if !utf8.ValidRune(r) {
		return false
	}
	if r == '\t' || r == '\n' {
		return true
	}
	return r >= 0x20 && (r < 0x7f || r > 0x9f)
}

func countInvalidChars(rs []rune) int {
	n := 0
	for _, r := range rs {
		if !validChar(r) {
			n++
		}
	}
	return n
}

func countInvalidKeys(ks []KeyEvent) int {
	n := 0
	for _, k := range ks {
		if k.Key < 0 {
			n++
		}
	}
	return n
}

func concat[T any](a, b []T) []T {
	if len(a)+len(b) == 0 {
		return nil
	}
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
