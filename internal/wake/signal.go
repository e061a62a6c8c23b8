package wake

import "time"

// Signal is a latched, auto-resetting wake event.
//
// Set marks the signal and never blocks. Wait blocks until the signal is set
// and then clears it. Sets that happen while nobody is waiting are latched
// (coalesced into one), so a Set that races with a subsequent Wait is never
// lost.
//
// Signal is safe for concurrent use. The zero value is not usable; use
// NewSignal.
type Signal struct {
	ch chan struct{}
}

// NewSignal returns an unset signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Set marks the signal, waking one pending or future Wait.
func (s *Signal) Set() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the signal is set, then resets it.
func (s *Signal) Wait() {
	<-s.ch
}

// WaitTimeout is Wait bounded by d. It reports whether the signal was set
// before the timeout.
func (s *Signal) WaitTimeout(d time.Duration) bool {
	if d <= 0 {
		return s.TryWait()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ch:
		return true
	case <-t.C:
		return false
	}
}

// TryWait resets the signal if it is set and reports whether it was.
func (s *Signal) TryWait() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}
