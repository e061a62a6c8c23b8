package wake

import "sync/atomic"

// MaxPendingRequests is the saturation limit of Requests. Requests beyond
// this count are absorbed instead of wrapping the counter.
const MaxPendingRequests = 1 << 16

// Requests is a saturating counter of explicitly requested frames.
//
// Request may be called from any goroutine, including from inside the frame
// being built. TryConsume must only be called from the render goroutine.
type Requests struct {
	n    atomic.Int32
	wake *Signal
}

// NewRequests returns a counter that sets wake on every request.
// wake may be nil.
func NewRequests(wake *Signal) *Requests {
	return &Requests{wake: wake}
}

// Request adds one pending frame request and sets the wake signal.
func (r *Requests) Request() {
	for {
		cur := r.n.Load()
		if cur >= MaxPendingRequests {
			break
		}
		if r.n.CompareAndSwap(cur, cur+1) {
			break
		}
	}
	if r.wake != nil {
		r.wake.Set()
	}
}

// TryConsume removes one pending request if there is one and reports
// whether it did.
func (r *Requests) TryConsume() bool {
	for {
		cur := r.n.Load()
		if cur <= 0 {
			return false
		}
		if r.n.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// Pending returns the number of unconsumed requests.
func (r *Requests) Pending() int {
	return int(r.n.Load())
}
