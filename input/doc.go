// Package input carries raw platform input across the poll/render goroutine
// boundary without losing events.
//
// The poll goroutine captures a Snapshot every cycle and publishes it into
// an Aggregator. Publishing merges additively: continuous state (cursor
// position, held buttons, IME composition) takes the newest value, edge
// flags are OR-ed, wheel deltas are summed and key/char events are
// concatenated in arrival order. The render goroutine consumes the merged
// snapshot once per frame, which clears the discrete fields but keeps the
// continuous ones.
package input
