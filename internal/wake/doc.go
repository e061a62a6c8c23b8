// Package wake provides the cross-goroutine wake primitives shared by the
// poll and render goroutines: a latched wake Signal and the saturating
// frame-request counter built on top of it.
package wake
