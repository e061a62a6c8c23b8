package frameloop

import "time"

// fpsWindow is the length of the rolling frame-rate window.
const fpsWindow = 500 * time.Millisecond

// fpsCounter measures the frame rate over a rolling window.
type fpsCounter struct {
	start  time.Time
	frames int
	fps    float64
}

// tick records a frame at now and returns the current estimate. The
// estimate is refreshed once per window.
func (c *fpsCounter) tick(now time.Time) float64 {
	if c.start.IsZero() {
		c.start = now
	}
	c.frames++
	if elapsed := now.Sub(c.start); elapsed >= fpsWindow {
		c.fps = float64(c.frames) / elapsed.Seconds()
		c.frames = 0
		c.start = now
	}
	return c.fps
}
