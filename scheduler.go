package frameloop

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/frameloop/atlas"
	"github.com/gogpu/frameloop/glyph"
	"github.com/gogpu/frameloop/input"
	"github.com/gogpu/frameloop/internal/parallel"
	"github.com/gogpu/frameloop/internal/wake"
	"github.com/gogpu/frameloop/texsync"
)

// Stats reports scheduler counters. It is safe to call from any goroutine.
type Stats struct {
	// Frames is the number of rendered frames and IdleParks the number of
	// times the render goroutine parked instead of rendering.
	Frames    uint64
	IdleParks uint64

	// PendingRequests is the number of unconsumed frame requests.
	PendingRequests int

	// FPS is the latest rolling frame-rate estimate.
	FPS float64

	// InputPublished and InputDropped count poll publications and
	// discarded malformed input items.
	InputPublished uint64
	InputDropped   uint64

	// Atlas holds the build pipeline counters as of the last frame.
	Atlas atlas.Stats
}

// Scheduler drives the poll and render goroutines.
//
// Create one with New and start it with Run. RequestFrame, Stop, Parked and
// Stats are safe to call from any goroutine.
type Scheduler struct {
	cfg      Config
	platform Platform
	renderer Renderer
	ui       UI
	raster   atlas.Rasterizer

	wake     *wake.Signal
	requests *wake.Requests
	input    *input.Aggregator
	tracker  *glyph.Tracker

	// Owned by the render goroutine.
	pipeline   *atlas.Pipeline
	textures   *texsync.Queue
	fps        fpsCounter
	rendered   bool
	lastFrame  time.Time
	lastMouse  input.Point
	lastDown   [input.ButtonCount]bool
	lastWindow image.Point
	lastFB     image.Point
	lastIME    imeState
	mirrored   bool
	vsync      bool
	aa         bool

	started  atomic.Bool
	stopped  atomic.Bool
	parked   atomic.Bool
	quit     chan struct{}
	quitOnce sync.Once

	// cursor is written by the render goroutine and applied by the poll
	// goroutine.
	cursor atomic.Uint32

	frames    atomic.Uint64
	idleParks atomic.Uint64
	fpsBits   atomic.Uint64

	statsMu    sync.Mutex
	atlasStats atlas.Stats
}

type imeState struct {
	composing bool
	preedit   string
}

// New returns a scheduler for the given platform, renderer and UI.
func New(platform Platform, renderer Renderer, ui UI, opts ...Option) (*Scheduler, error) {
	switch {
	case platform == nil:
		return nil, ErrNilPlatform
	case renderer == nil:
		return nil, ErrNilRenderer
	case ui == nil:
		return nil, ErrNilUI
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	raster := cfg.Rasterizer
	if raster == nil {
		fr, err := atlas.DefaultRasterizer()
		if err != nil {
			return nil, fmt.Errorf("frameloop: default rasterizer: %w", err)
		}
		raster = fr
	}

	startup := glyph.NewSet(cfg.StartupCodepoints...)
	full := glyph.NewSet(cfg.Codepoints...)

	w := wake.NewSignal()
	return &Scheduler{
		cfg:      cfg,
		platform: platform,
		renderer: renderer,
		ui:       ui,
		raster:   raster,
		wake:     w,
		requests: wake.NewRequests(w),
		input:    input.NewAggregator(platform, w),
		tracker:  glyph.NewTracker(full, startup),
		textures: texsync.NewQueue(),
		quit:     make(chan struct{}),
	}, nil
}

// Run starts the scheduler and blocks until it stops.
//
// The calling goroutine becomes the poll goroutine and must be the one the
// platform requires for its event pump (usually the main goroutine, locked
// to the main thread). Rendering happens on a separate goroutine locked to
// its own OS thread.
//
// Run returns nil after Stop or when ctx is done. A faulted atlas build or
// a renderer error stops the loop and is returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	pool := parallel.NewWorkerPool(s.cfg.Workers)
	defer pool.Close()

	s.pipeline = atlas.NewPipeline(s.cfg.pipelineConfig(), s.raster, pool, s.tracker, s.cfg.Clock)
	if err := s.pipeline.Start(); err != nil {
		return fmt.Errorf("frameloop: %w", err)
	}

	stop := context.AfterFunc(ctx, s.Stop)
	defer stop()

	Logger().Info("frameloop: started",
		slog.Bool("idleSkip", s.cfg.IdleSkip),
		slog.Int("workers", pool.Workers()),
		slog.Int("startupGlyphs", s.pipeline.Atlas().GlyphCount()))

	errc := make(chan error, 1)
	go func() {
		err := s.renderLoop()
		s.Stop()
		errc <- err
	}()

	s.pollLoop()
	err := <-errc

	Logger().Info("frameloop: stopped",
		slog.Uint64("frames", s.frames.Load()),
		slog.Uint64("idleParks", s.idleParks.Load()))
	return err
}

// Stop asks the scheduler to stop and wakes a parked render goroutine.
// It is safe to call multiple times and before Run.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
	s.quitOnce.Do(func() { close(s.quit) })
	s.wake.Set()
	if p, ok := s.platform.(EventPoster); ok {
		p.PostEmptyEvent()
	}
}

// RequestFrame forces one render pass even when nothing else changed. It
// may be called from any goroutine, including from inside BuildFrame.
func (s *Scheduler) RequestFrame() {
	s.requests.Request()
}

// Parked reports whether the render goroutine is parked on the idle wait.
func (s *Scheduler) Parked() bool {
	return s.parked.Load()
}

// Stats returns the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.statsMu.Lock()
	as := s.atlasStats
	s.statsMu.Unlock()
	return Stats{
		Frames:          s.frames.Load(),
		IdleParks:       s.idleParks.Load(),
		PendingRequests: s.requests.Pending(),
		FPS:             math.Float64frombits(s.fpsBits.Load()),
		InputPublished:  s.input.Published(),
		InputDropped:    s.input.Dropped(),
		Atlas:           as,
	}
}

func (s *Scheduler) renderLoop() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for !s.stopped.Load() {
		if err := s.tick(); err != nil {
			return err
		}
	}
	return nil
}

// tick runs one iteration of the render loop: it renders a frame or parks.
func (s *Scheduler) tick() error {
	// The order of the first four steps matters: a frame request that
	// races with an input event is drained before the park decision.
	frame := s.input.Consume()
	invalidated := s.inputInvalidated(frame)
	pendingWork := s.pipeline.TextureDirty() || s.pipeline.Busy()
	requested := s.requests.TryConsume()

	if s.cfg.IdleSkip && s.rendered && !invalidated && !pendingWork && !requested {
		s.park()
		return nil
	}
	return s.render(frame)
}

// inputInvalidated reports whether the consumed input warrants a frame.
func (s *Scheduler) inputInvalidated(f input.Frame) bool {
	snap := &f.Snapshot
	if snap.HasDiscrete() {
		return true
	}
	if snap.Down != s.lastDown {
		return true
	}
	if input.Moved(s.lastMouse, snap.Mouse) {
		return true
	}
	if f.Window != s.lastWindow || f.Framebuffer != s.lastFB {
		return true
	}
	return imeState{snap.Composing, snap.Preedit} != s.lastIME
}

// park blocks on the wake signal. Codepoints waiting for the rebuild
// interval bound the wait so the interval trigger still fires.
func (s *Scheduler) park() {
	s.parked.Store(true)
	s.idleParks.Add(1)

	if due, ok := s.pipeline.RebuildDue(); ok {
		d := due.Sub(s.cfg.Clock())
		Logger().Debug("frameloop: parked", slog.Duration("until", d))
		s.wake.WaitTimeout(d)
		if d <= 0 {
			// Overdue: render once so Schedule can start the build.
			s.requests.Request()
		}
	} else {
		Logger().Debug("frameloop: parked")
		s.wake.Wait()
	}

	s.parked.Store(false)
}

// render builds and submits one frame.
func (s *Scheduler) render(f input.Frame) error {
	now := s.cfg.Clock()
	var delta time.Duration
	if !s.lastFrame.IsZero() {
		delta = now.Sub(s.lastFrame)
	}
	s.lastFrame = now
	fps := s.fps.tick(now)
	s.fpsBits.Store(math.Float64bits(fps))

	// Adopt finished builds before the UI runs so the draw data and the
	// uploaded texture come from the same atlas.
	if err := s.pipeline.Drain(); err != nil {
		return fmt.Errorf("frameloop: %w", err)
	}

	snap := f.Snapshot
	s.pipeline.SetComposition(snap.Composing, snap.Preedit)
	s.pipeline.AddCommitted(snap.Chars)
	s.tracker.SetBlocked(s.pipeline.Busy() || s.pipeline.Composing())

	fr := &Frame{
		Input: snap,
		Info: Info{
			Index:            s.frames.Load(),
			Time:             now,
			Delta:            delta,
			FPS:              fps,
			DisplaySize:      f.Window,
			FramebufferSize:  f.Framebuffer,
			FramebufferScale: framebufferScale(f.Window, f.Framebuffer),
		},
		Atlas:  s.pipeline.Atlas(),
		glyphs: s.tracker,
		sched:  s,
	}
	out := s.ui.BuildFrame(fr)

	s.pipeline.FoldMisses(s.tracker.TakeMisses())
	s.pipeline.Schedule()

	if s.pipeline.TextureDirty() {
		s.textures.SyncFont(s.pipeline.Atlas())
		s.pipeline.ClearTextureDirty()
	}
	s.textures.EnsureWhite()

	s.mirror(out)
	s.cursor.Store(uint32(out.Cursor))

	if err := s.renderer.Render(out.Draw, s.textures.Flush()); err != nil {
		Logger().Warn("frameloop: render failed", slog.Any("err", err))
		return fmt.Errorf("frameloop: render: %w", err)
	}

	s.rendered = true
	s.lastMouse = snap.Mouse
	s.lastDown = snap.Down
	s.lastWindow = f.Window
	s.lastFB = f.Framebuffer
	s.lastIME = imeState{snap.Composing, snap.Preedit}
	s.frames.Add(1)

	st := s.pipeline.Stats()
	s.statsMu.Lock()
	s.atlasStats = st
	s.statsMu.Unlock()
	return nil
}

// mirror forwards VSync and anti-aliasing to the renderer on the first
// frame and on change.
func (s *Scheduler) mirror(out FrameOutput) {
	if !s.mirrored || out.VSync != s.vsync {
		s.renderer.SetVSync(out.VSync)
		s.vsync = out.VSync
	}
	if !s.mirrored || out.AntiAliasing != s.aa {
		s.renderer.SetAntiAliasing(out.AntiAliasing)
		s.aa = out.AntiAliasing
	}
	s.mirrored = true
}

// pollLoop pumps platform events and publishes input until Stop. While the
// render goroutine is parked it blocks in the platform wait instead of
// polling on a timer.
func (s *Scheduler) pollLoop() {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	applied := Cursor(math.MaxUint8)
	for !s.stopped.Load() {
		if s.parked.Load() {
			s.platform.WaitEvents(s.cfg.IdleWaitTimeout)
		} else {
			s.platform.PollEvents()
		}

		if c := Cursor(s.cursor.Load()); c != applied && s.frames.Load() > 0 {
			s.platform.SetCursor(c)
			applied = c
		}

		s.input.Poll()

		if s.parked.Load() {
			continue
		}
		select {
		case <-s.quit:
			return
		case <-ticker.C:
		}
	}
}
