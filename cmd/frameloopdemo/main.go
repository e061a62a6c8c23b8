// Command frameloopdemo drives the frame scheduler against a headless
// scripted platform and a renderer that logs what it receives.
package main

import (
	"context"
	"flag"
	"image"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gogpu/frameloop"
	"github.com/gogpu/frameloop/input"
	"github.com/gogpu/frameloop/texsync"
)

func main() {
	var (
		idleSkip = flag.Bool("idle-skip", true, "park the render loop when nothing changes")
		batch    = flag.Int("batch", 16, "pending glyphs that trigger an immediate atlas rebuild")
		interval = flag.Duration("interval", time.Second, "minimum time between smaller rebuilds")
		cacheCap = flag.Int("cache", 4, "IME temp-atlas cache capacity")
		cacheTTL = flag.Duration("cache-ttl", 10*time.Second, "IME temp-atlas cache entry lifetime")
		workers  = flag.Int("workers", 0, "background build workers (0 = default)")
		text     = flag.String("text", "héllo wörld, привет", "text typed by the scripted platform")
		preedit  = flag.String("preedit", "日本語", "IME composition previewed after typing")
		step     = flag.Duration("step", 50*time.Millisecond, "delay between scripted events")
		linger   = flag.Duration("linger", 2*time.Second, "time to keep running after the script ends")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	frameloop.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	platform := newScriptPlatform(script(*text, *preedit, *step))
	renderer := &logRenderer{}
	ui := frameloop.UIFunc(func(f *frameloop.Frame) frameloop.FrameOutput {
		drawn := 0
		for _, r := range f.Input.Chars {
			if f.EnsureGlyph(r) {
				drawn++
			}
		}
		for _, r := range f.Input.Preedit {
			f.EnsureGlyph(r)
		}
		cursor := frameloop.CursorArrow
		if f.Input.Composing {
			cursor = frameloop.CursorText
		}
		return frameloop.FrameOutput{
			Draw:         drawn,
			VSync:        true,
			AntiAliasing: true,
			Cursor:       cursor,
		}
	})

	s, err := frameloop.New(platform, renderer, ui,
		frameloop.WithIdleSkip(*idleSkip),
		frameloop.WithRebuildBatchSize(*batch),
		frameloop.WithRebuildInterval(*interval),
		frameloop.WithTempAtlasCache(*cacheCap, *cacheTTL),
		frameloop.WithWorkers(*workers),
	)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	go func() {
		select {
		case <-platform.finished:
		case <-ctx.Done():
			return
		}
		select {
		case <-time.After(*linger):
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.Run(ctx); err != nil {
		log.Fatalf("Scheduler stopped: %v", err)
	}

	st := s.Stats()
	log.Printf("Rendered %d frames, parked %d times, %d atlas commits (%d stale, %d cache hits)\n",
		st.Frames, st.IdleParks, st.Atlas.Commits, st.Atlas.Stale, st.Atlas.CacheHits)
}

// event is one scripted platform change.
type event struct {
	delay time.Duration
	snap  input.Snapshot
}

// script types text one rune at a time, previews preedit as an IME
// composition, then commits it.
func script(text, preedit string, step time.Duration) []event {
	var evs []event
	for _, r := range text {
		evs = append(evs, event{delay: step, snap: input.Snapshot{Chars: []rune{r}}})
	}
	var pre []rune
	for _, r := range preedit {
		pre = append(pre, r)
		evs = append(evs, event{delay: step, snap: input.Snapshot{Composing: true, Preedit: string(pre)}})
	}
	if len(pre) > 0 {
		evs = append(evs, event{delay: step, snap: input.Snapshot{Chars: pre}})
	}
	return evs
}

// scriptPlatform replays events on the poll goroutine.
type scriptPlatform struct {
	events   []event
	next     time.Time
	wakeup   chan struct{}
	finished chan struct{}

	mu      sync.Mutex
	pending input.Snapshot
	ime     input.Snapshot
}

func newScriptPlatform(events []event) *scriptPlatform {
	return &scriptPlatform{
		events:   events,
		wakeup:   make(chan struct{}, 1),
		finished: make(chan struct{}),
	}
}

func (p *scriptPlatform) PollEvents() { p.advance(time.Now()) }

func (p *scriptPlatform) WaitEvents(timeout time.Duration) {
	if len(p.events) > 0 {
		if d := time.Until(p.next); d < timeout {
			timeout = d
		}
	}
	if timeout > 0 {
		select {
		case <-p.wakeup:
		case <-time.After(timeout):
		}
	}
	p.advance(time.Now())
}

func (p *scriptPlatform) PostEmptyEvent() {
	select {
	case p.wakeup <- struct{}{}:
	default:
	}
}

func (p *scriptPlatform) SetCursor(c frameloop.Cursor) {
	frameloop.Logger().Debug("demo: cursor", slog.String("shape", c.String()))
}

func (p *scriptPlatform) advance(now time.Time) {
	if p.next.IsZero() && len(p.events) > 0 {
		p.next = now.Add(p.events[0].delay)
	}
	for len(p.events) > 0 && !now.Before(p.next) {
		ev := p.events[0]
		p.events = p.events[1:]

		p.mu.Lock()
		// IME state is continuous: it persists until the next IME event.
		if ev.snap.Composing || (len(ev.snap.Chars) > 0 && p.ime.Composing) {
			p.ime = input.Snapshot{Composing: ev.snap.Composing, Preedit: ev.snap.Preedit}
		}
		p.pending = p.pending.Merge(ev.snap)
		p.mu.Unlock()

		if len(p.events) == 0 {
			close(p.finished)
			break
		}
		p.next = p.next.Add(p.events[0].delay)
	}
}

func (p *scriptPlatform) Snapshot() input.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.pending
	s.Composing = p.ime.Composing
	s.Preedit = p.ime.Preedit
	p.pending = input.Snapshot{}
	return s
}

func (p *scriptPlatform) WindowSize() image.Point      { return image.Pt(800, 600) }
func (p *scriptPlatform) FramebufferSize() image.Point { return image.Pt(1600, 1200) }

// logRenderer logs texture commands and frame contents.
type logRenderer struct {
	frames int
}

func (r *logRenderer) Render(draw any, textures []texsync.Command) error {
	r.frames++
	for _, c := range textures {
		frameloop.Logger().Info("demo: texture",
			slog.String("op", c.Op.String()),
			slog.Int("texture", int(c.Texture)),
			slog.Int("width", c.Width),
			slog.Int("height", c.Height),
			slog.Any("format", c.Format))
	}
	frameloop.Logger().Debug("demo: frame", slog.Int("index", r.frames), slog.Any("glyphs", draw))
	return nil
}

func (r *logRenderer) SetVSync(enabled bool) {
	frameloop.Logger().Info("demo: vsync", slog.Bool("enabled", enabled))
}

func (r *logRenderer) SetAntiAliasing(enabled bool) {
	frameloop.Logger().Info("demo: anti-aliasing", slog.Bool("enabled", enabled))
}
