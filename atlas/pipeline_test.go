package atlas

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/frameloop/glyph"
	"github.com/gogpu/frameloop/internal/parallel"
)

var errBoom = errors.New("boom")

// manualPool queues jobs until the test runs them, so completion order is
// under test control.
type manualPool struct {
	queue  []func()
	closed bool
}

func (p *manualPool) Submit(fn func()) bool {
	if p.closed {
		return false
	}
	p.queue = append(p.queue, fn)
	return true
}

func (p *manualPool) run(i int) {
	p.queue[i]()
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// fakeRaster returns a 1x1 atlas holding every requested codepoint.
type fakeRaster struct {
	builds []Settings
	fail   func(Settings) error
	panics bool
}

func (f *fakeRaster) Build(codepoints []rune, s Settings) (*Atlas, error) {
	f.builds = append(f.builds, s)
	if f.panics && s.Tier == TierFinal {
		panic("rasterizer exploded")
	}
	if f.fail != nil {
		if err := f.fail(s); err != nil {
			return nil, err
		}
	}
	glyphs := make(map[rune]Glyph, len(codepoints))
	for _, r := range codepoints {
		glyphs[r] = Glyph{Width: 1, Height: 1}
	}
	return NewAtlas(1, 1, s.Format, s.Tier, make([]byte, BytesPerPixel(s.Format)), glyphs), nil
}

type harness struct {
	p       *Pipeline
	pool    *manualPool
	raster  *fakeRaster
	tracker *glyph.Tracker
	clock   *fakeClock
}

// newHarness returns an unstarted pipeline whose Full set is Latin-1 and
// whose Active set is printable ASCII.
func newHarness() *harness {
	h := &harness{
		pool:   &manualPool{},
		raster: &fakeRaster{},
		clock:  &fakeClock{t: time.Unix(1_700_000_000, 0)},
	}
	h.tracker = glyph.NewTracker(glyph.Range(0x20, 0xFF), glyph.Range(0x20, 0x7E))
	h.p = NewPipeline(DefaultConfig(), h.raster, h.pool, h.tracker, h.clock.now)
	return h
}

func startedHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness()
	if err := h.p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return h
}

// warmHarness returns a pipeline whose full-warm build has committed.
func warmHarness(t *testing.T) *harness {
	t.Helper()
	h := startedHarness(t)
	h.pool.run(0)
	h.update(t)
	if h.p.Tier() != TierFinal {
		t.Fatalf("Tier() after full warm = %v, want final", h.p.Tier())
	}
	h.p.ClearTextureDirty()
	return h
}

func (h *harness) update(t *testing.T) {
	t.Helper()
	if err := h.p.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
}

func greek(n int) []rune {
	rs := make([]rune, n)
	for i := range rs {
		rs[i] = 0x3B1 + rune(i)
	}
	return rs
}

func TestPipeline_Start(t *testing.T) {
	h := startedHarness(t)

	a := h.p.Atlas()
	if a == nil {
		t.Fatal("Atlas() = nil after Start")
	}
	if a.Tier != TierStartup {
		t.Errorf("startup atlas tier = %v, want startup", a.Tier)
	}
	if a.GlyphCount() != 95 {
		t.Errorf("startup GlyphCount() = %d, want 95", a.GlyphCount())
	}
	if !h.p.TextureDirty() {
		t.Error("TextureDirty() = false after Start")
	}
	if !h.p.Busy() {
		t.Error("Busy() = false with the full-warm build queued")
	}
	if len(h.pool.queue) != 1 {
		t.Fatalf("queued jobs = %d, want 1", len(h.pool.queue))
	}
	if s := h.p.Stats(); s.Version != 1 || s.Committed != 0 {
		t.Errorf("Stats() version=%d committed=%d, want 1 and 0", s.Version, s.Committed)
	}

	h.p.ClearTextureDirty()
	if h.p.TextureDirty() {
		t.Error("TextureDirty() = true after ClearTextureDirty")
	}

	// Start is one-time.
	if err := h.p.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if len(h.raster.builds) != 1 || len(h.pool.queue) != 1 {
		t.Errorf("second Start() built again: builds=%d queued=%d", len(h.raster.builds), len(h.pool.queue))
	}
}

func TestPipeline_UpdateBeforeStart(t *testing.T) {
	h := newHarness()
	if err := h.p.Update(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Update() error = %v, want ErrNotStarted", err)
	}
}

func TestPipeline_StartError(t *testing.T) {
	h := newHarness()
	h.raster.fail = func(Settings) error { return errBoom }

	err := h.p.Start()
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("Start() error = %v, want *BuildError", err)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("Start() error does not wrap the rasterizer error: %v", err)
	}
	if h.p.Atlas() != nil {
		t.Error("Atlas() != nil after failed Start")
	}
}

func TestPipeline_FullWarm(t *testing.T) {
	h := startedHarness(t)
	h.pool.run(0)
	h.update(t)

	if h.p.Tier() != TierFinal || h.p.Atlas().Tier != TierFinal {
		t.Errorf("tier = %v / atlas %v, want final", h.p.Tier(), h.p.Atlas().Tier)
	}
	if !h.tracker.Complete() || !h.p.Stats().Complete {
		t.Error("Active does not cover Full after the full-warm commit")
	}
	if h.p.Busy() {
		t.Error("Busy() = true after the full-warm commit")
	}
	if !h.p.TextureDirty() {
		t.Error("TextureDirty() = false after commit")
	}
	if s := h.p.Stats(); s.Commits != 1 || s.Committed != 1 {
		t.Errorf("Stats() commits=%d committed=%d, want 1 and 1", s.Commits, s.Committed)
	}
}

func TestPipeline_BatchTrigger(t *testing.T) {
	h := warmHarness(t)
	h.clock.advance(100 * time.Millisecond)
	g := greek(16)

	h.p.AddCommitted(g[:10])
	h.update(t)
	if h.p.Pending() != 10 {
		t.Errorf("Pending() = %d, want 10", h.p.Pending())
	}
	if len(h.pool.queue) != 1 {
		t.Fatalf("rebuild scheduled below the batch size")
	}

	h.p.AddCommitted(g[10:])
	h.update(t)
	if len(h.pool.queue) != 2 {
		t.Fatalf("queued jobs = %d, want 2 after reaching the batch size", len(h.pool.queue))
	}
	if h.p.Pending() != 0 {
		t.Errorf("Pending() = %d after scheduling, want 0", h.p.Pending())
	}
	if n := len(h.raster.builds); n != 2 { // startup and full warm; the new job has not run
		t.Errorf("builds = %d, want 2", n)
	}

	h.pool.run(1)
	h.update(t)
	if got := h.raster.builds[2].Tier; got != TierFinal {
		t.Errorf("incremental tier = %v, want final after the warm commit", got)
	}
	for _, r := range g {
		if _, ok := h.p.Atlas().Glyph(r); !ok {
			t.Errorf("committed atlas is missing %q", r)
		}
	}
	if !h.p.TextureDirty() {
		t.Error("TextureDirty() = false after incremental commit")
	}
}

func TestPipeline_IntervalTrigger(t *testing.T) {
	h := warmHarness(t)

	h.p.AddCommitted([]rune{'α'})
	h.update(t)
	h.clock.advance(999 * time.Millisecond)
	h.update(t)
	if len(h.pool.queue) != 1 {
		t.Fatalf("rebuild scheduled before the interval elapsed")
	}

	h.clock.advance(time.Millisecond)
	h.update(t)
	if len(h.pool.queue) != 2 {
		t.Fatalf("no rebuild after the interval elapsed")
	}
}

func TestPipeline_NoPendingNoRebuild(t *testing.T) {
	h := warmHarness(t)
	h.p.AddCommitted([]rune("hello"))
	if h.p.Pending() != 0 {
		t.Errorf("Pending() = %d for already active codepoints, want 0", h.p.Pending())
	}
	h.clock.advance(time.Hour)
	h.update(t)
	if len(h.pool.queue) != 1 {
		t.Error("rebuild scheduled with nothing pending")
	}
}

func TestPipeline_AddCommittedNormalizes(t *testing.T) {
	h := startedHarness(t)
	h.p.AddCommitted([]rune("e\u0301"))

	if !h.tracker.Active().Has('é') {
		t.Error("composed é not added to Active")
	}
	if h.tracker.Active().Has(0x301) {
		t.Error("combining acute added to Active")
	}
	if h.p.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", h.p.Pending())
	}
}

func TestPipeline_MissFloor(t *testing.T) {
	h := warmHarness(t)

	if !h.tracker.EnsureCovered('α') {
		t.Fatal("EnsureCovered() = false while fallback is allowed")
	}
	h.p.FoldMisses(h.tracker.TakeMisses())
	if h.p.Pending() != 16 {
		t.Errorf("Pending() = %d after one miss, want 16", h.p.Pending())
	}
	h.update(t)
	if len(h.pool.queue) != 2 {
		t.Error("a single miss did not schedule a rebuild")
	}
}

func TestPipeline_StaleResultDropped(t *testing.T) {
	h := startedHarness(t)

	// Full warm is v1; this incremental becomes v2 and supersedes it.
	h.p.AddCommitted(greek(16))
	h.update(t)
	if len(h.pool.queue) != 2 {
		t.Fatalf("queued jobs = %d, want 2", len(h.pool.queue))
	}

	h.pool.run(1)
	h.update(t)
	if h.raster.builds[1].Tier != TierFinal {
		t.Errorf("superseding incremental tier = %v, want final", h.raster.builds[1].Tier)
	}
	live := h.p.Atlas()
	if _, ok := live.Glyph('é'); !ok {
		t.Error("superseding build does not cover the full-warm set")
	}
	if h.p.Stats().Committed != 2 {
		t.Fatalf("Committed = %d, want 2", h.p.Stats().Committed)
	}

	h.pool.run(0)
	h.update(t)
	s := h.p.Stats()
	if s.Stale != 1 {
		t.Errorf("Stale = %d, want 1", s.Stale)
	}
	if s.Committed != 2 {
		t.Errorf("Committed = %d after stale result, want 2", s.Committed)
	}
	if h.p.Atlas() != live {
		t.Error("stale result replaced the live atlas")
	}
	if h.p.Tier() != TierFinal {
		t.Errorf("Tier() = %v, want final", h.p.Tier())
	}
}

func TestPipeline_CommitKeepsUnbuilt(t *testing.T) {
	h := warmHarness(t)
	h.p.AddCommitted(greek(16))
	h.update(t)

	// Typed while the greek build is in flight.
	h.p.AddCommitted([]rune("ж"))
	h.pool.run(1)
	h.update(t)

	if !h.tracker.Active().Has('ж') {
		t.Error("commit of an older build dropped a pending codepoint from Active")
	}
	if h.p.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", h.p.Pending())
	}

	h.clock.advance(time.Second)
	h.update(t)
	if len(h.pool.queue) != 3 {
		t.Fatalf("queued jobs = %d, want 3", len(h.pool.queue))
	}
	h.pool.run(2)
	h.update(t)
	if _, ok := h.p.Atlas().Glyph('ж'); !ok {
		t.Error("interval rebuild does not cover the pending codepoint")
	}
}

func TestPipeline_InOrderResultsCommit(t *testing.T) {
	h := startedHarness(t)
	h.p.AddCommitted(greek(16))
	h.update(t)

	h.pool.run(0)
	h.pool.run(1)
	h.update(t)

	s := h.p.Stats()
	if s.Commits != 2 || s.Stale != 0 || s.Committed != 2 {
		t.Errorf("Stats() commits=%d stale=%d committed=%d, want 2, 0, 2", s.Commits, s.Stale, s.Committed)
	}
}

func TestPipeline_CompositionSchedulesImmediately(t *testing.T) {
	h := warmHarness(t)

	h.p.SetComposition(true, "日本語")
	if !h.p.Composing() {
		t.Error("Composing() = false")
	}
	if h.p.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 for preview codepoints", h.p.Pending())
	}
	if h.tracker.EnsureCovered('日') {
		t.Error("EnsureCovered('日') = true before the preview atlas is built")
	}
	h.update(t)
	if len(h.pool.queue) != 2 {
		t.Fatalf("queued jobs = %d, want 2", len(h.pool.queue))
	}

	h.pool.run(1)
	h.update(t)
	for _, r := range "日本語" {
		if _, ok := h.p.Atlas().Glyph(r); !ok {
			t.Errorf("preview atlas missing %q", r)
		}
		if h.tracker.Active().Has(r) {
			t.Errorf("preview codepoint %q entered Active", r)
		}
	}
	if !h.tracker.EnsureCovered('日') {
		t.Error("EnsureCovered('日') = false with the preview atlas live")
	}
	if n := len(h.tracker.TakeMisses()); n != 0 {
		t.Errorf("misses = %d, want 0", n)
	}
	if n := h.p.Stats().Cache.Len; n != 1 {
		t.Errorf("temp cache len = %d, want 1", n)
	}
}

func TestPipeline_CompositionReusesCachedAtlas(t *testing.T) {
	h := warmHarness(t)

	h.p.SetComposition(true, "か")
	h.update(t)
	h.pool.run(1)
	h.update(t)
	first := h.p.Atlas()

	// Cancel, then compose the same text again.
	h.p.SetComposition(false, "")
	h.update(t)
	h.p.SetComposition(true, "か")
	h.update(t)

	if len(h.pool.queue) != 2 {
		t.Errorf("queued jobs = %d, want 2 (full warm and one preview build)", len(h.pool.queue))
	}
	if s := h.p.Stats(); s.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", s.CacheHits)
	}
	if h.p.Atlas() != first {
		t.Error("recomposing replaced the cached preview atlas")
	}
	if !h.tracker.EnsureCovered('か') {
		t.Error("EnsureCovered('か') = false after the cache hit")
	}
}

func TestPipeline_CompositionCandidateCycle(t *testing.T) {
	h := warmHarness(t)

	// Cycling between IME candidates builds each distinct preview once.
	previews := []string{"か", "仮", "か", "仮", "", "か", "仮"}
	ran := 1
	for range 3 {
		for _, pre := range previews {
			h.p.SetComposition(pre != "", pre)
			h.update(t)
			for ; ran < len(h.pool.queue); ran++ {
				h.pool.run(ran)
			}
			h.update(t)
		}
	}

	if got := len(h.raster.builds); got != 4 { // startup, full warm, か, 仮
		t.Errorf("builds = %d, want 4", got)
	}
	if s := h.p.Stats(); s.CacheHits == 0 {
		t.Error("CacheHits = 0 while cycling candidates")
	}
}

func TestPipeline_CompositionCacheHit(t *testing.T) {
	h := warmHarness(t)

	target := h.tracker.Active().Clone()
	target.Add('日')
	cached := NewAtlas(1, 1, FinalSettings().Format, TierFinal, nil, nil)
	h.p.temp.Set(target.Signature(true), cached)

	h.p.SetComposition(true, "日")
	h.update(t)

	if len(h.pool.queue) != 1 {
		t.Errorf("cache hit still scheduled a build")
	}
	if h.p.Atlas() != cached {
		t.Error("cached atlas not adopted")
	}
	s := h.p.Stats()
	if s.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", s.CacheHits)
	}
	if s.Committed != s.Version {
		t.Errorf("Committed = %d, want %d", s.Committed, s.Version)
	}
	if !h.p.TextureDirty() {
		t.Error("TextureDirty() = false after adopting a cached atlas")
	}
	if h.p.Busy() {
		t.Error("Busy() = true after a cache hit")
	}
}

func TestPipeline_CompositionWaitsForInFlight(t *testing.T) {
	h := warmHarness(t)
	h.p.AddCommitted(greek(16))
	h.update(t)

	h.p.SetComposition(true, "日")
	h.update(t)
	if len(h.pool.queue) != 2 {
		t.Fatalf("composition build started while an incremental build is in flight")
	}

	// The incremental build does not cover the preview, so the preview is
	// built once it commits.
	h.pool.run(1)
	h.update(t)
	if len(h.pool.queue) != 3 {
		t.Fatalf("queued jobs = %d, want 3", len(h.pool.queue))
	}
	h.pool.run(2)
	h.update(t)
	if _, ok := h.p.Atlas().Glyph('日'); !ok {
		t.Error("composition build does not cover the preview")
	}
}

func TestPipeline_NotComposing(t *testing.T) {
	h := warmHarness(t)
	h.p.SetComposition(false, "日")
	if h.p.Pending() != 0 || h.p.Composing() {
		t.Errorf("Pending()=%d Composing()=%v, want 0 and false", h.p.Pending(), h.p.Composing())
	}
}

func TestPipeline_FaultedJob(t *testing.T) {
	h := newHarness()
	h.raster.fail = func(s Settings) error {
		if s.Tier == TierFinal {
			return errBoom
		}
		return nil
	}
	if err := h.p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.pool.run(0)

	err := h.p.Update()
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("Update() error = %v, want *BuildError", err)
	}
	if be.Kind != KindFull || be.Version != 1 {
		t.Errorf("BuildError kind=%v version=%d, want full v1", be.Kind, be.Version)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("BuildError does not wrap the rasterizer error")
	}
}

func TestPipeline_PanickingJob(t *testing.T) {
	h := newHarness()
	h.raster.panics = true
	if err := h.p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.pool.run(0)

	err := h.p.Update()
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("Update() error = %v, want *BuildError", err)
	}
	if !strings.Contains(err.Error(), "panic") {
		t.Errorf("error %q does not mention the panic", err)
	}
}

func TestPipeline_PoolClosed(t *testing.T) {
	h := newHarness()
	h.pool.closed = true
	if err := h.p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := h.p.Update(); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Update() error = %v, want ErrPoolClosed", err)
	}
}

func TestPipeline_WorkerPool(t *testing.T) {
	r, err := DefaultRasterizer()
	if err != nil {
		t.Fatal(err)
	}
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	tracker := glyph.NewTracker(glyph.Range(0x20, 0xFF), glyph.Range(0x20, 0x7E))
	p := NewPipeline(DefaultConfig(), r, pool, tracker, nil)
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for p.Tier() != TierFinal {
		if time.Now().After(deadline) {
			t.Fatal("full-warm build did not commit")
		}
		if err := p.Update(); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := p.Atlas().Glyph('é'); !ok {
		t.Error("final atlas is missing é")
	}
	if p.Busy() {
		t.Error("Busy() = true after the full-warm commit")
	}
}

func TestPipeline_DrainThenSchedule(t *testing.T) {
	h := warmHarness(t)
	if _, ok := h.p.RebuildDue(); ok {
		t.Error("RebuildDue() ok with nothing pending")
	}

	h.p.AddCommitted([]rune{'α'})
	due, ok := h.p.RebuildDue()
	if !ok || !due.Equal(h.clock.now().Add(time.Second)) {
		t.Errorf("RebuildDue() = %v, %v, want start+1s, true", due, ok)
	}

	if err := h.p.Drain(); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	h.clock.advance(time.Second)
	if err := h.p.Drain(); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(h.pool.queue) != 1 {
		t.Fatal("Drain() scheduled a build")
	}
	h.p.Schedule()
	if len(h.pool.queue) != 2 {
		t.Error("Schedule() did not start the due build")
	}
}
