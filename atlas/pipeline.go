package atlas

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-text/typesetting/language"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/frameloop/cache"
	"github.com/gogpu/frameloop/glyph"
)

// Config controls rebuild scheduling.
type Config struct {
	// BatchSize is the pending-codepoint count that triggers a rebuild
	// regardless of MinInterval. It is also the floor applied to the
	// pending count after a render-time miss.
	BatchSize int

	// MinInterval is the time after the previous rebuild at which any
	// pending codepoint triggers a rebuild.
	MinInterval time.Duration

	// CacheCapacity and CacheTTL bound the temp-atlas cache.
	CacheCapacity int
	CacheTTL      time.Duration

	// Startup and Final are the settings of the two quality tiers.
	Startup Settings
	Final   Settings
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:     16,
		MinInterval:   time.Second,
		CacheCapacity: cache.DefaultCapacity,
		CacheTTL:      cache.DefaultTTL,
		Startup:       StartupSettings(),
		Final:         FinalSettings(),
	}
}

// Stats reports pipeline counters.
type Stats struct {
	// Version is the newest assigned build version; Committed is the
	// version of the live atlas.
	Version   uint64
	Committed uint64

	Scheduled uint64
	Commits   uint64
	Stale     uint64
	CacheHits uint64

	// Pending is the current pending-codepoint count.
	Pending int

	// Complete reports whether Active covers every requested codepoint.
	Complete bool

	Cache cache.Stats
}

// Pipeline schedules atlas builds and owns the live atlas.
//
// Every method must be called from the render goroutine. Background jobs
// never touch Pipeline state; their results are collected by Update.
type Pipeline struct {
	cfg     Config
	raster  Rasterizer
	pool    Submitter
	tracker *glyph.Tracker
	temp    *cache.TTL[uint64, *Atlas]
	now     func() time.Time

	started bool
	live    *Atlas
	liveSet *glyph.Set
	dirty   bool
	tier    Tier

	pending     int
	lastRebuild time.Time

	version   uint64
	committed uint64

	incremental *job
	full        *job

	composing bool
	preedit   string

	// preview holds the codepoints of the current preedit missing from
	// Active. It is resolved through the temp-atlas cache and never enters
	// Active; previewDirty is set until it has been resolved.
	preview      *glyph.Set
	previewDirty bool

	// unbuilt holds codepoints added to Active since the last scheduled
	// build. They survive commits of builds that predate them.
	unbuilt *glyph.Set

	stats Stats
}

// NewPipeline returns a pipeline that rasterizes with r on pool and keeps
// tracker's Active set in sync with the live atlas. now may be nil.
func NewPipeline(cfg Config, r Rasterizer, pool Submitter, tracker *glyph.Tracker, now func() time.Time) *Pipeline {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if now == nil {
		now = time.Now
	}
	temp := cache.NewTTL[uint64, *Atlas](cfg.CacheCapacity, cfg.CacheTTL)
	temp.SetClock(now)
	return &Pipeline{
		cfg:     cfg,
		raster:  r,
		pool:    pool,
		tracker: tracker,
		temp:    temp,
		now:     now,
		unbuilt: glyph.NewSet(),
		preview: glyph.NewSet(),
	}
}

// Start builds the startup atlas synchronously from the Active set and
// schedules the one-time full-warm build against the Full set.
func (p *Pipeline) Start() error {
	if p.started {
		return nil
	}
	active := p.tracker.Active().Clone()
	a, err := p.raster.Build(active.Sorted(), p.cfg.Startup)
	if err == nil && a == nil {
		err = ErrNilAtlas
	}
	if err != nil {
		return &BuildError{Kind: KindIncremental, Err: err}
	}

	p.started = true
	p.live = a
	p.liveSet = active.Clone()
	p.dirty = true
	p.tier = TierStartup
	p.lastRebuild = p.now()
	p.tracker.SetActive(active)

	p.full = p.schedule(KindFull, p.tracker.Full().Clone(), p.cfg.Final)
	slogger().Info("atlas: startup atlas ready",
		slog.Int("glyphs", a.GlyphCount()),
		slog.Int("full", p.tracker.Full().Len()))
	return nil
}

// AddCommitted records committed text (typed characters or IME commits).
// Codepoints new to the Active set are added to it and counted as pending.
func (p *Pipeline) AddCommitted(chars []rune) {
	if len(chars) == 0 {
		return
	}
	for _, r := range norm.NFC.String(string(chars)) {
		if p.tracker.Request(r) {
			p.unbuilt.Add(r)
			p.pending++
		}
	}
}

// SetComposition updates the IME state. Preview codepoints missing from
// Active are served from temporary atlases built for Active plus the
// preview; they do not count as pending and are forgotten when the
// composition ends or changes.
func (p *Pipeline) SetComposition(composing bool, preedit string) {
	if !composing {
		preedit = ""
	}
	p.composing = composing
	if preedit == p.preedit {
		return
	}
	p.preedit = preedit

	p.preview = glyph.NewSet()
	for _, r := range norm.NFC.String(preedit) {
		if !p.tracker.Active().Has(r) {
			p.preview.Add(r)
		}
	}
	p.previewDirty = p.preview.Len() > 0
	p.tracker.SetPreview(p.preview.Clone(), p.liveSet.Contains(p.preview))
}

// FoldMisses adds the frame's render-time glyph misses to the pending
// count, with a floor of the batch size so that a single miss schedules a
// rebuild promptly.
func (p *Pipeline) FoldMisses(misses []rune) {
	if len(misses) == 0 {
		return
	}
	for _, r := range misses {
		p.unbuilt.Add(r)
	}
	p.bump(len(misses))
	if l := slogger(); l.Enabled(context.Background(), slog.LevelDebug) {
		for _, r := range misses {
			l.Debug("atlas: glyph miss",
				slog.String("rune", string(r)),
				slog.Any("script", language.LookupScript(r)))
		}
	}
}

func (p *Pipeline) bump(n int) {
	p.pending = max(p.pending+n, p.cfg.BatchSize)
}

// Update drains finished jobs and then schedules a new incremental build
// when warranted. It is Drain followed by Schedule.
func (p *Pipeline) Update() error {
	if err := p.Drain(); err != nil {
		return err
	}
	p.Schedule()
	return nil
}

// Drain commits or discards the results of finished jobs. A faulted job is
// returned as a *BuildError; the caller must treat it as fatal.
func (p *Pipeline) Drain() error {
	if !p.started {
		return ErrNotStarted
	}
	if j := p.full; j != nil && j.completed() {
		p.full = nil
		if err := p.finish(j); err != nil {
			return err
		}
	}
	if j := p.incremental; j != nil && j.completed() {
		p.incremental = nil
		if err := p.finish(j); err != nil {
			return err
		}
	}
	return nil
}

// Schedule starts an incremental build if none is in flight and the
// pending count or the time since the previous rebuild warrants one. While
// composing, the build goes through the temp-atlas cache instead.
func (p *Pipeline) Schedule() {
	if p.started {
		p.maybeSchedule(p.now())
	}
}

// finish commits or discards a completed job.
func (p *Pipeline) finish(j *job) error {
	if j.err != nil {
		slogger().Warn("atlas: build failed",
			slog.String("kind", j.kind.String()),
			slog.Uint64("version", j.version),
			slog.Any("err", j.err))
		return &BuildError{Version: j.version, Kind: j.kind, Err: j.err}
	}
	if j.temp {
		p.temp.Set(j.signature, j.atlas)
	}
	if j.version <= p.committed {
		p.stats.Stale++
		slogger().Debug("atlas: stale build dropped",
			slog.String("kind", j.kind.String()),
			slog.Uint64("version", j.version),
			slog.Uint64("committed", p.committed))
		return nil
	}
	if j.temp {
		p.adopt(j.version, j.atlas, j.codepoints)
		return nil
	}
	p.commit(j.version, j.atlas, j.codepoints)
	if j.kind == KindFull {
		slogger().Info("atlas: full-warm build committed",
			slog.Uint64("version", j.version),
			slog.Int("glyphs", j.atlas.GlyphCount()),
			slog.Bool("complete", p.tracker.Complete()))
	}
	return nil
}

// commit makes a the live atlas and sets Active to the codepoints it was
// built for plus those requested since.
func (p *Pipeline) commit(version uint64, a *Atlas, codepoints *glyph.Set) {
	p.install(version, a, codepoints)
	p.tracker.SetActive(codepoints.Union(p.unbuilt))

	// A regular build does not cover the preview.
	if p.preview.Len() > 0 && !codepoints.Contains(p.preview) {
		p.previewDirty = true
		p.tracker.SetPreview(p.preview.Clone(), false)
	}
}

// adopt makes a temporary atlas live without changing Active.
func (p *Pipeline) adopt(version uint64, a *Atlas, codepoints *glyph.Set) {
	p.install(version, a, codepoints)
	p.tracker.SetPreview(p.preview.Clone(), codepoints.Contains(p.preview))
}

func (p *Pipeline) install(version uint64, a *Atlas, codepoints *glyph.Set) {
	p.committed = version
	p.live = a
	p.liveSet = codepoints
	p.dirty = true
	if a.Tier == TierFinal {
		p.tier = TierFinal
	}
	p.stats.Commits++
}

// maybeSchedule starts an incremental build if none is in flight and the
// pending count or the elapsed time warrants one.
func (p *Pipeline) maybeSchedule(now time.Time) {
	if p.incremental != nil {
		return
	}
	if p.composing {
		if p.previewDirty {
			p.schedulePreview()
		}
		return
	}
	if p.pending == 0 {
		return
	}
	if p.pending < p.cfg.BatchSize && now.Sub(p.lastRebuild) < p.cfg.MinInterval {
		return
	}
	target, settings := p.target()
	p.incremental = p.schedule(KindIncremental, target, settings)
	p.unbuilt = glyph.NewSet()
	p.pending = 0
	p.lastRebuild = now
}

// schedulePreview resolves the composition preview: a cached atlas for
// Active plus the preview is adopted directly, a live atlas that already
// covers it is kept, and otherwise a temp build is scheduled.
func (p *Pipeline) schedulePreview() {
	p.previewDirty = false
	target, settings := p.target()
	target.AddSet(p.preview)
	sig := target.Signature(settings.Tier == TierFinal)

	if a, ok := p.temp.Get(sig); ok {
		p.stats.CacheHits++
		if a != p.live {
			p.version++
			p.adopt(p.version, a, target)
		} else {
			p.tracker.SetPreview(p.preview.Clone(), true)
		}
		slogger().Debug("atlas: composition atlas from cache",
			slog.Uint64("signature", sig),
			slog.Uint64("version", p.committed))
		return
	}
	if p.liveSet.Contains(target) {
		p.tracker.SetPreview(p.preview.Clone(), true)
		return
	}

	j := p.newJob(KindIncremental, target, settings)
	j.temp = true
	j.signature = sig
	p.submit(j)
	p.incremental = j
}

// target returns the codepoints and settings of the next incremental
// build: the Active set plus the unbuilt codepoints. While the full-warm
// build is in flight, an incremental build supersedes it: it covers the
// full-warm set too and uses final settings, so dropping the then-stale
// full-warm result loses nothing.
func (p *Pipeline) target() (*glyph.Set, Settings) {
	set := p.tracker.Active().Union(p.unbuilt)
	if p.full != nil {
		set.AddSet(p.full.codepoints)
		return set, p.cfg.Final
	}
	if p.tier == TierFinal {
		return set, p.cfg.Final
	}
	return set, p.cfg.Startup
}

func (p *Pipeline) schedule(kind Kind, codepoints *glyph.Set, s Settings) *job {
	j := p.newJob(kind, codepoints, s)
	p.submit(j)
	return j
}

func (p *Pipeline) newJob(kind Kind, codepoints *glyph.Set, s Settings) *job {
	p.version++
	return &job{
		version:    p.version,
		kind:       kind,
		codepoints: codepoints,
		settings:   s,
		done:       make(chan struct{}),
	}
}

func (p *Pipeline) submit(j *job) {
	p.stats.Scheduled++
	runes := j.codepoints.Sorted()
	if !p.pool.Submit(func() { j.run(p.raster, runes) }) {
		j.err = ErrPoolClosed
		close(j.done)
		return
	}
	slogger().Debug("atlas: build scheduled",
		slog.String("kind", j.kind.String()),
		slog.Uint64("version", j.version),
		slog.Int("codepoints", len(runes)),
		slog.Bool("temp", j.temp))
}

// Atlas returns the live atlas.
func (p *Pipeline) Atlas() *Atlas {
	return p.live
}

// TextureDirty reports whether the live atlas changed since the last
// ClearTextureDirty.
func (p *Pipeline) TextureDirty() bool {
	return p.dirty
}

// ClearTextureDirty marks the live atlas as uploaded.
func (p *Pipeline) ClearTextureDirty() {
	p.dirty = false
}

// Busy reports whether a full-warm or incremental build is in flight.
func (p *Pipeline) Busy() bool {
	return p.incremental != nil || p.full != nil
}

// Composing reports whether IME composition is active.
func (p *Pipeline) Composing() bool {
	return p.composing
}

// Tier returns the tier new incremental builds use.
func (p *Pipeline) Tier() Tier {
	return p.tier
}

// Pending returns the pending-codepoint count.
func (p *Pipeline) Pending() int {
	return p.pending
}

// RebuildDue returns the time at which the interval trigger will schedule
// the pending codepoints. ok is false when nothing is pending.
func (p *Pipeline) RebuildDue() (due time.Time, ok bool) {
	if p.pending == 0 {
		return time.Time{}, false
	}
	return p.lastRebuild.Add(p.cfg.MinInterval), true
}

// Stats returns pipeline counters.
func (p *Pipeline) Stats() Stats {
	s := p.stats
	s.Version = p.version
	s.Committed = p.committed
	s.Pending = p.pending
	s.Complete = p.tracker.Complete()
	s.Cache = p.temp.Stats()
	return s
}
