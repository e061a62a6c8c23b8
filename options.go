package frameloop

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/gogpu/frameloop/atlas"
	"github.com/gogpu/frameloop/cache"
	"github.com/gogpu/frameloop/glyph"
)

// Config holds the Scheduler configuration. Use DefaultConfig and Option
// functions rather than building it by hand.
type Config struct {
	// IdleSkip parks the render goroutine when nothing justifies a frame.
	IdleSkip bool

	// RebuildBatchSize is the pending-glyph count that triggers an atlas
	// rebuild immediately.
	RebuildBatchSize int

	// RebuildInterval is the minimum time between rebuilds triggered by a
	// pending count below RebuildBatchSize.
	RebuildInterval time.Duration

	// TempCacheCapacity and TempCacheTTL bound the IME temp-atlas cache.
	TempCacheCapacity int
	TempCacheTTL      time.Duration

	// StartupCodepoints seed the startup atlas. Codepoints adds to the Full
	// set built by the background full-warm build.
	StartupCodepoints []rune
	Codepoints        []rune

	// Rasterizer builds atlases. nil selects atlas.DefaultRasterizer.
	Rasterizer atlas.Rasterizer

	// StartupSettings and FinalSettings are the two atlas quality tiers.
	StartupSettings atlas.Settings
	FinalSettings   atlas.Settings

	// Workers sizes the background build pool. 0 picks a default.
	Workers int

	// PollInterval is the poll goroutine's cadence while the render
	// goroutine is active. IdleWaitTimeout bounds one platform wait while
	// it is parked.
	PollInterval    time.Duration
	IdleWaitTimeout time.Duration

	// Clock returns the current time. Tests substitute a fake clock.
	Clock func() time.Time
}

// DefaultConfig returns the default configuration: idle skip on, batches of
// 16 glyphs at most one second apart, a 4-entry temp-atlas cache with a 10s
// TTL, printable ASCII at startup and the Latin-1 supplement warmed in the
// background.
func DefaultConfig() Config {
	return Config{
		IdleSkip:          true,
		RebuildBatchSize:  16,
		RebuildInterval:   time.Second,
		TempCacheCapacity: cache.DefaultCapacity,
		TempCacheTTL:      cache.DefaultTTL,
		StartupCodepoints: glyph.Range(0x20, 0x7E).Sorted(),
		Codepoints:        glyph.Range(0xA0, 0xFF).Sorted(),
		StartupSettings:   atlas.StartupSettings(),
		FinalSettings:     atlas.FinalSettings(),
		PollInterval:      4 * time.Millisecond,
		IdleWaitTimeout:   250 * time.Millisecond,
		Clock:             time.Now,
	}
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.RebuildBatchSize < 1 {
		return &ConfigError{Field: "RebuildBatchSize", Reason: "must be at least 1"}
	}
	if c.RebuildInterval < 0 {
		return &ConfigError{Field: "RebuildInterval", Reason: "must be non-negative"}
	}
	if c.TempCacheCapacity < 1 {
		return &ConfigError{Field: "TempCacheCapacity", Reason: "must be at least 1"}
	}
	if c.TempCacheTTL <= 0 {
		return &ConfigError{Field: "TempCacheTTL", Reason: "must be positive"}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "Workers", Reason: "must be non-negative"}
	}
	if c.PollInterval <= 0 {
		return &ConfigError{Field: "PollInterval", Reason: "must be positive"}
	}
	if c.IdleWaitTimeout <= 0 {
		return &ConfigError{Field: "IdleWaitTimeout", Reason: "must be positive"}
	}
	if c.Clock == nil {
		return &ConfigError{Field: "Clock", Reason: "must not be nil"}
	}
	if !validRunes(c.StartupCodepoints) {
		return &ConfigError{Field: "StartupCodepoints", Reason: "contains an invalid codepoint"}
	}
	if !validRunes(c.Codepoints) {
		return &ConfigError{Field: "Codepoints", Reason: "contains an invalid codepoint"}
	}
	if err := settingsError("StartupSettings", &c.StartupSettings); err != nil {
		return err
	}
	return settingsError("FinalSettings", &c.FinalSettings)
}

func validRunes(rs []rune) bool {
	for _, r := range rs {
		if !utf8.ValidRune(r) {
			return false
		}
	}
	return true
}

func settingsError(field string, s *atlas.Settings) error {
	err := s.Validate()
	if err == nil {
		return nil
	}
	var se *atlas.SettingsError
	if errors.As(err, &se) {
		return &ConfigError{Field: field + "." + se.Field, Reason: se.Reason}
	}
	return &ConfigError{Field: field, Reason: err.Error()}
}

// pipelineConfig derives the atlas pipeline configuration.
func (c *Config) pipelineConfig() atlas.Config {
	return atlas.Config{
		BatchSize:     c.RebuildBatchSize,
		MinInterval:   c.RebuildInterval,
		CacheCapacity: c.TempCacheCapacity,
		CacheTTL:      c.TempCacheTTL,
		Startup:       c.StartupSettings,
		Final:         c.FinalSettings,
	}
}

// Option configures a Scheduler during creation.
//
// Example:
//
//	s, err := frameloop.New(platform, renderer, ui,
//	    frameloop.WithIdleSkip(false),
//	    frameloop.WithTempAtlasCache(8, 30*time.Second),
//	)
type Option func(*Config)

// WithIdleSkip enables or disables idle frame skip. Enabled by default.
func WithIdleSkip(enabled bool) Option {
	return func(c *Config) {
		c.IdleSkip = enabled
	}
}

// WithRebuildBatchSize sets the pending-glyph count that triggers an
// immediate atlas rebuild. It is also the floor applied after a render-time
// glyph miss.
func WithRebuildBatchSize(n int) Option {
	return func(c *Config) {
		c.RebuildBatchSize = n
	}
}

// WithRebuildInterval sets the minimum time between rebuilds of a pending
// count below the batch size.
func WithRebuildInterval(d time.Duration) Option {
	return func(c *Config) {
		c.RebuildInterval = d
	}
}

// WithTempAtlasCache sets the capacity and entry TTL of the IME temp-atlas
// cache.
func WithTempAtlasCache(capacity int, ttl time.Duration) Option {
	return func(c *Config) {
		c.TempCacheCapacity = capacity
		c.TempCacheTTL = ttl
	}
}

// WithStartupCodepoints sets the codepoints of the synchronous startup
// atlas.
func WithStartupCodepoints(rs []rune) Option {
	return func(c *Config) {
		c.StartupCodepoints = rs
	}
}

// WithCodepoints sets the extra codepoints warmed by the background
// full-warm build.
func WithCodepoints(rs []rune) Option {
	return func(c *Config) {
		c.Codepoints = rs
	}
}

// WithRasterizer sets the atlas rasterizer. Use this to inject a custom
// font or a test double.
func WithRasterizer(r atlas.Rasterizer) Option {
	return func(c *Config) {
		c.Rasterizer = r
	}
}

// WithAtlasSettings sets the startup and final atlas settings.
func WithAtlasSettings(startup, final atlas.Settings) Option {
	return func(c *Config) {
		c.StartupSettings = startup
		c.FinalSettings = final
	}
}

// WithWorkers sets the number of background build workers.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithPollInterval sets the poll goroutine's cadence while rendering.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = d
	}
}

// WithIdleWaitTimeout bounds a single platform wait while the render
// goroutine is parked.
func WithIdleWaitTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.IdleWaitTimeout = d
	}
}

// WithClock sets the time source used for frame timing, rebuild intervals
// and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Clock = now
	}
}
