package frameloop

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/frameloop/atlas"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if !c.IdleSkip {
		t.Error("IdleSkip = false, want true")
	}
	if c.RebuildBatchSize != 16 {
		t.Errorf("RebuildBatchSize = %d, want 16", c.RebuildBatchSize)
	}
	if c.RebuildInterval != time.Second {
		t.Errorf("RebuildInterval = %v, want 1s", c.RebuildInterval)
	}
	if c.TempCacheCapacity != 4 || c.TempCacheTTL != 10*time.Second {
		t.Errorf("temp cache = %d/%v, want 4/10s", c.TempCacheCapacity, c.TempCacheTTL)
	}
	if len(c.StartupCodepoints) != 95 {
		t.Errorf("len(StartupCodepoints) = %d, want 95 printable ASCII", len(c.StartupCodepoints))
	}
}

func TestOptions(t *testing.T) {
	now := func() time.Time { return time.Unix(0, 0) }
	raster := atlas.RasterizerFunc(func([]rune, atlas.Settings) (*atlas.Atlas, error) { return nil, nil })
	startup, final := atlas.StartupSettings(), atlas.FinalSettings()
	final.Size = 20

	c := DefaultConfig()
	for _, opt := range []Option{
		WithIdleSkip(false),
		WithRebuildBatchSize(8),
		WithRebuildInterval(250 * time.Millisecond),
		WithTempAtlasCache(2, time.Minute),
		WithStartupCodepoints([]rune("abc")),
		WithCodepoints([]rune("xyz")),
		WithRasterizer(raster),
		WithAtlasSettings(startup, final),
		WithWorkers(3),
		WithPollInterval(2 * time.Millisecond),
		WithIdleWaitTimeout(time.Second),
		WithClock(now),
	} {
		opt(&c)
	}

	if c.IdleSkip {
		t.Error("IdleSkip = true")
	}
	if c.RebuildBatchSize != 8 || c.RebuildInterval != 250*time.Millisecond {
		t.Errorf("rebuild = %d/%v, want 8/250ms", c.RebuildBatchSize, c.RebuildInterval)
	}
	if c.TempCacheCapacity != 2 || c.TempCacheTTL != time.Minute {
		t.Errorf("temp cache = %d/%v, want 2/1m", c.TempCacheCapacity, c.TempCacheTTL)
	}
	if string(c.StartupCodepoints) != "abc" || string(c.Codepoints) != "xyz" {
		t.Errorf("codepoints = %q/%q", string(c.StartupCodepoints), string(c.Codepoints))
	}
	if c.Rasterizer == nil || c.FinalSettings.Size != 20 {
		t.Error("WithRasterizer or WithAtlasSettings not applied")
	}
	if c.Workers != 3 || c.PollInterval != 2*time.Millisecond || c.IdleWaitTimeout != time.Second {
		t.Errorf("workers=%d poll=%v wait=%v", c.Workers, c.PollInterval, c.IdleWaitTimeout)
	}
	if !c.Clock().Equal(time.Unix(0, 0)) {
		t.Error("WithClock not applied")
	}

	pc := c.pipelineConfig()
	if pc.BatchSize != 8 || pc.CacheCapacity != 2 || pc.Final.Size != 20 {
		t.Errorf("pipelineConfig() = %+v", pc)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		field string
	}{
		{"batch size", WithRebuildBatchSize(0), "RebuildBatchSize"},
		{"interval", WithRebuildInterval(-time.Second), "RebuildInterval"},
		{"cache capacity", WithTempAtlasCache(0, time.Second), "TempCacheCapacity"},
		{"cache ttl", WithTempAtlasCache(4, 0), "TempCacheTTL"},
		{"workers", WithWorkers(-1), "Workers"},
		{"poll interval", WithPollInterval(0), "PollInterval"},
		{"idle wait", WithIdleWaitTimeout(0), "IdleWaitTimeout"},
		{"clock", WithClock(nil), "Clock"},
		{"startup codepoints", WithStartupCodepoints([]rune{0xD800}), "StartupCodepoints"},
		{"codepoints", WithCodepoints([]rune{-1}), "Codepoints"},
		{"final format", func(c *Config) { c.FinalSettings.Format = gputypes.TextureFormatBGRA8Unorm }, "FinalSettings.Format"},
		{"startup size", func(c *Config) { c.StartupSettings.Size = 0 }, "StartupSettings.Size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.opt(&c)
			err := c.Validate()
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
			if !strings.HasPrefix(err.Error(), "frameloop: invalid config.") {
				t.Errorf("Error() = %q, want frameloop prefix", err.Error())
			}
		})
	}
}
