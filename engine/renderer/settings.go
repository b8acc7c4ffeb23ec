package renderer

import (
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"

	"github.com/calder-gfx/calder/common"
	"github.com/calder-gfx/calder/engine/renderer/pipeline"
)

// Settings carry renderer configuration that is data rather than code.
// LoadSettings starts from DefaultSettings, so a TOML file only needs the
// keys it wants to override.
type Settings struct {
	// ClearColor is the RGBA color the examples clear their first pass to.
	ClearColor [4]float64 `toml:"clear_color"`

	// MSAASamples is the multisample count for surface-backed targets.
	// Adapter support beyond 4 varies.
	MSAASamples int `toml:"msaa_samples"`

	// WarmUpWorkers is the goroutine count for parallel shader source
	// composition during WarmUp.
	WarmUpWorkers int `toml:"warmup_workers"`

	// LayoutCacheSize bounds the pipeline layout cache; evicted layouts
	// are released.
	LayoutCacheSize int `toml:"layout_cache_size"`

	// LogLevel names the shared log level: debug, info, warn or error.
	// Empty leaves the level untouched.
	LogLevel string `toml:"log_level"`
}

// DefaultSettings returns the settings a renderer uses when given none.
//
// Returns:
//   - Settings: black clear color, no MSAA, one warm-up worker per spare
//     CPU, default layout cache size, info logging
func DefaultSettings() Settings {
	return Settings{
		ClearColor:      [4]float64{0, 0, 0, 1},
		MSAASamples:     1,
		WarmUpWorkers:   max(runtime.NumCPU()-1, 1),
		LayoutCacheSize: pipeline.DefaultLayoutCacheSize,
		LogLevel:        "info",
	}
}

// LoadSettings reads settings from a TOML file over the defaults.
//
// Parameters:
//   - path: the TOML file to read
//
// Returns:
//   - Settings: the merged settings; the defaults when an error is returned
//   - error: unreadable file or invalid TOML
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettings(), fmt.Errorf("read settings: %w", err)
	}
	if err := toml.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("parse settings %s: %w", path, err)
	}
	return settings, nil
}

// applyLogLevel points the shared logger at the configured level. An
// unparseable level is logged and ignored so a typo in a settings file
// cannot take the renderer down.
func (s Settings) applyLogLevel() {
	if s.LogLevel == "" {
		return
	}
	level, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		common.LogWarn("ignoring unknown log level %q", s.LogLevel)
		return
	}
	common.SetLogLevel(level)
}
