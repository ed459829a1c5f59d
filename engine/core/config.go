package core

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// EngineConfig is loaded once at startup from engine.toml and threaded
// through the renderer as the source of the per-frame culling toggles.
type EngineConfig struct {
	Window struct {
		Width  uint32 `toml:"width"`
		Height uint32 `toml:"height"`
		Title  string `toml:"title"`
	} `toml:"window"`

	// PresentModePreference is an ordered list of preferred present modes
	// ("mailbox", "fifo", "immediate"); the swapchain falls back to FIFO if
	// none of these are supported.
	PresentModePreference []string `toml:"present_mode_preference"`

	Culling struct {
		OcclusionCulling bool `toml:"occlusion_culling"`
		LOD              bool `toml:"lod"`
		DebugPyramid     bool `toml:"debug_pyramid"`
		FreezeFrustum    bool `toml:"freeze_frustum"`
		LODThreshold     float32 `toml:"lod_threshold"`
	} `toml:"culling"`

	// StagingBufferSizeBytes backs the reusable staging buffer used for
	// resource uploads. Defaults to 128 MiB.
	StagingBufferSizeBytes uint64 `toml:"staging_buffer_size_bytes"`

	Validation bool `toml:"validation"`
}

// DefaultEngineConfig carries the values of the shipped engine.toml (apart
// from the window title), used when the config file is absent so a fresh
// checkout still boots.
func DefaultEngineConfig() *EngineConfig {
	cfg := &EngineConfig{}
	cfg.Window.Width = 1280
	cfg.Window.Height = 720
	cfg.Window.Title = "Lucent"
	cfg.PresentModePreference = []string{"mailbox", "fifo"}
	cfg.Culling.OcclusionCulling = true
	cfg.Culling.LOD = true
	cfg.Culling.DebugPyramid = false
	cfg.Culling.FreezeFrustum = false
	cfg.Culling.LODThreshold = 1.0
	cfg.StagingBufferSizeBytes = 128 * 1024 * 1024
	cfg.Validation = true
	return cfg
}

// LoadEngineConfig reads and decodes path (typically "engine.toml"). A
// missing file is not an error: the default config is returned so a fresh
// checkout still runs.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	cfg := DefaultEngineConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			LogWarn("engine config '%s' not found, using defaults", path)
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	LogInfo("loaded engine config from '%s'", path)
	return cfg, nil
}
