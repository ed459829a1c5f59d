package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	if cfg.Window.Width != 1280 || cfg.Window.Height != 720 {
		t.Errorf("default window = %dx%d, want 1280x720", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.StagingBufferSizeBytes != 128*1024*1024 {
		t.Errorf("default staging size = %d, want 128 MiB", cfg.StagingBufferSizeBytes)
	}
	if len(cfg.PresentModePreference) == 0 || cfg.PresentModePreference[0] != "mailbox" {
		t.Errorf("default present preference = %v", cfg.PresentModePreference)
	}
}

func TestLoadEngineConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadEngineConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("missing config must not error: %v", err)
	}
	if cfg.Window.Width != 1280 {
		t.Errorf("expected defaults, got width %d", cfg.Window.Width)
	}
}

func TestLoadEngineConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	contents := `
present_mode_preference = ["immediate"]
staging_buffer_size_bytes = 1048576
validation = false

[window]
width = 1920
height = 1080
title = "custom"

[culling]
occlusion_culling = false
lod_threshold = 2.5
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("LoadEngineConfig: %v", err)
	}
	if cfg.Window.Width != 1920 || cfg.Window.Height != 1080 {
		t.Errorf("window = %dx%d, want 1920x1080", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Culling.OcclusionCulling {
		t.Error("occlusion_culling=false not honored")
	}
	if cfg.Culling.LODThreshold != 2.5 {
		t.Errorf("lod_threshold = %v, want 2.5", cfg.Culling.LODThreshold)
	}
	if cfg.StagingBufferSizeBytes != 1048576 {
		t.Errorf("staging_buffer_size_bytes = %d, want 1048576", cfg.StagingBufferSizeBytes)
	}
	if cfg.Validation {
		t.Error("validation=false not honored")
	}
	// Keys absent from the file keep their defaults.
	if !cfg.Culling.LOD {
		t.Error("lod default lost on partial decode")
	}
}
