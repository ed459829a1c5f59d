// Package renderer is the frontend the engine talks to; the vulkan package
// underneath records the actual GPU work.
package renderer

import (
	"github.com/anima-gfx/lucent/engine/core"
	"github.com/anima-gfx/lucent/engine/platform"
	"github.com/anima-gfx/lucent/engine/renderer/vulkan"
	"github.com/anima-gfx/lucent/engine/scene"
)

// DrawContext is the per-frame input forwarded to the backend.
type DrawContext = vulkan.DrawContext

type Renderer struct {
	backend *vulkan.VulkanRenderer
}

func New(p *platform.Platform, config *core.EngineConfig) *Renderer {
	// Validation builds load the debug shader variants and enable the
	// watcher-driven reload path.
	if config != nil {
		vulkan.ShaderDebugBuild = config.Validation
	}
	return &Renderer{
		backend: vulkan.New(p, config),
	}
}

func (r *Renderer) Initialize(appName string, width, height uint32) error {
	return r.backend.Initialize(appName, width, height)
}

// UploadScene pushes the static scene to the GPU. Must happen once, after
// Initialize and before the first DrawFrame.
func (r *Renderer) UploadScene(scn *scene.Scene) error {
	return r.backend.UploadScene(scn)
}

// DrawFrame runs one full frame; see the backend for the pass breakdown.
func (r *Renderer) DrawFrame(ctx *DrawContext) error {
	return r.backend.DrawFrame(ctx)
}

// ClearFrame presents a solid color without rendering, used while the
// window is minimized.
func (r *Renderer) ClearFrame() error {
	return r.backend.ClearFrame()
}

func (r *Renderer) OnResize(width, height uint16) error {
	return r.backend.Resized(width, height)
}

func (r *Renderer) Shutdown() error {
	return r.backend.Shutdown()
}

// Backend exposes the vulkan layer for asset uploads (textures stream into
// the backend's texture table and staging buffer).
func (r *Renderer) Backend() *vulkan.VulkanRenderer {
	return r.backend
}
