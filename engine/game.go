package engine

import (
	"github.com/anima-gfx/lucent/engine/assets"
	"github.com/anima-gfx/lucent/engine/core"
	"github.com/anima-gfx/lucent/engine/renderer"
	"github.com/anima-gfx/lucent/engine/scene"
)

// Game is the application the engine drives. The engine fills Renderer,
// Assets, and Config before FnBoot runs; the game builds its static scene
// once in FnInitialize and supplies a DrawContext every frame.
type Game struct {
	ApplicationConfig *ApplicationConfig
	Renderer          *renderer.Renderer
	Assets            *assets.AssetManager
	Config            *core.EngineConfig
	State             interface{}

	FnBoot        Boot
	FnInitialize  Initialize
	FnUpdate      Update
	FnDrawContext BuildDrawContext
	FnOnResize    OnResize
	FnShutdown    Shutdown
}

type Boot func() error
type Initialize func() (*scene.Scene, error)
type Update func(deltaTime float64) error
type BuildDrawContext func() *renderer.DrawContext
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
