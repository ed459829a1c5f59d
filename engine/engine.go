package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/anima-gfx/lucent/engine/assets"
	"github.com/anima-gfx/lucent/engine/core"
	"github.com/anima-gfx/lucent/engine/platform"
	"github.com/anima-gfx/lucent/engine/renderer"
	"github.com/anima-gfx/lucent/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	isSuspended  bool
	platform     *platform.Platform
	assetManager *assets.AssetManager
	renderer     *renderer.Renderer
	config       *core.EngineConfig
	width        uint32
	height       uint32
	clock        *core.Clock
	lastTime     float64

	// shaderWatch is only live on validation builds; changed binaries
	// trigger a pipeline reload between frames.
	shaderWatch *vulkan.ShaderWatcher
}

func New(g *Game) (*Engine, error) {
	core.SetLogLevel(g.ApplicationConfig.LogLevel)

	configPath := g.ApplicationConfig.ConfigPath
	if configPath == "" {
		configPath = "engine.toml"
	}
	cfg, err := core.LoadEngineConfig(configPath)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	p := platform.New()

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		platform:     p,
		assetManager: am,
		renderer:     renderer.New(p, cfg),
		config:       cfg,
		isRunning:    true,
		isSuspended:  false,
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
		lastTime:     0,
	}

	g.Renderer = e.renderer
	g.Assets = am
	g.Config = cfg

	return e, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if err := core.InputInitialize(); err != nil {
		return err
	}

	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	core.EventRegister(core.EVENT_CODE_KEY_RELEASED, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e.onResized)

	if err := e.platform.Startup(e.gameInstance.ApplicationConfig.Name,
		e.gameInstance.ApplicationConfig.StartPosX,
		e.gameInstance.ApplicationConfig.StartPosY,
		e.gameInstance.ApplicationConfig.StartWidth,
		e.gameInstance.ApplicationConfig.StartHeight); err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := e.assetManager.Initialize(filepath.Join(wd, "assets")); err != nil {
		// Asset-less scenes (procedural testbeds) are fine; texture loads
		// will fail loudly if the game actually needs them.
		core.LogWarn(err.Error())
	}

	if err := e.renderer.Initialize(e.gameInstance.ApplicationConfig.Name, e.width, e.height); err != nil {
		return err
	}

	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(); err != nil {
			return err
		}
	}

	// The game builds its static scene once; everything the cull and draw
	// shaders touch is uploaded here and never mutated again.
	scn, err := e.gameInstance.FnInitialize()
	if err != nil {
		return err
	}
	if err := e.renderer.UploadScene(scn); err != nil {
		return err
	}

	// Stream the scene's textures into the table. Slot order follows the
	// scene's texture array so material indices line up.
	for i := range scn.Textures {
		tex := &scn.Textures[i]
		if tex.Name == "" {
			continue
		}
		stats, err := e.assetManager.LoadTexture(tex.Name)
		if err != nil {
			core.LogError("texture '%s' failed to load: %s", tex.Name, err)
			continue
		}
		if _, err := e.renderer.Backend().UploadTexture(stats); err != nil {
			core.LogError("texture '%s' failed to upload: %s", tex.Name, err)
		}
	}

	// Bitmap font for the debug-pyramid mip label. Missing font just means
	// the debug view shows the bare mip.
	fntPath := filepath.Join(wd, "assets", "fonts", "debug.fnt")
	if baker, err := assets.NewDebugTextBaker(fntPath); err != nil {
		core.LogDebug("debug HUD font unavailable: %s", err)
	} else {
		e.renderer.Backend().SetDebugTextBaker(baker)
	}

	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	if e.config.Validation {
		watcher, err := vulkan.NewShaderWatcher()
		if err != nil {
			core.LogWarn("shader watch unavailable: %s", err)
		} else {
			e.shaderWatch = watcher
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()

	e.lastTime = e.clock.Elapsed()

	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	var targetFrameSeconds float64 = 1.0 / 60.0

	for e.isRunning {
		if !e.platform.PumpMessages() {
			e.isRunning = false
		}

		if e.isSuspended {
			// Keep present cadence alive without running the pipeline,
			// waiting on window events rather than spinning.
			if err := e.renderer.ClearFrame(); err != nil {
				core.LogWarn("clear frame failed while suspended: %s", err)
			}
			e.platform.Sleep(100)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()

		var currentTime float64 = e.clock.Elapsed()
		var delta float64 = (currentTime - e.lastTime)
		var frameStartTime float64 = platform.GetAbsoluteTime()

		if e.shaderWatch != nil {
			if changed := e.shaderWatch.Drain(); len(changed) > 0 {
				core.LogInfo("shader binaries changed (%v), reloading pipelines", changed)
				if err := e.renderer.Backend().ReloadShaders(); err != nil {
					core.LogError("shader reload failed: %s", err)
				}
			}
		}

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogFatal("Game update failed, shutting down.")
			e.isRunning = false
			break
		}

		drawContext := e.gameInstance.FnDrawContext()
		if err := e.renderer.DrawFrame(drawContext); err != nil {
			core.LogFatal("Frame draw failed, shutting down.")
			e.isRunning = false
			break
		}

		// Figure out how long the frame took.
		var frameEndTime float64 = platform.GetAbsoluteTime()
		var frameElapsedTime float64 = frameEndTime - frameStartTime
		core.MetricsUpdate(frameElapsedTime)
		var remainingSeconds float64 = targetFrameSeconds - frameElapsedTime

		limitFrames := false
		if remainingSeconds > 0 && limitFrames {
			// If there is time left, give it back to the OS.
			e.platform.Sleep(remainingSeconds*1000 - 1)
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		// As a safety, input is the last thing to be updated before
		// this frame ends.
		core.InputUpdate(delta)

		// Update last time
		e.lastTime = currentTime
	}

	return e.Shutdown()
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	if e.shaderWatch != nil {
		e.shaderWatch.Close()
		e.shaderWatch = nil
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError(err.Error())
		}
	}
	if err := e.renderer.Shutdown(); err != nil {
		return err
	}
	if err := core.EventShutdown(); err != nil {
		return err
	}
	if err := core.InputShutdown(); err != nil {
		return err
	}
	if err := e.platform.Shutdown(); err != nil {
		return err
	}
	return nil
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(context core.EventContext) {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
	}
}

func (e *Engine) onKey(context core.EventContext) {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event payload for event type `%d`", context.Type)
		return
	}

	if context.Type == core.EVENT_CODE_KEY_PRESSED && ke.KeyCode == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be
		// other listeners.
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
	}
}

func (e *Engine) onResized(context core.EventContext) {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event payload for event type `%d`", context.Type)
		return
	}

	width := se.WindowWidth
	height := se.WindowHeight

	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return
	}
	e.width = width
	e.height = height

	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return
	}

	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		e.gameInstance.FnOnResize(width, height)
	}
	if err := e.renderer.OnResize(uint16(width), uint16(height)); err != nil {
		core.LogError(err.Error())
	}
}
