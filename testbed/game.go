package testbed

import (
	"github.com/google/uuid"

	"github.com/anima-gfx/lucent/engine"
	"github.com/anima-gfx/lucent/engine/core"
	"github.com/anima-gfx/lucent/engine/math"
	"github.com/anima-gfx/lucent/engine/renderer"
	"github.com/anima-gfx/lucent/engine/renderer/components"
	"github.com/anima-gfx/lucent/engine/scene"
)

// TestGame builds a large static grid of cubes and spheres and lets the
// camera fly through it, exercising frustum culling, occlusion culling, and
// LOD selection at scale.
type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *components.Camera

	width  uint32
	height uint32

	drawCount uint32

	occlusionCulling bool
	lodSelection     bool
	debugPyramid     bool
	freezeFrustum    bool
	lodThreshold     float32
}

// gridSize controls the object count: gridSize^2 objects per layer, two
// layers (cubes below, spheres above).
const gridSize = 64

func NewTestGame() (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				StartPosX:   100,
				StartPosY:   100,
				StartWidth:  1280,
				StartHeight: 720,
				Name:        "Lucent Testbed",
				LogLevel:    core.DebugLevel,
			},
			State: &gameState{},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnDrawContext = tg.BuildDrawContext
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	return nil
}

func (g *TestGame) Initialize() (*scene.Scene, error) {
	core.LogDebug("TestGame Initialize fn....")

	state := g.State.(*gameState)
	state.WorldCamera = components.NewCamera()
	state.WorldCamera.SetPosition(math.NewVec3(0, 12, -40))
	state.WorldCamera.SetPerspective(math.DegToRad(70.0), 1280.0/720.0, 0.1, 2000.0)

	// Seed the toggles from engine.toml; the debug keys below flip them at
	// runtime.
	state.occlusionCulling = true
	state.lodSelection = true
	state.lodThreshold = 1.0
	if g.Config != nil {
		state.occlusionCulling = g.Config.Culling.OcclusionCulling
		state.lodSelection = g.Config.Culling.LOD
		state.debugPyramid = g.Config.Culling.DebugPyramid
		state.freezeFrustum = g.Config.Culling.FreezeFrustum
		if g.Config.Culling.LODThreshold > 0 {
			state.lodThreshold = g.Config.Culling.LODThreshold
		}
	}

	scn := buildGridScene()
	state.drawCount = uint32(len(scn.RenderObjects))

	core.LogInfo("testbed scene: %d render objects", state.drawCount)
	return scn, nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	camera := state.WorldCamera

	moveSpeed := float32(25.0 * deltaTime)
	turnSpeed := float32(1.5 * deltaTime)

	if core.InputIsKeyDown(core.KEY_LEFT) {
		camera.Yaw(turnSpeed)
	}
	if core.InputIsKeyDown(core.KEY_RIGHT) {
		camera.Yaw(-turnSpeed)
	}
	if core.InputIsKeyDown(core.KEY_UP) {
		camera.Pitch(turnSpeed)
	}
	if core.InputIsKeyDown(core.KEY_DOWN) {
		camera.Pitch(-turnSpeed)
	}
	if core.InputIsKeyDown(core.KEY_W) {
		camera.MoveForward(moveSpeed)
	}
	if core.InputIsKeyDown(core.KEY_S) {
		camera.MoveBackward(moveSpeed)
	}
	if core.InputIsKeyDown(core.KEY_A) {
		camera.MoveLeft(moveSpeed)
	}
	if core.InputIsKeyDown(core.KEY_D) {
		camera.MoveRight(moveSpeed)
	}
	if core.InputIsKeyDown(core.KEY_SPACE) {
		camera.MoveUp(moveSpeed)
	}
	if core.InputIsKeyDown(core.KEY_X) {
		camera.MoveDown(moveSpeed)
	}

	// Runtime toggles for the culling paths.
	if keyReleased(core.KEY_O) {
		state.occlusionCulling = !state.occlusionCulling
		core.LogInfo("occlusion culling: %t", state.occlusionCulling)
	}
	if keyReleased(core.KEY_L) {
		state.lodSelection = !state.lodSelection
		core.LogInfo("lod selection: %t", state.lodSelection)
	}
	if keyReleased(core.KEY_P) {
		state.debugPyramid = !state.debugPyramid
		core.LogInfo("debug pyramid view: %t", state.debugPyramid)
	}
	if keyReleased(core.KEY_F) {
		state.freezeFrustum = !state.freezeFrustum
		core.LogInfo("freeze frustum: %t", state.freezeFrustum)
	}

	if keyReleased(core.KEY_M) {
		fps, frameTime := core.MetricsFrame()
		pos := camera.GetPosition()
		core.LogInfo("FPS: %5.1f (%4.1fms) Pos=[%7.2f %7.2f %7.2f]",
			fps, frameTime, pos.X, pos.Y, pos.Z)
	}

	return nil
}

func keyReleased(key core.KeyCode) bool {
	return core.InputIsKeyUp(key) && core.InputWasKeyDown(key)
}

func (g *TestGame) BuildDrawContext() *renderer.DrawContext {
	state := g.State.(*gameState)
	return &renderer.DrawContext{
		Camera:           state.WorldCamera,
		DrawCount:        state.drawCount,
		OcclusionCulling: state.occlusionCulling,
		LOD:              state.lodSelection,
		LODTarget:        state.lodThreshold,
		DebugPyramid:     state.debugPyramid,
		FreezeFrustum:    state.freezeFrustum,
	}
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	if state.WorldCamera != nil && height > 0 {
		state.WorldCamera.SetPerspective(state.WorldCamera.FOV, float32(width)/float32(height),
			state.WorldCamera.NearClip, state.WorldCamera.FarClip)
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	return nil
}

// buildGridScene lays out gridSize x gridSize cubes on the ground and the
// same count of spheres floating above, plus one large occluder wall in the
// middle. Spheres carry a three-level LOD chain.
func buildGridScene() *scene.Scene {
	scn := &scene.Scene{}

	cubeSurface := appendCube(scn)
	sphereSurface := appendSphere(scn)

	scn.Materials = []scene.Material{
		{
			ID:          uuid.New(),
			AlbedoColor: math.NewVec4(0.8, 0.3, 0.2, 1.0),
			AlbedoTex:   ^uint32(0), NormalTex: ^uint32(0), MetalRoughTex: ^uint32(0),
			Metallic: 0.1, Roughness: 0.8,
		},
		{
			ID:          uuid.New(),
			AlbedoColor: math.NewVec4(0.2, 0.5, 0.9, 1.0),
			AlbedoTex:   ^uint32(0), NormalTex: ^uint32(0), MetalRoughTex: ^uint32(0),
			Metallic: 0.6, Roughness: 0.3,
		},
		{
			ID:          uuid.New(),
			AlbedoColor: math.NewVec4(0.9, 0.9, 0.9, 0.4),
			AlbedoTex:   ^uint32(0), NormalTex: ^uint32(0), MetalRoughTex: ^uint32(0),
			Metallic: 0.0, Roughness: 0.1,
			Flags: scene.MaterialFlagTransparent,
		},
	}

	const spacing = 6.0
	half := float32(gridSize) * spacing / 2

	addObject := func(surfaceID, materialID uint32, position math.Vec3, s float32) {
		t := math.TransformFromPositionRotationScale(position, math.NewQuatIdentity(), math.NewVec3(s, s, s))
		scn.Transforms = append(scn.Transforms, scene.Transform{
			Position: t.Position,
			Rotation: t.Rotation,
			Scale:    t.Scale,
		})
		scn.RenderObjects = append(scn.RenderObjects, scene.RenderObject{
			ID:          uuid.New(),
			TransformID: uint32(len(scn.Transforms) - 1),
			SurfaceID:   surfaceID,
			MaterialID:  materialID,
		})
	}

	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			x := float32(col)*spacing - half
			z := float32(row)*spacing - half
			addObject(cubeSurface, 0, math.NewVec3(x, 0, z), 1.0)
			material := uint32(1)
			if (row+col)%17 == 0 {
				material = 2
			}
			addObject(sphereSurface, material, math.NewVec3(x, 10, z), 1.2)
		}
	}

	// One wide occluder wall across the grid center.
	addObject(cubeSurface, 0, math.NewVec3(0, 6, 0), 14.0)

	return scn
}

// appendCube pushes unit-cube geometry and returns its surface index. A cube
// is cheap enough that it carries a single LOD.
func appendCube(scn *scene.Scene) uint32 {
	baseVertex := uint32(len(scn.Vertices))
	baseIndex := uint32(len(scn.Indices))

	positions := []math.Vec3{
		math.NewVec3(-1, -1, -1), math.NewVec3(1, -1, -1),
		math.NewVec3(1, 1, -1), math.NewVec3(-1, 1, -1),
		math.NewVec3(-1, -1, 1), math.NewVec3(1, -1, 1),
		math.NewVec3(1, 1, 1), math.NewVec3(-1, 1, 1),
	}
	for _, p := range positions {
		scn.Vertices = append(scn.Vertices, scene.Vertex{
			Position: p,
			Normal:   p.Normalized(),
			UV:       math.NewVec2((p.X+1)/2, (p.Y+1)/2),
		})
	}

	faces := [][4]uint32{
		{0, 1, 2, 3}, {5, 4, 7, 6},
		{4, 0, 3, 7}, {1, 5, 6, 2},
		{3, 2, 6, 7}, {4, 5, 1, 0},
	}
	for _, f := range faces {
		scn.Indices = append(scn.Indices,
			baseVertex+f[0], baseVertex+f[1], baseVertex+f[2],
			baseVertex+f[0], baseVertex+f[2], baseVertex+f[3])
	}
	indexCount := uint32(len(scn.Indices)) - baseIndex
	center, radius := math.ComputeBoundingSphere(positions)

	scn.Surfaces = append(scn.Surfaces, scene.Surface{
		IndexOffset: baseIndex,
		IndexCount:  indexCount,
		LODs: []scene.LOD{
			{IndexOffset: baseIndex, IndexCount: indexCount, ErrorBound: 0},
		},
		Bounds: scene.BoundingSphere{Center: center, Radius: radius},
	})
	return uint32(len(scn.Surfaces) - 1)
}

// appendSphere pushes a unit sphere at three tessellation levels and returns
// its surface index. Error bounds grow with how much surface detail each
// level gives up.
func appendSphere(scn *scene.Scene) uint32 {
	type level struct {
		rings   int
		sectors int
		err     float32
	}
	levels := []level{
		{24, 32, 0.0},
		{12, 16, 1.0},
		{6, 8, 4.0},
	}

	lods := make([]scene.LOD, 0, len(levels))
	for _, lv := range levels {
		offset, count := appendUVSphere(scn, lv.rings, lv.sectors)
		lods = append(lods, scene.LOD{IndexOffset: offset, IndexCount: count, ErrorBound: lv.err})
	}

	scn.Surfaces = append(scn.Surfaces, scene.Surface{
		IndexOffset: lods[0].IndexOffset,
		IndexCount:  lods[0].IndexCount,
		LODs:        lods,
		Bounds:      scene.BoundingSphere{Center: math.NewVec3Zero(), Radius: 1},
	})
	return uint32(len(scn.Surfaces) - 1)
}

func appendUVSphere(scn *scene.Scene, rings, sectors int) (indexOffset, indexCount uint32) {
	baseVertex := uint32(len(scn.Vertices))
	baseIndex := uint32(len(scn.Indices))

	for r := 0; r <= rings; r++ {
		v := float32(r) / float32(rings)
		phi := v * math.Pi
		for s := 0; s <= sectors; s++ {
			u := float32(s) / float32(sectors)
			theta := u * 2 * math.Pi

			p := math.NewVec3(
				math.Sin(phi)*math.Cos(theta),
				math.Cos(phi),
				math.Sin(phi)*math.Sin(theta),
			)
			scn.Vertices = append(scn.Vertices, scene.Vertex{
				Position: p,
				Normal:   p,
				UV:       math.NewVec2(u, v),
			})
		}
	}

	stride := uint32(sectors + 1)
	for r := 0; r < rings; r++ {
		for s := 0; s < sectors; s++ {
			i0 := baseVertex + uint32(r)*stride + uint32(s)
			i1 := i0 + 1
			i2 := i0 + stride
			i3 := i2 + 1
			scn.Indices = append(scn.Indices, i0, i2, i1, i1, i2, i3)
		}
	}

	return baseIndex, uint32(len(scn.Indices)) - baseIndex
}
