// Package scene defines the static, GPU-resident data model consumed by the
// renderer's upload path: vertices, indices, surfaces (with LOD tables), render
// objects, transforms, materials, and optional meshlet clusters. A scene
// loader builds these slices from whatever format it understands (glTF, OBJ,
// a baked binary) and hands them to the renderer, which treats them as
// opaque blobs of declared sizes.
package scene

import (
	"fmt"

	"github.com/anima-gfx/lucent/engine/math"
	"github.com/google/uuid"
)

// Vertex is a packed vertex record. Layout is opaque to the core beyond its
// stride; shaders consume it via device address / storage buffer binding.
type Vertex struct {
	Position math.Vec3
	Normal   math.Vec3
	UV       math.Vec2
}

// LOD is one entry of a Surface's level-of-detail table: an index range into
// the shared index buffer plus the screen-space error bound above which this
// LOD should no longer be selected.
type LOD struct {
	IndexOffset uint32
	IndexCount  uint32
	ErrorBound  float32
}

// BoundingSphere is object-space; the cull shader transforms it by the
// instance's model matrix before testing.
type BoundingSphere struct {
	Center math.Vec3
	Radius float32
}

// Surface is one mesh primitive: its full-resolution index range, an
// ascending-error LOD table (LODs[0] is the highest-detail entry), a bounding
// sphere, and an optional meshlet range for the mesh-task draw path.
type Surface struct {
	IndexOffset   uint32
	IndexCount    uint32
	LODs          []LOD
	Bounds        BoundingSphere
	MeshletOffset uint32
	MeshletCount  uint32
}

// MaterialFlagBits mirrors the flags the cull shader tests when deciding
// which pass an object belongs to.
type MaterialFlagBits uint32

const (
	MaterialFlagTransparent MaterialFlagBits = 1 << iota
	MaterialFlagDoubleSided
)

// Material holds the PBR inputs and texture-table indices referenced by a
// render object. TextureTable indices of ^uint32(0) mean "unused slot".
type Material struct {
	ID           uuid.UUID
	AlbedoColor  math.Vec4
	AlbedoTex    uint32
	NormalTex    uint32
	MetalRoughTex uint32
	Metallic     float32
	Roughness    float32
	Flags        MaterialFlagBits
}

// Transform is stored decomposed (TRS) so the cull/vertex shaders can rebuild
// a model matrix without carrying a full 4x4 per instance.
type Transform struct {
	Position math.Vec3
	Rotation math.Quaternion
	Scale    math.Vec3
}

// RenderObjectFlagBits gates per-instance behavior not already captured by
// the referenced material (e.g. visibility seeding).
type RenderObjectFlagBits uint32

const (
	RenderObjectFlagNone RenderObjectFlagBits = 0
	// RenderObjectFlagTransparent is derived from the referenced material
	// at upload time so the cull shader tests one flag word. The value
	// matches MaterialFlagTransparent and the shader constant.
	RenderObjectFlagTransparent RenderObjectFlagBits = 1
)

// RenderObject is one drawable instance: (transform, surface, material).
type RenderObject struct {
	ID          uuid.UUID
	TransformID uint32
	SurfaceID   uint32
	MaterialID  uint32
	Flags       RenderObjectFlagBits
}

// Meshlet is a small contiguous subset of a surface's triangles plus a
// bounding cone, for cluster-level culling in the mesh-task path.
type Meshlet struct {
	ConeApex    math.Vec3
	ConeAxis    math.Vec3
	ConeCutoff  float32
	DataOffset  uint32
	VertexCount uint32
	TriangleCount uint32
}

// Texture is a texture-table slot: a stable handle, the asset name the
// loader resolves, and the loader-reported stats needed to allocate the
// device-local image.
type Texture struct {
	ID         uuid.UUID
	Name       string
	Width      uint32
	Height     uint32
	MipCount   uint32
	FormatHint string
}

// Scene is the full set of arrays handed to the renderer's upload path. All
// index
// fields (TransformID, SurfaceID, MaterialID, AlbedoTex, ...) are into the
// slices below.
type Scene struct {
	Vertices      []Vertex
	Indices       []uint32
	Surfaces      []Surface
	RenderObjects []RenderObject
	Transforms    []Transform
	Materials     []Material
	Meshlets      []Meshlet
	MeshletData   []uint32
	Textures      []Texture
}

// Validate checks that every render object references
// a valid surface, transform, and material index. Call once after a scene
// loader finishes populating a Scene and before upload.
func (s *Scene) Validate() error {
	surfaceCount := uint32(len(s.Surfaces))
	transformCount := uint32(len(s.Transforms))
	materialCount := uint32(len(s.Materials))

	for i, ro := range s.RenderObjects {
		if ro.SurfaceID >= surfaceCount {
			return fmt.Errorf("render object %d: surface index %d out of range (count=%d)", i, ro.SurfaceID, surfaceCount)
		}
		if ro.TransformID >= transformCount {
			return fmt.Errorf("render object %d: transform index %d out of range (count=%d)", i, ro.TransformID, transformCount)
		}
		if ro.MaterialID >= materialCount {
			return fmt.Errorf("render object %d: material index %d out of range (count=%d)", i, ro.MaterialID, materialCount)
		}
	}

	for i, surf := range s.Surfaces {
		if len(surf.LODs) == 0 {
			return fmt.Errorf("surface %d: has no LOD entries", i)
		}
		for j := 1; j < len(surf.LODs); j++ {
			if surf.LODs[j].ErrorBound < surf.LODs[j-1].ErrorBound {
				return fmt.Errorf("surface %d: LOD table not in ascending error-bound order at index %d", i, j)
			}
		}
	}

	return nil
}
