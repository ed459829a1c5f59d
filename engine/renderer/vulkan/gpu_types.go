package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/anima-gfx/lucent/engine/math"
	"github.com/anima-gfx/lucent/engine/scene"
)

// The structs in this file are mirrored by the shader interface blocks in
// VulkanShaders/src. All of them follow std430 rules: vec3 members carry an
// explicit float of padding and every struct size is a multiple of 16 bytes,
// so a Go slice of them can be memcpy'd into a storage buffer as-is.

// GpuViewData is the per-frame view uniform. One copy per in-flight frame
// lives permanently mapped in host-visible memory; the frame driver rewrites
// it at the top of each frame.
type GpuViewData struct {
	ViewProjection math.Mat4
	// Frustum planes, xyz = normal, w = distance. Order: left, right,
	// bottom, top, far, near.
	FrustumPlanes [6][4]float32
	CameraPosition [4]float32
	P00            float32
	P11            float32
	ZNear          float32
	ZFar           float32
	LodTarget      float32
	PyramidWidth   float32
	PyramidHeight  float32
	DrawCount      uint32
}

// GpuSurface mirrors one scene.Surface. The LOD table is a fixed-size array
// so every surface has the same stride; LodCount says how many entries are
// live.
type GpuSurface struct {
	Center        [3]float32
	Radius        float32
	IndexOffset   uint32
	IndexCount    uint32
	MeshletOffset uint32
	MeshletCount  uint32
	LodCount      uint32
	pad0          uint32
	pad1          uint32
	pad2          uint32
	Lods          [MaxSurfaceLods]GpuSurfaceLod
}

// GpuSurfaceLod is one LOD table entry: an index range plus the model-space
// error that range introduces.
type GpuSurfaceLod struct {
	IndexOffset uint32
	IndexCount  uint32
	Error       float32
	pad0        uint32
}

// GpuRenderObject is one drawable instance.
type GpuRenderObject struct {
	TransformID uint32
	SurfaceID   uint32
	MaterialID  uint32
	Flags       uint32
}

// GpuTransform is a decomposed TRS; the cull and vertex shaders rebuild the
// model matrix from it instead of reading a full mat4 per instance.
type GpuTransform struct {
	Position [3]float32
	Scale    float32
	Rotation [4]float32
}

// GpuMaterial carries the shading inputs plus texture-table slots. A slot of
// ^uint32(0) is unused.
type GpuMaterial struct {
	AlbedoColor   [4]float32
	AlbedoTex     uint32
	NormalTex     uint32
	MetalRoughTex uint32
	Flags         uint32
	Metallic      float32
	Roughness     float32
	pad0          uint32
	pad1          uint32
}

// GpuMeshlet is one cluster: a bounding cone for cluster culling plus the
// range of this cluster's packed vertex/triangle stream in the meshlet-data
// buffer.
type GpuMeshlet struct {
	ConeApex      [3]float32
	ConeCutoff    float32
	ConeAxis      [3]float32
	pad0          float32
	DataOffset    uint32
	VertexCount   uint32
	TriangleCount uint32
	pad1          uint32
}

// GpuVertex is the packed vertex record the vertex/mesh shaders consume
// through a storage buffer.
type GpuVertex struct {
	Position [3]float32
	U        float32
	Normal   [3]float32
	V        float32
}

// IndirectDrawData is one slot of the indirect-draw buffer on the indexed
// path. The cull shader smuggles the render-object index through
// DrawIndirect.FirstInstance so the vertex shader can fetch per-object data
// with gl_InstanceIndex. The object id is duplicated up front so the host
// and debug tooling can read it without decoding the command.
type IndirectDrawData struct {
	ObjectID     uint32
	DrawIndirect vk.DrawIndexedIndirectCommand
}

// DrawMeshTasksCommand mirrors VkDrawMeshTasksIndirectCommandEXT.
type DrawMeshTasksCommand struct {
	GroupCountX uint32
	GroupCountY uint32
	GroupCountZ uint32
}

// IndirectTaskData is one slot of the indirect buffer on the mesh-task path.
type IndirectTaskData struct {
	ObjectID     uint32
	MeshletBase  uint32
	pad0         uint32
	DrawIndirect DrawMeshTasksCommand
}

// Byte offsets of the embedded indirect command within each slot; both draw
// calls point their buffer offset here and stride by the full slot size.
const (
	IndirectDrawCommandOffset = uint64(unsafe.Offsetof(IndirectDrawData{}.DrawIndirect))
	IndirectTaskCommandOffset = uint64(unsafe.Offsetof(IndirectTaskData{}.DrawIndirect))
)

// MaxSurfaceLods bounds the per-surface LOD table carried to the GPU.
const MaxSurfaceLods = 8

// PackSurface flattens a scene.Surface into its GPU layout, truncating LOD
// tables longer than MaxSurfaceLods (scene validation warns about those
// before upload).
func PackSurface(s *scene.Surface) GpuSurface {
	out := GpuSurface{
		Center:        [3]float32{s.Bounds.Center.X, s.Bounds.Center.Y, s.Bounds.Center.Z},
		Radius:        s.Bounds.Radius,
		IndexOffset:   s.IndexOffset,
		IndexCount:    s.IndexCount,
		MeshletOffset: s.MeshletOffset,
		MeshletCount:  s.MeshletCount,
	}
	n := len(s.LODs)
	if n > MaxSurfaceLods {
		n = MaxSurfaceLods
	}
	out.LodCount = uint32(n)
	for i := 0; i < n; i++ {
		out.Lods[i] = GpuSurfaceLod{
			IndexOffset: s.LODs[i].IndexOffset,
			IndexCount:  s.LODs[i].IndexCount,
			Error:       s.LODs[i].ErrorBound,
		}
	}
	return out
}

// PackRenderObject flattens a scene.RenderObject; the uuid handle stays on
// the host side, only the indices travel.
func PackRenderObject(ro *scene.RenderObject) GpuRenderObject {
	return GpuRenderObject{
		TransformID: ro.TransformID,
		SurfaceID:   ro.SurfaceID,
		MaterialID:  ro.MaterialID,
		Flags:       uint32(ro.Flags),
	}
}

// PackTransform collapses non-uniform scale to its largest axis. The cull
// shader scales the bounding sphere radius by this single factor, which is
// conservative for non-uniform scales.
func PackTransform(t *scene.Transform) GpuTransform {
	s := t.Scale.X
	if t.Scale.Y > s {
		s = t.Scale.Y
	}
	if t.Scale.Z > s {
		s = t.Scale.Z
	}
	return GpuTransform{
		Position: [3]float32{t.Position.X, t.Position.Y, t.Position.Z},
		Scale:    s,
		Rotation: [4]float32{t.Rotation.X, t.Rotation.Y, t.Rotation.Z, t.Rotation.W},
	}
}

// PackMaterial flattens a scene.Material.
func PackMaterial(m *scene.Material) GpuMaterial {
	return GpuMaterial{
		AlbedoColor:   [4]float32{m.AlbedoColor.X, m.AlbedoColor.Y, m.AlbedoColor.Z, m.AlbedoColor.W},
		AlbedoTex:     m.AlbedoTex,
		NormalTex:     m.NormalTex,
		MetalRoughTex: m.MetalRoughTex,
		Flags:         uint32(m.Flags),
		Metallic:      m.Metallic,
		Roughness:     m.Roughness,
	}
}

// PackMeshlet flattens a scene.Meshlet.
func PackMeshlet(m *scene.Meshlet) GpuMeshlet {
	return GpuMeshlet{
		ConeApex:      [3]float32{m.ConeApex.X, m.ConeApex.Y, m.ConeApex.Z},
		ConeCutoff:    m.ConeCutoff,
		ConeAxis:      [3]float32{m.ConeAxis.X, m.ConeAxis.Y, m.ConeAxis.Z},
		DataOffset:    m.DataOffset,
		VertexCount:   m.VertexCount,
		TriangleCount: m.TriangleCount,
	}
}

// PackVertex flattens a scene.Vertex, interleaving the UV into the two pad
// floats so the record stays 32 bytes.
func PackVertex(v *scene.Vertex) GpuVertex {
	return GpuVertex{
		Position: [3]float32{v.Position.X, v.Position.Y, v.Position.Z},
		U:        v.UV.X,
		Normal:   [3]float32{v.Normal.X, v.Normal.Y, v.Normal.Z},
		V:        v.UV.Y,
	}
}

// sliceBytes reinterprets a packed struct slice as raw bytes for staging
// copies. The caller keeps s alive for the duration of the copy.
func sliceBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}
