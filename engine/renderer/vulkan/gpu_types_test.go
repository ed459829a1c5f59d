package vulkan

import (
	"testing"
	"unsafe"

	"github.com/anima-gfx/lucent/engine/math"
	"github.com/anima-gfx/lucent/engine/scene"
)

func TestPackSurface(t *testing.T) {
	s := &scene.Surface{
		IndexOffset: 100,
		IndexCount:  300,
		LODs: []scene.LOD{
			{IndexOffset: 100, IndexCount: 300, ErrorBound: 0},
			{IndexOffset: 400, IndexCount: 150, ErrorBound: 1},
			{IndexOffset: 550, IndexCount: 60, ErrorBound: 4},
		},
		Bounds:        scene.BoundingSphere{Center: math.NewVec3(1, 2, 3), Radius: 5},
		MeshletOffset: 7,
		MeshletCount:  9,
	}

	packed := PackSurface(s)
	if packed.LodCount != 3 {
		t.Errorf("LodCount = %d, want 3", packed.LodCount)
	}
	if packed.Lods[1].IndexOffset != 400 || packed.Lods[1].IndexCount != 150 {
		t.Errorf("Lods[1] = %+v, want offset 400 count 150", packed.Lods[1])
	}
	if packed.Radius != 5 || packed.Center != [3]float32{1, 2, 3} {
		t.Errorf("bounds = %v r=%v", packed.Center, packed.Radius)
	}
	if packed.MeshletOffset != 7 || packed.MeshletCount != 9 {
		t.Errorf("meshlet range = (%d, %d), want (7, 9)", packed.MeshletOffset, packed.MeshletCount)
	}
}

func TestPackSurfaceTruncatesLods(t *testing.T) {
	s := &scene.Surface{LODs: make([]scene.LOD, MaxSurfaceLods+4)}
	for i := range s.LODs {
		s.LODs[i].ErrorBound = float32(i)
	}
	packed := PackSurface(s)
	if packed.LodCount != MaxSurfaceLods {
		t.Errorf("LodCount = %d, want cap %d", packed.LodCount, MaxSurfaceLods)
	}
}

func TestPackTransformCollapsesScale(t *testing.T) {
	tr := &scene.Transform{
		Position: math.NewVec3(1, 2, 3),
		Rotation: math.NewQuatIdentity(),
		Scale:    math.NewVec3(1, 4, 2),
	}
	packed := PackTransform(tr)
	if packed.Scale != 4 {
		t.Errorf("collapsed scale = %v, want the largest axis 4", packed.Scale)
	}
}

func TestStructSizesAreStd430Aligned(t *testing.T) {
	sizes := map[string]uintptr{
		"GpuSurface":      unsafe.Sizeof(GpuSurface{}),
		"GpuSurfaceLod":   unsafe.Sizeof(GpuSurfaceLod{}),
		"GpuRenderObject": unsafe.Sizeof(GpuRenderObject{}),
		"GpuTransform":    unsafe.Sizeof(GpuTransform{}),
		"GpuMaterial":     unsafe.Sizeof(GpuMaterial{}),
		"GpuMeshlet":      unsafe.Sizeof(GpuMeshlet{}),
		"GpuVertex":       unsafe.Sizeof(GpuVertex{}),
		"GpuViewData":     unsafe.Sizeof(GpuViewData{}),
	}
	for name, size := range sizes {
		if size%16 != 0 {
			t.Errorf("%s size %d is not a multiple of 16", name, size)
		}
	}
}

func TestSliceBytes(t *testing.T) {
	objs := []GpuRenderObject{
		{TransformID: 1, SurfaceID: 2, MaterialID: 3, Flags: 4},
		{TransformID: 5, SurfaceID: 6, MaterialID: 7, Flags: 8},
	}
	raw := sliceBytes(objs)
	if want := 2 * int(unsafe.Sizeof(objs[0])); len(raw) != want {
		t.Fatalf("len = %d, want %d", len(raw), want)
	}
	if raw[0] != 1 {
		t.Errorf("first byte = %d, want the first TransformID's low byte", raw[0])
	}
	if sliceBytes([]GpuRenderObject(nil)) != nil {
		t.Error("empty slice should produce nil bytes")
	}
}
