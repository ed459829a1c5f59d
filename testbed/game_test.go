package testbed

import "testing"

func TestBuildGridSceneIsValid(t *testing.T) {
	scn := buildGridScene()

	if err := scn.Validate(); err != nil {
		t.Fatalf("generated scene failed validation: %v", err)
	}

	// Two layers of gridSize^2 objects plus the occluder wall.
	want := 2*gridSize*gridSize + 1
	if len(scn.RenderObjects) != want {
		t.Errorf("render objects = %d, want %d", len(scn.RenderObjects), want)
	}
	if len(scn.Transforms) != len(scn.RenderObjects) {
		t.Errorf("transforms = %d, want one per object", len(scn.Transforms))
	}
}

func TestGridSceneSphereLods(t *testing.T) {
	scn := buildGridScene()

	// The sphere surface carries a three-level, ascending-error LOD chain
	// whose ranges stay inside the index buffer.
	var found bool
	for _, s := range scn.Surfaces {
		if len(s.LODs) != 3 {
			continue
		}
		found = true
		for i, lod := range s.LODs {
			if int(lod.IndexOffset)+int(lod.IndexCount) > len(scn.Indices) {
				t.Errorf("lod %d range [%d, %d) escapes %d indices", i, lod.IndexOffset, lod.IndexOffset+lod.IndexCount, len(scn.Indices))
			}
			if i > 0 {
				if lod.ErrorBound <= s.LODs[i-1].ErrorBound {
					t.Errorf("lod %d error %v not ascending", i, lod.ErrorBound)
				}
				if lod.IndexCount >= s.LODs[i-1].IndexCount {
					t.Errorf("lod %d has %d indices, not coarser than %d", i, lod.IndexCount, s.LODs[i-1].IndexCount)
				}
			}
		}
	}
	if !found {
		t.Fatal("no surface with a 3-level LOD chain found")
	}
}

func TestGridSceneHasTransparentMaterial(t *testing.T) {
	scn := buildGridScene()

	transparentMaterials := map[uint32]bool{}
	for i, m := range scn.Materials {
		if m.Flags&1 != 0 {
			transparentMaterials[uint32(i)] = true
		}
	}
	if len(transparentMaterials) == 0 {
		t.Fatal("scene carries no transparent material for the post pass")
	}

	var transparentObjects int
	for _, ro := range scn.RenderObjects {
		if transparentMaterials[ro.MaterialID] {
			transparentObjects++
		}
	}
	if transparentObjects == 0 {
		t.Error("no render object references a transparent material")
	}
}
