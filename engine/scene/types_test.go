package scene

import (
	"strings"
	"testing"

	"github.com/anima-gfx/lucent/engine/math"
)

func validScene() *Scene {
	return &Scene{
		Vertices: []Vertex{{}},
		Indices:  []uint32{0, 0, 0},
		Surfaces: []Surface{{
			IndexCount: 3,
			LODs: []LOD{
				{IndexCount: 3, ErrorBound: 0},
				{IndexCount: 3, ErrorBound: 2},
			},
			Bounds: BoundingSphere{Radius: 1},
		}},
		RenderObjects: []RenderObject{{TransformID: 0, SurfaceID: 0, MaterialID: 0}},
		Transforms:    []Transform{{Scale: math.NewVec3One()}},
		Materials:     []Material{{}},
	}
}

func TestValidateAcceptsConsistentScene(t *testing.T) {
	if err := validScene().Validate(); err != nil {
		t.Fatalf("valid scene rejected: %v", err)
	}
}

func TestValidateRejectsBadReferences(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scene)
		wantSub string
	}{
		{
			"surface out of range",
			func(s *Scene) { s.RenderObjects[0].SurfaceID = 5 },
			"surface index",
		},
		{
			"transform out of range",
			func(s *Scene) { s.RenderObjects[0].TransformID = 9 },
			"transform index",
		},
		{
			"material out of range",
			func(s *Scene) { s.RenderObjects[0].MaterialID = 3 },
			"material index",
		},
		{
			"empty lod table",
			func(s *Scene) { s.Surfaces[0].LODs = nil },
			"no LOD entries",
		},
		{
			"descending lod errors",
			func(s *Scene) {
				s.Surfaces[0].LODs[0].ErrorBound = 5
			},
			"ascending",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validScene()
			tt.mutate(s)
			err := s.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}
