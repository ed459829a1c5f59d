package math

import "testing"

func TestGenerateSmoothNormals(t *testing.T) {
	// A flat quad in the XY plane, counter-clockwise winding: every normal
	// points +Z.
	positions := []Vec3{
		NewVec3(0, 0, 0),
		NewVec3(1, 0, 0),
		NewVec3(1, 1, 0),
		NewVec3(0, 1, 0),
	}
	indices := []uint32{0, 1, 2, 0, 2, 3}

	normals := GenerateSmoothNormals(positions, indices)
	if len(normals) != len(positions) {
		t.Fatalf("got %d normals for %d positions", len(normals), len(positions))
	}
	for i, n := range normals {
		if !n.Compare(NewVec3(0, 0, 1), 0.0001) {
			t.Errorf("normal %d = %v, want +Z", i, n)
		}
	}
}

func TestGenerateSmoothNormalsSkipsDegenerates(t *testing.T) {
	positions := []Vec3{NewVec3Zero(), NewVec3Zero(), NewVec3Zero()}
	indices := []uint32{0, 1, 2}

	normals := GenerateSmoothNormals(positions, indices)
	for i, n := range normals {
		if n.LengthSquared() != 0 {
			t.Errorf("degenerate triangle produced normal %d = %v", i, n)
		}
	}
}

func TestComputeBoundingSphere(t *testing.T) {
	positions := []Vec3{
		NewVec3(-2, 0, 0),
		NewVec3(2, 0, 0),
		NewVec3(0, 1, 0),
		NewVec3(0, 0, -1),
	}

	center, radius := ComputeBoundingSphere(positions)

	for i, p := range positions {
		if dist := p.Sub(center).Length(); dist > radius+0.0001 {
			t.Errorf("point %d at distance %v escapes radius %v", i, dist, radius)
		}
	}
	// Not wildly larger than the optimal sphere (radius 2 here).
	if radius > 3 {
		t.Errorf("radius %v far exceeds the point spread", radius)
	}
}

func TestComputeBoundingSphereEmpty(t *testing.T) {
	center, radius := ComputeBoundingSphere(nil)
	if radius != 0 || center.LengthSquared() != 0 {
		t.Errorf("empty input produced sphere %v r=%v", center, radius)
	}
}
