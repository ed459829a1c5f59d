package math

import "testing"

func viewProjectionFor(position, target Vec3, fovRad, aspect, near float32) Mat4 {
	view := NewMat4LookAt(position, target, NewVec3Up())
	proj := NewMat4PerspectiveReversedZ(fovRad, aspect, near)
	return view.Mul(proj)
}

func TestSphereInFrustum(t *testing.T) {
	// Camera at (0,0,-5) looking at the origin, 90 degree FOV.
	vp := viewProjectionFor(NewVec3(0, 0, -5), NewVec3Zero(), DegToRad(90), 1.0, 0.1)
	planes := ExtractFrustumPlanes(vp)

	tests := []struct {
		name   string
		center Vec3
		radius float32
		want   bool
	}{
		{"unit sphere at origin", NewVec3Zero(), 1, true},
		{"far off to the right", NewVec3(100, 0, 0), 1, false},
		{"far off above", NewVec3(0, 100, 0), 1, false},
		{"behind the camera", NewVec3(0, 0, -20), 1, false},
		{"grazing the left edge", NewVec3(-5.5, 0, 0), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := planes.SphereInFrustum(tt.center, tt.radius); got != tt.want {
				t.Errorf("SphereInFrustum(%v, %v) = %v, want %v", tt.center, tt.radius, got, tt.want)
			}
		})
	}
}

func TestFrustumPlanesNormalized(t *testing.T) {
	vp := viewProjectionFor(NewVec3(3, 4, -7), NewVec3(0, 1, 0), DegToRad(70), 16.0/9.0, 0.1)
	planes := ExtractFrustumPlanes(vp)

	for i, p := range planes {
		length := p.Normal.Length()
		if length == 0 {
			// Reversed infinite-far projections degenerate the far
			// plane; it auto-passes the sphere test.
			continue
		}
		if kabs(length-1.0) > 0.001 {
			t.Errorf("plane %d normal length = %v, want 1", i, length)
		}
	}
}

func TestProjectedSphereExtent(t *testing.T) {
	// A sphere twice as far away should project to roughly half the extent.
	w1, h1 := ProjectedSphereExtent(NewVec3(0, 0, -10), 1, 1.0, 1.0)
	w2, h2 := ProjectedSphereExtent(NewVec3(0, 0, -20), 1, 1.0, 1.0)

	if w1 <= 0 || h1 <= 0 {
		t.Fatalf("near sphere projected to empty extent (%v, %v)", w1, h1)
	}
	if ratio := w1 / w2; kabs(ratio-2.0) > 0.02 {
		t.Errorf("extent ratio = %v, want ~2", ratio)
	}
	if h1 != w1 || h2 != w2 {
		t.Errorf("square projection expected with p00 == p11, got (%v,%v) (%v,%v)", w1, h1, w2, h2)
	}

	// Sphere straddling the near region projects to zero.
	if w, h := ProjectedSphereExtent(NewVec3(0, 0, -0.5), 1, 1.0, 1.0); w != 0 || h != 0 {
		t.Errorf("straddling sphere extent = (%v, %v), want (0, 0)", w, h)
	}
}

func TestSelectLOD(t *testing.T) {
	bounds := []float32{0.0, 1.0, 4.0}

	tests := []struct {
		name        string
		screenError float32
		threshold   float32
		lodsOn      bool
		want        int
	}{
		{"mid error picks middle lod", 1.5, 2.0, true, 1},
		{"tiny threshold keeps full detail", 1.0, 0.5, true, 0},
		{"large threshold picks coarsest", 1.0, 10.0, true, 2},
		{"lods disabled", 1.5, 2.0, false, 0},
		{"empty table", 1.5, 2.0, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bounds
			if tt.name == "empty table" {
				b = nil
			}
			if got := SelectLOD(b, tt.screenError, tt.threshold, tt.lodsOn); got != tt.want {
				t.Errorf("SelectLOD = %d, want %d", got, tt.want)
			}
		})
	}
}
