package math

// Plane is a half-space boundary in Hessian normal form: a point p is on the
// positive side when p.Dot(Normal) + Distance >= 0.
type Plane struct {
	Normal   Vec3
	Distance float32
}

// FrustumPlanes holds the six separated planes extracted from a combined
// projection*view matrix, in the order left, right, bottom, top, far
// (depth >= 0), near (depth <= 1).
type FrustumPlanes [6]Plane

// NewMat4PerspectiveReversedZ builds an infinite-far reversed-Z projection
// (depth 1 at the near plane falling toward 0 at infinity) in this package's
// row-vector convention. Reversed Z pairs with a min-reduction depth pyramid
// and a greater-than depth test.
func NewMat4PerspectiveReversedZ(fovRadians, aspectRatio, nearClip float32) Mat4 {
	halfTanFov := ktan(fovRadians * 0.5)
	out := Mat4{}
	out.Data[0] = 1.0 / (aspectRatio * halfTanFov)
	out.Data[5] = 1.0 / halfTanFov
	out.Data[10] = 0
	out.Data[11] = -1.0
	out.Data[14] = nearClip
	return out
}

func normalizePlane(a, b, c, d float32) Plane {
	n := Vec3{X: a, Y: b, Z: c}
	length := n.Length()
	if length == 0 {
		return Plane{}
	}
	inv := 1.0 / length
	return Plane{
		Normal:   Vec3{X: a * inv, Y: b * inv, Z: c * inv},
		Distance: d * inv,
	}
}

// ExtractFrustumPlanes derives the six frustum planes from a combined
// view*projection matrix via the Gribb-Hartmann method. This package's
// matrices transform row vectors (clip = v * M), so the plane coefficients
// come from the stored columns: coefficient column i is (Data[i], Data[4+i],
// Data[8+i], Data[12+i]).
//
// With a reversed-Z [0,1] depth range the far bound (depth >= 0) is column 2
// alone and the near plane (depth <= 1) is col3-col2. Under an infinite-far
// reversed projection column 2 degenerates to (0, 0, 0, near);
// normalizePlane maps it to a zero plane, which the sphere test treats as
// always-passing.
func ExtractFrustumPlanes(viewProjection Mat4) FrustumPlanes {
	m := viewProjection.Data

	row := func(i int) (float32, float32, float32, float32) {
		return m[i], m[4+i], m[8+i], m[12+i]
	}

	r0x, r0y, r0z, r0w := row(0)
	r1x, r1y, r1z, r1w := row(1)
	r2x, r2y, r2z, r2w := row(2)
	r3x, r3y, r3z, r3w := row(3)

	return FrustumPlanes{
		normalizePlane(r3x+r0x, r3y+r0y, r3z+r0z, r3w+r0w), // left
		normalizePlane(r3x-r0x, r3y-r0y, r3z-r0z, r3w-r0w), // right
		normalizePlane(r3x+r1x, r3y+r1y, r3z+r1z, r3w+r1w), // bottom
		normalizePlane(r3x-r1x, r3y-r1y, r3z-r1z, r3w-r1w), // top
		normalizePlane(r2x, r2y, r2z, r2w),                 // far
		normalizePlane(r3x-r2x, r3y-r2y, r3z-r2z, r3w-r2w), // near
	}
}

// SphereInFrustum tests a world-space bounding sphere against the six
// planes. Returns false as soon as the sphere is fully outside any plane.
func (f FrustumPlanes) SphereInFrustum(center Vec3, radius float32) bool {
	for _, p := range f {
		if center.Dot(p.Normal)+p.Distance+radius < 0 {
			return false
		}
	}
	return true
}

// ProjectedSphereExtent estimates the NDC-space diameter of a view-space
// sphere (center already transformed into view space) using the P00/P11
// terms of the projection matrix (Mat4.Data[0] and Mat4.Data[5]), matching
// the cull shader's occlusion test. Returns 0 when the sphere straddles
// the near plane (z >= -radius), since the projection is undefined there.
func ProjectedSphereExtent(viewSpaceCenter Vec3, radius, p00, p11 float32) (widthNDC, heightNDC float32) {
	z := -viewSpaceCenter.Z
	if z <= radius {
		return 0, 0
	}

	// Distance from the eye to the sphere's silhouette tangent points, per
	// Hasselgren et al.'s screen-space bounding approximation.
	d := ksqrt(z*z - radius*radius)
	widthNDC = 2 * radius * p00 / d
	heightNDC = 2 * radius * p11 / d
	return widthNDC, heightNDC
}

// SelectLOD returns the coarsest (highest-index) LOD whose projected screen
// error — errorBounds[i] scaled by the object's current screenError factor —
// still falls within threshold. errorBounds must be
// sorted ascending (LOD 0 finest). Returns 0 if lodsOn is false, errorBounds
// is empty, or no LOD satisfies the threshold.
func SelectLOD(errorBounds []float32, screenError, threshold float32, lodsOn bool) int {
	if !lodsOn || len(errorBounds) == 0 {
		return 0
	}
	for i := len(errorBounds) - 1; i >= 0; i-- {
		if errorBounds[i]*screenError <= threshold {
			return i
		}
	}
	return 0
}
