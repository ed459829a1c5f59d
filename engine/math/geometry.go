package math

// GenerateSmoothNormals accumulates area-weighted face normals per vertex
// and normalizes the result. Positions index through indices as triangle
// triples; degenerate triangles contribute nothing.
func GenerateSmoothNormals(positions []Vec3, indices []uint32) []Vec3 {
	normals := make([]Vec3, len(positions))

	for i := 0; i+2 < len(indices); i += 3 {
		i0 := indices[i+0]
		i1 := indices[i+1]
		i2 := indices[i+2]

		edge1 := positions[i1].Sub(positions[i0])
		edge2 := positions[i2].Sub(positions[i0])

		// Unnormalized cross product: magnitude carries the area weight.
		face := edge1.Cross(edge2)

		normals[i0] = normals[i0].Add(face)
		normals[i1] = normals[i1].Add(face)
		normals[i2] = normals[i2].Add(face)
	}

	for i := range normals {
		if normals[i].LengthSquared() > 0 {
			normals[i] = normals[i].Normalized()
		}
	}
	return normals
}

// ComputeBoundingSphere runs Ritter's two-pass approximation: pick the pair
// of extreme points for the initial sphere, then grow it over any point left
// outside. The result bounds every input position.
func ComputeBoundingSphere(positions []Vec3) (center Vec3, radius float32) {
	if len(positions) == 0 {
		return NewVec3Zero(), 0
	}

	// Find the point farthest from the first position, then the point
	// farthest from that.
	a := positions[0]
	b := a
	maxDist := float32(0)
	for _, p := range positions {
		if d := p.Sub(a).LengthSquared(); d > maxDist {
			maxDist = d
			b = p
		}
	}
	c := b
	maxDist = 0
	for _, p := range positions {
		if d := p.Sub(b).LengthSquared(); d > maxDist {
			maxDist = d
			c = p
		}
	}

	center = b.Add(c).MulScalar(0.5)
	radius = ksqrt(maxDist) * 0.5

	// Growth pass: expand over anything still outside.
	for _, p := range positions {
		dist := p.Sub(center).Length()
		if dist > radius {
			newRadius := (radius + dist) * 0.5
			shift := (dist - radius) * 0.5 / dist
			center = center.Add(p.Sub(center).MulScalar(shift))
			radius = newRadius
		}
	}
	return center, radius
}
