package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
)

// NormalizeOptions controls Normalize.
type NormalizeOptions struct {
	// CanonicalLength is the length the longest axis is scaled to.
	// Zero means DefaultCanonicalLength.
	CanonicalLength float32

	// RecalcNormals discards supplied normals and synthesizes all of them
	// from the triangles. Useful for files with broken facet normals.
	RecalcNormals bool
}

// Validate checks the structural invariants of m: at least one vertex, an
// index count that is a multiple of three, every index in range and a normal
// slice that is either empty or parallel to the positions.
func Validate(m *Mesh) error {
	if m == nil || len(m.Positions) == 0 {
		return ErrEmptyMesh
	}
	n := len(m.Positions)
	if len(m.Indices)%3 != 0 {
		return &MalformedMeshError{
			Triangle:    -1,
			VertexCount: n,
			Reason:      "index count is not a multiple of 3",
		}
	}
	if len(m.Normals) != 0 && len(m.Normals) != n {
		return &MalformedMeshError{
			Triangle:    -1,
			VertexCount: n,
			Reason:      "normal count does not match vertex count",
		}
	}
	for i, idx := range m.Indices {
		if int(idx) >= n {
			return &MalformedMeshError{
				Triangle:    i / 3,
				Index:       idx,
				VertexCount: n,
				Reason:      "vertex index out of range",
			}
		}
	}
	return nil
}

// Normalize validates m and returns a copy that is centered at the origin
// and uniformly scaled so that its longest bounding-box axis equals the
// canonical length, together with the bounds of the result. Undefined
// normals are synthesized. m itself is not modified.
//
// A degenerate mesh (all vertices within Epsilon of each other) is only
// recentered; its scale stays 1.
func Normalize(m *Mesh, opts NormalizeOptions) (*Mesh, BoundingBox, error) {
	if err := Validate(m); err != nil {
		return nil, BoundingBox{}, err
	}

	length := opts.CanonicalLength
	if length <= 0 {
		length = DefaultCanonicalLength
	}

	bounds := ComputeBounds(m.Positions)
	center := bounds.Center()
	scale := float32(1)
	if longest := bounds.Longest(); longest > Epsilon {
		scale = length / longest
	}

	out := &Mesh{
		Positions: make([]mgl32.Vec3, len(m.Positions)),
		Indices:   make([]uint32, len(m.Indices)),
	}
	for i, p := range m.Positions {
		out.Positions[i] = p.Sub(center).Mul(scale)
	}
	copy(out.Indices, m.Indices)

	// Uniform scaling leaves directions untouched, so supplied normals carry
	// over unchanged.
	if !opts.RecalcNormals && len(m.Normals) > 0 {
		out.Normals = make([]mgl32.Vec3, len(m.Normals))
		copy(out.Normals, m.Normals)
	}
	FillMissingNormals(out)

	return out, ComputeBounds(out.Positions), nil
}

// FillMissingNormals assigns smooth normals to every vertex whose normal is
// undefined. When the mesh carries no normals at all, every vertex gets one.
func FillMissingNormals(m *Mesh) {
	if len(m.Normals) == 0 {
		m.Normals = ComputeSmoothNormals(m)
		return
	}

	missing := false
	for _, n := range m.Normals {
		if n == (mgl32.Vec3{}) {
			missing = true
			break
		}
	}
	if !missing {
		return
	}

	smooth := ComputeSmoothNormals(m)
	for i, n := range m.Normals {
		if n == (mgl32.Vec3{}) {
			m.Normals[i] = smooth[i]
		}
	}
}

// ComputeSmoothNormals returns one normal per vertex: the normalized sum of
// the unit face normals of every triangle that uses the vertex. Faces are
// wound counter-clockwise, so the face normal is cross(b-a, c-a). Zero-area
// triangles contribute nothing, and a vertex no triangle contributes to gets
// the zero vector.
func ComputeSmoothNormals(m *Mesh) []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(m.Positions))
	for t := 0; t+2 < len(m.Indices); t += 3 {
		a, b, c := m.Indices[t], m.Indices[t+1], m.Indices[t+2]
		pa, pb, pc := m.Positions[a], m.Positions[b], m.Positions[c]

		cross := pb.Sub(pa).Cross(pc.Sub(pa))
		l := cross.Len()
		if !(l > 0) {
			continue
		}
		face := cross.Mul(1 / l)
		normals[a] = normals[a].Add(face)
		normals[b] = normals[b].Add(face)
		normals[c] = normals[c].Add(face)
	}
	for i, n := range normals {
		normals[i] = normalizeOrZero(n)
	}
	return normals
}
