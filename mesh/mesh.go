// Package mesh holds the triangle mesh data model consumed by the renderer
// and the normalizer that brings arbitrary model coordinates into the
// canonical unit space.
//
// A Mesh is an indexed triangle list. Positions and normals are parallel
// slices; a zero normal marks a vertex whose normal is undefined and must be
// synthesized before shading. Decoding of STL, OBJ and 3MF files lives in
// package meshio.
package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Epsilon is the extent below which a bounding box is treated as degenerate.
const Epsilon = 1e-6

// DefaultCanonicalLength is the length the longest bounding-box axis is
// scaled to by Normalize.
const DefaultCanonicalLength = 2.0

// Mesh is an indexed triangle mesh.
type Mesh struct {
	// Positions are the vertex positions.
	Positions []mgl32.Vec3

	// Normals are per-vertex normals. Empty means none were supplied;
	// otherwise len(Normals) == len(Positions) and a zero vector marks an
	// undefined normal.
	Normals []mgl32.Vec3

	// Indices reference Positions in groups of three, one group per
	// triangle.
	Indices []uint32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Positions) }

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// Clone returns a deep copy of m.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Positions: make([]mgl32.Vec3, len(m.Positions)),
		Indices:   make([]uint32, len(m.Indices)),
	}
	copy(c.Positions, m.Positions)
	copy(c.Indices, m.Indices)
	if len(m.Normals) > 0 {
		c.Normals = make([]mgl32.Vec3, len(m.Normals))
		copy(c.Normals, m.Normals)
	}
	return c
}

// Append adds the triangles of other to m, rebasing its indices.
// Normals are kept only if both meshes carry them; otherwise the combined
// mesh has undefined normals for the side that had none.
func (m *Mesh) Append(other *Mesh) {
	base := uint32(len(m.Positions))

	switch {
	case len(m.Normals) == 0 && len(other.Normals) == 0:
	case len(m.Normals) == 0:
		m.Normals = make([]mgl32.Vec3, len(m.Positions), len(m.Positions)+len(other.Positions))
		m.Normals = append(m.Normals, other.Normals...)
	case len(other.Normals) == 0:
		m.Normals = append(m.Normals, make([]mgl32.Vec3, len(other.Positions))...)
	default:
		m.Normals = append(m.Normals, other.Normals...)
	}

	m.Positions = append(m.Positions, other.Positions...)
	for _, idx := range other.Indices {
		m.Indices = append(m.Indices, base+idx)
	}
}

// Transform applies the affine matrix t to every position and the matching
// normal transform to every normal. The mesh is modified in place.
func (m *Mesh) Transform(t mgl32.Mat4) {
	for i, p := range m.Positions {
		m.Positions[i] = mgl32.TransformCoordinate(p, t)
	}
	if len(m.Normals) == 0 {
		return
	}
	nm := t.Mat3().Inv().Transpose()
	for i, n := range m.Normals {
		if n == (mgl32.Vec3{}) {
			continue
		}
		m.Normals[i] = normalizeOrZero(nm.Mul3x1(n))
	}
}

// normalizeOrZero returns v scaled to unit length, or the zero vector when v
// is too short to have a direction.
func normalizeOrZero(v mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if !(l > Epsilon) {
		return mgl32.Vec3{}
	}
	return v.Mul(1 / l)
}
