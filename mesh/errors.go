package mesh

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMesh is returned when a mesh has no vertices.
	ErrEmptyMesh = errors.New("mesh: empty mesh")

	// ErrMalformedMesh is the sentinel matched by every *MalformedMeshError.
	ErrMalformedMesh = errors.New("mesh: malformed mesh")
)

// MalformedMeshError describes an index list that does not form valid
// triangles over the vertex list.
type MalformedMeshError struct {
	// Triangle is the offending triangle number, or -1 when the problem is
	// not tied to one triangle.
	Triangle int

	// Index is the out-of-range vertex index (valid when Triangle >= 0).
	Index uint32

	// VertexCount is the number of vertices in the mesh.
	VertexCount int

	// Reason is a short description of the defect.
	Reason string
}

func (e *MalformedMeshError) Error() string {
	if e.Triangle < 0 {
		return fmt.Sprintf("mesh: malformed mesh: %s", e.Reason)
	}
	return fmt.Sprintf("mesh: malformed mesh: triangle %d: %s (index %d, %d vertices)",
		e.Triangle, e.Reason, e.Index, e.VertexCount)
}

// Is reports whether target is ErrMalformedMesh.
func (e *MalformedMeshError) Is(target error) bool {
	return target == ErrMalformedMesh
}
