package meshio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hschendel/stl"

	"github.com/gogpu/meshthumb/mesh"
)

const (
	stlHeaderSize = 80
	stlFacetSize  = 50 // normal, three vertices, attribute byte count
)

// DecodeSTL decodes a binary or ASCII STL file. Binary files are
// recognized by their size matching the facet count in the header, so a
// binary file whose header starts with "solid" is still read as binary.
//
// Every facet gets three vertices of its own, all carrying the facet
// normal. A zero facet normal is left zero for the renderer to compute.
func DecodeSTL(data []byte) (*mesh.Mesh, error) {
	data, err := prepareSTL(data)
	if err != nil {
		return nil, err
	}
	var b stlBuilder
	if err := stl.CopyAll(bytes.NewReader(data), &b); err != nil {
		return nil, stlError(err)
	}
	if b.err != nil {
		return nil, &FormatError{Format: FormatSTL, Err: b.err}
	}
	return checkNotEmpty(FormatSTL, &b.m)
}

// prepareSTL returns data in a form the stl reader classifies correctly.
// Binary files with bytes after the last facet are cut to their declared
// size, since the reader only treats exact sizes as binary. ASCII files
// lose leading blank space, and a bare "solid" header gets the trailing
// space the reader requires.
func prepareSTL(data []byte) ([]byte, error) {
	if _, ok := binarySTLFacets(data); ok {
		return data, nil
	}
	if text := bytes.TrimLeft(data, " \t\r\n"); bytes.HasPrefix(text, []byte("solid")) {
		if len(text) == 5 || text[5] == '\n' || text[5] == '\r' {
			text = append([]byte("solid "), text[5:]...)
		}
		return text, nil
	}
	if len(data) < stlHeaderSize+4 {
		return nil, &FormatError{Format: FormatSTL, Err: errors.New("file too short")}
	}
	n := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	need := uint64(stlHeaderSize+4) + uint64(n)*stlFacetSize
	if uint64(len(data)) < need {
		return nil, &FormatError{Format: FormatSTL, Err: fmt.Errorf("truncated: %d facets need %d bytes, have %d", n, need, len(data))}
	}
	return data[:need], nil
}

func binarySTLFacets(data []byte) (uint32, bool) {
	if len(data) < stlHeaderSize+4 {
		return 0, false
	}
	n := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	return n, uint64(stlHeaderSize+4)+uint64(n)*stlFacetSize == uint64(len(data))
}

// stlBuilder collects the triangles streamed by the stl reader. The first
// bad facet is kept in err and later facets are ignored.
type stlBuilder struct {
	m   mesh.Mesh
	err error
}

func (b *stlBuilder) SetName(string)         {}
func (b *stlBuilder) SetBinaryHeader([]byte) {}
func (b *stlBuilder) SetASCII(bool)          {}

// SetTriangleCount is only called for binary files, whose size has
// already been checked against n.
func (b *stlBuilder) SetTriangleCount(n uint32) {
	b.m.Positions = make([]mgl32.Vec3, 0, 3*int(n))
	b.m.Normals = make([]mgl32.Vec3, 0, 3*int(n))
	b.m.Indices = make([]uint32, 0, 3*int(n))
}

func (b *stlBuilder) AppendTriangle(t stl.Triangle) {
	if b.err != nil {
		return
	}
	v := t.Vertices
	err := addFacet(&b.m, mgl32.Vec3(t.Normal), mgl32.Vec3(v[0]), mgl32.Vec3(v[1]), mgl32.Vec3(v[2]))
	if err != nil {
		b.err = fmt.Errorf("facet %d: %w", b.m.TriangleCount(), err)
	}
}

// stlError wraps a reader error. ASCII parse errors arrive as lines of
// "N: message"; the first one sets the line number.
func stlError(err error) error {
	fe := &FormatError{Format: FormatSTL, Err: err}
	var msgs []string
	for _, l := range strings.Split(strings.TrimSpace(err.Error()), "\n") {
		num, msg, ok := strings.Cut(l, ": ")
		if n, convErr := strconv.Atoi(num); ok && convErr == nil {
			if fe.Line == 0 {
				fe.Line = n
			}
			msgs = append(msgs, msg)
		} else if l != "" {
			msgs = append(msgs, l)
		}
	}
	if fe.Line > 0 {
		fe.Err = errors.New(strings.Join(msgs, "; "))
	}
	return fe
}

// addFacet appends one unshared triangle.
func addFacet(m *mesh.Mesh, normal, a, b, c mgl32.Vec3) error {
	for _, p := range [3]mgl32.Vec3{a, b, c} {
		if !finite(p) {
			return fmt.Errorf("non-finite vertex %v", p)
		}
	}
	if !finite(normal) {
		normal = mgl32.Vec3{}
	} else if l := normal.Len(); l > 0 {
		normal = normal.Mul(1 / l)
	}
	base := uint32(len(m.Positions))
	m.Positions = append(m.Positions, a, b, c)
	m.Normals = append(m.Normals, normal, normal, normal)
	m.Indices = append(m.Indices, base, base+1, base+2)
	return nil
}

func finite(v mgl32.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return false
		}
	}
	return true
}
