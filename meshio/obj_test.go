package meshio

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/meshthumb/mesh"
)

const cubeOBJ = `# unit cube
mtllib cube.mtl
o cube
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 0 0 1
v 1 0 1
v 1 1 1
v 0 1 1
vt 0 0
g sides
usemtl grey
s off
f 1 4 3 2
f 5 6 7 8
f 1 2 6 5
f 3 4 8 7
f 2 3 7 6
f 1 5 8 4
`

func TestDecodeOBJCube(t *testing.T) {
	m, err := DecodeOBJ(strings.NewReader(cubeOBJ))
	if err != nil {
		t.Fatal(err)
	}
	if m.VertexCount() != 8 || m.TriangleCount() != 12 {
		t.Fatalf("got %d vertices, %d triangles", m.VertexCount(), m.TriangleCount())
	}
	if m.Normals != nil {
		t.Errorf("file has no normals but mesh carries %d", len(m.Normals))
	}
	if err := mesh.Validate(m); err != nil {
		t.Fatal(err)
	}
	// First quad 1 4 3 2 fans into (1,4,3) and (1,3,2).
	want := []uint32{0, 1, 2, 0, 2, 3}
	for i, w := range want {
		if m.Indices[i] != w {
			t.Fatalf("Indices[:6] = %v, want %v", m.Indices[:6], want)
		}
	}
	if m.Positions[1] != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("second vertex = %v, want the fourth position", m.Positions[1])
	}
}

func TestDecodeOBJNormalsAndRelativeIndices(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
vn 0 0 1
vn 0 0 -1
f 1//1 2//1 3//1
f -3/7/2 -1/7/2 -2/7/2
f 1 2 3
`
	m, err := DecodeOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	// Three position/normal pairs per face, the last face has none.
	if m.VertexCount() != 9 || m.TriangleCount() != 3 {
		t.Fatalf("got %d vertices, %d triangles", m.VertexCount(), m.TriangleCount())
	}
	if len(m.Normals) != 9 {
		t.Fatalf("len(Normals) = %d", len(m.Normals))
	}
	if m.Normals[0] != (mgl32.Vec3{0, 0, 1}) || m.Normals[3] != (mgl32.Vec3{0, 0, -1}) {
		t.Errorf("normals = %v", m.Normals[:6])
	}
	if m.Normals[6] != (mgl32.Vec3{}) {
		t.Errorf("corner without a normal got %v", m.Normals[6])
	}
	// -3 -1 -2 is 1 3 2: reversed winding.
	if m.Positions[m.Indices[4]] != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("relative index resolved to %v", m.Positions[m.Indices[4]])
	}
}

func TestDecodeOBJSharesVertices(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3\nf 1 3 4\n"
	m, err := DecodeOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if m.VertexCount() != 4 {
		t.Errorf("VertexCount() = %d, want 4 shared vertices", m.VertexCount())
	}
}

func TestDecodeOBJErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"index zero", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n", 4},
		{"out of range", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n", 4},
		{"forward relative", "v 0 0 0\nf -1 -2 -3\n", 2},
		{"bad vertex", "v 0 nope 0\n", 1},
		{"short vertex", "v 0 0\n", 1},
		{"two corners", "v 0 0 0\nv 1 0 0\nf 1 2\n", 3},
		{"bad normal ref", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1//1 2//1 3//1\n", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOBJ(strings.NewReader(tt.src))
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("DecodeOBJ() = %v, want *FormatError", err)
			}
			if fe.Format != FormatOBJ || fe.Line != tt.line {
				t.Errorf("error at %v line %d, want obj line %d: %v", fe.Format, fe.Line, tt.line, err)
			}
		})
	}

	_, err := DecodeOBJ(strings.NewReader("# nothing\nv 0 0 0\n"))
	if !errors.Is(err, mesh.ErrEmptyMesh) {
		t.Errorf("no faces: %v, want ErrEmptyMesh", err)
	}
}
