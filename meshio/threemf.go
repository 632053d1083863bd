package meshio

import (
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hpinc/go3mf"
	_ "github.com/hpinc/go3mf/production" // p:path references to other model parts

	"github.com/gogpu/meshthumb/mesh"
)

// maxComponentDepth bounds component nesting, which also stops reference
// cycles.
const maxComponentDepth = 32

// Decode3MF decodes a 3MF package. Build items are placed with their
// transforms and components are expanded recursively, following
// production-extension references into other model parts. A model without
// build items yields every mesh object untransformed. Support objects are
// skipped. 3MF stores no normals, so the result has none.
func Decode3MF(r io.ReaderAt, size int64) (*mesh.Mesh, error) {
	var model go3mf.Model
	if err := go3mf.NewDecoder(r, size).Decode(&model); err != nil {
		return nil, &FormatError{Format: Format3MF, Err: err}
	}

	b := threeMFBuilder{model: &model, out: &mesh.Mesh{}}
	if len(model.Build.Items) == 0 {
		err := model.WalkObjects(func(_ string, o *go3mf.Object) error {
			if o.Mesh == nil || isSupport(o) {
				return nil
			}
			return b.addMesh(o, mgl32.Ident4())
		})
		if err != nil {
			return nil, &FormatError{Format: Format3MF, Err: err}
		}
	}
	for _, item := range model.Build.Items {
		if err := b.add(item.ObjectPath(), item.ObjectID, transform3MF(item.Transform), 0); err != nil {
			return nil, &FormatError{Format: Format3MF, Err: err}
		}
	}
	return checkNotEmpty(Format3MF, b.out)
}

type threeMFBuilder struct {
	model *go3mf.Model
	out   *mesh.Mesh
}

// add appends object id of the model part at path, an empty path being
// the root part.
func (b *threeMFBuilder) add(path string, id uint32, t mgl32.Mat4, depth int) error {
	if depth > maxComponentDepth {
		return fmt.Errorf("object %d: components nested deeper than %d", id, maxComponentDepth)
	}
	o, ok := b.model.FindObject(path, id)
	if !ok {
		return fmt.Errorf("build references unknown object %d", id)
	}
	if isSupport(o) {
		return nil
	}
	if o.Mesh != nil {
		if err := b.addMesh(o, t); err != nil {
			return err
		}
	}
	if o.Components == nil {
		return nil
	}
	for _, c := range o.Components.Component {
		if err := b.add(c.ObjectPath(path), c.ObjectID, t.Mul4(transform3MF(c.Transform)), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (b *threeMFBuilder) addMesh(o *go3mf.Object, t mgl32.Mat4) error {
	vertices := o.Mesh.Vertices.Vertex
	triangles := o.Mesh.Triangles.Triangle
	part := &mesh.Mesh{
		Positions: make([]mgl32.Vec3, len(vertices)),
		Indices:   make([]uint32, 0, 3*len(triangles)),
	}
	for i, v := range vertices {
		part.Positions[i] = mgl32.Vec3(v)
	}
	n := uint32(len(vertices))
	for i, tri := range triangles {
		if tri.V1 >= n || tri.V2 >= n || tri.V3 >= n {
			return &mesh.MalformedMeshError{
				Triangle:    i,
				Index:       max(tri.V1, tri.V2, tri.V3),
				VertexCount: int(n),
				Reason:      fmt.Sprintf("object %d: vertex index out of range", o.ID),
			}
		}
		part.Indices = append(part.Indices, tri.V1, tri.V2, tri.V3)
	}
	if t != mgl32.Ident4() {
		part.Transform(t)
	}
	b.out.Append(part)
	return nil
}

func isSupport(o *go3mf.Object) bool {
	return o.Type == go3mf.ObjectTypeSupport || o.Type == go3mf.ObjectTypeSolidSupport
}

// transform3MF converts a 3MF transform to a matrix. Both store the 4x3
// row-vector affine transform in the same order, with the translation in
// elements 12 to 14. A missing transform decodes as all zeros and is the
// identity.
func transform3MF(m go3mf.Matrix) mgl32.Mat4 {
	if m == (go3mf.Matrix{}) {
		return mgl32.Ident4()
	}
	return mgl32.Mat4(m)
}
