package meshio

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/meshthumb/mesh"
)

const contentTypes3MF = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
 <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
 <Default Extension="model" ContentType="application/vnd.ms-package.3dmanufacturing-3dmodel+xml"/>
</Types>`

// rels3MF returns a relationships part pointing at the model parts.
func rels3MF(targets ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i, target := range targets {
		fmt.Fprintf(&b, `
 <Relationship Target="%s" Id="rel%d" Type="http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"/>`, target, i)
	}
	b.WriteString("\n</Relationships>")
	return b.String()
}

// tetraObject is a tetrahedron with one corner at the origin.
const tetraObject = `
  <object id="%ID%" type="model">
   <mesh>
    <vertices>
     <vertex x="0" y="0" z="0"/>
     <vertex x="1" y="0" z="0"/>
     <vertex x="0" y="1" z="0"/>
     <vertex x="0" y="0" z="1"/>
    </vertices>
    <triangles>
     <triangle v1="0" v2="2" v3="1"/>
     <triangle v1="0" v2="1" v3="3"/>
     <triangle v1="0" v2="3" v3="2"/>
     <triangle v1="1" v2="2" v3="3"/>
    </triangles>
   </mesh>
  </object>`

func model3MFXML(resources, build string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<model unit="millimeter" xml:lang="en-US" xmlns="http://schemas.microsoft.com/3dmanufacturing/core/2015/02">
 <resources>` + resources + `
 </resources>
 <build>` + build + `</build>
</model>`
}

func tetra(id string) string { return strings.ReplaceAll(tetraObject, "%ID%", id) }

func package3MF(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// modelPackage3MF is a complete package with the model at 3D/3dmodel.model.
func modelPackage3MF(t *testing.T, model string) []byte {
	t.Helper()
	return package3MF(t, map[string]string{
		"[Content_Types].xml": contentTypes3MF,
		"_rels/.rels":         rels3MF("/3D/3dmodel.model"),
		"3D/3dmodel.model":    model,
	})
}

func decode3MFBytes(data []byte) (*mesh.Mesh, error) {
	return Decode3MF(bytes.NewReader(data), int64(len(data)))
}

func TestDecode3MFBuildItems(t *testing.T) {
	data := package3MF(t, map[string]string{
		"[Content_Types].xml": contentTypes3MF,
		"_rels/.rels":         rels3MF("/3D/part.model"),
		"3D/part.model": model3MFXML(tetra("1"),
			`<item objectid="1"/><item objectid="1" transform="1 0 0 0 1 0 0 0 1 10 0 0"/>`),
	})
	m, err := decode3MFBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	if m.VertexCount() != 8 || m.TriangleCount() != 8 {
		t.Fatalf("got %d vertices, %d triangles, want 8 and 8", m.VertexCount(), m.TriangleCount())
	}
	if len(m.Normals) != 0 {
		t.Errorf("3MF mesh carries %d normals", len(m.Normals))
	}
	if err := mesh.Validate(m); err != nil {
		t.Fatal(err)
	}
	if m.Positions[5] != (mgl32.Vec3{11, 0, 0}) {
		t.Errorf("translated vertex = %v, want (11,0,0)", m.Positions[5])
	}
	if m.Indices[12] != 4 {
		t.Errorf("second item indices not rebased: %v", m.Indices[12:15])
	}
}

func TestDecode3MFComponents(t *testing.T) {
	resources := tetra("1") + `
  <object id="2" type="model">
   <components>
    <component objectid="1" transform="2 0 0 0 2 0 0 0 2 0 0 0"/>
   </components>
  </object>`
	data := modelPackage3MF(t, model3MFXML(resources, `<item objectid="2" transform="1 0 0 0 1 0 0 0 1 0 0 5"/>`))
	m, err := decode3MFBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	if m.VertexCount() != 4 {
		t.Fatalf("VertexCount() = %d, want 4", m.VertexCount())
	}
	// Scale by the component, then translate by the item.
	if got := m.Positions[3]; !got.ApproxEqual(mgl32.Vec3{0, 0, 7}) {
		t.Errorf("apex = %v, want (0,0,7)", got)
	}
	if got := m.Positions[1]; !got.ApproxEqual(mgl32.Vec3{2, 0, 5}) {
		t.Errorf("vertex 1 = %v, want (2,0,5)", got)
	}
}

func TestDecode3MFWithoutBuild(t *testing.T) {
	data := modelPackage3MF(t, model3MFXML(tetra("3")+tetra("4"), ""))
	m, err := decode3MFBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	if m.TriangleCount() != 8 {
		t.Errorf("TriangleCount() = %d, want every object", m.TriangleCount())
	}
}

func TestDecode3MFErrors(t *testing.T) {
	badIndex := strings.Replace(tetra("1"), `v3="3"/>
    </triangles>`, `v3="4"/>
    </triangles>`, 1)
	cycle := `<object id="5"><components><component objectid="6"/></components></object>
<object id="6"><components><component objectid="5"/></components></object>`

	pkg := func(model string) map[string]string {
		return map[string]string{
			"[Content_Types].xml": contentTypes3MF,
			"_rels/.rels":         rels3MF("/3D/3dmodel.model"),
			"3D/3dmodel.model":    model,
		}
	}
	tests := []struct {
		name  string
		files map[string]string
		want  error
	}{
		{"not a zip", nil, nil},
		{"no content types", map[string]string{"_rels/.rels": rels3MF("/3D/a.model"), "3D/a.model": model3MFXML(tetra("1"), "")}, nil},
		{"no root relationship", map[string]string{"[Content_Types].xml": contentTypes3MF, "3D/a.model": model3MFXML(tetra("1"), "")}, nil},
		{"dangling root relationship", map[string]string{"[Content_Types].xml": contentTypes3MF, "_rels/.rels": rels3MF("/3D/missing.model")}, nil},
		{"bad xml", pkg("<model><<resources>"), nil},
		{"unknown object", pkg(model3MFXML(tetra("1"), `<item objectid="9"/>`)), nil},
		{"bad transform", pkg(model3MFXML(tetra("1"), `<item objectid="1" transform="1 0 0"/>`)), nil},
		{"index out of range", pkg(model3MFXML(badIndex, `<item objectid="1"/>`)), mesh.ErrMalformedMesh},
		{"component cycle", pkg(model3MFXML(cycle, `<item objectid="5"/>`)), nil},
		{"no meshes", pkg(model3MFXML("", "")), mesh.ErrEmptyMesh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte("definitely not a zip archive")
			if tt.files != nil {
				data = package3MF(t, tt.files)
			}
			_, err := decode3MFBytes(data)
			var fe *FormatError
			if !errors.As(err, &fe) || fe.Format != Format3MF {
				t.Fatalf("Decode3MF() = %v, want *FormatError", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Decode3MF() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode3MFSkipsSupports(t *testing.T) {
	support := strings.Replace(tetra("2"), `type="model"`, `type="support"`, 1)
	m, err := decode3MFBytes(modelPackage3MF(t, model3MFXML(tetra("1")+support, `<item objectid="1"/><item objectid="2"/>`)))
	if err != nil {
		t.Fatal(err)
	}
	if m.TriangleCount() != 4 {
		t.Errorf("TriangleCount() = %d, want the model object only", m.TriangleCount())
	}
}

// TestDecode3MFProductionParts follows a component into a second model
// part, the layout slicers use for multi-object projects.
func TestDecode3MFProductionParts(t *testing.T) {
	root := `<?xml version="1.0" encoding="UTF-8"?>
<model unit="millimeter" xmlns="http://schemas.microsoft.com/3dmanufacturing/core/2015/02"
 xmlns:p="http://schemas.microsoft.com/3dmanufacturing/production/2015/06" requiredextensions="p">
 <resources>
  <object id="1" type="model">
   <components>
    <component p:path="/3D/Objects/part.model" objectid="7" transform="1 0 0 0 1 0 0 0 1 0 3 0"/>
   </components>
  </object>
 </resources>
 <build><item objectid="1"/></build>
</model>`
	data := package3MF(t, map[string]string{
		"[Content_Types].xml":         contentTypes3MF,
		"_rels/.rels":                 rels3MF("/3D/3dmodel.model"),
		"3D/_rels/3dmodel.model.rels": rels3MF("/3D/Objects/part.model"),
		"3D/3dmodel.model":            root,
		"3D/Objects/part.model":       model3MFXML(tetra("7"), ""),
	})
	m, err := decode3MFBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	if m.TriangleCount() != 4 {
		t.Fatalf("TriangleCount() = %d, want 4", m.TriangleCount())
	}
	if got := m.Positions[2]; !got.ApproxEqual(mgl32.Vec3{0, 4, 0}) {
		t.Errorf("vertex 2 = %v, want (0,4,0)", got)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	stl := write("cube.STL", binarySTL("", cubeFacets()))
	obj := write("cube.obj", []byte(cubeOBJ))
	threeMF := write("part.3mf", modelPackage3MF(t, model3MFXML(tetra("1"), `<item objectid="1"/>`)))

	for _, tc := range []struct {
		path      string
		triangles int
	}{{stl, 12}, {obj, 12}, {threeMF, 4}} {
		m, err := Load(tc.path)
		if err != nil {
			t.Fatalf("Load(%s): %v", filepath.Base(tc.path), err)
		}
		if m.TriangleCount() != tc.triangles {
			t.Errorf("Load(%s): %d triangles, want %d", filepath.Base(tc.path), m.TriangleCount(), tc.triangles)
		}
	}

	if _, err := Load(write("model.ply", []byte("ply"))); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ply: %v, want ErrUnsupportedFormat", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.stl")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: %v", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"a.stl":        FormatSTL,
		"dir/B.StL":    FormatSTL,
		"c.obj":        FormatOBJ,
		"d.3MF":        Format3MF,
		"e.step":       FormatUnknown,
		"no_extension": FormatUnknown,
	} {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestDecodeFromReader(t *testing.T) {
	data := modelPackage3MF(t, model3MFXML(tetra("1"), ""))
	m, err := Decode(bytes.NewReader(data), Format3MF)
	if err != nil {
		t.Fatal(err)
	}
	if m.TriangleCount() != 4 {
		t.Errorf("TriangleCount() = %d", m.TriangleCount())
	}
	if _, err := Decode(bytes.NewReader(nil), FormatUnknown); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("unknown format: %v", err)
	}
}
