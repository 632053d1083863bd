package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

type fieldKind uint8

const (
	kindF32 fieldKind = iota
	kindVec2
	kindVec3
	kindMat4
)

func (k fieldKind) String() string {
	switch k {
	case kindF32:
		return "f32"
	case kindVec2:
		return "vec2<f32>"
	case kindVec3:
		return "vec3<f32>"
	case kindMat4:
		return "mat4x4<f32>"
	default:
		return fmt.Sprintf("fieldKind(%d)", uint8(k))
	}
}

func (k fieldKind) components() int {
	switch k {
	case kindVec2:
		return 2
	case kindVec3:
		return 3
	case kindMat4:
		return 16
	default:
		return 1
	}
}

// uniformField is one member of a WGSL uniform struct.
type uniformField struct {
	Name   string
	Offset uint32
	Kind   fieldKind
}

// uniformLayout is the single source of truth for a uniform block: the host
// encoder writes through it and checkShader compares it with the WGSL
// struct the shader declares at the same binding.
type uniformLayout struct {
	Struct  string
	Group   uint32
	Binding uint32
	Size    uint32
	Fields  []uniformField
}

var vertexUniformLayout = uniformLayout{
	Struct:  "VertexUniforms",
	Group:   0,
	Binding: 0,
	Size:    128,
	Fields: []uniformField{
		{"perspective", 0, kindMat4},
		{"modelview", 64, kindMat4},
	},
}

// Each vec3 occupies 16 bytes; gamma sits in the pad slot after
// light_direction.
var fragmentUniformLayout = uniformLayout{
	Struct:  "FragmentUniforms",
	Group:   0,
	Binding: 1,
	Size:    64,
	Fields: []uniformField{
		{"light_direction", 0, kindVec3},
		{"gamma", 12, kindF32},
		{"ambient", 16, kindVec3},
		{"diffuse", 32, kindVec3},
		{"specular", 48, kindVec3},
	},
}

var fxaaUniformLayout = uniformLayout{
	Struct:  "FxaaParams",
	Group:   0,
	Binding: 2,
	Size:    16,
	Fields: []uniformField{
		{"texel", 0, kindVec2},
		{"span_max", 8, kindF32},
		{"reduce_min", 12, kindF32},
	},
}

// uniformWriter encodes field values into a block laid out by a
// uniformLayout. The first error sticks.
type uniformWriter struct {
	layout  *uniformLayout
	buf     []byte
	written map[string]bool
	err     error
}

func (l *uniformLayout) writer() *uniformWriter {
	return &uniformWriter{
		layout:  l,
		buf:     make([]byte, l.Size),
		written: make(map[string]bool, len(l.Fields)),
	}
}

func (w *uniformWriter) put(name string, kind fieldKind, vals ...float32) {
	if w.err != nil {
		return
	}
	var f *uniformField
	for i := range w.layout.Fields {
		if w.layout.Fields[i].Name == name {
			f = &w.layout.Fields[i]
			break
		}
	}
	switch {
	case f == nil:
		w.err = fmt.Errorf("%s has no field %q", w.layout.Struct, name)
		return
	case f.Kind != kind:
		w.err = fmt.Errorf("%s.%s is %v, written as %v", w.layout.Struct, name, f.Kind, kind)
		return
	case len(vals) != kind.components():
		w.err = fmt.Errorf("%s.%s takes %d values, got %d", w.layout.Struct, name, kind.components(), len(vals))
		return
	}
	for i, v := range vals {
		binary.LittleEndian.PutUint32(w.buf[f.Offset+uint32(i)*4:], math.Float32bits(v))
	}
	w.written[name] = true
}

func (w *uniformWriter) f32(name string, v float32)     { w.put(name, kindF32, v) }
func (w *uniformWriter) vec2(name string, x, y float32) { w.put(name, kindVec2, x, y) }
func (w *uniformWriter) vec3(name string, v mgl32.Vec3) { w.put(name, kindVec3, v[:]...) }
func (w *uniformWriter) mat4(name string, m mgl32.Mat4) { w.put(name, kindMat4, m[:]...) }

// bytes returns the encoded block. Every field must have been written.
func (w *uniformWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	for _, f := range w.layout.Fields {
		if !w.written[f.Name] {
			return nil, fmt.Errorf("%s.%s not written", w.layout.Struct, f.Name)
		}
	}
	return w.buf, nil
}

// VertexUniforms feeds the mesh vertex stage. ModelView maps the normalized
// mesh into eye space and must be a rotation plus uniform scale and
// translation, since it also transforms normals.
type VertexUniforms struct {
	Perspective mgl32.Mat4
	ModelView   mgl32.Mat4
}

func (u VertexUniforms) encode() ([]byte, error) {
	w := vertexUniformLayout.writer()
	w.mat4("perspective", u.Perspective)
	w.mat4("modelview", u.ModelView)
	return w.bytes()
}

// FragmentUniforms holds the Blinn-Phong lighting terms. LightDirection is
// in eye space and need not be unit length. Gamma must be positive.
type FragmentUniforms struct {
	LightDirection mgl32.Vec3
	Ambient        mgl32.Vec3
	Diffuse        mgl32.Vec3
	Specular       mgl32.Vec3
	Gamma          float32
}

func (u FragmentUniforms) encode() ([]byte, error) {
	if !(u.Gamma > 0) || math.IsInf(float64(u.Gamma), 0) {
		return nil, fmt.Errorf("gamma %v must be positive", u.Gamma)
	}
	w := fragmentUniformLayout.writer()
	w.vec3("light_direction", u.LightDirection)
	w.f32("gamma", u.Gamma)
	w.vec3("ambient", u.Ambient)
	w.vec3("diffuse", u.Diffuse)
	w.vec3("specular", u.Specular)
	return w.bytes()
}

// fxaaParams fills the FXAA block for a w x h source.
func fxaaParams(w, h uint32) ([]byte, error) {
	wr := fxaaUniformLayout.writer()
	wr.vec2("texel", 1/float32(w), 1/float32(h))
	wr.f32("span_max", fxaaSpanMax)
	wr.f32("reduce_min", fxaaReduceMin)
	return wr.bytes()
}

// checkShader parses, lowers and validates src with naga, then compares
// every layout with the uniform struct declared at its binding. Failures
// are reported as *ShaderCompilationError.
func checkShader(label, src string, layouts ...*uniformLayout) error {
	ast, err := naga.Parse(src)
	if err != nil {
		return &ShaderCompilationError{Label: label, Err: fmt.Errorf("parse: %w", err)}
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return &ShaderCompilationError{Label: label, Err: fmt.Errorf("lower: %w", err)}
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return &ShaderCompilationError{Label: label, Err: fmt.Errorf("validate: %w", err)}
	}
	if len(verrs) > 0 {
		return &ShaderCompilationError{Label: label, Err: fmt.Errorf("validate: %w (and %d more)", verrs[0], len(verrs)-1)}
	}
	for _, l := range layouts {
		if err := l.check(module); err != nil {
			return &ShaderCompilationError{Label: label, Err: err}
		}
	}
	return nil
}

// check compares l with the struct bound at l.Group/l.Binding in module.
func (l *uniformLayout) check(module *ir.Module) error {
	var global *ir.GlobalVariable
	for i := range module.GlobalVariables {
		g := &module.GlobalVariables[i]
		if g.Space == ir.SpaceUniform && g.Binding != nil &&
			g.Binding.Group == l.Group && g.Binding.Binding == l.Binding {
			global = g
			break
		}
	}
	if global == nil {
		return fmt.Errorf("layout %s: no uniform at @group(%d) @binding(%d)", l.Struct, l.Group, l.Binding)
	}

	st, ok := structAt(module, global.Type)
	if !ok {
		return fmt.Errorf("layout %s: uniform %q is not a struct", l.Struct, global.Name)
	}
	if st.Span != l.Size {
		return fmt.Errorf("layout %s: shader size %d, host size %d", l.Struct, st.Span, l.Size)
	}
	if len(st.Members) != len(l.Fields) {
		return fmt.Errorf("layout %s: shader has %d members, host has %d", l.Struct, len(st.Members), len(l.Fields))
	}
	for i, f := range l.Fields {
		m := st.Members[i]
		if m.Name != f.Name {
			return fmt.Errorf("layout %s: member %d is %q in the shader, %q on the host", l.Struct, i, m.Name, f.Name)
		}
		if m.Offset != f.Offset {
			return fmt.Errorf("layout %s.%s: shader offset %d, host offset %d", l.Struct, f.Name, m.Offset, f.Offset)
		}
		if k, ok := kindAt(module, m.Type); !ok || k != f.Kind {
			return fmt.Errorf("layout %s.%s: shader type does not match host %v", l.Struct, f.Name, f.Kind)
		}
	}
	return nil
}

func typeAt(module *ir.Module, h ir.TypeHandle) (ir.TypeInner, bool) {
	if int(h) >= len(module.Types) {
		return nil, false
	}
	return module.Types[h].Inner, true
}

func structAt(module *ir.Module, h ir.TypeHandle) (ir.StructType, bool) {
	inner, ok := typeAt(module, h)
	if !ok {
		return ir.StructType{}, false
	}
	switch t := inner.(type) {
	case ir.StructType:
		return t, true
	case *ir.StructType:
		return *t, true
	}
	return ir.StructType{}, false
}

func isF32(s ir.ScalarType) bool { return s.Kind == ir.ScalarFloat && s.Width == 4 }

func kindAt(module *ir.Module, h ir.TypeHandle) (fieldKind, bool) {
	inner, ok := typeAt(module, h)
	if !ok {
		return 0, false
	}
	switch t := inner.(type) {
	case ir.ScalarType:
		return kindF32, isF32(t)
	case ir.VectorType:
		switch {
		case !isF32(t.Scalar):
			return 0, false
		case t.Size == ir.Vec2:
			return kindVec2, true
		case t.Size == ir.Vec3:
			return kindVec3, true
		}
	case ir.MatrixType:
		return kindMat4, isF32(t.Scalar) && t.Columns == ir.Vec4 && t.Rows == ir.Vec4
	}
	return 0, false
}
