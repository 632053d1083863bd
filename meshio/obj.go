package meshio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/meshthumb/mesh"
)

// objCorner is a face corner: a position index and a normal index, -1
// when the corner has no normal.
type objCorner struct {
	v, n int
}

// DecodeOBJ decodes a Wavefront OBJ file. All objects and groups are
// merged into one mesh. Polygons are fan-triangulated, and every distinct
// position/normal pair becomes one vertex. Texture coordinates, materials,
// lines and points are ignored.
func DecodeOBJ(r io.Reader) (*mesh.Mesh, error) {
	var (
		positions []mgl32.Vec3
		normals   []mgl32.Vec3
		m         = &mesh.Mesh{}
		vertexOf  = map[objCorner]uint32{}
		anyNormal bool
		line      int
		corners   []uint32
	)
	fail := func(err error) error {
		return &FormatError{Format: FormatOBJ, Line: line, Err: err}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "v", "vn":
			if len(fields) < 4 {
				return nil, fail(fmt.Errorf("%s needs three coordinates", fields[0]))
			}
			v, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, fail(err)
			}
			if fields[0] == "v" {
				positions = append(positions, v)
			} else {
				normals = append(normals, v)
			}

		case "f":
			if len(fields) < 4 {
				return nil, fail(errors.New("face needs at least three corners"))
			}
			corners = corners[:0]
			for _, ref := range fields[1:] {
				c, err := parseCorner(ref, len(positions), len(normals))
				if err != nil {
					return nil, fail(err)
				}
				idx, ok := vertexOf[c]
				if !ok {
					idx = uint32(len(m.Positions))
					vertexOf[c] = idx
					m.Positions = append(m.Positions, positions[c.v])
					n := mgl32.Vec3{}
					if c.n >= 0 {
						n = normals[c.n]
						anyNormal = true
					}
					m.Normals = append(m.Normals, n)
				}
				corners = append(corners, idx)
			}
			for i := 1; i+1 < len(corners); i++ {
				m.Indices = append(m.Indices, corners[0], corners[i], corners[i+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &FormatError{Format: FormatOBJ, Line: line, Err: err}
	}
	if !anyNormal {
		m.Normals = nil
	}
	return checkNotEmpty(FormatOBJ, m)
}

// parseCorner parses v, v/vt, v//vn or v/vt/vn. Indices are 1-based;
// negative ones count back from the last element defined so far.
func parseCorner(ref string, nv, nn int) (objCorner, error) {
	parts := strings.Split(ref, "/")
	if len(parts) > 3 {
		return objCorner{}, fmt.Errorf("bad face corner %q", ref)
	}
	v, err := objIndex(parts[0], nv)
	if err != nil {
		return objCorner{}, fmt.Errorf("vertex of %q: %w", ref, err)
	}
	c := objCorner{v: v, n: -1}
	if len(parts) == 3 && parts[2] != "" {
		n, err := objIndex(parts[2], nn)
		if err != nil {
			return objCorner{}, fmt.Errorf("normal of %q: %w", ref, err)
		}
		c.n = n
	}
	return c, nil
}

func objIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case i > 0:
		i--
	case i < 0:
		i += count
	default:
		return 0, errors.New("index 0")
	}
	if i < 0 || i >= count {
		return 0, fmt.Errorf("index out of range (%d defined)", count)
	}
	return i, nil
}

func parseVec3(fields []string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	for i, s := range fields[:3] {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(f)
	}
	return v, nil
}
