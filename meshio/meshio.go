// Package meshio decodes STL, OBJ and 3MF files into meshes for the
// renderer.
//
// Decoders return the geometry as stored. Facet normals are kept where the
// file has them; a zero normal marks one the renderer must synthesize.
package meshio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/meshthumb/mesh"
)

// Format identifies a mesh file format.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatSTL
	FormatOBJ
	Format3MF
)

func (f Format) String() string {
	switch f {
	case FormatSTL:
		return "stl"
	case FormatOBJ:
		return "obj"
	case Format3MF:
		return "3mf"
	default:
		return "unknown"
	}
}

// ErrUnsupportedFormat is returned for a file whose extension names no
// known format.
var ErrUnsupportedFormat = errors.New("meshio: unsupported format")

// FormatError reports a file that could not be decoded.
type FormatError struct {
	Format Format

	// Line is the 1-based line of a text format, or 0.
	Line int

	Err error
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("meshio: %s line %d: %v", e.Format, e.Line, e.Err)
	}
	return fmt.Sprintf("meshio: %s: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// FormatFromPath picks the format from the file extension, ignoring case.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl":
		return FormatSTL
	case ".obj":
		return FormatOBJ
	case ".3mf":
		return Format3MF
	default:
		return FormatUnknown
	}
}

// Load reads the mesh at path. The path "-" reads an STL from standard
// input.
func Load(path string) (*mesh.Mesh, error) {
	if path == "-" {
		return Decode(os.Stdin, FormatSTL)
	}
	format := FormatFromPath(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, format)
}

// Decode reads a mesh of the given format from r. STL and 3MF need random
// access, so r is read to the end first unless it is an io.ReaderAt with a
// known size.
func Decode(r io.Reader, format Format) (*mesh.Mesh, error) {
	switch format {
	case FormatSTL:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return DecodeSTL(data)
	case FormatOBJ:
		return DecodeOBJ(r)
	case Format3MF:
		if f, ok := r.(*os.File); ok {
			st, err := f.Stat()
			if err != nil {
				return nil, err
			}
			return Decode3MF(f, st.Size())
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return Decode3MF(bytes.NewReader(data), int64(len(data)))
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
}

// checkNotEmpty turns a decoded mesh without triangles into ErrEmptyMesh.
func checkNotEmpty(f Format, m *mesh.Mesh) (*mesh.Mesh, error) {
	if len(m.Positions) == 0 || len(m.Indices) == 0 {
		return nil, &FormatError{Format: f, Err: mesh.ErrEmptyMesh}
	}
	return m, nil
}
