package meshthumb

import (
	"errors"

	"github.com/gogpu/meshthumb/internal/gpu"
	"github.com/gogpu/meshthumb/mesh"
)

// Mesh errors.
var (
	// ErrEmptyMesh is returned for a mesh without vertices.
	ErrEmptyMesh = mesh.ErrEmptyMesh

	// ErrMalformedMesh matches every *MalformedMeshError.
	ErrMalformedMesh = mesh.ErrMalformedMesh
)

// MalformedMeshError reports an index list that does not form triangles
// over the vertex list.
type MalformedMeshError = mesh.MalformedMeshError

// Device and pipeline errors.
var (
	// ErrDeviceUnavailable is returned when every backend failed to open a
	// device. The per-backend causes are joined into the error.
	ErrDeviceUnavailable = gpu.ErrDeviceUnavailable

	// ErrShaderCompilation matches every *ShaderCompilationError.
	ErrShaderCompilation = gpu.ErrShaderCompilation

	// ErrReadback matches every *ReadbackError.
	ErrReadback = gpu.ErrReadback

	// ErrBufferTooSmall matches every *BufferTooSmallError.
	ErrBufferTooSmall = gpu.ErrBufferTooSmall

	// ErrInvalidState is returned when the GPU session steps run out of
	// order. Seeing it from Render is a bug in this package.
	ErrInvalidState = gpu.ErrInvalidState
)

type (
	// ShaderCompilationError reports a shader that did not compile or
	// whose uniform layout disagrees with the host encoder.
	ShaderCompilationError = gpu.ShaderCompilationError

	// ReadbackError reports a failed copy, map or a lost device after work
	// was submitted. Nothing is retried.
	ReadbackError = gpu.ReadbackError

	// BufferTooSmallError reports an output buffer shorter than
	// RequiredSize.
	BufferTooSmallError = gpu.BufferTooSmallError
)

var (
	// ErrInvalidOptions is returned for out-of-range Options or
	// RendererOptions.
	ErrInvalidOptions = errors.New("meshthumb: invalid options")

	// ErrRendererBusy is returned when a Renderer is asked to render, or
	// to close, while another render is in flight.
	ErrRendererBusy = errors.New("meshthumb: renderer busy")

	// ErrRendererClosed is returned by Render after Close.
	ErrRendererClosed = errors.New("meshthumb: renderer closed")
)
