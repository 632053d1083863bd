package gpu

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable is returned when no provider yields a usable
	// device. The concrete provider failures are joined into the wrapped
	// error.
	ErrDeviceUnavailable = errors.New("gpu: no usable device")

	// ErrShaderCompilation is matched by every *ShaderCompilationError.
	ErrShaderCompilation = errors.New("gpu: shader compilation failed")

	// ErrReadback is matched by every *ReadbackError.
	ErrReadback = errors.New("gpu: readback failed")

	// ErrBufferTooSmall is matched by every *BufferTooSmallError.
	ErrBufferTooSmall = errors.New("gpu: output buffer too small")

	// ErrInvalidState is returned when a Session method is called out of
	// order.
	ErrInvalidState = errors.New("gpu: invalid session state")
)

// ShaderCompilationError reports a WGSL module that failed to parse,
// validate or compile, or whose uniform layout disagrees with the host.
type ShaderCompilationError struct {
	// Label names the shader module, e.g. "mesh" or "fxaa".
	Label string
	Err   error
}

func (e *ShaderCompilationError) Error() string {
	return fmt.Sprintf("gpu: shader %q: %v", e.Label, e.Err)
}

func (e *ShaderCompilationError) Unwrap() error { return e.Err }

func (e *ShaderCompilationError) Is(target error) bool { return target == ErrShaderCompilation }

// ReadbackError reports a failure after work was submitted: a map or copy
// that failed, or a lost device. The device is not retried.
type ReadbackError struct {
	// Op is the step that failed ("submit", "wait", "copy", "map",
	// "unmap").
	Op  string
	Err error
}

func (e *ReadbackError) Error() string {
	return fmt.Sprintf("gpu: readback %s: %v", e.Op, e.Err)
}

func (e *ReadbackError) Unwrap() error { return e.Err }

func (e *ReadbackError) Is(target error) bool { return target == ErrReadback }

// BufferTooSmallError reports a caller buffer shorter than the image.
type BufferTooSmallError struct {
	Have, Need int
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("gpu: output buffer holds %d bytes, need %d", e.Have, e.Need)
}

func (e *BufferTooSmallError) Is(target error) bool { return target == ErrBufferTooSmall }

func stateError(op string, have, want State) error {
	return fmt.Errorf("%w: %s needs %v, session is %v", ErrInvalidState, op, want, have)
}
