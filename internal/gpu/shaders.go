package gpu

import (
	_ "embed"
	"errors"
	"sync"

	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/mesh.wgsl
var meshShaderSource string

//go:embed shaders/fxaa.wgsl
var fxaaShaderSource string

// The embedded sources never change, so each is checked once per process.
var (
	meshShaderCheck = sync.OnceValue(func() error {
		return checkShader("mesh", meshShaderSource, &vertexUniformLayout, &fragmentUniformLayout)
	})
	fxaaShaderCheck = sync.OnceValue(func() error {
		return checkShader("fxaa", fxaaShaderSource, &fxaaUniformLayout)
	})
)

// createShader runs check and then hands src to the device. A driver-side
// rejection is reported as *ShaderCompilationError as well.
func createShader(device hal.Device, label, src string, check func() error) (hal.ShaderModule, error) {
	if src == "" {
		return nil, &ShaderCompilationError{Label: label, Err: errors.New("empty source")}
	}
	if err := check(); err != nil {
		return nil, err
	}
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_shader",
		Source: hal.ShaderSource{WGSL: src},
	})
	if err != nil {
		return nil, &ShaderCompilationError{Label: label, Err: err}
	}
	return module, nil
}
