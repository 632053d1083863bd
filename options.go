package meshthumb

import (
	"fmt"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/meshthumb/camera"
	"github.com/gogpu/meshthumb/internal/gpu"
)

// MaxSize is the largest accepted width or height, the WebGPU default
// limit for 2D textures.
const MaxSize = 8192

// PixelFormat selects the layout of the output buffer.
type PixelFormat = gpu.PixelFormat

const (
	// FormatRGBA is 4 bytes per pixel, straight alpha.
	FormatRGBA = gpu.FormatRGBA
	// FormatRGB is 3 bytes per pixel; alpha is dropped.
	FormatRGB = gpu.FormatRGB
)

// RequiredSize returns the exact output buffer length for a w x h image.
func RequiredSize(w, h int, f PixelFormat) int {
	return gpu.RequiredSize(w, h, f)
}

// Lighting is the fixed directional light and the Blinn-Phong material.
// Direction is in eye space and points from the surface towards the light.
type Lighting struct {
	Direction mgl32.Vec3
	Ambient   mgl32.Vec3
	Diffuse   mgl32.Vec3
	Specular  mgl32.Vec3

	// Gamma is the output correction exponent; the shader raises the lit
	// color to 1/Gamma. Use 1 for no correction.
	Gamma float32
}

// DefaultLighting returns a light from the upper left and a blue material.
func DefaultLighting() Lighting {
	return Lighting{
		Direction: mgl32.Vec3{-1.1, 0.4, 1.0},
		Ambient:   mgl32.Vec3{0, 0.13, 0.26},
		Diffuse:   mgl32.Vec3{0.38, 0.63, 1.0},
		Specular:  mgl32.Vec3{1, 1, 1},
		Gamma:     2.2,
	}
}

// Options describe one render.
type Options struct {
	Width, Height int

	// FovDeg is the vertical field of view in degrees, in (0, 180).
	FovDeg float32

	// Direction points from the model towards the eye. Zero means the
	// default oblique view (2, -4, 2).
	Direction mgl32.Vec3

	// Margin scales the bounding sphere before framing; >= 1.
	Margin float32

	Format PixelFormat

	// Antialias enables the FXAA post-pass.
	Antialias bool

	// SampleCount is the MSAA sample count, 1 or 4.
	SampleCount int

	// Background is the clear color. Pixels not covered by the mesh keep
	// it exactly.
	Background color.NRGBA

	// RecalcNormals ignores the mesh's normals and computes smooth ones.
	RecalcNormals bool

	Lighting Lighting
}

// DefaultOptions returns a 1024x1024 antialiased RGBA render with a
// transparent background.
func DefaultOptions() Options {
	return Options{
		Width:       1024,
		Height:      1024,
		FovDeg:      camera.DefaultFovDeg,
		Direction:   camera.DefaultDirection,
		Margin:      camera.DefaultMargin,
		Format:      FormatRGBA,
		Antialias:   true,
		SampleCount: 4,
		Lighting:    DefaultLighting(),
	}
}

// Validate reports ErrInvalidOptions for any out-of-range field. Render
// calls it first; callers can use it to reject options before allocating
// the destination buffer.
func (o *Options) Validate() error {
	if o.Width <= 0 || o.Height <= 0 || o.Width > MaxSize || o.Height > MaxSize {
		return fmt.Errorf("%w: size %dx%d outside 1..%d", ErrInvalidOptions, o.Width, o.Height, MaxSize)
	}
	if !(o.FovDeg > 0 && o.FovDeg < 180) {
		return fmt.Errorf("%w: field of view %v", ErrInvalidOptions, o.FovDeg)
	}
	if o.Margin != 0 && !(o.Margin >= 1) {
		return fmt.Errorf("%w: margin %v", ErrInvalidOptions, o.Margin)
	}
	if o.Format != FormatRGBA && o.Format != FormatRGB {
		return fmt.Errorf("%w: pixel format %v", ErrInvalidOptions, o.Format)
	}
	if o.SampleCount != 1 && o.SampleCount != 4 {
		return fmt.Errorf("%w: sample count %d, want 1 or 4", ErrInvalidOptions, o.SampleCount)
	}
	if g := o.Lighting.Gamma; !(g > 0) || math.IsInf(float64(g), 0) {
		return fmt.Errorf("%w: gamma %v", ErrInvalidOptions, g)
	}
	if !finite(o.Direction) || !finite(o.Lighting.Direction) {
		return fmt.Errorf("%w: non-finite direction", ErrInvalidOptions)
	}
	if o.Lighting.Direction.Len() == 0 {
		return fmt.Errorf("%w: zero light direction", ErrInvalidOptions)
	}
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

// RendererOption configures a Renderer during creation.
//
// Example:
//
//	r := meshthumb.NewRenderer(
//		meshthumb.WithBackendNames("vulkan", "software"),
//		meshthumb.WithDeviceCache(true),
//	)
//	defer r.Close()
type RendererOption func(*rendererOptions)

type rendererOptions struct {
	providers []gpu.DeviceProvider
	err       error
	cache     bool
	post      gpu.PostProcess
}

func defaultRendererOptions() rendererOptions {
	return rendererOptions{
		providers: gpu.DefaultProviders(),
		post:      gpu.PostProcessAuto,
	}
}

// DeviceProvider is one strategy for obtaining a device. Implement it to
// hand the Renderer devices opened elsewhere; see NewDevice.
type DeviceProvider = gpu.DeviceProvider

// Device is an opened HAL device as returned by a DeviceProvider.
type Device = gpu.Device

// HALProvider opens a device on a HAL backend. It is the provider behind
// WithHALBackend and WithBackendNames.
type HALProvider = gpu.HALProvider

// NewDevice wraps a HAL device and queue for a DeviceProvider. release is
// called once when the Renderer is done with the device; pass nil to keep
// ownership.
func NewDevice(device hal.Device, queue hal.Queue, info gpucontext.AdapterInfo, release func()) *Device {
	return gpu.NewDevice(device, queue, info, release)
}

// WithProviders replaces the backend preference list with providers,
// tried in order.
func WithProviders(providers ...DeviceProvider) RendererOption {
	return func(o *rendererOptions) {
		o.providers = providers
	}
}

// WithBackendNames replaces the backend preference list with the named
// backends: vulkan, metal, dx12, gl, software or noop. An unknown name
// makes every Render fail with ErrInvalidOptions.
func WithBackendNames(names ...string) RendererOption {
	return func(o *rendererOptions) {
		ps, err := gpu.ProvidersByName(names...)
		if err != nil {
			o.err = fmt.Errorf("%w: %w", ErrInvalidOptions, err)
			return
		}
		o.providers = ps
	}
}

// WithHALBackend renders on backend only. name labels it in logs.
func WithHALBackend(name string, backend hal.Backend) RendererOption {
	return func(o *rendererOptions) {
		o.providers = []gpu.DeviceProvider{gpu.HALProvider{Label: name, Backend: backend}}
	}
}

// WithSharedDevice renders on the device of p, which must expose its HAL
// device and queue through HalDevice and HalQueue. The device is borrowed:
// the Renderer never destroys it, and the caller must not use it
// concurrently with a render.
func WithSharedDevice(p gpucontext.DeviceProvider) RendererOption {
	return func(o *rendererOptions) {
		o.providers = []gpu.DeviceProvider{gpu.SharedProvider{Provider: p}}
	}
}

// WithDeviceCache keeps the opened device between renders instead of
// opening and destroying one per call. Close releases it.
func WithDeviceCache(enabled bool) RendererOption {
	return func(o *rendererOptions) {
		o.cache = enabled
	}
}

// PostProcess selects where FXAA runs.
type PostProcess = gpu.PostProcess

const (
	// PostProcessAuto filters on the GPU, or on the host for CPU adapters.
	PostProcessAuto = gpu.PostProcessAuto
	// PostProcessGPU always filters on the GPU.
	PostProcessGPU = gpu.PostProcessGPU
	// PostProcessHost always filters the read-back pixels on the host.
	PostProcessHost = gpu.PostProcessHost
)

// WithPostProcess forces where FXAA runs. It has no effect on renders with
// Antialias off.
func WithPostProcess(mode PostProcess) RendererOption {
	return func(o *rendererOptions) {
		o.post = mode
	}
}
