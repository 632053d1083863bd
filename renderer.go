package meshthumb

import (
	"errors"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/meshthumb/camera"
	"github.com/gogpu/meshthumb/internal/gpu"
	"github.com/gogpu/meshthumb/mesh"
)

// Renderer renders meshes on a GPU device chosen by its options. A
// Renderer runs one render at a time: a Render that overlaps another
// returns ErrRendererBusy instead of waiting.
type Renderer struct {
	opts rendererOptions
	busy atomic.Bool

	mu     sync.Mutex
	dev    *gpu.Device // cached device, owned
	info   gpucontext.AdapterInfo
	hasDev bool
	closed bool
}

// NewRenderer creates a Renderer. No device is opened until the first
// Render.
func NewRenderer(opts ...RendererOption) *Renderer {
	o := defaultRendererOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Renderer{opts: o}
}

// Render is a one-shot render with the default backends: it opens a
// device, renders m into dst and destroys the device.
func Render(m *mesh.Mesh, opts Options, dst []byte) error {
	return NewRenderer().Render(m, opts, dst)
}

// Render draws m as described by opts and writes the pixels into dst,
// tightly packed, top row first. dst must hold at least
// RequiredSize(opts.Width, opts.Height, opts.Format) bytes; nothing past
// that is written. On error the contents of dst are unspecified.
//
// Options, the buffer size and the mesh are checked in that order before a
// device is opened.
func (r *Renderer) Render(m *mesh.Mesh, opts Options, dst []byte) error {
	if !r.busy.CompareAndSwap(false, true) {
		return ErrRendererBusy
	}
	defer r.busy.Store(false)

	if err := r.opts.err; err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	if need := RequiredSize(opts.Width, opts.Height, opts.Format); len(dst) < need {
		return &BufferTooSmallError{Have: len(dst), Need: need}
	}

	norm, bounds, err := mesh.Normalize(m, mesh.NormalizeOptions{RecalcNormals: opts.RecalcNormals})
	if err != nil {
		return err
	}
	cam, err := camera.Plan(bounds, camera.Params{
		FovDeg:    opts.FovDeg,
		Direction: opts.Direction,
		Margin:    opts.Margin,
		Width:     opts.Width,
		Height:    opts.Height,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	providers, err := r.acquireProviders()
	if err != nil {
		return err
	}

	Logger().Debug("meshthumb: render",
		"width", opts.Width, "height", opts.Height,
		"vertices", norm.VertexCount(), "triangles", norm.TriangleCount(),
		"distance", cam.Distance)

	err = r.render(norm, cam, opts, providers, dst)
	if err != nil && errors.Is(err, hal.ErrDeviceLost) {
		r.dropCachedDevice()
	}
	return err
}

func (r *Renderer) render(m *mesh.Mesh, cam camera.Camera, opts Options, providers []gpu.DeviceProvider, dst []byte) error {
	sess, err := gpu.NewSession(gpu.Config{
		Width:       uint32(opts.Width),
		Height:      uint32(opts.Height),
		SampleCount: uint32(opts.SampleCount),
		Antialias:   opts.Antialias,
		PostProcess: r.opts.post,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	defer sess.Close()

	if err := sess.AcquireDevice(providers); err != nil {
		return err
	}
	r.setInfo(sess.Device().Info)

	if err := sess.UploadGeometry(m); err != nil {
		return err
	}
	// The mesh is already in normalized model space, so modelview is the
	// view matrix alone.
	vu := gpu.VertexUniforms{
		Perspective: cam.Projection(),
		ModelView:   cam.View(),
	}
	l := opts.Lighting
	fu := gpu.FragmentUniforms{
		LightDirection: l.Direction,
		Ambient:        l.Ambient,
		Diffuse:        l.Diffuse,
		Specular:       l.Specular,
		Gamma:          l.Gamma,
	}
	if err := sess.BindUniforms(vu, fu); err != nil {
		return err
	}
	if err := sess.Draw(clearColor(opts.Background)); err != nil {
		return err
	}
	if err := sess.PostProcess(); err != nil {
		return err
	}
	return sess.Readback(dst, opts.Format)
}

// acquireProviders returns the providers for one render. With the device
// cache on, the first call opens a device and later calls borrow it.
func (r *Renderer) acquireProviders() ([]gpu.DeviceProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRendererClosed
	}
	if !r.opts.cache {
		return r.opts.providers, nil
	}
	if r.dev == nil {
		dev, err := gpu.OpenFirst(r.opts.providers)
		if err != nil {
			return nil, err
		}
		r.dev = dev
		Logger().Debug("meshthumb: device cached", "provider", dev.Provider)
	}
	return []gpu.DeviceProvider{gpu.Cached(r.dev)}, nil
}

func (r *Renderer) dropCachedDevice() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dev != nil {
		Logger().Warn("meshthumb: device lost, dropping cached device", "provider", r.dev.Provider)
		r.dev.Release()
		r.dev = nil
	}
}

func (r *Renderer) setInfo(info gpucontext.AdapterInfo) {
	r.mu.Lock()
	r.info, r.hasDev = info, true
	r.mu.Unlock()
}

// AdapterInfo describes the adapter of the most recent render. ok is false
// until a render has opened a device.
func (r *Renderer) AdapterInfo() (info gpucontext.AdapterInfo, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info, r.hasDev
}

// Close releases the cached device, if any. Render fails with
// ErrRendererClosed afterwards. Close returns ErrRendererBusy while a
// render is in flight and is a no-op on a closed Renderer.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy.Load() {
		return ErrRendererBusy
	}
	if r.closed {
		return nil
	}
	r.closed = true
	if r.dev != nil {
		r.dev.Release()
		r.dev = nil
	}
	return nil
}

func clearColor(c color.NRGBA) gputypes.Color {
	return gputypes.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: float64(c.A) / 255,
	}
}
