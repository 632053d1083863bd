package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/meshthumb/mesh"
)

// State is the position of a Session in its render sequence.
type State uint8

const (
	StateUninitialized State = iota
	StateDeviceAcquired
	StateResourcesBound
	StateRendered
	StateReadbackReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateDeviceAcquired:
		return "DeviceAcquired"
	case StateResourcesBound:
		return "ResourcesBound"
	case StateRendered:
		return "Rendered"
	case StateReadbackReady:
		return "ReadbackReady"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// PostProcess selects where the FXAA filter runs.
type PostProcess uint8

const (
	// PostProcessAuto runs FXAA on the GPU, or on the host when the
	// adapter is a CPU rasterizer.
	PostProcessAuto PostProcess = iota
	// PostProcessGPU always uses the GPU pass.
	PostProcessGPU
	// PostProcessHost always filters the read-back pixels on the host.
	PostProcessHost
)

func (p PostProcess) String() string {
	switch p {
	case PostProcessAuto:
		return "auto"
	case PostProcessGPU:
		return "gpu"
	case PostProcessHost:
		return "host"
	default:
		return fmt.Sprintf("PostProcess(%d)", uint8(p))
	}
}

// Config fixes the shape of one render.
type Config struct {
	Width, Height uint32

	// SampleCount is 1 or 4.
	SampleCount uint32

	// Antialias enables the FXAA post-pass.
	Antialias bool

	PostProcess PostProcess
}

func (c Config) validate() error {
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("gpu: size %dx%d", c.Width, c.Height)
	}
	if c.SampleCount != 1 && c.SampleCount != 4 {
		return fmt.Errorf("gpu: sample count %d, want 1 or 4", c.SampleCount)
	}
	if c.PostProcess > PostProcessHost {
		return fmt.Errorf("gpu: unknown post-process mode %d", c.PostProcess)
	}
	return nil
}

// Session renders one image. It is not safe for concurrent use and is not
// reused: create a new Session per render and Close it when done.
type Session struct {
	cfg   Config
	state State

	dev      *Device
	targets  renderTargets
	geom     *geometry
	pipe     *meshPipeline
	fxaa     *fxaaPass
	hostFXAA bool
	postDone bool
	closed   bool
}

// NewSession validates cfg and returns a session in StateUninitialized.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Session{cfg: cfg}, nil
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Device returns the acquired device, or nil before AcquireDevice.
func (s *Session) Device() *Device { return s.dev }

// HostFXAA reports whether FXAA runs on the read-back pixels instead of on
// the GPU. Only meaningful after BindUniforms.
func (s *Session) HostFXAA() bool { return s.hostFXAA }

func (s *Session) expect(op string, want State) error {
	if s.closed {
		return fmt.Errorf("%w: %s on closed session", ErrInvalidState, op)
	}
	if s.state != want {
		return stateError(op, s.state, want)
	}
	return nil
}

// AcquireDevice opens the first device any of providers yields.
func (s *Session) AcquireDevice(providers []DeviceProvider) error {
	if err := s.expect("AcquireDevice", StateUninitialized); err != nil {
		return err
	}
	dev, err := OpenFirst(providers)
	if err != nil {
		return err
	}
	s.dev = dev
	s.state = StateDeviceAcquired
	return nil
}

// UploadGeometry copies m into GPU buffers. m must be valid and carry one
// normal per vertex, as mesh.Normalize returns it.
func (s *Session) UploadGeometry(m *mesh.Mesh) error {
	if err := s.expect("UploadGeometry", StateDeviceAcquired); err != nil {
		return err
	}
	if s.geom != nil {
		return fmt.Errorf("%w: geometry already uploaded", ErrInvalidState)
	}
	if err := mesh.Validate(m); err != nil {
		return err
	}
	if len(m.Normals) != len(m.Positions) {
		return &mesh.MalformedMeshError{
			Triangle:    -1,
			VertexCount: len(m.Positions),
			Reason:      "normals missing",
		}
	}
	g, err := uploadGeometry(s.dev.Device, s.dev.Queue, m, s.dev.Unindexed)
	if err != nil {
		return err
	}
	s.geom = g
	return nil
}

// BindUniforms creates the render targets, the mesh pipeline with its
// uniforms and, when FXAA runs on the GPU, the post pass.
func (s *Session) BindUniforms(vu VertexUniforms, fu FragmentUniforms) error {
	if err := s.expect("BindUniforms", StateDeviceAcquired); err != nil {
		return err
	}
	if s.geom == nil {
		return fmt.Errorf("%w: BindUniforms before UploadGeometry", ErrInvalidState)
	}

	s.hostFXAA = s.cfg.Antialias && s.useHostFXAA()
	gpuFXAA := s.cfg.Antialias && !s.hostFXAA
	device, queue := s.dev.Device, s.dev.Queue

	if err := s.targets.create(device, s.cfg.Width, s.cfg.Height, s.cfg.SampleCount, gpuFXAA); err != nil {
		return err
	}
	pipe, err := newMeshPipeline(device, queue, s.cfg.SampleCount, vu, fu)
	if err != nil {
		return err
	}
	s.pipe = pipe

	if gpuFXAA {
		pass, err := newFXAAPass(device, queue, s.targets.resolveView, s.cfg.Width, s.cfg.Height)
		if err != nil {
			return err
		}
		s.fxaa = pass
	}

	slogger().Debug("gpu: resources bound",
		"width", s.cfg.Width, "height", s.cfg.Height,
		"samples", s.cfg.SampleCount, "antialias", s.cfg.Antialias, "host_fxaa", s.hostFXAA)
	s.state = StateResourcesBound
	return nil
}

func (s *Session) useHostFXAA() bool {
	switch s.cfg.PostProcess {
	case PostProcessHost:
		return true
	case PostProcessGPU:
		return false
	}
	if s.dev.IsSoftware() {
		slogger().Info("gpu: software adapter, running FXAA on the host", "adapter", s.dev.Info.Name)
		return true
	}
	return false
}

// Draw clears the targets to clear and draws the mesh once, resolving the
// multisampled image. It returns after the GPU has finished.
func (s *Session) Draw(clear gputypes.Color) error {
	if err := s.expect("Draw", StateResourcesBound); err != nil {
		return err
	}
	err := submitAndWait(s.dev, "mesh", func(enc hal.CommandEncoder) {
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label:                  "mesh_pass",
			ColorAttachments:       []hal.RenderPassColorAttachment{s.targets.colorAttachment(clear)},
			DepthStencilAttachment: s.targets.depthAttachment(),
		})
		s.pipe.record(rp, s.geom, s.cfg.Width, s.cfg.Height)
		rp.End()
	})
	if err != nil {
		return err
	}
	s.state = StateRendered
	return nil
}

// PostProcess runs the GPU FXAA pass when it is enabled. Host FXAA and
// disabled FXAA need no GPU work, so the call only marks the step done.
func (s *Session) PostProcess() error {
	if err := s.expect("PostProcess", StateRendered); err != nil {
		return err
	}
	if s.postDone {
		return fmt.Errorf("%w: post-process already ran", ErrInvalidState)
	}
	if s.fxaa != nil {
		err := submitAndWait(s.dev, "fxaa", func(enc hal.CommandEncoder) {
			enc.TransitionTextures([]hal.TextureBarrier{{
				Texture: s.targets.resolveTex,
				Usage: hal.TextureUsageTransition{
					OldUsage: gputypes.TextureUsageRenderAttachment,
					NewUsage: gputypes.TextureUsageTextureBinding,
				},
			}})
			s.fxaa.record(enc, s.targets.postView, s.cfg.Width, s.cfg.Height)
		})
		if err != nil {
			return err
		}
	}
	s.postDone = true
	return nil
}

// Readback copies the final image into dst, tightly packed in format f.
// PostProcess runs first if it has not yet. dst must hold at least
// RequiredSize bytes; only that prefix is written.
func (s *Session) Readback(dst []byte, f PixelFormat) error {
	if err := s.expect("Readback", StateRendered); err != nil {
		return err
	}
	w, h := int(s.cfg.Width), int(s.cfg.Height)
	need := RequiredSize(w, h, f)
	if len(dst) < need {
		return &BufferTooSmallError{Have: len(dst), Need: need}
	}
	if !s.postDone {
		if err := s.PostProcess(); err != nil {
			return err
		}
	}

	final := s.targets.resolveTex
	if s.fxaa != nil {
		final = s.targets.postTex
	}
	if err := readTexture(s.dev, final, s.cfg.Width, s.cfg.Height, dst[:need], f); err != nil {
		return err
	}
	if s.hostFXAA {
		if err := ApplyFXAA(dst[:need], w, h, f.BytesPerPixel()); err != nil {
			return err
		}
	}
	s.state = StateReadbackReady
	return nil
}

// Close destroys every object the session created and releases the device
// when the session owns it. Close is idempotent and valid in every state.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.dev == nil {
		return
	}
	device := s.dev.Device
	if device != nil {
		if s.fxaa != nil {
			s.fxaa.destroy(device)
			s.fxaa = nil
		}
		if s.pipe != nil {
			s.pipe.destroy(device)
			s.pipe = nil
		}
		if s.geom != nil {
			s.geom.destroy(device)
			s.geom = nil
		}
		s.targets.destroy(device)
	}
	s.dev.Release()
	s.state = StateUninitialized
}

// submitAndWait records one command buffer with record, submits it and
// blocks until the device is idle. Device loss is reported as a
// *ReadbackError.
func submitAndWait(dev *Device, label string, record func(enc hal.CommandEncoder)) error {
	device := dev.Device
	enc, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_encoder"})
	if err != nil {
		return fmt.Errorf("create %s encoder: %w", label, err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin %s encoding: %w", label, err)
	}
	record(enc)
	cmd, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("end %s encoding: %w", label, err)
	}
	defer device.FreeCommandBuffer(cmd)

	if _, err := dev.Queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return submitError("submit", err)
	}
	if err := device.WaitIdle(); err != nil {
		return submitError("wait", err)
	}
	return nil
}

func submitError(op string, err error) error {
	if errors.Is(err, hal.ErrDeviceLost) {
		return &ReadbackError{Op: op, Err: err}
	}
	return fmt.Errorf("gpu: %s: %w", op, err)
}
