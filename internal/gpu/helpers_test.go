package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice opens a device on the noop backend.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

var errInjected = errors.New("injected failure")

// countingDevice tracks live GPU objects by kind and can fail the creation
// of one kind.
type countingDevice struct {
	hal.Device
	live     map[string]int
	created  map[string]int
	failKind string
}

func newCountingDevice(d hal.Device) *countingDevice {
	return &countingDevice{Device: d, live: map[string]int{}, created: map[string]int{}}
}

func (c *countingDevice) create(kind string) error {
	if kind == c.failKind {
		return errInjected
	}
	c.live[kind]++
	c.created[kind]++
	return nil
}

func (c *countingDevice) destroy(kind string) { c.live[kind]-- }

// leaks returns the kinds with objects still alive.
func (c *countingDevice) leaks() map[string]int {
	out := map[string]int{}
	for k, n := range c.live {
		if n != 0 {
			out[k] = n
		}
	}
	return out
}

func (c *countingDevice) CreateBuffer(d *hal.BufferDescriptor) (hal.Buffer, error) {
	if err := c.create("buffer"); err != nil {
		return nil, err
	}
	return c.Device.CreateBuffer(d)
}

func (c *countingDevice) DestroyBuffer(b hal.Buffer) { c.destroy("buffer"); c.Device.DestroyBuffer(b) }

func (c *countingDevice) CreateTexture(d *hal.TextureDescriptor) (hal.Texture, error) {
	if err := c.create("texture"); err != nil {
		return nil, err
	}
	return c.Device.CreateTexture(d)
}

func (c *countingDevice) DestroyTexture(t hal.Texture) {
	c.destroy("texture")
	c.Device.DestroyTexture(t)
}

func (c *countingDevice) CreateTextureView(t hal.Texture, d *hal.TextureViewDescriptor) (hal.TextureView, error) {
	if err := c.create("view"); err != nil {
		return nil, err
	}
	return c.Device.CreateTextureView(t, d)
}

func (c *countingDevice) DestroyTextureView(v hal.TextureView) {
	c.destroy("view")
	c.Device.DestroyTextureView(v)
}

func (c *countingDevice) CreateSampler(d *hal.SamplerDescriptor) (hal.Sampler, error) {
	if err := c.create("sampler"); err != nil {
		return nil, err
	}
	return c.Device.CreateSampler(d)
}

func (c *countingDevice) DestroySampler(s hal.Sampler) {
	c.destroy("sampler")
	c.Device.DestroySampler(s)
}

func (c *countingDevice) CreateBindGroupLayout(d *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error) {
	if err := c.create("bind_group_layout"); err != nil {
		return nil, err
	}
	return c.Device.CreateBindGroupLayout(d)
}

func (c *countingDevice) DestroyBindGroupLayout(l hal.BindGroupLayout) {
	c.destroy("bind_group_layout")
	c.Device.DestroyBindGroupLayout(l)
}

func (c *countingDevice) CreateBindGroup(d *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	if err := c.create("bind_group"); err != nil {
		return nil, err
	}
	return c.Device.CreateBindGroup(d)
}

func (c *countingDevice) DestroyBindGroup(g hal.BindGroup) {
	c.destroy("bind_group")
	c.Device.DestroyBindGroup(g)
}

func (c *countingDevice) CreatePipelineLayout(d *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	if err := c.create("pipeline_layout"); err != nil {
		return nil, err
	}
	return c.Device.CreatePipelineLayout(d)
}

func (c *countingDevice) DestroyPipelineLayout(l hal.PipelineLayout) {
	c.destroy("pipeline_layout")
	c.Device.DestroyPipelineLayout(l)
}

func (c *countingDevice) CreateShaderModule(d *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	if err := c.create("shader"); err != nil {
		return nil, err
	}
	return c.Device.CreateShaderModule(d)
}

func (c *countingDevice) DestroyShaderModule(m hal.ShaderModule) {
	c.destroy("shader")
	c.Device.DestroyShaderModule(m)
}

func (c *countingDevice) CreateRenderPipeline(d *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	if err := c.create("pipeline"); err != nil {
		return nil, err
	}
	return c.Device.CreateRenderPipeline(d)
}

func (c *countingDevice) DestroyRenderPipeline(p hal.RenderPipeline) {
	c.destroy("pipeline")
	c.Device.DestroyRenderPipeline(p)
}

// testProvider hands out a prepared device or a fixed error.
type testProvider struct {
	name     string
	dev      *Device
	err      error
	opened   int
	released *int
}

func (p *testProvider) Name() string { return p.name }

func (p *testProvider) Open() (*Device, error) {
	p.opened++
	if p.err != nil {
		return nil, p.err
	}
	d := *p.dev
	if p.released != nil {
		released := p.released
		d.release = func() { *released++ }
	}
	return &d, nil
}

// countingProvider wraps a fresh noop device in a countingDevice.
func countingProvider(t *testing.T, info gpucontext.AdapterInfo) (*testProvider, *countingDevice, *int) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	counting := newCountingDevice(device)
	released := new(int)
	return &testProvider{
		name: "counting",
		dev: &Device{
			Device:    counting,
			Queue:     queue,
			Info:      info,
			CopyPitch: defaultCopyPitch,
		},
		released: released,
	}, counting, released
}
