package meshthumb_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/meshthumb"
	"github.com/gogpu/meshthumb/mesh"
)

// appProvider opens its own noop devices, the way an application that
// manages its GPU objects would.
type appProvider struct {
	opened, released int
}

func (p *appProvider) Name() string { return "app" }

func (p *appProvider) Open() (*meshthumb.Device, error) {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	p.opened++
	info := gpucontext.AdapterInfo{Name: "app adapter", Type: gpucontext.AdapterTypeIntegrated}
	return meshthumb.NewDevice(open.Device, open.Queue, info, func() {
		p.released++
		open.Device.Destroy()
		instance.Destroy()
	}), nil
}

func TestRenderWithExternalProvider(t *testing.T) {
	p := &appProvider{}
	var _ meshthumb.DeviceProvider = p

	r := meshthumb.NewRenderer(meshthumb.WithProviders(p))
	defer r.Close()

	tri := &mesh.Mesh{
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 2},
	}
	opts := meshthumb.DefaultOptions()
	opts.Width, opts.Height = 16, 16
	dst := make([]byte, meshthumb.RequiredSize(16, 16, opts.Format))
	for i := 0; i < 2; i++ {
		if err := r.Render(tri, opts, dst); err != nil {
			t.Fatalf("Render %d: %v", i, err)
		}
	}
	if p.opened != 2 || p.released != 2 {
		t.Errorf("opened %d, released %d; want 2 and 2", p.opened, p.released)
	}
	info, ok := r.AdapterInfo()
	if !ok || info.Name != "app adapter" {
		t.Errorf("AdapterInfo() = %+v, %v", info, ok)
	}
}

func TestHALProviderAlias(t *testing.T) {
	r := meshthumb.NewRenderer(meshthumb.WithProviders(meshthumb.HALProvider{Label: "noop", Backend: noop.API{}}))
	defer r.Close()
	opts := meshthumb.DefaultOptions()
	opts.Width, opts.Height = 8, 8
	tri := &mesh.Mesh{
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 2},
	}
	if err := r.Render(tri, opts, make([]byte, meshthumb.RequiredSize(8, 8, opts.Format))); err != nil {
		t.Fatal(err)
	}
}
