package gpu

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/allbackends" // vulkan, metal, dx12 and gles per platform
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/gogpu/wgpu/hal/software"
)

// DeviceProvider is one strategy for obtaining a device. Providers are
// tried in order until one opens a device.
type DeviceProvider interface {
	Name() string
	Open() (*Device, error)
}

// DefaultBackendOrder is the provider preference used when the caller does
// not supply one.
var DefaultBackendOrder = []string{"vulkan", "metal", "dx12", "gl", "software"}

var registry = gpucontext.NewRegistry[DeviceProvider](
	gpucontext.WithPriority(DefaultBackendOrder...),
)

func init() {
	for name, variant := range map[string]gputypes.Backend{
		"vulkan": gputypes.BackendVulkan,
		"metal":  gputypes.BackendMetal,
		"dx12":   gputypes.BackendDX12,
		"gl":     gputypes.BackendGL,
	} {
		p := HALProvider{Label: name, Variant: variant}
		registry.Register(name, func() DeviceProvider { return p })
	}
	// software and noop both report BackendEmpty, so they are bound to
	// their API values instead of going through hal.GetBackend.
	registry.Register("software", func() DeviceProvider {
		return HALProvider{Label: "software", Backend: software.API{}}
	})
	registry.Register("noop", func() DeviceProvider {
		return HALProvider{Label: "noop", Backend: noop.API{}}
	})
}

// DefaultProviders returns the registered providers in DefaultBackendOrder.
func DefaultProviders() []DeviceProvider {
	out := make([]DeviceProvider, 0, len(DefaultBackendOrder))
	for _, name := range DefaultBackendOrder {
		if registry.Has(name) {
			out = append(out, registry.Get(name))
		}
	}
	return out
}

// ProvidersByName resolves a list of provider names such as "vulkan" or
// "software". Unknown names are an error.
func ProvidersByName(names ...string) ([]DeviceProvider, error) {
	out := make([]DeviceProvider, 0, len(names))
	for _, name := range names {
		if !registry.Has(name) {
			known := registry.Available()
			slices.Sort(known)
			return nil, fmt.Errorf("gpu: unknown backend %q (known: %v)", name, known)
		}
		out = append(out, registry.Get(name))
	}
	return out, nil
}

// BestProviderName returns the highest-priority registered provider name.
func BestProviderName() string { return registry.BestName() }

// OpenFirst tries providers in order and returns the first device opened.
// Every failure is logged. When none succeeds the error wraps
// ErrDeviceUnavailable and the joined causes.
func OpenFirst(providers []DeviceProvider) (*Device, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", ErrDeviceUnavailable)
	}
	var errs []error
	for _, p := range providers {
		dev, err := p.Open()
		if err != nil {
			slogger().Warn("gpu: provider failed", "provider", p.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if dev.Provider == "" {
			dev.Provider = p.Name()
		}
		slogger().Info("gpu: device acquired",
			"provider", dev.Provider,
			"adapter", dev.Info.Name,
			"type", dev.Info.Type.String(),
		)
		return dev, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, errors.Join(errs...))
}

// HALProvider opens a device on a HAL backend. When Backend is nil the
// backend registered for Variant is used.
type HALProvider struct {
	// Label names the provider in logs and errors.
	Label string

	Variant gputypes.Backend
	Backend hal.Backend
}

// Name implements DeviceProvider.
func (p HALProvider) Name() string {
	switch {
	case p.Label != "":
		return p.Label
	case p.Backend != nil:
		return p.Backend.Variant().String()
	default:
		return p.Variant.String()
	}
}

// Open implements DeviceProvider. The returned device owns its instance;
// Device.Release destroys both. A backend that panics while opening, such
// as GL without a context on a headless host, is reported as an error so
// the next provider can be tried.
func (p HALProvider) Open() (dev *Device, err error) {
	var instance hal.Instance
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if instance != nil {
			destroyInstance(instance)
		}
		dev, err = nil, fmt.Errorf("backend %s panicked: %v", p.Name(), r)
	}()

	backend := p.Backend
	if backend == nil {
		b, ok := hal.GetBackend(p.Variant)
		if !ok {
			return nil, fmt.Errorf("backend %s: %w", p.Variant, hal.ErrBackendNotFound)
		}
		backend = b
	}

	instance, err = backend.CreateInstance(&hal.InstanceDescriptor{
		Backends: gputypes.Backends(1 << backend.Variant()),
	})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	for i := range adapters {
		slogger().Debug("gpu: adapter", "provider", p.Name(), "index", i, "info", adapterSummary(adapters[i].Info))
	}
	exposed := selectAdapter(adapters)
	if exposed == nil {
		instance.Destroy()
		return nil, errors.New("no adapters")
	}

	open, err := exposed.Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open adapter %q: %w", exposed.Info.Name, err)
	}

	return &Device{
		Device: open.Device,
		Queue:  open.Queue,
		Info: gpucontext.AdapterInfo{
			Name: exposed.Info.Name,
			Type: adapterType(exposed.Info.DeviceType),
		},
		Provider:  p.Name(),
		CopyPitch: copyPitch(exposed.Capabilities),
		Unindexed: needsUnindexed(open.Device),
		release: func() {
			open.Device.Destroy()
			instance.Destroy()
		},
	}, nil
}

// destroyInstance destroys an instance left behind by a failed open. The
// instance may be in a broken state, so a second panic is swallowed.
func destroyInstance(instance hal.Instance) {
	defer func() { _ = recover() }()
	instance.Destroy()
}

// halHandles is implemented by device providers that can hand out their
// underlying HAL objects.
type halHandles interface {
	HalDevice() any
	HalQueue() any
}

// SharedProvider borrows the device of an external gpucontext provider,
// typically a windowed application that already owns one. The device is
// never destroyed by this package.
type SharedProvider struct {
	Provider gpucontext.DeviceProvider
}

// Name implements DeviceProvider.
func (SharedProvider) Name() string { return "shared" }

// Open implements DeviceProvider.
func (p SharedProvider) Open() (*Device, error) {
	if p.Provider == nil {
		return nil, errors.New("nil shared provider")
	}
	hp, ok := p.Provider.(halHandles)
	if !ok {
		return nil, fmt.Errorf("%T does not expose HAL handles", p.Provider)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.New("shared HalDevice is not a hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("shared HalQueue is not a hal.Queue")
	}
	dev := NewDevice(device, queue, p.Provider.AdapterInfo(), nil)
	dev.Provider = "shared"
	return dev, nil
}

// cachedProvider hands out a device that somebody else keeps alive across
// renders.
type cachedProvider struct {
	dev *Device
}

// Cached returns a provider that yields dev without transferring
// ownership: sessions built on it never release dev.
func Cached(dev *Device) DeviceProvider { return cachedProvider{dev: dev} }

func (c cachedProvider) Name() string {
	if c.dev == nil {
		return "cached"
	}
	return "cached:" + c.dev.Provider
}

func (c cachedProvider) Open() (*Device, error) {
	if c.dev == nil || c.dev.Device == nil {
		return nil, errors.New("cached device released")
	}
	borrowed := *c.dev
	borrowed.release = nil
	return &borrowed, nil
}
