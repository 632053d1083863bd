package gpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/software"
)

// defaultCopyPitch is the WebGPU bytes-per-row alignment for
// texture-to-buffer copies, used when an adapter reports none.
const defaultCopyPitch = 256

// Device is an opened HAL device together with what the render session
// needs to know about the adapter behind it.
type Device struct {
	Device hal.Device
	Queue  hal.Queue

	// Info describes the adapter. Type is AdapterTypeSoftware for CPU
	// rasterizers.
	Info gpucontext.AdapterInfo

	// Provider is the name of the provider that opened the device.
	Provider string

	// CopyPitch is the row alignment, in bytes, for texture-to-buffer
	// copies.
	CopyPitch uint32

	// Unindexed makes sessions expand meshes into a plain vertex stream
	// and draw without an index buffer. The pure-Go software rasterizer
	// ignores indexed draws.
	Unindexed bool

	release func()
}

// IsSoftware reports whether the device rasterizes on the CPU.
func (d *Device) IsSoftware() bool {
	return d.Info.Type == gpucontext.AdapterTypeSoftware
}

// NewDevice wraps a device opened outside this package. release, when not
// nil, is called by the first Release; a nil release leaves the device to
// its owner.
func NewDevice(device hal.Device, queue hal.Queue, info gpucontext.AdapterInfo, release func()) *Device {
	return &Device{
		Device:    device,
		Queue:     queue,
		Info:      info,
		CopyPitch: defaultCopyPitch,
		Unindexed: needsUnindexed(device),
		release:   release,
	}
}

// needsUnindexed reports whether device can only draw vertex streams.
func needsUnindexed(device hal.Device) bool {
	_, sw := device.(*software.Device)
	return sw
}

// Release destroys the device and its instance if the device was opened by
// a provider that owns it. Shared devices are left alone. Release is
// idempotent.
func (d *Device) Release() {
	if d == nil || d.release == nil {
		return
	}
	release := d.release
	d.release = nil
	release()
	d.Device, d.Queue = nil, nil
}

// adapterType maps the HAL device type onto the coarse gpucontext
// classification.
func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// selectAdapter prefers a discrete GPU, then an integrated one, then
// whatever comes first.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	if len(adapters) == 0 {
		return nil
	}
	for _, want := range []gputypes.DeviceType{
		gputypes.DeviceTypeDiscreteGPU,
		gputypes.DeviceTypeIntegratedGPU,
	} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// copyPitch returns the adapter's copy pitch alignment, or the WebGPU
// default when the adapter reports none or an unusable value.
func copyPitch(caps hal.Capabilities) uint32 {
	p := caps.AlignmentsMask.BufferCopyPitch
	if p == 0 || p > 1<<16 || p&(p-1) != 0 {
		return defaultCopyPitch
	}
	return uint32(p)
}

// adapterSummary formats adapter details for logging.
func adapterSummary(info gputypes.AdapterInfo) string {
	s := fmt.Sprintf("%s (%s, %s)", info.Name, info.DeviceType, info.Backend)
	if info.Driver != "" {
		s += " driver " + info.Driver
	}
	if info.DriverInfo != "" {
		s += " " + info.DriverInfo
	}
	return s
}
