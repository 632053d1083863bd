// Package gpu renders a normalized mesh offscreen through the gogpu HAL.
//
// It owns everything that touches the device: acquiring an adapter through
// an ordered list of providers, uploading geometry, building the mesh and
// FXAA pipelines from the embedded WGSL, drawing into a multisampled target
// and reading the final texture back into a caller buffer.
//
// # Render session
//
// A Session walks a fixed sequence of states:
//
//	Uninitialized -> DeviceAcquired -> ResourcesBound -> Rendered -> ReadbackReady
//
// Each call is only valid in the state before it; anything else returns
// ErrInvalidState. Close releases every object the session created, on
// success and on every error path. The device itself is released only when
// the session owns it.
//
// # Uniform layout
//
// The byte layout of each uniform block is declared once in a field table.
// The CPU encoder writes through the table and the WGSL struct offsets are
// checked against it with naga before a pipeline is created, so a drift
// between shader and host code fails loudly instead of shading garbage.
//
// # Synchronization
//
// Every submission is followed by Device.WaitIdle. The package never
// returns with GPU work in flight.
package gpu
