// Package meshthumb renders a still thumbnail of a triangle mesh on the GPU.
//
// # Overview
//
// A render runs five stages in order:
//
//	mesh.Normalize  center the model and scale its longest axis to 2
//	camera.Plan     place the eye so the bounding sphere fits the view
//	GPU draw        one indexed draw into a multisampled color+depth target
//	FXAA            optional screen-space edge smoothing
//	readback        copy to the host, stripping GPU row padding
//
// The pixels land in a caller-owned buffer, tightly packed, top row first.
//
// # Quick Start
//
//	m, err := meshio.Load("part.stl")
//	if err != nil {
//		return err
//	}
//	opts := meshthumb.DefaultOptions()
//	opts.Width, opts.Height = 256, 256
//	buf := make([]byte, meshthumb.RequiredSize(256, 256, opts.Format))
//	if err := meshthumb.Render(m, opts, buf); err != nil {
//		return err
//	}
//
// RenderImage does the same and wraps the result in an *image.NRGBA.
//
// # Devices
//
// Render opens a device, renders and destroys everything it created. A
// Renderer can keep its device between calls with WithDeviceCache, and can
// borrow the device of a host application through WithSharedDevice. Backends
// are tried in the order vulkan, metal, dx12, gl, software unless
// WithBackendNames or WithProviders says otherwise.
//
// # Errors
//
// Every failure is one of the sentinels in errors.go, possibly wrapped in a
// typed error carrying details. Preconditions are checked before any device
// is opened: options first, then the output buffer size, then the mesh.
//
// # Logging
//
// The package is silent by default. SetLogger enables log/slog output for
// the package and its GPU layer.
package meshthumb
