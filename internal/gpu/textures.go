package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

const (
	colorFormat = gputypes.TextureFormatRGBA8Unorm
	depthFormat = gputypes.TextureFormatDepth32Float
)

// renderTargets holds the textures of one render:
//   - MSAA color: N samples, RenderAttachment; absent when N is 1
//   - depth: N samples, Depth32Float, RenderAttachment
//   - resolve: 1 sample, RenderAttachment | TextureBinding | CopySrc
//   - post: 1 sample, RenderAttachment | CopySrc; only with the GPU FXAA pass
//
// Targets are sized once and never reused for other dimensions.
type renderTargets struct {
	msaaTex     hal.Texture
	msaaView    hal.TextureView
	depthTex    hal.Texture
	depthView   hal.TextureView
	resolveTex  hal.Texture
	resolveView hal.TextureView
	postTex     hal.Texture
	postView    hal.TextureView
	width       uint32
	height      uint32
	samples     uint32
}

func createTarget(device hal.Device, label string, w, h, samples uint32,
	format gputypes.TextureFormat, usage gputypes.TextureUsage,
) (hal.Texture, hal.TextureView, error) {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s texture: %w", label, err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: label + "_view",
	})
	if err != nil {
		device.DestroyTexture(tex)
		return nil, nil, fmt.Errorf("create %s view: %w", label, err)
	}
	return tex, view, nil
}

// create allocates every target. On error the targets created so far are
// destroyed.
func (rt *renderTargets) create(device hal.Device, w, h, samples uint32, withPost bool) error {
	rt.width, rt.height, rt.samples = w, h, samples

	var err error
	if samples > 1 {
		rt.msaaTex, rt.msaaView, err = createTarget(device, "mesh_msaa_color", w, h, samples,
			colorFormat, gputypes.TextureUsageRenderAttachment)
		if err != nil {
			rt.destroy(device)
			return err
		}
	}

	rt.depthTex, rt.depthView, err = createTarget(device, "mesh_depth", w, h, samples,
		depthFormat, gputypes.TextureUsageRenderAttachment)
	if err != nil {
		rt.destroy(device)
		return err
	}

	rt.resolveTex, rt.resolveView, err = createTarget(device, "mesh_resolve", w, h, 1, colorFormat,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopySrc)
	if err != nil {
		rt.destroy(device)
		return err
	}

	if withPost {
		rt.postTex, rt.postView, err = createTarget(device, "fxaa_output", w, h, 1, colorFormat,
			gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc)
		if err != nil {
			rt.destroy(device)
			return err
		}
	}
	return nil
}

// colorAttachment renders into the MSAA texture and resolves into the
// resolve target, or renders into the resolve target directly when
// multisampling is off.
func (rt *renderTargets) colorAttachment(clear gputypes.Color) hal.RenderPassColorAttachment {
	a := hal.RenderPassColorAttachment{
		View:       rt.resolveView,
		LoadOp:     gputypes.LoadOpClear,
		StoreOp:    gputypes.StoreOpStore,
		ClearValue: clear,
	}
	if rt.msaaView != nil {
		a.View = rt.msaaView
		a.ResolveTarget = rt.resolveView
	}
	return a
}

func (rt *renderTargets) depthAttachment() *hal.RenderPassDepthStencilAttachment {
	return &hal.RenderPassDepthStencilAttachment{
		View:            rt.depthView,
		DepthLoadOp:     gputypes.LoadOpClear,
		DepthStoreOp:    gputypes.StoreOpDiscard,
		DepthClearValue: 1.0,
	}
}

// destroy releases all textures and views. Safe to call repeatedly.
func (rt *renderTargets) destroy(device hal.Device) {
	pairs := []struct {
		tex  *hal.Texture
		view *hal.TextureView
	}{
		{&rt.postTex, &rt.postView},
		{&rt.resolveTex, &rt.resolveView},
		{&rt.depthTex, &rt.depthView},
		{&rt.msaaTex, &rt.msaaView},
	}
	for _, p := range pairs {
		if *p.view != nil {
			device.DestroyTextureView(*p.view)
			*p.view = nil
		}
		if *p.tex != nil {
			device.DestroyTexture(*p.tex)
			*p.tex = nil
		}
	}
	rt.width, rt.height = 0, 0
}
