package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

const (
	// fxaaSpanMax bounds the edge search to one texel, keeping every
	// sample inside the 3x3 neighbourhood of the output pixel.
	fxaaSpanMax = 1.0

	fxaaReduceMin = 1.0 / 128.0

	// fxaaReduceMul scales the average corner luma into the direction
	// reduction term.
	fxaaReduceMul = 1.0 / 8.0
)

// fxaaPass is a full-screen triangle that reads the resolve texture and
// writes the anti-aliased image into the post target.
type fxaaPass struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	sampler    hal.Sampler
	uniform    hal.Buffer
	bindGroup  hal.BindGroup
}

func newFXAAPass(device hal.Device, queue hal.Queue, source hal.TextureView, w, h uint32) (*fxaaPass, error) {
	params, err := fxaaParams(w, h)
	if err != nil {
		return nil, fmt.Errorf("encode fxaa params: %w", err)
	}
	p := &fxaaPass{}
	if err := p.build(device, queue, source, params); err != nil {
		p.destroy(device)
		return nil, err
	}
	return p, nil
}

func (p *fxaaPass) build(device hal.Device, queue hal.Queue, source hal.TextureView, params []byte) error {
	var err error
	p.shader, err = createShader(device, "fxaa", fxaaShaderSource, fxaaShaderCheck)
	if err != nil {
		return err
	}

	p.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "fxaa_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
			{
				Binding:    fxaaUniformLayout.Binding,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create fxaa bind group layout: %w", err)
	}

	p.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "fxaa_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create fxaa pipeline layout: %w", err)
	}

	p.pipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "fxaa_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    colorFormat,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create fxaa pipeline: %w", err)
	}

	p.sampler, err = device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "fxaa_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("create fxaa sampler: %w", err)
	}

	p.uniform, err = createAndUploadBuffer(device, queue, "fxaa_params", params, gputypes.BufferUsageUniform)
	if err != nil {
		return err
	}

	p.bindGroup, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "fxaa_bind_group",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: source.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: p.sampler.NativeHandle()}},
			{Binding: fxaaUniformLayout.Binding, Resource: gputypes.BufferBinding{
				Buffer: p.uniform.NativeHandle(), Size: uint64(fxaaUniformLayout.Size),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("create fxaa bind group: %w", err)
	}
	return nil
}

// record encodes the pass. The source texture must already be readable as
// a sampled texture.
func (p *fxaaPass) record(enc hal.CommandEncoder, target hal.TextureView, w, h uint32) {
	rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "fxaa_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	rp.SetViewport(0, 0, float32(w), float32(h), 0, 1)
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, p.bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()
}

func (p *fxaaPass) destroy(device hal.Device) {
	if p.bindGroup != nil {
		device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	if p.uniform != nil {
		device.DestroyBuffer(p.uniform)
		p.uniform = nil
	}
	if p.sampler != nil {
		device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
