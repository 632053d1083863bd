package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/meshthumb/mesh"
)

// vertexStride is one interleaved vertex: position then normal, 3 x f32
// each.
const vertexStride = 24

// geometry is the uploaded, immutable mesh.
type geometry struct {
	vertices hal.Buffer
	// indices is nil when the mesh was expanded into a vertex stream.
	indices hal.Buffer
	// count is the number of indices, or of vertices when indices is nil.
	count uint32
}

func putVertex(dst []byte, p, n [3]float32) {
	for j := 0; j < 3; j++ {
		binary.LittleEndian.PutUint32(dst[j*4:], math.Float32bits(p[j]))
		binary.LittleEndian.PutUint32(dst[12+j*4:], math.Float32bits(n[j]))
	}
}

// encodeVertices interleaves positions and normals. Normals must be
// parallel to positions.
func encodeVertices(m *mesh.Mesh) []byte {
	buf := make([]byte, len(m.Positions)*vertexStride)
	for i, p := range m.Positions {
		putVertex(buf[i*vertexStride:], p, m.Normals[i])
	}
	return buf
}

// encodeUnindexed writes one interleaved vertex per index, so the mesh can
// be drawn without an index buffer.
func encodeUnindexed(m *mesh.Mesh) []byte {
	buf := make([]byte, len(m.Indices)*vertexStride)
	for i, idx := range m.Indices {
		putVertex(buf[i*vertexStride:], m.Positions[idx], m.Normals[idx])
	}
	return buf
}

func encodeIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

// createAndUploadBuffer creates a buffer sized for data and writes data
// into it.
func createAndUploadBuffer(device hal.Device, queue hal.Queue, label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	if err := queue.WriteBuffer(buf, 0, data); err != nil {
		device.DestroyBuffer(buf)
		return nil, fmt.Errorf("write %s: %w", label, err)
	}
	return buf, nil
}

// uploadGeometry copies m into a vertex and an index buffer. With
// unindexed set the triangles are expanded into a single vertex buffer
// instead. A mesh without triangles gets no buffers and draws nothing.
func uploadGeometry(device hal.Device, queue hal.Queue, m *mesh.Mesh, unindexed bool) (*geometry, error) {
	g := &geometry{count: uint32(len(m.Indices))}
	if g.count == 0 {
		return g, nil
	}
	vdata := encodeVertices(m)
	if unindexed {
		vdata = encodeUnindexed(m)
	}
	var err error
	g.vertices, err = createAndUploadBuffer(device, queue, "mesh_vertices", vdata, gputypes.BufferUsageVertex)
	if err != nil {
		return nil, err
	}
	if !unindexed {
		g.indices, err = createAndUploadBuffer(device, queue, "mesh_indices", encodeIndices(m.Indices), gputypes.BufferUsageIndex)
		if err != nil {
			device.DestroyBuffer(g.vertices)
			return nil, err
		}
	}
	slogger().Debug("gpu: geometry uploaded",
		"vertices", len(m.Positions), "triangles", m.TriangleCount(),
		"vertex_bytes", len(vdata), "indexed", !unindexed)
	return g, nil
}

func (g *geometry) destroy(device hal.Device) {
	if g.indices != nil {
		device.DestroyBuffer(g.indices)
		g.indices = nil
	}
	if g.vertices != nil {
		device.DestroyBuffer(g.vertices)
		g.vertices = nil
	}
}

func meshVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{{
		ArrayStride: vertexStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // position
			{Format: gputypes.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1}, // normal
		},
	}}
}

// meshPipeline is the shaded, depth-tested mesh pipeline together with the
// uniform buffers and bind group of one render.
type meshPipeline struct {
	shader          hal.ShaderModule
	bindLayout      hal.BindGroupLayout
	pipeLayout      hal.PipelineLayout
	pipeline        hal.RenderPipeline
	vertexUniform   hal.Buffer
	fragmentUniform hal.Buffer
	bindGroup       hal.BindGroup
}

// newMeshPipeline builds the pipeline for samples-per-pixel targets and
// binds the encoded uniforms. On error every object created so far is
// destroyed.
func newMeshPipeline(device hal.Device, queue hal.Queue, samples uint32, vu VertexUniforms, fu FragmentUniforms) (*meshPipeline, error) {
	vdata, err := vu.encode()
	if err != nil {
		return nil, fmt.Errorf("encode vertex uniforms: %w", err)
	}
	fdata, err := fu.encode()
	if err != nil {
		return nil, fmt.Errorf("encode fragment uniforms: %w", err)
	}

	p := &meshPipeline{}
	if err := p.build(device, queue, samples, vdata, fdata); err != nil {
		p.destroy(device)
		return nil, err
	}
	return p, nil
}

func (p *meshPipeline) build(device hal.Device, queue hal.Queue, samples uint32, vdata, fdata []byte) error {
	var err error
	p.shader, err = createShader(device, "mesh", meshShaderSource, meshShaderCheck)
	if err != nil {
		return err
	}

	p.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "mesh_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    vertexUniformLayout.Binding,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    fragmentUniformLayout.Binding,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}

	p.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "mesh_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	p.pipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "mesh_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    meshVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    colorFormat,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
			StencilFront:      hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways},
			StencilBack:       hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create mesh pipeline: %w", err)
	}

	p.vertexUniform, err = createAndUploadBuffer(device, queue, "mesh_vertex_uniform", vdata, gputypes.BufferUsageUniform)
	if err != nil {
		return err
	}
	p.fragmentUniform, err = createAndUploadBuffer(device, queue, "mesh_fragment_uniform", fdata, gputypes.BufferUsageUniform)
	if err != nil {
		return err
	}

	p.bindGroup, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "mesh_uniforms",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: vertexUniformLayout.Binding, Resource: gputypes.BufferBinding{
				Buffer: p.vertexUniform.NativeHandle(), Size: uint64(vertexUniformLayout.Size),
			}},
			{Binding: fragmentUniformLayout.Binding, Resource: gputypes.BufferBinding{
				Buffer: p.fragmentUniform.NativeHandle(), Size: uint64(fragmentUniformLayout.Size),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	return nil
}

// record draws g into an open render pass.
func (p *meshPipeline) record(rp hal.RenderPassEncoder, g *geometry, w, h uint32) {
	rp.SetViewport(0, 0, float32(w), float32(h), 0, 1)
	if g.count == 0 {
		return
	}
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, p.bindGroup, nil)
	rp.SetVertexBuffer(0, g.vertices, 0)
	if g.indices == nil {
		rp.Draw(g.count, 1, 0, 0)
		return
	}
	rp.SetIndexBuffer(g.indices, gputypes.IndexFormatUint32, 0)
	rp.DrawIndexed(g.count, 1, 0, 0, 0)
}

func (p *meshPipeline) destroy(device hal.Device) {
	if p.bindGroup != nil {
		device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	if p.fragmentUniform != nil {
		device.DestroyBuffer(p.fragmentUniform)
		p.fragmentUniform = nil
	}
	if p.vertexUniform != nil {
		device.DestroyBuffer(p.vertexUniform)
		p.vertexUniform = nil
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
