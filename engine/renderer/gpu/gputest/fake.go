// Package gputest provides recording fakes for the gpu interfaces. Every
// Create call mints a distinct handle and stores the descriptor it was given,
// so tests can assert what was created, how often, and with what parameters,
// without a real device.
package gputest

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/calder-gfx/calder/engine/renderer/gpu"
)

// Device is a recording fake for gpu.Device. The exported slices hold the
// descriptors of every created object in call order; the Err fields inject
// failures into the matching Create call.
type Device struct {
	ShaderModuleDescs    []*wgpu.ShaderModuleDescriptor
	BindGroupLayoutDescs []*wgpu.BindGroupLayoutDescriptor
	BindGroupDescs       []*wgpu.BindGroupDescriptor
	PipelineLayoutDescs  []*wgpu.PipelineLayoutDescriptor
	RenderPipelineDescs  []*wgpu.RenderPipelineDescriptor
	ComputePipelineDescs []*wgpu.ComputePipelineDescriptor
	BufferDescs          []*wgpu.BufferDescriptor
	TextureDescs         []*wgpu.TextureDescriptor
	SamplerDescs         []*wgpu.SamplerDescriptor

	ShaderModuleErr    error
	RenderPipelineErr  error
	ComputePipelineErr error
	BufferErr          error
}

var _ gpu.Device = &Device{}

// NewDevice creates an empty recording device.
//
// Returns:
//   - *Device: the fake device
func NewDevice() *Device {
	return &Device{}
}

func (d *Device) CreateShaderModule(desc *wgpu.ShaderModuleDescriptor) (*wgpu.ShaderModule, error) {
	if d.ShaderModuleErr != nil {
		return nil, d.ShaderModuleErr
	}
	d.ShaderModuleDescs = append(d.ShaderModuleDescs, desc)
	return &wgpu.ShaderModule{}, nil
}

func (d *Device) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error) {
	d.BindGroupLayoutDescs = append(d.BindGroupLayoutDescs, desc)
	return &wgpu.BindGroupLayout{}, nil
}

func (d *Device) CreateBindGroup(desc *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	d.BindGroupDescs = append(d.BindGroupDescs, desc)
	return &wgpu.BindGroup{}, nil
}

func (d *Device) CreatePipelineLayout(desc *wgpu.PipelineLayoutDescriptor) (*wgpu.PipelineLayout, error) {
	d.PipelineLayoutDescs = append(d.PipelineLayoutDescs, desc)
	return &wgpu.PipelineLayout{}, nil
}

func (d *Device) CreateRenderPipeline(desc *wgpu.RenderPipelineDescriptor) (*wgpu.RenderPipeline, error) {
	if d.RenderPipelineErr != nil {
		return nil, d.RenderPipelineErr
	}
	d.RenderPipelineDescs = append(d.RenderPipelineDescs, desc)
	return &wgpu.RenderPipeline{}, nil
}

func (d *Device) CreateComputePipeline(desc *wgpu.ComputePipelineDescriptor) (*wgpu.ComputePipeline, error) {
	if d.ComputePipelineErr != nil {
		return nil, d.ComputePipelineErr
	}
	d.ComputePipelineDescs = append(d.ComputePipelineDescs, desc)
	return &wgpu.ComputePipeline{}, nil
}

func (d *Device) CreateBuffer(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
	if d.BufferErr != nil {
		return nil, d.BufferErr
	}
	d.BufferDescs = append(d.BufferDescs, desc)
	return &wgpu.Buffer{}, nil
}

func (d *Device) CreateTexture(desc *wgpu.TextureDescriptor) (*wgpu.Texture, error) {
	d.TextureDescs = append(d.TextureDescs, desc)
	return &wgpu.Texture{}, nil
}

func (d *Device) CreateTextureView(tex *wgpu.Texture, desc *wgpu.TextureViewDescriptor) (*wgpu.TextureView, error) {
	return &wgpu.TextureView{}, nil
}

func (d *Device) CreateSampler(desc *wgpu.SamplerDescriptor) (*wgpu.Sampler, error) {
	d.SamplerDescs = append(d.SamplerDescs, desc)
	return &wgpu.Sampler{}, nil
}

// BufferWrite is one recorded Queue.WriteBuffer call.
type BufferWrite struct {
	Buffer *wgpu.Buffer
	Offset uint64
	Data   []byte
}

// TextureWrite is one recorded Queue.WriteTexture call.
type TextureWrite struct {
	Dst    *wgpu.ImageCopyTexture
	Data   []byte
	Layout *wgpu.TextureDataLayout
	Size   *wgpu.Extent3D
}

// Queue is a recording fake for gpu.Queue.
type Queue struct {
	BufferWrites  []BufferWrite
	TextureWrites []TextureWrite
}

var _ gpu.Queue = &Queue{}

func (q *Queue) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) {
	copied := make([]byte, len(data))
	copy(copied, data)
	q.BufferWrites = append(q.BufferWrites, BufferWrite{Buffer: buf, Offset: offset, Data: copied})
}

func (q *Queue) WriteTexture(dst *wgpu.ImageCopyTexture, data []byte, layout *wgpu.TextureDataLayout, size *wgpu.Extent3D) {
	copied := make([]byte, len(data))
	copy(copied, data)
	q.TextureWrites = append(q.TextureWrites, TextureWrite{Dst: dst, Data: copied, Layout: layout, Size: size})
}

// NewContext bundles a fresh fake device and queue into a gpu.Context.
//
// Returns:
//   - *gpu.Context: context wired to the fakes
//   - *Device: the fake device for assertions
//   - *Queue: the fake queue for assertions
func NewContext() (*gpu.Context, *Device, *Queue) {
	device := NewDevice()
	queue := &Queue{}
	return &gpu.Context{Device: device, Queue: queue}, device, queue
}

// RenderPass is a recording fake for gpu.RenderPass. Ops holds one formatted
// line per recorded command; the typed slices keep handle identity for
// pointer assertions.
type RenderPass struct {
	Ops           []string
	Pipelines     []*wgpu.RenderPipeline
	BindGroups    []*wgpu.BindGroup
	VertexBuffers []*wgpu.Buffer
	IndexBuffers  []*wgpu.Buffer
}

var _ gpu.RenderPass = &RenderPass{}

func (p *RenderPass) SetPipeline(pipeline *wgpu.RenderPipeline) {
	p.Pipelines = append(p.Pipelines, pipeline)
	p.Ops = append(p.Ops, "set_pipeline")
}

func (p *RenderPass) SetBindGroup(groupIndex uint32, group *wgpu.BindGroup, dynamicOffsets []uint32) {
	p.BindGroups = append(p.BindGroups, group)
	p.Ops = append(p.Ops, fmt.Sprintf("set_bind_group %d", groupIndex))
}

func (p *RenderPass) SetVertexBuffer(slot uint32, buffer *wgpu.Buffer, offset, size uint64) {
	p.VertexBuffers = append(p.VertexBuffers, buffer)
	p.Ops = append(p.Ops, fmt.Sprintf("set_vertex_buffer %d offset=%d size=%d", slot, offset, size))
}

func (p *RenderPass) SetIndexBuffer(buffer *wgpu.Buffer, format wgpu.IndexFormat, offset, size uint64) {
	p.IndexBuffers = append(p.IndexBuffers, buffer)
	p.Ops = append(p.Ops, fmt.Sprintf("set_index_buffer format=%d offset=%d size=%d", format, offset, size))
}

func (p *RenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.Ops = append(p.Ops, fmt.Sprintf("draw %d %d %d %d", vertexCount, instanceCount, firstVertex, firstInstance))
}

func (p *RenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.Ops = append(p.Ops, fmt.Sprintf("draw_indexed %d %d %d %d %d", indexCount, instanceCount, firstIndex, baseVertex, firstInstance))
}

// ComputePass is a recording fake for gpu.ComputePass.
type ComputePass struct {
	Ops        []string
	Pipelines  []*wgpu.ComputePipeline
	BindGroups []*wgpu.BindGroup
}

var _ gpu.ComputePass = &ComputePass{}

func (p *ComputePass) SetPipeline(pipeline *wgpu.ComputePipeline) {
	p.Pipelines = append(p.Pipelines, pipeline)
	p.Ops = append(p.Ops, "set_pipeline")
}

func (p *ComputePass) SetBindGroup(groupIndex uint32, group *wgpu.BindGroup, dynamicOffsets []uint32) {
	p.BindGroups = append(p.BindGroups, group)
	p.Ops = append(p.Ops, fmt.Sprintf("set_bind_group %d", groupIndex))
}

func (p *ComputePass) DispatchWorkgroups(workgroupCountX, workgroupCountY, workgroupCountZ uint32) {
	p.Ops = append(p.Ops, fmt.Sprintf("dispatch %d %d %d", workgroupCountX, workgroupCountY, workgroupCountZ))
}
