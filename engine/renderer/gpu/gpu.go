// Package gpu narrows the WebGPU device surface to the operations the
// pipeline layer needs. Descriptor and handle types come straight from
// github.com/cogentcore/webgpu/wgpu; the interfaces exist so tests can swap
// in recording fakes and so command recording is decoupled from the encoder
// that produced the pass.
package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Device is the subset of GPU device operations used to build pipelines and
// upload resources.
type Device interface {
	// CreateShaderModule compiles WGSL source into a shader module.
	//
	// Parameters:
	//   - desc: module descriptor with label and WGSL code
	//
	// Returns:
	//   - *wgpu.ShaderModule: the compiled module
	//   - error: compilation or validation failure
	CreateShaderModule(desc *wgpu.ShaderModuleDescriptor) (*wgpu.ShaderModule, error)

	// CreateBindGroupLayout creates a bind group layout from its entries.
	//
	// Parameters:
	//   - desc: layout descriptor with sorted entries
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the created layout
	//   - error: validation failure
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error)

	// CreateBindGroup binds concrete resources against a layout.
	//
	// Parameters:
	//   - desc: bind group descriptor referencing the layout and entries
	//
	// Returns:
	//   - *wgpu.BindGroup: the created bind group
	//   - error: validation failure
	CreateBindGroup(desc *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error)

	// CreatePipelineLayout combines bind group layouts into a pipeline layout.
	//
	// Parameters:
	//   - desc: pipeline layout descriptor
	//
	// Returns:
	//   - *wgpu.PipelineLayout: the created layout
	//   - error: validation failure
	CreatePipelineLayout(desc *wgpu.PipelineLayoutDescriptor) (*wgpu.PipelineLayout, error)

	// CreateRenderPipeline creates a render pipeline.
	//
	// Parameters:
	//   - desc: full render pipeline descriptor
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the created pipeline
	//   - error: validation failure
	CreateRenderPipeline(desc *wgpu.RenderPipelineDescriptor) (*wgpu.RenderPipeline, error)

	// CreateComputePipeline creates a compute pipeline.
	//
	// Parameters:
	//   - desc: full compute pipeline descriptor
	//
	// Returns:
	//   - *wgpu.ComputePipeline: the created pipeline
	//   - error: validation failure
	CreateComputePipeline(desc *wgpu.ComputePipelineDescriptor) (*wgpu.ComputePipeline, error)

	// CreateBuffer allocates a GPU buffer.
	//
	// Parameters:
	//   - desc: buffer descriptor with size and usage flags
	//
	// Returns:
	//   - *wgpu.Buffer: the allocated buffer
	//   - error: allocation failure
	CreateBuffer(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error)

	// CreateTexture allocates a GPU texture.
	//
	// Parameters:
	//   - desc: texture descriptor with size, format and usage
	//
	// Returns:
	//   - *wgpu.Texture: the allocated texture
	//   - error: allocation failure
	CreateTexture(desc *wgpu.TextureDescriptor) (*wgpu.Texture, error)

	// CreateTextureView creates a view over a texture. A nil descriptor
	// requests the default full view.
	//
	// Parameters:
	//   - tex: the texture to view
	//   - desc: optional view descriptor
	//
	// Returns:
	//   - *wgpu.TextureView: the created view
	//   - error: validation failure
	CreateTextureView(tex *wgpu.Texture, desc *wgpu.TextureViewDescriptor) (*wgpu.TextureView, error)

	// CreateSampler creates a texture sampler.
	//
	// Parameters:
	//   - desc: sampler descriptor with filtering and addressing modes
	//
	// Returns:
	//   - *wgpu.Sampler: the created sampler
	//   - error: validation failure
	CreateSampler(desc *wgpu.SamplerDescriptor) (*wgpu.Sampler, error)
}

// Queue is the subset of queue operations used to push resource contents to
// the device.
type Queue interface {
	// WriteBuffer copies data into a buffer at the given byte offset.
	//
	// Parameters:
	//   - buf: destination buffer
	//   - offset: byte offset into the buffer
	//   - data: bytes to copy
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte)

	// WriteTexture copies pixel data into a texture region.
	//
	// Parameters:
	//   - dst: destination texture and origin
	//   - data: pixel bytes matching layout
	//   - layout: row pitch of the source data
	//   - size: extent of the region to write
	WriteTexture(dst *wgpu.ImageCopyTexture, data []byte, layout *wgpu.TextureDataLayout, size *wgpu.Extent3D)
}

// RenderPass records draw commands. *wgpu.RenderPassEncoder satisfies this
// interface directly.
type RenderPass interface {
	SetPipeline(pipeline *wgpu.RenderPipeline)
	SetBindGroup(groupIndex uint32, group *wgpu.BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buffer *wgpu.Buffer, offset, size uint64)
	SetIndexBuffer(buffer *wgpu.Buffer, format wgpu.IndexFormat, offset, size uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
}

// ComputePass records dispatch commands. *wgpu.ComputePassEncoder satisfies
// this interface directly.
type ComputePass interface {
	SetPipeline(pipeline *wgpu.ComputePipeline)
	SetBindGroup(groupIndex uint32, group *wgpu.BindGroup, dynamicOffsets []uint32)
	DispatchWorkgroups(workgroupCountX, workgroupCountY, workgroupCountZ uint32)
}

// Context bundles the device and queue handed to update operations.
type Context struct {
	Device Device
	Queue  Queue
}
