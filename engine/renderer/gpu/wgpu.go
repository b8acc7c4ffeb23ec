package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuDevice adapts *wgpu.Device to the Device interface.
type wgpuDevice struct {
	device *wgpu.Device
}

var _ Device = &wgpuDevice{}

// WrapDevice adapts a wgpu device to the Device interface.
//
// Parameters:
//   - device: the wgpu device to wrap
//
// Returns:
//   - Device: the adapted device
func WrapDevice(device *wgpu.Device) Device {
	return &wgpuDevice{device: device}
}

func (d *wgpuDevice) CreateShaderModule(desc *wgpu.ShaderModuleDescriptor) (*wgpu.ShaderModule, error) {
	return d.device.CreateShaderModule(desc)
}

func (d *wgpuDevice) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error) {
	return d.device.CreateBindGroupLayout(desc)
}

func (d *wgpuDevice) CreateBindGroup(desc *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	return d.device.CreateBindGroup(desc)
}

func (d *wgpuDevice) CreatePipelineLayout(desc *wgpu.PipelineLayoutDescriptor) (*wgpu.PipelineLayout, error) {
	return d.device.CreatePipelineLayout(desc)
}

func (d *wgpuDevice) CreateRenderPipeline(desc *wgpu.RenderPipelineDescriptor) (*wgpu.RenderPipeline, error) {
	return d.device.CreateRenderPipeline(desc)
}

func (d *wgpuDevice) CreateComputePipeline(desc *wgpu.ComputePipelineDescriptor) (*wgpu.ComputePipeline, error) {
	return d.device.CreateComputePipeline(desc)
}

func (d *wgpuDevice) CreateBuffer(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
	return d.device.CreateBuffer(desc)
}

func (d *wgpuDevice) CreateTexture(desc *wgpu.TextureDescriptor) (*wgpu.Texture, error) {
	return d.device.CreateTexture(desc)
}

func (d *wgpuDevice) CreateTextureView(tex *wgpu.Texture, desc *wgpu.TextureViewDescriptor) (*wgpu.TextureView, error) {
	return tex.CreateView(desc)
}

func (d *wgpuDevice) CreateSampler(desc *wgpu.SamplerDescriptor) (*wgpu.Sampler, error) {
	return d.device.CreateSampler(desc)
}

// wgpuQueue adapts *wgpu.Queue to the Queue interface.
type wgpuQueue struct {
	queue *wgpu.Queue
}

var _ Queue = &wgpuQueue{}

// WrapQueue adapts a wgpu queue to the Queue interface.
//
// Parameters:
//   - queue: the wgpu queue to wrap
//
// Returns:
//   - Queue: the adapted queue
func WrapQueue(queue *wgpu.Queue) Queue {
	return &wgpuQueue{queue: queue}
}

func (q *wgpuQueue) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) {
	q.queue.WriteBuffer(buf, offset, data)
}

func (q *wgpuQueue) WriteTexture(dst *wgpu.ImageCopyTexture, data []byte, layout *wgpu.TextureDataLayout, size *wgpu.Extent3D) {
	q.queue.WriteTexture(dst, data, layout, size)
}

// NewContext wraps a wgpu device and queue into an update context.
//
// Parameters:
//   - device: the wgpu device
//   - queue: the wgpu queue
//
// Returns:
//   - *Context: the context handed to update operations
func NewContext(device *wgpu.Device, queue *wgpu.Queue) *Context {
	return &Context{
		Device: WrapDevice(device),
		Queue:  WrapQueue(queue),
	}
}
