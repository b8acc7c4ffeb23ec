package gpu

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

// DepthFormat is the format of the depth texture Configure creates.
// Environments targeting the surface must declare the same depth format.
const DepthFormat = wgpu.TextureFormatDepth24Plus

// Surface owns the wgpu instance, adapter, device and swapchain surface for
// one window. It provides the per-frame acquire/submit/present cycle the
// examples drive; the pipeline layer only sees the Context it exposes.
type Surface struct {
	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	format      wgpu.TextureFormat
	presentMode wgpu.PresentMode

	depthView *wgpu.TextureView

	frameTexture *wgpu.Texture
	frameView    *wgpu.TextureView
}

// SurfaceOption configures a Surface during creation.
type SurfaceOption func(*Surface)

// WithPresentMode sets the presentation mode. The default is immediate
// (uncapped); pass wgpu.PresentModeFifo for vsync.
//
// Parameters:
//   - mode: the wgpu present mode to use
//
// Returns:
//   - SurfaceOption: a function that sets the present mode
func WithPresentMode(mode wgpu.PresentMode) SurfaceOption {
	return func(s *Surface) {
		s.presentMode = mode
	}
}

// NewSurface creates the wgpu instance, surface, adapter, device and queue
// for the given native surface descriptor. The calling goroutine is locked
// to its OS thread for the lifetime of the surface.
//
// Parameters:
//   - desc: the platform surface descriptor (from the window layer)
//   - opts: optional configuration
//
// Returns:
//   - *Surface: the initialized surface
//   - error: adapter or device acquisition failure
func NewSurface(desc *wgpu.SurfaceDescriptor, opts ...SurfaceOption) (*Surface, error) {
	runtime.LockOSThread()
	s := &Surface{
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.surface = s.instance.CreateSurface(desc)

	adapter, err := s.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: s.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	s.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	s.device = device
	s.queue = device.GetQueue()

	return s, nil
}

// Configure sizes the swapchain and recreates the depth texture. Must be
// called before the first frame and again after every resize.
//
// Parameters:
//   - width: surface width in pixels
//   - height: surface height in pixels
//
// Returns:
//   - error: depth texture creation failure
func (s *Surface) Configure(width, height int) error {
	capabilities := s.surface.GetCapabilities(s.adapter)
	s.format = capabilities.Formats[0]

	s.surface.Configure(s.adapter, s.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: s.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	depthTexture, err := s.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        DepthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create depth texture: %w", err)
	}
	s.depthView, err = depthTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("create depth view: %w", err)
	}
	return nil
}

// Format returns the swapchain texture format. Valid after Configure.
//
// Returns:
//   - wgpu.TextureFormat: the surface color format
func (s *Surface) Format() wgpu.TextureFormat {
	return s.format
}

// Context returns the device/queue context handed to update operations.
//
// Returns:
//   - *Context: the wrapped device and queue
func (s *Surface) Context() *Context {
	return NewContext(s.device, s.queue)
}

// Frame is one acquired swapchain image plus its command encoder. Begin
// passes on it, then End and Present.
type Frame struct {
	surface *Surface
	encoder *wgpu.CommandEncoder
	pass    *wgpu.RenderPassEncoder
}

// BeginFrame acquires the next swapchain texture and creates the frame's
// command encoder.
//
// Returns:
//   - *Frame: the started frame
//   - error: surface acquisition or encoder creation failure
func (s *Surface) BeginFrame() (*Frame, error) {
	if s.frameTexture != nil {
		return nil, fmt.Errorf("previous frame surface not yet presented")
	}

	texture, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, err
	}
	encoder, err := s.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		texture.Release()
		return nil, err
	}

	s.frameTexture = texture
	s.frameView = view
	return &Frame{surface: s, encoder: encoder}, nil
}

// BeginRenderPass starts a render pass targeting the swapchain view. Depth
// is attached when withDepth is set; the depth buffer is cleared to 1.0.
//
// Parameters:
//   - clear: the color the pass clears to
//   - withDepth: attach the surface depth buffer
//
// Returns:
//   - *wgpu.RenderPassEncoder: the started pass
func (f *Frame) BeginRenderPass(clear wgpu.Color, withDepth bool) *wgpu.RenderPassEncoder {
	desc := &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       f.surface.frameView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: clear,
			},
		},
	}
	if withDepth {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            f.surface.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	f.pass = f.encoder.BeginRenderPass(desc)
	return f.pass
}

// BeginLoadPass starts a render pass that keeps the existing color and depth
// contents, for layering a second pass over the first.
//
// Returns:
//   - *wgpu.RenderPassEncoder: the started pass
func (f *Frame) BeginLoadPass(withDepth bool) *wgpu.RenderPassEncoder {
	desc := &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    f.surface.frameView,
				LoadOp:  wgpu.LoadOpLoad,
				StoreOp: wgpu.StoreOpStore,
			},
		},
	}
	if withDepth {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            f.surface.depthView,
			DepthLoadOp:     wgpu.LoadOpLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	f.pass = f.encoder.BeginRenderPass(desc)
	return f.pass
}

// EndPass ends the current render pass, if one is open.
func (f *Frame) EndPass() {
	if f.pass != nil {
		f.pass.End()
		f.pass = nil
	}
}

// End finishes the encoder and submits the frame's commands.
//
// Returns:
//   - error: encoder finish failure
func (f *Frame) End() error {
	f.EndPass()
	commandBuffer, err := f.encoder.Finish(nil)
	if err != nil {
		f.encoder.Release()
		return err
	}
	f.surface.queue.Submit(commandBuffer)
	commandBuffer.Release()
	f.encoder.Release()
	return nil
}

// Present presents the frame and releases the swapchain texture.
func (s *Surface) Present() {
	if s.frameTexture == nil {
		return
	}
	s.surface.Present()
	s.frameView.Release()
	s.frameTexture.Release()
	s.frameView = nil
	s.frameTexture = nil
}

// RunComputePass records compute commands through fn on a one-off encoder
// and submits them.
//
// Parameters:
//   - fn: records dispatches on the provided pass
//
// Returns:
//   - error: encoder creation or finish failure
func (s *Surface) RunComputePass(fn func(pass *wgpu.ComputePassEncoder)) error {
	encoder, err := s.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	pass := encoder.BeginComputePass(nil)
	fn(pass)
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return err
	}
	s.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()
	return nil
}
