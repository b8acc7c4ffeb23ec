package resource

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/calder-gfx/calder/common"
	"github.com/calder-gfx/calder/engine/renderer/gpu"
)

// Texture is CPU-held pixel data with a lazily created GPU texture.
type Texture struct {
	label  string
	size   wgpu.Extent3D
	format wgpu.TextureFormat
	usage  wgpu.TextureUsage

	pixels      []byte
	bytesPerRow uint32

	rev    uint64
	synced uint64
	gpu    *wgpu.Texture
}

// NewTexture creates a 2D texture without initial pixel data. Use SetPixels
// to stage content, or leave it empty for storage targets written on the GPU.
//
// Parameters:
//   - label: debug label for the GPU object
//   - width: width in texels
//   - height: height in texels
//   - format: texel format
//
// Returns:
//   - *Texture: the texture, pending GPU creation
func NewTexture(label string, width, height uint32, format wgpu.TextureFormat) *Texture {
	return &Texture{
		label:  label,
		size:   wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		format: format,
		rev:    1,
	}
}

// FromImage creates an RGBA8 texture from a decoded image. Non-RGBA images
// are converted.
//
// Parameters:
//   - label: debug label for the GPU object
//   - img: the decoded image
//
// Returns:
//   - *Texture: the texture with staged pixels
func FromImage(label string, img image.Image) *Texture {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	t := NewTexture(label, uint32(bounds.Dx()), uint32(bounds.Dy()), wgpu.TextureFormatRGBA8Unorm)
	t.SetPixels(rgba.Pix, uint32(rgba.Stride))
	return t
}

// SetPixels stages pixel data for upload and bumps the content revision.
//
// Parameters:
//   - pixels: raw texel bytes, row-major
//   - bytesPerRow: byte stride between rows
func (t *Texture) SetPixels(pixels []byte, bytesPerRow uint32) {
	t.pixels = pixels
	t.bytesPerRow = bytesPerRow
	t.rev++
}

// Label returns the texture's debug label.
func (t *Texture) Label() string { return t.label }

// Format returns the texel format.
func (t *Texture) Format() wgpu.TextureFormat { return t.format }

// Size returns the texture extent.
func (t *Texture) Size() wgpu.Extent3D { return t.size }

// AddUsage accumulates usage flags ahead of GPU creation.
//
// Parameters:
//   - usage: flags to union into the texture's usage
func (t *Texture) AddUsage(usage wgpu.TextureUsage) {
	t.usage |= usage
}

// Touch bumps the content revision so the next flush re-uploads the pixels.
func (t *Texture) Touch() {
	t.rev++
}

// GPU returns the device texture, or nil before the first sync.
func (t *Texture) GPU() *wgpu.Texture { return t.gpu }

// EnsureSynced lazily creates the GPU texture and uploads staged pixels
// when the revision advanced.
//
// Parameters:
//   - ctx: device and queue to create and upload with
//
// Returns:
//   - error: texture allocation failure
func (t *Texture) EnsureSynced(ctx *gpu.Context) error {
	if t.gpu == nil {
		usage := t.usage
		if t.pixels != nil {
			usage |= wgpu.TextureUsageCopyDst
		}
		tex, err := ctx.Device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         t.label,
			Size:          t.size,
			Format:        t.format,
			Usage:         usage,
			Dimension:     wgpu.TextureDimension2D,
			MipLevelCount: 1,
			SampleCount:   1,
		})
		if err != nil {
			return fmt.Errorf("create texture %q: %w", t.label, err)
		}
		t.gpu = tex
		t.synced = 0
	}
	if t.pixels != nil && t.rev > t.synced {
		ctx.Queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  t.gpu,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			t.pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  t.bytesPerRow,
				RowsPerImage: t.size.Height,
			},
			&t.size,
		)
	}
	t.synced = t.rev
	return nil
}

var _ Syncable = &Texture{}

// SamplerSpec configures the sampler derived from a texture view. The zero
// value samples nearest with repeat addressing.
type SamplerSpec struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode
	// for coordinates outside [0, 1] in each dimension.
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification
	// and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp bound the level of detail; a zero
	// LodMaxClamp means unclamped (32).
	LodMinClamp, LodMaxClamp float32
	// Compare selects the comparison function for comparison samplers.
	Compare wgpu.CompareFunction
	// MaxAnisotropy is the maximum anisotropic filtering level; zero means 1.
	MaxAnisotropy uint16
}

// TextureView selects how a texture is bound: the view dimension plus the
// sampler parameters used when the view feeds a sampler binding.
type TextureView struct {
	texture *Texture
	dim     wgpu.TextureViewDimension
	sampler SamplerSpec

	gpuView    *wgpu.TextureView
	gpuSampler *wgpu.Sampler
}

// ViewOption configures a TextureView during creation.
type ViewOption func(*TextureView)

// WithViewDimension overrides the view dimension. The default is 2D.
//
// Parameters:
//   - dim: the wgpu view dimension
//
// Returns:
//   - ViewOption: a function that sets the view dimension
func WithViewDimension(dim wgpu.TextureViewDimension) ViewOption {
	return func(v *TextureView) {
		v.dim = dim
	}
}

// WithSampler sets the sampler parameters used when the view feeds a
// sampler binding.
//
// Parameters:
//   - spec: the sampler configuration
//
// Returns:
//   - ViewOption: a function that sets the sampler spec
func WithSampler(spec SamplerSpec) ViewOption {
	return func(v *TextureView) {
		v.sampler = spec
	}
}

// NewTextureView creates a view over a texture.
//
// Parameters:
//   - texture: the texture to view
//   - opts: optional configuration
//
// Returns:
//   - *TextureView: the view, pending GPU creation
func NewTextureView(texture *Texture, opts ...ViewOption) *TextureView {
	v := &TextureView{
		texture: texture,
		dim:     wgpu.TextureViewDimension2D,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Texture returns the viewed texture.
func (v *TextureView) Texture() *Texture { return v.texture }

// Format returns the texel format of the viewed texture.
func (v *TextureView) Format() wgpu.TextureFormat { return v.texture.format }

// Dimension returns the view dimension.
func (v *TextureView) Dimension() wgpu.TextureViewDimension { return v.dim }

// GPUView returns the device view, or nil before the first sync.
func (v *TextureView) GPUView() *wgpu.TextureView { return v.gpuView }

// GPUSampler returns the device sampler, or nil before the first sync.
func (v *TextureView) GPUSampler() *wgpu.Sampler { return v.gpuSampler }

// EnsureSynced syncs the underlying texture, then lazily creates the view
// and its sampler.
//
// Parameters:
//   - ctx: device and queue to create and upload with
//
// Returns:
//   - error: texture, view or sampler creation failure
func (v *TextureView) EnsureSynced(ctx *gpu.Context) error {
	if err := v.texture.EnsureSynced(ctx); err != nil {
		return err
	}
	if v.gpuView == nil {
		view, err := ctx.Device.CreateTextureView(v.texture.gpu, &wgpu.TextureViewDescriptor{
			Label:           v.texture.label + " View",
			Format:          v.texture.format,
			Dimension:       v.dim,
			MipLevelCount:   1,
			ArrayLayerCount: v.texture.size.DepthOrArrayLayers,
			Aspect:          wgpu.TextureAspectAll,
		})
		if err != nil {
			return fmt.Errorf("create view for %q: %w", v.texture.label, err)
		}
		v.gpuView = view
	}
	if v.gpuSampler == nil {
		sampler, err := ctx.Device.CreateSampler(&wgpu.SamplerDescriptor{
			Label:         v.texture.label + " Sampler",
			AddressModeU:  v.sampler.AddressModeU,
			AddressModeV:  v.sampler.AddressModeV,
			AddressModeW:  v.sampler.AddressModeW,
			MagFilter:     v.sampler.MagFilter,
			MinFilter:     v.sampler.MinFilter,
			MipmapFilter:  v.sampler.MipmapFilter,
			LodMinClamp:   v.sampler.LodMinClamp,
			LodMaxClamp:   common.Coalesce(v.sampler.LodMaxClamp, 32.0),
			MaxAnisotropy: common.Coalesce(v.sampler.MaxAnisotropy, 1),
			Compare:       v.sampler.Compare,
		})
		if err != nil {
			return fmt.Errorf("create sampler for %q: %w", v.texture.label, err)
		}
		v.gpuSampler = sampler
	}
	return nil
}

var _ Syncable = &TextureView{}
