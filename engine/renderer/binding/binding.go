// Package binding describes how one shader resource is bound: its name in
// the generated WGSL, its binding category, the backing resource and the
// stages that can see it. A binding knows how to derive its wgpu bind group
// entry and layout entry for a slot.
package binding

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/calder-gfx/calder/engine/renderer/resource"
)

// VisibilityRender is the default stage visibility for render bindings.
const VisibilityRender = wgpu.ShaderStageVertex | wgpu.ShaderStageFragment

// Binding pairs a resource with the way a shader consumes it.
//
// Type is "category/subtype": "buffer/uniform", "buffer/storage",
// "buffer/read_only_storage", "sampler/filtering", "sampler/comparison",
// "texture/auto" (or an explicit sample type), "storage_texture/write_only"
// and friends. The category selects which resource kind is required: buffer
// categories need a *resource.Buffer, all others a *resource.TextureView.
type Binding struct {
	Name       string
	Type       string
	Resource   resource.Syncable
	Visibility wgpu.ShaderStage
}

// Option configures a Binding during creation.
type Option func(*Binding)

// WithVisibility overrides the stages that can see the binding. Render
// bindings default to vertex plus fragment; compute shaders should pass
// wgpu.ShaderStageCompute.
//
// Parameters:
//   - stages: the wgpu shader stage flags
//
// Returns:
//   - Option: a function that sets the visibility
func WithVisibility(stages wgpu.ShaderStage) Option {
	return func(b *Binding) {
		b.Visibility = stages
	}
}

// New creates a binding.
//
// Parameters:
//   - name: the WGSL variable name the shader declares for this resource
//   - bindingType: "category/subtype" selector, e.g. "buffer/uniform"
//   - res: the backing buffer or texture view
//   - opts: optional configuration
//
// Returns:
//   - Binding: the binding descriptor
func New(name, bindingType string, res resource.Syncable, opts ...Option) Binding {
	b := Binding{
		Name:       name,
		Type:       bindingType,
		Resource:   res,
		Visibility: VisibilityRender,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// DeriveEntries produces the wgpu bind group entry and layout entry for the
// binding at the given slot. The backing resource must already hold its GPU
// objects. Derivation is pure; failures are configuration errors.
//
// Parameters:
//   - slot: the binding index within its group
//
// Returns:
//   - wgpu.BindGroupEntry: the resource entry for bind group creation
//   - wgpu.BindGroupLayoutEntry: the matching layout entry
//   - error: unknown type, wrong resource kind, or underivable sample type
func (b Binding) DeriveEntries(slot uint32) (wgpu.BindGroupEntry, wgpu.BindGroupLayoutEntry, error) {
	var entry wgpu.BindGroupEntry
	var layout wgpu.BindGroupLayoutEntry

	subtype := b.Type[strings.Index(b.Type, "/")+1:]

	switch {
	case strings.HasPrefix(b.Type, "buffer/"):
		buf, ok := b.Resource.(*resource.Buffer)
		if !ok {
			return entry, layout, fmt.Errorf("binding %q: %s requires a buffer resource", b.Name, b.Type)
		}
		bufferType, err := bufferBindingType(subtype)
		if err != nil {
			return entry, layout, fmt.Errorf("binding %q: %w", b.Name, err)
		}
		entry = wgpu.BindGroupEntry{
			Binding: slot,
			Buffer:  buf.GPU(),
			Offset:  0,
			Size:    uint64(buf.NBytes()),
		}
		layout = wgpu.BindGroupLayoutEntry{
			Binding:    slot,
			Visibility: b.Visibility,
			Buffer: wgpu.BufferBindingLayout{
				Type:             bufferType,
				HasDynamicOffset: false,
				MinBindingSize:   0,
			},
		}

	case strings.HasPrefix(b.Type, "sampler/"):
		view, ok := b.Resource.(*resource.TextureView)
		if !ok {
			return entry, layout, fmt.Errorf("binding %q: %s requires a texture view resource", b.Name, b.Type)
		}
		samplerType, err := samplerBindingType(subtype)
		if err != nil {
			return entry, layout, fmt.Errorf("binding %q: %w", b.Name, err)
		}
		entry = wgpu.BindGroupEntry{Binding: slot, Sampler: view.GPUSampler()}
		layout = wgpu.BindGroupLayoutEntry{
			Binding:    slot,
			Visibility: b.Visibility,
			Sampler:    wgpu.SamplerBindingLayout{Type: samplerType},
		}

	case strings.HasPrefix(b.Type, "texture/"):
		view, ok := b.Resource.(*resource.TextureView)
		if !ok {
			return entry, layout, fmt.Errorf("binding %q: %s requires a texture view resource", b.Name, b.Type)
		}
		sampleType, err := textureSampleType(subtype, view.Format())
		if err != nil {
			return entry, layout, fmt.Errorf("binding %q: %w", b.Name, err)
		}
		entry = wgpu.BindGroupEntry{Binding: slot, TextureView: view.GPUView()}
		layout = wgpu.BindGroupLayoutEntry{
			Binding:    slot,
			Visibility: b.Visibility,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    sampleType,
				ViewDimension: view.Dimension(),
				Multisampled:  false,
			},
		}

	case strings.HasPrefix(b.Type, "storage_texture/"):
		view, ok := b.Resource.(*resource.TextureView)
		if !ok {
			return entry, layout, fmt.Errorf("binding %q: %s requires a texture view resource", b.Name, b.Type)
		}
		access, err := storageAccess(subtype)
		if err != nil {
			return entry, layout, fmt.Errorf("binding %q: %w", b.Name, err)
		}
		entry = wgpu.BindGroupEntry{Binding: slot, TextureView: view.GPUView()}
		layout = wgpu.BindGroupLayoutEntry{
			Binding:    slot,
			Visibility: b.Visibility,
			StorageTexture: wgpu.StorageTextureBindingLayout{
				Access:        access,
				Format:        view.Format(),
				ViewDimension: view.Dimension(),
			},
		}

	default:
		return entry, layout, fmt.Errorf("binding %q: unknown binding type %q", b.Name, b.Type)
	}

	return entry, layout, nil
}

func bufferBindingType(subtype string) (wgpu.BufferBindingType, error) {
	switch subtype {
	case "uniform":
		return wgpu.BufferBindingTypeUniform, nil
	case "storage":
		return wgpu.BufferBindingTypeStorage, nil
	case "read_only_storage":
		return wgpu.BufferBindingTypeReadOnlyStorage, nil
	default:
		return 0, fmt.Errorf("unknown buffer binding subtype %q", subtype)
	}
}

func samplerBindingType(subtype string) (wgpu.SamplerBindingType, error) {
	switch subtype {
	case "filtering":
		return wgpu.SamplerBindingTypeFiltering, nil
	case "non_filtering":
		return wgpu.SamplerBindingTypeNonFiltering, nil
	case "comparison":
		return wgpu.SamplerBindingTypeComparison, nil
	default:
		return 0, fmt.Errorf("unknown sampler binding subtype %q", subtype)
	}
}

func textureSampleType(subtype string, format wgpu.TextureFormat) (wgpu.TextureSampleType, error) {
	switch subtype {
	case "auto":
		return AutoSampleType(format)
	case "float":
		return wgpu.TextureSampleTypeFloat, nil
	case "unfilterable_float":
		return wgpu.TextureSampleTypeUnfilterableFloat, nil
	case "uint":
		return wgpu.TextureSampleTypeUint, nil
	case "sint":
		return wgpu.TextureSampleTypeSint, nil
	case "depth":
		return wgpu.TextureSampleTypeDepth, nil
	default:
		return 0, fmt.Errorf("unknown texture binding subtype %q", subtype)
	}
}

func storageAccess(subtype string) (wgpu.StorageTextureAccess, error) {
	switch subtype {
	case "write_only":
		return wgpu.StorageTextureAccessWriteOnly, nil
	case "read_only":
		return wgpu.StorageTextureAccessReadOnly, nil
	case "read_write":
		return wgpu.StorageTextureAccessReadWrite, nil
	default:
		return 0, fmt.Errorf("unknown storage texture access %q", subtype)
	}
}

// AutoSampleType buckets a texel format by its component class. Float and
// normalized formats (including depth formats that store float or normalized
// texels) sample as float; plain depth formats sample as depth. Shader
// declaration codegen uses the same bucketing to pick the texture scalar
// type.
//
// Parameters:
//   - format: the texture format to classify
//
// Returns:
//   - wgpu.TextureSampleType: the derived sample type
//   - error: format outside the derivable classes
func AutoSampleType(format wgpu.TextureFormat) (wgpu.TextureSampleType, error) {
	switch format {
	case wgpu.TextureFormatR8Unorm, wgpu.TextureFormatR8Snorm,
		wgpu.TextureFormatRG8Unorm, wgpu.TextureFormatRG8Snorm,
		wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8UnormSrgb,
		wgpu.TextureFormatRGBA8Snorm,
		wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatBGRA8UnormSrgb,
		wgpu.TextureFormatRGB10A2Unorm,
		wgpu.TextureFormatR16Float, wgpu.TextureFormatRG16Float,
		wgpu.TextureFormatRGBA16Float,
		wgpu.TextureFormatR32Float, wgpu.TextureFormatRG32Float,
		wgpu.TextureFormatRGBA32Float,
		wgpu.TextureFormatDepth16Unorm, wgpu.TextureFormatDepth32Float:
		return wgpu.TextureSampleTypeFloat, nil
	case wgpu.TextureFormatR8Uint, wgpu.TextureFormatR16Uint,
		wgpu.TextureFormatR32Uint,
		wgpu.TextureFormatRG8Uint, wgpu.TextureFormatRG16Uint,
		wgpu.TextureFormatRG32Uint,
		wgpu.TextureFormatRGBA8Uint, wgpu.TextureFormatRGBA16Uint,
		wgpu.TextureFormatRGBA32Uint:
		return wgpu.TextureSampleTypeUint, nil
	case wgpu.TextureFormatR8Sint, wgpu.TextureFormatR16Sint,
		wgpu.TextureFormatR32Sint,
		wgpu.TextureFormatRG8Sint, wgpu.TextureFormatRG16Sint,
		wgpu.TextureFormatRG32Sint,
		wgpu.TextureFormatRGBA8Sint, wgpu.TextureFormatRGBA16Sint,
		wgpu.TextureFormatRGBA32Sint:
		return wgpu.TextureSampleTypeSint, nil
	case wgpu.TextureFormatDepth24Plus, wgpu.TextureFormatDepth24PlusStencil8:
		return wgpu.TextureSampleTypeDepth, nil
	default:
		return 0, fmt.Errorf("could not determine sample type for format %d", format)
	}
}
