// Package environment captures the target and blend configuration render
// pipelines compile against. An environment hands out per-pass color target
// and depth-stencil descriptors plus extra template variables, and tracks
// the containers that compiled artifacts against it so retirement can prune
// exactly those entries.
package environment

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"

	"github.com/calder-gfx/calder/common"
	"github.com/calder-gfx/calder/engine/renderer/shader"
)

// Retirable is anything holding compiled artifacts keyed by an environment
// hash. Pipeline containers implement it; Retire calls it for every
// registered container.
type Retirable interface {
	// RemoveEnvHash drops all artifacts keyed by the given environment hash.
	//
	// Parameters:
	//   - envHash: the configuration hash of the retiring environment
	RemoveEnvHash(envHash string)
}

// Environment is the configuration render containers compile against: a
// stable hash identifying the target/blend setup, the pass schedule with
// per-pass descriptors, and the retirement bookkeeping.
type Environment interface {
	// ID returns the unique identity of this environment instance, used for
	// labels and logging. Two environments with equal configuration share a
	// Hash but never an ID.
	//
	// Returns:
	//   - string: the instance identity
	ID() string

	// Hash returns the stable configuration hash. Containers key their
	// compiled modules and pipelines by it.
	//
	// Returns:
	//   - string: the configuration hash
	Hash() string

	// PassCount returns how many render passes the configuration schedules.
	//
	// Returns:
	//   - int: the number of passes
	PassCount() int

	// ColorTargets returns the color target states of one pass. A nil or
	// empty slice marks a pass without color output; containers skip
	// compiling for it.
	//
	// Parameters:
	//   - passIndex: the pass to describe
	//
	// Returns:
	//   - []wgpu.ColorTargetState: the pass's color targets
	ColorTargets(passIndex int) []wgpu.ColorTargetState

	// DepthStencil returns the depth-stencil state of one pass.
	//
	// Parameters:
	//   - passIndex: the pass to describe
	//
	// Returns:
	//   - *wgpu.DepthStencilState: the pass's depth-stencil state
	DepthStencil(passIndex int) *wgpu.DepthStencilState

	// ExtraVars returns the template variables a pass lays over the shader's
	// instance variables during source composition.
	//
	// Parameters:
	//   - passIndex: the pass to describe
	//
	// Returns:
	//   - *shader.Vars: the per-pass overrides, may be nil
	ExtraVars(passIndex int) *shader.Vars

	// PassMask returns the render mask a pass selects for: objects whose
	// mask does not intersect it are skipped.
	//
	// Parameters:
	//   - passIndex: the pass to describe
	//
	// Returns:
	//   - shader.RenderMask: the pass's participation mask
	PassMask(passIndex int) shader.RenderMask

	// Register records a container that compiled artifacts keyed by this
	// environment's hash. Registering the same container again is a no-op.
	//
	// Parameters:
	//   - r: the container to notify on retirement
	Register(r Retirable)

	// Retire marks the environment inactive and prunes its hash from every
	// registered container.
	Retire()
}

// base carries the identity and retirement bookkeeping shared by the blend
// configurations.
type base struct {
	id         string
	hash       string
	registered map[Retirable]struct{}
}

func newBase(hash string) base {
	return base{
		id:         uuid.New().String(),
		hash:       hash,
		registered: make(map[Retirable]struct{}),
	}
}

func (b *base) ID() string   { return b.id }
func (b *base) Hash() string { return b.hash }

func (b *base) Register(r Retirable) {
	b.registered[r] = struct{}{}
}

func (b *base) Retire() {
	for r := range b.registered {
		r.RemoveEnvHash(b.hash)
	}
	b.registered = make(map[Retirable]struct{})
	common.LogDebug("environment %s retired", b.id)
}

// configHash digests a blend mode plus its formats into the stable hash
// containers key on. Equal configurations hash equally across instances.
func configHash(mode string, colorFormat, depthFormat wgpu.TextureFormat) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s:%d:%d", mode, colorFormat, depthFormat)
	return hex.EncodeToString(h.Sum(nil))
}

func blendReplace() *wgpu.BlendState {
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorZero,
			Operation: wgpu.BlendOperationAdd,
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorZero,
			Operation: wgpu.BlendOperationAdd,
		},
	}
}

func blendOver() *wgpu.BlendState {
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
	}
}

func depthState(format wgpu.TextureFormat, writeEnabled bool) *wgpu.DepthStencilState {
	return &wgpu.DepthStencilState{
		Format:            format,
		DepthWriteEnabled: writeEnabled,
		DepthCompare:      wgpu.CompareFunctionLess,
		StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		StencilReadMask:   0xFFFFFFFF,
		StencilWriteMask:  0xFFFFFFFF,
	}
}

// SoloBlend renders everything in a single opaque pass: replace blending,
// depth tested and written.
type SoloBlend struct {
	base
	colorFormat wgpu.TextureFormat
	depthFormat wgpu.TextureFormat
}

var _ Environment = &SoloBlend{}

// NewSoloBlend creates the single-pass configuration.
//
// Parameters:
//   - colorFormat: the color target format, usually the surface format
//   - depthFormat: the depth attachment format
//
// Returns:
//   - *SoloBlend: the configuration
func NewSoloBlend(colorFormat, depthFormat wgpu.TextureFormat) *SoloBlend {
	return &SoloBlend{
		base:        newBase(configHash("solo", colorFormat, depthFormat)),
		colorFormat: colorFormat,
		depthFormat: depthFormat,
	}
}

func (s *SoloBlend) PassCount() int { return 1 }

func (s *SoloBlend) ColorTargets(passIndex int) []wgpu.ColorTargetState {
	if passIndex != 0 {
		return nil
	}
	return []wgpu.ColorTargetState{{
		Format:    s.colorFormat,
		Blend:     blendReplace(),
		WriteMask: wgpu.ColorWriteMaskAll,
	}}
}

func (s *SoloBlend) DepthStencil(passIndex int) *wgpu.DepthStencilState {
	return depthState(s.depthFormat, true)
}

func (s *SoloBlend) ExtraVars(passIndex int) *shader.Vars {
	return shader.NewVars().Set("blend_mode", "opaque")
}

func (s *SoloBlend) PassMask(passIndex int) shader.RenderMask {
	return shader.MaskAll
}

// OrderedBlend renders opaque geometry first with depth writes, then blends
// transparent geometry over it with the over operator against a read-only
// depth buffer.
type OrderedBlend struct {
	base
	colorFormat wgpu.TextureFormat
	depthFormat wgpu.TextureFormat
}

var _ Environment = &OrderedBlend{}

// NewOrderedBlend creates the two-pass opaque-then-transparent
// configuration.
//
// Parameters:
//   - colorFormat: the color target format, usually the surface format
//   - depthFormat: the depth attachment format
//
// Returns:
//   - *OrderedBlend: the configuration
func NewOrderedBlend(colorFormat, depthFormat wgpu.TextureFormat) *OrderedBlend {
	return &OrderedBlend{
		base:        newBase(configHash("ordered", colorFormat, depthFormat)),
		colorFormat: colorFormat,
		depthFormat: depthFormat,
	}
}

func (o *OrderedBlend) PassCount() int { return 2 }

func (o *OrderedBlend) ColorTargets(passIndex int) []wgpu.ColorTargetState {
	switch passIndex {
	case 0:
		return []wgpu.ColorTargetState{{
			Format:    o.colorFormat,
			Blend:     blendReplace(),
			WriteMask: wgpu.ColorWriteMaskAll,
		}}
	case 1:
		return []wgpu.ColorTargetState{{
			Format:    o.colorFormat,
			Blend:     blendOver(),
			WriteMask: wgpu.ColorWriteMaskAll,
		}}
	default:
		return nil
	}
}

func (o *OrderedBlend) DepthStencil(passIndex int) *wgpu.DepthStencilState {
	// The transparency pass reads depth but never writes it.
	return depthState(o.depthFormat, passIndex == 0)
}

func (o *OrderedBlend) ExtraVars(passIndex int) *shader.Vars {
	mode := "opaque"
	if passIndex == 1 {
		mode = "transparent"
	}
	return shader.NewVars().Set("blend_mode", mode)
}

func (o *OrderedBlend) PassMask(passIndex int) shader.RenderMask {
	if passIndex == 1 {
		return shader.MaskTransparent
	}
	return shader.MaskOpaque
}
