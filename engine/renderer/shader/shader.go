// Package shader composes WGSL source out of templated fragments and
// generated binding declarations. A shader renders its fragments through a
// strict template engine, then two text passes resolve the varyings struct
// and the fragment depth output. The composed state hashes stably so
// pipeline containers can key caches on it.
package shader

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"text/template"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/calder-gfx/calder/engine/renderer/binding"
	"github.com/calder-gfx/calder/engine/renderer/resource"
	"github.com/calder-gfx/calder/engine/scene"
)

// Kind identifies whether a shader drives a render pipeline or a compute
// pipeline.
type Kind int

const (
	// KindRender is a shader with vs_main/fs_main entry points.
	KindRender Kind = iota

	// KindCompute is a shader with a single main entry point.
	KindCompute
)

// String returns "render" or "compute".
func (k Kind) String() string {
	switch k {
	case KindRender:
		return "render"
	case KindCompute:
		return "compute"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Entry point names are fixed; the composer and the varyings pass rely on
// them to locate the stages.
const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
	ComputeEntryPoint  = "main"
)

// RenderMask selects which render passes an object participates in.
type RenderMask uint8

const (
	// MaskOpaque marks objects drawn in the opaque pass.
	MaskOpaque RenderMask = 1 << iota

	// MaskTransparent marks objects drawn in the transparency pass.
	MaskTransparent
)

// MaskAll marks objects drawn in every pass.
const MaskAll = MaskOpaque | MaskTransparent

// Resources declares the GPU-facing resources a shader consumes: an
// optional index buffer, vertex buffers by slot, and bindings by group and
// slot. Compute shaders declare bindings only.
type Resources struct {
	IndexBuffer   *resource.Buffer
	VertexBuffers map[int]*resource.Buffer
	Bindings      map[int]map[int]binding.Binding
}

// PipelineInfo carries the fixed-function state a render shader wants.
type PipelineInfo struct {
	Topology wgpu.PrimitiveTopology
	CullMode wgpu.CullMode
}

// RenderInfo carries the draw range and pass participation. For render
// shaders Indices is (count, instances), (count, instances, first, base)
// or (count, instances, first, base, firstInstance); for compute shaders
// it is the three workgroup counts.
type RenderInfo struct {
	Indices []int
	Mask    RenderMask
}

// Shader is the contract between a material and the pipeline layer: it
// declares resources and fixed state for a world object and produces the
// final WGSL.
type Shader interface {
	// Kind reports whether this is a render or compute shader.
	//
	// Returns:
	//   - Kind: KindRender or KindCompute
	Kind() Kind

	// Hash digests the template variables and registered definitions.
	// Identical definitions and variables hash identically; containers
	// discard compiled modules when the hash moves.
	//
	// Returns:
	//   - string: hex digest of the composed state
	Hash() string

	// GenerateWGSL renders the shader source with extra variables laid
	// over the instance variables, then resolves varyings and depth output.
	//
	// Parameters:
	//   - extra: per-pass variable overrides, may be nil
	//
	// Returns:
	//   - string: the final WGSL
	//   - error: templating failure (wraps ErrTemplate)
	GenerateWGSL(extra *Vars) (string, error)

	// DeclareResources returns the resources the object's current state
	// needs bound.
	//
	// Parameters:
	//   - obj: the world object being prepared
	//
	// Returns:
	//   - Resources: index buffer, vertex buffers, bindings
	//   - error: configuration failure
	DeclareResources(obj scene.WorldObject) (Resources, error)

	// DeclarePipelineInfo returns the fixed-function state for render
	// shaders. Compute shaders return the zero value; their containers
	// reject anything else.
	//
	// Parameters:
	//   - obj: the world object being prepared
	//
	// Returns:
	//   - PipelineInfo: topology and cull mode
	//   - error: configuration failure
	DeclarePipelineInfo(obj scene.WorldObject) (PipelineInfo, error)

	// DeclareRenderInfo returns the draw range (or workgroup counts) and
	// the pass mask.
	//
	// Parameters:
	//   - obj: the world object being prepared
	//
	// Returns:
	//   - RenderInfo: indices and mask
	//   - error: configuration failure
	DeclareRenderInfo(obj scene.WorldObject) (RenderInfo, error)
}

// ErrTemplate marks source composition failures: unresolved template
// variables, varying resolution conflicts, and malformed output structs.
var ErrTemplate = errors.New("template error")

// orderedText stores named code fragments preserving first-registration
// order. Redefining a name replaces the text in place.
type orderedText struct {
	names  []string
	byName map[string]string
}

func newOrderedText() *orderedText {
	return &orderedText{byName: make(map[string]string)}
}

func (o *orderedText) set(name, code string) {
	if _, ok := o.byName[name]; !ok {
		o.names = append(o.names, name)
	}
	o.byName[name] = code
}

func (o *orderedText) join() string {
	var sb bytes.Buffer
	for i, name := range o.names {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(o.byName[name])
	}
	return sb.String()
}

// Base carries the composed state shared by concrete shaders: template
// variables, generated typedefs and binding declarations, hashing and the
// render-and-resolve step. Embed it and implement the Declare methods plus
// GenerateWGSL (usually a one-line Compose call).
type Base struct {
	kind     Kind
	vars     *Vars
	typedefs *orderedText
	bindings *orderedText
}

// NewBase creates the shared shader state.
//
// Parameters:
//   - kind: KindRender or KindCompute
//
// Returns:
//   - Base: zero registered definitions, empty variables
func NewBase(kind Kind) Base {
	return Base{
		kind:     kind,
		vars:     NewVars(),
		typedefs: newOrderedText(),
		bindings: newOrderedText(),
	}
}

// Kind reports whether this is a render or compute shader.
func (b *Base) Kind() Kind { return b.kind }

// Vars returns the instance template variables.
func (b *Base) Vars() *Vars { return b.vars }

// SetVar sets one instance template variable.
//
// Parameters:
//   - key: template variable name
//   - value: template variable value
func (b *Base) SetVar(key string, value any) {
	b.vars.Set(key, value)
}

// CodeDefinitions returns the registered typedefs followed by the binding
// declarations, each newline-joined in registration order.
func (b *Base) CodeDefinitions() string {
	return b.typedefs.join() + "\n" + b.bindings.join()
}

// Hash digests the canonical template variables plus the definitions text.
//
// Returns:
//   - string: hex sha1 digest
func (b *Base) Hash() string {
	h := sha1.New()
	h.Write([]byte(b.vars.canonical()))
	h.Write([]byte(b.CodeDefinitions()))
	return hex.EncodeToString(h.Sum(nil))
}

// Compose prepends the registered definitions to source, renders the whole
// through the strict template engine with extra variables winning over the
// instance variables, then resolves varyings and the depth output.
//
// Parameters:
//   - source: templated WGSL body
//   - extra: per-pass variable overrides, may be nil
//
// Returns:
//   - string: the final WGSL
//   - error: templating failure (wraps ErrTemplate)
func (b *Base) Compose(source string, extra *Vars) (string, error) {
	merged := b.vars.Merge(extra)
	full := b.CodeDefinitions() + "\n" + source

	tmpl, err := template.New("wgsl").Option("missingkey=error").Parse(full)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, merged.Map()); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplate, err)
	}

	out, err := resolveVaryings(buf.String())
	if err != nil {
		return "", err
	}
	return resolveDepthOutput(out)
}
