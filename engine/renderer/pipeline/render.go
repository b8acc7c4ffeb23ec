package pipeline

import (
	"fmt"
	"reflect"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/calder-gfx/calder/engine/renderer/environment"
	"github.com/calder-gfx/calder/engine/renderer/gpu"
	"github.com/calder-gfx/calder/engine/renderer/shader"
	"github.com/calder-gfx/calder/engine/scene"
)

// RenderContainer owns the GPU pipeline state for one render shader: a
// module and a pipeline per color-producing pass of each environment it has
// drawn under, plus the vertex layouts and strip index format derived from
// the declarations.
type RenderContainer struct {
	container[*wgpu.RenderPipeline]

	stripIndexFormat wgpu.IndexFormat
	vertexLayouts    []wgpu.VertexBufferLayout
}

var _ environment.Retirable = &RenderContainer{}

// NewRenderContainer creates a container for a render shader.
//
// Parameters:
//   - s: the shader driving this container
//
// Returns:
//   - *RenderContainer: the container, pending its first update
func NewRenderContainer(s shader.Shader) *RenderContainer {
	c := &RenderContainer{container: newContainer[*wgpu.RenderPipeline](s)}
	c.hooks = c
	return c
}

// Update refreshes the container for the flagged aspects and lazily builds
// modules and pipelines for the environment. See the package documentation
// for the phase protocol.
//
// Parameters:
//   - obj: the world object the shader describes
//   - env: the environment keying pass layout and blending
//   - ctx: device, registry and caches
//   - changed: flagged aspect labels; GPU work done is reported back into it
//
// Returns:
//   - error: an *UpdateError carrying the failed phase, or nil
func (c *RenderContainer) Update(obj scene.WorldObject, env environment.Environment, ctx *Context, changed map[string]struct{}) error {
	return c.update(obj, env, env.Hash(), ctx, changed)
}

func (c *RenderContainer) checkResources() error {
	c.updateStripIndexFormat()
	c.updateVertexLayouts()
	return nil
}

func (c *RenderContainer) checkPipelineInfo() error {
	c.updateStripIndexFormat()
	return nil
}

func (c *RenderContainer) checkRenderInfo() error {
	indices := c.renderInfo.Indices
	switch len(indices) {
	case 2:
		c.renderInfo.Indices = []int{indices[0], indices[1], 0, 0}
	case 4, 5:
	default:
		return fmt.Errorf("%w: render draw range needs 2, 4 or 5 elements, got %d", ErrConfig, len(indices))
	}
	switch c.renderInfo.Mask {
	case shader.MaskOpaque, shader.MaskTransparent, shader.MaskAll:
		return nil
	default:
		return fmt.Errorf("%w: render mask must select opaque, transparent or both, got %d", ErrConfig, c.renderInfo.Mask)
	}
}

// updateStripIndexFormat derives the strip index format: the index buffer's
// element format for strip topologies, undefined otherwise. A change
// invalidates compiled pipelines. Needs both resources and pipeline info,
// so the first update applies it on whichever arrives second.
func (c *RenderContainer) updateStripIndexFormat() {
	if !c.haveResources || !c.havePipelineInfo {
		return
	}
	format := wgpu.IndexFormatUint32
	if buf := c.resources.IndexBuffer; buf != nil && buf.IndexFormat() != wgpu.IndexFormatUndefined {
		format = buf.IndexFormat()
	}
	strip := wgpu.IndexFormatUndefined
	if isStripTopology(c.pipelineInfo.Topology) {
		strip = format
	}
	if c.stripIndexFormat != strip {
		c.stripIndexFormat = strip
		c.discardPipelines()
	}
}

func isStripTopology(t wgpu.PrimitiveTopology) bool {
	return t == wgpu.PrimitiveTopologyLineStrip || t == wgpu.PrimitiveTopologyTriangleStrip
}

// updateVertexLayouts recomputes the per-slot vertex buffer layouts. Only a
// structural change (slots, stride, format) invalidates compiled pipelines;
// buffer content changes never do.
func (c *RenderContainer) updateVertexLayouts() {
	layouts := make([]wgpu.VertexBufferLayout, 0, len(c.resources.VertexBuffers))
	for _, slot := range sortedIntKeys(c.resources.VertexBuffers) {
		buf := c.resources.VertexBuffers[slot]
		layouts = append(layouts, wgpu.VertexBufferLayout{
			ArrayStride: buf.ArrayStride(),
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{{
				Format:         buf.Format(),
				Offset:         0,
				ShaderLocation: uint32(slot),
			}},
		})
	}
	if !reflect.DeepEqual(c.vertexLayouts, layouts) {
		c.vertexLayouts = layouts
		c.discardPipelines()
	}
}

// compileModules generates WGSL with each pass's extra variables and
// compiles through the shared module cache. Passes without color targets
// get no module.
func (c *RenderContainer) compileModules(ctx *Context, env environment.Environment) (map[int]*wgpu.ShaderModule, error) {
	modules := make(map[int]*wgpu.ShaderModule)
	for passIndex := 0; passIndex < env.PassCount(); passIndex++ {
		if len(env.ColorTargets(passIndex)) == 0 {
			continue
		}
		source, err := c.shader.GenerateWGSL(env.ExtraVars(passIndex))
		if err != nil {
			return nil, err
		}
		module, err := ctx.Modules.GetOrCompile(ctx.GPU.Device, source)
		if err != nil {
			return nil, err
		}
		modules[passIndex] = module
	}
	return modules, nil
}

func (c *RenderContainer) composePipelines(ctx *Context, env environment.Environment, modules map[int]*wgpu.ShaderModule) (map[int]*wgpu.RenderPipeline, error) {
	layout, err := ctx.Layouts.GetOrCreate(ctx.GPU.Device, c.layouts)
	if err != nil {
		return nil, err
	}

	pipelines := make(map[int]*wgpu.RenderPipeline)
	for passIndex := 0; passIndex < env.PassCount(); passIndex++ {
		targets := env.ColorTargets(passIndex)
		if len(targets) == 0 {
			continue
		}
		module := modules[passIndex]
		pipeline, err := ctx.GPU.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
			Layout: layout,
			Vertex: wgpu.VertexState{
				Module:     module,
				EntryPoint: shader.VertexEntryPoint,
				Buffers:    c.vertexLayouts,
			},
			Primitive: wgpu.PrimitiveState{
				Topology:         c.pipelineInfo.Topology,
				StripIndexFormat: c.stripIndexFormat,
				FrontFace:        wgpu.FrontFaceCCW,
				CullMode:         c.pipelineInfo.CullMode,
			},
			DepthStencil: env.DepthStencil(passIndex),
			Multisample: wgpu.MultisampleState{
				Count: 1,
				Mask:  0xFFFFFFFF,
			},
			Fragment: &wgpu.FragmentState{
				Module:     module,
				EntryPoint: shader.FragmentEntryPoint,
				Targets:    targets,
			},
		})
		if err != nil {
			return nil, err
		}
		pipelines[passIndex] = pipeline
	}
	return pipelines, nil
}

// Draw records the object's draw into one pass. It is a no-op while the
// container is broken, when the mask does not select it, or when the pass
// has no pipeline under the environment.
//
// Parameters:
//   - pass: the render pass encoder
//   - env: the environment the pipelines were built for
//   - passIndex: which of the environment's passes is being recorded
//   - mask: the pass's render mask filter
func (c *RenderContainer) Draw(pass gpu.RenderPass, env environment.Environment, passIndex int, mask shader.RenderMask) {
	if c.broken != PhaseNone {
		return
	}
	if mask&c.renderInfo.Mask == 0 {
		return
	}
	pipeline := c.pipelines[env.Hash()][passIndex]
	if pipeline == nil {
		return
	}

	pass.SetPipeline(pipeline)
	for _, slot := range sortedIntKeys(c.resources.VertexBuffers) {
		buf := c.resources.VertexBuffers[slot]
		offset, size := buf.VertexByteRange()
		pass.SetVertexBuffer(uint32(slot), buf.GPU(), offset, size)
	}
	for i, group := range c.bindGroups {
		pass.SetBindGroup(uint32(i), group, nil)
	}

	indices := c.renderInfo.Indices
	if buf := c.resources.IndexBuffer; buf != nil {
		format := wgpu.IndexFormatUint32
		if f := buf.IndexFormat(); f != wgpu.IndexFormatUndefined {
			format = f
		}
		pass.SetIndexBuffer(buf.GPU(), format, 0, uint64(buf.NBytes()))
		base, firstInstance := 0, indices[3]
		if len(indices) == 5 {
			base, firstInstance = indices[3], indices[4]
		}
		pass.DrawIndexed(uint32(indices[0]), uint32(indices[1]), uint32(indices[2]), int32(base), uint32(firstInstance))
		return
	}
	firstInstance := indices[3]
	if len(indices) == 5 {
		firstInstance = indices[4]
	}
	pass.Draw(uint32(indices[0]), uint32(indices[1]), uint32(indices[2]), uint32(firstInstance))
}
