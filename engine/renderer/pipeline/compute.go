package pipeline

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/calder-gfx/calder/engine/renderer/environment"
	"github.com/calder-gfx/calder/engine/renderer/gpu"
	"github.com/calder-gfx/calder/engine/renderer/shader"
	"github.com/calder-gfx/calder/engine/scene"
)

// ComputeContainer owns the GPU pipeline state for one compute shader: a
// single module and pipeline independent of any environment, plus the bind
// groups for its declared bindings.
type ComputeContainer struct {
	container[*wgpu.ComputePipeline]
}

var _ environment.Retirable = &ComputeContainer{}

// NewComputeContainer creates a container for a compute shader.
//
// Parameters:
//   - s: the shader driving this container
//
// Returns:
//   - *ComputeContainer: the container, pending its first update
func NewComputeContainer(s shader.Shader) *ComputeContainer {
	c := &ComputeContainer{container: newContainer[*wgpu.ComputePipeline](s)}
	c.hooks = c
	return c
}

// Update refreshes the container for the flagged aspects. Compute pipelines
// do not vary by environment, so the GPU objects live under one constant
// key and survive environment changes.
//
// Parameters:
//   - obj: the world object the shader describes
//   - env: the active environment, used for retirement registration only
//   - ctx: device, registry and caches
//   - changed: flagged aspect labels; GPU work done is reported back into it
//
// Returns:
//   - error: an *UpdateError carrying the failed phase, or nil
func (c *ComputeContainer) Update(obj scene.WorldObject, env environment.Environment, ctx *Context, changed map[string]struct{}) error {
	return c.update(obj, env, computeEnvKey, ctx, changed)
}

func (c *ComputeContainer) checkResources() error {
	if c.resources.IndexBuffer != nil || len(c.resources.VertexBuffers) > 0 {
		return fmt.Errorf("%w: compute shaders declare bindings only, not index or vertex buffers", ErrConfig)
	}
	return nil
}

func (c *ComputeContainer) checkPipelineInfo() error {
	if c.pipelineInfo != (shader.PipelineInfo{}) {
		return fmt.Errorf("%w: compute shaders declare no pipeline info", ErrConfig)
	}
	return nil
}

func (c *ComputeContainer) checkRenderInfo() error {
	dims := c.renderInfo.Indices
	if len(dims) != 3 {
		return fmt.Errorf("%w: compute dispatch needs exactly 3 workgroup counts, got %d", ErrConfig, len(dims))
	}
	for _, dim := range dims {
		if dim < 0 {
			return fmt.Errorf("%w: workgroup counts must be non-negative, got %v", ErrConfig, dims)
		}
	}
	return nil
}

func (c *ComputeContainer) compileModules(ctx *Context, env environment.Environment) (map[int]*wgpu.ShaderModule, error) {
	source, err := c.shader.GenerateWGSL(nil)
	if err != nil {
		return nil, err
	}
	module, err := ctx.Modules.GetOrCompile(ctx.GPU.Device, source)
	if err != nil {
		return nil, err
	}
	return map[int]*wgpu.ShaderModule{0: module}, nil
}

func (c *ComputeContainer) composePipelines(ctx *Context, env environment.Environment, modules map[int]*wgpu.ShaderModule) (map[int]*wgpu.ComputePipeline, error) {
	layout, err := ctx.Layouts.GetOrCreate(ctx.GPU.Device, c.layouts)
	if err != nil {
		return nil, err
	}
	pipeline, err := ctx.GPU.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     modules[0],
			EntryPoint: shader.ComputeEntryPoint,
		},
	})
	if err != nil {
		return nil, err
	}
	return map[int]*wgpu.ComputePipeline{0: pipeline}, nil
}

// Dispatch records the compute dispatch. It is a no-op while the container
// is broken or before the pipeline exists.
//
// Parameters:
//   - pass: the compute pass encoder
func (c *ComputeContainer) Dispatch(pass gpu.ComputePass) {
	if c.broken != PhaseNone {
		return
	}
	pipeline := c.pipelines[computeEnvKey][0]
	if pipeline == nil {
		return
	}
	pass.SetPipeline(pipeline)
	for i, group := range c.bindGroups {
		pass.SetBindGroup(uint32(i), group, nil)
	}
	dims := c.renderInfo.Indices
	pass.DispatchWorkgroups(uint32(dims[0]), uint32(dims[1]), uint32(dims[2]))
}
