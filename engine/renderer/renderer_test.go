package renderer

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calder-gfx/calder/engine/renderer/binding"
	"github.com/calder-gfx/calder/engine/renderer/environment"
	"github.com/calder-gfx/calder/engine/renderer/gpu/gputest"
	"github.com/calder-gfx/calder/engine/renderer/pipeline"
	"github.com/calder-gfx/calder/engine/renderer/registry"
	"github.com/calder-gfx/calder/engine/renderer/resource"
	"github.com/calder-gfx/calder/engine/renderer/shader"
	"github.com/calder-gfx/calder/engine/scene"
)

const flatWGSL = `
@vertex
fn vs_main(@location(0) position: vec3<f32>) -> Varyings {
    var varyings: Varyings;
    varyings.position = vec4<f32>(position * {{.scale}}, 1.0);
    varyings.color = vec4<f32>(u_material.color);
    return varyings;
}

@fragment
fn fs_main(varyings: Varyings) -> @location(0) vec4<f32> {
    return varyings.color;
}
`

const glowWGSL = `
@group(0) @binding(0) var<storage, read_write> s_energy: array<f32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    s_energy[id.x] = s_energy[id.x] * 0.98;
}
`

type testObject struct{ scene.Object }

func newTestObject(kind scene.ObjectKind, material scene.MaterialKind) *testObject {
	return &testObject{Object: scene.NewObject(kind, material)}
}

type flatUniforms struct {
	Color [4]float32
}

// flatShader is a complete render shader built on Base so renderer tests
// exercise the real compose path.
type flatShader struct {
	shader.Base
	positions *resource.Buffer
	uniforms  *resource.Buffer
	indices   []int
}

func newFlatShader(t *testing.T) *flatShader {
	s := &flatShader{
		Base: shader.NewBase(shader.KindRender),
		positions: resource.FromSlice("positions", [][3]float32{
			{-1, -1, 0}, {1, -1, 0}, {0, 1, 0},
		}, wgpu.VertexFormatFloat32x3),
		uniforms: resource.FromStruct("u_material", &flatUniforms{Color: [4]float32{1, 1, 1, 1}}),
		indices:  []int{3, 1},
	}
	s.SetVar("scale", "1.0")
	require.NoError(t, s.DefineBinding(0, 0, binding.New("u_material", "buffer/uniform", s.uniforms)))
	return s
}

func (s *flatShader) GenerateWGSL(extra *shader.Vars) (string, error) {
	return s.Compose(flatWGSL, extra)
}

func (s *flatShader) DeclareResources(obj scene.WorldObject) (shader.Resources, error) {
	return shader.Resources{
		VertexBuffers: map[int]*resource.Buffer{0: s.positions},
		Bindings: map[int]map[int]binding.Binding{
			0: {0: binding.New("u_material", "buffer/uniform", s.uniforms)},
		},
	}, nil
}

func (s *flatShader) DeclarePipelineInfo(obj scene.WorldObject) (shader.PipelineInfo, error) {
	return shader.PipelineInfo{
		Topology: wgpu.PrimitiveTopologyTriangleList,
		CullMode: wgpu.CullModeNone,
	}, nil
}

func (s *flatShader) DeclareRenderInfo(obj scene.WorldObject) (shader.RenderInfo, error) {
	return shader.RenderInfo{Indices: s.indices, Mask: shader.MaskOpaque}, nil
}

// glowShader is a minimal compute shader with one storage binding.
type glowShader struct {
	shader.Base
	energy *resource.Buffer
}

func newGlowShader() *glowShader {
	return &glowShader{
		Base:   shader.NewBase(shader.KindCompute),
		energy: resource.FromSlice("s_energy", make([]float32, 256), wgpu.VertexFormatFloat32),
	}
}

func (s *glowShader) GenerateWGSL(extra *shader.Vars) (string, error) {
	return glowWGSL, nil
}

func (s *glowShader) DeclareResources(obj scene.WorldObject) (shader.Resources, error) {
	return shader.Resources{
		Bindings: map[int]map[int]binding.Binding{
			0: {0: binding.New("s_energy", "buffer/storage", s.energy, binding.WithVisibility(wgpu.ShaderStageCompute))},
		},
	}, nil
}

func (s *glowShader) DeclarePipelineInfo(obj scene.WorldObject) (shader.PipelineInfo, error) {
	return shader.PipelineInfo{}, nil
}

func (s *glowShader) DeclareRenderInfo(obj scene.WorldObject) (shader.RenderInfo, error) {
	return shader.RenderInfo{Indices: []int{4, 1, 1}}, nil
}

func newTestRenderer(t *testing.T) (Renderer, *gputest.Device, *registry.Registry) {
	t.Helper()
	gpuCtx, device, _ := gputest.NewContext()
	shaders := registry.New()
	return NewRenderer(gpuCtx, WithRegistry(shaders)), device, shaders
}

func registerFlatMesh(t *testing.T, shaders *registry.Registry) {
	t.Helper()
	require.NoError(t, shaders.Register("mesh", "flat", func(obj scene.WorldObject) ([]shader.Shader, error) {
		return []shader.Shader{newFlatShader(t)}, nil
	}))
}

func newTestEnv() environment.Environment {
	return environment.NewSoloBlend(wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatDepth32Float)
}

func TestNewRendererDefaults(t *testing.T) {
	gpuCtx, _, _ := gputest.NewContext()
	r := NewRenderer(gpuCtx)

	assert.Equal(t, 1, r.Settings().MSAASamples)
	assert.Equal(t, pipeline.DefaultLayoutCacheSize, r.Settings().LayoutCacheSize)
	assert.Same(t, gpuCtx, r.Context().GPU)
	assert.Same(t, registry.Default, r.Context().Shaders)
	assert.NotNil(t, r.Stats())
}

func TestEnsureUpToDateCreatesAndDraws(t *testing.T) {
	r, device, shaders := newTestRenderer(t)
	registerFlatMesh(t, shaders)
	obj := newTestObject("mesh", "flat")
	env := newTestEnv()

	require.NoError(t, r.EnsureUpToDate(obj, env))

	assert.Len(t, device.ShaderModuleDescs, 1)
	assert.Len(t, device.RenderPipelineDescs, 1)
	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.GroupUpdates)
	assert.Equal(t, uint64(1), stats.Recomputes[pipeline.AspectCreate])
	assert.Equal(t, uint64(2), stats.ResourceFlushes)

	pass := &gputest.RenderPass{}
	r.RecordRenderPass(pass, env, 0, env.PassMask(0), obj)
	assert.Contains(t, pass.Ops, "set_pipeline")
	assert.Contains(t, pass.Ops, "draw 3 1 0 0")
	assert.Equal(t, uint64(1), stats.DrawCalls)
}

func TestEnsureUpToDateSecondCallIsIdle(t *testing.T) {
	r, device, shaders := newTestRenderer(t)
	registerFlatMesh(t, shaders)
	obj := newTestObject("mesh", "flat")
	env := newTestEnv()

	require.NoError(t, r.EnsureUpToDate(obj, env))
	require.NoError(t, r.EnsureUpToDate(obj, env))

	assert.Len(t, device.ShaderModuleDescs, 1)
	assert.Len(t, device.RenderPipelineDescs, 1)
	assert.Equal(t, uint64(2), r.Stats().GroupUpdates)
}

func TestEnsureUpToDateReportsBrokenUpdate(t *testing.T) {
	r, device, shaders := newTestRenderer(t)
	require.NoError(t, shaders.Register("mesh", "flat", func(obj scene.WorldObject) ([]shader.Shader, error) {
		s := newFlatShader(t)
		s.indices = []int{1, 2, 3}
		return []shader.Shader{s}, nil
	}))
	obj := newTestObject("mesh", "flat")
	env := newTestEnv()

	err := r.EnsureUpToDate(obj, env)

	var updateErr *pipeline.UpdateError
	require.ErrorAs(t, err, &updateErr)
	assert.Equal(t, pipeline.PhaseShaderData, updateErr.Phase)
	assert.ErrorIs(t, err, pipeline.ErrConfig)
	assert.Equal(t, uint64(1), r.Stats().UpdateFailures)
	assert.Empty(t, device.RenderPipelineDescs)

	// broken containers keep their draws inert
	pass := &gputest.RenderPass{}
	r.RecordRenderPass(pass, env, 0, shader.MaskAll, obj)
	assert.Empty(t, pass.Ops)
}

func TestRecordPassesSkipUnknownObjects(t *testing.T) {
	r, _, shaders := newTestRenderer(t)
	registerFlatMesh(t, shaders)
	obj := newTestObject("mesh", "flat")

	pass := &gputest.RenderPass{}
	r.RecordRenderPass(pass, newTestEnv(), 0, shader.MaskAll, obj)
	assert.Empty(t, pass.Ops)

	compute := &gputest.ComputePass{}
	r.RecordComputePass(compute, obj)
	assert.Empty(t, compute.Ops)
	assert.Zero(t, r.Stats().DrawCalls)
}

func TestRecordRenderPassHonorsMask(t *testing.T) {
	r, _, shaders := newTestRenderer(t)
	registerFlatMesh(t, shaders)
	obj := newTestObject("mesh", "flat")
	env := newTestEnv()
	require.NoError(t, r.EnsureUpToDate(obj, env))

	pass := &gputest.RenderPass{}
	r.RecordRenderPass(pass, env, 0, shader.MaskTransparent, obj)
	assert.Empty(t, pass.Ops)
}

func TestForgetDropsGroupAndRebuilds(t *testing.T) {
	r, device, shaders := newTestRenderer(t)
	registerFlatMesh(t, shaders)
	obj := newTestObject("mesh", "flat")
	env := newTestEnv()
	require.NoError(t, r.EnsureUpToDate(obj, env))

	r.Forget(obj)
	pass := &gputest.RenderPass{}
	r.RecordRenderPass(pass, env, 0, env.PassMask(0), obj)
	assert.Empty(t, pass.Ops)

	require.NoError(t, r.EnsureUpToDate(obj, env))
	assert.Len(t, device.RenderPipelineDescs, 2)
	// identical source composed by the rebuilt group hits the module cache
	assert.Len(t, device.ShaderModuleDescs, 1)
}

func TestWarmUpPrimesModuleCache(t *testing.T) {
	r, device, shaders := newTestRenderer(t)
	registerFlatMesh(t, shaders)
	obj := newTestObject("mesh", "flat")
	env := newTestEnv()

	require.NoError(t, r.WarmUp(env, obj))
	assert.Len(t, device.ShaderModuleDescs, 1)
	assert.Empty(t, device.RenderPipelineDescs)
	assert.Equal(t, uint64(1), r.Stats().WarmUps)

	require.NoError(t, r.EnsureUpToDate(obj, env))
	assert.Len(t, device.ShaderModuleDescs, 1)
	assert.Len(t, device.RenderPipelineDescs, 1)
	assert.GreaterOrEqual(t, r.Stats().ModuleCacheHits, uint64(1))
}

func TestWarmUpMissingRegistrationFails(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	err := r.WarmUp(newTestEnv(), newTestObject("mesh", "flat"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no shader builder registered")
}

func TestWarmUpAndDispatchCompute(t *testing.T) {
	r, device, shaders := newTestRenderer(t)
	require.NoError(t, shaders.Register("particles", "glow", func(obj scene.WorldObject) ([]shader.Shader, error) {
		return []shader.Shader{newGlowShader()}, nil
	}))
	obj := newTestObject("particles", "glow")
	env := newTestEnv()

	require.NoError(t, r.WarmUp(env, obj))
	assert.Len(t, device.ShaderModuleDescs, 1)

	require.NoError(t, r.EnsureUpToDate(obj, env))
	assert.Len(t, device.ShaderModuleDescs, 1)
	assert.Len(t, device.ComputePipelineDescs, 1)

	pass := &gputest.ComputePass{}
	r.RecordComputePass(pass, obj)
	assert.Equal(t, []string{"set_pipeline", "set_bind_group 0", "dispatch 4 1 1"}, pass.Ops)
	assert.Equal(t, uint64(1), r.Stats().Dispatches)
}
