package pipeline

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calder-gfx/calder/engine/renderer/binding"
	"github.com/calder-gfx/calder/engine/renderer/environment"
	"github.com/calder-gfx/calder/engine/renderer/gpu/gputest"
	"github.com/calder-gfx/calder/engine/renderer/registry"
	"github.com/calder-gfx/calder/engine/renderer/resource"
	"github.com/calder-gfx/calder/engine/renderer/shader"
	"github.com/calder-gfx/calder/engine/scene"
)

type testObject struct {
	scene.Object
}

func newTestObject() *testObject {
	return &testObject{Object: scene.NewObject("mesh", "flat")}
}

type testUniforms struct {
	Color [4]float32
}

// stubShader scripts its declarations so tests can steer container state
// without going through the template engine.
type stubShader struct {
	kind shader.Kind
	hash string
	wgsl string

	resources    shader.Resources
	resourcesErr error
	info         shader.PipelineInfo
	infoErr      error
	rinfo        shader.RenderInfo
	rinfoErr     error

	declared int
}

func (s *stubShader) Kind() shader.Kind { return s.kind }
func (s *stubShader) Hash() string      { return s.hash }

func (s *stubShader) GenerateWGSL(extra *shader.Vars) (string, error) {
	return s.wgsl, nil
}

func (s *stubShader) DeclareResources(obj scene.WorldObject) (shader.Resources, error) {
	s.declared++
	return s.resources, s.resourcesErr
}

func (s *stubShader) DeclarePipelineInfo(obj scene.WorldObject) (shader.PipelineInfo, error) {
	return s.info, s.infoErr
}

func (s *stubShader) DeclareRenderInfo(obj scene.WorldObject) (shader.RenderInfo, error) {
	return s.rinfo, s.rinfoErr
}

func newStubRenderShader() *stubShader {
	positions := resource.FromSlice("positions", [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, wgpu.VertexFormatFloat32x3)
	uniforms := resource.FromStruct("u_material", &testUniforms{Color: [4]float32{1, 0, 0, 1}})
	return &stubShader{
		kind: shader.KindRender,
		hash: "h1",
		wgsl: "@vertex fn vs_main() {}\n@fragment fn fs_main() {}\n",
		resources: shader.Resources{
			VertexBuffers: map[int]*resource.Buffer{0: positions},
			Bindings: map[int]map[int]binding.Binding{
				0: {0: binding.New("u_material", "buffer/uniform", uniforms)},
			},
		},
		info:  shader.PipelineInfo{Topology: wgpu.PrimitiveTopologyTriangleList, CullMode: wgpu.CullModeNone},
		rinfo: shader.RenderInfo{Indices: []int{3, 1}, Mask: shader.MaskOpaque},
	}
}

func newStubComputeShader() *stubShader {
	particles := resource.FromSlice("particles", make([][4]float32, 64), wgpu.VertexFormatFloat32x4)
	return &stubShader{
		kind: shader.KindCompute,
		hash: "c1",
		wgsl: "@compute @workgroup_size(64) fn main() {}\n",
		resources: shader.Resources{
			Bindings: map[int]map[int]binding.Binding{
				0: {0: binding.New("s_particles", "buffer/storage", particles, binding.WithVisibility(wgpu.ShaderStageCompute))},
			},
		},
		rinfo: shader.RenderInfo{Indices: []int{4, 4, 1}},
	}
}

func newTestContext() (*Context, *gputest.Device, *gputest.Queue) {
	gpuCtx, device, queue := gputest.NewContext()
	ctx := &Context{
		GPU:     gpuCtx,
		Shaders: registry.New(),
		Modules: NewModuleCache(),
		Layouts: NewLayoutCache(0, nil),
	}
	return ctx, device, queue
}

func newTestEnv() environment.Environment {
	return environment.NewSoloBlend(wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatDepth32Float)
}

func TestPhaseStrings(t *testing.T) {
	assert.Equal(t, "none", PhaseNone.String())
	assert.Equal(t, "shader data", PhaseShaderData.String())
	assert.Equal(t, "gpu object", PhaseGPUObject.String())
	assert.Equal(t, "Phase(7)", Phase(7).String())
}

func TestUpdateErrorWrapsCause(t *testing.T) {
	cause := errors.New("bad topology")
	err := &UpdateError{Phase: PhaseShaderData, Err: cause}

	assert.Equal(t, "shader data update failed: bad topology", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestAspects(t *testing.T) {
	set := Aspects(AspectCreate, AspectRenderInfo)
	assert.Len(t, set, 2)
	assert.Contains(t, set, AspectCreate)
	assert.Contains(t, set, AspectRenderInfo)
	assert.Empty(t, Aspects())
}

func TestCollectFlatResourcesOrderAndUsage(t *testing.T) {
	indexBuf := resource.FromIndices("tri", []uint32{0, 1, 2})
	vertexBuf := resource.FromSlice("positions", make([][3]float32, 3), wgpu.VertexFormatFloat32x3)
	uniformBuf := resource.FromStruct("u_material", &testUniforms{})
	storageIdx := resource.FromSlice("out_indices", make([]uint32, 6), wgpu.VertexFormatUint32)
	storageVtx := resource.FromSlice("out_points", make([][4]float32, 4), wgpu.VertexFormatFloat32x4)
	tex := resource.NewTexture("colormap", 4, 4, wgpu.TextureFormatRGBA8Unorm)
	view := resource.NewTextureView(tex)

	flat, err := collectFlatResources(shader.Resources{
		IndexBuffer:   indexBuf,
		VertexBuffers: map[int]*resource.Buffer{0: vertexBuf},
		Bindings: map[int]map[int]binding.Binding{
			0: {
				0: binding.New("u_material", "buffer/uniform", uniformBuf),
				1: binding.New("out_indices", "buffer/storage", storageIdx),
				2: binding.New("out_points", "buffer/storage", storageVtx),
				3: binding.New("t_colormap", "texture/auto", view),
				4: binding.New("s_colormap", "sampler/filtering", view),
			},
		},
	})
	require.NoError(t, err)

	require.Equal(t, []resource.Syncable{
		indexBuf, vertexBuf, uniformBuf, storageIdx, storageVtx, tex, view, view,
	}, flat)

	assert.Equal(t, wgpu.BufferUsageIndex|wgpu.BufferUsageStorage, indexBuf.Usage())
	assert.Equal(t, wgpu.BufferUsageVertex|wgpu.BufferUsageStorage, vertexBuf.Usage())
	assert.Equal(t, wgpu.BufferUsageUniform, uniformBuf.Usage())
	assert.Equal(t, wgpu.BufferUsageStorage|wgpu.BufferUsageIndex, storageIdx.Usage())
	assert.Equal(t, wgpu.BufferUsageStorage|wgpu.BufferUsageVertex, storageVtx.Usage())
}

func TestCollectFlatResourcesRejectsUnknownType(t *testing.T) {
	_, err := collectFlatResources(shader.Resources{
		Bindings: map[int]map[int]binding.Binding{
			0: {0: binding.New("u_thing", "acceleration_structure", nil)},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), `unknown resource binding "u_thing"`)
}

func TestCollectFlatResourcesRejectsMismatchedResource(t *testing.T) {
	tex := resource.NewTexture("colormap", 4, 4, wgpu.TextureFormatRGBA8Unorm)
	view := resource.NewTextureView(tex)

	_, err := collectFlatResources(shader.Resources{
		Bindings: map[int]map[int]binding.Binding{
			0: {0: binding.New("u_material", "buffer/uniform", view)},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a buffer resource")
}

// Draws before any successful update must be inert rather than panic.
func TestDrawBeforeFirstUpdateIsNoOp(t *testing.T) {
	c := NewRenderContainer(newStubRenderShader())
	pass := &gputest.RenderPass{}

	c.Draw(pass, newTestEnv(), 0, shader.MaskAll)

	assert.Empty(t, pass.Ops)
}

func TestDispatchBeforeFirstUpdateIsNoOp(t *testing.T) {
	c := NewComputeContainer(newStubComputeShader())
	pass := &gputest.ComputePass{}

	c.Dispatch(pass)

	assert.Empty(t, pass.Ops)
}
