package shader

import (
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calder-gfx/calder/engine/renderer/binding"
	"github.com/calder-gfx/calder/engine/renderer/resource"
)

type sceneUniforms struct {
	Time    float32
	_       float32
	Scale   [2]float32
	Color   [4]float32
	View    [4][4]float32
	Weights [8]float32
	Normals [6][3]float32
}

func TestDefineUniformStruct(t *testing.T) {
	b := NewBase(KindRender)
	buf := resource.FromStruct("scene uniforms", &sceneUniforms{})
	require.NoError(t, b.DefineBinding(0, 2, binding.New("u_scene", "buffer/uniform", buf)))

	defs := b.CodeDefinitions()
	assert.Contains(t, defs, "struct Struct_u_scene {")
	assert.Contains(t, defs, "    time: f32,")
	assert.Contains(t, defs, "    scale: vec2<f32>,")
	assert.Contains(t, defs, "    color: vec4<f32>,")
	assert.Contains(t, defs, "    view: mat4x4<f32>,")
	assert.Contains(t, defs, "    weights: array<f32,8>,")
	assert.Contains(t, defs, "    normals: array<vec3<f32>,6>,")
	assert.Contains(t, defs, "@group(0) @binding(2) var<uniform> u_scene: Struct_u_scene;")

	// The blank padding field stays out of the struct.
	assert.NotContains(t, defs, "_:")
}

func TestDefineUniformAlignmentError(t *testing.T) {
	type misaligned struct {
		A float32
		B [4]float32
	}
	b := NewBase(KindRender)
	buf := resource.FromStruct("bad uniforms", &misaligned{})

	err := b.DefineBinding(0, 0, binding.New("u_bad", "buffer/uniform", buf))
	require.Error(t, err)
	assert.ErrorContains(t, err, "struct alignment error")
	assert.ErrorContains(t, err, "u_bad.B alignment must be 16")
}

func TestDefineUniformUnsupportedField(t *testing.T) {
	type badField struct {
		F float64
	}
	b := NewBase(KindRender)
	buf := resource.FromStruct("bad uniforms", &badField{})

	err := b.DefineBinding(0, 0, binding.New("u_bad", "buffer/uniform", buf))
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported type")
}

func TestDefineUniformNeedsStructBuffer(t *testing.T) {
	b := NewBase(KindRender)
	buf := resource.NewBuffer("raw", make([]byte, 16), 1)

	err := b.DefineBinding(0, 0, binding.New("u_raw", "buffer/uniform", buf))
	require.Error(t, err)
	assert.ErrorContains(t, err, "needs a struct-backed buffer")
}

func TestDefineStorageBufferScalar(t *testing.T) {
	b := NewBase(KindCompute)
	buf := resource.FromSlice("cells", []float32{1, 2, 3, 4}, wgpu.VertexFormatFloat32)
	require.NoError(t, b.DefineBinding(0, 0, binding.New("b_cells", "buffer/storage", buf)))

	defs := b.CodeDefinitions()
	assert.Contains(t, defs, "@group(0) @binding(0) var<storage, read_write> b_cells: array<f32>;")
	assert.Contains(t, defs, "fn load_b_cells (i: i32) -> f32 { return b_cells[i]; }")
}

func TestDefineStorageBufferVec2ReadOnly(t *testing.T) {
	b := NewBase(KindCompute)
	buf := resource.FromSlice("lut", [][2]uint32{{1, 2}}, wgpu.VertexFormatUint32x2)
	require.NoError(t, b.DefineBinding(0, 1, binding.New("b_lut", "buffer/read_only_storage", buf)))

	defs := b.CodeDefinitions()
	assert.Contains(t, defs, "@group(0) @binding(1) var<storage, read> b_lut: array<vec2<u32>>;")
	assert.Contains(t, defs, "fn load_b_lut (i: i32) -> vec2<u32> { return vec2<u32>( b_lut[i * 2], b_lut[i * 2 + 1] ); }")
}

func TestDefineStorageBufferVec3BoundFlat(t *testing.T) {
	b := NewBase(KindCompute)
	buf := resource.FromSlice("positions", [][3]float32{{1, 2, 3}}, wgpu.VertexFormatFloat32x3)
	require.NoError(t, b.DefineBinding(0, 0, binding.New("b_positions", "buffer/read_only_storage", buf)))

	defs := b.CodeDefinitions()
	assert.Contains(t, defs, "var<storage, read> b_positions: array<f32>;")
	assert.Contains(t, defs, "fn load_b_positions (i: i32) -> vec3<f32> { return vec3<f32>( b_positions[i * 3], b_positions[i * 3 + 1], b_positions[i * 3 + 2] ); }")
}

func TestDefineStorageBufferBadStride(t *testing.T) {
	b := NewBase(KindCompute)
	buf := resource.FromSlice("half floats", []uint32{1}, wgpu.VertexFormatFloat16x2)

	err := b.DefineBinding(0, 0, binding.New("b_half", "buffer/storage", buf))
	require.Error(t, err)
	assert.ErrorContains(t, err, "element stride must be 4 bytes")
}

func TestDefineSamplers(t *testing.T) {
	b := NewBase(KindRender)
	tex := resource.NewTexture("shadow map", 4, 4, wgpu.TextureFormatDepth24Plus)
	view := resource.NewTextureView(tex)

	require.NoError(t, b.DefineBinding(1, 0, binding.New("s_color", "sampler/filtering", view)))
	require.NoError(t, b.DefineBinding(1, 1, binding.New("s_shadow", "sampler/comparison", view)))

	defs := b.CodeDefinitions()
	assert.Contains(t, defs, "@group(1) @binding(0) var s_color: sampler;")
	assert.Contains(t, defs, "@group(1) @binding(1) var s_shadow: sampler_comparison;")
}

func TestDefineTextures(t *testing.T) {
	cases := []struct {
		name   string
		format wgpu.TextureFormat
		dim    wgpu.TextureViewDimension
		want   string
	}{
		{"float", wgpu.TextureFormatRGBA8Unorm, wgpu.TextureViewDimension2D, "var t_tex: texture_2d<f32>;"},
		{"uint", wgpu.TextureFormatR32Uint, wgpu.TextureViewDimension2D, "var t_tex: texture_2d<u32>;"},
		{"sint-cube", wgpu.TextureFormatR32Sint, wgpu.TextureViewDimensionCube, "var t_tex: texture_cube<i32>;"},
		{"depth", wgpu.TextureFormatDepth24Plus, wgpu.TextureViewDimension2D, "var t_tex: texture_depth_2d;"},
		{"array", wgpu.TextureFormatRGBA16Float, wgpu.TextureViewDimension2DArray, "var t_tex: texture_2d_array<f32>;"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBase(KindRender)
			tex := resource.NewTexture("tex", 4, 4, tc.format)
			view := resource.NewTextureView(tex, resource.WithViewDimension(tc.dim))

			require.NoError(t, b.DefineBinding(0, 0, binding.New("t_tex", "texture/auto", view)))
			assert.Contains(t, b.CodeDefinitions(), tc.want)
		})
	}
}

func TestDefineTextureErrors(t *testing.T) {
	b := NewBase(KindRender)

	tex := resource.NewTexture("stencil", 4, 4, wgpu.TextureFormatStencil8)
	err := b.DefineBinding(0, 0, binding.New("t_tex", "texture/auto", resource.NewTextureView(tex)))
	require.Error(t, err)
	assert.ErrorContains(t, err, "could not determine sample type")

	buf := resource.NewBuffer("raw", make([]byte, 4), 1)
	err = b.DefineBinding(0, 0, binding.New("t_tex", "texture/auto", buf))
	require.Error(t, err)
	assert.ErrorContains(t, err, "needs a texture view resource")
}

func TestDefineStorageTexture(t *testing.T) {
	b := NewBase(KindCompute)
	tex := resource.NewTexture("target", 4, 4, wgpu.TextureFormatRGBA8Unorm)
	view := resource.NewTextureView(tex)
	require.NoError(t, b.DefineBinding(0, 0, binding.New("t_out", "storage_texture/write_only", view)))

	tex2 := resource.NewTexture("grid", 4, 4, wgpu.TextureFormatR32Float)
	view2 := resource.NewTextureView(tex2)
	require.NoError(t, b.DefineBinding(0, 1, binding.New("t_grid", "storage_texture/read_write", view2)))

	defs := b.CodeDefinitions()
	assert.Contains(t, defs, "@group(0) @binding(0) var t_out: texture_storage_2d<rgba8unorm, write>;")
	assert.Contains(t, defs, "@group(0) @binding(1) var t_grid: texture_storage_2d<r32float, read_write>;")
}

func TestDefineStorageTextureErrors(t *testing.T) {
	b := NewBase(KindCompute)

	depth := resource.NewTexture("depth", 4, 4, wgpu.TextureFormatDepth24Plus)
	err := b.DefineBinding(0, 0, binding.New("t_out", "storage_texture/write_only", resource.NewTextureView(depth)))
	require.Error(t, err)
	assert.ErrorContains(t, err, "not usable as a texel format")

	tex := resource.NewTexture("target", 4, 4, wgpu.TextureFormatRGBA8Unorm)
	err = b.DefineBinding(0, 0, binding.New("t_out", "storage_texture/diagonal", resource.NewTextureView(tex)))
	require.Error(t, err)
	assert.ErrorContains(t, err, `unknown access "diagonal"`)
}

func TestDefineBindingUnknownType(t *testing.T) {
	b := NewBase(KindRender)
	buf := resource.NewBuffer("raw", make([]byte, 4), 1)

	err := b.DefineBinding(0, 0, binding.New("x", "mesh/thing", buf))
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown binding")
}

func TestDefineBindingsOrdersSlots(t *testing.T) {
	b := NewBase(KindCompute)
	newBuf := func(name string) *resource.Buffer {
		return resource.FromSlice(name, []float32{0}, wgpu.VertexFormatFloat32)
	}
	bindings := map[int]binding.Binding{
		2: binding.New("b_two", "buffer/storage", newBuf("two")),
		0: binding.New("b_zero", "buffer/storage", newBuf("zero")),
		1: binding.New("b_one", "buffer/storage", newBuf("one")),
	}
	require.NoError(t, b.DefineBindings(3, bindings))

	defs := b.CodeDefinitions()
	assert.Contains(t, defs, "@group(3) @binding(0) var<storage, read_write> b_zero:")
	assert.Less(t, strings.Index(defs, "b_zero:"), strings.Index(defs, "b_one:"))
	assert.Less(t, strings.Index(defs, "b_one:"), strings.Index(defs, "b_two:"))
}
