// formats.go maps wgpu enum values to the WGSL spellings the binding
// code generator emits: scalar type and channel count for buffer formats,
// texel format strings for storage textures, and view dimension suffixes
// for texture declarations.
package shader

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// vertexFormatParts describes a buffer element format as a WGSL scalar type
// plus a channel count.
type vertexFormatParts struct {
	scalar   string
	channels int
}

// bufferFormatMap covers the formats valid for storage buffer accessors.
// Storage buffer elements need a 4-byte scalar stride, so 8- and 16-bit
// formats are absent; binding one is a configuration error.
var bufferFormatMap = map[wgpu.VertexFormat]vertexFormatParts{
	wgpu.VertexFormatFloat32:   {"f32", 1},
	wgpu.VertexFormatFloat32x2: {"f32", 2},
	wgpu.VertexFormatFloat32x3: {"f32", 3},
	wgpu.VertexFormatFloat32x4: {"f32", 4},
	wgpu.VertexFormatUint32:    {"u32", 1},
	wgpu.VertexFormatUint32x2:  {"u32", 2},
	wgpu.VertexFormatUint32x3:  {"u32", 3},
	wgpu.VertexFormatUint32x4:  {"u32", 4},
	wgpu.VertexFormatSint32:    {"i32", 1},
	wgpu.VertexFormatSint32x2:  {"i32", 2},
	wgpu.VertexFormatSint32x3:  {"i32", 3},
	wgpu.VertexFormatSint32x4:  {"i32", 4},
}

// texelFormatMap maps texture formats to their WGSL texel format strings.
// These are the formats valid for storage textures per the WGSL
// specification.
var texelFormatMap = map[wgpu.TextureFormat]string{
	wgpu.TextureFormatRGBA8Unorm:  "rgba8unorm",
	wgpu.TextureFormatRGBA8Snorm:  "rgba8snorm",
	wgpu.TextureFormatRGBA8Uint:   "rgba8uint",
	wgpu.TextureFormatRGBA8Sint:   "rgba8sint",
	wgpu.TextureFormatRGBA16Uint:  "rgba16uint",
	wgpu.TextureFormatRGBA16Sint:  "rgba16sint",
	wgpu.TextureFormatRGBA16Float: "rgba16float",
	wgpu.TextureFormatR32Uint:     "r32uint",
	wgpu.TextureFormatR32Sint:     "r32sint",
	wgpu.TextureFormatR32Float:    "r32float",
	wgpu.TextureFormatRG32Uint:    "rg32uint",
	wgpu.TextureFormatRG32Sint:    "rg32sint",
	wgpu.TextureFormatRG32Float:   "rg32float",
	wgpu.TextureFormatRGBA32Uint:  "rgba32uint",
	wgpu.TextureFormatRGBA32Sint:  "rgba32sint",
	wgpu.TextureFormatRGBA32Float: "rgba32float",
	wgpu.TextureFormatBGRA8Unorm:  "bgra8unorm",
}

// viewDimSuffixMap maps view dimensions to the suffix of the WGSL texture
// type name (texture_2d, texture_storage_2d_array, ...).
var viewDimSuffixMap = map[wgpu.TextureViewDimension]string{
	wgpu.TextureViewDimension1D:        "1d",
	wgpu.TextureViewDimension2D:        "2d",
	wgpu.TextureViewDimension2DArray:   "2d_array",
	wgpu.TextureViewDimension3D:        "3d",
	wgpu.TextureViewDimensionCube:      "cube",
	wgpu.TextureViewDimensionCubeArray: "cube_array",
}

// storageAccessKeywordMap maps binding subtype names to WGSL access mode
// keywords.
var storageAccessKeywordMap = map[string]string{
	"write_only": "write",
	"read_only":  "read",
	"read_write": "read_write",
}
