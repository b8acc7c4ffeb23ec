// Package resource holds the CPU-side buffers and textures world objects
// hand to their shaders. Each resource keeps a content revision next to the
// revision last pushed to the device, so the renderer can flush exactly the
// resources that changed since the previous frame.
package resource

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/calder-gfx/calder/common"
	"github.com/calder-gfx/calder/engine/renderer/gpu"
)

// Syncable is a resource that can lazily create its GPU object and push
// pending content to the device.
type Syncable interface {
	// EnsureSynced creates the GPU object if needed and uploads the content
	// when the revision is ahead of what the device holds. It is a no-op
	// when nothing changed.
	//
	// Parameters:
	//   - ctx: device and queue to create and upload with
	//
	// Returns:
	//   - error: GPU object creation failure
	EnsureSynced(ctx *gpu.Context) error
}

// Buffer is a CPU-held byte buffer with a lazily created GPU counterpart.
// The data slice may be an unsafe view into caller memory (FromSlice,
// FromStruct); mutate through that memory and call Touch to schedule a
// re-upload.
type Buffer struct {
	label     string
	data      []byte
	itemCount int

	format      wgpu.VertexFormat
	indexFormat wgpu.IndexFormat
	structType  reflect.Type

	usage wgpu.BufferUsage

	vertexByteOffset uint64
	vertexByteSize   uint64

	rev    uint64
	synced uint64
	gpu    *wgpu.Buffer
}

// NewBuffer creates a buffer over raw bytes.
//
// Parameters:
//   - label: debug label for the GPU object
//   - data: buffer contents (retained, not copied)
//   - itemCount: number of logical items in data
//
// Returns:
//   - *Buffer: the buffer, pending its first upload
func NewBuffer(label string, data []byte, itemCount int) *Buffer {
	return &Buffer{
		label:          label,
		data:           data,
		itemCount:      itemCount,
		rev:            1,
		vertexByteSize: uint64(len(data)),
	}
}

// FromSlice creates a buffer viewing a typed slice without copying. The
// buffer shares memory with items; call Touch after mutating them.
//
// Parameters:
//   - label: debug label for the GPU object
//   - items: slice backing the buffer
//   - format: per-item vertex format, used when bound as a vertex buffer
//
// Returns:
//   - *Buffer: the buffer, pending its first upload
func FromSlice[T any](label string, items []T, format wgpu.VertexFormat) *Buffer {
	b := NewBuffer(label, common.SliceToBytes(items), len(items))
	b.format = format
	return b
}

// FromStruct creates a single-item buffer viewing a struct without copying,
// for uniform data. The buffer shares memory with v; call Touch after
// mutating it.
//
// Parameters:
//   - label: debug label for the GPU object
//   - v: pointer to the struct backing the buffer
//
// Returns:
//   - *Buffer: the buffer, pending its first upload
func FromStruct[T any](label string, v *T) *Buffer {
	b := NewBuffer(label, common.StructToBytes(v), 1)
	b.structType = reflect.TypeOf(*v)
	return b
}

// IndexInt is the set of element types an index buffer accepts. Signed
// elements are bound with the unsigned format of the same width.
type IndexInt interface {
	~uint16 | ~int16 | ~uint32 | ~int32
}

// FromIndices creates an index buffer viewing a typed slice without copying.
// The wgpu index format is derived from the element width.
//
// Parameters:
//   - label: debug label for the GPU object
//   - indices: slice backing the buffer
//
// Returns:
//   - *Buffer: the buffer, pending its first upload
func FromIndices[T IndexInt](label string, indices []T) *Buffer {
	b := NewBuffer(label, common.SliceToBytes(indices), len(indices))
	var zero T
	switch unsafe.Sizeof(zero) {
	case 2:
		b.indexFormat = wgpu.IndexFormatUint16
	default:
		b.indexFormat = wgpu.IndexFormatUint32
	}
	return b
}

// Label returns the buffer's debug label.
func (b *Buffer) Label() string { return b.label }

// Bytes returns the buffer contents. The slice may alias caller memory.
func (b *Buffer) Bytes() []byte { return b.data }

// NBytes returns the content size in bytes.
func (b *Buffer) NBytes() int { return len(b.data) }

// ItemCount returns the number of logical items.
func (b *Buffer) ItemCount() int { return b.itemCount }

// Format returns the per-item vertex format, or zero when the buffer was
// not created for vertex use.
func (b *Buffer) Format() wgpu.VertexFormat { return b.format }

// IndexFormat returns the wgpu index format for index buffers, or zero.
func (b *Buffer) IndexFormat() wgpu.IndexFormat { return b.indexFormat }

// StructType returns the Go struct type backing a FromStruct buffer, or nil.
// Uniform shader codegen reflects over it to emit the WGSL struct.
func (b *Buffer) StructType() reflect.Type { return b.structType }

// ArrayStride returns the byte stride of one item.
//
// Returns:
//   - uint64: NBytes / ItemCount, or 0 for an empty buffer
func (b *Buffer) ArrayStride() uint64 {
	if b.itemCount == 0 {
		return 0
	}
	return uint64(len(b.data) / b.itemCount)
}

// AddUsage accumulates usage flags ahead of GPU creation. Flags added after
// the GPU buffer exists have no effect.
//
// Parameters:
//   - usage: flags to union into the buffer's usage
func (b *Buffer) AddUsage(usage wgpu.BufferUsage) {
	b.usage |= usage
}

// Usage returns the accumulated usage flags.
func (b *Buffer) Usage() wgpu.BufferUsage { return b.usage }

// SetVertexByteRange restricts the byte window bound at draw time.
//
// Parameters:
//   - offset: byte offset of the window
//   - size: byte size of the window
func (b *Buffer) SetVertexByteRange(offset, size uint64) {
	b.vertexByteOffset = offset
	b.vertexByteSize = size
}

// VertexByteRange returns the byte window bound at draw time. The default
// covers the whole buffer.
//
// Returns:
//   - uint64: byte offset
//   - uint64: byte size
func (b *Buffer) VertexByteRange() (uint64, uint64) {
	return b.vertexByteOffset, b.vertexByteSize
}

// Touch bumps the content revision so the next flush re-uploads the data.
func (b *Buffer) Touch() {
	b.rev++
}

// Rev returns the content revision.
func (b *Buffer) Rev() uint64 { return b.rev }

// GPU returns the device buffer, or nil before the first sync.
func (b *Buffer) GPU() *wgpu.Buffer { return b.gpu }

// EnsureSynced lazily creates the GPU buffer with the accumulated usage
// (plus CopyDst) and uploads the content when the revision advanced.
//
// Parameters:
//   - ctx: device and queue to create and upload with
//
// Returns:
//   - error: buffer allocation failure
func (b *Buffer) EnsureSynced(ctx *gpu.Context) error {
	if b.gpu == nil {
		buf, err := ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            b.label,
			Size:             uint64(len(b.data)),
			Usage:            b.usage | wgpu.BufferUsageCopyDst,
			MappedAtCreation: false,
		})
		if err != nil {
			return fmt.Errorf("create buffer %q: %w", b.label, err)
		}
		b.gpu = buf
		b.synced = 0
	}
	if b.rev > b.synced {
		ctx.Queue.WriteBuffer(b.gpu, 0, b.data)
		b.synced = b.rev
	}
	return nil
}

var _ Syncable = &Buffer{}
