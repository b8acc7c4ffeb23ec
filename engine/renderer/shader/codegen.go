// codegen.go generates the WGSL declarations for bindings: uniform structs
// reflected from the bound Go struct, storage buffer accessors, and
// sampler/texture/storage-texture variables. Generated text lands in the
// Base definition stores and so feeds both the composed source and the
// shader hash.
package shader

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/calder-gfx/calder/engine/renderer/binding"
	"github.com/calder-gfx/calder/engine/renderer/resource"
)

// DefineBindings defines every binding of one group, lowest slot first.
//
// Parameters:
//   - group: the bind group index
//   - bindings: bindings keyed by slot
//
// Returns:
//   - error: the first definition failure
func (b *Base) DefineBindings(group int, bindings map[int]binding.Binding) error {
	for _, slot := range sortedIntKeys(bindings) {
		if err := b.DefineBinding(group, slot, bindings[slot]); err != nil {
			return err
		}
	}
	return nil
}

// DefineBinding generates the WGSL declaration for one binding and
// registers it under the binding's name. Uniform bindings also register a
// Struct_<name> typedef.
//
// Parameters:
//   - group: the bind group index
//   - slot: the binding index within the group
//   - bnd: the binding to declare
//
// Returns:
//   - error: unsupported binding type, resource kind, or field layout
func (b *Base) DefineBinding(group, slot int, bnd binding.Binding) error {
	switch {
	case bnd.Type == "buffer/uniform":
		return b.defineUniform(group, slot, bnd)
	case strings.HasPrefix(bnd.Type, "buffer"):
		return b.defineStorageBuffer(group, slot, bnd)
	case strings.HasPrefix(bnd.Type, "sampler"):
		return b.defineSampler(group, slot, bnd)
	case strings.HasPrefix(bnd.Type, "storage_texture"):
		return b.defineStorageTexture(group, slot, bnd)
	case strings.HasPrefix(bnd.Type, "texture"):
		return b.defineTexture(group, slot, bnd)
	default:
		return fmt.Errorf("unknown binding %q with type %q", bnd.Name, bnd.Type)
	}
}

func (b *Base) defineUniform(group, slot int, bnd binding.Binding) error {
	buf, ok := bnd.Resource.(*resource.Buffer)
	if !ok || buf.StructType() == nil {
		return fmt.Errorf("uniform binding %q needs a struct-backed buffer", bnd.Name)
	}
	structType := buf.StructType()
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("uniform binding %q needs a struct-backed buffer, got %s", bnd.Name, structType.Kind())
	}

	structName := "Struct_" + bnd.Name
	var sb strings.Builder
	fmt.Fprintf(&sb, "struct %s {\n", structName)
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if strings.HasPrefix(field.Name, "_") {
			continue
		}
		wgslType, alignment, err := uniformFieldType(field.Type)
		if err != nil {
			return fmt.Errorf("uniform binding %q field %s: %w", bnd.Name, field.Name, err)
		}
		if wgslType == "" {
			continue
		}
		if field.Offset%uintptr(alignment) != 0 {
			return fmt.Errorf("struct alignment error: %s.%s alignment must be %d", bnd.Name, field.Name, alignment)
		}
		fmt.Fprintf(&sb, "    %s: %s,\n", fieldName(field), wgslType)
	}
	sb.WriteString("};")
	b.typedefs.set(structName, sb.String())

	b.bindings.set(bnd.Name, fmt.Sprintf("@group(%d) @binding(%d) var<uniform> %s: %s;", group, slot, bnd.Name, structName))
	return nil
}

// fieldName lowercases the first rune so exported Go fields read as
// conventional WGSL identifiers.
func fieldName(field reflect.StructField) string {
	name := field.Name
	return strings.ToLower(name[:1]) + name[1:]
}

// uniformFieldType maps a Go struct field type to its WGSL type and
// alignment. Supported: float32/uint32/int32 scalars, [2..4]scalar vectors,
// [cols][rows]scalar matrices (2..4 each), and arrays of scalars or vectors
// when the outer length exceeds 4. A zero-length array yields "" and is
// skipped.
func uniformFieldType(t reflect.Type) (string, int, error) {
	if scalar := scalarTypeName(t.Kind()); scalar != "" {
		return scalar, 4, nil
	}
	if t.Kind() != reflect.Array {
		return "", 0, fmt.Errorf("unsupported type %s", t)
	}

	n := t.Len()
	elem := t.Elem()
	if scalar := scalarTypeName(elem.Kind()); scalar != "" {
		switch {
		case n == 0:
			return "", 0, nil
		case n == 1:
			return scalar, 4, nil
		case n <= 4:
			return fmt.Sprintf("vec%d<%s>", n, scalar), vecAlignment(n), nil
		default:
			return fmt.Sprintf("array<%s,%d>", scalar, n), 4, nil
		}
	}
	if elem.Kind() == reflect.Array {
		scalar := scalarTypeName(elem.Elem().Kind())
		m := elem.Len()
		if scalar == "" || m < 2 || m > 4 {
			return "", 0, fmt.Errorf("unsupported type %s", t)
		}
		switch {
		case n == 0:
			return "", 0, nil
		case n >= 2 && n <= 4:
			return fmt.Sprintf("mat%dx%d<%s>", n, m, scalar), vecAlignment(m), nil
		case n > 4:
			return fmt.Sprintf("array<vec%d<%s>,%d>", m, scalar, n), vecAlignment(m), nil
		}
	}
	return "", 0, fmt.Errorf("unsupported type %s", t)
}

func scalarTypeName(k reflect.Kind) string {
	switch k {
	case reflect.Float32:
		return "f32"
	case reflect.Uint32:
		return "u32"
	case reflect.Int32:
		return "i32"
	default:
		return ""
	}
}

func vecAlignment(n int) int {
	if n < 3 {
		return 8
	}
	return 16
}

func (b *Base) defineStorageBuffer(group, slot int, bnd binding.Binding) error {
	buf, ok := bnd.Resource.(*resource.Buffer)
	if !ok {
		return fmt.Errorf("storage binding %q needs a buffer resource", bnd.Name)
	}
	parts, ok := bufferFormatMap[buf.Format()]
	if !ok {
		return fmt.Errorf("storage binding %q format not supported, element stride must be 4 bytes", bnd.Name)
	}

	// A vec3 element has storage alignment 16, so the buffer is bound as a
	// flat scalar array and the accessor assembles the vector.
	elementType := fmt.Sprintf("vec%d<%s>", parts.channels, parts.scalar)
	boundType := elementType
	if parts.channels == 1 {
		elementType = parts.scalar
		boundType = parts.scalar
	} else if parts.channels == 3 {
		boundType = parts.scalar
	}

	access := "read_write"
	if strings.Contains(bnd.Type, "read_only") {
		access = "read"
	}

	var body string
	switch {
	case boundType == elementType:
		body = fmt.Sprintf(" return %s[i];", bnd.Name)
	case parts.channels == 2:
		body = fmt.Sprintf(" return %s( %s[i * 2], %s[i * 2 + 1] );", elementType, bnd.Name, bnd.Name)
	case parts.channels == 3:
		body = fmt.Sprintf(" return %s( %s[i * 3], %s[i * 3 + 1], %s[i * 3 + 2] );", elementType, bnd.Name, bnd.Name, bnd.Name)
	default:
		body = fmt.Sprintf(" return %s( %s[i * 4], %s[i * 4 + 1], %s[i * 4 + 2], %s[i * 4 + 3] );", elementType, bnd.Name, bnd.Name, bnd.Name, bnd.Name)
	}

	code := fmt.Sprintf("@group(%d) @binding(%d) var<storage, %s> %s: array<%s>;\n", group, slot, access, bnd.Name, boundType)
	code += fmt.Sprintf("fn load_%s (i: i32) -> %s {%s }", bnd.Name, elementType, body)
	b.bindings.set(bnd.Name, code)
	return nil
}

func (b *Base) defineSampler(group, slot int, bnd binding.Binding) error {
	samplerType := "sampler"
	if strings.HasSuffix(bnd.Type, "/comparison") {
		samplerType = "sampler_comparison"
	}
	b.bindings.set(bnd.Name, fmt.Sprintf("@group(%d) @binding(%d) var %s: %s;", group, slot, bnd.Name, samplerType))
	return nil
}

func (b *Base) defineTexture(group, slot int, bnd binding.Binding) error {
	view, ok := bnd.Resource.(*resource.TextureView)
	if !ok {
		return fmt.Errorf("texture binding %q needs a texture view resource", bnd.Name)
	}
	dim, ok := viewDimSuffixMap[view.Dimension()]
	if !ok {
		return fmt.Errorf("texture binding %q has unsupported view dimension %d", bnd.Name, view.Dimension())
	}
	sampleType, err := binding.AutoSampleType(view.Format())
	if err != nil {
		return fmt.Errorf("texture binding %q: %w", bnd.Name, err)
	}

	var decl string
	switch sampleType {
	case wgpu.TextureSampleTypeDepth:
		decl = fmt.Sprintf("texture_depth_%s", dim)
	case wgpu.TextureSampleTypeUint:
		decl = fmt.Sprintf("texture_%s<u32>", dim)
	case wgpu.TextureSampleTypeSint:
		decl = fmt.Sprintf("texture_%s<i32>", dim)
	default:
		decl = fmt.Sprintf("texture_%s<f32>", dim)
	}
	b.bindings.set(bnd.Name, fmt.Sprintf("@group(%d) @binding(%d) var %s: %s;", group, slot, bnd.Name, decl))
	return nil
}

func (b *Base) defineStorageTexture(group, slot int, bnd binding.Binding) error {
	view, ok := bnd.Resource.(*resource.TextureView)
	if !ok {
		return fmt.Errorf("storage texture binding %q needs a texture view resource", bnd.Name)
	}
	dim, ok := viewDimSuffixMap[view.Dimension()]
	if !ok {
		return fmt.Errorf("storage texture binding %q has unsupported view dimension %d", bnd.Name, view.Dimension())
	}
	texel, ok := texelFormatMap[view.Format()]
	if !ok {
		return fmt.Errorf("storage texture binding %q format not usable as a texel format", bnd.Name)
	}
	subtype := bnd.Type[strings.Index(bnd.Type, "/")+1:]
	access, ok := storageAccessKeywordMap[subtype]
	if !ok {
		return fmt.Errorf("storage texture binding %q has unknown access %q", bnd.Name, subtype)
	}
	b.bindings.set(bnd.Name, fmt.Sprintf("@group(%d) @binding(%d) var %s: texture_storage_%s<%s, %s>;", group, slot, bnd.Name, dim, texel, access))
	return nil
}

func sortedIntKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
