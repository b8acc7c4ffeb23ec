// Package registry maps (object kind, material kind) pairs to the shader
// builders that can draw them. Packages register their builders during
// program initialization; the renderer resolves objects through the table
// whenever a group sees the create aspect.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/calder-gfx/calder/engine/renderer/shader"
	"github.com/calder-gfx/calder/engine/scene"
)

// ShaderFn builds the shader instances that draw one world object. A single
// object may need several shaders, such as a compute pass feeding a render
// pass.
type ShaderFn func(obj scene.WorldObject) ([]shader.Shader, error)

type kindPair struct {
	object   scene.ObjectKind
	material scene.MaterialKind
}

func (p kindPair) String() string {
	return fmt.Sprintf("%s/%s", p.object, p.material)
}

// Registry is an explicit registration table. Register everything before
// rendering starts; lookups after that point need no synchronization.
type Registry struct {
	builders map[kindPair]ShaderFn
}

// New creates an empty registry.
//
// Returns:
//   - *Registry: a registry with no registered builders
func New() *Registry {
	return &Registry{builders: make(map[kindPair]ShaderFn)}
}

// Register binds a shader builder to a kind pair.
//
// Parameters:
//   - object: the geometry category
//   - material: the appearance category
//   - fn: the builder invoked for matching objects
//
// Returns:
//   - error: nil builder, or the pair is already registered
func (r *Registry) Register(object scene.ObjectKind, material scene.MaterialKind, fn ShaderFn) error {
	if fn == nil {
		return fmt.Errorf("nil shader builder for %s/%s", object, material)
	}
	pair := kindPair{object, material}
	if _, ok := r.builders[pair]; ok {
		return fmt.Errorf("shader builder already registered for %s", pair)
	}
	r.builders[pair] = fn
	return nil
}

// Lookup resolves the builder for an object's kind pair.
//
// Parameters:
//   - obj: the world object to resolve
//
// Returns:
//   - ShaderFn: the registered builder
//   - error: no builder registered for the pair; the message lists what is
//     registered
func (r *Registry) Lookup(obj scene.WorldObject) (ShaderFn, error) {
	pair := kindPair{obj.ObjectKind(), obj.MaterialKind()}
	fn, ok := r.builders[pair]
	if !ok {
		return nil, fmt.Errorf("no shader builder registered for object kind %q with material kind %q (registered: %s)",
			pair.object, pair.material, r.pairList())
	}
	return fn, nil
}

// Pairs returns the registered kind pairs as "object/material" strings in
// sorted order.
func (r *Registry) Pairs() []string {
	pairs := make([]string, 0, len(r.builders))
	for pair := range r.builders {
		pairs = append(pairs, pair.String())
	}
	sort.Strings(pairs)
	return pairs
}

func (r *Registry) pairList() string {
	pairs := r.Pairs()
	if len(pairs) == 0 {
		return "none"
	}
	return strings.Join(pairs, ", ")
}

// Default is the table the package-level Register and Lookup delegate to.
// Material packages register themselves against it from their init
// functions; tests build their own Registry.
var Default = New()

// Register binds a shader builder to a kind pair in the default registry.
//
// Parameters:
//   - object: the geometry category
//   - material: the appearance category
//   - fn: the builder invoked for matching objects
//
// Returns:
//   - error: nil builder, or the pair is already registered
func Register(object scene.ObjectKind, material scene.MaterialKind, fn ShaderFn) error {
	return Default.Register(object, material, fn)
}

// Lookup resolves the builder for an object's kind pair in the default
// registry.
//
// Parameters:
//   - obj: the world object to resolve
//
// Returns:
//   - ShaderFn: the registered builder
//   - error: no builder registered for the pair
func Lookup(obj scene.WorldObject) (ShaderFn, error) {
	return Default.Lookup(obj)
}
