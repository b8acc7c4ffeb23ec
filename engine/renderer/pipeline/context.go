package pipeline

import (
	"github.com/calder-gfx/calder/engine/renderer/gpu"
	"github.com/calder-gfx/calder/engine/renderer/registry"
)

// Context bundles everything a container update consumes from the renderer:
// the device, the shader builder table and the caches shared by all
// containers on that device.
type Context struct {
	GPU     *gpu.Context
	Shaders *registry.Registry
	Modules *ModuleCache
	Layouts *LayoutCache
}

// NewContext creates a context over a GPU context with the default shader
// registry and fresh caches.
//
// Parameters:
//   - g: device and queue the containers create GPU objects with
//
// Returns:
//   - *Context: the update context
func NewContext(g *gpu.Context) *Context {
	return &Context{
		GPU:     g,
		Shaders: registry.Default,
		Modules: NewModuleCache(),
		Layouts: NewLayoutCache(0, nil),
	}
}
