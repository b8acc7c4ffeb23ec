package pipeline

import (
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/calder-gfx/calder/engine/renderer/gpu"
)

// ModuleCache memoizes compiled shader modules by their exact source text,
// so byte-identical sources share a single module across all containers on
// a device. Entries are never evicted; the cache lives as long as the
// device. It is safe for concurrent use so warm-up work can compile from
// several goroutines.
type ModuleCache struct {
	mu      sync.Mutex
	modules map[string]*wgpu.ShaderModule
	hits    uint64
	misses  uint64
}

// NewModuleCache creates an empty module cache.
//
// Returns:
//   - *ModuleCache: the cache
func NewModuleCache() *ModuleCache {
	return &ModuleCache{modules: make(map[string]*wgpu.ShaderModule)}
}

// GetOrCompile returns the module for the given WGSL source, compiling it
// on first sight. Failed compiles are not cached; a later call retries.
//
// Parameters:
//   - device: the device to compile with
//   - source: the complete WGSL source text
//
// Returns:
//   - *wgpu.ShaderModule: the compiled module
//   - error: compilation failure
func (c *ModuleCache) GetOrCompile(device gpu.Device, source string) (*wgpu.ShaderModule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if module, ok := c.modules[source]; ok {
		c.hits++
		return module, nil
	}
	c.misses++
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, err
	}
	c.modules[source] = module
	return module, nil
}

// Len reports how many distinct sources have been compiled.
func (c *ModuleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.modules)
}

// Stats reports lookup hits and misses since creation. Failed compiles
// count as misses.
func (c *ModuleCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
