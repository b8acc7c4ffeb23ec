package pipeline

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/calder-gfx/calder/engine/renderer/gpu"
)

// DefaultLayoutCacheSize bounds the pipeline layout cache when no size is
// given.
const DefaultLayoutCacheSize = 128

// LayoutCache memoizes pipeline layouts by the identity chain of their bind
// group layouts. Containers that recompose pipelines against unchanged bind
// group layouts reuse one pipeline layout instead of minting a new one per
// composition. Old entries are dropped least-recently-used.
type LayoutCache struct {
	cache  *lru.Cache[string, *wgpu.PipelineLayout]
	hits   uint64
	misses uint64
}

// NewLayoutCache creates a layout cache.
//
// Parameters:
//   - size: maximum number of retained layouts; non-positive picks
//     DefaultLayoutCacheSize
//   - onEvict: called with each dropped layout so the owner can release
//     it, may be nil
//
// Returns:
//   - *LayoutCache: the cache
func NewLayoutCache(size int, onEvict func(*wgpu.PipelineLayout)) *LayoutCache {
	if size <= 0 {
		size = DefaultLayoutCacheSize
	}
	// NewWithEvict only fails for non-positive sizes, clamped above.
	cache, _ := lru.NewWithEvict(size, func(_ string, layout *wgpu.PipelineLayout) {
		if onEvict != nil {
			onEvict(layout)
		}
	})
	return &LayoutCache{cache: cache}
}

// GetOrCreate returns the pipeline layout for the given bind group layout
// chain, creating and caching it on first sight.
//
// Parameters:
//   - device: the device to create with
//   - layouts: the bind group layouts, group 0 first
//
// Returns:
//   - *wgpu.PipelineLayout: the pipeline layout
//   - error: creation failure
func (c *LayoutCache) GetOrCreate(device gpu.Device, layouts []*wgpu.BindGroupLayout) (*wgpu.PipelineLayout, error) {
	key := layoutChainKey(layouts)
	if layout, ok := c.cache.Get(key); ok {
		c.hits++
		return layout, nil
	}
	c.misses++
	layout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, layout)
	return layout, nil
}

// Len reports how many layouts are currently retained.
func (c *LayoutCache) Len() int { return c.cache.Len() }

// Stats reports lookup hits and misses since creation.
func (c *LayoutCache) Stats() (hits, misses uint64) { return c.hits, c.misses }

func layoutChainKey(layouts []*wgpu.BindGroupLayout) string {
	var sb strings.Builder
	for _, layout := range layouts {
		fmt.Fprintf(&sb, "%p;", layout)
	}
	return sb.String()
}
