package pipeline

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calder-gfx/calder/engine/renderer/gpu/gputest"
)

func newTestGroupLayouts(t *testing.T, device *gputest.Device, n int) []*wgpu.BindGroupLayout {
	layouts := make([]*wgpu.BindGroupLayout, n)
	for i := range layouts {
		layout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{})
		require.NoError(t, err)
		layouts[i] = layout
	}
	return layouts
}

func TestLayoutCacheReusesSameChain(t *testing.T) {
	device := gputest.NewDevice()
	cache := NewLayoutCache(0, nil)
	chain := newTestGroupLayouts(t, device, 2)

	first, err := cache.GetOrCreate(device, chain)
	require.NoError(t, err)
	second, err := cache.GetOrCreate(device, chain)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, device.PipelineLayoutDescs, 1)
	assert.Equal(t, 1, cache.Len())
}

func TestLayoutCacheDistinguishesChains(t *testing.T) {
	device := gputest.NewDevice()
	cache := NewLayoutCache(0, nil)
	layouts := newTestGroupLayouts(t, device, 2)

	_, err := cache.GetOrCreate(device, layouts)
	require.NoError(t, err)
	_, err = cache.GetOrCreate(device, []*wgpu.BindGroupLayout{layouts[1], layouts[0]})
	require.NoError(t, err)
	_, err = cache.GetOrCreate(device, layouts[:1])
	require.NoError(t, err)

	assert.Len(t, device.PipelineLayoutDescs, 3)
	assert.Equal(t, 3, cache.Len())
}

func TestLayoutCacheCachesEmptyChain(t *testing.T) {
	device := gputest.NewDevice()
	cache := NewLayoutCache(0, nil)

	first, err := cache.GetOrCreate(device, nil)
	require.NoError(t, err)
	second, err := cache.GetOrCreate(device, nil)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, device.PipelineLayoutDescs, 1)
}

func TestLayoutCacheEvictsLeastRecentlyUsed(t *testing.T) {
	device := gputest.NewDevice()
	var evicted []*wgpu.PipelineLayout
	cache := NewLayoutCache(1, func(layout *wgpu.PipelineLayout) {
		evicted = append(evicted, layout)
	})
	chainA := newTestGroupLayouts(t, device, 1)
	chainB := newTestGroupLayouts(t, device, 1)

	first, err := cache.GetOrCreate(device, chainA)
	require.NoError(t, err)
	_, err = cache.GetOrCreate(device, chainB)
	require.NoError(t, err)

	require.Len(t, evicted, 1)
	assert.Same(t, first, evicted[0])
	assert.Equal(t, 1, cache.Len())

	// The evicted chain is rebuilt on demand.
	_, err = cache.GetOrCreate(device, chainA)
	require.NoError(t, err)
	assert.Len(t, device.PipelineLayoutDescs, 3)
}
