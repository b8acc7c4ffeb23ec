package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calder-gfx/calder/engine/renderer/gpu/gputest"
)

func TestModuleCacheSharesIdenticalSource(t *testing.T) {
	device := gputest.NewDevice()
	cache := NewModuleCache()

	first, err := cache.GetOrCompile(device, "fn main() {}")
	require.NoError(t, err)
	second, err := cache.GetOrCompile(device, "fn main() {}")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, device.ShaderModuleDescs, 1)
	assert.Equal(t, 1, cache.Len())
}

func TestModuleCacheDistinguishesSources(t *testing.T) {
	device := gputest.NewDevice()
	cache := NewModuleCache()

	_, err := cache.GetOrCompile(device, "fn main() {}")
	require.NoError(t, err)
	_, err = cache.GetOrCompile(device, "fn main() { }")
	require.NoError(t, err)

	assert.Len(t, device.ShaderModuleDescs, 2)
	assert.Equal(t, 2, cache.Len())
}

func TestModuleCacheDoesNotCacheFailures(t *testing.T) {
	device := gputest.NewDevice()
	cache := NewModuleCache()

	device.ShaderModuleErr = errors.New("parse error")
	_, err := cache.GetOrCompile(device, "fn main() {}")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	device.ShaderModuleErr = nil
	module, err := cache.GetOrCompile(device, "fn main() {}")
	require.NoError(t, err)
	assert.NotNil(t, module)
	assert.Equal(t, 1, cache.Len())
}
