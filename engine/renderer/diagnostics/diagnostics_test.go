package diagnostics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsCountRecomputes(t *testing.T) {
	s := NewStats()
	s.CountRecomputes(map[string]struct{}{"create": {}, "resources": {}})
	s.CountRecomputes(map[string]struct{}{"resources": {}})

	assert.Equal(t, uint64(1), s.Recomputes["create"])
	assert.Equal(t, uint64(2), s.Recomputes["resources"])
}

func TestHitRate(t *testing.T) {
	assert.Equal(t, 0.0, HitRate(0, 0))
	assert.Equal(t, 75.0, HitRate(3, 1))
	assert.Equal(t, 100.0, HitRate(5, 0))
}

func TestRecomputeSummary(t *testing.T) {
	s := NewStats()
	assert.Equal(t, "none", s.recomputeSummary())

	s.Recomputes["resources"] = 2
	s.Recomputes["create"] = 1
	assert.Equal(t, "create:1 resources:2", s.recomputeSummary())
}

func TestCollectorTicksAtInterval(t *testing.T) {
	c := NewCollector(nil)
	c.updateInterval = time.Hour
	assert.False(t, c.Tick())
	assert.Equal(t, 1, c.frameCount)

	c.updateInterval = 0
	assert.True(t, c.Tick())
	assert.Equal(t, 0, c.frameCount)
}

func TestCollectorLogsRendererCounters(t *testing.T) {
	s := NewStats()
	s.GroupUpdates = 4
	s.DrawCalls = 12
	s.ModuleCacheHits = 3
	s.ModuleCacheMisses = 1
	s.CountRecomputes(map[string]struct{}{"compose_pipelines": {}})

	c := NewCollector(s)
	c.updateInterval = 0
	assert.True(t, c.Tick())
}
