// Package diagnostics collects renderer activity counters and periodic
// frame statistics (FPS, heap usage, GC pauses) for performance monitoring.
package diagnostics

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/calder-gfx/calder/common"
)

// Stats counts renderer activity since construction. The renderer owns one
// instance and bumps it as it works; a Collector folds the counters into
// its periodic log line. Not safe for concurrent mutation, matching the
// single-threaded renderer core.
type Stats struct {
	// GroupUpdates counts EnsureUpToDate calls that reached a group update.
	GroupUpdates uint64
	// UpdateFailures counts group updates that returned an error.
	UpdateFailures uint64
	// DrawCalls counts render container draws issued during pass recording.
	DrawCalls uint64
	// Dispatches counts compute container dispatches issued during pass
	// recording.
	Dispatches uint64
	// ResourceFlushes counts flat resources synced after group updates.
	ResourceFlushes uint64
	// WarmUps counts completed warm-up runs.
	WarmUps uint64
	// Recomputes counts recomputed aspects by label across all updates.
	Recomputes map[string]uint64

	// Cache lookup totals, refreshed by the renderer from its caches.
	ModuleCacheHits   uint64
	ModuleCacheMisses uint64
	LayoutCacheHits   uint64
	LayoutCacheMisses uint64
}

// NewStats creates a zeroed counter set.
//
// Returns:
//   - *Stats: the counters
func NewStats() *Stats {
	return &Stats{Recomputes: make(map[string]uint64)}
}

// CountRecomputes bumps the per-aspect counters for one update's recomputed
// label set.
//
// Parameters:
//   - labels: the aspect labels recomputed by the update
func (s *Stats) CountRecomputes(labels map[string]struct{}) {
	for label := range labels {
		s.Recomputes[label]++
	}
}

// HitRate returns hits as a percentage of all lookups, or 0 before the
// first lookup.
//
// Parameters:
//   - hits: cache hits
//   - misses: cache misses
//
// Returns:
//   - float64: hit percentage in [0, 100]
func HitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return 100 * float64(hits) / float64(total)
}

func (s *Stats) recomputeSummary() string {
	if len(s.Recomputes) == 0 {
		return "none"
	}
	labels := make([]string, 0, len(s.Recomputes))
	for label := range s.Recomputes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	var sb strings.Builder
	for i, label := range labels {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s:%d", label, s.Recomputes[label])
	}
	return sb.String()
}

// Collector tracks frame rate and memory statistics for performance
// monitoring. Outputs stats to the log at a fixed interval, with the
// renderer counters folded in when a Stats was attached.
type Collector struct {
	stats          *Stats
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewCollector creates a new Collector with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - stats: renderer counters to include in the log line, may be nil
//
// Returns:
//   - *Collector: the newly created collector instance
func NewCollector(stats *Stats) *Collector {
	return &Collector{
		stats:          stats,
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause
// times, total memory, and the renderer counters.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (c *Collector) Tick() bool {
	c.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(c.lastTime)

	if elapsed < c.updateInterval {
		return false
	}

	fps := float64(c.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&c.memStats)
	// Alloc: bytes of live heap objects. TotalAlloc: cumulative heap bytes,
	// increases forever, tracks churn. Sys: actual process footprint.
	allocMB := float64(c.memStats.Alloc) / 1024 / 1024
	sysMB := float64(c.memStats.Sys) / 1024 / 1024

	allocDelta := c.memStats.TotalAlloc - c.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := c.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses.
		lastPauseUs = c.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := c.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			pause := c.memStats.PauseNs[i%256] / 1000
			if pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	common.LogInfo("frame stats: fps=%.2f heap=%.2fMB alloc=%.2fMB/s gc=%d(last=%dµs max=%dµs) sys=%.2fMB",
		fps, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)
	if c.stats != nil {
		common.LogInfo("render stats: updates=%d failures=%d draws=%d dispatches=%d flushes=%d modules=%.0f%% layouts=%.0f%% recomputed=[%s]",
			c.stats.GroupUpdates, c.stats.UpdateFailures, c.stats.DrawCalls,
			c.stats.Dispatches, c.stats.ResourceFlushes,
			HitRate(c.stats.ModuleCacheHits, c.stats.ModuleCacheMisses),
			HitRate(c.stats.LayoutCacheHits, c.stats.LayoutCacheMisses),
			c.stats.recomputeSummary())
	}

	c.frameCount = 0
	c.lastTime = currentTime
	c.lastGCCount = gcCount
	c.lastTotalAlloc = c.memStats.TotalAlloc
	return true
}
