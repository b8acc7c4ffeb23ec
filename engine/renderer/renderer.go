package renderer

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"

	"github.com/calder-gfx/calder/common"
	"github.com/calder-gfx/calder/engine/renderer/diagnostics"
	"github.com/calder-gfx/calder/engine/renderer/environment"
	"github.com/calder-gfx/calder/engine/renderer/gpu"
	"github.com/calder-gfx/calder/engine/renderer/pipeline"
	"github.com/calder-gfx/calder/engine/renderer/registry"
	"github.com/calder-gfx/calder/engine/renderer/shader"
	"github.com/calder-gfx/calder/engine/scene"
)

// warmQueueSize is the warm-up pool's task queue capacity.
const warmQueueSize = 256

// renderer is the implementation of the Renderer interface.
type renderer struct {
	id       string
	ctx      *pipeline.Context
	settings Settings
	groups   map[scene.WorldObject]*pipeline.Group
	stats    *diagnostics.Stats
	warmPool worker.DynamicWorkerPool

	// Pre-creation config collected from builder options
	pendingSettings *Settings
	pendingRegistry *registry.Registry
}

// Renderer drives pipeline groups for world objects. It keeps each object's
// containers in sync with the object's declarations, flushes their resources
// to the device, and records draw and dispatch calls into passes.
//
// A Renderer is not safe for concurrent use. The module cache is the one
// internally guarded structure, which is what lets WarmUp compose shader
// sources on a worker pool while everything else stays on one goroutine.
type Renderer interface {
	// EnsureUpToDate brings the object's pipeline group in line with its
	// current declarations and flushes the group's flat resources to the
	// device. The first call for an object creates its group. A failed
	// update leaves the affected container broken (it skips its draws)
	// until a later update with fresh changes completes.
	//
	// Parameters:
	//   - obj: the world object to update
	//   - env: the render environment the object will draw into
	//
	// Returns:
	//   - error: declaration, templating, GPU object or resource upload
	//     failure
	EnsureUpToDate(obj scene.WorldObject, env environment.Environment) error

	// RecordRenderPass records draw calls for the given objects into a
	// render pass. Objects without a group and containers whose mask does
	// not intersect the given mask are skipped.
	//
	// Parameters:
	//   - pass: the open render pass encoder
	//   - env: the environment the pass belongs to
	//   - passIndex: the environment pass being recorded
	//   - mask: which transparency classes to draw
	//   - objects: the objects to draw, in draw order
	RecordRenderPass(pass gpu.RenderPass, env environment.Environment, passIndex int, mask shader.RenderMask, objects ...scene.WorldObject)

	// RecordComputePass records dispatches for the given objects into a
	// compute pass. Objects without a group are skipped.
	//
	// Parameters:
	//   - pass: the open compute pass encoder
	//   - objects: the objects to dispatch, in order
	RecordComputePass(pass gpu.ComputePass, objects ...scene.WorldObject)

	// WarmUp pre-populates the module cache for the given objects and
	// environment before the first frame. Shader sources are composed in
	// parallel on the worker pool; compilation happens on the calling
	// goroutine. Later container updates then hit the cache instead of
	// compiling at draw time.
	//
	// Parameters:
	//   - env: the environment whose passes to compose for
	//   - objects: the objects to warm
	//
	// Returns:
	//   - error: missing shader registration, builder failure, templating
	//     failure or compilation failure
	WarmUp(env environment.Environment, objects ...scene.WorldObject) error

	// Forget drops the pipeline group for an object that left the scene.
	// A later EnsureUpToDate for the same object rebuilds from scratch.
	//
	// Parameters:
	//   - obj: the world object to forget
	Forget(obj scene.WorldObject)

	// Context exposes the update context: device, shader registry, module
	// cache and layout cache.
	//
	// Returns:
	//   - *pipeline.Context: the renderer's update context
	Context() *pipeline.Context

	// Stats exposes the renderer's activity counters for diagnostics.
	//
	// Returns:
	//   - *diagnostics.Stats: the live counters
	Stats() *diagnostics.Stats

	// Settings returns the settings the renderer was built with.
	//
	// Returns:
	//   - Settings: the effective settings
	Settings() Settings
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer on the given GPU context.
//
// Parameters:
//   - g: the device, queue and optional surface to render with
//   - options: optional configuration applied during construction
//
// Returns:
//   - Renderer: the new renderer
func NewRenderer(g *gpu.Context, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		id:     uuid.NewString(),
		groups: make(map[scene.WorldObject]*pipeline.Group),
		stats:  diagnostics.NewStats(),
	}

	// Apply options first so the settings are in hand before the caches
	// and the warm-up pool are sized.
	for _, opt := range options {
		opt(r)
	}

	r.settings = DefaultSettings()
	if r.pendingSettings != nil {
		r.settings = *r.pendingSettings
	}
	r.settings.applyLogLevel()

	shaders := registry.Default
	if r.pendingRegistry != nil {
		shaders = r.pendingRegistry
	}

	r.ctx = &pipeline.Context{
		GPU:     g,
		Shaders: shaders,
		Modules: pipeline.NewModuleCache(),
		Layouts: pipeline.NewLayoutCache(r.settings.LayoutCacheSize, releaseLayout),
	}
	r.warmPool = worker.NewDynamicWorkerPool(max(r.settings.WarmUpWorkers, 1), warmQueueSize, 1*time.Second)

	common.LogDebug("renderer %s ready: warmup_workers=%d layout_cache=%d",
		r.id, r.settings.WarmUpWorkers, r.settings.LayoutCacheSize)
	return r
}

func releaseLayout(layout *wgpu.PipelineLayout) {
	layout.Release()
}

func (r *renderer) EnsureUpToDate(obj scene.WorldObject, env environment.Environment) error {
	group, ok := r.groups[obj]
	changed := obj.Tracker().PopChanged()
	if !ok {
		group = pipeline.NewGroup()
		r.groups[obj] = group
		changed[pipeline.AspectCreate] = struct{}{}
	}

	r.stats.GroupUpdates++
	if err := group.Update(obj, env, r.ctx, changed); err != nil {
		r.stats.UpdateFailures++
		common.LogWarn("%s/%s update failed: %v", obj.ObjectKind(), obj.MaterialKind(), err)
		return err
	}
	r.stats.CountRecomputes(changed)

	for _, res := range group.FlatResources() {
		if err := res.EnsureSynced(r.ctx.GPU); err != nil {
			r.stats.UpdateFailures++
			return fmt.Errorf("flush %s/%s resources: %w", obj.ObjectKind(), obj.MaterialKind(), err)
		}
		r.stats.ResourceFlushes++
	}
	r.refreshCacheStats()
	return nil
}

func (r *renderer) RecordRenderPass(pass gpu.RenderPass, env environment.Environment, passIndex int, mask shader.RenderMask, objects ...scene.WorldObject) {
	for _, obj := range objects {
		group, ok := r.groups[obj]
		if !ok {
			continue
		}
		for _, c := range group.Renders() {
			c.Draw(pass, env, passIndex, mask)
			r.stats.DrawCalls++
		}
	}
}

func (r *renderer) RecordComputePass(pass gpu.ComputePass, objects ...scene.WorldObject) {
	for _, obj := range objects {
		group, ok := r.groups[obj]
		if !ok {
			continue
		}
		for _, c := range group.Computes() {
			c.Dispatch(pass)
			r.stats.Dispatches++
		}
	}
}

func (r *renderer) WarmUp(env environment.Environment, objects ...scene.WorldObject) error {
	type warmJob struct {
		shader shader.Shader
		extra  *shader.Vars
	}

	var jobs []warmJob
	for _, obj := range objects {
		build, err := r.ctx.Shaders.Lookup(obj)
		if err != nil {
			return err
		}
		shaders, err := build(obj)
		if err != nil {
			return fmt.Errorf("build %s/%s shaders: %w", obj.ObjectKind(), obj.MaterialKind(), err)
		}
		for _, s := range shaders {
			if s.Kind() == shader.KindCompute {
				jobs = append(jobs, warmJob{shader: s})
				continue
			}
			for passIndex := 0; passIndex < env.PassCount(); passIndex++ {
				if len(env.ColorTargets(passIndex)) == 0 {
					continue
				}
				jobs = append(jobs, warmJob{shader: s, extra: env.ExtraVars(passIndex)})
			}
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	sources := make([]string, len(jobs))
	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		r.warmPool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				sources[i], errs[i] = job.shader.GenerateWGSL(job.extra)
				return nil, nil
			},
		})
	}
	wg.Wait()

	for i := range jobs {
		if errs[i] != nil {
			return errs[i]
		}
		if _, err := r.ctx.Modules.GetOrCompile(r.ctx.GPU.Device, sources[i]); err != nil {
			return err
		}
	}
	r.stats.WarmUps++
	r.refreshCacheStats()
	common.LogDebug("renderer %s warmed %d sources for %d objects", r.id, len(jobs), len(objects))
	return nil
}

func (r *renderer) Forget(obj scene.WorldObject) {
	delete(r.groups, obj)
}

func (r *renderer) Context() *pipeline.Context { return r.ctx }

func (r *renderer) Stats() *diagnostics.Stats { return r.stats }

func (r *renderer) Settings() Settings { return r.settings }

// refreshCacheStats copies the live cache counters into the stats so a
// diagnostics collector sees current hit rates.
func (r *renderer) refreshCacheStats() {
	r.stats.ModuleCacheHits, r.stats.ModuleCacheMisses = r.ctx.Modules.Stats()
	r.stats.LayoutCacheHits, r.stats.LayoutCacheMisses = r.ctx.Layouts.Stats()
}
