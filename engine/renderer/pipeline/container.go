// Package pipeline keeps the GPU pipeline state of world objects current.
// Each shader an object's material produces gets a container owning the
// compiled modules, pipelines, bind groups and flat resource list derived
// from that shader's declarations; a Group bundles the containers of one
// object. Containers update in two phases (shader data, then GPU objects)
// and retain the phase of their last failure, so a broken object skips
// drawing instead of taking the frame loop down with it.
package pipeline

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/calder-gfx/calder/common"
	"github.com/calder-gfx/calder/engine/renderer/environment"
	"github.com/calder-gfx/calder/engine/renderer/resource"
	"github.com/calder-gfx/calder/engine/renderer/shader"
	"github.com/calder-gfx/calder/engine/scene"
)

// Aspect labels name the layers of container state. Trackers flag them when
// the object properties feeding a layer change; containers rebuild exactly
// the flagged layers.
const (
	// AspectCreate rebuilds everything, starting with shader resolution.
	AspectCreate = "create"

	// AspectResources re-fetches the resource declarations and rebuilds
	// bind groups.
	AspectResources = "resources"

	// AspectPipelineInfo re-fetches the fixed-function state.
	AspectPipelineInfo = "pipeline_info"

	// AspectRenderInfo re-fetches the draw range and pass mask.
	AspectRenderInfo = "render_info"

	// AspectCompileModules and AspectComposePipelines are reported back
	// into the changed set when the GPU phase did that work, for
	// diagnostics.
	AspectCompileModules   = "compile_modules"
	AspectComposePipelines = "compose_pipelines"
)

// Aspects builds a changed set from labels.
//
// Parameters:
//   - labels: the aspect labels to flag
//
// Returns:
//   - map[string]struct{}: the set
func Aspects(labels ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		set[label] = struct{}{}
	}
	return set
}

// computeEnvKey keys the env maps of compute containers, whose pipelines do
// not vary by environment.
const computeEnvKey = ""

// hooks are the kind-specific halves of the update protocol.
type hooks[P any] interface {
	checkResources() error
	checkPipelineInfo() error
	checkRenderInfo() error
	compileModules(ctx *Context, env environment.Environment) (map[int]*wgpu.ShaderModule, error)
	composePipelines(ctx *Context, env environment.Environment, modules map[int]*wgpu.ShaderModule) (map[int]P, error)
}

// container is the state machine shared by render and compute containers:
// the declarations fetched from the shader, the env-keyed GPU objects built
// from them, and the two-phase update keeping both current.
type container[P any] struct {
	shader shader.Shader
	hooks  hooks[P]

	shaderHash       string
	resources        shader.Resources
	pipelineInfo     shader.PipelineInfo
	renderInfo       shader.RenderInfo
	haveResources    bool
	havePipelineInfo bool

	// Env hash -> pass index -> object. Compute containers hold a single
	// pass under the one computeEnvKey entry.
	modules   map[string]map[int]*wgpu.ShaderModule
	pipelines map[string]map[int]P

	layoutEntries [][]wgpu.BindGroupLayoutEntry
	layouts       []*wgpu.BindGroupLayout
	bindGroups    []*wgpu.BindGroup

	flat []resource.Syncable

	broken Phase
}

func newContainer[P any](s shader.Shader) container[P] {
	return container[P]{
		shader:    s,
		modules:   make(map[string]map[int]*wgpu.ShaderModule),
		pipelines: make(map[string]map[int]P),
	}
}

// update runs the two-phase protocol: refresh the shader-fed data for the
// flagged aspects, then lazily build the GPU objects for the environment.
// A failure records its phase and is returned wrapped; while the phase
// stands, draw and dispatch no-op. Lazy GPU work is reported back into
// changed so callers see everything that happened.
func (c *container[P]) update(obj scene.WorldObject, env environment.Environment, envHash string, ctx *Context, changed map[string]struct{}) error {
	if changed == nil {
		changed = map[string]struct{}{}
	}

	if len(changed) > 0 {
		if err := c.updateShaderData(obj, ctx, changed); err != nil {
			c.broken = PhaseShaderData
			return &UpdateError{Phase: PhaseShaderData, Err: err}
		}
		c.broken = PhaseNone
	}

	if c.broken == PhaseNone {
		if err := c.updateGPUData(ctx, env, envHash, changed); err != nil {
			c.broken = PhaseGPUObject
			return &UpdateError{Phase: PhaseGPUObject, Err: err}
		}
	}

	if len(changed) > 0 {
		labels := make([]string, 0, len(changed))
		for label := range changed {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		common.LogDebug("%s pipeline update: %s", obj.ObjectKind(), strings.Join(labels, ", "))
	}
	return nil
}

// updateShaderData refreshes the flagged declaration layers. Create implies
// all three; a pipeline info change implies render info and drops compiled
// pipelines. Each fetch runs under the object's tracker so the properties
// it touches re-flag the same aspect when they change.
func (c *container[P]) updateShaderData(obj scene.WorldObject, ctx *Context, changed map[string]struct{}) error {
	if _, ok := changed[AspectCreate]; ok {
		changed[AspectResources] = struct{}{}
		changed[AspectPipelineInfo] = struct{}{}
		changed[AspectRenderInfo] = struct{}{}
	}

	if _, ok := changed[AspectResources]; ok {
		var err error
		obj.Tracker().TrackUsage(AspectResources, func() {
			c.resources, err = c.shader.DeclareResources(obj)
		})
		if err != nil {
			return err
		}
		c.haveResources = true
		if c.flat, err = collectFlatResources(c.resources); err != nil {
			return err
		}
		for _, res := range c.flat {
			if err := res.EnsureSynced(ctx.GPU); err != nil {
				return err
			}
		}
		if err := c.hooks.checkResources(); err != nil {
			return err
		}
		c.refreshShaderHash()
		if err := c.rebuildBindGroups(ctx); err != nil {
			return err
		}
	}

	if _, ok := changed[AspectPipelineInfo]; ok {
		var err error
		obj.Tracker().TrackUsage(AspectPipelineInfo, func() {
			c.pipelineInfo, err = c.shader.DeclarePipelineInfo(obj)
		})
		if err != nil {
			return err
		}
		c.havePipelineInfo = true
		if err := c.hooks.checkPipelineInfo(); err != nil {
			return err
		}
		changed[AspectRenderInfo] = struct{}{}
		c.discardPipelines()
	}

	if _, ok := changed[AspectRenderInfo]; ok {
		var err error
		obj.Tracker().TrackUsage(AspectRenderInfo, func() {
			c.renderInfo, err = c.shader.DeclareRenderInfo(obj)
		})
		if err != nil {
			return err
		}
		if err := c.hooks.checkRenderInfo(); err != nil {
			return err
		}
	}
	return nil
}

// updateGPUData builds the modules and pipelines for the environment if
// they do not exist yet. The first build under an environment registers the
// container for retirement pruning.
func (c *container[P]) updateGPUData(ctx *Context, env environment.Environment, envHash string, changed map[string]struct{}) error {
	if c.modules[envHash] == nil {
		env.Register(c)
		changed[AspectCompileModules] = struct{}{}
		modules, err := c.hooks.compileModules(ctx, env)
		if err != nil {
			return err
		}
		c.modules[envHash] = modules
	}
	if c.pipelines[envHash] == nil {
		changed[AspectComposePipelines] = struct{}{}
		pipelines, err := c.hooks.composePipelines(ctx, env, c.modules[envHash])
		if err != nil {
			return err
		}
		c.pipelines[envHash] = pipelines
	}
	return nil
}

// refreshShaderHash drops every compiled module when the shader's composed
// state moved. Pipelines are left in place; they only fall when a layout or
// fixed-function change discards them.
func (c *container[P]) refreshShaderHash() {
	if h := c.shader.Hash(); h != c.shaderHash {
		c.shaderHash = h
		c.modules = make(map[string]map[int]*wgpu.ShaderModule)
	}
}

// rebuildBindGroups derives bind group and layout entries from the current
// bindings, indexed by group with gaps kept as empty groups and trailing
// empty groups dropped. A structural layout change recreates the layouts
// and discards compiled pipelines; the bind groups themselves are recreated
// every time so they track resource identity.
func (c *container[P]) rebuildBindGroups(ctx *Context) error {
	var entries [][]wgpu.BindGroupEntry
	var layoutEntries [][]wgpu.BindGroupLayoutEntry
	for _, groupID := range sortedIntKeys(c.resources.Bindings) {
		if groupID < 0 {
			return fmt.Errorf("%w: binding group %d: group indices must be non-negative", ErrConfig, groupID)
		}
		for len(entries) <= groupID {
			entries = append(entries, []wgpu.BindGroupEntry{})
			layoutEntries = append(layoutEntries, []wgpu.BindGroupLayoutEntry{})
		}
		group := c.resources.Bindings[groupID]
		for _, slot := range sortedIntKeys(group) {
			if slot < 0 {
				return fmt.Errorf("%w: binding group %d: slot %d must be non-negative", ErrConfig, groupID, slot)
			}
			entry, layoutEntry, err := group[slot].DeriveEntries(uint32(slot))
			if err != nil {
				return err
			}
			entries[groupID] = append(entries[groupID], entry)
			layoutEntries[groupID] = append(layoutEntries[groupID], layoutEntry)
		}
	}
	for len(entries) > 0 && len(entries[len(entries)-1]) == 0 {
		entries = entries[:len(entries)-1]
		layoutEntries = layoutEntries[:len(layoutEntries)-1]
	}

	if !reflect.DeepEqual(c.layoutEntries, layoutEntries) {
		c.layoutEntries = layoutEntries
		c.discardPipelines()
		c.layouts = make([]*wgpu.BindGroupLayout, len(layoutEntries))
		for i, groupEntries := range layoutEntries {
			layout, err := ctx.GPU.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
				Entries: groupEntries,
			})
			if err != nil {
				return err
			}
			c.layouts[i] = layout
		}
	}

	c.bindGroups = make([]*wgpu.BindGroup, len(entries))
	for i, groupEntries := range entries {
		group, err := ctx.GPU.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout:  c.layouts[i],
			Entries: groupEntries,
		})
		if err != nil {
			return err
		}
		c.bindGroups[i] = group
	}
	return nil
}

// RemoveEnvHash drops the compiled modules and pipelines keyed by the given
// environment hash. Environments call it on retirement for every container
// that built against them.
//
// Parameters:
//   - envHash: the retiring environment's hash
func (c *container[P]) RemoveEnvHash(envHash string) {
	delete(c.modules, envHash)
	delete(c.pipelines, envHash)
}

// FlatResources returns every resource the declarations reference, in
// declaration order. The renderer flushes pending content through this list
// once per frame.
//
// Returns:
//   - []resource.Syncable: the referenced resources
func (c *container[P]) FlatResources() []resource.Syncable {
	return c.flat
}

// Broken reports the phase of the last failed update, or PhaseNone.
func (c *container[P]) Broken() Phase {
	return c.broken
}

func (c *container[P]) discardPipelines() {
	c.pipelines = make(map[string]map[int]P)
}

// collectFlatResources lists every resource the declarations reference, in
// order, tagging each with the device usage its role requires. Storage
// buffers bound under a name mentioning indices are additionally tagged for
// index use, the rest for vertex use, so compute passes can write geometry
// that render passes then consume.
func collectFlatResources(res shader.Resources) ([]resource.Syncable, error) {
	var flat []resource.Syncable

	if buf := res.IndexBuffer; buf != nil {
		buf.AddUsage(wgpu.BufferUsageIndex | wgpu.BufferUsageStorage)
		flat = append(flat, buf)
	}
	for _, slot := range sortedIntKeys(res.VertexBuffers) {
		buf := res.VertexBuffers[slot]
		buf.AddUsage(wgpu.BufferUsageVertex | wgpu.BufferUsageStorage)
		flat = append(flat, buf)
	}
	for _, groupID := range sortedIntKeys(res.Bindings) {
		group := res.Bindings[groupID]
		for _, slot := range sortedIntKeys(group) {
			b := group[slot]
			switch {
			case strings.HasPrefix(b.Type, "buffer/"):
				buf, ok := b.Resource.(*resource.Buffer)
				if !ok {
					return nil, fmt.Errorf("%w: binding %q: %s requires a buffer resource", ErrConfig, b.Name, b.Type)
				}
				if strings.Contains(b.Type, "uniform") {
					buf.AddUsage(wgpu.BufferUsageUniform)
				} else {
					buf.AddUsage(wgpu.BufferUsageStorage)
					if strings.Contains(b.Name, "indices") {
						buf.AddUsage(wgpu.BufferUsageIndex)
					} else {
						buf.AddUsage(wgpu.BufferUsageVertex)
					}
				}
				flat = append(flat, buf)
			case strings.HasPrefix(b.Type, "sampler/"):
				view, ok := b.Resource.(*resource.TextureView)
				if !ok {
					return nil, fmt.Errorf("%w: binding %q: %s requires a texture view resource", ErrConfig, b.Name, b.Type)
				}
				flat = append(flat, view)
			case strings.HasPrefix(b.Type, "storage_texture/"):
				view, ok := b.Resource.(*resource.TextureView)
				if !ok {
					return nil, fmt.Errorf("%w: binding %q: %s requires a texture view resource", ErrConfig, b.Name, b.Type)
				}
				view.Texture().AddUsage(wgpu.TextureUsageStorageBinding)
				flat = append(flat, view.Texture(), view)
			case strings.HasPrefix(b.Type, "texture/"):
				view, ok := b.Resource.(*resource.TextureView)
				if !ok {
					return nil, fmt.Errorf("%w: binding %q: %s requires a texture view resource", ErrConfig, b.Name, b.Type)
				}
				view.Texture().AddUsage(wgpu.TextureUsageTextureBinding)
				flat = append(flat, view.Texture(), view)
			default:
				return nil, fmt.Errorf("%w: unknown resource binding %q of type %q", ErrConfig, b.Name, b.Type)
			}
		}
	}
	return flat, nil
}

func sortedIntKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	return keys
}
