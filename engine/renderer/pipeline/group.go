package pipeline

import (
	"fmt"

	"github.com/calder-gfx/calder/engine/renderer/environment"
	"github.com/calder-gfx/calder/engine/renderer/resource"
	"github.com/calder-gfx/calder/engine/renderer/shader"
	"github.com/calder-gfx/calder/engine/scene"
)

// Group owns every pipeline container for one world object. The create
// aspect rebuilds the set by resolving the object's shader builder; all
// other aspects fan out to the existing containers.
type Group struct {
	renders  []*RenderContainer
	computes []*ComputeContainer
}

// NewGroup creates an empty group. The first update must flag the create
// aspect to populate it.
//
// Returns:
//   - *Group: the group
func NewGroup() *Group {
	return &Group{}
}

// Update resolves containers on create and updates every container with
// the same changed set. Containers ignore aspects irrelevant to them, so a
// mixed set touches each container only where it is stale.
//
// Parameters:
//   - obj: the world object the group belongs to
//   - env: the active environment
//   - ctx: device, registry and caches
//   - changed: flagged aspect labels, shared across all containers
//
// Returns:
//   - error: shader resolution failure or the first container failure
func (g *Group) Update(obj scene.WorldObject, env environment.Environment, ctx *Context, changed map[string]struct{}) error {
	if _, ok := changed[AspectCreate]; ok {
		g.renders = nil
		g.computes = nil

		build, err := ctx.Shaders.Lookup(obj)
		if err != nil {
			return err
		}
		var shaders []shader.Shader
		obj.Tracker().TrackUsage(AspectCreate, func() {
			shaders, err = build(obj)
		})
		if err != nil {
			return err
		}
		for _, s := range shaders {
			switch s.Kind() {
			case shader.KindCompute:
				g.computes = append(g.computes, NewComputeContainer(s))
			case shader.KindRender:
				g.renders = append(g.renders, NewRenderContainer(s))
			default:
				return fmt.Errorf("%w: shader kind %s is unknown", ErrConfig, s.Kind())
			}
		}
	}

	for _, c := range g.computes {
		if err := c.Update(obj, env, ctx, changed); err != nil {
			return err
		}
	}
	for _, c := range g.renders {
		if err := c.Update(obj, env, ctx, changed); err != nil {
			return err
		}
	}
	return nil
}

// Renders returns the render containers, one per render shader.
func (g *Group) Renders() []*RenderContainer {
	return g.renders
}

// Computes returns the compute containers, one per compute shader.
func (g *Group) Computes() []*ComputeContainer {
	return g.computes
}

// FlatResources returns the union of every container's flat resource list,
// deduplicated by identity in container order, so the caller drives one
// upload per resource per frame no matter how many containers share it.
//
// Returns:
//   - []resource.Syncable: the referenced resources
func (g *Group) FlatResources() []resource.Syncable {
	seen := make(map[resource.Syncable]struct{})
	var flat []resource.Syncable
	add := func(resources []resource.Syncable) {
		for _, res := range resources {
			if _, ok := seen[res]; ok {
				continue
			}
			seen[res] = struct{}{}
			flat = append(flat, res)
		}
	}
	for _, c := range g.computes {
		add(c.FlatResources())
	}
	for _, c := range g.renders {
		add(c.FlatResources())
	}
	return flat
}
