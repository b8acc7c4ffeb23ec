// Package scene defines the world-object surface the renderer consumes: a
// kind pair identifying which shaders can draw an object, and a change
// tracker that records what the renderer read while building its pipelines.
package scene

import (
	"github.com/calder-gfx/calder/engine/tracking"
)

// ObjectKind identifies the geometry category of a world object, such as a
// mesh, a point cloud, or a simulation grid. Downstream packages declare
// their own kinds as typed constants.
type ObjectKind string

// MaterialKind identifies the appearance category paired with an object
// kind. The (ObjectKind, MaterialKind) pair selects the shader builder in
// the registry.
type MaterialKind string

// WorldObject is anything the renderer can build pipelines for. Concrete
// objects embed Object and add their geometry and material state.
type WorldObject interface {
	// ObjectKind returns the geometry category of the object.
	//
	// Returns:
	//   - ObjectKind: the object kind used for shader registry lookup
	ObjectKind() ObjectKind

	// MaterialKind returns the appearance category of the object.
	//
	// Returns:
	//   - MaterialKind: the material kind used for shader registry lookup
	MaterialKind() MaterialKind

	// Tracker returns the object's change tracker. The renderer pops changed
	// aspects from it each frame and records property usage through it.
	//
	// Returns:
	//   - *tracking.Tracker: the object's tracker, never nil
	Tracker() *tracking.Tracker
}

// Object is the embeddable base for world objects. It carries the kind pair
// and the change tracker so concrete objects only add their own state.
type Object struct {
	kind     ObjectKind
	material MaterialKind
	tracker  *tracking.Tracker
}

// NewObject creates the embeddable base state for a world object.
//
// Parameters:
//   - kind: the geometry category
//   - material: the appearance category
//
// Returns:
//   - Object: base state ready for embedding
func NewObject(kind ObjectKind, material MaterialKind) Object {
	return Object{
		kind:     kind,
		material: material,
		tracker:  tracking.NewTracker(),
	}
}

func (o *Object) ObjectKind() ObjectKind     { return o.kind }
func (o *Object) MaterialKind() MaterialKind { return o.material }
func (o *Object) Tracker() *tracking.Tracker { return o.tracker }
