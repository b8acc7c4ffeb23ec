package pipeline

import (
	"errors"
	"fmt"
)

// ErrConfig marks invalid shader declarations: malformed draw ranges,
// negative binding coordinates, resource type mismatches and render-only
// state on compute shaders. Distinguishable from templating failures
// (shader.ErrTemplate) and device failures via errors.Is.
var ErrConfig = errors.New("configuration error")

// Phase identifies the half of the update protocol an error escaped from.
// Containers retain the phase of their last failure until a later update
// completes; draw and dispatch stay inert while one is set.
type Phase int

const (
	// PhaseNone means the container is healthy.
	PhaseNone Phase = iota

	// PhaseShaderData covers declaration fetching, validation, resource
	// syncing and bind group recreation.
	PhaseShaderData

	// PhaseGPUObject covers shader module compilation and pipeline
	// composition.
	PhaseGPUObject
)

// String returns "none", "shader data" or "gpu object".
func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseShaderData:
		return "shader data"
	case PhaseGPUObject:
		return "gpu object"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// UpdateError wraps a failure from one phase of a container update. The
// container that produced it stays broken with the same phase until an
// update with a fresh changed set completes both phases.
type UpdateError struct {
	Phase Phase
	Err   error
}

// Error formats the failed phase and the underlying failure.
func (e *UpdateError) Error() string {
	return fmt.Sprintf("%s update failed: %v", e.Phase, e.Err)
}

// Unwrap returns the underlying failure.
func (e *UpdateError) Unwrap() error { return e.Err }
