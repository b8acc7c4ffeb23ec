package renderer

import (
	"github.com/calder-gfx/calder/engine/renderer/registry"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithSettings replaces the default settings, typically with ones loaded
// from a TOML file via LoadSettings.
//
// Parameters:
//   - settings: the settings to build with
//
// Returns:
//   - RendererBuilderOption: a function that applies the settings option to a renderer
func WithSettings(settings Settings) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingSettings = &settings
	}
}

// WithRegistry points shader lookup at the given registry instead of the
// shared default one. Useful for tests and embedders that keep isolated
// registrations.
//
// Parameters:
//   - shaders: the registry to resolve shader builders from
//
// Returns:
//   - RendererBuilderOption: a function that applies the registry option to a renderer
func WithRegistry(shaders *registry.Registry) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingRegistry = shaders
	}
}
