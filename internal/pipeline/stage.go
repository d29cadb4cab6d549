package pipeline

import (
	"context"

	"github.com/langbot-app/LangBot/internal/query"
)

// Stage is a unit of pipeline work. InstName is the name this particular
// instance was configured under (a pipeline can load the same stage type
// twice, e.g. RateLimit as both RequireRateLimitOccupancy and
// ReleaseRateLimitOccupancy, distinguished by InstName).
type Stage interface {
	Process(ctx context.Context, q *query.Query, instName string) (StageProcessResult, error)
}

// StageFactory builds a new Stage instance from its config fragment. The
// registry calls this once per (pipeline, stage-list-entry) at load time.
type StageFactory func(config map[string]any) (Stage, error)

// Registry discovers stage implementations by name, the way the source
// system's pipeline loads stages by name into an ordered list per
// pipeline.
type Registry struct {
	factories map[string]StageFactory
}

// NewRegistry constructs an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]StageFactory)}
}

// MustRegister registers a stage factory under name, panicking on a
// duplicate registration (a programmer error at startup, not a runtime
// condition).
func (r *Registry) MustRegister(name string, factory StageFactory) {
	if _, exists := r.factories[name]; exists {
		panic("pipeline: stage already registered: " + name)
	}
	r.factories[name] = factory
}

// Build instantiates the named stage with the given config fragment.
func (r *Registry) Build(name string, config map[string]any) (Stage, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, &UnknownStageError{Name: name}
	}
	return factory(config)
}

// UnknownStageError is returned when a pipeline config names a stage the
// registry has no factory for.
type UnknownStageError struct {
	Name string
}

func (e *UnknownStageError) Error() string {
	return "pipeline: unknown stage: " + e.Name
}
