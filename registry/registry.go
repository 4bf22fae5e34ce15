// Package registry maps component model names to their constructors. Implementations register
// themselves from an init function and are looked up by the type named in the config file.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
)

// A Constructor builds a T from its config attributes.
type Constructor[T any] func(ctx context.Context, attrs config.AttributeMap, logger logging.Logger) (T, error)

// Registry holds the constructors for one kind of component.
type Registry[T any] struct {
	kind string

	mu           sync.RWMutex
	constructors map[string]Constructor[T]
}

// New returns an empty registry for the named kind of component, e.g. "camera".
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, constructors: map[string]Constructor[T]{}}
}

// Register registers a model to a constructor. Registering the same model twice panics.
func (r *Registry[T]) Register(model string, constructor Constructor[T]) {
	if constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for %s model %q", r.kind, model))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, old := r.constructors[model]; old {
		panic(errors.Errorf("trying to register two %s models with same name %q", r.kind, model))
	}
	r.constructors[model] = constructor
}

// Lookup looks up a constructor by model. nil is returned if there is no constructor registered.
func (r *Registry[T]) Lookup(model string) Constructor[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.constructors[model]
}

// Models returns the registered model names in sorted order.
func (r *Registry[T]) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make([]string, 0, len(r.constructors))
	for model := range r.constructors {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// Build constructs the component described by conf.
func (r *Registry[T]) Build(ctx context.Context, conf config.Component, logger logging.Logger) (T, error) {
	var zero T
	constructor := r.Lookup(conf.Type)
	if constructor == nil {
		return zero, errors.Errorf("unknown %s model %q (known models: %v)", r.kind, conf.Type, r.Models())
	}
	built, err := constructor(ctx, conf.Attributes, logger.Sublogger(r.kind))
	if err != nil {
		return zero, errors.Wrapf(err, "cannot build %s model %q", r.kind, conf.Type)
	}
	return built, nil
}
