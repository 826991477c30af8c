// Package resource holds the declarative response schemas: per model, the
// flat list of fields serialized into an API response. The eager-load
// planner consumes only this field list; guards and transformers belong to
// the serving layer.
package resource

import (
	"fmt"
	"sync"
)

// Resource declares the response schema for one model.
type Resource struct {
	Name string
	// Model is the registry name of the model this resource serializes.
	Model string
	// Fields is the default ordered field list. Entries may name columns
	// or relations; the planner decides which are which.
	Fields []string
}

// Registry maps resource names and model names to resources.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Resource
	byModel map[string]*Resource
}

// NewRegistry creates an empty resource registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]*Resource),
		byModel: make(map[string]*Resource),
	}
}

// Register adds a resource. One resource per model.
func (r *Registry) Register(res *Resource) error {
	if res.Name == "" || res.Model == "" {
		return fmt.Errorf("resource: name and model are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[res.Name]; exists {
		return fmt.Errorf("resource: %q already registered", res.Name)
	}
	if _, exists := r.byModel[res.Model]; exists {
		return fmt.Errorf("resource: model %q already has a resource", res.Model)
	}
	r.byName[res.Name] = res
	r.byModel[res.Model] = res
	return nil
}

// Get returns the resource with the given name.
func (r *Registry) Get(name string) (*Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byName[name]
	return res, ok
}

// ForModel returns the resource declared for a model, or nil when the
// model has none (callers treat nil as "not mappable" and fail open).
func (r *Registry) ForModel(model string) *Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byModel[model]
}

// Serialize projects a record onto the resource's field list, or onto the
// explicitly requested fields when given. Missing fields are omitted, not
// nulled, so relation fields that were not eager-loaded simply disappear
// from the response.
func (res *Resource) Serialize(record map[string]interface{}, requested []string) map[string]interface{} {
	fields := requested
	if len(fields) == 0 {
		fields = res.Fields
	}
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if v, ok := record[f]; ok {
			out[f] = v
		}
	}
	return out
}
