// Package metadata holds the statically declared model/relation registry
// and the memoizing cache for derived schema facts. Relation lookup is a
// pure table lookup; there is no runtime probing of model methods.
package metadata

import (
	"fmt"
	"sync"

	"github.com/fluxbase-eu/criteria/internal/query"
)

// RelationKind describes how a relation joins two models.
type RelationKind string

const (
	HasMany   RelationKind = "has_many"
	HasOne    RelationKind = "has_one"
	BelongsTo RelationKind = "belongs_to"
	// MorphTo is a polymorphic relation whose target model is determined
	// per row. It is eager-loadable only as a flat leaf and cannot be
	// filtered through.
	MorphTo RelationKind = "morph_to"
)

// Relation declares a named relation on a model.
type Relation struct {
	Name string
	// Target is the registry name of the related model. Empty for MorphTo.
	Target string
	Kind   RelationKind
	// ForeignKey is the referencing column: on the target table for
	// HasMany/HasOne, on the owning table for BelongsTo.
	ForeignKey string
	// LocalKey is the referenced column on the other side. Defaults to the
	// owning model's primary key for HasMany/HasOne and the target's
	// primary key for BelongsTo.
	LocalKey string
}

// Polymorphic reports whether the relation's target type is per-row.
func (r Relation) Polymorphic() bool {
	return r.Kind == MorphTo
}

// Model declares a queryable entity: its table, columns and relations.
type Model struct {
	Name       string
	Table      string
	PrimaryKey string
	Columns    []string
	Relations  []Relation
}

// Relation returns the declared relation with the given name.
func (m *Model) Relation(name string) (Relation, bool) {
	for _, r := range m.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// HasColumn reports whether the model declares the given column.
func (m *Model) HasColumn(name string) bool {
	for _, c := range m.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Registry is the set of declared models, keyed by name. Registration
// happens at startup; lookups afterwards are read-only.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry creates an empty model registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Register adds a model. It validates identifiers so that later query
// building never sees an unquotable name.
func (r *Registry) Register(m *Model) error {
	if m.Name == "" {
		return fmt.Errorf("metadata: model name is required")
	}
	if !query.IsValidIdentifier(m.Table) {
		return fmt.Errorf("metadata: model %q has invalid table name %q", m.Name, m.Table)
	}
	if m.PrimaryKey == "" {
		m.PrimaryKey = "id"
	}
	for _, rel := range m.Relations {
		if rel.Kind == MorphTo {
			continue
		}
		if rel.Target == "" {
			return fmt.Errorf("metadata: relation %q on model %q has no target", rel.Name, m.Name)
		}
		if !query.IsValidIdentifier(rel.ForeignKey) {
			return fmt.Errorf("metadata: relation %q on model %q has invalid foreign key %q", rel.Name, m.Name, rel.ForeignKey)
		}
		if rel.LocalKey != "" && !query.IsValidIdentifier(rel.LocalKey) {
			return fmt.Errorf("metadata: relation %q on model %q has invalid local key %q", rel.Name, m.Name, rel.LocalKey)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[m.Name]; exists {
		return fmt.Errorf("metadata: model %q already registered", m.Name)
	}
	r.models[m.Name] = m
	return nil
}

// Model returns the registered model with the given name.
func (r *Registry) Model(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Related resolves a relation's target model. Returns nil for unknown
// relations, polymorphic relations and unregistered targets; callers are
// expected to treat nil as "cannot be mapped" and fail open.
func (r *Registry) Related(m *Model, relation string) *Model {
	rel, ok := m.Relation(relation)
	if !ok || rel.Polymorphic() {
		return nil
	}
	related, ok := r.Model(rel.Target)
	if !ok {
		return nil
	}
	return related
}
