package criteria

import (
	"sort"
	"strings"

	"github.com/fluxbase-eu/criteria/internal/metadata"
)

// EagerPlan is a compiled relation-loading tree. Plans are pure data so
// they serialize into the shared cache and replay without recomputation.
type EagerPlan struct {
	Entries []EagerEntry `json:"entries"`
}

// EagerEntry loads one relation, optionally expanding into its own
// nested plan. A nil Nested means the relation is loaded flat.
type EagerEntry struct {
	Relation string     `json:"relation"`
	Nested   *EagerPlan `json:"nested,omitempty"`
}

// Loader is a materialized plan entry with relation metadata resolved,
// ready for the store to execute. Model is nil for polymorphic relations,
// which load flat without constraining the target.
type Loader struct {
	Relation metadata.Relation
	Model    *metadata.Model
	Fields   []string
	Nested   []Loader
}

// PlanEagerLoads derives the relation-loading tree for requesting the
// given fields of a model. Field entries that name relations expand into
// the related resource's own fields, recursively, down to the configured
// depth bound. The plan is cached per model and sorted field list, so
// field order in the request does not fragment the cache.
func (c *Criteria) PlanEagerLoads(m *metadata.Model, fields []string) EagerPlan {
	if !c.cfg.EagerLoading {
		return EagerPlan{}
	}
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	key := "eager:" + m.Name + ":" + strings.Join(sorted, ",")
	return metadata.Memoize(c.cache, key, func() EagerPlan {
		return c.buildEagerPlan(m, fields, 1)
	})
}

func (c *Criteria) buildEagerPlan(m *metadata.Model, fields []string, depth int) EagerPlan {
	maxDepth := c.cfg.MaxEagerDepth
	if maxDepth <= 0 {
		maxDepth = 4
	}

	var plan EagerPlan
	for _, f := range fields {
		rel, ok := m.Relation(f)
		if !ok {
			// Plain column, nothing to load.
			continue
		}
		entry := EagerEntry{Relation: f}
		// Polymorphic targets cannot be expanded statically; they stay
		// flat leaves. Entries at the depth bound are demoted to leaves
		// rather than dropped.
		if !rel.Polymorphic() && depth < maxDepth {
			if related := c.registry.Related(m, f); related != nil {
				if res := c.resources.ForModel(related.Name); res != nil {
					nested := c.buildEagerPlan(related, res.Fields, depth+1)
					if len(nested.Entries) > 0 {
						entry.Nested = &nested
					}
				}
			}
		}
		plan.Entries = append(plan.Entries, entry)
	}
	return plan
}

// Materialize resolves a plan against the registry into loader specs the
// store can execute. Entries whose relation no longer resolves are
// dropped; the plan may be stale relative to a changed declaration.
func (c *Criteria) Materialize(m *metadata.Model, plan EagerPlan) []Loader {
	var loaders []Loader
	for _, e := range plan.Entries {
		rel, ok := m.Relation(e.Relation)
		if !ok {
			continue
		}
		ld := Loader{Relation: rel}
		if !rel.Polymorphic() {
			related := c.registry.Related(m, e.Relation)
			if related == nil {
				continue
			}
			ld.Model = related
			if res := c.resources.ForModel(related.Name); res != nil {
				ld.Fields = res.Fields
			}
			if e.Nested != nil {
				ld.Nested = c.Materialize(related, *e.Nested)
			}
		}
		loaders = append(loaders, ld)
	}
	return loaders
}
