// Package criteria compiles client query parameters (filter, fields,
// order, limit) into SQL constraints and an eager-load plan for one
// model. It is the single entry point the repository layer calls before
// executing a list query.
package criteria

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/fluxbase-eu/criteria/internal/config"
	"github.com/fluxbase-eu/criteria/internal/metadata"
	"github.com/fluxbase-eu/criteria/internal/query"
	"github.com/fluxbase-eu/criteria/internal/resource"
)

// Criteria wires the operator table, model registry, resource registry
// and metadata cache behind one Apply entry point. A single instance is
// shared by all requests; Apply is safe for concurrent use.
type Criteria struct {
	operators *OperatorTable
	registry  *metadata.Registry
	resources *resource.Registry
	cache     *metadata.Cache
	cfg       config.CriteriaConfig
}

// Option customizes a Criteria instance.
type Option func(*Criteria)

// WithOperators replaces the default operator table, e.g. to register
// custom comparison tokens.
func WithOperators(t *OperatorTable) Option {
	return func(c *Criteria) { c.operators = t }
}

// WithCacheStore swaps the metadata cache backend, e.g. for the Redis
// store in multi-process deployments.
func WithCacheStore(s metadata.Store) Option {
	return func(c *Criteria) { c.cache = metadata.NewCache(s) }
}

// New builds a Criteria instance over the given registries. The default
// cache is in-process memory and the default operator table matches the
// documented expression language.
func New(reg *metadata.Registry, res *resource.Registry, cfg config.CriteriaConfig, opts ...Option) *Criteria {
	c := &Criteria{
		operators: DefaultOperators(),
		registry:  reg,
		resources: res,
		cache:     metadata.NewCache(nil),
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Operators exposes the table so callers can register extensions.
func (c *Criteria) Operators() *OperatorTable {
	return c.operators
}

// InvalidateModel drops derived metadata after a model's declaration
// changes. The store contract has no key enumeration, and eager plans
// rooted at other models may embed this one, so this flushes everything.
func (c *Criteria) InvalidateModel(name string) {
	c.cache.Flush()
}

// FlushCache drops every cached derivation.
func (c *Criteria) FlushCache() {
	c.cache.Flush()
}

// Params is the parsed parameter bag for one request. Filter is the
// decoded expression tree (nil when absent); Fields is the client's
// requested response field list (empty means the resource defaults);
// Order applies in declaration order; a nil Limit leaves the query
// uncapped.
type Params struct {
	Filter Node
	Fields []string
	Order  []OrderEntry
	Limit  *int
}

// Apply runs the full pipeline on a query: filter constraints, then the
// eager-load plan, then order, then limit, mutating the query in place.
// It returns the materialized loaders the store should execute after the
// main query.
func (c *Criteria) Apply(q *query.Query, m *metadata.Model, p Params) ([]Loader, error) {
	cp := &compiler{crit: c, searchable: make(map[string]map[string]struct{})}

	if p.Filter != nil {
		pred, err := cp.compileFilter(m, p.Filter)
		if err != nil {
			return nil, err
		}
		// A top-level AND group unpacks into separate conjuncts so the
		// rendered WHERE clause stays flat.
		if and, ok := pred.(sq.And); ok {
			for _, sub := range and {
				q.Where(sub)
			}
		} else if pred != nil {
			q.Where(pred)
		}
	}

	var loaders []Loader
	if c.cfg.EagerLoading {
		fields := p.Fields
		if len(fields) == 0 {
			if res := c.resources.ForModel(m.Name); res != nil {
				fields = res.Fields
			}
		}
		plan := c.PlanEagerLoads(m, fields)
		loaders = c.Materialize(m, plan)
	}

	if err := cp.applyOrder(q, m, p.Order); err != nil {
		return nil, err
	}
	applyLimit(q, p.Limit)

	return loaders, nil
}
