package criteria

import (
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/fluxbase-eu/criteria/internal/metadata"
	"github.com/fluxbase-eu/criteria/internal/query"
)

// UnknownFieldError is returned in strict mode when a filter or sort
// references a column or relation the model does not declare. In the
// default fail-open mode such references are silently dropped.
type UnknownFieldError struct {
	Model string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("criteria: unknown field %q on model %q", e.Field, e.Model)
}

// compiler is the per-invocation state of one Apply call. The searchable
// column sets are instance-local: they are cheap to derive and computed at
// most once per model per invocation.
type compiler struct {
	crit       *Criteria
	searchable map[string]map[string]struct{}
}

func (cp *compiler) searchableSet(m *metadata.Model) map[string]struct{} {
	if set, ok := cp.searchable[m.Name]; ok {
		return set
	}
	set := make(map[string]struct{}, len(m.Columns))
	for _, c := range m.Columns {
		set[c] = struct{}{}
	}
	for _, c := range cp.crit.cfg.ExcludedColumns {
		delete(set, c)
	}
	for _, c := range cp.crit.cfg.TableExcludedColumns[m.Table] {
		delete(set, c)
	}
	cp.searchable[m.Name] = set
	return set
}

func (cp *compiler) isSearchable(m *metadata.Model, column string) bool {
	if !query.IsValidIdentifier(column) {
		return false
	}
	_, ok := cp.searchableSet(m)[column]
	return ok
}

// isRelation answers the relation probe through the shared metadata cache.
// Negative answers are cached too: a key that is not a relation stays not
// a relation for the life of the model declaration.
func (cp *compiler) isRelation(m *metadata.Model, name string) bool {
	key := "relation:" + m.Name + ":" + name
	return metadata.Memoize(cp.crit.cache, key, func() bool {
		_, ok := m.Relation(name)
		return ok
	})
}

// relatedModel resolves a relation's target model through the cache.
// Unresolvable targets (polymorphic, unregistered) cache as "" and return
// nil.
func (cp *compiler) relatedModel(m *metadata.Model, relation string) *metadata.Model {
	key := "related:" + m.Name + ":" + relation
	name := metadata.Memoize(cp.crit.cache, key, func() string {
		related := cp.crit.registry.Related(m, relation)
		if related == nil {
			return ""
		}
		return related.Name
	})
	if name == "" {
		return nil
	}
	related, _ := cp.crit.registry.Model(name)
	return related
}

// compileFilter compiles a parsed filter tree into a single predicate.
// A nil result means the expression imposed no constraints.
func (cp *compiler) compileFilter(m *metadata.Model, root Node) (sq.Sqlizer, error) {
	return cp.compileNode(m, root, "", "")
}

// compileNode walks one expression node. field is the column name carried
// forward from an enclosing key; ctx is the nearest enclosing logical
// operator ("" at the top level and inside relation scopes).
func (cp *compiler) compileNode(m *metadata.Model, n Node, field, ctx string) (sq.Sqlizer, error) {
	if isEmpty(n) {
		return nil, nil
	}

	switch v := n.(type) {
	case Scalar:
		// Implicit-equality leaf: a bare scalar under a field in scope.
		if field == "" {
			return nil, nil
		}
		return cp.condition(m, field, OpEq, v)
	case List:
		// A bare list under a field is implicit membership.
		if field == "" {
			return nil, nil
		}
		return cp.condition(m, field, OpIn, v)
	case Object:
		var preds []sq.Sqlizer
		for _, pair := range v.Pairs {
			p, err := cp.compileKey(m, pair.Key, pair.Value, field, ctx)
			if err != nil {
				return nil, err
			}
			if p != nil {
				preds = append(preds, p)
			}
		}
		return combine(preds, ctx), nil
	}
	return nil, nil
}

// compileKey classifies one expression key, in priority order: comparison
// operator, logical operator, relation name, then field-name
// carry-forward.
func (cp *compiler) compileKey(m *metadata.Model, key string, val Node, field, ctx string) (sq.Sqlizer, error) {
	switch cp.crit.operators.Classify(key) {
	case KindComparison:
		// The existence family dispatches to the relation-check handler.
		if isRelationToken(cp.crit.operators, key) {
			return cp.relationCheck(m, key, val, ctx)
		}
		if field == "" {
			// A comparison with no field in scope constrains nothing.
			return nil, nil
		}
		return cp.condition(m, field, key, val)
	case KindLogical:
		newCtx := key
		// De-escalation: an OR nested directly under an AND folds into a
		// plain AND group, preserving operator precedence when no explicit
		// grouping boundary exists.
		if key == OpOr && ctx == OpAnd {
			newCtx = OpAnd
		}
		return cp.compileNode(m, val, field, newCtx)
	default:
		if cp.isRelation(m, key) {
			return cp.relationScope(m, key, val)
		}
		// Unknown key: treat it as a field name and recurse, which handles
		// arbitrarily nested field→operator→value chains.
		return cp.compileNode(m, val, key, ctx)
	}
}

func isRelationToken(t *OperatorTable, token string) bool {
	_, ok := t.relation[token]
	return ok
}

// combine joins sibling predicates under the current logical context.
func combine(preds []sq.Sqlizer, ctx string) sq.Sqlizer {
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	}
	if ctx == OpOr {
		return sq.Or(preds)
	}
	return sq.And(preds)
}

// condition compiles a concrete (field, operator, value) leaf. Fields
// outside the searchable column set are a no-op (or a typed error in
// strict mode). Every branch either yields a predicate or nil; the
// compiler itself never produces invalid SQL.
func (cp *compiler) condition(m *metadata.Model, field, token string, val Node) (sq.Sqlizer, error) {
	if !cp.isSearchable(m, field) {
		if cp.crit.cfg.Strict {
			return nil, &UnknownFieldError{Model: m.Name, Field: field}
		}
		return nil, nil
	}
	col := query.QuoteIdent(field)

	switch token {
	case OpIn:
		vals := scalarValues(val)
		if len(vals) == 0 {
			return nil, nil
		}
		return sq.Expr(col+" = ANY(?)", vals), nil

	case OpBetween:
		vals := scalarValues(val)
		// A range needs exactly two bounds; anything else is dropped.
		if len(vals) != 2 {
			return nil, nil
		}
		return sq.Expr(col+" BETWEEN ? AND ?", vals[0], vals[1]), nil

	case OpContains:
		return containsPredicate(col, val), nil

	case OpNull:
		return sq.Expr(col + " IS NULL"), nil

	case OpNotNull:
		return sq.Expr(col + " IS NOT NULL"), nil

	default:
		sqlOp, ok := cp.crit.operators.SQLOperator(token)
		if !ok || sqlOp == "" {
			return nil, nil
		}
		vals := scalarValues(val)
		if len(vals) == 0 {
			return nil, nil
		}
		value := vals[0]
		if token == OpLike {
			value = "%" + fmt.Sprint(value) + "%"
		}
		return sq.Expr(col+" "+sqlOp+" ?", value), nil
	}
}

// containsPredicate builds a JSONB containment constraint with layered
// fallbacks: a structured value or valid JSON string applies directly; a
// comma-separated string becomes an OR chain of per-token containment
// checks; any other scalar is marshaled and applied directly. Clients send
// either a JSON blob or a flat CSV list for the same "contains one of
// these" intent.
func containsPredicate(col string, val Node) sq.Sqlizer {
	switch v := val.(type) {
	case Object, List:
		raw, err := json.Marshal(nodeValue(val))
		if err != nil {
			return nil
		}
		return sq.Expr(col+" @> ?::jsonb", string(raw))
	case Scalar:
		s, isString := v.Value.(string)
		if isString {
			if json.Valid([]byte(s)) {
				return sq.Expr(col+" @> ?::jsonb", s)
			}
			if strings.Contains(s, ",") {
				var preds []sq.Sqlizer
				for _, tok := range strings.Split(s, ",") {
					tok = strings.TrimSpace(tok)
					if tok == "" {
						continue
					}
					raw, err := json.Marshal(tok)
					if err != nil {
						continue
					}
					preds = append(preds, sq.Expr(col+" @> ?::jsonb", string(raw)))
				}
				return combine(preds, OpOr)
			}
		}
		raw, err := json.Marshal(v.Value)
		if err != nil {
			return nil
		}
		return sq.Expr(col+" @> ?::jsonb", string(raw))
	}
	return nil
}

// nodeValue reconstructs the plain JSON value a node was parsed from.
func nodeValue(n Node) interface{} {
	switch v := n.(type) {
	case Scalar:
		return v.Value
	case List:
		out := make([]interface{}, len(v.Items))
		for i, item := range v.Items {
			out[i] = nodeValue(item)
		}
		return out
	case Object:
		out := make(map[string]interface{}, len(v.Pairs))
		for _, p := range v.Pairs {
			out[p.Key] = nodeValue(p.Value)
		}
		return out
	}
	return nil
}

// relationScope compiles a sub-expression scoped to a named relation as
// an EXISTS sub-query. Logical context resets inside the scope.
func (cp *compiler) relationScope(m *metadata.Model, relation string, val Node) (sq.Sqlizer, error) {
	return cp.relationExists(m, relation, val, false)
}

// relationCheck handles the $has/$hasnt operators. The value names one
// relation, a list of relations, or a mapping from relation name to
// constraining filters. Unknown relation names are skipped.
func (cp *compiler) relationCheck(m *metadata.Model, token string, val Node, ctx string) (sq.Sqlizer, error) {
	negated := cp.crit.operators.RelationNegated(token)

	type check struct {
		relation string
		filter   Node
	}
	var checks []check

	switch v := val.(type) {
	case Scalar:
		if name, ok := v.Value.(string); ok {
			checks = append(checks, check{relation: name})
		}
	case List:
		for _, item := range v.Items {
			if s, ok := item.(Scalar); ok {
				if name, ok := s.Value.(string); ok {
					checks = append(checks, check{relation: name})
				}
			}
		}
	case Object:
		for _, p := range v.Pairs {
			checks = append(checks, check{relation: p.Key, filter: p.Value})
		}
	}

	var preds []sq.Sqlizer
	for _, c := range checks {
		if !cp.isRelation(m, c.relation) {
			continue
		}
		p, err := cp.relationExists(m, c.relation, c.filter, negated)
		if err != nil {
			return nil, err
		}
		if p != nil {
			preds = append(preds, p)
		}
	}
	return combine(preds, ctx), nil
}

// relationExists renders an (anti-)existence sub-query for one relation,
// optionally constrained by a filter compiled against the related model.
func (cp *compiler) relationExists(m *metadata.Model, relation string, filter Node, negated bool) (sq.Sqlizer, error) {
	rel, ok := m.Relation(relation)
	if !ok || rel.Polymorphic() {
		return nil, nil
	}
	related := cp.relatedModel(m, relation)
	if related == nil {
		return nil, nil
	}

	var join string
	switch rel.Kind {
	case metadata.BelongsTo:
		local := rel.LocalKey
		if local == "" {
			local = related.PrimaryKey
		}
		join = query.QuoteColumn(related.Table, local) + " = " + query.QuoteColumn(m.Table, rel.ForeignKey)
	default:
		local := rel.LocalKey
		if local == "" {
			local = m.PrimaryKey
		}
		join = query.QuoteColumn(related.Table, rel.ForeignKey) + " = " + query.QuoteColumn(m.Table, local)
	}

	sub := sq.Select("1").From(query.QuoteIdent(related.Table)).Where(sq.Expr(join))

	if filter != nil {
		// Logical context resets inside the relation scope.
		pred, err := cp.compileNode(related, filter, "", "")
		if err != nil {
			return nil, err
		}
		if pred != nil {
			sub = sub.Where(pred)
		}
	}

	if negated {
		return sq.Expr("NOT EXISTS (?)", sub), nil
	}
	return sq.Expr("EXISTS (?)", sub), nil
}
