// Package criteria compiles client-supplied filter, order and field
// parameters into query constraints and an eager-load plan.
package criteria

import "fmt"

// Operator tokens accepted in filter expressions.
const (
	OpEq       = "$eq"
	OpNe       = "$ne"
	OpLt       = "$lt"
	OpLte      = "$lte"
	OpGt       = "$gt"
	OpGte      = "$gte"
	OpLike     = "$like"
	OpIn       = "$in"
	OpBetween  = "$between"
	OpContains = "$contains"
	OpNull     = "$null"
	OpNotNull  = "$notnull"
	OpAnd      = "$and"
	OpOr       = "$or"
	OpHas      = "$has"
	OpHasNot   = "$hasnt"
)

// Kind classifies an expression key.
type Kind int

const (
	KindNone Kind = iota
	KindComparison
	KindLogical
	KindRelation
)

// OperatorTable maps operator tokens to their compilation behavior. The
// default table is what the filter language documents; deployments may
// register additional comparison operators as long as tokens stay
// unambiguous across categories.
type OperatorTable struct {
	// comparison maps a token to its SQL operator. Tokens handled by
	// dedicated dispatch ($in, $between, $contains, $null, $notnull,
	// $has, $hasnt) map to "".
	comparison map[string]string
	// logical maps a token to true when it opens an OR group.
	logical map[string]bool
	// relation maps a token to true when it asserts relation absence.
	relation map[string]bool
}

// DefaultOperators returns the standard operator table.
func DefaultOperators() *OperatorTable {
	return &OperatorTable{
		comparison: map[string]string{
			OpEq:       "=",
			OpNe:       "<>",
			OpLt:       "<",
			OpLte:      "<=",
			OpGt:       ">",
			OpGte:      ">=",
			OpLike:     "LIKE",
			OpIn:       "",
			OpBetween:  "",
			OpContains: "",
			OpNull:     "",
			OpNotNull:  "",
			OpHas:      "",
			OpHasNot:   "",
		},
		logical: map[string]bool{
			OpAnd: false,
			OpOr:  true,
		},
		relation: map[string]bool{
			OpHas:    false,
			OpHasNot: true,
		},
	}
}

// Classify resolves a key to its operator category. Comparison wins over
// logical wins over relation; keys in no table are KindNone and are
// treated as field or relation names by the compiler.
func (t *OperatorTable) Classify(token string) Kind {
	if _, ok := t.comparison[token]; ok {
		return KindComparison
	}
	if _, ok := t.logical[token]; ok {
		return KindLogical
	}
	if _, ok := t.relation[token]; ok {
		return KindRelation
	}
	return KindNone
}

// SQLOperator returns the SQL operator for a comparison token, or "" for
// tokens with dedicated dispatch.
func (t *OperatorTable) SQLOperator(token string) (string, bool) {
	op, ok := t.comparison[token]
	return op, ok
}

// IsOr reports whether a logical token opens an OR group.
func (t *OperatorTable) IsOr(token string) bool {
	return t.logical[token]
}

// RelationNegated reports whether a relation-existence token asserts
// absence.
func (t *OperatorTable) RelationNegated(token string) bool {
	return t.relation[token]
}

// RegisterComparison adds a comparison operator mapping to a direct SQL
// operator. Tokens already claimed by another category are rejected so
// classification stays unambiguous.
func (t *OperatorTable) RegisterComparison(token, sqlOp string) error {
	if _, ok := t.logical[token]; ok {
		return fmt.Errorf("criteria: token %q is a logical operator", token)
	}
	if _, ok := t.relation[token]; ok {
		return fmt.Errorf("criteria: token %q is a relation operator", token)
	}
	t.comparison[token] = sqlOp
	return nil
}
