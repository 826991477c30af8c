// Package query provides the query handle that the criteria compiler
// mutates. It wraps squirrel predicates and renders PostgreSQL with $n
// placeholders and quoted identifiers.
package query

import (
	"fmt"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// validIdentifier matches safe SQL identifiers (prevents SQL injection
// through column or table names).
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsValidIdentifier reports whether s can be used as a column or table name.
func IsValidIdentifier(s string) bool {
	return validIdentifier.MatchString(s)
}

// QuoteIdent wraps an identifier in double quotes. Callers must validate
// the identifier first.
func QuoteIdent(s string) string {
	return `"` + s + `"`
}

// QuoteColumn renders a table-qualified column reference.
func QuoteColumn(table, column string) string {
	return QuoteIdent(table) + "." + QuoteIdent(column)
}

// orderEntry is a single ORDER BY clause, pre-rendered.
type orderEntry struct {
	expr string
}

// Query is a mutable SELECT under construction. The criteria facade
// appends predicates, order entries and a row cap; the repository renders
// and executes it. Predicates at the top level are AND-ed.
type Query struct {
	table   string
	columns []string
	conj    []sq.Sqlizer
	order   []orderEntry
	limit   *uint64
}

// New creates a query against the given table. An invalid table name
// yields a query that renders an error from ToSQL.
func New(table string) *Query {
	return &Query{table: table}
}

// Table returns the target table name.
func (q *Query) Table() string {
	return q.table
}

// WithColumns restricts the select list. Invalid identifiers are skipped.
func (q *Query) WithColumns(columns []string) *Query {
	for _, c := range columns {
		if IsValidIdentifier(c) {
			q.columns = append(q.columns, QuoteIdent(c))
		}
	}
	return q
}

// Where appends a predicate AND-ed with any existing ones. Nil predicates
// are ignored so callers can pass through no-op compilation results.
func (q *Query) Where(pred sq.Sqlizer) *Query {
	if pred != nil {
		q.conj = append(q.conj, pred)
	}
	return q
}

// ConstraintCount returns the number of top-level predicates attached so
// far. Used by callers that need to verify no-op compilation.
func (q *Query) ConstraintCount() int {
	return len(q.conj)
}

// OrderBy appends a column sort. The caller validates the column.
func (q *Query) OrderBy(column string, desc bool) *Query {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	q.order = append(q.order, orderEntry{expr: QuoteIdent(column) + " " + dir})
	return q
}

// OrderRandom appends a random-order sort.
func (q *Query) OrderRandom() *Query {
	q.order = append(q.order, orderEntry{expr: "random()"})
	return q
}

// OrderCount returns the number of order clauses attached so far.
func (q *Query) OrderCount() int {
	return len(q.order)
}

// Limit caps the row count. Negative values are ignored.
func (q *Query) Limit(n int) *Query {
	if n >= 0 {
		v := uint64(n)
		q.limit = &v
	}
	return q
}

// ToSQL renders the query with $n placeholders.
func (q *Query) ToSQL() (string, []interface{}, error) {
	if !IsValidIdentifier(q.table) {
		return "", nil, fmt.Errorf("query: invalid table name %q", q.table)
	}

	cols := q.columns
	if len(cols) == 0 {
		cols = []string{"*"}
	}

	b := sq.Select(cols...).From(QuoteIdent(q.table))
	for _, pred := range q.conj {
		b = b.Where(pred)
	}
	if len(q.order) > 0 {
		exprs := make([]string, len(q.order))
		for i, o := range q.order {
			exprs[i] = o.expr
		}
		b = b.OrderBy(strings.Join(exprs, ", "))
	}
	if q.limit != nil {
		b = b.Limit(*q.limit)
	}

	return b.PlaceholderFormat(sq.Dollar).ToSql()
}
