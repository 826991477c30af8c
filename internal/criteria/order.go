package criteria

import (
	"fmt"
	"strings"

	"github.com/fluxbase-eu/criteria/internal/metadata"
	"github.com/fluxbase-eu/criteria/internal/query"
)

// OrderRandom is the sentinel column name that requests random ordering.
const OrderRandom = "random"

// OrderEntry is one column→direction pair of a sort expression.
type OrderEntry struct {
	Column    string
	Direction string
}

// ParseOrder decodes a sort expression. Accepted forms are the literal
// string "random" and a JSON object mapping column names to "asc"/"desc",
// applied in declaration order.
func ParseOrder(raw []byte) ([]OrderEntry, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil, nil
	}
	if s == OrderRandom {
		return []OrderEntry{{Column: OrderRandom}}, nil
	}
	node, err := ParseFilter([]byte(s))
	if err != nil {
		return nil, err
	}
	obj, ok := node.(Object)
	if !ok {
		return nil, fmt.Errorf("criteria: order expression must be an object")
	}
	entries := make([]OrderEntry, 0, len(obj.Pairs))
	for _, p := range obj.Pairs {
		e := OrderEntry{Column: p.Key}
		if sc, ok := p.Value.(Scalar); ok {
			if dir, ok := sc.Value.(string); ok {
				e.Direction = dir
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// applyOrder adds sort clauses for each entry whose column is in the
// searchable set and whose direction is one of the two allowed tokens.
// Everything else is skipped, except that strict mode reports unknown
// columns.
func (cp *compiler) applyOrder(q *query.Query, m *metadata.Model, entries []OrderEntry) error {
	for _, e := range entries {
		if e.Column == OrderRandom {
			q.OrderRandom()
			continue
		}
		dir := strings.ToLower(e.Direction)
		if dir != "asc" && dir != "desc" {
			continue
		}
		if !cp.isSearchable(m, e.Column) {
			if cp.crit.cfg.Strict {
				return &UnknownFieldError{Model: m.Name, Field: e.Column}
			}
			continue
		}
		q.OrderBy(e.Column, dir == "desc")
	}
	return nil
}

// applyLimit caps the row count. A nil or non-positive limit is a no-op.
func applyLimit(q *query.Query, n *int) {
	if n == nil || *n <= 0 {
		return
	}
	q.Limit(*n)
}
