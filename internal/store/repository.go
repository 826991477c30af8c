// Package store executes compiled queries against Postgres and hydrates
// eager-loaded relations with batched follow-up queries.
package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/criteria/internal/criteria"
	"github.com/fluxbase-eu/criteria/internal/logutil"
	"github.com/fluxbase-eu/criteria/internal/metadata"
	"github.com/fluxbase-eu/criteria/internal/query"
)

// Record is one row hydrated into a generic map, with eager-loaded
// relations attached under their relation names.
type Record = map[string]interface{}

// DB is the query surface the repository needs; *pgxpool.Pool satisfies
// it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository lists records of registered models with criteria applied.
type Repository struct {
	db   DB
	crit *criteria.Criteria
	reg  *metadata.Registry
}

func NewRepository(db DB, crit *criteria.Criteria, reg *metadata.Registry) *Repository {
	return &Repository{db: db, crit: crit, reg: reg}
}

// List builds, executes and hydrates one list query for the named model.
func (r *Repository) List(ctx context.Context, modelName string, p criteria.Params) ([]Record, error) {
	m, ok := r.reg.Model(modelName)
	if !ok {
		return nil, fmt.Errorf("store: unknown model %q", modelName)
	}

	q := query.New(m.Table)
	loaders, err := r.crit.Apply(q, m, p)
	if err != nil {
		return nil, err
	}

	sqlStr, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	log.Debug().Str("model", modelName).Str("sql", logutil.SanitizeSQL(sqlStr)).Msg("executing list query")

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("store: listing %s: %w", modelName, err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("store: scanning %s: %w", modelName, err)
	}

	if len(records) > 0 && len(loaders) > 0 {
		if err := r.loadRelations(ctx, m, records, loaders); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	fds := rows.FieldDescriptions()
	var out []Record
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rec := make(Record, len(fds))
		for i, fd := range fds {
			rec[fd.Name] = vals[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// loadRelations executes one batched query per loader and attaches the
// children to their parents, recursing into nested loaders. Each level
// costs one query regardless of parent count.
func (r *Repository) loadRelations(ctx context.Context, m *metadata.Model, records []Record, loaders []criteria.Loader) error {
	for _, ld := range loaders {
		rel := ld.Relation
		if rel.Polymorphic() || ld.Model == nil {
			// The target type varies per row; a single batched query
			// cannot cover it.
			log.Debug().Str("relation", rel.Name).Msg("skipping polymorphic relation load")
			continue
		}

		var parentKey, childKey string
		switch rel.Kind {
		case metadata.BelongsTo:
			parentKey = rel.ForeignKey
			childKey = rel.LocalKey
			if childKey == "" {
				childKey = ld.Model.PrimaryKey
			}
		default:
			parentKey = rel.LocalKey
			if parentKey == "" {
				parentKey = m.PrimaryKey
			}
			childKey = rel.ForeignKey
		}

		keys := distinctValues(records, parentKey)
		if len(keys) == 0 {
			continue
		}

		cq := query.New(ld.Model.Table).
			Where(sq.Expr(query.QuoteIdent(childKey)+" = ANY(?)", keys))
		sqlStr, args, err := cq.ToSQL()
		if err != nil {
			return err
		}
		rows, err := r.db.Query(ctx, sqlStr, args...)
		if err != nil {
			return fmt.Errorf("store: loading relation %s: %w", rel.Name, err)
		}
		children, err := collectRecords(rows)
		if err != nil {
			return fmt.Errorf("store: scanning relation %s: %w", rel.Name, err)
		}

		if len(children) > 0 && len(ld.Nested) > 0 {
			if err := r.loadRelations(ctx, ld.Model, children, ld.Nested); err != nil {
				return err
			}
		}

		attach(records, children, rel, parentKey, childKey)
	}
	return nil
}

// attach groups children by their key column and hangs them off each
// parent under the relation name. Has-many relations always attach a
// slice, even an empty one, so serializers can range without nil checks.
func attach(parents, children []Record, rel metadata.Relation, parentKey, childKey string) {
	grouped := make(map[interface{}][]Record, len(children))
	for _, child := range children {
		k := comparableKey(child[childKey])
		if k == nil {
			continue
		}
		grouped[k] = append(grouped[k], child)
	}
	for _, parent := range parents {
		k := comparableKey(parent[parentKey])
		if k == nil {
			continue
		}
		matches := grouped[k]
		if rel.Kind == metadata.HasMany {
			if matches == nil {
				matches = []Record{}
			}
			parent[rel.Name] = matches
		} else {
			if len(matches) > 0 {
				parent[rel.Name] = matches[0]
			} else {
				parent[rel.Name] = nil
			}
		}
	}
}

func distinctValues(records []Record, column string) []interface{} {
	seen := make(map[interface{}]struct{}, len(records))
	var out []interface{}
	for _, rec := range records {
		k := comparableKey(rec[column])
		if k == nil {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, rec[column])
	}
	return out
}

// comparableKey coerces a scanned value into something usable as a map
// key. Byte slices (e.g. uuid columns scanned as raw bytes) become
// strings; nil stays nil so callers can skip the row.
func comparableKey(v interface{}) interface{} {
	switch b := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(b)
	}
	return v
}
