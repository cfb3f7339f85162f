package record

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/filter"
)

// queries builds the statements shared by every store implementation.
type queries struct {
	catalog *catalog.Catalog
	dialect filter.Dialect
	psql    squirrel.StatementBuilderType
}

func newQueries(c *catalog.Catalog, d filter.Dialect) queries {
	return queries{
		catalog: c,
		dialect: d,
		psql:    squirrel.StatementBuilder.PlaceholderFormat(d.Placeholder()),
	}
}

type familyTable struct {
	name   string
	fields []catalog.Field
}

func (q queries) table(family catalog.Family) (familyTable, error) {
	name, err := q.catalog.Table(family)
	if err != nil {
		return familyTable{}, err
	}
	fields, err := q.catalog.Fields(family)
	if err != nil {
		return familyTable{}, err
	}
	return familyTable{name: name, fields: fields}, nil
}

// columns returns the select list: id followed by every catalog field.
func (q queries) columns(t familyTable) []string {
	cols := make([]string, 0, len(t.fields)+1)
	cols = append(cols, "id")
	for _, f := range t.fields {
		if f.Shape == catalog.Date {
			cols = append(cols, q.dialect.DateText(f.Name))
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}

// assignments orders the given fields by catalog order and converts empty
// strings to NULL. Unknown keys are refused.
func (q queries) assignments(family catalog.Family, t familyTable, fields Fields) ([]string, []any, error) {
	for name := range fields {
		if _, err := q.catalog.Lookup(family, name); err != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
	}

	cols := make([]string, 0, len(fields))
	vals := make([]any, 0, len(fields))
	for _, f := range t.fields {
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		cols = append(cols, f.Name)
		if v == "" {
			vals = append(vals, nil)
		} else {
			vals = append(vals, v)
		}
	}
	return cols, vals, nil
}

func (q queries) selectWhere(family catalog.Family, pred filter.CompiledQuery) (string, []any, familyTable, error) {
	t, err := q.table(family)
	if err != nil {
		return "", nil, t, err
	}
	query, args, err := q.psql.Select(q.columns(t)...).
		From(t.name).
		Where(pred).
		OrderBy("id").
		ToSql()
	if err != nil {
		return "", nil, t, fmt.Errorf("build select %s query failed: %w", family, err)
	}
	return query, args, t, nil
}

func (q queries) list(family catalog.Family, page Page) (string, []any, familyTable, error) {
	t, err := q.table(family)
	if err != nil {
		return "", nil, t, err
	}
	page = page.normalized()
	offset := (page.Page - 1) * page.PageSize

	cols := append(q.columns(t), "count(*) OVER() AS total_count")
	query, args, err := q.psql.Select(cols...).
		From(t.name).
		OrderBy("id").
		Limit(uint64(page.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return "", nil, t, fmt.Errorf("build list %s query failed: %w", family, err)
	}
	return query, args, t, nil
}

func (q queries) getByID(family catalog.Family, id int64) (string, []any, familyTable, error) {
	t, err := q.table(family)
	if err != nil {
		return "", nil, t, err
	}
	query, args, err := q.psql.Select(q.columns(t)...).
		From(t.name).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return "", nil, t, fmt.Errorf("build get %s query failed: %w", family, err)
	}
	return query, args, t, nil
}

// insert builds an INSERT ... RETURNING id. A non-zero id is written explicitly.
func (q queries) insert(family catalog.Family, id int64, fields Fields) (string, []any, error) {
	t, err := q.table(family)
	if err != nil {
		return "", nil, err
	}
	cols, vals, err := q.assignments(family, t, fields)
	if err != nil {
		return "", nil, err
	}
	if id != 0 {
		cols = append([]string{"id"}, cols...)
		vals = append([]any{id}, vals...)
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no fields given", family)
	}

	query, args, err := q.psql.Insert(t.name).
		Columns(cols...).
		Values(vals...).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert %s query failed: %w", family, err)
	}
	return query, args, nil
}

func (q queries) update(family catalog.Family, id int64, fields Fields) (string, []any, error) {
	t, err := q.table(family)
	if err != nil {
		return "", nil, err
	}
	cols, vals, err := q.assignments(family, t, fields)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("update %s: no fields given", family)
	}

	b := q.psql.Update(t.name)
	for i, col := range cols {
		b = b.Set(col, vals[i])
	}
	query, args, err := b.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build update %s query failed: %w", family, err)
	}
	return query, args, nil
}

func (q queries) delete(family catalog.Family, id int64) (string, []any, error) {
	t, err := q.table(family)
	if err != nil {
		return "", nil, err
	}
	query, args, err := q.psql.Delete(t.name).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build delete %s query failed: %w", family, err)
	}
	return query, args, nil
}

// scanner is satisfied by pgx.Row(s) and *sql.Row(s).
type scanner interface {
	Scan(dest ...any) error
}

// scanRow reads id, the catalog fields and, when total is non-nil, the
// trailing window count.
func scanRow(s scanner, t familyTable, total *int64) (Row, error) {
	var id int64
	values := make([]sql.NullString, len(t.fields))

	dest := make([]any, 0, len(t.fields)+2)
	dest = append(dest, &id)
	for i := range values {
		dest = append(dest, &values[i])
	}
	if total != nil {
		dest = append(dest, total)
	}

	if err := s.Scan(dest...); err != nil {
		return Row{}, err
	}

	row := Row{ID: id, Fields: make(Fields, len(t.fields))}
	for i, f := range t.fields {
		row.Fields[f.Name] = values[i].String
	}
	return row, nil
}
