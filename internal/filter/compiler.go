package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/nekogravitycat/record-console/internal/catalog"
)

// Compiler turns criteria into predicates. It holds no mutable state, so a
// single instance is shared by every session.
type Compiler struct {
	catalog *catalog.Catalog
	dialect Dialect
}

// NewCompiler creates a Compiler bound to a catalog and a store dialect.
func NewCompiler(c *catalog.Catalog, d Dialect) *Compiler {
	return &Compiler{catalog: c, dialect: d}
}

// Compile validates criteria for the family and builds an AND-joined
// predicate. The composite path needs at least two criteria; the simple path
// takes exactly one. Refusals are returned as *Rejection.
func (c *Compiler) Compile(family catalog.Family, path Path, criteria []Criterion) (CompiledQuery, error) {
	if err := checkCount(path, len(criteria)); err != nil {
		return CompiledQuery{}, err
	}

	conds := make(squirrel.And, 0, len(criteria))
	for i, cr := range criteria {
		cond, err := c.compileOne(family, i, cr)
		if err != nil {
			return CompiledQuery{}, err
		}
		conds = append(conds, cond)
	}

	where, args, err := conds.ToSql()
	if err != nil {
		return CompiledQuery{}, fmt.Errorf("build predicate: %w", err)
	}

	return CompiledQuery{Where: where, Args: args}, nil
}

func checkCount(path Path, n int) error {
	switch path {
	case Composite:
		if n < 2 {
			return &Rejection{
				Reason: ReasonInsufficientCriteria,
				Index:  -1,
				Detail: fmt.Sprintf("composite search needs at least 2 criteria, got %d", n),
			}
		}
	case Simple:
		if n == 0 {
			return &Rejection{Reason: ReasonInsufficientCriteria, Index: -1, Detail: "no criterion given"}
		}
		if n > 1 {
			return &Rejection{
				Reason: ReasonTooManyCriteria,
				Index:  -1,
				Detail: fmt.Sprintf("simple search takes one criterion, got %d", n),
			}
		}
	default:
		return &Rejection{Reason: ReasonInsufficientCriteria, Index: -1, Detail: "unknown search path"}
	}
	return nil
}

func (c *Compiler) compileOne(family catalog.Family, i int, cr Criterion) (squirrel.Sqlizer, error) {
	reject := func(reason Reason, format string, args ...any) error {
		return &Rejection{Reason: reason, Index: i, Field: cr.Field, Detail: fmt.Sprintf(format, args...)}
	}

	field, err := c.catalog.Resolve(family, cr.Field)
	if err != nil || !field.Searchable {
		return nil, reject(ReasonUnknownField, "field is not searchable in %s", family)
	}
	column := field.Name

	value := strings.TrimSpace(cr.Value)
	if value == "" {
		return nil, reject(ReasonInvalidValue, "value is required")
	}

	switch {
	case cr.Operator.isText():
		if field.Shape == catalog.Date {
			return nil, reject(ReasonOperatorMismatch, "%s cannot be used on a date field", cr.Operator)
		}
		caseInsensitive := true
		if field.Shape == catalog.DigitsOnly {
			value = catalog.Digits(value)
			if value == "" {
				return nil, reject(ReasonInvalidValue, "value contains no digits")
			}
			caseInsensitive = false
		}
		return squirrel.Expr(c.dialect.Like(column, caseInsensitive), textPattern(cr.Operator, value)), nil

	case cr.Operator.isDate():
		if field.Shape != catalog.Date {
			return nil, reject(ReasonOperatorMismatch, "%s needs a date field", cr.Operator)
		}
		switch cr.Operator {
		case DateExact:
			if !catalog.ValidDate(value) {
				return nil, reject(ReasonInvalidValue, "date must be in YYYY-MM-DD format")
			}
			return squirrel.Expr(c.dialect.DateText(column)+" = ?", value), nil
		case DateByMonth:
			month, err := ParseMonth(value)
			if err != nil {
				return nil, reject(ReasonInvalidValue, "%v", err)
			}
			return squirrel.Expr(c.dialect.Month(column)+" = ?", month), nil
		default:
			year, err := parseYear(value)
			if err != nil {
				return nil, reject(ReasonInvalidValue, "%v", err)
			}
			return squirrel.Expr(c.dialect.Year(column)+" = ?", year), nil
		}
	}

	return nil, reject(ReasonUnknownOperator, "unsupported operator %q", cr.Operator)
}

// textPattern builds the LIKE pattern. User input is escaped so that only the
// operator's own wildcards are active.
func textPattern(op Operator, value string) string {
	v := escapeLike(value)
	switch op {
	case StartsWith:
		return v + "%"
	case Contains:
		return "%" + v + "%"
	default:
		return v
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ParseMonth accepts 1..12 or an English month name (any case).
// A non-numeric value that is not a month name resolves to January; this
// matches the console's long-standing behaviour and is relied on by callers.
func ParseMonth(v string) (int, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("month %d is out of range 1-12", n)
		}
		return n, nil
	}
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(m.String(), v) {
			return int(m), nil
		}
	}
	return int(time.January), nil
}

func parseYear(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || strings.HasPrefix(v, "+") || strings.HasPrefix(v, "-") {
		return 0, fmt.Errorf("year %q is not numeric", v)
	}
	if n < 1 || n > 9999 {
		return 0, fmt.Errorf("year %d is out of range", n)
	}
	return n, nil
}
