package filter

import "github.com/Masterminds/squirrel"

// Dialect supplies the SQL fragments that differ between store engines.
// Compiled predicates always use '?' placeholders; a store rebinds them with
// Placeholder() when it assembles the full statement.
type Dialect interface {
	Name() string
	Placeholder() squirrel.PlaceholderFormat
	// Like returns a pattern-match condition with one placeholder.
	Like(column string, caseInsensitive bool) string
	// DateText returns an expression that renders a date column as YYYY-MM-DD.
	DateText(column string) string
	Month(column string) string
	Year(column string) string
}

var (
	Postgres Dialect = postgresDialect{}
	SQLite   Dialect = sqliteDialect{}
)

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholder() squirrel.PlaceholderFormat { return squirrel.Dollar }

func (postgresDialect) Like(column string, caseInsensitive bool) string {
	if caseInsensitive {
		return column + ` ILIKE ? ESCAPE '\'`
	}
	return column + ` LIKE ? ESCAPE '\'`
}

func (postgresDialect) DateText(column string) string { return column + "::text" }

func (postgresDialect) Month(column string) string {
	return "EXTRACT(MONTH FROM " + column + ")::int"
}

func (postgresDialect) Year(column string) string {
	return "EXTRACT(YEAR FROM " + column + ")::int"
}

// SQLite's LIKE is already case-insensitive for ASCII, and the only
// case-sensitive fields hold digits, so both variants are the same.
type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Placeholder() squirrel.PlaceholderFormat { return squirrel.Question }

func (sqliteDialect) Like(column string, _ bool) string {
	return column + ` LIKE ? ESCAPE '\'`
}

func (sqliteDialect) DateText(column string) string { return column }

func (sqliteDialect) Month(column string) string {
	return "CAST(strftime('%m', " + column + ") AS INTEGER)"
}

func (sqliteDialect) Year(column string) string {
	return "CAST(strftime('%Y', " + column + ") AS INTEGER)"
}

// DialectByName maps a configured driver name to its dialect.
func DialectByName(name string) (Dialect, bool) {
	switch name {
	case "postgres", "pgx":
		return Postgres, true
	case "sqlite":
		return SQLite, true
	}
	return nil, false
}
