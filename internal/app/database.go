package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/db"
	"github.com/nekogravitycat/record-console/internal/filter"
	"github.com/nekogravitycat/record-console/internal/record"
)

// Database is an open record store together with the SQL dialect it speaks.
type Database struct {
	Driver  string // dialect name, "postgres" or "sqlite"
	Store   record.Store
	Dialect filter.Dialect

	pool *pgxpool.Pool
	sql  *sql.DB
}

// OpenDatabase connects to the store named by driver ("postgres" or "sqlite").
func OpenDatabase(ctx context.Context, driver, dsn string, cat *catalog.Catalog) (*Database, error) {
	dialect, ok := filter.DialectByName(driver)
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	d := &Database{Driver: dialect.Name(), Dialect: dialect}
	switch d.Driver {
	case "postgres":
		pool, err := db.NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		d.pool = pool
		d.Store = record.NewPgxStore(pool, cat)
	case "sqlite":
		conn, err := db.OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		d.sql = conn
		d.Store = record.NewSQLiteStore(conn, cat)
	}
	return d, nil
}

// Migrate applies the embedded schema for the driver.
func (d *Database) Migrate(ctx context.Context) error {
	if d.pool != nil {
		return db.MigratePostgres(ctx, d.pool)
	}
	return db.MigrateSQLite(ctx, d.sql)
}

func (d *Database) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
	if d.sql != nil {
		_ = d.sql.Close()
	}
}
