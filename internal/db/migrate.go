package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Schema returns the statements of the embedded schema for a driver.
func Schema(driver string) ([]string, error) {
	data, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return nil, fmt.Errorf("no schema for driver %q: %w", driver, err)
	}

	var stmts []string
	for _, stmt := range strings.Split(string(data), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts, nil
}

// MigratePostgres applies the Postgres schema. Every statement is idempotent.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	stmts, err := Schema("postgres")
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply postgres schema: %w", err)
		}
	}
	return nil
}

// MigrateSQLite applies the SQLite schema. Every statement is idempotent.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts, err := Schema("sqlite")
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
