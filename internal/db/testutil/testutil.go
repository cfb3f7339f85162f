// Package testutil provides store fixtures for package tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/db"
	"github.com/nekogravitycat/record-console/internal/record"
)

// NewSQLite returns a migrated private in-memory database, closed with the test.
func NewSQLite(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	conn, err := db.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err, "open sqlite")
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.MigrateSQLite(ctx, conn), "migrate sqlite")
	return conn
}

// NewStore returns a Store over a fresh in-memory database.
func NewStore(t *testing.T) record.Store {
	t.Helper()
	return record.NewSQLiteStore(NewSQLite(t), catalog.Default())
}

// Contact returns a valid contacts row with the given first name.
func Contact(firstName string) record.Fields {
	return record.Fields{
		"first_name":    firstName,
		"last_name":     "Doe",
		"phone_primary": "5550100",
		"email":         firstName + "@example.com",
	}
}

// InsertContacts inserts one contact per first name and returns their ids.
func InsertContacts(t *testing.T, store record.Store, firstNames ...string) []int64 {
	t.Helper()

	ids := make([]int64, 0, len(firstNames))
	for _, name := range firstNames {
		id, err := store.Insert(context.Background(), catalog.Contacts, Contact(name))
		require.NoError(t, err, "insert contact %s", name)
		ids = append(ids, id)
	}
	return ids
}
