// Package record is the relational store behind both record families.
//
// Stores build every statement with squirrel from catalog-resolved column
// names, so user input only ever reaches the database as a bound value.
package record

import (
	"context"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/filter"
)

// Store is the capability interface the console depends on. Each method is a
// single statement. Connectivity failures are reported as ErrStoreUnavailable.
type Store interface {
	// Select returns the rows matching a compiled predicate, ordered by id.
	Select(ctx context.Context, family catalog.Family, q filter.CompiledQuery) ([]Row, error)
	// List returns one page of all rows and the total row count.
	List(ctx context.Context, family catalog.Family, page Page) ([]Row, int, error)
	Insert(ctx context.Context, family catalog.Family, fields Fields) (int64, error)
	// InsertWithID re-creates a row under a given identifier; ErrConflict if it is taken.
	InsertWithID(ctx context.Context, family catalog.Family, id int64, fields Fields) error
	Update(ctx context.Context, family catalog.Family, id int64, fields Fields) (int64, error)
	Delete(ctx context.Context, family catalog.Family, id int64) (int64, error)
	// GetByID returns ErrNotFound when the row is absent.
	GetByID(ctx context.Context, family catalog.Family, id int64) (Row, error)
}
