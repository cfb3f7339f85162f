package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/filter"
	"github.com/nekogravitycat/record-console/internal/record"
)

// Repository defines methods for accessing accounts from storage.
type Repository interface {
	GetByUsername(ctx context.Context, username string) (Account, error)
	GetByID(ctx context.Context, id int64) (Account, error)
	CountByRole(ctx context.Context, role string) (int, error)
	Create(ctx context.Context, fields record.Fields) (int64, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

type storeRepository struct {
	store    record.Store
	compiler *filter.Compiler
}

// NewRepository creates a Repository over the users family of a record store.
// Lookups go through the filter compiler like any other search.
func NewRepository(store record.Store, compiler *filter.Compiler) Repository {
	return &storeRepository{
		store:    store,
		compiler: compiler,
	}
}

func (r *storeRepository) equals(ctx context.Context, field, value string) ([]record.Row, error) {
	q, err := r.compiler.Compile(catalog.Users, filter.Simple, []filter.Criterion{
		{Field: field, Operator: filter.Equals, Value: value},
	})
	if err != nil {
		return nil, err
	}
	return r.store.Select(ctx, catalog.Users, q)
}

func (r *storeRepository) GetByUsername(ctx context.Context, username string) (Account, error) {
	rows, err := r.equals(ctx, "username", username)
	if err != nil {
		return Account{}, err
	}
	if len(rows) == 0 {
		return Account{}, ErrNotFound
	}
	return accountFromRow(rows[0]), nil
}

func (r *storeRepository) GetByID(ctx context.Context, id int64) (Account, error) {
	row, err := r.store.GetByID(ctx, catalog.Users, id)
	if errors.Is(err, record.ErrNotFound) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return accountFromRow(row), nil
}

func (r *storeRepository) CountByRole(ctx context.Context, role string) (int, error) {
	rows, err := r.equals(ctx, "role", role)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *storeRepository) Create(ctx context.Context, fields record.Fields) (int64, error) {
	id, err := r.store.Insert(ctx, catalog.Users, fields)
	if errors.Is(err, record.ErrConflict) {
		return 0, ErrUsernameTaken
	}
	return id, err
}

func (r *storeRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	n, err := r.store.Update(ctx, catalog.Users, id, record.Fields{"password_hash": hash})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if n != 1 {
		return fmt.Errorf("password update for user %d affected %d rows: %w", id, n, record.ErrRowMismatch)
	}
	return nil
}
