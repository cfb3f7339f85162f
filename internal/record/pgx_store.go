package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/filter"
)

type pgxStore struct {
	pool *pgxpool.Pool
	q    queries
}

// NewPgxStore creates a Store backed by a Postgres connection pool.
func NewPgxStore(pool *pgxpool.Pool, c *catalog.Catalog) Store {
	return &pgxStore{
		pool: pool,
		q:    newQueries(c, filter.Postgres),
	}
}

func (s *pgxStore) Select(ctx context.Context, family catalog.Family, pred filter.CompiledQuery) ([]Row, error) {
	query, args, t, err := s.q.selectWhere(family, pred)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s failed: %w", family, classifyPgx(err))
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, err := scanRow(rows, t, nil)
		if err != nil {
			return nil, fmt.Errorf("scan %s failed: %w", family, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s failed: %w", family, classifyPgx(err))
	}
	return out, nil
}

func (s *pgxStore) List(ctx context.Context, family catalog.Family, page Page) ([]Row, int, error) {
	query, args, t, err := s.q.list(family, page)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s failed: %w", family, classifyPgx(err))
	}
	defer rows.Close()

	var out []Row
	var total int64
	for rows.Next() {
		row, err := scanRow(rows, t, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan %s failed: %w", family, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list %s failed: %w", family, classifyPgx(err))
	}
	return out, int(total), nil
}

func (s *pgxStore) Insert(ctx context.Context, family catalog.Family, fields Fields) (int64, error) {
	return s.insert(ctx, family, 0, fields)
}

func (s *pgxStore) InsertWithID(ctx context.Context, family catalog.Family, id int64, fields Fields) error {
	if id <= 0 {
		return fmt.Errorf("insert %s: invalid id %d", family, id)
	}
	_, err := s.insert(ctx, family, id, fields)
	return err
}

func (s *pgxStore) insert(ctx context.Context, family catalog.Family, id int64, fields Fields) (int64, error) {
	query, args, err := s.q.insert(family, id, fields)
	if err != nil {
		return 0, err
	}

	var newID int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		return 0, fmt.Errorf("insert %s failed: %w", family, classifyPgx(err))
	}
	return newID, nil
}

func (s *pgxStore) Update(ctx context.Context, family catalog.Family, id int64, fields Fields) (int64, error) {
	query, args, err := s.q.update(family, id, fields)
	if err != nil {
		return 0, err
	}

	ct, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s failed: %w", family, classifyPgx(err))
	}
	return ct.RowsAffected(), nil
}

func (s *pgxStore) Delete(ctx context.Context, family catalog.Family, id int64) (int64, error) {
	query, args, err := s.q.delete(family, id)
	if err != nil {
		return 0, err
	}

	ct, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s failed: %w", family, classifyPgx(err))
	}
	return ct.RowsAffected(), nil
}

func (s *pgxStore) GetByID(ctx context.Context, family catalog.Family, id int64) (Row, error) {
	query, args, t, err := s.q.getByID(family, id)
	if err != nil {
		return Row{}, err
	}

	row, err := scanRow(s.pool.QueryRow(ctx, query, args...), t, nil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Row{}, ErrNotFound
		}
		return Row{}, fmt.Errorf("get %s failed: %w", family, classifyPgx(err))
	}
	return row, nil
}

// classifyPgx maps driver errors onto the store's sentinel errors while
// keeping the original error in the chain.
func classifyPgx(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgerrcode.IsOperatorIntervention(pgErr.Code),
			pgerrcode.IsInsufficientResources(pgErr.Code):
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) ||
		errors.As(err, &netErr) ||
		pgconn.Timeout(err) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
