package record

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/filter"
)

type sqliteStore struct {
	db *sql.DB
	q  queries
}

// NewSQLiteStore creates a Store over an embedded SQLite database.
func NewSQLiteStore(db *sql.DB, c *catalog.Catalog) Store {
	return &sqliteStore{
		db: db,
		q:  newQueries(c, filter.SQLite),
	}
}

func (s *sqliteStore) Select(ctx context.Context, family catalog.Family, pred filter.CompiledQuery) ([]Row, error) {
	query, args, t, err := s.q.selectWhere(family, pred)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s failed: %w", family, classifySQLite(err))
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
		return nil, fmt.Errorf("select %s failed: %w", family, classifySQLite(err))
	}
	return out, nil
}

func (s *sqliteStore) List(ctx context.Context, family catalog.Family, page Page) ([]Row, int, error) {
	query, args, t, err := s.q.list(family, page)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s failed: %w", family, classifySQLite(err))
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
		return nil, 0, fmt.Errorf("list %s failed: %w", family, classifySQLite(err))
	}
	return out, int(total), nil
}

func (s *sqliteStore) Insert(ctx context.Context, family catalog.Family, fields Fields) (int64, error) {
	return s.insert(ctx, family, 0, fields)
}

func (s *sqliteStore) InsertWithID(ctx context.Context, family catalog.Family, id int64, fields Fields) error {
	if id <= 0 {
		return fmt.Errorf("insert %s: invalid id %d", family, id)
	}
	_, err := s.insert(ctx, family, id, fields)
	return err
}

func (s *sqliteStore) insert(ctx context.Context, family catalog.Family, id int64, fields Fields) (int64, error) {
	query, args, err := s.q.insert(family, id, fields)
	if err != nil {
		return 0, err
	}

	var newID int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&newID); err != nil {
		return 0, fmt.Errorf("insert %s failed: %w", family, classifySQLite(err))
	}
	return newID, nil
}

func (s *sqliteStore) Update(ctx context.Context, family catalog.Family, id int64, fields Fields) (int64, error) {
	query, args, err := s.q.update(family, id, fields)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "update", family, query, args)
}

func (s *sqliteStore) Delete(ctx context.Context, family catalog.Family, id int64) (int64, error) {
	query, args, err := s.q.delete(family, id)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "delete", family, query, args)
}

func (s *sqliteStore) exec(ctx context.Context, op string, family catalog.Family, query string, args []any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s %s failed: %w", op, family, classifySQLite(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s %s rows affected: %w", op, family, err)
	}
	return n, nil
}

func (s *sqliteStore) GetByID(ctx context.Context, family catalog.Family, id int64) (Row, error) {
	query, args, t, err := s.q.getByID(family, id)
	if err != nil {
		return Row{}, err
	}

	row, err := scanRow(s.db.QueryRowContext(ctx, query, args...), t, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Row{}, ErrNotFound
		}
		return Row{}, fmt.Errorf("get %s failed: %w", family, classifySQLite(err))
	}
	return row, nil
}

func classifySQLite(err error) error {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		code := sqlErr.Code()
		switch {
		case code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
			code == sqlite3.SQLITE_CONSTRAINT_UNIQUE,
			code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqlErr.Error(), "UNIQUE"):
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case code&0xff == sqlite3.SQLITE_BUSY,
			code&0xff == sqlite3.SQLITE_LOCKED,
			code&0xff == sqlite3.SQLITE_CANTOPEN,
			code&0xff == sqlite3.SQLITE_IOERR:
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return err
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
