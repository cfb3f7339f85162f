// Package console runs the role-gated record operations of a logged-in session:
// listing, searching, mutating and undoing records of one family at a time.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/filter"
	"github.com/nekogravitycat/record-console/internal/ledger"
	"github.com/nekogravitycat/record-console/internal/record"
	"github.com/nekogravitycat/record-console/internal/session"
)

var (
	ErrForbidden      = errors.New("operation not permitted for this role")
	ErrNotUpdatable   = errors.New("field cannot be updated")
	ErrSecretField    = errors.New("field cannot be set through the record console")
	ErrDeleteSelf     = errors.New("an account cannot delete itself")
	ErrNothingToWrite = errors.New("no fields given")
)

// ChangeKind tags a Change.
type ChangeKind int

const (
	Deleted ChangeKind = iota + 1
	Updated
)

// Change is a committed mutation of one record, whether made directly or by
// an undo. Field is set for Updated.
type Change struct {
	Kind   ChangeKind
	Family catalog.Family
	ID     int64
	Field  string
}

// ChangeHook observes committed changes, e.g. to end the sessions of an
// account that was removed or changed role.
type ChangeHook func(Change)

type Service struct {
	catalog  *catalog.Catalog
	compiler *filter.Compiler
	store    record.Store
	onChange []ChangeHook
	log      *zap.Logger
}

func NewService(cat *catalog.Catalog, compiler *filter.Compiler, store record.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		catalog:  cat,
		compiler: compiler,
		store:    store,
		log:      log,
	}
}

// OnChange registers a hook run after every confirmed delete or field update.
func (s *Service) OnChange(h ChangeHook) {
	s.onChange = append(s.onChange, h)
}

// Catalog exposes the field catalog backing the service.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// ------------------------
//   Read operations
// ------------------------

func (s *Service) List(ctx context.Context, sess *session.Session, family catalog.Family, page record.Page) ([]record.Row, int, error) {
	if !sess.Capabilities().CanView(family) {
		return nil, 0, forbidden(sess, "view", family)
	}
	rows, total, err := s.store.List(ctx, family, page)
	if err != nil {
		return nil, 0, err
	}
	return s.redactAll(family, rows), total, nil
}

func (s *Service) Get(ctx context.Context, sess *session.Session, family catalog.Family, id int64) (record.Row, error) {
	if !sess.Capabilities().CanView(family) {
		return record.Row{}, forbidden(sess, "view", family)
	}
	row, err := s.store.GetByID(ctx, family, id)
	if err != nil {
		return record.Row{}, err
	}
	return s.redact(family, row), nil
}

// Search runs a single-criterion search.
func (s *Service) Search(ctx context.Context, sess *session.Session, family catalog.Family, criterion filter.Criterion) ([]record.Row, error) {
	return s.search(ctx, sess, family, filter.Simple, []filter.Criterion{criterion})
}

// AdvancedSearch ANDs two or more criteria together.
func (s *Service) AdvancedSearch(ctx context.Context, sess *session.Session, family catalog.Family, criteria []filter.Criterion) ([]record.Row, error) {
	return s.search(ctx, sess, family, filter.Composite, criteria)
}

func (s *Service) search(ctx context.Context, sess *session.Session, family catalog.Family, path filter.Path, criteria []filter.Criterion) ([]record.Row, error) {
	if !sess.Capabilities().CanSearch(family) {
		return nil, forbidden(sess, "search", family)
	}

	q, err := s.compiler.Compile(family, path, criteria)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.Select(ctx, family, q)
	if err != nil {
		return nil, err
	}

	s.log.Debug("search",
		zap.String("family", string(family)),
		zap.Stringer("path", path),
		zap.Int("criteria", len(criteria)),
		zap.Int("matches", len(rows)))

	return s.redactAll(family, rows), nil
}

// ------------------------
//   Mutations
// ------------------------

// Create inserts a record. Secret fields are refused; use CreateWithSecrets for accounts.
func (s *Service) Create(ctx context.Context, sess *session.Session, family catalog.Family, fields record.Fields) (record.Row, error) {
	for name := range fields {
		if f, err := s.catalog.Lookup(family, name); err == nil && f.Secret {
			return record.Row{}, fmt.Errorf("%w: %s", ErrSecretField, name)
		}
	}
	return s.CreateWithSecrets(ctx, sess, family, fields)
}

// CreateWithSecrets inserts a record whose secret fields were prepared by a
// trusted caller, such as a hashed password.
func (s *Service) CreateWithSecrets(ctx context.Context, sess *session.Session, family catalog.Family, fields record.Fields) (record.Row, error) {
	if !sess.Capabilities().CanMutate(family) {
		return record.Row{}, forbidden(sess, "create", family)
	}

	clean, err := s.normalizeAll(family, fields)
	if err != nil {
		return record.Row{}, err
	}

	// Once started, a write runs to completion even if the caller goes away.
	storeCtx := context.WithoutCancel(ctx)

	var row record.Row
	err = sess.Run(func(l *ledger.Ledger) error {
		id, err := s.store.Insert(storeCtx, family, clean)
		if err != nil {
			return err
		}
		row = record.Row{ID: id, Fields: clean}
		s.remember(sess, l.Holds(family), func() error { return l.RecordAdd(family, id) })
		return nil
	})
	if err != nil {
		return record.Row{}, err
	}

	s.log.Info("record created",
		zap.String("family", string(family)),
		zap.Int64("id", row.ID),
		zap.String("by", sess.Username))
	return s.redact(family, row), nil
}

// UpdateField changes one field of one record. field is a name or a 1-based
// position in the catalog.
func (s *Service) UpdateField(ctx context.Context, sess *session.Session, family catalog.Family, id int64, field, value string) (record.Row, error) {
	if !sess.Capabilities().CanMutate(family) {
		return record.Row{}, forbidden(sess, "update", family)
	}

	f, err := s.catalog.Resolve(family, field)
	if err != nil {
		return record.Row{}, err
	}
	if !f.Updatable {
		return record.Row{}, fmt.Errorf("%w: %s", ErrNotUpdatable, f.Name)
	}
	clean, err := f.Normalize(value)
	if err != nil {
		return record.Row{}, err
	}

	storeCtx := context.WithoutCancel(ctx)

	var after record.Row
	var changed bool
	err = sess.Run(func(l *ledger.Ledger) error {
		before, err := s.store.GetByID(storeCtx, family, id)
		if err != nil {
			return err
		}

		n, err := s.store.Update(storeCtx, family, id, record.Fields{f.Name: clean})
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("update %s %d affected %d rows: %w", family, id, n, record.ErrRowMismatch)
		}

		after = before.Clone()
		after.Fields[f.Name] = clean
		previous := before.Fields[f.Name]
		changed = previous != clean
		s.remember(sess, l.Holds(family), func() error { return l.RecordUpdate(family, id, f.Name, previous) })
		return nil
	})
	if err != nil {
		return record.Row{}, err
	}

	s.log.Info("record updated",
		zap.String("family", string(family)),
		zap.Int64("id", id),
		zap.String("field", f.Name),
		zap.String("by", sess.Username))

	if changed {
		s.notify(Change{Kind: Updated, Family: family, ID: id, Field: f.Name})
	}
	return s.redact(family, after), nil
}

func (s *Service) Delete(ctx context.Context, sess *session.Session, family catalog.Family, id int64) error {
	if !sess.Capabilities().CanMutate(family) {
		return forbidden(sess, "delete", family)
	}
	if family == catalog.Users && id == sess.UserID {
		return ErrDeleteSelf
	}

	storeCtx := context.WithoutCancel(ctx)

	err := sess.Run(func(l *ledger.Ledger) error {
		before, err := s.store.GetByID(storeCtx, family, id)
		if err != nil {
			return err
		}

		n, err := s.store.Delete(storeCtx, family, id)
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("delete %s %d affected %d rows: %w", family, id, n, record.ErrRowMismatch)
		}

		s.remember(sess, l.Holds(family), func() error { return l.RecordDelete(family, before) })
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("record deleted",
		zap.String("family", string(family)),
		zap.Int64("id", id),
		zap.String("by", sess.Username))

	s.notify(Change{Kind: Deleted, Family: family, ID: id})
	return nil
}

// ------------------------
//   Undo
// ------------------------

// Undo reverses the session's most recent mutation of family.
func (s *Service) Undo(ctx context.Context, sess *session.Session, family catalog.Family) (ledger.Result, error) {
	if !sess.Capabilities().CanUndo(family) {
		return ledger.Result{}, forbidden(sess, "undo", family)
	}

	var res ledger.Result
	err := sess.Run(func(l *ledger.Ledger) error {
		var err error
		res, err = l.UndoLast(ctx, family)
		return err
	})
	if err != nil {
		return ledger.Result{}, err
	}

	if res.Status == ledger.StatusApplied {
		switch res.Action.Kind {
		case ledger.KindAdd:
			s.notify(Change{Kind: Deleted, Family: family, ID: res.Action.ID})
		case ledger.KindUpdate:
			s.notify(Change{Kind: Updated, Family: family, ID: res.Action.ID, Field: res.Action.Field})
		}
	}

	res.Action.PreImage = s.redact(family, res.Action.PreImage)
	return res, nil
}

// UndoDepth reports how many actions the session can still undo for family.
func (s *Service) UndoDepth(sess *session.Session, family catalog.Family) (int, error) {
	if !sess.Capabilities().CanUndo(family) {
		return 0, forbidden(sess, "undo", family)
	}
	return sess.UndoDepth(family), nil
}

// ------------------------
//   Helpers
// ------------------------

// normalizeAll validates a complete record against the catalog. Unknown keys
// are rejected and missing optional fields are stored as NULL.
func (s *Service) normalizeAll(family catalog.Family, fields record.Fields) (record.Fields, error) {
	if len(fields) == 0 {
		return nil, ErrNothingToWrite
	}
	for name := range fields {
		if _, err := s.catalog.Lookup(family, name); err != nil {
			return nil, err
		}
	}

	all, err := s.catalog.Fields(family)
	if err != nil {
		return nil, err
	}

	clean := make(record.Fields, len(all))
	var problems []string
	for _, f := range all {
		v, err := f.Normalize(fields[f.Name])
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		clean[f.Name] = v
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", catalog.ErrInvalidValue, strings.Join(trimPrefix(problems), "; "))
	}
	return clean, nil
}

func trimPrefix(msgs []string) []string {
	prefix := catalog.ErrInvalidValue.Error() + ": "
	for i, m := range msgs {
		msgs[i] = strings.TrimPrefix(m, prefix)
	}
	return msgs
}

// remember pushes an undo action. The mutation already happened, so a ledger
// failure is logged and not returned.
func (s *Service) remember(sess *session.Session, holds bool, push func() error) {
	if !holds {
		return
	}
	if err := push(); err != nil {
		s.log.Warn("failed to record undo action",
			zap.String("session_id", sess.ID),
			zap.Error(err))
	}
}

// notify runs the change hooks. It must not be called inside sess.Run, since a
// hook may end the calling session.
func (s *Service) notify(c Change) {
	for _, h := range s.onChange {
		h(c)
	}
}

func (s *Service) redact(family catalog.Family, row record.Row) record.Row {
	if row.Fields == nil {
		return row
	}
	fields, err := s.catalog.Fields(family)
	if err != nil {
		return row
	}
	out := row.Clone()
	for _, f := range fields {
		if f.Secret {
			delete(out.Fields, f.Name)
		}
	}
	return out
}

func (s *Service) redactAll(family catalog.Family, rows []record.Row) []record.Row {
	for i := range rows {
		rows[i] = s.redact(family, rows[i])
	}
	return rows
}

func forbidden(sess *session.Session, op string, family catalog.Family) error {
	return fmt.Errorf("%w: %s may not %s %s", ErrForbidden, sess.Role, op, family)
}
