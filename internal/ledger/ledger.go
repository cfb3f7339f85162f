// Package ledger keeps the per-session undo history of record mutations.
//
// A Ledger holds one LIFO stack per record family the session may undo.
// It is an advisory cache of prior states: the store stays the source of
// truth, and divergence is reported through StatusReapplyFailed rather than
// repaired.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/record"
)

// ErrNoLedger is returned for a family the session keeps no history for.
var ErrNoLedger = errors.New("no undo ledger for this record family")

// Store is the part of record.Store the ledger replays inverses through.
type Store interface {
	InsertWithID(ctx context.Context, family catalog.Family, id int64, fields record.Fields) error
	Update(ctx context.Context, family catalog.Family, id int64, fields record.Fields) (int64, error)
	Delete(ctx context.Context, family catalog.Family, id int64) (int64, error)
}

// Ledger is not safe for concurrent use; the owning session serializes access.
type Ledger struct {
	store    Store
	maxDepth int
	stacks   map[catalog.Family][]Action
	log      *zap.Logger
}

// New creates a ledger holding a stack for each of families. maxDepth bounds
// every stack; when it is exceeded the oldest action is dropped. Zero means
// unbounded.
func New(store Store, families []catalog.Family, maxDepth int, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	stacks := make(map[catalog.Family][]Action, len(families))
	for _, f := range families {
		stacks[f] = nil
	}
	return &Ledger{
		store:    store,
		maxDepth: maxDepth,
		stacks:   stacks,
		log:      log,
	}
}

// Holds reports whether the ledger keeps history for family.
func (l *Ledger) Holds(family catalog.Family) bool {
	_, ok := l.stacks[family]
	return ok
}

// Depth returns the number of undoable actions for family.
func (l *Ledger) Depth(family catalog.Family) int {
	return len(l.stacks[family])
}

// Clear drops all history, as on logout.
func (l *Ledger) Clear() {
	for f := range l.stacks {
		l.stacks[f] = nil
	}
}

// RecordAdd remembers an insert so it can be reversed by deleting id.
func (l *Ledger) RecordAdd(family catalog.Family, id int64) error {
	return l.push(Action{Kind: KindAdd, Family: family, ID: id})
}

// RecordUpdate remembers the value field held before it was changed.
func (l *Ledger) RecordUpdate(family catalog.Family, id int64, field, previous string) error {
	if field == "" {
		return fmt.Errorf("record update of %s %d: field name is empty", family, id)
	}
	return l.push(Action{Kind: KindUpdate, Family: family, ID: id, Field: field, Previous: previous})
}

// RecordDelete remembers the full row that was deleted.
func (l *Ledger) RecordDelete(family catalog.Family, preImage record.Row) error {
	return l.push(Action{Kind: KindDelete, Family: family, ID: preImage.ID, PreImage: preImage.Clone()})
}

func (l *Ledger) push(a Action) error {
	stack, ok := l.stacks[a.Family]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoLedger, a.Family)
	}
	if l.maxDepth > 0 && len(stack) >= l.maxDepth {
		dropped := stack[0]
		stack = append(stack[:0:0], stack[1:]...)
		l.log.Debug("undo history full, dropping oldest action",
			zap.String("family", string(a.Family)),
			zap.Stringer("kind", dropped.Kind),
			zap.Int64("id", dropped.ID))
	}
	l.stacks[a.Family] = append(stack, a)
	return nil
}

// UndoLast pops the most recent action for family and applies its inverse.
//
// Semantic failures (the record is gone, the identifier is taken) consume the
// action and are reported as StatusReapplyFailed. A transient failure (store
// unreachable, deadline hit) puts the action back and returns the error so the
// caller can retry. The inverse runs to completion even if ctx is cancelled.
func (l *Ledger) UndoLast(ctx context.Context, family catalog.Family) (Result, error) {
	stack, ok := l.stacks[family]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoLedger, family)
	}
	if len(stack) == 0 {
		return Result{Status: StatusEmpty, Description: "nothing to undo"}, nil
	}

	a := stack[len(stack)-1]
	l.stacks[family] = stack[:len(stack)-1]

	err := l.apply(context.WithoutCancel(ctx), a)
	switch {
	case err == nil:
		l.log.Info("undo applied",
			zap.String("family", string(family)),
			zap.Stringer("kind", a.Kind),
			zap.Int64("id", a.ID))
		return Result{Status: StatusApplied, Action: a, Description: a.describe()}, nil

	case transient(err):
		l.stacks[family] = append(l.stacks[family], a)
		return Result{}, fmt.Errorf("undo %s %s: %w", a.Kind, family, err)

	default:
		l.log.Warn("undo could not be reapplied",
			zap.String("family", string(family)),
			zap.Stringer("kind", a.Kind),
			zap.Int64("id", a.ID),
			zap.Error(err))
		return Result{Status: StatusReapplyFailed, Action: a, Reason: err.Error()}, nil
	}
}

var errRecordGone = errors.New("record no longer exists")

// transient reports whether err says nothing about the record, only that the
// store could not be asked.
func transient(err error) bool {
	return errors.Is(err, record.ErrStoreUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (l *Ledger) apply(ctx context.Context, a Action) error {
	switch a.Kind {
	case KindAdd:
		n, err := l.store.Delete(ctx, a.Family, a.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%s record %d: %w", a.Family, a.ID, errRecordGone)
		}
		return nil

	case KindUpdate:
		n, err := l.store.Update(ctx, a.Family, a.ID, record.Fields{a.Field: a.Previous})
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%s record %d: %w", a.Family, a.ID, errRecordGone)
		}
		return nil

	case KindDelete:
		err := l.store.InsertWithID(ctx, a.Family, a.PreImage.ID, a.PreImage.Fields.Clone())
		if errors.Is(err, record.ErrConflict) {
			return fmt.Errorf("%s identifier %d or one of its unique values is already in use", a.Family, a.PreImage.ID)
		}
		return err
	}
	return fmt.Errorf("unknown action kind %v", a.Kind)
}
