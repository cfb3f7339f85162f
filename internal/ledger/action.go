package ledger

import (
	"fmt"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/record"
)

// Kind tags the mutation an Action reverses.
type Kind int

const (
	KindAdd Kind = iota + 1
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Action is the pre-image of one successful mutation.
//
//	Add:    ID of the inserted record.
//	Update: ID, Field and the Previous value of that single field.
//	Delete: PreImage, the whole row including its identifier.
type Action struct {
	Kind     Kind
	Family   catalog.Family
	ID       int64
	Field    string
	Previous string
	PreImage record.Row
}

func (a Action) describe() string {
	switch a.Kind {
	case KindAdd:
		return fmt.Sprintf("removed %s record %d added earlier", a.Family, a.ID)
	case KindUpdate:
		return fmt.Sprintf("restored %s of %s record %d", a.Field, a.Family, a.ID)
	case KindDelete:
		return fmt.Sprintf("re-inserted deleted %s record %d", a.Family, a.ID)
	}
	return "nothing to undo"
}

// Status is the outcome of UndoLast.
type Status string

const (
	StatusApplied       Status = "applied"
	StatusEmpty         Status = "empty"
	StatusReapplyFailed Status = "reapply_failed"
)

// Result reports what UndoLast did. Reason is set for StatusReapplyFailed.
type Result struct {
	Status      Status
	Action      Action
	Description string
	Reason      string
}
