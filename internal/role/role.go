// Package role maps account roles onto capability flags.
package role

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nekogravitycat/record-console/internal/catalog"
)

var ErrUnknownRole = errors.New("unknown role")

// Role is stored verbatim in users.role.
type Role string

const (
	Tester          Role = "Tester"
	JuniorDeveloper Role = "Junior Developer"
	SeniorDeveloper Role = "Senior Developer"
	Manager         Role = "Manager"
)

// All lists the roles in tier order.
func All() []Role {
	return []Role{Tester, JuniorDeveloper, SeniorDeveloper, Manager}
}

// Parse accepts a role name in any case.
func Parse(s string) (Role, error) {
	for _, r := range All() {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Capabilities is the full set of things a session may do.
type Capabilities struct {
	ChangeOwnPassword bool `json:"can_change_own_password"`
	ViewContacts      bool `json:"can_view_contacts"`
	SearchContacts    bool `json:"can_search_contacts"`
	MutateContacts    bool `json:"can_mutate_contacts"`
	UndoContacts      bool `json:"can_undo_contacts"`
	ViewUsers         bool `json:"can_view_users"`
	SearchUsers       bool `json:"can_search_users"`
	MutateUsers       bool `json:"can_mutate_users"`
	UndoUsers         bool `json:"can_undo_users"`
}

var capabilities = map[Role]Capabilities{
	Tester: {
		ChangeOwnPassword: true,
		ViewContacts:      true,
	},
	JuniorDeveloper: {
		ChangeOwnPassword: true,
		ViewContacts:      true,
		SearchContacts:    true,
	},
	SeniorDeveloper: {
		ChangeOwnPassword: true,
		ViewContacts:      true,
		SearchContacts:    true,
		MutateContacts:    true,
		UndoContacts:      true,
	},
	Manager: {
		ChangeOwnPassword: true,
		ViewUsers:         true,
		SearchUsers:       true,
		MutateUsers:       true,
		UndoUsers:         true,
	},
}

// Capabilities returns the flags granted to the role. Unknown roles get none.
func (r Role) Capabilities() Capabilities {
	return capabilities[r]
}

func (c Capabilities) CanView(f catalog.Family) bool {
	switch f {
	case catalog.Contacts:
		return c.ViewContacts
	case catalog.Users:
		return c.ViewUsers
	}
	return false
}

func (c Capabilities) CanSearch(f catalog.Family) bool {
	switch f {
	case catalog.Contacts:
		return c.SearchContacts
	case catalog.Users:
		return c.SearchUsers
	}
	return false
}

func (c Capabilities) CanMutate(f catalog.Family) bool {
	switch f {
	case catalog.Contacts:
		return c.MutateContacts
	case catalog.Users:
		return c.MutateUsers
	}
	return false
}

func (c Capabilities) CanUndo(f catalog.Family) bool {
	switch f {
	case catalog.Contacts:
		return c.UndoContacts
	case catalog.Users:
		return c.UndoUsers
	}
	return false
}

// UndoFamilies lists the families the session keeps an undo ledger for.
func (c Capabilities) UndoFamilies() []catalog.Family {
	var out []catalog.Family
	for _, f := range []catalog.Family{catalog.Contacts, catalog.Users} {
		if c.CanUndo(f) {
			out = append(out, f)
		}
	}
	return out
}
