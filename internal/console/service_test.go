package console_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/console"
	"github.com/nekogravitycat/record-console/internal/db/testutil"
	"github.com/nekogravitycat/record-console/internal/filter"
	"github.com/nekogravitycat/record-console/internal/ledger"
	"github.com/nekogravitycat/record-console/internal/record"
	"github.com/nekogravitycat/record-console/internal/role"
	"github.com/nekogravitycat/record-console/internal/session"
)

type fixture struct {
	store    record.Store
	service  *console.Service
	sessions *session.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	compiler := filter.NewCompiler(catalog.Default(), filter.SQLite)
	return &fixture{
		store:    store,
		service:  console.NewService(catalog.Default(), compiler, store, nil),
		sessions: session.NewRegistry(store, 50, nil),
	}
}

func (f *fixture) login(t *testing.T, r role.Role) *session.Session {
	t.Helper()
	s, err := f.sessions.Start(1000, "op-"+string(r), r)
	require.NoError(t, err)
	return s
}

func TestCapabilityGates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	testutil.InsertContacts(t, f.store, "Ann")

	criterion := filter.Criterion{Field: "first_name", Operator: filter.Equals, Value: "Ann"}

	t.Run("Tester Views Only", func(t *testing.T) {
		s := f.login(t, role.Tester)
		_, _, err := f.service.List(ctx, s, catalog.Contacts, record.Page{})
		assert.NoError(t, err)

		_, err = f.service.Search(ctx, s, catalog.Contacts, criterion)
		assert.ErrorIs(t, err, console.ErrForbidden)

		_, err = f.service.Create(ctx, s, catalog.Contacts, testutil.Contact("Bob"))
		assert.ErrorIs(t, err, console.ErrForbidden)
	})

	t.Run("Junior Searches", func(t *testing.T) {
		s := f.login(t, role.JuniorDeveloper)
		rows, err := f.service.Search(ctx, s, catalog.Contacts, criterion)
		require.NoError(t, err)
		assert.Len(t, rows, 1)

		assert.ErrorIs(t, f.service.Delete(ctx, s, catalog.Contacts, rows[0].ID), console.ErrForbidden)
		_, err = f.service.Undo(ctx, s, catalog.Contacts)
		assert.ErrorIs(t, err, console.ErrForbidden)
	})

	t.Run("Manager Has No Contacts", func(t *testing.T) {
		s := f.login(t, role.Manager)
		_, _, err := f.service.List(ctx, s, catalog.Contacts, record.Page{})
		assert.ErrorIs(t, err, console.ErrForbidden)
	})

	t.Run("Senior Has No Users", func(t *testing.T) {
		s := f.login(t, role.SeniorDeveloper)
		_, _, err := f.service.List(ctx, s, catalog.Users, record.Page{})
		assert.ErrorIs(t, err, console.ErrForbidden)
	})
}

func TestMutateThenUndo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.login(t, role.SeniorDeveloper)

	created, err := f.service.Create(ctx, s, catalog.Contacts, record.Fields{
		"first_name":    " Eve ",
		"last_name":     "Adams",
		"phone_primary": "(555) 010-0000",
		"email":         "eve@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Eve", created.Fields["first_name"])
	assert.Equal(t, "5550100000", created.Fields["phone_primary"])

	updated, err := f.service.UpdateField(ctx, s, catalog.Contacts, created.ID, "email", "eve@new.example")
	require.NoError(t, err)
	assert.Equal(t, "eve@new.example", updated.Fields["email"])

	require.NoError(t, f.service.Delete(ctx, s, catalog.Contacts, created.ID))

	depth, err := f.service.UndoDepth(s, catalog.Contacts)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	res, err := f.service.Undo(ctx, s, catalog.Contacts)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusApplied, res.Status)
	assert.Equal(t, ledger.KindDelete, res.Action.Kind)
	row, err := f.store.GetByID(ctx, catalog.Contacts, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "eve@new.example", row.Fields["email"])

	res, err = f.service.Undo(ctx, s, catalog.Contacts)
	require.NoError(t, err)
	assert.Equal(t, ledger.KindUpdate, res.Action.Kind)
	row, err = f.store.GetByID(ctx, catalog.Contacts, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "eve@example.com", row.Fields["email"])

	res, err = f.service.Undo(ctx, s, catalog.Contacts)
	require.NoError(t, err)
	assert.Equal(t, ledger.KindAdd, res.Action.Kind)
	_, err = f.store.GetByID(ctx, catalog.Contacts, created.ID)
	assert.ErrorIs(t, err, record.ErrNotFound)

	res, err = f.service.Undo(ctx, s, catalog.Contacts)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusEmpty, res.Status)
}

func TestUpdateFieldValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.login(t, role.SeniorDeveloper)
	ids := testutil.InsertContacts(t, f.store, "Ann")

	_, err := f.service.UpdateField(ctx, s, catalog.Contacts, ids[0], "nope", "x")
	assert.ErrorIs(t, err, catalog.ErrUnknownField)

	_, err = f.service.UpdateField(ctx, s, catalog.Contacts, ids[0], "email", "not-an-email")
	assert.ErrorIs(t, err, catalog.ErrInvalidValue)

	_, err = f.service.UpdateField(ctx, s, catalog.Contacts, ids[0]+99, "email", "a@b.com")
	assert.ErrorIs(t, err, record.ErrNotFound)

	// Position 4 is nickname.
	row, err := f.service.UpdateField(ctx, s, catalog.Contacts, ids[0], "4", "Annie")
	require.NoError(t, err)
	assert.Equal(t, "Annie", row.Fields["nickname"])

	depth, err := f.service.UndoDepth(s, catalog.Contacts)
	require.NoError(t, err)
	assert.Equal(t, 1, depth, "failed updates are not recorded")
}

func TestCreateRejectsBadRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.login(t, role.SeniorDeveloper)

	_, err := f.service.Create(ctx, s, catalog.Contacts, record.Fields{"first_name": "NoLastName"})
	assert.ErrorIs(t, err, catalog.ErrInvalidValue)

	fields := testutil.Contact("X")
	fields["username"] = "x"
	_, err = f.service.Create(ctx, s, catalog.Contacts, fields)
	assert.ErrorIs(t, err, catalog.ErrUnknownField)

	_, err = f.service.Create(ctx, s, catalog.Contacts, nil)
	assert.ErrorIs(t, err, console.ErrNothingToWrite)
}

func TestUsersFamilyRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.login(t, role.Manager)

	account := record.Fields{
		"username":      "bob",
		"name":          "Bob",
		"surname":       "Stone",
		"role":          "tester",
		"password_hash": "hash",
	}

	t.Run("Secret Fields Refused", func(t *testing.T) {
		_, err := f.service.Create(ctx, s, catalog.Users, account)
		assert.ErrorIs(t, err, console.ErrSecretField)
	})

	var id int64
	t.Run("Create With Secrets Redacts Output", func(t *testing.T) {
		row, err := f.service.CreateWithSecrets(ctx, s, catalog.Users, account)
		require.NoError(t, err)
		id = row.ID
		assert.Equal(t, "Tester", row.Fields["role"], "role is canonicalized")
		assert.NotContains(t, row.Fields, "password_hash")

		got, err := f.service.Get(ctx, s, catalog.Users, id)
		require.NoError(t, err)
		assert.NotContains(t, got.Fields, "password_hash")
	})

	t.Run("Password Hash Not Updatable", func(t *testing.T) {
		_, err := f.service.UpdateField(ctx, s, catalog.Users, id, "password_hash", "x")
		assert.ErrorIs(t, err, console.ErrNotUpdatable)
	})

	t.Run("Unknown Role Value", func(t *testing.T) {
		_, err := f.service.UpdateField(ctx, s, catalog.Users, id, "role", "Intern")
		assert.ErrorIs(t, err, catalog.ErrInvalidValue)
	})

	t.Run("Duplicate Username", func(t *testing.T) {
		dup := account.Clone()
		dup["username"] = "BOB"
		_, err := f.service.CreateWithSecrets(ctx, s, catalog.Users, dup)
		assert.ErrorIs(t, err, record.ErrConflict)
	})

	t.Run("Delete Self", func(t *testing.T) {
		self, err := f.sessions.Start(id, "bob", role.Manager)
		require.NoError(t, err)
		assert.ErrorIs(t, f.service.Delete(ctx, self, catalog.Users, id), console.ErrDeleteSelf)
	})

	t.Run("Delete Restores Hash On Undo", func(t *testing.T) {
		var hooked []console.Change
		f.service.OnChange(func(c console.Change) {
			hooked = append(hooked, c)
		})

		require.NoError(t, f.service.Delete(ctx, s, catalog.Users, id))
		assert.Equal(t, []console.Change{{Kind: console.Deleted, Family: catalog.Users, ID: id}}, hooked)

		res, err := f.service.Undo(ctx, s, catalog.Users)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusApplied, res.Status)
		assert.NotContains(t, res.Action.PreImage.Fields, "password_hash")

		row, err := f.store.GetByID(ctx, catalog.Users, id)
		require.NoError(t, err)
		assert.Equal(t, "hash", row.Fields["password_hash"])
		assert.Len(t, hooked, 1, "re-inserting a record is not reported")
	})
}

func TestChangeHooks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.login(t, role.Manager)

	var changes []console.Change
	f.service.OnChange(func(c console.Change) {
		changes = append(changes, c)
	})

	row, err := f.service.CreateWithSecrets(ctx, s, catalog.Users, record.Fields{
		"username":      "sen",
		"name":          "Sen",
		"surname":       "Ior",
		"role":          "Senior Developer",
		"password_hash": "hash",
	})
	require.NoError(t, err)
	assert.Empty(t, changes, "creation is not reported")

	t.Run("Role Update", func(t *testing.T) {
		changes = nil
		_, err := f.service.UpdateField(ctx, s, catalog.Users, row.ID, "role", "tester")
		require.NoError(t, err)
		assert.Equal(t, []console.Change{{Kind: console.Updated, Family: catalog.Users, ID: row.ID, Field: "role"}}, changes)
	})

	t.Run("Unchanged Value", func(t *testing.T) {
		changes = nil
		_, err := f.service.UpdateField(ctx, s, catalog.Users, row.ID, "role", "Tester")
		require.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("Undo Of Update", func(t *testing.T) {
		changes = nil
		res, err := f.service.Undo(ctx, s, catalog.Users)
		require.NoError(t, err)
		require.Equal(t, ledger.StatusApplied, res.Status)
		assert.Equal(t, []console.Change{{Kind: console.Updated, Family: catalog.Users, ID: row.ID, Field: "role"}}, changes)
	})

	t.Run("Undo Of Add", func(t *testing.T) {
		// The first role update is still on top of the add.
		_, err := f.service.Undo(ctx, s, catalog.Users)
		require.NoError(t, err)
		require.Equal(t, 1, s.UndoDepth(catalog.Users))

		changes = nil
		res, err := f.service.Undo(ctx, s, catalog.Users)
		require.NoError(t, err)
		require.Equal(t, ledger.StatusApplied, res.Status)
		assert.Equal(t, []console.Change{{Kind: console.Deleted, Family: catalog.Users, ID: row.ID}}, changes)
	})
}

func TestWritesSurviveCancelledCaller(t *testing.T) {
	f := newFixture(t)
	s := f.login(t, role.SeniorDeveloper)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	row, err := f.service.Create(ctx, s, catalog.Contacts, testutil.Contact("Ann"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.UndoDepth(catalog.Contacts))

	res, err := f.service.Undo(ctx, s, catalog.Contacts)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusApplied, res.Status)
	assert.Zero(t, s.UndoDepth(catalog.Contacts))

	_, err = f.store.GetByID(context.Background(), catalog.Contacts, row.ID)
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestAdvancedSearchNeedsTwoCriteria(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.login(t, role.JuniorDeveloper)
	testutil.InsertContacts(t, f.store, "Ann", "Anna")

	_, err := f.service.AdvancedSearch(ctx, s, catalog.Contacts, []filter.Criterion{
		{Field: "first_name", Operator: filter.StartsWith, Value: "An"},
	})
	reason, ok := filter.RejectionReason(err)
	require.True(t, ok)
	assert.Equal(t, filter.ReasonInsufficientCriteria, reason)

	rows, err := f.service.AdvancedSearch(ctx, s, catalog.Contacts, []filter.Criterion{
		{Field: "first_name", Operator: filter.StartsWith, Value: "An"},
		{Field: "first_name", Operator: filter.Contains, Value: "na"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Anna", rows[0].Fields["first_name"])
}
