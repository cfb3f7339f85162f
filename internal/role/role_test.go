package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/record-console/internal/catalog"
)

func TestParse(t *testing.T) {
	r, err := Parse("senior developer")
	require.NoError(t, err)
	assert.Equal(t, SeniorDeveloper, r)

	_, err = Parse("Intern")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestCatalogEnumerationMatchesRoles(t *testing.T) {
	f, err := catalog.Default().Lookup(catalog.Users, "role")
	require.NoError(t, err)

	want := make([]string, 0, len(All()))
	for _, r := range All() {
		want = append(want, string(r))
	}
	assert.Equal(t, want, f.Values)
}

func TestCapabilities(t *testing.T) {
	cases := []struct {
		role         Role
		undoFamilies []catalog.Family
		searchC      bool
		mutateC      bool
		mutateU      bool
	}{
		{Tester, nil, false, false, false},
		{JuniorDeveloper, nil, true, false, false},
		{SeniorDeveloper, []catalog.Family{catalog.Contacts}, true, true, false},
		{Manager, []catalog.Family{catalog.Users}, false, false, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			caps := tc.role.Capabilities()
			assert.True(t, caps.ChangeOwnPassword, "every role manages its own password")
			assert.Equal(t, tc.undoFamilies, caps.UndoFamilies())
			assert.Equal(t, tc.searchC, caps.CanSearch(catalog.Contacts))
			assert.Equal(t, tc.mutateC, caps.CanMutate(catalog.Contacts))
			assert.Equal(t, tc.mutateU, caps.CanMutate(catalog.Users))
		})
	}

	assert.Equal(t, Capabilities{}, Role("Intern").Capabilities())
}
