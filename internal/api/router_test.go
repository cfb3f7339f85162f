package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/record-console/internal/app"
	consoleHttp "github.com/nekogravitycat/record-console/internal/console/http"
	"github.com/nekogravitycat/record-console/internal/db/testutil"
	"github.com/nekogravitycat/record-console/internal/filter"
	"github.com/nekogravitycat/record-console/internal/pkg/response"
	"github.com/nekogravitycat/record-console/internal/user"
	userHttp "github.com/nekogravitycat/record-console/internal/user/http"
)

type testServer struct {
	router *gin.Engine
	users  user.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c := app.NewContainer(app.Config{
		Store:        testutil.NewStore(t),
		Dialect:      filter.SQLite,
		JWTSecret:    "test-secret",
		JWTTTL:       30 * time.Minute,
		BcryptCost:   4, // Lower cost for testing purposes
		UndoMaxDepth: 50,
	})

	_, err := c.UserService.BootstrapManager(context.Background(), user.NewAccount{
		Username: "boss",
		Name:     "Bo",
		Surname:  "Ss",
		Password: "boss-password",
	})
	require.NoError(t, err)

	return &testServer{router: c.Router, users: c.UserService}
}

func (s *testServer) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req, _ := http.NewRequest(method, path, bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	w := s.do("POST", "/v1/auth/login", userHttp.LoginRequest{Username: username, Password: password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp userHttp.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) createAccount(t *testing.T, managerToken, username, role string) string {
	t.Helper()
	w := s.do("POST", "/v1/users", userHttp.CreateAccountRequest{
		Username: username,
		Name:     "N",
		Surname:  "S",
		Role:     role,
		Password: username + "-password",
	}, managerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return s.login(t, username, username+"-password")
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	var token string

	t.Run("Login With Wrong Password", func(t *testing.T) {
		w := s.do("POST", "/v1/auth/login", userHttp.LoginRequest{Username: "boss", Password: "nope"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Login", func(t *testing.T) {
		token = s.login(t, "boss", "boss-password")
	})

	t.Run("Get Current User", func(t *testing.T) {
		w := s.do("GET", "/v1/me", nil, token)
		require.Equal(t, http.StatusOK, w.Code)
		me := decode[userHttp.MeResponse](t, w)
		assert.Equal(t, "Manager", me.Role)
		assert.True(t, me.Capabilities.MutateUsers)
		assert.False(t, me.Capabilities.ViewContacts)
	})

	t.Run("Change Password", func(t *testing.T) {
		w := s.do("PUT", "/v1/me/password", userHttp.ChangePasswordRequest{
			CurrentPassword: "boss-password",
			NewPassword:     "x",
		}, token)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do("PUT", "/v1/me/password", userHttp.ChangePasswordRequest{
			CurrentPassword: "boss-password",
			NewPassword:     "better-password",
		}, token)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("Logout Ends Session", func(t *testing.T) {
		w := s.do("POST", "/v1/auth/logout", nil, token)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = s.do("GET", "/v1/me", nil, token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Missing Token", func(t *testing.T) {
		w := s.do("GET", "/v1/contacts", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRoleGates(t *testing.T) {
	s := newTestServer(t)
	manager := s.login(t, "boss", "boss-password")
	tester := s.createAccount(t, manager, "tess", "Tester")
	junior := s.createAccount(t, manager, "jun", "Junior Developer")

	search := consoleHttp.CriterionRequest{Field: "first_name", Operator: "contains", Value: "a"}

	assert.Equal(t, http.StatusOK, s.do("GET", "/v1/contacts", nil, tester).Code)
	assert.Equal(t, http.StatusForbidden, s.do("POST", "/v1/contacts/search", search, tester).Code)
	assert.Equal(t, http.StatusOK, s.do("POST", "/v1/contacts/search", search, junior).Code)
	assert.Equal(t, http.StatusForbidden, s.do("POST", "/v1/contacts/undo", nil, junior).Code)
	assert.Equal(t, http.StatusForbidden, s.do("GET", "/v1/users", nil, junior).Code)
	assert.Equal(t, http.StatusForbidden, s.do("GET", "/v1/contacts", nil, manager).Code)
	assert.Equal(t, http.StatusForbidden, s.do("GET", "/v1/catalog/users", nil, tester).Code)
	assert.Equal(t, http.StatusNotFound, s.do("GET", "/v1/catalog/planets", nil, tester).Code)
}

func TestContactLifecycle(t *testing.T) {
	s := newTestServer(t)
	manager := s.login(t, "boss", "boss-password")
	senior := s.createAccount(t, manager, "sen", "Senior Developer")

	var id int64

	t.Run("Catalog", func(t *testing.T) {
		w := s.do("GET", "/v1/catalog/contacts", nil, senior)
		require.Equal(t, http.StatusOK, w.Code)
		cat := decode[consoleHttp.CatalogResponse](t, w)
		assert.Len(t, cat.Fields, 9)
		assert.Contains(t, cat.Operators, "date_by_month")
	})

	t.Run("Create", func(t *testing.T) {
		for _, name := range []string{"Ann", "Anna", "Hannah", "Banner"} {
			w := s.do("POST", "/v1/contacts", consoleHttp.CreateRecordRequest{Fields: map[string]string{
				"first_name":    name,
				"last_name":     "Doe",
				"phone_primary": "555-0100",
				"email":         name + "@example.com",
			}}, senior)
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
			id = decode[consoleHttp.RecordResponse](t, w).ID
		}
	})

	t.Run("Invalid Create", func(t *testing.T) {
		w := s.do("POST", "/v1/contacts", consoleHttp.CreateRecordRequest{Fields: map[string]string{
			"first_name": "X",
		}}, senior)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Search", func(t *testing.T) {
		w := s.do("POST", "/v1/contacts/search",
			consoleHttp.CriterionRequest{Field: "first_name", Operator: "starts_with", Value: "ann"}, senior)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 2, decode[consoleHttp.SearchResponse](t, w).Count)
	})

	t.Run("Search Rejections", func(t *testing.T) {
		w := s.do("POST", "/v1/contacts/search",
			consoleHttp.CriterionRequest{Field: "birth_date", Operator: "contains", Value: "19"}, senior)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(filter.ReasonOperatorMismatch), decode[response.ErrorResponse](t, w).Reason)

		w = s.do("POST", "/v1/contacts/search/advanced", consoleHttp.AdvancedSearchRequest{
			Criteria: []consoleHttp.CriterionRequest{{Field: "first_name", Operator: "equals", Value: "Ann"}},
		}, senior)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, string(filter.ReasonInsufficientCriteria), decode[response.ErrorResponse](t, w).Reason)
	})

	t.Run("Advanced Search", func(t *testing.T) {
		w := s.do("POST", "/v1/contacts/search/advanced", consoleHttp.AdvancedSearchRequest{
			Criteria: []consoleHttp.CriterionRequest{
				{Field: "first_name", Operator: "contains", Value: "ann"},
				{Field: "email", Operator: "starts_with", Value: "b"},
			},
		}, senior)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[consoleHttp.SearchResponse](t, w)
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, "Banner", resp.Items[0].Fields["first_name"])
	})

	t.Run("Update And Undo", func(t *testing.T) {
		path := "/v1/contacts/" + itoa(id)
		w := s.do("PATCH", path, consoleHttp.UpdateFieldRequest{Field: "nickname", Value: "Ban"}, senior)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = s.do("GET", "/v1/contacts/undo", nil, senior)
		assert.Equal(t, 5, decode[consoleHttp.UndoDepthResponse](t, w).Depth)

		w = s.do("POST", "/v1/contacts/undo", nil, senior)
		require.Equal(t, http.StatusOK, w.Code)
		undo := decode[consoleHttp.UndoResponse](t, w)
		assert.Equal(t, "applied", undo.Status)
		assert.Equal(t, "update", undo.Kind)

		w = s.do("GET", path, nil, senior)
		assert.Equal(t, "", decode[consoleHttp.RecordResponse](t, w).Fields["nickname"])
	})

	t.Run("Delete And Undo", func(t *testing.T) {
		path := "/v1/contacts/" + itoa(id)
		assert.Equal(t, http.StatusNoContent, s.do("DELETE", path, nil, senior).Code)
		assert.Equal(t, http.StatusNotFound, s.do("GET", path, nil, senior).Code)
		assert.Equal(t, http.StatusNotFound, s.do("DELETE", path, nil, senior).Code)

		w := s.do("POST", "/v1/contacts/undo", nil, senior)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, http.StatusOK, s.do("GET", path, nil, senior).Code)
	})

	t.Run("List", func(t *testing.T) {
		w := s.do("GET", "/v1/contacts?page=1&page_size=3", nil, senior)
		require.Equal(t, http.StatusOK, w.Code)
		page := decode[response.PageResponse[consoleHttp.RecordResponse]](t, w)
		assert.Equal(t, 4, page.Total)
		assert.Len(t, page.Items, 3)
	})
}

func TestUndoReapplyFailed(t *testing.T) {
	s := newTestServer(t)
	manager := s.login(t, "boss", "boss-password")
	first := s.createAccount(t, manager, "one", "Senior Developer")
	second := s.createAccount(t, manager, "two", "Senior Developer")

	w := s.do("POST", "/v1/contacts", consoleHttp.CreateRecordRequest{Fields: map[string]string{
		"first_name": "Zed", "last_name": "Z", "phone_primary": "1", "email": "z@z.io",
	}}, first)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[consoleHttp.RecordResponse](t, w).ID

	// Another session deletes the record before the first one undoes its add.
	require.Equal(t, http.StatusNoContent, s.do("DELETE", "/v1/contacts/"+itoa(id), nil, second).Code)

	w = s.do("POST", "/v1/contacts/undo", nil, first)
	require.Equal(t, http.StatusConflict, w.Code)
	undo := decode[consoleHttp.UndoResponse](t, w)
	assert.Equal(t, "reapply_failed", undo.Status)
	assert.NotEmpty(t, undo.Reason)

	w = s.do("POST", "/v1/contacts/undo", nil, first)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "empty", decode[consoleHttp.UndoResponse](t, w).Status)
}

func TestManagerAccounts(t *testing.T) {
	s := newTestServer(t)
	manager := s.login(t, "boss", "boss-password")

	w := s.do("POST", "/v1/users", userHttp.CreateAccountRequest{
		Username: "Boss", Name: "x", Surname: "y", Role: "Tester", Password: "long-enough",
	}, manager)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do("POST", "/v1/users", userHttp.CreateAccountRequest{
		Username: "intern", Name: "x", Surname: "y", Role: "Intern", Password: "long-enough",
	}, manager)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tester := s.createAccount(t, manager, "tess", "Tester")

	w = s.do("POST", "/v1/users/search", consoleHttp.CriterionRequest{
		Field: "username", Operator: "equals", Value: "tess",
	}, manager)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[consoleHttp.SearchResponse](t, w)
	require.Equal(t, 1, found.Count)
	assert.NotContains(t, found.Items[0].Fields, "password_hash")
	testerID := found.Items[0].ID

	w = s.do("PATCH", "/v1/users/"+itoa(testerID), consoleHttp.UpdateFieldRequest{
		Field: "password_hash", Value: "x",
	}, manager)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A role change logs the account out.
	senior := s.createAccount(t, manager, "sen", "Senior Developer")
	w = s.do("GET", "/v1/me", nil, senior)
	require.Equal(t, http.StatusOK, w.Code)
	seniorID := decode[userHttp.MeResponse](t, w).ID
	w = s.do("PATCH", "/v1/users/"+itoa(seniorID), consoleHttp.UpdateFieldRequest{
		Field: "role", Value: "Tester",
	}, manager)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusUnauthorized, s.do("GET", "/v1/contacts", nil, senior).Code)

	// Deleting an account ends its sessions.
	require.Equal(t, http.StatusNoContent, s.do("DELETE", "/v1/users/"+itoa(testerID), nil, manager).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do("GET", "/v1/me", nil, tester).Code)

	w = s.do("GET", "/v1/me", nil, manager)
	me := decode[userHttp.MeResponse](t, w)
	assert.Equal(t, http.StatusConflict, s.do("DELETE", "/v1/users/"+itoa(me.ID), nil, manager).Code)
}
