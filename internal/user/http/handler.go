package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/record-console/internal/auth"
	consolehttp "github.com/nekogravitycat/record-console/internal/console/http"
	"github.com/nekogravitycat/record-console/internal/pkg/apperror"
	"github.com/nekogravitycat/record-console/internal/pkg/response"
	"github.com/nekogravitycat/record-console/internal/user"
)

type UserHandler struct {
	userService user.Service
	jwtManager  *auth.JWTManager
}

func NewHandler(userService user.Service, jwtManager *auth.JWTManager) *UserHandler {
	return &UserHandler{
		userService: userService,
		jwtManager:  jwtManager,
	}
}

func mapError(err error) *apperror.AppError {
	switch {
	case errors.Is(err, user.ErrUsernameTaken):
		return apperror.Wrap(err, http.StatusConflict, err.Error()).WithReason("conflict")
	case errors.Is(err, user.ErrPasswordTooShort):
		return apperror.Wrap(err, http.StatusBadRequest, err.Error()).WithReason("invalid_value")
	case errors.Is(err, user.ErrWrongPassword):
		return apperror.Wrap(err, http.StatusForbidden, err.Error())
	case errors.Is(err, user.ErrNotFound):
		return apperror.Wrap(err, http.StatusNotFound, err.Error())
	}
	return consolehttp.MapError(err)
}

// Login authenticates a user using username and password.
// On success, it starts a session and returns a JWT access token bound to it.
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()

	sess, err := h.userService.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			// For security reasons, do not reveal which condition failed
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}
		response.Error(c, err, mapError)
		return
	}

	token, err := h.jwtManager.GenerateAccessToken(sess.ID, sess.UserID, sess.Username, string(sess.Role))
	if err != nil {
		_ = h.userService.Logout(sess.ID)
		response.Error(c, err)
		return
	}

	a, err := h.userService.Me(ctx, sess)
	if err != nil {
		_ = h.userService.Logout(sess.ID)
		response.Error(c, err, mapError)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		ExpiresIn:   int(h.jwtManager.TTL().Seconds()),
		SessionID:   sess.ID,
		User:        NewMeResponse(a),
	})
}

// Logout ends the session and discards its undo history.
func (h *UserHandler) Logout(c *gin.Context) {
	sess := auth.GetSession(c)
	if err := h.userService.Logout(sess.ID); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session has already ended"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Me retrieves the profile and capabilities of the current session.
func (h *UserHandler) Me(c *gin.Context) {
	a, err := h.userService.Me(c.Request.Context(), auth.GetSession(c))
	if err != nil {
		response.Error(c, err, mapError)
		return
	}
	c.JSON(http.StatusOK, NewMeResponse(a))
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), auth.GetSession(c), req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err, mapError)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateAccount adds a users record with a hashed password.
// Access Control: roles that may mutate users.
func (h *UserHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row, err := h.userService.CreateAccount(c.Request.Context(), auth.GetSession(c), req.toNewAccount())
	if err != nil {
		response.Error(c, err, mapError)
		return
	}

	c.JSON(http.StatusCreated, consolehttp.NewRecordResponse(row))
}
