package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/record-console/internal/session"
)

const sessionKey = "session"

// GetSession returns the session resolved by AuthRequired, or nil.
func GetSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

// SetSession stores the session for later handlers.
func SetSession(c *gin.Context, s *session.Session) {
	c.Set(sessionKey, s)
}
