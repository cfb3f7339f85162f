package user

import (
	"go.uber.org/zap"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/console"
	"github.com/nekogravitycat/record-console/internal/session"
)

// EndSessionsOnAccountChange returns a console hook that ends every live
// session of an account once its users record is deleted or its role changes.
// A session's capabilities are fixed at login, so the holder has to log in
// again under the stored role.
func EndSessionsOnAccountChange(sessions *session.Registry, log *zap.Logger) console.ChangeHook {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c console.Change) {
		if c.Family != catalog.Users {
			return
		}
		if c.Kind == console.Updated && c.Field != "role" {
			return
		}
		if n := sessions.EndUser(c.ID); n > 0 {
			log.Info("ended sessions of changed account",
				zap.Int64("user_id", c.ID),
				zap.String("field", c.Field),
				zap.Int("sessions", n))
		}
	}
}
