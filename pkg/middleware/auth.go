package middleware

import (
	"github.com/gin-gonic/gin"

	"errandbit/pkg/errutil"
)

const (
	// UserIDHeader carries the authenticated user id. Token verification is
	// done by the fronting auth layer; this service trusts the header it sets.
	UserIDHeader = "X-User-ID"

	actorKey = "actor_id"
)

// RequireActor rejects requests that reach a mutating endpoint without an
// authenticated user id.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(UserIDHeader)
		if actorID == "" {
			_ = c.Error(errutil.Unauthorized("authentication required", nil))
			c.Abort()
			return
		}

		c.Set(actorKey, actorID)
		c.Next()
	}
}

// ActorID returns the authenticated user id set by RequireActor.
func ActorID(c *gin.Context) string {
	return c.GetString(actorKey)
}
