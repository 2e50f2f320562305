package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rovamart/payguard/internal/principal"
)

const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

// RequireActor builds the caller principal from the gateway headers.
// Requests without both headers never reach a handler.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := principal.Principal{
			ID:   strings.TrimSpace(c.GetHeader(HeaderActorID)),
			Role: strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole))),
		}
		if !actor.Valid() {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set("actor_id", actor.ID)
		c.Request = c.Request.WithContext(principal.WithPrincipal(c.Request.Context(), actor))
		c.Next()
	}
}

// authorize enforces the object/action pair before the handler touches
// the database.
func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := principal.FromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authz.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) principal.Principal {
	actor, _ := principal.FromContext(c.Request.Context())
	return actor
}
