package server

import (
	"net/http"
	"strings"

	"github.com/cyp0633/libagenda/agenda"
	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/gin-gonic/gin"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
	HeaderActorRole = "X-Actor-Role"

	actorContextKey = "actor"
)

// ActorMiddleware reads the identity headers set by the upstream auth layer.
// A request without an id stays anonymous; an unknown role is rejected.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if id == "" {
			c.Next()
			return
		}

		role, err := lifecycle.ParseRole(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole))))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}

		name := strings.TrimSpace(c.GetHeader(HeaderActorName))
		if name == "" {
			name = id
		}
		c.Set(actorContextKey, agenda.Actor{ID: id, Name: name, Role: role})
		c.Next()
	}
}

// RequireActor rejects anonymous requests
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := actorFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "actor identity required"})
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) (agenda.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return agenda.Actor{}, false
	}
	actor, ok := v.(agenda.Actor)
	return actor, ok
}
