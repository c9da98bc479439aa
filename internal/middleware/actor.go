package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/org-recognition-api/internal/models"
	appErrors "github.com/noah-isme/org-recognition-api/pkg/errors"
	"github.com/noah-isme/org-recognition-api/pkg/logger"
	"github.com/noah-isme/org-recognition-api/pkg/response"
)

const (
	// ContextActorKey is the gin context key storing the acting models.Actor.
	ContextActorKey = "currentActor"

	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Actor reads the identity forwarded by the upstream gateway. Requests without a
// usable identity are rejected.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		role := models.ActorRole(strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderActorRole))))
		if id == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if !role.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "unknown actor role"))
			return
		}

		c.Set(ContextActorKey, models.Actor{ID: id, Role: role})
		c.Set(logger.ActorIDKey, id)
		c.Next()
	}
}

// ActorFromContext returns the actor attached by Actor.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}
