package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/org-recognition-api/internal/models"
	appErrors "github.com/noah-isme/org-recognition-api/pkg/errors"
	"github.com/noah-isme/org-recognition-api/pkg/response"
)

// RBAC enforces role-based access control for routes. ADMIN passes every check.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowedRoles := make(map[models.ActorRole]struct{}, len(allowed))
	for _, a := range allowed {
		allowedRoles[models.ActorRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		actor, exists := ActorFromContext(c)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}

		if actor.Role == models.RoleAdmin {
			c.Next()
			return
		}
		if _, ok := allowedRoles[actor.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.ActorRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
