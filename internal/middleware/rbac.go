package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
	"github.com/DanialBetres/stepful-scheduling/pkg/response"
)

// RequireActor restricts a route to the actor named by the path parameter.
// Without claims on the context (actor checks disabled) the request passes.
func RequireActor(role models.Role, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ActorFromContext(c)
		if claims == nil {
			c.Next()
			return
		}
		if !Owns(claims, role, c.Param(param)) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "token does not belong to this "+strings.ToLower(string(role))))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Owns reports whether claims identify the given actor. Nil claims always own.
func Owns(claims *models.ActorClaims, role models.Role, actorID string) bool {
	if claims == nil {
		return true
	}
	return claims.Role == role && claims.Subject == strings.TrimSpace(actorID)
}
