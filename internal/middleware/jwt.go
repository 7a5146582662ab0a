package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	"github.com/DanialBetres/stepful-scheduling/internal/service"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
	"github.com/DanialBetres/stepful-scheduling/pkg/response"
)

// ContextActorKey is the gin context key storing verified actor claims.
const ContextActorKey = "currentActor"

// Authenticate requires a valid bearer token and stores its claims on the context.
// A nil verifier turns the middleware into a pass-through.
func Authenticate(verifier *service.TokenVerifier) gin.HandlerFunc {
	if verifier == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextActorKey, claims)
		c.Next()
	}
}

// ActorFromContext returns the verified claims, or nil when actor checks are disabled.
func ActorFromContext(c *gin.Context) *models.ActorClaims {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.ActorClaims)
	if !ok {
		return nil
	}
	return claims
}
