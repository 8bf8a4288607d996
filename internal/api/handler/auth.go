package handler

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"cleancity/backend/internal/auth"
	"cleancity/backend/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const actorKey = "actor"

// AuthMiddleware resolves the bearer token into an actor. Browsers cannot set
// headers on websocket upgrades, so access_token is accepted as a fallback.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			tokenString = c.Query("access_token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
			return
		}

		actor, err := h.Auth.Authenticate(c.Request.Context(), tokenString)
		if errors.Is(err, auth.ErrUnauthenticated) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		if err != nil {
			h.Logger.Error("Failed to authenticate request", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireRole rejects actors outside roles before the handler runs.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, actorFrom(c).Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) models.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}
	}
	actor, _ := v.(models.Actor)
	return actor
}

func extractToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
