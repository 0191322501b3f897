package middleware

import (
	"net/http"
	"strings"

	"peercall/internal/core/services"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates a Bearer room token. A nil auth service means auth
// is disabled and every request passes.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	if authService == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("room_id", claims.RoomID)
		c.Next()
	}
}
