package middleware

import (
	"net/http"
	"strings"

	"github.com/ldco/PuppetMaster2-sub001/internal/auth"
	"github.com/ldco/PuppetMaster2-sub001/internal/models"

	"github.com/gin-gonic/gin"
)

// ExtractToken pulls the JWT out of the Authorization header, falling back
// to the token query param for WebSocket/browser clients that cannot set
// custom headers. Returns "" when no token was supplied.
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return c.Query("token")
}

// JWTAuthMiddleware validates JWT token in Authorization header
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is required",
			})
			c.Abort()
			return
		}

		// Validate token
		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		// Store user info in context for use in handlers
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// RequireRole rejects requests whose token role ranks below min.
// Must run after JWTAuthMiddleware.
func RequireRole(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := models.ParseRole(c.GetString("role"))
		if !ok || !role.AtLeast(min) {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Insufficient role for this endpoint",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
