package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nanodrive/utils"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey = "userIdStr"
	EmailKey  = "email"
)

// AuthMiddleware accepts an HS256 bearer token and scopes the request to its
// user_id claim. Browsers opening an EventSource cannot set headers, so the
// token may also come from the access_token query parameter.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" {
			utils.UnauthorizedResponse(c, "Authorization token required")
			c.Abort()
			return
		}

		claims, err := utils.VerifyJWTTokenWithSecret(token, jwtSecret)
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token", nil)
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(EmailKey, claims.Email)

		c.Next()
	}
}

// OwnerID returns the authenticated user id, or "" outside AuthMiddleware.
func OwnerID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}

	return strings.TrimSpace(authHeader[len(bearerPrefix):])
}
