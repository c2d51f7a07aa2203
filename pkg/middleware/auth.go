package middleware

import (
	"net/http"
	"strings"

	"bookstack/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware rejects requests without a valid bearer access token and
// stores the token claims on the context for downstream handlers.
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, jwtService)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("refresh_hash", claims.RefreshHash)
		c.Set("token_issued_at", claims.IssuedAt.Time)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves the token when present but lets anonymous
// requests through. Routes whose access rules already distinguish anonymous
// actors use this instead of AuthMiddleware.
func OptionalAuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := bearerClaims(c, jwtService); ok {
			c.Set("user_id", claims.UserID)
			c.Set("refresh_hash", claims.RefreshHash)
			c.Set("token_issued_at", claims.IssuedAt.Time)
		}
		c.Next()
	}
}

func bearerClaims(c *gin.Context, jwtService *jwt.Service) (*jwt.AccessClaims, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}

	claims, err := jwtService.ValidateAccessToken(parts[1])
	if err != nil {
		return nil, false
	}
	return claims, true
}
