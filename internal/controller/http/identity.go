package http

import (
	"net/http"
	"time"

	"bookstack/internal/entity"
	"bookstack/internal/usecase"

	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// IdentityMiddleware turns the token claims stored by the auth middleware into
// the current user. Requests without claims pass through anonymous, so routes
// behind OptionalAuthMiddleware keep working for unauthenticated readers.
func IdentityMiddleware(authUseCase usecase.AuthUseCase) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.Next()
			return
		}

		issuedAt, _ := c.Get("token_issued_at")
		issued, ok := issuedAt.(time.Time)
		if !ok {
			issued = time.Time{}
		}

		user, err := authUseCase.ResolveActor(userID, issued)
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}

		c.Set(actorKey, user)
		c.Next()
	}
}

// AdminMiddleware allows only users holding the ADMIN permission.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorFrom(c)
		if actor == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		if !actor.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin permission required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) *entity.User {
	value, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, ok := value.(*entity.User)
	if !ok {
		return nil
	}
	return actor
}
