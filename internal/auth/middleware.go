package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/response"
)

// Context keys set by AuthMiddleware.
const (
	UserKey  = "user"
	OwnerKey = "owner"
)

// AuthMiddleware rejects requests without a valid bearer token before any
// handler runs, and stores the caller's Owner and User in the context.
func AuthMiddleware(provider Provider, logger internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		user, err := provider.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, internal.ErrUnauthenticated) {
				logger.Errorf("[request_id=%s] authentication failed: %v", c.GetString("request_id"), err)
			}
			unauthorized(c, "invalid token")
			return
		}
		owner, err := internal.NewOwner(user.ID)
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}

		c.Set(UserKey, user)
		c.Set(OwnerKey, owner)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized(msg))
}

// OwnerFrom returns the Owner placed by AuthMiddleware. The zero Owner is
// returned when the middleware did not run; stores reject it.
func OwnerFrom(c *gin.Context) internal.Owner {
	owner, _ := c.Get(OwnerKey)
	o, _ := owner.(internal.Owner)
	return o
}
