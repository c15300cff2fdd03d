package mw

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"battery-swap-backend/internal/model"
	"battery-swap-backend/internal/store"
)

// UserHeader carries the authenticated user ID set by the upstream auth layer.
const UserHeader = "X-User-ID"

const userContextKey = "swap.user"

// UserLookup resolves a user ID to an account.
type UserLookup interface {
	User(ctx context.Context, id int64) (*model.User, error)
}

// Identity attaches the caller's user to the context when the request
// carries one. Anonymous requests pass through.
func Identity(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserHeader)
		if raw == "" {
			c.Next()
			return
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user identity"})
			return
		}

		user, err := users.User(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			} else {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
			}
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// RequireUser rejects anonymous requests.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user attached by Identity.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

// RequireUserType rejects callers that are anonymous or of another account type.
func RequireUserType(t model.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if user.UserType != t {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "only " + string(t) + " accounts may do this"})
			return
		}
		c.Next()
	}
}
