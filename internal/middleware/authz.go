package middleware

import (
	"net/http"

	"task-tracker/internal/models"
	"task-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	userKey  = "user"
	tokenKey = "token"
)

// Authenticate resolves the bearer token on the request to a user. It is the
// only place that sets the caller identity read by CurrentUser.
func Authenticate(auth services.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, token, err := auth.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": models.ErrUnauthenticated.Error(),
			})
			return
		}

		c.Set(userKey, user)
		c.Set(tokenKey, token)

		c.Next()
	}
}

// CurrentUser returns the authenticated caller, or nil outside Authenticate.
func CurrentUser(c *gin.Context) *models.User {
	value, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}

// CurrentToken returns the token the caller authenticated with.
func CurrentToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
