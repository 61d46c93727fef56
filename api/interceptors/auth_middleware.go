package interceptors

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenValidator reports whether a bearer token is currently valid
type TokenValidator interface {
	Valid(ctx context.Context, token string) (bool, error)
}

func BearerAuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "NOT_AUTHORIZED"})
			return
		}
		ok, err := validator.Valid(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"status": "ERROR"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "NOT_AUTHORIZED"})
			return
		}
		c.Next()
	}
}
