package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const TokenHeader = "X-API-Token"

// TokenMiddleware requires the X-API-Token header to equal token. An empty token disables the check.
func TokenMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.GetHeader(TokenHeader)
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "api token is required in '" + TokenHeader + "' header"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			logrus.Warnf("TokenMiddleware: rejected token from %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "invalid api token"})
			return
		}
		c.Next()
	}
}
