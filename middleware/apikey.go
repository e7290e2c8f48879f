package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// APIKeyRequired guards machine endpoints with the shared X-API-KEY. An
// empty key disables the endpoints entirely.
func APIKeyRequired(key string, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader("X-API-KEY")
		if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
			logger.Warn().Str("path", c.Request.URL.Path).Msg("rejected request without a valid API key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: invalid API key"})
			return
		}
		c.Next()
	}
}
