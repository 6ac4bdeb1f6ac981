package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CacheControl lets shared caches keep question reads for maxAgeSeconds.
// Authenticated requests and non-read methods are marked no-store.
func CacheControl(maxAgeSeconds int) gin.HandlerFunc {
	public := fmt.Sprintf("public, max-age=%d", maxAgeSeconds)
	return func(c *gin.Context) {
		method := c.Request.Method
		if (method == http.MethodGet || method == http.MethodHead) && c.GetHeader("Authorization") == "" {
			c.Header("Cache-Control", public)
		} else {
			c.Header("Cache-Control", "no-store")
		}
		c.Next()
	}
}
