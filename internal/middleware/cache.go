package middleware

import "github.com/gin-gonic/gin"

// CacheHeader reports whether a response came from the stats cache.
const CacheHeader = "X-Cache"

// SetCacheHit records cache hit information for the current response.
func SetCacheHit(c *gin.Context, hit bool) {
	if c == nil {
		return
	}
	value := "MISS"
	if hit {
		value = "HIT"
	}
	c.Header(CacheHeader, value)
}
