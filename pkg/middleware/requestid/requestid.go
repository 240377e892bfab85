// Package requestid tags every request with an id echoed back to the caller.
package requestid

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderKey carries the request id in both directions.
const HeaderKey = "X-Request-ID"

const ctxKey = "contrail.request_id"

// acceptable bounds ids taken from clients so they are safe to log verbatim.
var acceptable = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,64}$`)

// Middleware reuses a well-formed incoming id or mints a UUID.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderKey)
		if !acceptable.MatchString(id) {
			id = uuid.NewString()
		}
		c.Set(ctxKey, id)
		c.Header(HeaderKey, id)
		c.Next()
	}
}

// Value returns the id assigned by Middleware, or "".
func Value(c *gin.Context) string {
	return c.GetString(ctxKey)
}
