package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request ID in and out.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key holding the request ID.
	RequestIDKey = "request_id"
)

// Logger stamps each request with an ID (reusing the caller's X-Request-ID
// when present) and logs method, path, status and latency.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()

		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}
		log.Printf("[API] %s %s %d %v (request_id=%s)",
			c.Request.Method, path, c.Writer.Status(), time.Since(start), id)
		for _, e := range c.Errors {
			log.Printf("[API] error (request_id=%s): %v", id, e.Err)
		}
	}
}
