package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/favgrab/logging"
)

// RequestIDHeader carries the request ID on requests and responses.
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with an ID, reusing a well-formed inbound
// X-Request-ID and generating a UUIDv4 otherwise. The ID is echoed on the
// response, and the request context gets a logger that stamps request_id
// on every line; read it with logging.Ctx.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		logger := slog.Default().With("request_id", id)
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
