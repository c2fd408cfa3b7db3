package middleware

import (
	"context"
	"strings"

	"codegame/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceIDHeader   = "X-Trace-Id"
	requestIDHeader = "X-Request-Id"
)

// TraceMiddleware ensures each request has a trace ID for logs and responses.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader(traceIDHeader))
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set("trace_id", traceID)
		ctx := context.WithValue(c.Request.Context(), contextkey.TraceID, traceID)
		c.Writer.Header().Set(traceIDHeader, traceID)

		if requestID := strings.TrimSpace(c.GetHeader(requestIDHeader)); requestID != "" {
			c.Set("request_id", requestID)
			ctx = context.WithValue(ctx, contextkey.RequestID, requestID)
			c.Writer.Header().Set(requestIDHeader, requestID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
