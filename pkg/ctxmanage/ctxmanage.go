package ctxmanage

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceIDHeader is echoed back on every response.
const TraceIDHeader = "X-Request-ID"

type traceKey struct{}

// ginTraceKey is the gin.Context key holding the trace id.
const ginTraceKey = "trace_id"

// WithTraceID stores the trace id in ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID returns the trace id carried by ctx, or "" when none is set.
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// SetTraceIdOfRequest assigns a trace id to the request, reusing the
// caller-supplied X-Request-ID when present.
func SetTraceIdOfRequest(c *gin.Context) string {
	traceId := c.GetHeader(TraceIDHeader)
	if traceId == "" {
		traceId = uuid.NewString()
	}
	c.Set(ginTraceKey, traceId)
	c.Request = c.Request.WithContext(WithTraceID(c.Request.Context(), traceId))
	c.Header(TraceIDHeader, traceId)
	return traceId
}

// GetTraceIdOfRequest returns the trace id set by the logger middleware.
// Requests that bypassed the middleware get a fresh id.
func GetTraceIdOfRequest(c *gin.Context) string {
	if v, ok := c.Get(ginTraceKey); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	if id := TraceID(c.Request.Context()); id != "" {
		return id
	}
	return uuid.NewString()
}
