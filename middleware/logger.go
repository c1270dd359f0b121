package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"honnylove-backend/internal/metrics"
	"honnylove-backend/pkg/ctxmanage"
	"honnylove-backend/pkg/logging"
	"honnylove-backend/pkg/logkey"
)

// Logger assigns the request trace id, puts a request-scoped logger in the
// context and records one log line and the HTTP metrics per request.
func Logger(base *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		traceId := ctxmanage.SetTraceIdOfRequest(c)

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		fields := []zap.Field{zap.String(logkey.TraceID, traceId)}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields, zap.String(logkey.SpanID, sc.SpanID().String()), zap.String("otel_trace_id", sc.TraceID().String()))
		}
		reqLog := base.With(fields...)
		c.Request = c.Request.WithContext(logging.ContextWithLogger(ctx, reqLog))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(status), elapsed)

		lvl := zap.InfoLevel
		if status >= 500 {
			lvl = zap.ErrorLevel
		}
		reqLog.Log(lvl, "request completed",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		)
	}
}
