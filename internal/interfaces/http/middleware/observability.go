// Package middleware holds the gin middleware for the WalletGate HTTP
// surface: request identity, observability, throttling, idempotency,
// response caching, and session authentication.
package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chainvault/walletgate/internal/infrastructure/monitoring"
	"github.com/chainvault/walletgate/pkg/constants"
	"github.com/chainvault/walletgate/pkg/logger"
)

// RequestID tags each request with an id, honoring one supplied by the
// client. The id lands in the gin context, the request context, and
// the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(string(constants.ContextKeyRequestID), id)
		c.Header("X-Request-ID", id)

		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Observability traces each request, records the HTTP metrics, and
// writes one access log line after the handler finishes. Metric paths
// use the route template so label cardinality stays bounded.
func Observability(log logger.Logger, tracer trace.Tracer, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = "not_found"
		}

		if metrics != nil {
			metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(status), duration)
		}
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.path", path),
			attribute.Int("http.status_code", status),
		)

		log.Info(c.Request.Context(), "Request processed",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", status),
			logger.Int64("latency_ms", duration.Milliseconds()),
			logger.String("client_ip", c.ClientIP()),
		)
	}
}
