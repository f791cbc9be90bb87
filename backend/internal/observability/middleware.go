package observability

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Middleware records request counts and latency for every route, and opens
// a server span that carries any incoming trace context.
func (c *Collector) Middleware() gin.HandlerFunc {
	tracer := Tracer()
	propagator := otel.GetTextMapPropagator()

	return func(ctx *gin.Context) {
		start := time.Now()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}

		reqCtx := propagator.Extract(ctx.Request.Context(), propagation.HeaderCarrier(ctx.Request.Header))
		reqCtx, span := tracer.Start(reqCtx, fmt.Sprintf("%s %s", ctx.Request.Method, route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", ctx.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()
		ctx.Request = ctx.Request.WithContext(reqCtx)

		ctx.Next()

		status := ctx.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))

		c.HTTPRequests.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(ctx.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
