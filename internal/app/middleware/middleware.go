package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/observability/metrics"
)

const (
	AllowedHeaders = "Content-Type, Authorization"
	DefaultMethods = "GET, POST, DELETE, OPTIONS"
)

// LoggerMiddleware logs every request: 5xx at Error, 4xx at Warn, the rest at Info.
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("user_agent", c.GetHeader("User-Agent")),
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, zap.String("error", msg))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP Request", fields...)
		default:
			logger.Info("HTTP Request", fields...)
		}
	}
}

// CORSMiddleware allows any origin. methodsByPath overrides the advertised
// methods for specific paths. Preflight requests end here with 200.
func CORSMiddleware(methodsByPath map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		methods, ok := methodsByPath[c.Request.URL.Path]
		if !ok {
			methods = DefaultMethods
		}
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", AllowedHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// SecurityMiddleware adds security headers suited to a JSON API.
func SecurityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Next()
	}
}

// ObservabilityMiddleware records request count and latency per route.
func ObservabilityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx := c.Request.Context()
		m := metrics.Get()
		m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.String("status", strconv.Itoa(c.Writer.Status())),
		))
		m.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
		))
	}
}

// OTELGinMiddleware returns the OpenTelemetry middleware for Gin.
func OTELGinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}
