package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/marketplace/internal/observability/context"
	"github.com/smallbiznis/marketplace/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderUserID    = "X-User-Id"
	HeaderActorRole = "X-Actor-Role"

	teamRoutePrefix = "/api/teams/:id"
)

// MiddlewareConfig controls request logging. A nil Logger falls back to the
// global zap logger.
type MiddlewareConfig struct {
	Logger          *zap.Logger
	Debug           bool
	ErrorClassifier func(err error) (errorType string, errorCode string)
}

// GinMiddleware tags the request context with its request, correlation,
// actor and route team ids and writes one http_request entry when it ends.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		cid := tagRequest(c)
		c.Header(correlation.HeaderName, cid)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := append(requestFields(c, route, status, time.Since(start)), errorFields(c, cfg)...)

		base := cfg.Logger
		if base == nil {
			base = zap.L()
		}
		logRequest(WithContext(c.Request.Context(), base), route, status, fields)
	}
}

func tagRequest(c *gin.Context) string {
	ctx := obscontext.WithRequestID(c.Request.Context(), ensureRequestID(c))
	ctx = correlation.ContextWithCorrelationID(ctx, c.GetHeader(correlation.HeaderName))
	ctx, cid := correlation.EnsureCorrelationID(ctx)
	ctx = obscontext.WithActor(ctx, c.GetHeader(HeaderActorRole), c.GetHeader(HeaderUserID))
	if strings.HasPrefix(c.FullPath(), teamRoutePrefix) {
		ctx = obscontext.WithTeamID(ctx, c.Param("id"))
	}
	c.Request = c.Request.WithContext(ctx)
	return cid
}

func requestFields(c *gin.Context, route string, status int, elapsed time.Duration) []zap.Field {
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("route", route),
		zap.Int("status", status),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
		zap.Int("bytes_out", max(c.Writer.Size(), 0)),
	}
	if feature := strings.TrimSpace(c.GetString("gate_feature")); feature != "" {
		fields = append(fields, zap.String("gate_feature", feature))
	}
	return fields
}

func errorFields(c *gin.Context, cfg MiddlewareConfig) []zap.Field {
	last := c.Errors.Last()
	if last == nil {
		return nil
	}
	var errorType, errorCode string
	if cfg.ErrorClassifier != nil {
		errorType, errorCode = cfg.ErrorClassifier(last.Err)
	}
	fields := []zap.Field{
		zap.String("error_type", errorType),
		zap.String("error_code", errorCode),
	}
	if cfg.Debug {
		fields = append(fields, zap.Stack("stack"))
	}
	return fields
}

func ensureRequestID(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header(HeaderRequestID, requestID)
	return requestID
}

func logRequest(log *zap.Logger, route string, status int, fields []zap.Field) {
	switch {
	case route == "/health" || strings.HasSuffix(route, "/metrics"):
		log.Debug("http_request", fields...)
	case status >= http.StatusInternalServerError:
		log.Error("http_request", fields...)
	case status >= http.StatusBadRequest:
		log.Warn("http_request", fields...)
	default:
		log.Info("http_request", fields...)
	}
}
