package utils

import (
	"net/http"
	"regexp"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey is where the request id middleware stores the id in the gin context.
const RequestIDKey = "request_id"

// Ginzap returns the access log middleware, one entry per request, tagged with the request id.
// Probe endpoints are not logged.
func Ginzap(logger *zap.Logger, timeFormat string, utc bool) gin.HandlerFunc {
	return ginzap.GinzapWithConfig(logger, &ginzap.Config{
		TimeFormat: timeFormat,
		UTC:        utc,
		SkipPaths:  []string{"/health", "/metrics"},
		Context: func(c *gin.Context) []zapcore.Field {
			if id := c.GetString(RequestIDKey); id != "" {
				return []zapcore.Field{zap.String("request_id", id)}
			}
			return nil
		},
	})
}

// RecoveryWithZap recovers panics, logs them with bearer tokens redacted and
// answers 500 with a generic message. Broken client connections are logged but not answered.
func RecoveryWithZap(logger *zap.Logger, stack bool) gin.HandlerFunc {
	return ginzap.CustomRecoveryWithZap(redactingLogger{logger}, stack, func(c *gin.Context, _ any) {
		Error(c, http.StatusInternalServerError, 50000, "something went wrong")
		c.Abort()
	})
}

var authorizationLine = regexp.MustCompile(`(?im)^(authorization|cookie):[^\r\n]*`)

// redactingLogger scrubs credentials from the request dump the recovery middleware logs.
type redactingLogger struct {
	*zap.Logger
}

func (l redactingLogger) Error(msg string, fields ...zapcore.Field) {
	for i, f := range fields {
		if f.Type == zapcore.StringType {
			fields[i].String = authorizationLine.ReplaceAllString(f.String, "$1: [redacted]")
		}
	}
	l.Logger.Error(msg, fields...)
}
