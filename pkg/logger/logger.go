// Package logger builds the zap loggers used by the mock server and the
// console, and the gin access-log middleware.
package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/contrail/pkg/config"
	"github.com/noah-isme/contrail/pkg/middleware/requestid"
)

// New builds the mock server logger: JSON in production, colourless console
// or JSON per LOG_FORMAT elsewhere.
func New(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.Env == config.EnvProduction {
		zc = zap.NewProductionConfig()
	}
	zc.Encoding = "json"
	if cfg.Log.Format == "console" {
		zc.Encoding = "console"
	}
	zc.Level = level(cfg.Log.Level, zapcore.InfoLevel)
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// NewConsole builds the logger for contrail commands. It writes to stderr so
// stdout stays parseable under --json, and defaults to warnings only.
func NewConsole(lvl string) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.Encoding = "console"
	zc.OutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	zc.EncoderConfig.TimeKey = ""
	zc.Level = level(lvl, zapcore.WarnLevel)
	return zc.Build()
}

// level parses text, falling back to def on empty or unknown input.
func level(text string, def zapcore.Level) zap.AtomicLevel {
	lvl := zap.NewAtomicLevelAt(def)
	if text != "" {
		if err := lvl.UnmarshalText([]byte(text)); err != nil {
			lvl.SetLevel(def)
		}
	}
	return lvl
}

// GinMiddleware writes one access line per request. Paths in quiet (health
// health checks, scrapes) are logged at debug level when they succeed.
func GinMiddleware(l *zap.Logger, quiet ...string) gin.HandlerFunc {
	muted := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		muted[p] = true
	}
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(started)),
			zap.String("ip", c.ClientIP()),
		}
		if id := requestid.Value(c); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			l.Error("http_request", fields...)
		case status >= 400:
			l.Warn("http_request", fields...)
		case muted[c.Request.URL.Path]:
			l.Debug("http_request", fields...)
		default:
			l.Info("http_request", fields...)
		}
	}
}
