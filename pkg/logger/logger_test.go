package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/contrail/pkg/config"
	"github.com/noah-isme/contrail/pkg/middleware/requestid"
)

func TestLevelFallsBack(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, level("debug", zapcore.InfoLevel).Level())
	assert.Equal(t, zapcore.WarnLevel, level("", zapcore.WarnLevel).Level())
	assert.Equal(t, zapcore.InfoLevel, level("loud", zapcore.InfoLevel).Level())
}

func TestNewHonoursConfiguredLevel(t *testing.T) {
	l, err := New(&config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "error"}})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))

	c, err := NewConsole("")
	require.NoError(t, err)
	assert.False(t, c.Core().Enabled(zapcore.InfoLevel))
}

func TestGinMiddlewareLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(requestid.Middleware(), GinMiddleware(zap.New(core), "/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/api/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, p := range []string{"/health", "/api/ok", "/api/missing", "/api/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 4)
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		assert.Equal(t, want[i], e.Level, e.ContextMap()["path"])
		assert.NotEmpty(t, e.ContextMap()["request_id"])
	}
}
