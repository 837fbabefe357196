package logger_test

import (
	"errors"
	"net/http/httptest"
	"testing"
	"taskMarket/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit(t *testing.T) {
	require.NoError(t, logger.Init(true))
	require.NoError(t, logger.Init(false))
	logger.Set(nil)
}

func TestLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.Set(zap.New(core))
	defer logger.Set(nil)

	logger.Error("Service: ошибка", errors.New("boom"), zap.String("task_id", "42"))
	req := httptest.NewRequest("GET", "/tasks?limit=5", nil)
	logger.HttpRequestInfo(req, "HTTP_IN:")
	logger.Warn("warn")
	logger.Debug("debug")

	require.Equal(t, 4, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "boom", entry.ContextMap()["error"])
	assert.Equal(t, "42", entry.ContextMap()["task_id"])

	httpEntry := logs.All()[1]
	assert.Equal(t, "GET", httpEntry.ContextMap()["method"])
	assert.Equal(t, "/tasks", httpEntry.ContextMap()["path"])
	assert.Equal(t, "limit=5", httpEntry.ContextMap()["query"])
}
