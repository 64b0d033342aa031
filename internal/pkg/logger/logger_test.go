package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Development(t *testing.T) {
	l := NewLogger("development")
	assert.NotNil(t, l)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_Production(t *testing.T) {
	l := NewLogger("production")
	assert.NotNil(t, l)
	// production はデフォルトで Info レベル
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestNewLogger_LogLevelEnv(t *testing.T) {
	os.Setenv("LOG_LEVEL", "error")
	defer os.Unsetenv("LOG_LEVEL")

	l := NewLogger("production")
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestSetAndGet(t *testing.T) {
	original := Get()
	defer Set(original)

	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))

	Info("テストメッセージ", zap.String("key", "value"))

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "テストメッセージ", entries[0].Message)
	assert.Equal(t, "value", entries[0].ContextMap()["key"])
}
