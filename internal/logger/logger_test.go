package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	prod, err := New("production", "")
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, prod.Core().Enabled(zapcore.InfoLevel))

	dev, err := New("development", "")
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))

	warn, err := New("production", "warn")
	require.NoError(t, err)
	assert.False(t, warn.Core().Enabled(zapcore.InfoLevel))
}

func TestParseLevelFallback(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense", zapcore.InfoLevel))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error", zapcore.InfoLevel))
}
