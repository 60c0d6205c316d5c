package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"go.uber.org/zap"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, FormatJSON, cfg.Format)
}

func TestDevelopmentConfig(t *testing.T) {
	cfg := DevelopmentConfig()

	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, FormatConsole, cfg.Format)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"unknown": zapcore.InfoLevel,
	}
	for text, want := range cases {
		t.Run(text, func(t *testing.T) {
			assert.Equal(t, want, parseLevel(text))
		})
	}
}

func TestNewLogger_DefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	logger := newLogger(cfg)

	require.NotNil(t, logger)
}

func TestNewLogger_DevelopmentConfig(t *testing.T) {
	cfg := DevelopmentConfig()
	logger := newLogger(cfg)

	require.NotNil(t, logger)
}

func TestNewLogger_AllLogLevels(t *testing.T) {
	levels := []string{"debug", "info", "warn", "error", "unknown"}

	for _, level := range levels {
		t.Run(level, func(t *testing.T) {
			cfg := &Config{Level: level, Format: FormatJSON}
			logger := newLogger(cfg)
			require.NotNil(t, logger)
		})
	}
}

func TestL_ReturnsLogger(t *testing.T) {
	logger := L()
	require.NotNil(t, logger)
}

func TestS_ReturnsSugaredLogger(t *testing.T) {
	sugar := S()
	require.NotNil(t, sugar)
}

func TestWithNotification_AddsFields(t *testing.T) {
	sugar := WithNotification("n-1", 42)
	require.NotNil(t, sugar)
}

func TestWithFields(t *testing.T) {
	logger := WithFields(
		zap.String("key1", "value1"),
		zap.Int("key2", 42),
	)

	require.NotNil(t, logger)
}

func TestDebug_NoPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Debug("test debug message", zap.String("key", "value"))
	})
}

func TestInfo_NoPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("test info message", zap.String("key", "value"))
	})
}

func TestWarn_NoPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Warn("test warn message", zap.String("key", "value"))
	})
}

func TestError_NoPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Error("test error message", zap.String("key", "value"))
	})
}

func TestSync_NoPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		err := Sync()
		// Sync may return an error on some platforms (e.g. stdout sync on
		// Windows) but it should not panic.
		_ = err
	})
}
