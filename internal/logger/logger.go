// Package logger provides structured logging for the notification
// gateway using zap.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// global logger instance
	globalLogger *zap.Logger
	globalSugar  *zap.SugaredLogger
	once         sync.Once
)

// Format selects the encoder a Config builds: one knob instead of the
// independent Development/JSONOutput pair, since this project never
// exercises the two crossed (console-in-production or JSON-on-a-laptop
// never happen in practice).
type Format string

const (
	// FormatJSON is the production wire format: one JSON object per line.
	FormatJSON Format = "json"
	// FormatConsole is a human-readable, color-coded format for local runs.
	FormatConsole Format = "console"
)

// Config holds logger configuration options.
type Config struct {
	// Level is the minimum log level, anything zapcore.Level.UnmarshalText
	// accepts ("debug", "info", "warn", "error", "dpanic", "panic", "fatal").
	Level string
	// Format selects the encoder; see Format.
	Format Format
}

// DefaultConfig returns the production logger configuration: JSON at
// info level.
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: FormatJSON}
}

// DevelopmentConfig returns the local-run logger configuration: a
// colorized console encoder at debug level.
func DevelopmentConfig() *Config {
	return &Config{Level: "debug", Format: FormatConsole}
}

// Init initializes the global logger with the given configuration.
// It is safe to call multiple times; only the first call takes effect.
func Init(cfg *Config) {
	once.Do(func() {
		if cfg == nil {
			cfg = DefaultConfig()
		}
		globalLogger = newLogger(cfg)
		globalSugar = globalLogger.Sugar()
	})
}

// parseLevel decodes cfg.Level via zapcore's own text-level unmarshaler,
// falling back to info for an empty or unrecognized string rather than
// hand-rolling a switch over a fixed set of names.
func parseLevel(text string) zapcore.Level {
	var level zapcore.Level
	if text == "" {
		return zapcore.InfoLevel
	}
	if err := level.UnmarshalText([]byte(text)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// newLogger builds a zap.Logger from cfg. The encoder config starts from
// zap's own production/development presets rather than a field-by-field
// literal, so only the handful of gateway-specific overrides (a
// "timestamp" time key, millisecond durations) are spelled out here.
func newLogger(cfg *Config) *zap.Logger {
	level := parseLevel(cfg.Level)

	var encoder zapcore.Encoder
	opts := []zap.Option{zap.AddCaller()}

	switch cfg.Format {
	case FormatConsole:
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.EncodeDuration = zapcore.MillisDurationEncoder
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
		opts = append(opts, zap.Development())
	default:
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.EncodeDuration = zapcore.MillisDurationEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
	return zap.New(core, opts...)
}

// L returns the global logger, initializing it with DefaultConfig if Init
// has not been called yet.
func L() *zap.Logger {
	if globalLogger == nil {
		Init(nil)
	}
	return globalLogger
}

// S returns the global sugared logger, initializing it with DefaultConfig
// if Init has not been called yet.
func S() *zap.SugaredLogger {
	if globalSugar == nil {
		Init(nil)
	}
	return globalSugar
}

// Sync flushes any buffered log entries.
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// WithNotification returns a sugared logger carrying the notification id
// and account id fields every record-scoped log line in the consume loop
// and dispatcher needs.
func WithNotification(notificationID string, accountID int64) *zap.SugaredLogger {
	return S().With(zap.String("notification_id", notificationID), zap.Int64("account_id", accountID))
}

// WithFields returns a logger with additional fields.
func WithFields(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

// Info logs an info message.
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// Error logs an error message.
func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// Fatal logs a fatal message and exits.
func Fatal(msg string, fields ...zap.Field) {
	L().Fatal(msg, fields...)
}
