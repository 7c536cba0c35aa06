// Package logging builds the structured zap logger shared by all meetEasy services.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger settings.
type Config struct {
	// Environment is "development" or "production"; development enables
	// console encoding and stack traces on warnings.
	Environment string
	// Level is one of debug, info, warn, error.
	Level string
	// Service is attached to every entry as the "service" field.
	Service string
}

// New creates a logger writing to stdout.
func New(cfg Config) *zap.Logger {
	return NewWithSink(cfg, zapcore.Lock(os.Stdout))
}

// NewWithSink creates a logger writing to ws. Tests use it to capture output.
func NewWithSink(cfg Config, ws zapcore.WriteSyncer) *zap.Logger {
	if cfg.Environment == "" {
		cfg.Environment = "production"
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	opts := []zap.Option{zap.AddCaller()}
	if cfg.Environment == "development" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	core := zapcore.NewCore(encoder, ws, ParseLevel(cfg.Level))
	logger := zap.New(core, opts...)

	fields := []zap.Field{zap.String("environment", cfg.Environment)}
	if cfg.Service != "" {
		fields = append(fields, zap.String("service", cfg.Service))
	}
	return logger.With(fields...)
}

// ParseLevel converts a level name to a zap level, defaulting to info.
func ParseLevel(level string) zap.AtomicLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn", "warning":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
