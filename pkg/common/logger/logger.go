package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the encoder and minimum level of the global logger.
type Config struct {
	// Env is "dev" (console) or "prod" (JSON).
	Env   string
	Level string
}

// Global logger instance. A no-op logger until Initialize is called so tests stay quiet.
var std = zap.NewNop().Sugar()

// Initialize sets up the global logger level based on input string (e.g., "debug", "info", "warn", "error")
func Initialize(level string) {
	InitializeWith(Config{Env: "dev", Level: level})
}

// InitializeWith builds the global logger from cfg.
func InitializeWith(cfg Config) {
	l, err := build(cfg)
	if err != nil {
		l, _ = zap.NewProduction()
	}
	std = l.Sugar()
}

func build(cfg Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if strings.EqualFold(cfg.Env, "prod") {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	// Skip the package-level helpers so the caller is the call site.
	return zcfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sync flushes buffered entries.
func Sync() { _ = std.Sync() }

// Package-level helpers
func Debug(format string, v ...interface{}) { std.Debugf(format, v...) }
func Info(format string, v ...interface{})  { std.Infof(format, v...) }
func Warn(format string, v ...interface{})  { std.Warnf(format, v...) }
func Error(format string, v ...interface{}) { std.Errorf(format, v...) }
