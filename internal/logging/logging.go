// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the zap logger shared by every component.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger at the given level. Format "json" selects the
// production encoder; anything else the human-readable development encoder.
func New(levelStr, format string) (*zap.Logger, error) {
	level, err := parseLevel(levelStr)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// TelegramLogger adapts a zap logger to the telegram-bot-api BotLogger
// interface so library output lands in the same stream.
type TelegramLogger struct {
	Log *zap.Logger
}

// Println logs the operands at debug level.
func (l TelegramLogger) Println(v ...interface{}) {
	l.Log.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

// Printf logs a formatted message at debug level.
func (l TelegramLogger) Printf(format string, v ...interface{}) {
	l.Log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
