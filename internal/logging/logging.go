// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the diagnostic logger. Progress for people goes to
// the command's writer; this logger carries retries, skipped sources, and
// fallback transitions as JSON on stderr.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = "warn"

// New returns a JSON logger writing to stderr at level. Level "debug" also
// records callers and switches to the console encoder.
func New(level string) (*zap.Logger, error) {
	if level == "" {
		level = DefaultLevel
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return Config(lvl).Build()
}

// Config is the zap configuration New builds from.
func Config(lvl zapcore.Level) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	if lvl == zapcore.DebugLevel {
		cfg.Encoding = "console"
		cfg.Development = true
		cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	} else {
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
	}
	return cfg
}
