// Package logging builds the zap loggers used by the loader and the CLI.
// The numeric packages never log.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level, encoding and sinks of the logger.
type Config struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is json or console.
	Format string `mapstructure:"format" yaml:"format"`
	// OutputPaths defaults to stderr, keeping stdout for results.
	OutputPaths []string `mapstructure:"output_paths" yaml:"output_paths"`
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = []string{"stderr"}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encoding := "json"
	if cfg.Format == "console" {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encoding = "console"
	}
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encCfg,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	z, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build zap logger: %w", err)
	}
	return z, nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
