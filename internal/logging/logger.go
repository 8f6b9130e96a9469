// Package logging builds the application-wide structured logger used by
// every skillsmith component. It wraps zap the same way cmd/nerd/main.go
// built its CLI logger: a production (JSON) or development (console) config
// with the level set to debug in verbose mode, built once at startup and
// installed with Init for the category loggers returned by Get.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	Level   string // "debug", "info", "warn", "error"
	JSON    bool
	Verbose bool
}

// New builds a *zap.Logger from the given options.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.JSON {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	} else if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// Noop returns a logger that discards all output, for use in tests that
// don't care about log content.
func Noop() *zap.Logger {
	return zap.NewNop()
}
