package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the daemon logger: JSON lines to cfg.File, or a
// colourless console encoder on stderr in development mode.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true

	switch {
	case cfg.Development:
		config.Development = true
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		config.OutputPaths = []string{"stderr"}
	case cfg.File != "":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		config.OutputPaths = []string{cfg.File}
		config.ErrorOutputPaths = []string{cfg.File, "stderr"}
	default:
		config.OutputPaths = []string{"stderr"}
	}

	return config.Build()
}

// NewLoggerOrStderr falls back to a stderr production logger if the
// configured sink cannot be opened.
func NewLoggerOrStderr(cfg LoggingConfig) *zap.Logger {
	logger, err := NewLogger(cfg)
	if err == nil {
		return logger
	}

	fallback := cfg
	fallback.File = ""
	if fallback.Level == "" {
		fallback.Level = "info"
	}
	logger, ferr := NewLogger(fallback)
	if ferr != nil {
		logger, _ = zap.NewProduction()
	}
	logger.Warn("falling back to stderr logging", zap.String("file", cfg.File), zap.Error(err))
	return logger
}
