// Package utils provides shared helpers for the doctext binaries.
package utils

import "go.uber.org/zap"

// NewLogger returns a zap logger that writes to stderr, leaving stdout for command output.
// When debug is true, uses development config (human-readable, debug level); otherwise uses
// production config (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named("doctext"), nil
}
