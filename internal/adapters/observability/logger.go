package observability

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger. Level is one of zap's level names
// ("debug", "info", "warn", "error"); development switches to the
// human-readable console encoder.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}
