// Package logging constructs the process logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the snapfresh logger. Development selects colored console
// output at debug level; production selects JSON at info level with
// ISO-8601 timestamps. Both carry a service field so logs aggregated
// from several agents stay attributable.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"

	logger, err := cfg.Build(zap.Fields(zap.String("service", "snapfresh")))
	if err != nil {
		return nil, fmt.Errorf("construct logger: %w", err)
	}
	return logger, nil
}
