// internal/logging/otel.go
package logging

import (
	"errors"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// newOutputCore tees stdout and the OTEL bridge. Both accept the lowest
// configured level; the logger's gate decides what is actually written.
func newOutputCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	floor := lowestLevel(cfg.Level, cfg.Modules)

	var cores []zapcore.Core
	if cfg.Output.Stdout {
		cores = append(cores, zapcore.NewCore(newEncoder(cfg.Format), zapcore.Lock(os.Stdout), floor))
	}
	if cfg.Output.OTEL && otelProvider != nil {
		bridge := otelzap.NewCore("boxd", otelzap.WithLoggerProvider(otelProvider))
		cores = append(cores, &levelGate{Core: bridge, enabler: floor})
	}

	switch len(cores) {
	case 0:
		return nil, errors.New("no log output available: stdout is disabled and otel needs telemetry.enabled with telemetry.logs.enabled")
	case 1:
		return newSampledCore(cores[0], cfg.Sampling), nil
	default:
		return newSampledCore(zapcore.NewTee(cores...), cfg.Sampling), nil
	}
}
