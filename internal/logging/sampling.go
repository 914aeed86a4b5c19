// internal/logging/sampling.go
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// belowError enables everything under ErrorLevel.
var belowError = zap.LevelEnablerFunc(func(l zapcore.Level) bool {
	return l < zapcore.ErrorLevel
})

// newSampledCore samples entries below Error. Errors and above always
// pass through.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	sampled := zapcore.NewSamplerWithOptions(
		&levelGate{Core: core, enabler: belowError},
		cfg.Tick.Duration(),
		cfg.Initial,
		cfg.Thereafter,
	)
	return zapcore.NewTee(&levelGate{Core: core, enabler: zapcore.ErrorLevel}, sampled)
}

// levelGate admits only entries its enabler allows. Loggers carry one
// gate on top of their core; ForModule swaps it for the module's level.
type levelGate struct {
	zapcore.Core
	enabler zapcore.LevelEnabler
}

func (g *levelGate) Enabled(lvl zapcore.Level) bool {
	return g.enabler.Enabled(lvl) && g.Core.Enabled(lvl)
}

func (g *levelGate) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !g.Enabled(e.Level) {
		return ce
	}
	return g.Core.Check(e, ce)
}

func (g *levelGate) With(fields []zapcore.Field) zapcore.Core {
	return &levelGate{Core: g.Core.With(fields), enabler: g.enabler}
}

// regate replaces the outermost gate of core with enabler, or adds one.
func regate(core zapcore.Core, enabler zapcore.LevelEnabler) zapcore.Core {
	if g, ok := core.(*levelGate); ok {
		return &levelGate{Core: g.Core, enabler: enabler}
	}
	return &levelGate{Core: core, enabler: enabler}
}
