// internal/logging/levels.go
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug (-2). Message delivery details are logged
// here, so it is off unless configured.
const TraceLevel = zapcore.Level(-2)

// Level is a zapcore.Level that also decodes "trace" from configuration.
type Level zapcore.Level

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	lvl, err := LevelFromString(string(text))
	if err != nil {
		return err
	}
	*l = Level(lvl)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l.Zap() == TraceLevel {
		return []byte("trace"), nil
	}
	return l.Zap().MarshalText()
}

// Zap returns the level as a zapcore.Level.
func (l Level) Zap() zapcore.Level {
	return zapcore.Level(l)
}

// LevelFromString parses a level name, case-insensitively. Besides zap's
// names it accepts "trace".
func LevelFromString(level string) (zapcore.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

// lowestLevel returns the most verbose of base and every override. The
// output cores are built at this level; gates raise it per logger.
func lowestLevel(base Level, overrides map[string]Level) zapcore.Level {
	lowest := base.Zap()
	for _, lvl := range overrides {
		if lvl.Zap() < lowest {
			lowest = lvl.Zap()
		}
	}
	return lowest
}
