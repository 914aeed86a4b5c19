// internal/logging/config.go
package logging

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/boxd/internal/config"
	"go.uber.org/zap/zapcore"
)

// Config is the "logging" section of the boxd configuration.
type Config struct {
	Level Level `koanf:"level"`
	// Modules overrides Level for loggers returned by ForModule, keyed by
	// module name.
	Modules    map[string]Level  `koanf:"modules"`
	Format     string            `koanf:"format"`
	Output     OutputConfig      `koanf:"output"`
	Sampling   SamplingConfig    `koanf:"sampling"`
	Caller     CallerConfig      `koanf:"caller"`
	Stacktrace StacktraceConfig  `koanf:"stacktrace"`
	Fields     map[string]string `koanf:"fields"`
}

type OutputConfig struct {
	Stdout bool `koanf:"stdout"`
	OTEL   bool `koanf:"otel"`
}

// SamplingConfig limits repeated entries below Error. Within each Tick
// the first Initial entries with the same message are kept, then every
// Thereafter-th one.
type SamplingConfig struct {
	Enabled    bool            `koanf:"enabled"`
	Tick       config.Duration `koanf:"tick"`
	Initial    int             `koanf:"initial"`
	Thereafter int             `koanf:"thereafter"`
}

// CallerConfig adds the calling file and line. Skip drops further frames,
// for code that logs through its own helpers.
type CallerConfig struct {
	Enabled bool `koanf:"enabled"`
	Skip    int  `koanf:"skip"`
}

type StacktraceConfig struct {
	Level Level `koanf:"level"`
}

// NewDefaultConfig returns JSON logging to stdout at info.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  Level(zapcore.InfoLevel),
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       config.Duration(time.Second),
			Initial:    100,
			Thereafter: 10,
		},
		Caller:     CallerConfig{Enabled: true},
		Stacktrace: StacktraceConfig{Level: Level(zapcore.ErrorLevel)},
		Fields:     map[string]string{"service": "boxd"},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Format != "json" && c.Format != "console":
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	case !c.Output.Stdout && !c.Output.OTEL:
		return errors.New("at least one output must be enabled (stdout or otel)")
	case c.Sampling.Enabled && c.Sampling.Tick.Duration() <= 0:
		return errors.New("sampling tick must be > 0 when sampling enabled")
	case c.Sampling.Enabled && c.Sampling.Initial < 0:
		return fmt.Errorf("sampling initial must be >= 0, got %d", c.Sampling.Initial)
	case c.Caller.Enabled && c.Caller.Skip < 0:
		return fmt.Errorf("caller skip must be >= 0, got %d", c.Caller.Skip)
	}
	for name := range c.Modules {
		if name == "" {
			return errors.New("module level override has empty module name")
		}
	}
	for k, v := range c.Fields {
		if k == "" {
			return errors.New("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}
