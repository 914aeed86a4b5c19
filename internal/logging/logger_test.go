package logging

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/boxd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.OTEL = false

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, cfg, logger.config)
	assert.NotNil(t, logger.Underlying())
}

func TestNewLoggerInvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"no outputs", func(c *Config) { c.Output.Stdout = false }, "at least one output"},
		{"zero sampling tick", func(c *Config) { c.Sampling.Tick = 0 }, "sampling tick"},
		{"negative sampling initial", func(c *Config) { c.Sampling.Initial = -1 }, "sampling initial"},
		{"negative caller skip", func(c *Config) { c.Caller.Skip = -1 }, "caller skip"},
		{"console format", func(c *Config) { c.Format = "console" }, ""},
		{"empty module override", func(c *Config) { c.Modules = map[string]Level{"": Level(zapcore.DebugLevel)} }, "empty module name"},
		{"empty field value", func(c *Config) { c.Fields["env"] = "" }, "empty value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoggerContextFields(t *testing.T) {
	logger := NewTestLogger()

	ctx := WithModule(context.Background(), Module{Name: "announcer", ID: "mod-announcer-1"})
	ctx = WithRequestID(ctx, "req_123")
	logger.Info(ctx, "module started", zap.Int("attempt", 1))

	logger.AssertLogged(t, zapcore.InfoLevel, "module started")
	logger.AssertModuleField(t, "module started", "mod-announcer-1")
	logger.AssertField(t, "module started", "module.name", "announcer")
	logger.AssertField(t, "module started", "request.id", "req_123")
}

func TestLoggerLevels(t *testing.T) {
	logger := NewTestLogger()
	ctx := context.Background()

	logger.Trace(ctx, "trace message")
	logger.Debug(ctx, "debug message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")

	logger.AssertLogged(t, TraceLevel, "trace message")
	logger.AssertLogged(t, zapcore.DebugLevel, "debug message")
	logger.AssertLogged(t, zapcore.WarnLevel, "warn message")
	logger.AssertLogged(t, zapcore.ErrorLevel, "error message")
	logger.AssertNotLogged(t, zapcore.InfoLevel, "warn message")

	logger.Reset()
	assert.Empty(t, logger.All())
}

func TestLoggerChildren(t *testing.T) {
	logger := NewTestLogger()

	child := logger.Named("app").With(zap.String("component", "bridge"))
	child.Info(context.Background(), "child message")

	entries := logger.FilterMessage("child message").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "app", entries[0].LoggerName)
	logger.AssertField(t, "child message", "component", "bridge")
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)

	lvl, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = LevelFromString("loud")
	assert.Error(t, err)
}

func TestLevelUnmarshalText(t *testing.T) {
	var lvl Level
	require.NoError(t, lvl.UnmarshalText([]byte("TRACE")))
	assert.Equal(t, TraceLevel, lvl.Zap())

	text, err := lvl.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "trace", string(text))

	require.NoError(t, lvl.UnmarshalText([]byte(" error ")))
	assert.Equal(t, zapcore.ErrorLevel, lvl.Zap())

	err = lvl.UnmarshalText([]byte("loud"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown log level "loud"`)
}

func TestForModuleOverride(t *testing.T) {
	logger := NewTestLogger()
	logger.Config().Modules = map[string]Level{"journal": Level(zapcore.WarnLevel)}
	ctx := context.Background()

	journal := logger.ForModule("journal")
	journal.Info(ctx, "journal info")
	journal.Warn(ctx, "journal warn")
	logger.ForModule("router").Debug(ctx, "router debug")

	logger.AssertNotLogged(t, zapcore.InfoLevel, "journal info")
	logger.AssertLogged(t, zapcore.WarnLevel, "journal warn")
	logger.AssertLogged(t, zapcore.DebugLevel, "router debug")

	entries := logger.FilterMessage("journal warn").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "journal", entries[0].LoggerName)

	// The override survives child loggers.
	journal.With(zap.String("k", "v")).Info(ctx, "child info")
	logger.AssertNotLogged(t, zapcore.InfoLevel, "child info")
}

func TestForModuleLowersBaseLevel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = Level(zapcore.WarnLevel)
	cfg.Modules = map[string]Level{"journal": Level(zapcore.DebugLevel)}

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)

	assert.False(t, logger.Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Enabled(zapcore.WarnLevel))
	assert.True(t, logger.ForModule("journal").Enabled(zapcore.DebugLevel))
	assert.False(t, logger.ForModule("journal").Enabled(TraceLevel))
	assert.False(t, logger.ForModule("router").Enabled(zapcore.DebugLevel))
}

func TestWithRequestIDIgnoresInvalid(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(WithRequestID(ctx, "")))
	assert.Empty(t, RequestIDFromContext(WithRequestID(ctx, "bad id!")))
	assert.Equal(t, "req-1", RequestIDFromContext(WithRequestID(ctx, "req-1")))
}

func TestContextFieldsEmpty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestSampledCoreKeepsErrors(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled:    true,
		Tick:       config.Duration(time.Minute),
		Initial:    2,
		Thereafter: 0,
	})
	z := zap.New(sampled)

	for range 10 {
		z.Info("repeated")
		z.Error("failure")
	}

	assert.Equal(t, 2, observed.FilterMessage("repeated").Len())
	assert.Equal(t, 10, observed.FilterMessage("failure").Len())
}

func TestSampledCoreDisabled(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	assert.Same(t, core, newSampledCore(core, SamplingConfig{}))
}
