package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/boxd/internal/bridge"
	"github.com/fyrsmithlabs/boxd/internal/dom"
	"github.com/fyrsmithlabs/boxd/internal/logging"
	"github.com/fyrsmithlabs/boxd/internal/nav"
	"github.com/fyrsmithlabs/boxd/internal/telemetry"
)

const testPage = `<!doctype html>
<html><body>
  <div id="greeter" data-module="recorder">
    <script type="text/x-config">{"greeting": "hello", "count": 2}</script>
  </div>
  <section id="panel">
    <div data-module="recorder"></div>
    <div id="broken" data-module="recorder"><script type="text/x-config">{not json</script></div>
  </section>
</body></html>`

// recorder records lifecycle calls and optionally fails.
type recorder struct {
	ctx      bridge.Bridge
	messages []string
	initErr  error
	panicOn  string

	mu       sync.Mutex
	received []string
	inits    int
	destroys int
}

func (p *recorder) Init() error {
	p.mu.Lock()
	p.inits++
	p.mu.Unlock()
	if p.panicOn == "init" {
		panic("init exploded")
	}
	return p.initErr
}

func (p *recorder) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroys++
}

func (p *recorder) Messages() []string { return p.messages }

func (p *recorder) OnMessage(name string, data any) {
	if p.panicOn == name {
		panic("message exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, name)
}

func (p *recorder) Received() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.received...)
}

type fixture struct {
	app       *Application
	doc       *dom.Document
	logger    *logging.TestLogger
	metrics   *Metrics
	tel       *telemetry.TestTelemetry
	recorders map[string]*recorder
	errors    []ErrorEvent
}

func newFixture(t *testing.T, debug bool, configure func(id string, p *recorder)) *fixture {
	t.Helper()

	doc, err := dom.ParseString(testPage)
	require.NoError(t, err)

	f := &fixture{
		doc:       doc,
		logger:    logging.NewTestLogger(),
		metrics:   NewMetrics(prometheus.NewRegistry()),
		tel:       telemetry.NewTestTelemetry(),
		recorders: make(map[string]*recorder),
	}

	f.app, err = New(Options{
		Document: doc,
		Global:   map[string]any{"locale": "en-US"},
		Logger:   f.logger.Logger,
		Metrics:  f.metrics,
		Tracer:   f.tel.Tracer(instrumentationName),
		Debug:    debug,
	})
	require.NoError(t, err)

	require.NoError(t, f.app.AddModule("recorder", func(ctx bridge.Bridge) (Module, error) {
		id := ctx.GetElement().ID()
		p := &recorder{ctx: ctx, messages: []string{"ping"}}
		if configure != nil {
			configure(id, p)
		}
		f.recorders[id] = p
		return p, nil
	}))

	f.app.bus.Subscribe(ErrorMessage, func(_ string, data any) {
		f.errors = append(f.errors, data.(ErrorEvent))
	})
	return f
}

func TestNew_RequiresDocument(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_RegistersBuiltinServices(t *testing.T) {
	f := newFixture(t, false, nil)

	assert.Same(t, f.doc, f.app.GetService(bridge.DOMService))
	assert.IsType(t, &nav.Navigator{}, f.app.GetService(NavigatorService))
	assert.Same(t, f.app.bus, f.app.GetService(EventsService))
	assert.Nil(t, f.app.GetService("missing"))
}

func TestAddModule(t *testing.T) {
	f := newFixture(t, false, nil)

	err := f.app.AddModule("recorder", func(bridge.Bridge) (Module, error) { return &recorder{}, nil })
	assert.ErrorIs(t, err, ErrModuleExists)
	assert.Error(t, f.app.AddModule("", func(bridge.Bridge) (Module, error) { return nil, nil }))
	assert.Error(t, f.app.AddModule("nil", nil))
	assert.Equal(t, []string{"recorder"}, f.app.Modules())
}

func TestInit_StartsEveryModuleElement(t *testing.T) {
	f := newFixture(t, false, nil)

	require.NoError(t, f.app.Init(context.Background()))

	infos := f.app.Instances()
	require.Len(t, infos, 3)
	assert.Equal(t, "greeter", infos[0].ID)
	assert.Equal(t, []string{"ping"}, infos[0].Messages)
	assert.True(t, strings.HasPrefix(infos[1].ID, "mod-recorder-"), infos[1].ID)
	assert.Equal(t, "broken", infos[2].ID)

	for _, el := range f.doc.QueryAll("[data-module]") {
		assert.True(t, f.app.IsStarted(el))
		assert.NotEmpty(t, el.ID())
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.ModulesRunning))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.ModuleStartsTotal.WithLabelValues("recorder")))
}

func TestStart_IsIdempotent(t *testing.T) {
	f := newFixture(t, false, nil)
	el := f.doc.Query("#greeter")

	require.NoError(t, f.app.Start(el))
	require.NoError(t, f.app.Start(el))

	assert.Len(t, f.app.Instances(), 1)
	assert.Equal(t, 1, f.recorders["greeter"].inits)
}

func TestStart_Errors(t *testing.T) {
	f := newFixture(t, false, nil)

	assert.Error(t, f.app.Start(nil))

	doc, err := dom.ParseString(`<div id="plain"></div><div id="x" data-module="nope"></div>`)
	require.NoError(t, err)
	assert.ErrorIs(t, f.app.Start(doc.Query("#plain")), ErrNoModuleName)
	assert.ErrorIs(t, f.app.Start(doc.Query("#x")), ErrModuleNotFound)
}

func TestStop(t *testing.T) {
	f := newFixture(t, false, nil)
	el := f.doc.Query("#greeter")
	require.NoError(t, f.app.Start(el))
	p := f.recorders["greeter"]

	require.NoError(t, f.app.Stop(el))
	assert.False(t, f.app.IsStarted(el))
	assert.Equal(t, 1, p.destroys)

	// Unsubscribed: no more deliveries.
	f.app.Broadcast("ping", nil)
	assert.Empty(t, p.Received())

	// Stopping again is a no-op.
	require.NoError(t, f.app.Stop(el))
	assert.Equal(t, 1, p.destroys)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ModulesRunning))
}

func TestStartAllStopAll_Scoped(t *testing.T) {
	f := newFixture(t, false, nil)
	panel := f.doc.Query("#panel")

	require.NoError(t, f.app.StartAll(panel))
	assert.Len(t, f.app.Instances(), 2)
	assert.False(t, f.app.IsStarted(f.doc.Query("#greeter")))

	require.NoError(t, f.app.StopAll(panel))
	assert.Empty(t, f.app.Instances())
}

func TestDestroy_StopsInReverseOrder(t *testing.T) {
	f := newFixture(t, false, nil)
	require.NoError(t, f.app.Init(context.Background()))

	require.NoError(t, f.app.Destroy(context.Background()))
	assert.Empty(t, f.app.Instances())
	for _, p := range f.recorders {
		assert.Equal(t, 1, p.destroys)
	}
}

func TestBroadcast_ReachesListeners(t *testing.T) {
	f := newFixture(t, false, nil)
	require.NoError(t, f.app.Init(context.Background()))

	f.app.Broadcast("ping", map[string]any{"n": 1})
	f.app.Broadcast("ignored", nil)

	for _, p := range f.recorders {
		assert.Equal(t, []string{"ping"}, p.Received())
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BroadcastsTotal.WithLabelValues("ping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BroadcastsTotal.WithLabelValues(otherMessage)))
}

func TestBroadcast_BoundsMessageLabels(t *testing.T) {
	f := newFixture(t, false, nil)
	require.NoError(t, f.app.Init(context.Background()))

	for i := range 500 {
		f.app.Broadcast(fmt.Sprintf("junk-%d", i), nil)
	}
	f.app.Broadcast("ping", nil)

	assert.Equal(t, 2, testutil.CollectAndCount(f.metrics.BroadcastsTotal))
	assert.Equal(t, 500.0, testutil.ToFloat64(f.metrics.BroadcastsTotal.WithLabelValues(otherMessage)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BroadcastsTotal.WithLabelValues("ping")))
}

func TestReceive_DeliversLocally(t *testing.T) {
	f := newFixture(t, false, nil)
	require.NoError(t, f.app.Start(f.doc.Query("#greeter")))

	f.app.Receive("ping", nil)
	assert.Equal(t, []string{"ping"}, f.recorders["greeter"].Received())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.BroadcastsTotal.WithLabelValues("ping")))
}

func TestGetModuleConfig(t *testing.T) {
	f := newFixture(t, false, nil)
	greeter := f.doc.Query("#greeter")

	res, err := f.app.GetModuleConfig(greeter, bridge.Named("greeting"))
	require.NoError(t, err)
	v, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	res, err = f.app.GetModuleConfig(greeter, bridge.Whole)
	require.NoError(t, err)
	whole, ok := res.Whole()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"greeting": "hello", "count": float64(2)}, whole)

	res, err = f.app.GetModuleConfig(greeter, bridge.Named("missing"))
	require.NoError(t, err)
	assert.True(t, res.IsAbsent())

	res, err = f.app.GetModuleConfig(nil, bridge.Whole)
	require.NoError(t, err)
	assert.True(t, res.IsAbsent())

	res, err = f.app.GetModuleConfig(f.doc.Query("#panel"), bridge.Whole)
	require.NoError(t, err)
	assert.True(t, res.IsAbsent())

	_, err = f.app.GetModuleConfig(f.doc.Query("#broken"), bridge.Whole)
	assert.Error(t, err)
}

func TestGetGlobalConfig(t *testing.T) {
	f := newFixture(t, false, nil)

	v, ok := f.app.GetGlobalConfig(bridge.Named("locale")).Value()
	assert.True(t, ok)
	assert.Equal(t, "en-US", v)
	assert.True(t, f.app.GetGlobalConfig(bridge.Named("nope")).IsAbsent())

	f.app.SetGlobalConfig(map[string]any{"locale": "fr-FR"})
	whole, ok := f.app.GetGlobalConfig(bridge.Whole).Whole()
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"locale": "fr-FR"}, whole)

	f.app.SetGlobalConfig(nil)
	whole, ok = f.app.GetGlobalConfig(bridge.Whole).Whole()
	assert.True(t, ok)
	assert.Empty(t, whole)
}

func TestNavigate_BroadcastsNavigate(t *testing.T) {
	f := newFixture(t, false, nil)

	var got map[string]any
	f.app.bus.Subscribe(NavigateMessage, func(_ string, data any) {
		got = data.(map[string]any)
	})

	target, _ := url.Parse("/settings?tab=profile")
	require.NoError(t, f.app.Navigate(target, map[string]any{"from": "menu"}, nil))
	require.NotNil(t, got)
	assert.Equal(t, "/settings?tab=profile", got["url"])
	assert.Equal(t, map[string]any{"from": "menu"}, got["state"])

	foreign, _ := url.Parse("https://evil.example/")
	assert.ErrorIs(t, f.app.Navigate(foreign, nil, nil), nav.ErrNavigationBlocked)
}

func TestModuleErrors_ReportedOutsideDebug(t *testing.T) {
	f := newFixture(t, false, func(id string, p *recorder) {
		if id == "greeter" {
			p.initErr = errors.New("no greeting")
		}
	})

	require.NoError(t, f.app.Start(f.doc.Query("#greeter")))
	assert.False(t, f.app.IsStarted(f.doc.Query("#greeter")))

	require.Len(t, f.errors, 1)
	assert.Equal(t, "recorder", f.errors[0].Module)
	assert.Equal(t, "greeter", f.errors[0].ID)
	assert.Equal(t, "init", f.errors[0].Op)
	assert.Equal(t, "no greeting", f.errors[0].Error)

	f.logger.AssertLogged(t, zapcore.ErrorLevel, "module failed")
	f.logger.AssertModuleField(t, "module failed", "greeter")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ModuleErrorsTotal.WithLabelValues("recorder", "init")))
}

func TestModuleErrors_PanicsRecoveredOutsideDebug(t *testing.T) {
	f := newFixture(t, false, func(id string, p *recorder) {
		if id == "greeter" {
			p.panicOn = "ping"
		}
	})
	require.NoError(t, f.app.Start(f.doc.Query("#greeter")))

	assert.NotPanics(t, func() { f.app.Broadcast("ping", nil) })
	require.Len(t, f.errors, 1)
	assert.Equal(t, "message", f.errors[0].Op)
	assert.Contains(t, f.errors[0].Error, "message exploded")
}

func TestModuleErrors_ReturnedInDebug(t *testing.T) {
	f := newFixture(t, true, func(id string, p *recorder) {
		p.initErr = errors.New("no greeting")
	})

	err := f.app.Start(f.doc.Query("#greeter"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no greeting")
	assert.Empty(t, f.errors)
}

func TestModuleErrors_PanicsPropagateInDebug(t *testing.T) {
	f := newFixture(t, true, func(id string, p *recorder) {
		p.panicOn = "ping"
	})
	require.NoError(t, f.app.Start(f.doc.Query("#greeter")))

	assert.PanicsWithValue(t, "message exploded", func() { f.app.Broadcast("ping", nil) })
}

func TestBridge_ResolvesOwnElementAndConfig(t *testing.T) {
	f := newFixture(t, false, nil)
	require.NoError(t, f.app.Start(f.doc.Query("#greeter")))
	ctx := f.recorders["greeter"].ctx

	el := ctx.GetElement()
	require.NotNil(t, el)
	assert.Equal(t, "greeter", el.ID())

	res, err := ctx.GetConfig(bridge.Named("count"))
	require.NoError(t, err)
	v, _ := res.Value()
	assert.Equal(t, float64(2), v)

	v, _ = ctx.GetGlobalConfig(bridge.Named("locale")).Value()
	assert.Equal(t, "en-US", v)
}

func TestElement(t *testing.T) {
	f := newFixture(t, false, nil)
	assert.Equal(t, "panel", f.app.Element("panel").ID())
	assert.Nil(t, f.app.Element("absent"))
}

func TestRunDo(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.app.Run(ctx) }()

	err := f.app.Do(context.Background(), func() error {
		return f.app.Start(f.doc.Query("#greeter"))
	})
	require.NoError(t, err)
	assert.Len(t, f.app.Instances(), 1)

	sentinel := errors.New("boom")
	assert.ErrorIs(t, f.app.Do(context.Background(), func() error { return sentinel }), sentinel)

	err = f.app.Do(context.Background(), func() error { panic("bad call") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad call")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	assert.ErrorIs(t, f.app.Do(context.Background(), func() error { return nil }), ErrStopped)
	assert.ErrorIs(t, f.app.Run(context.Background()), ErrStopped)
}

func TestDo_HonoursContext(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// No loop running: the call cannot be accepted.
	err := f.app.Do(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTracing_Spans(t *testing.T) {
	f := newFixture(t, false, nil)
	require.NoError(t, f.app.Start(f.doc.Query("#greeter")))

	f.app.Broadcast("ping", nil)
	_, err := f.app.GetModuleConfig(f.doc.Query("#greeter"), bridge.Named("greeting"))
	require.NoError(t, err)
	require.NoError(t, f.app.Stop(f.doc.Query("#greeter")))

	f.tel.AssertSpanExists(t, "module.start")
	f.tel.AssertSpanAttribute(t, "module.start", "module.name", "recorder")
	f.tel.AssertSpanAttribute(t, "module.start", "module.id", "greeter")

	f.tel.AssertSpanExists(t, "application.broadcast")
	f.tel.AssertSpanAttribute(t, "application.broadcast", "message.name", "ping")
	f.tel.AssertSpanAttribute(t, "application.broadcast", "message.listened", true)

	f.tel.AssertSpanExists(t, "module.config")
	f.tel.AssertSpanAttribute(t, "module.config", "module.id", "greeter")

	f.tel.AssertSpanExists(t, "module.stop")
	f.tel.AssertSpanAttribute(t, "module.stop", "module.name", "recorder")
}

func TestTracing_RecordsErrors(t *testing.T) {
	f := newFixture(t, false, nil)

	_, err := f.app.GetModuleConfig(f.doc.Query("#broken"), bridge.Whole)
	require.Error(t, err)

	span := f.tel.SpanByName("module.config")
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.NotEmpty(t, span.Events())
}
