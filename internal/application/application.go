package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/boxd/internal/bridge"
	"github.com/fyrsmithlabs/boxd/internal/dom"
	"github.com/fyrsmithlabs/boxd/internal/events"
	"github.com/fyrsmithlabs/boxd/internal/logging"
	"github.com/fyrsmithlabs/boxd/internal/nav"
	"github.com/fyrsmithlabs/boxd/internal/sanitize"
	"github.com/fyrsmithlabs/boxd/internal/services"
)

// Service names registered by New.
const (
	NavigatorService = "navigator"
	EventsService    = "events"
)

const instrumentationName = "github.com/fyrsmithlabs/boxd/internal/application"

// configSelector finds a module's inline JSON configuration.
const configSelector = `script[type="text/x-config"]`

// Options configures an Application.
type Options struct {
	// Document holds the module elements. Required.
	Document *dom.Document
	// Global is the application-wide configuration.
	Global map[string]any
	// Services is the registry modules reach through their bridge.
	Services *services.Registry
	// Bus carries broadcasts. A new bus is created when nil.
	Bus *events.Bus
	// Navigator handles Navigate. A navigator at "/" is created when nil.
	Navigator *nav.Navigator
	Logger    *logging.Logger
	// Metrics defaults to an unregistered set.
	Metrics *Metrics
	// Tracer defaults to the global provider's tracer.
	Tracer trace.Tracer
	// Debug returns module failures to the caller instead of only
	// reporting them.
	Debug bool
}

type instance struct {
	id      string
	name    string
	module  Module
	bridge  *bridge.Context
	unsubs  []func()
	msgs    []string
	started bool
}

// Application coordinates module instances bound to document elements.
// It implements bridge.Coordinator.
type Application struct {
	doc      *dom.Document
	services *services.Registry
	bus      *events.Bus
	nav      *nav.Navigator
	logger   *logging.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	debug    bool

	mu        sync.RWMutex
	creators  map[string]Creator
	instances map[string]*instance
	order     []string
	global    map[string]any
	running   bool

	calls   chan call
	stopped chan struct{}
}

var _ bridge.Coordinator = (*Application)(nil)

// New creates an Application and registers the document, navigator and
// event bus as the "dom", "navigator" and "events" services.
func New(opts Options) (*Application, error) {
	if opts.Document == nil {
		return nil, errors.New("application requires a document")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	reg := opts.Services
	if reg == nil {
		reg = services.NewRegistry()
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(logger.Underlying())
	}
	navigator := opts.Navigator
	if navigator == nil {
		navigator = nav.New(nav.Options{})
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	global := opts.Global
	if global == nil {
		global = map[string]any{}
	}

	a := &Application{
		doc:       opts.Document,
		services:  reg,
		bus:       bus,
		nav:       navigator,
		logger:    logger.Named("application"),
		metrics:   metrics,
		tracer:    tracer,
		debug:     opts.Debug,
		creators:  make(map[string]Creator),
		instances: make(map[string]*instance),
		global:    global,
		calls:     make(chan call),
		stopped:   make(chan struct{}),
	}

	builtins := map[string]any{
		bridge.DOMService: opts.Document,
		NavigatorService:  navigator,
		EventsService:     bus,
	}
	for _, name := range []string{bridge.DOMService, NavigatorService, EventsService} {
		if err := reg.Provide(name, builtins[name]); err != nil && !errors.Is(err, services.ErrServiceExists) {
			return nil, fmt.Errorf("failed to register %s service: %w", name, err)
		}
	}

	navigator.SetOnChange(a.onNavigate)
	return a, nil
}

// AddModule registers a module type under name.
func (a *Application) AddModule(name string, creator Creator) error {
	if name == "" {
		return errors.New("module name cannot be empty")
	}
	if creator == nil {
		return fmt.Errorf("creator for %q cannot be nil", name)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.creators[name]; ok {
		return fmt.Errorf("%w: %s", ErrModuleExists, name)
	}
	a.creators[name] = creator
	return nil
}

// Modules returns the registered module type names, sorted.
func (a *Application) Modules() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.creators))
	for name := range a.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Init builds every registered service, then starts every module element
// in the document.
func (a *Application) Init(ctx context.Context) error {
	if err := a.services.Resolve(ctx); err != nil {
		return fmt.Errorf("failed to resolve services: %w", err)
	}
	return a.StartAll(nil)
}

// Destroy stops every started module instance.
func (a *Application) Destroy(ctx context.Context) error {
	a.mu.RLock()
	ids := append([]string(nil), a.order...)
	a.mu.RUnlock()

	var errs []error
	for i := len(ids) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.stopID(ids[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start instantiates the module named by el's data-module attribute.
// Starting an element that is already started does nothing. An element
// without an id is given one.
func (a *Application) Start(el *dom.Element) (err error) {
	_, span := a.tracer.Start(context.Background(), "module.start")
	defer func() { endSpan(span, err) }()

	if el == nil {
		return errors.New("cannot start module on nil element")
	}
	name, _ := el.Attr(ModuleAttr)
	if name == "" {
		return ErrNoModuleName
	}

	a.mu.Lock()
	creator, ok := a.creators[name]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	id := el.ID()
	if _, started := a.instances[id]; started && id != "" {
		a.mu.Unlock()
		return nil
	}
	if id == "" {
		id = newInstanceID(name)
		el.SetID(id)
	}
	span.SetAttributes(moduleAttrs(name, id)...)
	inst := &instance{id: id, name: name}
	inst.bridge = bridge.New(a, name, id)
	// Reserve the id so re-entrant starts of the same element are no-ops.
	a.instances[id] = inst
	a.mu.Unlock()

	ctx := logging.WithModule(context.Background(), logging.Module{Name: name, ID: id})

	var mod Module
	err = a.guard(func() (err error) {
		mod, err = creator(inst.bridge)
		return err
	})
	if err == nil && mod == nil {
		err = errors.New("creator returned nil module")
	}
	if err != nil {
		a.release(id)
		return a.fail(ctx, inst, "create", err)
	}
	inst.module = mod

	if err := a.guard(mod.Init); err != nil {
		a.release(id)
		return a.fail(ctx, inst, "init", err)
	}

	if h, ok := mod.(MessageHandler); ok {
		inst.msgs = append([]string(nil), h.Messages()...)
		for _, msg := range inst.msgs {
			inst.unsubs = append(inst.unsubs, a.bus.Subscribe(msg, a.deliverTo(ctx, inst, h)))
		}
	}

	a.mu.Lock()
	inst.started = true
	a.order = append(a.order, id)
	a.mu.Unlock()

	a.metrics.ModuleStartsTotal.WithLabelValues(name).Inc()
	a.metrics.ModulesRunning.Inc()
	a.logger.Debug(ctx, "module started")
	return nil
}

// Stop destroys the instance bound to el. Stopping an element that is not
// started does nothing.
func (a *Application) Stop(el *dom.Element) error {
	if el == nil || el.ID() == "" {
		return nil
	}
	err := a.stopID(el.ID())
	if errors.Is(err, ErrInstanceMissing) {
		return nil
	}
	return err
}

func (a *Application) stopID(id string) (err error) {
	_, span := a.tracer.Start(context.Background(), "module.stop", trace.WithAttributes(attribute.String("module.id", id)))
	defer func() { endSpan(span, err) }()

	a.mu.Lock()
	inst, ok := a.instances[id]
	if !ok || !inst.started {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInstanceMissing, id)
	}
	delete(a.instances, id)
	for i, v := range a.order {
		if v == id {
			a.order = append(a.order[:i:i], a.order[i+1:]...)
			break
		}
	}
	a.mu.Unlock()

	for _, unsub := range inst.unsubs {
		unsub()
	}

	span.SetAttributes(attribute.String("module.name", inst.name))
	ctx := logging.WithModule(context.Background(), logging.Module{Name: inst.name, ID: id})
	a.metrics.ModuleStopsTotal.WithLabelValues(inst.name).Inc()
	a.metrics.ModulesRunning.Dec()

	if err := a.guard(func() error { inst.module.Destroy(); return nil }); err != nil {
		return a.fail(ctx, inst, "destroy", err)
	}
	a.logger.Debug(ctx, "module stopped")
	return nil
}

// StartAll starts every module element below root, or in the whole
// document when root is nil. Every element is attempted.
func (a *Application) StartAll(root *dom.Element) error {
	var errs []error
	for _, el := range a.moduleElements(root) {
		if err := a.Start(el); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StopAll stops every module element below root, or in the whole
// document when root is nil.
func (a *Application) StopAll(root *dom.Element) error {
	var errs []error
	for _, el := range a.moduleElements(root) {
		if err := a.Stop(el); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Application) moduleElements(root *dom.Element) []*dom.Element {
	sel := "[" + ModuleAttr + "]"
	if root == nil {
		return a.doc.QueryAll(sel)
	}
	return root.QueryAll(sel)
}

// IsStarted reports whether el has a started module instance.
func (a *Application) IsStarted(el *dom.Element) bool {
	if el == nil || el.ID() == "" {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	inst, ok := a.instances[el.ID()]
	return ok && inst.started
}

// Instances describes started instances in start order.
func (a *Application) Instances() []InstanceInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]InstanceInfo, 0, len(a.order))
	for _, id := range a.order {
		inst := a.instances[id]
		out = append(out, InstanceInfo{ID: id, Module: inst.name, Messages: inst.msgs})
	}
	return out
}

// Module returns the started module instance with the given id, or nil.
func (a *Application) Module(id string) Module {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if inst, ok := a.instances[id]; ok && inst.started {
		return inst.module
	}
	return nil
}

// Element returns the document element with the given id, or nil.
func (a *Application) Element(id string) *dom.Element {
	for _, el := range a.doc.QueryAll("[id]") {
		if el.ID() == id {
			return el
		}
	}
	return nil
}

// Broadcast delivers a message to every listening instance and relay.
func (a *Application) Broadcast(name string, data any) {
	_, span := a.tracer.Start(context.Background(), "application.broadcast",
		trace.WithAttributes(attribute.String("message.name", name)))
	defer span.End()

	label := a.messageLabel(name)
	span.SetAttributes(attribute.Bool("message.listened", label != otherMessage))
	a.metrics.BroadcastsTotal.WithLabelValues(label).Inc()
	a.bus.Broadcast(name, data)
}

// messageLabel bounds the broadcast counter's label values: names without
// a named local subscriber are counted together as "other". Subscribed
// names come from the modules' message lists.
func (a *Application) messageLabel(name string) string {
	if a.bus.HasNamedSubscribers(name) {
		return name
	}
	return otherMessage
}

// Receive delivers a message that arrived from a relay. It reaches local
// listeners only.
func (a *Application) Receive(name string, data any) {
	a.bus.Deliver(name, data)
}

// GetService returns the named service, or nil.
func (a *Application) GetService(name string) any {
	return a.services.Get(name)
}

// GetModuleConfig reads the JSON object in el's text/x-config script.
// A nil element or one without a config script has no configuration.
func (a *Application) GetModuleConfig(el *dom.Element, key bridge.Key) (_ bridge.Result, err error) {
	_, span := a.tracer.Start(context.Background(), "module.config")
	defer func() { endSpan(span, err) }()

	if el == nil {
		return bridge.Absent, nil
	}
	name, _ := el.Attr(ModuleAttr)
	span.SetAttributes(moduleAttrs(name, el.ID())...)

	script := el.Query(configSelector)
	if script == nil {
		return bridge.Absent, nil
	}

	var cfg map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(script.Text())), &cfg); err != nil {
		return bridge.Absent, fmt.Errorf("invalid module config for #%s: %w", el.ID(), err)
	}
	return bridge.Lookup(cfg, key), nil
}

// GetGlobalConfig looks key up in the global configuration.
func (a *Application) GetGlobalConfig(key bridge.Key) bridge.Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return bridge.Lookup(a.global, key)
}

// SetGlobalConfig replaces the global configuration.
func (a *Application) SetGlobalConfig(global map[string]any) {
	if global == nil {
		global = map[string]any{}
	}
	a.mu.Lock()
	a.global = global
	a.mu.Unlock()
}

// Navigate hands the request to the navigator.
func (a *Application) Navigate(target *url.URL, state, params map[string]any) error {
	return a.nav.Navigate(target, state, params)
}

func (a *Application) onNavigate(e nav.Entry) {
	a.Broadcast(NavigateMessage, map[string]any{
		"url":    e.URL.String(),
		"state":  e.State,
		"params": e.Params,
	})
}

func (a *Application) deliverTo(ctx context.Context, inst *instance, h MessageHandler) events.Handler {
	return func(name string, data any) {
		if err := a.guard(func() error { h.OnMessage(name, data); return nil }); err != nil {
			if name == ErrorMessage {
				// Reporting would re-enter this handler.
				a.logger.Error(ctx, "module failed handling error message", zap.Error(err))
				return
			}
			_ = a.fail(ctx, inst, "message", err)
		}
	}
}

func (a *Application) release(id string) {
	a.mu.Lock()
	delete(a.instances, id)
	a.mu.Unlock()
}

// guard runs fn and, outside debug mode, converts a panic into an error.
func (a *Application) guard(fn func() error) (err error) {
	if !a.debug {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
	}
	return fn()
}

// fail reports a module failure. In debug mode the error is returned;
// otherwise it is logged and broadcast as an ErrorEvent.
func (a *Application) fail(ctx context.Context, inst *instance, op string, err error) error {
	a.metrics.ModuleErrorsTotal.WithLabelValues(inst.name, op).Inc()
	wrapped := fmt.Errorf("module %s (#%s) %s: %w", inst.name, inst.id, op, err)

	if a.debug {
		return wrapped
	}

	a.logger.Error(ctx, "module failed", zap.String("op", op), zap.Error(err))
	a.Broadcast(ErrorMessage, ErrorEvent{
		Module: inst.name,
		ID:     inst.id,
		Op:     op,
		Err:    err,
		Error:  err.Error(),
	})
	return nil
}

func moduleAttrs(name, id string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("module.name", name),
		attribute.String("module.id", id),
	}
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// newInstanceID generates an element id for a module without one.
func newInstanceID(name string) string {
	return sanitize.ElementID("mod", name, strings.SplitN(uuid.NewString(), "-", 2)[0])
}
