package events

import (
	"sync"

	"go.uber.org/zap"
)

// Handler receives a broadcast message.
type Handler func(name string, data any)

// Relay forwards broadcasts outside the process. Relays must not block.
type Relay interface {
	Relay(name string, data any)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans broadcast messages out to subscribers synchronously.
//
// Handlers are called in subscription order, named subscribers first and
// then catch-all subscribers. The handler list is copied before delivery,
// so a handler may broadcast, subscribe or unsubscribe re-entrantly.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]subscription
	all      []subscription
	relays   []Relay
	nextID   uint64
	logger   *zap.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]subscription),
		logger:   logger,
	}
}

// Subscribe registers h for messages called name. The returned function
// removes the subscription; calling it more than once is harmless.
func (b *Bus) Subscribe(name string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], subscription{id: id, handler: h})

	return func() { b.remove(name, id, false) }
}

// SubscribeAll registers h for every message.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: h})

	return func() { b.remove("", id, true) }
}

func (b *Bus) remove(name string, id uint64, all bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[name]
	if all {
		list = b.all
	}
	kept := make([]subscription, 0, len(list))
	for _, s := range list {
		if s.id != id {
			kept = append(kept, s)
		}
	}

	switch {
	case all:
		b.all = kept
	case len(kept) == 0:
		delete(b.handlers, name)
	default:
		b.handlers[name] = kept
	}
}

// AddRelay attaches an outbound relay.
func (b *Bus) AddRelay(r Relay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relays = append(b.relays, r)
}

// Broadcast delivers the message locally, then hands it to every relay.
func (b *Bus) Broadcast(name string, data any) {
	b.Deliver(name, data)

	b.mu.RLock()
	relays := append([]Relay(nil), b.relays...)
	b.mu.RUnlock()

	for _, r := range relays {
		r.Relay(name, data)
	}
}

// Deliver calls local subscribers only. Inbound relayed messages use it so
// they are not sent back out.
func (b *Bus) Deliver(name string, data any) {
	b.mu.RLock()
	named := append([]subscription(nil), b.handlers[name]...)
	all := append([]subscription(nil), b.all...)
	b.mu.RUnlock()

	if len(named) == 0 && len(all) == 0 {
		b.logger.Debug("message has no subscribers", zap.String("message", name))
		return
	}

	for _, s := range named {
		s.handler(name, data)
	}
	for _, s := range all {
		s.handler(name, data)
	}
}

// HasSubscribers reports whether anything listens for name.
func (b *Bus) HasSubscribers(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name]) > 0 || len(b.all) > 0
}

// HasNamedSubscribers reports whether a subscriber registered for name
// specifically. Catch-all subscribers do not count.
func (b *Bus) HasNamedSubscribers(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name]) > 0
}
