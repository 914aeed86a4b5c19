package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/boxd/internal/sanitize"
)

// Envelope is the wire form of a relayed broadcast.
type Envelope struct {
	Name      string    `json:"name"`
	Data      any       `json:"data,omitempty"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"ts"`
}

// RelayConfig configures a NATSRelay.
type RelayConfig struct {
	// SubjectPrefix is prepended to message names ("boxd.events").
	SubjectPrefix string
	// RateLimit caps outbound publishes per second. Zero disables limiting.
	RateLimit float64
	// Burst is the limiter bucket size.
	Burst int
}

// NATSRelay publishes broadcasts to NATS and receives them from peers.
//
// Messages are published to subjects of the form:
//   - {prefix}.{name}
//
// Each relay stamps envelopes with its own source id and ignores inbound
// envelopes carrying that id.
type NATSRelay struct {
	conn    *nats.Conn
	prefix  string
	source  string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewNATSRelay creates a relay on an established connection.
func NewNATSRelay(nc *nats.Conn, cfg RelayConfig, logger *zap.Logger) (*NATSRelay, error) {
	if nc == nil {
		return nil, errors.New("nats connection cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := strings.Trim(cfg.SubjectPrefix, ".")
	if prefix == "" {
		prefix = "boxd.events"
	}

	r := &NATSRelay{
		conn:   nc,
		prefix: prefix,
		source: uuid.New().String(),
		logger: logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return r, nil
}

// Source returns the id stamped on outbound envelopes.
func (r *NATSRelay) Source() string {
	return r.source
}

// Subject maps a message name onto a NATS subject.
func (r *NATSRelay) Subject(name string) string {
	return r.prefix + "." + sanitize.SubjectToken(name)
}

// Relay publishes one broadcast. Failures are logged, never returned.
func (r *NATSRelay) Relay(name string, data any) {
	if r.limiter != nil && !r.limiter.Allow() {
		r.logger.Warn("relay rate limit exceeded, dropping message", zap.String("message", name))
		return
	}

	payload, err := json.Marshal(Envelope{
		Name:      name,
		Data:      data,
		Source:    r.source,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		r.logger.Warn("failed to encode relayed message", zap.String("message", name), zap.Error(err))
		return
	}

	subject := r.Subject(name)
	if err := r.conn.Publish(subject, payload); err != nil {
		r.logger.Warn("failed to publish relayed message",
			zap.String("subject", subject),
			zap.Error(err))
	}
}

// Listen subscribes to peer broadcasts and passes each one to deliver.
// Envelopes published by this relay are skipped.
func (r *NATSRelay) Listen(deliver func(Envelope)) (*nats.Subscription, error) {
	sub, err := r.conn.Subscribe(r.prefix+".>", func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			r.logger.Warn("dropping malformed relayed message",
				zap.String("subject", msg.Subject),
				zap.Error(err))
			return
		}
		if env.Source == r.source {
			return
		}
		if err := sanitize.ValidateName(env.Name); err != nil {
			r.logger.Warn("dropping relayed message with invalid name",
				zap.String("subject", msg.Subject),
				zap.Error(err))
			return
		}
		deliver(env)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s.>: %w", r.prefix, err)
	}
	return sub, nil
}
