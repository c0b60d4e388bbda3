// Package events publishes selection change notifications over NATS.
//
// Every saved or deleted selection produces one JSON message on
//
//	{prefix}.selection.saved
//	{prefix}.selection.deleted
//
// Subscribers that only care about one content kind can filter on the
// kind field; subjects stay fixed so a single wildcard subscription
// ({prefix}.selection.>) sees everything.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/audienced/internal/config"
	"github.com/fyrsmithlabs/audienced/internal/logging"
	"github.com/fyrsmithlabs/audienced/internal/metrics"
	"github.com/fyrsmithlabs/audienced/internal/store"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
)

// Type is the kind of change an event reports.
type Type string

const (
	TypeSaved   Type = "saved"
	TypeDeleted Type = "deleted"
)

// ErrNotConnected is returned by Publish after Close.
var ErrNotConnected = errors.New("events: not connected")

// Event is the message body.
type Event struct {
	ID              string             `json:"id"`
	Type            Type               `json:"type"`
	Kind            string             `json:"kind"`
	ContentID       string             `json:"content_id"`
	Selection       *selection.Payload `json:"selection,omitempty"`
	Summary         string             `json:"summary,omitempty"`
	TaxonomyVersion string             `json:"taxonomy_version,omitempty"`
	OccurredAt      time.Time          `json:"occurred_at"`
}

// NewEvent stamps a fresh id and time.
func NewEvent(t Type, ref store.Ref) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Kind:       ref.Kind,
		ContentID:  ref.ID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher sends events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// NATS publishes events on a core NATS connection.
type NATS struct {
	conn    *nats.Conn
	prefix  string
	timeout time.Duration
	owned   bool
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// Option configures a NATS publisher.
type Option func(*NATS)

// WithLogger sets the publisher logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *NATS) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records publish results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *NATS) { p.metrics = m }
}

// Connect dials cfg.URL and returns a publisher that owns the connection.
func Connect(cfg config.EventsConfig, opts ...Option) (*NATS, error) {
	natsOpts := []nats.Option{
		nats.Name("audienced"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	}
	if cfg.Token.IsSet() {
		natsOpts = append(natsOpts, nats.Token(cfg.Token.Value()))
	}
	if d := cfg.Timeout.Duration(); d > 0 {
		natsOpts = append(natsOpts, nats.Timeout(d))
	}

	nc, err := nats.Connect(cfg.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	p := New(nc, cfg.SubjectPrefix, opts...)
	p.timeout = cfg.Timeout.Duration()
	p.owned = true
	return p, nil
}

// New wraps an existing connection. Close does not close nc.
func New(nc *nats.Conn, prefix string, opts ...Option) *NATS {
	p := &NATS{
		conn:   nc,
		prefix: strings.Trim(prefix, "."),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subject returns the subject events of type t are published on.
func (p *NATS) Subject(t Type) string {
	return Subject(p.prefix, t)
}

// Subject joins prefix and type into a subject.
func Subject(prefix string, t Type) string {
	if prefix == "" {
		return "selection." + string(t)
	}
	return prefix + ".selection." + string(t)
}

// Publish sends ev and, when a timeout is configured, flushes so that
// connection failures surface here rather than on a later call.
func (p *NATS) Publish(ctx context.Context, ev Event) (err error) {
	defer func() { p.metrics.ObservePublish(err) }()

	if p.conn == nil || p.conn.IsClosed() {
		return ErrNotConnected
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.Subject(ev.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	if p.timeout > 0 {
		fctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if err := p.conn.FlushWithContext(fctx); err != nil {
			return fmt.Errorf("flush %s event: %w", ev.Type, err)
		}
	}

	p.logger.Debug(ctx, "selection event published",
		zap.String("subject", subject),
		zap.String("event.id", ev.ID),
		zap.String("content.kind", ev.Kind),
		zap.String("content.id", ev.ContentID))
	return nil
}

// Close drains an owned connection.
func (p *NATS) Close() error {
	if p == nil || p.conn == nil || !p.owned {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
