// Package events publishes decision lifecycle events to NATS.
//
// Subjects have the form {prefix}.{action}, e.g. decisions.created.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Action is a record lifecycle transition.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Event describes one record mutation.
type Event struct {
	Action     Action    `json:"action"`
	DecisionID string    `json:"decision_id"`
	Title      string    `json:"title,omitempty"`
	Tag        string    `json:"tag,omitempty"`
	Channel    string    `json:"channel"`
	Thread     string    `json:"thread"`
	At         time.Time `json:"at"`
}

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// conn is the subset of *nats.Conn used here.
type conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes events as JSON on core NATS subjects.
type NATSPublisher struct {
	conn   conn
	prefix string
}

// NewNATSPublisher wraps an open connection.
func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	return newPublisher(nc, prefix)
}

func newPublisher(c conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = "decisions"
	}
	return &NATSPublisher{conn: c, prefix: prefix}
}

// Subject returns the subject an action is published on.
func (p *NATSPublisher) Subject(a Action) string {
	return fmt.Sprintf("%s.%s", p.prefix, a)
}

// Publish sends e. The At field is stamped when zero.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(e.Action), data); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Action, err)
	}
	return nil
}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("decisiond"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}
