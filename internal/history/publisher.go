package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher ships change records to the order change log.
type Publisher interface {
	Publish(ctx context.Context, changes []Change) error
	Close() error
}

// Event is the message body published for each change.
type Event struct {
	Change
	DetailedDescription string `json:"detailedDescription"`
}

// Subject returns the subject change events are published on.
func Subject(prefix string) string {
	if prefix == "" {
		prefix = "tabletill"
	}
	return prefix + ".order.changed"
}

const flushTimeout = 5 * time.Second

type conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes one message per change on Subject(prefix).
type NATSPublisher struct {
	conn    conn
	subject string
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("tabletill"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return newNATSPublisher(nc, prefix), nil
}

func newNATSPublisher(c conn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: c, subject: Subject(prefix)}
}

// Publish sends every change and flushes so that delivery errors surface here.
func (p *NATSPublisher) Publish(ctx context.Context, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}

	for _, c := range changes {
		data, err := json.Marshal(Event{Change: c, DetailedDescription: c.Description()})
		if err != nil {
			return fmt.Errorf("marshal change %s: %w", c.ID, err)
		}
		if err := p.conn.Publish(p.subject, data); err != nil {
			return fmt.Errorf("publish change %s: %w", c.ID, err)
		}
	}

	// nats requires a deadline on the flush context.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush changes: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NopPublisher discards changes. It is used when no NATS url is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, []Change) error { return nil }
func (NopPublisher) Close() error                            { return nil }
