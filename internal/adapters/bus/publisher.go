// Package bus publishes committed ledger records on a NATS subject.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/example/bark/internal/ports/secondary"
)

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
}

// Publisher implements secondary.TransitionPublisher.
type Publisher struct {
	nc      conn
	subject string
	close   func()
}

// Connect dials url and returns a publisher for subject.
func Connect(url, subject string, timeout time.Duration) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("bark"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	p := NewPublisher(nc, subject)
	p.close = func() { _ = nc.Drain() }
	return p, nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(nc conn, subject string) *Publisher {
	return &Publisher{nc: nc, subject: subject}
}

// PublishTransition sends evt as JSON. The message is fire-and-forget; callers
// treat failures as non-fatal.
func (p *Publisher) PublishTransition(ctx context.Context, evt secondary.TransitionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode transition %s: %w", evt.RecordID, err)
	}
	if err := p.nc.Publish(p.subject, b); err != nil {
		return fmt.Errorf("failed to publish transition %s: %w", evt.RecordID, err)
	}
	return nil
}

// Close drains the connection if the publisher opened it.
func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}

var _ secondary.TransitionPublisher = (*Publisher)(nil)
