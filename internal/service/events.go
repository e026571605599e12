package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/book-ratings-api/internal/queue"
)

// EventPublisher announces a completed state change.  Implementations must
// not fail the caller: delivery problems are theirs to log.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event)
}

// NopPublisher drops every event.  Used when the broker is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.Event) {}

// Broker sends a message body to a named queue.  *queue.Client implements it.
type Broker interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// BrokerPublisher serializes events as JSON and hands them to a Broker.
type BrokerPublisher struct {
	broker  Broker
	queue   string
	log     *slog.Logger
	timeout time.Duration
}

// NewBrokerPublisher publishes to queueName on b.
func NewBrokerPublisher(b Broker, queueName string, log *slog.Logger) *BrokerPublisher {
	return &BrokerPublisher{broker: b, queue: queueName, log: log, timeout: 2 * time.Second}
}

// Publish fills ID and OccurredAt when unset and sends the event.  The send
// outlives request cancellation but is bounded by the publisher timeout.
func (p *BrokerPublisher) Publish(ctx context.Context, ev queue.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("marshal event failed", "type", ev.Type, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.broker.Publish(ctx, p.queue, body); err != nil {
		p.log.Warn("publish event failed", "type", ev.Type, "queue", p.queue, "err", err)
	}
}
