package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one delivery body.  Returning an error rejects the
// message without requeueing it.
type Handler func(ctx context.Context, body []byte) error

// Client wraps a RabbitMQ connection/channel pair.  Queues are declared
// durable on first use so messages survive broker restarts.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	mu       sync.Mutex // serializes publishes on the shared channel
	declared map[string]bool
}

const dialTimeout = 5 * time.Second

// Dial connects to the broker at url and opens a channel.  A positive
// prefetch limits unacknowledged deliveries per consumer.
func Dial(url string, prefetch int) (*Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("rabbitmq qos: %w", err)
		}
	}
	return &Client{conn: conn, channel: ch, declared: map[string]bool{}}, nil
}

// Publish sends body to the named queue as a persistent JSON message.
func (c *Client) Publish(ctx context.Context, queue string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.declared[queue] {
		if _, err := c.declare(queue); err != nil {
			return err
		}
		c.declared[queue] = true
	}
	return c.channel.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}

// Consume delivers messages from queue to h until ctx is cancelled or the
// delivery channel closes.
func (c *Client) Consume(ctx context.Context, queue string, h Handler) error {
	if _, err := c.declare(queue); err != nil {
		return err
	}
	tag := "consumer-" + uuid.NewString()
	deliveries, err := c.channel.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	defer func() { _ = c.channel.Cancel(tag, false) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := h(ctx, d.Body); err != nil {
				_ = d.Nack(false, false) // do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// IsClosed reports whether the connection or channel has gone away, after
// which the client cannot be used again.
func (c *Client) IsClosed() bool {
	return c.conn == nil || c.conn.IsClosed() || c.channel == nil || c.channel.IsClosed()
}

// Close closes the channel and the connection.
func (c *Client) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) declare(name string) (amqp.Queue, error) {
	if strings.TrimSpace(name) == "" {
		return amqp.Queue{}, errors.New("queue name is required")
	}
	q, err := c.channel.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("queue declare: %w", err)
	}
	return q, nil
}
