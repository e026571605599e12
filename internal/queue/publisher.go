package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrBrokerUnavailable is returned while the publisher waits before its next
// reconnect attempt.
var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// redialEvery bounds how often a down broker is dialed.
const redialEvery = 5 * time.Second

type conn interface {
	Publish(ctx context.Context, queue string, body []byte) error
	IsClosed() bool
	Close() error
}

// Publisher is a long-lived publishing handle.  It dials lazily and dials
// again once the connection is lost, so a broker restart only costs the
// events sent while it was down.
type Publisher struct {
	url    string
	dial   func(url string) (conn, error)
	redial *rate.Limiter

	mu     sync.Mutex
	client conn
	closed bool
}

// NewPublisher returns a publisher for url.  No connection is made until
// Connect or the first Publish.
func NewPublisher(url string) *Publisher {
	dial := func(url string) (conn, error) {
		c, err := Dial(url, 0)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return newPublisher(url, dial, rate.NewLimiter(rate.Every(redialEvery), 1))
}

func newPublisher(url string, dial func(string) (conn, error), redial *rate.Limiter) *Publisher {
	return &Publisher{url: url, dial: dial, redial: redial}
}

// Connect dials now so startup can report a broker that is down.  A failed
// Connect leaves the publisher usable; it retries on later publishes.
func (p *Publisher) Connect() error {
	_, err := p.current()
	return err
}

// Publish sends body to queue, reconnecting first if needed.
func (p *Publisher) Publish(ctx context.Context, queue string, body []byte) error {
	c, err := p.current()
	if err != nil {
		return err
	}
	if err := c.Publish(ctx, queue, body); err != nil {
		if c.IsClosed() {
			p.drop(c)
		}
		return err
	}
	return nil
}

func (p *Publisher) current() (conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("publisher closed")
	}
	if p.client != nil {
		if !p.client.IsClosed() {
			return p.client, nil
		}
		_ = p.client.Close()
		p.client = nil
	}
	if !p.redial.Allow() {
		return nil, ErrBrokerUnavailable
	}
	c, err := p.dial(p.url)
	if err != nil {
		return nil, err
	}
	p.client = c
	return c, nil
}

func (p *Publisher) drop(c conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == c {
		_ = c.Close()
		p.client = nil
	}
}

// Close releases the connection.  Later publishes fail.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
