package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditLog appends one line per domain event to <Dir>/audit.log.
type AuditLog struct {
	Dir string

	mu sync.Mutex
}

// Handle decodes body and appends it to the audit file.  Malformed events
// return an error so the delivery is rejected.
func (a *AuditLog) Handle(_ context.Context, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event type missing")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", a.Dir, err)
	}
	f, err := os.OpenFile(filepath.Join(a.Dir, "audit.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func formatLine(ev Event) string {
	line := fmt.Sprintf("[%s] %s | actor_id=%d", ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.ActorID)
	if ev.BookID != 0 {
		line += fmt.Sprintf(" | book_id=%d", ev.BookID)
	}
	if ev.RatingID != 0 {
		line += fmt.Sprintf(" | rating_id=%d | rating=%d", ev.RatingID, ev.Rating)
	}
	if ev.Title != "" {
		line += fmt.Sprintf(" | title=%q", ev.Title)
	}
	if ev.Email != "" {
		line += fmt.Sprintf(" | email=%s", ev.Email)
	}
	return line + "\n"
}

// RunConsumer dials the broker, consumes queueName with h and reconnects with
// exponential backoff until ctx is cancelled.
func RunConsumer(ctx context.Context, url, queueName string, h Handler, log *slog.Logger) error {
	backoff := time.Second
	for {
		client, err := Dial(url, 50)
		if err != nil {
			log.Warn("consumer dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect
		log.Info("consumer connected", "queue", queueName)

		err = client.Consume(ctx, queueName, func(ctx context.Context, body []byte) error {
			if err := h(ctx, body); err != nil {
				log.Warn("handle message failed", "err", err)
				return err
			}
			return nil
		})
		_ = client.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
