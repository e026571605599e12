// Package ratelimit decides whether a client key may make another attempt
// within a fixed budget of MaxAttempts per Window.  Two backends exist:
// Redis, shared by every server instance, and an in-process fallback.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // zero when Allowed
}

// Limiter counts one attempt for key and reports whether it is permitted.
// A non-nil error means the backend could not decide.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
