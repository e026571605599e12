// Package queue defines the domain events exchanged over the message broker
// and the RabbitMQ plumbing that carries them.
package queue

import "time"

// Event types published by the API.
const (
	UserRegistered = "user.registered"
	BookCreated    = "book.created"
	BookUpdated    = "book.updated"
	BookDeleted    = "book.deleted"
	RatingCreated  = "rating.created"
)

// Event is published after a successful state change.  It carries enough
// information for downstream consumers to log, notify, or trigger analytics
// without querying the primary database.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    uint64    `json:"actor_id"`
	BookID     uint64    `json:"book_id,omitempty"`
	RatingID   uint64    `json:"rating_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Email      string    `json:"email,omitempty"`
	Rating     int       `json:"rating,omitempty"`
}
