// Package session persists conversation turns per client session so a
// returning caller can resume with history even when their device sends none.
// The pipeline itself never requires the store; it is an optional layer the
// HTTP server consults when a request carries a session ID but no inline
// conversation history.
package session

import (
	"context"
	"time"
)

// Entry is one persisted conversation turn.
type Entry struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the turn's text.
	Content string

	// CreatedAt is when the turn was recorded. Assigned by the store on
	// append when zero.
	CreatedAt time.Time
}

// Store persists and recalls conversation turns. Implementations must be
// safe for concurrent use.
type Store interface {
	// Append records entries under sessionID in order.
	Append(ctx context.Context, sessionID string, entries ...Entry) error

	// Recent returns up to limit of the most recent entries for sessionID in
	// chronological order (oldest first). A limit of 0 or less means no cap.
	Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error)
}
