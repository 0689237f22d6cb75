// Package memory persists short rolling conversation history per session.
package memory

import "context"

const (
	// MaxEntries caps the history per session. Older entries are dropped.
	MaxEntries = 6

	// TTLSeconds expires idle sessions after a day.
	TTLSeconds = 86400
)

// Entry is one remembered exchange line.
type Entry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Store holds rolling session history. Failures here must never fail a
// conversation; callers log store errors and continue without history.
type Store interface {
	// History returns the remembered entries for a session, oldest first.
	History(ctx context.Context, sessionID string) ([]Entry, error)

	// Append adds entries to a session and trims it to MaxEntries.
	Append(ctx context.Context, sessionID string, entries ...Entry) error

	Close() error
}

// NoopStore remembers nothing. Used when no session database is configured
// or the configured one cannot be opened.
type NoopStore struct{}

func (NoopStore) History(context.Context, string) ([]Entry, error) { return nil, nil }
func (NoopStore) Append(context.Context, string, ...Entry) error   { return nil }
func (NoopStore) Close() error                                     { return nil }
