// Package audit records authentication events to an append-only log.
// Recording is fire-and-forget: the authentication flow never waits on,
// or fails because of, the audit log.
package audit

import (
	"context"
	"sync"
	"time"
)

// Action classifies audit entries.
type Action string

const (
	ActionLoginSucceeded    Action = "auth.login.succeeded"
	ActionLoginFailed       Action = "auth.login.failed"
	ActionLogout            Action = "auth.logout"
	ActionSessionExpired    Action = "auth.session.expired"
	ActionSessionRestored   Action = "auth.session.restored"
	ActionRemoteUnavailable Action = "auth.remote.unavailable"
)

// Entry is a single audit log record. Secrets never appear in Details.
type Entry struct {
	ID              string            `json:"id"`
	Action          Action            `json:"action"`
	ActorIdentifier string            `json:"actor_identifier"`
	Timestamp       time.Time         `json:"timestamp"`
	Details         map[string]string `json:"details,omitempty"`
}

// Log is the external append-only log. The guard never reads it back.
type Log interface {
	Append(ctx context.Context, entry Entry) error
}

// LogFunc adapts a func to Log
type LogFunc func(ctx context.Context, entry Entry) error

func (f LogFunc) Append(ctx context.Context, entry Entry) error { return f(ctx, entry) }

// InMemoryLog keeps entries in a slice
type InMemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
}

var _ Log = (*InMemoryLog)(nil)

func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{
		entries: make([]Entry, 0, 64),
	}
}

func (l *InMemoryLog) Append(ctx context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of everything appended so far, oldest first
func (l *InMemoryLog) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// ByAction returns the entries with the given action, oldest first
func (l *InMemoryLog) ByAction(action Action) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Entry
	for _, e := range l.entries {
		if e.Action == action {
			result = append(result, e)
		}
	}
	return result
}
