// Package store provides storage backends for PathPilot conversation state.
//
// The orchestrator is the sole writer within a turn; conversation state is
// persisted as one whole document per session, last-writer-wins. Backends:
// in-memory (tests and development), SQLite, PostgreSQL, and Redis.
package store

import (
	"context"
	"time"

	"github.com/PathPilotApp/PathPilot/internal/models"
)

// Store defines get/put semantics for per-session conversation state.
// GetConversationState returns (nil, nil) when the session has no state yet;
// callers must tolerate absence by initializing fresh state.
type Store interface {
	GetConversationState(ctx context.Context, sessionID string) (*models.ConversationState, error)
	SaveConversationState(ctx context.Context, state *models.ConversationState) error
	Close() error
}

// Opts holds configurable options for store backends.
type Opts struct {
	// DSN is the backend connection string: a file path for SQLite, a
	// postgres:// URL for PostgreSQL, a redis:// URL for Redis.
	DSN string
	// TTL optionally expires persisted sessions (Redis only; zero means no
	// expiry). Session teardown is otherwise an external concern.
	TTL time.Duration
}

// Option configures a store backend.
type Option func(*Opts)

// WithDSN sets the backend connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithTTL sets an optional session expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}
