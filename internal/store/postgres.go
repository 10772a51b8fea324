// Package store provides storage backends for PathPilot conversation state.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/PathPilotApp/PathPilot/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists conversation state as JSONB documents in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store from a postgres:// DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// GetConversationState retrieves a session's state, or (nil, nil) when absent.
func (s *PostgresStore) GetConversationState(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM conversation_states WHERE session_id = $1`, sessionID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetConversationState query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query conversation state for %s: %w", sessionID, err)
	}

	var state models.ConversationState
	if err := json.Unmarshal(doc, &state); err != nil {
		slog.Error("PostgresStore.GetConversationState unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to decode conversation state for %s: %w", sessionID, err)
	}
	return &state, nil
}

// SaveConversationState upserts the whole state document for its session.
func (s *PostgresStore) SaveConversationState(ctx context.Context, state *models.ConversationState) error {
	if state == nil || state.SessionID == "" {
		return fmt.Errorf("conversation state requires a session id")
	}
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode conversation state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversation_states (session_id, state, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (session_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		state.SessionID, doc, time.Now())
	if err != nil {
		slog.Error("PostgresStore.SaveConversationState failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("failed to save conversation state for %s: %w", state.SessionID, err)
	}
	slog.Debug("PostgresStore.SaveConversationState succeeded", "sessionID", state.SessionID)
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
