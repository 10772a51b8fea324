// Package store provides storage backends for PathPilot conversation state.
//
// This file implements the Redis-backed store: one JSON value per session
// key, optionally expiring.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PathPilotApp/PathPilot/internal/models"
	"github.com/redis/go-redis/v9"
)

// sessionKeyPrefix namespaces PathPilot session documents in Redis.
const sessionKeyPrefix = "pathpilot:session:"

// RedisStore persists conversation state as JSON values in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new Redis store from a redis:// DSN. The
// connection is verified with a ping before the store is returned.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewRedisStore invoked", "DSN_set", cfg.DSN != "", "ttl", cfg.TTL)

	if cfg.DSN == "" {
		slog.Error("RedisStore DSN not set")
		return nil, fmt.Errorf("redis DSN not set")
	}

	redisOpts, err := redis.ParseURL(cfg.DSN)
	if err != nil {
		slog.Error("Failed to parse Redis URL", "error", err)
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err)
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	slog.Debug("Redis ping successful")

	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

// GetConversationState retrieves a session's state, or (nil, nil) when absent.
func (s *RedisStore) GetConversationState(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	doc, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore.GetConversationState failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get conversation state for %s: %w", sessionID, err)
	}

	var state models.ConversationState
	if err := json.Unmarshal(doc, &state); err != nil {
		slog.Error("RedisStore.GetConversationState unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to decode conversation state for %s: %w", sessionID, err)
	}
	return &state, nil
}

// SaveConversationState persists the whole state document for its session.
func (s *RedisStore) SaveConversationState(ctx context.Context, state *models.ConversationState) error {
	if state == nil || state.SessionID == "" {
		return fmt.Errorf("conversation state requires a session id")
	}
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode conversation state: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+state.SessionID, doc, s.ttl).Err(); err != nil {
		slog.Error("RedisStore.SaveConversationState failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("failed to save conversation state for %s: %w", state.SessionID, err)
	}
	slog.Debug("RedisStore.SaveConversationState succeeded", "sessionID", state.SessionID)
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
