package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/PathPilotApp/PathPilot/internal/models"
)

// InMemoryStore is a mutex-guarded map store for tests and development.
// States are deep-copied on both get and put so callers never alias the
// stored document.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]*models.ConversationState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]*models.ConversationState)}
}

// GetConversationState retrieves a session's state, or (nil, nil) when absent.
func (s *InMemoryStore) GetConversationState(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[sessionID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

// SaveConversationState persists the whole state document for its session.
func (s *InMemoryStore) SaveConversationState(ctx context.Context, state *models.ConversationState) error {
	if state == nil || state.SessionID == "" {
		return fmt.Errorf("conversation state requires a session id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.SessionID] = state.Clone()
	slog.Debug("InMemoryStore.SaveConversationState succeeded", "sessionID", state.SessionID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
