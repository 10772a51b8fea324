package store

import (
	"context"
	"testing"

	"github.com/PathPilotApp/PathPilot/internal/models"
)

func TestInMemoryStoreAbsentSession(t *testing.T) {
	s := NewInMemoryStore()
	state, err := s.GetConversationState(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected no error for absent session, got %v", err)
	}
	if state != nil {
		t.Errorf("expected nil state for absent session, got %+v", state)
	}
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	state := models.NewConversationState("sess-rt")
	state.CurrentObjectiveID = "establish_rapport_collect_name"
	state.CurrentTreeID = "career_guidance_default"
	state.AppendMessage(models.RoleUser, "hello", "establish_rapport_collect_name")
	state.ConfidenceScores["overall"] = 0.3

	if err := s.SaveConversationState(ctx, state); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := s.GetConversationState(ctx, "sess-rt")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored state")
	}
	if got.CurrentObjectiveID != "establish_rapport_collect_name" {
		t.Errorf("unexpected objective: %s", got.CurrentObjectiveID)
	}
	if got.ExchangeCount != 1 {
		t.Errorf("expected exchange count 1, got %d", got.ExchangeCount)
	}
	if len(got.ConversationHistory) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(got.ConversationHistory))
	}
	if got.ConfidenceScores["overall"] != 0.3 {
		t.Errorf("unexpected confidence: %v", got.ConfidenceScores["overall"])
	}
}

func TestInMemoryStoreIsolation(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	state := models.NewConversationState("sess-iso")
	state.AppendMessage(models.RoleUser, "hello", "")
	if err := s.SaveConversationState(ctx, state); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Mutating the caller's copy after save must not leak into the store.
	state.AppendMessage(models.RoleUser, "mutated after save", "")
	state.ConfidenceScores["overall"] = 0.99

	got, err := s.GetConversationState(ctx, "sess-iso")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got.ConversationHistory) != 1 {
		t.Errorf("expected stored history unaffected, got %d entries", len(got.ConversationHistory))
	}
	if got.ConfidenceScores["overall"] != 0 {
		t.Errorf("expected stored confidence unaffected, got %v", got.ConfidenceScores["overall"])
	}

	// Mutating a retrieved copy must not leak back either.
	got.CompletedObjectives = append(got.CompletedObjectives, "forged")
	again, err := s.GetConversationState(ctx, "sess-iso")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(again.CompletedObjectives) != 0 {
		t.Errorf("expected stored completed objectives unaffected, got %v", again.CompletedObjectives)
	}
}

func TestInMemoryStoreRejectsEmptySessionID(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.SaveConversationState(context.Background(), &models.ConversationState{}); err == nil {
		t.Error("expected error for empty session id")
	}
	if err := s.SaveConversationState(context.Background(), nil); err == nil {
		t.Error("expected error for nil state")
	}
}

func TestInMemoryStoreOverwrite(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	first := models.NewConversationState("sess-ow")
	first.CurrentObjectiveID = "establish_rapport_collect_name"
	if err := s.SaveConversationState(ctx, first); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	second := first.Clone()
	second.CurrentObjectiveID = "discover_current_situation"
	second.MarkObjectiveCompleted("establish_rapport_collect_name")
	if err := s.SaveConversationState(ctx, second); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := s.GetConversationState(ctx, "sess-ow")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.CurrentObjectiveID != "discover_current_situation" {
		t.Errorf("expected last write to win, got %s", got.CurrentObjectiveID)
	}
	if len(got.CompletedObjectives) != 1 {
		t.Errorf("expected completed objectives preserved, got %v", got.CompletedObjectives)
	}
}
