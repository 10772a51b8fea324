package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PathPilotApp/PathPilot/internal/flow"
	"github.com/PathPilotApp/PathPilot/internal/models"
	"github.com/PathPilotApp/PathPilot/internal/objectives"
	"github.com/PathPilotApp/PathPilot/internal/promptcache"
	"github.com/PathPilotApp/PathPilot/internal/store"
)

// stubEvaluator keeps the conversation on its current objective.
type stubEvaluator struct{}

func (stubEvaluator) EvaluateObjective(ctx context.Context, objective *models.ConversationObjective, state *models.ConversationState, latestUserMessage string) (*models.Evaluation, error) {
	return &models.Evaluation{IsComplete: false, Confidence: 0.3, RecommendedAction: models.ActionContinue}, nil
}

func (stubEvaluator) EvaluateTransition(ctx context.Context, objective *models.ConversationObjective, tree *models.ConversationTree, state *models.ConversationState, latestUserMessage string) (*models.TransitionDecision, error) {
	return &models.TransitionDecision{ShouldTransition: false}, nil
}

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore) {
	t.Helper()
	sessions := store.NewInMemoryStore()
	prompts := promptcache.New(objectives.NewRegistry())
	orchestrator := flow.NewOrchestrator(sessions, prompts, stubEvaluator{}, flow.NewLegacyFlowManager())
	return NewServer(orchestrator), sessions
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return resp
}

func TestCreateSession(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Status != "ok" {
		t.Errorf("unexpected status: %s", resp.Status)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape: %T", resp.Result)
	}
	if id, _ := result["session_id"].(string); id == "" {
		t.Error("expected a non-empty session id")
	}
}

func TestTurnEndpoint(t *testing.T) {
	server, sessions := newTestServer(t)
	handler := server.Handler()

	body := strings.NewReader(`{"message": "Hi, I need some career advice."}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/sess-api/turns", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp.Status != "ok" {
		t.Fatalf("unexpected status: %s", resp.Status)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape: %T", resp.Result)
	}
	if prompt, _ := result["system_prompt"].(string); prompt == "" {
		t.Error("expected a system prompt in the result")
	}
	vars, ok := result["dynamic_variables"].(map[string]interface{})
	if !ok {
		t.Fatal("expected dynamic variables in the result")
	}
	if vars["current_objective"] != objectives.ObjectiveEstablishRapport {
		t.Errorf("unexpected objective: %v", vars["current_objective"])
	}

	state, err := sessions.GetConversationState(context.Background(), "sess-api")
	if err != nil || state == nil {
		t.Fatalf("expected persisted session state, got (%v, %v)", state, err)
	}
	if state.ExchangeCount != 1 {
		t.Errorf("expected exchange count 1, got %d", state.ExchangeCount)
	}
}

func TestTurnEndpointRejectsBadInput(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	t.Run("invalid json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s1/turns", strings.NewReader("{not json")))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("empty message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s1/turns", strings.NewReader(`{"message": ""}`)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if resp := decodeResponse(t, rec); resp.Status != "error" {
			t.Errorf("expected error envelope, got %s", resp.Status)
		}
	})
}

func TestTurnEndpointNoDefaultTree(t *testing.T) {
	// No default tree means bootstrap cannot succeed for a new session.
	sessions := store.NewInMemoryStore()
	orchestrator := flow.NewOrchestrator(sessions, promptcache.New(emptyStore{}), stubEvaluator{}, flow.NewLegacyFlowManager())
	server := NewServer(orchestrator)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s1/turns", strings.NewReader(`{"message": "hi"}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

// emptyStore is a definition store with no objectives or trees.
type emptyStore struct{}

func (emptyStore) GetObjective(id string) (*models.ConversationObjective, bool) { return nil, false }
func (emptyStore) GetTree(id string) (*models.ConversationTree, bool) { return nil, false }
func (emptyStore) GetDefaultTree() (*models.ConversationTree, bool) { return nil, false }

func TestGetSession(t *testing.T) {
	server, sessions := newTestServer(t)
	handler := server.Handler()

	state := models.NewConversationState("sess-get")
	state.CurrentObjectiveID = objectives.ObjectiveEstablishRapport
	if err := sessions.SaveConversationState(context.Background(), state); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sess-get", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape: %T", resp.Result)
	}
	if result["session_id"] != "sess-get" {
		t.Errorf("unexpected session id: %v", result["session_id"])
	}
}

func TestGetSessionNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	body := strings.NewReader(`{"message": "hello"}`)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s1/turns", body))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape: %T", resp.Result)
	}
	if turns, _ := result["turns"].(float64); turns != 1 {
		t.Errorf("expected 1 turn counted, got %v", result["turns"])
	}
}
