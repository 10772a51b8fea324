package evaluation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PathPilotApp/PathPilot/internal/models"
)

// scriptedClient is a mock genai client returning canned structured replies.
type scriptedClient struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
	lastSchema string
	calls      int
}

func (c *scriptedClient) GenerateStructured(ctx context.Context, system, user, schemaName string, schema map[string]interface{}) (string, error) {
	c.calls++
	c.lastSystem = system
	c.lastUser = user
	c.lastSchema = schemaName
	return c.reply, c.err
}

func evalObjective() *models.ConversationObjective {
	return &models.ConversationObjective{
		ID:               "discover_current_situation",
		Purpose:          "understand the user's current situation",
		Category:         models.CategoryOnboarding,
		AverageExchanges: 3,
	}
}

func evalState() *models.ConversationState {
	state := models.NewConversationState("sess-eval")
	state.CurrentObjectiveID = "discover_current_situation"
	state.AppendMessage(models.RoleUser, "I just finished school.", "discover_current_situation")
	state.AppendMessage(models.RoleAssistant, "Congratulations! What are you thinking about next?", "discover_current_situation")
	return state
}

func TestEvaluateObjective(t *testing.T) {
	client := &scriptedClient{reply: `{"is_complete": true, "confidence": 0.85, "recommended_action": "transition", "persona_hint": "recent graduate"}`}
	engine := NewEngine(client)

	eval, err := engine.EvaluateObjective(context.Background(), evalObjective(), evalState(), "I want to look at tech jobs.")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !eval.IsComplete {
		t.Error("expected IsComplete true")
	}
	if eval.Confidence != 0.85 {
		t.Errorf("expected confidence 0.85, got %v", eval.Confidence)
	}
	if eval.RecommendedAction != models.ActionTransition {
		t.Errorf("expected transition action, got %s", eval.RecommendedAction)
	}
	if eval.PersonaHint != "recent graduate" {
		t.Errorf("unexpected persona hint: %q", eval.PersonaHint)
	}
	if client.lastSchema != "objective_judgment" {
		t.Errorf("unexpected schema name: %s", client.lastSchema)
	}
	if !strings.Contains(client.lastUser, "I want to look at tech jobs.") {
		t.Error("expected latest user message in judgment context")
	}
	if !strings.Contains(client.lastUser, "ACTIVE OBJECTIVE: discover_current_situation") {
		t.Error("expected objective id in judgment context")
	}
}

func TestEvaluateObjectiveExtractsCollectedData(t *testing.T) {
	client := &scriptedClient{reply: `{
		"is_complete": false,
		"confidence": 0.5,
		"recommended_action": "continue",
		"collected_data": {
			"name": " Alex ",
			"life_stage": "student",
			"interests": ["music", "robotics"],
			"goals": "find a direction"
		}
	}`}
	engine := NewEngine(client)

	eval, err := engine.EvaluateObjective(context.Background(), evalObjective(), evalState(), "I'm Alex, a student into music and robotics.")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if eval.Collected == nil {
		t.Fatal("expected collected data on the evaluation")
	}
	if eval.Collected.Name == nil || *eval.Collected.Name != "Alex" {
		t.Error("expected extracted name trimmed and set")
	}
	if eval.Collected.LifeStage == nil || *eval.Collected.LifeStage != "student" {
		t.Error("expected extracted life stage")
	}
	if len(eval.Collected.Interests) != 2 {
		t.Errorf("expected 2 interests, got %v", eval.Collected.Interests)
	}
	if eval.Collected.Goals == nil || *eval.Collected.Goals != "find a direction" {
		t.Error("expected extracted goals")
	}
	if eval.Collected.Skills != nil || eval.Collected.CareerDirection != nil {
		t.Error("expected unreported fields left nil")
	}
}

func TestEvaluateObjectiveEmptyCollectedDataIsNil(t *testing.T) {
	client := &scriptedClient{reply: `{"is_complete": false, "confidence": 0.2, "recommended_action": "continue", "collected_data": {"name": "  ", "interests": []}}`}
	engine := NewEngine(client)

	eval, err := engine.EvaluateObjective(context.Background(), evalObjective(), evalState(), "hi")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if eval.Collected != nil {
		t.Errorf("expected nil collected data when nothing was extracted, got %+v", eval.Collected)
	}
}

func TestEvaluateObjectiveClampsConfidence(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{`{"is_complete": false, "confidence": 1.7, "recommended_action": "continue"}`, 1},
		{`{"is_complete": false, "confidence": -0.3, "recommended_action": "continue"}`, 0},
	}
	for _, tc := range cases {
		engine := NewEngine(&scriptedClient{reply: tc.raw})
		eval, err := engine.EvaluateObjective(context.Background(), evalObjective(), evalState(), "hi")
		if err != nil {
			t.Fatalf("expected success, got error: %v", err)
		}
		if eval.Confidence != tc.want {
			t.Errorf("expected clamped confidence %v, got %v", tc.want, eval.Confidence)
		}
	}
}

func TestEvaluateObjectiveNormalizesUnknownAction(t *testing.T) {
	client := &scriptedClient{reply: `{"is_complete": false, "confidence": 0.4, "recommended_action": "ponder"}`}
	engine := NewEngine(client)

	eval, err := engine.EvaluateObjective(context.Background(), evalObjective(), evalState(), "hi")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if eval.RecommendedAction != models.ActionContinue {
		t.Errorf("expected unknown action normalized to continue, got %s", eval.RecommendedAction)
	}
}

func TestEvaluateObjectiveToleratesCodeFences(t *testing.T) {
	client := &scriptedClient{reply: "```json\n{\"is_complete\": true, \"confidence\": 0.9, \"recommended_action\": \"transition\"}\n```"}
	engine := NewEngine(client)

	eval, err := engine.EvaluateObjective(context.Background(), evalObjective(), evalState(), "hi")
	if err != nil {
		t.Fatalf("expected fenced JSON to parse, got error: %v", err)
	}
	if !eval.IsComplete {
		t.Error("expected IsComplete true")
	}
}

func TestEvaluateObjectiveErrors(t *testing.T) {
	t.Run("nil client", func(t *testing.T) {
		engine := NewEngine(nil)
		if _, err := engine.EvaluateObjective(context.Background(), evalObjective(), evalState(), "hi"); err == nil {
			t.Error("expected error with nil client")
		}
	})
	t.Run("nil objective", func(t *testing.T) {
		engine := NewEngine(&scriptedClient{reply: "{}"})
		if _, err := engine.EvaluateObjective(context.Background(), nil, evalState(), "hi"); err == nil {
			t.Error("expected error with nil objective")
		}
	})
	t.Run("capability failure", func(t *testing.T) {
		engine := NewEngine(&scriptedClient{err: errors.New("model unavailable")})
		if _, err := engine.EvaluateObjective(context.Background(), evalObjective(), evalState(), "hi"); err == nil {
			t.Error("expected error when capability call fails")
		}
	})
	t.Run("malformed reply", func(t *testing.T) {
		engine := NewEngine(&scriptedClient{reply: "the objective seems done"})
		if _, err := engine.EvaluateObjective(context.Background(), evalObjective(), evalState(), "hi"); err == nil {
			t.Error("expected error for unparseable reply")
		}
	})
}

func TestEvaluateTransition(t *testing.T) {
	client := &scriptedClient{reply: `{"should_transition": true, "target_objective_id": "identify_concerns_goals", "reason": "situation established"}`}
	engine := NewEngine(client)

	tree := &models.ConversationTree{
		ID:              "career_guidance_default",
		RootObjectiveID: "discover_current_situation",
		PreferredNext: map[string]string{
			"discover_current_situation": "identify_concerns_goals",
		},
	}
	state := evalState()
	state.CompletedObjectives = []string{"establish_rapport_collect_name"}

	decision, err := engine.EvaluateTransition(context.Background(), evalObjective(), tree, state, "let's keep going")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !decision.ShouldTransition {
		t.Error("expected ShouldTransition true")
	}
	if decision.TargetObjectiveID != "identify_concerns_goals" {
		t.Errorf("unexpected target: %s", decision.TargetObjectiveID)
	}
	if decision.Reason != "situation established" {
		t.Errorf("unexpected reason: %q", decision.Reason)
	}
	if client.lastSchema != "transition_judgment" {
		t.Errorf("unexpected schema name: %s", client.lastSchema)
	}
	if !strings.Contains(client.lastUser, "TREE SUGGESTED NEXT: identify_concerns_goals") {
		t.Error("expected tree suggestion in transition context")
	}
	if !strings.Contains(client.lastUser, "ALREADY COMPLETED: establish_rapport_collect_name") {
		t.Error("expected completed objectives in transition context")
	}
}

func TestEvaluateTransitionNilTree(t *testing.T) {
	client := &scriptedClient{reply: `{"should_transition": false, "target_objective_id": "", "reason": "no graph available"}`}
	engine := NewEngine(client)

	decision, err := engine.EvaluateTransition(context.Background(), evalObjective(), nil, evalState(), "hi")
	if err != nil {
		t.Fatalf("expected nil tree tolerated, got error: %v", err)
	}
	if decision.ShouldTransition {
		t.Error("expected ShouldTransition false")
	}
}

func TestEvaluateTransitionTrimsTarget(t *testing.T) {
	client := &scriptedClient{reply: `{"should_transition": true, "target_objective_id": "  explore_interests_strengths  ", "reason": ""}`}
	engine := NewEngine(client)

	decision, err := engine.EvaluateTransition(context.Background(), evalObjective(), nil, evalState(), "hi")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if decision.TargetObjectiveID != "explore_interests_strengths" {
		t.Errorf("expected trimmed target, got %q", decision.TargetObjectiveID)
	}
}

func TestHistoryWindowLimitsContext(t *testing.T) {
	client := &scriptedClient{reply: `{"is_complete": false, "confidence": 0.1, "recommended_action": "continue"}`}
	engine := NewEngine(client, WithHistoryWindow(2))

	state := evalState()
	state.AppendMessage(models.RoleUser, "first-window-marker", "discover_current_situation")
	state.AppendMessage(models.RoleAssistant, "ack one", "discover_current_situation")
	state.AppendMessage(models.RoleUser, "second-window-marker", "discover_current_situation")

	if _, err := engine.EvaluateObjective(context.Background(), evalObjective(), state, "hi"); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if strings.Contains(client.lastUser, "first-window-marker") {
		t.Error("expected message outside history window excluded")
	}
	if !strings.Contains(client.lastUser, "second-window-marker") {
		t.Error("expected recent message included")
	}
}
