// Package evaluation provides the objective evaluation engine: it judges,
// turn by turn, whether the active objective has been completed and what
// should happen next.
//
// Both capabilities wrap a generative-model call and are best-effort: any
// network or model failure is returned as an error for the orchestrator to
// absorb, never panicked or hung (calls carry a bounded timeout).
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PathPilotApp/PathPilot/internal/genai"
	"github.com/PathPilotApp/PathPilot/internal/models"
)

// Default engine configuration.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultHistoryWindow = 12
)

// Opts holds configurable options for the engine.
type Opts struct {
	Timeout       time.Duration
	HistoryWindow int
}

// Option configures the engine.
type Option func(*Opts)

// WithTimeout bounds each capability call.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Opts) { o.Timeout = timeout }
}

// WithHistoryWindow limits how many recent messages are sent for judgment.
func WithHistoryWindow(n int) Option {
	return func(o *Opts) { o.HistoryWindow = n }
}

// Engine wraps the scoring capability behind the evaluation contract.
type Engine struct {
	client        genai.ClientInterface
	timeout       time.Duration
	historyWindow int
}

// NewEngine creates an evaluation engine. A nil client is tolerated: every
// call then reports evaluation-unavailable, which the orchestrator absorbs.
func NewEngine(client genai.ClientInterface, opts ...Option) *Engine {
	cfg := Opts{Timeout: DefaultTimeout, HistoryWindow: DefaultHistoryWindow}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Engine.NewEngine: creating evaluation engine", "hasClient", client != nil, "timeout", cfg.Timeout, "historyWindow", cfg.HistoryWindow)
	return &Engine{client: client, timeout: cfg.Timeout, historyWindow: cfg.HistoryWindow}
}

// objectiveJudgment is the structured reply shape for completion judgments.
type objectiveJudgment struct {
	IsComplete        bool          `json:"is_complete" jsonschema:"required"`
	Confidence        float64       `json:"confidence" jsonschema:"required"`
	RecommendedAction string        `json:"recommended_action" jsonschema:"required,enum=continue,enum=transition,enum=escalate"`
	PersonaHint       string        `json:"persona_hint"`
	CollectedData     extractedData `json:"collected_data"`
}

// extractedData holds the user facts the judgment pulled out of the latest
// exchange. Empty values mean "nothing new", not "clear the field".
type extractedData struct {
	Name            string   `json:"name"`
	LifeStage       string   `json:"life_stage"`
	Interests       []string `json:"interests"`
	Skills          []string `json:"skills"`
	Goals           string   `json:"goals"`
	CareerDirection string   `json:"career_direction"`
}

// toUpdate converts extracted fields to a CollectedData update, dropping
// empty values so they never clear data collected on earlier turns. Returns
// nil when nothing was extracted.
func (x extractedData) toUpdate() *models.CollectedData {
	update := &models.CollectedData{}
	changed := false
	if v := strings.TrimSpace(x.Name); v != "" {
		update.Name = &v
		changed = true
	}
	if v := strings.TrimSpace(x.LifeStage); v != "" {
		update.LifeStage = &v
		changed = true
	}
	if len(x.Interests) > 0 {
		update.Interests = x.Interests
		changed = true
	}
	if len(x.Skills) > 0 {
		update.Skills = x.Skills
		changed = true
	}
	if v := strings.TrimSpace(x.Goals); v != "" {
		update.Goals = &v
		changed = true
	}
	if v := strings.TrimSpace(x.CareerDirection); v != "" {
		update.CareerDirection = &v
		changed = true
	}
	if !changed {
		return nil
	}
	return update
}

// transitionJudgment is the structured reply shape for target selection.
type transitionJudgment struct {
	ShouldTransition  bool   `json:"should_transition" jsonschema:"required"`
	TargetObjectiveID string `json:"target_objective_id"`
	Reason            string `json:"reason"`
}

var (
	objectiveJudgmentSchema  = genai.GenerateSchema[objectiveJudgment]()
	transitionJudgmentSchema = genai.GenerateSchema[transitionJudgment]()
)

// EvaluateObjective judges whether the active objective has been satisfied
// by the conversation so far.
func (e *Engine) EvaluateObjective(ctx context.Context, objective *models.ConversationObjective, state *models.ConversationState, latestUserMessage string) (*models.Evaluation, error) {
	if e.client == nil {
		return nil, fmt.Errorf("evaluation capability not configured")
	}
	if objective == nil {
		return nil, fmt.Errorf("objective is required")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	userPrompt := e.buildJudgmentContext(objective, state, latestUserMessage)
	raw, err := e.client.GenerateStructured(ctx, objectiveJudgmentSystemPrompt, userPrompt, "objective_judgment", objectiveJudgmentSchema)
	if err != nil {
		slog.Warn("Engine.EvaluateObjective: capability call failed", "error", err, "objectiveID", objective.ID)
		return nil, fmt.Errorf("objective evaluation failed: %w", err)
	}

	var judgment objectiveJudgment
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &judgment); err != nil {
		slog.Warn("Engine.EvaluateObjective: failed to parse judgment", "error", err, "objectiveID", objective.ID, "raw", raw)
		return nil, fmt.Errorf("failed to parse objective judgment: %w", err)
	}

	eval := &models.Evaluation{
		IsComplete:        judgment.IsComplete,
		Confidence:        clamp01(judgment.Confidence),
		RecommendedAction: normalizeAction(judgment.RecommendedAction),
		PersonaHint:       strings.TrimSpace(judgment.PersonaHint),
		Collected:         judgment.CollectedData.toUpdate(),
	}
	slog.Debug("Engine.EvaluateObjective: judgment produced",
		"objectiveID", objective.ID,
		"isComplete", eval.IsComplete,
		"confidence", eval.Confidence,
		"action", eval.RecommendedAction)
	return eval, nil
}

// EvaluateTransition selects the next objective after a completion or
// non-continue judgment. Target-selection policy is deliberately separate
// from completion judgment so each can evolve independently.
func (e *Engine) EvaluateTransition(ctx context.Context, objective *models.ConversationObjective, tree *models.ConversationTree, state *models.ConversationState, latestUserMessage string) (*models.TransitionDecision, error) {
	if e.client == nil {
		return nil, fmt.Errorf("evaluation capability not configured")
	}
	if objective == nil {
		return nil, fmt.Errorf("objective is required")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	userPrompt := e.buildTransitionContext(objective, tree, state, latestUserMessage)
	raw, err := e.client.GenerateStructured(ctx, transitionJudgmentSystemPrompt, userPrompt, "transition_judgment", transitionJudgmentSchema)
	if err != nil {
		slog.Warn("Engine.EvaluateTransition: capability call failed", "error", err, "objectiveID", objective.ID)
		return nil, fmt.Errorf("transition evaluation failed: %w", err)
	}

	var judgment transitionJudgment
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &judgment); err != nil {
		slog.Warn("Engine.EvaluateTransition: failed to parse judgment", "error", err, "objectiveID", objective.ID, "raw", raw)
		return nil, fmt.Errorf("failed to parse transition judgment: %w", err)
	}

	decision := &models.TransitionDecision{
		ShouldTransition:  judgment.ShouldTransition,
		TargetObjectiveID: strings.TrimSpace(judgment.TargetObjectiveID),
		Reason:            strings.TrimSpace(judgment.Reason),
	}
	slog.Debug("Engine.EvaluateTransition: decision produced",
		"objectiveID", objective.ID,
		"shouldTransition", decision.ShouldTransition,
		"target", decision.TargetObjectiveID)
	return decision, nil
}

// buildJudgmentContext assembles the user-side prompt for completion judgment.
func (e *Engine) buildJudgmentContext(objective *models.ConversationObjective, state *models.ConversationState, latestUserMessage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ACTIVE OBJECTIVE: %s\n", objective.ID)
	fmt.Fprintf(&b, "PURPOSE: %s\n", objective.Purpose)
	fmt.Fprintf(&b, "CATEGORY: %s\n", objective.Category)
	fmt.Fprintf(&b, "EXCHANGES SO FAR: %d (typical: %d)\n", state.ExchangeCount, objective.AverageExchanges)
	if summary := state.DataCollected.Summary(); summary != "" {
		b.WriteString("DATA COLLECTED:\n")
		b.WriteString(summary)
		b.WriteString("\n")
	}
	b.WriteString(e.renderHistory(state))
	fmt.Fprintf(&b, "\nLATEST USER MESSAGE: %s\n", latestUserMessage)
	return b.String()
}

// buildTransitionContext assembles the user-side prompt for target selection.
func (e *Engine) buildTransitionContext(objective *models.ConversationObjective, tree *models.ConversationTree, state *models.ConversationState, latestUserMessage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "COMPLETED OBJECTIVE: %s\n", objective.ID)
	fmt.Fprintf(&b, "PURPOSE: %s\n", objective.Purpose)
	if tree != nil {
		fmt.Fprintf(&b, "TREE: %s\n", tree.ID)
		if next, ok := tree.PreferredNext[objective.ID]; ok {
			fmt.Fprintf(&b, "TREE SUGGESTED NEXT: %s\n", next)
		}
		if len(tree.PreferredNext) > 0 {
			var candidates []string
			for _, to := range tree.PreferredNext {
				candidates = append(candidates, to)
			}
			fmt.Fprintf(&b, "CANDIDATE OBJECTIVES: %s\n", strings.Join(candidates, ", "))
		}
	}
	if len(state.CompletedObjectives) > 0 {
		fmt.Fprintf(&b, "ALREADY COMPLETED: %s\n", strings.Join(state.CompletedObjectives, ", "))
	}
	b.WriteString(e.renderHistory(state))
	fmt.Fprintf(&b, "\nLATEST USER MESSAGE: %s\n", latestUserMessage)
	return b.String()
}

// renderHistory formats the most recent messages for judgment context.
func (e *Engine) renderHistory(state *models.ConversationState) string {
	messages := state.ConversationHistory
	if e.historyWindow > 0 && len(messages) > e.historyWindow {
		messages = messages[len(messages)-e.historyWindow:]
	}
	if len(messages) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("RECENT CONVERSATION:\n")
	for _, msg := range messages {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return b.String()
}

// normalizeAction maps unknown or empty actions to continue so a sloppy
// judgment never forces an undefined transition.
func normalizeAction(raw string) models.RecommendedAction {
	action := models.RecommendedAction(strings.ToLower(strings.TrimSpace(raw)))
	if !models.IsValidRecommendedAction(action) {
		return models.ActionContinue
	}
	return action
}

// clamp01 clamps a confidence score into [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// stripCodeFences tolerates models that wrap JSON replies in markdown fences.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
