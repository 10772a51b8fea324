// Package models defines the core data structures for PathPilot.
//
// It includes objective and tree definitions, evaluation judgments, and the
// per-turn result shape, which are shared across modules.
package models

import "errors"

// ObjectiveCategory governs which external capability set is enabled while
// an objective is active (e.g. career-card generation tools).
type ObjectiveCategory string

const (
	// CategoryOnboarding covers rapport building and basic data collection.
	CategoryOnboarding ObjectiveCategory = "onboarding"
	// CategoryExploration covers open-ended discovery of interests and goals.
	CategoryExploration ObjectiveCategory = "exploration"
	// CategoryAnalysis covers guidance and artifact generation.
	CategoryAnalysis ObjectiveCategory = "analysis"
)

// IsValidObjectiveCategory checks if the given category is supported.
func IsValidObjectiveCategory(c ObjectiveCategory) bool {
	switch c {
	case CategoryOnboarding, CategoryExploration, CategoryAnalysis:
		return true
	default:
		return false
	}
}

// Error variables for better error handling and testability
var (
	ErrEmptyObjectiveID    = errors.New("objective id cannot be empty")
	ErrEmptyPurpose        = errors.New("objective purpose cannot be empty")
	ErrInvalidCategory     = errors.New("invalid objective category")
	ErrEmptyTreeID         = errors.New("tree id cannot be empty")
	ErrEmptyRootObjective  = errors.New("tree root objective id cannot be empty")
	ErrEmptySessionID      = errors.New("session id cannot be empty")
	ErrEmptyMessage        = errors.New("message cannot be empty")
	ErrInvalidAverageCount = errors.New("average exchanges must be positive")
)

// ConversationObjective is a named unit of conversational work.
type ConversationObjective struct {
	ID               string            `json:"id"`
	Purpose          string            `json:"purpose"`
	Category         ObjectiveCategory `json:"category"`
	AverageExchanges int               `json:"average_exchanges"` // progress heuristic, never a hard limit
}

// Validate checks that the objective definition is well-formed.
func (o *ConversationObjective) Validate() error {
	if o.ID == "" {
		return ErrEmptyObjectiveID
	}
	if o.Purpose == "" {
		return ErrEmptyPurpose
	}
	if !IsValidObjectiveCategory(o.Category) {
		return ErrInvalidCategory
	}
	if o.AverageExchanges <= 0 {
		return ErrInvalidAverageCount
	}
	return nil
}

// ConversationTree is a directed graph of objectives for one conversation
// program. Edges are resolved by the evaluation engine's transition decision;
// PreferredNext only supplies hints, and the orchestrator must tolerate an
// unresolved edge.
type ConversationTree struct {
	ID              string `json:"id"`
	RootObjectiveID string `json:"root_objective_id"`
	// PreferredNext maps an objective id to the tree's preferred successor.
	PreferredNext map[string]string `json:"preferred_next,omitempty"`
	// FallbackOrder optionally overrides the global linear fallback policy
	// for this tree. Empty means the default policy applies.
	FallbackOrder []string `json:"fallback_order,omitempty"`
}

// Validate checks that the tree definition is well-formed.
func (t *ConversationTree) Validate() error {
	if t.ID == "" {
		return ErrEmptyTreeID
	}
	if t.RootObjectiveID == "" {
		return ErrEmptyRootObjective
	}
	return nil
}

// RecommendedAction is the evaluation engine's verdict on what should happen
// to the current objective after a turn.
type RecommendedAction string

const (
	// ActionContinue keeps working on the current objective.
	ActionContinue RecommendedAction = "continue"
	// ActionTransition moves on to the next objective.
	ActionTransition RecommendedAction = "transition"
	// ActionEscalate forces a transition regardless of completion confidence,
	// e.g. after repeated ambiguous answers.
	ActionEscalate RecommendedAction = "escalate"
)

// IsValidRecommendedAction checks if the given action is supported.
func IsValidRecommendedAction(a RecommendedAction) bool {
	switch a {
	case ActionContinue, ActionTransition, ActionEscalate:
		return true
	default:
		return false
	}
}

// Evaluation is a completion judgment for the current objective.
type Evaluation struct {
	IsComplete        bool              `json:"is_complete"`
	Confidence        float64           `json:"confidence"` // always within [0,1]
	RecommendedAction RecommendedAction `json:"recommended_action"`
	// PersonaHint is an optional classification signal; the orchestrator
	// applies it to the state once, first signal wins.
	PersonaHint string `json:"persona_hint,omitempty"`
	// Collected carries fields the judgment extracted from the conversation;
	// the orchestrator merges it into the state's accumulated data. Nil when
	// the turn surfaced nothing new.
	Collected *CollectedData `json:"collected,omitempty"`
}

// TransitionDecision is the evaluation engine's answer to "what comes next",
// consulted only after a completion or non-continue judgment.
type TransitionDecision struct {
	ShouldTransition  bool   `json:"should_transition"`
	TargetObjectiveID string `json:"target_objective_id,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

// GeneratedPrompt is a compiled system prompt plus the dynamic variables the
// calling agent layer templatizes with.
type GeneratedPrompt struct {
	SystemPrompt     string            `json:"system_prompt"`
	DynamicVariables map[string]string `json:"dynamic_variables"`
}

// TurnResult is the orchestrator's per-turn output to the chat/voice caller.
type TurnResult struct {
	SystemPrompt     string            `json:"system_prompt"`
	DynamicVariables map[string]string `json:"dynamic_variables"`
	ShouldTransition bool              `json:"should_transition"`
	NextObjectiveID  string            `json:"next_objective_id,omitempty"`
	Evaluation       *Evaluation       `json:"evaluation,omitempty"`
	// Degraded reports that the legacy flow manager produced this turn's
	// prompt because the objective-driven pipeline failed.
	Degraded bool `json:"degraded"`
}

// APIResponse is the standard envelope for HTTP responses.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success builds a success response envelope.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// Error builds an error response envelope.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}
