// Package models defines session state structures for PathPilot conversations.
package models

import (
	"strings"
	"time"
)

// Message roles within conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationMessage is one entry in the append-only conversation history.
// ObjectiveID records which objective was active when the message was
// produced; it is audit data for debugging transition logic and must never
// be backfilled or rewritten.
type ConversationMessage struct {
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	ObjectiveID string    `json:"objective_id,omitempty"`
}

// CollectedData accumulates semantic fields gathered over the conversation.
// Pointer and nil-slice fields distinguish "not yet collected" from
// "collected as empty"; values may be overwritten by later turns but the
// structure tolerates partial data at any point.
type CollectedData struct {
	Name            *string  `json:"name,omitempty"`
	LifeStage       *string  `json:"life_stage,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	Goals           *string  `json:"goals,omitempty"`
	CareerDirection *string  `json:"career_direction,omitempty"`
}

// FieldNames returns the names of collected fields in canonical order.
func (d *CollectedData) FieldNames() []string {
	var names []string
	if d.Name != nil {
		names = append(names, "name")
	}
	if d.LifeStage != nil {
		names = append(names, "life_stage")
	}
	if d.Interests != nil {
		names = append(names, "interests")
	}
	if d.Skills != nil {
		names = append(names, "skills")
	}
	if d.Goals != nil {
		names = append(names, "goals")
	}
	if d.CareerDirection != nil {
		names = append(names, "career_direction")
	}
	return names
}

// Merge copies fields present in the update over the receiver. Accumulation
// is monotonic: a field absent from the update never clears a value
// collected on an earlier turn.
func (d *CollectedData) Merge(update *CollectedData) {
	if update == nil {
		return
	}
	if update.Name != nil {
		v := *update.Name
		d.Name = &v
	}
	if update.LifeStage != nil {
		v := *update.LifeStage
		d.LifeStage = &v
	}
	if update.Interests != nil {
		d.Interests = append([]string(nil), update.Interests...)
	}
	if update.Skills != nil {
		d.Skills = append([]string(nil), update.Skills...)
	}
	if update.Goals != nil {
		v := *update.Goals
		d.Goals = &v
	}
	if update.CareerDirection != nil {
		v := *update.CareerDirection
		d.CareerDirection = &v
	}
}

// Summary renders the collected fields as "field: value" lines for prompt
// personalization. Fields not yet collected are omitted entirely.
func (d *CollectedData) Summary() string {
	var lines []string
	if d.Name != nil {
		lines = append(lines, "name: "+*d.Name)
	}
	if d.LifeStage != nil {
		lines = append(lines, "life_stage: "+*d.LifeStage)
	}
	if d.Interests != nil {
		lines = append(lines, "interests: "+strings.Join(d.Interests, ", "))
	}
	if d.Skills != nil {
		lines = append(lines, "skills: "+strings.Join(d.Skills, ", "))
	}
	if d.Goals != nil {
		lines = append(lines, "goals: "+*d.Goals)
	}
	if d.CareerDirection != nil {
		lines = append(lines, "career_direction: "+*d.CareerDirection)
	}
	return strings.Join(lines, "\n")
}

// ConversationState is the mutable session record, one per conversation.
// The orchestrator is the sole writer within a turn; the store persists the
// whole document last-writer-wins.
type ConversationState struct {
	SessionID           string                   `json:"session_id"`
	CurrentObjectiveID  string                   `json:"current_objective_id,omitempty"`
	CurrentTreeID       string                   `json:"current_tree_id,omitempty"`
	StartTime           time.Time                `json:"start_time"`
	CompletedObjectives []string                 `json:"completed_objectives,omitempty"`
	DataCollected       CollectedData            `json:"data_collected"`
	ConfidenceScores    map[string]float64       `json:"confidence_scores,omitempty"`
	ExchangeCount       int                      `json:"exchange_count"`
	UserPersona         string                   `json:"user_persona,omitempty"`
	LastUserMessage     string                   `json:"last_user_message,omitempty"`
	ConversationHistory []ConversationMessage    `json:"conversation_history,omitempty"`
	ObjectiveTimings    map[string]time.Duration `json:"objective_timings,omitempty"`
	TransitionReasons   map[string]string        `json:"transition_reasons,omitempty"`
}

// NewConversationState creates a fresh state for a session. StartTime is set
// once, here.
func NewConversationState(sessionID string) *ConversationState {
	return &ConversationState{
		SessionID:         sessionID,
		StartTime:         time.Now(),
		ConfidenceScores:  make(map[string]float64),
		ObjectiveTimings:  make(map[string]time.Duration),
		TransitionReasons: make(map[string]string),
	}
}

// EnsureMaps initializes any nil map fields. A state rehydrated from a JSON
// document loses empty maps to omitempty, so callers must normalize before
// writing to them.
func (s *ConversationState) EnsureMaps() {
	if s.ConfidenceScores == nil {
		s.ConfidenceScores = make(map[string]float64)
	}
	if s.ObjectiveTimings == nil {
		s.ObjectiveTimings = make(map[string]time.Duration)
	}
	if s.TransitionReasons == nil {
		s.TransitionReasons = make(map[string]string)
	}
}

// AppendMessage appends a message tagged with the objective that was active
// when it was produced, and maintains the LastUserMessage and ExchangeCount
// invariants.
func (s *ConversationState) AppendMessage(role, content, objectiveID string) {
	s.ConversationHistory = append(s.ConversationHistory, ConversationMessage{
		Role:        role,
		Content:     content,
		Timestamp:   time.Now(),
		ObjectiveID: objectiveID,
	})
	if role == RoleUser {
		s.LastUserMessage = content
	}
	s.RecomputeExchangeCount()
}

// RecomputeExchangeCount derives the exchange count from history length
// rather than hand-incrementing, to avoid drift.
func (s *ConversationState) RecomputeExchangeCount() int {
	count := 0
	for _, msg := range s.ConversationHistory {
		if msg.Role == RoleUser {
			count++
		}
	}
	s.ExchangeCount = count
	return count
}

// MarkObjectiveCompleted appends the objective id to CompletedObjectives.
// The append is idempotent: an id already present is skipped. Returns true
// when the id was newly appended.
func (s *ConversationState) MarkObjectiveCompleted(objectiveID string) bool {
	for _, id := range s.CompletedObjectives {
		if id == objectiveID {
			return false
		}
	}
	s.CompletedObjectives = append(s.CompletedObjectives, objectiveID)
	return true
}

// ObjectiveEnteredAt derives when the given objective became active from the
// history audit trail: the timestamp of the first message tagged with it.
// Falls back to StartTime when no such message exists.
func (s *ConversationState) ObjectiveEnteredAt(objectiveID string) time.Time {
	for _, msg := range s.ConversationHistory {
		if msg.ObjectiveID == objectiveID {
			return msg.Timestamp
		}
	}
	return s.StartTime
}

// Clone returns a deep copy of the state so store snapshots cannot alias the
// orchestrator's working copy.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.CompletedObjectives = append([]string(nil), s.CompletedObjectives...)
	cp.ConversationHistory = append([]ConversationMessage(nil), s.ConversationHistory...)
	if s.ConfidenceScores != nil {
		cp.ConfidenceScores = make(map[string]float64, len(s.ConfidenceScores))
		for k, v := range s.ConfidenceScores {
			cp.ConfidenceScores[k] = v
		}
	}
	if s.ObjectiveTimings != nil {
		cp.ObjectiveTimings = make(map[string]time.Duration, len(s.ObjectiveTimings))
		for k, v := range s.ObjectiveTimings {
			cp.ObjectiveTimings[k] = v
		}
	}
	if s.TransitionReasons != nil {
		cp.TransitionReasons = make(map[string]string, len(s.TransitionReasons))
		for k, v := range s.TransitionReasons {
			cp.TransitionReasons[k] = v
		}
	}
	cp.DataCollected = *s.DataCollected.clone()
	return &cp
}

func (d *CollectedData) clone() *CollectedData {
	cp := CollectedData{}
	if d.Name != nil {
		v := *d.Name
		cp.Name = &v
	}
	if d.LifeStage != nil {
		v := *d.LifeStage
		cp.LifeStage = &v
	}
	if d.Interests != nil {
		cp.Interests = append([]string(nil), d.Interests...)
	}
	if d.Skills != nil {
		cp.Skills = append([]string(nil), d.Skills...)
	}
	if d.Goals != nil {
		v := *d.Goals
		cp.Goals = &v
	}
	if d.CareerDirection != nil {
		v := *d.CareerDirection
		cp.CareerDirection = &v
	}
	return &cp
}
