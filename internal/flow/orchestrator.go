// Package flow provides the conversation orchestrator: the top-level
// coordinator that decides, turn by turn, what the conversational agent
// should be trying to accomplish, whether it has accomplished it, and what
// happens next.
//
// Within one turn, evaluation strictly precedes transition, which strictly
// precedes prompt regeneration, which strictly precedes persistence. Turns
// for one session are processed serially; sessions are independent.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PathPilotApp/PathPilot/internal/models"
	"github.com/PathPilotApp/PathPilot/internal/store"
)

// ErrNoDefaultTree is the single fatal bootstrap condition: a brand-new
// session cannot be initialized because no default tree exists at all.
// Every other failure mode degrades to the legacy flow manager instead.
var ErrNoDefaultTree = errors.New("no default conversation tree is defined")

// Evaluator judges objective completion and selects transition targets.
// Implementations are best-effort: the orchestrator absorbs every error and
// treats it as "stay on the current objective".
type Evaluator interface {
	EvaluateObjective(ctx context.Context, objective *models.ConversationObjective, state *models.ConversationState, latestUserMessage string) (*models.Evaluation, error)
	EvaluateTransition(ctx context.Context, objective *models.ConversationObjective, tree *models.ConversationTree, state *models.ConversationState, latestUserMessage string) (*models.TransitionDecision, error)
}

// PromptSource supplies cached definitions and compiles system prompts.
type PromptSource interface {
	Objective(id string) (*models.ConversationObjective, bool)
	Tree(id string) (*models.ConversationTree, bool)
	DefaultTree() (*models.ConversationTree, bool)
	GenerateSystemPrompt(objectiveID string, state *models.ConversationState) *models.GeneratedPrompt
}

// Stats reports orchestrator health counters. PersistFailures in particular
// must be surfaced to observability, since silent persistence loss causes
// state to regress on the next turn.
type Stats struct {
	Turns           uint64 `json:"turns"`
	Transitions     uint64 `json:"transitions"`
	DegradedTurns   uint64 `json:"degraded_turns"`
	PersistFailures uint64 `json:"persist_failures"`
}

// Orchestrator coordinates the per-turn pipeline. Construct once and share;
// all session-keyed state lives in the store, never in the collaborators.
type Orchestrator struct {
	sessions  store.Store
	prompts   PromptSource
	evaluator Evaluator
	legacy    *LegacyFlowManager
	policy    TransitionPolicy

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	stats Stats
}

// NewOrchestrator creates the orchestrator with its collaborators and the
// default transition policy.
func NewOrchestrator(sessions store.Store, prompts PromptSource, evaluator Evaluator, legacy *LegacyFlowManager) *Orchestrator {
	slog.Debug("Orchestrator.NewOrchestrator: creating orchestrator",
		"hasEvaluator", evaluator != nil,
		"policy", DefaultTransitionPolicy.Name)
	return &Orchestrator{
		sessions:  sessions,
		prompts:   prompts,
		evaluator: evaluator,
		legacy:    legacy,
		policy:    DefaultTransitionPolicy,
		locks:     make(map[string]*sync.Mutex),
	}
}

// SetPolicy overrides the global fallback transition policy.
func (o *Orchestrator) SetPolicy(policy TransitionPolicy) {
	o.policy = policy
	slog.Debug("Orchestrator.SetPolicy: policy set", "policy", policy.Name)
}

// ProcessTurn runs one full turn for a session: load state, append the user
// message, evaluate, transition, regenerate the prompt, persist, and return
// the result. Recoverable failures never surface as errors; they degrade to
// the legacy flow manager. The single exception is the fatal case of a
// brand-new session with no default tree.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, userMessage string) (*models.TurnResult, error) {
	if sessionID == "" {
		return nil, models.ErrEmptySessionID
	}
	if userMessage == "" {
		return nil, models.ErrEmptyMessage
	}

	// Turns for one session run strictly in arrival order; cancelling an
	// in-flight evaluation risks inconsistent transition bookkeeping, so
	// later turns wait instead.
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	o.countTurn()

	state, loadFailed, err := o.loadOrCreateState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if loadFailed {
		// Store unavailable: the turn still answers, from the legacy
		// manager, against an ephemeral state. Never persisted: the real
		// document may still be intact, and a write from this blank state
		// would overwrite it.
		slog.Warn("Orchestrator.ProcessTurn: state load failed, degrading to legacy flow", "sessionID", sessionID)
		state.AppendMessage(models.RoleUser, userMessage, state.CurrentObjectiveID)
		return o.legacyResult(state, nil), nil
	}

	preObjectiveID := state.CurrentObjectiveID
	state.AppendMessage(models.RoleUser, userMessage, preObjectiveID)

	objective, ok := o.prompts.Objective(preObjectiveID)
	if !ok {
		// Definition-not-found for the active objective: no evaluation is
		// possible and prompt compilation would fail too.
		slog.Warn("Orchestrator.ProcessTurn: current objective not found, degrading to legacy flow",
			"sessionID", sessionID, "objectiveID", preObjectiveID)
		result := o.legacyResult(state, nil)
		o.persist(ctx, state)
		return result, nil
	}

	var eval *models.Evaluation
	if o.evaluator != nil {
		eval, err = o.evaluator.EvaluateObjective(ctx, objective, state, userMessage)
	}
	if o.evaluator == nil || err != nil {
		// Evaluation-unavailable (error or timeout): the current objective
		// is retained and the turn answers from the legacy flow manager.
		slog.Warn("Orchestrator.ProcessTurn: evaluation unavailable, degrading to legacy flow",
			"sessionID", sessionID, "objectiveID", preObjectiveID, "error", err)
		result := o.legacyResult(state, nil)
		o.persist(ctx, state)
		return result, nil
	}

	if eval != nil {
		state.ConfidenceScores["overall"] = eval.Confidence
		state.DataCollected.Merge(eval.Collected)
		if state.UserPersona == "" && eval.PersonaHint != "" {
			state.UserPersona = eval.PersonaHint
			slog.Info("Orchestrator.ProcessTurn: user persona detected",
				"sessionID", sessionID, "persona", state.UserPersona)
		}
	}

	shouldTransition, nextObjectiveID := o.applyTransition(ctx, state, objective, eval, userMessage)

	prompt := o.prompts.GenerateSystemPrompt(state.CurrentObjectiveID, state)
	if prompt == nil {
		// Definition-not-found at prompt time: coherent legacy prompt
		// rather than an error or dead air.
		slog.Warn("Orchestrator.ProcessTurn: prompt generation failed, degrading to legacy flow",
			"sessionID", sessionID, "objectiveID", state.CurrentObjectiveID)
		result := o.legacyResult(state, eval)
		result.ShouldTransition = shouldTransition
		result.NextObjectiveID = nextObjectiveID
		o.persist(ctx, state)
		return result, nil
	}

	o.persist(ctx, state)

	return &models.TurnResult{
		SystemPrompt:     prompt.SystemPrompt,
		DynamicVariables: prompt.DynamicVariables,
		ShouldTransition: shouldTransition,
		NextObjectiveID:  nextObjectiveID,
		Evaluation:       eval,
	}, nil
}

// GetState returns the persisted state for a session, for diagnostics.
func (o *Orchestrator) GetState(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	return o.sessions.GetConversationState(ctx, sessionID)
}

// Stats returns a snapshot of orchestrator counters.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// loadOrCreateState rehydrates the session state or initializes a fresh one
// from the default tree. The bool reports a store read failure (degrade
// path); the error is reserved for the fatal missing-default-tree case.
func (o *Orchestrator) loadOrCreateState(ctx context.Context, sessionID string) (*models.ConversationState, bool, error) {
	state, err := o.sessions.GetConversationState(ctx, sessionID)
	if err != nil {
		slog.Error("Orchestrator.loadOrCreateState: store read failed", "error", err, "sessionID", sessionID)
		state = nil
	}
	loadFailed := err != nil

	if state == nil {
		tree, ok := o.prompts.DefaultTree()
		if !ok {
			if loadFailed {
				// Existing state may simply be unreadable right now;
				// degrade rather than abort the session.
				return models.NewConversationState(sessionID), true, nil
			}
			slog.Error("Orchestrator.loadOrCreateState: no default tree for new session", "sessionID", sessionID)
			return nil, false, fmt.Errorf("cannot bootstrap session %s: %w", sessionID, ErrNoDefaultTree)
		}
		state = models.NewConversationState(sessionID)
		state.CurrentTreeID = tree.ID
		state.CurrentObjectiveID = tree.RootObjectiveID
		slog.Info("Orchestrator.loadOrCreateState: initialized new session",
			"sessionID", sessionID, "treeID", tree.ID, "rootObjectiveID", tree.RootObjectiveID)
	}
	// JSON-document backends drop empty maps on the way out.
	state.EnsureMaps()
	return state, loadFailed, nil
}

// applyTransition runs the transition rule once, after evaluation. It
// mutates state on a successful transition and reports what happened; when
// no target can be resolved the current objective is retained rather than
// transitioning into an undefined state.
func (o *Orchestrator) applyTransition(ctx context.Context, state *models.ConversationState, objective *models.ConversationObjective, eval *models.Evaluation, userMessage string) (bool, string) {
	if eval == nil || objective == nil {
		return false, ""
	}
	if !eval.IsComplete && eval.RecommendedAction == models.ActionContinue {
		return false, ""
	}

	tree, _ := o.prompts.Tree(state.CurrentTreeID)

	var decision *models.TransitionDecision
	if o.evaluator != nil {
		var err error
		decision, err = o.evaluator.EvaluateTransition(ctx, objective, tree, state, userMessage)
		if err != nil {
			slog.Warn("Orchestrator.applyTransition: transition evaluation unavailable",
				"sessionID", state.SessionID, "objectiveID", objective.ID, "error", err)
			decision = nil
		}
	}
	if decision != nil && !decision.ShouldTransition && eval.RecommendedAction != models.ActionEscalate {
		slog.Debug("Orchestrator.applyTransition: evaluator declined transition",
			"sessionID", state.SessionID, "objectiveID", objective.ID)
		return false, ""
	}

	target, reason := o.resolveTarget(state, objective.ID, tree, decision)
	if target == "" {
		slog.Info("Orchestrator.applyTransition: no next objective resolvable, staying",
			"sessionID", state.SessionID, "objectiveID", objective.ID)
		return false, ""
	}

	state.ObjectiveTimings[objective.ID] = time.Since(state.ObjectiveEnteredAt(objective.ID))
	state.MarkObjectiveCompleted(objective.ID)
	state.CurrentObjectiveID = target
	state.TransitionReasons[target] = reason
	o.countTransition()

	slog.Info("Orchestrator.applyTransition: transitioned",
		"sessionID", state.SessionID,
		"from", objective.ID,
		"to", target,
		"reason", reason)
	return true, target
}

// resolveTarget picks the next objective id: the evaluator's target when it
// names a known objective, else the tree's preferred edge, else the linear
// fallback policy's successor. A malformed target (unknown objective) is
// treated as definition-not-found and falls through.
func (o *Orchestrator) resolveTarget(state *models.ConversationState, currentID string, tree *models.ConversationTree, decision *models.TransitionDecision) (string, string) {
	if decision != nil && decision.TargetObjectiveID != "" {
		if _, ok := o.prompts.Objective(decision.TargetObjectiveID); ok {
			reason := decision.Reason
			if reason == "" {
				reason = "evaluator selected next objective"
			}
			return decision.TargetObjectiveID, reason
		}
		slog.Warn("Orchestrator.resolveTarget: evaluator named unknown objective, falling back",
			"sessionID", state.SessionID, "target", decision.TargetObjectiveID)
	}

	if tree != nil {
		if next, ok := tree.PreferredNext[currentID]; ok && next != "" {
			if _, exists := o.prompts.Objective(next); exists {
				return next, fmt.Sprintf("tree %s preferred next objective", tree.ID)
			}
			slog.Warn("Orchestrator.resolveTarget: tree named unknown objective, falling back",
				"sessionID", state.SessionID, "treeID", tree.ID, "target", next)
		}
	}

	policy := PolicyForTree(tree, o.policy)
	if next, ok := policy.Successor(currentID); ok {
		if _, exists := o.prompts.Objective(next); exists {
			return next, fmt.Sprintf("fallback order %s successor", policy.Name)
		}
	}
	return "", ""
}

// legacyResult builds a degraded turn result from the legacy flow manager.
func (o *Orchestrator) legacyResult(state *models.ConversationState, eval *models.Evaluation) *models.TurnResult {
	o.countDegraded()
	exchangeCount := state.ExchangeCount
	return &models.TurnResult{
		SystemPrompt:     o.legacy.GetPhaseSystemPrompt(exchangeCount),
		DynamicVariables: o.legacy.GetDynamicVariablesForAgent(exchangeCount),
		Evaluation:       eval,
		Degraded:         true,
	}
}

// persist saves the state; a failure is logged and counted but the turn's
// response is still returned to the user.
func (o *Orchestrator) persist(ctx context.Context, state *models.ConversationState) {
	if err := o.sessions.SaveConversationState(ctx, state); err != nil {
		slog.Error("Orchestrator.persist: failed to save conversation state",
			"error", err, "sessionID", state.SessionID)
		o.mu.Lock()
		o.stats.PersistFailures++
		o.mu.Unlock()
	}
}

// sessionLock returns the mutex serializing turns for one session.
func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[sessionID] = lock
	}
	return lock
}

func (o *Orchestrator) countTurn() {
	o.mu.Lock()
	o.stats.Turns++
	o.mu.Unlock()
}

func (o *Orchestrator) countTransition() {
	o.mu.Lock()
	o.stats.Transitions++
	o.mu.Unlock()
}

func (o *Orchestrator) countDegraded() {
	o.mu.Lock()
	o.stats.DegradedTurns++
	o.mu.Unlock()
}
