// Package promptcache caches objective and tree lookups and compiles the
// system prompt plus dynamic-variable set for a given objective and
// conversation state.
//
// Prompt compilation is a pure function of (objective id, state snapshot):
// calling it repeatedly with the same inputs yields identical output, so
// callers may regenerate once per turn regardless of whether a transition
// occurred. The lookup memo is keyed by objective/tree id only, never by
// session, so one cache is safely shared across all sessions.
package promptcache

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PathPilotApp/PathPilot/internal/models"
	"github.com/PathPilotApp/PathPilot/internal/objectives"
)

// DefaultTTL bounds how long a memoized definition is served before the
// store is consulted again. Definitions change rarely relative to call
// volume, so this mostly eliminates per-turn store round-trips.
const DefaultTTL = 5 * time.Minute

// Opts holds configurable options for the cache.
type Opts struct {
	TTL time.Duration
}

// Option configures the cache.
type Option func(*Opts)

// WithTTL overrides the memoization TTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

type cachedObjective struct {
	objective *models.ConversationObjective
	found     bool
	fetchedAt time.Time
}

type cachedTree struct {
	tree      *models.ConversationTree
	found     bool
	fetchedAt time.Time
}

// PromptCache memoizes definition lookups and compiles system prompts.
type PromptCache struct {
	store objectives.Store
	ttl   time.Duration

	mu            sync.RWMutex
	objectiveMemo map[string]cachedObjective
	treeMemo      map[string]cachedTree
	stats         Stats
}

// New creates a prompt cache over the given definition store.
func New(store objectives.Store, opts ...Option) *PromptCache {
	cfg := Opts{TTL: DefaultTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PromptCache.New: creating cache", "ttl", cfg.TTL)
	return &PromptCache{
		store:         store,
		ttl:           cfg.TTL,
		objectiveMemo: make(map[string]cachedObjective),
		treeMemo:      make(map[string]cachedTree),
	}
}

// Objective returns the objective definition, memoized with TTL. Negative
// results are memoized too: an unknown id stays unknown for a TTL window.
func (c *PromptCache) Objective(id string) (*models.ConversationObjective, bool) {
	c.mu.RLock()
	entry, ok := c.objectiveMemo[id]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.ttl {
		c.countHit()
		return entry.objective, entry.found
	}

	obj, found := c.store.GetObjective(id)
	c.mu.Lock()
	c.objectiveMemo[id] = cachedObjective{objective: obj, found: found, fetchedAt: time.Now()}
	c.stats.Misses++
	c.mu.Unlock()
	return obj, found
}

// Tree returns the tree definition, memoized with TTL.
func (c *PromptCache) Tree(id string) (*models.ConversationTree, bool) {
	c.mu.RLock()
	entry, ok := c.treeMemo[id]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.ttl {
		c.countHit()
		return entry.tree, entry.found
	}

	tree, found := c.store.GetTree(id)
	c.mu.Lock()
	c.treeMemo[id] = cachedTree{tree: tree, found: found, fetchedAt: time.Now()}
	c.stats.Misses++
	c.mu.Unlock()
	return tree, found
}

// DefaultTree returns the default conversation program. Not memoized: it is
// consulted only on session bootstrap.
func (c *PromptCache) DefaultTree() (*models.ConversationTree, bool) {
	return c.store.GetDefaultTree()
}

// GenerateSystemPrompt compiles the system prompt and dynamic variables for
// the objective and state. Returns nil when the objective id cannot be
// resolved, signaling the caller to fall back.
func (c *PromptCache) GenerateSystemPrompt(objectiveID string, state *models.ConversationState) *models.GeneratedPrompt {
	objective, ok := c.Objective(objectiveID)
	if !ok {
		slog.Warn("PromptCache.GenerateSystemPrompt: unknown objective", "objectiveID", objectiveID)
		return nil
	}

	progress := Progress(state.ExchangeCount, objective.AverageExchanges)
	prompt := c.buildPrompt(objective, state, progress)
	vars := c.buildDynamicVariables(objective, state, progress)

	slog.Debug("PromptCache.GenerateSystemPrompt: prompt compiled",
		"objectiveID", objectiveID,
		"promptLength", len(prompt),
		"progress", progress)
	return &models.GeneratedPrompt{SystemPrompt: prompt, DynamicVariables: vars}
}

// Progress estimates objective progress as exchangeCount/averageExchanges
// clamped to [0,1]. AverageExchanges is a heuristic, never a hard limit.
func Progress(exchangeCount, averageExchanges int) float64 {
	if averageExchanges <= 0 {
		return 0
	}
	p := float64(exchangeCount) / float64(averageExchanges)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// buildPrompt deterministically embeds the objective purpose, the clamped
// progress indicator, and accumulated personalization data.
func (c *PromptCache) buildPrompt(objective *models.ConversationObjective, state *models.ConversationState, progress float64) string {
	var b strings.Builder
	b.WriteString("You are a warm, practical career guidance assistant.\n\n")
	fmt.Fprintf(&b, "CURRENT OBJECTIVE: %s\n", objective.Purpose)
	fmt.Fprintf(&b, "OBJECTIVE PROGRESS: %d%% (exchange %d of a typical %d)\n",
		int(progress*100), state.ExchangeCount, objective.AverageExchanges)

	if summary := state.DataCollected.Summary(); summary != "" {
		b.WriteString("\nWHAT YOU KNOW ABOUT THE USER:\n")
		b.WriteString(summary)
		b.WriteString("\n")
	}
	if state.UserPersona != "" {
		fmt.Fprintf(&b, "\nUSER PERSONA: %s\n", state.UserPersona)
	}

	b.WriteString("\nWork toward the current objective conversationally. Ask one question at a time and build on what the user has already shared.")
	if objective.Category != models.CategoryOnboarding {
		b.WriteString("\nCareer exploration tools are available to you for this objective.")
	}
	return b.String()
}

// buildDynamicVariables derives the scalar variables exposed to the calling
// agent layer, all deterministically computed from state.
func (c *PromptCache) buildDynamicVariables(objective *models.ConversationObjective, state *models.ConversationState, progress float64) map[string]string {
	confidence := state.ConfidenceScores["overall"]
	return map[string]string{
		"current_objective":     objective.ID,
		"objective_category":    string(objective.Category),
		"exchange_count":        fmt.Sprintf("%d", state.ExchangeCount),
		"data_collected":        strings.Join(state.DataCollected.FieldNames(), ","),
		"user_persona":          state.UserPersona,
		"progress_percent":      fmt.Sprintf("%d", int(progress*100)),
		"tree_id":               state.CurrentTreeID,
		"completion_confidence": fmt.Sprintf("%.2f", confidence),
		"career_tools_enabled":  fmt.Sprintf("%t", objective.Category != models.CategoryOnboarding),
	}
}

// Stats returns a snapshot of cache counters.
func (c *PromptCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *PromptCache) countHit() {
	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
}
