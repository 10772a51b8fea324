// Package flow provides the legacy phase-based controller retained as the
// safety net for the objective-driven pipeline.
package flow

import (
	"fmt"
	"log/slog"
)

// Phase is a legacy flow phase.
type Phase string

const (
	// PhaseOnboarding covers the first exchanges of a conversation.
	PhaseOnboarding Phase = "onboarding"
	// PhaseCareerConversation is the steady-state phase.
	PhaseCareerConversation Phase = "career_conversation"
)

// DefaultOnboardingExchanges is how many user turns the onboarding phase lasts.
const DefaultOnboardingExchanges = 4

const onboardingSystemPrompt = `You are a warm, practical career guidance assistant meeting someone new.

Get to know the user: their name, what they are currently doing, and what brought them here. Keep the conversation light and welcoming, and ask one question at a time.`

const careerConversationSystemPrompt = `You are a warm, practical career guidance assistant.

Help the user explore their interests, strengths, and goals, and offer concrete career guidance grounded in what they share. Ask one question at a time and build on earlier answers.`

// LegacyFlowManager is a minimal linear-progress controller: a pure function
// of accumulated user turn count. No transition graph, no evaluation engine.
type LegacyFlowManager struct {
	onboardingExchanges int
}

// NewLegacyFlowManager creates a legacy manager with the default phase length.
func NewLegacyFlowManager() *LegacyFlowManager {
	return &LegacyFlowManager{onboardingExchanges: DefaultOnboardingExchanges}
}

// NewLegacyFlowManagerWithOnboarding creates a legacy manager with a custom
// onboarding length. Non-positive values fall back to the default.
func NewLegacyFlowManagerWithOnboarding(exchanges int) *LegacyFlowManager {
	if exchanges <= 0 {
		exchanges = DefaultOnboardingExchanges
	}
	return &LegacyFlowManager{onboardingExchanges: exchanges}
}

// GetCurrentPhase returns the phase for the given user turn count.
func (m *LegacyFlowManager) GetCurrentPhase(exchangeCount int) Phase {
	if exchangeCount <= m.onboardingExchanges {
		return PhaseOnboarding
	}
	return PhaseCareerConversation
}

// GetPhaseSystemPrompt returns the static prompt for the current phase.
func (m *LegacyFlowManager) GetPhaseSystemPrompt(exchangeCount int) string {
	phase := m.GetCurrentPhase(exchangeCount)
	slog.Debug("LegacyFlowManager.GetPhaseSystemPrompt", "phase", phase, "exchangeCount", exchangeCount)
	if phase == PhaseOnboarding {
		return onboardingSystemPrompt
	}
	return careerConversationSystemPrompt
}

// GetDynamicVariablesForAgent returns the variables the agent layer expects,
// derived purely from the turn count.
func (m *LegacyFlowManager) GetDynamicVariablesForAgent(exchangeCount int) map[string]string {
	phase := m.GetCurrentPhase(exchangeCount)
	return map[string]string{
		"current_phase":        string(phase),
		"exchange_count":       fmt.Sprintf("%d", exchangeCount),
		"career_tools_enabled": fmt.Sprintf("%t", m.ShouldEnableCareerTools(exchangeCount)),
	}
}

// ShouldEnableCareerTools reports whether career tools are active: only once
// onboarding has finished.
func (m *LegacyFlowManager) ShouldEnableCareerTools(exchangeCount int) bool {
	return m.GetCurrentPhase(exchangeCount) == PhaseCareerConversation
}
