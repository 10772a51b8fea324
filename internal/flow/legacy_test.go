package flow

import "testing"

func TestGetCurrentPhase(t *testing.T) {
	m := NewLegacyFlowManager()

	cases := []struct {
		exchangeCount int
		want          Phase
	}{
		{0, PhaseOnboarding},
		{1, PhaseOnboarding},
		{4, PhaseOnboarding},
		{5, PhaseCareerConversation},
		{50, PhaseCareerConversation},
	}
	for _, tc := range cases {
		if got := m.GetCurrentPhase(tc.exchangeCount); got != tc.want {
			t.Errorf("GetCurrentPhase(%d): expected %s, got %s", tc.exchangeCount, tc.want, got)
		}
	}
}

func TestCustomOnboardingLength(t *testing.T) {
	m := NewLegacyFlowManagerWithOnboarding(2)
	if got := m.GetCurrentPhase(2); got != PhaseOnboarding {
		t.Errorf("expected onboarding at exchange 2, got %s", got)
	}
	if got := m.GetCurrentPhase(3); got != PhaseCareerConversation {
		t.Errorf("expected career conversation at exchange 3, got %s", got)
	}

	// Non-positive lengths fall back to the default.
	m = NewLegacyFlowManagerWithOnboarding(0)
	if got := m.GetCurrentPhase(4); got != PhaseOnboarding {
		t.Errorf("expected default onboarding length, got %s at exchange 4", got)
	}
}

func TestGetPhaseSystemPrompt(t *testing.T) {
	m := NewLegacyFlowManager()
	onboarding := m.GetPhaseSystemPrompt(1)
	steady := m.GetPhaseSystemPrompt(10)
	if onboarding == "" || steady == "" {
		t.Fatal("expected non-empty prompts for both phases")
	}
	if onboarding == steady {
		t.Error("expected distinct prompts per phase")
	}
}

func TestGetDynamicVariablesForAgent(t *testing.T) {
	m := NewLegacyFlowManager()

	vars := m.GetDynamicVariablesForAgent(2)
	if vars["current_phase"] != string(PhaseOnboarding) {
		t.Errorf("unexpected phase: %s", vars["current_phase"])
	}
	if vars["exchange_count"] != "2" {
		t.Errorf("unexpected exchange count: %s", vars["exchange_count"])
	}
	if vars["career_tools_enabled"] != "false" {
		t.Errorf("expected tools disabled during onboarding, got %s", vars["career_tools_enabled"])
	}

	vars = m.GetDynamicVariablesForAgent(7)
	if vars["current_phase"] != string(PhaseCareerConversation) {
		t.Errorf("unexpected phase: %s", vars["current_phase"])
	}
	if vars["career_tools_enabled"] != "true" {
		t.Errorf("expected tools enabled after onboarding, got %s", vars["career_tools_enabled"])
	}
}

func TestShouldEnableCareerTools(t *testing.T) {
	m := NewLegacyFlowManager()
	if m.ShouldEnableCareerTools(4) {
		t.Error("expected tools disabled at the onboarding boundary")
	}
	if !m.ShouldEnableCareerTools(5) {
		t.Error("expected tools enabled after onboarding")
	}
}
