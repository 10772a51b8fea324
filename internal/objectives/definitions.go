// Package objectives ships the built-in career guidance program.
package objectives

import "github.com/PathPilotApp/PathPilot/internal/models"

// Canonical objective ids for the built-in career guidance program. The
// order of ObjectiveSequence is also the default linear fallback order used
// when the tree and evaluator cannot name a transition target.
const (
	ObjectiveEstablishRapport  = "establish_rapport_collect_name"
	ObjectiveDiscoverSituation = "discover_current_situation"
	ObjectiveIdentifyConcerns  = "identify_concerns_goals"
	ObjectiveExploreInterests  = "explore_interests_strengths"
	ObjectivePathwayGuidance   = "provide_pathway_guidance"
	ObjectiveGenerateArtifacts = "generate_career_artifacts"
	ObjectiveFollowUpNextSteps = "follow_up_next_steps"
	DefaultTreeID              = "career_guidance_default"
)

// ObjectiveSequence is the canonical objective ordering of the built-in
// program.
var ObjectiveSequence = []string{
	ObjectiveEstablishRapport,
	ObjectiveDiscoverSituation,
	ObjectiveIdentifyConcerns,
	ObjectiveExploreInterests,
	ObjectivePathwayGuidance,
	ObjectiveGenerateArtifacts,
	ObjectiveFollowUpNextSteps,
}

var builtinObjectives = []models.ConversationObjective{
	{
		ID:               ObjectiveEstablishRapport,
		Purpose:          "Build rapport with the user, learn their name, and make them comfortable talking about their career.",
		Category:         models.CategoryOnboarding,
		AverageExchanges: 2,
	},
	{
		ID:               ObjectiveDiscoverSituation,
		Purpose:          "Understand the user's current situation: studying, working, between roles, and what their day-to-day looks like.",
		Category:         models.CategoryOnboarding,
		AverageExchanges: 3,
	},
	{
		ID:               ObjectiveIdentifyConcerns,
		Purpose:          "Surface the user's concerns, worries, and goals about their career direction.",
		Category:         models.CategoryExploration,
		AverageExchanges: 3,
	},
	{
		ID:               ObjectiveExploreInterests,
		Purpose:          "Explore what the user enjoys, what they are good at, and which activities energize them.",
		Category:         models.CategoryExploration,
		AverageExchanges: 4,
	},
	{
		ID:               ObjectivePathwayGuidance,
		Purpose:          "Offer concrete career pathway guidance grounded in the interests, skills, and goals collected so far.",
		Category:         models.CategoryAnalysis,
		AverageExchanges: 4,
	},
	{
		ID:               ObjectiveGenerateArtifacts,
		Purpose:          "Generate career cards and other artifacts summarizing the recommended pathways.",
		Category:         models.CategoryAnalysis,
		AverageExchanges: 2,
	},
	{
		ID:               ObjectiveFollowUpNextSteps,
		Purpose:          "Agree on concrete next steps and how the user will follow up on the guidance.",
		Category:         models.CategoryAnalysis,
		AverageExchanges: 2,
	},
}

var builtinDefaultTree = models.ConversationTree{
	ID:              DefaultTreeID,
	RootObjectiveID: ObjectiveEstablishRapport,
	PreferredNext: map[string]string{
		ObjectiveEstablishRapport:  ObjectiveDiscoverSituation,
		ObjectiveDiscoverSituation: ObjectiveIdentifyConcerns,
		ObjectiveIdentifyConcerns:  ObjectiveExploreInterests,
		ObjectiveExploreInterests:  ObjectivePathwayGuidance,
		ObjectivePathwayGuidance:   ObjectiveGenerateArtifacts,
		ObjectiveGenerateArtifacts: ObjectiveFollowUpNextSteps,
	},
}
