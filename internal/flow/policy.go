// Package flow provides the transition policy used when the tree and the
// evaluator cannot name a transition target.
package flow

import (
	"github.com/PathPilotApp/PathPilot/internal/models"
	"github.com/PathPilotApp/PathPilot/internal/objectives"
)

// TransitionPolicy is a named, fixed linear ordering of objective ids. When
// a transition is warranted but no target can be resolved from the tree or
// the evaluator, the successor of the current objective in this order is
// used. Versioned independently of tree data so graph-guided and
// fallback-linear paths can be exercised separately.
type TransitionPolicy struct {
	Name  string
	Order []string
}

// DefaultTransitionPolicy is the canonical career guidance ordering.
var DefaultTransitionPolicy = TransitionPolicy{
	Name:  "career-linear-v1",
	Order: objectives.ObjectiveSequence,
}

// Successor returns the objective following the given id in the policy
// order. Returns false when the id is last or not present in the order.
func (p TransitionPolicy) Successor(objectiveID string) (string, bool) {
	for i, id := range p.Order {
		if id == objectiveID {
			if i+1 < len(p.Order) {
				return p.Order[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// PolicyForTree returns the tree's own fallback order when it carries one,
// otherwise the given default policy.
func PolicyForTree(tree *models.ConversationTree, fallback TransitionPolicy) TransitionPolicy {
	if tree != nil && len(tree.FallbackOrder) > 0 {
		return TransitionPolicy{Name: "tree:" + tree.ID, Order: tree.FallbackOrder}
	}
	return fallback
}
