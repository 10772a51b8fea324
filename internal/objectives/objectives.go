// Package objectives provides the read-mostly repository of objective and
// tree definitions.
//
// Definitions are effectively immutable at runtime: they are loaded at
// startup (built-ins plus an optional definitions file) and only read by the
// orchestration pipeline afterwards.
package objectives

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/PathPilotApp/PathPilot/internal/models"
)

// Store defines read access to objective and tree definitions. Absence of a
// requested id is a recoverable condition, reported via the bool, not an
// error.
type Store interface {
	GetObjective(id string) (*models.ConversationObjective, bool)
	GetTree(id string) (*models.ConversationTree, bool)
	GetDefaultTree() (*models.ConversationTree, bool)
}

// Registry is an in-memory Store seeded with the built-in career guidance
// program. Safe for concurrent readers.
type Registry struct {
	mu            sync.RWMutex
	objectives    map[string]*models.ConversationObjective
	trees         map[string]*models.ConversationTree
	defaultTreeID string
}

// NewRegistry creates a registry populated with the built-in definitions.
func NewRegistry() *Registry {
	slog.Debug("Registry.NewRegistry: seeding built-in definitions")
	r := &Registry{
		objectives: make(map[string]*models.ConversationObjective),
		trees:      make(map[string]*models.ConversationTree),
	}
	for i := range builtinObjectives {
		obj := builtinObjectives[i]
		r.objectives[obj.ID] = &obj
	}
	tree := builtinDefaultTree
	r.trees[tree.ID] = &tree
	r.defaultTreeID = tree.ID
	return r
}

// GetObjective retrieves an objective definition by id.
func (r *Registry) GetObjective(id string) (*models.ConversationObjective, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objectives[id]
	if !ok {
		slog.Debug("Registry.GetObjective: not found", "objectiveID", id)
		return nil, false
	}
	cp := *obj
	return &cp, true
}

// GetTree retrieves a tree definition by id.
func (r *Registry) GetTree(id string) (*models.ConversationTree, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tree, ok := r.trees[id]
	if !ok {
		slog.Debug("Registry.GetTree: not found", "treeID", id)
		return nil, false
	}
	return copyTree(tree), true
}

// GetDefaultTree retrieves the default conversation program.
func (r *Registry) GetDefaultTree() (*models.ConversationTree, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tree, ok := r.trees[r.defaultTreeID]
	if !ok {
		return nil, false
	}
	return copyTree(tree), true
}

// definitionsFile is the on-disk shape of a definitions override file.
type definitionsFile struct {
	Objectives    []models.ConversationObjective `json:"objectives"`
	Trees         []models.ConversationTree      `json:"trees"`
	DefaultTreeID string                         `json:"default_tree_id,omitempty"`
}

// LoadDefinitions merges a JSON definitions file over the built-ins.
// Objectives and trees with known ids are replaced; new ids are added. The
// merged result is validated before the registry is touched, so a malformed
// file leaves the registry unchanged.
func (r *Registry) LoadDefinitions(path string) error {
	slog.Debug("Registry.LoadDefinitions: loading definitions file", "path", path)

	content, err := os.ReadFile(path)
	if err != nil {
		slog.Error("Registry.LoadDefinitions: failed to read definitions file", "path", path, "error", err)
		return fmt.Errorf("failed to read definitions file: %w", err)
	}

	var defs definitionsFile
	if err := json.Unmarshal(content, &defs); err != nil {
		slog.Error("Registry.LoadDefinitions: failed to parse definitions file", "path", path, "error", err)
		return fmt.Errorf("failed to parse definitions file: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Build the merged view first, validate, then commit.
	mergedObjectives := make(map[string]*models.ConversationObjective, len(r.objectives)+len(defs.Objectives))
	for id, obj := range r.objectives {
		mergedObjectives[id] = obj
	}
	for i := range defs.Objectives {
		obj := defs.Objectives[i]
		if err := obj.Validate(); err != nil {
			return fmt.Errorf("invalid objective %q: %w", obj.ID, err)
		}
		mergedObjectives[obj.ID] = &obj
	}

	mergedTrees := make(map[string]*models.ConversationTree, len(r.trees)+len(defs.Trees))
	for id, tree := range r.trees {
		mergedTrees[id] = tree
	}
	for i := range defs.Trees {
		tree := defs.Trees[i]
		if err := tree.Validate(); err != nil {
			return fmt.Errorf("invalid tree %q: %w", tree.ID, err)
		}
		mergedTrees[tree.ID] = &tree
	}

	defaultTreeID := r.defaultTreeID
	if defs.DefaultTreeID != "" {
		defaultTreeID = defs.DefaultTreeID
	}

	if err := validateGraph(mergedObjectives, mergedTrees, defaultTreeID); err != nil {
		return err
	}

	r.objectives = mergedObjectives
	r.trees = mergedTrees
	r.defaultTreeID = defaultTreeID
	slog.Info("Registry.LoadDefinitions: definitions loaded",
		"path", path,
		"objectives", len(r.objectives),
		"trees", len(r.trees),
		"defaultTreeID", r.defaultTreeID)
	return nil
}

// validateGraph checks referential integrity: every tree root and preferred
// edge must resolve to a known objective, and the default tree must exist.
func validateGraph(objs map[string]*models.ConversationObjective, trees map[string]*models.ConversationTree, defaultTreeID string) error {
	if _, ok := trees[defaultTreeID]; !ok {
		return fmt.Errorf("default tree %q does not exist", defaultTreeID)
	}
	for id, tree := range trees {
		if _, ok := objs[tree.RootObjectiveID]; !ok {
			return fmt.Errorf("tree %q root objective %q does not exist", id, tree.RootObjectiveID)
		}
		for from, to := range tree.PreferredNext {
			if _, ok := objs[from]; !ok {
				return fmt.Errorf("tree %q edge source %q does not exist", id, from)
			}
			if _, ok := objs[to]; !ok {
				return fmt.Errorf("tree %q edge target %q does not exist", id, to)
			}
		}
		for _, objID := range tree.FallbackOrder {
			if _, ok := objs[objID]; !ok {
				return fmt.Errorf("tree %q fallback entry %q does not exist", id, objID)
			}
		}
	}
	return nil
}

func copyTree(t *models.ConversationTree) *models.ConversationTree {
	cp := *t
	if t.PreferredNext != nil {
		cp.PreferredNext = make(map[string]string, len(t.PreferredNext))
		for k, v := range t.PreferredNext {
			cp.PreferredNext[k] = v
		}
	}
	cp.FallbackOrder = append([]string(nil), t.FallbackOrder...)
	return &cp
}
