// Package session persists operator progress to a single JSON file so an
// interrupted run can resume without redoing work or losing created
// entities.
package session

import (
	"time"
)

// SchemaVersion tags the on-disk layout. A file with a different version
// loads as ErrIncompatibleSchema.
const SchemaVersion = "1.0"

// maxRecentOperations bounds the audit trail kept in the file.
const maxRecentOperations = 50

// Stats aggregates what the session accomplished.
type Stats struct {
	UnitsCreated       int `json:"units_created"`
	FoodsCreated       int `json:"foods_created"`
	AliasesAdded       int `json:"aliases_added"`
	IngredientsUpdated int `json:"ingredients_updated"`
	PatternsCompleted  int `json:"patterns_completed"`
	PatternsSkipped    int `json:"patterns_skipped"`
}

// AliasAddition records one alias attached to a unit or food during the
// session.
type AliasAddition struct {
	Kind     string `json:"kind"` // "unit" or "food"
	TargetID string `json:"target_id"`
	Alias    string `json:"alias"`
}

// OperationRecord is one line of the recent-operations audit trail.
type OperationRecord struct {
	Timestamp time.Time `json:"ts"`
	Op        string    `json:"op"`
	PatternID string    `json:"pattern_id"`
	Count     int       `json:"count"`
	Status    string    `json:"status"`
}

// State is the durable session record. It is mutated only by the
// orchestrator between batches; the executor never touches it.
type State struct {
	SchemaVersion       string            `json:"schema_version"`
	Timestamp           time.Time         `json:"timestamp"`
	CompletedPatternIDs []string          `json:"completed_pattern_ids"`
	SkippedPatternIDs   []string          `json:"skipped_pattern_ids"`
	ProcessedRecipeIDs  []string          `json:"processed_recipe_ids"`
	CreatedUnitIDs      []string          `json:"created_unit_ids"`
	CreatedFoodIDs      []string          `json:"created_food_ids"`
	AliasAdditions      []AliasAddition   `json:"alias_additions"`
	Stats               Stats             `json:"stats"`
	RecentOperations    []OperationRecord `json:"recent_operations"`
}

// NewState returns an empty session stamped with the current schema.
func NewState() *State {
	return &State{
		SchemaVersion: SchemaVersion,
		Timestamp:     time.Now().UTC(),
	}
}

// IsCompleted reports whether the pattern finished in this session.
func (s *State) IsCompleted(patternID string) bool {
	return contains(s.CompletedPatternIDs, patternID)
}

// IsSkipped reports whether the pattern is currently skipped.
func (s *State) IsSkipped(patternID string) bool {
	return contains(s.SkippedPatternIDs, patternID)
}

// MarkCompleted moves a pattern into the completed set, removing it from
// skipped if present so the sets stay disjoint.
func (s *State) MarkCompleted(patternID string) {
	s.SkippedPatternIDs = remove(s.SkippedPatternIDs, patternID)
	if !contains(s.CompletedPatternIDs, patternID) {
		s.CompletedPatternIDs = append(s.CompletedPatternIDs, patternID)
		s.Stats.PatternsCompleted++
	}
	s.touch()
}

// MarkSkipped moves a pattern into the skipped set. Completed patterns
// cannot be skipped.
func (s *State) MarkSkipped(patternID string) {
	if contains(s.CompletedPatternIDs, patternID) {
		return
	}
	if !contains(s.SkippedPatternIDs, patternID) {
		s.SkippedPatternIDs = append(s.SkippedPatternIDs, patternID)
		s.Stats.PatternsSkipped++
	}
	s.touch()
}

// Unskip returns a skipped pattern to pending.
func (s *State) Unskip(patternID string) {
	if contains(s.SkippedPatternIDs, patternID) {
		s.SkippedPatternIDs = remove(s.SkippedPatternIDs, patternID)
		if s.Stats.PatternsSkipped > 0 {
			s.Stats.PatternsSkipped--
		}
	}
	s.touch()
}

// RecordUnitCreated notes a unit created by a batch.
func (s *State) RecordUnitCreated(unitID string) {
	if !contains(s.CreatedUnitIDs, unitID) {
		s.CreatedUnitIDs = append(s.CreatedUnitIDs, unitID)
		s.Stats.UnitsCreated++
	}
	s.touch()
}

// RecordFoodCreated notes a food created by a batch.
func (s *State) RecordFoodCreated(foodID string) {
	if !contains(s.CreatedFoodIDs, foodID) {
		s.CreatedFoodIDs = append(s.CreatedFoodIDs, foodID)
		s.Stats.FoodsCreated++
	}
	s.touch()
}

// RecordAliasAdded notes an alias attached to a catalog entity; kind is
// "unit" or "food".
func (s *State) RecordAliasAdded(kind, targetID, alias string) {
	for _, a := range s.AliasAdditions {
		if a.Kind == kind && a.TargetID == targetID && a.Alias == alias {
			return
		}
	}
	s.AliasAdditions = append(s.AliasAdditions, AliasAddition{Kind: kind, TargetID: targetID, Alias: alias})
	s.Stats.AliasesAdded++
	s.touch()
}

// RecordRecipeProcessed notes a recipe that had at least one ingredient
// rewritten this session.
func (s *State) RecordRecipeProcessed(recipeID string) {
	if !contains(s.ProcessedRecipeIDs, recipeID) {
		s.ProcessedRecipeIDs = append(s.ProcessedRecipeIDs, recipeID)
	}
	s.touch()
}

// RecordOperation appends to the audit trail, dropping the oldest entries
// past the cap.
func (s *State) RecordOperation(op, patternID string, count int, status string) {
	s.RecentOperations = append(s.RecentOperations, OperationRecord{
		Timestamp: time.Now().UTC(),
		Op:        op,
		PatternID: patternID,
		Count:     count,
		Status:    status,
	})
	if n := len(s.RecentOperations); n > maxRecentOperations {
		s.RecentOperations = s.RecentOperations[n-maxRecentOperations:]
	}
	s.touch()
}

// Reconcile drops pattern ids that no longer exist in the current analysis.
// Patterns resolved outside the tool simply vanish from the new snapshot.
func (s *State) Reconcile(currentIDs map[string]bool) {
	s.CompletedPatternIDs = keep(s.CompletedPatternIDs, currentIDs)
	s.SkippedPatternIDs = keep(s.SkippedPatternIDs, currentIDs)
	s.touch()
}

// Validate checks structural invariants: distinct set members and
// completed/skipped disjointness.
func (s *State) Validate() error {
	if s.SchemaVersion == "" {
		return errInvalid("missing schema_version")
	}
	if err := distinct(s.CompletedPatternIDs, "completed_pattern_ids"); err != nil {
		return err
	}
	if err := distinct(s.SkippedPatternIDs, "skipped_pattern_ids"); err != nil {
		return err
	}
	skipped := make(map[string]bool, len(s.SkippedPatternIDs))
	for _, id := range s.SkippedPatternIDs {
		skipped[id] = true
	}
	for _, id := range s.CompletedPatternIDs {
		if skipped[id] {
			return errInvalid("pattern " + id + " is both completed and skipped")
		}
	}
	return nil
}

func (s *State) touch() {
	s.Timestamp = time.Now().UTC()
}

type errInvalid string

func (e errInvalid) Error() string { return "invalid session state: " + string(e) }

func distinct(ids []string, field string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return errInvalid("empty id in " + field)
		}
		if seen[id] {
			return errInvalid("duplicate id " + id + " in " + field)
		}
		seen[id] = true
	}
	return nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func remove(xs []string, s string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}

func keep(xs []string, valid map[string]bool) []string {
	out := xs[:0]
	for _, x := range xs {
		if valid[x] {
			out = append(out, x)
		}
	}
	return out
}
