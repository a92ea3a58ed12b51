package functional

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kitchenops/mealgroom/internal/executor"
	"github.com/kitchenops/mealgroom/internal/log"
	"github.com/kitchenops/mealgroom/internal/mealie"
	"github.com/kitchenops/mealgroom/internal/orchestrator"
	"github.com/kitchenops/mealgroom/internal/pattern"
	"github.com/kitchenops/mealgroom/internal/session"
	"github.com/kitchenops/mealgroom/internal/testutil"
)

// scriptedOperator plays the interactive shell: decisions and retry answers
// come from the world's script, everything shown is recorded for assertions.
type scriptedOperator struct {
	w *world
}

func (s *scriptedOperator) ConfirmResume(*session.State) (bool, error) {
	return s.w.resume, nil
}

func (s *scriptedOperator) ConfirmStartFresh(string) (bool, error) {
	return s.w.startFresh, nil
}

func (s *scriptedOperator) Notify(msg string) {
	s.w.notices = append(s.w.notices, msg)
}

func (s *scriptedOperator) NextAction(views []orchestrator.PatternView) (orchestrator.Action, error) {
	s.w.lastViews = views
	if len(s.w.decisions) == 0 {
		return orchestrator.Action{Kind: orchestrator.ActionQuit}, nil
	}
	d := s.w.decisions[0]
	s.w.decisions = s.w.decisions[1:]

	view, err := findView(views, decisionKind(d.kind), d.match)
	if err != nil {
		return orchestrator.Action{}, err
	}

	op := executor.Operation{
		Kind:      d.kind,
		PatternID: view.Group.ID,
		Affected:  view.Group.Ingredients,
	}
	switch d.kind {
	case executor.OpCreateUnit, executor.OpCreateFood:
		op.Name = d.name
	case executor.OpAddFoodAlias:
		op.Alias = d.alias
		id, ok := s.w.foodIDByName(d.targetName)
		if !ok {
			return orchestrator.Action{}, fmt.Errorf("no food named %q on the server", d.targetName)
		}
		op.TargetID = id
	case executor.OpAddUnitAlias:
		op.Alias = d.alias
		id, ok := s.w.unitIDByName(d.targetName)
		if !ok {
			return orchestrator.Action{}, fmt.Errorf("no unit named %q on the server", d.targetName)
		}
		op.TargetID = id
	}
	return orchestrator.Action{
		Kind:      orchestrator.ActionExecute,
		PatternID: view.Group.ID,
		Op:        op,
	}, nil
}

func (s *scriptedOperator) ShowResult(res *executor.Result) (bool, error) {
	s.w.results = append(s.w.results, res)
	if len(s.w.retries) == 0 {
		return false, nil
	}
	r := s.w.retries[0]
	s.w.retries = s.w.retries[1:]
	return r, nil
}

func decisionKind(kind executor.OpKind) pattern.Kind {
	if kind == executor.OpCreateUnit || kind == executor.OpAddUnitAlias {
		return pattern.KindUnit
	}
	return pattern.KindFood
}

func findView(views []orchestrator.PatternView, kind pattern.Kind, text string) (*orchestrator.PatternView, error) {
	canonical := pattern.Canonicalize(text)
	for i := range views {
		if views[i].Group.Kind == kind && views[i].Group.CanonicalText == canonical {
			return &views[i], nil
		}
	}
	return nil, fmt.Errorf("no %s pattern matching %q on screen", kind, text)
}

func groupID(kind, text string) string {
	return pattern.GroupID(pattern.Kind(kind), pattern.Canonicalize(text))
}

func (w *world) unitIDByName(name string) (string, bool) {
	for _, u := range w.server.Units() {
		if strings.EqualFold(u.Name, name) {
			return u.ID, true
		}
	}
	return "", false
}

func (w *world) foodIDByName(name string) (string, bool) {
	for _, f := range w.server.Foods() {
		if strings.EqualFold(f.Name, name) {
			return f.ID, true
		}
	}
	return "", false
}

// Server setup steps

func theCatalogHasUnit(ctx context.Context, name string) error {
	getWorld(ctx).server.AddUnit(mealie.Unit{Name: name})
	return nil
}

func theCatalogHasFoodWithAlias(ctx context.Context, name, alias string) error {
	getWorld(ctx).server.AddFood(mealie.Food{Name: name, Aliases: []mealie.Alias{{Name: alias}}})
	return nil
}

func recipeHasUnitTaggedIngredient(ctx context.Context, slug, ingID, note, unitText string) error {
	getWorld(ctx).server.AddIngredient(slug, mealie.Ingredient{
		ID:   ingID,
		Note: note,
		Unit: &mealie.Unit{Name: unitText},
	})
	return nil
}

func recipeHasFoodTaggedIngredient(ctx context.Context, slug, ingID, note, foodText string) error {
	getWorld(ctx).server.AddIngredient(slug, mealie.Ingredient{
		ID:   ingID,
		Note: note,
		Food: &mealie.Food{Name: foodText},
	})
	return nil
}

func updatingIngredientFailsOnce(ctx context.Context, ingID string, status int) error {
	getWorld(ctx).server.FailNextUpdates(ingID, 1, status)
	return nil
}

// Session file steps

func savedSessionMarksCompleted(ctx context.Context, kind, text string) error {
	w := getWorld(ctx)
	state := session.NewState()
	state.MarkCompleted(groupID(kind, text))
	return w.store.Save(state)
}

func sessionFileContainsGarbage(ctx context.Context) error {
	w := getWorld(ctx)
	return os.WriteFile(w.store.Path(), []byte("{this is not a session"), 0644)
}

// Operator script steps

func operatorCreatesUnit(ctx context.Context, name, match string) error {
	w := getWorld(ctx)
	w.decisions = append(w.decisions, decision{kind: executor.OpCreateUnit, match: match, name: name})
	return nil
}

func operatorCreatesFood(ctx context.Context, name, match string) error {
	w := getWorld(ctx)
	w.decisions = append(w.decisions, decision{kind: executor.OpCreateFood, match: match, name: name})
	return nil
}

func operatorAddsFoodAlias(ctx context.Context, alias, target, match string) error {
	w := getWorld(ctx)
	w.decisions = append(w.decisions, decision{
		kind: executor.OpAddFoodAlias, match: match, alias: alias, targetName: target,
	})
	return nil
}

func operatorRetries(ctx context.Context) error {
	w := getWorld(ctx)
	w.retries = append(w.retries, true)
	return nil
}

func operatorDeclinesResume(ctx context.Context) error {
	getWorld(ctx).resume = false
	return nil
}

func operatorAcceptsFreshStart(ctx context.Context) error {
	getWorld(ctx).startFresh = true
	return nil
}

// Execution

func theGroomingSessionRuns(ctx context.Context) error {
	w := getWorld(ctx)
	client := mealie.New(mealie.Options{
		BaseURL:     w.server.URL(),
		Token:       testutil.Token,
		Timeout:     5 * time.Second,
		MaxRetries:  2,
		BackoffBase: 2 * time.Millisecond,
		BackoffCap:  10 * time.Millisecond,
		Logger:      log.NewNoop(),
	})
	orch := orchestrator.New(orchestrator.Options{
		Client:              client,
		Store:               w.store,
		UI:                  &scriptedOperator{w: w},
		BatchWidth:          4,
		SimilarityThreshold: 0.85,
		Parser:              "nlp",
		Logger:              log.NewNoop(),
	})
	w.runErr = orch.Run(context.Background())
	return nil
}

// Assertion steps

func theRunSucceeds(ctx context.Context) error {
	if err := getWorld(ctx).runErr; err != nil {
		return fmt.Errorf("session run failed: %w", err)
	}
	return nil
}

func theCatalogGainsUnit(ctx context.Context, name string) error {
	if _, ok := getWorld(ctx).unitIDByName(name); !ok {
		return fmt.Errorf("server catalog has no unit named %q", name)
	}
	return nil
}

func theCatalogGainsFood(ctx context.Context, name string) error {
	if _, ok := getWorld(ctx).foodIDByName(name); !ok {
		return fmt.Errorf("server catalog has no food named %q", name)
	}
	return nil
}

func unitCreateRequestCount(ctx context.Context, want int) error {
	got := getWorld(ctx).server.CreateUnitCalls
	if got != want {
		return fmt.Errorf("server saw %d unit create requests, want %d", got, want)
	}
	return nil
}

func ingredientReferencesUnit(ctx context.Context, ingID, unitName string) error {
	w := getWorld(ctx)
	unitID, ok := w.unitIDByName(unitName)
	if !ok {
		return fmt.Errorf("server catalog has no unit named %q", unitName)
	}
	ing, ok := w.server.Ingredient(ingID)
	if !ok {
		return fmt.Errorf("no ingredient %q on the server", ingID)
	}
	if ing.Unit == nil || ing.Unit.ID != unitID {
		return fmt.Errorf("ingredient %q does not reference unit %q", ingID, unitName)
	}
	return nil
}

func ingredientReferencesFood(ctx context.Context, ingID, foodName string) error {
	w := getWorld(ctx)
	foodID, ok := w.foodIDByName(foodName)
	if !ok {
		return fmt.Errorf("server catalog has no food named %q", foodName)
	}
	ing, ok := w.server.Ingredient(ingID)
	if !ok {
		return fmt.Errorf("no ingredient %q on the server", ingID)
	}
	if ing.Food == nil || ing.Food.ID != foodID {
		return fmt.Errorf("ingredient %q does not reference food %q", ingID, foodName)
	}
	return nil
}

func ingredientNeverUpdated(ctx context.Context, ingID string) error {
	if n := getWorld(ctx).server.UpdateCalls[ingID]; n != 0 {
		return fmt.Errorf("ingredient %q was updated %d times", ingID, n)
	}
	return nil
}

func theBatchFinished(ctx context.Context, status string) error {
	w := getWorld(ctx)
	if len(w.results) == 0 {
		return fmt.Errorf("no batch ran")
	}
	if got := string(w.results[0].Status); got != status {
		return fmt.Errorf("first batch finished %q (%s), want %q",
			got, w.results[0].AbortReason, status)
	}
	return nil
}

func theFinalBatchFinished(ctx context.Context, status string) error {
	w := getWorld(ctx)
	if len(w.results) == 0 {
		return fmt.Errorf("no batch ran")
	}
	last := w.results[len(w.results)-1]
	if got := string(last.Status); got != status {
		return fmt.Errorf("final batch finished %q (%s), want %q",
			got, last.AbortReason, status)
	}
	return nil
}

func sessionMarksCompleted(ctx context.Context, kind, text string) error {
	w := getWorld(ctx)
	state, err := w.store.Load()
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !state.IsCompleted(groupID(kind, text)) {
		return fmt.Errorf("session does not mark the %s pattern %q completed", kind, text)
	}
	return nil
}

func sessionMarksNothingCompleted(ctx context.Context) error {
	w := getWorld(ctx)
	state, err := w.store.Load()
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if n := len(state.CompletedPatternIDs); n != 0 {
		return fmt.Errorf("session marks %d patterns completed, want none", n)
	}
	return nil
}

func patternShownAs(ctx context.Context, kind, text, status string) error {
	w := getWorld(ctx)
	view, err := findView(w.lastViews, pattern.Kind(kind), text)
	if err != nil {
		return err
	}
	if got := string(view.Status); got != status {
		return fmt.Errorf("the %s pattern %q is shown as %q, want %q", kind, text, got, status)
	}
	return nil
}

func foodCarriesAliasOnce(ctx context.Context, foodName, alias string) error {
	w := getWorld(ctx)
	for _, f := range w.server.Foods() {
		if !strings.EqualFold(f.Name, foodName) {
			continue
		}
		count := 0
		for _, a := range f.Aliases {
			if strings.EqualFold(a.Name, alias) {
				count++
			}
		}
		if count != 1 {
			return fmt.Errorf("food %q carries alias %q %d times, want exactly once",
				foodName, alias, count)
		}
		return nil
	}
	return fmt.Errorf("server catalog has no food named %q", foodName)
}
