package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kitchenops/mealgroom/internal/catalog"
	"github.com/kitchenops/mealgroom/internal/log"
	"github.com/kitchenops/mealgroom/internal/mealie"
	"github.com/kitchenops/mealgroom/internal/pattern"
)

// Remote is the slice of the recipe-service client the executor needs.
type Remote interface {
	CreateUnit(ctx context.Context, name, abbreviation, description string) (*mealie.Unit, error)
	CreateFood(ctx context.Context, name, description string) (*mealie.Food, error)
	AddFoodAlias(ctx context.Context, foodID, alias string) (*mealie.Food, error)
	AddUnitAlias(ctx context.Context, unitID, alias string) (*mealie.Unit, error)
	UpdateIngredient(ctx context.Context, ingredientID string, patch mealie.IngredientPatch) error
	ListUnits(ctx context.Context, progress func(cur, total int)) ([]mealie.Unit, error)
	ListFoods(ctx context.Context, progress func(cur, total int)) ([]mealie.Food, error)
}

// Executor runs batch operations. It reads and mutates the shared catalog
// cache but never touches session state; the orchestrator folds results in.
type Executor struct {
	remote  Remote
	catalog *catalog.Catalog
	width   int
	logger  log.Logger

	// OnProgress, when set, receives one event per completed ingredient
	// update. Called from worker goroutines.
	OnProgress func(ProgressEvent)
}

// New creates an Executor with fan-out width w (clamped to [1, 10]).
func New(remote Remote, cat *catalog.Catalog, width int, logger log.Logger) *Executor {
	if width < 1 {
		width = 1
	}
	if width > 10 {
		width = 10
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{remote: remote, catalog: cat, width: width, logger: logger}
}

// Execute runs one operation end to end: preflight, catalog mutation,
// fan-out, cache refresh, classification. It always returns a Result; an
// aborted Result carries the cause in AbortReason and AbortErr.
func (e *Executor) Execute(ctx context.Context, op Operation) *Result {
	start := time.Now()
	res := &Result{Op: op}

	if err := preflight(op, e.catalog); err != nil {
		e.logger.Info("preflight rejected operation",
			"op", string(op.Kind), "pattern", op.PatternID, "reason", err.Error())
		res.Status = StatusAborted
		res.AbortReason = err.Error()
		res.AbortErr = err
		res.Duration = time.Since(start)
		return res
	}

	entityID, createdNew, err := e.mutateCatalog(ctx, op)
	if err != nil {
		e.logger.Error("catalog mutation failed",
			"op", string(op.Kind), "pattern", op.PatternID, "error", err)
		res.Status = StatusAborted
		res.AbortReason = err.Error()
		res.AbortErr = err
		res.Duration = time.Since(start)
		return res
	}
	res.CreatedEntityID = entityID
	res.CreatedNew = createdNew

	e.fanOut(ctx, op, entityID, res)
	e.refreshCatalog(ctx, op.Kind)

	res.Duration = time.Since(start)
	res.Status = classify(res)
	e.logger.Info("batch finished",
		"op", string(op.Kind), "pattern", op.PatternID,
		"succeeded", len(res.Succeeded), "failed", len(res.Failed),
		"status", string(res.Status), "elapsed", res.Duration.Round(time.Millisecond))
	return res
}

// RetryFailed re-runs only the failed subset of a previous partial result
// against the already-created entity. No preflight, no catalog mutation.
func (e *Executor) RetryFailed(ctx context.Context, prev *Result) *Result {
	start := time.Now()
	op := prev.Op
	op.Affected = make([]pattern.Ref, 0, len(prev.Failed))
	for _, f := range prev.Failed {
		op.Affected = append(op.Affected, f.Ref)
	}

	res := &Result{
		Op:              op,
		CreatedEntityID: prev.CreatedEntityID,
		CreatedNew:      false,
	}
	e.fanOut(ctx, op, prev.CreatedEntityID, res)
	res.Duration = time.Since(start)
	res.Status = classify(res)
	e.logger.Info("retry finished",
		"pattern", op.PatternID, "succeeded", len(res.Succeeded),
		"failed", len(res.Failed), "status", string(res.Status))
	return res
}

// mutateCatalog performs the at-most-one catalog write for the operation
// and returns the entity id the fan-out should reference.
func (e *Executor) mutateCatalog(ctx context.Context, op Operation) (entityID string, createdNew bool, err error) {
	switch op.Kind {
	case OpCreateUnit:
		unit, err := e.remote.CreateUnit(ctx, op.Name, op.Abbreviation, op.Description)
		if mealie.IsConflict(err) {
			return e.reconcileUnitConflict(ctx, op)
		}
		if err != nil {
			return "", false, err
		}
		e.catalog.AddUnit(*unit)
		return unit.ID, true, nil

	case OpCreateFood:
		food, err := e.remote.CreateFood(ctx, op.Name, op.Description)
		if mealie.IsConflict(err) {
			return e.reconcileFoodConflict(ctx, op)
		}
		if err != nil {
			return "", false, err
		}
		e.catalog.AddFood(*food)
		return food.ID, true, nil

	case OpAddFoodAlias:
		food, err := e.remote.AddFoodAlias(ctx, op.TargetID, op.Alias)
		if mealie.IsConflict(err) {
			// Alias already bound on the server side; the intent holds.
			e.logger.Debug("alias conflict treated as success",
				"food", op.TargetID, "alias", op.Alias)
			return op.TargetID, false, nil
		}
		if mealie.IsNotFound(err) {
			return "", false, e.staleTarget(ctx, op)
		}
		if err != nil {
			return "", false, err
		}
		e.catalog.UpdateFood(*food)
		return food.ID, false, nil

	case OpAddUnitAlias:
		unit, err := e.remote.AddUnitAlias(ctx, op.TargetID, op.Alias)
		if mealie.IsConflict(err) {
			e.logger.Debug("alias conflict treated as success",
				"unit", op.TargetID, "alias", op.Alias)
			return op.TargetID, false, nil
		}
		if mealie.IsNotFound(err) {
			return "", false, e.staleTarget(ctx, op)
		}
		if err != nil {
			return "", false, err
		}
		e.catalog.UpdateUnit(*unit)
		return unit.ID, false, nil

	default:
		return "", false, fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

// reconcileUnitConflict handles a 409 on create: refresh the catalog and
// adopt the entity that already carries the requested name.
func (e *Executor) reconcileUnitConflict(ctx context.Context, op Operation) (string, bool, error) {
	units, err := e.remote.ListUnits(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("unit %q conflicts and catalog refresh failed: %w", op.Name, err)
	}
	e.catalog.ReplaceUnits(units)
	if id, ok := e.catalog.LookupUnit(op.Name); ok {
		e.logger.Info("create conflict reconciled to existing unit", "name", op.Name, "id", id)
		return id, false, nil
	}
	return "", false, fmt.Errorf("unit %q conflicts with an existing entry that could not be identified", op.Name)
}

func (e *Executor) reconcileFoodConflict(ctx context.Context, op Operation) (string, bool, error) {
	foods, err := e.remote.ListFoods(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("food %q conflicts and catalog refresh failed: %w", op.Name, err)
	}
	e.catalog.ReplaceFoods(foods)
	if id, ok := e.catalog.LookupFood(op.Name); ok {
		e.logger.Info("create conflict reconciled to existing food", "name", op.Name, "id", id)
		return id, false, nil
	}
	return "", false, fmt.Errorf("food %q conflicts with an existing entry that could not be identified", op.Name)
}

// staleTarget refreshes the catalog after a 404 on an alias target so the
// next attempt sees reality, then reports the target gone.
func (e *Executor) staleTarget(ctx context.Context, op Operation) error {
	e.refreshCatalog(ctx, op.Kind)
	return fmt.Errorf("selected target no longer exists on the server")
}

// fanOut updates every affected ingredient with bounded concurrency.
// Ingredients of the same recipe run sequentially in one lane so
// whole-recipe update semantics on the server cannot lose writes; distinct
// recipes proceed in parallel up to the configured width.
func (e *Executor) fanOut(ctx context.Context, op Operation, entityID string, res *Result) {
	total := len(op.Affected)
	if total == 0 {
		return
	}

	patch := mealie.IngredientPatch{}
	switch op.Kind {
	case OpCreateUnit, OpAddUnitAlias:
		patch.UnitID = entityID
	case OpCreateFood, OpAddFoodAlias:
		patch.FoodID = entityID
	}

	// Per-recipe lanes, in first-appearance order.
	laneOf := make(map[string][]pattern.Ref)
	var laneOrder []string
	for _, ref := range op.Affected {
		if _, ok := laneOf[ref.RecipeID]; !ok {
			laneOrder = append(laneOrder, ref.RecipeID)
		}
		laneOf[ref.RecipeID] = append(laneOf[ref.RecipeID], ref)
	}

	var mu sync.Mutex
	done := 0

	// In-flight writes are not torn down on cancel; they run to
	// completion under their own per-request deadline. Cancellation only
	// stops new submissions.
	writeCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(e.width)
	for _, recipeID := range laneOrder {
		refs := laneOf[recipeID]
		g.Go(func() error {
			for _, ref := range refs {
				if ctx.Err() != nil {
					mu.Lock()
					res.Failed = append(res.Failed, Failure{
						Ref: ref, Kind: "canceled", Message: "operation canceled before submission",
					})
					mu.Unlock()
					continue
				}
				err := e.remote.UpdateIngredient(writeCtx, ref.IngredientID, patch)

				mu.Lock()
				done++
				if err != nil {
					res.Failed = append(res.Failed, Failure{
						Ref:     ref,
						Kind:    mealie.Kind(err).String(),
						Message: err.Error(),
					})
				} else {
					res.Succeeded = append(res.Succeeded, ref)
				}
				ev := ProgressEvent{Done: done, Total: total, Ref: ref, Err: err}
				mu.Unlock()

				if e.OnProgress != nil {
					e.OnProgress(ev)
				}
			}
			return nil
		})
	}
	g.Wait()
}

// refreshCatalog re-lists the catalog affected by the operation. Failure is
// logged and non-fatal; the next batch triggers another attempt.
func (e *Executor) refreshCatalog(ctx context.Context, kind OpKind) {
	refreshCtx := context.WithoutCancel(ctx)
	if units, err := e.remote.ListUnits(refreshCtx, nil); err != nil {
		e.logger.Warn("unit catalog refresh failed, keeping cached snapshot",
			"op", string(kind), "error", err)
	} else {
		e.catalog.ReplaceUnits(units)
	}
	if foods, err := e.remote.ListFoods(refreshCtx, nil); err != nil {
		e.logger.Warn("food catalog refresh failed, keeping cached snapshot",
			"op", string(kind), "error", err)
	} else {
		e.catalog.ReplaceFoods(foods)
	}
}

// classify derives the final status from the success and failure sets.
// A fan-out that produced no successful update leaves the pattern exactly
// where it started, so it reports aborted rather than partial.
func classify(res *Result) FinalStatus {
	switch {
	case len(res.Failed) == 0:
		return StatusAllOK
	case len(res.Succeeded) == 0:
		return StatusAborted
	default:
		return StatusPartial
	}
}
