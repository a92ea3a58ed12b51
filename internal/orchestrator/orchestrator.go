// Package orchestrator drives the end-to-end session: fetch the snapshot,
// analyze patterns, resume or start a session, and loop operator decisions
// through the batch executor while journaling progress.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kitchenops/mealgroom/internal/catalog"
	"github.com/kitchenops/mealgroom/internal/executor"
	"github.com/kitchenops/mealgroom/internal/log"
	"github.com/kitchenops/mealgroom/internal/mealie"
	"github.com/kitchenops/mealgroom/internal/pattern"
	"github.com/kitchenops/mealgroom/internal/session"
	"github.com/kitchenops/mealgroom/internal/similarity"
)

// Client is the full recipe-service surface the orchestrator needs: the
// executor's slice plus snapshot fetching and the advisory parser.
type Client interface {
	executor.Remote
	ListRecipes(ctx context.Context, progress func(cur, total int)) ([]mealie.RecipeSummary, error)
	GetRecipe(ctx context.Context, slug string) (*mealie.Recipe, error)
	ParseIngredients(ctx context.Context, texts []string, parser string) ([]mealie.ParsedHint, error)
}

// ActionKind is what the operator chose to do next.
type ActionKind string

const (
	ActionExecute ActionKind = "execute"
	ActionSkip    ActionKind = "skip"
	ActionUnskip  ActionKind = "unskip"
	ActionRetry   ActionKind = "retry"
	ActionQuit    ActionKind = "quit"
)

// Action is one operator decision returned by the UI.
type Action struct {
	Kind      ActionKind
	PatternID string
	// Op is set for ActionExecute.
	Op executor.Operation
}

// PatternView is what the UI renders per pattern group.
type PatternView struct {
	Group  *pattern.Group
	Status pattern.Status
	// Hint is the advisory parse of the display text, if available.
	Hint *mealie.ParsedHint
}

// UI is the interactive surface. The shell implements it; tests script it.
type UI interface {
	// ConfirmResume asks whether to pick up a previous session.
	ConfirmResume(state *session.State) (bool, error)
	// ConfirmStartFresh is shown for corrupted or incompatible session
	// files; false aborts the run.
	ConfirmStartFresh(reason string) (bool, error)
	// NextAction presents the patterns and waits for a decision.
	NextAction(views []PatternView) (Action, error)
	// ShowResult presents a batch outcome; returning true requests a
	// retry of the failed subset.
	ShowResult(res *executor.Result) (retry bool, err error)
	// Notify shows a transient message.
	Notify(msg string)
}

// ErrHalted is returned when an auth failure forces the session to stop.
var ErrHalted = errors.New("session halted")

// Options configures an Orchestrator.
type Options struct {
	Client              Client
	Store               *session.Store
	UI                  UI
	BatchWidth          int
	SimilarityThreshold float64
	// Parser selects the advisory parse backend ("nlp" or "brute").
	Parser string
	// Progress, when set, receives one event per completed ingredient
	// update during a batch.
	Progress func(executor.ProgressEvent)
	Logger   log.Logger
}

// Orchestrator owns the catalog caches and the session state for one run.
type Orchestrator struct {
	client    Client
	store     *session.Store
	ui        UI
	width     int
	threshold float64
	parser    string
	progress  func(executor.ProgressEvent)
	logger    log.Logger

	catalog *catalog.Catalog
	exec    *executor.Executor
	groups  []*pattern.Group
	hints   map[string]*mealie.ParsedHint
	state   *session.State

	saveMu sync.Mutex
}

// New creates an Orchestrator. Width is clamped to [1, 10] like the
// executor's; a zero width would stall the snapshot fetch.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.BatchWidth < 1 {
		opts.BatchWidth = 1
	}
	if opts.BatchWidth > 10 {
		opts.BatchWidth = 10
	}
	return &Orchestrator{
		client:    opts.Client,
		store:     opts.Store,
		ui:        opts.UI,
		width:     opts.BatchWidth,
		threshold: opts.SimilarityThreshold,
		parser:    opts.Parser,
		progress:  opts.Progress,
		logger:    opts.Logger,
		hints:     map[string]*mealie.ParsedHint{},
	}
}

// Run executes one full session. It returns nil on clean exit, ErrHalted
// (wrapped) on fatal auth failure, and the underlying error when the
// snapshot cannot be fetched.
func (o *Orchestrator) Run(ctx context.Context) error {
	recipes, err := o.fetchSnapshot(ctx)
	if err != nil {
		if mealie.IsAuth(err) {
			return fmt.Errorf("%w: %v", ErrHalted, err)
		}
		return err
	}

	o.analyze(recipes)
	o.exec = executor.New(o.client, o.catalog, o.width, o.logger)
	o.exec.OnProgress = o.progress
	o.fetchHints(ctx)

	if err := o.openSession(); err != nil {
		return err
	}

	return o.loop(ctx)
}

// fetchSnapshot loads recipes, units and foods. The three listings run in
// parallel; recipe details are then filled in with bounded concurrency.
func (o *Orchestrator) fetchSnapshot(ctx context.Context) ([]mealie.Recipe, error) {
	var (
		summaries []mealie.RecipeSummary
		units     []mealie.Unit
		foods     []mealie.Food
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summaries, err = o.client.ListRecipes(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		units, err = o.client.ListUnits(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		foods, err = o.client.ListFoods(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	o.catalog = catalog.New(units, foods)

	recipes := make([]mealie.Recipe, len(summaries))
	dg, dctx := errgroup.WithContext(ctx)
	dg.SetLimit(o.width)
	for i, s := range summaries {
		i, s := i, s
		dg.Go(func() error {
			r, err := o.client.GetRecipe(dctx, s.Slug)
			if err != nil {
				return err
			}
			recipes[i] = *r
			return nil
		})
	}
	if err := dg.Wait(); err != nil {
		return nil, err
	}
	o.logger.Info("snapshot loaded",
		"recipes", len(recipes), "units", len(units), "foods", len(foods))
	return recipes, nil
}

// analyze runs the pattern analyzer and similarity index over the snapshot.
// The yield hook keeps other goroutines (signal handling, progress output)
// scheduled while very large snapshots are scanned.
func (o *Orchestrator) analyze(recipes []mealie.Recipe) {
	analyzer := pattern.NewAnalyzer(o.catalog.UnitNames(), pattern.WithYield(runtime.Gosched))
	o.groups = analyzer.Analyze(recipes)
	similarity.New(o.threshold).Annotate(o.groups)
	o.logger.Info("analysis complete", "patterns", len(o.groups))
}

// fetchHints runs the advisory parser over the pattern display texts.
// Failures are logged and ignored; hints never gate a decision.
func (o *Orchestrator) fetchHints(ctx context.Context) {
	if len(o.groups) == 0 {
		return
	}
	texts := make([]string, 0, len(o.groups))
	for _, g := range o.groups {
		texts = append(texts, g.DisplayText)
	}
	hints, err := o.client.ParseIngredients(ctx, texts, o.parser)
	if err != nil {
		o.logger.Warn("advisory parse unavailable", "error", err)
		return
	}
	byInput := make(map[string]*mealie.ParsedHint, len(hints))
	for i := range hints {
		byInput[hints[i].Input] = &hints[i]
	}
	for _, g := range o.groups {
		if h, ok := byInput[g.DisplayText]; ok {
			o.hints[g.ID] = h
		}
	}
}

// openSession loads, reconciles or discards the session file per the
// operator's choice.
func (o *Orchestrator) openSession() error {
	state, err := o.store.Load()
	switch {
	case err == nil:
		resume, uerr := o.ui.ConfirmResume(state)
		if uerr != nil {
			return uerr
		}
		if resume {
			o.state = state
			o.reconcile()
			o.logger.Info("session resumed",
				"completed", len(state.CompletedPatternIDs),
				"skipped", len(state.SkippedPatternIDs))
			return nil
		}
		if derr := o.store.Discard(); derr != nil {
			return derr
		}
		o.state = session.NewState()
		return nil

	case errors.Is(err, session.ErrMissing):
		o.state = session.NewState()
		return nil

	default:
		// Corrupted or incompatible: offer a fresh start.
		fresh, uerr := o.ui.ConfirmStartFresh(err.Error())
		if uerr != nil {
			return uerr
		}
		if !fresh {
			return fmt.Errorf("unusable session file kept at operator's request: %w", err)
		}
		if derr := o.store.Discard(); derr != nil {
			return derr
		}
		o.state = session.NewState()
		return nil
	}
}

// reconcile drops session ids that no longer match the fresh analysis.
func (o *Orchestrator) reconcile() {
	current := make(map[string]bool, len(o.groups))
	for _, g := range o.groups {
		current[g.ID] = true
	}
	o.state.Reconcile(current)
}

// loop is the interactive select-execute-persist cycle.
func (o *Orchestrator) loop(ctx context.Context) error {
	lastResults := make(map[string]*executor.Result)

	for {
		if ctx.Err() != nil {
			return o.saveState()
		}
		action, err := o.ui.NextAction(o.views())
		if err != nil {
			return err
		}

		switch action.Kind {
		case ActionQuit:
			return o.saveState()

		case ActionSkip:
			o.state.MarkSkipped(action.PatternID)
			if err := o.saveState(); err != nil {
				return err
			}

		case ActionUnskip:
			o.state.Unskip(action.PatternID)
			if err := o.saveState(); err != nil {
				return err
			}

		case ActionExecute:
			res := o.exec.Execute(ctx, action.Op)
			lastResults[action.Op.PatternID] = res
			if err := o.foldResult(ctx, res, lastResults); err != nil {
				return err
			}

		case ActionRetry:
			prev, ok := lastResults[action.PatternID]
			if !ok || len(prev.Failed) == 0 {
				o.ui.Notify("nothing to retry for this pattern")
				continue
			}
			res := o.exec.RetryFailed(ctx, prev)
			lastResults[action.PatternID] = res
			if err := o.foldResult(ctx, res, lastResults); err != nil {
				return err
			}

		default:
			o.ui.Notify(fmt.Sprintf("unknown action %q", action.Kind))
		}
	}
}

// foldResult commits a batch outcome into session state and persists it,
// then offers the retry path for partial results.
func (o *Orchestrator) foldResult(ctx context.Context, res *executor.Result, lastResults map[string]*executor.Result) error {
	o.applyResult(res)
	if err := o.saveState(); err != nil {
		return err
	}
	if authFailure(res) {
		return fmt.Errorf("%w: authentication failed during batch", ErrHalted)
	}

	retry, err := o.ui.ShowResult(res)
	if err != nil {
		return err
	}
	for retry && len(res.Failed) > 0 {
		res = o.exec.RetryFailed(ctx, res)
		lastResults[res.Op.PatternID] = res
		o.applyResult(res)
		if err := o.saveState(); err != nil {
			return err
		}
		if authFailure(res) {
			return fmt.Errorf("%w: authentication failed during batch", ErrHalted)
		}
		retry, err = o.ui.ShowResult(res)
		if err != nil {
			return err
		}
	}
	return nil
}

// applyResult folds one BatchResult into the session state.
func (o *Orchestrator) applyResult(res *executor.Result) {
	op := res.Op
	if res.CreatedNew && res.CreatedEntityID != "" {
		switch op.Kind {
		case executor.OpCreateUnit:
			o.state.RecordUnitCreated(res.CreatedEntityID)
		case executor.OpCreateFood:
			o.state.RecordFoodCreated(res.CreatedEntityID)
		}
	}
	// The alias write happened whenever the mutation step produced an
	// entity id, even if the fan-out later failed.
	if res.CreatedEntityID != "" {
		switch op.Kind {
		case executor.OpAddFoodAlias:
			o.state.RecordAliasAdded("food", op.TargetID, op.Alias)
		case executor.OpAddUnitAlias:
			o.state.RecordAliasAdded("unit", op.TargetID, op.Alias)
		}
	}

	o.state.Stats.IngredientsUpdated += len(res.Succeeded)
	for _, ref := range res.Succeeded {
		o.state.RecordRecipeProcessed(ref.RecipeID)
	}
	if res.Status == executor.StatusAllOK {
		o.state.MarkCompleted(op.PatternID)
	}
	o.state.RecordOperation(string(op.Kind), op.PatternID,
		len(res.Succeeded), string(res.Status))
}

// saveState serializes the session under the save mutex so writes never
// interleave.
func (o *Orchestrator) saveState() error {
	o.saveMu.Lock()
	defer o.saveMu.Unlock()
	if o.state == nil {
		return nil
	}
	if err := o.store.Save(o.state); err != nil {
		o.logger.Error("session save failed", "error", err)
		return err
	}
	return nil
}

// views builds the UI's pattern list with effective statuses overlaid from
// session state.
func (o *Orchestrator) views() []PatternView {
	views := make([]PatternView, 0, len(o.groups))
	for _, g := range o.groups {
		status := g.Status
		switch {
		case o.state.IsCompleted(g.ID):
			status = pattern.StatusCompleted
		case o.state.IsSkipped(g.ID):
			status = pattern.StatusSkipped
		}
		views = append(views, PatternView{Group: g, Status: status, Hint: o.hints[g.ID]})
	}
	return views
}

// authFailure reports whether a result carries a fatal auth error, either
// from the catalog mutation or from any ingredient update.
func authFailure(res *executor.Result) bool {
	if res.AbortErr != nil && mealie.IsAuth(res.AbortErr) {
		return true
	}
	for _, f := range res.Failed {
		if f.Kind == mealie.KindAuth.String() {
			return true
		}
	}
	return false
}
