// Package functional runs Gherkin scenarios against an in-memory Mealie
// server. The orchestrator, executor and HTTP client run for real; only the
// remote service and the operator are played by the test.
package functional

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"

	"github.com/kitchenops/mealgroom/internal/executor"
	"github.com/kitchenops/mealgroom/internal/log"
	"github.com/kitchenops/mealgroom/internal/orchestrator"
	"github.com/kitchenops/mealgroom/internal/session"
	"github.com/kitchenops/mealgroom/internal/testutil"
)

type worldKeyType struct{}

var worldKey = worldKeyType{}

// decision is one scripted operator choice, matched to a pattern group by
// its canonical text when the interactive loop presents the views.
type decision struct {
	kind       executor.OpKind
	match      string
	name       string
	alias      string
	targetName string
}

// world is the per-scenario state: the fake server, the session directory
// and the operator script.
type world struct {
	server *testutil.FakeMealie
	home   string
	store  *session.Store

	resume     bool
	startFresh bool
	decisions  []decision
	retries    []bool

	results   []*executor.Result
	lastViews []orchestrator.PatternView
	notices   []string
	runErr    error
}

func getWorld(ctx context.Context) *world {
	if w, ok := ctx.Value(worldKey).(*world); ok {
		return w
	}
	return nil
}

func TestFeatures(t *testing.T) {
	opts := &godog.Options{
		Format:   "pretty",
		Paths:    []string{"features"},
		TestingT: t,
	}
	if tags := os.Getenv("MEALGROOM_TEST_TAGS"); tags != "" {
		opts.Tags = tags
	}

	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario,
		Options:             opts,
	}
	if suite.Run() != 0 {
		t.Fatal("functional tests failed")
	}
}

func initializeScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		home, err := os.MkdirTemp("", "mealgroom-functional-*")
		if err != nil {
			return ctx, err
		}
		w := &world{
			server: testutil.NewFakeMealie(),
			home:   home,
			store:  session.NewStore(filepath.Join(home, "session-state.json"), log.NewNoop()),
			resume: true,
		}
		return context.WithValue(ctx, worldKey, w), nil
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if w := getWorld(ctx); w != nil {
			w.server.Close()
			os.RemoveAll(w.home)
		}
		return ctx, nil
	})

	// Server setup
	ctx.Step(`^the catalog already has a unit named "([^"]*)"$`, theCatalogHasUnit)
	ctx.Step(`^the catalog already has a food named "([^"]*)" with alias "([^"]*)"$`, theCatalogHasFoodWithAlias)
	ctx.Step(`^recipe "([^"]*)" has ingredient "([^"]*)" reading "([^"]*)" tagged with free-text unit "([^"]*)"$`, recipeHasUnitTaggedIngredient)
	ctx.Step(`^recipe "([^"]*)" has ingredient "([^"]*)" reading "([^"]*)" tagged with free-text food "([^"]*)"$`, recipeHasFoodTaggedIngredient)
	ctx.Step(`^updating ingredient "([^"]*)" fails once with status (\d+)$`, updatingIngredientFailsOnce)

	// Session file setup
	ctx.Step(`^a saved session marks the "([^"]*)" pattern "([^"]*)" completed$`, savedSessionMarksCompleted)
	ctx.Step(`^the session file contains garbage$`, sessionFileContainsGarbage)

	// Operator script
	ctx.Step(`^the operator creates unit "([^"]*)" for pattern "([^"]*)"$`, operatorCreatesUnit)
	ctx.Step(`^the operator creates food "([^"]*)" for pattern "([^"]*)"$`, operatorCreatesFood)
	ctx.Step(`^the operator adds alias "([^"]*)" to food "([^"]*)" for pattern "([^"]*)"$`, operatorAddsFoodAlias)
	ctx.Step(`^the operator retries the failed updates$`, operatorRetries)
	ctx.Step(`^the operator declines to resume$`, operatorDeclinesResume)
	ctx.Step(`^the operator accepts a fresh start$`, operatorAcceptsFreshStart)

	// Execution
	ctx.Step(`^the grooming session runs$`, theGroomingSessionRuns)

	// Assertions
	ctx.Step(`^the run succeeds$`, theRunSucceeds)
	ctx.Step(`^the catalog gains a unit named "([^"]*)"$`, theCatalogGainsUnit)
	ctx.Step(`^the catalog gains a food named "([^"]*)"$`, theCatalogGainsFood)
	ctx.Step(`^exactly (\d+) unit create requests? reached the server$`, unitCreateRequestCount)
	ctx.Step(`^ingredient "([^"]*)" references unit "([^"]*)"$`, ingredientReferencesUnit)
	ctx.Step(`^ingredient "([^"]*)" references food "([^"]*)"$`, ingredientReferencesFood)
	ctx.Step(`^ingredient "([^"]*)" was never updated$`, ingredientNeverUpdated)
	ctx.Step(`^the batch finished "([^"]*)"$`, theBatchFinished)
	ctx.Step(`^the final batch finished "([^"]*)"$`, theFinalBatchFinished)
	ctx.Step(`^the session marks the "([^"]*)" pattern "([^"]*)" completed$`, sessionMarksCompleted)
	ctx.Step(`^the session marks no pattern completed$`, sessionMarksNothingCompleted)
	ctx.Step(`^the "([^"]*)" pattern "([^"]*)" is shown as "([^"]*)"$`, patternShownAs)
	ctx.Step(`^food "([^"]*)" carries alias "([^"]*)" exactly once$`, foodCarriesAliasOnce)
}
