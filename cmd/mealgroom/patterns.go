package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kitchenops/mealgroom/internal/catalog"
	"github.com/kitchenops/mealgroom/internal/config"
	"github.com/kitchenops/mealgroom/internal/mealie"
	"github.com/kitchenops/mealgroom/internal/pattern"
	"github.com/kitchenops/mealgroom/internal/similarity"
)

var flagPatternsJSON bool

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Analyze and list unparsed ingredient patterns",
	Long: `Fetch the recipe snapshot and print the pattern groups without
starting an interactive session. Useful for a quick look at how much
cleanup a library needs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runPatterns(cmd.Context(), cfg)
	},
}

func init() {
	patternsCmd.Flags().BoolVar(&flagPatternsJSON, "json", false, "emit machine-readable JSON")
	rootCmd.AddCommand(patternsCmd)
}

func runPatterns(ctx context.Context, cfg *config.Config) error {
	client := newClient(cfg)

	var (
		summaries []mealie.RecipeSummary
		units     []mealie.Unit
		foods     []mealie.Food
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summaries, err = client.ListRecipes(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		units, err = client.ListUnits(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		foods, err = client.ListFoods(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	recipes := make([]mealie.Recipe, len(summaries))
	dg, dctx := errgroup.WithContext(ctx)
	dg.SetLimit(cfg.BatchWidth)
	for i, s := range summaries {
		i, s := i, s
		dg.Go(func() error {
			r, err := client.GetRecipe(dctx, s.Slug)
			if err != nil {
				return err
			}
			recipes[i] = *r
			return nil
		})
	}
	if err := dg.Wait(); err != nil {
		return err
	}

	cat := catalog.New(units, foods)
	groups := pattern.NewAnalyzer(cat.UnitNames()).Analyze(recipes)
	similarity.New(cfg.SimilarityThreshold).Annotate(groups)

	if flagPatternsJSON {
		return printPatternsJSON(groups)
	}
	printPatternsTable(groups)
	return nil
}

type patternJSON struct {
	ID            string        `json:"id"`
	Kind          string        `json:"kind"`
	CanonicalText string        `json:"canonical_text"`
	DisplayText   string        `json:"display_text"`
	Ingredients   []pattern.Ref `json:"ingredients"`
	RecipeIDs     []string      `json:"recipe_ids"`
	SimilarIDs    []string      `json:"similar_ids,omitempty"`
}

func printPatternsJSON(groups []*pattern.Group) error {
	out := make([]patternJSON, 0, len(groups))
	for _, g := range groups {
		out = append(out, patternJSON{
			ID:            g.ID,
			Kind:          string(g.Kind),
			CanonicalText: g.CanonicalText,
			DisplayText:   g.DisplayText,
			Ingredients:   g.Ingredients,
			RecipeIDs:     g.RecipeIDs,
			SimilarIDs:    g.SimilarIDs,
		})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printPatternsTable(groups []*pattern.Group) {
	unitCount, foodCount := 0, 0
	fmt.Printf("%-5s %-30s %6s %8s  %s\n", "KIND", "PATTERN", "COUNT", "RECIPES", "SIMILAR")
	for _, g := range groups {
		if g.Kind == pattern.KindUnit {
			unitCount++
		} else {
			foodCount++
		}
		fmt.Printf("%-5s %-30s %6d %8d  %d\n",
			g.Kind, truncate(g.DisplayText, 30),
			len(g.Ingredients), len(g.RecipeIDs), len(g.SimilarIDs))
	}
	fmt.Printf("\n%d patterns (%d unit, %d food)\n", len(groups), unitCount, foodCount)
}
