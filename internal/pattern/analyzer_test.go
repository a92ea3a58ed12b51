package pattern

import (
	"testing"

	"github.com/kitchenops/mealgroom/internal/mealie"
)

func unparsedRecipe(id string, notes ...string) mealie.Recipe {
	r := mealie.Recipe{ID: id, Slug: id, Name: id}
	for i, note := range notes {
		r.Ingredients = append(r.Ingredients, mealie.Ingredient{
			ID:   id + "-i" + string(rune('a'+i)),
			Note: note,
		})
	}
	return r
}

func TestCanonicalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  TSP  ", "tsp"},
		{"Olive   Oil", "olive oil"},
		{"\tcup\n", "cup"},
		{"ﬂour", "flour"}, // U+FB02 ligature, NFKC-folded
		{"ｃｕｐ", "cup"},    // fullwidth forms
		{"café", "café"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Canonicalize(tc.in); got != tc.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGroupID_stableAndKindScoped(t *testing.T) {
	a := GroupID(KindUnit, "tsp")
	b := GroupID(KindUnit, "tsp")
	c := GroupID(KindFood, "tsp")
	if a != b {
		t.Errorf("id not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Error("unit and food ids collide for the same text")
	}
	if len(a) != len("p-")+12 {
		t.Errorf("id length = %d: %q", len(a), a)
	}
}

func TestAnalyze_groupsEquivalentNotes(t *testing.T) {
	// Scenario: three recipes, same unit fragment in different case.
	recipes := []mealie.Recipe{
		unparsedRecipe("r1", "2 tsp salt"),
		unparsedRecipe("r2", "1 TSP sugar"),
		unparsedRecipe("r3", "2 tsp vanilla"),
	}
	a := NewAnalyzer([]string{"tsp"})
	groups := a.Analyze(recipes)

	var unitGroup *Group
	for _, g := range groups {
		if g.Kind == KindUnit && g.CanonicalText == "tsp" {
			unitGroup = g
		}
	}
	if unitGroup == nil {
		t.Fatalf("no tsp unit group in %d groups", len(groups))
	}
	if unitGroup.DisplayText != "tsp" {
		t.Errorf("DisplayText = %q, want first observed form", unitGroup.DisplayText)
	}
	if len(unitGroup.Ingredients) != 3 {
		t.Errorf("ingredient refs = %d, want 3", len(unitGroup.Ingredients))
	}
	if len(unitGroup.RecipeIDs) != 3 {
		t.Errorf("recipe ids = %v, want 3 distinct", unitGroup.RecipeIDs)
	}
	if unitGroup.Status != StatusPending {
		t.Errorf("status = %v, want pending", unitGroup.Status)
	}
}

func TestAnalyze_isolatesUnitAndFoodFragments(t *testing.T) {
	recipes := []mealie.Recipe{unparsedRecipe("r1", "2 cups flour")}
	groups := NewAnalyzer([]string{"cup", "cups"}).Analyze(recipes)

	byKind := map[Kind]*Group{}
	for _, g := range groups {
		byKind[g.Kind] = g
	}
	if g := byKind[KindUnit]; g == nil || g.CanonicalText != "cups" {
		t.Errorf("unit group = %+v, want cups", g)
	}
	if g := byKind[KindFood]; g == nil || g.CanonicalText != "flour" {
		t.Errorf("food group = %+v, want flour", g)
	}
}

func TestAnalyze_prefersEmbeddedFreeTextObjects(t *testing.T) {
	// The server often attaches a unit/food object with a name but no id
	// when its own parse found no catalog match. That text wins over the
	// note heuristic.
	recipes := []mealie.Recipe{{ID: "r1", Ingredients: []mealie.Ingredient{
		{
			ID:   "i1",
			Note: "2 tsp salt",
			Unit: &mealie.Unit{Name: "tsp"},
			Food: &mealie.Food{Name: "salt"},
		},
	}}}
	groups := NewAnalyzer(nil).Analyze(recipes)

	byKind := map[Kind]*Group{}
	for _, g := range groups {
		byKind[g.Kind] = g
	}
	if g := byKind[KindUnit]; g == nil || g.CanonicalText != "tsp" {
		t.Errorf("unit group = %+v, want tsp from embedded object", g)
	}
	if g := byKind[KindFood]; g == nil || g.CanonicalText != "salt" {
		t.Errorf("food group = %+v, want salt from embedded object", g)
	}
}

func TestAnalyze_embeddedAbbreviationFallback(t *testing.T) {
	recipes := []mealie.Recipe{{ID: "r1", Ingredients: []mealie.Ingredient{
		{ID: "i1", Note: "1 T butter", Unit: &mealie.Unit{Abbreviation: "T"}},
	}}}
	groups := NewAnalyzer(nil).Analyze(recipes)

	found := false
	for _, g := range groups {
		if g.Kind == KindUnit && g.CanonicalText == "t" {
			found = true
		}
	}
	if !found {
		t.Errorf("no unit group from embedded abbreviation: %+v", groups)
	}
}

func TestAnalyze_skipsParsedAndTextless(t *testing.T) {
	parsed := mealie.Recipe{ID: "r1", Ingredients: []mealie.Ingredient{
		{ID: "i1", Note: "2 cups flour", Unit: &mealie.Unit{ID: "u1"}, Food: &mealie.Food{ID: "f1"}},
		{ID: "i2"}, // no text at all
	}}
	groups := NewAnalyzer(nil).Analyze([]mealie.Recipe{parsed})
	if len(groups) != 0 {
		t.Errorf("got %d groups from fully parsed snapshot", len(groups))
	}
}

func TestAnalyze_partiallyParsedYieldsOneKind(t *testing.T) {
	recipes := []mealie.Recipe{{ID: "r1", Ingredients: []mealie.Ingredient{
		{ID: "i1", Note: "2 cups flour", Unit: &mealie.Unit{ID: "u1"}},
	}}}
	groups := NewAnalyzer([]string{"cups"}).Analyze(recipes)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1 food group", len(groups))
	}
	if groups[0].Kind != KindFood || groups[0].CanonicalText != "flour" {
		t.Errorf("group = %+v", groups[0])
	}
}

func TestAnalyze_discardsNumericAndPunctuationFragments(t *testing.T) {
	recipes := []mealie.Recipe{
		unparsedRecipe("r1", "2 1/2"),
		unparsedRecipe("r2", "..."),
		unparsedRecipe("r3", "½"),
	}
	groups := NewAnalyzer(nil).Analyze(recipes)
	if len(groups) != 0 {
		t.Errorf("numeric/punctuation notes produced %d groups: %+v", len(groups), groups)
	}
}

func TestAnalyze_fullyUnparsedFallsBackToWholeNote(t *testing.T) {
	// No dictionary hit: the whole note is both candidate fragments.
	recipes := []mealie.Recipe{unparsedRecipe("r1", "a splash of brandy")}
	groups := NewAnalyzer(nil).Analyze(recipes)

	if len(groups) != 2 {
		t.Fatalf("got %d groups, want unit+food fallback", len(groups))
	}
	for _, g := range groups {
		if g.CanonicalText != "a splash of brandy" {
			t.Errorf("%s group canonical = %q", g.Kind, g.CanonicalText)
		}
	}
}

func TestAnalyze_deterministic(t *testing.T) {
	recipes := []mealie.Recipe{
		unparsedRecipe("r1", "2 tsp salt", "1 cup flour"),
		unparsedRecipe("r2", "1 TSP sugar", "3 cups flour"),
	}
	a := NewAnalyzer([]string{"tsp", "cup", "cups"})
	first := a.Analyze(recipes)
	second := a.Analyze(recipes)

	if len(first) != len(second) {
		t.Fatalf("group counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("group %d id differs: %q vs %q", i, first[i].ID, second[i].ID)
		}
		if len(first[i].Ingredients) != len(second[i].Ingredients) {
			t.Errorf("group %d membership differs", i)
		}
	}
}

func TestAnalyze_everyUnparsedIngredientCovered(t *testing.T) {
	recipes := []mealie.Recipe{
		unparsedRecipe("r1", "2 tsp salt", "pinch of saffron", "1 cup milk"),
		unparsedRecipe("r2", "EVOO", "3 large eggs"),
	}
	groups := NewAnalyzer([]string{"tsp", "cup", "pinch"}).Analyze(recipes)

	covered := map[Ref]bool{}
	for _, g := range groups {
		for _, ref := range g.Ingredients {
			covered[ref] = true
		}
	}
	for _, r := range recipes {
		for _, ing := range r.Ingredients {
			if !ing.Unparsed() {
				continue
			}
			if !covered[Ref{RecipeID: r.ID, IngredientID: ing.ID}] {
				t.Errorf("unparsed ingredient %s/%s not in any group", r.ID, ing.ID)
			}
		}
	}
}

func TestAnalyze_yieldHookFires(t *testing.T) {
	var recipes []mealie.Recipe
	r := mealie.Recipe{ID: "big"}
	for i := 0; i < 2500; i++ {
		r.Ingredients = append(r.Ingredients, mealie.Ingredient{
			ID: "i" + string(rune(i)), Note: "some food",
		})
	}
	recipes = append(recipes, r)

	yields := 0
	NewAnalyzer(nil, WithYield(func() { yields++ })).Analyze(recipes)
	if yields != 2 {
		t.Errorf("yield hook fired %d times for 2500 ingredients, want 2", yields)
	}
}

func TestStatus_transitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusSkipped},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusPending},
		{StatusSkipped, StatusPending},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}
	denied := []struct{ from, to Status }{
		{StatusCompleted, StatusPending},
		{StatusCompleted, StatusProcessing},
		{StatusPending, StatusCompleted},
		{StatusSkipped, StatusCompleted},
		{StatusSkipped, StatusProcessing},
	}
	for _, tc := range denied {
		if tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}
