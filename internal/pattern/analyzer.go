package pattern

import (
	"strings"
	"unicode"

	"github.com/kitchenops/mealgroom/internal/mealie"
)

// yieldEvery is how many ingredients the analyzer processes between calls
// to the yield hook, so large snapshots don't starve the UI loop.
const yieldEvery = 1000

// Analyzer groups unparsed ingredients. The unit dictionary comes from the
// cached unit catalog (names, abbreviations, aliases, lowercased).
type Analyzer struct {
	unitDict map[string]bool
	yield    func()
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithYield installs a hook invoked periodically during analysis.
func WithYield(fn func()) Option {
	return func(a *Analyzer) { a.yield = fn }
}

// NewAnalyzer builds an Analyzer over the given unit surface forms.
func NewAnalyzer(unitNames []string, opts ...Option) *Analyzer {
	dict := make(map[string]bool, len(unitNames))
	for _, n := range unitNames {
		n = Canonicalize(n)
		if n != "" {
			dict[n] = true
		}
	}
	a := &Analyzer{unitDict: dict}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze produces the pattern groups for a snapshot. Groups appear in
// first-observation order, which is deterministic for a given snapshot.
func (a *Analyzer) Analyze(recipes []mealie.Recipe) []*Group {
	var groups []*Group
	index := make(map[string]*Group)
	processed := 0

	for _, recipe := range recipes {
		for _, ing := range recipe.Ingredients {
			processed++
			if a.yield != nil && processed%yieldEvery == 0 {
				a.yield()
			}
			if !ing.Unparsed() {
				continue
			}
			unitFrag, foodFrag := a.fragments(ing)

			ref := Ref{RecipeID: recipe.ID, IngredientID: ing.ID}
			if !ing.HasUnitRef() {
				a.collect(index, &groups, KindUnit, unitFrag, ref)
			}
			if !ing.HasFoodRef() {
				a.collect(index, &groups, KindFood, foodFrag, ref)
			}
		}
	}
	return groups
}

// collect folds one (kind, fragment) observation into its group.
func (a *Analyzer) collect(index map[string]*Group, groups *[]*Group, kind Kind, fragment string, ref Ref) {
	canonical := Canonicalize(fragment)
	if canonical == "" || !usable(canonical) {
		return
	}
	id := GroupID(kind, canonical)
	g, ok := index[id]
	if !ok {
		g = &Group{
			ID:            id,
			Kind:          kind,
			CanonicalText: canonical,
			DisplayText:   strings.TrimSpace(fragment),
			Status:        StatusPending,
		}
		index[id] = g
		*groups = append(*groups, g)
	}
	g.Ingredients = append(g.Ingredients, ref)
	if len(g.RecipeIDs) == 0 || g.RecipeIDs[len(g.RecipeIDs)-1] != ref.RecipeID {
		if !containsString(g.RecipeIDs, ref.RecipeID) {
			g.RecipeIDs = append(g.RecipeIDs, ref.RecipeID)
		}
	}
}

// fragments picks the unit and food pattern texts for one ingredient. When
// the server attached a free-text unit or food object (name but no id),
// that text is the fragment; otherwise the note is split heuristically.
func (a *Analyzer) fragments(ing mealie.Ingredient) (unitFrag, foodFrag string) {
	heuristicUnit, heuristicFood := a.isolate(ing.Text())

	unitFrag = heuristicUnit
	if ing.Unit != nil && ing.Unit.ID == "" {
		if t := firstNonEmpty(ing.Unit.Name, ing.Unit.Abbreviation); t != "" {
			unitFrag = t
		}
	}
	foodFrag = heuristicFood
	if ing.Food != nil && ing.Food.ID == "" && ing.Food.Name != "" {
		foodFrag = ing.Food.Name
	}
	return unitFrag, foodFrag
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// isolate splits a note into a unit fragment and a food fragment. Tokens
// matching the unit dictionary form the unit fragment; the rest is the food
// fragment. With no dictionary hit the unit fragment falls back to the
// whole note, covering the fully-unparsed case.
func (a *Analyzer) isolate(note string) (unitFrag, foodFrag string) {
	var unitTokens, foodTokens []string
	for _, tok := range tokenize(note) {
		canon := Canonicalize(tok)
		switch {
		case canon == "":
		case a.unitDict[canon]:
			unitTokens = append(unitTokens, tok)
		case isNumeric(canon):
			// quantities belong to neither fragment
		default:
			foodTokens = append(foodTokens, tok)
		}
	}
	unitFrag = strings.Join(unitTokens, " ")
	foodFrag = strings.Join(foodTokens, " ")
	if unitFrag == "" {
		unitFrag = note
	}
	if foodFrag == "" {
		foodFrag = note
	}
	return unitFrag, foodFrag
}

// tokenize splits on whitespace and punctuation, keeping intra-word
// characters like hyphens so "half-and-half" stays one token.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		if r == '-' || r == '\'' {
			return false
		}
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

func isNumeric(s string) bool {
	seen := false
	for _, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == '/' || r == ',' || r == '⁄' {
			seen = seen || unicode.IsDigit(r)
			continue
		}
		if unicode.Is(unicode.No, r) { // vulgar fractions like ½
			seen = true
			continue
		}
		return false
	}
	return seen
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
