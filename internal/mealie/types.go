package mealie

// Wire types for the Mealie API. All identifiers are opaque strings assigned
// by the server.

// Alias is an alternative surface form attached to a unit or food.
type Alias struct {
	Name string `json:"name"`
}

// Unit is a measurement unit in the catalog.
type Unit struct {
	ID              string  `json:"id,omitempty"`
	Name            string  `json:"name"`
	Abbreviation    string  `json:"abbreviation,omitempty"`
	Description     string  `json:"description,omitempty"`
	Fraction        bool    `json:"fraction"`
	UseAbbreviation bool    `json:"useAbbreviation"`
	Aliases         []Alias `json:"aliases,omitempty"`
}

// Food is a food entity in the catalog.
type Food struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Aliases     []Alias `json:"aliases,omitempty"`
}

// Ingredient is one line of a recipe. On unparsed ingredients the Unit and
// Food objects may be absent entirely, or present with a name but no id
// (free text the server could not match).
type Ingredient struct {
	ID           string   `json:"id,omitempty"`
	Note         string   `json:"note,omitempty"`
	OriginalText string   `json:"originalText,omitempty"`
	Quantity     *float64 `json:"quantity,omitempty"`
	Unit         *Unit    `json:"unit,omitempty"`
	Food         *Food    `json:"food,omitempty"`
}

// HasText reports whether the ingredient carries any free text.
func (i Ingredient) HasText() bool {
	return i.Note != "" || i.OriginalText != ""
}

// Text returns the note, falling back to the original text.
func (i Ingredient) Text() string {
	if i.Note != "" {
		return i.Note
	}
	return i.OriginalText
}

// HasUnitRef reports whether the ingredient is bound to a catalog unit.
func (i Ingredient) HasUnitRef() bool {
	return i.Unit != nil && i.Unit.ID != ""
}

// HasFoodRef reports whether the ingredient is bound to a catalog food.
func (i Ingredient) HasFoodRef() bool {
	return i.Food != nil && i.Food.ID != ""
}

// Unparsed reports whether the ingredient has text but lacks a unit
// reference, a food reference, or both.
func (i Ingredient) Unparsed() bool {
	return i.HasText() && (!i.HasUnitRef() || !i.HasFoodRef())
}

// Recipe is a recipe with its ordered ingredient list.
type Recipe struct {
	ID          string       `json:"id"`
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	Ingredients []Ingredient `json:"recipeIngredient"`
}

// RecipeSummary is the paged listing form of a recipe, without ingredients.
type RecipeSummary struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// IngredientPatch sets the unit and/or food reference of one ingredient.
// Zero-value fields are left untouched.
type IngredientPatch struct {
	UnitID string
	FoodID string
}

// ParsedHint is the advisory output of the server-side ingredient parser.
// It never drives a decision on its own; the operator confirms everything.
type ParsedHint struct {
	Input          string
	UnitName       string
	FoodName       string
	UnitConfidence float64
	FoodConfidence float64
}

// page is the envelope of Mealie's paginated list endpoints.
type page[T any] struct {
	Items   []T    `json:"items"`
	Total   int    `json:"total"`
	Next    string `json:"next"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

// parse endpoint wire shapes.

type parseRequest struct {
	Parser      string   `json:"parser"`
	Ingredients []string `json:"ingredients"`
}

type parseConfidence struct {
	Unit    *float64 `json:"unit"`
	Food    *float64 `json:"food"`
	Average *float64 `json:"average"`
}

type parseResult struct {
	Input      string          `json:"input"`
	Confidence parseConfidence `json:"confidence"`
	Ingredient struct {
		Unit *Unit `json:"unit"`
		Food *Food `json:"food"`
	} `json:"ingredient"`
}

func (r parseResult) hint() ParsedHint {
	h := ParsedHint{Input: r.Input}
	if r.Ingredient.Unit != nil {
		h.UnitName = r.Ingredient.Unit.Name
		if h.UnitName == "" {
			h.UnitName = r.Ingredient.Unit.Abbreviation
		}
	}
	if r.Ingredient.Food != nil {
		h.FoodName = r.Ingredient.Food.Name
	}
	h.UnitConfidence = confidenceOr(r.Confidence.Unit, r.Confidence.Average)
	h.FoodConfidence = confidenceOr(r.Confidence.Food, r.Confidence.Average)
	return h
}

func confidenceOr(v, fallback *float64) float64 {
	if v != nil {
		return *v
	}
	if fallback != nil {
		return *fallback
	}
	return 0
}
