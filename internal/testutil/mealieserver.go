// Package testutil provides an in-memory Mealie server for tests: the real
// wire shapes, scriptable failures, and call counters, behind httptest.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/kitchenops/mealgroom/internal/mealie"
)

// Token is the Bearer credential the fake server accepts.
const Token = "test-token"

// FakeMealie is an in-memory recipe service.
type FakeMealie struct {
	mu      sync.Mutex
	srv     *httptest.Server
	recipes []mealie.Recipe
	units   []mealie.Unit
	foods   []mealie.Food

	nextID int

	// failUpdates maps ingredient id to the number of remaining requests
	// that answer with failStatus before succeeding.
	failUpdates map[string]int
	failStatus  int

	// CreateUnitCalls counts POST /api/units requests.
	CreateUnitCalls int
	// UpdateCalls counts ingredient PUTs, by ingredient id.
	UpdateCalls map[string]int
}

// NewFakeMealie starts the server. Callers own Close.
func NewFakeMealie() *FakeMealie {
	f := &FakeMealie{
		failUpdates: map[string]int{},
		failStatus:  http.StatusInternalServerError,
		UpdateCalls: map[string]int{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// URL returns the server base URL.
func (f *FakeMealie) URL() string { return f.srv.URL }

// Close shuts the server down.
func (f *FakeMealie) Close() { f.srv.Close() }

// AddRecipe seeds a recipe.
func (f *FakeMealie) AddRecipe(r mealie.Recipe) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recipes = append(f.recipes, r)
}

// AddIngredient appends an ingredient to the recipe with the given slug,
// creating the recipe first if needed.
func (f *FakeMealie) AddIngredient(slug string, ing mealie.Ingredient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.recipes {
		if f.recipes[i].Slug == slug {
			f.recipes[i].Ingredients = append(f.recipes[i].Ingredients, ing)
			return
		}
	}
	f.recipes = append(f.recipes, mealie.Recipe{
		ID:          slug,
		Slug:        slug,
		Name:        slug,
		Ingredients: []mealie.Ingredient{ing},
	})
}

// AddUnit seeds a catalog unit and returns its id.
func (f *FakeMealie) AddUnit(u mealie.Unit) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = f.id("unit")
	}
	f.units = append(f.units, u)
	return u.ID
}

// AddFood seeds a catalog food and returns its id.
func (f *FakeMealie) AddFood(food mealie.Food) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if food.ID == "" {
		food.ID = f.id("food")
	}
	f.foods = append(f.foods, food)
	return food.ID
}

// FailNextUpdates makes the next n PUTs for the ingredient answer with
// status before recovering.
func (f *FakeMealie) FailNextUpdates(ingredientID string, n, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUpdates[ingredientID] = n
	f.failStatus = status
}

// Units returns a copy of the unit catalog.
func (f *FakeMealie) Units() []mealie.Unit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mealie.Unit(nil), f.units...)
}

// Foods returns a copy of the food catalog.
func (f *FakeMealie) Foods() []mealie.Food {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mealie.Food(nil), f.foods...)
}

// Ingredient returns the stored ingredient with the given id.
func (f *FakeMealie) Ingredient(id string) (mealie.Ingredient, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.recipes {
		for _, ing := range r.Ingredients {
			if ing.ID == id {
				return ing, true
			}
		}
	}
	return mealie.Ingredient{}, false
}

func (f *FakeMealie) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *FakeMealie) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+Token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "unauthorized"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/api")
	switch {
	case path == "/recipes" && r.Method == http.MethodGet:
		items := make([]mealie.RecipeSummary, 0, len(f.recipes))
		for _, rec := range f.recipes {
			items = append(items, mealie.RecipeSummary{ID: rec.ID, Slug: rec.Slug, Name: rec.Name})
		}
		writePaged(w, r, items)

	case strings.HasPrefix(path, "/recipes/ingredients/"):
		f.handleIngredient(w, r, strings.TrimPrefix(path, "/recipes/ingredients/"))

	case strings.HasPrefix(path, "/recipes/") && r.Method == http.MethodGet:
		slug := strings.TrimPrefix(path, "/recipes/")
		for _, rec := range f.recipes {
			if rec.Slug == slug {
				writeJSON(w, http.StatusOK, rec)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "recipe not found"})

	case path == "/units" && r.Method == http.MethodGet:
		writePaged(w, r, f.units)

	case path == "/units" && r.Method == http.MethodPost:
		f.handleCreateUnit(w, r)

	case strings.HasPrefix(path, "/units/"):
		f.handleUnit(w, r, strings.TrimPrefix(path, "/units/"))

	case path == "/foods" && r.Method == http.MethodGet:
		writePaged(w, r, f.foods)

	case path == "/foods" && r.Method == http.MethodPost:
		f.handleCreateFood(w, r)

	case strings.HasPrefix(path, "/foods/"):
		f.handleFood(w, r, strings.TrimPrefix(path, "/foods/"))

	case path == "/parser/ingredients" && r.Method == http.MethodPost:
		f.handleParse(w, r)

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "no such endpoint"})
	}
}

func (f *FakeMealie) handleCreateUnit(w http.ResponseWriter, r *http.Request) {
	f.CreateUnitCalls++
	var u mealie.Unit
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "bad body"})
		return
	}
	for _, existing := range f.units {
		if strings.EqualFold(existing.Name, u.Name) ||
			(u.Abbreviation != "" && strings.EqualFold(existing.Abbreviation, u.Abbreviation)) {
			writeJSON(w, http.StatusConflict, map[string]string{"detail": "unit already exists"})
			return
		}
	}
	u.ID = f.id("unit")
	f.units = append(f.units, u)
	writeJSON(w, http.StatusCreated, u)
}

func (f *FakeMealie) handleCreateFood(w http.ResponseWriter, r *http.Request) {
	var food mealie.Food
	if err := json.NewDecoder(r.Body).Decode(&food); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "bad body"})
		return
	}
	for _, existing := range f.foods {
		if strings.EqualFold(existing.Name, food.Name) {
			writeJSON(w, http.StatusConflict, map[string]string{"detail": "food already exists"})
			return
		}
	}
	food.ID = f.id("food")
	f.foods = append(f.foods, food)
	writeJSON(w, http.StatusCreated, food)
}

func (f *FakeMealie) handleUnit(w http.ResponseWriter, r *http.Request, id string) {
	for i := range f.units {
		if f.units[i].ID != id {
			continue
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, f.units[i])
		case http.MethodPut:
			var u mealie.Unit
			if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "bad body"})
				return
			}
			u.ID = id
			f.units[i] = u
			writeJSON(w, http.StatusOK, u)
		}
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "unit not found"})
}

func (f *FakeMealie) handleFood(w http.ResponseWriter, r *http.Request, id string) {
	for i := range f.foods {
		if f.foods[i].ID != id {
			continue
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, f.foods[i])
		case http.MethodPut:
			var food mealie.Food
			if err := json.NewDecoder(r.Body).Decode(&food); err != nil {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "bad body"})
				return
			}
			// Duplicate alias submissions conflict, like the real server.
			seen := map[string]bool{}
			for _, a := range food.Aliases {
				key := strings.ToLower(a.Name)
				if seen[key] {
					writeJSON(w, http.StatusConflict, map[string]string{"detail": "alias already exists"})
					return
				}
				seen[key] = true
			}
			food.ID = id
			f.foods[i] = food
			writeJSON(w, http.StatusOK, food)
		}
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "food not found"})
}

func (f *FakeMealie) handleIngredient(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method == http.MethodPut {
		f.UpdateCalls[id]++
		if left := f.failUpdates[id]; left > 0 {
			f.failUpdates[id] = left - 1
			writeJSON(w, f.failStatus, map[string]string{"detail": "injected failure"})
			return
		}
	}

	for ri := range f.recipes {
		for ii := range f.recipes[ri].Ingredients {
			ing := &f.recipes[ri].Ingredients[ii]
			if ing.ID != id {
				continue
			}
			switch r.Method {
			case http.MethodGet:
				writeJSON(w, http.StatusOK, ing)
			case http.MethodPut:
				var body mealie.Ingredient
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "bad body"})
					return
				}
				body.ID = id
				*ing = body
				writeJSON(w, http.StatusOK, ing)
			}
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "ingredient not found"})
}

func (f *FakeMealie) handleParse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parser      string   `json:"parser"`
		Ingredients []string `json:"ingredients"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "bad body"})
		return
	}
	conf := 0.5
	type result struct {
		Input      string `json:"input"`
		Confidence struct {
			Average *float64 `json:"average"`
		} `json:"confidence"`
		Ingredient struct {
			Unit *mealie.Unit `json:"unit"`
			Food *mealie.Food `json:"food"`
		} `json:"ingredient"`
	}
	out := make([]result, 0, len(req.Ingredients))
	for _, text := range req.Ingredients {
		var res result
		res.Input = text
		res.Confidence.Average = &conf
		out = append(out, res)
	}
	writeJSON(w, http.StatusOK, out)
}

// writePaged emits the Mealie pagination envelope for the full item set.
// Tests seed small catalogs, so everything fits one page.
func writePaged[T any](w http.ResponseWriter, r *http.Request, items []T) {
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	if perPage <= 0 || perPage >= len(items) {
		writeJSON(w, http.StatusOK, map[string]any{
			"items": items, "total": len(items), "next": "",
		})
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if start > len(items) {
		start = len(items)
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	next := ""
	if end < len(items) {
		next = fmt.Sprintf("%s?page=%d", r.URL.Path, page+1)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items[start:end], "total": len(items), "next": next,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
