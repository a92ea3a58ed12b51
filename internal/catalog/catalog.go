// Package catalog holds the in-memory snapshot of the server's units and
// foods. Lookups are case-insensitive over names, abbreviations and aliases.
// The cache is mutated as batches create entities or attach aliases, so
// preflight checks within a session always see the session's own writes.
package catalog

import (
	"sort"
	"strings"
	"sync"

	"github.com/kitchenops/mealgroom/internal/mealie"
)

// Catalog indexes the unit and food snapshot. Safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	units []mealie.Unit
	foods []mealie.Food

	// lowercased name/abbreviation/alias -> entity id
	unitIndex map[string]string
	foodIndex map[string]string
}

// New builds a Catalog from a snapshot.
func New(units []mealie.Unit, foods []mealie.Food) *Catalog {
	c := &Catalog{}
	c.Replace(units, foods)
	return c
}

// Replace swaps in a fresh snapshot, discarding local state.
func (c *Catalog) Replace(units []mealie.Unit, foods []mealie.Food) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units = append([]mealie.Unit(nil), units...)
	c.foods = append([]mealie.Food(nil), foods...)
	c.reindex()
}

// ReplaceUnits swaps in a fresh unit snapshot, keeping foods untouched.
func (c *Catalog) ReplaceUnits(units []mealie.Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units = append([]mealie.Unit(nil), units...)
	c.reindex()
}

// ReplaceFoods swaps in a fresh food snapshot, keeping units untouched.
func (c *Catalog) ReplaceFoods(foods []mealie.Food) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.foods = append([]mealie.Food(nil), foods...)
	c.reindex()
}

func (c *Catalog) reindex() {
	c.unitIndex = make(map[string]string, len(c.units)*2)
	for _, u := range c.units {
		indexUnit(c.unitIndex, u)
	}
	c.foodIndex = make(map[string]string, len(c.foods)*2)
	for _, f := range c.foods {
		indexFood(c.foodIndex, f)
	}
}

func indexUnit(idx map[string]string, u mealie.Unit) {
	addKey(idx, u.Name, u.ID)
	addKey(idx, u.Abbreviation, u.ID)
	for _, a := range u.Aliases {
		addKey(idx, a.Name, u.ID)
	}
}

func indexFood(idx map[string]string, f mealie.Food) {
	addKey(idx, f.Name, f.ID)
	for _, a := range f.Aliases {
		addKey(idx, a.Name, f.ID)
	}
}

// addKey keeps the first id for a key. Server catalogs can carry
// overlapping aliases; the earliest entity wins, matching lookup order.
func addKey(idx map[string]string, key, id string) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return
	}
	if _, ok := idx[key]; !ok {
		idx[key] = id
	}
}

// AddUnit inserts a newly created unit into the cache.
func (c *Catalog) AddUnit(u mealie.Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units = append(c.units, u)
	indexUnit(c.unitIndex, u)
}

// AddFood inserts a newly created food into the cache.
func (c *Catalog) AddFood(f mealie.Food) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.foods = append(c.foods, f)
	indexFood(c.foodIndex, f)
}

// UpdateUnit replaces the cached unit with the same id, typically after an
// alias write returned the updated entity.
func (c *Catalog) UpdateUnit(u mealie.Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.units {
		if c.units[i].ID == u.ID {
			c.units[i] = u
			break
		}
	}
	indexUnit(c.unitIndex, u)
}

// UpdateFood replaces the cached food with the same id.
func (c *Catalog) UpdateFood(f mealie.Food) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.foods {
		if c.foods[i].ID == f.ID {
			c.foods[i] = f
			break
		}
	}
	indexFood(c.foodIndex, f)
}

// LookupUnit resolves a name, abbreviation or alias to a unit id.
func (c *Catalog) LookupUnit(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.unitIndex[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// LookupFood resolves a name or alias to a food id.
func (c *Catalog) LookupFood(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.foodIndex[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// UnitByID returns the cached unit with the given id.
func (c *Catalog) UnitByID(id string) (mealie.Unit, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, u := range c.units {
		if u.ID == id {
			return u, true
		}
	}
	return mealie.Unit{}, false
}

// FoodByID returns the cached food with the given id.
func (c *Catalog) FoodByID(id string) (mealie.Food, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.foods {
		if f.ID == id {
			return f, true
		}
	}
	return mealie.Food{}, false
}

// HasUnitAbbreviation reports whether any unit already uses the
// abbreviation (case-insensitive, including aliases and names).
func (c *Catalog) HasUnitAbbreviation(abbr string) bool {
	_, ok := c.LookupUnit(abbr)
	return ok
}

// UnitNames returns every unit surface form (names, abbreviations,
// aliases), lowercased and sorted. The pattern analyzer uses this as its
// unit dictionary.
func (c *Catalog) UnitNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.unitIndex))
	for k := range c.unitIndex {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// FoodNames returns every food surface form, lowercased and sorted.
func (c *Catalog) FoodNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.foodIndex))
	for k := range c.foodIndex {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Counts returns the number of cached units and foods.
func (c *Catalog) Counts() (units, foods int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.units), len(c.foods)
}
