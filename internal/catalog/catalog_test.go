package catalog

import (
	"testing"

	"github.com/kitchenops/mealgroom/internal/mealie"
)

func sample() *Catalog {
	units := []mealie.Unit{
		{ID: "u1", Name: "cup", Abbreviation: "c", Aliases: []mealie.Alias{{Name: "cups"}}},
		{ID: "u2", Name: "tablespoon", Abbreviation: "tbsp"},
	}
	foods := []mealie.Food{
		{ID: "f1", Name: "Tomato", Aliases: []mealie.Alias{{Name: "tomatoes"}}},
		{ID: "f2", Name: "Flour"},
	}
	return New(units, foods)
}

func TestLookup_caseInsensitive(t *testing.T) {
	c := sample()

	cases := []struct {
		name string
		want string
	}{
		{"CUP", "u1"},
		{"Cups", "u1"},
		{"c", "u1"},
		{"TBSP", "u2"},
		{" tablespoon ", "u2"},
	}
	for _, tc := range cases {
		id, ok := c.LookupUnit(tc.name)
		if !ok || id != tc.want {
			t.Errorf("LookupUnit(%q) = %q, %v; want %q", tc.name, id, ok, tc.want)
		}
	}

	if id, ok := c.LookupFood("TOMATOES"); !ok || id != "f1" {
		t.Errorf("LookupFood alias = %q, %v", id, ok)
	}
	if _, ok := c.LookupFood("basil"); ok {
		t.Error("unexpected hit for unknown food")
	}
}

func TestAdd_visibleImmediately(t *testing.T) {
	c := sample()
	c.AddUnit(mealie.Unit{ID: "u3", Name: "Pinch", Abbreviation: "pn"})

	if id, ok := c.LookupUnit("pinch"); !ok || id != "u3" {
		t.Fatalf("LookupUnit after AddUnit = %q, %v", id, ok)
	}
	if !c.HasUnitAbbreviation("PN") {
		t.Error("abbreviation not indexed")
	}
	units, foods := c.Counts()
	if units != 3 || foods != 2 {
		t.Errorf("Counts = %d, %d", units, foods)
	}
}

func TestUpdateFood_indexesNewAlias(t *testing.T) {
	c := sample()
	f, _ := c.FoodByID("f1")
	f.Aliases = append(f.Aliases, mealie.Alias{Name: "roma tomato"})
	c.UpdateFood(f)

	if id, ok := c.LookupFood("Roma Tomato"); !ok || id != "f1" {
		t.Errorf("LookupFood new alias = %q, %v", id, ok)
	}
	got, _ := c.FoodByID("f1")
	if len(got.Aliases) != 2 {
		t.Errorf("cached aliases = %+v", got.Aliases)
	}
}

func TestReplace_dropsOldEntries(t *testing.T) {
	c := sample()
	c.Replace([]mealie.Unit{{ID: "u9", Name: "gram"}}, nil)

	if _, ok := c.LookupUnit("cup"); ok {
		t.Error("stale unit survived Replace")
	}
	if id, ok := c.LookupUnit("gram"); !ok || id != "u9" {
		t.Errorf("LookupUnit(gram) = %q, %v", id, ok)
	}
}

func TestUnitNames_sortedSurfaceForms(t *testing.T) {
	c := sample()
	names := c.UnitNames()
	want := map[string]bool{"cup": true, "cups": true, "c": true, "tablespoon": true, "tbsp": true}
	if len(names) != len(want) {
		t.Fatalf("UnitNames = %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("UnitNames not sorted: %v", names)
		}
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected surface form %q", n)
		}
	}
}
