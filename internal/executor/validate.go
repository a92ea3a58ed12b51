package executor

import (
	"fmt"
	"strings"

	"github.com/kitchenops/mealgroom/internal/catalog"
)

const (
	maxNameLength         = 100
	maxAbbreviationLength = 20
)

// disallowedChars would break the service's rendering or query layers.
const disallowedChars = "<>&;|"

// ValidationError carries the offending field and reason, surfaced to the
// operator before any remote call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// preflight checks an operation against the cached catalogs only. A nil
// return means the operation may proceed to remote calls.
func preflight(op Operation, cat *catalog.Catalog) error {
	switch op.Kind {
	case OpCreateUnit:
		if err := checkName(op.Name); err != nil {
			return err
		}
		abbr := strings.TrimSpace(op.Abbreviation)
		if abbr != "" {
			if err := checkAbbreviation(abbr); err != nil {
				return err
			}
			if cat.HasUnitAbbreviation(abbr) {
				return &ValidationError{Field: "abbreviation",
					Reason: fmt.Sprintf("%q is already used by an existing unit", abbr)}
			}
		}
		if _, exists := cat.LookupUnit(op.Name); exists {
			return &ValidationError{Field: "name",
				Reason: fmt.Sprintf("a unit named %q already exists", op.Name)}
		}
		return nil

	case OpCreateFood:
		if err := checkName(op.Name); err != nil {
			return err
		}
		if _, exists := cat.LookupFood(op.Name); exists {
			return &ValidationError{Field: "name",
				Reason: fmt.Sprintf("a food named %q already exists", op.Name)}
		}
		return nil

	case OpAddFoodAlias:
		if err := checkAlias(op.Alias); err != nil {
			return err
		}
		food, ok := cat.FoodByID(op.TargetID)
		if !ok {
			return &ValidationError{Field: "target",
				Reason: "selected food no longer exists in the catalog"}
		}
		for _, a := range food.Aliases {
			if strings.EqualFold(a.Name, strings.TrimSpace(op.Alias)) {
				return &ValidationError{Field: "alias",
					Reason: fmt.Sprintf("%q is already an alias of %q", op.Alias, food.Name)}
			}
		}
		return nil

	case OpAddUnitAlias:
		if err := checkAlias(op.Alias); err != nil {
			return err
		}
		unit, ok := cat.UnitByID(op.TargetID)
		if !ok {
			return &ValidationError{Field: "target",
				Reason: "selected unit no longer exists in the catalog"}
		}
		for _, a := range unit.Aliases {
			if strings.EqualFold(a.Name, strings.TrimSpace(op.Alias)) {
				return &ValidationError{Field: "alias",
					Reason: fmt.Sprintf("%q is already an alias of %q", op.Alias, unit.Name)}
			}
		}
		return nil

	default:
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown operation %q", op.Kind)}
	}
}

func checkName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len([]rune(name)) > maxNameLength {
		return &ValidationError{Field: "name",
			Reason: fmt.Sprintf("must be at most %d characters", maxNameLength)}
	}
	if i := strings.IndexAny(name, disallowedChars); i >= 0 {
		return &ValidationError{Field: "name",
			Reason: fmt.Sprintf("must not contain %q", name[i:i+1])}
	}
	return nil
}

func checkAbbreviation(abbr string) error {
	if len([]rune(abbr)) > maxAbbreviationLength {
		return &ValidationError{Field: "abbreviation",
			Reason: fmt.Sprintf("must be at most %d characters", maxAbbreviationLength)}
	}
	if strings.ContainsAny(abbr, " \t") {
		return &ValidationError{Field: "abbreviation", Reason: "must not contain spaces"}
	}
	if i := strings.IndexAny(abbr, disallowedChars); i >= 0 {
		return &ValidationError{Field: "abbreviation",
			Reason: fmt.Sprintf("must not contain %q", abbr[i:i+1])}
	}
	return nil
}

func checkAlias(alias string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return &ValidationError{Field: "alias", Reason: "must not be empty"}
	}
	if len([]rune(alias)) > maxNameLength {
		return &ValidationError{Field: "alias",
			Reason: fmt.Sprintf("must be at most %d characters", maxNameLength)}
	}
	if i := strings.IndexAny(alias, disallowedChars); i >= 0 {
		return &ValidationError{Field: "alias",
			Reason: fmt.Sprintf("must not contain %q", alias[i:i+1])}
	}
	return nil
}
