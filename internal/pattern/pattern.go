// Package pattern turns a recipe snapshot into groups of unparsed
// ingredients sharing a canonical textual fragment. The analyzer is pure:
// no I/O, and deterministic for a given snapshot and unit dictionary.
package pattern

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Kind distinguishes unit patterns from food patterns.
type Kind string

const (
	KindUnit Kind = "unit"
	KindFood Kind = "food"
)

// Status is the lifecycle state of a pattern group within a session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusSkipped    Status = "skipped"
)

// CanTransition reports whether the status machine permits moving from s
// to next:
//
//	pending    -> processing | skipped
//	processing -> completed | pending
//	skipped    -> pending
//	completed  -> (terminal for the session)
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusSkipped
	case StatusProcessing:
		return next == StatusCompleted || next == StatusPending
	case StatusSkipped:
		return next == StatusPending
	default:
		return false
	}
}

// Ref identifies one ingredient within one recipe.
type Ref struct {
	RecipeID     string `json:"recipe_id"`
	IngredientID string `json:"ingredient_id"`
}

func (r Ref) String() string {
	return r.RecipeID + "/" + r.IngredientID
}

// Group is the set of unparsed ingredients sharing one canonical fragment.
type Group struct {
	ID            string
	Kind          Kind
	CanonicalText string
	// DisplayText is the first observed raw fragment, shown to the
	// operator instead of the canonical form.
	DisplayText string
	Ingredients []Ref
	RecipeIDs   []string
	// SimilarIDs holds advisory near-duplicate group ids of the same
	// kind, filled in by the similarity index.
	SimilarIDs []string
	Status     Status
}

// Canonicalize normalizes a fragment: NFKC, lowercase, whitespace collapsed
// and trimmed. Two inputs differing only in case, surrounding whitespace or
// Unicode compatibility forms canonicalize identically.
func Canonicalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// GroupID derives the stable id for a (kind, canonical text) pair.
func GroupID(kind Kind, canonical string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x1f%s", kind, canonical)))
	return "p-" + hex.EncodeToString(sum[:])[:12]
}

// usable reports whether a canonical fragment is worth grouping: it must
// contain at least one letter. Purely numeric or punctuation-only fragments
// carry no pattern.
func usable(canonical string) bool {
	for _, r := range canonical {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
