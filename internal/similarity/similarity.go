// Package similarity suggests near-duplicate pattern groups to the
// operator: plurals, abbreviations and small typos. Suggestions are
// advisory; nothing is ever merged automatically.
package similarity

import (
	"sort"
	"strings"

	"github.com/kitchenops/mealgroom/internal/pattern"
)

// DefaultThreshold is the minimum edit-distance ratio for a suggestion.
const DefaultThreshold = 0.85

// maxCandidates caps the suggestions per pattern.
const maxCandidates = 5

// Index computes similar-pattern suggestions over a full pattern set.
type Index struct {
	threshold float64
}

// New creates an Index with the given ratio threshold. Values outside
// [0.5, 1.0] fall back to the default.
func New(threshold float64) *Index {
	if threshold < 0.5 || threshold > 1.0 {
		threshold = DefaultThreshold
	}
	return &Index{threshold: threshold}
}

// Annotate fills in SimilarIDs on every group. Candidates are restricted to
// groups of the same kind sharing a blocking key (first two characters or a
// normalized stem), keeping the comparison tractable for large pattern sets.
func (ix *Index) Annotate(groups []*pattern.Group) {
	buckets := make(map[string][]*pattern.Group)
	for _, g := range groups {
		for _, key := range blockKeys(g) {
			buckets[key] = append(buckets[key], g)
		}
	}

	seen := make(map[string]map[string]bool, len(groups))
	for _, bucket := range buckets {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				a, b := bucket[i], bucket[j]
				if a.Kind != b.Kind || a.ID == b.ID {
					continue
				}
				if !ix.related(a.CanonicalText, b.CanonicalText) {
					continue
				}
				link(seen, a, b.ID)
				link(seen, b, a.ID)
			}
		}
	}

	byID := make(map[string]*pattern.Group, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}

	for _, g := range groups {
		ids := make([]string, 0, len(seen[g.ID]))
		for id := range seen[g.ID] {
			ids = append(ids, id)
		}
		// Most similar first, so the cap keeps the best candidates; id
		// order breaks ties deterministically.
		sort.Slice(ids, func(i, j int) bool {
			ri := Ratio(g.CanonicalText, byID[ids[i]].CanonicalText)
			rj := Ratio(g.CanonicalText, byID[ids[j]].CanonicalText)
			if ri != rj {
				return ri > rj
			}
			return ids[i] < ids[j]
		})
		if len(ids) > maxCandidates {
			ids = ids[:maxCandidates]
		}
		g.SimilarIDs = ids
	}
}

func link(seen map[string]map[string]bool, g *pattern.Group, otherID string) {
	if seen[g.ID] == nil {
		seen[g.ID] = make(map[string]bool)
	}
	seen[g.ID][otherID] = true
}

// related reports whether two canonical texts look like variants of each
// other: same stem, or edit-distance ratio at or above the threshold.
func (ix *Index) related(a, b string) bool {
	if a == b {
		return false
	}
	if Stem(a) == Stem(b) {
		return true
	}
	return Ratio(a, b) >= ix.threshold
}

// blockKeys returns the bucket keys a group participates in.
func blockKeys(g *pattern.Group) []string {
	text := g.CanonicalText
	prefix := text
	if len([]rune(text)) > 2 {
		prefix = string([]rune(text)[:2])
	}
	return []string{
		string(g.Kind) + "|p:" + prefix,
		string(g.Kind) + "|s:" + Stem(text),
	}
}

// Stem applies simple plural and trailing-period normalization so "cups",
// "cup" and "cup." share a bucket.
func Stem(s string) string {
	s = strings.TrimSuffix(s, ".")
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 4:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "es") && len(s) > 3:
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s") && len(s) > 2:
		return s[:len(s)-1]
	}
	return s
}

// Ratio is the normalized edit-distance similarity of two strings, in
// [0, 1]; 1 means equal.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein(ra, rb)
	return 1 - float64(d)/float64(longest)
}

// levenshtein computes edit distance with a rolling single-row table.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur := i
		diag := prev[0]
		prev[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			next := min3(prev[j]+1, cur+1, diag+cost)
			diag = prev[j]
			prev[j] = next
			cur = next
		}
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
