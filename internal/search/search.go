// Package search provides the fuzzy matching used by inventory queries.
package search

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Matcher scores how well query matches text. Zero means no match; higher is
// better.
type Matcher interface {
	Score(query, text string) int
}

// Subsequence matches when every query rune appears in text in order,
// ignoring case. Contiguous and prefix matches score higher.
type Subsequence struct{}

func (Subsequence) Score(query, text string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(text)
	if q == "" {
		return 1
	}
	if i := strings.Index(t, q); i >= 0 {
		score := 100 + utf8.RuneCountInString(q)
		if i == 0 {
			score += 50
		}
		return score
	}

	score, run := 0, 0
	rest := t
	for _, r := range q {
		i := strings.IndexRune(rest, r)
		if i < 0 {
			return 0
		}
		if i == 0 {
			run++
		} else {
			run = 1
		}
		score += run
		rest = rest[i+utf8.RuneLen(r):]
	}
	return score
}

// Filter keeps the items whose best field score is positive, best first.
// Ties keep their input order.
func Filter[T any](m Matcher, query string, items []T, fields func(T) []string) []T {
	if strings.TrimSpace(query) == "" {
		return items
	}

	type scored struct {
		item  T
		score int
	}
	var hits []scored
	for _, item := range items {
		best := 0
		for _, f := range fields(item) {
			best = max(best, m.Score(query, f))
		}
		if best > 0 {
			hits = append(hits, scored{item, best})
		}
	}
	slices.SortStableFunc(hits, func(a, b scored) int { return cmp.Compare(b.score, a.score) })

	out := make([]T, len(hits))
	for i, h := range hits {
		out[i] = h.item
	}
	return out
}
