package search

import (
	"math"
)

// FilterFunc reports whether a result should be kept.
type FilterFunc func(r *Result) bool

// buildFilters returns the filters for opts. Filters combine with AND.
func buildFilters(opts Options) []FilterFunc {
	var filters []FilterFunc
	if len(opts.FilepathsFilter) > 0 {
		filters = append(filters, filepathFilter(opts.FilepathsFilter))
	}
	if len(opts.LanguagesFilter) > 0 {
		filters = append(filters, languageFilter(opts.LanguagesFilter))
	}
	return filters
}

// applyFilters keeps results matching every filter, preserving order.
func applyFilters(results []*Result, filters []FilterFunc) []*Result {
	if len(filters) == 0 {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if matchesAll(r, filters) {
			kept = append(kept, r)
		}
	}
	return kept
}

func matchesAll(r *Result, filters []FilterFunc) bool {
	for _, f := range filters {
		if !f(r) {
			return false
		}
	}
	return true
}

func filepathFilter(uris []string) FilterFunc {
	set := toSet(uris)
	return func(r *Result) bool {
		_, ok := set[r.URI]
		return ok
	}
}

func languageFilter(languages []string) FilterFunc {
	set := toSet(languages)
	return func(r *Result) bool {
		_, ok := set[r.Language]
		return ok
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// normalizeScore maps engine scores onto [0, +Inf]. NaN and negative values,
// -Inf included, become 0 so that sorting stays total. +Inf is kept: it is the
// strongest possible match.
func normalizeScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	return score
}
