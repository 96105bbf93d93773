package festival

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type Filterer struct {
	regions RegionTable
}

func NewFilterer(regions RegionTable) *Filterer {
	return &Filterer{regions: regions}
}

// Matches reports whether view passes every active criterion of filter.
func (f *Filterer) Matches(view View, filter FilterState) bool {
	matched, _ := f.Check(view, filter)
	return matched
}

// Check is Matches plus the reason for a rejection.
func (f *Filterer) Check(view View, filter FilterState) (bool, string) {
	filter = filter.Normalized()

	if len(filter.Keywords) > 0 {
		if !f.matchesKeywords(view, filter.Keywords, filter.Mode) {
			return false, fmt.Sprintf("Excluded by keywords: %s match of %v failed", filter.Mode, filter.Keywords)
		}
	} else if query := strings.TrimSpace(filter.Query); query != "" {
		if !f.matchesQuery(view, query) {
			return false, fmt.Sprintf("Excluded by query: no field contains '%s'", query)
		}
	}

	if filter.Region != RegionAll {
		label, ok := f.regions.Label(filter.Region)
		if !ok || !strings.Contains(view.Location, label) {
			return false, fmt.Sprintf("Excluded by region filter: location does not contain region %s", filter.Region)
		}
	}

	if filter.Season != SeasonAll {
		token, ok := filter.Season.Token()
		if !ok || !slices.Contains(view.Keywords, token) {
			return false, fmt.Sprintf("Excluded by season filter: keywords lack '%s'", token)
		}
	}

	if filter.HasDateRange() {
		period, err := ParsePeriod(view.Period)
		if err != nil {
			return false, fmt.Sprintf("Excluded by date filter: %v", err)
		}
		if !period.Overlaps(*filter.Start, *filter.End) {
			return false, fmt.Sprintf("Excluded by date filter: %s does not overlap %s ~ %s", period, filter.Start, filter.End)
		}
	}

	return true, ""
}

func (f *Filterer) matchesKeywords(view View, keywords []string, mode KeywordMode) bool {
	parts := append([]string{view.Name, view.Description}, view.Keywords...)
	haystack := fold(strings.Join(parts, " "))

	if mode == MatchAll {
		for _, keyword := range keywords {
			if !strings.Contains(haystack, fold(keyword)) {
				return false
			}
		}
		return true
	}

	for _, keyword := range keywords {
		if strings.Contains(haystack, fold(keyword)) {
			return true
		}
	}
	return false
}

func (f *Filterer) matchesQuery(view View, query string) bool {
	needle := fold(query)
	for _, value := range []string{view.Name, view.Location, view.Description} {
		if strings.Contains(fold(value), needle) {
			return true
		}
	}
	return false
}

// fold composes Hangul jamo and applies Unicode case folding.
// A Caser keeps state, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
