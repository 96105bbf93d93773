package festival

import (
	"cmp"
	"slices"
)

// DefaultFeaturedCount is how many recent festivals are promoted.
const DefaultFeaturedCount = 5

// Pipeline recomputes the filtered view from scratch on every call.
type Pipeline struct {
	regions  RegionTable
	merger   *Merger
	filterer *Filterer
}

func NewPipeline(regions RegionTable) *Pipeline {
	return &Pipeline{
		regions:  regions,
		merger:   NewMerger(regions),
		filterer: NewFilterer(regions),
	}
}

func (p *Pipeline) Regions() RegionTable {
	return p.regions
}

// Run merges every record and keeps those matching filter, preserving order.
func (p *Pipeline) Run(records []SummaryRecord, details Details, filter FilterState) []View {
	return p.Filter(p.Unfiltered(records, details), filter)
}

// Unfiltered is the merged view with no criteria applied.
func (p *Pipeline) Unfiltered(records []SummaryRecord, details Details) []View {
	return p.merger.MergeAll(records, details)
}

func (p *Pipeline) Filter(views []View, filter FilterState) []View {
	filtered := make([]View, 0, len(views))
	for _, view := range views {
		if p.filterer.Matches(view, filter) {
			filtered = append(filtered, view)
		}
	}
	return filtered
}

// Featured returns the n most recently created views. Equal timestamps keep view order.
func Featured(views []View, n int) []View {
	ranked := slices.Clone(views)
	slices.SortStableFunc(ranked, func(a, b View) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
