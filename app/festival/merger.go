package festival

import "cmp"

// Merger combines summaries with cached details. It holds no mutable state.
type Merger struct {
	regions RegionTable
}

func NewMerger(regions RegionTable) *Merger {
	return &Merger{regions: regions}
}

func (m *Merger) Merge(summary SummaryRecord, details Details) View {
	view := View{
		ID:            summary.ID,
		ContentTypeID: summary.ContentTypeID,
		Name:          summary.Title,
		AreaCode:      summary.AreaCode,
		Location:      m.location(summary),
		Keywords:      m.keywords(summary),
		Period:        PlaceholderPeriod,
		Description:   summary.Overview,
		Image:         summary.Image,
		Image2:        summary.Image2,
		CreatedAt:     summary.CreatedAt,
	}

	if detail, ok := details[summary.ID]; ok {
		view.Period = cmp.Or(detail.Period, PlaceholderPeriod)
		view.Venue = detail.Venue
		view.Description = cmp.Or(detail.Description, summary.Overview)
		view.Content = detail.Content
		view.DetailResolved = true
	}

	return view
}

func (m *Merger) MergeAll(summaries []SummaryRecord, details Details) []View {
	views := make([]View, 0, len(summaries))
	for _, summary := range summaries {
		views = append(views, m.Merge(summary, details))
	}
	return views
}

// location is "<region> <addr1>, <addr2>" with missing parts omitted.
func (m *Merger) location(s SummaryRecord) string {
	location, ok := m.regions.Label(s.AreaCode)
	if !ok {
		location = UnknownRegionLabel
	}
	if s.Addr1 != "" {
		location += " " + s.Addr1
	}
	if s.Addr2 != "" {
		location += ", " + s.Addr2
	}
	return location
}

func (m *Merger) keywords(s SummaryRecord) []string {
	if label, ok := m.regions.Label(s.AreaCode); ok {
		return []string{label}
	}
	return []string{}
}
