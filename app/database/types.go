package database

import (
	"time"

	"github.com/lysyi3m/festival-comb/app/festival"
)

// Detail is a persisted festival detail record
type Detail struct {
	ContentID   string
	Period      string
	Venue       string
	Description string
	Content     string
	FetchedAt   time.Time
}

func (d Detail) Record() festival.DetailRecord {
	return festival.DetailRecord{
		ID:          d.ContentID,
		Period:      d.Period,
		Venue:       d.Venue,
		Description: d.Description,
		Content:     d.Content,
	}
}
