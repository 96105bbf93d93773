package api

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/festival-comb/app/database"
	"github.com/lysyi3m/festival-comb/app/festival"
	"github.com/lysyi3m/festival-comb/app/session"
)

type GeneratorInterface interface {
	Run(channel festival.Channel, views []festival.View, now time.Time) (string, error)
}

var _ GeneratorInterface = (*festival.Generator)(nil)

type Handler struct {
	registry  *session.Registry
	details   database.DetailRepository
	generator GeneratorInterface
	regions   festival.RegionTable
	baseURL   string
	version   string
	now       func() time.Time
}

type queryRequest struct {
	Query string `json:"query" binding:"max=200"`
}

type keywordsRequest struct {
	Keywords []string `json:"keywords" binding:"required,min=1,dive,required,max=100"`
	Mode     string   `json:"mode" binding:"omitempty,oneof=all any"`
}

type filterRequest struct {
	Query    string   `json:"query" binding:"max=200"`
	Keywords []string `json:"keywords" binding:"omitempty,dive,required,max=100"`
	Mode     string   `json:"mode" binding:"omitempty,oneof=all any"`
	Region   string   `json:"region"`
	Season   string   `json:"season" binding:"omitempty,oneof=all spring summer autumn winter"`
	Start    string   `json:"start" binding:"omitempty,datetime=2006-01-02"`
	End      string   `json:"end" binding:"omitempty,datetime=2006-01-02"`
}

var errBlankKeywords = errors.New("keywords must not all be blank")

func hasKeyword(keywords []string) bool {
	return slices.ContainsFunc(keywords, func(k string) bool { return strings.TrimSpace(k) != "" })
}

func (r filterRequest) toFilter() (festival.FilterState, error) {
	if len(r.Keywords) > 0 && !hasKeyword(r.Keywords) {
		return festival.FilterState{}, errBlankKeywords
	}

	filter := festival.FilterState{
		Query:    r.Query,
		Keywords: r.Keywords,
		Mode:     festival.KeywordMode(r.Mode),
		Region:   r.Region,
		Season:   festival.Season(r.Season),
	}

	if (r.Start == "") != (r.End == "") {
		return filter, fmt.Errorf("start and end must be given together")
	}
	if r.Start != "" {
		start, err := festival.ParseDate(r.Start)
		if err != nil {
			return filter, err
		}
		end, err := festival.ParseDate(r.End)
		if err != nil {
			return filter, err
		}
		filter.Start, filter.End = &start, &end
	}

	return filter, nil
}

type detailsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,max=100,dive,required"`
}

type detailRequest struct {
	Period      string `json:"period"`
	Venue       string `json:"venue"`
	Description string `json:"description"`
}

type itemResponse struct {
	ID             string   `json:"id"`
	ContentTypeID  string   `json:"content_type_id"`
	Name           string   `json:"name"`
	AreaCode       string   `json:"area_code"`
	Location       string   `json:"location"`
	Keywords       []string `json:"keywords"`
	Period         string   `json:"period"`
	Venue          string   `json:"venue"`
	Description    string   `json:"description"`
	Content        string   `json:"content,omitempty"`
	Image          string   `json:"image,omitempty"`
	Image2         string   `json:"image2,omitempty"`
	DetailResolved bool     `json:"detail_resolved"`
	Ended          bool     `json:"ended"`
}

type filterResponse struct {
	Query    string         `json:"query"`
	Keywords []string       `json:"keywords"`
	Mode     string         `json:"mode"`
	Region   string         `json:"region"`
	Season   string         `json:"season"`
	Start    *festival.Date `json:"start"`
	End      *festival.Date `json:"end"`
}

type snapshotResponse struct {
	ID              string         `json:"id"`
	Version         uint64         `json:"version"`
	Status          string         `json:"status"`
	Mode            string         `json:"mode"`
	Searching       bool           `json:"searching"`
	SearchKeyword   string         `json:"search_keyword,omitempty"`
	Filter          filterResponse `json:"filter"`
	Items           []itemResponse `json:"items"`
	Featured        []itemResponse `json:"featured"`
	Total           int            `json:"total"`
	PagesLoaded     int            `json:"pages_loaded"`
	HasMore         bool           `json:"has_more"`
	IsFetchingNext  bool           `json:"is_fetching_next"`
	Error           string         `json:"error,omitempty"`
	LoadMoreError   string         `json:"load_more_error,omitempty"`
	NoResults       bool           `json:"no_results"`
	PendingDetails  int            `json:"pending_details"`
	ResolvedDetails int            `json:"resolved_details"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func newItemResponses(views []festival.View, today festival.Date) []itemResponse {
	items := make([]itemResponse, 0, len(views))
	for _, view := range views {
		item := itemResponse{
			ID:             view.ID,
			ContentTypeID:  view.ContentTypeID,
			Name:           view.Name,
			AreaCode:       view.AreaCode,
			Location:       view.Location,
			Keywords:       view.Keywords,
			Period:         view.Period,
			Venue:          view.Venue,
			Description:    view.Description,
			Content:        view.Content,
			Image:          view.Image,
			Image2:         view.Image2,
			DetailResolved: view.DetailResolved,
		}
		if period, err := festival.ParsePeriod(view.Period); err == nil {
			item.Ended = period.Ended(today)
		}
		items = append(items, item)
	}
	return items
}

func newSnapshotResponse(snapshot *session.Snapshot, today festival.Date) snapshotResponse {
	resp := snapshotResponse{
		ID:            snapshot.SessionID,
		Version:       snapshot.Version,
		Status:        string(snapshot.Status),
		Mode:          snapshot.Mode,
		Searching:     snapshot.Searching,
		SearchKeyword: snapshot.SearchKeyword,
		Filter: filterResponse{
			Query:    snapshot.Filter.Query,
			Keywords: snapshot.Filter.Keywords,
			Mode:     string(snapshot.Filter.Mode),
			Region:   snapshot.Filter.Region,
			Season:   string(snapshot.Filter.Season),
			Start:    snapshot.Filter.Start,
			End:      snapshot.Filter.End,
		},
		Items:           newItemResponses(snapshot.Items, today),
		Featured:        newItemResponses(snapshot.Featured, today),
		Total:           snapshot.Total,
		PagesLoaded:     snapshot.PagesLoaded,
		HasMore:         snapshot.HasMore,
		IsFetchingNext:  snapshot.IsFetchingNext,
		NoResults:       snapshot.NoResults,
		PendingDetails:  snapshot.PendingDetails,
		ResolvedDetails: snapshot.ResolvedDetails,
		UpdatedAt:       snapshot.UpdatedAt,
	}
	if snapshot.Error != nil {
		resp.Error = snapshot.Error.Error()
	}
	if snapshot.LoadMoreError != nil {
		resp.LoadMoreError = snapshot.LoadMoreError.Error()
	}
	return resp
}
