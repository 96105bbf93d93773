package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/festival-comb/app/festival"
)

type FetchPageTask struct {
	Task
	Mode    festival.Mode
	Page    int
	Epoch   uint64
	listing festival.ListingSource
	search  festival.SearchSource
	sink    PageSink
}

func NewFetchPageTask(sessionID string, mode festival.Mode, page int, epoch uint64,
	listing festival.ListingSource, search festival.SearchSource, sink PageSink) *FetchPageTask {
	return &FetchPageTask{
		Task:    NewTask(TaskTypeFetchPage, sessionID),
		Mode:    mode,
		Page:    page,
		Epoch:   epoch,
		listing: listing,
		search:  search,
		sink:    sink,
	}
}

func (t *FetchPageTask) Execute(ctx context.Context) error {
	records, err := t.fetch(ctx)
	t.sink.CompletePage(t.Epoch, t.Page, records, err)
	if err != nil {
		return err
	}

	slog.Debug("Page fetched",
		"session", t.SessionID,
		"mode", t.Mode.String(),
		"page", t.Page,
		"records", len(records),
		"duration", t.GetDuration())

	return nil
}

// fetch turns a panicking source into a FetchError so the sink always hears back.
func (t *FetchPageTask) fetch(ctx context.Context) (records []festival.SummaryRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = festival.NewFetchError(t.source(), fmt.Errorf("source panicked: %v", r))
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	switch mode := t.Mode.(type) {
	case festival.Browsing:
		records, err = t.listing.FetchPage(ctx, mode.Params, t.Page)
		return records, festival.AsFetchError(festival.SourceListing, err)
	case festival.Searching:
		records, err = t.search.FetchSearchPage(ctx, mode.Keyword, t.Page)
		return records, festival.AsFetchError(festival.SourceSearch, err)
	default:
		return nil, fmt.Errorf("unsupported mode %T", t.Mode)
	}
}

func (t *FetchPageTask) source() string {
	if _, ok := t.Mode.(festival.Searching); ok {
		return festival.SourceSearch
	}
	return festival.SourceListing
}
