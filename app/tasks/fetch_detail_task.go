package tasks

import (
	"context"
	"fmt"

	"github.com/lysyi3m/festival-comb/app/festival"
)

type FetchDetailTask struct {
	Task
	ItemID        string
	ContentTypeID string
	source        festival.DetailSource
	sink          DetailSink
}

func NewFetchDetailTask(sessionID, itemID, contentTypeID string, source festival.DetailSource, sink DetailSink) *FetchDetailTask {
	return &FetchDetailTask{
		Task:          NewTask(TaskTypeFetchDetail, sessionID),
		ItemID:        itemID,
		ContentTypeID: contentTypeID,
		source:        source,
		sink:          sink,
	}
}

func (t *FetchDetailTask) Execute(ctx context.Context) error {
	detail, err := t.fetch(ctx)
	t.sink.CompleteDetail(t.ItemID, detail, err)
	return err
}

func (t *FetchDetailTask) fetch(ctx context.Context) (detail festival.DetailRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			detail = festival.DetailRecord{}
			err = festival.NewFetchError(festival.SourceDetail, fmt.Errorf("source panicked: %v", r))
		}
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return festival.DetailRecord{}, festival.AsFetchError(festival.SourceDetail, ctxErr)
	}

	detail, err = t.source.FetchDetail(ctx, t.ItemID, t.ContentTypeID)
	if err != nil {
		return festival.DetailRecord{}, festival.AsFetchError(festival.SourceDetail, err)
	}
	if detail.ID == "" {
		detail.ID = t.ItemID
	}
	return detail, nil
}
