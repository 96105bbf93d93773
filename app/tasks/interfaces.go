package tasks

import "github.com/lysyi3m/festival-comb/app/festival"

// TaskSchedulerInterface is what sessions use to hand off fetches.
//
//	scheduler := NewScheduler(30 * time.Second)
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewFetchPageTask(...))
type TaskSchedulerInterface interface {
	EnqueueTask(task TaskInterface) error
	Stop()
}

// PageSink receives the outcome of a page fetch. It is always called exactly
// once per executed FetchPageTask, including on failure.
type PageSink interface {
	CompletePage(epoch uint64, page int, records []festival.SummaryRecord, err error)
}

// DetailSink receives the outcome of a detail fetch.
type DetailSink interface {
	CompleteDetail(id string, detail festival.DetailRecord, err error)
}
