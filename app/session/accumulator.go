package session

import (
	"slices"

	"github.com/lysyi3m/festival-comb/app/festival"
)

// Accumulator is the ordered, deduplicated set of summary records fetched so far
// for one mode. It is not safe for concurrent use; the owning Session locks it.
type Accumulator struct {
	records   []festival.SummaryRecord
	index     map[string]int
	nextPage  int
	exhausted bool
	fetching  bool
	epoch     uint64
	err       error
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		index:    make(map[string]int),
		nextPage: 1,
	}
}

// AppendPage adds records whose ID has not been seen, keeping arrival order.
// It returns the number of records added.
func (a *Accumulator) AppendPage(records []festival.SummaryRecord) int {
	added := 0
	for _, record := range records {
		if _, seen := a.index[record.ID]; seen {
			continue
		}
		a.index[record.ID] = len(a.records)
		a.records = append(a.records, record)
		added++
	}
	return added
}

// Reset clears the sequence and cursor. Fetches started before the reset
// complete against an old epoch and are discarded.
func (a *Accumulator) Reset() {
	a.records = nil
	a.index = make(map[string]int)
	a.nextPage = 1
	a.exhausted = false
	a.fetching = false
	a.err = nil
	a.epoch++
}

// BeginFetch claims the single in-flight slot. ok is false while a fetch is
// already running or the source is exhausted.
func (a *Accumulator) BeginFetch() (page int, epoch uint64, ok bool) {
	if a.fetching || a.exhausted {
		return 0, 0, false
	}
	a.fetching = true
	a.err = nil
	return a.nextPage, a.epoch, true
}

// CompleteFetch appends a fetched page. A page shorter than pageSize marks the
// source as exhausted. Returns false when the result belongs to a stale epoch.
func (a *Accumulator) CompleteFetch(epoch uint64, records []festival.SummaryRecord, pageSize int) bool {
	if epoch != a.epoch {
		return false
	}
	a.fetching = false
	a.AppendPage(records)
	a.nextPage++
	if len(records) == 0 || len(records) < pageSize {
		a.exhausted = true
	}
	return true
}

// FailFetch releases the in-flight slot and records err. The sequence and cursor
// are left untouched so the same page is requested again next time.
func (a *Accumulator) FailFetch(epoch uint64, err error) bool {
	if epoch != a.epoch {
		return false
	}
	a.fetching = false
	a.err = err
	return true
}

func (a *Accumulator) HasMore() bool {
	return !a.exhausted
}

func (a *Accumulator) IsFetching() bool {
	return a.fetching
}

// Records returns a copy of the accumulated sequence.
func (a *Accumulator) Records() []festival.SummaryRecord {
	return slices.Clone(a.records)
}

func (a *Accumulator) Len() int {
	return len(a.records)
}

func (a *Accumulator) Get(id string) (festival.SummaryRecord, bool) {
	i, ok := a.index[id]
	if !ok {
		return festival.SummaryRecord{}, false
	}
	return a.records[i], true
}

func (a *Accumulator) Contains(id string) bool {
	_, ok := a.index[id]
	return ok
}

// Err is the error of the most recent failed fetch, cleared by the next attempt.
func (a *Accumulator) Err() error {
	return a.err
}

// PagesLoaded is the number of pages appended since the last reset.
func (a *Accumulator) PagesLoaded() int {
	return a.nextPage - 1
}

func (a *Accumulator) Epoch() uint64 {
	return a.epoch
}
