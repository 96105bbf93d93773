package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/festival-comb/app/festival"
	"github.com/lysyi3m/festival-comb/app/tasks"
)

// manualEnqueuer queues tasks until the test runs them, so completion order is
// under test control.
type manualEnqueuer struct {
	mu    sync.Mutex
	queue []tasks.TaskInterface
	err   error
}

func (m *manualEnqueuer) EnqueueTask(task tasks.TaskInterface) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.queue = append(m.queue, task)
	return nil
}

func (m *manualEnqueuer) take() []tasks.TaskInterface {
	m.mu.Lock()
	defer m.mu.Unlock()
	queued := m.queue
	m.queue = nil
	return queued
}

func (m *manualEnqueuer) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// runAll executes queued tasks, including ones queued while running, in FIFO order.
func (m *manualEnqueuer) runAll() {
	for {
		queued := m.take()
		if len(queued) == 0 {
			return
		}
		for _, task := range queued {
			_ = task.Execute(context.Background())
		}
	}
}

// runReversed executes the currently queued tasks last-in first.
func (m *manualEnqueuer) runReversed() {
	queued := m.take()
	for i := len(queued) - 1; i >= 0; i-- {
		_ = queued[i].Execute(context.Background())
	}
}

type stubSource struct {
	mu          sync.Mutex
	listing     func(params festival.BrowseParams, page int) ([]festival.SummaryRecord, error)
	search      func(keyword string, page int) ([]festival.SummaryRecord, error)
	detail      func(id string) (festival.DetailRecord, error)
	listCalls   int
	searchCalls int
	detailCalls int
}

func (s *stubSource) FetchPage(ctx context.Context, params festival.BrowseParams, page int) ([]festival.SummaryRecord, error) {
	s.mu.Lock()
	s.listCalls++
	s.mu.Unlock()
	return s.listing(params, page)
}

func (s *stubSource) FetchSearchPage(ctx context.Context, keyword string, page int) ([]festival.SummaryRecord, error) {
	s.mu.Lock()
	s.searchCalls++
	s.mu.Unlock()
	return s.search(keyword, page)
}

func (s *stubSource) FetchDetail(ctx context.Context, id, contentTypeID string) (festival.DetailRecord, error) {
	s.mu.Lock()
	s.detailCalls++
	s.mu.Unlock()
	return s.detail(id)
}

func catalog() map[int][]festival.SummaryRecord {
	return map[int][]festival.SummaryRecord{
		1: {
			{ID: "A1", ContentTypeID: "15", Title: "광화문 음악회", AreaCode: "1", Addr1: "종로구"},
			{ID: "B1", ContentTypeID: "15", Title: "해운대 모래축제", AreaCode: "6", Addr1: "해운대구"},
		},
		2: {
			{ID: "B1", ContentTypeID: "15", Title: "duplicate", AreaCode: "6"},
			{ID: "C1", ContentTypeID: "15", Title: "보령 머드축제", AreaCode: "34"},
		},
		3: {
			{ID: "D1", ContentTypeID: "15", Title: "진해 군항제", AreaCode: "36"},
		},
	}
}

func newStubSource() *stubSource {
	pages := catalog()
	return &stubSource{
		listing: func(params festival.BrowseParams, page int) ([]festival.SummaryRecord, error) {
			return pages[page], nil
		},
		search: func(keyword string, page int) ([]festival.SummaryRecord, error) {
			if page > 1 {
				return nil, nil
			}
			return []festival.SummaryRecord{{ID: "S1", ContentTypeID: "15", Title: keyword + " 축제", AreaCode: "1"}}, nil
		},
		detail: func(id string) (festival.DetailRecord, error) {
			return festival.DetailRecord{ID: id, Period: "2024.07.01 ~ 2024.07.03", Description: "detail " + id}, nil
		},
	}
}

func newTestSession(t *testing.T, source *stubSource, opts Options) (*Session, *manualEnqueuer) {
	t.Helper()
	if opts.PageSize == 0 {
		opts.PageSize = 2
	}
	enqueuer := &manualEnqueuer{}
	pipeline := festival.NewPipeline(festival.DefaultRegionTable())
	s := New("test", pipeline, Sources{Listing: source, Search: source, Detail: source}, enqueuer, opts)
	return s, enqueuer
}

func itemIDs(snapshot *Snapshot) []string {
	ids := make([]string, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func dateRef(t *testing.T, s string) *festival.Date {
	t.Helper()
	d, err := festival.ParseDate(s)
	require.NoError(t, err)
	return &d
}

func TestSession_New_PublishesIdleSnapshot(t *testing.T) {
	s, enqueuer := newTestSession(t, newStubSource(), Options{})

	snapshot := s.Snapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, StatusIdle, snapshot.Status)
	assert.Equal(t, "browsing", snapshot.Mode)
	assert.True(t, snapshot.HasMore)
	assert.Empty(t, snapshot.Items)
	assert.Equal(t, 0, enqueuer.pending())
}

func TestSession_Start_LoadsFirstPage(t *testing.T) {
	source := newStubSource()
	s, enqueuer := newTestSession(t, source, Options{})

	s.Start()
	assert.Equal(t, StatusLoading, s.Snapshot().Status)
	assert.True(t, s.Snapshot().IsFetchingNext)

	s.Start()
	assert.Equal(t, 1, enqueuer.pending(), "Start is a no-op once started")

	enqueuer.runAll()

	snapshot := s.Snapshot()
	assert.Equal(t, StatusReady, snapshot.Status)
	assert.Equal(t, []string{"A1", "B1"}, itemIDs(snapshot))
	assert.False(t, snapshot.IsFetchingNext)
	assert.True(t, snapshot.HasMore)
	assert.Equal(t, festival.PlaceholderPeriod, snapshot.Items[0].Period)
	assert.Equal(t, 1, source.listCalls)
}

func TestSession_FetchNext_DebouncedAndDeduplicated(t *testing.T) {
	source := newStubSource()
	s, enqueuer := newTestSession(t, source, Options{})
	s.Start()
	enqueuer.runAll()

	assert.True(t, s.FetchNext())
	assert.False(t, s.FetchNext(), "second trigger while fetching is a no-op")
	assert.False(t, s.FetchNext())
	assert.Equal(t, 1, enqueuer.pending())

	enqueuer.runAll()
	assert.Equal(t, []string{"A1", "B1", "C1"}, itemIDs(s.Snapshot()))

	first, _ := s.acc.Get("B1")
	assert.Equal(t, "해운대 모래축제", first.Title, "first occurrence wins")

	require.True(t, s.FetchNext())
	enqueuer.runAll()

	snapshot := s.Snapshot()
	assert.Equal(t, []string{"A1", "B1", "C1", "D1"}, itemIDs(snapshot))
	assert.False(t, snapshot.HasMore, "short page exhausts the source")
	assert.False(t, s.FetchNext())
	assert.Equal(t, 3, source.listCalls)
}

func TestSession_SwitchToSearch_ResetsAccumulator(t *testing.T) {
	source := newStubSource()
	s, enqueuer := newTestSession(t, source, Options{})
	s.Start()
	enqueuer.runAll()
	require.Equal(t, 2, s.Snapshot().Total)

	require.NoError(t, s.SetQuery("불꽃"))

	snapshot := s.Snapshot()
	assert.True(t, snapshot.Searching)
	assert.Equal(t, "searching(불꽃)", snapshot.Mode)
	assert.Equal(t, 0, snapshot.Total, "browse records do not leak into search mode")
	assert.Equal(t, StatusLoading, snapshot.Status)

	enqueuer.runAll()

	snapshot = s.Snapshot()
	assert.Equal(t, []string{"S1"}, itemIDs(snapshot))
	assert.Equal(t, 1, source.searchCalls)

	require.NoError(t, s.ResetFilters())
	enqueuer.runAll()
	assert.Equal(t, []string{"A1", "B1"}, itemIDs(s.Snapshot()))
	assert.Equal(t, 2, source.listCalls)
}

func TestSession_KeywordChangeWithSameSearchTerm_KeepsAccumulator(t *testing.T) {
	source := newStubSource()
	s, enqueuer := newTestSession(t, source, Options{})
	s.Start()
	enqueuer.runAll()

	require.NoError(t, s.ApplyKeywords([]string{"서울"}, festival.MatchAll))
	enqueuer.runAll()
	require.Equal(t, 1, source.searchCalls)

	require.NoError(t, s.ApplyKeywords([]string{"서울", "축제"}, festival.MatchAny))
	assert.Equal(t, 0, enqueuer.pending(), "same upstream keyword does not refetch")
	assert.Equal(t, []string{"S1"}, itemIDs(s.Snapshot()))
}

func TestSession_StalePageAfterModeSwitchIsDiscarded(t *testing.T) {
	source := newStubSource()
	s, enqueuer := newTestSession(t, source, Options{})
	s.Start()
	browseTask := enqueuer.take()
	require.Len(t, browseTask, 1)

	require.NoError(t, s.SetQuery("불꽃"))
	enqueuer.runAll()

	_ = browseTask[0].Execute(context.Background())

	assert.Equal(t, []string{"S1"}, itemIDs(s.Snapshot()))
}

func TestSession_RegionChangeIsClientSideByDefault(t *testing.T) {
	source := newStubSource()
	s, enqueuer := newTestSession(t, source, Options{})
	s.Start()
	enqueuer.runAll()

	require.NoError(t, s.SetRegion("6"))

	assert.Equal(t, 0, enqueuer.pending())
	assert.Equal(t, []string{"B1"}, itemIDs(s.Snapshot()))
}

func TestSession_DelegatedRegionResetsAccumulator(t *testing.T) {
	source := newStubSource()
	var seen []string
	source.listing = func(params festival.BrowseParams, page int) ([]festival.SummaryRecord, error) {
		seen = append(seen, params.AreaCode)
		return catalog()[page], nil
	}
	s, enqueuer := newTestSession(t, source, Options{DelegateRegion: true})
	s.Start()
	enqueuer.runAll()

	require.NoError(t, s.SetRegion("6"))
	assert.Equal(t, "browsing(area=6)", s.Snapshot().Mode)
	enqueuer.runAll()

	assert.Equal(t, []string{"", "6"}, seen)
}

func TestSession_RegionScenarioWithLateDetail(t *testing.T) {
	source := newStubSource()
	source.listing = func(params festival.BrowseParams, page int) ([]festival.SummaryRecord, error) {
		return []festival.SummaryRecord{{ID: "A1", ContentTypeID: "15", Title: "종로 축제", AreaCode: "1"}}, nil
	}
	s, enqueuer := newTestSession(t, source, Options{})
	s.Start()
	enqueuer.runAll()

	require.NoError(t, s.SetRegion("1"))
	assert.Equal(t, []string{"A1"}, itemIDs(s.Snapshot()), "서울 is mapped from code 1")

	require.Equal(t, 1, s.RequestDetails([]string{"A1"}))
	enqueuer.runAll()

	snapshot := s.Snapshot()
	assert.Equal(t, []string{"A1"}, itemIDs(snapshot), "still visible without a date filter")
	assert.Equal(t, "2024.07.01 ~ 2024.07.03", snapshot.Items[0].Period)

	require.NoError(t, s.SetDateRange(dateRef(t, "2024-06-01"), dateRef(t, "2024-06-30")))
	assert.Empty(t, itemIDs(s.Snapshot()))
	assert.True(t, s.Snapshot().NoResults)
	assert.Equal(t, 0, enqueuer.pending(), "date filtering never refetches")
	assert.Equal(t, 1, source.listCalls)
	assert.Equal(t, 1, source.detailCalls)
}

func TestSession_UnresolvedRecordReappearsWhenDetailResolves(t *testing.T) {
	source := newStubSource()
	s, enqueuer := newTestSession(t, source, Options{})
	s.Start()
	enqueuer.runAll()

	require.NoError(t, s.SetDateRange(dateRef(t, "2024-07-02"), dateRef(t, "2024-07-10")))
	assert.Empty(t, itemIDs(s.Snapshot()), "placeholder periods are excluded by a date filter")

	s.RequestDetails([]string{"A1"})
	enqueuer.runAll()

	assert.Equal(t, []string{"A1"}, itemIDs(s.Snapshot()))
	assert.Equal(t, 1, source.listCalls)
}

func TestSession_RequestDetails_Idempotent(t *testing.T) {
	source := newStubSource()
	s, enqueuer := newTestSession(t, source, Options{})
	s.Start()
	enqueuer.runAll()

	assert.Equal(t, 2, s.RequestDetails([]string{"A1", "B1", "unknown"}))
	assert.Equal(t, 0, s.RequestDetails([]string{"A1", "B1"}), "pending requests are not re-issued")
	assert.Equal(t, 2, s.Snapshot().PendingDetails)

	enqueuer.runAll()
	assert.Equal(t, 0, s.RequestDetails([]string{"A1"}), "resolved entries are not re-issued")
	assert.Equal(t, 2, source.detailCalls)
	assert.Equal(t, 2, s.Snapshot().ResolvedDetails)
}

func TestSession_DetailFailure_IsSilent(t *testing.T) {
	source := newStubSource()
	source.detail = func(id string) (festival.DetailRecord, error) {
		return festival.DetailRecord{}, errors.New("HTTP error: 503")
	}
	s, enqueuer := newTestSession(t, source, Options{})
	s.Start()
	enqueuer.runAll()

	s.RequestDetails([]string{"A1"})
	enqueuer.runAll()

	snapshot := s.Snapshot()
	assert.Equal(t, StatusReady, snapshot.Status)
	assert.NoError(t, snapshot.Error)
	assert.NoError(t, snapshot.LoadMoreError)
	assert.Equal(t, festival.PlaceholderPeriod, snapshot.Items[0].Period)
	assert.Equal(t, 0, snapshot.PendingDetails)

	assert.Equal(t, 1, s.RequestDetails([]string{"A1"}), "a failed detail can be re-triggered")
}

func TestSession_DetailResolutionOrderIsConfluent(t *testing.T) {
	run := func(reverse bool) []festival.View {
		source := newStubSource()
		source.detail = func(id string) (festival.DetailRecord, error) {
			periods := map[string]string{
				"A1": "2024.07.10 ~ 2024.07.20",
				"B1": "2024.08.01 ~ 2024.08.05",
			}
			return festival.DetailRecord{ID: id, Period: periods[id]}, nil
		}
		s, enqueuer := newTestSession(t, source, Options{})
		s.Start()
		enqueuer.runAll()
		require.NoError(t, s.SetDateRange(dateRef(t, "2024-07-15"), dateRef(t, "2024-07-25")))

		s.RequestDetails([]string{"A1", "B1"})
		if reverse {
			enqueuer.runReversed()
		} else {
			enqueuer.runAll()
		}
		return s.Snapshot().Items
	}

	forward := run(false)
	backward := run(true)

	assert.Equal(t, forward, backward)
	require.Len(t, forward, 1)
	assert.Equal(t, "A1", forward[0].ID)
}

func TestSession_ReportDetail(t *testing.T) {
	source := newStubSource()
	s, enqueuer := newTestSession(t, source, Options{})
	s.Start()
	enqueuer.runAll()

	assert.ErrorIs(t, s.ReportDetail(festival.DetailRecord{}), ErrInvalidDetail)

	detail := festival.DetailRecord{ID: "B1", Period: "2024.07.01 ~ 2024.07.03", Venue: "해운대"}
	require.NoError(t, s.ReportDetail(detail))
	before := s.Snapshot()

	require.NoError(t, s.ReportDetail(detail))
	after := s.Snapshot()

	assert.Equal(t, before.Items, after.Items, "repeated resolution leaves the view unchanged")
	assert.Greater(t, after.Version, before.Version)
	assert.Equal(t, 0, source.detailCalls)
}

func TestSession_FirstPageFailure_IsBlockingAndRetryResets(t *testing.T) {
	source := newStubSource()
	failing := true
	source.listing = func(params festival.BrowseParams, page int) ([]festival.SummaryRecord, error) {
		if failing {
			return nil, errors.New("connection refused")
		}
		return catalog()[page], nil
	}
	source.search = func(keyword string, page int) ([]festival.SummaryRecord, error) {
		return nil, errors.New("connection refused")
	}
	s, enqueuer := newTestSession(t, source, Options{})

	require.NoError(t, s.SetFilter(festival.DefaultFilter().WithQuery("불꽃").WithSeason(festival.SeasonSummer)))
	enqueuer.runAll()

	snapshot := s.Snapshot()
	assert.Equal(t, StatusFailed, snapshot.Status)
	var fetchErr *festival.FetchError
	require.ErrorAs(t, snapshot.Error, &fetchErr)
	assert.Equal(t, festival.SourceSearch, fetchErr.Source)
	assert.False(t, snapshot.NoResults)

	failing = false
	s.Retry()
	assert.Equal(t, festival.DefaultFilter(), s.Filter())
	enqueuer.runAll()

	snapshot = s.Snapshot()
	assert.Equal(t, StatusReady, snapshot.Status)
	assert.NoError(t, snapshot.Error)
	assert.Equal(t, []string{"A1", "B1"}, itemIDs(snapshot))
}

func TestSession_LaterPageFailure_KeepsResults(t *testing.T) {
	source := newStubSource()
	source.listing = func(params festival.BrowseParams, page int) ([]festival.SummaryRecord, error) {
		if page > 1 {
			return nil, errors.New("HTTP error: 502")
		}
		return catalog()[page], nil
	}
	s, enqueuer := newTestSession(t, source, Options{})
	s.Start()
	enqueuer.runAll()

	require.True(t, s.FetchNext())
	enqueuer.runAll()

	snapshot := s.Snapshot()
	assert.Equal(t, StatusReady, snapshot.Status)
	assert.NoError(t, snapshot.Error)
	assert.Error(t, snapshot.LoadMoreError)
	assert.Equal(t, []string{"A1", "B1"}, itemIDs(snapshot))
	assert.True(t, snapshot.HasMore)

	assert.True(t, s.FetchNext(), "the failed page can be requested again")
	assert.NoError(t, s.Snapshot().LoadMoreError)
}

func TestSession_EnqueueFailure(t *testing.T) {
	s, enqueuer := newTestSession(t, newStubSource(), Options{})
	enqueuer.err = tasks.ErrSchedulerStopped

	s.Start()

	snapshot := s.Snapshot()
	assert.Equal(t, StatusFailed, snapshot.Status)
	assert.ErrorIs(t, snapshot.Error, tasks.ErrSchedulerStopped)
	assert.False(t, snapshot.IsFetchingNext)
}

func TestSession_SetFilter_RejectsInvalid(t *testing.T) {
	s, _ := newTestSession(t, newStubSource(), Options{})

	err := s.SetRegion("99")
	assert.ErrorIs(t, err, festival.ErrUnknownRegion)
	assert.Equal(t, festival.RegionAll, s.Filter().Region, "rejected update leaves the filter untouched")

	assert.Error(t, s.SetDateRange(dateRef(t, "2024-08-01"), dateRef(t, "2024-07-01")))
	assert.Error(t, s.SetFilter(festival.FilterState{Query: "a", Keywords: []string{"b"}}))
}

func TestSession_QueryAndKeywordsAreExclusive(t *testing.T) {
	s, enqueuer := newTestSession(t, newStubSource(), Options{})
	s.Start()
	enqueuer.runAll()

	require.NoError(t, s.ApplyKeywords([]string{"부산"}, festival.MatchAll))
	require.NoError(t, s.SetQuery("머드"))

	filter := s.Filter()
	assert.Equal(t, "머드", filter.Query)
	assert.Empty(t, filter.Keywords)
}

func TestSession_Featured(t *testing.T) {
	s, enqueuer := newTestSession(t, newStubSource(), Options{FeaturedCount: 1})
	s.Start()
	enqueuer.runAll()
	require.NoError(t, s.SetRegion("1"))

	snapshot := s.Snapshot()
	assert.Len(t, snapshot.Featured, 1, "featured is taken from the unfiltered view")
	assert.Len(t, snapshot.Items, 1)
}

func TestSession_PanickingSourceFailsInsteadOfHanging(t *testing.T) {
	healthy := catalog()
	panicking := true
	source := newStubSource()
	source.listing = func(params festival.BrowseParams, page int) ([]festival.SummaryRecord, error) {
		if panicking {
			panic("decoder bug")
		}
		return healthy[page], nil
	}

	scheduler := tasks.NewScheduler(time.Second)
	defer scheduler.Stop()

	pipeline := festival.NewPipeline(festival.DefaultRegionTable())
	s := New("test", pipeline, Sources{Listing: source, Search: source, Detail: source}, scheduler, Options{PageSize: 2})

	s.Start()
	scheduler.Wait()

	snapshot := s.Snapshot()
	assert.Equal(t, StatusFailed, snapshot.Status)
	assert.False(t, snapshot.IsFetchingNext)
	var fetchErr *festival.FetchError
	require.ErrorAs(t, snapshot.Error, &fetchErr)
	assert.Equal(t, festival.SourceListing, fetchErr.Source)

	panicking = false
	assert.True(t, s.FetchNext(), "a failed fetch can be retried")
	scheduler.Wait()

	snapshot = s.Snapshot()
	assert.Equal(t, StatusReady, snapshot.Status)
	assert.Equal(t, []string{"A1", "B1"}, itemIDs(snapshot))
}
