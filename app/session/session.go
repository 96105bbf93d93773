package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/festival-comb/app/festival"
	"github.com/lysyi3m/festival-comb/app/tasks"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

const DefaultPageSize = 12

var ErrInvalidDetail = errors.New("detail record must have an ID")

type Options struct {
	PageSize       int
	DelegateRegion bool
	FeaturedCount  int
}

type Sources struct {
	Listing festival.ListingSource
	Search  festival.SearchSource
	Detail  festival.DetailSource
}

// Enqueuer hands fetch tasks to a scheduler. Tasks must not run synchronously
// inside EnqueueTask because their completion re-enters the session.
type Enqueuer interface {
	EnqueueTask(task tasks.TaskInterface) error
}

// Snapshot is an immutable, versioned rendering of the session state.
type Snapshot struct {
	SessionID       string
	Version         uint64
	Status          Status
	Mode            string
	Searching       bool
	SearchKeyword   string
	Filter          festival.FilterState
	Items           []festival.View
	Featured        []festival.View
	Total           int
	PagesLoaded     int
	HasMore         bool
	IsFetchingNext  bool
	Error           error
	LoadMoreError   error
	NoResults       bool
	PendingDetails  int
	ResolvedDetails int
	UpdatedAt       time.Time
}

// Session is the page-level controller: it owns the accumulator and the
// detail cache and recomputes the filtered view after every change.
type Session struct {
	id       string
	pipeline *festival.Pipeline
	sources  Sources
	enqueuer Enqueuer
	opts     Options

	mu      sync.Mutex
	filter  festival.FilterState
	mode    festival.Mode
	acc     *Accumulator
	details *DetailCache
	status  Status
	version uint64

	snapshot   atomic.Pointer[Snapshot]
	lastAccess atomic.Int64
}

func New(id string, pipeline *festival.Pipeline, sources Sources, enqueuer Enqueuer, opts Options) *Session {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.FeaturedCount <= 0 {
		opts.FeaturedCount = festival.DefaultFeaturedCount
	}

	filter := festival.DefaultFilter()
	s := &Session{
		id:       id,
		pipeline: pipeline,
		sources:  sources,
		enqueuer: enqueuer,
		opts:     opts,
		filter:   filter,
		mode:     festival.ModeFor(filter, opts.DelegateRegion),
		acc:      NewAccumulator(),
		details:  NewDetailCache(),
		status:   StatusIdle,
	}
	s.Touch(time.Now())

	s.mu.Lock()
	s.publishLocked()
	s.mu.Unlock()

	return s
}

func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the latest published state without blocking on fetches.
func (s *Session) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

func (s *Session) Filter() festival.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

func (s *Session) Mode() festival.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Touch(now time.Time) {
	s.lastAccess.Store(now.UnixNano())
}

func (s *Session) LastAccess() time.Time {
	return time.Unix(0, s.lastAccess.Load())
}

// Start fetches the first page. It does nothing once the session has started.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusIdle {
		return
	}
	s.status = StatusLoading
	s.fetchLocked()
	s.publishLocked()
}

// FetchNext requests the next page. It reports false when a fetch is already
// in flight or the source is exhausted.
func (s *Session) FetchNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusIdle {
		s.status = StatusLoading
	}
	started := s.fetchLocked()
	if started && s.status == StatusFailed {
		s.status = StatusLoading
	}
	s.publishLocked()
	return started
}

// Retry resets the filter to its defaults and refetches from the first page.
func (s *Session) Retry() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filter = festival.DefaultFilter()
	s.mode = festival.ModeFor(s.filter, s.opts.DelegateRegion)
	s.restartLocked()
	s.publishLocked()

	slog.Info("Session retry", "session", s.id, "mode", s.mode.String())
}

// SetFilter replaces the whole filter state.
func (s *Session) SetFilter(filter festival.FilterState) error {
	return s.update(func(festival.FilterState) festival.FilterState { return filter })
}

func (s *Session) SetQuery(query string) error {
	return s.update(func(f festival.FilterState) festival.FilterState { return f.WithQuery(query) })
}

func (s *Session) ApplyKeywords(keywords []string, mode festival.KeywordMode) error {
	return s.update(func(f festival.FilterState) festival.FilterState { return f.WithKeywords(keywords, mode) })
}

func (s *Session) SetRegion(region string) error {
	return s.update(func(f festival.FilterState) festival.FilterState { return f.WithRegion(region) })
}

func (s *Session) SetSeason(season festival.Season) error {
	return s.update(func(f festival.FilterState) festival.FilterState { return f.WithSeason(season) })
}

func (s *Session) SetDateRange(start, end *festival.Date) error {
	return s.update(func(f festival.FilterState) festival.FilterState { return f.WithDateRange(start, end) })
}

// ResetFilters restores the unfiltered view of the browse catalog.
func (s *Session) ResetFilters() error {
	return s.SetFilter(festival.DefaultFilter())
}

func (s *Session) update(mutate func(festival.FilterState) festival.FilterState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := mutate(s.filter).Normalized()
	if err := next.Validate(s.pipeline.Regions()); err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}

	s.filter = next
	if mode := festival.ModeFor(next, s.opts.DelegateRegion); mode != s.mode {
		slog.Debug("Session mode changed", "session", s.id, "from", s.mode.String(), "to", mode.String())
		s.mode = mode
		s.restartLocked()
	}
	s.publishLocked()
	return nil
}

// RequestDetails issues detail fetches for the given rendered items. IDs that
// are unknown, pending or already resolved are skipped.
func (s *Session) RequestDetails(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	issued := 0
	for _, id := range ids {
		record, ok := s.acc.Get(id)
		if !ok || !s.details.Request(id) {
			continue
		}

		task := tasks.NewFetchDetailTask(s.id, id, record.ContentTypeID, s.sources.Detail, s)
		if err := s.enqueuer.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue FetchDetailTask", "session", s.id, "id", id, "error", err)
			s.details.OnFailed(id)
			continue
		}
		issued++
	}

	if issued > 0 {
		s.publishLocked()
	}
	return issued
}

// ReportDetail stores a detail record resolved outside the session's own fetches.
func (s *Session) ReportDetail(detail festival.DetailRecord) error {
	if detail.ID == "" {
		return ErrInvalidDetail
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.details.OnResolved(detail)
	s.publishLocked()
	return nil
}

// CompletePage is called by FetchPageTask when a page fetch finishes.
func (s *Session) CompletePage(epoch uint64, page int, records []festival.SummaryRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if !s.acc.FailFetch(epoch, err) {
			return
		}
		if s.acc.Len() == 0 {
			s.status = StatusFailed
			slog.Error("Failed to load first page", "session", s.id, "mode", s.mode.String(), "error", err)
		} else {
			slog.Warn("Failed to load more", "session", s.id, "page", page, "error", err)
		}
		s.publishLocked()
		return
	}

	if !s.acc.CompleteFetch(epoch, records, s.opts.PageSize) {
		slog.Debug("Discarding stale page", "session", s.id, "page", page, "epoch", epoch)
		return
	}
	s.status = StatusReady
	s.publishLocked()
}

// CompleteDetail is called by FetchDetailTask when a detail fetch finishes.
// Failures leave the record on its placeholder period.
func (s *Session) CompleteDetail(id string, detail festival.DetailRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.details.OnFailed(id)
		slog.Debug("Detail fetch failed", "session", s.id, "id", id, "error", err)
		s.publishLocked()
		return
	}

	detail.ID = id
	s.details.OnResolved(detail)
	s.publishLocked()
}

func (s *Session) restartLocked() {
	s.acc.Reset()
	s.status = StatusLoading
	s.fetchLocked()
}

func (s *Session) fetchLocked() bool {
	page, epoch, ok := s.acc.BeginFetch()
	if !ok {
		return false
	}

	task := tasks.NewFetchPageTask(s.id, s.mode, page, epoch, s.sources.Listing, s.sources.Search, s)
	if err := s.enqueuer.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue FetchPageTask", "session", s.id, "page", page, "error", err)
		s.acc.FailFetch(epoch, err)
		if s.acc.Len() == 0 {
			s.status = StatusFailed
		}
		return false
	}
	return true
}

func (s *Session) publishLocked() {
	unfiltered := s.pipeline.Unfiltered(s.acc.Records(), s.details.Snapshot())
	items := s.pipeline.Filter(unfiltered, s.filter)

	snapshot := &Snapshot{
		SessionID:       s.id,
		Version:         s.version + 1,
		Status:          s.status,
		Mode:            s.mode.String(),
		Searching:       s.filter.IsSearching(),
		SearchKeyword:   s.filter.SearchKeyword(),
		Filter:          s.filter,
		Items:           items,
		Featured:        festival.Featured(unfiltered, s.opts.FeaturedCount),
		Total:           s.acc.Len(),
		PagesLoaded:     s.acc.PagesLoaded(),
		HasMore:         s.acc.HasMore(),
		IsFetchingNext:  s.acc.IsFetching(),
		NoResults:       s.status == StatusReady && len(items) == 0,
		PendingDetails:  s.details.PendingLen(),
		ResolvedDetails: s.details.Len(),
		UpdatedAt:       time.Now(),
	}

	if err := s.acc.Err(); err != nil {
		if s.status == StatusFailed {
			snapshot.Error = err
		} else {
			snapshot.LoadMoreError = err
		}
	}

	s.version = snapshot.Version
	s.snapshot.Store(snapshot)
}
