package database

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lysyi3m/festival-comb/app/festival"
)

var _ festival.DetailSource = (*CachingDetailSource)(nil)

// CachingDetailSource serves details from the store while they are younger than
// ttl and otherwise asks the upstream. Concurrent calls for the same ID across
// sessions share one upstream request.
type CachingDetailSource struct {
	repo     DetailRepository
	upstream festival.DetailSource
	ttl      time.Duration
	group    singleflight.Group
	now      func() time.Time
}

func NewCachingDetailSource(repo DetailRepository, upstream festival.DetailSource, ttl time.Duration) *CachingDetailSource {
	return &CachingDetailSource{
		repo:     repo,
		upstream: upstream,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *CachingDetailSource) FetchDetail(ctx context.Context, id, contentTypeID string) (festival.DetailRecord, error) {
	if detail, ok := s.lookup(id); ok {
		return detail, nil
	}

	result, err, shared := s.group.Do(id, func() (any, error) {
		detail, err := s.upstream.FetchDetail(ctx, id, contentTypeID)
		if err != nil {
			return festival.DetailRecord{}, err
		}
		if detail.ID == "" {
			detail.ID = id
		}

		if err := s.repo.UpsertDetail(detail, s.now()); err != nil {
			slog.Warn("Failed to store detail", "id", id, "error", err)
		}
		return detail, nil
	})
	if err != nil {
		return festival.DetailRecord{}, festival.AsFetchError(festival.SourceDetail, err)
	}

	if shared {
		slog.Debug("Shared upstream detail fetch", "id", id)
	}
	return result.(festival.DetailRecord), nil
}

// Prune deletes stored details that are past the ttl.
func (s *CachingDetailSource) Prune() (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	return s.repo.DeleteDetailsBefore(s.now().Add(-s.ttl))
}

func (s *CachingDetailSource) lookup(id string) (festival.DetailRecord, bool) {
	stored, err := s.repo.GetDetail(id)
	if err != nil {
		slog.Warn("Failed to read stored detail", "id", id, "error", err)
		return festival.DetailRecord{}, false
	}
	if stored == nil {
		return festival.DetailRecord{}, false
	}
	if s.ttl > 0 && s.now().Sub(stored.FetchedAt) > s.ttl {
		return festival.DetailRecord{}, false
	}
	return stored.Record(), true
}
