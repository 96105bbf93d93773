package database

import (
	"time"

	"github.com/lysyi3m/festival-comb/app/festival"
)

type DetailRepository interface {
	GetDetail(contentID string) (*Detail, error)
	GetDetailCount() (int, error)

	UpsertDetail(detail festival.DetailRecord, fetchedAt time.Time) error
	DeleteDetailsBefore(cutoff time.Time) (int64, error)
}
