package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/festival-comb/app/festival"
)

var _ DetailRepository = (*SQLiteDetailRepository)(nil)

// SQLiteDetailRepository handles database operations for festival details
type SQLiteDetailRepository struct {
	db *DB
}

func NewDetailRepository(db *DB) *SQLiteDetailRepository {
	return &SQLiteDetailRepository{db: db}
}

// GetDetail returns nil without error when no row exists
func (r *SQLiteDetailRepository) GetDetail(contentID string) (*Detail, error) {
	var detail Detail
	var fetchedAt int64

	err := r.db.QueryRow(`
		SELECT content_id, period, venue, description, content, fetched_at
		FROM festival_details
		WHERE content_id = ?
	`, contentID).Scan(&detail.ContentID, &detail.Period, &detail.Venue, &detail.Description, &detail.Content, &fetchedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get detail: %w", err)
	}

	detail.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	return &detail, nil
}

func (r *SQLiteDetailRepository) UpsertDetail(detail festival.DetailRecord, fetchedAt time.Time) error {
	if detail.ID == "" {
		return fmt.Errorf("failed to upsert detail: empty content id")
	}

	_, err := r.db.Exec(`
		INSERT INTO festival_details (content_id, period, venue, description, content, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_id) DO UPDATE SET
			period = excluded.period,
			venue = excluded.venue,
			description = excluded.description,
			content = excluded.content,
			fetched_at = excluded.fetched_at
	`, detail.ID, detail.Period, detail.Venue, detail.Description, detail.Content, fetchedAt.Unix())

	if err != nil {
		return fmt.Errorf("failed to upsert detail: %w", err)
	}

	return nil
}

func (r *SQLiteDetailRepository) GetDetailCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM festival_details").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get detail count: %w", err)
	}
	return count, nil
}

func (r *SQLiteDetailRepository) DeleteDetailsBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM festival_details WHERE fetched_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale details: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted details: %w", err)
	}
	return deleted, nil
}
