package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-karaoke/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- PERFORMANCES ----------------

// CreatePerformance → insert new performance row
func (d *DB) CreatePerformance(perf models.Performance) error {
	_, err := d.Bun.NewInsert().Model(&perf).Exec(context.Background())
	return err
}

// GetPerformanceByID → fetch one performance scoped by instance
func (d *DB) GetPerformanceByID(instanceID, performanceID string) (*models.Performance, error) {
	var perf models.Performance
	err := d.Bun.NewSelect().
		Model(&perf).
		Where("instance_id = ?", instanceID).
		Where("id = ?", performanceID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &perf, nil
}

// GetActive → the instance's single active performance, or nil when the
// stage is empty.
func (d *DB) GetActive(instanceID string) (*models.Performance, error) {
	var perf models.Performance
	err := d.Bun.NewSelect().
		Model(&perf).
		Where("instance_id = ?", instanceID).
		Where("status = ?", models.PerformanceActive).
		Order("created_at DESC").
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &perf, nil
}

// ClosePerformance → active → closed, keeping the final aggregate
func (d *DB) ClosePerformance(performanceID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Performance)(nil)).
		Set("status = ?", models.PerformanceClosed).
		Where("id = ?", performanceID).
		Exec(context.Background())
	return err
}

// UpdateVideo → swap the song mid-performance and zero the aggregate; the
// votes themselves are cleared by the vote ledger.
func (d *DB) UpdateVideo(performanceID, songReference, songTitle string, changedAt time.Time) error {
	q := d.Bun.NewUpdate().
		Model((*models.Performance)(nil)).
		Set("song_reference = ?", songReference).
		Set("average_score = ?", 0.0).
		Set("vote_count = ?", 0).
		Set("video_changed_at = ?", changedAt).
		Where("id = ?", performanceID)
	if songTitle != "" {
		q = q.Set("song_title = ?", songTitle)
	}
	_, err := q.Exec(context.Background())
	return err
}

// ListClosed → ranking history, best average first
func (d *DB) ListClosed(instanceID string) ([]models.Performance, error) {
	var perfs []models.Performance
	err := d.Bun.NewSelect().
		Model(&perfs).
		Where("instance_id = ?", instanceID).
		Where("status = ?", models.PerformanceClosed).
		Order("average_score DESC", "vote_count DESC", "created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return perfs, nil
}

// DeleteAll → wipe the instance's performance history (explicit reset only)
func (d *DB) DeleteAll(instanceID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Performance)(nil)).
		Where("instance_id = ?", instanceID).
		Exec(context.Background())
	return err
}
