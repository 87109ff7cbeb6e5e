package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-karaoke/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- INSTANCES ----------------

// CreateInstance → insert new event instance
func (d *DB) CreateInstance(instance models.EventInstance) error {
	_, err := d.Bun.NewInsert().Model(&instance).Exec(context.Background())
	return err
}

// GetInstanceByID → fetch one instance
func (d *DB) GetInstanceByID(instanceID string) (*models.EventInstance, error) {
	var instance models.EventInstance
	err := d.Bun.NewSelect().
		Model(&instance).
		Where("id = ?", instanceID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

// UpdateStatus → open → expired
func (d *DB) UpdateStatus(instanceID, status string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.EventInstance)(nil)).
		Set("status = ?", status).
		Where("id = ?", instanceID).
		Exec(context.Background())
	return err
}

// ArchiveRankings → snapshot final rankings before a reset wipes them
func (d *DB) ArchiveRankings(rows []models.RankingArchive) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&rows).Exec(context.Background())
	return err
}
