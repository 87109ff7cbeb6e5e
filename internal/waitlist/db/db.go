package db

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"

	"ms-karaoke/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- WAITLIST ----------------

// CreateEntry → insert new waitlist entry
func (d *DB) CreateEntry(entry models.WaitlistEntry) error {
	_, err := d.Bun.NewInsert().Model(&entry).Exec(context.Background())
	return err
}

// GetEntryByID → fetch one entry scoped by instance
func (d *DB) GetEntryByID(instanceID, entryID string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("instance_id = ?", instanceID).
		Where("id = ?", entryID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListWaiting → all waiting entries in visible order: priority ascending,
// ties broken by creation time ascending.
func (d *DB) ListWaiting(instanceID string) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("instance_id = ?", instanceID).
		Where("status = ?", models.EntryWaiting).
		Order("priority ASC", "created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// WaitingPriorityBounds → min/max priority among waiting entries plus the
// count, so the service can place insert-first and fair entries.
func (d *DB) WaitingPriorityBounds(instanceID string) (min int, max int, count int, err error) {
	var minNull, maxNull sql.NullInt64
	err = d.Bun.NewSelect().
		Model((*models.WaitlistEntry)(nil)).
		ColumnExpr("MIN(priority)").
		ColumnExpr("MAX(priority)").
		ColumnExpr("COUNT(*)").
		Where("instance_id = ?", instanceID).
		Where("status = ?", models.EntryWaiting).
		Scan(context.Background(), &minNull, &maxNull, &count)
	if err != nil {
		return 0, 0, 0, err
	}
	return int(minNull.Int64), int(maxNull.Int64), count, nil
}

// UpdatePriority → move an entry within the ordering
func (d *DB) UpdatePriority(entryID string, priority int) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.WaitlistEntry)(nil)).
		Set("priority = ?", priority).
		Where("id = ?", entryID).
		Exec(context.Background())
	return err
}

// MarkDone → waiting → done, bumping the singer's times_sung counter
func (d *DB) MarkDone(entryID string) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.WaitlistEntry)(nil)).
		Set("status = ?", models.EntryDone).
		Set("times_sung = times_sung + 1").
		Where("id = ?", entryID).
		Where("status = ?", models.EntryWaiting).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteEntry → remove a waiting entry (withdrawal or coordinator cleanup)
func (d *DB) DeleteEntry(instanceID, entryID string) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.WaitlistEntry)(nil)).
		Where("instance_id = ?", instanceID).
		Where("id = ?", entryID).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByRegistrant → remove every waiting entry a participant registered,
// including ones signed up on behalf of others. Matched on the free-text
// registered_by field.
func (d *DB) DeleteByRegistrant(instanceID, registeredBy string) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.WaitlistEntry)(nil)).
		Where("instance_id = ?", instanceID).
		Where("status = ?", models.EntryWaiting).
		Where("registered_by = ?", registeredBy).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAll → wipe the instance's queue (explicit reset only)
func (d *DB) DeleteAll(instanceID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.WaitlistEntry)(nil)).
		Where("instance_id = ?", instanceID).
		Exec(context.Background())
	return err
}
