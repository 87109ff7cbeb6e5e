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

// ---------------- VOTES ----------------

// HasVote → true when this device already voted for this performance
func (d *DB) HasVote(performanceID, deviceID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Vote)(nil)).
		Where("performance_id = ?", performanceID).
		Where("device_id = ?", deviceID).
		Exists(context.Background())
}

// CreateVoteAndRecount inserts the vote and recomputes the owning
// performance's aggregate from all of its votes, in one transaction.
func (d *DB) CreateVoteAndRecount(vote models.Vote) (avg float64, count int, err error) {
	ctx := context.Background()
	err = d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&vote).Exec(ctx); err != nil {
			return err
		}

		var sum sql.NullFloat64
		if err := tx.NewSelect().
			Model((*models.Vote)(nil)).
			ColumnExpr("SUM(score)").
			ColumnExpr("COUNT(*)").
			Where("performance_id = ?", vote.PerformanceID).
			Scan(ctx, &sum, &count); err != nil {
			return err
		}
		if count > 0 {
			avg = sum.Float64 / float64(count)
		}

		_, err := tx.NewUpdate().
			Model((*models.Performance)(nil)).
			Set("average_score = ?", avg).
			Set("vote_count = ?", count).
			Where("id = ?", vote.PerformanceID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return avg, count, nil
}

// DeleteVotesFor → bulk delete of a performance's votes (video change)
func (d *DB) DeleteVotesFor(performanceID string) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Vote)(nil)).
		Where("performance_id = ?", performanceID).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListVotesFor → all votes attached to a performance
func (d *DB) ListVotesFor(performanceID string) ([]models.Vote, error) {
	var votes []models.Vote
	err := d.Bun.NewSelect().
		Model(&votes).
		Where("performance_id = ?", performanceID).
		Order("created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return votes, nil
}

// CountVotesFor → vote cardinality for a performance
func (d *DB) CountVotesFor(performanceID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Vote)(nil)).
		Where("performance_id = ?", performanceID).
		Count(context.Background())
}

// DeleteAll → wipe the instance's votes (explicit reset only)
func (d *DB) DeleteAll(instanceID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Vote)(nil)).
		Where("instance_id = ?", instanceID).
		Exec(context.Background())
	return err
}
