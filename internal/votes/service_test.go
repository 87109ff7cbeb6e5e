package votes_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-karaoke/internal/models"
	sessiondb "ms-karaoke/internal/session/db"
	"ms-karaoke/internal/votes"
	votesdb "ms-karaoke/internal/votes/db"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (p *capturePublisher) PublishChange(event models.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) byTable(table string) []models.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.ChangeEvent
	for _, e := range p.events {
		if e.Table == table {
			out = append(out, e)
		}
	}
	return out
}

func setupService(t *testing.T) (*votes.Service, *sessiondb.DB, *capturePublisher, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	_, err = bunDB.NewCreateTable().Model((*models.Performance)(nil)).Exec(ctx)
	require.NoError(t, err)
	_, err = bunDB.NewCreateTable().Model((*models.Vote)(nil)).Exec(ctx)
	require.NoError(t, err)

	sessionStore := &sessiondb.DB{Bun: bunDB}
	pub := &capturePublisher{}
	svc := votes.NewService(&votesdb.DB{Bun: bunDB}, sessionStore, pub)
	return svc, sessionStore, pub, bunDB
}

func seedPerformance(t *testing.T, store *sessiondb.DB, status string) models.Performance {
	perf := models.Performance{
		ID:         uuid.NewString(),
		InstanceID: "inst1",
		SingerName: "Ana",
		SongTitle:  "Bohemian Rhapsody",
		Status:     status,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.CreatePerformance(perf))
	return perf
}

func TestSubmitValidation(t *testing.T) {
	svc, store, _, bunDB := setupService(t)
	defer bunDB.Close()
	perf := seedPerformance(t, store, models.PerformanceActive)

	var validationErr *models.ValidationError

	_, err := svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "  ", Score: 5})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))

	_, err = svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "dev1", Score: 11})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))

	_, err = svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "dev1", Score: -1})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))
}

func TestSubmitRecomputesAverage(t *testing.T) {
	svc, store, pub, bunDB := setupService(t)
	defer bunDB.Close()
	perf := seedPerformance(t, store, models.PerformanceActive)

	updated, err := svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "dev1", Score: 8})
	require.NoError(t, err)
	assert.Equal(t, float64(8), updated.AverageScore)
	assert.Equal(t, 1, updated.VoteCount)

	updated, err = svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "dev2", Score: 10})
	require.NoError(t, err)
	assert.Equal(t, 9.0, updated.AverageScore)
	assert.Equal(t, 2, updated.VoteCount)

	// Aggregate persisted, not just returned.
	stored, err := store.GetPerformanceByID("inst1", perf.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.0, stored.AverageScore)
	assert.Equal(t, 2, stored.VoteCount)

	// Each submit fans out a vote insert plus a performance update.
	assert.Len(t, pub.byTable(models.TableVotes), 2)
	assert.Len(t, pub.byTable(models.TablePerformances), 2)
}

func TestSubmitDuplicateDevice(t *testing.T) {
	svc, store, _, bunDB := setupService(t)
	defer bunDB.Close()
	perf := seedPerformance(t, store, models.PerformanceActive)

	_, err := svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "dev1", Score: 8})
	require.NoError(t, err)

	_, err = svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "dev1", Score: 3})
	assert.True(t, errors.Is(err, models.ErrDuplicateVote))

	// The first vote stands untouched.
	recorded, err := svc.ListFor(perf.ID)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, 8, recorded[0].Score)

	stored, err := store.GetPerformanceByID("inst1", perf.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(8), stored.AverageScore)
	assert.Equal(t, 1, stored.VoteCount)
}

func TestSubmitOnClosedPerformance(t *testing.T) {
	svc, store, _, bunDB := setupService(t)
	defer bunDB.Close()
	perf := seedPerformance(t, store, models.PerformanceClosed)

	_, err := svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "dev1", Score: 8})
	assert.True(t, errors.Is(err, models.ErrInvalidState))
}

func TestSubmitOnUnknownPerformance(t *testing.T) {
	svc, _, _, bunDB := setupService(t)
	defer bunDB.Close()

	_, err := svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: "missing", DeviceID: "dev1", Score: 8})
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestSubmitBoundaryScores(t *testing.T) {
	svc, store, _, bunDB := setupService(t)
	defer bunDB.Close()
	perf := seedPerformance(t, store, models.PerformanceActive)

	_, err := svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "dev1", Score: 0})
	require.NoError(t, err)
	updated, err := svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "dev2", Score: 10})
	require.NoError(t, err)
	assert.Equal(t, 5.0, updated.AverageScore)
}

func TestClearFor(t *testing.T) {
	svc, store, pub, bunDB := setupService(t)
	defer bunDB.Close()
	perf := seedPerformance(t, store, models.PerformanceActive)

	_, err := svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "dev1", Score: 8})
	require.NoError(t, err)
	_, err = svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "dev2", Score: 10})
	require.NoError(t, err)

	require.NoError(t, svc.ClearFor("inst1", perf.ID))

	count, err := svc.CountFor(perf.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// A device that voted before the clear may vote again.
	_, err = svc.Submit("inst1", models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "dev1", Score: 6})
	require.NoError(t, err)

	deletes := pub.byTable(models.TableVotes)
	require.NotEmpty(t, deletes)
	assert.Equal(t, models.ActionDelete, deletes[2].Action)
}

func TestClearForEmptyIsQuiet(t *testing.T) {
	svc, store, pub, bunDB := setupService(t)
	defer bunDB.Close()
	perf := seedPerformance(t, store, models.PerformanceActive)

	require.NoError(t, svc.ClearFor("inst1", perf.ID))
	assert.Empty(t, pub.byTable(models.TableVotes))
}
