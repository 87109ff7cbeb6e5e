package instance_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-karaoke/internal/instance"
	instancedb "ms-karaoke/internal/instance/db"
	"ms-karaoke/internal/logger"
	"ms-karaoke/internal/models"
	"ms-karaoke/internal/session"
	sessiondb "ms-karaoke/internal/session/db"
	"ms-karaoke/internal/votes"
	votesdb "ms-karaoke/internal/votes/db"
	"ms-karaoke/internal/waitlist"
	waitlistdb "ms-karaoke/internal/waitlist/db"
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

type fixture struct {
	instance *instance.Service
	session  *session.Service
	waitlist *waitlist.Service
	votes    *votes.Service
	bunDB    *bun.DB
}

func setupFixture(t *testing.T) *fixture {
	t.Setenv("LOG_DIR", t.TempDir())

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.EventInstance)(nil),
		(*models.WaitlistEntry)(nil),
		(*models.Performance)(nil),
		(*models.Vote)(nil),
		(*models.RankingArchive)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}

	pub := &capturePublisher{}
	log := logger.NewLogger()
	t.Cleanup(log.Close)

	sessionStore := &sessiondb.DB{Bun: bunDB}
	waitlistSvc := waitlist.NewService(&waitlistdb.DB{Bun: bunDB}, pub)
	voteSvc := votes.NewService(&votesdb.DB{Bun: bunDB}, sessionStore, pub)
	sessionSvc := session.NewService(sessionStore, voteSvc, waitlistSvc, pub)
	instanceSvc := instance.NewService(&instancedb.DB{Bun: bunDB}, sessionSvc, waitlistSvc, voteSvc,
		nil, pub, log)

	f := &fixture{
		instance: instanceSvc,
		session:  sessionSvc,
		waitlist: waitlistSvc,
		votes:    voteSvc,
		bunDB:    bunDB,
	}
	t.Cleanup(func() { bunDB.Close() })
	return f
}

func TestCreateInstance(t *testing.T) {
	f := setupFixture(t)

	inst, err := f.instance.Create("Friday Night Karaoke", 4*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceOpen, inst.Status)
	assert.Len(t, inst.JoinCode, 6)
	assert.True(t, inst.ExpiresAt.After(time.Now()))

	got, err := f.instance.Get(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, inst.Name, got.Name)
	assert.Equal(t, inst.JoinCode, got.JoinCode)
}

func TestCreateInstanceValidation(t *testing.T) {
	f := setupFixture(t)

	var validationErr *models.ValidationError

	_, err := f.instance.Create("", time.Hour)
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))

	_, err = f.instance.Create("Karaoke", 0)
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))
}

func TestGetUnknownInstance(t *testing.T) {
	f := setupFixture(t)

	_, err := f.instance.Get("missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestResetClearsEverything(t *testing.T) {
	f := setupFixture(t)

	inst, err := f.instance.Create("Karaoke", time.Hour)
	require.NoError(t, err)

	// Seed a finished round and a waiting singer.
	entry, err := f.waitlist.Enqueue(inst.ID, models.EnqueueRequest{SingerName: "Ana", SongTitle: "Song A"})
	require.NoError(t, err)
	perf, err := f.session.Start(inst.ID, entry.SingerName, entry.SongTitle, "", entry.ID)
	require.NoError(t, err)
	_, err = f.votes.Submit(inst.ID, models.SubmitVoteRequest{PerformanceID: perf.ID, DeviceID: "dev1", Score: 7})
	require.NoError(t, err)
	require.NoError(t, f.session.Close(inst.ID, perf.ID))
	_, err = f.waitlist.Enqueue(inst.ID, models.EnqueueRequest{SingerName: "Bruno", SongTitle: "Song B"})
	require.NoError(t, err)

	require.NoError(t, f.instance.Reset(inst.ID))

	queue, err := f.waitlist.List(inst.ID)
	require.NoError(t, err)
	assert.Empty(t, queue)

	rankings, err := f.session.Rankings(inst.ID)
	require.NoError(t, err)
	assert.Empty(t, rankings)

	count, err := f.votes.CountFor(perf.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// The rankings survive the wipe as an archive snapshot.
	archiveCount, err := f.bunDB.NewSelect().
		Model((*models.RankingArchive)(nil)).
		Where("instance_id = ?", inst.ID).
		Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, archiveCount)
}

func TestResetUnknownInstance(t *testing.T) {
	f := setupFixture(t)

	err := f.instance.Reset("missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestExpireClosesActivePerformance(t *testing.T) {
	f := setupFixture(t)

	inst, err := f.instance.Create("Karaoke", time.Hour)
	require.NoError(t, err)
	perf, err := f.session.Start(inst.ID, "Ana", "Song A", "", "")
	require.NoError(t, err)

	require.NoError(t, f.instance.Expire(inst.ID))

	got, err := f.instance.Get(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceExpired, got.Status)

	_, err = f.session.Current(inst.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	rankings, err := f.session.Rankings(inst.ID)
	require.NoError(t, err)
	require.Len(t, rankings, 1)
	assert.Equal(t, perf.ID, rankings[0].ID)
}

func TestExpireIsIdempotent(t *testing.T) {
	f := setupFixture(t)

	inst, err := f.instance.Create("Karaoke", time.Hour)
	require.NoError(t, err)

	require.NoError(t, f.instance.Expire(inst.ID))
	require.NoError(t, f.instance.Expire(inst.ID))

	got, err := f.instance.Get(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceExpired, got.Status)
}
