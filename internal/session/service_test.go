package session_test

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-karaoke/internal/models"
	"ms-karaoke/internal/session"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreatePerformance(perf models.Performance) error {
	args := m.Called(perf)
	return args.Error(0)
}

func (m *MockDBLayer) GetPerformanceByID(instanceID, performanceID string) (*models.Performance, error) {
	args := m.Called(instanceID, performanceID)
	if perf := args.Get(0); perf != nil {
		return perf.(*models.Performance), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDBLayer) GetActive(instanceID string) (*models.Performance, error) {
	args := m.Called(instanceID)
	if perf := args.Get(0); perf != nil {
		return perf.(*models.Performance), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDBLayer) ClosePerformance(performanceID string) error {
	args := m.Called(performanceID)
	return args.Error(0)
}

func (m *MockDBLayer) UpdateVideo(performanceID, songReference, songTitle string, changedAt time.Time) error {
	args := m.Called(performanceID, songReference, songTitle, changedAt)
	return args.Error(0)
}

func (m *MockDBLayer) ListClosed(instanceID string) ([]models.Performance, error) {
	args := m.Called(instanceID)
	if perfs := args.Get(0); perfs != nil {
		return perfs.([]models.Performance), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDBLayer) DeleteAll(instanceID string) error {
	args := m.Called(instanceID)
	return args.Error(0)
}

type MockVoteClearer struct {
	mock.Mock
}

func (m *MockVoteClearer) ClearFor(instanceID, performanceID string) error {
	args := m.Called(instanceID, performanceID)
	return args.Error(0)
}

type MockDoneMarker struct {
	mock.Mock
}

func (m *MockDoneMarker) MarkDone(instanceID, entryID string) error {
	args := m.Called(instanceID, entryID)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishChange(event models.ChangeEvent) {
	m.Called(event)
}

func newMocks() (*MockDBLayer, *MockVoteClearer, *MockDoneMarker, *MockPublisher, *session.Service) {
	db := new(MockDBLayer)
	votes := new(MockVoteClearer)
	waitlist := new(MockDoneMarker)
	events := new(MockPublisher)
	svc := session.NewService(db, votes, waitlist, events)
	return db, votes, waitlist, events, svc
}

func TestStartValidation(t *testing.T) {
	_, _, _, _, svc := newMocks()

	var validationErr *models.ValidationError

	_, err := svc.Start("inst1", "  ", "Song", "", "")
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))

	_, err = svc.Start("inst1", "Ana", "", "", "")
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))
}

func TestStartWithNoActive(t *testing.T) {
	db, _, _, events, svc := newMocks()

	db.On("GetActive", "inst1").Return(nil, nil)
	db.On("CreatePerformance", mock.AnythingOfType("models.Performance")).Return(nil)
	events.On("PublishChange", mock.AnythingOfType("models.ChangeEvent")).Return()

	perf, err := svc.Start("inst1", "Ana", "Bohemian Rhapsody", "yt:abc", "entry-1")
	require.NoError(t, err)
	assert.Equal(t, models.PerformanceActive, perf.Status)
	assert.Equal(t, "entry-1", perf.WaitlistEntryID)
	assert.Equal(t, float64(0), perf.AverageScore)
	assert.Equal(t, 0, perf.VoteCount)

	db.AssertNotCalled(t, "ClosePerformance", mock.Anything)
	db.AssertExpectations(t)
}

func TestStartForceClosesPriorActive(t *testing.T) {
	db, _, waitlist, events, svc := newMocks()

	prior := &models.Performance{
		ID:              "perf-old",
		InstanceID:      "inst1",
		WaitlistEntryID: "entry-old",
		Status:          models.PerformanceActive,
	}
	db.On("GetActive", "inst1").Return(prior, nil)
	db.On("ClosePerformance", "perf-old").Return(nil)
	waitlist.On("MarkDone", "inst1", "entry-old").Return(nil)
	db.On("CreatePerformance", mock.AnythingOfType("models.Performance")).Return(nil)
	events.On("PublishChange", mock.AnythingOfType("models.ChangeEvent")).Return()

	perf, err := svc.Start("inst1", "Bruno", "Yesterday", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.PerformanceActive, perf.Status)

	db.AssertExpectations(t)
	waitlist.AssertExpectations(t)
}

func TestCloseConsumesWaitlistEntry(t *testing.T) {
	db, _, waitlist, events, svc := newMocks()

	perf := &models.Performance{
		ID:              "perf-1",
		InstanceID:      "inst1",
		WaitlistEntryID: "entry-1",
		Status:          models.PerformanceActive,
		AverageScore:    9.0,
		VoteCount:       2,
	}
	db.On("GetPerformanceByID", "inst1", "perf-1").Return(perf, nil)
	db.On("ClosePerformance", "perf-1").Return(nil)
	waitlist.On("MarkDone", "inst1", "entry-1").Return(nil)
	events.On("PublishChange", mock.MatchedBy(func(e models.ChangeEvent) bool {
		payload, ok := e.Payload.(models.Performance)
		return ok && payload.Status == models.PerformanceClosed && payload.AverageScore == 9.0
	})).Return()

	require.NoError(t, svc.Close("inst1", "perf-1"))

	db.AssertExpectations(t)
	waitlist.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestCloseAlreadyClosedIsNoOp(t *testing.T) {
	db, _, waitlist, _, svc := newMocks()

	perf := &models.Performance{
		ID:         "perf-1",
		InstanceID: "inst1",
		Status:     models.PerformanceClosed,
	}
	db.On("GetPerformanceByID", "inst1", "perf-1").Return(perf, nil)

	require.NoError(t, svc.Close("inst1", "perf-1"))

	db.AssertNotCalled(t, "ClosePerformance", mock.Anything)
	waitlist.AssertNotCalled(t, "MarkDone", mock.Anything, mock.Anything)
}

func TestCloseToleratesConsumedEntry(t *testing.T) {
	db, _, waitlist, events, svc := newMocks()

	perf := &models.Performance{
		ID:              "perf-1",
		InstanceID:      "inst1",
		WaitlistEntryID: "entry-gone",
		Status:          models.PerformanceActive,
	}
	db.On("GetPerformanceByID", "inst1", "perf-1").Return(perf, nil)
	db.On("ClosePerformance", "perf-1").Return(nil)
	waitlist.On("MarkDone", "inst1", "entry-gone").Return(models.ErrNotFound)
	events.On("PublishChange", mock.AnythingOfType("models.ChangeEvent")).Return()

	// Entry already removed from the queue: the close still succeeds.
	require.NoError(t, svc.Close("inst1", "perf-1"))
}

func TestCloseUnknownPerformance(t *testing.T) {
	db, _, _, _, svc := newMocks()

	db.On("GetPerformanceByID", "inst1", "missing").Return(nil, sql.ErrNoRows)

	err := svc.Close("inst1", "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestChangeVideoClearsVotes(t *testing.T) {
	db, votes, _, events, svc := newMocks()

	active := &models.Performance{
		ID:           "perf-1",
		InstanceID:   "inst1",
		Status:       models.PerformanceActive,
		AverageScore: 7.5,
		VoteCount:    4,
	}
	swapped := &models.Performance{
		ID:            "perf-1",
		InstanceID:    "inst1",
		Status:        models.PerformanceActive,
		SongReference: "yt:new",
		AverageScore:  0,
		VoteCount:     0,
	}
	db.On("GetPerformanceByID", "inst1", "perf-1").Return(active, nil).Once()
	votes.On("ClearFor", "inst1", "perf-1").Return(nil)
	db.On("UpdateVideo", "perf-1", "yt:new", "New Song", mock.AnythingOfType("time.Time")).Return(nil)
	db.On("GetPerformanceByID", "inst1", "perf-1").Return(swapped, nil).Once()
	events.On("PublishChange", mock.AnythingOfType("models.ChangeEvent")).Return()

	updated, err := svc.ChangeVideo("inst1", "perf-1", models.ChangeVideoRequest{
		SongReference: "yt:new",
		SongTitle:     "New Song",
	})
	require.NoError(t, err)
	assert.Equal(t, "yt:new", updated.SongReference)
	assert.Equal(t, float64(0), updated.AverageScore)
	assert.Equal(t, 0, updated.VoteCount)

	db.AssertExpectations(t)
	votes.AssertExpectations(t)
}

func TestChangeVideoRejectsClosed(t *testing.T) {
	db, votes, _, _, svc := newMocks()

	closed := &models.Performance{
		ID:         "perf-1",
		InstanceID: "inst1",
		Status:     models.PerformanceClosed,
	}
	db.On("GetPerformanceByID", "inst1", "perf-1").Return(closed, nil)

	_, err := svc.ChangeVideo("inst1", "perf-1", models.ChangeVideoRequest{SongReference: "yt:new"})
	assert.True(t, errors.Is(err, models.ErrInvalidState))
	votes.AssertNotCalled(t, "ClearFor", mock.Anything, mock.Anything)
}

func TestChangeVideoValidation(t *testing.T) {
	_, _, _, _, svc := newMocks()

	var validationErr *models.ValidationError
	_, err := svc.ChangeVideo("inst1", "perf-1", models.ChangeVideoRequest{SongReference: "  "})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))
}

func TestCurrentWithNoActive(t *testing.T) {
	db, _, _, _, svc := newMocks()

	db.On("GetActive", "inst1").Return(nil, nil)

	_, err := svc.Current("inst1")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}
