package votes

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-karaoke/internal/models"
)

type DBLayer interface {
	HasVote(performanceID, deviceID string) (bool, error)
	CreateVoteAndRecount(vote models.Vote) (avg float64, count int, err error)
	DeleteVotesFor(performanceID string) (int64, error)
	ListVotesFor(performanceID string) ([]models.Vote, error)
	CountVotesFor(performanceID string) (int, error)
	DeleteAll(instanceID string) error
}

// PerformanceGetter looks up the target performance so votes on closed or
// vanished rounds are rejected.
type PerformanceGetter interface {
	GetPerformanceByID(instanceID, performanceID string) (*models.Performance, error)
}

type Publisher interface {
	PublishChange(event models.ChangeEvent)
}

// Service owns the one-vote-per-device-per-performance ledger and keeps
// the owning performance's aggregate in step with it.
type Service struct {
	DB           DBLayer
	Performances PerformanceGetter
	Events       Publisher
}

func NewService(db DBLayer, performances PerformanceGetter, events Publisher) *Service {
	return &Service{DB: db, Performances: performances, Events: events}
}

// Submit records one device's 0-10 score for the active performance and
// recomputes the aggregate. A second submit from the same device fails
// with ErrDuplicateVote; it never double-counts and never overwrites.
func (s *Service) Submit(instanceID string, req models.SubmitVoteRequest) (*models.Performance, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return nil, models.NewValidationError("device_id", "must not be empty")
	}
	if req.Score < 0 || req.Score > 10 {
		return nil, models.NewValidationError("score", "must be between 0 and 10")
	}

	perf, err := s.Performances.GetPerformanceByID(instanceID, req.PerformanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("performance %s: %w", req.PerformanceID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load performance %s: %w", req.PerformanceID, err)
	}
	if perf.Status != models.PerformanceActive {
		return nil, fmt.Errorf("voting has ended for performance %s: %w", req.PerformanceID, models.ErrInvalidState)
	}

	exists, err := s.DB.HasVote(req.PerformanceID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing vote: %w", err)
	}
	if exists {
		return nil, models.ErrDuplicateVote
	}

	vote := models.Vote{
		ID:            uuid.NewString(),
		PerformanceID: req.PerformanceID,
		InstanceID:    instanceID,
		DeviceID:      deviceID,
		Score:         req.Score,
		CreatedAt:     time.Now(),
	}

	avg, count, err := s.DB.CreateVoteAndRecount(vote)
	if err != nil {
		// Two devices pre-checking at the same instant both pass; the
		// unique (performance_id, device_id) index is the backstop.
		if isUniqueViolation(err) {
			return nil, models.ErrDuplicateVote
		}
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}

	perf.AverageScore = avg
	perf.VoteCount = count

	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TableVotes,
		Action:     models.ActionInsert,
		InstanceID: instanceID,
		Payload:    vote,
	})
	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TablePerformances,
		Action:     models.ActionUpdate,
		InstanceID: instanceID,
		Payload:    *perf,
	})

	return perf, nil
}

// ClearFor deletes all votes for a performance. Only caller: the session
// service's video change.
func (s *Service) ClearFor(instanceID, performanceID string) error {
	removed, err := s.DB.DeleteVotesFor(performanceID)
	if err != nil {
		return fmt.Errorf("failed to clear votes for performance %s: %w", performanceID, err)
	}

	if removed > 0 {
		s.Events.PublishChange(models.ChangeEvent{
			Table:      models.TableVotes,
			Action:     models.ActionDelete,
			InstanceID: instanceID,
			Payload:    map[string]interface{}{"performance_id": performanceID, "removed": removed},
		})
	}

	return nil
}

// ListFor returns the votes attached to a performance.
func (s *Service) ListFor(performanceID string) ([]models.Vote, error) {
	return s.DB.ListVotesFor(performanceID)
}

// CountFor returns the vote cardinality for a performance.
func (s *Service) CountFor(performanceID string) (int, error) {
	return s.DB.CountVotesFor(performanceID)
}

// PurgeInstance wipes every vote of an instance (explicit reset only).
func (s *Service) PurgeInstance(instanceID string) error {
	if err := s.DB.DeleteAll(instanceID); err != nil {
		return fmt.Errorf("failed to purge votes: %w", err)
	}
	return nil
}

// isUniqueViolation matches the driver-specific unique constraint errors
// for Postgres (lib/pq) and SQLite (sqliteshim).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
