package session

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
	CreatePerformance(perf models.Performance) error
	GetPerformanceByID(instanceID, performanceID string) (*models.Performance, error)
	GetActive(instanceID string) (*models.Performance, error)
	ClosePerformance(performanceID string) error
	UpdateVideo(performanceID, songReference, songTitle string, changedAt time.Time) error
	ListClosed(instanceID string) ([]models.Performance, error)
	DeleteAll(instanceID string) error
}

// VoteClearer wipes a performance's votes when the video changes; prior
// votes no longer describe what was judged.
type VoteClearer interface {
	ClearFor(instanceID, performanceID string) error
}

// DoneMarker consumes the waitlist entry a performance was promoted from.
type DoneMarker interface {
	MarkDone(instanceID, entryID string) error
}

type Publisher interface {
	PublishChange(event models.ChangeEvent)
}

// Service owns the single currently-active performance of an instance.
// State machine: none → active → closed, at most one active at a time.
// The invariant is enforced by procedure: Start always closes the prior
// active row before inserting the next one. Two coordinators racing can
// transiently violate it; accepted for a single-coordinator app.
type Service struct {
	DB       DBLayer
	Votes    VoteClearer
	Waitlist DoneMarker
	Events   Publisher
}

func NewService(db DBLayer, votes VoteClearer, waitlist DoneMarker, events Publisher) *Service {
	return &Service{DB: db, Votes: votes, Waitlist: waitlist, Events: events}
}

// Start activates a new performance, force-closing any prior active one
// first. waitlistEntryID is empty for ad hoc starts; when set it is kept
// on the row so Close can mark the queue entry done.
func (s *Service) Start(instanceID, singer, song, songReference, waitlistEntryID string) (*models.Performance, error) {
	singer = strings.TrimSpace(singer)
	song = strings.TrimSpace(song)
	if singer == "" {
		return nil, models.NewValidationError("singer_name", "must not be empty")
	}
	if song == "" {
		return nil, models.NewValidationError("song_title", "must not be empty")
	}

	prior, err := s.DB.GetActive(instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to read active performance: %w", err)
	}
	if prior != nil {
		// Force-close, keeping whatever average it had accumulated.
		if err := s.close(prior); err != nil {
			return nil, err
		}
	}

	perf := models.Performance{
		ID:              uuid.NewString(),
		InstanceID:      instanceID,
		WaitlistEntryID: waitlistEntryID,
		SingerName:      singer,
		SongTitle:       song,
		SongReference:   strings.TrimSpace(songReference),
		Status:          models.PerformanceActive,
		AverageScore:    0,
		VoteCount:       0,
		CreatedAt:       time.Now(),
	}

	if err := s.DB.CreatePerformance(perf); err != nil {
		return nil, fmt.Errorf("failed to start performance: %w", err)
	}

	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TablePerformances,
		Action:     models.ActionInsert,
		InstanceID: instanceID,
		Payload:    perf,
	})

	return &perf, nil
}

// ChangeVideo swaps the song on the active performance without ending it.
// All existing votes are deleted and the aggregate resets to zero;
// video_changed_at lets connected voters detect the swap and vote again.
func (s *Service) ChangeVideo(instanceID, performanceID string, req models.ChangeVideoRequest) (*models.Performance, error) {
	newRef := strings.TrimSpace(req.SongReference)
	if newRef == "" {
		return nil, models.NewValidationError("song_reference", "must not be empty")
	}

	perf, err := s.get(instanceID, performanceID)
	if err != nil {
		return nil, err
	}
	if perf.Status != models.PerformanceActive {
		return nil, fmt.Errorf("performance %s is not active: %w", performanceID, models.ErrInvalidState)
	}

	if err := s.Votes.ClearFor(instanceID, performanceID); err != nil {
		return nil, fmt.Errorf("failed to clear votes for performance %s: %w", performanceID, err)
	}

	changedAt := time.Now()
	if err := s.DB.UpdateVideo(performanceID, newRef, strings.TrimSpace(req.SongTitle), changedAt); err != nil {
		return nil, fmt.Errorf("failed to change video on performance %s: %w", performanceID, err)
	}

	updated, err := s.get(instanceID, performanceID)
	if err != nil {
		return nil, err
	}

	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TablePerformances,
		Action:     models.ActionUpdate,
		InstanceID: instanceID,
		Payload:    *updated,
	})

	return updated, nil
}

// Close ends a performance, freezing its aggregate as the final score and
// consuming the linked waitlist entry. Closing an already-closed
// performance is a no-op, so stale clients double-closing are harmless.
func (s *Service) Close(instanceID, performanceID string) error {
	perf, err := s.get(instanceID, performanceID)
	if err != nil {
		return err
	}
	if perf.Status == models.PerformanceClosed {
		return nil
	}
	return s.close(perf)
}

// Current returns the instance's active performance.
func (s *Service) Current(instanceID string) (*models.Performance, error) {
	perf, err := s.DB.GetActive(instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to read active performance: %w", err)
	}
	if perf == nil {
		return nil, fmt.Errorf("no active performance for instance %s: %w", instanceID, models.ErrNotFound)
	}
	return perf, nil
}

// Rankings returns the closed performances, best average first.
func (s *Service) Rankings(instanceID string) ([]models.Performance, error) {
	return s.DB.ListClosed(instanceID)
}

// Purge wipes the instance's performance history (explicit reset only).
func (s *Service) Purge(instanceID string) error {
	if err := s.DB.DeleteAll(instanceID); err != nil {
		return fmt.Errorf("failed to purge performances: %w", err)
	}

	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TablePerformances,
		Action:     models.ActionDelete,
		InstanceID: instanceID,
		Payload:    map[string]string{"scope": "all"},
	})

	return nil
}

func (s *Service) get(instanceID, performanceID string) (*models.Performance, error) {
	perf, err := s.DB.GetPerformanceByID(instanceID, performanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("performance %s: %w", performanceID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load performance %s: %w", performanceID, err)
	}
	return perf, nil
}

func (s *Service) close(perf *models.Performance) error {
	if err := s.DB.ClosePerformance(perf.ID); err != nil {
		return fmt.Errorf("failed to close performance %s: %w", perf.ID, err)
	}

	if perf.WaitlistEntryID != "" {
		// The queue entry is consumed only now, not at promotion time.
		// Failure is logged upstream but must not undo the close.
		if err := s.Waitlist.MarkDone(perf.InstanceID, perf.WaitlistEntryID); err != nil &&
			!errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("performance %s closed but entry %s not marked done: %w",
				perf.ID, perf.WaitlistEntryID, err)
		}
	}

	closed := *perf
	closed.Status = models.PerformanceClosed

	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TablePerformances,
		Action:     models.ActionUpdate,
		InstanceID: perf.InstanceID,
		Payload:    closed,
	})

	return nil
}
