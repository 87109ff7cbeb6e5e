package waitlist

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-karaoke/internal/models"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

type DBLayer interface {
	CreateEntry(entry models.WaitlistEntry) error
	GetEntryByID(instanceID, entryID string) (*models.WaitlistEntry, error)
	ListWaiting(instanceID string) ([]models.WaitlistEntry, error)
	WaitingPriorityBounds(instanceID string) (min int, max int, count int, err error)
	UpdatePriority(entryID string, priority int) error
	MarkDone(entryID string) (int64, error)
	DeleteEntry(instanceID, entryID string) (int64, error)
	DeleteByRegistrant(instanceID, registeredBy string) (int64, error)
	DeleteAll(instanceID string) error
}

type Publisher interface {
	PublishChange(event models.ChangeEvent)
}

// Service owns the ordered queue of pending singers for one event
// instance. Visible order is always (priority ASC, created_at ASC).
type Service struct {
	DB     DBLayer
	Events Publisher
}

func NewService(db DBLayer, events Publisher) *Service {
	return &Service{DB: db, Events: events}
}

// Enqueue inserts a new waiting entry. Insert-first entries take the
// current minimum priority minus one and become the next singer; fair
// entries join the back at the current maximum plus one.
func (s *Service) Enqueue(instanceID string, req models.EnqueueRequest) (*models.WaitlistEntry, error) {
	singer := strings.TrimSpace(req.SingerName)
	song := strings.TrimSpace(req.SongTitle)
	if singer == "" {
		return nil, models.NewValidationError("singer_name", "must not be empty")
	}
	if song == "" {
		return nil, models.NewValidationError("song_title", "must not be empty")
	}

	policy := req.InsertPolicy
	if policy == "" {
		policy = models.InsertFair
	}
	if policy != models.InsertFirst && policy != models.InsertFair {
		return nil, models.NewValidationError("insert_policy", fmt.Sprintf("unknown policy %q", policy))
	}

	min, max, count, err := s.DB.WaitingPriorityBounds(instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue bounds: %w", err)
	}

	priority := 0
	if count > 0 {
		if policy == models.InsertFirst {
			priority = min - 1
		} else {
			priority = max + 1
		}
	}

	entry := models.WaitlistEntry{
		ID:            uuid.NewString(),
		InstanceID:    instanceID,
		SingerName:    singer,
		SongTitle:     song,
		SongReference: strings.TrimSpace(req.SongReference),
		Status:        models.EntryWaiting,
		Priority:      priority,
		RegisteredBy:  strings.TrimSpace(req.RegisteredBy),
		CreatedAt:     time.Now(),
	}

	if err := s.DB.CreateEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to enqueue entry: %w", err)
	}

	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TableWaitlist,
		Action:     models.ActionInsert,
		InstanceID: instanceID,
		Payload:    entry,
	})

	return &entry, nil
}

// List returns the waiting entries in visible order.
func (s *Service) List(instanceID string) ([]models.WaitlistEntry, error) {
	return s.DB.ListWaiting(instanceID)
}

// Reorder swaps the entry's priority with its immediate neighbor in the
// current ordering. At either boundary it is a no-op. Concurrent reorders
// on the same neighbors race; last write wins.
func (s *Service) Reorder(instanceID, entryID, direction string) error {
	if direction != DirectionUp && direction != DirectionDown {
		return models.NewValidationError("direction", fmt.Sprintf("unknown direction %q", direction))
	}

	entries, err := s.DB.ListWaiting(instanceID)
	if err != nil {
		return fmt.Errorf("failed to list queue: %w", err)
	}

	idx := -1
	for i, e := range entries {
		if e.ID == entryID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("entry %s: %w", entryID, models.ErrNotFound)
	}

	neighbor := idx - 1
	if direction == DirectionDown {
		neighbor = idx + 1
	}
	if neighbor < 0 || neighbor >= len(entries) {
		// Boundary: nothing to swap with.
		return nil
	}

	a, b := entries[idx], entries[neighbor]
	if err := s.DB.UpdatePriority(a.ID, b.Priority); err != nil {
		return fmt.Errorf("failed to reorder entry %s: %w", a.ID, err)
	}
	if err := s.DB.UpdatePriority(b.ID, a.Priority); err != nil {
		return fmt.Errorf("failed to reorder entry %s: %w", b.ID, err)
	}

	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TableWaitlist,
		Action:     models.ActionUpdate,
		InstanceID: instanceID,
		Payload:    map[string]string{"id": entryID, "direction": direction},
	})

	return nil
}

// Remove deletes a waiting entry.
func (s *Service) Remove(instanceID, entryID string) error {
	affected, err := s.DB.DeleteEntry(instanceID, entryID)
	if err != nil {
		return fmt.Errorf("failed to remove entry %s: %w", entryID, err)
	}
	if affected == 0 {
		return fmt.Errorf("entry %s: %w", entryID, models.ErrNotFound)
	}

	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TableWaitlist,
		Action:     models.ActionDelete,
		InstanceID: instanceID,
		Payload:    map[string]string{"id": entryID},
	})

	return nil
}

// Withdraw removes every waiting entry registered by the given
// participant, including ones signed up on behalf of others. Removing
// nothing is not an error; the participant may have already been removed.
func (s *Service) Withdraw(instanceID, registeredBy string) (int64, error) {
	registeredBy = strings.TrimSpace(registeredBy)
	if registeredBy == "" {
		return 0, models.NewValidationError("registered_by", "must not be empty")
	}

	affected, err := s.DB.DeleteByRegistrant(instanceID, registeredBy)
	if err != nil {
		return 0, fmt.Errorf("failed to withdraw entries for %q: %w", registeredBy, err)
	}

	if affected > 0 {
		s.Events.PublishChange(models.ChangeEvent{
			Table:      models.TableWaitlist,
			Action:     models.ActionDelete,
			InstanceID: instanceID,
			Payload:    map[string]interface{}{"registered_by": registeredBy, "removed": affected},
		})
	}

	return affected, nil
}

// PromoteNext returns the current head of the queue without mutating it.
// The entry is marked done only when the promoted performance is closed.
func (s *Service) PromoteNext(instanceID string) (*models.WaitlistEntry, error) {
	entries, err := s.DB.ListWaiting(instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("queue for instance %s is empty: %w", instanceID, models.ErrNotFound)
	}
	return &entries[0], nil
}

// MarkDone transitions an entry waiting → done and increments its
// times_sung counter. Matched by the entry id captured at promotion time.
// Already-done entries are a no-op so that double-closing a performance
// stays idempotent.
func (s *Service) MarkDone(instanceID, entryID string) error {
	entry, err := s.DB.GetEntryByID(instanceID, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("entry %s: %w", entryID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to load entry %s: %w", entryID, err)
	}
	if entry.Status == models.EntryDone {
		return nil
	}

	if _, err := s.DB.MarkDone(entryID); err != nil {
		return fmt.Errorf("failed to mark entry %s done: %w", entryID, err)
	}

	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TableWaitlist,
		Action:     models.ActionUpdate,
		InstanceID: instanceID,
		Payload:    map[string]string{"id": entryID, "status": models.EntryDone},
	})

	return nil
}

// Reset wipes the instance's queue.
func (s *Service) Reset(instanceID string) error {
	if err := s.DB.DeleteAll(instanceID); err != nil {
		return fmt.Errorf("failed to reset waitlist: %w", err)
	}

	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TableWaitlist,
		Action:     models.ActionDelete,
		InstanceID: instanceID,
		Payload:    map[string]string{"scope": "all"},
	})

	return nil
}
