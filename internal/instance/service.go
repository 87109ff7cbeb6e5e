package instance

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ms-karaoke/internal/logger"
	"ms-karaoke/internal/models"
)

// ExpiryKeyPrefix is the Redis key prefix carrying each instance's TTL.
// When the key expires, the keyspace notification drives Expire.
const ExpiryKeyPrefix = "instance_expiry:"

type DBLayer interface {
	CreateInstance(instance models.EventInstance) error
	GetInstanceByID(instanceID string) (*models.EventInstance, error)
	UpdateStatus(instanceID, status string) error
	ArchiveRankings(rows []models.RankingArchive) error
}

// SessionAdmin is the slice of the performance session the instance
// lifecycle needs: force-closing the stage and wiping history on reset.
type SessionAdmin interface {
	Current(instanceID string) (*models.Performance, error)
	Close(instanceID, performanceID string) error
	Rankings(instanceID string) ([]models.Performance, error)
	Purge(instanceID string) error
}

type WaitlistAdmin interface {
	Reset(instanceID string) error
}

type VoteAdmin interface {
	PurgeInstance(instanceID string) error
}

type Publisher interface {
	PublishChange(event models.ChangeEvent)
}

// Service owns the event-instance lifecycle: creation with a TTL, reset,
// and expiry. All other entities are scoped to an instance id.
type Service struct {
	DB       DBLayer
	Session  SessionAdmin
	Waitlist WaitlistAdmin
	Votes    VoteAdmin
	Redis    *redis.Client
	Events   Publisher
	Logger   *logger.Logger
}

func NewService(db DBLayer, session SessionAdmin, waitlist WaitlistAdmin, votes VoteAdmin,
	redisClient *redis.Client, events Publisher, log *logger.Logger) *Service {
	return &Service{
		DB:       db,
		Session:  session,
		Waitlist: waitlist,
		Votes:    votes,
		Redis:    redisClient,
		Events:   events,
		Logger:   log,
	}
}

// Create opens a new instance and plants its Redis expiry key.
func (s *Service) Create(name string, ttl time.Duration) (*models.EventInstance, error) {
	if name == "" {
		return nil, models.NewValidationError("name", "must not be empty")
	}
	if ttl <= 0 {
		return nil, models.NewValidationError("ttl", "must be positive")
	}

	instance := models.EventInstance{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    models.InstanceOpen,
		JoinCode:  newJoinCode(),
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}

	if err := s.DB.CreateInstance(instance); err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	if s.Redis != nil {
		key := ExpiryKeyPrefix + instance.ID
		if err := s.Redis.Set(context.Background(), key, "1", ttl).Err(); err != nil {
			// The instance still works; it just won't auto-expire.
			s.Logger.Warn("REDIS", fmt.Sprintf("Failed to set expiry key for instance %s: %v", instance.ID, err))
		}
	}

	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TableInstances,
		Action:     models.ActionInsert,
		InstanceID: instance.ID,
		Payload:    instance,
	})

	return &instance, nil
}

// Get returns one instance.
func (s *Service) Get(instanceID string) (*models.EventInstance, error) {
	instance, err := s.DB.GetInstanceByID(instanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("instance %s: %w", instanceID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load instance %s: %w", instanceID, err)
	}
	return instance, nil
}

// Reset wipes the instance's queue, performances and votes. The final
// rankings are archived first, best-effort: an archive failure is logged
// and never blocks the reset.
func (s *Service) Reset(instanceID string) error {
	if _, err := s.Get(instanceID); err != nil {
		return err
	}

	s.archiveRankings(instanceID)

	if err := s.Votes.PurgeInstance(instanceID); err != nil {
		return err
	}
	if err := s.Session.Purge(instanceID); err != nil {
		return err
	}
	if err := s.Waitlist.Reset(instanceID); err != nil {
		return err
	}

	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TableInstances,
		Action:     models.ActionUpdate,
		InstanceID: instanceID,
		Payload:    map[string]string{"id": instanceID, "event": "reset"},
	})

	s.Logger.Info("INSTANCE", fmt.Sprintf("Instance %s reset", instanceID))
	return nil
}

// Expire marks the instance expired and force-closes whatever is on
// stage. Driven by the Redis expiry watcher; safe to call twice.
func (s *Service) Expire(instanceID string) error {
	instance, err := s.Get(instanceID)
	if err != nil {
		return err
	}
	if instance.Status == models.InstanceExpired {
		return nil
	}

	if active, err := s.Session.Current(instanceID); err == nil {
		if err := s.Session.Close(instanceID, active.ID); err != nil {
			s.Logger.Error("INSTANCE", fmt.Sprintf("Failed to close active performance on expiry: %v", err))
		}
	}

	if err := s.DB.UpdateStatus(instanceID, models.InstanceExpired); err != nil {
		return fmt.Errorf("failed to expire instance %s: %w", instanceID, err)
	}

	instance.Status = models.InstanceExpired
	s.Events.PublishChange(models.ChangeEvent{
		Table:      models.TableInstances,
		Action:     models.ActionUpdate,
		InstanceID: instanceID,
		Payload:    *instance,
	})

	s.Logger.Info("INSTANCE", fmt.Sprintf("Instance %s expired", instanceID))
	return nil
}

func (s *Service) archiveRankings(instanceID string) {
	rankings, err := s.Session.Rankings(instanceID)
	if err != nil {
		s.Logger.Warn("INSTANCE", fmt.Sprintf("Skipping ranking archive for %s: %v", instanceID, err))
		return
	}

	rows := make([]models.RankingArchive, 0, len(rankings))
	now := time.Now()
	for _, p := range rankings {
		rows = append(rows, models.RankingArchive{
			ID:           uuid.NewString(),
			InstanceID:   instanceID,
			SingerName:   p.SingerName,
			SongTitle:    p.SongTitle,
			AverageScore: p.AverageScore,
			VoteCount:    p.VoteCount,
			ArchivedAt:   now,
		})
	}

	if err := s.DB.ArchiveRankings(rows); err != nil {
		s.Logger.Warn("INSTANCE", fmt.Sprintf("Failed to archive rankings for %s: %v", instanceID, err))
	}
}

func newJoinCode() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	code := make([]byte, 6)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		code[i] = alphabet[n.Int64()]
	}
	return string(code)
}
