package instance

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"ms-karaoke/internal/logger"
)

// ExpiryWatcher listens for Redis keyspace expiry notifications and
// expires the matching event instance. Requires notify-keyspace-events
// to include "Ex"; main enables it at startup.
type ExpiryWatcher struct {
	Redis   *redis.Client
	Service *Service
	Logger  *logger.Logger
}

func NewExpiryWatcher(redisClient *redis.Client, service *Service, log *logger.Logger) *ExpiryWatcher {
	return &ExpiryWatcher{Redis: redisClient, Service: service, Logger: log}
}

// Start subscribes and consumes in a background goroutine until ctx is
// cancelled.
func (w *ExpiryWatcher) Start(ctx context.Context) {
	channel := fmt.Sprintf("__keyevent@%d__:expired", w.Redis.Options().DB)
	pubsub := w.Redis.PSubscribe(ctx, channel)
	w.Logger.Info("REDIS", fmt.Sprintf("Subscribed to Redis keyevent expired notifications (DB %d)", w.Redis.Options().DB))

	go func() {
		defer pubsub.Close()
		for {
			select {
			case msg, open := <-pubsub.Channel():
				if !open {
					return
				}
				w.handle(msg.Payload)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (w *ExpiryWatcher) handle(key string) {
	if !strings.HasPrefix(key, ExpiryKeyPrefix) {
		return
	}
	instanceID := strings.TrimPrefix(key, ExpiryKeyPrefix)
	w.Logger.Info("INSTANCE", fmt.Sprintf("Expiry key fired for instance: %s", instanceID))

	if err := w.Service.Expire(instanceID); err != nil {
		w.Logger.Error("INSTANCE", fmt.Sprintf("Failed to expire instance %s: %v", instanceID, err))
	}
}
