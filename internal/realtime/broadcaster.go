package realtime

import (
	"fmt"

	"ms-karaoke/internal/logger"
	"ms-karaoke/internal/models"
)

// KafkaPublisher mirrors change events onto the Kafka topic stream.
type KafkaPublisher interface {
	PublishChange(event models.ChangeEvent) error
}

// Broadcaster is the single publish point the services use. Every change
// goes to the in-process SSE emitter and, when configured, to Kafka.
// Kafka failures are logged and never fail the originating mutation.
type Broadcaster struct {
	Emitter *Emitter
	Kafka   KafkaPublisher
	Logger  *logger.Logger
}

func NewBroadcaster(emitter *Emitter, kafka KafkaPublisher, log *logger.Logger) *Broadcaster {
	return &Broadcaster{Emitter: emitter, Kafka: kafka, Logger: log}
}

func (b *Broadcaster) PublishChange(event models.ChangeEvent) {
	b.Emitter.Publish(event)

	if b.Kafka != nil {
		if err := b.Kafka.PublishChange(event); err != nil {
			b.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s/%s event: %v", event.Table, event.Action, err))
		}
	}
}
