package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-karaoke/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer}
}

// Publish writes a single message to the given topic.
func (p *Producer) Publish(topic, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

// PublishChange mirrors a row-change event onto the topic for its table.
// The message is keyed by instance id so per-instance ordering holds.
func (p *Producer) PublishChange(event models.ChangeEvent) error {
	topic, ok := topicForTable[event.Table]
	if !ok {
		return fmt.Errorf("no kafka topic mapped for table %q", event.Table)
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Publish(topic, event.InstanceID, msgBytes)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
