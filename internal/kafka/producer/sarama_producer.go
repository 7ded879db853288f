package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/Dhoini/saas-platform/internal/kafka"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

type saramaProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

var _ kafka.Publisher = (*saramaProducer)(nil)

// NewSaramaProducer оборачивает синхронный продюсер Sarama в kafka.Publisher
func NewSaramaProducer(producer sarama.SyncProducer, topic string, log *logger.Logger) kafka.Publisher {
	return &saramaProducer{
		producer: producer,
		topic:    topic,
		log:      log.Named("sarama"),
	}
}

// Dial подключается к брокерам и создает синхронный продюсер
func Dial(cfg *kafka.Config, log *logger.Logger) (kafka.Publisher, error) {
	sp, err := sarama.NewSyncProducer(cfg.Brokers, kafka.NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create sarama producer: %w", err)
	}
	log.Infow("Sarama producer initialized", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewSaramaProducer(sp, cfg.Topic, log), nil
}

// Publish публикует доменное событие в Kafka
func (p *saramaProducer) Publish(ctx context.Context, event kafka.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, value, err := kafka.Encode(event)
	if err != nil {
		return err
	}

	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(event.Type),
			},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		p.log.Errorw("Failed to publish event", "error", err, "topic", p.topic, "type", event.Type)
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	p.log.Debugw("Published event", "topic", p.topic, "type", event.Type, "partition", partition, "offset", offset)
	return nil
}

// Close закрывает продюсер
func (p *saramaProducer) Close() error {
	return p.producer.Close()
}
