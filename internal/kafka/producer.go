package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Dhoini/saas-platform/pkg/logger"
)

// Типы доменных событий
const (
	EventUserRegistered      = "user.registered"
	EventUserDeleted         = "user.deleted"
	EventSubscriptionChanged = "subscription.changed"
	EventAnalyticsTracked    = "analytics.tracked"
)

// Event - доменное событие для внешних потребителей.
// Ключ сообщения - UserID, чтобы события одного пользователя шли в одну партицию.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload,omitempty"`
}

// Publisher определяет интерфейс для публикации доменных событий.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	// Close закрывает соединение продюсера.
	Close() error
}

// Encode возвращает ключ и тело сообщения
func Encode(event Event) ([]byte, []byte, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka: failed to marshal event %s: %w", event.Type, err)
	}
	return []byte(event.UserID), value, nil
}

// messageWriter - часть kafka.Writer, которую использует продюсер
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaProducer реализует интерфейс Publisher, используя segmentio/kafka-go.
type kafkaProducer struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	log     *logger.Logger
}

// NewKafkaProducer создает и настраивает новый продюсер Kafka.
func NewKafkaProducer(cfg *Config, log *logger.Logger) (Publisher, error) {
	// Проверяем, что список брокеров не пуст
	if len(cfg.Brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           cfg.WriteTimeout,
		ReadTimeout:            cfg.WriteTimeout,
		AllowAutoTopicCreation: false,
	}

	log.Infow("Kafka producer initialized", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return newKafkaProducer(writer, cfg, log), nil
}

func newKafkaProducer(w messageWriter, cfg *Config, log *logger.Logger) *kafkaProducer {
	return &kafkaProducer{
		writer:  w,
		topic:   cfg.Topic,
		timeout: cfg.WriteTimeout,
		log:     log.Named("kafka"),
	}
}

// Publish сериализует событие в JSON и отправляет его в топик.
func (k *kafkaProducer) Publish(ctx context.Context, event Event) error {
	key, value, err := Encode(event)
	if err != nil {
		k.log.Errorw("Failed to encode event for Kafka", "error", err, "type", event.Type)
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	err = k.writer.WriteMessages(writeCtx, kafka.Message{
		Key:     key,
		Value:   value,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(event.Type)}},
		Time:    time.Now(),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", k.topic, "type", event.Type)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", k.topic, "type", event.Type)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Published event to Kafka", "topic", k.topic, "type", event.Type, "userID", event.UserID)
	return nil
}

// Close закрывает соединение Kafka Writer.
func (k *kafkaProducer) Close() error {
	k.log.Infow("Closing Kafka producer writer...")
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	return nil
}

// NopPublisher отбрасывает события. Используется при events.driver=none.
type NopPublisher struct{}

// Publish ничего не делает
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close ничего не делает
func (NopPublisher) Close() error { return nil }
