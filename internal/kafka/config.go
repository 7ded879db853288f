package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

// Драйверы публикации доменных событий
const (
	DriverNone   = "none"
	DriverKafka  = "kafka"
	DriverSarama = "sarama"
)

// DefaultTopic - топик доменных событий по умолчанию
const DefaultTopic = "saas.events"

// Config конфигурация для Kafka
type Config struct {
	Driver       string
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// NewConfig создает новую конфигурацию Kafka
func NewConfig(driver string, brokers []string, topic string) *Config {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Config{
		Driver:       driver,
		Brokers:      brokers,
		Topic:        topic,
		WriteTimeout: 5 * time.Second,
	}
}

// NewSaramaConfig создает новую конфигурацию Sarama для синхронного продюсера
func NewSaramaConfig(cfg *Config) *sarama.Config {
	saramaConfig := sarama.NewConfig()

	// Версия Kafka
	saramaConfig.Version = sarama.V3_3_0_0

	saramaConfig.Producer.MaxMessageBytes = 1000000
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Timeout = cfg.WriteTimeout
	saramaConfig.Producer.Retry.Max = 3
	// SyncProducer требует оба флага
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	return saramaConfig
}
