package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/Dhoini/saas-platform/pkg/logger"
)

// TopicConfig возвращает параметры топика доменных событий
func TopicConfig(topic string) kafkaGo.TopicConfig {
	return kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}
}

// ValidateBroker проверяет формат адреса брокера host:port
func ValidateBroker(broker string) error {
	broker = strings.TrimSpace(broker)
	if broker == "" {
		return errors.New("kafka broker address is empty")
	}
	_, portStr, err := net.SplitHostPort(broker)
	if err != nil {
		return fmt.Errorf("invalid broker address %s: %w", broker, err)
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return fmt.Errorf("invalid broker port %s: %w", broker, err)
	}
	return nil
}

// EnsureTopic проверяет и при необходимости создает топик доменных событий.
func EnsureTopic(ctx context.Context, cfg *Config, log *logger.Logger) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("kafka broker address is empty")
	}
	if err := ValidateBroker(cfg.Brokers[0]); err != nil {
		log.Errorw("Invalid Kafka broker address", "broker", cfg.Brokers[0], "error", err)
		return err
	}

	connCtx, cancelConn := context.WithTimeout(ctx, 15*time.Second)
	defer cancelConn()

	conn, err := kafkaGo.DialContext(connCtx, "tcp", strings.TrimSpace(cfg.Brokers[0]))
	if err != nil {
		log.Errorw("Failed to connect to Kafka broker for topic creation", "broker", cfg.Brokers[0], "error", err)
		return fmt.Errorf("kafka connection failed: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(cfg.Topic)
	if err == nil && len(partitions) > 0 {
		log.Debugw("Topic already exists", "topic", cfg.Topic, "partitions", len(partitions))
		return nil
	}

	// Создавать топики может только контроллер кластера
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller lookup failed: %w", err)
	}
	ctrlConn, err := kafkaGo.DialContext(connCtx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka controller connection failed: %w", err)
	}
	defer ctrlConn.Close()

	log.Infow("Creating Kafka topic", "topic", cfg.Topic)
	if err := ctrlConn.CreateTopics(TopicConfig(cfg.Topic)); err != nil {
		if errors.Is(err, kafkaGo.TopicAlreadyExists) {
			log.Warnw("Topic already existed during creation attempt", "topic", cfg.Topic)
			return nil
		}
		log.Errorw("Failed to create topic", "error", err, "topic", cfg.Topic)
		return fmt.Errorf("kafka create topic failed: %w", err)
	}
	return nil
}
