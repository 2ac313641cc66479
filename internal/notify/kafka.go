package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// KafkaSender publishes cycle events to a Kafka topic so downstream systems
// (journals, dashboards) can consume them without polling the order log.
type KafkaSender struct {
	producer sarama.SyncProducer
	topic    string
}

type kafkaEvent struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// NewKafkaSender connects a synchronous producer to the given brokers.
// Messages are acknowledged by all in-sync replicas before Send returns.
func NewKafkaSender(brokers []string, topic string) (*KafkaSender, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	return &KafkaSender{producer: producer, topic: topic}, nil
}

// Send publishes the notification as a JSON record keyed by title.
func (k *KafkaSender) Send(_ context.Context, title, message string) error {
	payload, err := json.Marshal(kafkaEvent{
		Title:   title,
		Message: message,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}
	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(title),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("kafka: publish: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (k *KafkaSender) Name() string { return "kafka" }

// Close shuts the producer down, flushing buffered messages.
func (k *KafkaSender) Close() error {
	return k.producer.Close()
}
