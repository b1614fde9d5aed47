// Package events publishes persisted chat activity to Kafka for downstream
// consumers (search indexing, analytics). The stream is best-effort; the
// database record stays authoritative.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"chat-app/internal/models"
)

type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer connects a sync producer for the message audit stream.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Version = sarama.V2_0_0_0
	config.ClientID = "chat-app"

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		topic:    topic,
	}, nil
}

// PublishMessage emits one persisted message, keyed by sender so a user's
// messages stay in partition order.
func (p *Producer) PublishMessage(msg *models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message event: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.SenderID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("publish message event: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
