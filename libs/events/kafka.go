package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/medibook/medibook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

// kafkaPublisher serializes payloads to JSON and writes them to the
// topic-named Kafka channel. One writer (and its connection pool) is
// shared across all Publish calls in the process; the writer retries
// transient broker errors internally and surfaces the final error to the
// caller instead of dropping silently.
type kafkaPublisher struct {
	writer *kafka.Writer
}

func newKafkaPublisher(brokers string) *kafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(kafkax.SplitBrokers(brokers)...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &kafkaPublisher{writer: writer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, topic string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(topic)},
		},
	}
	if keyed, ok := payload.(Keyed); ok && keyed.Key() != "" {
		msg.Key = []byte(keyed.Key())
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)

	return p.writer.WriteMessages(ctx, msg)
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
