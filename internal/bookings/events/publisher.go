package events

import (
	"context"
	"encoding/json"
	"fmt"

	"courtbook/pkg/kafka"

	"github.com/redis/go-redis/v9"
)

// Publisher hands a payload to a transport under a logical topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// KafkaPublisher writes every topic to one Kafka stream. The logical topic
// becomes both the message key and the event-type header.
type KafkaPublisher struct {
	producer *kafka.Producer
	source   string
}

func NewKafkaPublisher(producer *kafka.Producer, source string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, source: source}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, payload any) error {
	msg, err := kafka.NewMessage().
		WithKey(topic).
		WithEventType(topic).
		WithSource(p.source).
		WithSchemaVersion(SchemaVersion).
		WithCorrelationID(correlationID(ctx)).
		WithValue(payload).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

// RedisPublisher does PUBLISH <prefix>:<topic> with a JSON body.
type RedisPublisher struct {
	client redis.Cmdable
	prefix string
}

func NewRedisPublisher(client redis.Cmdable, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Channel(topic string) string {
	if p.prefix == "" {
		return topic
	}
	return p.prefix + ":" + topic
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode realtime payload: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(topic), string(body)).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.Channel(topic), err)
	}
	return nil
}
