package kafka_middleware

import (
	"context"

	"courtbook/pkg/kafka"
	"courtbook/pkg/metrics"
)

const transportKafka = "kafka"

func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		err := next(ctx, msg)
		metrics.RecordEventPublished(transportKafka, err)
		return err
	}
}
