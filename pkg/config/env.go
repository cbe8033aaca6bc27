package config

const (
	EnvStoreDriver = "STORE_DRIVER"

	EnvDatabaseURL       = "DATABASE_URL"
	EnvDBMaxOpenConns    = "DB_MAX_OPEN_CONNS"
	EnvDBMaxIdleConns    = "DB_MAX_IDLE_CONNS"
	EnvDBConnMaxLifetime = "DB_CONN_MAX_LIFETIME"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvKafkaEnabled            = "KAFKA_ENABLED"
	EnvKafkaBookingEventsTopic = "KAFKA_BOOKING_EVENTS_TOPIC"
	EnvKafkaBookingEventsDLQ   = "KAFKA_BOOKING_EVENTS_DLQ_TOPIC"
	EnvRealtimeEnabled         = "REALTIME_ENABLED"
	EnvRealtimeChannelPrefix   = "REALTIME_CHANNEL_PREFIX"
	EnvIdempotencyRedisEnabled = "IDEMPOTENCY_REDIS_ENABLED"
	EnvRefundsEnabled          = "REFUNDS_ENABLED"
	EnvRefundQueue             = "REFUND_QUEUE"
	EnvRefundMaxRetry          = "REFUND_MAX_RETRY"
	EnvCancellationGrace       = "CANCELLATION_GRACE"
	EnvOperatingHoursTZ        = "OPERATING_HOURS_TZ"
	EnvCompletionSweepCron     = "COMPLETION_SWEEP_CRON"
	EnvWorkerConcurrency       = "WORKER_CONCURRENCY"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRPS   = "RATE_LIMIT_RPS"
	EnvRateLimitBurst = "RATE_LIMIT_BURST"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
