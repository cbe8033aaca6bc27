package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"courtbook/pkg/client"
	"courtbook/pkg/logger"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

type Config struct {
	StoreDriver string

	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaEnabled            bool
	BookingEventsTopic      string
	BookingEventsDLQTopic   string
	RealtimeEnabled         bool
	RealtimeChannelPrefix   string
	IdempotencyRedisEnabled bool

	RefundsEnabled bool
	RefundQueue    string
	RefundMaxRetry int

	CancellationGrace   time.Duration
	OperatingHoursTZ    string
	Location            *time.Location
	CompletionSweepCron string
	WorkerConcurrency   int

	Port string

	RateLimitRPS   float64
	RateLimitBurst int

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		StoreDriver: getEnvStr(EnvStoreDriver, DefaultStoreDriver),

		DatabaseURL:       getEnvStr(EnvDatabaseURL, DefaultDatabaseURL),
		DBMaxOpenConns:    getEnvNum(EnvDBMaxOpenConns, DefaultDBMaxOpenConns),
		DBMaxIdleConns:    getEnvNum(EnvDBMaxIdleConns, DefaultDBMaxIdleConns),
		DBConnMaxLifetime: getEnvDuration(EnvDBConnMaxLifetime, DefaultDBConnMaxLifetime),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		KafkaEnabled:            getEnvBool(EnvKafkaEnabled, false),
		BookingEventsTopic:      getEnvStr(EnvKafkaBookingEventsTopic, DefaultBookingEventsTopic),
		BookingEventsDLQTopic:   getEnvStr(EnvKafkaBookingEventsDLQ, ""),
		RealtimeEnabled:         getEnvBool(EnvRealtimeEnabled, false),
		RealtimeChannelPrefix:   getEnvStr(EnvRealtimeChannelPrefix, DefaultRealtimePrefix),
		IdempotencyRedisEnabled: getEnvBool(EnvIdempotencyRedisEnabled, false),

		RefundsEnabled: getEnvBool(EnvRefundsEnabled, false),
		RefundQueue:    getEnvStr(EnvRefundQueue, DefaultRefundQueue),
		RefundMaxRetry: getEnvNum(EnvRefundMaxRetry, DefaultRefundMaxRetry),

		CancellationGrace:   getEnvDuration(EnvCancellationGrace, DefaultCancellationGrace),
		OperatingHoursTZ:    getEnvStr(EnvOperatingHoursTZ, DefaultOperatingHoursTZ),
		CompletionSweepCron: getEnvStr(EnvCompletionSweepCron, DefaultCompletionSweepCron),
		WorkerConcurrency:   getEnvNum(EnvWorkerConcurrency, DefaultWorkerConcurrency),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRPS:   getEnvFloat(EnvRateLimitRPS, DefaultRateLimitRPS),
		RateLimitBurst: getEnvNum(EnvRateLimitBurst, DefaultRateLimitBurst),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetStore() {
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		cfg.Client.SetPostgres(cfg.Log, client.PostgresOptions{
			URL:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
	case StoreDriverMongo:
		cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
	}
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

// AsynqRedisOpt is the connection the refund queue and the worker share.
func (cfg *Config) AsynqRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// NeedsRedis reports whether any enabled component talks to Redis.
func (cfg *Config) NeedsRedis() bool {
	return cfg.RealtimeEnabled || cfg.IdempotencyRedisEnabled || cfg.RefundsEnabled
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if !regexp.MustCompile(`^postgres(ql)?://`).MatchString(cfg.DatabaseURL) {
			errors = append(errors, fmt.Sprintf("DatabaseURL must start with 'postgres://' or 'postgresql://', got: %s", redactURI(cfg.DatabaseURL)))
		}
		if cfg.DBMaxOpenConns <= 0 {
			errors = append(errors, fmt.Sprintf("DBMaxOpenConns must be positive, got: %d", cfg.DBMaxOpenConns))
		}
		if cfg.DBMaxIdleConns < 0 || cfg.DBMaxIdleConns > cfg.DBMaxOpenConns {
			errors = append(errors, fmt.Sprintf("DBMaxIdleConns must be between 0 and DBMaxOpenConns (%d), got: %d", cfg.DBMaxOpenConns, cfg.DBMaxIdleConns))
		}
	case StoreDriverMongo:
		if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case StoreDriverMemory:
	default:
		errors = append(errors, fmt.Sprintf("StoreDriver must be one of [postgres, mongo, memory], got: %s", cfg.StoreDriver))
	}

	if cfg.NeedsRedis() && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty when realtime, refunds or redis idempotency is enabled")
	}
	if cfg.KafkaEnabled && cfg.BookingEventsTopic == "" {
		errors = append(errors, "BookingEventsTopic cannot be empty when Kafka is enabled")
	}
	if cfg.RefundMaxRetry < 0 {
		errors = append(errors, fmt.Sprintf("RefundMaxRetry cannot be negative, got: %d", cfg.RefundMaxRetry))
	}

	if cfg.CancellationGrace < 0 {
		errors = append(errors, fmt.Sprintf("CancellationGrace cannot be negative, got: %s", cfg.CancellationGrace))
	}
	loc, err := time.LoadLocation(cfg.OperatingHoursTZ)
	if err != nil {
		errors = append(errors, fmt.Sprintf("OperatingHoursTZ must be a valid IANA zone, got: %s", cfg.OperatingHoursTZ))
	} else {
		cfg.Location = loc
	}
	if cfg.WorkerConcurrency <= 0 {
		errors = append(errors, fmt.Sprintf("WorkerConcurrency must be positive, got: %d", cfg.WorkerConcurrency))
	}

	if cfg.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRPS must be positive, got: %v", cfg.RateLimitRPS))
	}
	if cfg.RateLimitBurst <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitBurst must be positive, got: %d", cfg.RateLimitBurst))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_driver", cfg.StoreDriver,
		"database_url", redactURI(cfg.DatabaseURL),
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"kafka_enabled", cfg.KafkaEnabled,
		"booking_events_topic", cfg.BookingEventsTopic,
		"realtime_enabled", cfg.RealtimeEnabled,
		"idempotency_redis_enabled", cfg.IdempotencyRedisEnabled,
		"refunds_enabled", cfg.RefundsEnabled,
		"refund_queue", cfg.RefundQueue,
		"cancellation_grace", cfg.CancellationGrace,
		"operating_hours_tz", cfg.OperatingHoursTZ,
		"completion_sweep_cron", cfg.CompletionSweepCron,
		"port", cfg.Port,
		"rate_limit_rps", cfg.RateLimitRPS,
		"rate_limit_burst", cfg.RateLimitBurst,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

var credentialRegex = regexp.MustCompile(`(://)[^:/@]+:[^@]+@`)

func redactURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultRequestedPageLimit
	} else if limit > MaxPaginationLimit {
		limit = MaxPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
