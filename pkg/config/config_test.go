package config

import (
	"strings"
	"testing"
	"time"

	"courtbook/pkg/logger"
)

func validConfig() *Config {
	return &Config{
		StoreDriver:       StoreDriverPostgres,
		DatabaseURL:       DefaultDatabaseURL,
		DBMaxOpenConns:    10,
		DBMaxIdleConns:    2,
		RedisAddr:         DefaultRedisAddr,
		RefundMaxRetry:    3,
		CancellationGrace: DefaultCancellationGrace,
		OperatingHoursTZ:  "UTC",
		WorkerConcurrency: 4,
		Port:              "8080",
		RateLimitRPS:      1,
		RateLimitBurst:    1,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Hour,
		MaxRequestSize:    1024,
		ReadTimeout:       time.Second,
		WriteTimeout:      time.Second,
		IdleTimeout:       time.Second,
		ShutdownTimeout:   time.Second,
		Log:               logger.New(logger.Config{Level: logger.ERROR}),
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Errorf("expected Location to be resolved to UTC, got %v", cfg.Location)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"bad port", func(c *Config) { c.Port = "0" }, "Port must be between"},
		{"bad driver", func(c *Config) { c.StoreDriver = "sqlite" }, "StoreDriver must be one of"},
		{"bad database url", func(c *Config) { c.DatabaseURL = "mysql://x" }, "DatabaseURL must start with"},
		{"bad mongo uri", func(c *Config) { c.StoreDriver = StoreDriverMongo; c.MongoURI = "http://x"; c.MongoDatabaseName = "db"; c.MongoConnTimeout = time.Second }, "MongoURI must start with"},
		{"bad zone", func(c *Config) { c.OperatingHoursTZ = "Mars/Olympus" }, "OperatingHoursTZ must be a valid"},
		{"negative grace", func(c *Config) { c.CancellationGrace = -time.Minute }, "CancellationGrace cannot be negative"},
		{"redis missing", func(c *Config) { c.RefundsEnabled = true; c.RedisAddr = "" }, "RedisAddr cannot be empty"},
		{"kafka without topic", func(c *Config) { c.KafkaEnabled = true; c.BookingEventsTopic = "" }, "BookingEventsTopic cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestValidate_MemoryDriverSkipsStoreChecks(t *testing.T) {
	cfg := validConfig()
	cfg.StoreDriver = StoreDriverMemory
	cfg.DatabaseURL = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRedactURI(t *testing.T) {
	got := redactURI("postgres://app:secret@db:5432/courtbook")
	if strings.Contains(got, "secret") {
		t.Errorf("credentials leaked: %s", got)
	}
	if got != "postgres://***:***@db:5432/courtbook" {
		t.Errorf("unexpected redaction: %s", got)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_CFG_NUM", "42")
	t.Setenv("TEST_CFG_BAD_NUM", "forty")
	t.Setenv("TEST_CFG_BOOL", "true")
	t.Setenv("TEST_CFG_DURATION", "45m")
	t.Setenv("TEST_CFG_FLOAT", "2.5")

	if got := getEnvNum("TEST_CFG_NUM", 1); got != 42 {
		t.Errorf("getEnvNum = %d", got)
	}
	if got := getEnvNum("TEST_CFG_BAD_NUM", 7); got != 7 {
		t.Errorf("getEnvNum should fall back, got %d", got)
	}
	if got := getEnvBool("TEST_CFG_BOOL", false); !got {
		t.Error("getEnvBool should parse true")
	}
	if got := getEnvDuration("TEST_CFG_DURATION", time.Second); got != 45*time.Minute {
		t.Errorf("getEnvDuration = %s", got)
	}
	if got := getEnvFloat("TEST_CFG_FLOAT", 1); got != 2.5 {
		t.Errorf("getEnvFloat = %v", got)
	}
	if got := getEnvStr("TEST_CFG_MISSING", "fallback"); got != "fallback" {
		t.Errorf("getEnvStr = %s", got)
	}
}

func TestNormalizePagination(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultRequestedPageLimit},
		{-5, DefaultRequestedPageLimit},
		{25, 25},
		{MaxPaginationLimit + 1, MaxPaginationLimit},
	}
	for _, tt := range tests {
		if got := NormalizePaginationLimit(tt.in); got != tt.want {
			t.Errorf("NormalizePaginationLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if NormalizeOffset(-3) != 0 || NormalizeOffset(7) != 7 {
		t.Error("NormalizeOffset should clamp negatives only")
	}
}
