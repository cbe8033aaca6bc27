package main

import (
	"courtbook/internal/bookings/events"
	"courtbook/internal/bookings/handler"
	"courtbook/internal/bookings/refunds"
	"courtbook/internal/bookings/repository"
	"courtbook/internal/bookings/service"
	"courtbook/internal/bookings/validator"
	"courtbook/pkg/app"
	"courtbook/pkg/config"
	"courtbook/pkg/kafka"
	kafka_config "courtbook/pkg/kafka/config"
	kafka_middleware "courtbook/pkg/kafka/middleware"
	"courtbook/pkg/model"

	"github.com/hibiken/asynq"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStore()
	if cfg.NeedsRedis() {
		cfg.SetRedis()
	}
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Bookings service", "store", cfg.StoreDriver)

	serverApp := app.NewApplication()
	repo := newRepository(cfg)
	bookingService := service.NewBookingService(
		repo,
		validator.NewBookingValidator(cfg.Log),
		newNotifier(cfg, serverApp),
		newBroadcaster(cfg),
		newRefunder(cfg, serverApp, repo),
		cfg,
	)

	serverApp.SetApp(cfg, handler.NewBookingHandler(bookingService, cfg.Log), bookingService)
	serverApp.Run()
}

func newRepository(cfg *config.Config) repository.BookingRepository {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return repository.NewPostgresBookingRepository(cfg)
	case config.StoreDriverMongo:
		return repository.NewMongoBookingRepository(cfg)
	default:
		cfg.Log.Warn("Using the in-memory store; data is lost on restart")
		repo := repository.NewMemoryBookingRepository()
		seedDemo(repo)
		return repo
	}
}

// seedDemo gives a memory-backed instance one bookable court.
func seedDemo(repo *repository.MemoryBookingRepository) {
	repo.AddFacility(model.Facility{ID: "demo-facility", OwnerID: "demo-owner", Name: "Demo Center"})
	repo.AddCourt(model.Court{ID: "demo-court", FacilityID: "demo-facility", Name: "Court 1", OpenMinute: 360, CloseMinute: 1320, PricePerHour: 100})
}

func newNotifier(cfg *config.Config, serverApp *app.Application) events.Notifier {
	if !cfg.KafkaEnabled {
		return events.NewEventNotifier(events.NopPublisher{})
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.BookingEventsDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.MetricsProducerMiddleware())
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})

	cfg.Log.Info("Booking events published to Kafka", "topic", cfg.BookingEventsTopic)
	return events.NewEventNotifier(events.NewKafkaPublisher(producer, ServiceName))
}

func newBroadcaster(cfg *config.Config) events.Broadcaster {
	if !cfg.RealtimeEnabled {
		return events.NewRealtimeBroadcaster(events.NopPublisher{})
	}
	cfg.Log.Info("Realtime updates published to Redis", "prefix", cfg.RealtimeChannelPrefix)
	return events.NewRealtimeBroadcaster(events.NewRedisPublisher(cfg.Client.Redis, cfg.RealtimeChannelPrefix))
}

func newRefunder(cfg *config.Config, serverApp *app.Application, payments refunds.PaymentStore) refunds.Refunder {
	if !cfg.RefundsEnabled {
		cfg.Log.Info("Refund queue disabled, refunding in-process")
		return refunds.NewDirectRefunder(payments)
	}

	client := asynq.NewClient(cfg.AsynqRedisOpt())
	serverApp.OnShutdown(func() {
		if err := client.Close(); err != nil {
			cfg.Log.Error("Failed to close refund queue client", "error", err)
		}
	})

	cfg.Log.Info("Refunds enqueued", "queue", cfg.RefundQueue, "max_retry", cfg.RefundMaxRetry)
	return refunds.NewQueueRefunder(client, cfg.RefundQueue, cfg.RefundMaxRetry)
}
