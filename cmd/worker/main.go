package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"courtbook/internal/bookings/refunds"
	"courtbook/internal/bookings/repository"
	"courtbook/internal/bookings/service"
	"courtbook/internal/bookings/validator"
	"courtbook/pkg/config"
	"courtbook/pkg/logger"

	"github.com/hibiken/asynq"
)

const ServiceName = "bookings-worker"

// sweepUniqueTTL keeps overlapping scheduler instances from queueing the sweep twice.
const sweepUniqueTTL = time.Minute

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStore()
	defer cfg.GracefulShutdown()

	repo := newRepository(cfg)
	bookingService := service.NewBookingService(repo, validator.NewBookingValidator(cfg.Log), nil, nil, nil, cfg)
	processor := refunds.NewProcessor(repo, bookingService, cfg.Log)

	asynqLog := logger.NewAsynqLogger(cfg.Log)
	srv := asynq.NewServer(
		cfg.AsynqRedisOpt(),
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				cfg.RefundQueue: 6,
				"default":       1,
			},
			Logger: asynqLog,
		},
	)

	mux := asynq.NewServeMux()
	processor.Register(mux)

	scheduler := asynq.NewScheduler(cfg.AsynqRedisOpt(), &asynq.SchedulerOpts{
		Location: cfg.Location,
		Logger:   asynqLog,
	})
	entryID, err := scheduler.Register(cfg.CompletionSweepCron, refunds.NewCompletionSweepTask(), asynq.Unique(sweepUniqueTTL))
	if err != nil {
		cfg.Log.Fatal("Failed to register completion sweep", "error", err, "cron", cfg.CompletionSweepCron)
	}
	cfg.Log.Info("Completion sweep scheduled", "cron", cfg.CompletionSweepCron, "entry_id", entryID)

	if err := srv.Start(mux); err != nil {
		cfg.Log.Fatal("Failed to start worker", "error", err)
	}
	if err := scheduler.Start(); err != nil {
		cfg.Log.Fatal("Failed to start scheduler", "error", err)
	}
	cfg.Log.Info("Worker started", "queue", cfg.RefundQueue, "concurrency", cfg.WorkerConcurrency)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	cfg.Log.Info("Shutdown signal received", "signal", sig)

	scheduler.Shutdown()
	srv.Shutdown()
	cfg.Log.Info("Worker stopped gracefully")
}

func newRepository(cfg *config.Config) repository.BookingRepository {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return repository.NewPostgresBookingRepository(cfg)
	case config.StoreDriverMongo:
		return repository.NewMongoBookingRepository(cfg)
	default:
		cfg.Log.Fatal("The worker needs a shared store", "store", cfg.StoreDriver)
		return nil
	}
}
