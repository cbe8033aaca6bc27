package main

import (
	"context"
	"fmt"
	"time"

	mongoMigration "courtbook/internal/migrations/mongo"
	postgresMigration "courtbook/internal/migrations/postgres"
	"courtbook/pkg/config"
)

const JobName = "migrate"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetStore()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting migration job", "store", cfg.StoreDriver)
	if err := migrate(ctx, cfg); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}
	fmt.Println("Migration completed successfully.")
}

func migrate(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return postgresMigration.RunMigration(cfg.Client.Postgres, cfg.Log)
	case config.StoreDriverMongo:
		return mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log)
	default:
		cfg.Log.Info("Nothing to migrate for store", "store", cfg.StoreDriver)
		return nil
	}
}
