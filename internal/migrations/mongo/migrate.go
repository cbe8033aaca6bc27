package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"courtbook/internal/bookings/repository"
	"courtbook/internal/migrations/mongo/validators"
	"courtbook/pkg/logger"
)

var (
	FacilitiesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	}

	CourtsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "facility_id", Value: 1}}},
	}

	BookingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "court_id", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "end_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "start_time", Value: -1},
		}},
		{
			Keys:    bson.D{{Key: "end_time", Value: 1}},
			Options: options.Index().SetPartialFilterExpression(bson.M{"status": "CONFIRMED"}),
		},
	}

	MaintenanceBlocksIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "court_id", Value: 1}, {Key: "start_time", Value: 1}}},
	}

	PaymentsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func collections() map[string]collectionDef {
	return map[string]collectionDef{
		repository.FacilitiesCollection: {
			Indexes:   FacilitiesIndexes,
			Validator: validators.FacilityValidator,
		},
		repository.CourtsCollection: {
			Indexes:   CourtsIndexes,
			Validator: validators.CourtValidator,
		},
		repository.BookingsCollection: {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
		repository.MaintenanceBlocksCollection: {
			Indexes:   MaintenanceBlocksIndexes,
			Validator: validators.MaintenanceBlockValidator,
		},
		repository.PaymentsCollection: {
			Indexes:   PaymentsIndexes,
			Validator: validators.PaymentValidator,
		},
	}
}

// RunMigration creates the scheduling collections with their validators and
// indexes. Collections are created up front because multi-document
// transactions cannot create them implicitly on older servers.
func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for name, def := range collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
		log.Debug("Ensured collection", "collection", name)
	}

	log.Info("All Mongo migrations applied")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	_, err := db.Collection(name).Indexes().CreateMany(ctx, models)
	return err
}
