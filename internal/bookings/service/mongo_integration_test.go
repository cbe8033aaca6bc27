package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"courtbook/internal/bookings/repository"
	"courtbook/internal/bookings/validator"
	mongomigrations "courtbook/internal/migrations/mongo"
	"courtbook/pkg/client"
	"courtbook/pkg/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TestMongo_ConcurrentIdenticalRequests runs the booking race against a real
// replica set when TEST_MONGO_URI points at one. Transactions need a replica
// set, a standalone server rejects them.
func TestMongo_ConcurrentIdenticalRequests(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mc.Disconnect(context.Background()) })
	require.NoError(t, mc.Ping(ctx, nil))

	dbName := "courtbook_it_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	t.Cleanup(func() { _ = mc.Database(dbName).Drop(context.Background()) })

	cfg := testConfig()
	cfg.ReadTimeout = 5 * time.Second
	cfg.WriteTimeout = 30 * time.Second
	cfg.MongoDatabaseName = dbName
	cfg.Client = &client.Client{Mongo: mc}
	require.NoError(t, mongomigrations.RunMigration(ctx, mc, dbName, cfg.Log))

	db := mc.Database(dbName)
	now := time.Now().UTC()
	_, err = db.Collection(repository.FacilitiesCollection).InsertOne(ctx,
		model.Facility{ID: "fac-1", OwnerID: ownerID, Name: "Integration", CreatedAt: now})
	require.NoError(t, err)
	_, err = db.Collection(repository.CourtsCollection).InsertOne(ctx,
		model.Court{ID: courtID, FacilityID: "fac-1", Name: "Integration court", OpenMinute: 0, CloseMinute: 1439, PricePerHour: 500, CreatedAt: now})
	require.NoError(t, err)

	repo := repository.NewMongoBookingRepository(cfg)
	svc := NewBookingService(repo, validator.NewBookingValidator(cfg.Log), nil, nil, nil, cfg)

	start := now.Truncate(time.Hour).Add(48 * time.Hour)
	succeeded, unavailable := raceCreates(t, svc, courtID, start, start.Add(time.Hour), 16)

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 15, unavailable)

	live, err := repo.FindOverlappingBookings(ctx, courtID, start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, live, 1)
}
