package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/pkg/config"
	mongotx "courtbook/pkg/db/mongo"
	"courtbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	FacilitiesCollection        = "Facilities"
	CourtsCollection            = "Courts"
	BookingsCollection          = "Bookings"
	MaintenanceBlocksCollection = "Maintenance_blocks"
	PaymentsCollection          = "Payments"
)

type mongoQueries struct {
	facilities   *mongo.Collection
	courts       *mongo.Collection
	bookings     *mongo.Collection
	maintenance  *mongo.Collection
	payments     *mongo.Collection
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// withTimeout leaves a SessionContext alone; wrapping it would detach the
// operation from the running transaction.
func (q *mongoQueries) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return withTimeout(ctx, timeout)
}

func liveStatusFilter() bson.M {
	return bson.M{"$in": model.LiveBookingStatuses}
}

func overlapFilter(courtID string, start, end time.Time) bson.M {
	return bson.M{
		"court_id":   courtID,
		"start_time": bson.M{"$lt": end},
		"end_time":   bson.M{"$gt": start},
	}
}

func (q *mongoQueries) facilityFor(ctx context.Context, court *model.Court) (*model.Facility, error) {
	var facility model.Facility
	if err := q.facilities.FindOne(ctx, bson.M{"_id": court.FacilityID}).Decode(&facility); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrCourtMissing
		}
		return nil, fmt.Errorf("failed to find facility: %w", err)
	}
	return &facility, nil
}

func (q *mongoQueries) FindCourt(ctx context.Context, courtID string) (*model.Court, *model.Facility, error) {
	ctx, cancel := q.withTimeout(ctx, q.readTimeout)
	defer cancel()

	var court model.Court
	if err := q.courts.FindOne(ctx, bson.M{"_id": courtID}).Decode(&court); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, bookingserrors.ErrCourtMissing
		}
		return nil, nil, fmt.Errorf("failed to find court: %w", err)
	}

	facility, err := q.facilityFor(ctx, &court)
	if err != nil {
		return nil, nil, err
	}
	return &court, facility, nil
}

func (q *mongoQueries) FindBookingByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := q.withTimeout(ctx, q.readTimeout)
	defer cancel()

	var booking model.Booking
	if err := q.bookings.FindOne(ctx, bson.M{"_id": id}).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (q *mongoQueries) FindOverlappingBookings(ctx context.Context, courtID string, start, end time.Time) ([]*model.Booking, error) {
	ctx, cancel := q.withTimeout(ctx, q.readTimeout)
	defer cancel()

	filter := overlapFilter(courtID, start, end)
	filter["status"] = liveStatusFilter()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	cursor, err := q.bookings.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (q *mongoQueries) FindOverlappingMaintenance(ctx context.Context, courtID string, start, end time.Time) ([]*model.MaintenanceBlock, error) {
	ctx, cancel := q.withTimeout(ctx, q.readTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	cursor, err := q.maintenance.Find(ctx, overlapFilter(courtID, start, end), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find maintenance blocks: %w", err)
	}
	defer cursor.Close(ctx)

	blocks := []*model.MaintenanceBlock{}
	if err = cursor.All(ctx, &blocks); err != nil {
		return nil, fmt.Errorf("failed to decode maintenance blocks: %w", err)
	}
	return blocks, nil
}

type mongoTx struct {
	*mongoQueries
}

// LockCourt bumps the court's lock_version. A second transaction doing the
// same gets a write conflict and is retried by WithTransaction after the
// first commits, so it sees the first one's booking.
func (t *mongoTx) LockCourt(ctx context.Context, courtID string) (*model.Court, *model.Facility, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var court model.Court
	err := t.courts.FindOneAndUpdate(ctx,
		bson.M{"_id": courtID},
		bson.M{"$inc": bson.M{"lock_version": 1}},
		opts,
	).Decode(&court)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, bookingserrors.ErrCourtMissing
		}
		return nil, nil, fmt.Errorf("failed to lock court: %w", err)
	}

	facility, err := t.facilityFor(ctx, &court)
	if err != nil {
		return nil, nil, err
	}
	return &court, facility, nil
}

func (t *mongoTx) LockBooking(ctx context.Context, id string) (*model.Booking, error) {
	var booking model.Booking
	err := t.bookings.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"lock_version": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	return &booking, nil
}

func (t *mongoTx) InsertBooking(ctx context.Context, booking *model.Booking) error {
	if _, err := t.bookings.InsertOne(ctx, booking); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrOverlap
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (t *mongoTx) InsertPayment(ctx context.Context, payment *model.Payment) error {
	if _, err := t.payments.InsertOne(ctx, payment); err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (t *mongoTx) UpdateBookingStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) error {
	result, err := t.bookings.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrStaleStatus
	}
	return nil
}

func (t *mongoTx) DeleteBooking(ctx context.Context, id string) error {
	result, err := t.bookings.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if result.DeletedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	if _, err := t.payments.DeleteMany(ctx, bson.M{"booking_id": id}); err != nil {
		return fmt.Errorf("failed to delete payments: %w", err)
	}
	return nil
}

type mongoBookingRepository struct {
	*mongoQueries
	client    *mongo.Client
	txManager mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		mongoQueries: &mongoQueries{
			facilities:   db.Collection(FacilitiesCollection),
			courts:       db.Collection(CourtsCollection),
			bookings:     db.Collection(BookingsCollection),
			maintenance:  db.Collection(MaintenanceBlocksCollection),
			payments:     db.Collection(PaymentsCollection),
			readTimeout:  cfg.ReadTimeout,
			writeTimeout: cfg.WriteTimeout,
		},
		client:    cfg.Client.Mongo,
		txManager: mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn TxFunc) error {
	ctx, cancel := withTimeout(ctx, r.writeTimeout)
	defer cancel()

	tx := &mongoTx{mongoQueries: r.mongoQueries}
	return r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx, tx)
	})
}

func (r *mongoBookingRepository) listFilter(ctx context.Context, scope listScope, id string, filter model.BookingFilter) (bson.M, error) {
	query := bson.M{}

	var courtIDs []string
	switch scope {
	case scopeOwner:
		ids, err := r.ownerCourtIDs(ctx, id, filter.FacilityID)
		if err != nil {
			return nil, err
		}
		courtIDs = ids
	default:
		query["user_id"] = id
		if filter.FacilityID != "" {
			ids, err := r.courtIDs(ctx, bson.M{"facility_id": filter.FacilityID})
			if err != nil {
				return nil, err
			}
			courtIDs = ids
		}
	}

	switch {
	case filter.CourtID != "" && courtIDs != nil:
		if !slices.Contains(courtIDs, filter.CourtID) {
			courtIDs = []string{}
		} else {
			courtIDs = []string{filter.CourtID}
		}
		query["court_id"] = bson.M{"$in": courtIDs}
	case filter.CourtID != "":
		query["court_id"] = filter.CourtID
	case courtIDs != nil:
		query["court_id"] = bson.M{"$in": courtIDs}
	}

	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.From != nil {
		query["end_time"] = bson.M{"$gt": *filter.From}
	}
	if filter.To != nil {
		query["start_time"] = bson.M{"$lt": *filter.To}
	}
	return query, nil
}

func (r *mongoBookingRepository) ownerCourtIDs(ctx context.Context, ownerID, facilityID string) ([]string, error) {
	facilityFilter := bson.M{"owner_id": ownerID}
	if facilityID != "" {
		facilityFilter["_id"] = facilityID
	}

	cursor, err := r.facilities.Find(ctx, facilityFilter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to find owner facilities: %w", err)
	}
	defer cursor.Close(ctx)

	var facilities []model.Facility
	if err = cursor.All(ctx, &facilities); err != nil {
		return nil, fmt.Errorf("failed to decode facilities: %w", err)
	}

	facilityIDs := make([]string, 0, len(facilities))
	for _, f := range facilities {
		facilityIDs = append(facilityIDs, f.ID)
	}
	return r.courtIDs(ctx, bson.M{"facility_id": bson.M{"$in": facilityIDs}})
}

func (r *mongoBookingRepository) courtIDs(ctx context.Context, filter bson.M) ([]string, error) {
	cursor, err := r.courts.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to find courts: %w", err)
	}
	defer cursor.Close(ctx)

	var courts []model.Court
	if err = cursor.All(ctx, &courts); err != nil {
		return nil, fmt.Errorf("failed to decode courts: %w", err)
	}

	ids := make([]string, 0, len(courts))
	for _, c := range courts {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (r *mongoBookingRepository) find(ctx context.Context, scope listScope, id string, filter model.BookingFilter) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.readTimeout)
	defer cancel()

	query, err := r.listFilter(ctx, scope, id, filter)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(filter.Limit)).
		SetSkip(filter.Offset)

	cursor, err := r.bookings.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) count(ctx context.Context, scope listScope, id string, filter model.BookingFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.readTimeout)
	defer cancel()

	query, err := r.listFilter(ctx, scope, id, filter)
	if err != nil {
		return 0, err
	}

	count, err := r.bookings.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) FindByUser(ctx context.Context, userID string, filter model.BookingFilter) ([]*model.Booking, error) {
	return r.find(ctx, scopeUser, userID, filter)
}

func (r *mongoBookingRepository) CountByUser(ctx context.Context, userID string, filter model.BookingFilter) (int64, error) {
	return r.count(ctx, scopeUser, userID, filter)
}

func (r *mongoBookingRepository) FindByOwner(ctx context.Context, ownerID string, filter model.BookingFilter) ([]*model.Booking, error) {
	return r.find(ctx, scopeOwner, ownerID, filter)
}

func (r *mongoBookingRepository) CountByOwner(ctx context.Context, ownerID string, filter model.BookingFilter) (int64, error) {
	return r.count(ctx, scopeOwner, ownerID, filter)
}

func (r *mongoBookingRepository) InsertMaintenanceBlock(ctx context.Context, block *model.MaintenanceBlock) error {
	ctx, cancel := r.withTimeout(ctx, r.writeTimeout)
	defer cancel()

	if _, err := r.maintenance.InsertOne(ctx, block); err != nil {
		return fmt.Errorf("failed to insert maintenance block: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) MarkPaymentsRefunded(ctx context.Context, bookingID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.writeTimeout)
	defer cancel()

	result, err := r.payments.UpdateMany(ctx,
		bson.M{
			"booking_id": bookingID,
			"status":     bson.M{"$in": []model.PaymentStatus{model.PaymentPending, model.PaymentSucceeded}},
		},
		bson.M{"$set": bson.M{"status": model.PaymentRefunded, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to refund payments: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoBookingRepository) CompleteEndedBookings(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.writeTimeout)
	defer cancel()

	result, err := r.bookings.UpdateMany(ctx,
		bson.M{"status": model.BookingConfirmed, "end_time": bson.M{"$lte": before}},
		bson.M{"$set": bson.M{"status": model.BookingCompleted, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to complete ended bookings: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoBookingRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}
