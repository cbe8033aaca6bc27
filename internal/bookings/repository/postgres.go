package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/pkg/config"
	pgtx "courtbook/pkg/db/postgres"
	"courtbook/pkg/model"

	"github.com/jmoiron/sqlx"
)

const (
	bookingColumns     = `b.id, b.court_id, b.user_id, b.start_time, b.end_time, b.status, b.price, b.created_at, b.updated_at`
	maintenanceColumns = `m.id, m.court_id, m.start_time, m.end_time, m.reason, m.created_at`

	selectCourtSQL = `SELECT c.id, c.facility_id, c.name, c.open_minute, c.close_minute, c.price_per_hour, c.created_at,
f.owner_id, f.name AS facility_name
FROM courts c JOIN facilities f ON f.id = c.facility_id
WHERE c.id = $1`

	lockCourtSQL = selectCourtSQL + ` FOR UPDATE OF c`

	selectBookingSQL = `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`

	lockBookingSQL = selectBookingSQL + ` FOR UPDATE`

	overlappingBookingsSQL = `SELECT ` + bookingColumns + ` FROM bookings b
WHERE b.court_id = $1 AND b.status IN ('PENDING', 'CONFIRMED') AND b.start_time < $3 AND b.end_time > $2
ORDER BY b.start_time`

	overlappingMaintenanceSQL = `SELECT ` + maintenanceColumns + ` FROM maintenance_blocks m
WHERE m.court_id = $1 AND m.start_time < $3 AND m.end_time > $2
ORDER BY m.start_time`

	insertBookingSQL = `INSERT INTO bookings (id, court_id, user_id, start_time, end_time, status, price, created_at, updated_at)
VALUES (:id, :court_id, :user_id, :start_time, :end_time, :status, :price, :created_at, :updated_at)`

	insertPaymentSQL = `INSERT INTO payments (id, booking_id, amount, status, created_at, updated_at)
VALUES (:id, :booking_id, :amount, :status, :created_at, :updated_at)`

	insertMaintenanceSQL = `INSERT INTO maintenance_blocks (id, court_id, start_time, end_time, reason, created_at)
VALUES (:id, :court_id, :start_time, :end_time, :reason, :created_at)`

	updateBookingStatusSQL = `UPDATE bookings SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`

	deleteBookingSQL = `DELETE FROM bookings WHERE id = $1`

	refundPaymentsSQL = `UPDATE payments SET status = 'REFUNDED', updated_at = $2
WHERE booking_id = $1 AND status IN ('PENDING', 'SUCCEEDED')`

	completeEndedSQL = `UPDATE bookings SET status = 'COMPLETED', updated_at = $2
WHERE status = 'CONFIRMED' AND end_time <= $1`

	listFromSQL = ` FROM bookings b
JOIN courts c ON c.id = b.court_id
JOIN facilities f ON f.id = c.facility_id`
)

type courtRow struct {
	model.Court
	OwnerID      string `db:"owner_id"`
	FacilityName string `db:"facility_name"`
}

func (r *courtRow) split() (*model.Court, *model.Facility) {
	court := r.Court
	return &court, &model.Facility{
		ID:      r.Court.FacilityID,
		OwnerID: r.OwnerID,
		Name:    r.FacilityName,
	}
}

// pgQueries runs the shared reads against either the pool or an open tx.
type pgQueries struct {
	q           sqlx.ExtContext
	readTimeout time.Duration
	inTx        bool
}

func (p *pgQueries) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.inTx {
		return ctx, func() {}
	}
	return withTimeout(ctx, p.readTimeout)
}

func (p *pgQueries) getCourt(ctx context.Context, query, courtID string) (*model.Court, *model.Facility, error) {
	ctx, cancel := p.ctx(ctx)
	defer cancel()

	var row courtRow
	if err := sqlx.GetContext(ctx, p.q, &row, query, courtID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, bookingserrors.ErrCourtMissing
		}
		return nil, nil, fmt.Errorf("failed to load court: %w", err)
	}
	court, facility := row.split()
	return court, facility, nil
}

func (p *pgQueries) FindCourt(ctx context.Context, courtID string) (*model.Court, *model.Facility, error) {
	return p.getCourt(ctx, selectCourtSQL, courtID)
}

func (p *pgQueries) getBooking(ctx context.Context, query, id string) (*model.Booking, error) {
	ctx, cancel := p.ctx(ctx)
	defer cancel()

	var booking model.Booking
	if err := sqlx.GetContext(ctx, p.q, &booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	return &booking, nil
}

func (p *pgQueries) FindBookingByID(ctx context.Context, id string) (*model.Booking, error) {
	return p.getBooking(ctx, selectBookingSQL, id)
}

func (p *pgQueries) FindOverlappingBookings(ctx context.Context, courtID string, start, end time.Time) ([]*model.Booking, error) {
	ctx, cancel := p.ctx(ctx)
	defer cancel()

	bookings := []*model.Booking{}
	if err := sqlx.SelectContext(ctx, p.q, &bookings, overlappingBookingsSQL, courtID, start, end); err != nil {
		return nil, fmt.Errorf("failed to query overlapping bookings: %w", err)
	}
	return bookings, nil
}

func (p *pgQueries) FindOverlappingMaintenance(ctx context.Context, courtID string, start, end time.Time) ([]*model.MaintenanceBlock, error) {
	ctx, cancel := p.ctx(ctx)
	defer cancel()

	blocks := []*model.MaintenanceBlock{}
	if err := sqlx.SelectContext(ctx, p.q, &blocks, overlappingMaintenanceSQL, courtID, start, end); err != nil {
		return nil, fmt.Errorf("failed to query maintenance blocks: %w", err)
	}
	return blocks, nil
}

type postgresTx struct {
	pgQueries
	tx *sqlx.Tx
}

func (t *postgresTx) LockCourt(ctx context.Context, courtID string) (*model.Court, *model.Facility, error) {
	return t.getCourt(ctx, lockCourtSQL, courtID)
}

func (t *postgresTx) LockBooking(ctx context.Context, id string) (*model.Booking, error) {
	return t.getBooking(ctx, lockBookingSQL, id)
}

func (t *postgresTx) InsertBooking(ctx context.Context, booking *model.Booking) error {
	if _, err := t.tx.NamedExecContext(ctx, insertBookingSQL, booking); err != nil {
		if pgtx.HasCode(err, pgtx.CodeExclusionViolation, pgtx.CodeSerializationFailure, pgtx.CodeDeadlockDetected) {
			return bookingserrors.ErrOverlap
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (t *postgresTx) InsertPayment(ctx context.Context, payment *model.Payment) error {
	if _, err := t.tx.NamedExecContext(ctx, insertPaymentSQL, payment); err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdateBookingStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, updateBookingStatusSQL, id, from, to, at)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return bookingserrors.ErrStaleStatus
	}
	return nil
}

func (t *postgresTx) DeleteBooking(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, deleteBookingSQL, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

type postgresBookingRepository struct {
	pgQueries
	db           *sqlx.DB
	txManager    pgtx.TransactionManager
	writeTimeout time.Duration
}

func NewPostgresBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Postgres
	return &postgresBookingRepository{
		pgQueries: pgQueries{
			q:           db,
			readTimeout: cfg.ReadTimeout,
		},
		db:           db,
		txManager:    pgtx.NewTransactionManager(db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}),
		writeTimeout: cfg.WriteTimeout,
	}
}

// ExecuteTransaction runs fn at READ COMMITTED. Isolation between creates on
// one court comes from LockCourt's row lock, with the exclusion constraint
// as a backstop.
func (r *postgresBookingRepository) ExecuteTransaction(ctx context.Context, fn TxFunc) error {
	ctx, cancel := withTimeout(ctx, r.writeTimeout)
	defer cancel()

	err := r.txManager.ExecuteTransaction(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, &postgresTx{
			pgQueries: pgQueries{q: tx, inTx: true},
			tx:        tx,
		})
	})
	// A commit can still lose to a concurrent writer of the same court.
	if err != nil && !errors.Is(err, bookingserrors.ErrOverlap) &&
		pgtx.HasCode(err, pgtx.CodeSerializationFailure, pgtx.CodeDeadlockDetected) {
		return fmt.Errorf("%w: %w", bookingserrors.ErrOverlap, err)
	}
	return err
}

// buildListWhere returns the WHERE clause of a list query and its args.
func buildListWhere(scope listScope, id string, filter model.BookingFilter) (string, []any) {
	var conditions []string
	args := []any{id}

	switch scope {
	case scopeOwner:
		conditions = append(conditions, "f.owner_id = $1")
	default:
		conditions = append(conditions, "b.user_id = $1")
	}

	add := func(cond string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.CourtID != "" {
		add("b.court_id = $%d", filter.CourtID)
	}
	if filter.FacilityID != "" {
		add("c.facility_id = $%d", filter.FacilityID)
	}
	if filter.Status != "" {
		add("b.status = $%d", filter.Status)
	}
	if filter.From != nil {
		add("b.end_time > $%d", *filter.From)
	}
	if filter.To != nil {
		add("b.start_time < $%d", *filter.To)
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *postgresBookingRepository) find(ctx context.Context, scope listScope, id string, filter model.BookingFilter) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.readTimeout)
	defer cancel()

	where, args := buildListWhere(scope, id, filter)
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf("SELECT %s%s%s ORDER BY b.start_time DESC, b.id LIMIT $%d OFFSET $%d",
		bookingColumns, listFromSQL, where, len(args)-1, len(args))

	bookings := []*model.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (r *postgresBookingRepository) count(ctx context.Context, scope listScope, id string, filter model.BookingFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.readTimeout)
	defer cancel()

	where, args := buildListWhere(scope, id, filter)
	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+listFromSQL+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return total, nil
}

func (r *postgresBookingRepository) FindByUser(ctx context.Context, userID string, filter model.BookingFilter) ([]*model.Booking, error) {
	return r.find(ctx, scopeUser, userID, filter)
}

func (r *postgresBookingRepository) CountByUser(ctx context.Context, userID string, filter model.BookingFilter) (int64, error) {
	return r.count(ctx, scopeUser, userID, filter)
}

func (r *postgresBookingRepository) FindByOwner(ctx context.Context, ownerID string, filter model.BookingFilter) ([]*model.Booking, error) {
	return r.find(ctx, scopeOwner, ownerID, filter)
}

func (r *postgresBookingRepository) CountByOwner(ctx context.Context, ownerID string, filter model.BookingFilter) (int64, error) {
	return r.count(ctx, scopeOwner, ownerID, filter)
}

func (r *postgresBookingRepository) InsertMaintenanceBlock(ctx context.Context, block *model.MaintenanceBlock) error {
	ctx, cancel := withTimeout(ctx, r.writeTimeout)
	defer cancel()

	if _, err := r.db.NamedExecContext(ctx, insertMaintenanceSQL, block); err != nil {
		return fmt.Errorf("failed to insert maintenance block: %w", err)
	}
	return nil
}

func (r *postgresBookingRepository) MarkPaymentsRefunded(ctx context.Context, bookingID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.writeTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, refundPaymentsSQL, bookingID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to refund payments: %w", err)
	}
	return res.RowsAffected()
}

func (r *postgresBookingRepository) CompleteEndedBookings(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.writeTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, completeEndedSQL, before, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to complete ended bookings: %w", err)
	}
	return res.RowsAffected()
}

func (r *postgresBookingRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
