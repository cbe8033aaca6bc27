package errors

import (
	"errors"
	"net/http"

	apperrors "courtbook/pkg/errors"
)

// Repository level. These never leave the service layer unwrapped.
var (
	ErrNotFound = errors.New("booking not found")

	ErrCourtMissing = errors.New("court not found")

	ErrOverlap = errors.New("booking interval overlaps a live booking")

	ErrStaleStatus = errors.New("booking status changed concurrently")
)

// Domain kinds returned by the scheduler, always wrapped in an AppError
// carrying the matching code.
var (
	ErrCourtNotFound            = errors.New("court not found")
	ErrOutsideOperatingHours    = errors.New("booking is outside the court operating hours")
	ErrSlotUnavailable          = errors.New("requested slot is unavailable")
	ErrCourtUnderMaintenance    = errors.New("court is under maintenance for the requested interval")
	ErrPriceMismatch            = errors.New("price does not match the court rate")
	ErrBookingNotFound          = errors.New("booking not found")
	ErrBookingNotPending        = errors.New("booking is not pending")
	ErrUnauthorizedConfirmation = errors.New("only the facility owner can confirm this booking")
	ErrUnauthorizedCancellation = errors.New("not allowed to cancel this booking")
	ErrBookingAlreadyCancelled  = errors.New("booking is already cancelled")
	ErrCannotCancelCompleted    = errors.New("completed bookings cannot be cancelled")
	ErrCancellationWindowClosed = errors.New("booking starts too soon to be cancelled")
	ErrBookingNotConfirmed      = errors.New("booking is not confirmed")
	ErrUnauthorizedDeletion     = errors.New("only the booker can delete this booking")
	ErrBookingNotDeletable      = errors.New("only cancelled or completed bookings can be deleted")
	ErrUnauthorizedMaintenance  = errors.New("only the facility owner can block this court")
)

const (
	CodeCourtNotFound            = "COURT_NOT_FOUND"
	CodeOutsideOperatingHours    = "OUTSIDE_OPERATING_HOURS"
	CodeSlotUnavailable          = "SLOT_UNAVAILABLE"
	CodeCourtUnderMaintenance    = "COURT_UNDER_MAINTENANCE"
	CodePriceMismatch            = "PRICE_MISMATCH"
	CodeBookingNotFound          = "BOOKING_NOT_FOUND"
	CodeBookingNotPending        = "BOOKING_NOT_PENDING"
	CodeUnauthorizedConfirmation = "UNAUTHORIZED_CONFIRMATION"
	CodeUnauthorizedCancellation = "UNAUTHORIZED_CANCELLATION"
	CodeBookingAlreadyCancelled  = "BOOKING_ALREADY_CANCELLED"
	CodeCannotCancelCompleted    = "CANNOT_CANCEL_COMPLETED_BOOKING"
	CodeCancellationWindowClosed = "CANCELLATION_WINDOW_CLOSED"
	CodeBookingNotConfirmed      = "BOOKING_NOT_CONFIRMED"
	CodeUnauthorizedDeletion     = "UNAUTHORIZED_DELETION"
	CodeBookingNotDeletable      = "BOOKING_NOT_DELETABLE"
	CodeUnauthorizedMaintenance  = "UNAUTHORIZED_MAINTENANCE"
)

type kind struct {
	code   string
	status int
}

var kinds = map[error]kind{
	ErrCourtNotFound:            {CodeCourtNotFound, http.StatusNotFound},
	ErrOutsideOperatingHours:    {CodeOutsideOperatingHours, http.StatusUnprocessableEntity},
	ErrSlotUnavailable:          {CodeSlotUnavailable, http.StatusConflict},
	ErrCourtUnderMaintenance:    {CodeCourtUnderMaintenance, http.StatusConflict},
	ErrPriceMismatch:            {CodePriceMismatch, http.StatusUnprocessableEntity},
	ErrBookingNotFound:          {CodeBookingNotFound, http.StatusNotFound},
	ErrBookingNotPending:        {CodeBookingNotPending, http.StatusConflict},
	ErrUnauthorizedConfirmation: {CodeUnauthorizedConfirmation, http.StatusForbidden},
	ErrUnauthorizedCancellation: {CodeUnauthorizedCancellation, http.StatusForbidden},
	ErrBookingAlreadyCancelled:  {CodeBookingAlreadyCancelled, http.StatusConflict},
	ErrCannotCancelCompleted:    {CodeCannotCancelCompleted, http.StatusConflict},
	ErrCancellationWindowClosed: {CodeCancellationWindowClosed, http.StatusUnprocessableEntity},
	ErrBookingNotConfirmed:      {CodeBookingNotConfirmed, http.StatusConflict},
	ErrUnauthorizedDeletion:     {CodeUnauthorizedDeletion, http.StatusForbidden},
	ErrBookingNotDeletable:      {CodeBookingNotDeletable, http.StatusConflict},
	ErrUnauthorizedMaintenance:  {CodeUnauthorizedMaintenance, http.StatusForbidden},
}

// New wraps a domain kind into a fresh AppError. Unknown errors become internal.
func New(domainErr error) *apperrors.AppError {
	k, ok := kinds[domainErr]
	if !ok {
		return apperrors.Internal("Unexpected booking failure", domainErr)
	}
	return apperrors.Wrap(domainErr, k.code, domainErr.Error(), k.status)
}

// Code returns the domain code carried by err, or "" when err is not a domain kind.
func Code(err error) string {
	for domainErr, k := range kinds {
		if errors.Is(err, domainErr) {
			return k.code
		}
	}
	return ""
}
