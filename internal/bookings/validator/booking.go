package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"courtbook/pkg/logger"
	"courtbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	if err := v.RegisterValidation("booking_status", validateBookingStatus); err != nil {
		log.Fatal("Failed to register 'booking_status' validator",
			"error", err,
		)
	}

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// jsonFieldName reports fields by their wire name. Fields hidden from JSON
// keep their Go name.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

func validateBookingStatus(fl validator.FieldLevel) bool {
	status, ok := fl.Field().Interface().(model.BookingStatus)
	if !ok {
		return false
	}
	switch status {
	case "", model.BookingPending, model.BookingConfirmed, model.BookingCancelled, model.BookingCompleted:
		return true
	}
	return false
}

func (v *BookingValidator) ValidateCreate(req *model.CreateBookingRequest) error {
	if err := v.validateStruct(req); err != nil {
		return err
	}
	return v.ValidateInterval(req.StartTime, req.EndTime)
}

// ValidateInterval requires a non-empty half-open interval.
func (v *BookingValidator) ValidateInterval(start, end time.Time) error {
	var errs ValidationErrors
	if start.IsZero() {
		errs = append(errs, ValidationError{Field: "start_time", Message: "start_time is required"})
	}
	if end.IsZero() {
		errs = append(errs, ValidationError{Field: "end_time", Message: "end_time is required"})
	}
	if len(errs) == 0 && !end.After(start) {
		errs = append(errs, ValidationError{Field: "end_time", Message: "end_time must be after start_time"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *BookingValidator) ValidateMaintenance(block *model.MaintenanceBlock) error {
	if err := v.validateStruct(block); err != nil {
		return err
	}
	return v.ValidateInterval(block.StartTime, block.EndTime)
}

func (v *BookingValidator) ValidateFilter(filter *model.BookingFilter) error {
	if err := v.validateStruct(filter); err != nil {
		return err
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return ValidationErrors{
			ValidationError{
				Field:   "to",
				Message: "to must be after from",
			},
		}
	}
	return nil
}

func (v *BookingValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "oneof", "booking_status":
			message = fmt.Sprintf("%s must be one of: PENDING CONFIRMED CANCELLED COMPLETED", err.Field())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), jsonName(err.Param()))
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

func jsonName(goField string) string {
	switch goField {
	case "StartTime":
		return "start_time"
	case "OpenMinute":
		return "open_minute"
	}
	return goField
}
