package validator

import (
	"errors"
	"io"
	"testing"
	"time"

	"courtbook/pkg/logger"
	"courtbook/pkg/model"
)

func newTestValidator() *BookingValidator {
	return NewBookingValidator(logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard}))
}

func fields(err error) []string {
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]string, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, e.Field)
	}
	return out
}

func TestValidateCreate(t *testing.T) {
	v := newTestValidator()
	start := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	negative := -10.0

	tests := []struct {
		name      string
		req       model.CreateBookingRequest
		wantErr   bool
		wantField string
	}{
		{
			name: "valid",
			req:  model.CreateBookingRequest{CourtID: "court-1", UserID: "u-1", StartTime: start, EndTime: start.Add(time.Hour)},
		},
		{
			name:      "missing court",
			req:       model.CreateBookingRequest{UserID: "u-1", StartTime: start, EndTime: start.Add(time.Hour)},
			wantErr:   true,
			wantField: "court_id",
		},
		{
			name:      "missing user",
			req:       model.CreateBookingRequest{CourtID: "court-1", StartTime: start, EndTime: start.Add(time.Hour)},
			wantErr:   true,
			wantField: "UserID",
		},
		{
			name:      "end equals start",
			req:       model.CreateBookingRequest{CourtID: "court-1", UserID: "u-1", StartTime: start, EndTime: start},
			wantErr:   true,
			wantField: "end_time",
		},
		{
			name:      "end before start",
			req:       model.CreateBookingRequest{CourtID: "court-1", UserID: "u-1", StartTime: start, EndTime: start.Add(-time.Hour)},
			wantErr:   true,
			wantField: "end_time",
		},
		{
			name:      "negative price",
			req:       model.CreateBookingRequest{CourtID: "court-1", UserID: "u-1", StartTime: start, EndTime: start.Add(time.Hour), Price: &negative},
			wantErr:   true,
			wantField: "price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateCreate(&tt.req)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("ValidateCreate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateCreate() expected error, got nil")
			}
			got := fields(err)
			found := false
			for _, f := range got {
				if f == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("ValidateCreate() fields = %v, want %q", got, tt.wantField)
			}
		})
	}
}

func TestValidateInterval(t *testing.T) {
	v := newTestValidator()
	start := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)

	if err := v.ValidateInterval(start, start.Add(time.Minute)); err != nil {
		t.Errorf("ValidateInterval() unexpected error: %v", err)
	}
	if err := v.ValidateInterval(start, start); err == nil {
		t.Error("ValidateInterval() accepted an empty interval")
	}
	if got := fields(v.ValidateInterval(time.Time{}, time.Time{})); len(got) != 2 {
		t.Errorf("ValidateInterval() fields = %v, want start_time and end_time", got)
	}
}

func TestValidateFilter(t *testing.T) {
	v := newTestValidator()
	from := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)

	if err := v.ValidateFilter(&model.BookingFilter{Status: model.BookingCancelled}); err != nil {
		t.Errorf("ValidateFilter() unexpected error: %v", err)
	}
	if got := fields(v.ValidateFilter(&model.BookingFilter{Status: "LOST"})); len(got) != 1 || got[0] != "status" {
		t.Errorf("ValidateFilter() fields = %v, want [status]", got)
	}
	if got := fields(v.ValidateFilter(&model.BookingFilter{From: &from, To: &to})); len(got) != 1 || got[0] != "to" {
		t.Errorf("ValidateFilter() fields = %v, want [to]", got)
	}
}

func TestValidateMaintenance(t *testing.T) {
	v := newTestValidator()
	start := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)

	ok := &model.MaintenanceBlock{CourtID: "court-1", StartTime: start, EndTime: start.Add(2 * time.Hour)}
	if err := v.ValidateMaintenance(ok); err != nil {
		t.Errorf("ValidateMaintenance() unexpected error: %v", err)
	}

	inverted := &model.MaintenanceBlock{CourtID: "court-1", StartTime: start, EndTime: start.Add(-time.Hour)}
	if err := v.ValidateMaintenance(inverted); err == nil {
		t.Error("ValidateMaintenance() accepted end before start")
	}
}
