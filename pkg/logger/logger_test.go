package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNew_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: DEBUG, Format: JSON, Output: &buf, Service: "bookings"})

	log.Info("Booking created", "id", "b1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry[SERVICE] != "bookings" {
		t.Errorf("expected service attribute, got %v", entry[SERVICE])
	}
	if entry["id"] != "b1" {
		t.Errorf("expected id attribute, got %v", entry["id"])
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: WARN, Output: &buf})

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}

	log.Warn("kept")
	if buf.Len() == 0 {
		t.Error("warn should be written at warn level")
	}
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf}).With("component", "refunds")

	log.Info("tick")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["component"] != "refunds" {
		t.Errorf("expected component attribute, got %v", entry["component"])
	}
}

func TestAsynqLogger(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewAsynqLogger(New(Config{Level: DEBUG, Output: &buf}))

	adapter.Info("worker ", "started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["msg"] != "worker started" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
}
