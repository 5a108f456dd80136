package amqp

import (
	"testing"
	"time"
)

func TestNewReceiptIngestMessage(t *testing.T) {
	msg := NewReceiptIngestMessage("receipt.jpg", "image/jpeg", "aGVsbG8=")

	if msg.Filename != "receipt.jpg" {
		t.Errorf("Filename = %q", msg.Filename)
	}
	if msg.FileType != "image/jpeg" {
		t.Errorf("FileType = %q", msg.FileType)
	}
	if msg.ImageBase64 != "aGVsbG8=" {
		t.Errorf("ImageBase64 = %q", msg.ImageBase64)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestReceiptIngestMessage_JSON(t *testing.T) {
	msg := &ReceiptIngestMessage{
		Filename:   "receipt.jpg",
		FileType:   "image/jpeg",
		Fields:     map[string]string{"merchant": "Starbucks", "amount": "5.75"},
		Confidence: 0.92,
		Timestamp:  time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := ReceiptIngestMessageFromJSON(body)
	if err != nil {
		t.Fatalf("ReceiptIngestMessageFromJSON() error = %v", err)
	}
	if parsed.Filename != msg.Filename {
		t.Errorf("Filename = %q, want %q", parsed.Filename, msg.Filename)
	}
	if parsed.Fields["merchant"] != "Starbucks" {
		t.Errorf("Fields = %v", parsed.Fields)
	}
	if parsed.Confidence != msg.Confidence {
		t.Errorf("Confidence = %v, want %v", parsed.Confidence, msg.Confidence)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestReceiptIngestMessage_InvalidJSON(t *testing.T) {
	if _, err := ReceiptIngestMessageFromJSON([]byte(`{"confidence": "high"}`)); err == nil {
		t.Error("ReceiptIngestMessageFromJSON() should fail with invalid JSON")
	}
}
