package amqp

import (
	"encoding/json"
	"time"
)

// ReceiptIngestMessage carries one uploaded receipt through the ingestion
// queue. The image travels inline as base64 so the worker needs no shared
// filesystem with the uploader. Pre-extracted fields may be supplied instead
// of ImageBase64, in which case the worker skips extraction and creates the
// review entry directly.
type ReceiptIngestMessage struct {
	Filename    string            `json:"filename"`
	FileType    string            `json:"file_type"`
	ImageBase64 string            `json:"image_base64,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	Confidence  float64           `json:"confidence,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// NewReceiptIngestMessage creates an ingest message for a raw receipt image
func NewReceiptIngestMessage(filename, fileType, imageBase64 string) *ReceiptIngestMessage {
	return &ReceiptIngestMessage{
		Filename:    filename,
		FileType:    fileType,
		ImageBase64: imageBase64,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReceiptIngestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReceiptIngestMessageFromJSON creates a message from JSON bytes
func ReceiptIngestMessageFromJSON(data []byte) (*ReceiptIngestMessage, error) {
	var msg ReceiptIngestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
