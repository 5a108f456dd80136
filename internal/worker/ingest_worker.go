package worker

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/extraction"
	"tally/internal/services"
)

// IngestWorker turns queued receipts into pending review entries. Receipts
// arriving as raw images go through the scanner first; messages that already
// carry extracted fields skip extraction.
type IngestWorker struct {
	reviews *services.ReviewService
	scanner extraction.Scanner
	timeout time.Duration
}

func NewIngestWorker(reviews *services.ReviewService, scanner extraction.Scanner, timeout time.Duration) *IngestWorker {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &IngestWorker{
		reviews: reviews,
		scanner: scanner,
		timeout: timeout,
	}
}

// HandleIngestMessage processes a single receipt ingest message from AMQP
func (w *IngestWorker) HandleIngestMessage(ctx context.Context, msg *amqp.ReceiptIngestMessage) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	slog.InfoContext(ctx, "Processing receipt ingest message",
		"filename", msg.Filename,
		"file_type", msg.FileType)

	fields := core.Fields{}
	for name, value := range msg.Fields {
		fields[name] = value
	}
	confidence := msg.Confidence

	if msg.ImageBase64 != "" {
		result, err := w.extract(ctx, msg)
		if err != nil {
			return err
		}
		fields = result.Fields
		confidence = result.Confidence
	}

	entry, err := w.reviews.Create(ctx, core.ReviewEntry{
		Filename:   msg.Filename,
		FileType:   msg.FileType,
		Confidence: confidence,
		Extracted:  fields,
	})
	if err != nil {
		return fmt.Errorf("create review entry: %w", err)
	}

	slog.InfoContext(ctx, "Receipt queued for review",
		"review_id", entry.ID,
		"filename", entry.Filename,
		"confidence", entry.Confidence)

	return nil
}

func (w *IngestWorker) extract(ctx context.Context, msg *amqp.ReceiptIngestMessage) (extraction.Result, error) {
	if w.scanner == nil {
		// Without a scanner the receipt still enters the queue; the
		// reviewer fills in every field by hand.
		slog.WarnContext(ctx, "No scanner configured, queueing receipt without extraction",
			"filename", msg.Filename)
		return extraction.Result{Fields: core.Fields{}}, nil
	}

	imageData, err := base64.StdEncoding.DecodeString(msg.ImageBase64)
	if err != nil {
		return extraction.Result{}, fmt.Errorf("decode receipt image: %w", err)
	}

	result, err := w.scanner.ScanReceipt(ctx, imageData, msg.FileType)
	if err != nil {
		return extraction.Result{}, fmt.Errorf("scan receipt: %w", err)
	}

	slog.InfoContext(ctx, "Receipt fields extracted",
		"filename", msg.Filename,
		"fields", len(result.Fields),
		"confidence", result.Confidence)

	return result, nil
}
