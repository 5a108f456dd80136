// Package extraction turns receipt images into candidate expense fields.
package extraction

import (
	"context"

	"tally/internal/core"
)

// Result is the machine-extracted field set for one receipt, with an overall
// confidence in [0, 1]. Fields may be partial; missing values are resolved
// during review.
type Result struct {
	Fields     core.Fields
	Confidence float64
}

// Scanner defines the interface for receipt extraction backends
type Scanner interface {
	// ScanReceipt analyzes a receipt image and extracts candidate fields
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (Result, error)
	// Close closes the scanner and releases resources
	Close() error
}
