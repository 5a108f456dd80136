package http

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"tally/internal/amqp"
	"tally/internal/core"
)

const maxReceiptBytes = 10 << 20 // 10 MiB per receipt image

// handleUploadReceipt accepts a multipart receipt upload and queues it for
// extraction. The response is 202: the review entry appears once the worker
// has processed the message.
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "receipt ingestion is not configured"})
		return
	}

	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid multipart form: %v", core.ErrInvalidArgument, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: missing file field", core.ErrInvalidArgument))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxReceiptBytes+1))
	if err != nil {
		writeError(w, r, fmt.Errorf("read receipt upload: %w", err))
		return
	}
	if len(data) > maxReceiptBytes {
		writeError(w, r, fmt.Errorf("%w: receipt larger than 10 MiB", core.ErrInvalidArgument))
		return
	}
	if len(data) == 0 {
		writeError(w, r, fmt.Errorf("%w: empty receipt upload", core.ErrInvalidArgument))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	msg := amqp.NewReceiptIngestMessage(header.Filename, contentType, base64.StdEncoding.EncodeToString(data))
	if err := s.publisher.PublishReceiptIngest(r.Context(), msg); err != nil {
		writeError(w, r, fmt.Errorf("queue receipt: %w", err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"filename": header.Filename,
		"status":   "queued",
	})
}
