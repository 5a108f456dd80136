package http

import (
	"net/http"
	"time"

	"tally/internal/core"
)

type reviewResponse struct {
	ID            string            `json:"id"`
	Filename      string            `json:"filename"`
	FileType      string            `json:"file_type"`
	Confidence    float64           `json:"confidence"`
	Status        string            `json:"review_status"`
	ExtractedData map[string]string `json:"extracted_data"`
	ReviewedData  map[string]string `json:"reviewed_data"`
	ExpenseID     *int64            `json:"expense_id"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toReviewResponse(e core.ReviewEntry) reviewResponse {
	return reviewResponse{
		ID:            e.ID.String(),
		Filename:      e.Filename,
		FileType:      e.FileType,
		Confidence:    e.Confidence,
		Status:        string(e.Status),
		ExtractedData: e.Extracted,
		ReviewedData:  e.Reviewed,
		ExpenseID:     e.ExpenseID,
		CreatedAt:     e.CreatedAt,
	}
}

func (s *Server) handleListPendingReviews(w http.ResponseWriter, r *http.Request) {
	entries, err := s.reviews.ListPending(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]reviewResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toReviewResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

type reviewDetailResponse struct {
	reviewResponse
	Categories []string `json:"categories"`
}

// handleGetReview returns the entry together with the category names the
// reviewer can pick from, so the detail view needs a single request.
func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := s.reviews.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cats, err := s.expenses.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}

	writeJSON(w, http.StatusOK, reviewDetailResponse{
		reviewResponse: toReviewResponse(entry),
		Categories:     names,
	})
}

type updateReviewRequest struct {
	Fields map[string]string `json:"fields"`
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := s.reviews.Update(r.Context(), id, req.Fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReviewResponse(entry))
}

type approveReviewRequest struct {
	Fields map[string]string `json:"fields"`
}

func (s *Server) handleApproveReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Final edits in the approve body are optional
	var req approveReviewRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	entry, err := s.reviews.Approve(r.Context(), id, req.Fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReviewResponse(entry))
}

func (s *Server) handleRejectReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := s.reviews.Reject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReviewResponse(entry))
}

type reviewStatsResponse struct {
	Total        int     `json:"total"`
	Pending      int     `json:"pending"`
	Approved     int     `json:"approved"`
	Rejected     int     `json:"rejected"`
	ApprovalRate float64 `json:"approval_rate"`
}

func (s *Server) handleReviewStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reviews.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewStatsResponse{
		Total:        stats.Total,
		Pending:      stats.Pending,
		Approved:     stats.Approved,
		Rejected:     stats.Rejected,
		ApprovalRate: stats.ApprovalRate,
	})
}
