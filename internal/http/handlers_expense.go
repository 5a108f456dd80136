package http

import (
	"fmt"
	"net/http"
	"time"

	"tally/internal/core"
	"tally/internal/storage"
)

// Amounts cross the API as decimal strings ("12.45") so no float ever touches
// a ledger value.
type expenseResponse struct {
	ID            int64     `json:"id"`
	Merchant      string    `json:"merchant"`
	Amount        string    `json:"amount"`
	AmountCents   int64     `json:"amount_cents"`
	Date          string    `json:"date"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Reimbursement string    `json:"reimbursement_status"`
	Verification  string    `json:"verification_status"`
	ReceiptID     *string   `json:"receipt_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toExpenseResponse(rec core.ExpenseRecord) expenseResponse {
	var receiptID *string
	if rec.ReceiptID != nil {
		s := rec.ReceiptID.String()
		receiptID = &s
	}
	return expenseResponse{
		ID:            rec.ID,
		Merchant:      rec.Merchant,
		Amount:        core.FormatCents(rec.Amount.Cents),
		AmountCents:   rec.Amount.Cents,
		Date:          rec.Date.String(),
		Category:      rec.Category,
		Description:   rec.Description,
		Reimbursement: string(rec.Reimbursement),
		Verification:  string(rec.Verification),
		ReceiptID:     receiptID,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

type expenseRequest struct {
	Merchant      string `json:"merchant"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	Reimbursement string `json:"reimbursement_status"`
	Verification  string `json:"verification_status"`
}

func (req expenseRequest) toRecord() (core.ExpenseRecord, error) {
	cents, err := core.ParseAmountCents(req.Amount)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("amount %q: %w", req.Amount, err)
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("%w: date %q: want YYYY-MM-DD", core.ErrValidation, req.Date)
	}
	return core.ExpenseRecord{
		Merchant:      req.Merchant,
		Amount:        core.Money{Cents: cents},
		Date:          date,
		Category:      req.Category,
		Description:   req.Description,
		Reimbursement: core.ReimbursementStatus(req.Reimbursement),
		Verification:  core.VerificationStatus(req.Verification),
	}, nil
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter := storage.ExpenseFilter{
		Merchant: r.URL.Query().Get("merchant"),
		Category: r.URL.Query().Get("category"),
		From:     from,
		To:       to,
	}

	records, err := s.expenses.ListExpenses(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]expenseResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toExpenseResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := req.toRecord()
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.expenses.CreateExpense(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(created))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := s.expenses.GetExpense(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(rec))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := req.toRecord()
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec.ID = id

	updated, err := s.expenses.UpdateExpense(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(updated))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.expenses.DeleteExpense(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type categoryResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.expenses.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryResponse{ID: c.ID, Name: c.Name, Color: c.Color})
	}
	writeJSON(w, http.StatusOK, out)
}

type createCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cat, err := s.expenses.CreateCategory(r.Context(), req.Name, req.Color)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryResponse{ID: cat.ID, Name: cat.Name, Color: cat.Color})
}
