package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/services"
	"tally/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	published []*amqp.ReceiptIngestMessage
	err       error
}

func (p *fakePublisher) PublishReceiptIngest(ctx context.Context, msg *amqp.ReceiptIngestMessage) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

type testEnv struct {
	server  *Server
	reviews *services.ReviewService
	pub     *fakePublisher
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	reviews := services.NewReviewService(repo)
	expenses := services.NewExpenseService(repo)
	analytics := services.NewAnalyticsService(repo)
	pub := &fakePublisher{}

	srv := NewServer(":0", reviews, expenses, analytics, Options{
		TopMerchants: 10,
		Publisher:    pub,
	})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return &testEnv{server: srv, reviews: reviews, pub: pub}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func (e *testEnv) seedPending(t *testing.T, fields core.Fields) core.ReviewEntry {
	t.Helper()
	entry, err := e.reviews.Create(context.Background(), core.ReviewEntry{
		Filename:   "receipt.jpg",
		FileType:   "image/jpeg",
		Confidence: 0.9,
		Extracted:  fields,
	})
	require.NoError(t, err)
	return entry
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReviewLifecycleOverHTTP(t *testing.T) {
	env := newTestServer(t)
	entry := env.seedPending(t, core.Fields{
		core.FieldMerchant: "STARBUCKS #1234",
		core.FieldAmount:   "5.75",
		core.FieldDate:     "2025-01-15",
	})

	rec := env.do(t, http.MethodGet, "/api/receipt-reviews/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]reviewResponse](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, entry.ID.String(), pending[0].ID)
	assert.Equal(t, "pending", pending[0].Status)

	rec = env.do(t, http.MethodGet, "/api/receipt-reviews/"+entry.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[reviewDetailResponse](t, rec)
	assert.Equal(t, entry.ID.String(), detail.ID)
	assert.Contains(t, detail.Categories, "Meals & Dining")
	assert.Contains(t, detail.Categories, "Uncategorized")

	rec = env.do(t, http.MethodPut, "/api/receipt-reviews/"+entry.ID.String(), updateReviewRequest{
		Fields: map[string]string{core.FieldMerchant: "Starbucks", core.FieldCategory: "Meals & Dining"},
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	updated := decode[reviewResponse](t, rec)
	assert.Equal(t, "Starbucks", updated.ReviewedData[core.FieldMerchant])
	assert.Equal(t, "STARBUCKS #1234", updated.ExtractedData[core.FieldMerchant])
	assert.Equal(t, "pending", updated.Status)

	rec = env.do(t, http.MethodPost, "/api/receipt-reviews/"+entry.ID.String()+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	approved := decode[reviewResponse](t, rec)
	assert.Equal(t, "approved", approved.Status)
	require.NotNil(t, approved.ExpenseID)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/expenses/%d", *approved.ExpenseID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	expense := decode[expenseResponse](t, rec)
	assert.Equal(t, "Starbucks", expense.Merchant)
	assert.Equal(t, "5.75", expense.Amount)
	assert.Equal(t, int64(575), expense.AmountCents)
	assert.Equal(t, "2025-01-15", expense.Date)
	require.NotNil(t, expense.ReceiptID)
	assert.Equal(t, entry.ID.String(), *expense.ReceiptID)

	// approving again conflicts
	rec = env.do(t, http.MethodPost, "/api/receipt-reviews/"+entry.ID.String()+"/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReviewErrorStatuses(t *testing.T) {
	env := newTestServer(t)
	entry := env.seedPending(t, core.Fields{core.FieldAmount: "5.75"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{
			name:   "unknown id is 404",
			method: http.MethodGet,
			path:   "/api/receipt-reviews/4fa0b0a3-96a7-4f0f-9a3b-5bc84950a43e",
			status: http.StatusNotFound,
		},
		{
			name:   "malformed id is 400",
			method: http.MethodGet,
			path:   "/api/receipt-reviews/not-a-uuid",
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown field is 422",
			method: http.MethodPut,
			path:   "/api/receipt-reviews/" + entry.ID.String(),
			body:   updateReviewRequest{Fields: map[string]string{"tip": "1.00"}},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "bad amount is 422",
			method: http.MethodPut,
			path:   "/api/receipt-reviews/" + entry.ID.String(),
			body:   updateReviewRequest{Fields: map[string]string{core.FieldAmount: "abc"}},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "approve without amount is 422",
			method: http.MethodPost,
			path:   "/api/receipt-reviews/" + entry.ID.String() + "/approve",
			body:   approveReviewRequest{Fields: map[string]string{core.FieldAmount: ""}},
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, "body: %s", rec.Body.String())
		})
	}
}

func TestRejectOverHTTP(t *testing.T) {
	env := newTestServer(t)
	entry := env.seedPending(t, core.Fields{core.FieldAmount: "5.75"})

	rec := env.do(t, http.MethodPost, "/api/receipt-reviews/"+entry.ID.String()+"/reject", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rejected := decode[reviewResponse](t, rec)
	assert.Equal(t, "rejected", rejected.Status)
	assert.Nil(t, rejected.ExpenseID)

	rec = env.do(t, http.MethodPut, "/api/receipt-reviews/"+entry.ID.String(), updateReviewRequest{
		Fields: map[string]string{core.FieldMerchant: "X"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReviewStatsOverHTTP(t *testing.T) {
	env := newTestServer(t)
	a := env.seedPending(t, core.Fields{core.FieldAmount: "1.00"})
	env.seedPending(t, core.Fields{core.FieldAmount: "2.00"})

	rec := env.do(t, http.MethodPost, "/api/receipt-reviews/"+a.ID.String()+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/receipt-reviews/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[reviewStatsResponse](t, rec)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Approved)
	assert.InDelta(t, 50.0, stats.ApprovalRate, 1e-9)
}

func TestExpenseCRUDOverHTTP(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/expenses", expenseRequest{
		Merchant: "Esselunga",
		Amount:   "42.30",
		Date:     "2025-03-02",
		Category: "Meals & Dining",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	created := decode[expenseResponse](t, rec)
	assert.Equal(t, "42.30", created.Amount)
	assert.Equal(t, "pending", created.Reimbursement)

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/expenses/%d", created.ID), expenseRequest{
		Merchant:      "Esselunga",
		Amount:        "45.00",
		Date:          "2025-03-02",
		Category:      "Meals & Dining",
		Reimbursement: "approved",
		Verification:  "verified",
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	updated := decode[expenseResponse](t, rec)
	assert.Equal(t, int64(4500), updated.AmountCents)
	assert.Equal(t, "approved", updated.Reimbursement)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/expenses/%d", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/expenses/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateExpenseValidationOverHTTP(t *testing.T) {
	env := newTestServer(t)

	tests := []struct {
		name string
		req  expenseRequest
	}{
		{name: "bad amount", req: expenseRequest{Merchant: "X", Amount: "abc", Date: "2025-01-01"}},
		{name: "sub-cent amount", req: expenseRequest{Merchant: "X", Amount: "5.755", Date: "2025-01-01"}},
		{name: "bad date", req: expenseRequest{Merchant: "X", Amount: "5.75", Date: "Jan 1"}},
		{name: "unknown category", req: expenseRequest{Merchant: "X", Amount: "5.75", Date: "2025-01-01", Category: "Yachts"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/expenses", tt.req)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "body: %s", rec.Body.String())
		})
	}
}

func TestCategoriesOverHTTP(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decode[[]categoryResponse](t, rec)
	assert.NotEmpty(t, cats)

	rec = env.do(t, http.MethodPost, "/api/categories", createCategoryRequest{Name: "Pets", Color: "#f59e0b"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[categoryResponse](t, rec)
	assert.Equal(t, "Pets", created.Name)

	rec = env.do(t, http.MethodPost, "/api/categories", createCategoryRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsReportOverHTTP(t *testing.T) {
	env := newTestServer(t)

	seed := []expenseRequest{
		{Merchant: "Airline", Amount: "90.00", Date: "2025-01-05", Category: "Travel"},
		{Merchant: "Starbucks", Amount: "10.00", Date: "2025-01-06", Category: "Meals & Dining"},
	}
	for _, req := range seed {
		rec := env.do(t, http.MethodPost, "/api/expenses", req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/analytics/report?year=2025&month=1", nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var report struct {
		Start string `json:"start"`
		End   string `json:"end"`
		Daily []struct {
			Date            string `json:"date"`
			CumulativeCents int64  `json:"cumulative_cents"`
		} `json:"daily"`
		Categories []struct {
			Name     string  `json:"name"`
			SharePct float64 `json:"share_pct"`
		} `json:"categories"`
		TopMerchants []struct {
			Name string `json:"name"`
		} `json:"top_merchants"`
		Summary struct {
			TotalCents int64    `json:"total_cents"`
			Count      int      `json:"count"`
			TotalDelta *float64 `json:"total_delta_pct"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))

	assert.Equal(t, "2025-01-01", report.Start)
	assert.Equal(t, "2025-01-31", report.End)
	require.Len(t, report.Daily, 31)
	assert.Equal(t, int64(10000), report.Daily[30].CumulativeCents)
	require.Len(t, report.Categories, 2)
	assert.Equal(t, "Travel", report.Categories[0].Name)
	assert.InDelta(t, 90.0, report.Categories[0].SharePct, 1e-9)
	assert.Equal(t, "Airline", report.TopMerchants[0].Name)
	assert.Equal(t, int64(10000), report.Summary.TotalCents)
	assert.Equal(t, 2, report.Summary.Count)
	assert.Nil(t, report.Summary.TotalDelta, "empty previous period makes the delta null")

	rec = env.do(t, http.MethodGet, "/api/analytics/report?year=2025&month=13", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardOverHTTP(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/expenses", expenseRequest{
		Merchant: "Airline", Amount: "90.00", Date: "2025-01-05", Category: "Travel",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	env.seedPending(t, core.Fields{core.FieldMerchant: "Starbucks"})

	rec = env.do(t, http.MethodGet, "/api/dashboard?year=2025&month=1", nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var dash struct {
		Report struct {
			Start   string `json:"start"`
			Summary struct {
				TotalCents int64 `json:"total_cents"`
			} `json:"summary"`
		} `json:"report"`
		ReviewStats struct {
			Total   int `json:"total"`
			Pending int `json:"pending"`
		} `json:"review_stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))

	assert.Equal(t, "2025-01-01", dash.Report.Start)
	assert.Equal(t, int64(9000), dash.Report.Summary.TotalCents)
	assert.Equal(t, 1, dash.ReviewStats.Total)
	assert.Equal(t, 1, dash.ReviewStats.Pending)
}

func TestUploadReceipt(t *testing.T) {
	env := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "coffee.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake-jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/receipts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.server.Server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, "body: %s", rec.Body.String())
	require.Len(t, env.pub.published, 1)
	assert.Equal(t, "coffee.jpg", env.pub.published[0].Filename)
	assert.NotEmpty(t, env.pub.published[0].ImageBase64)
}

func TestUploadReceiptWithoutPublisher(t *testing.T) {
	env := newTestServer(t)
	env.server.publisher = nil

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "coffee.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/receipts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.server.Server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
