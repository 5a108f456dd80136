package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tally/internal/amqp"
	applog "tally/internal/log"
	"tally/internal/services"

	"github.com/rs/cors"
)

// Publisher queues uploaded receipts for asynchronous extraction.
type Publisher interface {
	PublishReceiptIngest(ctx context.Context, msg *amqp.ReceiptIngestMessage) error
}

type Server struct {
	http.Server

	reviews   *services.ReviewService
	expenses  *services.ExpenseService
	analytics *services.AnalyticsService
	publisher Publisher

	topMerchants int
	rateLimiter  *rateLimiter
	httpLog      *applog.StructuredLogger
	shutdownOnce sync.Once
}

// Options tunes the server beyond its service dependencies.
type Options struct {
	AllowedOrigins []string
	TopMerchants   int
	Publisher      Publisher
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, reviews *services.ReviewService, expenses *services.ExpenseService, analytics *services.AnalyticsService, opts Options) *Server {
	mux := http.NewServeMux()

	logger := applog.New(applog.Config{
		Component: applog.ComponentHTTP,
		Handler:   slog.Default().Handler(),
	})

	s := &Server{
		reviews:      reviews,
		expenses:     expenses,
		analytics:    analytics,
		publisher:    opts.Publisher,
		topMerchants: opts.TopMerchants,
		rateLimiter:  newRateLimiter(),
		httpLog:      applog.NewStructuredLogger(logger),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/receipt-reviews/pending", s.handleListPendingReviews)
	mux.HandleFunc("GET /api/receipt-reviews/stats", s.handleReviewStats)
	mux.HandleFunc("GET /api/receipt-reviews/{id}", s.handleGetReview)
	mux.HandleFunc("PUT /api/receipt-reviews/{id}", s.handleUpdateReview)
	mux.HandleFunc("POST /api/receipt-reviews/{id}/approve", s.handleApproveReview)
	mux.HandleFunc("POST /api/receipt-reviews/{id}/reject", s.handleRejectReview)

	mux.HandleFunc("POST /api/receipts", s.handleUploadReceipt)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)

	mux.HandleFunc("GET /api/analytics/report", s.handleAnalyticsReport)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.Server = http.Server{
		Addr:         addr,
		Handler:      c.Handler(applog.Middleware(logger)(s.withRequestLogging(mux))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withRequestLogging adds security headers, rate limiting on uploads, and
// request logging.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := r.Context()

		// Uploads trigger downstream extraction, keep them rate limited
		if r.Method == http.MethodPost && r.URL.Path == "/api/receipts" && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldRequestID, requestID,
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.httpLog.LogHTTPEnd(ctx, r, requestID, clientIP, rw.statusCode, time.Since(start).Milliseconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.expenses.ListCategories(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "storage not ready"})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
