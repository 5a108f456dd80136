package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tally/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteRepository is the system of record for both the expense ledger and
// the receipt review store. SQLite serializes writers, so a transaction per
// mutation is enough to keep operations on the same entry serialized and the
// approve transition atomic with its ledger insert.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ---- Receipt review store ----

// CreateReview inserts a new pending review entry. The reviewed data is
// initialized as a copy of the extracted data, restricted to recognized
// fields.
func (r *SQLiteRepository) CreateReview(ctx context.Context, e core.ReviewEntry) (core.ReviewEntry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.Status = core.ReviewPending
	e.Extracted = e.Extracted.Clone()
	e.Reviewed = e.Extracted.Clone()

	extracted, err := json.Marshal(e.Extracted)
	if err != nil {
		return core.ReviewEntry{}, fmt.Errorf("marshal extracted data: %w", err)
	}
	reviewed, err := json.Marshal(e.Reviewed)
	if err != nil {
		return core.ReviewEntry{}, fmt.Errorf("marshal reviewed data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO receipt_reviews (id, filename, file_type, confidence, extracted_data, reviewed_data, review_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Filename, e.FileType, e.Confidence, string(extracted), string(reviewed), string(e.Status), e.CreatedAt)
	if err != nil {
		return core.ReviewEntry{}, fmt.Errorf("insert review entry: %w", err)
	}

	slog.InfoContext(ctx, "Review entry created",
		"id", e.ID,
		"filename", e.Filename,
		"confidence", e.Confidence)

	return e, nil
}

// GetReview returns one entry by id, or core.ErrNotFound.
func (r *SQLiteRepository) GetReview(ctx context.Context, id uuid.UUID) (core.ReviewEntry, error) {
	return scanReview(r.db.QueryRowContext(ctx, `
		SELECT id, filename, file_type, confidence, extracted_data, reviewed_data, review_status, expense_id, created_at
		FROM receipt_reviews WHERE id = ?`, id.String()))
}

// ListPendingReviews returns pending entries, newest first.
func (r *SQLiteRepository) ListPendingReviews(ctx context.Context) ([]core.ReviewEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, file_type, confidence, extracted_data, reviewed_data, review_status, expense_id, created_at
		FROM receipt_reviews WHERE review_status = ? ORDER BY created_at DESC, id`, string(core.ReviewPending))
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	defer rows.Close()

	var entries []core.ReviewEntry
	for rows.Next() {
		e, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReviewStats counts entries by lifecycle state.
func (r *SQLiteRepository) ReviewStats(ctx context.Context) (core.ReviewStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT review_status, COUNT(*) FROM receipt_reviews GROUP BY review_status`)
	if err != nil {
		return core.ReviewStats{}, fmt.Errorf("review stats: %w", err)
	}
	defer rows.Close()

	var stats core.ReviewStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return core.ReviewStats{}, fmt.Errorf("scan review stats: %w", err)
		}
		stats.Total += count
		switch core.ReviewStatus(status) {
		case core.ReviewPending:
			stats.Pending = count
		case core.ReviewApproved:
			stats.Approved = count
		case core.ReviewRejected:
			stats.Rejected = count
		}
	}
	if err := rows.Err(); err != nil {
		return core.ReviewStats{}, err
	}
	if stats.Total > 0 {
		stats.ApprovalRate = float64(stats.Approved) / float64(stats.Total) * 100
	}
	return stats, nil
}

// MutateReview loads the entry inside a transaction, applies fn and persists
// the entry's reviewed data, status and expense link. When fn returns a
// record, it is inserted into the ledger in the same transaction and linked
// to the entry; a failure anywhere rolls everything back, so the entry can
// never end up approved without its expense (or with two of them).
func (r *SQLiteRepository) MutateReview(ctx context.Context, id uuid.UUID, fn func(*core.ReviewEntry) (*core.ExpenseRecord, error)) (core.ReviewEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.ReviewEntry{}, fmt.Errorf("begin review transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := scanReview(tx.QueryRowContext(ctx, `
		SELECT id, filename, file_type, confidence, extracted_data, reviewed_data, review_status, expense_id, created_at
		FROM receipt_reviews WHERE id = ?`, id.String()))
	if err != nil {
		return core.ReviewEntry{}, err
	}

	record, err := fn(&entry)
	if err != nil {
		return core.ReviewEntry{}, err
	}

	if record != nil {
		expenseID, err := insertExpenseTx(ctx, tx, *record)
		if err != nil {
			return core.ReviewEntry{}, err
		}
		entry.ExpenseID = &expenseID
	}

	reviewed, err := json.Marshal(entry.Reviewed)
	if err != nil {
		return core.ReviewEntry{}, fmt.Errorf("marshal reviewed data: %w", err)
	}
	var expenseID any
	if entry.ExpenseID != nil {
		expenseID = *entry.ExpenseID
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE receipt_reviews SET reviewed_data = ?, review_status = ?, expense_id = ?
		WHERE id = ?`,
		string(reviewed), string(entry.Status), expenseID, id.String())
	if err != nil {
		return core.ReviewEntry{}, fmt.Errorf("update review entry: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.ReviewEntry{}, fmt.Errorf("review update rows affected: %w", err)
	} else if n != 1 {
		return core.ReviewEntry{}, fmt.Errorf("review entry %s: %w", id, core.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return core.ReviewEntry{}, fmt.Errorf("commit review transaction: %w", err)
	}
	return entry, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (core.ReviewEntry, error) {
	var (
		e             core.ReviewEntry
		idStr         string
		status        string
		extractedJSON string
		reviewedJSON  string
		expenseID     sql.NullInt64
	)
	err := row.Scan(&idStr, &e.Filename, &e.FileType, &e.Confidence, &extractedJSON, &reviewedJSON, &status, &expenseID, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ReviewEntry{}, fmt.Errorf("review entry: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.ReviewEntry{}, fmt.Errorf("scan review entry: %w", err)
	}
	e.ID, err = uuid.Parse(idStr)
	if err != nil {
		return core.ReviewEntry{}, fmt.Errorf("parse review id %q: %w", idStr, err)
	}
	e.Status = core.ReviewStatus(status)
	if err := json.Unmarshal([]byte(extractedJSON), &e.Extracted); err != nil {
		return core.ReviewEntry{}, fmt.Errorf("unmarshal extracted data: %w", err)
	}
	if err := json.Unmarshal([]byte(reviewedJSON), &e.Reviewed); err != nil {
		return core.ReviewEntry{}, fmt.Errorf("unmarshal reviewed data: %w", err)
	}
	if expenseID.Valid {
		e.ExpenseID = &expenseID.Int64
	}
	return e, nil
}

// ---- Expense ledger ----

// ExpenseFilter narrows ListExpenses. Zero values mean "no constraint".
type ExpenseFilter struct {
	Merchant string // substring match, case-insensitive
	Category string // exact match
	From     core.Date
	To       core.Date
}

// InsertExpense appends one record to the ledger and returns its id.
func (r *SQLiteRepository) InsertExpense(ctx context.Context, rec core.ExpenseRecord) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin expense transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := insertExpenseTx(ctx, tx, rec)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit expense transaction: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"merchant", rec.Merchant,
		"amount_cents", rec.Amount.Cents,
		"category", rec.Category)

	return id, nil
}

func insertExpenseTx(ctx context.Context, tx *sql.Tx, rec core.ExpenseRecord) (int64, error) {
	now := time.Now().UTC()
	var receiptID any
	if rec.ReceiptID != nil {
		receiptID = rec.ReceiptID.String()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO expenses (merchant, amount_cents, expense_date, category, description, reimbursement_status, verification_status, receipt_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Merchant, rec.Amount.Cents, rec.Date.String(), rec.Category, rec.Description,
		string(rec.Reimbursement), string(rec.Verification), receiptID, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense insert id: %w", err)
	}
	return id, nil
}

// GetExpense returns one ledger record by id, or core.ErrNotFound.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.ExpenseRecord, error) {
	return scanExpense(r.db.QueryRowContext(ctx, `
		SELECT id, merchant, amount_cents, expense_date, category, description, reimbursement_status, verification_status, receipt_id, created_at, updated_at
		FROM expenses WHERE id = ?`, id))
}

// ListExpenses returns ledger records matching the filter, newest date first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.ExpenseRecord, error) {
	var (
		conds []string
		args  []any
	)
	if f.Merchant != "" {
		conds = append(conds, "LOWER(merchant) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Merchant)+"%")
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if !f.From.IsZero() {
		conds = append(conds, "expense_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, "expense_date <= ?")
		args = append(args, f.To.String())
	}

	query := `SELECT id, merchant, amount_cents, expense_date, category, description, reimbursement_status, verification_status, receipt_id, created_at, updated_at FROM expenses`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY expense_date DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var records []core.ExpenseRecord
	for rows.Next() {
		rec, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListExpensesBetween returns the snapshot for [start, end], ordered by date.
// Analytics uses this with a window widened to cover the comparison period.
func (r *SQLiteRepository) ListExpensesBetween(ctx context.Context, start, end core.Date) ([]core.ExpenseRecord, error) {
	return r.ListExpenses(ctx, ExpenseFilter{From: start, To: end})
}

// UpdateExpense persists field and status changes to an existing record.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, rec core.ExpenseRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET merchant = ?, amount_cents = ?, expense_date = ?, category = ?, description = ?,
			reimbursement_status = ?, verification_status = ?, updated_at = ?
		WHERE id = ?`,
		rec.Merchant, rec.Amount.Cents, rec.Date.String(), rec.Category, rec.Description,
		string(rec.Reimbursement), string(rec.Verification), time.Now().UTC(), rec.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("expense update rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("expense %d: %w", rec.ID, core.ErrNotFound)
	}
	return nil
}

// DeleteExpense removes a record from the ledger.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("expense delete rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

func scanExpense(row rowScanner) (core.ExpenseRecord, error) {
	var (
		rec           core.ExpenseRecord
		dateStr       string
		reimbursement string
		verification  string
		receiptID     sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Merchant, &rec.Amount.Cents, &dateStr, &rec.Category, &rec.Description,
		&reimbursement, &verification, &receiptID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, fmt.Errorf("expense: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("scan expense: %w", err)
	}
	rec.Date, err = core.ParseDate(dateStr)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("parse expense date %q: %w", dateStr, err)
	}
	rec.Reimbursement = core.ReimbursementStatus(reimbursement)
	rec.Verification = core.VerificationStatus(verification)
	if receiptID.Valid {
		id, err := uuid.Parse(receiptID.String)
		if err != nil {
			return core.ExpenseRecord{}, fmt.Errorf("parse receipt id %q: %w", receiptID.String, err)
		}
		rec.ReceiptID = &id
	}
	return rec, nil
}

// ---- Category taxonomy ----

// ListCategories returns the taxonomy ordered by name.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, color, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CategoryNames returns just the closed category name set.
func (r *SQLiteRepository) CategoryNames(ctx context.Context) ([]string, error) {
	cats, err := r.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	return names, nil
}

// CreateCategory adds a taxonomy entry.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, name, color string) (core.Category, error) {
	if color == "" {
		color = "#6366f1"
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `INSERT INTO categories (name, color, created_at) VALUES (?, ?, ?)`, name, color, now)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category insert id: %w", err)
	}
	return core.Category{ID: id, Name: name, Color: color, CreatedAt: now}, nil
}
