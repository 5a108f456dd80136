package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"tally/internal/core"
	"tally/internal/storage"
)

// ExpenseService handles direct ledger operations: manual entry, edits and
// the category taxonomy. Records arriving through receipt approval bypass
// this service; the review transaction writes them itself.
type ExpenseService struct {
	storage *storage.SQLiteRepository
}

func NewExpenseService(storage *storage.SQLiteRepository) *ExpenseService {
	return &ExpenseService{storage: storage}
}

// CreateExpense validates and appends a manually entered record.
func (s *ExpenseService) CreateExpense(ctx context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error) {
	if rec.Category == "" {
		rec.Category = core.UncategorizedName
	}
	if rec.Reimbursement == "" {
		rec.Reimbursement = core.ReimbursementPending
	}
	if rec.Verification == "" {
		rec.Verification = core.VerificationPending
	}
	if err := s.validate(ctx, rec); err != nil {
		return core.ExpenseRecord{}, err
	}

	id, err := s.storage.InsertExpense(ctx, rec)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("save expense: %w", err)
	}
	return s.storage.GetExpense(ctx, id)
}

// GetExpense returns one ledger record.
func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.ExpenseRecord, error) {
	return s.storage.GetExpense(ctx, id)
}

// ListExpenses returns ledger records matching the filter.
func (s *ExpenseService) ListExpenses(ctx context.Context, f storage.ExpenseFilter) ([]core.ExpenseRecord, error) {
	return s.storage.ListExpenses(ctx, f)
}

// UpdateExpense replaces the mutable fields of an existing record.
func (s *ExpenseService) UpdateExpense(ctx context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error) {
	current, err := s.storage.GetExpense(ctx, rec.ID)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	rec.ReceiptID = current.ReceiptID
	rec.CreatedAt = current.CreatedAt

	if err := s.validate(ctx, rec); err != nil {
		return core.ExpenseRecord{}, err
	}
	if err := s.storage.UpdateExpense(ctx, rec); err != nil {
		return core.ExpenseRecord{}, err
	}
	return s.storage.GetExpense(ctx, rec.ID)
}

// DeleteExpense removes a record from the ledger.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	return s.storage.DeleteExpense(ctx, id)
}

// ListCategories returns the taxonomy.
func (s *ExpenseService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.storage.ListCategories(ctx)
}

// CreateCategory extends the taxonomy with a new name.
func (s *ExpenseService) CreateCategory(ctx context.Context, name, color string) (core.Category, error) {
	if name == "" {
		return core.Category{}, fmt.Errorf("category name is required: %w", core.ErrInvalidArgument)
	}
	cat, err := s.storage.CreateCategory(ctx, name, color)
	if err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Category created", "name", cat.Name)
	return cat, nil
}

func (s *ExpenseService) validate(ctx context.Context, rec core.ExpenseRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	names, err := s.storage.CategoryNames(ctx)
	if err != nil {
		return fmt.Errorf("load category taxonomy: %w", err)
	}
	if !slices.Contains(names, rec.Category) {
		return fmt.Errorf("unknown category %q: %w", rec.Category, core.ErrValidation)
	}
	return nil
}
