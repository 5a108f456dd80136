package storage

import (
	"context"
	"path/filepath"
	"testing"

	"tally/internal/core"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCreateAndGetReview(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.CreateReview(ctx, core.ReviewEntry{
		Filename:   "receipt.jpg",
		FileType:   "image/jpeg",
		Confidence: 0.92,
		Extracted: core.Fields{
			core.FieldMerchant: "Starbucks",
			core.FieldAmount:   "5.75",
		},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, core.ReviewPending, created.Status)

	got, err := repo.GetReview(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "receipt.jpg", got.Filename)
	assert.Equal(t, "Starbucks", got.Extracted[core.FieldMerchant])
	assert.Equal(t, "Starbucks", got.Reviewed[core.FieldMerchant], "reviewed data starts as a copy of extracted data")
	assert.Nil(t, got.ExpenseID)
}

func TestGetReviewNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetReview(context.Background(), uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListPendingReviewsExcludesResolved(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first, err := repo.CreateReview(ctx, core.ReviewEntry{Filename: "a.jpg", FileType: "image/jpeg"})
	require.NoError(t, err)
	second, err := repo.CreateReview(ctx, core.ReviewEntry{Filename: "b.jpg", FileType: "image/jpeg"})
	require.NoError(t, err)

	_, err = repo.MutateReview(ctx, second.ID, func(e *core.ReviewEntry) (*core.ExpenseRecord, error) {
		e.Status = core.ReviewRejected
		return nil, nil
	})
	require.NoError(t, err)

	pending, err := repo.ListPendingReviews(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)
}

func TestMutateReviewApproveInsertsExpenseAtomically(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	entry, err := repo.CreateReview(ctx, core.ReviewEntry{
		Filename: "coffee.jpg",
		FileType: "image/jpeg",
		Extracted: core.Fields{
			core.FieldMerchant: "Starbucks",
			core.FieldAmount:   "5.75",
			core.FieldDate:     "2025-01-15",
		},
	})
	require.NoError(t, err)

	updated, err := repo.MutateReview(ctx, entry.ID, func(e *core.ReviewEntry) (*core.ExpenseRecord, error) {
		e.Status = core.ReviewApproved
		return &core.ExpenseRecord{
			Merchant:      "Starbucks",
			Amount:        core.Money{Cents: 575},
			Date:          core.NewDate(2025, 1, 15),
			Category:      "Meals & Dining",
			Reimbursement: core.ReimbursementPending,
			Verification:  core.VerificationVerified,
			ReceiptID:     &e.ID,
		}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ExpenseID)
	assert.Equal(t, core.ReviewApproved, updated.Status)

	rec, err := repo.GetExpense(ctx, *updated.ExpenseID)
	require.NoError(t, err)
	assert.Equal(t, "Starbucks", rec.Merchant)
	assert.Equal(t, int64(575), rec.Amount.Cents)
	assert.Equal(t, "2025-01-15", rec.Date.String())
	require.NotNil(t, rec.ReceiptID)
	assert.Equal(t, entry.ID, *rec.ReceiptID)
}

func TestMutateReviewRollsBackOnError(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	entry, err := repo.CreateReview(ctx, core.ReviewEntry{Filename: "a.jpg", FileType: "image/jpeg"})
	require.NoError(t, err)

	_, err = repo.MutateReview(ctx, entry.ID, func(e *core.ReviewEntry) (*core.ExpenseRecord, error) {
		e.Status = core.ReviewApproved
		return nil, core.ErrValidation
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	got, err := repo.GetReview(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ReviewPending, got.Status, "failed mutation must not leak state")

	expenses, err := repo.ListExpenses(ctx, ExpenseFilter{})
	require.NoError(t, err)
	assert.Empty(t, expenses)
}

func TestReviewStats(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	ids := make([]uuid.UUID, 4)
	for i := range ids {
		e, err := repo.CreateReview(ctx, core.ReviewEntry{Filename: "r.jpg", FileType: "image/jpeg"})
		require.NoError(t, err)
		ids[i] = e.ID
	}
	for _, id := range ids[:3] {
		_, err := repo.MutateReview(ctx, id, func(e *core.ReviewEntry) (*core.ExpenseRecord, error) {
			e.Status = core.ReviewApproved
			return nil, nil
		})
		require.NoError(t, err)
	}

	stats, err := repo.ReviewStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ReviewStats{Total: 4, Pending: 1, Approved: 3, ApprovalRate: 75}, stats)
}

func TestExpenseCRUD(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id, err := repo.InsertExpense(ctx, core.ExpenseRecord{
		Merchant:      "Esselunga",
		Amount:        core.Money{Cents: 4230},
		Date:          core.NewDate(2025, 3, 2),
		Category:      "Meals & Dining",
		Description:   "weekly groceries",
		Reimbursement: core.ReimbursementPending,
		Verification:  core.VerificationPending,
	})
	require.NoError(t, err)

	rec, err := repo.GetExpense(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Esselunga", rec.Merchant)

	rec.Amount.Cents = 4500
	rec.Verification = core.VerificationVerified
	require.NoError(t, repo.UpdateExpense(ctx, rec))

	rec, err = repo.GetExpense(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), rec.Amount.Cents)
	assert.Equal(t, core.VerificationVerified, rec.Verification)

	require.NoError(t, repo.DeleteExpense(ctx, id))
	_, err = repo.GetExpense(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteExpense(ctx, id), core.ErrNotFound)
}

func TestListExpensesFilters(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	seed := []core.ExpenseRecord{
		{Merchant: "Starbucks", Amount: core.Money{Cents: 575}, Date: core.NewDate(2025, 1, 15), Category: "Meals & Dining"},
		{Merchant: "Shell", Amount: core.Money{Cents: 6000}, Date: core.NewDate(2025, 1, 20), Category: "Transportation"},
		{Merchant: "Starbucks Reserve", Amount: core.Money{Cents: 950}, Date: core.NewDate(2025, 2, 1), Category: "Meals & Dining"},
	}
	for i := range seed {
		seed[i].Reimbursement = core.ReimbursementPending
		seed[i].Verification = core.VerificationPending
		_, err := repo.InsertExpense(ctx, seed[i])
		require.NoError(t, err)
	}

	tests := []struct {
		name      string
		filter    ExpenseFilter
		merchants []string
	}{
		{
			name:      "no filter returns newest first",
			filter:    ExpenseFilter{},
			merchants: []string{"Starbucks Reserve", "Shell", "Starbucks"},
		},
		{
			name:      "merchant substring is case-insensitive",
			filter:    ExpenseFilter{Merchant: "starbucks"},
			merchants: []string{"Starbucks Reserve", "Starbucks"},
		},
		{
			name:      "category filter",
			filter:    ExpenseFilter{Category: "Transportation"},
			merchants: []string{"Shell"},
		},
		{
			name:      "date window",
			filter:    ExpenseFilter{From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 1, 31)},
			merchants: []string{"Shell", "Starbucks"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := repo.ListExpenses(ctx, tt.filter)
			require.NoError(t, err)
			var merchants []string
			for _, rec := range records {
				merchants = append(merchants, rec.Merchant)
			}
			assert.Equal(t, tt.merchants, merchants)
		})
	}
}

func TestCategoriesSeededAndCreatable(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	names, err := repo.CategoryNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, core.UncategorizedName)
	assert.Contains(t, names, "Meals & Dining")

	created, err := repo.CreateCategory(ctx, "Pets", "#f59e0b")
	require.NoError(t, err)
	assert.Equal(t, "Pets", created.Name)

	names, err = repo.CategoryNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "Pets")
}
