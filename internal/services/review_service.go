package services

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/core"
	"tally/internal/storage"

	"github.com/google/uuid"
)

// ReviewService drives receipt review entries through their lifecycle:
// pending entries accumulate reviewer edits, then resolve to approved
// (appending a ledger record) or rejected.
type ReviewService struct {
	storage *storage.SQLiteRepository
}

func NewReviewService(storage *storage.SQLiteRepository) *ReviewService {
	return &ReviewService{storage: storage}
}

// Create registers a freshly extracted receipt as a pending review entry.
func (s *ReviewService) Create(ctx context.Context, entry core.ReviewEntry) (core.ReviewEntry, error) {
	if entry.Filename == "" {
		return core.ReviewEntry{}, fmt.Errorf("filename is required: %w", core.ErrInvalidArgument)
	}
	if entry.Confidence < 0 || entry.Confidence > 1 {
		return core.ReviewEntry{}, fmt.Errorf("confidence %v out of range: %w", entry.Confidence, core.ErrInvalidArgument)
	}
	return s.storage.CreateReview(ctx, entry)
}

// ListPending returns the open review queue, newest first.
func (s *ReviewService) ListPending(ctx context.Context) ([]core.ReviewEntry, error) {
	return s.storage.ListPendingReviews(ctx)
}

// Get returns a single entry regardless of its state.
func (s *ReviewService) Get(ctx context.Context, id uuid.UUID) (core.ReviewEntry, error) {
	return s.storage.GetReview(ctx, id)
}

// Update applies a batch of reviewer edits to a pending entry. The batch is
// atomic: one bad field name or value rejects the whole batch and the entry
// keeps its previous reviewed data. The entry stays pending.
func (s *ReviewService) Update(ctx context.Context, id uuid.UUID, edits map[string]string) (core.ReviewEntry, error) {
	return s.storage.MutateReview(ctx, id, func(e *core.ReviewEntry) (*core.ExpenseRecord, error) {
		merged, err := core.MergeFields(*e, edits)
		if err != nil {
			return nil, err
		}
		e.Reviewed = merged
		return nil, nil
	})
}

// Approve resolves a pending entry: any final edits are merged first, the
// reviewed data is finalized into a ledger record, and record insert plus
// state transition commit together. A non-pending entry fails with
// ErrInvalidState and nothing reaches the ledger.
func (s *ReviewService) Approve(ctx context.Context, id uuid.UUID, edits map[string]string) (core.ReviewEntry, error) {
	categories, err := s.storage.CategoryNames(ctx)
	if err != nil {
		return core.ReviewEntry{}, fmt.Errorf("load category taxonomy: %w", err)
	}

	entry, err := s.storage.MutateReview(ctx, id, func(e *core.ReviewEntry) (*core.ExpenseRecord, error) {
		if e.Status != core.ReviewPending {
			return nil, fmt.Errorf("entry is %s: %w", e.Status, core.ErrInvalidState)
		}
		if len(edits) > 0 {
			merged, err := core.MergeFields(*e, edits)
			if err != nil {
				return nil, err
			}
			e.Reviewed = merged
		}
		record, err := core.Finalize(*e, categories)
		if err != nil {
			return nil, err
		}
		e.Status = core.ReviewApproved
		return &record, nil
	})
	if err != nil {
		return core.ReviewEntry{}, err
	}

	slog.InfoContext(ctx, "Review entry approved",
		"id", entry.ID,
		"expense_id", *entry.ExpenseID)

	return entry, nil
}

// Reject resolves a pending entry without touching the ledger.
func (s *ReviewService) Reject(ctx context.Context, id uuid.UUID) (core.ReviewEntry, error) {
	entry, err := s.storage.MutateReview(ctx, id, func(e *core.ReviewEntry) (*core.ExpenseRecord, error) {
		if e.Status != core.ReviewPending {
			return nil, fmt.Errorf("entry is %s: %w", e.Status, core.ErrInvalidState)
		}
		e.Status = core.ReviewRejected
		return nil, nil
	})
	if err != nil {
		return core.ReviewEntry{}, err
	}

	slog.InfoContext(ctx, "Review entry rejected", "id", entry.ID)
	return entry, nil
}

// Stats summarizes the review store by lifecycle state.
func (s *ReviewService) Stats(ctx context.Context) (core.ReviewStats, error) {
	return s.storage.ReviewStats(ctx)
}
