package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tally/internal/analytics"
	"tally/internal/core"
	"tally/internal/storage"
)

// AnalyticsService assembles monthly reports from a single ledger snapshot.
// The snapshot window is widened to cover the preceding month so that the
// summary deltas compare against data from the same read.
type AnalyticsService struct {
	storage *storage.SQLiteRepository
}

func NewAnalyticsService(storage *storage.SQLiteRepository) *AnalyticsService {
	return &AnalyticsService{storage: storage}
}

// MonthlyReport builds the full report for the given calendar month.
// topMerchants <= 0 falls back to the default ranking size.
func (s *AnalyticsService) MonthlyReport(ctx context.Context, year, month, topMerchants int) (analytics.Report, error) {
	period, err := analytics.MonthPeriod(year, month)
	if err != nil {
		return analytics.Report{}, err
	}
	if topMerchants <= 0 {
		topMerchants = analytics.DefaultTopMerchants
	}

	previous := period.Previous()
	snapshot, err := s.storage.ListExpensesBetween(ctx, previous.Start, period.End)
	if err != nil {
		return analytics.Report{}, fmt.Errorf("load ledger snapshot: %w", err)
	}

	return analytics.BuildReport(snapshot, period, topMerchants), nil
}

// Dashboard combines the monthly report with the review queue counters.
type Dashboard struct {
	Report      analytics.Report
	ReviewStats core.ReviewStats
}

// Dashboard loads the month's report and the review stats in parallel.
func (s *AnalyticsService) Dashboard(ctx context.Context, year, month, topMerchants int) (Dashboard, error) {
	var d Dashboard

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report, err := s.MonthlyReport(gctx, year, month, topMerchants)
		if err != nil {
			return err
		}
		d.Report = report
		return nil
	})
	g.Go(func() error {
		stats, err := s.storage.ReviewStats(gctx)
		if err != nil {
			return fmt.Errorf("load review stats: %w", err)
		}
		d.ReviewStats = stats
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
