package services

import (
	"context"
	"fmt"

	"farmbook/internal/core"
	"farmbook/internal/storage"

	"golang.org/x/sync/errgroup"
)

// InsightsService computes the dashboard statistics and the financial report.
// Results are always read fresh from the database.
type InsightsService struct {
	storage *storage.SQLiteRepository
}

func NewInsightsService(storage *storage.SQLiteRepository) *InsightsService {
	return &InsightsService{storage: storage}
}

// ComputeStats returns the counts and money totals for the caller. All six
// numbers come from one statement.
func (s *InsightsService) ComputeStats(ctx context.Context, id core.Identity) (core.Stats, error) {
	if err := id.Require(); err != nil {
		return core.Stats{}, err
	}
	return s.storage.Stats(ctx, id.UserID)
}

// ComputeReport runs the four report queries concurrently over one
// transaction so every part describes the same state.
func (s *InsightsService) ComputeReport(ctx context.Context, id core.Identity) (core.Report, error) {
	if err := id.Require(); err != nil {
		return core.Report{}, err
	}

	var (
		totals     core.Stats
		categories []core.CategoryTotal
		expenses   []core.Expense
		sales      []core.Sale
	)

	err := s.storage.WithSnapshot(ctx, func(snap *storage.Snapshot) error {
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			var err error
			totals, err = snap.Stats(gctx, id.UserID)
			return err
		})
		g.Go(func() error {
			var err error
			categories, err = snap.CategoryTotals(gctx, id.UserID)
			return err
		})
		g.Go(func() error {
			var err error
			expenses, err = snap.RecentExpenses(gctx, id.UserID, core.RecentLimit)
			return err
		})
		g.Go(func() error {
			var err error
			sales, err = snap.RecentSales(gctx, id.UserID, core.RecentLimit)
			return err
		})

		return g.Wait()
	})
	if err != nil {
		return core.Report{}, fmt.Errorf("compute report: %w", err)
	}

	return core.Report{
		TotalExpenses:      totals.TotalExpenses,
		TotalRevenue:       totals.TotalRevenue,
		Profit:             totals.Profit,
		ExpensesByCategory: categories,
		RecentExpenses:     expenses,
		RecentSales:        sales,
	}, nil
}
