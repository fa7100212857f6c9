package storage

import (
	"context"
	"fmt"

	"farmbook/internal/core"
)

// reachableExpense selects the user's expenses that still hang off a crop or
// a field. Aggregates never count orphans.
const reachableExpense = `e.user_id = ? AND (e.crop_id IS NOT NULL OR e.field_id IS NOT NULL)`

const statsQuery = `
	SELECT
		(SELECT COUNT(*) FROM fields WHERE user_id = ?),
		(SELECT COUNT(*) FROM crops WHERE user_id = ?),
		(SELECT COUNT(*) FROM harvests WHERE user_id = ?),
		(SELECT COALESCE(SUM(e.total_cost_cents), 0) FROM expenses e WHERE ` + reachableExpense + `),
		(SELECT COALESCE(SUM(total_amount_cents), 0) FROM sales WHERE user_id = ?)`

// Stats computes the dashboard numbers in a single statement so they all
// observe the same snapshot.
func (r *SQLiteRepository) Stats(ctx context.Context, userID int64) (core.Stats, error) {
	return stats(ctx, r.db, userID)
}

func stats(ctx context.Context, q querier, userID int64) (core.Stats, error) {
	var fields, crops, harvests, expenses, revenue int64
	err := q.QueryRowContext(ctx, statsQuery, userID, userID, userID, userID, userID).
		Scan(&fields, &crops, &harvests, &expenses, &revenue)
	if err != nil {
		return core.Stats{}, fmt.Errorf("compute stats: %w", err)
	}
	return core.NewStats(fields, crops, harvests, core.Money{Cents: expenses}, core.Money{Cents: revenue}), nil
}

// Snapshot runs read queries inside one transaction. Its methods may be
// called from several goroutines at once.
type Snapshot struct {
	q querier
}

// WithSnapshot opens a transaction, hands it to fn and rolls it back.
func (r *SQLiteRepository) WithSnapshot(ctx context.Context, fn func(*Snapshot) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	return fn(&Snapshot{q: tx})
}

func (s *Snapshot) Stats(ctx context.Context, userID int64) (core.Stats, error) {
	return stats(ctx, s.q, userID)
}

// CategoryTotals groups reachable expenses by category, largest total first.
func (s *Snapshot) CategoryTotals(ctx context.Context, userID int64) ([]core.CategoryTotal, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT e.category, SUM(e.total_cost_cents), COUNT(*)
		FROM expenses e
		WHERE `+reachableExpense+`
		GROUP BY e.category
		ORDER BY SUM(e.total_cost_cents) DESC, e.category ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	out := make([]core.CategoryTotal, 0)
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total.Cents, &ct.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// RecentExpenses returns up to limit reachable expenses, latest first.
func (s *Snapshot) RecentExpenses(ctx context.Context, userID int64, limit int) ([]core.Expense, error) {
	return listExpenses(ctx, s.q, expenseSelect+`
		WHERE `+reachableExpense+`
		ORDER BY e.purchased_on DESC, e.id DESC
		LIMIT ?`, userID, limit)
}

// RecentSales returns up to limit sales, latest first.
func (s *Snapshot) RecentSales(ctx context.Context, userID int64, limit int) ([]core.Sale, error) {
	return listSales(ctx, s.q, saleSelect+`
		WHERE s.user_id = ?
		ORDER BY s.sold_on DESC, s.id DESC
		LIMIT ?`, userID, limit)
}
