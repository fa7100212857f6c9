package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"farmbook/internal/core"
)

// An expense linked only to a crop reports the crop's field as its field name.
const expenseSelect = `
	SELECT e.id, e.user_id, e.crop_id, COALESCE(c.name, ''), e.field_id, COALESCE(f.name, cf.name, ''),
	       e.category, e.item, e.quantity, e.unit, e.cost_per_unit_cents, e.total_cost_cents,
	       e.purchased_on, e.season, e.notes, e.created_at, e.updated_at
	FROM expenses e
	LEFT JOIN crops c ON c.id = e.crop_id
	LEFT JOIN fields f ON f.id = e.field_id
	LEFT JOIN fields cf ON cf.id = c.field_id`

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e                core.Expense
		cropID, fieldID  sql.NullInt64
		quantity         sql.NullFloat64
		costPerUnit      sql.NullInt64
		purchased        string
		created, updated int64
	)
	if err := s.Scan(&e.ID, &e.UserID, &cropID, &e.CropName, &fieldID, &e.FieldName,
		&e.Category, &e.Item, &quantity, &e.Unit, &costPerUnit, &e.TotalCost.Cents,
		&purchased, &e.Season, &e.Notes, &created, &updated); err != nil {
		return core.Expense{}, err
	}
	var err error
	if e.PurchasedOn, err = core.ParseDate(purchased); err != nil {
		return core.Expense{}, err
	}
	e.CropID = intPtr(cropID)
	e.FieldID = intPtr(fieldID)
	e.Quantity = floatPtr(quantity)
	e.CostPerUnit = moneyPtr(costPerUnit)
	e.CreatedAt = unixTime(created)
	e.UpdatedAt = unixTime(updated)
	return e, nil
}

// CreateExpense inserts an expense. Each link that is set must point at a row
// owned by userID; otherwise nothing is written and
// core.ErrNotFoundOrUnauthorized is returned.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, userID int64, e core.Expense) (core.Expense, error) {
	cropID, fieldID := nullInt(e.CropID), nullInt(e.FieldID)
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO expenses (user_id, crop_id, field_id, category, item, quantity, unit,
		                      cost_per_unit_cents, total_cost_cents, purchased_on, season, notes)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE (? IS NULL OR EXISTS (SELECT 1 FROM crops WHERE id = ? AND user_id = ?))
		  AND (? IS NULL OR EXISTS (SELECT 1 FROM fields WHERE id = ? AND user_id = ?))
		RETURNING id, created_at, updated_at`,
		userID, cropID, fieldID, string(e.Category), e.Item, nullFloat(e.Quantity), e.Unit,
		nullMoney(e.CostPerUnit), e.TotalCost.Cents, e.PurchasedOn.String(), e.Season, e.Notes,
		cropID, cropID, userID,
		fieldID, fieldID, userID)

	var created, updated int64
	if err := row.Scan(&e.ID, &created, &updated); err != nil {
		return core.Expense{}, scoped("create expense", err)
	}
	e.UserID = userID
	e.CreatedAt = unixTime(created)
	e.UpdatedAt = unixTime(updated)

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID, "category", e.Category, "amount_cents", e.TotalCost.Cents)
	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, expenseSelect+` WHERE e.id = ? AND e.user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, scoped("get expense", err)
	}
	return e, nil
}

// ListExpenses returns all of the user's expenses, orphaned ones included,
// most recent purchase first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	return listExpenses(ctx, r.db, expenseSelect+`
		WHERE e.user_id = ?
		ORDER BY e.purchased_on DESC, e.id DESC`, userID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id int64) error {
	return r.deleteOwned(ctx, "expenses", userID, id)
}

func listExpenses(ctx context.Context, q querier, query string, args ...any) ([]core.Expense, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
