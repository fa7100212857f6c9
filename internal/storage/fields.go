package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"farmbook/internal/core"
)

const fieldColumns = `f.id, f.user_id, f.name, f.area_ha, f.location, f.season, f.notes, f.created_at, f.updated_at`

func scanField(s rowScanner) (core.Field, error) {
	var (
		f                core.Field
		area             sql.NullFloat64
		created, updated int64
	)
	if err := s.Scan(&f.ID, &f.UserID, &f.Name, &area, &f.Location, &f.Season, &f.Notes, &created, &updated); err != nil {
		return core.Field{}, err
	}
	f.AreaHa = floatPtr(area)
	f.CreatedAt = unixTime(created)
	f.UpdatedAt = unixTime(updated)
	return f, nil
}

// CreateField inserts a field owned by userID.
func (r *SQLiteRepository) CreateField(ctx context.Context, userID int64, f core.Field) (core.Field, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO fields (user_id, name, area_ha, location, season, notes)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at`,
		userID, f.Name, nullFloat(f.AreaHa), f.Location, f.Season, f.Notes)

	var created, updated int64
	if err := row.Scan(&f.ID, &created, &updated); err != nil {
		return core.Field{}, fmt.Errorf("create field: %w", err)
	}
	f.UserID = userID
	f.CreatedAt = unixTime(created)
	f.UpdatedAt = unixTime(updated)

	slog.InfoContext(ctx, "Field saved to SQLite", "id", f.ID, "user_id", userID, "name", f.Name)
	return f, nil
}

// GetField returns the field if userID owns it.
func (r *SQLiteRepository) GetField(ctx context.Context, userID, id int64) (core.Field, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fieldColumns+` FROM fields f WHERE f.id = ? AND f.user_id = ?`, id, userID)
	f, err := scanField(row)
	if err != nil {
		return core.Field{}, scoped("get field", err)
	}
	return f, nil
}

// ListFields returns the user's fields, newest first.
func (r *SQLiteRepository) ListFields(ctx context.Context, userID int64) ([]core.Field, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+fieldColumns+`
		FROM fields f
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC, f.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()

	out := make([]core.Field, 0)
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteField removes the field. Crops (and their harvests, sales and
// activities) cascade; expenses linked to the field lose the link. It
// returns the ids of the removed sales.
func (r *SQLiteRepository) DeleteField(ctx context.Context, userID, id int64) ([]int64, error) {
	return r.deleteWithSales(ctx, "fields", `
		SELECT s.id
		FROM sales s
		JOIN harvests h ON h.id = s.harvest_id
		JOIN crops c ON c.id = h.crop_id
		WHERE c.field_id = ? AND s.user_id = ?
		ORDER BY s.id`, userID, id)
}

// FarmRemoval reports what DeleteFarm removed.
type FarmRemoval struct {
	Fields     int64
	ExpenseIDs []int64
	SaleIDs    []int64
}

// DeleteFarm removes all of the user's expenses and fields in one
// transaction. The fields take their crops, activities, harvests and sales
// with them.
func (r *SQLiteRepository) DeleteFarm(ctx context.Context, userID int64) (FarmRemoval, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return FarmRemoval{}, fmt.Errorf("delete farm: %w", err)
	}
	defer tx.Rollback()

	var out FarmRemoval
	if out.ExpenseIDs, err = queryIDs(ctx, tx, `DELETE FROM expenses WHERE user_id = ? RETURNING id`, userID); err != nil {
		return FarmRemoval{}, fmt.Errorf("delete expenses: %w", err)
	}
	if out.SaleIDs, err = queryIDs(ctx, tx, `DELETE FROM sales WHERE user_id = ? RETURNING id`, userID); err != nil {
		return FarmRemoval{}, fmt.Errorf("delete sales: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM fields WHERE user_id = ?`, userID)
	if err != nil {
		return FarmRemoval{}, fmt.Errorf("delete fields: %w", err)
	}
	if out.Fields, err = res.RowsAffected(); err != nil {
		return FarmRemoval{}, fmt.Errorf("delete fields: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return FarmRemoval{}, fmt.Errorf("delete farm: %w", err)
	}
	return out, nil
}
