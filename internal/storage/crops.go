package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"farmbook/internal/core"
)

const cropSelect = `
	SELECT c.id, c.user_id, c.field_id, f.name, c.name, c.variety, c.season,
	       c.planting_date, c.expected_harvest_date, c.notes, c.created_at, c.updated_at
	FROM crops c
	JOIN fields f ON f.id = c.field_id`

func scanCrop(s rowScanner) (core.Crop, error) {
	var (
		c                 core.Crop
		planted, expected sql.NullString
		created, updated  int64
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.FieldID, &c.FieldName, &c.Name, &c.Variety, &c.Season,
		&planted, &expected, &c.Notes, &created, &updated); err != nil {
		return core.Crop{}, err
	}
	var err error
	if c.PlantingDate, err = parseNullDate(planted); err != nil {
		return core.Crop{}, err
	}
	if c.ExpectedHarvestDate, err = parseNullDate(expected); err != nil {
		return core.Crop{}, err
	}
	c.CreatedAt = unixTime(created)
	c.UpdatedAt = unixTime(updated)
	return c, nil
}

// CreateCrop inserts a crop under a field owned by userID. The ownership check
// and the insert are a single statement: no row back means the field is not
// the user's.
func (r *SQLiteRepository) CreateCrop(ctx context.Context, userID int64, c core.Crop) (core.Crop, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO crops (user_id, field_id, name, variety, season, planting_date, expected_harvest_date, notes)
		SELECT ?, f.id, ?, ?, ?, ?, ?, ?
		FROM fields f
		WHERE f.id = ? AND f.user_id = ?
		RETURNING id, created_at, updated_at`,
		userID, c.Name, c.Variety, c.Season, nullDate(c.PlantingDate), nullDate(c.ExpectedHarvestDate), c.Notes,
		c.FieldID, userID)

	var created, updated int64
	if err := row.Scan(&c.ID, &created, &updated); err != nil {
		return core.Crop{}, scoped("create crop", err)
	}
	c.UserID = userID
	c.CreatedAt = unixTime(created)
	c.UpdatedAt = unixTime(updated)

	slog.InfoContext(ctx, "Crop saved to SQLite", "id", c.ID, "field_id", c.FieldID, "name", c.Name)
	return c, nil
}

func (r *SQLiteRepository) GetCrop(ctx context.Context, userID, id int64) (core.Crop, error) {
	row := r.db.QueryRowContext(ctx, cropSelect+` WHERE c.id = ? AND c.user_id = ?`, id, userID)
	c, err := scanCrop(row)
	if err != nil {
		return core.Crop{}, scoped("get crop", err)
	}
	return c, nil
}

// ListCrops returns the user's crops, newest first, with their field names.
func (r *SQLiteRepository) ListCrops(ctx context.Context, userID int64) ([]core.Crop, error) {
	rows, err := r.db.QueryContext(ctx, cropSelect+`
		WHERE c.user_id = ?
		ORDER BY c.created_at DESC, c.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list crops: %w", err)
	}
	defer rows.Close()

	out := make([]core.Crop, 0)
	for rows.Next() {
		c, err := scanCrop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crop: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCrop removes the crop with its activities, harvests and their sales,
// returning the removed sale ids.
func (r *SQLiteRepository) DeleteCrop(ctx context.Context, userID, id int64) ([]int64, error) {
	return r.deleteWithSales(ctx, "crops", `
		SELECT s.id
		FROM sales s
		JOIN harvests h ON h.id = s.harvest_id
		WHERE h.crop_id = ? AND s.user_id = ?
		ORDER BY s.id`, userID, id)
}
