package storage

import (
	"context"
	"fmt"

	"farmbook/internal/core"
)

const harvestSelect = `
	SELECT h.id, h.user_id, h.crop_id, c.name, h.harvested_on, h.quantity, h.unit,
	       h.quality_grade, h.season, h.notes, h.created_at, h.updated_at
	FROM harvests h
	JOIN crops c ON c.id = h.crop_id`

func scanHarvest(s rowScanner) (core.Harvest, error) {
	var (
		h                core.Harvest
		harvested        string
		created, updated int64
	)
	if err := s.Scan(&h.ID, &h.UserID, &h.CropID, &h.CropName, &harvested, &h.Quantity, &h.Unit,
		&h.QualityGrade, &h.Season, &h.Notes, &created, &updated); err != nil {
		return core.Harvest{}, err
	}
	var err error
	if h.HarvestedOn, err = core.ParseDate(harvested); err != nil {
		return core.Harvest{}, err
	}
	h.CreatedAt = unixTime(created)
	h.UpdatedAt = unixTime(updated)
	return h, nil
}

// CreateHarvest records a harvest of a crop owned by userID.
func (r *SQLiteRepository) CreateHarvest(ctx context.Context, userID int64, h core.Harvest) (core.Harvest, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO harvests (user_id, crop_id, harvested_on, quantity, unit, quality_grade, season, notes)
		SELECT ?, c.id, ?, ?, ?, ?, ?, ?
		FROM crops c
		WHERE c.id = ? AND c.user_id = ?
		RETURNING id, created_at, updated_at`,
		userID, h.HarvestedOn.String(), h.Quantity, string(h.Unit), string(h.QualityGrade), h.Season, h.Notes,
		h.CropID, userID)

	var created, updated int64
	if err := row.Scan(&h.ID, &created, &updated); err != nil {
		return core.Harvest{}, scoped("create harvest", err)
	}
	h.UserID = userID
	h.CreatedAt = unixTime(created)
	h.UpdatedAt = unixTime(updated)
	return h, nil
}

func (r *SQLiteRepository) GetHarvest(ctx context.Context, userID, id int64) (core.Harvest, error) {
	row := r.db.QueryRowContext(ctx, harvestSelect+` WHERE h.id = ? AND h.user_id = ?`, id, userID)
	h, err := scanHarvest(row)
	if err != nil {
		return core.Harvest{}, scoped("get harvest", err)
	}
	return h, nil
}

// ListHarvests returns the user's harvests, latest first.
func (r *SQLiteRepository) ListHarvests(ctx context.Context, userID int64) ([]core.Harvest, error) {
	rows, err := r.db.QueryContext(ctx, harvestSelect+`
		WHERE h.user_id = ?
		ORDER BY h.harvested_on DESC, h.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list harvests: %w", err)
	}
	defer rows.Close()

	out := make([]core.Harvest, 0)
	for rows.Next() {
		h, err := scanHarvest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan harvest: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// DeleteHarvest removes the harvest and its sales, returning the sale ids.
func (r *SQLiteRepository) DeleteHarvest(ctx context.Context, userID, id int64) ([]int64, error) {
	return r.deleteWithSales(ctx, "harvests", `
		SELECT id FROM sales WHERE harvest_id = ? AND user_id = ? ORDER BY id`, userID, id)
}
