package storage

import (
	"context"
	"database/sql"
	"fmt"

	"farmbook/internal/core"
)

const activitySelect = `
	SELECT a.id, a.user_id, a.crop_id, c.name, a.type, a.performed_on, a.labor_hours,
	       a.season, a.notes, a.created_at, a.updated_at
	FROM activities a
	JOIN crops c ON c.id = a.crop_id`

func scanActivity(s rowScanner) (core.Activity, error) {
	var (
		a                core.Activity
		performed        string
		hours            sql.NullFloat64
		created, updated int64
	)
	if err := s.Scan(&a.ID, &a.UserID, &a.CropID, &a.CropName, &a.Type, &performed, &hours,
		&a.Season, &a.Notes, &created, &updated); err != nil {
		return core.Activity{}, err
	}
	var err error
	if a.PerformedOn, err = core.ParseDate(performed); err != nil {
		return core.Activity{}, err
	}
	a.LaborHours = floatPtr(hours)
	a.CreatedAt = unixTime(created)
	a.UpdatedAt = unixTime(updated)
	return a, nil
}

// CreateActivity records an activity on a crop owned by userID.
func (r *SQLiteRepository) CreateActivity(ctx context.Context, userID int64, a core.Activity) (core.Activity, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO activities (user_id, crop_id, type, performed_on, labor_hours, season, notes)
		SELECT ?, c.id, ?, ?, ?, ?, ?
		FROM crops c
		WHERE c.id = ? AND c.user_id = ?
		RETURNING id, created_at, updated_at`,
		userID, a.Type, a.PerformedOn.String(), nullFloat(a.LaborHours), a.Season, a.Notes,
		a.CropID, userID)

	var created, updated int64
	if err := row.Scan(&a.ID, &created, &updated); err != nil {
		return core.Activity{}, scoped("create activity", err)
	}
	a.UserID = userID
	a.CreatedAt = unixTime(created)
	a.UpdatedAt = unixTime(updated)
	return a, nil
}

func (r *SQLiteRepository) GetActivity(ctx context.Context, userID, id int64) (core.Activity, error) {
	row := r.db.QueryRowContext(ctx, activitySelect+` WHERE a.id = ? AND a.user_id = ?`, id, userID)
	a, err := scanActivity(row)
	if err != nil {
		return core.Activity{}, scoped("get activity", err)
	}
	return a, nil
}

// ListActivities returns the user's activities, most recently performed first.
func (r *SQLiteRepository) ListActivities(ctx context.Context, userID int64) ([]core.Activity, error) {
	rows, err := r.db.QueryContext(ctx, activitySelect+`
		WHERE a.user_id = ?
		ORDER BY a.performed_on DESC, a.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	out := make([]core.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteActivity(ctx context.Context, userID, id int64) error {
	return r.deleteOwned(ctx, "activities", userID, id)
}
