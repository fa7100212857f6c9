package storage

import (
	"context"
	"fmt"

	"farmbook/internal/core"
)

const (
	MirrorPending = "pending"
	MirrorSynced  = "synced"
	MirrorError   = "error"
)

// MirrorItem is a ledger row waiting to be copied to the spreadsheet mirror.
type MirrorItem struct {
	Kind     core.RecordKind
	ID       int64
	UserID   int64
	Attempts int64
}

// MirrorStats counts mirrored rows by status across expenses and sales.
type MirrorStats struct {
	Pending int64
	Synced  int64
	Failed  int64
}

func mirrorTable(kind core.RecordKind) (string, error) {
	switch kind {
	case core.KindExpense:
		return "expenses", nil
	case core.KindSale:
		return "sales", nil
	default:
		return "", fmt.Errorf("kind %q is not mirrored", kind)
	}
}

// PendingMirror returns up to limit pending rows, oldest first.
func (r *SQLiteRepository) PendingMirror(ctx context.Context, limit int) ([]MirrorItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, id, user_id, mirror_attempts FROM (
			SELECT 'expense' AS kind, id, user_id, mirror_attempts, created_at
			FROM expenses WHERE mirror_status = 'pending'
			UNION ALL
			SELECT 'sale' AS kind, id, user_id, mirror_attempts, created_at
			FROM sales WHERE mirror_status = 'pending'
		)
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending mirror rows: %w", err)
	}
	defer rows.Close()

	var items []MirrorItem
	for rows.Next() {
		var it MirrorItem
		if err := rows.Scan(&it.Kind, &it.ID, &it.UserID, &it.Attempts); err != nil {
			return nil, fmt.Errorf("scan pending mirror row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *SQLiteRepository) MarkMirrored(ctx context.Context, kind core.RecordKind, id int64) error {
	table, err := mirrorTable(kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		"UPDATE "+table+" SET mirror_status = 'synced', updated_at = unixepoch() WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark %s %d mirrored: %w", kind, id, err)
	}
	return nil
}

// MarkMirrorFailure counts a failed attempt. Once maxAttempts is reached the
// row leaves the pending set with status "error".
func (r *SQLiteRepository) MarkMirrorFailure(ctx context.Context, kind core.RecordKind, id int64, maxAttempts int) error {
	table, err := mirrorTable(kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE `+table+`
		SET mirror_attempts = mirror_attempts + 1,
		    mirror_status = CASE WHEN mirror_attempts + 1 >= ? THEN 'error' ELSE mirror_status END,
		    updated_at = unixepoch()
		WHERE id = ?`, maxAttempts, id)
	if err != nil {
		return fmt.Errorf("mark %s %d mirror failure: %w", kind, id, err)
	}
	return nil
}

// RetryMirrorErrors puts every failed row back into the pending set.
func (r *SQLiteRepository) RetryMirrorErrors(ctx context.Context) (int64, error) {
	var total int64
	for _, table := range []string{"expenses", "sales"} {
		res, err := r.db.ExecContext(ctx,
			"UPDATE "+table+" SET mirror_status = 'pending', mirror_attempts = 0 WHERE mirror_status = 'error'")
		if err != nil {
			return total, fmt.Errorf("retry %s mirror errors: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (r *SQLiteRepository) MirrorStats(ctx context.Context) (MirrorStats, error) {
	var s MirrorStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(mirror_status = 'pending'), 0),
			COALESCE(SUM(mirror_status = 'synced'), 0),
			COALESCE(SUM(mirror_status = 'error'), 0)
		FROM (
			SELECT mirror_status FROM expenses
			UNION ALL
			SELECT mirror_status FROM sales
		)`).Scan(&s.Pending, &s.Synced, &s.Failed)
	if err != nil {
		return MirrorStats{}, fmt.Errorf("mirror stats: %w", err)
	}
	return s, nil
}
