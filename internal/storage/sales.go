package storage

import (
	"context"
	"fmt"
	"log/slog"

	"farmbook/internal/core"
)

const saleSelect = `
	SELECT s.id, s.user_id, s.harvest_id, c.name, s.sold_on, s.buyer, s.quantity, s.unit,
	       s.price_per_unit_cents, s.total_amount_cents, s.season, s.notes, s.created_at, s.updated_at
	FROM sales s
	JOIN harvests h ON h.id = s.harvest_id
	JOIN crops c ON c.id = h.crop_id`

func scanSale(s rowScanner) (core.Sale, error) {
	var (
		sale             core.Sale
		sold             string
		created, updated int64
	)
	if err := s.Scan(&sale.ID, &sale.UserID, &sale.HarvestID, &sale.CropName, &sold, &sale.Buyer,
		&sale.Quantity, &sale.Unit, &sale.PricePerUnit.Cents, &sale.TotalAmount.Cents,
		&sale.Season, &sale.Notes, &created, &updated); err != nil {
		return core.Sale{}, err
	}
	var err error
	if sale.SoldOn, err = core.ParseDate(sold); err != nil {
		return core.Sale{}, err
	}
	sale.CreatedAt = unixTime(created)
	sale.UpdatedAt = unixTime(updated)
	return sale, nil
}

// CreateSale records a sale against a harvest owned by userID. TotalAmount is
// stored as given.
func (r *SQLiteRepository) CreateSale(ctx context.Context, userID int64, s core.Sale) (core.Sale, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sales (user_id, harvest_id, sold_on, buyer, quantity, unit,
		                   price_per_unit_cents, total_amount_cents, season, notes)
		SELECT ?, h.id, ?, ?, ?, ?, ?, ?, ?, ?
		FROM harvests h
		WHERE h.id = ? AND h.user_id = ?
		RETURNING id, created_at, updated_at`,
		userID, s.SoldOn.String(), s.Buyer, s.Quantity, s.Unit,
		s.PricePerUnit.Cents, s.TotalAmount.Cents, s.Season, s.Notes,
		s.HarvestID, userID)

	var created, updated int64
	if err := row.Scan(&s.ID, &created, &updated); err != nil {
		return core.Sale{}, scoped("create sale", err)
	}
	s.UserID = userID
	s.CreatedAt = unixTime(created)
	s.UpdatedAt = unixTime(updated)

	slog.InfoContext(ctx, "Sale saved to SQLite",
		"id", s.ID, "harvest_id", s.HarvestID, "amount_cents", s.TotalAmount.Cents)
	return s, nil
}

func (r *SQLiteRepository) GetSale(ctx context.Context, userID, id int64) (core.Sale, error) {
	row := r.db.QueryRowContext(ctx, saleSelect+` WHERE s.id = ? AND s.user_id = ?`, id, userID)
	s, err := scanSale(row)
	if err != nil {
		return core.Sale{}, scoped("get sale", err)
	}
	return s, nil
}

// ListSales returns the user's sales, latest first.
func (r *SQLiteRepository) ListSales(ctx context.Context, userID int64) ([]core.Sale, error) {
	return listSales(ctx, r.db, saleSelect+`
		WHERE s.user_id = ?
		ORDER BY s.sold_on DESC, s.id DESC`, userID)
}

func (r *SQLiteRepository) DeleteSale(ctx context.Context, userID, id int64) error {
	return r.deleteOwned(ctx, "sales", userID, id)
}

func listSales(ctx context.Context, q querier, query string, args ...any) ([]core.Sale, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	out := make([]core.Sale, 0)
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
