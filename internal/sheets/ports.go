package sheets

import (
	"context"
	"strconv"

	"farmbook/internal/core"
)

// Mirror keeps a spreadsheet copy of expense and sale rows. Rows are keyed by
// kind and ID; Upsert replaces an existing row with the same key.
type Mirror interface {
	Upsert(ctx context.Context, row Row) error
	Remove(ctx context.Context, kind core.RecordKind, id int64) error
}

// Row is one mirrored ledger record. Cells start with the ID and follow the
// column order of Header(Kind).
type Row struct {
	Kind  core.RecordKind
	ID    int64
	Year  int
	Cells []any
}

var (
	expenseHeader = []any{"ID", "Date", "Category", "Item", "Total", "Field", "Crop"}
	saleHeader    = []any{"ID", "Date", "Buyer", "Quantity", "Unit", "Total", "Crop"}
)

// Header returns the column titles for kind, or nil for kinds that are not
// mirrored.
func Header(kind core.RecordKind) []any {
	switch kind {
	case core.KindExpense:
		return expenseHeader
	case core.KindSale:
		return saleHeader
	default:
		return nil
	}
}

// ExpenseRow lays out an expense as a mirror row.
func ExpenseRow(e core.Expense) Row {
	return Row{
		Kind: core.KindExpense,
		ID:   e.ID,
		Year: e.PurchasedOn.Year(),
		Cells: []any{
			strconv.FormatInt(e.ID, 10),
			e.PurchasedOn.String(),
			string(e.Category),
			e.Item,
			e.TotalCost.Major(),
			e.FieldName,
			e.CropName,
		},
	}
}

// SaleRow lays out a sale as a mirror row.
func SaleRow(s core.Sale) Row {
	return Row{
		Kind: core.KindSale,
		ID:   s.ID,
		Year: s.SoldOn.Year(),
		Cells: []any{
			strconv.FormatInt(s.ID, 10),
			s.SoldOn.String(),
			s.Buyer,
			s.Quantity,
			s.Unit,
			s.TotalAmount.Major(),
			s.CropName,
		},
	}
}
