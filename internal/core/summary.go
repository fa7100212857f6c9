package core

// RecentLimit bounds the recency lists of a Report.
const RecentLimit = 5

// Stats is the dashboard summary for one user.
type Stats struct {
	FieldCount    int64 `json:"fieldCount"`
	CropCount     int64 `json:"cropCount"`
	HarvestCount  int64 `json:"harvestCount"`
	TotalExpenses Money `json:"totalExpenses"`
	TotalRevenue  Money `json:"totalRevenue"`
	Profit        Money `json:"profit"`
}

// CategoryTotal is the expense total and row count for one category.
type CategoryTotal struct {
	Category ExpenseCategory `json:"category"`
	Total    Money           `json:"total"`
	Count    int64           `json:"count"`
}

// Report is the financial breakdown for one user.
type Report struct {
	TotalExpenses      Money           `json:"totalExpenses"`
	TotalRevenue       Money           `json:"totalRevenue"`
	Profit             Money           `json:"profit"`
	ExpensesByCategory []CategoryTotal `json:"expensesByCategory"`
	RecentExpenses     []Expense       `json:"recentExpenses"`
	RecentSales        []Sale          `json:"recentSales"`
}

// NewStats derives Profit from the two totals.
func NewStats(fields, crops, harvests int64, expenses, revenue Money) Stats {
	return Stats{
		FieldCount:    fields,
		CropCount:     crops,
		HarvestCount:  harvests,
		TotalExpenses: expenses,
		TotalRevenue:  revenue,
		Profit:        revenue.Sub(expenses),
	}
}

// RecordKind names a ledger entity type in events and mirror rows.
type RecordKind string

const (
	KindField    RecordKind = "field"
	KindCrop     RecordKind = "crop"
	KindActivity RecordKind = "activity"
	KindExpense  RecordKind = "expense"
	KindHarvest  RecordKind = "harvest"
	KindSale     RecordKind = "sale"
)

// Mirrored reports whether rows of this kind are copied to the spreadsheet mirror.
func (k RecordKind) Mirrored() bool {
	return k == KindExpense || k == KindSale
}
