//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"farmbook/internal/core"
	ports "farmbook/internal/sheets"
)

// Integration tests require a real spreadsheet shared with a service account.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_MirrorRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	if os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON") == "" &&
		os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE") == "" &&
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := New(ctx, Options{
		SpreadsheetID:      spreadsheetID,
		ExpensesSheet:      "Integration Expenses",
		SalesSheet:         "Integration Sales",
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	id := time.Now().Unix()
	e := core.Expense{
		ID:          id,
		Category:    core.CategoryOther,
		Item:        "integration test row",
		TotalCost:   core.NewMoney(1.23),
		PurchasedOn: core.Date{Time: time.Now().UTC().Truncate(24 * time.Hour)},
	}

	if err := client.Upsert(ctx, ports.ExpenseRow(e)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	e.Item = "integration test row (updated)"
	if err := client.Upsert(ctx, ports.ExpenseRow(e)); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	title := yearPrefixedName("Integration Expenses", e.PurchasedOn.Year())
	n, err := client.findRow(ctx, title, id)
	if err != nil {
		t.Fatalf("findRow failed: %v", err)
	}
	if n == 0 {
		t.Fatalf("row %d not found in %s", id, title)
	}

	if err := client.Remove(ctx, core.KindExpense, id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	n, err = client.findRow(ctx, title, id)
	if err != nil {
		t.Fatalf("findRow after remove failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("row %d still present at %d", id, n)
	}
}
