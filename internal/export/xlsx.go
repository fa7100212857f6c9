// Package export renders reports as spreadsheet workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"farmbook/internal/core"
)

// Sheet names in the generated workbook.
const (
	SheetSummary    = "Summary"
	SheetCategories = "Categories"
	SheetExpenses   = "Recent Expenses"
	SheetSales      = "Recent Sales"
)

// ContentTypeXLSX is the media type of the workbook.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const moneyFormat = "#,##0.00"

type styles struct {
	header int
	money  int
}

// WriteReportXLSX writes report as a workbook to w. Amounts are stored as
// numbers in major units; the Summary sheet also carries them formatted for
// locale.
func WriteReportXLSX(w io.Writer, report core.Report, locale string) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetCategories, SheetExpenses, SheetSales} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("add sheet %s: %w", name, err)
		}
	}

	steps := []func(*excelize.File, styles, core.Report, string) error{
		writeSummary,
		writeCategories,
		writeExpenses,
		writeSales,
	}
	for _, step := range steps {
		if err := step(f, st, report, locale); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func newStyles(f *excelize.File) (styles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E2EFDA"}},
	})
	if err != nil {
		return styles{}, fmt.Errorf("header style: %w", err)
	}
	format := moneyFormat
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return styles{}, fmt.Errorf("money style: %w", err)
	}
	return styles{header: header, money: money}, nil
}

func writeSummary(f *excelize.File, st styles, r core.Report, locale string) error {
	currency := core.CurrencyForLocale(locale).String()
	rows := [][]any{
		{"Metric", "Amount (" + currency + ")", "Formatted"},
		{"Total expenses", r.TotalExpenses.Major(), core.FormatMoney(r.TotalExpenses, locale)},
		{"Total revenue", r.TotalRevenue.Major(), core.FormatMoney(r.TotalRevenue, locale)},
		{"Profit", r.Profit.Major(), core.FormatMoney(r.Profit, locale)},
	}
	if err := writeTable(f, SheetSummary, st, rows, "B"); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "C", 20)
}

func writeCategories(f *excelize.File, st styles, r core.Report, _ string) error {
	rows := [][]any{{"Category", "Entries", "Total"}}
	for _, c := range r.ExpensesByCategory {
		rows = append(rows, []any{string(c.Category), c.Count, c.Total.Major()})
	}
	if err := writeTable(f, SheetCategories, st, rows, "C"); err != nil {
		return err
	}
	return f.SetColWidth(SheetCategories, "A", "C", 16)
}

func writeExpenses(f *excelize.File, st styles, r core.Report, _ string) error {
	rows := [][]any{{"Date", "Item", "Category", "Field", "Crop", "Total", "Season"}}
	for _, e := range r.RecentExpenses {
		rows = append(rows, []any{e.PurchasedOn.String(), e.Item, string(e.Category), e.FieldName, e.CropName,
			e.TotalCost.Major(), e.Season})
	}
	if err := writeTable(f, SheetExpenses, st, rows, "F"); err != nil {
		return err
	}
	return f.SetColWidth(SheetExpenses, "A", "G", 16)
}

func writeSales(f *excelize.File, st styles, r core.Report, _ string) error {
	rows := [][]any{{"Date", "Crop", "Buyer", "Quantity", "Unit", "Price per unit", "Total", "Season"}}
	for _, s := range r.RecentSales {
		rows = append(rows, []any{s.SoldOn.String(), s.CropName, s.Buyer, s.Quantity, s.Unit,
			s.PricePerUnit.Major(), s.TotalAmount.Major(), s.Season})
	}
	if err := writeTable(f, SheetSales, st, rows, "F", "G"); err != nil {
		return err
	}
	return f.SetColWidth(SheetSales, "A", "H", 16)
}

// writeTable writes rows from A1, styles the first row as a header and
// applies the money format to the given columns below it.
func writeTable(f *excelize.File, sheet string, st styles, rows [][]any, moneyCols ...string) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}

	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, st.header); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}

	if len(rows) < 2 {
		return nil
	}
	for _, col := range moneyCols {
		top := fmt.Sprintf("%s2", col)
		bottom := fmt.Sprintf("%s%d", col, len(rows))
		if err := f.SetCellStyle(sheet, top, bottom, st.money); err != nil {
			return fmt.Errorf("style %s money: %w", sheet, err)
		}
	}
	return nil
}
