package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"farmbook/internal/core"
	"farmbook/internal/export"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var (
		email  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the dashboard summary for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.auth.IdentityForEmail(cmd.Context(), email)
			if err != nil {
				return err
			}
			stats, err := a.insights.ComputeStats(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, stats)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Fields\t%d\n", stats.FieldCount)
			fmt.Fprintf(tw, "Crops\t%d\n", stats.CropCount)
			fmt.Fprintf(tw, "Harvests\t%d\n", stats.HarvestCount)
			fmt.Fprintf(tw, "Expenses\t%s\n", core.FormatMoney(stats.TotalExpenses, a.cfg.Locale))
			fmt.Fprintf(tw, "Revenue\t%s\n", core.FormatMoney(stats.TotalRevenue, a.cfg.Locale))
			fmt.Fprintf(tw, "Profit\t%s\n", core.FormatMoney(stats.Profit, a.cfg.Locale))
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user to summarise (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		email    string
		asJSON   bool
		xlsxPath string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print or export the financial report for a user",
		Long: `Report prints totals, expenses by category and the most recent expenses
and sales. --xlsx writes the same report as a workbook instead.

Example:
  farmctl report --email wanjiku@example.com --xlsx farm-report.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.auth.IdentityForEmail(cmd.Context(), email)
			if err != nil {
				return err
			}
			report, err := a.insights.ComputeReport(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case xlsxPath != "":
				return writeXLSX(out, xlsxPath, report, a.cfg.Locale)
			case asJSON:
				return writeJSON(out, report)
			default:
				return writeReportText(out, report, a.cfg.Locale)
			}
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user to report on (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "write an XLSX workbook to this path")
	_ = cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("json", "xlsx")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeXLSX(out io.Writer, path string, report core.Report, locale string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteReportXLSX(f, report, locale); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	return nil
}

func writeReportText(w io.Writer, report core.Report, locale string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total expenses\t%s\n", core.FormatMoney(report.TotalExpenses, locale))
	fmt.Fprintf(tw, "Total revenue\t%s\n", core.FormatMoney(report.TotalRevenue, locale))
	fmt.Fprintf(tw, "Profit\t%s\n", core.FormatMoney(report.Profit, locale))

	fmt.Fprintln(tw, "\nExpenses by category")
	for _, c := range report.ExpensesByCategory {
		fmt.Fprintf(tw, "  %s\t%d\t%s\n", c.Category, c.Count, core.FormatMoney(c.Total, locale))
	}

	fmt.Fprintln(tw, "\nRecent expenses")
	for _, e := range report.RecentExpenses {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", e.PurchasedOn, e.Category, e.Item, core.FormatMoney(e.TotalCost, locale))
	}

	fmt.Fprintln(tw, "\nRecent sales")
	for _, s := range report.RecentSales {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", s.SoldOn, s.Buyer, core.FormatMoney(s.TotalAmount, locale))
	}
	return tw.Flush()
}
