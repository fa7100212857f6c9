package http

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"farmbook/internal/core"
	"farmbook/internal/export"
	flog "farmbook/internal/log"
	"farmbook/internal/services"
)

// reportResponse is core.Report plus amounts formatted for a locale.
type reportResponse struct {
	core.Report
	Currency   string            `json:"currency"`
	Formatted  formattedTotals   `json:"formatted"`
	ByCategory []formattedAmount `json:"formattedByCategory"`
}

type formattedTotals struct {
	TotalExpenses string `json:"totalExpenses"`
	TotalRevenue  string `json:"totalRevenue"`
	Profit        string `json:"profit"`
}

type formattedAmount struct {
	Category core.ExpenseCategory `json:"category"`
	Total    string               `json:"total"`
}

func (s *Server) requestLocale(r *http.Request) string {
	if l := strings.TrimSpace(r.URL.Query().Get("locale")); l != "" {
		return l
	}
	return s.locale
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, id core.Identity) {
	stats, err := s.insights.ComputeStats(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, id core.Identity) {
	report, err := s.insights.ComputeReport(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	locale := s.requestLocale(r)
	writeJSON(w, http.StatusOK, reportResponse{
		Report:   report,
		Currency: core.CurrencyForLocale(locale).String(),
		Formatted: formattedTotals{
			TotalExpenses: core.FormatMoney(report.TotalExpenses, locale),
			TotalRevenue:  core.FormatMoney(report.TotalRevenue, locale),
			Profit:        core.FormatMoney(report.Profit, locale),
		},
		ByCategory: lo.Map(report.ExpensesByCategory, func(c core.CategoryTotal, _ int) formattedAmount {
			return formattedAmount{Category: c.Category, Total: core.FormatMoney(c.Total, locale)}
		}),
	})
}

// handleReportXLSX renders the workbook into memory first so a failure can
// still be reported as a JSON error.
func (s *Server) handleReportXLSX(w http.ResponseWriter, r *http.Request, id core.Identity) {
	report, err := s.insights.ComputeReport(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReportXLSX(&buf, report, s.requestLocale(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="farm-report.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request, id core.Identity) {
	opts := services.SeedOptions{Reset: queryBool(r, "reset")}
	res, err := s.seeder.Seed(r.Context(), id, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	flog.FromContext(r.Context()).InfoContext(r.Context(), "Demo farm seeded",
		flog.FieldOperation, flog.OpSeed,
		"reset", opts.Reset,
		"fields", res.Fields,
		"expenses", res.Expenses)
	writeJSON(w, http.StatusCreated, res)
}
