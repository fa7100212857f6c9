package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"farmbook/internal/auth"
	"farmbook/internal/core"
	"farmbook/internal/export"
	flog "farmbook/internal/log"
	"farmbook/internal/middleware/ratelimit"
	"farmbook/internal/services"
	"farmbook/internal/storage"
)

func newTestServer(t *testing.T, requestsPerMinute int) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ledger := services.NewLedgerService(repo, nil)
	return NewServer(":0", Deps{
		Storage:  repo,
		Ledger:   ledger,
		Insights: services.NewInsightsService(repo),
		Seeder:   services.NewSeeder(ledger, repo),
		Auth:     auth.NewService(repo, time.Hour, time.Minute, 64),
		Limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: requestsPerMinute}, nil),
		Logger:   flog.New(flog.Config{Output: io.Discard}),
		Locale:   "en-KE",
	})
}

func do(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.10:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func signUp(t *testing.T, srv *Server, email string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/auth/sign-up", "",
		credentials{Email: email, Name: "Test Farmer", Password: "longenough"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[sessionResponse](t, rec).Token
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, 100)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := do(t, srv, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	}

	rec := do(t, srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total 2")
}

func TestReadyFailsWhenDatabaseClosed(t *testing.T) {
	srv := newTestServer(t, 100)
	require.NoError(t, srv.storage.Close())

	rec := do(t, srv, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_ready")
}

func TestUnauthorizedEnvelope(t *testing.T) {
	srv := newTestServer(t, 100)

	rec := do(t, srv, http.MethodGet, "/api/fields", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, CodeUnauthorized, body.Code)
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, body.RequestID, rec.Header().Get("X-Request-ID"))

	rec = do(t, srv, http.MethodGet, "/api/stats", "not-a-session", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t, 100)

	rec := do(t, srv, http.MethodPost, "/api/auth/sign-up", "",
		credentials{Email: "wanjiku@example.com", Name: "Wanjiku", Password: "longenough"})
	require.Equal(t, http.StatusCreated, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	rec = do(t, srv, http.MethodPost, "/api/auth/sign-up", "",
		credentials{Email: "WANJIKU@example.com", Name: "Again", Password: "longenough"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeConflict, decode[ErrorResponse](t, rec).Code)

	rec = do(t, srv, http.MethodPost, "/api/auth/sign-up", "",
		credentials{Email: "short@example.com", Name: "Short", Password: "short"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "password", decode[ErrorResponse](t, rec).Details["field"])

	rec = do(t, srv, http.MethodPost, "/api/auth/sign-in", "",
		credentials{Email: "wanjiku@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/auth/sign-in", "",
		credentials{Email: "wanjiku@example.com", Password: "longenough"})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[sessionResponse](t, rec).Token

	rec = do(t, srv, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "wanjiku@example.com", decode[core.Identity](t, rec).Email)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	cookieRec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(cookieRec, req)
	assert.Equal(t, http.StatusOK, cookieRec.Code)

	rec = do(t, srv, http.MethodPost, "/api/auth/sign-out", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLedgerStatusMapping(t *testing.T) {
	srv := newTestServer(t, 100)
	alice := signUp(t, srv, "alice@example.com")
	bob := signUp(t, srv, "bob@example.com")

	rec := do(t, srv, http.MethodPost, "/api/fields", alice, map[string]any{"name": "North Field", "areaHa": 5.2, "season": "2024 Long Rains"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	field := decode[core.Field](t, rec)
	assert.Positive(t, field.ID)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"missing name", http.MethodPost, "/api/fields", alice, map[string]any{"season": "2024"}, http.StatusUnprocessableEntity, CodeInvalidParam},
		{"malformed json", http.MethodPost, "/api/fields", alice, `{"name":`, http.StatusBadRequest, CodeInvalidParam},
		{"bad amount", http.MethodPost, "/api/expenses", alice, `{"totalCost":"lots"}`, http.StatusUnprocessableEntity, CodeInvalidParam},
		{"unknown category", http.MethodPost, "/api/expenses", alice, map[string]any{"category": "Snacks", "item": "x", "totalCost": 10, "purchasedOn": "2024-03-01", "season": "s"}, http.StatusUnprocessableEntity, CodeInvalidParam},
		{"foreign parent", http.MethodPost, "/api/crops", bob, map[string]any{"fieldId": field.ID, "name": "Beans", "season": "s"}, http.StatusNotFound, CodeNotFound},
		{"foreign record", http.MethodGet, fmt.Sprintf("/api/fields/%d", field.ID), bob, nil, http.StatusNotFound, CodeNotFound},
		{"foreign delete", http.MethodDelete, fmt.Sprintf("/api/fields/%d", field.ID), bob, nil, http.StatusNotFound, CodeNotFound},
		{"bad id", http.MethodGet, "/api/fields/abc", alice, nil, http.StatusUnprocessableEntity, CodeInvalidParam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.RequestID)
		})
	}

	rec = do(t, srv, http.MethodGet, "/api/fields", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/api/fields/%d", field.ID), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "North Field", decode[core.Field](t, rec).Name)

	rec = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/fields/%d", field.ID), alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/fields/%d", field.ID), alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, 100)

	rec := do(t, srv, http.MethodPut, "/api/fields", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	allow := rec.Header().Get("Allow")
	assert.Contains(t, allow, http.MethodGet)
	assert.Contains(t, allow, http.MethodPost)

	rec = do(t, srv, http.MethodGet, "/api/seed", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Header().Get("Allow"), http.MethodPost)
}

func TestSeedStatsAndReport(t *testing.T) {
	srv := newTestServer(t, 100)
	token := signUp(t, srv, "seed@example.com")

	rec := do(t, srv, http.MethodPost, "/api/seed", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, services.SeedResult{Fields: 3, Crops: 4, Harvests: 4, Expenses: 8, Sales: 4},
		decode[services.SeedResult](t, rec))

	rec = do(t, srv, http.MethodGet, "/api/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.Stats{
		FieldCount:    3,
		CropCount:     4,
		HarvestCount:  4,
		TotalExpenses: core.NewMoney(116000),
		TotalRevenue:  core.NewMoney(118500),
		Profit:        core.NewMoney(2500),
	}, decode[core.Stats](t, rec))

	rec = do(t, srv, http.MethodGet, "/api/report", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report struct {
		Currency           string               `json:"currency"`
		Formatted          formattedTotals      `json:"formatted"`
		ExpensesByCategory []core.CategoryTotal `json:"expensesByCategory"`
		RecentExpenses     []core.Expense       `json:"recentExpenses"`
		RecentSales        []core.Sale          `json:"recentSales"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "KES", report.Currency)
	assert.Equal(t, "KES 2,500", report.Formatted.Profit)
	assert.Equal(t, core.CategoryLabor, report.ExpensesByCategory[0].Category)
	assert.Len(t, report.RecentExpenses, core.RecentLimit)
	assert.Len(t, report.RecentSales, 4)

	rec = do(t, srv, http.MethodGet, "/api/report?locale=en-US", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "USD", report.Currency)

	rec = do(t, srv, http.MethodPost, "/api/seed?reset=true", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/stats", token, nil)
	assert.Equal(t, int64(3), decode[core.Stats](t, rec).FieldCount)
}

func TestReportXLSX(t *testing.T) {
	srv := newTestServer(t, 100)
	token := signUp(t, srv, "xlsx@example.com")
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/seed", token, nil).Code)

	rec := do(t, srv, http.MethodGet, "/api/report.xlsx", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "farm-report.xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), export.SheetSummary)

	rec = do(t, srv, http.MethodGet, "/api/report.xlsx", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimited(t *testing.T) {
	srv := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "", nil).Code)
	}
	rec := do(t, srv, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, CodeRateLimited, decode[ErrorResponse](t, rec).Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv := newTestServer(t, 100)
	rec := do(t, srv, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", core.Invalid("name", core.ErrEmptyValue), http.StatusUnprocessableEntity, CodeInvalidParam},
		{"wrapped validation", fmt.Errorf("create: %w", core.Invalid("season", core.ErrEmptyValue)), http.StatusUnprocessableEntity, CodeInvalidParam},
		{"malformed", &badRequestError{err: errors.New("eof")}, http.StatusBadRequest, CodeInvalidParam},
		{"unauthorized", core.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, CodeUnauthorized},
		{"not found", fmt.Errorf("get crop: %w", core.ErrNotFoundOrUnauthorized), http.StatusNotFound, CodeNotFound},
		{"conflict", auth.ErrEmailTaken, http.StatusConflict, CodeConflict},
		{"other", errors.New("disk full"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}

	_, body := errorStatus(errors.New("secret path /var/lib/farm.db"))
	assert.NotContains(t, body.Message, "/var/lib", "internal errors must not leak details")
}
