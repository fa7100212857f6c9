package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"farmbook/internal/core"
	ports "farmbook/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSheetCacheTTL = 5 * time.Minute

// Options configures the Sheets mirror.
type Options struct {
	SpreadsheetID string
	// Base sheet names without year; the row's year is prefixed.
	ExpensesSheet string
	SalesSheet    string

	ServiceAccountJSON string
	ServiceAccountFile string
}

// Client mirrors expense and sale rows into year-named sheets of one
// spreadsheet, e.g. "2024 Expenses" and "2024 Sales".
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	bases         map[core.RecordKind]string

	// Sheet title to sheet ID, refreshed after cacheValidDuration.
	mu                 sync.Mutex
	sheetIDs           map[string]int64
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ ports.Mirror = (*Client)(nil)

// New creates the client. Extra client options replace the service account
// credentials, which lets tests point the client at a local server.
func New(ctx context.Context, opts Options, clientOpts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	expenses := strings.TrimSpace(opts.ExpensesSheet)
	if expenses == "" {
		expenses = "Expenses"
	}
	sales := strings.TrimSpace(opts.SalesSheet)
	if sales == "" {
		sales = "Sales"
	}

	if len(clientOpts) == 0 {
		creds, err := credentialsOption(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("sheets service: %w", err)
		}
		clientOpts = []goption.ClientOption{creds, goption.WithScopes(gsheet.SpreadsheetsScope)}
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: create: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		bases: map[core.RecordKind]string{
			core.KindExpense: expenses,
			core.KindSale:    sales,
		},
		cacheValidDuration: defaultSheetCacheTTL,
	}, nil
}

// credentialsOption loads service account credentials from inline JSON or a
// file, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func credentialsOption(ctx context.Context, opts Options) (goption.ClientOption, error) {
	inline := strings.TrimSpace(opts.ServiceAccountJSON)
	file := strings.TrimSpace(opts.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return goption.WithCredentialsJSON([]byte(inline)), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", file, "size", len(data))
		return goption.WithCredentialsJSON(data), nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Upsert writes the row into its year sheet, overwriting the row that
// already carries the same ID in column A.
func (c *Client) Upsert(ctx context.Context, row ports.Row) error {
	header := ports.Header(row.Kind)
	if header == nil {
		return fmt.Errorf("kind %q is not mirrored", row.Kind)
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	title := yearPrefixedName(c.bases[row.Kind], row.Year)
	if _, err := c.ensureSheet(ctx, title, header); err != nil {
		return err
	}

	n, err := c.findRow(ctx, title, row.ID)
	if err != nil {
		return err
	}

	vr := &gsheet.ValueRange{Values: [][]any{row.Cells}}
	lastCol := columnLetter(len(row.Cells))

	if n > 0 {
		rng := fmt.Sprintf("%s!A%d:%s%d", title, n, lastCol, n)
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		slog.DebugContext(ctx, "Updated mirrored row", "sheet", title, "id", row.ID, "row", n)
		return nil
	}

	rng := fmt.Sprintf("%s!A:%s", title, lastCol)
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", title, err)
	}
	slog.DebugContext(ctx, "Appended mirrored row", "sheet", title, "id", row.ID)
	return nil
}

// Remove deletes the row with the given ID from every year sheet of kind.
// A row that is not found is not an error.
func (c *Client) Remove(ctx context.Context, kind core.RecordKind, id int64) error {
	base, ok := c.bases[kind]
	if !ok {
		return fmt.Errorf("kind %q is not mirrored", kind)
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	sheetIDs, err := c.lookupSheets(ctx)
	if err != nil {
		return err
	}

	for title, sheetID := range sheetIDs {
		if !isYearSheet(title, base) {
			continue
		}
		n, err := c.findRow(ctx, title, id)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}

		req := &gsheet.BatchUpdateSpreadsheetRequest{
			Requests: []*gsheet.Request{{
				DeleteDimension: &gsheet.DeleteDimensionRequest{
					Range: &gsheet.DimensionRange{
						SheetId:         sheetID,
						Dimension:       "ROWS",
						StartIndex:      int64(n - 1),
						EndIndex:        int64(n),
						ForceSendFields: []string{"SheetId", "StartIndex"},
					},
				},
			}},
		}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("delete row %d of %s: %w", n, title, err)
		}
		slog.InfoContext(ctx, "Removed mirrored row", "sheet", title, "id", id, "row", n)
		return nil
	}
	return nil
}

// InvalidateSheetCache forces the next lookup to reload sheet metadata.
func (c *Client) InvalidateSheetCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheExpiresAt = time.Time{}
}

func (c *Client) lookupSheets(ctx context.Context) (map[string]int64, error) {
	c.mu.Lock()
	if c.sheetIDs != nil && time.Now().Before(c.cacheExpiresAt) {
		out := make(map[string]int64, len(c.sheetIDs))
		for k, v := range c.sheetIDs {
			out[k] = v
		}
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet metadata: %w", err)
	}

	ids := make(map[string]int64, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		ids[sh.Properties.Title] = sh.Properties.SheetId
	}

	c.mu.Lock()
	c.sheetIDs = ids
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()

	out := make(map[string]int64, len(ids))
	for k, v := range ids {
		out[k] = v
	}
	return out, nil
}

// ensureSheet returns the sheet ID of title, creating the sheet with a header
// row when it does not exist yet.
func (c *Client) ensureSheet(ctx context.Context, title string, header []any) (int64, error) {
	ids, err := c.lookupSheets(ctx)
	if err != nil {
		return 0, err
	}
	if id, ok := ids[title]; ok {
		return id, nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("add sheet %s: %w", title, err)
	}
	var id int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		id = resp.Replies[0].AddSheet.Properties.SheetId
	}

	rng := fmt.Sprintf("%s!A1:%s1", title, columnLetter(len(header)))
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("write header of %s: %w", title, err)
	}

	c.mu.Lock()
	if c.sheetIDs == nil {
		c.sheetIDs = make(map[string]int64)
	}
	c.sheetIDs[title] = id
	c.mu.Unlock()

	slog.InfoContext(ctx, "Created mirror sheet", "sheet", title, "sheet_id", id)
	return id, nil
}

// findRow returns the 1-based row whose column A holds id, or 0.
func (c *Client) findRow(ctx context.Context, title string, id int64) (int, error) {
	rng := fmt.Sprintf("%s!A:A", title)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	want := strconv.FormatInt(id, 10)
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if cellString(row[0]) == want {
			return i + 1, nil
		}
	}
	return 0, nil
}

// cellString renders a cell as text; whole numbers lose their ".0".
func cellString(v any) string {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// isYearSheet reports whether title is "<4-digit year> <base>".
func isYearSheet(title, base string) bool {
	if len(title) != len(base)+5 || title[4] != ' ' || title[5:] != base {
		return false
	}
	_, err := strconv.Atoi(title[:4])
	return err == nil
}

// columnLetter maps 1 to "A", 7 to "G", 27 to "AA".
func columnLetter(n int) string {
	if n < 1 {
		return "A"
	}
	var out []byte
	for n > 0 {
		n--
		out = append([]byte{byte('A' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}
