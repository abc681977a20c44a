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

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finanzas/internal/cache"
	"finanzas/internal/sheets"
)

const rowCacheSize = 5000

var header = []any{"collection", "local_id", "user_id", "updated_at", "data"}

// Options configures the Sheets mirror.
type Options struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	// RowCacheTTL bounds how long row positions are trusted before the key
	// column is re-read. Defaults to 10 minutes.
	RowCacheTTL time.Duration
}

type rowKey struct {
	collection string
	localID    int64
	userID     string
}

// Client mirrors records into a single tab, one row per
// (collection, local_id, user_id). Deleted rows are cleared, not removed,
// so row numbers of other records never shift.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	rows *cache.LRU[rowKey, int]

	mu                 sync.Mutex
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ sheets.Mirror = (*Client)(nil)

// New creates a mirror client using service account credentials.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(opts.SheetName) == "" {
		opts.SheetName = "Registros"
	}
	if opts.RowCacheTTL <= 0 {
		opts.RowCacheTTL = 10 * time.Minute
	}

	svc, err := newSheetsService(ctx, opts.ServiceAccountJSON, opts.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, opts), nil
}

func newClient(svc *gsheet.Service, opts Options) *Client {
	return &Client{
		svc:                svc,
		spreadsheetID:      opts.SpreadsheetID,
		sheetName:          opts.SheetName,
		rows:               cache.NewLRU[rowKey, int](rowCacheSize, opts.RowCacheTTL),
		cacheValidDuration: opts.RowCacheTTL,
	}
}

// RowCache exposes the row position cache so it can be swept by a janitor.
func (c *Client) RowCache() cache.Cleaner {
	return c.rows
}

func newSheetsService(ctx context.Context, inlineJSON, file string) (*gsheet.Service, error) {
	inlineJSON = strings.TrimSpace(inlineJSON)
	file = strings.TrimSpace(file)

	var credentialsJSON []byte
	var err error

	switch {
	case inlineJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(inlineJSON)
	case file != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", file)
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Upsert writes the record into its existing row or appends a new one.
func (c *Client) Upsert(ctx context.Context, rec sheets.Record) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if rec.Collection == "" || rec.LocalID <= 0 {
		return "", fmt.Errorf("invalid record key %s/%d", rec.Collection, rec.LocalID)
	}

	key := rowKey{rec.Collection, rec.LocalID, rec.UserID}
	row, err := c.locate(ctx, key)
	if err != nil {
		return "", err
	}
	if row == 0 {
		row = c.reserveRow()
	}

	rng := fmt.Sprintf("%s!A%d:E%d", c.sheetName, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(rec)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		c.invalidateRowCache()
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}
	c.rows.Set(key, row)
	return rng, nil
}

// Delete clears the row holding the record. Missing rows are not an error.
func (c *Client) Delete(ctx context.Context, collection string, localID int64, userID string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	key := rowKey{collection, localID, userID}
	row, err := c.locate(ctx, key)
	if err != nil {
		return err
	}
	if row == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A%d:E%d", c.sheetName, row, row)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", rng, err)
	}
	c.rows.Delete(key)
	return nil
}

// locate returns the 1-based row of key, or 0 when the record has no row yet.
func (c *Client) locate(ctx context.Context, key rowKey) (int, error) {
	if row, ok := c.rows.Get(key); ok {
		return row, nil
	}

	c.mu.Lock()
	fresh := time.Now().Before(c.cacheExpiresAt)
	c.mu.Unlock()
	if fresh && c.rows.Len() < rowCacheSize {
		// The index was loaded recently and the key was not in it.
		return 0, nil
	}

	rng := fmt.Sprintf("%s!A:C", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}

	values := resp.Values
	if len(values) == 0 {
		if err := c.writeHeader(ctx); err != nil {
			return 0, err
		}
		values = [][]any{header}
	}

	c.rows.Purge()
	for k, row := range indexRows(values) {
		c.rows.Set(k, row)
	}
	c.mu.Lock()
	c.cachedRowCount = len(values)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()

	return findRow(values, key), nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:E1", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{header}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// reserveRow hands out the next free row number.
func (c *Client) reserveRow() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedRowCount++
	return c.cachedRowCount
}

func (c *Client) invalidateRowCache() {
	c.mu.Lock()
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
	c.rows.Purge()
}

func rowValues(rec sheets.Record) []any {
	return []any{
		rec.Collection,
		strconv.FormatInt(rec.LocalID, 10),
		rec.UserID,
		rec.UpdatedAt.UTC().Format(time.RFC3339),
		string(rec.Data),
	}
}

// parseKey reads the key columns of a sheet row.
func parseKey(row []any) (rowKey, bool) {
	if len(row) < 2 {
		return rowKey{}, false
	}
	collection := strings.TrimSpace(fmt.Sprint(row[0]))
	id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[1])), 10, 64)
	if collection == "" || err != nil {
		return rowKey{}, false
	}
	var user string
	if len(row) > 2 {
		user = strings.TrimSpace(fmt.Sprint(row[2]))
	}
	return rowKey{collection, id, user}, true
}

func indexRows(values [][]any) map[rowKey]int {
	out := make(map[rowKey]int, len(values))
	for i, row := range values {
		if k, ok := parseKey(row); ok {
			out[k] = i + 1
		}
	}
	return out
}

// findRow returns the 1-based row holding key, or 0. The header row never
// matches because its id column is not numeric.
func findRow(values [][]any, key rowKey) int {
	for i, row := range values {
		if k, ok := parseKey(row); ok && k == key {
			return i + 1
		}
	}
	return 0
}
