package google

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"finanzas/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{SheetName: "Registros"})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("expected missing spreadsheet id error, got %v", err)
	}
}

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	_, err := newSheetsService(context.Background(), "  ", "")
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewSheetsService_UnreadableFile(t *testing.T) {
	_, err := newSheetsService(context.Background(), "", "/nonexistent/credentials.json")
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test"}

	if _, err := c.Upsert(context.Background(), sheets.Record{Collection: "debts", LocalID: 1}); err == nil {
		t.Error("expected error from uninitialized client")
	}
	if err := c.Delete(context.Background(), "debts", 1, "ana"); err == nil {
		t.Error("expected error from uninitialized client")
	}
}

func TestRowValues(t *testing.T) {
	rec := sheets.Record{
		Collection: "goals",
		LocalID:    12,
		UserID:     "ana",
		UpdatedAt:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.FixedZone("CST", -6*3600)),
		Data:       json.RawMessage(`{"name":"Bici"}`),
	}

	got := rowValues(rec)
	want := []any{"goals", "12", "ana", "2025-03-10T15:00:00Z", `{"name":"Bici"}`}
	if len(got) != len(want) {
		t.Fatalf("got %d columns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{
		header,
		{"debts", "1", "ana"},
		{},
		{"goals", "1", "ana"},
		{"debts", "1", "luis"},
		{"debts", 7.0, "ana"},
		{"savings", "x", "ana"},
	}

	tests := []struct {
		name string
		key  rowKey
		want int
	}{
		{"first data row", rowKey{"debts", 1, "ana"}, 2},
		{"same id other collection", rowKey{"goals", 1, "ana"}, 4},
		{"same id other user", rowKey{"debts", 1, "luis"}, 5},
		{"numeric cell", rowKey{"debts", 7, "ana"}, 6},
		{"missing", rowKey{"debts", 2, "ana"}, 0},
		{"header never matches", rowKey{"collection", 0, "user_id"}, 0},
		{"non numeric id skipped", rowKey{"savings", 0, "ana"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findRow(values, tt.key); got != tt.want {
				t.Errorf("findRow(%v) = %d, want %d", tt.key, got, tt.want)
			}
		})
	}

	idx := indexRows(values)
	if len(idx) != 4 {
		t.Errorf("expected 4 indexed rows, got %d: %v", len(idx), idx)
	}
}

func TestParseKey_MissingUserColumn(t *testing.T) {
	k, ok := parseKey([]any{"lottery", "3"})
	if !ok || k != (rowKey{"lottery", 3, ""}) {
		t.Errorf("unexpected key %v ok=%v", k, ok)
	}
}

func TestReserveRow(t *testing.T) {
	c := newClient(nil, Options{SpreadsheetID: "x", SheetName: "Registros", RowCacheTTL: time.Minute})
	c.cachedRowCount = 3

	if got := c.reserveRow(); got != 4 {
		t.Errorf("first reserved row = %d, want 4", got)
	}
	if got := c.reserveRow(); got != 5 {
		t.Errorf("second reserved row = %d, want 5", got)
	}

	c.rows.Set(rowKey{"debts", 1, ""}, 2)
	c.cacheExpiresAt = time.Now().Add(time.Minute)
	c.invalidateRowCache()
	if c.rows.Len() != 0 || time.Now().Before(c.cacheExpiresAt) {
		t.Error("invalidate should drop cached rows and expire the index")
	}
}
