package google

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"finanzas/internal/sheets"
)

// Runs against a real spreadsheet when GOOGLE_SPREADSHEET_ID and service
// account credentials are present.
func TestIntegration_MirrorRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	credFile := os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")
	if credFile == "" {
		credFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	credJSON := os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")
	if credFile == "" && credJSON == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx := context.Background()
	client, err := New(ctx, Options{
		SpreadsheetID:      spreadsheetID,
		SheetName:          "Pruebas",
		ServiceAccountJSON: credJSON,
		ServiceAccountFile: credFile,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	rec := sheets.Record{
		Collection: "debts",
		LocalID:    time.Now().Unix(),
		UserID:     "integration",
		UpdatedAt:  time.Now(),
		Data:       json.RawMessage(`{"name":"prueba"}`),
	}

	ref, err := client.Upsert(ctx, rec)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rec.Data = json.RawMessage(`{"name":"prueba actualizada"}`)
	ref2, err := client.Upsert(ctx, rec)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if ref != ref2 {
		t.Errorf("upsert moved the record from %s to %s", ref, ref2)
	}

	if err := client.Delete(ctx, rec.Collection, rec.LocalID, rec.UserID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := client.Delete(ctx, rec.Collection, rec.LocalID, rec.UserID); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}
