package services

import (
	"context"
	"testing"
	"time"

	"finanzas/internal/storage"
)

func TestHistoryQueryAndPrune(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := f.createDebt(t, "Vieja", "100")
	f.clock.Advance(100 * 24 * time.Hour)
	f.createDebt(t, "Nueva", "100")
	if _, err := f.debts.AddPayment(ctx, old, dec("10"), ""); err != nil {
		t.Fatal(err)
	}

	entries, err := f.history.Query(ctx, storage.HistoryFilter{Collection: storage.Debts, EntityID: old})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != storage.ActionUpdate {
		t.Fatalf("expected update then create, got %+v", entries)
	}

	n, err := f.history.Prune(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", n)
	}
	rest, _ := f.history.Query(ctx, storage.HistoryFilter{})
	if len(rest) != 2 {
		t.Errorf("expected 2 remaining entries, got %d", len(rest))
	}

	if _, err := f.history.Query(ctx, storage.HistoryFilter{Collection: "bogus"}); err == nil {
		t.Error("expected error for unknown collection")
	}
}
