// Package storagetest checks DocumentStore implementations against the shared contract.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

// Run exercises a fresh store from newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) storage.DocumentStore) {
	t.Run("InsertGetReplaceRemove", func(t *testing.T) {
		testCRUD(t, newStore(t))
	})
	t.Run("Pending", func(t *testing.T) {
		testPending(t, newStore(t))
	})
	t.Run("History", func(t *testing.T) {
		testHistory(t, newStore(t))
	})
}

func testCRUD(t *testing.T, s storage.DocumentStore) {
	ctx := context.Background()

	a, err := s.Insert(ctx, storage.Debts, []byte(`{"name":"a"}`))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	b, err := s.Insert(ctx, storage.Debts, []byte(`{"name":"b"}`))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if a.ID == 0 || b.ID <= a.ID {
		t.Fatalf("expected increasing ids, got %d and %d", a.ID, b.ID)
	}
	if a.SyncState != core.SyncLocal {
		t.Fatalf("expected local sync state, got %q", a.SyncState)
	}

	if _, err := s.Insert(ctx, storage.Goals, []byte(`{"name":"g"}`)); err != nil {
		t.Fatalf("insert goal: %v", err)
	}
	all, err := s.All(ctx, storage.Debts)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 debts, got %d (err=%v)", len(all), err)
	}

	r, err := s.Replace(ctx, storage.Debts, a.ID, []byte(`{"name":"a2"}`))
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if r.SyncState != core.SyncPending || string(r.Data) != `{"name":"a2"}` {
		t.Fatalf("unexpected replaced document: %+v", r)
	}

	if err := s.Remove(ctx, storage.Debts, b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Get(ctx, storage.Debts, b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if _, err := s.Replace(ctx, storage.Debts, 999, []byte(`{}`)); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on replace, got %v", err)
	}
	if err := s.Remove(ctx, storage.Debts, 999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on remove, got %v", err)
	}
}

func testPending(t *testing.T, s storage.DocumentStore) {
	ctx := context.Background()

	a, _ := s.Insert(ctx, storage.Savings, []byte(`{"name":"a"}`))
	b, _ := s.Insert(ctx, storage.Savings, []byte(`{"name":"b"}`))

	pending, err := s.Pending(ctx, storage.Savings, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d (err=%v)", len(pending), err)
	}

	if err := s.MarkSynced(ctx, storage.Savings, a.ID, a.UpdatedAt); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	got, _ := s.Get(ctx, storage.Savings, a.ID)
	if got.SyncState != core.SyncSynced || got.SyncedAt == nil {
		t.Fatalf("expected synced document, got %+v", got)
	}

	// A stale version must not hide a newer change.
	r, _ := s.Replace(ctx, storage.Savings, b.ID, []byte(`{"name":"b2"}`))
	if err := s.MarkSynced(ctx, storage.Savings, b.ID, b.UpdatedAt.Add(-time.Hour)); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	got, _ = s.Get(ctx, storage.Savings, b.ID)
	if got.SyncState != core.SyncPending {
		t.Fatalf("stale mark synced changed state to %q", got.SyncState)
	}

	if err := s.MarkSyncError(ctx, storage.Savings, r.ID, "boom"); err != nil {
		t.Fatalf("mark sync error: %v", err)
	}
	pending, _ = s.Pending(ctx, storage.Savings, 0)
	if len(pending) != 1 || pending[0].SyncState != core.SyncError || pending[0].SyncError != "boom" {
		t.Fatalf("expected one errored document pending, got %+v", pending)
	}
}

func testHistory(t *testing.T, s storage.DocumentStore) {
	ctx := context.Background()

	d, _ := s.Insert(ctx, storage.Persons, []byte(`{"name":"Ana"}`))
	_, _ = s.Replace(ctx, storage.Persons, d.ID, []byte(`{"name":"Ana Maria"}`))
	_ = s.Remove(ctx, storage.Persons, d.ID)
	_, _ = s.Insert(ctx, storage.Debts, []byte(`{"name":"x"}`))

	entries, err := s.History(ctx, storage.HistoryFilter{Collection: storage.Persons})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 person entries, got %d", len(entries))
	}
	if entries[0].Action != storage.ActionDelete || entries[2].Action != storage.ActionCreate {
		t.Fatalf("expected newest first, got %s .. %s", entries[0].Action, entries[2].Action)
	}
	if entries[0].NewValue != nil || string(entries[0].OldValue) != `{"name":"Ana Maria"}` {
		t.Fatalf("unexpected delete entry values: old=%s new=%s", entries[0].OldValue, entries[0].NewValue)
	}

	updates, _ := s.History(ctx, storage.HistoryFilter{Action: storage.ActionUpdate})
	if len(updates) != 1 || string(updates[0].OldValue) != `{"name":"Ana"}` {
		t.Fatalf("unexpected update entries: %+v", updates)
	}

	limited, _ := s.History(ctx, storage.HistoryFilter{Limit: 2})
	if len(limited) != 2 {
		t.Fatalf("expected limit 2, got %d", len(limited))
	}

	n, err := s.PruneHistory(ctx, time.Now().Add(time.Hour))
	if err != nil || n != 4 {
		t.Fatalf("expected 4 pruned entries, got %d (err=%v)", n, err)
	}
	left, _ := s.History(ctx, storage.HistoryFilter{})
	if len(left) != 0 {
		t.Fatalf("expected empty history, got %d", len(left))
	}
}
