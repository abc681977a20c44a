package memory

import (
	"context"
	"testing"

	"finanzas/internal/storage"
	"finanzas/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.DocumentStore {
		return New()
	})
}

func TestStoreReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	d, _ := s.Insert(ctx, storage.Debts, []byte(`{"a":1}`))
	d.Data[2] = 'b'

	got, _ := s.Get(ctx, storage.Debts, d.ID)
	if string(got.Data) != `{"a":1}` {
		t.Fatalf("stored document was mutated through a returned copy: %s", got.Data)
	}
}

func TestIDsArePerCollection(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, _ := s.Insert(ctx, storage.Debts, []byte(`{}`))
	b, _ := s.Insert(ctx, storage.Goals, []byte(`{}`))
	if a.ID != 1 || b.ID != 1 {
		t.Fatalf("expected independent sequences, got %d and %d", a.ID, b.ID)
	}
}
