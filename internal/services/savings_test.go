package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"finanzas/internal/core"
)

func TestSavingLoanLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createSaving(t, "Emergencias")

	if _, err := f.savings.Deposit(ctx, id, dec("500"), ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.savings.RepayLoan(ctx, id, dec("10"), ""); !errors.Is(err, core.ErrNoPendingLoan) {
		t.Fatalf("expected ErrNoPendingLoan, got %v", err)
	}
	if _, err := f.savings.Withdraw(ctx, id, dec("100"), "", true); !errors.Is(err, core.ErrMissingReason) {
		t.Fatalf("expected ErrMissingReason, got %v", err)
	}
	res, err := f.savings.Withdraw(ctx, id, dec("100"), "préstamo al carro", true)
	if err != nil {
		t.Fatalf("loan withdrawal: %v", err)
	}
	if !res.NewBalance.Equal(dec("400")) || res.Movement.Subkind != core.SubkindLoan {
		t.Fatalf("unexpected withdrawal: %+v", res)
	}

	if _, err := f.savings.RepayLoan(ctx, id, dec("150"), ""); !errors.Is(err, core.ErrLoanOverpayment) {
		t.Fatalf("expected ErrLoanOverpayment, got %v", err)
	}
	if _, err := f.savings.RepayLoan(ctx, id, dec("60"), "abono"); err != nil {
		t.Fatalf("repay: %v", err)
	}

	sv, _ := f.savings.Get(ctx, id)
	if !sv.PendingInternalLoan.Equal(dec("40")) || !sv.AccumulatedAmount.Equal(dec("460")) {
		t.Fatalf("pending loan %s balance %s", sv.PendingInternalLoan, sv.AccumulatedAmount)
	}
	if len(sv.Movements) != 3 {
		t.Errorf("expected 3 movements, got %d", len(sv.Movements))
	}
}

func TestSavingWithdrawGuardsThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := core.NewSaving("Intocable", testStart)
	s.Untouchable = true
	id, err := f.savings.Create(ctx, s)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.savings.Deposit(ctx, id, dec("100"), ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.savings.Withdraw(ctx, id, dec("10"), "antojo", false); !errors.Is(err, core.ErrProtected) {
		t.Fatalf("expected ErrProtected, got %v", err)
	}

	other := f.createSaving(t, "Libre")
	if _, err := f.savings.Withdraw(ctx, other, dec("10"), "antojo", false); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestEnsureDefaultFundConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]int64, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.savings.EnsureDefaultFund(ctx)
			if err != nil {
				t.Errorf("ensure: %v", err)
				return
			}
			ids[i] = s.ID
		}(i)
	}
	wg.Wait()

	all, _ := f.savings.List(ctx)
	if len(all) != 1 {
		t.Fatalf("expected one default fund, got %d", len(all))
	}
	for _, id := range ids {
		if id != all[0].ID {
			t.Fatalf("callers saw different funds: %v", ids)
		}
	}
}

func TestSavingNotesAndReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createSaving(t, "Navidad")
	if _, err := f.savings.Deposit(ctx, id, dec("250"), "aguinaldo"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.savings.Withdraw(ctx, id, dec("50"), "regalos", false); err != nil {
		t.Fatal(err)
	}

	m, err := f.savings.UpdateMovementNote(ctx, id, 0, "  aguinaldo diciembre ")
	if err != nil || m.Note != "aguinaldo diciembre" {
		t.Fatalf("update note: %+v err=%v", m, err)
	}
	if _, err := f.savings.UpdateMovementNote(ctx, id, 5, "x"); !errors.Is(err, core.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}

	r, err := f.savings.RecordAnnualReview(ctx, id, "cierre")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if !r.Accumulated.Equal(dec("200")) || !r.TotalDeposited.Equal(dec("250")) || !r.TotalWithdrawn.Equal(dec("50")) {
		t.Errorf("unexpected review: %+v", r)
	}
	sv, _ := f.savings.Get(ctx, id)
	if sv.LastAnnualReview == nil || sv.LastAnnualReview.Notes != "cierre" {
		t.Errorf("review not persisted: %+v", sv.LastAnnualReview)
	}
}

func TestSavingStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createSaving(t, "A")
	b := f.createSaving(t, "B")
	if _, err := f.savings.Deposit(ctx, a, dec("100"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.savings.Deposit(ctx, b, dec("300"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.savings.Withdraw(ctx, b, dec("120"), "préstamo", true); err != nil {
		t.Fatal(err)
	}

	st, err := f.savings.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Count != 2 || !st.TotalAccumulated.Equal(dec("280")) || !st.PendingLoans.Equal(dec("120")) {
		t.Errorf("unexpected stats: %+v", st)
	}
	if !st.TotalDeposited.Equal(dec("400")) || !st.TotalWithdrawn.Equal(dec("120")) {
		t.Errorf("unexpected totals: %+v", st)
	}
}

func TestSuggestAmount(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		pick func(n int) int
		want string
	}{
		{"lowest", func(int) int { return 0 }, "10"},
		{"highest", func(n int) int { return n - 1 }, "600"},
		{"middle", func(int) int { return 90 }, "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.savings.intn = tt.pick
			if got := f.savings.SuggestAmount(); !got.Equal(dec(tt.want)) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
