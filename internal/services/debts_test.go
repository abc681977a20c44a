package services

import (
	"context"
	"errors"
	"testing"

	"finanzas/internal/core"
	"finanzas/internal/storage"
	"finanzas/internal/storage/memory"
)

func TestDebtPaymentOverflowGoesToDefaultFund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createDebt(t, "Préstamo moto", "1000")

	out, err := f.debts.AddPayment(ctx, id, dec("1200"), "pago final")
	if err != nil {
		t.Fatalf("add payment: %v", err)
	}
	if !out.Completed || !out.RemainingBalance.IsZero() {
		t.Fatalf("expected settled debt, got %+v", out.PaymentResult)
	}
	if !out.Payment.Amount.Equal(dec("1000")) || !out.Overflow.Equal(dec("200")) {
		t.Fatalf("unexpected split: applied %s overflow %s", out.Payment.Amount, out.Overflow)
	}
	if out.OverflowErr != nil || out.OverflowTransfer == nil {
		t.Fatalf("expected overflow transfer, err=%v", out.OverflowErr)
	}
	if out.OverflowTransfer.SavingName != "Ahorros" || !out.OverflowTransfer.NewBalance.Equal(dec("200")) {
		t.Fatalf("unexpected transfer: %+v", out.OverflowTransfer)
	}

	fund, err := f.savings.Get(ctx, out.OverflowTransfer.SavingID)
	if err != nil {
		t.Fatalf("get fund: %v", err)
	}
	if fund.OptionalTarget != nil {
		t.Errorf("default fund should have no target")
	}
	if got := fund.Movements[0].Note; got != `Excedente de pago de "Préstamo moto"` {
		t.Errorf("unexpected note %q", got)
	}

	d, err := f.debts.Get(ctx, id)
	if err != nil {
		t.Fatalf("get debt: %v", err)
	}
	if !d.Archived || d.ArchivedDate == nil {
		t.Errorf("expected archived debt")
	}
}

func TestDefaultFundIsReusedByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing := f.createSaving(t, "  ahorros ")

	for _, name := range []string{"A", "B"} {
		id := f.createDebt(t, name, "50")
		out, err := f.debts.AddPayment(ctx, id, dec("80"), "")
		if err != nil {
			t.Fatalf("add payment: %v", err)
		}
		if out.OverflowTransfer == nil || out.OverflowTransfer.SavingID != existing {
			t.Fatalf("expected overflow into existing fund %d, got %+v (err=%v)", existing, out.OverflowTransfer, out.OverflowErr)
		}
	}

	all, _ := f.savings.List(ctx)
	if len(all) != 1 {
		t.Fatalf("expected a single fund, got %d", len(all))
	}
	if !all[0].AccumulatedAmount.Equal(dec("60")) {
		t.Errorf("expected 60 accumulated, got %s", all[0].AccumulatedAmount)
	}
}

func TestDebtPaymentSurvivesOverflowFailure(t *testing.T) {
	clk := &testClock{t: testStart}
	store := &failingStore{Store: memory.NewWithClock(clk.Now), failInsert: storage.Savings}
	f := newFixtureWithStore(t, clk, store)
	ctx := context.Background()
	id := f.createDebt(t, "Celular", "300")

	out, err := f.debts.AddPayment(ctx, id, dec("350"), "")
	if err != nil {
		t.Fatalf("primary payment must succeed: %v", err)
	}
	if out.OverflowErr == nil || out.OverflowTransfer != nil {
		t.Fatalf("expected overflow error, got transfer=%+v err=%v", out.OverflowTransfer, out.OverflowErr)
	}

	d, err := f.debts.Get(ctx, id)
	if err != nil {
		t.Fatalf("get debt: %v", err)
	}
	if len(d.Payments) != 1 || !d.IsSettled() {
		t.Fatalf("payment not persisted: %+v", d.Payments)
	}
}

func TestDebtServiceErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createDebt(t, "Renta", "100")
	if _, err := f.debts.AddPayment(ctx, id, dec("100"), ""); err != nil {
		t.Fatalf("settle: %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"already settled", func() error {
			_, err := f.debts.AddPayment(ctx, id, dec("1"), "")
			return err
		}, core.ErrAlreadySettled},
		{"invalid amount", func() error {
			_, err := f.debts.AddPayment(ctx, id, dec("0"), "")
			return err
		}, core.ErrInvalidAmount},
		{"unknown debt", func() error {
			_, err := f.debts.AddPayment(ctx, 99, dec("1"), "")
			return err
		}, core.ErrNotFound},
		{"note index out of range", func() error {
			_, err := f.debts.UpdatePaymentNote(ctx, id, 3, "x")
			return err
		}, core.ErrIndexOutOfRange},
		{"invalid debt", func() error {
			_, err := f.debts.Create(ctx, core.NewDebt("", dec("0"), core.Payable, testStart))
			return err
		}, core.ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDebtUpdatePaymentAmountUnarchives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createDebt(t, "Laptop", "500")
	if _, err := f.debts.AddPayment(ctx, id, dec("500"), ""); err != nil {
		t.Fatalf("pay: %v", err)
	}

	if _, err := f.debts.UpdatePaymentAmount(ctx, id, 0, dec("400")); err != nil {
		t.Fatalf("update amount: %v", err)
	}
	d, _ := f.debts.Get(ctx, id)
	if d.Archived || !d.Balance().Equal(dec("100")) {
		t.Fatalf("expected active debt with 100 left, archived=%v balance=%s", d.Archived, d.Balance())
	}

	active, _ := f.debts.ListActive(ctx)
	archived, _ := f.debts.ListArchived(ctx)
	if len(active) != 1 || len(archived) != 0 {
		t.Errorf("unexpected lists: %d active, %d archived", len(active), len(archived))
	}
}

func TestDebtCounterpartyAndPersonDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := core.NewPerson("María López", core.KindPerson, testStart)
	p.Phone = "9999-0000"
	p.Email = "Maria@Example.com"
	pid, err := f.persons.Create(ctx, p)
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	id := f.createDebt(t, "Préstamo", "200")

	if err := f.debts.AssignCounterparty(ctx, id, &pid); err != nil {
		t.Fatalf("assign: %v", err)
	}
	d, _ := f.debts.Get(ctx, id)
	if d.CounterpartyName != "María López" || d.CounterpartyContact != "9999-0000 · maria@example.com" {
		t.Fatalf("unexpected snapshot: %q %q", d.CounterpartyName, d.CounterpartyContact)
	}
	byPerson, _ := f.debts.ListByPerson(ctx, pid)
	if len(byPerson) != 1 {
		t.Fatalf("expected 1 debt for person, got %d", len(byPerson))
	}

	if err := f.persons.Delete(ctx, pid); !errors.Is(err, core.ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}

	// Renaming the person refreshes the snapshot on the debt.
	p, _ = f.persons.Get(ctx, pid)
	p.Name = "María L."
	if err := f.persons.Update(ctx, p); err != nil {
		t.Fatalf("update person: %v", err)
	}
	d, _ = f.debts.Get(ctx, id)
	if d.CounterpartyName != "María L." {
		t.Errorf("snapshot not refreshed: %q", d.CounterpartyName)
	}

	if err := f.debts.AssignCounterparty(ctx, id, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := f.persons.Delete(ctx, pid); err != nil {
		t.Fatalf("delete after clearing reference: %v", err)
	}
	if _, err := f.persons.Get(ctx, pid); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected person gone from cache and store, got %v", err)
	}
}

func TestDebtStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createDebt(t, "A", "100")
	b := f.createDebt(t, "B", "200")
	if _, err := f.debts.AddPayment(ctx, a, dec("100"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.debts.AddPayment(ctx, b, dec("50"), ""); err != nil {
		t.Fatal(err)
	}

	st, err := f.debts.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 2 || st.Active != 1 || st.Archived != 1 {
		t.Errorf("unexpected counts: %+v", st)
	}
	if !st.TotalOwed.Equal(dec("300")) || !st.TotalPaid.Equal(dec("150")) || !st.Outstanding.Equal(dec("150")) {
		t.Errorf("unexpected amounts: %+v", st)
	}
	if !st.PayableBalance.Equal(dec("150")) || !st.AverageProgress.Equal(dec("25")) {
		t.Errorf("unexpected split or progress: payable=%s progress=%s", st.PayableBalance, st.AverageProgress)
	}
}
