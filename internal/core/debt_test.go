package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDebtAddPaymentOverflow(t *testing.T) {
	d := NewDebt("Prestamo", dec("1000"), Receivable, testNow)

	res, err := d.AddPayment(dec("300"), "first", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.RemainingBalance.Equal(dec("700")) || res.Completed || !res.Overflow.IsZero() {
		t.Fatalf("unexpected result after first payment: %+v", res)
	}

	res, err = d.AddPayment(dec("800"), "second", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Payment.Amount.Equal(dec("700")) {
		t.Fatalf("expected applied 700, got %s", res.Payment.Amount)
	}
	if !res.Overflow.Equal(dec("100")) {
		t.Fatalf("expected overflow 100, got %s", res.Overflow)
	}
	if !res.Completed || !d.Archived || d.ArchivedDate == nil {
		t.Fatalf("expected completed and archived debt")
	}
	if !d.Balance().IsZero() {
		t.Fatalf("expected zero balance, got %s", d.Balance())
	}
	if d.SyncState != SyncPending {
		t.Fatalf("expected pending sync state, got %q", d.SyncState)
	}
}

func TestDebtAddPaymentErrors(t *testing.T) {
	cases := []struct {
		name   string
		amount string
		paid   string
		want   error
	}{
		{"zero amount", "0", "", ErrInvalidAmount},
		{"negative amount", "-5", "", ErrInvalidAmount},
		{"already settled", "10", "100", ErrAlreadySettled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDebt("Loan", dec("100"), Payable, testNow)
			if tc.paid != "" {
				if _, err := d.AddPayment(dec(tc.paid), "", testNow); err != nil {
					t.Fatalf("setup payment: %v", err)
				}
			}
			before := len(d.Payments)
			_, err := d.AddPayment(dec(tc.amount), "", testNow)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(d.Payments) != before {
				t.Fatalf("payments mutated on error")
			}
		})
	}
}

func TestDebtBalanceNeverNegative(t *testing.T) {
	d := NewDebt("Card", dec("250.50"), Payable, testNow)
	for _, a := range []string{"100", "0.25", "300", "5"} {
		_, _ = d.AddPayment(dec(a), "", testNow)
		if d.Balance().IsNegative() {
			t.Fatalf("balance went negative: %s", d.Balance())
		}
	}
	if !d.TotalPaid().Equal(dec("250.50")) {
		t.Fatalf("expected total paid 250.50, got %s", d.TotalPaid())
	}
}

func TestDebtUpdatePaymentAmount(t *testing.T) {
	d := NewDebt("Car", dec("500"), Receivable, testNow)
	if _, err := d.AddPayment(dec("500"), "", testNow); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if !d.Archived {
		t.Fatalf("expected archived debt")
	}
	if _, err := d.UpdatePaymentAmount(0, dec("400"), testNow); err != nil {
		t.Fatalf("update amount: %v", err)
	}
	if d.Archived || !d.Balance().Equal(dec("100")) {
		t.Fatalf("expected unarchived debt with balance 100, got archived=%v balance=%s", d.Archived, d.Balance())
	}
	if _, err := d.UpdatePaymentAmount(0, dec("600"), testNow); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for overpayment, got %v", err)
	}
	if _, err := d.UpdatePaymentAmount(3, dec("1"), testNow); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestDebtUpdatePaymentNote(t *testing.T) {
	d := NewDebt("Car", dec("500"), Receivable, testNow)
	_, _ = d.AddPayment(dec("50"), "old", testNow)
	p, err := d.UpdatePaymentNote(0, "  new note ")
	if err != nil || p.Note != "new note" {
		t.Fatalf("unexpected note update: %+v, %v", p, err)
	}
	if _, err := d.UpdatePaymentNote(-1, "x"); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestDebtAssignCounterparty(t *testing.T) {
	d := NewDebt("Car", dec("500"), Receivable, testNow)
	p := NewPerson("Maria Lopez", KindPerson, testNow)
	p.ID = 7
	p.Phone = "9999-8888"
	p.Email = "maria@example.com"

	d.AssignCounterparty(p)
	if d.CounterpartyID == nil || *d.CounterpartyID != 7 {
		t.Fatalf("expected counterparty id 7")
	}
	if d.CounterpartyContact != "9999-8888 · maria@example.com" {
		t.Fatalf("unexpected contact %q", d.CounterpartyContact)
	}

	d.AssignCounterparty(nil)
	if d.CounterpartyID != nil || d.CounterpartyName != "" || d.CounterpartyContact != "" {
		t.Fatalf("expected cleared counterparty")
	}
}

func TestDebtDays(t *testing.T) {
	d := NewDebt("Car", dec("500"), Receivable, testNow.Add(-72*time.Hour))
	if got := d.DaysElapsed(testNow); got != 3 {
		t.Fatalf("expected 3 days elapsed, got %d", got)
	}
	if _, ok := d.DaysUntilDue(testNow); ok {
		t.Fatalf("expected no due date")
	}
	due := testNow.Add(36 * time.Hour)
	d.DueDate = &due
	if days, ok := d.DaysUntilDue(testNow); !ok || days != 2 {
		t.Fatalf("expected 2 days until due, got %d", days)
	}
}

func TestDebtValidate(t *testing.T) {
	good := NewDebt("ok", dec("1"), Payable, testNow)
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	before := testNow.Add(-time.Hour)
	bads := []*Debt{
		{Name: "", TotalOwed: dec("1"), Kind: Payable},
		{Name: "a", TotalOwed: dec("0"), Kind: Payable},
		{Name: "a", TotalOwed: dec("1"), Kind: "other"},
		{Name: "a", TotalOwed: dec("1"), Kind: Payable, CounterpartyName: "Al"},
		{Name: "a", TotalOwed: dec("1"), Kind: Payable, StartDate: testNow, DueDate: &before},
	}
	for i, d := range bads {
		err := d.Validate()
		if !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}
