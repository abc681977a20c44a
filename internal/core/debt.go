package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// Receivable is money someone owes the user.
	Receivable DebtKind = "receivable"
	// Payable is money the user owes someone.
	Payable DebtKind = "payable"
)

type (
	DebtKind string

	Payment struct {
		Amount decimal.Decimal `json:"amount"`
		Date   time.Time       `json:"date"`
		Note   string          `json:"note"`
	}

	// Debt is an amount owed with partial payments. It archives itself
	// when a payment brings the balance to exactly zero.
	Debt struct {
		Record
		Name                string          `json:"name"`
		TotalOwed           decimal.Decimal `json:"totalOwed"`
		Payments            []Payment       `json:"payments"`
		Kind                DebtKind        `json:"kind"`
		CounterpartyID      *int64          `json:"counterpartyId,omitempty"`
		CounterpartyName    string          `json:"counterpartyName"`
		CounterpartyContact string          `json:"counterpartyContact"`
		StartDate           time.Time       `json:"startDate"`
		CreationDate        time.Time       `json:"creationDate"`
		DueDate             *time.Time      `json:"dueDate,omitempty"`
		Archived            bool            `json:"archived"`
		ArchivedDate        *time.Time      `json:"archivedDate,omitempty"`
	}

	// PaymentResult describes an applied payment. Overflow is the part of the
	// requested amount that exceeded the balance; it is not stored on the debt.
	PaymentResult struct {
		Payment          Payment
		RemainingBalance decimal.Decimal
		Completed        bool
		Overflow         decimal.Decimal
	}
)

func (k DebtKind) Valid() bool {
	return k == Receivable || k == Payable
}

// NewDebt returns an unpersisted debt starting now.
func NewDebt(name string, totalOwed decimal.Decimal, kind DebtKind, now time.Time) *Debt {
	return &Debt{
		Record:       Record{SyncState: SyncLocal},
		Name:         strings.TrimSpace(name),
		TotalOwed:    totalOwed,
		Kind:         kind,
		StartDate:    now,
		CreationDate: now,
	}
}

// TotalPaid sums every applied payment.
func (d *Debt) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range d.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// Balance is max(0, totalOwed - totalPaid).
func (d *Debt) Balance() decimal.Decimal {
	b := d.TotalOwed.Sub(d.TotalPaid())
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// Progress returns the paid percentage of the total owed.
func (d *Debt) Progress() decimal.Decimal {
	return percentOf(d.TotalPaid(), d.TotalOwed)
}

func (d *Debt) IsSettled() bool {
	return d.Balance().IsZero()
}

// AddPayment applies amount to the balance, clamping it to what is left.
func (d *Debt) AddPayment(amount decimal.Decimal, note string, now time.Time) (PaymentResult, error) {
	if err := ValidateAmount(amount); err != nil {
		return PaymentResult{}, err
	}
	balance := d.Balance()
	if !balance.IsPositive() {
		return PaymentResult{}, ErrAlreadySettled
	}

	applied, overflow := amount, decimal.Zero
	if amount.GreaterThan(balance) {
		applied = balance
		overflow = amount.Sub(balance)
	}

	p := Payment{Amount: applied, Date: now, Note: strings.TrimSpace(note)}
	d.Payments = append(d.Payments, p)
	d.markPending()

	remaining := d.Balance()
	if remaining.IsZero() {
		d.Archive(now)
	}
	return PaymentResult{
		Payment:          p,
		RemainingBalance: remaining,
		Completed:        remaining.IsZero(),
		Overflow:         overflow,
	}, nil
}

// UpdatePaymentNote replaces the note of the payment at index.
func (d *Debt) UpdatePaymentNote(index int, note string) (Payment, error) {
	if index < 0 || index >= len(d.Payments) {
		return Payment{}, ErrIndexOutOfRange
	}
	d.Payments[index].Note = strings.TrimSpace(note)
	d.markPending()
	return d.Payments[index], nil
}

// UpdatePaymentAmount corrects a recorded payment. The new total paid may not
// exceed the total owed; the archive flag follows the resulting balance.
func (d *Debt) UpdatePaymentAmount(index int, amount decimal.Decimal, now time.Time) (Payment, error) {
	if index < 0 || index >= len(d.Payments) {
		return Payment{}, ErrIndexOutOfRange
	}
	if err := ValidateAmount(amount); err != nil {
		return Payment{}, err
	}
	paid := d.TotalPaid().Sub(d.Payments[index].Amount).Add(amount)
	if paid.GreaterThan(d.TotalOwed) {
		return Payment{}, ErrInvalidAmount
	}
	d.Payments[index].Amount = amount
	d.markPending()

	switch settled := d.IsSettled(); {
	case settled && !d.Archived:
		d.Archive(now)
	case !settled && d.Archived:
		d.Unarchive()
	}
	return d.Payments[index], nil
}

func (d *Debt) Archive(now time.Time) {
	d.Archived = true
	d.ArchivedDate = timePtr(now)
	d.markPending()
}

func (d *Debt) Unarchive() {
	d.Archived = false
	d.ArchivedDate = nil
	d.markPending()
}

// AssignCounterparty snapshots the person's name and contact. A nil person clears it.
func (d *Debt) AssignCounterparty(p *Person) {
	if p == nil || p.ID == 0 {
		d.CounterpartyID = nil
		d.CounterpartyName = ""
		d.CounterpartyContact = ""
	} else {
		id := p.ID
		d.CounterpartyID = &id
		d.CounterpartyName = p.Name
		d.CounterpartyContact = p.Contact()
	}
	d.markPending()
}

// DaysElapsed counts whole days since the start date.
func (d *Debt) DaysElapsed(now time.Time) int {
	return daysSince(d.StartDate, now)
}

// DaysUntilDue reports the days left until the due date; ok is false when there is none.
func (d *Debt) DaysUntilDue(now time.Time) (days int, ok bool) {
	if d.DueDate == nil {
		return 0, false
	}
	return daysUntil(*d.DueDate, now), true
}

func (d *Debt) Validate() error {
	var p problems
	if strings.TrimSpace(d.Name) == "" {
		p.add("name is required")
	}
	if !d.TotalOwed.IsPositive() {
		p.add("total owed must be greater than 0")
	}
	if !d.Kind.Valid() {
		p.add("invalid debt kind")
	}
	if name := strings.TrimSpace(d.CounterpartyName); name != "" && len([]rune(name)) < 3 {
		p.add("counterparty name must have at least 3 characters")
	}
	if d.DueDate != nil && !d.StartDate.IsZero() && d.DueDate.Before(d.StartDate) {
		p.add("due date must not be before start date")
	}
	return p.err()
}
