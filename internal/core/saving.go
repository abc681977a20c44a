package core

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Deposit    MovementKind = "deposit"
	Withdrawal MovementKind = "withdrawal"

	SubkindNormal        MovementSubkind = "normal"
	SubkindLoan          MovementSubkind = "loan"
	SubkindLoanRepayment MovementSubkind = "loan-repayment"
)

type (
	MovementKind    string
	MovementSubkind string

	Movement struct {
		Amount  decimal.Decimal `json:"amount"`
		Date    time.Time       `json:"date"`
		Kind    MovementKind    `json:"kind"`
		Subkind MovementSubkind `json:"subkind,omitempty"`
		Note    string          `json:"note"`
	}

	// AnnualReview is a point-in-time snapshot of a fund.
	AnnualReview struct {
		Date           time.Time       `json:"date"`
		Accumulated    decimal.Decimal `json:"accumulated"`
		TotalDeposited decimal.Decimal `json:"totalDeposited"`
		TotalWithdrawn decimal.Decimal `json:"totalWithdrawn"`
		Notes          string          `json:"notes"`
	}

	// Saving is a fund with an append-only movement log. PendingInternalLoan
	// tracks money borrowed from the fund that is expected back.
	Saving struct {
		Record
		Name                string           `json:"name"`
		AccumulatedAmount   decimal.Decimal  `json:"accumulatedAmount"`
		OptionalTarget      *decimal.Decimal `json:"optionalTarget,omitempty"`
		Movements           []Movement       `json:"movements"`
		Untouchable         bool             `json:"untouchable"`
		IsAnnualGoal        bool             `json:"isAnnualGoal"`
		TargetYear          *int             `json:"targetYear,omitempty"`
		CreationDate        time.Time        `json:"creationDate"`
		LastAnnualReview    *AnnualReview    `json:"lastAnnualReview,omitempty"`
		PendingInternalLoan decimal.Decimal  `json:"pendingInternalLoan"`
	}

	MovementResult struct {
		Movement   Movement
		NewBalance decimal.Decimal
		// Progress is nil when the fund has no target.
		Progress *decimal.Decimal
	}
)

func NewSaving(name string, now time.Time) *Saving {
	return &Saving{
		Record:       Record{SyncState: SyncLocal},
		Name:         strings.TrimSpace(name),
		CreationDate: now,
	}
}

func (s *Saving) Deposit(amount decimal.Decimal, note string, subkind MovementSubkind, now time.Time) (MovementResult, error) {
	if err := ValidateAmount(amount); err != nil {
		return MovementResult{}, err
	}
	m := Movement{Amount: amount, Date: now, Kind: Deposit, Subkind: normalizeSubkind(subkind), Note: strings.TrimSpace(note)}
	s.Movements = append(s.Movements, m)
	s.AccumulatedAmount = s.AccumulatedAmount.Add(amount)
	if m.Subkind == SubkindLoanRepayment {
		s.PendingInternalLoan = s.PendingInternalLoan.Sub(decimal.Min(amount, s.PendingInternalLoan))
	}
	s.markPending()
	return MovementResult{Movement: m, NewBalance: s.AccumulatedAmount, Progress: s.Progress()}, nil
}

// Withdraw checks, in order: protection, amount, reason, funds.
func (s *Saving) Withdraw(amount decimal.Decimal, note string, subkind MovementSubkind, now time.Time) (MovementResult, error) {
	if s.Untouchable {
		return MovementResult{}, ErrProtected
	}
	if err := ValidateAmount(amount); err != nil {
		return MovementResult{}, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return MovementResult{}, ErrMissingReason
	}
	if amount.GreaterThan(s.AccumulatedAmount) {
		return MovementResult{}, ErrInsufficientFunds
	}
	m := Movement{Amount: amount, Date: now, Kind: Withdrawal, Subkind: normalizeSubkind(subkind), Note: note}
	s.Movements = append(s.Movements, m)
	s.AccumulatedAmount = s.AccumulatedAmount.Sub(amount)
	if m.Subkind == SubkindLoan {
		s.PendingInternalLoan = s.PendingInternalLoan.Add(amount)
	}
	s.markPending()
	return MovementResult{Movement: m, NewBalance: s.AccumulatedAmount, Progress: s.Progress()}, nil
}

func normalizeSubkind(k MovementSubkind) MovementSubkind {
	if k == "" {
		return SubkindNormal
	}
	return k
}

func (s *Saving) hasTarget() bool {
	return s.OptionalTarget != nil && s.OptionalTarget.IsPositive()
}

func (s *Saving) Progress() *decimal.Decimal {
	if !s.hasTarget() {
		return nil
	}
	p := percentOf(s.AccumulatedAmount, *s.OptionalTarget)
	return &p
}

// Remaining returns what is left to reach the target, or nil without one.
func (s *Saving) Remaining() *decimal.Decimal {
	if !s.hasTarget() {
		return nil
	}
	r := decimal.Max(decimal.Zero, s.OptionalTarget.Sub(s.AccumulatedAmount))
	return &r
}

func (s *Saving) TotalDeposited() decimal.Decimal {
	return s.sumMovements(Deposit)
}

func (s *Saving) TotalWithdrawn() decimal.Decimal {
	return s.sumMovements(Withdrawal)
}

func (s *Saving) sumMovements(kind MovementKind) decimal.Decimal {
	total := decimal.Zero
	for _, m := range s.Movements {
		if m.Kind == kind {
			total = total.Add(m.Amount)
		}
	}
	return total
}

// History returns movements newest first. limit <= 0 returns all of them.
func (s *Saving) History(limit int) []Movement {
	out := make([]Movement, len(s.Movements))
	copy(out, s.Movements)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Saving) UpdateMovementNote(index int, note string) (Movement, error) {
	if index < 0 || index >= len(s.Movements) {
		return Movement{}, ErrIndexOutOfRange
	}
	s.Movements[index].Note = strings.TrimSpace(note)
	s.markPending()
	return s.Movements[index], nil
}

// RecordAnnualReview snapshots the fund totals.
func (s *Saving) RecordAnnualReview(notes string, now time.Time) AnnualReview {
	r := AnnualReview{
		Date:           now,
		Accumulated:    s.AccumulatedAmount,
		TotalDeposited: s.TotalDeposited(),
		TotalWithdrawn: s.TotalWithdrawn(),
		Notes:          strings.TrimSpace(notes),
	}
	s.LastAnnualReview = &r
	s.markPending()
	return r
}

func (s *Saving) Validate() error {
	var p problems
	if strings.TrimSpace(s.Name) == "" {
		p.add("name is required")
	}
	if s.OptionalTarget != nil && !s.OptionalTarget.IsPositive() {
		p.add("target must be greater than 0 or unset")
	}
	if s.PendingInternalLoan.IsNegative() {
		p.add("pending loan must not be negative")
	}
	if s.AccumulatedAmount.IsNegative() {
		p.add("accumulated amount must not be negative")
	}
	return p.err()
}
