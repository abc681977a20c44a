package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	Contribution struct {
		Amount decimal.Decimal `json:"amount"`
		Date   time.Time       `json:"date"`
		Note   string          `json:"note"`
	}

	// DebtApplication records the one-time transfer of a completed goal to its debt.
	DebtApplication struct {
		Amount   decimal.Decimal `json:"amount"`
		DebtID   int64           `json:"debtId"`
		DebtName string          `json:"debtName"`
		Date     time.Time       `json:"date"`
	}

	// Goal is a recurring savings target. Each completed cycle is kept as its
	// own record and a successor with CycleNumber+1 continues the series.
	Goal struct {
		Record
		Name                       string           `json:"name"`
		TargetAmount               decimal.Decimal  `json:"targetAmount"`
		Contributions              []Contribution   `json:"contributions"`
		LinkedDebtID               *int64           `json:"linkedDebtId,omitempty"`
		LinkedDebtName             string           `json:"linkedDebtName"`
		DebtApplication            *DebtApplication `json:"debtApplication,omitempty"`
		AnnualSavingID             *int64           `json:"annualSavingId,omitempty"`
		AnnualSavingName           string           `json:"annualSavingName"`
		CreationDate               time.Time        `json:"creationDate"`
		DueDate                    *time.Time       `json:"dueDate,omitempty"`
		Completed                  bool             `json:"completed"`
		CycleNumber                int              `json:"cycleNumber"`
		CompletedDate              *time.Time       `json:"completedDate,omitempty"`
		SuggestedDailyContribution *decimal.Decimal `json:"suggestedDailyContribution,omitempty"`
		ScheduledRestartDate       *time.Time       `json:"scheduledRestartDate,omitempty"`
	}

	// ContributionResult describes an appended contribution. While the goal is
	// active the amount is clamped to what is left; the excess is Overflow.
	ContributionResult struct {
		Contribution  Contribution
		Progress      decimal.Decimal
		Overflow      decimal.Decimal
		JustCompleted bool
	}
)

func NewGoal(name string, target decimal.Decimal, now time.Time) *Goal {
	return &Goal{
		Record:       Record{SyncState: SyncLocal},
		Name:         strings.TrimSpace(name),
		TargetAmount: target,
		CreationDate: now,
		CycleNumber:  1,
	}
}

func (g *Goal) TotalContributed() decimal.Decimal {
	total := decimal.Zero
	for _, c := range g.Contributions {
		total = total.Add(c.Amount)
	}
	return total
}

// Progress returns the contributed percentage of the target. It may exceed 100.
func (g *Goal) Progress() decimal.Decimal {
	return percentOf(g.TotalContributed(), g.TargetAmount)
}

// RemainingAmount is max(0, target - contributed).
func (g *Goal) RemainingAmount() decimal.Decimal {
	r := g.TargetAmount.Sub(g.TotalContributed())
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// AddContribution appends a contribution and completes the goal once the
// target is reached. Contributions to an already completed goal are kept in full.
func (g *Goal) AddContribution(amount decimal.Decimal, note string, now time.Time) (ContributionResult, error) {
	if err := ValidateAmount(amount); err != nil {
		return ContributionResult{}, err
	}

	applied, overflow := amount, decimal.Zero
	if !g.Completed {
		if remaining := g.RemainingAmount(); amount.GreaterThan(remaining) && remaining.IsPositive() {
			applied = remaining
			overflow = amount.Sub(remaining)
		}
	}

	c := Contribution{Amount: applied, Date: now, Note: strings.TrimSpace(note)}
	g.Contributions = append(g.Contributions, c)
	g.markPending()

	progress := g.Progress()
	justCompleted := false
	if progress.GreaterThanOrEqual(hundred) && !g.Completed {
		g.MarkCompleted(now)
		justCompleted = true
	}
	return ContributionResult{
		Contribution:  c,
		Progress:      progress,
		Overflow:      overflow,
		JustCompleted: justCompleted,
	}, nil
}

func (g *Goal) MarkCompleted(now time.Time) {
	g.Completed = true
	g.CompletedDate = timePtr(now)
	g.markPending()
}

// ScheduleRestart sets or clears (nil) the deferred restart date.
func (g *Goal) ScheduleRestart(at *time.Time) {
	g.ScheduledRestartDate = at
	g.markPending()
}

// RestartDue reports whether a scheduled restart has come due at now.
func (g *Goal) RestartDue(now time.Time) bool {
	return g.ScheduledRestartDate != nil && !g.ScheduledRestartDate.After(now)
}

// NextCycle builds the successor goal. It is not persisted. The annual
// saving link is not carried over; each cycle is linked explicitly.
func (g *Goal) NextCycle(now time.Time) *Goal {
	next := NewGoal(g.Name, g.TargetAmount, now)
	next.CycleNumber = g.CycleNumber + 1
	if g.SuggestedDailyContribution != nil {
		s := *g.SuggestedDailyContribution
		next.SuggestedDailyContribution = &s
	}
	if g.LinkedDebtID != nil {
		id := *g.LinkedDebtID
		next.LinkedDebtID = &id
		next.LinkedDebtName = g.LinkedDebtName
	}
	return next
}

// LinkDebt points the goal at a debt. Not allowed once the goal was applied.
func (g *Goal) LinkDebt(debtID int64, debtName string) error {
	if g.DebtApplication != nil {
		return ErrAlreadyApplied
	}
	g.LinkedDebtID = &debtID
	g.LinkedDebtName = debtName
	g.markPending()
	return nil
}

func (g *Goal) UnlinkDebt() error {
	if g.DebtApplication != nil {
		return ErrAlreadyApplied
	}
	g.LinkedDebtID = nil
	g.LinkedDebtName = ""
	g.markPending()
	return nil
}

// LinkAnnualSaving sets (or clears, with nil) the fund that receives the goal total on completion.
func (g *Goal) LinkAnnualSaving(s *Saving) {
	if s == nil {
		g.AnnualSavingID = nil
		g.AnnualSavingName = ""
	} else {
		id := s.ID
		g.AnnualSavingID = &id
		g.AnnualSavingName = s.Name
	}
	g.markPending()
}

func (g *Goal) RecordDebtApplication(amount decimal.Decimal, debtID int64, debtName string, now time.Time) {
	g.DebtApplication = &DebtApplication{
		Amount:   amount,
		DebtID:   debtID,
		DebtName: debtName,
		Date:     now,
	}
	g.markPending()
}

func (g *Goal) UpdateContributionNote(index int, note string) (Contribution, error) {
	if index < 0 || index >= len(g.Contributions) {
		return Contribution{}, ErrIndexOutOfRange
	}
	g.Contributions[index].Note = strings.TrimSpace(note)
	g.markPending()
	return g.Contributions[index], nil
}

func (g *Goal) DaysUntilDue(now time.Time) (days int, ok bool) {
	if g.DueDate == nil {
		return 0, false
	}
	return daysUntil(*g.DueDate, now), true
}

func (g *Goal) Validate() error {
	var p problems
	if strings.TrimSpace(g.Name) == "" {
		p.add("name is required")
	}
	if !g.TargetAmount.IsPositive() {
		p.add("target amount must be greater than 0")
	}
	if g.DueDate != nil && !g.CreationDate.IsZero() && g.DueDate.Before(g.CreationDate) {
		p.add("due date must not be before creation date")
	}
	if g.SuggestedDailyContribution != nil && g.SuggestedDailyContribution.IsNegative() {
		p.add("suggested daily contribution must not be negative")
	}
	if g.CycleNumber < 1 {
		p.add("cycle number must be at least 1")
	}
	return p.err()
}
