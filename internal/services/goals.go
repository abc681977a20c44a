package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

type (
	// ContributionOutcome is the combined result of a goal contribution. The
	// contribution is committed even when one of the *Err fields is set.
	ContributionOutcome struct {
		GoalID int64
		core.ContributionResult

		// RestartScheduled is set when the next cycle waits for the due date.
		RestartScheduled *time.Time
		// Successor is the next cycle when it was spawned right away.
		Successor  *core.Goal
		RestartErr error

		AnnualTransfer    *Transfer
		AnnualTransferErr error

		// Overflow fills the successor up to its target; anything beyond that,
		// or all of it without a successor, goes to the default fund.
		OverflowCarry    *ContributionOutcome
		OverflowTransfer *Transfer
		OverflowErr      error
	}

	DebtApplicationOutcome struct {
		GoalID           int64
		DebtID           int64
		DebtName         string
		Applied          decimal.Decimal
		RemainingBalance decimal.Decimal
		DebtSettled      bool
	}

	GoalStats struct {
		Active          int
		Completed       int
		TotalTarget     decimal.Decimal
		TotalSaved      decimal.Decimal
		Remaining       decimal.Decimal
		AverageProgress decimal.Decimal
		HighestCycle    int
	}
)

type GoalService struct {
	goals    *storage.Repository[core.Goal, *core.Goal]
	debts    *DebtService
	savings  *SavingService
	restarts *RestartReconciler
	sync     notifier
	now      Clock
}

func NewGoalService(store storage.DocumentStore, debts *DebtService, savings *SavingService, restarts *RestartReconciler, opts Options) *GoalService {
	opts = opts.withDefaults()
	if restarts == nil {
		restarts = NewRestartReconciler(store, opts)
	}
	return &GoalService{
		goals:    storage.NewRepository[core.Goal](store, storage.Goals),
		debts:    debts,
		savings:  savings,
		restarts: restarts,
		sync:     notifier{opts.Publisher},
		now:      opts.Clock,
	}
}

func (s *GoalService) Create(ctx context.Context, g *core.Goal) (int64, error) {
	if g.CreationDate.IsZero() {
		g.CreationDate = s.now()
	}
	if g.CycleNumber == 0 {
		g.CycleNumber = 1
	}
	g.SyncState = core.SyncLocal
	id, err := s.goals.Create(ctx, g)
	if err != nil {
		return 0, fmt.Errorf("create goal: %w", err)
	}
	slog.InfoContext(ctx, "Goal created",
		"goal_id", id,
		"amount", g.TargetAmount.StringFixed(2))
	s.sync.changed(ctx, storage.Goals, id)
	return id, nil
}

func (s *GoalService) Update(ctx context.Context, g *core.Goal) error {
	if err := s.goals.Update(ctx, g); err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	s.sync.changed(ctx, storage.Goals, g.ID)
	return nil
}

func (s *GoalService) Delete(ctx context.Context, id int64) error {
	if err := s.goals.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	slog.InfoContext(ctx, "Goal deleted", "goal_id", id)
	s.sync.removed(ctx, storage.Goals, id)
	return nil
}

func (s *GoalService) Get(ctx context.Context, id int64) (*core.Goal, error) {
	return s.goals.Get(ctx, id)
}

// List resolves due restarts and returns every goal. A failed
// reconciliation is logged and the stored goals are still returned.
func (s *GoalService) List(ctx context.Context) ([]*core.Goal, error) {
	if _, err := s.restarts.Run(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to resolve scheduled restarts", "error", err)
	}
	return s.goals.All(ctx)
}

func (s *GoalService) ListActive(ctx context.Context) ([]*core.Goal, error) {
	return s.filter(ctx, func(g *core.Goal) bool { return !g.Completed })
}

func (s *GoalService) ListCompleted(ctx context.Context) ([]*core.Goal, error) {
	return s.filter(ctx, func(g *core.Goal) bool { return g.Completed })
}

func (s *GoalService) filter(ctx context.Context, keep func(*core.Goal) bool) ([]*core.Goal, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*core.Goal, 0, len(all))
	for _, g := range all {
		if keep(g) {
			out = append(out, g)
		}
	}
	return out, nil
}

// ResolveScheduledRestarts spawns the successors of goals whose restart is due.
func (s *GoalService) ResolveScheduledRestarts(ctx context.Context) ([]Restart, error) {
	return s.restarts.Run(ctx)
}

// AddContribution records a contribution. When it completes the goal, the
// total is transferred to the linked annual saving and the next cycle is
// either scheduled for the future due date or spawned right away. Overflow
// beyond the target continues into the successor or the default fund.
func (s *GoalService) AddContribution(ctx context.Context, id int64, amount decimal.Decimal, note string) (ContributionOutcome, error) {
	g, err := s.goals.Get(ctx, id)
	if err != nil {
		return ContributionOutcome{}, err
	}
	now := s.now()
	res, err := g.AddContribution(amount, note, now)
	if err != nil {
		return ContributionOutcome{}, err
	}

	out := ContributionOutcome{GoalID: id, ContributionResult: res}
	immediate := false
	if res.JustCompleted {
		if g.DueDate != nil && g.DueDate.After(now) {
			at := *g.DueDate
			g.ScheduleRestart(&at)
			out.RestartScheduled = &at
		} else {
			g.ScheduleRestart(&now)
			immediate = true
		}
	}

	if err := s.goals.Update(ctx, g); err != nil {
		return ContributionOutcome{}, fmt.Errorf("save contribution: %w", err)
	}
	slog.InfoContext(ctx, "Goal contribution recorded",
		"goal_id", id,
		"amount", res.Contribution.Amount.StringFixed(2),
		"overflow", res.Overflow.StringFixed(2),
		"cycle", g.CycleNumber,
		"completed", res.JustCompleted)
	s.sync.changed(ctx, storage.Goals, id)

	if res.JustCompleted && g.AnnualSavingID != nil {
		out.AnnualTransfer, out.AnnualTransferErr = s.transferToAnnualSaving(ctx, g)
	}

	if immediate {
		rs, err := s.restarts.Resolve(ctx, id)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "Failed to start next goal cycle", "goal_id", id, "error", err)
			out.RestartErr = err
		case rs != nil:
			out.Successor = rs.Successor
		}
	}

	if res.Overflow.IsPositive() {
		s.routeOverflow(ctx, g, res.Overflow, &out)
	}
	return out, nil
}

func (s *GoalService) transferToAnnualSaving(ctx context.Context, g *core.Goal) (*Transfer, error) {
	if s.savings == nil {
		return nil, fmt.Errorf("no savings service for annual transfer")
	}
	note := fmt.Sprintf("Transferencia automática de \"%s\" (ciclo %d)", g.Name, g.CycleNumber)
	t, err := s.savings.TransferIn(ctx, *g.AnnualSavingID, g.TotalContributed(), note)
	if err != nil {
		slog.WarnContext(ctx, "Skipped annual saving transfer",
			"goal_id", g.ID, "saving_id", *g.AnnualSavingID, "error", err)
		return nil, fmt.Errorf("transfer goal %d to saving %d: %w", g.ID, *g.AnnualSavingID, err)
	}
	slog.InfoContext(ctx, "Goal total transferred to annual saving",
		"goal_id", g.ID,
		"saving_id", t.SavingID,
		"amount", t.Amount.StringFixed(2))
	return &t, nil
}

// routeOverflow carries at most what the successor still needs into it; the
// rest, or all of it when there is no successor, goes to the default fund.
func (s *GoalService) routeOverflow(ctx context.Context, g *core.Goal, overflow decimal.Decimal, out *ContributionOutcome) {
	rest := overflow
	if out.Successor != nil {
		carry := decimal.Min(overflow, out.Successor.RemainingAmount())
		if carry.IsPositive() {
			note := fmt.Sprintf("Excedente del ciclo %d", g.CycleNumber)
			res, err := s.AddContribution(ctx, out.Successor.ID, carry, note)
			if err != nil {
				slog.WarnContext(ctx, "Failed to carry overflow into next cycle",
					"goal_id", g.ID, "overflow", overflow.StringFixed(2), "error", err)
				out.OverflowErr = fmt.Errorf("carry overflow of goal %d: %w", g.ID, err)
				return
			}
			out.OverflowCarry = &res
			rest = overflow.Sub(carry)
		}
	}
	if !rest.IsPositive() {
		return
	}

	if s.savings == nil {
		out.OverflowErr = fmt.Errorf("no savings service to receive overflow")
		return
	}
	note := fmt.Sprintf("Excedente de la meta \"%s\" (ciclo %d)", g.Name, g.CycleNumber)
	t, err := s.savings.DepositToDefaultFund(ctx, rest, note)
	if err != nil {
		slog.WarnContext(ctx, "Failed to route goal overflow",
			"goal_id", g.ID, "overflow", rest.StringFixed(2), "error", err)
		out.OverflowErr = fmt.Errorf("route overflow of goal %d: %w", g.ID, err)
		return
	}
	out.OverflowTransfer = &t
}

// ApplyToDebt pays the linked debt with the total of a completed goal. It can
// happen once per cycle.
func (s *GoalService) ApplyToDebt(ctx context.Context, id int64) (DebtApplicationOutcome, error) {
	g, err := s.goals.Get(ctx, id)
	if err != nil {
		return DebtApplicationOutcome{}, err
	}
	switch {
	case g.LinkedDebtID == nil:
		return DebtApplicationOutcome{}, core.ErrNotLinked
	case g.DebtApplication != nil:
		return DebtApplicationOutcome{}, core.ErrAlreadyApplied
	case !g.Completed:
		return DebtApplicationOutcome{}, core.ErrNotCompleted
	}

	debt, err := s.debts.Get(ctx, *g.LinkedDebtID)
	if errors.Is(err, core.ErrNotFound) {
		return DebtApplicationOutcome{}, core.ErrDebtNotFound
	}
	if err != nil {
		return DebtApplicationOutcome{}, err
	}
	if debt.IsSettled() {
		return DebtApplicationOutcome{}, core.ErrDebtAlreadySettled
	}

	amount := decimal.Min(g.TotalContributed(), debt.Balance())
	note := fmt.Sprintf("Aplicación de la meta \"%s\" (ciclo %d)", g.Name, g.CycleNumber)
	paid, err := s.debts.AddPayment(ctx, debt.ID, amount, note)
	if err != nil {
		return DebtApplicationOutcome{}, fmt.Errorf("pay linked debt: %w", err)
	}

	g.LinkedDebtName = debt.Name
	g.RecordDebtApplication(paid.Payment.Amount, debt.ID, debt.Name, s.now())
	if err := s.goals.Update(ctx, g); err != nil {
		slog.ErrorContext(ctx, "Debt paid but goal application not saved",
			"goal_id", id, "debt_id", debt.ID, "error", err)
		return DebtApplicationOutcome{}, fmt.Errorf("record debt application: %w", err)
	}
	slog.InfoContext(ctx, "Goal applied to debt",
		"goal_id", id,
		"debt_id", debt.ID,
		"amount", paid.Payment.Amount.StringFixed(2))
	s.sync.changed(ctx, storage.Goals, id)

	return DebtApplicationOutcome{
		GoalID:           id,
		DebtID:           debt.ID,
		DebtName:         debt.Name,
		Applied:          paid.Payment.Amount,
		RemainingBalance: paid.RemainingBalance,
		DebtSettled:      paid.Completed,
	}, nil
}

func (s *GoalService) LinkDebt(ctx context.Context, id, debtID int64) error {
	debt, err := s.debts.Get(ctx, debtID)
	if err != nil {
		return fmt.Errorf("resolve debt: %w", err)
	}
	return s.apply(ctx, id, func(g *core.Goal) error {
		return g.LinkDebt(debt.ID, debt.Name)
	})
}

func (s *GoalService) UnlinkDebt(ctx context.Context, id int64) error {
	return s.apply(ctx, id, func(g *core.Goal) error { return g.UnlinkDebt() })
}

// LinkAnnualSaving sets the fund that receives the goal total on completion.
// A nil savingID clears the link.
func (s *GoalService) LinkAnnualSaving(ctx context.Context, id int64, savingID *int64) error {
	var sv *core.Saving
	if savingID != nil {
		var err error
		if sv, err = s.savings.Get(ctx, *savingID); err != nil {
			return fmt.Errorf("resolve saving: %w", err)
		}
	}
	return s.apply(ctx, id, func(g *core.Goal) error {
		g.LinkAnnualSaving(sv)
		return nil
	})
}

func (s *GoalService) UpdateContributionNote(ctx context.Context, id int64, index int, note string) (core.Contribution, error) {
	var c core.Contribution
	err := s.apply(ctx, id, func(g *core.Goal) error {
		var err error
		c, err = g.UpdateContributionNote(index, note)
		return err
	})
	return c, err
}

func (s *GoalService) apply(ctx context.Context, id int64, fn func(*core.Goal) error) error {
	g, err := s.goals.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(g); err != nil {
		return err
	}
	if err := s.goals.Update(ctx, g); err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	s.sync.changed(ctx, storage.Goals, id)
	return nil
}

// Stats summarizes the goals after resolving due restarts. Amounts cover
// active goals only.
func (s *GoalService) Stats(ctx context.Context) (GoalStats, error) {
	all, err := s.List(ctx)
	if err != nil {
		return GoalStats{}, err
	}
	var st GoalStats
	progress := decimal.Zero
	for _, g := range all {
		if g.CycleNumber > st.HighestCycle {
			st.HighestCycle = g.CycleNumber
		}
		if g.Completed {
			st.Completed++
			continue
		}
		st.Active++
		st.TotalTarget = st.TotalTarget.Add(g.TargetAmount)
		st.TotalSaved = st.TotalSaved.Add(g.TotalContributed())
		st.Remaining = st.Remaining.Add(g.RemainingAmount())
		progress = progress.Add(g.Progress())
	}
	if st.Active > 0 {
		st.AverageProgress = progress.Div(decimal.NewFromInt(int64(st.Active))).Round(2)
	}
	return st, nil
}
