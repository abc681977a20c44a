package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finanzas/internal/core"
)

func TestGoalImmediateRestartCarriesOverflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createGoal(t, "Colchón", "100", nil)

	out, err := f.goals.AddContribution(ctx, id, dec("150"), "bono")
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if !out.JustCompleted || !out.Contribution.Amount.Equal(dec("100")) || !out.Overflow.Equal(dec("50")) {
		t.Fatalf("unexpected result: %+v", out.ContributionResult)
	}
	if out.RestartScheduled != nil {
		t.Errorf("restart should not be deferred without a due date")
	}
	if out.Successor == nil || out.Successor.CycleNumber != 2 {
		t.Fatalf("expected cycle 2 successor, got %+v (err=%v)", out.Successor, out.RestartErr)
	}
	if out.OverflowCarry == nil || !out.OverflowCarry.Contribution.Amount.Equal(dec("50")) {
		t.Fatalf("expected overflow carried into successor, got %+v (err=%v)", out.OverflowCarry, out.OverflowErr)
	}
	if out.OverflowTransfer != nil {
		t.Errorf("overflow should not reach the default fund when a successor exists")
	}

	done, _ := f.goals.Get(ctx, id)
	if !done.Completed || done.ScheduledRestartDate != nil {
		t.Errorf("completed goal should have no pending schedule: %+v", done.ScheduledRestartDate)
	}
	next, _ := f.goals.Get(ctx, out.Successor.ID)
	if next.Name != "Colchón" || !next.TargetAmount.Equal(dec("100")) || !next.TotalContributed().Equal(dec("50")) {
		t.Errorf("unexpected successor: %+v", next)
	}
	if next.DueDate != nil || next.Completed {
		t.Errorf("successor should be active with no due date")
	}

	all, _ := f.goals.List(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 goals, got %d", len(all))
	}
}

func TestGoalDeferredRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := testStart.Add(10 * 24 * time.Hour)
	id := f.createGoal(t, "Viaje", "300", &due)

	out, err := f.goals.AddContribution(ctx, id, dec("300"), "")
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if out.RestartScheduled == nil || !out.RestartScheduled.Equal(due) || out.Successor != nil {
		t.Fatalf("expected deferred restart at %v, got scheduled=%v successor=%v", due, out.RestartScheduled, out.Successor)
	}

	all, _ := f.goals.List(ctx)
	if len(all) != 1 {
		t.Fatalf("restart resolved too early: %d goals", len(all))
	}

	f.clock.Advance(11 * 24 * time.Hour)
	all, err = f.goals.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected successor after due date, got %d goals", len(all))
	}
	if all[1].CycleNumber != 2 || !all[1].CreationDate.Equal(due) {
		t.Errorf("unexpected successor: cycle=%d created=%v", all[1].CycleNumber, all[1].CreationDate)
	}
	if all[0].ScheduledRestartDate != nil {
		t.Errorf("schedule should be cleared")
	}

	all, _ = f.goals.List(ctx)
	if len(all) != 2 {
		t.Fatalf("listing again must not spawn again, got %d goals", len(all))
	}
}

func TestGoalOverflowWithoutSuccessorGoesToDefaultFund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := testStart.Add(30 * 24 * time.Hour)
	id := f.createGoal(t, "Fondo", "100", &due)

	out, err := f.goals.AddContribution(ctx, id, dec("130"), "")
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if out.OverflowTransfer == nil || !out.OverflowTransfer.Amount.Equal(dec("30")) {
		t.Fatalf("expected 30 in default fund, got %+v (err=%v)", out.OverflowTransfer, out.OverflowErr)
	}
	if out.OverflowTransfer.SavingName != "Ahorros" {
		t.Errorf("unexpected fund %q", out.OverflowTransfer.SavingName)
	}
}

func TestGoalAnnualSavingTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sid := f.createSaving(t, "Anual 2025")
	id := f.createGoal(t, "Mensual", "200", nil)
	if err := f.goals.LinkAnnualSaving(ctx, id, &sid); err != nil {
		t.Fatalf("link saving: %v", err)
	}

	if _, err := f.goals.AddContribution(ctx, id, dec("120"), ""); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	out, err := f.goals.AddContribution(ctx, id, dec("80"), "")
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if out.AnnualTransfer == nil || !out.AnnualTransfer.Amount.Equal(dec("200")) {
		t.Fatalf("expected 200 transferred, got %+v (err=%v)", out.AnnualTransfer, out.AnnualTransferErr)
	}
	sv, _ := f.savings.Get(ctx, sid)
	if !sv.AccumulatedAmount.Equal(dec("200")) {
		t.Errorf("saving balance %s, want 200", sv.AccumulatedAmount)
	}
	if out.Successor == nil {
		t.Fatalf("expected an immediate successor")
	}
	if out.Successor.AnnualSavingID != nil {
		t.Errorf("successor must not inherit the annual saving link")
	}
}

func TestGoalNextCycleTransfersOnlyWhenRelinked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sid := f.createSaving(t, "Anual 2025")
	id := f.createGoal(t, "Mensual", "200", nil)
	if err := f.goals.LinkAnnualSaving(ctx, id, &sid); err != nil {
		t.Fatalf("link saving: %v", err)
	}
	first, err := f.goals.AddContribution(ctx, id, dec("200"), "")
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if first.AnnualTransfer == nil || first.Successor == nil {
		t.Fatalf("expected transfer and successor, got %+v", first)
	}
	next := first.Successor.ID

	second, err := f.goals.AddContribution(ctx, next, dec("200"), "")
	if err != nil {
		t.Fatalf("contribute cycle 2: %v", err)
	}
	if !second.JustCompleted {
		t.Fatalf("cycle 2 should complete")
	}
	if second.AnnualTransfer != nil || second.AnnualTransferErr != nil {
		t.Errorf("unlinked cycle must not transfer, got %+v (err=%v)", second.AnnualTransfer, second.AnnualTransferErr)
	}
	sv, _ := f.savings.Get(ctx, sid)
	if !sv.AccumulatedAmount.Equal(dec("200")) {
		t.Errorf("saving balance %s, want 200", sv.AccumulatedAmount)
	}

	third := second.Successor.ID
	if err := f.goals.LinkAnnualSaving(ctx, third, &sid); err != nil {
		t.Fatalf("relink saving: %v", err)
	}
	out, err := f.goals.AddContribution(ctx, third, dec("200"), "")
	if err != nil {
		t.Fatalf("contribute cycle 3: %v", err)
	}
	if out.AnnualTransfer == nil || !out.AnnualTransfer.Amount.Equal(dec("200")) {
		t.Fatalf("relinked cycle should transfer 200, got %+v (err=%v)", out.AnnualTransfer, out.AnnualTransferErr)
	}
	sv, _ = f.savings.Get(ctx, sid)
	if !sv.AccumulatedAmount.Equal(dec("400")) {
		t.Errorf("saving balance %s, want 400", sv.AccumulatedAmount)
	}
}

func TestGoalOverflowCarryIsBounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createGoal(t, "Alcancía", "1", nil)

	out, err := f.goals.AddContribution(ctx, id, dec("3000"), "")
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if !out.Overflow.Equal(dec("2999")) {
		t.Fatalf("overflow %s, want 2999", out.Overflow)
	}
	if out.OverflowCarry == nil || !out.OverflowCarry.Contribution.Amount.Equal(dec("1")) {
		t.Fatalf("expected 1 carried into the next cycle, got %+v (err=%v)", out.OverflowCarry, out.OverflowErr)
	}
	if out.OverflowCarry.OverflowCarry != nil || out.OverflowCarry.OverflowTransfer != nil {
		t.Errorf("carried contribution must not overflow again")
	}
	if out.OverflowTransfer == nil || !out.OverflowTransfer.Amount.Equal(dec("2998")) {
		t.Fatalf("expected 2998 in default fund, got %+v (err=%v)", out.OverflowTransfer, out.OverflowErr)
	}
	if out.OverflowTransfer.SavingName != "Ahorros" {
		t.Errorf("unexpected fund %q", out.OverflowTransfer.SavingName)
	}

	goals, err := f.goals.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(goals) != 3 {
		t.Errorf("expected 3 goals (original, carried cycle, fresh cycle), got %d", len(goals))
	}
}

func TestGoalAnnualTransferFailureIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sid := f.createSaving(t, "Anual")
	id := f.createGoal(t, "Meta", "50", nil)
	if err := f.goals.LinkAnnualSaving(ctx, id, &sid); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := f.savings.Delete(ctx, sid); err != nil {
		t.Fatalf("delete saving: %v", err)
	}

	out, err := f.goals.AddContribution(ctx, id, dec("50"), "")
	if err != nil {
		t.Fatalf("completion must not fail: %v", err)
	}
	if !errors.Is(out.AnnualTransferErr, core.ErrNotFound) {
		t.Errorf("expected not found transfer error, got %v", out.AnnualTransferErr)
	}
	if !out.JustCompleted || out.Successor == nil {
		t.Errorf("completion and restart should still happen")
	}
}

func TestApplyToDebtPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unlinked := f.createGoal(t, "Sin deuda", "10", nil)

	linkedActive := f.createGoal(t, "Activa", "100", nil)
	debtA := f.createDebt(t, "Deuda A", "500")
	if err := f.goals.LinkDebt(ctx, linkedActive, debtA); err != nil {
		t.Fatalf("link: %v", err)
	}

	gone := f.createGoal(t, "Huérfana", "10", nil)
	debtB := f.createDebt(t, "Deuda B", "100")
	if err := f.goals.LinkDebt(ctx, gone, debtB); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := f.goals.AddContribution(ctx, gone, dec("10"), ""); err != nil {
		t.Fatal(err)
	}
	if err := f.debts.Delete(ctx, debtB); err != nil {
		t.Fatal(err)
	}

	settled := f.createGoal(t, "Tarde", "10", nil)
	debtC := f.createDebt(t, "Deuda C", "20")
	if err := f.goals.LinkDebt(ctx, settled, debtC); err != nil {
		t.Fatal(err)
	}
	if _, err := f.goals.AddContribution(ctx, settled, dec("10"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.debts.AddPayment(ctx, debtC, dec("20"), ""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		goal int64
		want error
	}{
		{"not linked", unlinked, core.ErrNotLinked},
		{"not completed", linkedActive, core.ErrNotCompleted},
		{"debt deleted", gone, core.ErrDebtNotFound},
		{"debt settled", settled, core.ErrDebtAlreadySettled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.goals.ApplyToDebt(ctx, tt.goal); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestApplyToDebtOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	debtID := f.createDebt(t, "Carro", "300")
	id := f.createGoal(t, "Abono", "500", nil)
	if err := f.goals.LinkDebt(ctx, id, debtID); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := f.goals.AddContribution(ctx, id, dec("500"), ""); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	out, err := f.goals.ApplyToDebt(ctx, id)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !out.Applied.Equal(dec("300")) || !out.RemainingBalance.IsZero() || !out.DebtSettled {
		t.Fatalf("expected 300 applied and debt settled, got %+v", out)
	}
	if out.DebtName != "Carro" {
		t.Errorf("unexpected debt name %q", out.DebtName)
	}

	g, _ := f.goals.Get(ctx, id)
	if g.DebtApplication == nil || !g.DebtApplication.Amount.Equal(dec("300")) {
		t.Fatalf("application not recorded: %+v", g.DebtApplication)
	}
	if err := f.goals.UnlinkDebt(ctx, id); !errors.Is(err, core.ErrAlreadyApplied) {
		t.Errorf("unlink after application: expected ErrAlreadyApplied, got %v", err)
	}
	if _, err := f.goals.ApplyToDebt(ctx, id); !errors.Is(err, core.ErrAlreadyApplied) {
		t.Errorf("second apply: expected ErrAlreadyApplied, got %v", err)
	}

	d, _ := f.debts.Get(ctx, debtID)
	if d.Payments[0].Note != `Aplicación de la meta "Abono" (ciclo 1)` {
		t.Errorf("unexpected payment note %q", d.Payments[0].Note)
	}
}

func TestRestartReconcilerSpawnsOnceUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := testStart.Add(24 * time.Hour)
	id := f.createGoal(t, "Semanal", "70", &due)
	if _, err := f.goals.AddContribution(ctx, id, dec("70"), ""); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	f.clock.Advance(48 * time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.restarts.Run(ctx); err != nil {
				t.Errorf("run: %v", err)
			}
		}()
	}
	wg.Wait()

	all, err := f.goals.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected exactly one successor, got %d goals", len(all))
	}
}

func TestGoalStatsAndFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createGoal(t, "A", "100", nil)
	f.createGoal(t, "B", "200", nil)
	if _, err := f.goals.AddContribution(ctx, a, dec("100"), ""); err != nil {
		t.Fatal(err)
	}

	completed, _ := f.goals.ListCompleted(ctx)
	active, _ := f.goals.ListActive(ctx)
	if len(completed) != 1 || len(active) != 2 {
		t.Fatalf("expected 1 completed and 2 active (incl. successor), got %d and %d", len(completed), len(active))
	}

	st, err := f.goals.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Active != 2 || st.Completed != 1 || st.HighestCycle != 2 {
		t.Errorf("unexpected counts: %+v", st)
	}
	if !st.TotalTarget.Equal(dec("300")) || !st.Remaining.Equal(dec("300")) {
		t.Errorf("unexpected amounts: %+v", st)
	}
}
