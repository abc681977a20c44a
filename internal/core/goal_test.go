package core

import (
	"errors"
	"testing"
	"time"
)

func TestGoalCompletion(t *testing.T) {
	g := NewGoal("Vacaciones", dec("500"), testNow)

	res, err := g.AddContribution(dec("500"), "", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.JustCompleted || !g.Completed || g.CompletedDate == nil {
		t.Fatalf("expected completed goal")
	}
	if !res.Progress.Equal(dec("100")) {
		t.Fatalf("expected progress 100, got %s", res.Progress)
	}

	next := g.NextCycle(testNow)
	if next.CycleNumber != 2 || len(next.Contributions) != 0 || next.Completed {
		t.Fatalf("unexpected successor: %+v", next)
	}
	if next.Name != g.Name || !next.TargetAmount.Equal(g.TargetAmount) || next.DueDate != nil {
		t.Fatalf("successor must copy name and target without due date")
	}
}

func TestGoalContributionOverflow(t *testing.T) {
	g := NewGoal("Fondo", dec("300"), testNow)
	_, _ = g.AddContribution(dec("200"), "", testNow)

	res, err := g.AddContribution(dec("250"), "", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Contribution.Amount.Equal(dec("100")) || !res.Overflow.Equal(dec("150")) {
		t.Fatalf("expected applied 100 / overflow 150, got %s / %s", res.Contribution.Amount, res.Overflow)
	}
	if !g.TotalContributed().Equal(dec("300")) {
		t.Fatalf("expected total 300, got %s", g.TotalContributed())
	}
}

func TestGoalCompletionIsSticky(t *testing.T) {
	g := NewGoal("Fondo", dec("100"), testNow)
	_, _ = g.AddContribution(dec("100"), "", testNow)

	res, err := g.AddContribution(dec("40"), "extra", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.JustCompleted || !g.Completed {
		t.Fatalf("completed goal must stay completed without re-completing")
	}
	if !res.Overflow.IsZero() || !res.Contribution.Amount.Equal(dec("40")) {
		t.Fatalf("contribution to completed goal is kept in full")
	}
}

func TestGoalProgressMonotonic(t *testing.T) {
	g := NewGoal("Fondo", dec("1000"), testNow)
	last := g.Progress()
	for _, a := range []string{"10", "0.5", "300", "900", "20"} {
		_, _ = g.AddContribution(dec(a), "", testNow)
		if g.Progress().LessThan(last) {
			t.Fatalf("progress decreased from %s to %s", last, g.Progress())
		}
		last = g.Progress()
	}
}

func TestGoalDebtLinking(t *testing.T) {
	g := NewGoal("Pagar carro", dec("100"), testNow)
	if err := g.LinkDebt(4, "Carro"); err != nil {
		t.Fatalf("link: %v", err)
	}
	g.RecordDebtApplication(dec("100"), 4, "Carro", testNow)

	if err := g.UnlinkDebt(); !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("expected ErrAlreadyApplied on unlink, got %v", err)
	}
	if err := g.LinkDebt(5, "Otra"); !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("expected ErrAlreadyApplied on relink, got %v", err)
	}

	next := g.NextCycle(testNow)
	if next.LinkedDebtID == nil || *next.LinkedDebtID != 4 || next.DebtApplication != nil {
		t.Fatalf("successor keeps the debt link but not the application")
	}
}

func TestGoalNextCycleDropsAnnualSaving(t *testing.T) {
	g := NewGoal("Mensual", dec("200"), testNow)
	g.LinkAnnualSaving(&Saving{Record: Record{ID: 9}, Name: "Anual"})

	next := g.NextCycle(testNow)
	if next.AnnualSavingID != nil || next.AnnualSavingName != "" {
		t.Fatalf("successor must not inherit the annual saving, got %v %q", next.AnnualSavingID, next.AnnualSavingName)
	}
	if g.AnnualSavingID == nil || *g.AnnualSavingID != 9 {
		t.Fatalf("original goal keeps its link")
	}
}

func TestGoalRestartDue(t *testing.T) {
	g := NewGoal("Fondo", dec("100"), testNow)
	if g.RestartDue(testNow) {
		t.Fatalf("no schedule means not due")
	}
	at := testNow.Add(24 * time.Hour)
	g.ScheduleRestart(&at)
	if g.RestartDue(testNow) {
		t.Fatalf("future schedule is not due")
	}
	if !g.RestartDue(at) {
		t.Fatalf("schedule is due at its own instant")
	}
}

func TestGoalValidate(t *testing.T) {
	neg := dec("-1")
	before := testNow.Add(-time.Hour)
	cases := []struct {
		name string
		g    Goal
		ok   bool
	}{
		{"valid", Goal{Name: "a", TargetAmount: dec("1"), CycleNumber: 1}, true},
		{"no name", Goal{TargetAmount: dec("1"), CycleNumber: 1}, false},
		{"zero target", Goal{Name: "a", CycleNumber: 1}, false},
		{"due before creation", Goal{Name: "a", TargetAmount: dec("1"), CycleNumber: 1, CreationDate: testNow, DueDate: &before}, false},
		{"negative suggestion", Goal{Name: "a", TargetAmount: dec("1"), CycleNumber: 1, SuggestedDailyContribution: &neg}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.g.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
