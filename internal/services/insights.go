package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"
)

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityInfo   Severity = "info"

	InsightWarning InsightKind = "warning"
	InsightInfo    InsightKind = "info"
	InsightSuccess InsightKind = "success"
)

// noActivityDays stands for "never" when an entity has no movements yet.
const noActivityDays = 999

var (
	lotteryROIFloor       = decimal.NewFromInt(-50)
	lotteryHeavyBetting   = decimal.NewFromInt(500)
	lotteryOpportunityCap = decimal.NewFromInt(100)
	lotteryLossCap        = decimal.NewFromInt(1000)
	monthlySpendEstimate  = decimal.NewFromInt(5000)
	emergencyDailyAmount  = decimal.NewFromInt(50)
	fifty                 = decimal.NewFromInt(50)
	eighty                = decimal.NewFromInt(80)
	hundredPct            = decimal.NewFromInt(100)
)

type (
	Severity    string
	InsightKind string

	Insight struct {
		Kind        InsightKind
		Severity    Severity
		Title       string
		Message     string
		Details     string
		Action      string
		Comparisons []string
	}

	// Snapshot is the state the insight rules evaluate.
	Snapshot struct {
		Now      time.Time
		Currency string
		Goals    []*core.Goal
		Debts    []*core.Debt
		Savings  []*core.Saving
		Lottery  core.LotteryStats
	}

	// InsightRule inspects a snapshot and reports what it finds.
	InsightRule interface {
		Evaluate(s Snapshot) []Insight
	}

	LotteryRule struct{}
	GoalRule    struct{}
	DebtRule    struct{}
	SavingsRule struct{}
)

var severityOrder = map[Severity]int{
	SeverityHigh:   0,
	SeverityMedium: 1,
	SeverityLow:    2,
	SeverityInfo:   3,
}

// insightRules run in this order before sorting by severity.
var insightRules = []InsightRule{LotteryRule{}, GoalRule{}, DebtRule{}, SavingsRule{}}

// RegisterInsightRule adds a rule evaluated after the built-in ones.
func RegisterInsightRule(r InsightRule) {
	insightRules = append(insightRules, r)
}

// Analyze runs every registered rule and orders the insights by severity.
func Analyze(s Snapshot) []Insight {
	var out []Insight
	for _, r := range insightRules {
		out = append(out, r.Evaluate(s)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return severityOrder[out[i].Severity] < severityOrder[out[j].Severity]
	})
	return out
}

func (LotteryRule) Evaluate(s Snapshot) []Insight {
	var out []Insight
	st := s.Lottery
	if st.ROI != nil && st.ROI.LessThan(lotteryROIFloor) && st.TotalBets.GreaterThan(lotteryHeavyBetting) {
		out = append(out, Insight{
			Kind:        InsightWarning,
			Severity:    SeverityHigh,
			Title:       "Impacto de Lotería",
			Message:     fmt.Sprintf("Has apostado %s %s con un ROI de %s%%", s.Currency, st.TotalBets.StringFixed(2), st.ROI.StringFixed(1)),
			Action:      "Considera reducir tus apuestas y redirigir a metas",
			Comparisons: comparisons(s, st.TotalBets),
		})
	}
	if st.OpportunityCost.GreaterThan(lotteryOpportunityCap) {
		out = append(out, Insight{
			Kind:     InsightInfo,
			Severity: SeverityMedium,
			Title:    "Costo de Oportunidad",
			Message:  fmt.Sprintf("Si hubieras invertido en lugar de apostar, tendrías %s %s adicionales", s.Currency, st.OpportunityCost.StringFixed(2)),
			Action:   "Considera invertir en metas o ahorros",
		})
	}
	if st.CumulativeLosses.GreaterThan(lotteryLossCap) {
		out = append(out, Insight{
			Kind:        InsightWarning,
			Severity:    SeverityMedium,
			Title:       "Pérdidas Acumuladas",
			Message:     fmt.Sprintf("Has perdido %s %s en total", s.Currency, st.CumulativeLosses.StringFixed(2)),
			Action:      "Evalúa si vale la pena continuar apostando",
			Comparisons: comparisons(s, st.CumulativeLosses),
		})
	}
	return out
}

func (GoalRule) Evaluate(s Snapshot) []Insight {
	var out []Insight
	for _, g := range s.Goals {
		if g.Completed {
			continue
		}
		progress := g.Progress()
		inProgress := progress.LessThan(hundredPct)

		if progress.GreaterThanOrEqual(fifty) && inProgress {
			out = append(out, Insight{
				Kind:     InsightSuccess,
				Severity: SeverityInfo,
				Title:    "¡Excelente Progreso!",
				Message:  fmt.Sprintf("Tu meta \"%s\" va al %s%%", g.Name, progress.StringFixed(0)),
				Details:  goalPaceDetails(g, s.Now),
				Action:   "Mantén este ritmo de aportes",
			})
		}

		if idle := daysSinceLastContribution(g, s.Now); idle > 14 && inProgress {
			out = append(out, Insight{
				Kind:     InsightWarning,
				Severity: SeverityMedium,
				Title:    "Meta Estancada",
				Message:  fmt.Sprintf("\"%s\" no ha recibido aportes en %d días", g.Name, idle),
				Details:  fmt.Sprintf("Progreso actual: %s%%", progress.StringFixed(0)),
				Action:   "Programa un aporte esta semana",
			})
		}

		if progress.GreaterThanOrEqual(eighty) && inProgress {
			out = append(out, Insight{
				Kind:     InsightSuccess,
				Severity: SeverityLow,
				Title:    "¡Casi lo logras!",
				Message:  fmt.Sprintf("Solo faltan %s %s para completar \"%s\"", s.Currency, g.RemainingAmount().StringFixed(2), g.Name),
				Action:   "Un último esfuerzo y lo lograrás",
			})
		}
	}
	return out
}

func (DebtRule) Evaluate(s Snapshot) []Insight {
	var out []Insight
	for _, d := range s.Debts {
		if d.Archived {
			continue
		}
		progress := d.Progress()
		balance := d.Balance()
		inProgress := progress.LessThan(hundredPct)

		if days, ok := d.DaysUntilDue(s.Now); ok && balance.IsPositive() {
			switch {
			case days < 0:
				out = append(out, Insight{
					Kind:     InsightWarning,
					Severity: SeverityHigh,
					Title:    "Deuda Vencida",
					Message:  fmt.Sprintf("\"%s\" venció hace %d días", d.Name, -days),
					Details:  fmt.Sprintf("Saldo actual: %s %s", s.Currency, balance.StringFixed(2)),
					Action:   "Acuerda un plan de pago cuanto antes",
				})
			case days <= 7:
				out = append(out, Insight{
					Kind:     InsightWarning,
					Severity: SeverityMedium,
					Title:    "Vencimiento Próximo",
					Message:  fmt.Sprintf("\"%s\" vence en %d días", d.Name, days),
					Details:  fmt.Sprintf("Saldo actual: %s %s", s.Currency, balance.StringFixed(2)),
					Action:   "Reserva el pago antes de la fecha límite",
				})
			}
		}

		if idle := daysSinceLastPayment(d, s.Now); idle > 21 {
			out = append(out, Insight{
				Kind:     InsightWarning,
				Severity: SeverityHigh,
				Title:    "Atención Requerida",
				Message:  fmt.Sprintf("Tu deuda \"%s\" no ha recibido pagos en %d días", d.Name, idle),
				Details:  fmt.Sprintf("Saldo actual: %s %s", s.Currency, balance.StringFixed(2)),
				Action:   "Programa un pago esta semana",
			})
		}

		if progress.GreaterThanOrEqual(fifty) && inProgress {
			out = append(out, Insight{
				Kind:     InsightSuccess,
				Severity: SeverityInfo,
				Title:    "Buen Progreso en Deuda",
				Message:  fmt.Sprintf("Has pagado el %s%% de \"%s\"", progress.StringFixed(0), d.Name),
				Action:   "Continúa con este ritmo de pagos",
			})
		}

		if progress.GreaterThanOrEqual(eighty) && inProgress {
			out = append(out, Insight{
				Kind:     InsightSuccess,
				Severity: SeverityLow,
				Title:    "¡Casi libre de deuda!",
				Message:  fmt.Sprintf("Solo faltan %s %s para liquidar \"%s\"", s.Currency, balance.StringFixed(2), d.Name),
				Action:   "Un último pago y estarás libre",
			})
		}
	}
	return out
}

func (SavingsRule) Evaluate(s Snapshot) []Insight {
	var out []Insight
	total := decimal.Zero
	for _, sv := range s.Savings {
		total = total.Add(sv.AccumulatedAmount)
	}

	months := total.Div(monthlySpendEstimate)
	if months.LessThan(decimal.NewFromInt(3)) {
		out = append(out, Insight{
			Kind:     InsightInfo,
			Severity: SeverityMedium,
			Title:    "Fondo de Emergencia",
			Message:  fmt.Sprintf("Tu ahorro cubre %s meses. Recomendado: 3-6 meses", months.StringFixed(1)),
			Details:  fmt.Sprintf("Meta sugerida: %s %s", s.Currency, monthlySpendEstimate.Mul(decimal.NewFromInt(3)).StringFixed(2)),
			Action:   "Incrementa tus ahorros de emergencia",
		})
	}

	for _, sv := range s.Savings {
		if sv.PendingInternalLoan.IsPositive() {
			out = append(out, Insight{
				Kind:     InsightWarning,
				Severity: SeverityMedium,
				Title:    "Préstamo Interno Pendiente",
				Message:  fmt.Sprintf("Debes %s %s a \"%s\"", s.Currency, sv.PendingInternalLoan.StringFixed(2), sv.Name),
				Action:   "Devuelve el préstamo para proteger tu ahorro",
			})
		}

		recent := 0
		for _, m := range sv.Movements {
			if m.Kind == core.Deposit && daysBetween(m.Date, s.Now) <= 30 {
				recent++
			}
		}
		if recent >= 3 {
			out = append(out, Insight{
				Kind:     InsightSuccess,
				Severity: SeverityInfo,
				Title:    "Ahorro Consistente",
				Message:  fmt.Sprintf("Has hecho %d depósitos en \"%s\" este mes", recent, sv.Name),
				Action:   "¡Excelente hábito! Continúa así",
			})
		}
	}
	return out
}

// comparisons puts amount in perspective against active goals, debts and
// days of emergency savings. At most three are returned.
func comparisons(s Snapshot, amount decimal.Decimal) []string {
	var out []string
	five := decimal.NewFromInt(5)
	for _, g := range s.Goals {
		if g.Completed || !g.TargetAmount.IsPositive() {
			continue
		}
		if pct := amount.Div(g.TargetAmount).Mul(hundredPct); pct.GreaterThanOrEqual(five) {
			out = append(out, fmt.Sprintf("Completar \"%s\" en un %s%%", g.Name, pct.StringFixed(0)))
		}
	}
	for _, d := range s.Debts {
		balance := d.Balance()
		if d.Archived || !balance.IsPositive() {
			continue
		}
		if pct := amount.Div(balance).Mul(hundredPct); pct.GreaterThanOrEqual(five) {
			out = append(out, fmt.Sprintf("Pagar %s%% de \"%s\"", pct.StringFixed(0), d.Name))
		}
	}
	if days := amount.Div(emergencyDailyAmount).Floor().IntPart(); days >= 7 {
		out = append(out, fmt.Sprintf("Ahorrar para %d días de emergencias", days))
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

// goalPaceDetails estimates when an active goal will be reached, from the
// contribution pace when there are at least two contributions, else from the
// due date.
func goalPaceDetails(g *core.Goal, now time.Time) string {
	remaining := g.RemainingAmount()
	if n := len(g.Contributions); n >= 2 && remaining.IsPositive() {
		elapsed := daysBetween(g.Contributions[0].Date, g.Contributions[n-1].Date)
		if elapsed == 0 {
			elapsed = daysBetween(g.Contributions[0].Date, now)
		}
		if elapsed == 0 {
			elapsed = 1
		}
		daily := g.TotalContributed().Div(decimal.NewFromInt(int64(elapsed)))
		if daily.IsPositive() {
			days := remaining.Div(daily).Ceil().IntPart()
			eta := now.AddDate(0, 0, int(days))
			return fmt.Sprintf("A este ritmo la completarás en %d días (%s)", days, eta.Format("02/01/2006"))
		}
	}
	if days, ok := g.DaysUntilDue(now); ok && days >= 0 {
		return fmt.Sprintf("Te quedan %d días para alcanzar tu fecha límite (%s)", days, g.DueDate.Format("02/01/2006"))
	}
	return "Mantén este ritmo de aportes"
}

func daysSinceLastContribution(g *core.Goal, now time.Time) int {
	if len(g.Contributions) == 0 {
		return noActivityDays
	}
	return daysBetween(g.Contributions[len(g.Contributions)-1].Date, now)
}

func daysSinceLastPayment(d *core.Debt, now time.Time) int {
	if len(d.Payments) == 0 {
		return noActivityDays
	}
	return daysBetween(d.Payments[len(d.Payments)-1].Date, now)
}

// daysBetween is the absolute distance between two instants in whole days, rounded.
func daysBetween(a, b time.Time) int {
	return int(math.Round(math.Abs(b.Sub(a).Hours() / 24)))
}

// InsightService gathers a snapshot from the other services and analyzes it.
type InsightService struct {
	goals    *GoalService
	debts    *DebtService
	savings  *SavingService
	lottery  *LotteryService
	now      Clock
	currency string
}

func NewInsightService(goals *GoalService, debts *DebtService, savings *SavingService, lottery *LotteryService, opts Options) *InsightService {
	opts = opts.withDefaults()
	return &InsightService{
		goals:    goals,
		debts:    debts,
		savings:  savings,
		lottery:  lottery,
		now:      opts.Clock,
		currency: opts.Preferences.CurrencySymbol,
	}
}

func (s *InsightService) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Now: s.now(), Currency: s.currency}
	var err error
	if snap.Goals, err = s.goals.List(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load goals: %w", err)
	}
	if snap.Debts, err = s.debts.List(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load debts: %w", err)
	}
	if snap.Savings, err = s.savings.List(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load savings: %w", err)
	}
	if snap.Lottery, err = s.lottery.Stats(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load lottery: %w", err)
	}
	return snap, nil
}

func (s *InsightService) Generate(ctx context.Context) ([]Insight, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Analyze(snap), nil
}
