package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

type (
	// PaymentOutcome is the combined result of a debt payment. The payment
	// is committed even when OverflowErr is set.
	PaymentOutcome struct {
		DebtID   int64
		DebtName string
		core.PaymentResult
		OverflowTransfer *Transfer
		OverflowErr      error
	}

	DebtStats struct {
		Total             int
		Active            int
		Archived          int
		TotalOwed         decimal.Decimal
		TotalPaid         decimal.Decimal
		Outstanding       decimal.Decimal
		ReceivableBalance decimal.Decimal
		PayableBalance    decimal.Decimal
		AverageProgress   decimal.Decimal
	}
)

type DebtService struct {
	debts   *storage.Repository[core.Debt, *core.Debt]
	persons Directory
	savings *SavingService
	sync    notifier
	now     Clock
}

func NewDebtService(store storage.DocumentStore, persons Directory, savings *SavingService, opts Options) *DebtService {
	opts = opts.withDefaults()
	return &DebtService{
		debts:   storage.NewRepository[core.Debt](store, storage.Debts),
		persons: persons,
		savings: savings,
		sync:    notifier{opts.Publisher},
		now:     opts.Clock,
	}
}

func (s *DebtService) Create(ctx context.Context, d *core.Debt) (int64, error) {
	now := s.now()
	if d.CreationDate.IsZero() {
		d.CreationDate = now
	}
	if d.StartDate.IsZero() {
		d.StartDate = now
	}
	d.SyncState = core.SyncLocal
	id, err := s.debts.Create(ctx, d)
	if err != nil {
		return 0, fmt.Errorf("create debt: %w", err)
	}
	slog.InfoContext(ctx, "Debt created",
		"debt_id", id,
		"kind", d.Kind,
		"amount", d.TotalOwed.StringFixed(2))
	s.sync.changed(ctx, storage.Debts, id)
	return id, nil
}

func (s *DebtService) Update(ctx context.Context, d *core.Debt) error {
	if err := s.debts.Update(ctx, d); err != nil {
		return fmt.Errorf("update debt: %w", err)
	}
	s.sync.changed(ctx, storage.Debts, d.ID)
	return nil
}

func (s *DebtService) Delete(ctx context.Context, id int64) error {
	if err := s.debts.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete debt: %w", err)
	}
	slog.InfoContext(ctx, "Debt deleted", "debt_id", id)
	s.sync.removed(ctx, storage.Debts, id)
	return nil
}

func (s *DebtService) Get(ctx context.Context, id int64) (*core.Debt, error) {
	return s.debts.Get(ctx, id)
}

func (s *DebtService) List(ctx context.Context) ([]*core.Debt, error) {
	return s.debts.All(ctx)
}

func (s *DebtService) ListActive(ctx context.Context) ([]*core.Debt, error) {
	return s.filter(ctx, func(d *core.Debt) bool { return !d.Archived })
}

func (s *DebtService) ListArchived(ctx context.Context) ([]*core.Debt, error) {
	return s.filter(ctx, func(d *core.Debt) bool { return d.Archived })
}

func (s *DebtService) ListByPerson(ctx context.Context, personID int64) ([]*core.Debt, error) {
	return s.filter(ctx, func(d *core.Debt) bool {
		return d.CounterpartyID != nil && *d.CounterpartyID == personID
	})
}

func (s *DebtService) filter(ctx context.Context, keep func(*core.Debt) bool) ([]*core.Debt, error) {
	all, err := s.debts.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*core.Debt, 0, len(all))
	for _, d := range all {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// AddPayment records a payment and routes any overflow into the default
// savings fund. A failed overflow deposit is reported on the outcome.
func (s *DebtService) AddPayment(ctx context.Context, id int64, amount decimal.Decimal, note string) (PaymentOutcome, error) {
	d, err := s.debts.Get(ctx, id)
	if err != nil {
		return PaymentOutcome{}, err
	}
	res, err := d.AddPayment(amount, note, s.now())
	if err != nil {
		return PaymentOutcome{}, err
	}
	if err := s.debts.Update(ctx, d); err != nil {
		return PaymentOutcome{}, fmt.Errorf("save payment: %w", err)
	}
	slog.InfoContext(ctx, "Debt payment recorded",
		"debt_id", id,
		"amount", res.Payment.Amount.StringFixed(2),
		"overflow", res.Overflow.StringFixed(2),
		"completed", res.Completed)
	s.sync.changed(ctx, storage.Debts, id)

	out := PaymentOutcome{DebtID: id, DebtName: d.Name, PaymentResult: res}
	if res.Overflow.IsPositive() {
		out.OverflowTransfer, out.OverflowErr = s.routeOverflow(ctx, d, res.Overflow)
	}
	return out, nil
}

func (s *DebtService) routeOverflow(ctx context.Context, d *core.Debt, overflow decimal.Decimal) (*Transfer, error) {
	if s.savings == nil {
		return nil, fmt.Errorf("no savings service to receive overflow")
	}
	note := fmt.Sprintf("Excedente de pago de \"%s\"", d.Name)
	t, err := s.savings.DepositToDefaultFund(ctx, overflow, note)
	if err != nil {
		slog.WarnContext(ctx, "Failed to route payment overflow",
			"debt_id", d.ID, "overflow", overflow.StringFixed(2), "error", err)
		return nil, fmt.Errorf("route overflow of debt %d: %w", d.ID, err)
	}
	return &t, nil
}

func (s *DebtService) UpdatePaymentNote(ctx context.Context, id int64, index int, note string) (core.Payment, error) {
	return s.editPayment(ctx, id, func(d *core.Debt) (core.Payment, error) {
		return d.UpdatePaymentNote(index, note)
	})
}

func (s *DebtService) UpdatePaymentAmount(ctx context.Context, id int64, index int, amount decimal.Decimal) (core.Payment, error) {
	return s.editPayment(ctx, id, func(d *core.Debt) (core.Payment, error) {
		return d.UpdatePaymentAmount(index, amount, s.now())
	})
}

func (s *DebtService) editPayment(ctx context.Context, id int64, fn func(*core.Debt) (core.Payment, error)) (core.Payment, error) {
	d, err := s.debts.Get(ctx, id)
	if err != nil {
		return core.Payment{}, err
	}
	p, err := fn(d)
	if err != nil {
		return core.Payment{}, err
	}
	if err := s.debts.Update(ctx, d); err != nil {
		return core.Payment{}, fmt.Errorf("save payment edit: %w", err)
	}
	s.sync.changed(ctx, storage.Debts, id)
	return p, nil
}

func (s *DebtService) Archive(ctx context.Context, id int64) error {
	return s.apply(ctx, id, func(d *core.Debt) { d.Archive(s.now()) })
}

func (s *DebtService) Unarchive(ctx context.Context, id int64) error {
	return s.apply(ctx, id, func(d *core.Debt) { d.Unarchive() })
}

// AssignCounterparty snapshots person personID onto the debt. A nil id clears it.
func (s *DebtService) AssignCounterparty(ctx context.Context, id int64, personID *int64) error {
	var p *core.Person
	if personID != nil {
		if s.persons == nil {
			return fmt.Errorf("no person directory configured")
		}
		var err error
		if p, err = s.persons.Get(ctx, *personID); err != nil {
			return fmt.Errorf("resolve counterparty: %w", err)
		}
	}
	return s.apply(ctx, id, func(d *core.Debt) { d.AssignCounterparty(p) })
}

func (s *DebtService) apply(ctx context.Context, id int64, fn func(*core.Debt)) error {
	d, err := s.debts.Get(ctx, id)
	if err != nil {
		return err
	}
	fn(d)
	if err := s.debts.Update(ctx, d); err != nil {
		return fmt.Errorf("save debt: %w", err)
	}
	s.sync.changed(ctx, storage.Debts, id)
	return nil
}

func (s *DebtService) Stats(ctx context.Context) (DebtStats, error) {
	all, err := s.debts.All(ctx)
	if err != nil {
		return DebtStats{}, err
	}
	st := DebtStats{Total: len(all)}
	progress := decimal.Zero
	for _, d := range all {
		st.TotalOwed = st.TotalOwed.Add(d.TotalOwed)
		st.TotalPaid = st.TotalPaid.Add(d.TotalPaid())
		if d.Archived {
			st.Archived++
			continue
		}
		st.Active++
		balance := d.Balance()
		st.Outstanding = st.Outstanding.Add(balance)
		progress = progress.Add(d.Progress())
		switch d.Kind {
		case core.Receivable:
			st.ReceivableBalance = st.ReceivableBalance.Add(balance)
		case core.Payable:
			st.PayableBalance = st.PayableBalance.Add(balance)
		}
	}
	if st.Active > 0 {
		st.AverageProgress = progress.Div(decimal.NewFromInt(int64(st.Active))).Round(2)
	}
	return st, nil
}
