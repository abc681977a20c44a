package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

type SavingStats struct {
	Count            int
	TotalAccumulated decimal.Decimal
	TotalDeposited   decimal.Decimal
	TotalWithdrawn   decimal.Decimal
	PendingLoans     decimal.Decimal
	Untouchable      int
	WithTarget       int
}

// SavingService manages savings funds, including the default fund that
// receives overflow from debts and goals.
type SavingService struct {
	savings     *storage.Repository[core.Saving, *core.Saving]
	sync        notifier
	now         Clock
	defaultName string
	randMin     int
	randMax     int
	intn        func(n int) int

	fund singleflight.Group
}

func NewSavingService(store storage.DocumentStore, opts Options) *SavingService {
	opts = opts.withDefaults()
	return &SavingService{
		savings:     storage.NewRepository[core.Saving](store, storage.Savings),
		sync:        notifier{opts.Publisher},
		now:         opts.Clock,
		defaultName: opts.Preferences.DefaultSavingsName,
		randMin:     opts.Preferences.RandomSavingMin,
		randMax:     opts.Preferences.RandomSavingMax,
		intn:        rand.IntN,
	}
}

func (s *SavingService) Create(ctx context.Context, sv *core.Saving) (int64, error) {
	if sv.CreationDate.IsZero() {
		sv.CreationDate = s.now()
	}
	sv.SyncState = core.SyncLocal
	id, err := s.savings.Create(ctx, sv)
	if err != nil {
		return 0, fmt.Errorf("create saving: %w", err)
	}
	slog.InfoContext(ctx, "Saving created", "saving_id", id, "name", sv.Name)
	s.sync.changed(ctx, storage.Savings, id)
	return id, nil
}

func (s *SavingService) Update(ctx context.Context, sv *core.Saving) error {
	if err := s.savings.Update(ctx, sv); err != nil {
		return fmt.Errorf("update saving: %w", err)
	}
	s.sync.changed(ctx, storage.Savings, sv.ID)
	return nil
}

func (s *SavingService) Delete(ctx context.Context, id int64) error {
	if err := s.savings.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete saving: %w", err)
	}
	slog.InfoContext(ctx, "Saving deleted", "saving_id", id)
	s.sync.removed(ctx, storage.Savings, id)
	return nil
}

func (s *SavingService) Get(ctx context.Context, id int64) (*core.Saving, error) {
	return s.savings.Get(ctx, id)
}

func (s *SavingService) List(ctx context.Context) ([]*core.Saving, error) {
	return s.savings.All(ctx)
}

func (s *SavingService) Deposit(ctx context.Context, id int64, amount decimal.Decimal, note string) (core.MovementResult, error) {
	return s.mutate(ctx, id, func(sv *core.Saving) (core.MovementResult, error) {
		return sv.Deposit(amount, note, core.SubkindNormal, s.now())
	})
}

// Withdraw takes money out of a fund. A loan withdrawal also raises the
// pending internal loan.
func (s *SavingService) Withdraw(ctx context.Context, id int64, amount decimal.Decimal, note string, loan bool) (core.MovementResult, error) {
	subkind := core.SubkindNormal
	if loan {
		subkind = core.SubkindLoan
	}
	return s.mutate(ctx, id, func(sv *core.Saving) (core.MovementResult, error) {
		return sv.Withdraw(amount, note, subkind, s.now())
	})
}

// RepayLoan deposits money returned to the fund. The amount may not exceed
// the pending internal loan.
func (s *SavingService) RepayLoan(ctx context.Context, id int64, amount decimal.Decimal, note string) (core.MovementResult, error) {
	return s.mutate(ctx, id, func(sv *core.Saving) (core.MovementResult, error) {
		if !sv.PendingInternalLoan.IsPositive() {
			return core.MovementResult{}, core.ErrNoPendingLoan
		}
		if amount.GreaterThan(sv.PendingInternalLoan) {
			return core.MovementResult{}, core.ErrLoanOverpayment
		}
		return sv.Deposit(amount, note, core.SubkindLoanRepayment, s.now())
	})
}

func (s *SavingService) mutate(ctx context.Context, id int64, fn func(*core.Saving) (core.MovementResult, error)) (core.MovementResult, error) {
	sv, err := s.savings.Get(ctx, id)
	if err != nil {
		return core.MovementResult{}, err
	}
	res, err := fn(sv)
	if err != nil {
		return core.MovementResult{}, err
	}
	if err := s.savings.Update(ctx, sv); err != nil {
		return core.MovementResult{}, fmt.Errorf("save saving movement: %w", err)
	}
	slog.InfoContext(ctx, "Saving movement recorded",
		"saving_id", id,
		"kind", res.Movement.Kind,
		"subkind", res.Movement.Subkind,
		"amount", res.Movement.Amount.StringFixed(2))
	s.sync.changed(ctx, storage.Savings, id)
	return res, nil
}

func (s *SavingService) UpdateMovementNote(ctx context.Context, id int64, index int, note string) (core.Movement, error) {
	sv, err := s.savings.Get(ctx, id)
	if err != nil {
		return core.Movement{}, err
	}
	m, err := sv.UpdateMovementNote(index, note)
	if err != nil {
		return core.Movement{}, err
	}
	if err := s.savings.Update(ctx, sv); err != nil {
		return core.Movement{}, fmt.Errorf("save movement note: %w", err)
	}
	s.sync.changed(ctx, storage.Savings, id)
	return m, nil
}

func (s *SavingService) RecordAnnualReview(ctx context.Context, id int64, notes string) (core.AnnualReview, error) {
	sv, err := s.savings.Get(ctx, id)
	if err != nil {
		return core.AnnualReview{}, err
	}
	r := sv.RecordAnnualReview(notes, s.now())
	if err := s.savings.Update(ctx, sv); err != nil {
		return core.AnnualReview{}, fmt.Errorf("save annual review: %w", err)
	}
	s.sync.changed(ctx, storage.Savings, id)
	return r, nil
}

// EnsureDefaultFund returns the default fund, creating it without a target
// when missing. Concurrent callers share a single lookup-or-create.
func (s *SavingService) EnsureDefaultFund(ctx context.Context) (*core.Saving, error) {
	v, err, _ := s.fund.Do("default", func() (any, error) {
		return s.defaultFundID(ctx)
	})
	if err != nil {
		return nil, err
	}
	return s.savings.Get(ctx, v.(int64))
}

func (s *SavingService) defaultFundID(ctx context.Context) (int64, error) {
	all, err := s.savings.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("look up default fund: %w", err)
	}
	want := strings.ToLower(strings.TrimSpace(s.defaultName))
	for _, sv := range all {
		if strings.ToLower(strings.TrimSpace(sv.Name)) == want {
			return sv.ID, nil
		}
	}
	id, err := s.Create(ctx, core.NewSaving(s.defaultName, s.now()))
	if err != nil {
		return 0, fmt.Errorf("create default fund: %w", err)
	}
	slog.InfoContext(ctx, "Default savings fund created", "saving_id", id, "name", s.defaultName)
	return id, nil
}

// DepositToDefaultFund moves amount into the default fund.
func (s *SavingService) DepositToDefaultFund(ctx context.Context, amount decimal.Decimal, note string) (Transfer, error) {
	fund, err := s.EnsureDefaultFund(ctx)
	if err != nil {
		return Transfer{}, err
	}
	return s.TransferIn(ctx, fund.ID, amount, note)
}

// TransferIn deposits amount into fund id on behalf of another entity.
func (s *SavingService) TransferIn(ctx context.Context, id int64, amount decimal.Decimal, note string) (Transfer, error) {
	var name string
	res, err := s.mutate(ctx, id, func(sv *core.Saving) (core.MovementResult, error) {
		name = sv.Name
		return sv.Deposit(amount, note, core.SubkindNormal, s.now())
	})
	if err != nil {
		return Transfer{}, err
	}
	return Transfer{SavingID: id, SavingName: name, Amount: res.Movement.Amount, NewBalance: res.NewBalance}, nil
}

func (s *SavingService) Stats(ctx context.Context) (SavingStats, error) {
	all, err := s.savings.All(ctx)
	if err != nil {
		return SavingStats{}, err
	}
	st := SavingStats{Count: len(all)}
	for _, sv := range all {
		st.TotalAccumulated = st.TotalAccumulated.Add(sv.AccumulatedAmount)
		st.TotalDeposited = st.TotalDeposited.Add(sv.TotalDeposited())
		st.TotalWithdrawn = st.TotalWithdrawn.Add(sv.TotalWithdrawn())
		st.PendingLoans = st.PendingLoans.Add(sv.PendingInternalLoan)
		if sv.Untouchable {
			st.Untouchable++
		}
		if sv.OptionalTarget != nil {
			st.WithTarget++
		}
	}
	return st, nil
}

// SuggestAmount picks a whole amount in [min, max] for a spontaneous deposit.
func (s *SavingService) SuggestAmount() decimal.Decimal {
	lo, hi := s.randMin, s.randMax
	if hi < lo {
		lo, hi = hi, lo
	}
	return decimal.NewFromInt(int64(lo + s.intn(hi-lo+1)))
}
