package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

// LotteryService owns the single lottery ledger, created on first use.
type LotteryService struct {
	ledger *storage.Repository[core.Lottery, *core.Lottery]
	sync   notifier
	now    Clock
	rate   decimal.Decimal

	init singleflight.Group
}

func NewLotteryService(store storage.DocumentStore, opts Options) *LotteryService {
	opts = opts.withDefaults()
	return &LotteryService{
		ledger: storage.NewRepository[core.Lottery](store, storage.Lottery),
		sync:   notifier{opts.Publisher},
		now:    opts.Clock,
		rate:   opts.Preferences.ReturnRate(),
	}
}

// Ledger returns the lottery ledger, creating it when absent.
func (s *LotteryService) Ledger(ctx context.Context) (*core.Lottery, error) {
	v, err, _ := s.init.Do("ledger", func() (any, error) {
		return s.ledgerID(ctx)
	})
	if err != nil {
		return nil, err
	}
	return s.ledger.Get(ctx, v.(int64))
}

func (s *LotteryService) ledgerID(ctx context.Context) (int64, error) {
	all, err := s.ledger.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("load lottery ledger: %w", err)
	}
	if len(all) > 0 {
		return all[0].ID, nil
	}
	l := core.NewLottery()
	id, err := s.ledger.Create(ctx, l)
	if err != nil {
		return 0, fmt.Errorf("create lottery ledger: %w", err)
	}
	slog.InfoContext(ctx, "Lottery ledger created", "record_id", id)
	s.sync.changed(ctx, storage.Lottery, id)
	return id, nil
}

func (s *LotteryService) RegisterBet(ctx context.Context, amount decimal.Decimal, description string) (core.LotteryEntry, error) {
	return s.register(ctx, core.EntryBet, func(l *core.Lottery) (core.LotteryEntry, error) {
		return l.RegisterBet(amount, description, s.now())
	})
}

func (s *LotteryService) RegisterPrize(ctx context.Context, amount decimal.Decimal, description string) (core.LotteryEntry, error) {
	return s.register(ctx, core.EntryPrize, func(l *core.Lottery) (core.LotteryEntry, error) {
		return l.RegisterPrize(amount, description, s.now())
	})
}

func (s *LotteryService) register(ctx context.Context, kind core.EntryKind, fn func(*core.Lottery) (core.LotteryEntry, error)) (core.LotteryEntry, error) {
	l, err := s.Ledger(ctx)
	if err != nil {
		return core.LotteryEntry{}, err
	}
	e, err := fn(l)
	if err != nil {
		return core.LotteryEntry{}, err
	}
	if err := s.ledger.Update(ctx, l); err != nil {
		return core.LotteryEntry{}, fmt.Errorf("save lottery %s: %w", kind, err)
	}
	slog.InfoContext(ctx, "Lottery entry registered", "kind", kind, "amount", e.Amount.StringFixed(2))
	s.sync.changed(ctx, storage.Lottery, l.ID)
	return e, nil
}

func (s *LotteryService) Stats(ctx context.Context) (core.LotteryStats, error) {
	l, err := s.Ledger(ctx)
	if err != nil {
		return core.LotteryStats{}, err
	}
	return l.Stats(s.rate), nil
}

func (s *LotteryService) StatsInRange(ctx context.Context, from, to time.Time) (core.LotteryStats, error) {
	l, err := s.Ledger(ctx)
	if err != nil {
		return core.LotteryStats{}, err
	}
	return l.StatsInRange(from, to, s.rate), nil
}

func (s *LotteryService) History(ctx context.Context, limit int) ([]core.HistoryItem, error) {
	l, err := s.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	return l.History(limit), nil
}
