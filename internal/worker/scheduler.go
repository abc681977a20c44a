package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"finanzas/internal/services"
)

// Reconciler resolves goal restarts whose date has arrived.
type Reconciler interface {
	ResolveScheduledRestarts(ctx context.Context) ([]services.Restart, error)
}

// Pruner drops audit history older than the retention window.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

// Scheduler runs maintenance jobs on cron schedules.
type Scheduler struct {
	cron *cron.Cron
	mu   sync.Mutex
	ctx  context.Context
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:  context.Background(),
	}
}

// AddReconcile registers scheduled-restart resolution at spec.
func (s *Scheduler) AddReconcile(spec string, r Reconciler) error {
	return s.add(spec, "reconcile", func(ctx context.Context) {
		restarts, err := r.ResolveScheduledRestarts(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Scheduled restart reconciliation failed", "error", err)
			return
		}
		if len(restarts) > 0 {
			slog.InfoContext(ctx, "Resolved scheduled goal restarts", "count", len(restarts))
		}
	})
}

// AddPrune registers history pruning at spec.
func (s *Scheduler) AddPrune(spec string, p Pruner) error {
	return s.add(spec, "prune", func(ctx context.Context) {
		n, err := p.Prune(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "History pruning failed", "error", err)
			return
		}
		slog.InfoContext(ctx, "Pruned history", "entries", n)
	})
}

func (s *Scheduler) add(spec, name string, job func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %s job %q: %w", name, spec, err)
	}
	return nil
}

// Start runs jobs with ctx until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	slog.InfoContext(ctx, "Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new runs and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
