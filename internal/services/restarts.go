package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

// Restart pairs a completed goal with the successor spawned for its next cycle.
type Restart struct {
	Completed *core.Goal
	Successor *core.Goal
}

// RestartReconciler spawns successor cycles for goals whose scheduled restart
// has come due. Work on the same goal is collapsed with singleflight and the
// schedule is cleared before the successor is created, so a goal never
// spawns two successors.
type RestartReconciler struct {
	goals *storage.Repository[core.Goal, *core.Goal]
	sync  notifier
	now   Clock

	group singleflight.Group
}

func NewRestartReconciler(store storage.DocumentStore, opts Options) *RestartReconciler {
	opts = opts.withDefaults()
	return &RestartReconciler{
		goals: storage.NewRepository[core.Goal](store, storage.Goals),
		sync:  notifier{opts.Publisher},
		now:   opts.Clock,
	}
}

// Run resolves every due restart and returns the successors it spawned.
// Concurrent calls share one pass.
func (r *RestartReconciler) Run(ctx context.Context) ([]Restart, error) {
	v, err, _ := r.group.Do("all", func() (any, error) {
		return r.resolveAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Restart), nil
}

func (r *RestartReconciler) resolveAll(ctx context.Context) ([]Restart, error) {
	goals, err := r.goals.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load goals for restart: %w", err)
	}
	now := r.now()

	var out []Restart
	for _, g := range goals {
		if !g.RestartDue(now) {
			continue
		}
		rs, err := r.Resolve(ctx, g.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to restart goal cycle", "goal_id", g.ID, "error", err)
			continue
		}
		if rs != nil {
			out = append(out, *rs)
		}
	}
	if len(out) > 0 {
		slog.InfoContext(ctx, "Scheduled goal restarts resolved", "count", len(out))
	}
	return out, nil
}

// Resolve restarts a single goal if its schedule is due. It returns nil when
// there was nothing to do.
func (r *RestartReconciler) Resolve(ctx context.Context, goalID int64) (*Restart, error) {
	v, err, _ := r.group.Do("goal:"+strconv.FormatInt(goalID, 10), func() (any, error) {
		return r.resolve(ctx, goalID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Restart), nil
}

func (r *RestartReconciler) resolve(ctx context.Context, goalID int64) (*Restart, error) {
	g, err := r.goals.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}
	now := r.now()
	if !g.RestartDue(now) {
		return nil, nil
	}
	at := *g.ScheduledRestartDate

	g.ScheduleRestart(nil)
	if err := r.goals.Update(ctx, g); err != nil {
		return nil, fmt.Errorf("clear restart schedule: %w", err)
	}

	next := g.NextCycle(at)
	if _, err := r.goals.Create(ctx, next); err != nil {
		// Put the schedule back so a later pass retries.
		g.ScheduleRestart(&at)
		if uerr := r.goals.Update(ctx, g); uerr != nil {
			slog.ErrorContext(ctx, "Failed to restore restart schedule",
				"goal_id", goalID, "error", uerr)
		}
		return nil, fmt.Errorf("create next cycle: %w", err)
	}

	slog.InfoContext(ctx, "Goal cycle restarted",
		"goal_id", goalID,
		"successor_id", next.ID,
		"cycle", next.CycleNumber)
	r.sync.changed(ctx, storage.Goals, goalID)
	r.sync.changed(ctx, storage.Goals, next.ID)
	return &Restart{Completed: g, Successor: next}, nil
}
