package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finanzas/internal/storage"
)

// HistoryService reads and prunes the audit log.
type HistoryService struct {
	store     storage.DocumentStore
	retention time.Duration
	now       Clock
}

func NewHistoryService(store storage.DocumentStore, opts Options) *HistoryService {
	opts = opts.withDefaults()
	return &HistoryService{
		store:     store,
		retention: time.Duration(opts.Preferences.HistoryRetentionDays) * 24 * time.Hour,
		now:       opts.Clock,
	}
}

func (s *HistoryService) Query(ctx context.Context, f storage.HistoryFilter) ([]storage.HistoryEntry, error) {
	if f.Collection != "" && !f.Collection.Valid() {
		return nil, fmt.Errorf("unknown collection %q", f.Collection)
	}
	return s.store.History(ctx, f)
}

// Prune drops entries older than the retention window. A non-positive
// retention keeps everything.
func (s *HistoryService) Prune(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	before := s.now().Add(-s.retention)
	n, err := s.store.PruneHistory(ctx, before)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "History pruned", "count", n, "before", before.Format(time.RFC3339))
	return n, nil
}
