package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/sheets"
	"finanzas/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to sweep for unsynced records (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of records per collection per sweep (default: 25)
	BatchSize int

	// UserID keys the mirrored rows.
	UserID string
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    25,
		UserID:       "local",
	}
}

// SyncProcessor pushes stored records to the remote mirror. It serves single
// records announced over messaging and periodically sweeps every collection
// for records still marked local, pending or error.
type SyncProcessor struct {
	store  storage.DocumentStore
	mirror sheets.Mirror
	config SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(store storage.DocumentStore, mirror sheets.Mirror, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{
		store:  store,
		mirror: mirror,
		config: config,
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Sweep immediately on startup
	p.Sweep(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep pushes one batch of unsynced records per collection and returns how
// many were mirrored.
func (p *SyncProcessor) Sweep(ctx context.Context) int {
	synced := 0
	for _, c := range storage.Collections {
		docs, err := p.store.Pending(ctx, c, p.config.BatchSize)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load pending records", "collection", c, "error", err)
			continue
		}
		if len(docs) == 0 {
			continue
		}
		slog.DebugContext(ctx, "Processing sync batch", "collection", c, "count", len(docs))

		for _, doc := range docs {
			if p.stopping(ctx) {
				return synced
			}
			if err := p.push(ctx, doc); err != nil {
				p.handleFailure(ctx, doc, err)
				continue
			}
			synced++
		}
	}
	return synced
}

func (p *SyncProcessor) stopping(ctx context.Context) bool {
	select {
	case <-p.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// SyncRecord mirrors a single record. A record deleted since it was announced
// is skipped.
func (p *SyncProcessor) SyncRecord(ctx context.Context, c storage.Collection, id int64) error {
	doc, err := p.store.Get(ctx, c, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.DebugContext(ctx, "Record gone before sync, skipping", "collection", c, "record_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get %s %d: %w", c, id, err)
	}
	if err := p.push(ctx, doc); err != nil {
		p.handleFailure(ctx, doc, err)
		return err
	}
	return nil
}

// DeleteRecord removes a record from the mirror.
func (p *SyncProcessor) DeleteRecord(ctx context.Context, c storage.Collection, id int64) error {
	if err := p.mirror.Delete(ctx, string(c), id, p.config.UserID); err != nil {
		return fmt.Errorf("delete from mirror: %w", err)
	}
	slog.InfoContext(ctx, "Deleted record from mirror", "collection", c, "record_id", id)
	return nil
}

func (p *SyncProcessor) push(ctx context.Context, doc storage.Document) error {
	ref, err := p.mirror.Upsert(ctx, sheets.Record{
		Collection: string(doc.Collection),
		LocalID:    doc.ID,
		UserID:     p.config.UserID,
		UpdatedAt:  doc.UpdatedAt,
		Data:       doc.Data,
	})
	if err != nil {
		return fmt.Errorf("upsert to mirror: %w", err)
	}

	// A write that landed after the read keeps the record pending for the next sweep.
	if err := p.store.MarkSynced(ctx, doc.Collection, doc.ID, doc.UpdatedAt); err != nil {
		slog.WarnContext(ctx, "Failed to mark record as synced",
			"collection", doc.Collection, "record_id", doc.ID, "error", err)
	}

	slog.InfoContext(ctx, "Synced record to mirror",
		"collection", doc.Collection,
		"record_id", doc.ID,
		"sheets_ref", ref)
	return nil
}

func (p *SyncProcessor) handleFailure(ctx context.Context, doc storage.Document, processErr error) {
	slog.WarnContext(ctx, "Sync processing failed",
		"collection", doc.Collection,
		"record_id", doc.ID,
		"error", processErr)

	if err := p.store.MarkSyncError(ctx, doc.Collection, doc.ID, processErr.Error()); err != nil {
		slog.ErrorContext(ctx, "Failed to mark record sync error",
			"collection", doc.Collection, "record_id", doc.ID, "error", err)
	}
}
