package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finanzas/internal/amqp"
	"finanzas/internal/services"
	"finanzas/internal/storage"
)

// RecordSyncer is the part of services.SyncProcessor the worker drives.
type RecordSyncer interface {
	SyncRecord(ctx context.Context, c storage.Collection, id int64) error
	DeleteRecord(ctx context.Context, c storage.Collection, id int64) error
	Sweep(ctx context.Context) int
}

var _ RecordSyncer = (*services.SyncProcessor)(nil)

// SyncWorker turns AMQP record sync messages into mirror writes.
type SyncWorker struct {
	syncer RecordSyncer
	userID string
}

func NewSyncWorker(syncer RecordSyncer, userID string) *SyncWorker {
	return &SyncWorker{syncer: syncer, userID: userID}
}

// HandleMessage processes one message. Messages for other users or unknown
// collections are dropped; a returned error requeues the message.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	if msg.UserID != "" && msg.UserID != w.userID {
		slog.WarnContext(ctx, "Ignoring sync message for another user",
			"message_id", msg.MessageID,
			"user_id", msg.UserID)
		return nil
	}
	c, ok := storage.ParseCollection(msg.Collection)
	if !ok {
		slog.WarnContext(ctx, "Ignoring sync message for unknown collection",
			"message_id", msg.MessageID,
			"collection", msg.Collection)
		return nil
	}

	switch msg.Operation {
	case amqp.OpDelete:
		if err := w.syncer.DeleteRecord(ctx, c, msg.ID); err != nil {
			return fmt.Errorf("delete %s/%d from mirror: %w", c, msg.ID, err)
		}
	default:
		if err := w.syncer.SyncRecord(ctx, c, msg.ID); err != nil {
			return fmt.Errorf("sync %s/%d to mirror: %w", c, msg.ID, err)
		}
	}
	return nil
}

// StartupSyncCheck pushes anything left unsynced while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) int {
	n := w.syncer.Sweep(ctx)
	if n == 0 {
		slog.InfoContext(ctx, "No pending records found on startup")
	} else {
		slog.InfoContext(ctx, "Startup sync completed", "synced", n)
	}
	return n
}
