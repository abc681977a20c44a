// Package services orchestrates entity mutations against the document store.
//
// Each operation loads an entity, applies the mutation, persists it and then
// runs any secondary cross-entity writes (overflow routing, annual-saving
// transfers, cycle restarts). Secondary steps are best-effort: their failure
// is logged and reported on the result, never returned as the operation error.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"finanzas/internal/config"
	"finanzas/internal/storage"
)

// Clock returns the current time. Tests inject a fixed one.
type Clock func() time.Time

// SyncPublisher announces persisted changes to the remote mirror pipeline.
type SyncPublisher interface {
	PublishRecordSync(ctx context.Context, collection string, id int64) error
	PublishRecordDelete(ctx context.Context, collection string, id int64) error
}

// Options carries the collaborators shared by every service.
type Options struct {
	Clock       Clock
	Publisher   SyncPublisher
	Preferences config.Preferences
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Preferences == (config.Preferences{}) {
		o.Preferences = config.DefaultPreferences()
	}
	return o
}

// Transfer describes money deposited into a savings fund as a side effect.
type Transfer struct {
	SavingID   int64
	SavingName string
	Amount     decimal.Decimal
	NewBalance decimal.Decimal
}

type notifier struct {
	pub SyncPublisher
}

func (n notifier) changed(ctx context.Context, c storage.Collection, id int64) {
	if n.pub == nil {
		return
	}
	if err := n.pub.PublishRecordSync(ctx, string(c), id); err != nil {
		slog.WarnContext(ctx, "Failed to publish sync message",
			"collection", c, "record_id", id, "error", err)
	}
}

func (n notifier) removed(ctx context.Context, c storage.Collection, id int64) {
	if n.pub == nil {
		return
	}
	if err := n.pub.PublishRecordDelete(ctx, string(c), id); err != nil {
		slog.WarnContext(ctx, "Failed to publish delete message",
			"collection", c, "record_id", id, "error", err)
	}
}
