// Package storage persists entities as JSON documents grouped in collections.
//
// Every write also appends an audit entry to the history log in the same
// transaction, and tracks whether the record still has to be pushed to the
// remote mirror.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"finanzas/internal/core"
)

const (
	Debts   Collection = "debts"
	Goals   Collection = "goals"
	Savings Collection = "savings"
	Lottery Collection = "lottery"
	Persons Collection = "persons"
)

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Collections lists every collection in a stable order.
var Collections = []Collection{Debts, Goals, Savings, Lottery, Persons}

type (
	Collection string
	Action     string

	Document struct {
		ID         int64
		Collection Collection
		Data       json.RawMessage
		SyncState  core.SyncState
		SyncError  string
		CreatedAt  time.Time
		UpdatedAt  time.Time
		SyncedAt   *time.Time
	}

	HistoryEntry struct {
		ID         int64
		Timestamp  time.Time
		Collection Collection
		EntityID   int64
		Action     Action
		OldValue   json.RawMessage
		NewValue   json.RawMessage
	}

	// HistoryFilter narrows a history query. Zero values match everything.
	HistoryFilter struct {
		Collection Collection
		EntityID   int64
		Action     Action
		From       time.Time
		To         time.Time
		Limit      int
	}

	// DocumentStore is the persistence contract shared by the SQLite and
	// in-memory backends. Get, Replace and Remove return core.ErrNotFound
	// for unknown ids.
	DocumentStore interface {
		All(ctx context.Context, c Collection) ([]Document, error)
		Get(ctx context.Context, c Collection, id int64) (Document, error)
		Insert(ctx context.Context, c Collection, data []byte) (Document, error)
		Replace(ctx context.Context, c Collection, id int64, data []byte) (Document, error)
		Remove(ctx context.Context, c Collection, id int64) error

		// Pending returns documents whose mirror is out of date, oldest first.
		Pending(ctx context.Context, c Collection, limit int) ([]Document, error)
		// MarkSynced flags a document as mirrored if it was not modified after version.
		MarkSynced(ctx context.Context, c Collection, id int64, version time.Time) error
		MarkSyncError(ctx context.Context, c Collection, id int64, msg string) error

		History(ctx context.Context, f HistoryFilter) ([]HistoryEntry, error)
		// PruneHistory deletes entries older than before and returns how many went.
		PruneHistory(ctx context.Context, before time.Time) (int64, error)

		Close() error
	}
)

func (c Collection) Valid() bool {
	for _, v := range Collections {
		if v == c {
			return true
		}
	}
	return false
}

// ParseCollection maps a name to a known collection.
func ParseCollection(s string) (Collection, bool) {
	c := Collection(s)
	return c, c.Valid()
}

// Matches reports whether e satisfies the filter, ignoring Limit.
func (f HistoryFilter) Matches(e HistoryEntry) bool {
	if f.Collection != "" && e.Collection != f.Collection {
		return false
	}
	if f.EntityID != 0 && e.EntityID != f.EntityID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}
