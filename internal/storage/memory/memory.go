// Package memory is a DocumentStore kept entirely in process memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	nextID  map[storage.Collection]int64
	docs    map[storage.Collection]map[int64]storage.Document
	history []storage.HistoryEntry
	seq     int64
}

var _ storage.DocumentStore = (*Store)(nil)

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock stamps documents and history entries with now.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:    now,
		nextID: map[storage.Collection]int64{},
		docs:   map[storage.Collection]map[int64]storage.Document{},
	}
}

func (s *Store) All(_ context.Context, c storage.Collection) ([]storage.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.Document, 0, len(s.docs[c]))
	for _, d := range s.docs[c] {
		out = append(out, clone(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Get(_ context.Context, c storage.Collection, id int64) (storage.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[c][id]
	if !ok {
		return storage.Document{}, core.ErrNotFound
	}
	return clone(d), nil
}

func (s *Store) Insert(_ context.Context, c storage.Collection, data []byte) (storage.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	s.nextID[c]++
	d := storage.Document{
		ID:         s.nextID[c],
		Collection: c,
		Data:       copyBytes(data),
		SyncState:  core.SyncLocal,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if s.docs[c] == nil {
		s.docs[c] = map[int64]storage.Document{}
	}
	s.docs[c][d.ID] = d
	s.record(now, c, d.ID, storage.ActionCreate, nil, data)
	return clone(d), nil
}

func (s *Store) Replace(_ context.Context, c storage.Collection, id int64, data []byte) (storage.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[c][id]
	if !ok {
		return storage.Document{}, core.ErrNotFound
	}
	now := s.now().UTC()
	old := d.Data
	d.Data = copyBytes(data)
	d.SyncState = core.SyncPending
	d.SyncError = ""
	d.UpdatedAt = now
	s.docs[c][id] = d
	s.record(now, c, id, storage.ActionUpdate, old, data)
	return clone(d), nil
}

func (s *Store) Remove(_ context.Context, c storage.Collection, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[c][id]
	if !ok {
		return core.ErrNotFound
	}
	delete(s.docs[c], id)
	s.record(s.now().UTC(), c, id, storage.ActionDelete, d.Data, nil)
	return nil
}

func (s *Store) Pending(_ context.Context, c storage.Collection, limit int) ([]storage.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.Document
	for _, d := range s.docs[c] {
		if d.SyncState != core.SyncSynced {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, c storage.Collection, id int64, version time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[c][id]
	if !ok || !d.UpdatedAt.Equal(version) {
		return nil
	}
	now := s.now().UTC()
	d.SyncState = core.SyncSynced
	d.SyncError = ""
	d.SyncedAt = &now
	s.docs[c][id] = d
	return nil
}

func (s *Store) MarkSyncError(_ context.Context, c storage.Collection, id int64, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[c][id]
	if !ok {
		return core.ErrNotFound
	}
	d.SyncState = core.SyncError
	d.SyncError = msg
	s.docs[c][id] = d
	return nil
}

func (s *Store) History(_ context.Context, f storage.HistoryFilter) ([]storage.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.HistoryEntry
	for i := len(s.history) - 1; i >= 0; i-- {
		e := s.history[i]
		if !f.Matches(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) PruneHistory(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.history[:0]
	var pruned int64
	for _, e := range s.history {
		if e.Timestamp.Before(before) {
			pruned++
			continue
		}
		kept = append(kept, e)
	}
	s.history = kept
	return pruned, nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) record(ts time.Time, c storage.Collection, id int64, a storage.Action, oldValue, newValue []byte) {
	s.seq++
	s.history = append(s.history, storage.HistoryEntry{
		ID:         s.seq,
		Timestamp:  ts,
		Collection: c,
		EntityID:   id,
		Action:     a,
		OldValue:   copyBytes(oldValue),
		NewValue:   copyBytes(newValue),
	})
}

func clone(d storage.Document) storage.Document {
	d.Data = copyBytes(d.Data)
	if d.SyncedAt != nil {
		t := *d.SyncedAt
		d.SyncedAt = &t
	}
	return d
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
