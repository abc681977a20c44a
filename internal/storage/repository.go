package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"finanzas/internal/core"
)

// Entity is satisfied by pointers to core entities embedding core.Record.
type Entity[T any] interface {
	*T
	Meta() *core.Record
}

type validator interface {
	Validate() error
}

// Repository is a typed create/get/update/delete view over one collection.
type Repository[T any, PT Entity[T]] struct {
	store      DocumentStore
	collection Collection
}

func NewRepository[T any, PT Entity[T]](store DocumentStore, c Collection) *Repository[T, PT] {
	return &Repository[T, PT]{store: store, collection: c}
}

func (r *Repository[T, PT]) Collection() Collection {
	return r.collection
}

func (r *Repository[T, PT]) All(ctx context.Context) ([]PT, error) {
	docs, err := r.store.All(ctx, r.collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.collection, err)
	}
	out := make([]PT, 0, len(docs))
	for _, d := range docs {
		e, err := r.decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Repository[T, PT]) Get(ctx context.Context, id int64) (PT, error) {
	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return nil, fmt.Errorf("get %s %d: %w", r.collection, id, err)
	}
	return r.decode(doc)
}

// Create validates and inserts e, filling its id and sync metadata.
func (r *Repository[T, PT]) Create(ctx context.Context, e PT) (int64, error) {
	if err := validate(e); err != nil {
		return 0, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", r.collection, err)
	}
	doc, err := r.store.Insert(ctx, r.collection, data)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", r.collection, err)
	}
	fill(e.Meta(), doc)
	return doc.ID, nil
}

// Update validates and replaces the stored document of e.
func (r *Repository[T, PT]) Update(ctx context.Context, e PT) error {
	m := e.Meta()
	if m.ID == 0 {
		return fmt.Errorf("update %s without id: %w", r.collection, core.ErrNotFound)
	}
	if err := validate(e); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.collection, err)
	}
	doc, err := r.store.Replace(ctx, r.collection, m.ID, data)
	if err != nil {
		return fmt.Errorf("replace %s %d: %w", r.collection, m.ID, err)
	}
	fill(m, doc)
	return nil
}

func (r *Repository[T, PT]) Delete(ctx context.Context, id int64) error {
	if err := r.store.Remove(ctx, r.collection, id); err != nil {
		return fmt.Errorf("delete %s %d: %w", r.collection, id, err)
	}
	return nil
}

func (r *Repository[T, PT]) decode(d Document) (PT, error) {
	var v T
	e := PT(&v)
	if err := json.Unmarshal(d.Data, e); err != nil {
		return nil, fmt.Errorf("decode %s %d: %w", r.collection, d.ID, err)
	}
	fill(e.Meta(), d)
	return e, nil
}

func validate(e any) error {
	if v, ok := e.(validator); ok {
		return v.Validate()
	}
	return nil
}

func fill(m *core.Record, d Document) {
	m.ID = d.ID
	m.SyncState = d.SyncState
	m.UpdatedAt = d.UpdatedAt
}
