package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"finanzas/internal/cache"
	"finanzas/internal/core"
	"finanzas/internal/storage"
)

// Directory resolves counterparties for debts.
type Directory interface {
	Get(ctx context.Context, id int64) (*core.Person, error)
}

// PersonService manages the counterparty directory. Lookups go through an
// optional cache that is invalidated on every write.
type PersonService struct {
	persons *storage.Repository[core.Person, *core.Person]
	debts   *storage.Repository[core.Debt, *core.Debt]
	cache   cache.Cache[int64, core.Person]
	sync    notifier
	now     Clock
}

var _ Directory = (*PersonService)(nil)

func NewPersonService(store storage.DocumentStore, c cache.Cache[int64, core.Person], opts Options) *PersonService {
	opts = opts.withDefaults()
	return &PersonService{
		persons: storage.NewRepository[core.Person](store, storage.Persons),
		debts:   storage.NewRepository[core.Debt](store, storage.Debts),
		cache:   c,
		sync:    notifier{opts.Publisher},
		now:     opts.Clock,
	}
}

func (s *PersonService) Create(ctx context.Context, p *core.Person) (int64, error) {
	p.Normalize()
	if p.CreationDate.IsZero() {
		p.CreationDate = s.now()
	}
	p.SyncState = core.SyncLocal
	id, err := s.persons.Create(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("create person: %w", err)
	}
	slog.InfoContext(ctx, "Person created", "person_id", id, "kind", p.Kind)
	s.sync.changed(ctx, storage.Persons, id)
	return id, nil
}

// Update saves p and refreshes the counterparty snapshot of every debt that
// references it. Snapshot refresh failures are logged.
func (s *PersonService) Update(ctx context.Context, p *core.Person) error {
	p.Normalize()
	p.Touch(s.now())
	if err := s.persons.Update(ctx, p); err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	s.forget(p.ID)
	s.sync.changed(ctx, storage.Persons, p.ID)

	debts, err := s.referencing(ctx, p.ID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load debts for snapshot refresh", "person_id", p.ID, "error", err)
		return nil
	}
	for _, d := range debts {
		d.AssignCounterparty(p)
		if err := s.debts.Update(ctx, d); err != nil {
			slog.WarnContext(ctx, "Failed to refresh counterparty snapshot",
				"person_id", p.ID, "debt_id", d.ID, "error", err)
			continue
		}
		s.sync.changed(ctx, storage.Debts, d.ID)
	}
	return nil
}

// Delete removes the person unless a debt still references it.
func (s *PersonService) Delete(ctx context.Context, id int64) error {
	debts, err := s.referencing(ctx, id)
	if err != nil {
		return fmt.Errorf("check person references: %w", err)
	}
	if n := len(debts); n > 0 {
		return fmt.Errorf("person %d is referenced by %d debts: %w", id, n, core.ErrInUse)
	}
	if err := s.persons.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	s.forget(id)
	slog.InfoContext(ctx, "Person deleted", "person_id", id)
	s.sync.removed(ctx, storage.Persons, id)
	return nil
}

func (s *PersonService) Get(ctx context.Context, id int64) (*core.Person, error) {
	if s.cache != nil {
		if p, ok := s.cache.Get(id); ok {
			return &p, nil
		}
	}
	p, err := s.persons.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(id, *p)
	}
	return p, nil
}

// List returns every person sorted by name.
func (s *PersonService) List(ctx context.Context) ([]*core.Person, error) {
	all, err := s.persons.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name)
	})
	return all, nil
}

func (s *PersonService) referencing(ctx context.Context, personID int64) ([]*core.Debt, error) {
	all, err := s.debts.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*core.Debt
	for _, d := range all {
		if d.CounterpartyID != nil && *d.CounterpartyID == personID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *PersonService) forget(id int64) {
	if s.cache != nil {
		s.cache.Delete(id)
	}
}
