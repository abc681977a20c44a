package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"finanzas/internal/sheets"
)

type key struct {
	collection string
	localID    int64
	userID     string
}

// Mirror keeps mirrored rows in memory. It backs tests and runs where no
// spreadsheet is configured.
type Mirror struct {
	mu      sync.Mutex
	rows    map[key]sheets.Record
	refs    map[key]int
	next    int
	deletes int
}

var _ sheets.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{rows: map[key]sheets.Record{}, refs: map[key]int{}}
}

// Upsert stores the record and returns a synthetic row reference that stays
// stable for the same key.
func (m *Mirror) Upsert(_ context.Context, r sheets.Record) (string, error) {
	if r.Collection == "" || r.LocalID == 0 {
		return "", fmt.Errorf("mirror record needs collection and local id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{r.Collection, r.LocalID, r.UserID}
	ref, ok := m.refs[k]
	if !ok {
		m.next++
		ref = m.next
		m.refs[k] = ref
	}
	r.Data = append([]byte(nil), r.Data...)
	m.rows[k] = r
	return fmt.Sprintf("mem:%d", ref), nil
}

func (m *Mirror) Delete(_ context.Context, collection string, localID int64, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{collection, localID, userID}
	if _, ok := m.rows[k]; ok {
		delete(m.rows, k)
		m.deletes++
	}
	return nil
}

// Get returns the mirrored row for the key.
func (m *Mirror) Get(collection string, localID int64, userID string) (sheets.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[key{collection, localID, userID}]
	return r, ok
}

// Records returns all rows ordered by collection and id.
func (m *Mirror) Records() []sheets.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sheets.Record, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Collection != out[j].Collection {
			return out[i].Collection < out[j].Collection
		}
		return out[i].LocalID < out[j].LocalID
	})
	return out
}

func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
