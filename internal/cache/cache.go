package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cache is a keyed store of values that may be evicted at any time.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
	Purge()
	Len() int
}

// Cleaner is implemented by caches that can drop expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically sweeps expired entries out of registered caches.
type Janitor struct {
	mu      sync.Mutex
	caches  map[string]Cleaner
	stop    context.CancelFunc
	stopped chan struct{}
}

func NewJanitor() *Janitor {
	return &Janitor{caches: map[string]Cleaner{}}
}

// Register adds a named cache to the sweep.
func (j *Janitor) Register(name string, c Cleaner) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.caches[name] = c
}

// Start sweeps every interval until ctx is done or Stop is called.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	j.mu.Lock()
	j.stop = cancel
	j.stopped = stopped
	j.mu.Unlock()
	go j.run(ctx, interval, stopped)
}

func (j *Janitor) run(ctx context.Context, interval time.Duration, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep cleans every registered cache once and returns the number of evicted entries.
func (j *Janitor) Sweep(ctx context.Context) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	total := 0
	for name, c := range j.caches {
		if n := c.CleanExpired(); n > 0 {
			slog.DebugContext(ctx, "Expired cache entries removed", "cache", name, "count", n)
			total += n
		}
	}
	return total
}

// Stop ends the sweep loop and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	stop, stopped := j.stop, j.stopped
	j.stop = nil
	j.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-stopped
}
