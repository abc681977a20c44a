package backend

import (
	"context"

	"finanzas/internal/amqp"
	"finanzas/internal/cache"
	"finanzas/internal/config"
	"finanzas/internal/core"
	"finanzas/internal/services"
	"finanzas/internal/storage"
)

// App holds every service wired against one document store. Build it with
// a Factory; release it with Close.
type App struct {
	Store       storage.DocumentStore
	Publisher   *amqp.Client
	Preferences config.Preferences

	Persons  *services.PersonService
	Savings  *services.SavingService
	Debts    *services.DebtService
	Goals    *services.GoalService
	Lottery  *services.LotteryService
	History  *services.HistoryService
	Insights *services.InsightService
	Restarts *services.RestartReconciler

	// PersonCache is exposed so long-running processes can sweep it.
	PersonCache *cache.LRU[int64, core.Person]

	cleanup []CleanupFunc
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Factory creates apps based on configuration
type Factory interface {
	CreateApp(ctx context.Context, config Config) (*App, error)
}

// Config holds configuration for app creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Sync publishing (empty URL disables it)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	UserID       string

	Preferences config.Preferences
	// Clock overrides time.Now for every service.
	Clock services.Clock
}

// BackendType represents the type of document store
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
