package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finanzas/internal/config"
	"finanzas/internal/core"
)

func TestBackendType_IsValid(t *testing.T) {
	tests := []struct {
		in   BackendType
		want bool
	}{
		{SQLiteBackend, true},
		{MemoryBackend, true},
		{"sheets", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.in.IsValid(); got != tt.want {
			t.Errorf("%q.IsValid() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://localhost", AMQPExchange: "x"}, true},
		{"amqp without user", Config{Type: MemoryBackend, AMQPURL: "amqp://localhost", AMQPExchange: "x", AMQPQueue: "q"}, true},
		{"amqp", Config{Type: MemoryBackend, AMQPURL: "amqp://localhost", AMQPExchange: "x", AMQPQueue: "q", UserID: "ana"}, false},
		{"unknown", Config{Type: "postgres"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil, config.DefaultPreferences()); err == nil {
		t.Error("expected error for nil config")
	}

	app := &config.Config{DataBackend: "memory", UserID: "ana", AMQPExchange: "finanzas", AMQPQueue: "sync"}
	cfg, err := FromAppConfig(app, config.DefaultPreferences())
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != MemoryBackend || cfg.UserID != "ana" || cfg.AMQPQueue != "sync" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	app.DataBackend = " SQLite "
	if cfg, err := FromAppConfig(app, config.DefaultPreferences()); err != nil || cfg.Type != SQLiteBackend {
		t.Errorf("expected case-insensitive backend name, got %v %v", cfg.Type, err)
	}

	app.DataBackend = "sheets"
	if _, err := FromAppConfig(app, config.DefaultPreferences()); err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestCreateApp_Memory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	app, err := NewFactory(nil).CreateApp(ctx, Config{
		Type:        MemoryBackend,
		Preferences: config.DefaultPreferences(),
		Clock:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("CreateApp: %v", err)
	}
	defer app.Close()

	if app.Publisher != nil {
		t.Error("publisher should be nil without AMQP URL")
	}

	id, err := app.Debts.Create(ctx, core.NewDebt("Tarjeta", decimal.NewFromInt(500), core.Payable, now))
	if err != nil {
		t.Fatalf("create debt: %v", err)
	}
	res, err := app.Debts.AddPayment(ctx, id, decimal.NewFromInt(600), "")
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if res.OverflowTransfer == nil || res.OverflowTransfer.SavingName != config.DefaultPreferences().DefaultSavingsName {
		t.Fatalf("expected overflow into default fund, got %+v", res)
	}
}

func TestCreateApp_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "finanzas.db")
	app, err := NewFactory(nil).CreateApp(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: path,
		Preferences:  config.DefaultPreferences(),
	})
	if err != nil {
		t.Fatalf("CreateApp: %v", err)
	}
	if _, err := app.Lottery.RegisterBet(ctx, decimal.NewFromInt(20), ""); err != nil {
		t.Fatalf("bet: %v", err)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}
