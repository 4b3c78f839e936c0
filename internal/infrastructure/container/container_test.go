package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"xbasis/internal/domain/model"
	"xbasis/internal/infrastructure/config"
)

func TestNewWithoutStorage(t *testing.T) {
	c, err := New(config.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if c.MarketSource() == nil {
		t.Fatal("market source not wired")
	}
	if len(c.Relays()) != 0 {
		t.Errorf("expected no relays, got %d", len(c.Relays()))
	}
	if c.Recorder() != nil {
		t.Error("expected nil recorder without storage")
	}
}

func TestNewWithSQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Enabled = true
	cfg.Storage.SQLite.Enabled = true
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "xbasis.db")

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := c.Recorder()
	if rec == nil {
		t.Fatal("expected recorder")
	}
	if err := rec.RecordCycle(context.Background(), model.CycleRecord{StartedAt: time.Now(), Results: 3}); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}
	got, err := c.SQLiteRepo().RecentCycles(context.Background(), 1)
	if err != nil || len(got) != 1 || got[0].Results != 3 {
		t.Fatalf("RecentCycles = %+v, %v", got, err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// second close is a no-op
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestNewFailsOnUnreachableRedis(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Enabled = true
	cfg.Storage.Redis.Enabled = true
	cfg.Storage.Redis.Addr = "127.0.0.1:1"

	if _, err := New(cfg); err == nil {
		t.Fatal("expected redis init error")
	}
}
