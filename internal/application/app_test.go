package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/planwright/planwright/internal/infrastructure/config"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: 0,
			Mode: "release",
		},
		Database: config.DatabaseConfig{Type: "memory"},
		LLM:      config.LLMConfig{DefaultProvider: "openai"},
		Planner:  config.PlannerConfig{Model: "gpt-4o"},
		Orchestrator: config.OrchestratorConfig{
			TickInterval: time.Hour,
		},
		EventBus: config.EventBusConfig{BufferSize: 16},
	}
}

func TestAppStartReturnsWithPricingOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.yaml")
	body := []byte("providers:\n  openai:\n    models:\n      gpt-4o: {input_per_mtok: 1.0, output_per_mtok: 2.0}\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write overrides: %v", err)
	}

	cfg := testConfig(t)
	cfg.LLM.PricingOverrides = path

	app, err := NewApp(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}

	ctx := context.Background()
	started := make(chan error, 1)
	go func() {
		started <- app.Start(ctx)
	}()

	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("Start() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return, a component blocked the startup path")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
}

func TestAppStartWithoutPricingOverrides(t *testing.T) {
	app, err := NewApp(testConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}

	ctx := context.Background()
	started := make(chan error, 1)
	go func() {
		started <- app.Start(ctx)
	}()

	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("Start() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
}
