package application

import (
	"context"
	"fmt"

	"github.com/planwright/planwright/internal/application/usecase"
	"github.com/planwright/planwright/internal/domain/repository"
	"github.com/planwright/planwright/internal/domain/service"
	"github.com/planwright/planwright/internal/infrastructure/config"
	"github.com/planwright/planwright/internal/infrastructure/eventbus"
	"github.com/planwright/planwright/internal/infrastructure/llm"
	_ "github.com/planwright/planwright/internal/infrastructure/llm/anthropic" // register anthropic provider factory
	_ "github.com/planwright/planwright/internal/infrastructure/llm/gemini"    // register gemini provider factory
	_ "github.com/planwright/planwright/internal/infrastructure/llm/openai"    // register openai provider factory
	"github.com/planwright/planwright/internal/infrastructure/persistence"
	httpServer "github.com/planwright/planwright/internal/interfaces/http"
	ws "github.com/planwright/planwright/internal/interfaces/websocket"
	"github.com/planwright/planwright/pkg/safego"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the dependency-injection container: it wires repositories,
// the LLM gateway, domain services, and the interface layer.
type App struct {
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB

	// Repositories
	agentRepo   repository.AgentRepository
	planRepo    repository.PlanRepository
	requestRepo repository.RequestLogRepository

	// Infrastructure
	bus            *eventbus.InMemoryBus
	notifier       *eventbus.BusNotifier
	pricing        *llm.PricingTable
	pricingWatcher *llm.PricingWatcher
	recorder       *llm.Recorder
	gateway        *llm.Gateway

	// Domain services
	planner      *service.Planner
	lifecycle    *service.Lifecycle
	queue        *service.GenerationQueue
	orchestrator *service.Orchestrator

	// Application services
	agentUseCase *usecase.AgentUseCase

	// Interfaces
	hub        *ws.Hub
	httpServer *httpServer.Server
	hubCancel  context.CancelFunc
}

// NewApp creates the application container.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		config: cfg,
		logger: logger,
	}

	if err := app.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := app.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}

	app.initDomainServices()
	app.initApplicationServices()
	app.initInterfaces()

	return app, nil
}

func (app *App) initRepositories() error {
	app.logger.Info("Initializing repositories",
		zap.String("database", app.config.Database.Type),
	)

	if app.config.Database.Type == "memory" {
		app.agentRepo = persistence.NewMemoryAgentRepository()
		app.planRepo = persistence.NewMemoryPlanRepository()
		app.requestRepo = persistence.NewMemoryRequestLogRepository()
		return nil
	}

	db, err := persistence.NewDBConnection(&app.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.db = db

	app.agentRepo = persistence.NewGormAgentRepository(db)
	app.planRepo = persistence.NewGormPlanRepository(db)
	app.requestRepo = persistence.NewGormRequestLogRepository(db)
	return nil
}

func (app *App) initInfrastructure() error {
	app.logger.Info("Initializing infrastructure")

	app.bus = eventbus.NewInMemoryBus(app.logger, app.config.EventBus.BufferSize)
	app.notifier = eventbus.NewBusNotifier(app.bus, app.logger)

	app.pricing = llm.NewPricingTable(app.logger)
	if path := app.config.LLM.PricingOverrides; path != "" {
		watcher, err := llm.NewPricingWatcher(path, app.pricing, app.logger)
		if err != nil {
			app.logger.Warn("Pricing overrides watcher unavailable",
				zap.String("path", path),
				zap.Error(err),
			)
		} else {
			app.pricingWatcher = watcher
		}
	}

	app.recorder = llm.NewRecorder(app.requestRepo, app.logger)
	app.gateway = llm.NewGateway(app.config.LLM.DefaultProvider, app.pricing, app.recorder, app.logger)

	for _, p := range app.config.LLM.Providers {
		provider, err := llm.CreateProvider(llm.ProviderConfig{
			Name:         p.Name,
			Type:         p.Type,
			BaseURL:      p.BaseURL,
			APIKey:       p.APIKey,
			Models:       p.Models,
			DefaultModel: p.DefaultModel,
		}, app.logger)
		if err != nil {
			app.logger.Error("Failed to create provider",
				zap.String("name", p.Name),
				zap.String("type", p.Type),
				zap.Error(err),
			)
			continue
		}
		app.gateway.AddProvider(provider)
	}

	if app.config.Executor.BaseURL != "" {
		executor := llm.NewHTTPToolExecutor(app.config.Executor.BaseURL, app.config.Executor.Timeout, app.logger)
		app.gateway.SetExecutor(context.Background(), executor)
	}

	return nil
}

func (app *App) initDomainServices() {
	app.logger.Info("Initializing domain services")

	app.planner = service.NewPlanner(app.gateway, service.PlannerConfig{
		Model:       app.config.Planner.Model,
		Temperature: app.config.Planner.Temperature,
		MaxTokens:   app.config.Planner.MaxTokens,
	}, app.logger)

	app.lifecycle = service.NewLifecycle(
		app.agentRepo,
		app.planRepo,
		app.planner,
		app.gateway,
		app.notifier,
		app.config.Executor.Model,
		app.logger,
	)

	app.queue = service.NewGenerationQueue()
	app.orchestrator = service.NewOrchestrator(
		app.agentRepo,
		app.planRepo,
		app.lifecycle,
		app.queue,
		app.notifier,
		app.config.Orchestrator.TickInterval,
		app.logger,
	)
}

func (app *App) initApplicationServices() {
	app.agentUseCase = usecase.NewAgentUseCase(
		app.agentRepo,
		app.planRepo,
		app.requestRepo,
		app.lifecycle,
		app.queue,
		app.logger,
	)
}

func (app *App) initInterfaces() {
	app.hub = ws.NewHub(app.logger)
	app.notifier.Attach(app.hub)

	app.httpServer = httpServer.NewServer(httpServer.Config{
		Host: app.config.Server.Host,
		Port: app.config.Server.Port,
		Mode: app.config.Server.Mode,
	}, app.agentUseCase, app.hub, app.logger)
}

// Start brings the hub, orchestrator, pricing watcher, and HTTP server
// up.
func (app *App) Start(ctx context.Context) error {
	hubCtx, cancel := context.WithCancel(context.Background())
	app.hubCancel = cancel
	safego.Go(app.logger, "ws-hub", func() {
		app.hub.Run(hubCtx)
	})

	if app.pricingWatcher != nil {
		app.pricingWatcher.Start()
	}
	app.orchestrator.Start()

	return app.httpServer.Start(ctx)
}

// Stop shuts everything down in reverse order.
func (app *App) Stop(ctx context.Context) error {
	err := app.httpServer.Stop(ctx)

	app.orchestrator.Stop()
	if app.pricingWatcher != nil {
		app.pricingWatcher.Stop()
	}
	if app.hubCancel != nil {
		app.hubCancel()
	}
	app.bus.Close()

	app.logger.Info("Application stopped")
	return err
}

// UseCase exposes the application facade (used by tests and the CLI).
func (app *App) UseCase() *usecase.AgentUseCase {
	return app.agentUseCase
}
