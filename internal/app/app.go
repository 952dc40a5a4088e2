// Package app wires configuration into a ready pipeline.
// It serves as dependency injection for the server and CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/raphaelgruber/rxrag/internal/config"
	"github.com/raphaelgruber/rxrag/internal/db"
	"github.com/raphaelgruber/rxrag/internal/drug"
	"github.com/raphaelgruber/rxrag/internal/fhir"
	"github.com/raphaelgruber/rxrag/internal/llm"
	"github.com/raphaelgruber/rxrag/internal/memory"
	"github.com/raphaelgruber/rxrag/internal/metrics"
	"github.com/raphaelgruber/rxrag/internal/router"
	"github.com/raphaelgruber/rxrag/internal/service"
)

// ModelFactory builds a generation model. Tests swap it for a fake.
type ModelFactory func(ctx context.Context, cfg config.Config, mc *metrics.Collector) (Model, error)

// Model is what the pipeline needs from a generation backend.
type Model interface {
	router.Classifier
	service.Generator
}

// DefaultModelFactory builds langchaingo-backed models.
func DefaultModelFactory(ctx context.Context, cfg config.Config, mc *metrics.Collector) (Model, error) {
	m, err := llm.NewModel(ctx, cfg, mc)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// App holds the pipeline's collaborators. LLM models are created on
// first use so catalog and record commands work without a provider.
type App struct {
	cfg       config.Config
	logger    *slog.Logger
	metrics   *metrics.Collector
	db        *db.Client
	records   *fhir.DirSource
	matcher   *drug.Matcher
	knowledge *drug.KnowledgeCache
	sessions  *memory.Registry
	newModel  ModelFactory

	mu        sync.Mutex
	assistant *service.Assistant
}

// Option customizes an App.
type Option func(*App)

// WithModelFactory replaces the LLM model constructor.
func WithModelFactory(f ModelFactory) Option {
	return func(a *App) { a.newModel = f }
}

// New opens the catalog and prepares every non-LLM component.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// Create metrics collector for runtime statistics
	mc := metrics.NewCollector()

	dbClient, err := db.NewClient(ctx, db.Config{Path: cfg.DrugDBPath}, logger, mc)
	if err != nil {
		return nil, err
	}
	if err := dbClient.InitSchema(ctx); err != nil {
		dbClient.Close()
		return nil, err
	}

	knowledge, err := drug.NewKnowledgeCache(dbClient, cfg.CacheSize, mc, logger)
	if err != nil {
		dbClient.Close()
		return nil, fmt.Errorf("create knowledge cache: %w", err)
	}

	a := &App{
		cfg:       cfg,
		logger:    logger,
		metrics:   mc,
		db:        dbClient,
		records:   fhir.NewDirSource(cfg.FHIRDataDir),
		matcher:   drug.NewMatcher(dbClient, logger),
		knowledge: knowledge,
		sessions:  memory.NewRegistry(cfg.MaxSessions, cfg.SessionTTL, logger),
		newModel:  DefaultModelFactory,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Assistant returns the pipeline, creating the LLM models on first call.
func (a *App) Assistant(ctx context.Context) (*service.Assistant, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.assistant != nil {
		return a.assistant, nil
	}

	answerModel, err := a.newModel(ctx, a.cfg, a.metrics)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}
	routerModel := answerModel
	if a.cfg.RouterModel != "" && a.cfg.RouterModel != a.cfg.LLMModel {
		routerModel, err = a.newModel(ctx, a.cfg.WithModel(a.cfg.RouterModel), a.metrics)
		if err != nil {
			return nil, fmt.Errorf("init router model: %w", err)
		}
	}

	a.assistant = service.NewAssistant(service.Deps{
		Router:    router.New(routerModel, a.cfg.DefaultPatientID, a.logger, a.metrics),
		Records:   a.records,
		Matcher:   a.matcher,
		Knowledge: a.knowledge,
		Generator: answerModel,
		Sessions:  a.sessions,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})
	a.logger.Info("pipeline ready",
		"provider", a.cfg.LLMProvider,
		"model", a.cfg.LLMModel,
		"router_model", a.cfg.RouterModel,
		"records_dir", a.records.Dir(),
	)
	return a.assistant, nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// DB returns the catalog store.
func (a *App) DB() *db.Client { return a.db }

// Records returns the patient record source.
func (a *App) Records() *fhir.DirSource { return a.records }

// Matcher returns the medication matcher.
func (a *App) Matcher() *drug.Matcher { return a.matcher }

// Knowledge returns the knowledge cache.
func (a *App) Knowledge() *drug.KnowledgeCache { return a.knowledge }

// Metrics returns the runtime statistics collector.
func (a *App) Metrics() *metrics.Collector { return a.metrics }

// Close closes all connections.
func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// WipeData deletes all catalog data. Use for testing only.
func (a *App) WipeData(ctx context.Context) error {
	a.knowledge.Purge()
	return a.db.WipeData(ctx)
}
