package app

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/handlers"
	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/logs"
	"github.com/kaitorecca/guardian-redact/internal/review"
	"github.com/kaitorecca/guardian-redact/internal/services/analysis"
	"github.com/kaitorecca/guardian-redact/internal/services/events"
	"github.com/kaitorecca/guardian-redact/internal/services/llm"
	"github.com/kaitorecca/guardian-redact/internal/services/orchestrator"
	"github.com/kaitorecca/guardian-redact/internal/services/pdf"
	"github.com/kaitorecca/guardian-redact/internal/services/status"
	"github.com/kaitorecca/guardian-redact/internal/services/transport"
	"github.com/kaitorecca/guardian-redact/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService  interfaces.EventService
	StatusService *status.Service
	LogConsumer   *logs.Consumer // Log consumer for arbor context channel

	// Review state and processing
	Session       *review.Session
	Orchestrator  *orchestrator.Service
	Providers     *llm.ProviderFactory
	Documents     *analysis.DocumentAnalyzer
	Audio         *analysis.AudioAnalyzer
	Health        *analysis.HealthChecker
	Inspector     *pdf.Inspector
	Redactor      *pdf.Redactor
	Reports       *pdf.ReportService
	Transport     *transport.Service
	RenderSurface *handlers.EventSurface

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	StatusHandler   *handlers.StatusHandler
	DocumentHandler *handlers.DocumentHandler
	AudioHandler    *handlers.AudioHandler
	KVHandler       *handlers.KVHandler
	WSHandler       *handlers.WebSocketHandler
	EventSubscriber *handlers.EventSubscriber
}

// New wires the application: storage, events, log consumer, services, then handlers
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	eventService := events.NewService(app.Logger)
	if err := events.SubscribeLoggerToAllEvents(eventService, app.Logger); err != nil {
		return nil, err
	}
	app.EventService = eventService

	// Run logs carry the session id as correlation id; the consumer keeps and broadcasts them
	app.LogConsumer = logs.NewConsumer(
		app.EventService,
		app.Logger,
		cfg.Logging.MinEventLevel,
		cfg.Logging.Retention,
	)
	app.LogConsumer.Start()
	app.Logger.SetChannel("context", app.LogConsumer.GetChannel())

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("provider", string(cfg.LLM.DefaultProvider)).
		Str("profile", cfg.Review.DefaultProfile).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initDatabase() error {
	manager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.StorageManager = manager
	a.Logger.Debug().Str("path", a.Config.Storage.Badger.Path).Msg("Storage initialized")
	return nil
}

func (a *App) initServices() error {
	cfg := a.Config
	kvStorage := a.StorageManager.KeyValueStorage()

	a.StatusService = status.NewService(a.EventService, a.Logger)
	a.Session = review.NewSession(cfg.Review.OverlayPadding, a.EventService, a.Logger)

	a.Providers = llm.NewProviderFactory(&cfg.Gemini, &cfg.Claude, &cfg.LLM, kvStorage, a.Logger)

	a.Inspector = pdf.NewInspector("", a.Logger)
	a.Redactor = pdf.NewRedactor("", a.Logger)
	a.Reports = pdf.NewReportService(a.Logger)

	analysisModel := cfg.Gemini.Model
	if cfg.LLM.DefaultProvider == common.LLMProviderClaude {
		analysisModel = cfg.Claude.Model
	}
	a.Documents = analysis.NewDocumentAnalyzer(a.Inspector, a.Providers, analysisModel, a.Logger)
	// Transcription needs audio input, which only Gemini accepts
	a.Audio = analysis.NewAudioAnalyzer(a.Providers, cfg.Gemini.Model, analysisModel, a.Logger)
	a.Health = analysis.NewHealthChecker(cfg, kvStorage, a.Logger)

	transportService, err := transport.NewService(&cfg.Transport, a.StorageManager.TempFileStorage(), a.Redactor, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}
	transportService.SetInUse(a.Session.SourcePaths)
	if err := transportService.Start(); err != nil {
		return err
	}
	a.Transport = transportService

	a.Orchestrator = orchestrator.NewService(
		a.Session,
		a.StatusService,
		a.Documents,
		a.Audio,
		a.EventService,
		common.Duration(cfg.Review.UnitTimeout, 2*time.Minute),
		a.Logger,
	)

	a.RenderSurface = handlers.NewEventSurface(a.EventService)
	a.Session.AttachSurfaces(a.RenderSurface, a.RenderSurface)

	a.Logger.Debug().
		Str("analysis_model", analysisModel).
		Str("transcription_model", cfg.Gemini.Model).
		Msg("Services initialized")
	return nil
}

func (a *App) initHandlers() {
	cfg := a.Config

	a.APIHandler = handlers.NewAPIHandler(a.Health, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, a.Session, a.Orchestrator, a.LogConsumer, a.Logger)
	a.DocumentHandler = handlers.NewDocumentHandler(
		a.Session,
		a.Orchestrator,
		a.Transport,
		a.Inspector,
		a.Reports,
		a.EventService,
		&cfg.Review,
		a.Logger,
	)
	a.AudioHandler = handlers.NewAudioHandler(
		a.Session,
		a.Orchestrator,
		a.Transport,
		a.EventService,
		&cfg.Review,
		a.Logger,
	)
	a.KVHandler = handlers.NewKVHandler(a.StorageManager.KeyValueStorage(), a.Logger)

	a.WSHandler = handlers.NewWebSocketHandler(a.statusSnapshot, a.Logger)
	a.EventSubscriber = handlers.NewEventSubscriber(a.WSHandler, a.EventService, a.Logger, &cfg.WebSocket)
}

func (a *App) statusSnapshot() handlers.StatusUpdate {
	return handlers.StatusUpdate{
		SessionID:  a.Session.ID(),
		Processing: a.StatusService.Get(),
		Timestamp:  time.Now(),
	}
}

// Close stops background work, then releases providers and storage
func (a *App) Close() error {
	if a.Orchestrator != nil {
		a.Orchestrator.Close()
	}

	if a.Transport != nil {
		a.Transport.Stop()
	}

	if a.WSHandler != nil {
		a.WSHandler.CloseAll()
	}

	if a.LogConsumer != nil {
		a.LogConsumer.Stop()
	}

	if a.Providers != nil {
		if err := a.Providers.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close AI providers")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
