package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docket/internal/api"
	"github.com/ternarybob/docket/internal/common"
	"github.com/ternarybob/docket/internal/interfaces"
	"github.com/ternarybob/docket/internal/services/events"
	"github.com/ternarybob/docket/internal/services/notify"
	"github.com/ternarybob/docket/internal/services/syncer"
	"github.com/ternarybob/docket/internal/services/uploader"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	EventService  interfaces.EventService
	Client        interfaces.DocumentAPI
	UploadService interfaces.UploadService
	SyncService   interfaces.SyncService

	// NotifyService is nil unless the change feed listener is enabled
	NotifyService *notify.Service
}

// New wires the service graph from config. Background services are not
// started here; call Start.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	app := &App{
		Config: cfg,
		Logger: logger,
	}

	app.EventService = events.NewService(logger)

	app.Client = api.NewClient(
		api.WithBaseURL(cfg.API.BaseURL),
		api.WithHTTPClient(&http.Client{Timeout: cfg.API.RequestTimeout()}),
		api.WithRateLimit(cfg.API.RateLimit),
		api.WithLogger(logger),
	)

	app.UploadService = uploader.NewService(app.Client, app.EventService, cfg.Upload.Delay(), logger)
	app.SyncService = syncer.NewService(app.Client, app.EventService, cfg.Sync.Interval(), logger)

	if cfg.Notify.Enabled {
		if cfg.Notify.URL == "" {
			return nil, fmt.Errorf("notify.enabled requires notify.url")
		}
		app.NotifyService = notify.NewService(cfg.Notify.URL, app.EventService, logger)
	}

	return app, nil
}

// Start launches the synchronizer and, when configured, the change feed
// listener. A listener failure degrades to poll-only operation.
func (a *App) Start(ctx context.Context) error {
	if err := a.SyncService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start synchronizer: %w", err)
	}

	if a.NotifyService != nil {
		if err := a.NotifyService.Start(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Change feed listener failed to start, continuing with polling only")
		}
	}

	return nil
}

// Close stops background services in reverse dependency order
func (a *App) Close() error {
	if a.NotifyService != nil {
		a.NotifyService.Stop()
	}

	if a.SyncService != nil {
		a.SyncService.Stop()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
