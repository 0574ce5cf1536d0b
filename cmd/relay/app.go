package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrtongx0/donation-relay/internal/config"
	"github.com/mrtongx0/donation-relay/internal/dispatcher"
	"github.com/mrtongx0/donation-relay/internal/leaderboard"
	"github.com/mrtongx0/donation-relay/internal/metrics"
	"github.com/mrtongx0/donation-relay/internal/monitor"
	"github.com/mrtongx0/donation-relay/internal/notification"
	"github.com/mrtongx0/donation-relay/internal/server"
	"github.com/mrtongx0/donation-relay/internal/storage"
	"github.com/mrtongx0/donation-relay/internal/tier"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

const shutdownTimeout = 30 * time.Second

// Application wires the relay's components together
type Application struct {
	config       *config.Config
	logger       *logrus.Logger
	metrics      *metrics.Manager
	storage      storage.Store
	notification *notification.NotificationManager
	formatter    *notification.Formatter
	leaderboard  *leaderboard.Aggregator
	dispatcher   *dispatcher.Dispatcher
	feedMonitor  *monitor.FeedMonitor
	keepAlive    *monitor.KeepAlive
	server       *server.HTTPServer
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeLogger(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeLogger initializes the application logger
func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging

	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return err
	}

	app.logger = utils.GetLogger()
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
		"output": logCfg.Output,
	}).Info("Logger initialized")

	return nil
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	app.logger.Info("Initializing application components")

	app.metrics = metrics.NewManager()

	if err := app.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.initializeNotification()

	if err := app.initializeDispatcher(); err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	app.initializeMonitors()
	app.initializeServer()

	app.logger.Info("All components initialized successfully")
	return nil
}

// initializeStorage opens the donation log
func (app *Application) initializeStorage() error {
	if err := storage.ValidateStorageConfig(&app.config.Storage); err != nil {
		return err
	}

	store, err := storage.NewStore(&app.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	if err := store.Connect(); err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("failed to run storage migrations: %w", err)
	}

	app.storage = storage.NewStoreWithMetrics(store, app.metrics)
	app.logger.WithField("backend", store.Type()).Info("Storage layer initialized")
	return nil
}

// initializeNotification builds the outbound webhook path
func (app *Application) initializeNotification() {
	notifCfg := app.config.Notifications
	logger := notification.NewNotificationLoggerFrom(app.logger)

	sender := notification.NewWebhookSender(notification.SenderConfig{
		Timeout:       notifCfg.Timeout,
		RatePerSecond: notifCfg.RatePerSecond,
		RateBurst:     notifCfg.RateBurst,
		UserAgent:     fmt.Sprintf("%s/%s", app.config.App.Name, AppVersion),
	}, logger)

	app.notification = notification.NewNotificationManager(sender, logger, app.metrics)
	app.formatter = notification.NewFormatter(notification.FormatterConfigFrom(notifCfg))
}

// initializeDispatcher sets up tiers, the leaderboard and the donation flow
func (app *Application) initializeDispatcher() error {
	resolver := tier.NewResolverFromConfig(app.config.Tiers, app.config.DefaultTier)
	if err := resolver.Validate(); err != nil {
		return err
	}

	app.leaderboard = leaderboard.NewAggregator(app.storage, leaderboard.WithWindow(app.config.Leaderboard.Window))

	app.dispatcher = dispatcher.New(dispatcher.Config{
		DonationWebhookURL:    app.config.Notifications.DonationWebhookURL,
		LeaderboardEnabled:    app.config.Leaderboard.Enabled,
		LeaderboardWebhookURL: app.config.Leaderboard.WebhookURL,
		LeaderboardLimit:      app.config.Leaderboard.Limit,
		AnonymousName:         app.config.Notifications.AnonymousName,
		EmptyMessage:          app.config.Notifications.EmptyMessage,
	},
		resolver,
		app.formatter,
		app.notification,
		app.storage,
		app.leaderboard,
		dispatcher.WithMetrics(app.metrics),
		dispatcher.WithLogger(app.logger),
	)

	app.logger.WithField("tiers", len(resolver.Tiers())).Info("Dispatcher initialized")
	return nil
}

// initializeMonitors creates the feed watcher and the keep-alive pinger when enabled
func (app *Application) initializeMonitors() {
	if app.config.Feed.Enabled {
		fetcher := monitor.NewGoFeedFetcher(app.config.Feed.FeedURL, nil)
		app.feedMonitor = monitor.NewFeedMonitor(fetcher, app.notification, app.formatter, &monitor.MonitorConfig{
			PollInterval: app.config.Feed.PollInterval,
			WebhookURL:   app.config.Feed.WebhookURL,
		}, app.metrics)
		app.feedMonitor.SetLogger(app.logger)
	}

	if app.config.KeepAlive.Enabled {
		app.keepAlive = monitor.NewKeepAlive(app.config.KeepAlive.URL, app.config.KeepAlive.Interval, nil, app.metrics)
	}
}

// initializeServer initializes the HTTP server
func (app *Application) initializeServer() {
	serverCfg := &server.ServerConfig{
		Port:             app.config.Server.Port,
		Host:             app.config.Server.Host,
		ReadTimeout:      app.config.Server.ReadTimeout,
		WriteTimeout:     app.config.Server.WriteTimeout,
		EnableMetrics:    app.config.Server.EnableMetrics,
		EnableHealth:     app.config.Server.EnableHealth,
		EnableDonations:  app.config.Notifications.EnableDonations,
		LeaderboardLimit: app.config.Leaderboard.Limit,
		Version:          AppVersion,
	}

	// A nil *FeedMonitor must not reach the server as a non-nil interface.
	var feedMonitor monitor.Monitor
	if app.feedMonitor != nil {
		feedMonitor = app.feedMonitor
	}

	app.server = server.NewHTTPServer(serverCfg, app.dispatcher, app.leaderboard, app.storage, feedMonitor, app.notification, app.metrics)
	app.server.SetLogger(app.logger)
}

// Start starts the application
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":     AppVersion,
		"environment": app.config.App.Environment,
	}).Info("Starting donation relay")

	if err := app.server.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if app.feedMonitor != nil {
		if err := app.feedMonitor.Start(app.ctx); err != nil {
			return fmt.Errorf("failed to start feed monitor: %w", err)
		}
	}

	if app.keepAlive != nil {
		if err := app.keepAlive.Start(app.ctx); err != nil {
			return fmt.Errorf("failed to start keep-alive: %w", err)
		}
	}

	app.logger.WithFields(logrus.Fields{
		"server_address":  fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port),
		"storage_backend": app.storage.Type(),
		"feed_enabled":    app.feedMonitor != nil,
		"keepalive":       app.keepAlive != nil,
	}).Info("Donation relay started successfully")

	return nil
}

// Stop stops the application gracefully
func (app *Application) Stop() error {
	app.logger.Info("Stopping donation relay")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if app.server != nil {
		if err := app.server.Stop(ctx); err != nil {
			app.logger.WithError(err).Error("Failed to stop HTTP server")
		}
	}

	app.cancel()

	if app.keepAlive != nil {
		if err := app.keepAlive.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop keep-alive")
		}
	}

	if app.feedMonitor != nil {
		if err := app.feedMonitor.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop feed monitor")
		}
	}

	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close storage")
		}
	}

	app.logger.Info("Donation relay stopped")
	return nil
}
