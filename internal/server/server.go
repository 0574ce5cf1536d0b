// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/mrtongx0/donation-relay/internal/dispatcher"
	"github.com/mrtongx0/donation-relay/internal/metrics"
	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/internal/monitor"
	"github.com/mrtongx0/donation-relay/internal/notification"
	"github.com/mrtongx0/donation-relay/internal/storage"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

const (
	maxWebhookBodyBytes = 1 << 20
	donationTimeout     = 30 * time.Second
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port             int           `json:"port"`
	Host             string        `json:"host"`
	ReadTimeout      time.Duration `json:"read_timeout"`
	WriteTimeout     time.Duration `json:"write_timeout"`
	EnableMetrics    bool          `json:"enable_metrics"`
	EnableHealth     bool          `json:"enable_health"`
	EnableDonations  bool          `json:"enable_donations"`
	LeaderboardLimit int           `json:"leaderboard_limit"`
	Version          string        `json:"version"`
}

// DonationHandler processes one inbound donation
type DonationHandler interface {
	HandleDonation(ctx context.Context, event models.DonationEvent) error
}

// HTTPServer represents the HTTP server
type HTTPServer struct {
	config         *ServerConfig
	server         *http.Server
	router         *mux.Router
	donations      DonationHandler
	ranker         dispatcher.Ranker
	storage        storage.Store
	monitor        monitor.Monitor
	notification   notification.Notifier
	metricsManager *metrics.Manager
	logger         *logrus.Logger

	startTime time.Time
	stopOnce  sync.Once
	stopChan  chan struct{}
}

// NewHTTPServer creates a new HTTP server. ranker, store, feedMonitor,
// notifier and metricsManager may be nil.
func NewHTTPServer(
	config *ServerConfig,
	donations DonationHandler,
	ranker dispatcher.Ranker,
	store storage.Store,
	feedMonitor monitor.Monitor,
	notifier notification.Notifier,
	metricsManager *metrics.Manager,
) *HTTPServer {
	if config.Version == "" {
		config.Version = "dev"
	}

	s := &HTTPServer{
		config:         config,
		donations:      donations,
		ranker:         ranker,
		storage:        store,
		monitor:        feedMonitor,
		notification:   notifier,
		metricsManager: metricsManager,
		logger:         utils.GetLogger(),
		startTime:      time.Now(),
		stopChan:       make(chan struct{}),
	}

	s.setupRouter()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// SetLogger replaces the server's logger
func (s *HTTPServer) SetLogger(logger *logrus.Logger) {
	s.logger = logger
}

// Handler returns the routed handler, for embedding or tests
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.metricsManager != nil {
		s.router.Use(s.metricsMiddleware)
	}

	s.router.HandleFunc("/", s.rootHandler).Methods("GET", "HEAD")
	s.router.HandleFunc("/webhook", s.webhookHandler).Methods("POST")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	if s.config.EnableHealth {
		api.HandleFunc("/health", s.healthHandler).Methods("GET")
		api.HandleFunc("/health/detailed", s.detailedHealthHandler).Methods("GET")
	}

	if s.config.EnableMetrics && s.metricsManager != nil {
		s.router.Handle("/metrics", s.metricsManager.Handler())
		api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	}

	if s.ranker != nil {
		api.HandleFunc("/leaderboard", s.leaderboardHandler).Methods("GET")
	}

	// Preflight requests only need a matched route; corsMiddleware answers them.
	s.router.Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	if s.metricsManager != nil {
		s.updateComponentMetrics()
		go s.systemMetricsUpdater()
	}

	errChan := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
			errChan <- err
		}
	}()

	// Surface immediate bind errors
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// systemMetricsUpdater updates system metrics periodically
func (s *HTTPServer) systemMetricsUpdater() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.updateComponentMetrics()
		case <-s.stopChan:
			return
		}
	}
}

func (s *HTTPServer) updateComponentMetrics() {
	s.metricsManager.UpdateSystemMetrics()
	for component, healthy := range s.componentHealth() {
		s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth(component, healthy)
	}
}

func (s *HTTPServer) componentHealth() map[string]bool {
	health := make(map[string]bool)
	if s.storage != nil {
		health["storage"] = s.storage.GetHealth().Healthy
	}
	if s.monitor != nil {
		health["feed_monitor"] = s.monitor.GetHealth().Healthy
	}
	if s.notification != nil {
		health["notification"] = s.notification.GetHealth().Healthy
	}
	return health
}

// Stop stops the HTTP server, letting in-flight requests finish within ctx
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	s.stopOnce.Do(func() { close(s.stopChan) })
	return s.server.Shutdown(ctx)
}

// rootHandler answers liveness probes
func (s *HTTPServer) rootHandler(w http.ResponseWriter, r *http.Request) {
	s.writeText(w, http.StatusOK, "Donation relay is running")
}

// webhookHandler relays an inbound donation. The relay keeps working after
// the caller goes away, so the request context only contributes its values.
func (s *HTTPServer) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if !s.config.EnableDonations || s.donations == nil {
		s.writeText(w, http.StatusServiceUnavailable, "Donation relay is disabled")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read webhook body")
	}
	event := dispatcher.ParseDonationEvent(body)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), donationTimeout)
	defer cancel()

	if err := s.donations.HandleDonation(ctx, event); err != nil {
		s.logger.WithError(err).WithField("request_id", RequestIDFrom(r.Context())).Error("Donation relay failed")
		s.writeText(w, http.StatusInternalServerError, "Error sending donation notice")
		return
	}

	s.writeText(w, http.StatusOK, "Donation notice sent")
}

// healthHandler returns basic health status
func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		"version":         s.config.Version,
		"uptime":          time.Since(s.startTime).String(),
		"metrics_enabled": s.config.EnableMetrics,
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// detailedHealthHandler reports every component; a broken donation log
// makes the whole service unhealthy
func (s *HTTPServer) detailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	components := map[string]interface{}{}
	status := "healthy"
	code := http.StatusOK

	if s.storage != nil {
		health := s.storage.GetHealth()
		components["storage"] = health
		if !health.Healthy {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	if s.monitor != nil {
		health := s.monitor.GetHealth()
		components["feed_monitor"] = health
		if !health.Healthy && status == "healthy" {
			status = "degraded"
		}
	}
	if s.notification != nil {
		health := s.notification.GetHealth()
		components["notification"] = health
		if !health.Healthy && status == "healthy" {
			status = "degraded"
		}
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"version":    s.config.Version,
		"components": components,
	})
}

// statsHandler returns application statistics
func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		"uptime":          time.Since(s.startTime).String(),
		"metrics_enabled": s.config.EnableMetrics,
	}
	if s.notification != nil {
		stats["notification"] = s.notification.GetStats()
	}
	if s.monitor != nil {
		stats["feed_monitor"] = s.monitor.GetStats()
	}
	if s.storage != nil {
		stats["storage_backend"] = s.storage.Type()
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// leaderboardHandler returns the current top donors
func (s *HTTPServer) leaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.config.LeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid limit parameter", err)
			return
		}
		limit = n
	}

	entries := s.ranker.TopDonors(r.Context(), limit)
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// writeText writes a plain text response
func (s *HTTPServer) writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string, err error) {
	errorResponse := map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err != nil {
		errorResponse["details"] = err.Error()
		s.logger.WithFields(logrus.Fields{
			"status":  status,
			"message": message,
		}).WithError(err).Error("HTTP error")
	}

	s.writeJSON(w, status, errorResponse)
}
