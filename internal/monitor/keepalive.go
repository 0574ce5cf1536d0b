package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/mrtongx0/donation-relay/internal/metrics"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

// KeepAlive periodically requests the relay's own public URL so that hosts
// which idle out quiet services keep it awake.
type KeepAlive struct {
	url            string
	interval       time.Duration
	client         *http.Client
	logger         *logrus.Entry
	metricsManager *metrics.Manager

	mu        sync.Mutex
	scheduler *cron.Cron
	cancel    context.CancelFunc
}

// NewKeepAlive creates a pinger for url. metricsManager may be nil.
func NewKeepAlive(url string, interval time.Duration, client *http.Client, metricsManager *metrics.Manager) *KeepAlive {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeepAlive{
		url:            url,
		interval:       interval,
		client:         client,
		logger:         utils.GetLogger().WithField("component", "keepalive"),
		metricsManager: metricsManager,
	}
}

// Start schedules the ping every interval
func (k *KeepAlive) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.scheduler != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Keep-alive already running")
	}
	if k.interval <= 0 {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Keep-alive interval must be positive")
	}

	runCtx, cancel := context.WithCancel(ctx)
	cronLogger := cron.PrintfLogger(k.logger)
	k.scheduler = cron.New(cron.WithLogger(cronLogger))
	k.scheduler.Schedule(cron.Every(k.interval), cron.NewChain(cron.SkipIfStillRunning(cronLogger)).Then(cron.FuncJob(func() {
		_ = k.Ping(runCtx)
	})))
	k.scheduler.Start()
	k.cancel = cancel

	k.logger.WithFields(logrus.Fields{"url": k.url, "interval": k.interval}).Info("Keep-alive started")
	return nil
}

// Stop halts the schedule
func (k *KeepAlive) Stop() error {
	k.mu.Lock()
	scheduler, cancel := k.scheduler, k.cancel
	k.scheduler, k.cancel = nil, nil
	k.mu.Unlock()

	if scheduler == nil {
		return nil
	}
	cancel()
	<-scheduler.Stop().Done()
	return nil
}

// Ping requests the URL once. Failures are logged and returned.
func (k *KeepAlive) Ping(ctx context.Context) error {
	err := k.ping(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		k.logger.WithError(err).Warn("Keep-alive ping failed")
	} else {
		k.logger.Debug("Keep-alive ping succeeded")
	}
	if k.metricsManager != nil {
		k.metricsManager.GetPrometheusMetrics().RecordKeepAlivePing(status)
	}
	return err
}

func (k *KeepAlive) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return utils.WrapAppError(utils.ErrCodeValidation, "Invalid keep-alive URL", err)
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return utils.WrapAppError(utils.ErrCodeExternal, "Keep-alive request failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return utils.NewAppError(utils.ErrCodeExternal, "Keep-alive returned error status", fmt.Sprintf("status: %d", resp.StatusCode))
	}
	return nil
}
