// File: internal/monitor/monitor.go
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/mrtongx0/donation-relay/internal/metrics"
	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/internal/notification"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

// PollResult describes what a single poll did
type PollResult string

const (
	PollAnnounced PollResult = "announced"
	PollUnchanged PollResult = "unchanged"
	PollEmpty     PollResult = "empty"
	PollFailed    PollResult = "error"
)

// Monitor defines the feed watcher lifecycle
type Monitor interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
	Poll(ctx context.Context) PollResult
	GetStats() *MonitorStats
	GetHealth() *HealthStatus
}

// FeedMonitor announces the newest feed item each time it changes. Only the
// newest item is considered; items published between polls are not replayed.
type FeedMonitor struct {
	fetcher        FeedFetcher
	notifier       notification.Notifier
	formatter      *notification.Formatter
	logger         *logrus.Entry
	metricsManager *metrics.Manager
	config         *MonitorConfig

	mu         sync.RWMutex
	running    bool
	lastSeenID string
	scheduler  *cron.Cron
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stats      *MonitorStats
}

// MonitorConfig holds feed monitor configuration
type MonitorConfig struct {
	PollInterval time.Duration `json:"poll_interval"`
	WebhookURL   string        `json:"webhook_url"`
	PollTimeout  time.Duration `json:"poll_timeout"`
}

// MonitorStats provides monitoring statistics
type MonitorStats struct {
	StartTime          time.Time  `json:"start_time"`
	IsRunning          bool       `json:"is_running"`
	LastSeenID         string     `json:"last_seen_id,omitempty"`
	TotalPolls         uint64     `json:"total_polls"`
	TotalAnnouncements uint64     `json:"total_announcements"`
	ErrorCount         uint64     `json:"error_count"`
	LastPollTime       *time.Time `json:"last_poll_time,omitempty"`
	LastError          *string    `json:"last_error,omitempty"`
	LastErrorTime      *time.Time `json:"last_error_time,omitempty"`
}

// HealthStatus provides health information
type HealthStatus struct {
	Healthy      bool       `json:"healthy"`
	Running      bool       `json:"running"`
	LastPollTime *time.Time `json:"last_poll_time,omitempty"`
	Issues       []string   `json:"issues,omitempty"`
}

// NewFeedMonitor creates a new feed monitor. metricsManager may be nil.
func NewFeedMonitor(
	fetcher FeedFetcher,
	notifier notification.Notifier,
	formatter *notification.Formatter,
	config *MonitorConfig,
	metricsManager *metrics.Manager,
) *FeedMonitor {
	if config.PollTimeout <= 0 {
		config.PollTimeout = 30 * time.Second
	}
	return &FeedMonitor{
		fetcher:        fetcher,
		notifier:       notifier,
		formatter:      formatter,
		logger:         utils.GetLogger().WithField("component", "feed_monitor"),
		metricsManager: metricsManager,
		config:         config,
		stats:          &MonitorStats{},
	}
}

// SetLogger replaces the monitor's logger
func (fm *FeedMonitor) SetLogger(logger *logrus.Logger) {
	fm.logger = logger.WithField("component", "feed_monitor")
}

// Start polls once right away and then on every PollInterval
func (fm *FeedMonitor) Start(ctx context.Context) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.running {
		return utils.NewAppError(utils.ErrCodeInternal, "Feed monitor already running")
	}
	if fm.config.PollInterval <= 0 {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Feed poll interval must be positive")
	}

	runCtx, cancel := context.WithCancel(ctx)
	cronLogger := cron.PrintfLogger(fm.logger)
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger)).Then(cron.FuncJob(func() {
		fm.Poll(runCtx)
	}))

	fm.scheduler = cron.New(cron.WithLogger(cronLogger))
	fm.scheduler.Schedule(cron.Every(fm.config.PollInterval), job)
	fm.scheduler.Start()
	fm.cancel = cancel
	fm.running = true
	fm.stats.StartTime = time.Now()
	fm.stats.IsRunning = true

	fm.wg.Add(1)
	go func() {
		defer fm.wg.Done()
		job.Run()
	}()

	fm.logger.WithField("poll_interval", fm.config.PollInterval).Info("Feed monitor started")
	return nil
}

// Stop halts the schedule and waits for a running poll to finish
func (fm *FeedMonitor) Stop() error {
	fm.mu.Lock()
	if !fm.running {
		fm.mu.Unlock()
		return nil
	}
	fm.running = false
	fm.stats.IsRunning = false
	scheduler, cancel := fm.scheduler, fm.cancel
	fm.mu.Unlock()

	cancel()
	<-scheduler.Stop().Done()
	fm.wg.Wait()

	fm.logger.Info("Feed monitor stopped")
	return nil
}

// IsRunning returns whether the monitor is running
func (fm *FeedMonitor) IsRunning() bool {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return fm.running
}

// LastSeenID returns the id of the most recently announced item
func (fm *FeedMonitor) LastSeenID() string {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return fm.lastSeenID
}

// Poll fetches the feed once and announces the newest item when it is new.
// The item is marked seen before the announcement is sent, so a failed send
// is not retried on the next poll.
func (fm *FeedMonitor) Poll(ctx context.Context) PollResult {
	pollCtx, cancel := context.WithTimeout(ctx, fm.config.PollTimeout)
	defer cancel()

	items, err := fm.fetcher.Fetch(pollCtx)
	if err != nil {
		fm.logger.WithError(err).Warn("Feed fetch failed, skipping cycle")
		fm.recordPoll(PollFailed, err)
		return PollFailed
	}
	if len(items) == 0 {
		fm.recordPoll(PollEmpty, nil)
		return PollEmpty
	}

	newest := items[0]

	fm.mu.Lock()
	if newest.ID == fm.lastSeenID {
		fm.mu.Unlock()
		fm.recordPoll(PollUnchanged, nil)
		return PollUnchanged
	}
	fm.lastSeenID = newest.ID
	fm.stats.LastSeenID = newest.ID
	fm.mu.Unlock()

	category := notification.Classify(newest)
	msg := fm.formatter.FeedNotice(newest)
	if err := fm.notifier.Notify(pollCtx, models.NotificationKindFeed, fm.config.WebhookURL, msg); err != nil {
		fm.logger.WithError(err).WithField("item_id", newest.ID).Error("Failed to announce feed item")
	} else {
		fm.logger.WithFields(logrus.Fields{
			"item_id":  newest.ID,
			"category": category,
			"title":    newest.Title,
		}).Info("Feed item announced")
	}

	fm.mu.Lock()
	fm.stats.TotalAnnouncements++
	fm.mu.Unlock()
	if fm.metricsManager != nil {
		fm.metricsManager.GetPrometheusMetrics().RecordFeedAnnouncement(string(category))
	}
	fm.recordPoll(PollAnnounced, nil)
	return PollAnnounced
}

func (fm *FeedMonitor) recordPoll(result PollResult, err error) {
	fm.mu.Lock()
	now := time.Now()
	fm.stats.TotalPolls++
	fm.stats.LastPollTime = &now
	if err != nil {
		fm.stats.ErrorCount++
		errorStr := err.Error()
		fm.stats.LastError = &errorStr
		fm.stats.LastErrorTime = &now
	}
	fm.mu.Unlock()

	if fm.metricsManager != nil {
		fm.metricsManager.GetPrometheusMetrics().RecordFeedPoll(string(result))
	}
}

// GetStats returns a copy of the monitor statistics
func (fm *FeedMonitor) GetStats() *MonitorStats {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	stats := *fm.stats
	return &stats
}

// GetHealth reports unhealthy when the monitor stopped or has not polled for
// three intervals
func (fm *FeedMonitor) GetHealth() *HealthStatus {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	health := &HealthStatus{
		Healthy:      fm.running,
		Running:      fm.running,
		LastPollTime: fm.stats.LastPollTime,
	}
	if !fm.running {
		health.Issues = append(health.Issues, "feed monitor is not running")
		return health
	}
	if fm.stats.LastPollTime != nil && time.Since(*fm.stats.LastPollTime) > 3*fm.config.PollInterval {
		health.Healthy = false
		health.Issues = append(health.Issues, "feed has not been polled recently")
	}
	return health
}
