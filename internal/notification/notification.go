// File: internal/notification/notification.go
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/mrtongx0/donation-relay/internal/metrics"
	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

// Notifier delivers formatted messages and tracks their outcome
type Notifier interface {
	Notify(ctx context.Context, kind models.NotificationKind, url string, msg *models.Message) error
	GetStats() *NotificationStats
	GetHealth() *NotificationHealth
}

// NotificationManager implements the Notifier interface on top of a Sender
type NotificationManager struct {
	sender  Sender
	logger  *NotificationLogger
	metrics *metrics.Manager

	mu    sync.RWMutex
	stats *NotificationStats
}

// NotificationStats provides notification statistics
type NotificationStats struct {
	TotalNotificationsSent   uint64                             `json:"total_notifications_sent"`
	TotalNotificationsFailed uint64                             `json:"total_notifications_failed"`
	ConsecutiveFailures      uint64                             `json:"consecutive_failures"`
	SentByKind               map[models.NotificationKind]uint64 `json:"sent_by_kind"`
	AverageResponseTime      time.Duration                      `json:"average_response_time"`
	LastError                *string                            `json:"last_error,omitempty"`
	LastErrorTime            *time.Time                         `json:"last_error_time,omitempty"`
	LastSuccessTime          *time.Time                         `json:"last_success_time,omitempty"`
}

type NotificationHealth struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// NewNotificationManager creates a new notification manager. metricsManager may be nil.
func NewNotificationManager(sender Sender, logger *NotificationLogger, metricsManager *metrics.Manager) *NotificationManager {
	if logger == nil {
		logger = NewNotificationLogger()
	}
	return &NotificationManager{
		sender:  sender,
		logger:  logger,
		metrics: metricsManager,
		stats:   &NotificationStats{SentByKind: make(map[models.NotificationKind]uint64)},
	}
}

// Notify sends msg to url and records the result under kind
func (nm *NotificationManager) Notify(ctx context.Context, kind models.NotificationKind, url string, msg *models.Message) error {
	notificationID := utils.GenerateID()
	startTime := time.Now()

	err := nm.sender.Send(ctx, url, msg)
	duration := time.Since(startTime)

	nm.updateNotificationStats(kind, duration, err)
	nm.recordMetrics(kind, duration, err)
	nm.logger.LogNotificationResult(string(kind), notificationID, duration, err)

	return err
}

func (nm *NotificationManager) recordMetrics(kind models.NotificationKind, duration time.Duration, err error) {
	if nm.metrics == nil {
		return
	}
	pm := nm.metrics.GetPrometheusMetrics()
	if err == nil {
		pm.RecordNotificationSent(string(kind), duration)
		return
	}
	pm.RecordNotificationFailure(string(kind), failureReason(err), duration)
}

func failureReason(err error) string {
	switch {
	case utils.HasCode(err, utils.ErrCodeValidation):
		return "validation"
	case utils.HasCode(err, utils.ErrCodeExternal):
		return "external"
	default:
		return "internal"
	}
}

// updateNotificationStats updates notification statistics
func (nm *NotificationManager) updateNotificationStats(kind models.NotificationKind, responseTime time.Duration, err error) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	now := time.Now()
	if err != nil {
		nm.stats.TotalNotificationsFailed++
		nm.stats.ConsecutiveFailures++
		errorStr := err.Error()
		nm.stats.LastError = &errorStr
		nm.stats.LastErrorTime = &now
		return
	}

	nm.stats.TotalNotificationsSent++
	nm.stats.ConsecutiveFailures = 0
	nm.stats.SentByKind[kind]++
	nm.stats.LastSuccessTime = &now

	if nm.stats.TotalNotificationsSent == 1 {
		nm.stats.AverageResponseTime = responseTime
	} else {
		nm.stats.AverageResponseTime = (nm.stats.AverageResponseTime + responseTime) / 2
	}
}

// GetStats returns a copy of the notification statistics
func (nm *NotificationManager) GetStats() *NotificationStats {
	nm.mu.RLock()
	defer nm.mu.RUnlock()

	stats := *nm.stats
	stats.SentByKind = make(map[models.NotificationKind]uint64, len(nm.stats.SentByKind))
	for kind, n := range nm.stats.SentByKind {
		stats.SentByKind[kind] = n
	}
	return &stats
}

// GetHealth reports unhealthy while the most recent delivery attempt failed
func (nm *NotificationManager) GetHealth() *NotificationHealth {
	nm.mu.RLock()
	defer nm.mu.RUnlock()

	health := &NotificationHealth{Healthy: nm.stats.ConsecutiveFailures == 0}
	if !health.Healthy && nm.stats.LastError != nil {
		health.Error = *nm.stats.LastError
	}
	return health
}
