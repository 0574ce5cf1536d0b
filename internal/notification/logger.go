// File: internal/notification/logger.go
package notification

import (
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrtongx0/donation-relay/pkg/utils"
)

// NotificationLogger handles logging for notification operations
type NotificationLogger struct {
	entry *logrus.Entry
}

// NewNotificationLogger creates a notification logger on top of the global logger
func NewNotificationLogger() *NotificationLogger {
	return NewNotificationLoggerFrom(utils.GetLogger())
}

// NewNotificationLoggerFrom creates a notification logger on top of logger
func NewNotificationLoggerFrom(logger *logrus.Logger) *NotificationLogger {
	return &NotificationLogger{entry: logger.WithField("component", "notification")}
}

// WithField adds a single field to the logger context
func (nl *NotificationLogger) WithField(key string, value interface{}) *NotificationLogger {
	return &NotificationLogger{entry: nl.entry.WithField(key, value)}
}

// WithFields adds fields to the logger context
func (nl *NotificationLogger) WithFields(fields logrus.Fields) *NotificationLogger {
	return &NotificationLogger{entry: nl.entry.WithFields(fields)}
}

// Entry exposes the underlying logrus entry
func (nl *NotificationLogger) Entry() *logrus.Entry {
	return nl.entry
}

// LogWebhookAttempt logs a webhook attempt
func (nl *NotificationLogger) LogWebhookAttempt(target, requestID string) {
	nl.entry.WithFields(logrus.Fields{
		"url":        RedactURL(target),
		"request_id": requestID,
	}).Debug("Webhook attempt started")
}

// LogWebhookResponse logs a webhook response
func (nl *NotificationLogger) LogWebhookResponse(target string, statusCode int, duration time.Duration, err error) {
	entry := nl.entry.WithFields(logrus.Fields{
		"url":         RedactURL(target),
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	})

	if err != nil {
		entry.WithError(err).Error("Webhook failed")
		return
	}
	entry.Debug("Webhook completed")
}

// LogNotificationResult logs the outcome of a notification
func (nl *NotificationLogger) LogNotificationResult(kind string, notificationID string, duration time.Duration, err error) {
	entry := nl.entry.WithFields(logrus.Fields{
		"notification_id":   notificationID,
		"notification_type": kind,
		"duration_ms":       duration.Milliseconds(),
	})

	if err != nil {
		entry.WithError(err).Error("Notification failed")
		return
	}
	entry.Info("Notification sent successfully")
}

// RedactURL hides the secret token segment of a chat webhook URL
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<invalid-url>"
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 1 {
		segments[len(segments)-1] = "***"
	}
	return u.Scheme + "://" + u.Host + "/" + strings.Join(segments, "/")
}
