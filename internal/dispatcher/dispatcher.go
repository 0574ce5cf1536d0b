// Package dispatcher turns inbound donation submissions into chat notices and
// donation log entries.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/mrtongx0/donation-relay/internal/metrics"
	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/internal/notification"
	"github.com/mrtongx0/donation-relay/internal/tier"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

// RecordAppender persists donation records
type RecordAppender interface {
	Append(ctx context.Context, record models.DonationRecord) error
}

// Ranker computes the current top donors
type Ranker interface {
	TopDonors(ctx context.Context, limit int) []models.LeaderboardEntry
}

// Config holds dispatcher settings
type Config struct {
	DonationWebhookURL    string
	LeaderboardEnabled    bool
	LeaderboardWebhookURL string
	LeaderboardLimit      int
	AnonymousName         string
	EmptyMessage          string
}

// Dispatcher handles one donation at a time; it keeps no state between calls
// and is safe for concurrent use.
type Dispatcher struct {
	config    Config
	resolver  *tier.Resolver
	formatter *notification.Formatter
	notifier  notification.Notifier
	store     RecordAppender
	ranker    Ranker
	metrics   *metrics.Manager
	logger    *logrus.Entry
	now       func() time.Time
}

// Option customises a Dispatcher
type Option func(*Dispatcher)

// WithMetrics records donation metrics on m
func WithMetrics(m *metrics.Manager) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithClock overrides the time source used for missing donation times
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger replaces the dispatcher's logger
func WithLogger(logger *logrus.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger.WithField("component", "dispatcher") }
}

// New creates a dispatcher
func New(
	config Config,
	resolver *tier.Resolver,
	formatter *notification.Formatter,
	notifier notification.Notifier,
	store RecordAppender,
	ranker Ranker,
	opts ...Option,
) *Dispatcher {
	if config.AnonymousName == "" {
		config.AnonymousName = "Anonymous Supporter"
	}
	if config.EmptyMessage == "" {
		config.EmptyMessage = "-"
	}
	if config.LeaderboardWebhookURL == "" {
		config.LeaderboardWebhookURL = config.DonationWebhookURL
	}

	d := &Dispatcher{
		config:    config,
		resolver:  resolver,
		formatter: formatter,
		notifier:  notifier,
		store:     store,
		ranker:    ranker,
		logger:    utils.GetLogger().WithField("component", "dispatcher"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ParseDonationEvent reads an inbound body. Every field is optional and a
// body that is not a JSON object yields an empty event. Amounts may be JSON
// numbers or numeric strings; anything else, including numbers out of the
// float64 range, reads as zero without affecting the other fields.
func ParseDonationEvent(body []byte) models.DonationEvent {
	var raw map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil || raw == nil {
		return models.DonationEvent{}
	}

	event := models.DonationEvent{
		DonatorName:   stringField(raw, "donatorName"),
		DonateMessage: stringField(raw, "donateMessage"),
		Time:          stringField(raw, "time"),
		ChannelName:   stringField(raw, "channelName"),
		ReferenceNo:   stringField(raw, "referenceNo"),
	}

	event.Amount = tier.Normalize(amountField(raw["amount"]))

	return event
}

func amountField(value interface{}) float64 {
	var (
		amount float64
		err    error
	)
	switch v := value.(type) {
	case json.Number:
		amount, err = cast.ToFloat64E(v)
	case string:
		amount, err = cast.ToFloat64E(strings.TrimSpace(v))
	default:
		return 0
	}
	if err != nil {
		return 0
	}
	return amount
}

func stringField(raw map[string]interface{}, key string) string {
	switch v := raw[key].(type) {
	case nil, map[string]interface{}, []interface{}:
		return ""
	default:
		return strings.TrimSpace(cast.ToString(v))
	}
}

// ApplyDefaults fills the fields a submission left out
func (d *Dispatcher) ApplyDefaults(event models.DonationEvent) models.DonationEvent {
	if strings.TrimSpace(event.DonatorName) == "" {
		event.DonatorName = d.config.AnonymousName
	}
	if strings.TrimSpace(event.DonateMessage) == "" {
		event.DonateMessage = d.config.EmptyMessage
	}
	if strings.TrimSpace(event.Time) == "" {
		event.Time = models.FormatTimestamp(d.now())
	}
	event.Amount = tier.Normalize(event.Amount)
	return event
}

// HandleDonation announces the donation, appends it to the log and posts the
// refreshed leaderboard. The record is stored whether or not the announcement
// went out. A failed donation or leaderboard send is returned; a failed
// append is only logged.
func (d *Dispatcher) HandleDonation(ctx context.Context, event models.DonationEvent) error {
	event = d.ApplyDefaults(event)
	resolved := d.resolver.Resolve(event.Amount)

	logger := d.logger.WithFields(logrus.Fields{
		"donor":  event.DonatorName,
		"amount": event.Amount,
		"tier":   resolved.Title,
	})
	logger.Info("Donation received")

	if d.metrics != nil {
		d.metrics.GetPrometheusMetrics().RecordDonation(resolved.Title, event.Amount)
	}

	var errs []error

	notice := d.formatter.DonationNotice(event, resolved)
	if err := d.notifier.Notify(ctx, models.NotificationKindDonation, d.config.DonationWebhookURL, notice); err != nil {
		logger.WithError(err).Error("Failed to send donation notice")
		errs = append(errs, utils.WrapAppError(utils.ErrCodeExternal, "Donation notice failed", err))
	}

	if err := d.store.Append(ctx, event.Record()); err != nil {
		logger.WithError(err).Error("Failed to append donation record")
	}

	if d.config.LeaderboardEnabled && d.ranker != nil {
		if err := d.postLeaderboard(ctx); err != nil {
			logger.WithError(err).Error("Failed to send leaderboard notice")
			errs = append(errs, utils.WrapAppError(utils.ErrCodeExternal, "Leaderboard notice failed", err))
		}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) postLeaderboard(ctx context.Context) error {
	entries := d.ranker.TopDonors(ctx, d.config.LeaderboardLimit)
	if d.metrics != nil {
		d.metrics.GetPrometheusMetrics().UpdateLeaderboardSize(len(entries))
	}

	msg := d.formatter.LeaderboardNotice(entries)
	if msg == nil {
		d.logger.Debug("Leaderboard is empty, nothing to post")
		return nil
	}
	return d.notifier.Notify(ctx, models.NotificationKindLeaderboard, d.config.LeaderboardWebhookURL, msg)
}
