// Package leaderboard ranks donors over a trailing time window.
package leaderboard

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/internal/storage"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

const (
	// DefaultWindow is the trailing period donations are ranked over
	DefaultWindow = 7 * 24 * time.Hour
	// DefaultLimit is the number of donors returned when no limit is given
	DefaultLimit = 5
)

// RecordSource is the part of the donation log the aggregator reads
type RecordSource interface {
	List(ctx context.Context) ([]models.DonationRecord, error)
}

var _ RecordSource = (storage.Store)(nil)

// Aggregator reduces the donation log to ranked per-donor totals
type Aggregator struct {
	source RecordSource
	window time.Duration
	now    func() time.Time
	logger *logrus.Entry
}

// Option customises an Aggregator
type Option func(*Aggregator)

// WithWindow overrides the trailing window
func WithWindow(window time.Duration) Option {
	return func(a *Aggregator) {
		if window > 0 {
			a.window = window
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator creates an aggregator over source
func NewAggregator(source RecordSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		source: source,
		window: DefaultWindow,
		now:    time.Now,
		logger: utils.GetLogger().WithField("component", "leaderboard"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TopDonors returns up to limit donors ranked by their summed amount inside
// the window. Ties keep the order in which donors first appear in the log.
// An empty result means there is nothing to announce.
func (a *Aggregator) TopDonors(ctx context.Context, limit int) []models.LeaderboardEntry {
	if limit <= 0 {
		limit = DefaultLimit
	}

	records, err := a.source.List(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to load donation log, using empty leaderboard")
		return []models.LeaderboardEntry{}
	}

	cutoff := a.now().Add(-a.window)
	totals := make(map[string]int)
	entries := make([]models.LeaderboardEntry, 0)

	for _, rec := range records {
		at, ok := models.ParseTimestamp(rec.Time)
		if !ok || at.Before(cutoff) {
			continue
		}
		idx, seen := totals[rec.Name]
		if !seen {
			idx = len(entries)
			totals[rec.Name] = idx
			entries = append(entries, models.LeaderboardEntry{Name: rec.Name})
		}
		entries[idx].TotalAmount += rec.Amount
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalAmount > entries[j].TotalAmount
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Window returns the trailing window in use
func (a *Aggregator) Window() time.Duration {
	return a.window
}
