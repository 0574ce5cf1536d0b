package models

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DonationRecord is one entry of the persisted donation log
type DonationRecord struct {
	Name   string  `json:"name" db:"name"`
	Amount float64 `json:"amount" db:"amount"`
	Time   string  `json:"time" db:"time"`
}

// DonationEvent is an inbound donation notification after defaults are applied
type DonationEvent struct {
	DonatorName   string  `json:"donatorName"`
	Amount        float64 `json:"amount"`
	DonateMessage string  `json:"donateMessage"`
	Time          string  `json:"time"`

	// Optional payment details some platforms send along
	ChannelName string `json:"channelName,omitempty"`
	ReferenceNo string `json:"referenceNo,omitempty"`
}

// Record converts the event into the form stored in the donation log
func (e DonationEvent) Record() DonationRecord {
	return DonationRecord{
		Name:   e.DonatorName,
		Amount: e.Amount,
		Time:   e.Time,
	}
}

// LeaderboardEntry is a donor's summed contribution inside the leaderboard window
type LeaderboardEntry struct {
	Name        string  `json:"name"`
	TotalAmount float64 `json:"total_amount"`
}

// ParseTimestamp parses an ISO-8601 style timestamp, returning false when it
// cannot be interpreted.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, true
	}
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatTimestamp renders t the way records and embeds carry timestamps
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
