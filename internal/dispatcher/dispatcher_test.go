package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrtongx0/donation-relay/internal/leaderboard"
	"github.com/mrtongx0/donation-relay/internal/metrics"
	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/internal/notification"
	"github.com/mrtongx0/donation-relay/internal/storage"
	"github.com/mrtongx0/donation-relay/internal/tier"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func testResolver() *tier.Resolver {
	return tier.NewResolver([]tier.Tier{
		{Min: 0, Max: ptr(50), Title: "Bronze"},
		{Min: 51, Max: ptr(100), Title: "Silver"},
		{Min: 101, Max: ptr(300), Title: "Gold", ImageURL: "https://img.example/gold.gif"},
		{Min: 301, Title: "Legend"},
	}, tier.Tier{Title: "Supporter"})
}

// chatHook records posted messages and fails paths listed in fail
type chatHook struct {
	mu       sync.Mutex
	received map[string][]models.Message
	fail     map[string]bool
}

func newChatHook() *chatHook {
	return &chatHook{received: map[string][]models.Message{}, fail: map[string]bool{}}
}

func (h *chatHook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg models.Message
	_ = json.NewDecoder(r.Body).Decode(&msg)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.received[r.URL.Path] = append(h.received[r.URL.Path], msg)
	if h.fail[r.URL.Path] {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *chatHook) messages(path string) []models.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.Message(nil), h.received[path]...)
}

type fixture struct {
	dispatcher *Dispatcher
	store      *storage.FileStore
	hook       *chatHook
	metrics    *metrics.Manager
}

func newFixture(t *testing.T, leaderboardEnabled bool) *fixture {
	t.Helper()

	hook := newChatHook()
	srv := httptest.NewServer(hook)
	t.Cleanup(srv.Close)

	store := storage.NewFileStore(filepath.Join(t.TempDir(), "leaderboard.json"))
	require.NoError(t, store.Connect())

	mm := metrics.NewManager()
	logger := notification.NewNotificationLoggerFrom(utils.NewTestLogger())
	sender := notification.NewWebhookSender(notification.SenderConfig{Timeout: 2 * time.Second}, logger)
	notifier := notification.NewNotificationManager(sender, logger, mm)
	formatter := notification.NewFormatter(notification.FormatterConfig{Currency: "THB"}).WithClock(func() time.Time { return now })

	d := New(Config{
		DonationWebhookURL:    srv.URL + "/donations",
		LeaderboardEnabled:    leaderboardEnabled,
		LeaderboardWebhookURL: srv.URL + "/leaderboard",
		LeaderboardLimit:      5,
		AnonymousName:         "Anonymous Supporter",
	},
		testResolver(),
		formatter,
		notifier,
		store,
		leaderboard.NewAggregator(store, leaderboard.WithClock(func() time.Time { return now })),
		WithMetrics(mm),
		WithClock(func() time.Time { return now }),
		WithLogger(utils.NewTestLogger()),
	)

	return &fixture{dispatcher: d, store: store, hook: hook, metrics: mm}
}

func TestHandleDonationEndToEnd(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	err := f.dispatcher.HandleDonation(ctx, ParseDonationEvent([]byte(`{"donatorName":"Mint","amount":120}`)))
	require.NoError(t, err)

	records, err := f.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Mint", records[0].Name)
	assert.Equal(t, 120.0, records[0].Amount)
	assert.Equal(t, models.FormatTimestamp(now), records[0].Time)

	donations := f.hook.messages("/donations")
	require.Len(t, donations, 1)
	assert.Equal(t, "Gold", donations[0].Embeds[0].Title)
	require.NotNil(t, donations[0].Embeds[0].Image)
	assert.Equal(t, "https://img.example/gold.gif", donations[0].Embeds[0].Image.URL)

	boards := f.hook.messages("/leaderboard")
	require.Len(t, boards, 1)
	assert.Equal(t, "#1 — Mint — 120 THB", boards[0].Embeds[0].Description)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GetPrometheusMetrics().DonationsReceivedTotal.WithLabelValues("Gold")))
}

func TestHandleDonationStoresRecordWhenSendFails(t *testing.T) {
	f := newFixture(t, false)
	f.hook.fail["/donations"] = true
	ctx := context.Background()

	err := f.dispatcher.HandleDonation(ctx, models.DonationEvent{DonatorName: "Bee", Amount: 20})
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeExternal))

	records, err := f.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Bee", records[0].Name)
	assert.Empty(t, f.hook.messages("/leaderboard"))
}

func TestHandleDonationLeaderboardStillPostedAfterFailedNotice(t *testing.T) {
	f := newFixture(t, true)
	f.hook.fail["/donations"] = true

	err := f.dispatcher.HandleDonation(context.Background(), models.DonationEvent{DonatorName: "Bee", Amount: 20})
	require.Error(t, err)
	assert.Len(t, f.hook.messages("/leaderboard"), 1)
}

func TestHandleDonationLeaderboardFailureIsReported(t *testing.T) {
	f := newFixture(t, true)
	f.hook.fail["/leaderboard"] = true

	err := f.dispatcher.HandleDonation(context.Background(), models.DonationEvent{DonatorName: "Bee", Amount: 20})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Leaderboard notice failed")
	assert.Len(t, f.hook.messages("/donations"), 1)
}

func TestHandleDonationLeaderboardSumsDonors(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.HandleDonation(ctx, models.DonationEvent{DonatorName: "A", Amount: 100}))
	require.NoError(t, f.dispatcher.HandleDonation(ctx, models.DonationEvent{DonatorName: "B", Amount: 120}))
	require.NoError(t, f.dispatcher.HandleDonation(ctx, models.DonationEvent{DonatorName: "A", Amount: 50}))

	boards := f.hook.messages("/leaderboard")
	require.Len(t, boards, 3)
	lines := strings.Split(boards[2].Embeds[0].Description, "\n")
	assert.Equal(t, []string{"#1 — A — 150 THB", "#2 — B — 120 THB"}, lines)
}

func TestApplyDefaults(t *testing.T) {
	f := newFixture(t, false)

	event := f.dispatcher.ApplyDefaults(models.DonationEvent{Amount: -3})
	assert.Equal(t, "Anonymous Supporter", event.DonatorName)
	assert.Equal(t, "-", event.DonateMessage)
	assert.Equal(t, models.FormatTimestamp(now), event.Time)
	assert.Equal(t, 0.0, event.Amount)

	kept := f.dispatcher.ApplyDefaults(models.DonationEvent{DonatorName: "Mint", DonateMessage: "hi", Time: "2026-10-01T00:00:00Z"})
	assert.Equal(t, "Mint", kept.DonatorName)
	assert.Equal(t, "hi", kept.DonateMessage)
	assert.Equal(t, "2026-10-01T00:00:00Z", kept.Time)
}

func TestParseDonationEvent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want models.DonationEvent
	}{
		{"full", `{"donatorName":"Mint","amount":120,"donateMessage":"hi","time":"2026-10-01T00:00:00Z","channelName":"PromptPay","referenceNo":"R1"}`,
			models.DonationEvent{DonatorName: "Mint", Amount: 120, DonateMessage: "hi", Time: "2026-10-01T00:00:00Z", ChannelName: "PromptPay", ReferenceNo: "R1"}},
		{"numeric string amount", `{"amount":"75.5"}`, models.DonationEvent{Amount: 75.5}},
		{"garbage amount", `{"amount":"lots"}`, models.DonationEvent{}},
		{"boolean amount", `{"amount":true}`, models.DonationEvent{}},
		{"negative amount", `{"amount":-10}`, models.DonationEvent{}},
		{"malformed json", `{"donatorName":`, models.DonationEvent{}},
		{"not an object", `[1,2,3]`, models.DonationEvent{}},
		{"empty body", ``, models.DonationEvent{}},
		{"null name", `{"donatorName":null,"amount":5}`, models.DonationEvent{Amount: 5}},
		{"amount out of range keeps other fields", `{"donatorName":"Mint","amount":1e400,"donateMessage":"hi"}`,
			models.DonationEvent{DonatorName: "Mint", DonateMessage: "hi"}},
		{"string amount out of range", `{"donatorName":"Mint","amount":"1e400"}`, models.DonationEvent{DonatorName: "Mint"}},
		{"numeric name", `{"donatorName":42,"amount":1.5}`, models.DonationEvent{DonatorName: "42", Amount: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDonationEvent([]byte(tt.body)))
		})
	}
}
