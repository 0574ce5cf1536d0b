package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrtongx0/donation-relay/internal/metrics"
	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

func testSender() *WebhookSender {
	return NewWebhookSender(SenderConfig{Timeout: 2 * time.Second}, NewNotificationLoggerFrom(utils.NewTestLogger()))
}

func sampleMessage() *models.Message {
	return &models.Message{Embeds: []models.Embed{{Title: "hello", Color: 1}}}
}

func TestWebhookSenderPostsJSON(t *testing.T) {
	var got models.Message
	var contentType, requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		requestID = r.Header.Get("X-Request-ID")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := testSender().Send(context.Background(), srv.URL, sampleMessage())

	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	assert.NotEmpty(t, requestID)
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "hello", got.Embeds[0].Title)
}

func TestWebhookSenderNon2xxIsError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad embed", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := testSender().Send(context.Background(), srv.URL, sampleMessage())

	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeExternal))
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retries")
}

func TestWebhookSenderRequiresURL(t *testing.T) {
	err := testSender().Send(context.Background(), "", sampleMessage())
	assert.True(t, utils.HasCode(err, utils.ErrCodeValidation))
}

func TestWebhookSenderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := testSender().Send(context.Background(), url, sampleMessage())
	assert.True(t, utils.HasCode(err, utils.ErrCodeExternal))
}

type stubSender struct {
	err   error
	calls int
}

func (s *stubSender) Send(ctx context.Context, url string, msg *models.Message) error {
	s.calls++
	return s.err
}

func TestNotificationManagerStatsAndHealth(t *testing.T) {
	sender := &stubSender{}
	mm := metrics.NewManager()
	nm := NewNotificationManager(sender, NewNotificationLoggerFrom(utils.NewTestLogger()), mm)
	ctx := context.Background()

	require.NoError(t, nm.Notify(ctx, models.NotificationKindDonation, "http://x", sampleMessage()))
	assert.True(t, nm.GetHealth().Healthy)

	sender.err = utils.NewAppError(utils.ErrCodeExternal, "boom")
	require.Error(t, nm.Notify(ctx, models.NotificationKindLeaderboard, "http://x", sampleMessage()))

	stats := nm.GetStats()
	assert.Equal(t, uint64(1), stats.TotalNotificationsSent)
	assert.Equal(t, uint64(1), stats.TotalNotificationsFailed)
	assert.Equal(t, uint64(1), stats.SentByKind[models.NotificationKindDonation])

	health := nm.GetHealth()
	assert.False(t, health.Healthy)
	assert.Contains(t, health.Error, "boom")

	pm := mm.GetPrometheusMetrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.NotificationsSentTotal.WithLabelValues("donation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.NotificationFailuresTotal.WithLabelValues("leaderboard", "external")))

	sender.err = nil
	require.NoError(t, nm.Notify(ctx, models.NotificationKindFeed, "http://x", sampleMessage()))
	assert.True(t, nm.GetHealth().Healthy)
}

func TestNotificationManagerWithoutMetrics(t *testing.T) {
	nm := NewNotificationManager(&stubSender{err: errors.New("plain")}, nil, nil)
	err := nm.Notify(context.Background(), models.NotificationKindTest, "http://x", sampleMessage())
	assert.EqualError(t, err, "plain")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://discord.com/api/webhooks/123/***", RedactURL("https://discord.com/api/webhooks/123/secret-token"))
	assert.Equal(t, "<invalid-url>", RedactURL("not a url"))
}
