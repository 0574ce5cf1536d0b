package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrtongx0/donation-relay/internal/dispatcher"
	"github.com/mrtongx0/donation-relay/internal/leaderboard"
	"github.com/mrtongx0/donation-relay/internal/metrics"
	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/internal/notification"
	"github.com/mrtongx0/donation-relay/internal/storage"
	"github.com/mrtongx0/donation-relay/internal/tier"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

type fakeDonations struct {
	mu     sync.Mutex
	err    error
	events []models.DonationEvent
}

func (f *fakeDonations) HandleDonation(ctx context.Context, event models.DonationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type staticRanker []models.LeaderboardEntry

func (r staticRanker) TopDonors(ctx context.Context, limit int) []models.LeaderboardEntry {
	if limit < len(r) {
		return r[:limit]
	}
	return r
}

func newTestServer(donations DonationHandler, ranker dispatcher.Ranker, store storage.Store, mm *metrics.Manager) *HTTPServer {
	s := NewHTTPServer(&ServerConfig{
		Port:             0,
		EnableHealth:     true,
		EnableMetrics:    true,
		EnableDonations:  true,
		LeaderboardLimit: 5,
	}, donations, ranker, store, nil, nil, mm)
	s.SetLogger(utils.NewTestLogger())
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestRootIsLive(t *testing.T) {
	s := newTestServer(&fakeDonations{}, nil, nil, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestWebhookSuccess(t *testing.T) {
	donations := &fakeDonations{}
	s := newTestServer(donations, nil, nil, nil)

	rec := do(t, s.Handler(), http.MethodPost, "/webhook", `{"donatorName":"Mint","amount":"120","donateMessage":"hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	require.Len(t, donations.events, 1)
	assert.Equal(t, "Mint", donations.events[0].DonatorName)
	assert.Equal(t, 120.0, donations.events[0].Amount)
}

func TestWebhookMalformedBodyStillHandled(t *testing.T) {
	donations := &fakeDonations{}
	s := newTestServer(donations, nil, nil, nil)

	rec := do(t, s.Handler(), http.MethodPost, "/webhook", `not json`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, donations.events, 1)
	assert.Equal(t, models.DonationEvent{}, donations.events[0])
}

func TestWebhookFailureIs500(t *testing.T) {
	s := newTestServer(&fakeDonations{err: errors.New("chat down")}, nil, nil, nil)

	rec := do(t, s.Handler(), http.MethodPost, "/webhook", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhookDisabledIs503(t *testing.T) {
	donations := &fakeDonations{}
	s := NewHTTPServer(&ServerConfig{EnableDonations: false}, donations, nil, nil, nil, nil, nil)
	s.SetLogger(utils.NewTestLogger())

	rec := do(t, s.Handler(), http.MethodPost, "/webhook", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, donations.events)
}

func TestCORSPreflight(t *testing.T) {
	donations := &fakeDonations{}
	s := newTestServer(donations, staticRanker{{Name: "A", TotalAmount: 1}}, nil, nil)

	for _, path := range []string{"/webhook", "/api/v1/health", "/api/v1/leaderboard"} {
		rec := do(t, s.Handler(), http.MethodOptions, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST", path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
	}

	donations.mu.Lock()
	defer donations.mu.Unlock()
	assert.Empty(t, donations.events)

	rec := do(t, s.Handler(), http.MethodGet, "/webhook", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLeaderboardEndpoint(t *testing.T) {
	ranker := staticRanker{{Name: "A", TotalAmount: 300}, {Name: "B", TotalAmount: 100}}
	s := newTestServer(&fakeDonations{}, ranker, nil, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/leaderboard?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Entries []models.LeaderboardEntry `json:"entries"`
		Count   int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "A", body.Entries[0].Name)

	rec = do(t, s.Handler(), http.MethodGet, "/api/v1/leaderboard?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "log.json"))
	require.NoError(t, store.Connect())
	mm := metrics.NewManager()
	s := newTestServer(&fakeDonations{}, nil, store, mm)

	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s.Handler(), http.MethodGet, "/api/v1/health/detailed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])

	rec = do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `relay_http_requests_total{endpoint="/api/v1/health",method="GET",status_code="200"} 1`)
}

func TestWebhookEndToEnd(t *testing.T) {
	var mu sync.Mutex
	var posted []models.Message
	chat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg models.Message
		_ = json.NewDecoder(r.Body).Decode(&msg)
		mu.Lock()
		posted = append(posted, msg)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer chat.Close()

	store := storage.NewFileStore(filepath.Join(t.TempDir(), "leaderboard.json"))
	require.NoError(t, store.Connect())

	upper := func(v float64) *float64 { return &v }
	resolver := tier.NewResolver([]tier.Tier{
		{Min: 0, Max: upper(50), Title: "Bronze"},
		{Min: 51, Max: upper(100), Title: "Silver"},
		{Min: 101, Max: upper(300), Title: "Gold"},
		{Min: 301, Title: "Legend"},
	}, tier.Tier{Title: "Supporter"})

	logger := notification.NewNotificationLoggerFrom(utils.NewTestLogger())
	notifier := notification.NewNotificationManager(
		notification.NewWebhookSender(notification.SenderConfig{Timeout: 2 * time.Second}, logger), logger, nil)
	aggregator := leaderboard.NewAggregator(store)
	d := dispatcher.New(dispatcher.Config{
		DonationWebhookURL: chat.URL,
		LeaderboardEnabled: true,
		LeaderboardLimit:   5,
	}, resolver, notification.NewFormatter(notification.FormatterConfig{}), notifier, store, aggregator,
		dispatcher.WithLogger(utils.NewTestLogger()))

	s := newTestServer(d, aggregator, store, nil)

	rec := do(t, s.Handler(), http.MethodPost, "/webhook", `{"donatorName":"Mint","amount":120}`)
	require.Equal(t, http.StatusOK, rec.Code)

	records, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Mint", records[0].Name)
	assert.Equal(t, 120.0, records[0].Amount)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, posted, 2)
	assert.Equal(t, "Gold", posted[0].Embeds[0].Title)
	assert.Contains(t, posted[1].Embeds[0].Description, "#1 — Mint — 120")
}
