// File: internal/notification/webhook.go
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

const (
	defaultSendTimeout = 10 * time.Second
	maxErrorBodyBytes  = 1024
)

// SenderConfig configures the outbound webhook client
type SenderConfig struct {
	Timeout       time.Duration `json:"timeout"`
	RatePerSecond float64       `json:"rate_per_second"`
	RateBurst     int           `json:"rate_burst"`
	UserAgent     string        `json:"user_agent"`
}

// Sender delivers a message document to a webhook URL
type Sender interface {
	Send(ctx context.Context, url string, msg *models.Message) error
}

// WebhookSender posts message documents as JSON. It does not retry.
type WebhookSender struct {
	config     SenderConfig
	logger     *NotificationLogger
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewWebhookSender creates a new webhook sender
func NewWebhookSender(config SenderConfig, logger *NotificationLogger) *WebhookSender {
	if config.Timeout <= 0 {
		config.Timeout = defaultSendTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = "donation-relay/1.0"
	}
	if logger == nil {
		logger = NewNotificationLogger()
	}

	limit := rate.Inf
	burst := config.RateBurst
	if config.RatePerSecond > 0 {
		limit = rate.Limit(config.RatePerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	return &WebhookSender{
		config: config,
		logger: logger.WithField("component", "webhook_sender"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Send posts msg to url. Any non-2xx answer is an error.
func (ws *WebhookSender) Send(ctx context.Context, url string, msg *models.Message) error {
	if url == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "Webhook URL is required")
	}
	if msg == nil {
		return utils.NewAppError(utils.ErrCodeValidation, "Message is required")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return utils.WrapAppError(utils.ErrCodeInternal, "Failed to marshal webhook payload", err)
	}

	if err := ws.limiter.Wait(ctx); err != nil {
		return utils.WrapAppError(utils.ErrCodeExternal, "Webhook rate limit wait aborted", err)
	}

	requestID := utils.GenerateID()
	ws.logger.LogWebhookAttempt(url, requestID)

	startTime := time.Now()
	statusCode, err := ws.post(ctx, url, requestID, payload)
	ws.logger.LogWebhookResponse(url, statusCode, time.Since(startTime), err)

	return err
}

func (ws *WebhookSender) post(ctx context.Context, url, requestID string, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, utils.WrapAppError(utils.ErrCodeValidation, "Failed to create webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", ws.config.UserAgent)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := ws.httpClient.Do(req)
	if err != nil {
		return 0, utils.WrapAppError(utils.ErrCodeExternal, "Failed to send webhook", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return resp.StatusCode, utils.NewAppError(utils.ErrCodeExternal,
		"Webhook returned non-success status",
		fmt.Sprintf("status: %d, body: %s", resp.StatusCode, string(body)))
}
